package common

// Target identifies what a tool invocation acted on, for audit records.
type Target struct {
	FileID string
	Path   string
}

// TargetFromArgs extracts the file id and local path from tool arguments.
// Missing or non-string values are left empty.
func TargetFromArgs(args map[string]interface{}) Target {
	var t Target
	if id, ok := args["file_id"].(string); ok {
		t.FileID = id
	}
	for _, key := range []string{"file_path", "destination_path"} {
		if p, ok := args[key].(string); ok && p != "" {
			t.Path = p
			break
		}
	}
	return t
}
