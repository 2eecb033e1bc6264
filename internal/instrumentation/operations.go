package instrumentation

// Drive operation names used as the "operation" label on google_api_* metrics
// and in google.drive.<operation> span names. Keep this set small and fixed;
// file ids never appear as label values.
const (
	OperationList         = "list"
	OperationSearch       = "search"
	OperationCreateFolder = "create_folder"
	OperationUpload       = "upload"
	OperationDelete       = "delete"
	OperationDownload     = "download"
	OperationRename       = "rename"
	OperationMove         = "move"
	OperationGet          = "get"
)

// Transfer directions for drive_transfer_bytes_total.
const (
	DirectionUpload   = "upload"
	DirectionDownload = "download"
)

// IsKnownOperation reports whether op is one of the Operation* constants.
// Unknown values are recorded as "other" to bound label cardinality.
func IsKnownOperation(op string) bool {
	switch op {
	case OperationList, OperationSearch, OperationCreateFolder, OperationUpload,
		OperationDelete, OperationDownload, OperationRename, OperationMove, OperationGet:
		return true
	}
	return false
}

func normalizeOperation(op string) string {
	if IsKnownOperation(op) {
		return op
	}
	return "other"
}
