package common

import "testing"

func TestTargetFromArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     map[string]interface{}
		expected Target
	}{
		{
			name:     "nil args",
			args:     nil,
			expected: Target{},
		},
		{
			name:     "file id only",
			args:     map[string]interface{}{"file_id": "1AbC"},
			expected: Target{FileID: "1AbC"},
		},
		{
			name:     "upload path",
			args:     map[string]interface{}{"file_path": "/tmp/a.txt", "file_name": "b.txt"},
			expected: Target{Path: "/tmp/a.txt"},
		},
		{
			name:     "download target",
			args:     map[string]interface{}{"file_id": "1AbC", "destination_path": "/tmp/out.bin"},
			expected: Target{FileID: "1AbC", Path: "/tmp/out.bin"},
		},
		{
			name:     "non-string values are ignored",
			args:     map[string]interface{}{"file_id": 42, "file_path": true},
			expected: Target{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TargetFromArgs(tt.args); got != tt.expected {
				t.Errorf("TargetFromArgs() = %+v, expected %+v", got, tt.expected)
			}
		})
	}
}
