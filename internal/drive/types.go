package drive

import "time"

// FileInfo is the metadata record returned for a Drive file or folder.
// Fields the request did not ask for are left empty and omitted.
type FileInfo struct {
	// ID is the opaque Drive identifier
	ID string `json:"id"`

	// Name is the file name
	Name string `json:"name"`

	// MimeType is the MIME type of the file
	MimeType string `json:"mimeType,omitempty"`

	// Size is the size in bytes (not populated for folders or Google Docs)
	Size int64 `json:"size,omitempty"`

	// CreatedTime is when the file was created
	CreatedTime time.Time `json:"createdTime,omitzero"`

	// ModifiedTime is when the file was last modified
	ModifiedTime time.Time `json:"modifiedTime,omitzero"`

	// WebViewLink opens the file in the Drive web UI
	WebViewLink string `json:"webViewLink,omitempty"`

	// Parents are the IDs of the parent folders
	Parents []string `json:"parents,omitempty"`

	// Owners are the owners of the file
	Owners []User `json:"owners,omitempty"`

	// Permissions are the access permissions visible to the caller
	Permissions []Permission `json:"permissions,omitempty"`
}

// User is a Drive user (owner, permission holder).
type User struct {
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress,omitempty"`
	PhotoLink    string `json:"photoLink,omitempty"`
}

// Permission is one access grant on a file.
type Permission struct {
	// ID is the unique identifier for the permission
	ID string `json:"id"`

	// Type is the grantee type (user, group, domain, anyone)
	Type string `json:"type"`

	// Role is the granted role (owner, organizer, fileOrganizer, writer, commenter, reader)
	Role string `json:"role"`

	EmailAddress string `json:"emailAddress,omitempty"`
	Domain       string `json:"domain,omitempty"`
	DisplayName  string `json:"displayName,omitempty"`
}

// FileList is the result of a list or search.
type FileList struct {
	Files []FileInfo `json:"files"`
}

// FileRef is the short record returned by create, upload, rename and move.
type FileRef struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	WebViewLink string   `json:"webViewLink,omitempty"`
	Parents     []string `json:"parents,omitempty"`
}

// DeleteResult confirms a deletion.
type DeleteResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// DownloadResult confirms a completed download.
type DownloadResult struct {
	Success bool   `json:"success"`
	Path    string `json:"path"`
	// Bytes is the number of bytes written to Path
	Bytes int64 `json:"bytes"`
}
