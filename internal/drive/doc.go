// Package drive wraps the Google Drive v3 API for the MCP tools.
//
// A Client is built from an *http.Client that already carries an OAuth
// bearer token (see google.Handle) and exposes the nine file operations the
// server offers: list, search, create folder, upload, delete, download,
// rename, move and metadata fetch.
//
// Every remote call runs inside a google.drive.<operation> span and is
// counted in google_api_operations_total. Drive failures are returned as
// *RemoteOperationError, whose message is Drive's own message; a missing
// local upload source is reported as *LocalFileNotFoundError before any
// request is made.
//
// Example usage:
//
//	handle, err := manager.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	client, err := drive.NewClient(ctx, handle.HTTPClient())
//	if err != nil {
//	    return err
//	}
//	files, err := client.SearchFiles(ctx, "report", 5)
package drive
