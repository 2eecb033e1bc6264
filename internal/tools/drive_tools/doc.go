// Package drive_tools exposes Google Drive operations as MCP tools.
//
// Available tools:
//   - list_drive_files: List files, optionally filtered by a Drive query
//   - search_drive_files: Find files whose name contains a term
//   - get_file_info: Full metadata including owners, permissions and parents
//   - download_file: Stream a file to a local path
//   - create_folder: Create a folder
//   - upload_file: Upload a local file
//   - rename_file: Rename a file or folder
//   - move_file: Move a file to another folder
//   - delete_file: Permanently delete a file or folder
//
// In read-only mode only list, search, get_file_info and download_file are
// registered. download_file writes to the local disk but never to Drive.
//
// Every call acquires a fresh credential handle. Results are returned as
// structured content with an indented JSON text fallback; failures are error
// results carrying the underlying message.
//
// Example tool usage:
//
//	search_drive_files({
//	  search_term: "invoice",
//	  max_results: 5
//	})
//
//	upload_file({
//	  file_path: "/home/jane/report.pdf",
//	  parent_folder_id: "1AbCdEf"
//	})
package drive_tools
