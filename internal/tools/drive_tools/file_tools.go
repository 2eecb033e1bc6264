package drive_tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/gdrive-mcp/internal/drive"
	"github.com/teemow/gdrive-mcp/internal/instrumentation"
	"github.com/teemow/gdrive-mcp/internal/server"
)

// registerFileTools registers file management tools
func registerFileTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	getFileInfoTool := mcp.NewTool("get_file_info",
		mcp.WithDescription("Get detailed metadata for a file, including owners, permissions and parents"),
		mcp.WithString("file_id",
			mcp.Required(),
			mcp.Description("ID of the file"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOutputSchema[drive.FileInfo](),
	)

	if err := addDriveTool(s, sc, getFileInfoTool, instrumentation.OperationGet, nil,
		func(ctx context.Context, client *drive.Client, args map[string]interface{}) (interface{}, error) {
			return client.GetFileInfo(ctx, stringArg(args, "file_id"))
		}); err != nil {
		return err
	}

	// Writes locally only, so it stays available in read-only mode.
	downloadTool := mcp.NewTool("download_file",
		mcp.WithDescription("Download a file from Google Drive to a local path"),
		mcp.WithString("file_id",
			mcp.Required(),
			mcp.Description("ID of the file to download"),
		),
		mcp.WithString("destination_path",
			mcp.Required(),
			mcp.Description("Local path to write the file to"),
		),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOutputSchema[drive.DownloadResult](),
	)

	if err := addDriveTool(s, sc, downloadTool, instrumentation.OperationDownload, nil,
		func(ctx context.Context, client *drive.Client, args map[string]interface{}) (interface{}, error) {
			return client.DownloadFile(ctx, stringArg(args, "file_id"), stringArg(args, "destination_path"))
		}); err != nil {
		return err
	}

	if readOnly {
		return nil
	}

	uploadTool := mcp.NewTool("upload_file",
		mcp.WithDescription("Upload a local file to Google Drive"),
		mcp.WithString("file_path",
			mcp.Required(),
			mcp.Description("Path of the local file to upload"),
		),
		mcp.WithString("file_name",
			mcp.Description("Name for the file in Drive (default: base name of file_path)"),
		),
		mcp.WithString("parent_folder_id",
			mcp.Description("ID of the folder to upload into (default: My Drive root)"),
		),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOutputSchema[drive.FileRef](),
	)

	if err := addDriveTool(s, sc, uploadTool, instrumentation.OperationUpload,
		func(args map[string]interface{}) error {
			return drive.CheckLocalFile(stringArg(args, "file_path"))
		},
		func(ctx context.Context, client *drive.Client, args map[string]interface{}) (interface{}, error) {
			return client.UploadFile(ctx,
				stringArg(args, "file_path"),
				stringArg(args, "file_name"),
				stringArg(args, "parent_folder_id"))
		}); err != nil {
		return err
	}

	deleteTool := mcp.NewTool("delete_file",
		mcp.WithDescription("Permanently delete a file or folder from Google Drive"),
		mcp.WithString("file_id",
			mcp.Required(),
			mcp.Description("ID of the file or folder to delete"),
		),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithOutputSchema[drive.DeleteResult](),
	)

	if err := addDriveTool(s, sc, deleteTool, instrumentation.OperationDelete, nil,
		func(ctx context.Context, client *drive.Client, args map[string]interface{}) (interface{}, error) {
			return client.DeleteFile(ctx, stringArg(args, "file_id"))
		}); err != nil {
		return err
	}

	renameTool := mcp.NewTool("rename_file",
		mcp.WithDescription("Rename a file or folder in Google Drive"),
		mcp.WithString("file_id",
			mcp.Required(),
			mcp.Description("ID of the file or folder"),
		),
		mcp.WithString("new_name",
			mcp.Required(),
			mcp.Description("New name"),
		),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOutputSchema[drive.FileRef](),
	)

	if err := addDriveTool(s, sc, renameTool, instrumentation.OperationRename, nil,
		func(ctx context.Context, client *drive.Client, args map[string]interface{}) (interface{}, error) {
			return client.RenameFile(ctx, stringArg(args, "file_id"), stringArg(args, "new_name"))
		}); err != nil {
		return err
	}

	moveTool := mcp.NewTool("move_file",
		mcp.WithDescription("Move a file or folder to a different parent folder"),
		mcp.WithString("file_id",
			mcp.Required(),
			mcp.Description("ID of the file or folder to move"),
		),
		mcp.WithString("new_parent_folder_id",
			mcp.Required(),
			mcp.Description("ID of the destination folder"),
		),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOutputSchema[drive.FileRef](),
	)

	if err := addDriveTool(s, sc, moveTool, instrumentation.OperationMove, nil,
		func(ctx context.Context, client *drive.Client, args map[string]interface{}) (interface{}, error) {
			return client.MoveFile(ctx, stringArg(args, "file_id"), stringArg(args, "new_parent_folder_id"))
		}); err != nil {
		return err
	}
	return nil
}
