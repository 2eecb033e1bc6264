package drive_tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/gdrive-mcp/internal/drive"
	"github.com/teemow/gdrive-mcp/internal/instrumentation"
	"github.com/teemow/gdrive-mcp/internal/server"
)

// registerFolderTools registers folder management tools
func registerFolderTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	createFolderTool := mcp.NewTool("create_folder",
		mcp.WithDescription("Create a new folder in Google Drive"),
		mcp.WithString("folder_name",
			mcp.Required(),
			mcp.Description("Name of the new folder"),
		),
		mcp.WithString("parent_folder_id",
			mcp.Description("ID of the folder to create it in (default: My Drive root)"),
		),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOutputSchema[drive.FileRef](),
	)

	if err := addDriveTool(s, sc, createFolderTool, instrumentation.OperationCreateFolder, nil,
		func(ctx context.Context, client *drive.Client, args map[string]interface{}) (interface{}, error) {
			return client.CreateFolder(ctx, stringArg(args, "folder_name"), stringArg(args, "parent_folder_id"))
		}); err != nil {
		return err
	}
	return nil
}
