package drive_tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/gdrive-mcp/internal/drive"
	"github.com/teemow/gdrive-mcp/internal/instrumentation"
	"github.com/teemow/gdrive-mcp/internal/server"
)

const serviceDrive = instrumentation.ServiceDrive

func registerSearchTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	listTool := mcp.NewTool("list_drive_files",
		mcp.WithDescription("List files in Google Drive, optionally filtered with a Drive query"),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum number of files to return"),
			mcp.DefaultNumber(drive.DefaultMaxResults),
		),
		mcp.WithString("query",
			mcp.Description("Drive query, e.g. \"mimeType='application/pdf'\" or \"'<folder id>' in parents\""),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOutputSchema[drive.FileList](),
	)

	if err := addDriveTool(s, sc, listTool, instrumentation.OperationList, nil,
		func(ctx context.Context, client *drive.Client, args map[string]interface{}) (interface{}, error) {
			return client.ListFiles(ctx,
				intArg(args, "max_results", drive.DefaultMaxResults),
				stringArg(args, "query"))
		}); err != nil {
		return err
	}

	searchTool := mcp.NewTool("search_drive_files",
		mcp.WithDescription("Search Google Drive for files whose name contains the search term"),
		mcp.WithString("search_term",
			mcp.Required(),
			mcp.Description("Text the file name must contain"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum number of files to return"),
			mcp.DefaultNumber(drive.DefaultMaxResults),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOutputSchema[drive.FileList](),
	)

	if err := addDriveTool(s, sc, searchTool, instrumentation.OperationSearch, nil,
		func(ctx context.Context, client *drive.Client, args map[string]interface{}) (interface{}, error) {
			return client.SearchFiles(ctx,
				stringArg(args, "search_term"),
				intArg(args, "max_results", drive.DefaultMaxResults))
		}); err != nil {
		return err
	}
	return nil
}
