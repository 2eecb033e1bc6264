package drive_tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/gdrive-mcp/internal/drive"
	"github.com/teemow/gdrive-mcp/internal/instrumentation"
	"github.com/teemow/gdrive-mcp/internal/logging"
	"github.com/teemow/gdrive-mcp/internal/server"
	"github.com/teemow/gdrive-mcp/internal/tools/common"
)

// RegisterDriveTools registers all Google Drive tools with the MCP server.
// In read-only mode only tools that leave Drive unchanged are registered.
func RegisterDriveTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	if s == nil || sc == nil {
		return fmt.Errorf("mcp server and server context are required")
	}

	if err := registerSearchTools(s, sc); err != nil {
		return fmt.Errorf("failed to register search tools: %w", err)
	}

	if err := registerFileTools(s, sc, readOnly); err != nil {
		return fmt.Errorf("failed to register file tools: %w", err)
	}

	if !readOnly {
		if err := registerFolderTools(s, sc); err != nil {
			return fmt.Errorf("failed to register folder tools: %w", err)
		}
	}
	return nil
}

// driveHandler is a tool body that runs against an authorized Drive client.
type driveHandler func(ctx context.Context, client *drive.Client, args map[string]interface{}) (interface{}, error)

// addDriveTool registers tool with instrumentation. preflight, when set,
// runs before a credential handle is acquired. operation must be one of the
// bounded Drive operation labels.
func addDriveTool(
	s *mcpserver.MCPServer,
	sc *server.ServerContext,
	tool mcp.Tool,
	operation string,
	preflight func(args map[string]interface{}) error,
	run driveHandler,
) error {
	if run == nil {
		return fmt.Errorf("tool %s has no handler", tool.Name)
	}
	if !instrumentation.IsKnownOperation(operation) {
		return fmt.Errorf("tool %s: unknown drive operation %q", tool.Name, operation)
	}

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]interface{})

		for _, name := range tool.InputSchema.Required {
			if v, ok := args[name].(string); !ok || v == "" {
				return toolFailure(sc, tool.Name, fmt.Errorf("%s is required", name)), nil
			}
		}

		if preflight != nil {
			if err := preflight(args); err != nil {
				return toolFailure(sc, tool.Name, err), nil
			}
		}

		client, err := sc.DriveClient(ctx)
		if err != nil {
			return toolFailure(sc, tool.Name, err), nil
		}

		out, err := run(ctx, client, args)
		if err != nil {
			return toolFailure(sc, tool.Name, err), nil
		}
		return structuredResult(out), nil
	}

	s.AddTool(tool, common.InstrumentedToolHandlerWithService(tool.Name, serviceDrive, operation, sc, handler))
	return nil
}

// toolFailure logs err and converts it to an error result carrying the
// original message.
func toolFailure(sc *server.ServerContext, toolName string, err error) *mcp.CallToolResult {
	sc.Logger().Error("tool failed", logging.Tool(toolName), logging.Err(err))
	return mcp.NewToolResultError(err.Error())
}

// structuredResult returns v as structured content with an indented JSON
// text fallback for clients that ignore structured output.
func structuredResult(v interface{}) *mcp.CallToolResult {
	text, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err))
	}
	return mcp.NewToolResultStructured(v, string(text))
}

func stringArg(args map[string]interface{}, name string) string {
	v, _ := args[name].(string)
	return v
}

// intArg reads a JSON number argument, returning def when it is absent.
// Present values are passed through for Drive to judge.
func intArg(args map[string]interface{}, name string, def int) int {
	if v, ok := args[name].(float64); ok {
		return int(v)
	}
	return def
}
