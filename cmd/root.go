package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the gdrive-mcp application
var rootCmd = &cobra.Command{
	Use:   "gdrive-mcp",
	Short: "Google Drive tools for AI assistants over MCP",
	Long: `gdrive-mcp exposes Google Drive file operations (list, search, upload,
download, rename, move, delete, folder creation and metadata) as Model Context
Protocol tools.

OAuth authorization happens once in the browser; the resulting credential is
cached next to the executable and refreshed automatically.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "gdrive-mcp version %s\n" .Version}}`)

	// If no subcommand is provided, run the MCP server over stdio
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
}
