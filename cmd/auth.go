package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teemow/gdrive-mcp/internal/logging"
)

func newAuthCmd() *cobra.Command {
	var (
		debugMode bool
		logFormat string
	)

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the cached Google Drive credential",
		Long: `Manage the OAuth credential used for Google Drive.

The OAuth client secret is read from credentials.json and the credential is
cached in token.json, both in the directory of the gdrive-mcp executable.`,
	}

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatText, "Log format: text or json")

	newLogger := func() (logging.Logger, error) {
		l, err := logging.New(os.Stderr, logging.Options{Format: logFormat, Debug: debugMode})
		if err != nil {
			return nil, err
		}
		return logging.NewSlogAdapter(l), nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "login",
		Short: "Authorize in the browser and cache the credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			manager, paths, err := newCredentialManager(logger, nil)
			if err != nil {
				return err
			}

			cred, err := manager.Login(cmd.Context())
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Credential saved to %s (expires %s)\n",
				paths.Token, cred.Token.Expiry.Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the cached credential as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			manager, _, err := newCredentialManager(logger, nil)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(manager.Status(), "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode status: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "logout",
		Short: "Delete the cached credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			manager, paths, err := newCredentialManager(logger, nil)
			if err != nil {
				return err
			}
			if err := manager.Logout(); err != nil {
				return fmt.Errorf("logout failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", paths.Token)
			return nil
		},
	})

	return cmd
}
