// Package cli implements the console command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format      string // "json" | "text"
	Profile     string
	APIURL      string
	Credentials string // credential file path, overrides the profile default
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the console CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Inventory administration console",
		Long:  "Sign in to the inventory backend and browse the administration screens your role allows.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Profile, "profile", "", "credential profile (overrides CONSOLE_PROFILE)")
	cmd.PersistentFlags().StringVar(&opts.APIURL, "api-url", "", "backend API base URL (overrides CONSOLE_API_URL)")
	cmd.PersistentFlags().StringVar(&opts.Credentials, "credentials", "", "credential file path for the file store")

	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewWhoamiCommand(opts))
	cmd.AddCommand(NewRefreshCommand(opts))
	cmd.AddCommand(NewOpenCommand(opts))
	cmd.AddCommand(NewRoutesCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
