package commands

import (
	"github.com/spf13/cobra"
)

var (
	// backendURL is the CRM backend origin.
	backendURL string

	// daemonAddr is where the local daemon listens for surfaces.
	daemonAddr string

	// sessionToken is the CRM session bearer token.
	sessionToken string

	// outputFormat controls output format (text, json).
	outputFormat string
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "notifier-cli",
	Short: "CRM reminder notification surface",
	Long: `notifier-cli is the terminal surface for the CRM notification daemon.

Use it to follow reminder notifications live, browse the reminder inbox,
and mark reminders as read.`,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags.
	rootCmd.PersistentFlags().StringVar(
		&backendURL, "backend", "",
		"CRM backend base URL (default: $NOTIFIER_BACKEND)",
	)
	rootCmd.PersistentFlags().StringVar(
		&daemonAddr, "daemon", "127.0.0.1:7357",
		"Address of the local notifier daemon",
	)
	rootCmd.PersistentFlags().StringVar(
		&sessionToken, "token", "",
		"Session bearer token (default: $NOTIFIER_TOKEN)",
	)
	rootCmd.PersistentFlags().StringVar(
		&outputFormat, "format", "text",
		"Output format: text, json",
	)

	// Add subcommands.
	rootCmd.AddCommand(followCmd)
	rootCmd.AddCommand(inboxCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}
