// Package cli wires configuration, storage and the batch drivers into the
// complaintsync command tree.
package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	SchemaFile string // overrides SCHEMA_FILE
	LogMode    string // overrides LOG_MODE ("dev" | "prod")
	Debug      bool   // simulate Telegram calls
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "complaintsync",
		Short: "Mirror complaint pages into a relational table",
		Long: `complaintsync keeps the t_complaint table in step with the complaint
database of the page store.

Use "import" once to load a CSV export, then "sync" to pick up recent edits
on a schedule.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.SchemaFile, "schema", "", "YAML property schema (default: built-in)")
	cmd.PersistentFlags().StringVar(&opts.LogMode, "log-mode", "", "log encoding: dev or prod (default: LOG_MODE)")
	cmd.PersistentFlags().BoolVar(&opts.Debug, "debug", false, "log Telegram notifications instead of sending them")

	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}
