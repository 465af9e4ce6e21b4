package commands

import (
	"github.com/spf13/cobra"

	"github.com/cleared-dev/freightbooks/internal/buildinfo"
	"github.com/cleared-dev/freightbooks/internal/config"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var opts globalOptions

	rootCmd := &cobra.Command{
		Use:     "freightbooks",
		Short:   "Double-entry books for a freight forwarder",
		Version: buildinfo.Summary(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", config.FileName, "path to "+config.FileName)
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level")

	rootCmd.AddCommand(
		newInitCommand(&opts),
		newAccountCommand(&opts),
		newFiscalCommand(&opts),
		newPostCommand(&opts),
		newJournalCommand(&opts),
		newReportCommand(&opts),
	)

	return rootCmd
}
