package commands

import (
	"github.com/spf13/cobra"

	"github.com/emcshop-dev/emcshop/internal/buildinfo"
	"github.com/emcshop-dev/emcshop/internal/logger"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var logOpts logger.Options

	rootCmd := &cobra.Command{
		Use:     "emcshop",
		Short:   "Download and analyze Empire Minecraft rupee history",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			log := logger.NewWithWriter(cmd.ErrOrStderr(), logOpts)
			cmd.SetContext(logger.WithContext(cmd.Context(), log))
		},
	}

	rootCmd.PersistentFlags().StringVar(&logOpts.Level, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logOpts.JSON, "log-json", false, "write logs as JSON lines")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newDownloadCommand())
	rootCmd.AddCommand(newSummaryCommand())

	return rootCmd
}
