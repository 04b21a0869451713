// Package commands implements the lsh CLI's cobra commands.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the root command with every subcommand registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lsh",
		Short: "lsh job daemon control",
		Long: `lsh manages background jobs: one-shot commands, long-running
services, and cron/interval-scheduled tasks, supervised by a daemon
process.

Examples:
  lsh daemon serve
  lsh job create --command "echo hi"
  lsh job ls
  lsh job monitor job_1`,
		Version: version,
	}

	rootCmd.AddCommand(
		newDaemonCmd(),
		newJobCmd(),
	)

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the daemon config file")
	rootCmd.PersistentFlags().String("socket", "", "path to the daemon control socket (overrides config)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	return rootCmd
}
