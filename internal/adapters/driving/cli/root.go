// Package cli wires the cobra command surface of the target.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/optiply-target/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var verboseFlag bool

var rootCmd = &cobra.Command{
	Use:   "target-optiply",
	Short: "Deliver extracted records to the Optiply inventory API",
	Long: `target-optiply reads RECORD messages from stdin, maps each one onto
the Optiply API per its stream's field table, and delivers it with retry
and token refresh. Bookmark state is emitted on stdout as records are
processed, so an interrupted run can be audited and resumed.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verboseFlag)
	},
	RunE: runTarget,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false,
		"enable debug logging on stderr")
	registerRunFlags(rootCmd)
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}
