package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "arbiter",
	Short: "Arbiter - constitutional governance core for AI agents",
	Long: `Arbiter is a constitutional governance core that evaluates trust
receipts against constitutional principles and turns the results into
enforceable decisions.

It provides:
  - Rule-based receipt evaluation with severity classification
  - Allow/annotate/block/escalate decisions with human overrides
  - Violation alerting with channel routing and throttling
  - Signed webhook notifications with retries and rate limiting
  - An append-only audit trail with compliance reporting`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
