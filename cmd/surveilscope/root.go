package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for surveilscope.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "surveilscope",
		Short: "Passive surveillance detection for browser traffic",
		Long: `surveilscope watches browser traffic and reports who is tracking you.

It detects third-party trackers, fingerprinting scripts, data exfiltration,
beaconing and personalized pricing. Traffic comes either from recorded
captures (analyze) or live from a browser hook (serve).`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .surveilscope in current or home directory)")

	cmd.AddCommand(NewAnalyzeCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewExportCmd())
	cmd.AddCommand(NewClearCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
