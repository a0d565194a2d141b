package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/privacypilot/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "privacypilot",
	Short: "Consent management with a live policy gate",
	Long: `PrivacyPilot records a visitor's tracking consent, keeps an in-memory
policy in sync with the stored record, and gates every tracker on it.
It serves a dashboard with a tracker inventory, a live enforcement
sandbox, an append-only audit trail and exportable compliance
certificates, and exposes the policy to AI agents via MCP.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.FileName, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
