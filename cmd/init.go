package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/privacypilot/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize privacypilot configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure the consent dashboard and generates a .privacypilot.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
