package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var configFormat string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the configuration after file, environment and flags are applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		shown := cfg
		if shown.API.Token != "" {
			shown.API.Token = "********"
		}
		return shown.Encode(os.Stdout, configFormat)
	},
}

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "yaml", "Output format (yaml or toml)")
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
