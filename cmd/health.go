package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show the backend's external API health",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("client"); err != nil {
			return err
		}
		raw, err := newBackendClient(nil).ExternalHealth(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "health")
		}
		return writeRaw(cmd.OutOrStdout(), raw)
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
