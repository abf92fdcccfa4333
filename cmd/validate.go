package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/loadmap-guide/loadmap-cli/internal/locations"
)

var validateCmd = &cobra.Command{
	Use:   "validate <address[@lat,lng]>",
	Short: "Ask the backend whether a location is usable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("client"); err != nil {
			return err
		}
		loc, err := locations.ParseLocation(args[0])
		if err != nil {
			return err
		}

		ok, err := newBackendClient(nil).ValidateLocation(cmd.Context(), loc)
		if err != nil {
			return eris.Wrap(err, "validate")
		}
		if !ok {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✗ %s: 사용할 수 없는 위치입니다.\n", loc)
			return eris.Errorf("validate: location %q rejected", loc.Address)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ %s\n", loc)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
