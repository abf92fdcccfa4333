package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/loadmap-guide/loadmap-cli/internal/mapsync"
	"github.com/loadmap-guide/loadmap-cli/pkg/geocode"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Reverse geocoding utilities",
}

var geocodeReverseCmd = &cobra.Command{
	Use:   "reverse",
	Short: "Resolve a coordinate to a Korean address",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("geocode"); err != nil {
			return err
		}
		lat, _ := cmd.Flags().GetFloat64("lat")
		lng, _ := cmd.Flags().GetFloat64("lng")
		if !geocode.ValidCoordinate(lat, lng) {
			return eris.Wrapf(geocode.ErrInvalidCoordinate, "geocode reverse: (%v, %v)", lat, lng)
		}

		reverser := newReverser(nil)
		if reverser == nil {
			return geocode.ErrNoProvider
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(cfg.Geocode.TimeoutSecs)*time.Second)
		defer cancel()

		res, err := reverser.Reverse(ctx, lat, lng)
		if err != nil {
			return eris.Wrap(err, "geocode reverse")
		}
		out := cmd.OutOrStdout()
		if !res.Matched {
			_, _ = fmt.Fprintln(out, mapsync.ClickLabel(lat, lng))
			return nil
		}
		_, _ = fmt.Fprintf(out, "%s\t(%s)\n", res.Address, res.Source)
		if res.RoadAddress != "" && res.LotAddress != "" {
			_, _ = fmt.Fprintf(out, "  도로명: %s\n  지번:   %s\n", res.RoadAddress, res.LotAddress)
		}
		return nil
	},
}

func init() {
	geocodeReverseCmd.Flags().Float64("lat", 0, "latitude")
	geocodeReverseCmd.Flags().Float64("lng", 0, "longitude")
	_ = geocodeReverseCmd.MarkFlagRequired("lat")
	_ = geocodeReverseCmd.MarkFlagRequired("lng")

	geocodeCmd.AddCommand(geocodeReverseCmd)
	rootCmd.AddCommand(geocodeCmd)
}
