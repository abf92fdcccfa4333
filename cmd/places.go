package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/loadmap-guide/loadmap-cli/internal/enrich"
	"github.com/loadmap-guide/loadmap-cli/internal/model"
	"github.com/loadmap-guide/loadmap-cli/internal/normalize"
	"github.com/loadmap-guide/loadmap-cli/pkg/geocode"
	"github.com/loadmap-guide/loadmap-cli/pkg/loadmap"
)

var placesCmd = &cobra.Command{
	Use:   "places",
	Short: "Query the backend's place catalogue",
}

// -- places nearby --

var placesNearbyCmd = &cobra.Command{
	Use:   "nearby",
	Short: "List places around a coordinate",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("client"); err != nil {
			return err
		}
		lat, _ := cmd.Flags().GetFloat64("lat")
		lng, _ := cmd.Flags().GetFloat64("lng")
		radius, _ := cmd.Flags().GetInt("radius")
		category, _ := cmd.Flags().GetString("category")
		asJSON, _ := cmd.Flags().GetBool("json")

		if !geocode.ValidCoordinate(lat, lng) {
			return eris.Errorf("places nearby: invalid coordinate (%v, %v)", lat, lng)
		}

		raw, err := newBackendClient(nil).NearbyPlaces(cmd.Context(), loadmap.NearbyQuery{
			Latitude:     lat,
			Longitude:    lng,
			RadiusMeters: radius,
			Category:     category,
		})
		if err != nil {
			return eris.Wrap(err, "places nearby")
		}

		places := normalize.Places(raw)
		if asJSON {
			return writeIndented(cmd.OutOrStdout(), places)
		}
		categories, err := enrich.LoadCategories(cfg.Enrich.CategoriesFile)
		if err != nil {
			return err
		}
		formatPlacesList(cmd.OutOrStdout(), places, categories)
		return nil
	},
}

// -- places categories --

var placesCategoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Print the backend's place categories",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("client"); err != nil {
			return err
		}
		raw, err := newBackendClient(nil).Categories(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "places categories")
		}
		return writeRaw(cmd.OutOrStdout(), raw)
	},
}

// -- places tags --

var placesTagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Print the filterable place tags",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("client"); err != nil {
			return err
		}
		tags, err := newBackendClient(nil).Tags(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "places tags")
		}
		formatTags(cmd.OutOrStdout(), tags)
		return nil
	},
}

func formatPlacesList(out io.Writer, places []model.Place, categories *enrich.Categories) {
	if len(places) == 0 {
		_, _ = fmt.Fprintln(out, "주변 장소가 없습니다.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tCATEGORY\tDISTANCE\tRATING\tADDRESS")
	_, _ = fmt.Fprintln(w, "----\t--------\t--------\t------\t-------")
	for _, p := range places {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.0fm\t%.1f\t%s\n",
			p.Name, categories.Label(p.Category), p.DistanceMeters, p.Rating, p.Address)
	}
	_ = w.Flush()
}

func formatTags(out io.Writer, tags []model.TagInfo) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TAG\tNAME\tCATEGORY")
	_, _ = fmt.Fprintln(w, "---\t----\t--------")
	for _, t := range tags {
		_, _ = fmt.Fprintf(w, "%s\t%s %s\t%s\n", t.Tag, t.Emoji, t.DisplayName, t.Category)
	}
	_ = w.Flush()
}

func writeIndented(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeRaw(out io.Writer, raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return eris.Wrap(err, "format response")
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(out)
	return err
}

func init() {
	placesNearbyCmd.Flags().Float64("lat", 0, "latitude")
	placesNearbyCmd.Flags().Float64("lng", 0, "longitude")
	placesNearbyCmd.Flags().Int("radius", loadmap.DefaultRadiusMeters, "search radius in meters")
	placesNearbyCmd.Flags().String("category", "", "category filter")
	placesNearbyCmd.Flags().Bool("json", false, "print the places as JSON")
	_ = placesNearbyCmd.MarkFlagRequired("lat")
	_ = placesNearbyCmd.MarkFlagRequired("lng")

	placesCmd.AddCommand(placesNearbyCmd, placesCategoriesCmd, placesTagsCmd)
	rootCmd.AddCommand(placesCmd)
}
