package main

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/loadmap-guide/loadmap-cli/internal/locations"
	"github.com/loadmap-guide/loadmap-cli/internal/mapsync"
	"github.com/loadmap-guide/loadmap-cli/internal/model"
	"github.com/loadmap-guide/loadmap-cli/internal/session"
)

var (
	calcLocations []string
	calcMode      string
	calcJSON      bool
	calcNoEnrich  bool
)

var calculateCmd = &cobra.Command{
	Use:   "calculate",
	Short: "Calculate meeting-point candidates for two or more locations",
	Example: `  loadmap calculate --location "강남역@37.4979,127.0276" --location "홍대입구역" --mode subway
  loadmap calculate -l 잠실역 -l 신촌역 --json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("calculate"); err != nil {
			return err
		}
		mode, err := model.ParseTransportMode(strings.ToUpper(strings.TrimSpace(calcMode)))
		if err != nil {
			return eris.Wrap(err, "calculate")
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		client := newBackendClient(nil)
		opts := []session.Option{session.WithGeocodeTimeout(time.Duration(cfg.Geocode.TimeoutSecs) * time.Second)}
		if !calcNoEnrich {
			pipeline, closeFn, err := newPipeline(ctx, client, nil)
			if err != nil {
				return err
			}
			defer closeFn()
			opts = append(opts, session.WithPipeline(pipeline))
		}

		sess := session.New(client, mapsync.NewMemoryLayer(nil), opts...)
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = sess.Run(ctx)
		}()
		defer func() {
			cancel()
			<-done
		}()

		for _, raw := range calcLocations {
			loc, err := locations.ParseLocation(raw)
			if err != nil {
				return err
			}
			if err := sess.AddLocation(ctx, loc); err != nil {
				return eris.Wrapf(err, "add location %q", raw)
			}
		}

		if _, err := sess.Calculate(ctx, mode); err != nil {
			snap, snapErr := sess.Snapshot(ctx)
			if snapErr == nil && snap.Error != "" {
				return eris.Wrap(err, snap.Error)
			}
			return err
		}
		if err := sess.WaitIdle(ctx); err != nil {
			return err
		}

		snap, err := sess.Snapshot(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if calcJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}
		formatSnapshot(out, snap)
		return nil
	},
}

func init() {
	calculateCmd.Flags().StringArrayVarP(&calcLocations, "location", "l", nil, `starting location as "address" or "address@lat,lng" (repeatable)`)
	calculateCmd.Flags().StringVarP(&calcMode, "mode", "m", string(model.DefaultTransportMode), "transport mode: car, subway, bus, public_transport, walk")
	calculateCmd.Flags().BoolVar(&calcJSON, "json", false, "print the result as JSON")
	calculateCmd.Flags().BoolVar(&calcNoEnrich, "no-enrich", false, "skip nearby place lookups")
	rootCmd.AddCommand(calculateCmd)
}
