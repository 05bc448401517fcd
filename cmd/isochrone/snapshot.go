package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/kass/go-isochrone/internal/config"
	"github.com/kass/go-isochrone/internal/ui"
	"github.com/kass/go-isochrone/pkg/isochrone"
	"github.com/kass/go-isochrone/pkg/models"
	"github.com/kass/go-isochrone/pkg/overpass"
	"github.com/kass/go-isochrone/pkg/postgis"
	"github.com/kass/go-isochrone/pkg/snapshot"
	"github.com/paulmach/osm"
	"github.com/spf13/cobra"
)

func newSnapshotCmd() *cobra.Command {
	var (
		point   pointFlags
		minutes int
		out     string
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Record the road network around a point for offline replay",
		Long: `snapshot fetches the network an isochrone of the given size would need
from the configured live source and stores it in a file that the snapshot
source can replay.`,
		Example: `  isochrone snapshot --lat 52.52 --lng 13.405 --mode driving --minutes 20 --out berlin.gob
  isochrone compute --source snapshot --snapshot berlin.gob --lat 52.52 --lng 13.405 --mode driving`,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			if cfg.Source == config.SourceSnapshot {
				return fmt.Errorf("snapshot needs a live source, got %q", cfg.Source)
			}
			mode, err := models.ParseMode(point.mode)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			log := logger(cmd)

			radius, err := isochrone.RadiusMeters(cfg.SpeedTable(), mode, minutes, cfg.PaddingFactor)
			if err != nil {
				return err
			}

			source, closeFn, err := openSource(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer closeInto(&err, closeFn)

			rec := snapshot.NewRecorder(source, out, log)
			start := time.Now()
			err = ui.Spin(ctx, cmd.ErrOrStderr(), "Fetching network...", func(ctx context.Context) error {
				_, err := rec.Fetch(ctx, point.lat, point.lng, radius, mode)
				return err
			})
			if err != nil {
				return err
			}

			info, err := os.Stat(out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Snapshot written to %s (%.2f MB, radius %.0f m) in %v\n",
				out, float64(info.Size())/(1024*1024), radius, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	point.register(cmd)
	cmd.Flags().IntVarP(&minutes, "minutes", "t", 10, "largest travel-time budget the snapshot must cover")
	cmd.Flags().StringVarP(&out, "out", "o", "network.gob", "snapshot file to write")

	return cmd
}

func newLoadCmd() *cobra.Command {
	var (
		point  pointFlags
		radius float64
		modes  []string
		from   string
	)

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Import road networks into PostGIS",
		Long: `load creates the PostGIS schema and imports road networks for the given
modes, either fetched from Overpass around a point or read from a snapshot
file, then builds the spatial indexes.`,
		Example: `  isochrone load --lat 52.52 --lng 13.405 --radius 15000 --modes walking,cycling
  isochrone load --from berlin.gob --modes driving`,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ctx := cmd.Context()
			log := logger(cmd)

			parsed := make([]models.Mode, 0, len(modes))
			for _, m := range modes {
				mode, err := models.ParseMode(m)
				if err != nil {
					return err
				}
				parsed = append(parsed, mode)
			}

			store, err := postgis.Open(ctx, cfg.StoreConfig(), log)
			if err != nil {
				return err
			}
			defer closeInto(&err, store.Close)

			if err := store.InitSchema(ctx); err != nil {
				return err
			}

			var stored *osm.OSM
			if from != "" {
				if stored, err = snapshot.Load(from); err != nil {
					return err
				}
			}
			client := overpass.NewClient(cfg.Overpass.Endpoint, cfg.Overpass.Timeout, overpass.WithLogger(log))

			for _, mode := range parsed {
				data := stored
				if data == nil {
					err := ui.Spin(ctx, cmd.ErrOrStderr(), fmt.Sprintf("Fetching %s network...", mode), func(ctx context.Context) error {
						var err error
						data, err = client.Fetch(ctx, point.lat, point.lng, radius, mode)
						return err
					})
					if err != nil {
						return err
					}
				}
				if err := store.Import(ctx, data, mode); err != nil {
					return err
				}
			}

			if err := store.CreateSpatialIndex(ctx); err != nil {
				return err
			}

			nodes, ways, err := store.Count(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "PostGIS now holds %d nodes and %d way records\n", nodes, ways)
			return nil
		},
	}

	point.registerOptional(cmd)
	cmd.Flags().Float64Var(&radius, "radius", 10000, "fetch radius in meters")
	cmd.Flags().StringSliceVar(&modes, "modes", []string{"walking", "cycling", "driving"}, "modes to import")
	cmd.Flags().StringVar(&from, "from", "", "import a snapshot file instead of fetching from Overpass")
	cmd.MarkFlagsRequiredTogether("lat", "lng")
	cmd.MarkFlagsOneRequired("lat", "from")
	cmd.MarkFlagsMutuallyExclusive("lat", "from")

	return cmd
}
