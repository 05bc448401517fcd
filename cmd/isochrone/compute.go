package main

import (
	"context"

	"github.com/kass/go-isochrone/internal/ui"
	"github.com/kass/go-isochrone/pkg/models"
	"github.com/spf13/cobra"
)

type pointFlags struct {
	lat  float64
	lng  float64
	mode string
}

func (p *pointFlags) register(cmd *cobra.Command) {
	p.registerOptional(cmd)
	cmd.Flags().StringVarP(&p.mode, "mode", "m", string(models.Walking), "transport mode (walking|cycling|driving)")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")
}

func (p *pointFlags) registerOptional(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&p.lat, "lat", 0, "origin latitude")
	cmd.Flags().Float64Var(&p.lng, "lng", 0, "origin longitude")
}

func newComputeCmd() *cobra.Command {
	var (
		point     pointFlags
		minutes   int
		format    string
		output    string
		noNarrate bool
	)

	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Compute a single isochrone",
		Example: `  isochrone compute --lat 52.52 --lng 13.405 --mode cycling --minutes 15
  isochrone compute --lat 52.52 --lng 13.405 -f text`,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			if err := validFormat(format); err != nil {
				return err
			}
			mode, err := models.ParseMode(point.mode)
			if err != nil {
				return err
			}
			params := models.Params{Lat: point.lat, Lng: point.lng, Mode: mode, Minutes: minutes}
			if err := params.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			log := logger(cmd)

			engine, closeFn, err := newEngine(ctx, cfg, log, !noNarrate)
			if err != nil {
				return err
			}
			defer closeInto(&err, closeFn)

			var res *models.Result
			err = ui.Spin(ctx, cmd.ErrOrStderr(), "Computing isochrone...", func(ctx context.Context) error {
				var err error
				res, err = engine.Compute(ctx, params)
				return err
			})
			if err != nil {
				return err
			}

			w, closeOut, err := openOutput(cmd, output)
			if err != nil {
				return err
			}
			defer closeInto(&err, closeOut)

			return writeResult(w, format, params, res)
		},
	}

	point.register(cmd)
	cmd.Flags().IntVarP(&minutes, "minutes", "t", 10, "travel-time budget in minutes")
	cmd.Flags().StringVarP(&format, "format", "f", formatGeoJSON, "output format (geojson|yaml|text)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write output to file instead of stdout")
	cmd.Flags().BoolVar(&noNarrate, "no-narrate", false, "skip the descriptive summary")

	return cmd
}

func newBandsCmd() *cobra.Command {
	var (
		point   pointFlags
		minutes []int
		format  string
		output  string
	)

	cmd := &cobra.Command{
		Use:     "bands",
		Short:   "Compute several isochrones around the same origin",
		Example: `  isochrone bands --lat 52.52 --lng 13.405 --minutes 5,10,15`,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			if err := validFormat(format); err != nil {
				return err
			}
			mode, err := models.ParseMode(point.mode)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			log := logger(cmd)

			engine, closeFn, err := newEngine(ctx, cfg, log, false)
			if err != nil {
				return err
			}
			defer closeInto(&err, closeFn)

			var results []*models.Result
			err = ui.Spin(ctx, cmd.ErrOrStderr(), "Computing bands...", func(ctx context.Context) error {
				var err error
				results, err = engine.Bands(ctx, point.lat, point.lng, mode, minutes)
				return err
			})
			if err != nil {
				return err
			}

			w, closeOut, err := openOutput(cmd, output)
			if err != nil {
				return err
			}
			defer closeInto(&err, closeOut)

			return writeBands(w, format, mode, minutes, results)
		},
	}

	point.register(cmd)
	cmd.Flags().IntSliceVarP(&minutes, "minutes", "t", []int{5, 10, 15}, "travel-time budgets in minutes")
	cmd.Flags().StringVarP(&format, "format", "f", formatGeoJSON, "output format (geojson|yaml|text)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write output to file instead of stdout")

	return cmd
}
