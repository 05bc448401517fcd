package isochrone

import (
	"context"
	"fmt"

	"github.com/kass/go-isochrone/pkg/models"
	"golang.org/x/sync/errgroup"
)

// maxBandWorkers bounds how many band pipelines run at once
const maxBandWorkers = 4

// MaxBands caps the number of bands per call. Every band fetches its own
// network.
const MaxBands = 8

// Bands computes one isochrone per entry of minutes around the same origin.
// Each band is an independent pipeline; results keep the order of minutes
// and hold nil where a band had insufficient data. The first error cancels
// the remaining bands. Every band is validated before any fetch starts.
func (e *Engine) Bands(ctx context.Context, lat, lng float64, mode models.Mode, minutes []int) ([]*models.Result, error) {
	if len(minutes) == 0 || len(minutes) > MaxBands {
		return nil, fmt.Errorf("%w: need 1..%d bands, got %d", models.ErrInvalidParams, MaxBands, len(minutes))
	}
	for _, m := range minutes {
		params := models.Params{Lat: lat, Lng: lng, Mode: mode, Minutes: m}
		if err := params.Validate(); err != nil {
			return nil, err
		}
	}

	results := make([]*models.Result, len(minutes))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxBandWorkers)

	for i, m := range minutes {
		params := models.Params{Lat: lat, Lng: lng, Mode: mode, Minutes: m}
		g.Go(func() error {
			res, err := e.Compute(ctx, params)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
