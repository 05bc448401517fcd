package isochrone_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/kass/go-isochrone/internal/testutil"
	"github.com/kass/go-isochrone/pkg/graph"
	"github.com/kass/go-isochrone/pkg/isochrone"
	"github.com/kass/go-isochrone/pkg/isochrone/mocks"
	"github.com/kass/go-isochrone/pkg/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	originLat = 45.5017
	originLng = -73.5673
)

func newEngine(t *testing.T, f isochrone.Fetcher, opts ...isochrone.Option) *isochrone.Engine {
	t.Helper()
	opts = append([]isochrone.Option{isochrone.WithLogger(testutil.NewTestLogger(t))}, opts...)
	return isochrone.New(f, opts...)
}

func TestRadiusMeters(t *testing.T) {
	speeds := models.DefaultSpeeds()

	r, err := isochrone.RadiusMeters(speeds, models.Driving, 10, isochrone.DefaultPaddingFactor)
	require.NoError(t, err)
	assert.Equal(t, 10000.0, r)

	r, err = isochrone.RadiusMeters(speeds, models.Walking, 15, isochrone.DefaultPaddingFactor)
	require.NoError(t, err)
	assert.Equal(t, 1875.0, r)

	_, err = isochrone.RadiusMeters(speeds, models.Mode("ferry"), 10, 1.5)
	assert.ErrorIs(t, err, models.ErrUnknownMode)
}

func TestComputeFetchesPaddedRadius(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().
		Fetch(gomock.Any(), originLat, originLng, 10000.0, models.Driving).
		Return(&osm.OSM{}, nil)

	params := models.Params{Lat: originLat, Lng: originLng, Mode: models.Driving, Minutes: 10}
	res, err := newEngine(t, fetcher).Compute(context.Background(), params)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestComputeEmptyNetwork(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(&osm.OSM{}, nil)

	res, err := newEngine(t, fetcher).Compute(context.Background(),
		models.Params{Lat: originLat, Lng: originLng, Mode: models.Walking, Minutes: 15})
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestComputeFetchFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)
	upstream := errors.New("overpass unavailable")
	fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, upstream).Times(1)

	res, err := newEngine(t, fetcher).Compute(context.Background(),
		models.Params{Lat: originLat, Lng: originLng, Mode: models.Cycling, Minutes: 5})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, isochrone.ErrFetchFailed)
	assert.ErrorIs(t, err, upstream)
}

func TestComputeInvalidParams(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)

	_, err := newEngine(t, fetcher).Compute(context.Background(),
		models.Params{Lat: originLat, Lng: originLng, Mode: models.Walking, Minutes: 0})
	assert.ErrorIs(t, err, models.ErrInvalidParams)
}

func TestComputeMalformedElement(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)
	data := &osm.OSM{Nodes: osm.Nodes{{ID: 1, Lat: 120, Lon: 0}}}
	fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(data, nil)

	_, err := newEngine(t, fetcher).Compute(context.Background(),
		models.Params{Lat: originLat, Lng: originLng, Mode: models.Walking, Minutes: 5})
	assert.ErrorIs(t, err, graph.ErrMalformedElement)
}

func TestComputeGrid(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)
	data := testutil.GridNetwork(originLat, originLng, 9, 0.001)
	fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(data, nil)

	params := models.Params{Lat: originLat, Lng: originLng, Mode: models.Walking, Minutes: 5}
	res, err := newEngine(t, fetcher).Compute(context.Background(), params)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, params, res.Params)
	assert.Greater(t, res.Reachable, 3)
	assert.Less(t, res.Reachable, len(data.Nodes))
	assert.Greater(t, math.Abs(planar.Area(res.Polygon)), 0.0)

	poly, ok := res.Polygon.(orb.Polygon)
	require.True(t, ok, "expected polygon, got %T", res.Polygon)
	assert.True(t, planar.PolygonContains(poly, orb.Point{originLng, originLat}))
}

func TestComputeCopiesParams(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(testutil.GridNetwork(originLat, originLng, 7, 0.001), nil)

	params := models.Params{Lat: originLat, Lng: originLng, Mode: models.Walking, Minutes: 10}
	res, err := newEngine(t, fetcher).Compute(context.Background(), params)
	require.NoError(t, err)
	require.NotNil(t, res)

	params.Minutes = 60
	params.Mode = models.Driving
	assert.Equal(t, 10, res.Params.Minutes)
	assert.Equal(t, models.Walking, res.Params.Mode)
}

func TestComputeIdempotent(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)
	data := testutil.GridNetwork(originLat, originLng, 11, 0.0008)
	fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(data, nil).Times(2)

	engine := newEngine(t, fetcher)
	params := models.Params{Lat: originLat, Lng: originLng, Mode: models.Walking, Minutes: 8}

	first, err := engine.Compute(context.Background(), params)
	require.NoError(t, err)
	second, err := engine.Compute(context.Background(), params)
	require.NoError(t, err)

	require.NotNil(t, first)
	assert.Equal(t, first, second)
}

func TestComputeNarration(t *testing.T) {
	params := models.Params{Lat: originLat, Lng: originLng, Mode: models.Walking, Minutes: 10}

	t.Run("success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		fetcher := mocks.NewMockFetcher(ctrl)
		narrator := mocks.NewMockNarrator(ctrl)
		fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(testutil.GridNetwork(originLat, originLng, 7, 0.001), nil)
		narrator.EXPECT().Describe(gomock.Any(), params, gomock.Any()).Return("a walkable block", nil)

		res, err := newEngine(t, fetcher, isochrone.WithNarrator(narrator)).Compute(context.Background(), params)
		require.NoError(t, err)
		require.NotNil(t, res)
		assert.Equal(t, "a walkable block", res.Narrative)
	})

	t.Run("failure does not affect result", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		fetcher := mocks.NewMockFetcher(ctrl)
		narrator := mocks.NewMockNarrator(ctrl)
		fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(testutil.GridNetwork(originLat, originLng, 7, 0.001), nil)
		narrator.EXPECT().Describe(gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("model offline"))

		res, err := newEngine(t, fetcher, isochrone.WithNarrator(narrator)).Compute(context.Background(), params)
		require.NoError(t, err)
		require.NotNil(t, res)
		assert.Empty(t, res.Narrative)
		assert.NotNil(t, res.Polygon)
	})

	t.Run("panic does not affect result", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		fetcher := mocks.NewMockFetcher(ctrl)
		narrator := mocks.NewMockNarrator(ctrl)
		fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(testutil.GridNetwork(originLat, originLng, 7, 0.001), nil)
		narrator.EXPECT().Describe(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
			func(context.Context, models.Params, orb.Geometry) (string, error) {
				panic("boom")
			})

		res, err := newEngine(t, fetcher, isochrone.WithNarrator(narrator)).Compute(context.Background(), params)
		require.NoError(t, err)
		require.NotNil(t, res)
		assert.NotNil(t, res.Polygon)
	})
}

func TestComputeNarratorCannotChangePolygon(t *testing.T) {
	params := models.Params{Lat: originLat, Lng: originLng, Mode: models.Walking, Minutes: 10}
	data := testutil.GridNetwork(originLat, originLng, 7, 0.001)

	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(data, nil).Times(2)

	plain, err := newEngine(t, fetcher).Compute(context.Background(), params)
	require.NoError(t, err)
	require.NotNil(t, plain)

	narrator := mocks.NewMockNarrator(ctrl)
	narrator.EXPECT().Describe(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ models.Params, g orb.Geometry) (string, error) {
			switch geom := g.(type) {
			case orb.Polygon:
				geom[0][0] = orb.Point{0, 0}
			case orb.MultiPolygon:
				geom[0][0][0] = orb.Point{0, 0}
			}
			return "rewritten", nil
		})

	res, err := newEngine(t, fetcher, isochrone.WithNarrator(narrator)).Compute(context.Background(), params)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "rewritten", res.Narrative)
	assert.Equal(t, plain.Polygon, res.Polygon)
}

func TestBands(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)
	data := testutil.GridNetwork(originLat, originLng, 15, 0.001)
	fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(data, nil).Times(3)

	results, err := newEngine(t, fetcher).Bands(context.Background(), originLat, originLng, models.Walking, []int{2, 5, 10})
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, m := range []int{2, 5, 10} {
		require.NotNil(t, results[i], "band %d", m)
		assert.Equal(t, m, results[i].Params.Minutes)
	}
	assert.LessOrEqual(t, results[0].Reachable, results[1].Reachable)
	assert.LessOrEqual(t, results[1].Reachable, results[2].Reachable)
}

func TestBandsPropagatesFetchFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("timeout")).MinTimes(1)

	_, err := newEngine(t, fetcher).Bands(context.Background(), originLat, originLng, models.Walking, []int{5, 10})
	assert.ErrorIs(t, err, isochrone.ErrFetchFailed)
}

func TestBandsRejectsOversizedRequests(t *testing.T) {
	// no fetch may start for a rejected request
	fetcher := mocks.NewMockFetcher(gomock.NewController(t))
	engine := newEngine(t, fetcher)

	_, err := engine.Bands(context.Background(), originLat, originLng, models.Walking, nil)
	assert.ErrorIs(t, err, models.ErrInvalidParams)

	tooMany := make([]int, isochrone.MaxBands+1)
	for i := range tooMany {
		tooMany[i] = i + 1
	}
	_, err = engine.Bands(context.Background(), originLat, originLng, models.Walking, tooMany)
	assert.ErrorIs(t, err, models.ErrInvalidParams)

	_, err = engine.Bands(context.Background(), originLat, originLng, models.Walking, []int{5, models.MaxMinutes + 1})
	assert.ErrorIs(t, err, models.ErrInvalidParams)
}

func TestSummaryNarrator(t *testing.T) {
	square := orb.Polygon{{{0, 0}, {0.01, 0}, {0.01, 0.01}, {0, 0.01}, {0, 0}}}
	params := models.Params{Lat: 0.005, Lng: 0.005, Mode: models.Cycling, Minutes: 12}

	text, err := isochrone.SummaryNarrator{}.Describe(context.Background(), params, square)
	require.NoError(t, err)
	assert.Contains(t, text, "Within 12 minutes by bike")
	assert.Contains(t, text, "1.24 km²")

	mp := orb.MultiPolygon{square, square}
	text, err = isochrone.SummaryNarrator{}.Describe(context.Background(), params, mp)
	require.NoError(t, err)
	assert.Contains(t, text, "2 separate areas")

	_, err = isochrone.SummaryNarrator{}.Describe(context.Background(), params, nil)
	assert.Error(t, err)
}
