// Package isochrone drives the reachability pipeline: fetch the road network
// around a point, build the travel-time graph, run the bounded search and
// wrap the reachable nodes in a polygon.
//
// Every call to Engine.Compute is an independent pipeline over its own
// graph, so one Engine can serve concurrent requests without locking.
package isochrone

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/kass/go-isochrone/pkg/graph"
	"github.com/kass/go-isochrone/pkg/hull"
	"github.com/kass/go-isochrone/pkg/models"
	"github.com/kass/go-isochrone/pkg/search"
	"github.com/paulmach/orb"
	"go.trai.ch/zerr"
)

// ErrFetchFailed is returned when the network data collaborator fails. It is
// never retried.
var ErrFetchFailed = zerr.New("network fetch failed")

const (
	// DefaultPaddingFactor widens the fetch radius because road paths are
	// always longer than the straight line.
	DefaultPaddingFactor = 1.5

	// DefaultTightnessKm is the longest boundary triangle edge of the hull.
	DefaultTightnessKm = 1.0
)

// Settings are the tunable constants of the pipeline
type Settings struct {
	Speeds        models.SpeedTable
	PaddingFactor float64
	TightnessKm   float64
}

// DefaultSettings returns the stock speeds, padding and tightness
func DefaultSettings() Settings {
	return Settings{
		Speeds:        models.DefaultSpeeds(),
		PaddingFactor: DefaultPaddingFactor,
		TightnessKm:   DefaultTightnessKm,
	}
}

// RadiusMeters returns the fetch radius for mode and minutes, rounded to the
// nearest meter.
func RadiusMeters(speeds models.SpeedTable, mode models.Mode, minutes int, padding float64) (float64, error) {
	mps, err := speeds.MetersPerSecond(mode)
	if err != nil {
		return 0, err
	}
	return math.Round(mps * float64(minutes) * 60 * padding), nil
}

// Option configures an Engine
type Option func(*Engine)

// WithSettings replaces the default settings
func WithSettings(s Settings) Option {
	return func(e *Engine) {
		e.settings = s
	}
}

// WithLogger sets the structured logger
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithNarrator attaches a narrator run after each successful computation
func WithNarrator(n Narrator) Option {
	return func(e *Engine) {
		e.narrator = n
	}
}

// Engine computes isochrones using an injected network fetcher
type Engine struct {
	fetcher  Fetcher
	narrator Narrator
	settings Settings
	logger   *slog.Logger
}

// New creates an engine that reads the road network from fetcher
func New(fetcher Fetcher, opts ...Option) *Engine {
	e := &Engine{
		fetcher:  fetcher,
		settings: DefaultSettings(),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Settings returns the engine settings
func (e *Engine) Settings() Settings {
	return e.settings
}

// Compute runs one isochrone pipeline. It returns a nil result and a nil
// error when the reachable area is too small to form a polygon; callers
// should report that as insufficient data. Fetch failures wrap
// ErrFetchFailed.
func (e *Engine) Compute(ctx context.Context, params models.Params) (*models.Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	radius, err := RadiusMeters(e.settings.Speeds, params.Mode, params.Minutes, e.settings.PaddingFactor)
	if err != nil {
		return nil, err
	}

	log := e.logger.With("lat", params.Lat, "lng", params.Lng, "mode", params.Mode, "minutes", params.Minutes)
	log.Debug("fetching network", "radius_m", radius)

	start := time.Now()
	data, err := e.fetcher.Fetch(ctx, params.Lat, params.Lng, radius, params.Mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	fetched := time.Since(start)

	g, err := graph.NewBuilder(e.settings.Speeds).Build(data, params.Mode)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to build graph")
	}

	reach := search.Reachable(g, params.Lat, params.Lng, params.Budget())
	polygon := hull.Generate(reach.Points(g), e.settings.TightnessKm)

	log.Info("isochrone computed",
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"reachable", reach.Len(),
		"fetch", fetched,
		"total", time.Since(start),
		"polygon", polygon != nil,
	)

	if polygon == nil {
		return nil, nil
	}

	res := &models.Result{
		Polygon:   polygon,
		Params:    params,
		Reachable: reach.Len(),
	}
	e.narrate(ctx, res)
	return res, nil
}

func (e *Engine) narrate(ctx context.Context, res *models.Result) {
	if e.narrator == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("narration panicked", "panic", r)
		}
	}()

	// the narrator works on a copy so it cannot reshape the result
	text, err := e.narrator.Describe(ctx, res.Params, orb.Clone(res.Polygon))
	if err != nil {
		e.logger.Warn("narration failed", "error", err)
		return
	}
	res.Narrative = text
}
