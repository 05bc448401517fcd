package isochrone

import (
	"context"

	"github.com/kass/go-isochrone/pkg/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
)

// Fetcher retrieves raw road network elements around a point. Ways must
// already be filtered for mode; the engine never looks at tags.
//
//go:generate mockgen -source=ports.go -destination=mocks/mock_ports.go -package=mocks
type Fetcher interface {
	// Fetch returns the nodes and ways within radiusMeters of (lat, lng).
	Fetch(ctx context.Context, lat, lng, radiusMeters float64, mode models.Mode) (*osm.OSM, error)
}

// Narrator produces descriptive text for a finished isochrone. Narration is
// best effort and never changes the result.
type Narrator interface {
	// Describe returns a human readable description of polygon.
	Describe(ctx context.Context, params models.Params, polygon orb.Geometry) (string, error)
}
