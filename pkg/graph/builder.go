package graph

import (
	"fmt"
	"math"

	"github.com/kass/go-isochrone/pkg/models"
	"github.com/paulmach/osm"
	"go.trai.ch/zerr"
)

// ErrMalformedElement is returned when a raw map element cannot be trusted.
var ErrMalformedElement = zerr.New("malformed map element")

// Builder converts raw OSM elements into a travel-time graph
type Builder struct {
	Speeds models.SpeedTable
}

// NewBuilder creates a builder using the given speed table
func NewBuilder(speeds models.SpeedTable) *Builder {
	return &Builder{Speeds: speeds}
}

// Build creates the graph for mode. Ways are trusted to be filtered for the
// mode already; their tags are not looked at. Consecutive way nodes that both
// resolve to known nodes become a pair of edges weighted by travel time in
// seconds.
func (b *Builder) Build(data *osm.OSM, mode models.Mode) (*Graph, error) {
	mps, err := b.Speeds.MetersPerSecond(mode)
	if err != nil {
		return nil, err
	}

	g := New()
	if data == nil {
		return g, nil
	}

	for _, n := range data.Nodes {
		if n == nil {
			continue
		}
		if !validCoordinate(n.Lat, n.Lon) {
			return nil, fmt.Errorf("%w: node %d at (%v, %v)", ErrMalformedElement, n.ID, n.Lat, n.Lon)
		}
		g.AddNode(models.Node{ID: n.ID, Lat: n.Lat, Lon: n.Lon})
	}

	for _, w := range data.Ways {
		if w == nil {
			continue
		}
		for i := 1; i < len(w.Nodes); i++ {
			from, okFrom := g.Node(w.Nodes[i-1].ID)
			to, okTo := g.Node(w.Nodes[i].ID)
			if !okFrom || !okTo {
				continue
			}

			meters := Haversine(from.Lat, from.Lon, to.Lat, to.Lon)
			if err := g.Connect(from.ID, to.ID, meters/mps); err != nil {
				return nil, fmt.Errorf("way %d: %w", w.ID, err)
			}
		}
	}

	return g, nil
}

func validCoordinate(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
