package geo

import (
	"math/rand"
	"testing"

	"github.com/dhconnelly/rtreego"
	"github.com/kass/go-isochrone/pkg/graph"
	"github.com/kass/go-isochrone/pkg/models"
	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ rtreego.Spatial = (*spatialNode)(nil)

func TestSpatialNodeBounds(t *testing.T) {
	idx := NewNodeIndex([]models.Node{{ID: 7, Lat: 52.5, Lon: 13.4}})
	require.Equal(t, 1, idx.Size())

	found := idx.tree.SearchIntersect(rtreego.Point{52.5, 13.4}.ToRect(0.001))
	require.Len(t, found, 1)
	rect := found[0].Bounds()
	require.NotNil(t, rect)
	assert.InDelta(t, 52.5, rect.PointCoord(0), 1e-6)
	assert.InDelta(t, 13.4, rect.PointCoord(1), 1e-6)
}

func TestNearestEmpty(t *testing.T) {
	idx := NewNodeIndex(nil)
	assert.Equal(t, 0, idx.Size())

	_, ok := idx.Nearest(0, 0)
	assert.False(t, ok)
}

func TestNearestGrid(t *testing.T) {
	var nodes []models.Node
	id := osm.NodeID(1)
	for i := 0; i < 10; i++ {
		for j := 0; j < 10; j++ {
			nodes = append(nodes, models.Node{ID: id, Lat: 45 + float64(i)*0.01, Lon: -73 + float64(j)*0.01})
			id++
		}
	}
	idx := NewNodeIndex(nodes)
	require.Equal(t, 100, idx.Size())

	n, ok := idx.Nearest(45.0502, -72.9698)
	require.True(t, ok)
	assert.InDelta(t, 45.05, n.Lat, 1e-9)
	assert.InDelta(t, -72.97, n.Lon, 1e-9)
}

func TestNearestMatchesBruteForce(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	nodes := make([]models.Node, 500)
	for i := range nodes {
		nodes[i] = models.Node{
			ID:  osm.NodeID(i + 1),
			Lat: 48.85 + r.Float64()*0.05,
			Lon: 2.35 + r.Float64()*0.05,
		}
	}
	idx := NewNodeIndex(nodes)

	for q := 0; q < 50; q++ {
		lat := 48.85 + r.Float64()*0.05
		lon := 2.35 + r.Float64()*0.05

		best := nodes[0]
		bestDist := graph.Haversine(lat, lon, best.Lat, best.Lon)
		for _, n := range nodes[1:] {
			if d := graph.Haversine(lat, lon, n.Lat, n.Lon); d < bestDist {
				best, bestDist = n, d
			}
		}

		got, ok := idx.Nearest(lat, lon)
		require.True(t, ok)
		assert.Equal(t, best.ID, got.ID)
	}
}

func TestNearestTieBreaksOnID(t *testing.T) {
	idx := NewNodeIndex([]models.Node{
		{ID: 7, Lat: 0, Lon: 0.001},
		{ID: 3, Lat: 0, Lon: -0.001},
	})

	n, ok := idx.Nearest(0, 0)
	require.True(t, ok)
	assert.Equal(t, osm.NodeID(3), n.ID)
}

func TestFromGraph(t *testing.T) {
	g := graph.New()
	g.AddNode(models.Node{ID: 1, Lat: 1, Lon: 1})
	g.AddNode(models.Node{ID: 2, Lat: 2, Lon: 2})

	idx := FromGraph(g)
	assert.Equal(t, 2, idx.Size())

	n, ok := idx.Nearest(1.9, 1.9)
	require.True(t, ok)
	assert.Equal(t, osm.NodeID(2), n.ID)
}
