package graph

import (
	"math"
	"testing"

	"github.com/kass/go-isochrone/pkg/models"
	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversine(t *testing.T) {
	// One degree of latitude
	assert.InDelta(t, 111195.08, Haversine(0, 0, 1, 0), 0.1)
	assert.Equal(t, 0.0, Haversine(45.5, -73.6, 45.5, -73.6))

	// Symmetric
	d1 := Haversine(40.7128, -74.0060, 51.5074, -0.1278)
	d2 := Haversine(51.5074, -0.1278, 40.7128, -74.0060)
	assert.InDelta(t, d1, d2, 1e-6)
	assert.InDelta(t, 5570000, d1, 10000) // New York - London
}

func TestConnect(t *testing.T) {
	g := New()
	g.AddNode(models.Node{ID: 1})
	g.AddNode(models.Node{ID: 2})

	require.NoError(t, g.Connect(1, 2, 12.5))
	assert.Equal(t, []models.Edge{{Source: 1, Target: 2, Weight: 12.5}}, g.Edges(1))
	assert.Equal(t, []models.Edge{{Source: 2, Target: 1, Weight: 12.5}}, g.Edges(2))
	assert.Equal(t, 2, g.EdgeCount())

	// Self loops are dropped
	require.NoError(t, g.Connect(1, 1, 3))
	assert.Len(t, g.Edges(1), 1)

	assert.ErrorIs(t, g.Connect(1, 3, 1), ErrUnknownNode)
	assert.ErrorIs(t, g.Connect(1, 2, -1), ErrInvalidWeight)
	assert.ErrorIs(t, g.Connect(1, 2, math.NaN()), ErrInvalidWeight)
}

func TestNodesSorted(t *testing.T) {
	g := New()
	for _, id := range []osm.NodeID{5, 1, 3} {
		g.AddNode(models.Node{ID: id})
	}

	nodes := g.Nodes()
	require.Len(t, nodes, 3)
	assert.Equal(t, osm.NodeID(1), nodes[0].ID)
	assert.Equal(t, osm.NodeID(3), nodes[1].ID)
	assert.Equal(t, osm.NodeID(5), nodes[2].ID)
}

func lineData() *osm.OSM {
	return &osm.OSM{
		Nodes: osm.Nodes{
			{ID: 1, Lat: 45.500, Lon: -73.600},
			{ID: 2, Lat: 45.501, Lon: -73.600},
			{ID: 3, Lat: 45.502, Lon: -73.601},
			{ID: 4, Lat: 45.503, Lon: -73.601},
		},
		Ways: osm.Ways{
			{ID: 100, Nodes: osm.WayNodes{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}},
		},
	}
}

func TestBuildWaySymmetricWeights(t *testing.T) {
	data := lineData()
	speeds := models.DefaultSpeeds()
	mps, err := speeds.MetersPerSecond(models.Walking)
	require.NoError(t, err)

	g, err := NewBuilder(speeds).Build(data, models.Walking)
	require.NoError(t, err)
	assert.Equal(t, 4, g.NodeCount())
	assert.Equal(t, 6, g.EdgeCount())

	for i := 1; i < len(data.Nodes); i++ {
		a, b := data.Nodes[i-1], data.Nodes[i]
		want := Haversine(a.Lat, a.Lon, b.Lat, b.Lon) / mps

		assert.Contains(t, g.Edges(a.ID), models.Edge{Source: a.ID, Target: b.ID, Weight: want})
		assert.Contains(t, g.Edges(b.ID), models.Edge{Source: b.ID, Target: a.ID, Weight: want})
	}
}

func TestBuildSkipsUnknownRefs(t *testing.T) {
	data := lineData()
	data.Ways = append(data.Ways, &osm.Way{ID: 101, Nodes: osm.WayNodes{{ID: 4}, {ID: 99}, {ID: 1}}})

	g, err := NewBuilder(models.DefaultSpeeds()).Build(data, models.Driving)
	require.NoError(t, err)
	assert.Equal(t, 6, g.EdgeCount())
	_, ok := g.Node(99)
	assert.False(t, ok)
}

func TestBuildCoincidentNodes(t *testing.T) {
	data := &osm.OSM{
		Nodes: osm.Nodes{
			{ID: 1, Lat: 10, Lon: 10},
			{ID: 2, Lat: 10, Lon: 10},
		},
		Ways: osm.Ways{{ID: 1, Nodes: osm.WayNodes{{ID: 1}, {ID: 2}, {ID: 2}}}},
	}

	g, err := NewBuilder(models.DefaultSpeeds()).Build(data, models.Cycling)
	require.NoError(t, err)
	require.Len(t, g.Edges(1), 1)
	assert.Equal(t, 0.0, g.Edges(1)[0].Weight)
	assert.Len(t, g.Edges(2), 1)
}

func TestBuildEmpty(t *testing.T) {
	b := NewBuilder(models.DefaultSpeeds())

	g, err := b.Build(&osm.OSM{}, models.Walking)
	require.NoError(t, err)
	assert.Equal(t, 0, g.NodeCount())

	g, err = b.Build(nil, models.Walking)
	require.NoError(t, err)
	assert.Equal(t, 0, g.NodeCount())
}

func TestBuildMalformed(t *testing.T) {
	data := &osm.OSM{Nodes: osm.Nodes{{ID: 1, Lat: math.NaN(), Lon: 0}}}
	_, err := NewBuilder(models.DefaultSpeeds()).Build(data, models.Walking)
	assert.ErrorIs(t, err, ErrMalformedElement)

	data = &osm.OSM{Nodes: osm.Nodes{{ID: 1, Lat: 95, Lon: 0}}}
	_, err = NewBuilder(models.DefaultSpeeds()).Build(data, models.Walking)
	assert.ErrorIs(t, err, ErrMalformedElement)
}

func TestBuildUnknownMode(t *testing.T) {
	_, err := NewBuilder(models.DefaultSpeeds()).Build(lineData(), models.Mode("ferry"))
	assert.ErrorIs(t, err, models.ErrUnknownMode)
}
