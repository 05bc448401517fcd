package testutil

import (
	"github.com/paulmach/osm"
)

// GridNetwork returns a size x size street grid centred on (lat, lon) with
// the given spacing in degrees. Nodes are slightly jittered so no four of
// them are cocircular. Every row and every column is a single way.
func GridNetwork(lat, lon float64, size int, spacing float64) *osm.OSM {
	data := &osm.OSM{}
	half := float64(size-1) / 2

	id := func(i, j int) osm.NodeID {
		return osm.NodeID(1000 + i*size + j)
	}

	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			jitter := float64((i*7+j*3)%5) * spacing * 0.03
			data.Nodes = append(data.Nodes, &osm.Node{
				ID:  id(i, j),
				Lat: lat + (float64(i)-half)*spacing + jitter,
				Lon: lon + (float64(j)-half)*spacing - jitter,
			})
		}
	}

	wayID := osm.WayID(1)
	for i := 0; i < size; i++ {
		row := &osm.Way{ID: wayID}
		col := &osm.Way{ID: wayID + 1}
		wayID += 2
		for j := 0; j < size; j++ {
			row.Nodes = append(row.Nodes, osm.WayNode{ID: id(i, j)})
			col.Nodes = append(col.Nodes, osm.WayNode{ID: id(j, i)})
		}
		data.Ways = append(data.Ways, row, col)
	}
	return data
}
