// Package geo provides an R-Tree index over road network nodes used to snap
// an arbitrary coordinate onto the graph.
package geo

import (
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/kass/go-isochrone/pkg/graph"
	"github.com/kass/go-isochrone/pkg/models"
)

const (
	tolerance   = 1e-9
	minChildren = 25
	maxChildren = 50
	dimensions  = 2

	// candidates is how many R-Tree neighbours are re-ranked by haversine distance
	candidates = 8
)

// spatialNode wraps a Node for R-Tree indexing
type spatialNode struct {
	models.Node
	rect *rtreego.Rect
}

func (sn *spatialNode) Bounds() *rtreego.Rect {
	return sn.rect
}

// NodeIndex is an R-Tree over graph nodes. It is immutable once built and
// safe for concurrent readers.
type NodeIndex struct {
	tree *rtreego.Rtree
	size int
}

// NewNodeIndex bulk loads nodes into a new index
func NewNodeIndex(nodes []models.Node) *NodeIndex {
	items := make([]rtreego.Spatial, 0, len(nodes))
	for _, n := range nodes {
		items = append(items, &spatialNode{
			Node: n,
			rect: rtreego.Point{n.Lat, n.Lon}.ToRect(tolerance),
		})
	}

	return &NodeIndex{
		tree: rtreego.NewTree(dimensions, minChildren, maxChildren, items...),
		size: len(items),
	}
}

// FromGraph indexes every node of g
func FromGraph(g *graph.Graph) *NodeIndex {
	return NewNodeIndex(g.Nodes())
}

// Size returns the number of indexed nodes
func (idx *NodeIndex) Size() int {
	return idx.size
}

// Nearest returns the node closest to (lat, lon). The R-Tree ranks
// candidates by squared degree distance, which is only a flat-plane proxy,
// so the best few are re-ranked by great-circle distance. Ties go to the
// lower node id.
func (idx *NodeIndex) Nearest(lat, lon float64) (models.Node, bool) {
	if idx.size == 0 {
		return models.Node{}, false
	}

	k := candidates
	if k > idx.size {
		k = idx.size
	}
	results := idx.tree.NearestNeighbors(k, rtreego.Point{lat, lon})

	type ranked struct {
		node models.Node
		dist float64
	}
	var found []ranked
	for _, r := range results {
		sn, ok := r.(*spatialNode)
		if !ok || sn == nil {
			continue
		}
		found = append(found, ranked{
			node: sn.Node,
			dist: graph.Haversine(lat, lon, sn.Lat, sn.Lon),
		})
	}
	if len(found) == 0 {
		return models.Node{}, false
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].dist != found[j].dist {
			return found[i].dist < found[j].dist
		}
		return found[i].node.ID < found[j].node.ID
	})
	return found[0].node, true
}
