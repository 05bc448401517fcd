// Package search implements the time-bounded shortest-path search that
// turns a travel-time graph into a reachability set.
//
// The search is Dijkstra's algorithm over non-negative weights using a
// binary heap with lazy decrease-key: improved distances push duplicate
// entries and stale ones are skipped on pop because their node is already
// finalized. Candidates beyond the budget are never pushed.
//
// Complexity:
//
//   - Time:  O((V + E) log V)
//   - Space: O(V + E)
package search

import (
	"container/heap"
	"sort"

	"github.com/kass/go-isochrone/pkg/geo"
	"github.com/kass/go-isochrone/pkg/graph"
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
)

// Reachability holds the shortest travel time to every node finalized within
// the budget.
type Reachability struct {
	Start osm.NodeID
	Times map[osm.NodeID]float64

	// Expanded counts finalized nodes. It never exceeds the node count.
	Expanded int
}

// Len returns the number of reachable nodes
func (r *Reachability) Len() int {
	return len(r.Times)
}

// IDs returns the reachable node ids in ascending order
func (r *Reachability) IDs() []osm.NodeID {
	ids := make([]osm.NodeID, 0, len(r.Times))
	for id := range r.Times {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Points returns the (lon, lat) location of every reachable node in id order
func (r *Reachability) Points(g *graph.Graph) []orb.Point {
	ids := r.IDs()
	points := make([]orb.Point, 0, len(ids))
	for _, id := range ids {
		if n, ok := g.Node(id); ok {
			points = append(points, n.Point())
		}
	}
	return points
}

// Reachable snaps (lat, lng) to the nearest graph node and returns every node
// whose shortest travel time from it is at most maxSeconds. maxSeconds may be
// +Inf. An empty graph yields an empty set.
func Reachable(g *graph.Graph, lat, lng, maxSeconds float64) *Reachability {
	res := &Reachability{Times: make(map[osm.NodeID]float64)}
	if g == nil || g.NodeCount() == 0 || maxSeconds < 0 {
		return res
	}

	start, ok := geo.FromGraph(g).Nearest(lat, lng)
	if !ok {
		return res
	}
	res.Start = start.ID

	r := &runner{
		g:         g,
		limit:     maxSeconds,
		dist:      make(map[osm.NodeID]float64, g.NodeCount()),
		finalized: make(map[osm.NodeID]bool, g.NodeCount()),
	}
	r.run(start.ID)

	for id := range r.finalized {
		res.Times[id] = r.dist[id]
	}
	res.Expanded = r.expanded
	return res
}

// runner holds the mutable state of one search
type runner struct {
	g         *graph.Graph
	limit     float64
	dist      map[osm.NodeID]float64
	finalized map[osm.NodeID]bool
	pq        nodePQ
	seq       int
	expanded  int
}

func (r *runner) push(id osm.NodeID, d float64) {
	heap.Push(&r.pq, &nodeItem{id: id, dist: d, seq: r.seq})
	r.seq++
}

func (r *runner) run(source osm.NodeID) {
	r.dist[source] = 0
	heap.Init(&r.pq)
	r.push(source, 0)

	for r.pq.Len() > 0 {
		item := heap.Pop(&r.pq).(*nodeItem)
		u := item.id

		// stale entry or already finalized
		if r.finalized[u] || item.dist > r.dist[u] {
			continue
		}
		r.finalized[u] = true
		r.expanded++

		for _, e := range r.g.Edges(u) {
			v := e.Target
			if r.finalized[v] {
				continue
			}
			alt := r.dist[u] + e.Weight
			if alt > r.limit {
				continue
			}
			if old, seen := r.dist[v]; !seen || alt < old {
				r.dist[v] = alt
				r.push(v, alt)
			}
		}
	}
}
