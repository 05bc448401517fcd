// Package graph builds the weighted, bidirectional travel-time graph the
// reachability search runs on. A Graph is built once per request and is
// read-only afterwards.
package graph

import (
	"fmt"
	"math"
	"sort"

	"github.com/kass/go-isochrone/pkg/models"
	"github.com/paulmach/osm"
	"go.trai.ch/zerr"
)

var (
	// ErrUnknownNode is returned when an edge references a node not in the graph.
	ErrUnknownNode = zerr.New("unknown node")

	// ErrInvalidWeight is returned for negative or non-finite edge weights.
	ErrInvalidWeight = zerr.New("invalid edge weight")
)

// Graph is an undirected travel-time network stored as symmetric adjacency lists
type Graph struct {
	nodes     map[osm.NodeID]models.Node
	adjacency map[osm.NodeID][]models.Edge
	edges     int
}

// New creates an empty graph
func New() *Graph {
	return &Graph{
		nodes:     make(map[osm.NodeID]models.Node),
		adjacency: make(map[osm.NodeID][]models.Edge),
	}
}

// AddNode registers n, replacing any node with the same id
func (g *Graph) AddNode(n models.Node) {
	g.nodes[n.ID] = n
}

// Connect inserts a->b and b->a with the same weight. Connecting a node to
// itself is a no-op.
func (g *Graph) Connect(a, b osm.NodeID, weight float64) error {
	if _, ok := g.nodes[a]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownNode, a)
	}
	if _, ok := g.nodes[b]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownNode, b)
	}
	if weight < 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
		return fmt.Errorf("%w: %d-%d weight=%v", ErrInvalidWeight, a, b, weight)
	}
	if a == b {
		return nil
	}

	g.adjacency[a] = append(g.adjacency[a], models.Edge{Source: a, Target: b, Weight: weight})
	g.adjacency[b] = append(g.adjacency[b], models.Edge{Source: b, Target: a, Weight: weight})
	g.edges += 2
	return nil
}

// Node returns the node with the given id
func (g *Graph) Node(id osm.NodeID) (models.Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns every node sorted by id
func (g *Graph) Nodes() []models.Node {
	nodes := make([]models.Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

// Edges returns the outgoing edges of id in insertion order.
// The returned slice must not be modified.
func (g *Graph) Edges(id osm.NodeID) []models.Edge {
	return g.adjacency[id]
}

// NodeCount returns the number of nodes
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of directed edges
func (g *Graph) EdgeCount() int {
	return g.edges
}
