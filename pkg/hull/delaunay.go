package hull

import (
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
)

// ghost is the vertex at infinity. Every convex hull edge carries a ghost
// face, so points outside the current hull are located and inserted like any
// other point.
const ghost = -1

// pointsPerCell sets the grid used to order insertions
const pointsPerCell = 8

// triangle holds vertex indices in counter-clockwise order
type triangle struct {
	a, b, c int
}

type edge struct{ a, b int }

// face is a mesh triangle. nb[i] is the face across the edge opposite v[i].
// A ghost face (a, b, ghost) has the outside of the hull to the left of a->b.
type face struct {
	v    [3]int
	nb   [3]int
	mark int
}

// mesh is an incremental Delaunay triangulation (Bowyer-Watson with
// neighbour walking). steps counts faces visited by point location and cavity
// growth.
type mesh struct {
	vs    []orb.Point
	faces []face
	stamp int
	steps int

	cavity   []int
	boundary []cavityEdge
	starts   map[int]int
	ends     map[int]int
}

// cavityEdge is a cavity boundary edge u->w and the face outside it
type cavityEdge struct {
	u, w int
	out  int
}

// triangulate returns the Delaunay triangles of pts. pts must be distinct.
func triangulate(pts []orb.Point) ([]triangle, error) {
	m, err := buildMesh(pts)
	if err != nil {
		return nil, err
	}

	out := make([]triangle, 0, len(m.faces))
	for _, f := range m.faces {
		if f.v[0] == ghost || f.v[1] == ghost || f.v[2] == ghost {
			continue
		}
		if cross(pts[f.v[0]], pts[f.v[1]], pts[f.v[2]]) <= 0 {
			continue
		}
		out = append(out, triangle{f.v[0], f.v[1], f.v[2]})
	}
	return out, nil
}

// buildMesh triangulates pts. Coordinates are normalised into a unit box so
// the predicates keep their precision at any latitude or scale.
func buildMesh(pts []orb.Point) (*mesh, error) {
	n := len(pts)
	if n < 3 {
		return nil, fmt.Errorf("%w: %d points", ErrDegenerate, n)
	}

	bound := orb.MultiPoint(pts).Bound()
	scale := math.Max(bound.Max[0]-bound.Min[0], bound.Max[1]-bound.Min[1])
	if scale == 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return nil, fmt.Errorf("%w: invalid extent %v", ErrGeometry, scale)
	}
	center := bound.Center()

	m := &mesh{
		vs:     make([]orb.Point, n),
		faces:  make([]face, 0, 2*n+2),
		starts: make(map[int]int),
		ends:   make(map[int]int),
	}
	for i, p := range pts {
		m.vs[i] = orb.Point{(p[0] - center[0]) / scale, (p[1] - center[1]) / scale}
	}

	order := m.insertionOrder()

	// the first triangle needs three points that are not collinear
	k := 2
	for k < n && cross(m.vs[order[0]], m.vs[order[1]], m.vs[order[k]]) == 0 {
		k++
	}
	if k == n {
		return nil, fmt.Errorf("%w: collinear points", ErrDegenerate)
	}
	m.seed(order[0], order[1], order[k])

	last := 0
	for i, v := range order[2:] {
		if i+2 == k {
			continue
		}
		var err error
		if last, err = m.insert(v, last); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// insertionOrder walks a coarse grid row by row, alternating direction, so
// consecutive insertions land close together and point location stays short.
func (m *mesh) insertionOrder() []int {
	n := len(m.vs)
	side := int(math.Sqrt(float64(n)/pointsPerCell)) + 1

	cell := func(x float64) int {
		c := int((x + 0.5) * float64(side))
		return max(0, min(side-1, c))
	}

	type keyed struct {
		idx, row, col int
	}
	keys := make([]keyed, n)
	for i, p := range m.vs {
		row, col := cell(p[1]), cell(p[0])
		if row%2 == 1 {
			col = side - 1 - col
		}
		keys[i] = keyed{idx: i, row: row, col: col}
	}
	sort.SliceStable(keys, func(i, j int) bool {
		if keys[i].row != keys[j].row {
			return keys[i].row < keys[j].row
		}
		return keys[i].col < keys[j].col
	})

	order := make([]int, n)
	for i, k := range keys {
		order[i] = k.idx
	}
	return order
}

// seed builds the first triangle and its three ghost faces
func (m *mesh) seed(a, b, c int) {
	if cross(m.vs[a], m.vs[b], m.vs[c]) < 0 {
		b, c = c, b
	}
	m.faces = append(m.faces,
		face{v: [3]int{a, b, c}, nb: [3]int{1, 2, 3}},
		face{v: [3]int{c, b, ghost}, nb: [3]int{3, 2, 0}},
		face{v: [3]int{a, c, ghost}, nb: [3]int{1, 3, 0}},
		face{v: [3]int{b, a, ghost}, nb: [3]int{2, 1, 0}},
	)
}

// insert adds vertex v, starting the search at face start. It returns a face
// next to v for the following insertion.
func (m *mesh) insert(v, start int) (int, error) {
	p := m.vs[v]

	t, err := m.locate(p, start)
	if err != nil {
		return 0, err
	}

	// grow the cavity of faces whose circumcircle holds p
	m.stamp++
	m.cavity = append(m.cavity[:0], t)
	m.boundary = m.boundary[:0]
	m.faces[t].mark = m.stamp
	for i := 0; i < len(m.cavity); i++ {
		f := m.faces[m.cavity[i]]
		for j := 0; j < 3; j++ {
			nb := f.nb[j]
			if m.faces[nb].mark == m.stamp {
				continue
			}
			m.steps++
			u, w := f.v[(j+1)%3], f.v[(j+2)%3]
			if m.inCircle(nb, p) || m.onEdge(u, w, p) {
				m.faces[nb].mark = m.stamp
				m.cavity = append(m.cavity, nb)
				continue
			}
			m.boundary = append(m.boundary, cavityEdge{u: u, w: w, out: nb})
		}
	}

	// a star-shaped cavity gains exactly two faces
	if len(m.boundary) != len(m.cavity)+2 {
		return 0, fmt.Errorf("%w: cavity of %d faces has %d boundary edges", ErrGeometry, len(m.cavity), len(m.boundary))
	}

	clear(m.starts)
	clear(m.ends)
	slots := make([]int, len(m.boundary))
	for i, e := range m.boundary {
		if i < len(m.cavity) {
			slots[i] = m.cavity[i]
		} else {
			m.faces = append(m.faces, face{})
			slots[i] = len(m.faces) - 1
		}
		m.starts[e.u] = i
		m.ends[e.w] = i
	}

	for i, e := range m.boundary {
		next, okNext := m.starts[e.w]
		prev, okPrev := m.ends[e.u]
		if !okNext || !okPrev {
			return 0, fmt.Errorf("%w: cavity boundary is not a single cycle", ErrGeometry)
		}
		m.faces[slots[i]] = face{
			v:    [3]int{e.u, e.w, v},
			nb:   [3]int{slots[next], slots[prev], e.out},
			mark: m.stamp,
		}
		if err := m.relink(e.out, e.w, e.u, slots[i]); err != nil {
			return 0, err
		}
	}
	return slots[0], nil
}

// relink points the edge a->b of face f at face to
func (m *mesh) relink(f, a, b, to int) error {
	for j := 0; j < 3; j++ {
		if m.faces[f].v[(j+1)%3] == a && m.faces[f].v[(j+2)%3] == b {
			m.faces[f].nb[j] = to
			return nil
		}
	}
	return fmt.Errorf("%w: face %d has no edge %d-%d", ErrGeometry, f, a, b)
}

// locate walks from start towards p and returns the face containing it, or
// the ghost face of the hull edge p lies beyond.
func (m *mesh) locate(p orb.Point, start int) (int, error) {
	t := start
	if k := m.ghostAt(t); k >= 0 {
		t = m.faces[t].nb[k]
	}

	for limit := len(m.faces); limit >= 0; limit-- {
		m.steps++
		f := m.faces[t]
		moved := false
		for i := 0; i < 3; i++ {
			if cross(m.vs[f.v[(i+1)%3]], m.vs[f.v[(i+2)%3]], p) < 0 {
				t = f.nb[i]
				moved = true
				break
			}
		}
		if !moved || m.ghostAt(t) >= 0 {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: point location did not terminate", ErrGeometry)
}

func (m *mesh) ghostAt(t int) int {
	for k, v := range m.faces[t].v {
		if v == ghost {
			return k
		}
	}
	return -1
}

// inCircle reports whether p lies strictly inside the circumcircle of face t.
// The circle of a ghost face is the open half plane outside its hull edge
// plus the open edge itself.
func (m *mesh) inCircle(t int, p orb.Point) bool {
	f := m.faces[t]
	if k := m.ghostAt(t); k >= 0 {
		a, b := f.v[(k+1)%3], f.v[(k+2)%3]
		o := cross(m.vs[a], m.vs[b], p)
		return o > 0 || (o == 0 && m.between(a, b, p))
	}

	a, b, c := m.vs[f.v[0]], m.vs[f.v[1]], m.vs[f.v[2]]
	adx, ady := a[0]-p[0], a[1]-p[1]
	bdx, bdy := b[0]-p[0], b[1]-p[1]
	cdx, cdy := c[0]-p[0], c[1]-p[1]

	det := (adx*adx+ady*ady)*(bdx*cdy-cdx*bdy) +
		(bdx*bdx+bdy*bdy)*(cdx*ady-adx*cdy) +
		(cdx*cdx+cdy*cdy)*(adx*bdy-bdx*ady)
	return det > 0
}

// onEdge reports whether p lies on the open segment between real vertices
// u and w, where rounding can hide it from the circle test.
func (m *mesh) onEdge(u, w int, p orb.Point) bool {
	if u == ghost || w == ghost {
		return false
	}
	return cross(m.vs[u], m.vs[w], p) == 0 && m.between(u, w, p)
}

// between reports whether p, already known to be on the line a-b, lies
// strictly between a and b
func (m *mesh) between(a, b int, p orb.Point) bool {
	pa, pb := m.vs[a], m.vs[b]
	dx, dy := pb[0]-pa[0], pb[1]-pa[1]
	t := (p[0]-pa[0])*dx + (p[1]-pa[1])*dy
	return t > 0 && t < dx*dx+dy*dy
}
