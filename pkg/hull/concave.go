package hull

import (
	"fmt"
	"math"
	"sort"

	"github.com/kass/go-isochrone/pkg/graph"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// areaSlack is the relative tolerance when comparing triangle area sums
const areaSlack = 1e-9

// Concave returns an alpha-shape style hull of points. Triangles of the
// Delaunay triangulation with any edge longer than tightnessKm are removed;
// the boundary of what remains becomes one polygon, or a multi-polygon when
// the reachable area falls apart into pieces.
func Concave(points []orb.Point, tightnessKm float64) (g orb.Geometry, err error) {
	defer func() {
		if r := recover(); r != nil {
			g, err = nil, fmt.Errorf("%w: %v", ErrGeometry, r)
		}
	}()

	if tightnessKm <= 0 || math.IsNaN(tightnessKm) {
		return nil, fmt.Errorf("%w: tightness must be positive, got %v", ErrGeometry, tightnessKm)
	}

	pts := distinct(points)
	tris, err := triangulate(pts)
	if err != nil {
		return nil, err
	}
	if err := checkCoverage(pts, tris); err != nil {
		return nil, err
	}

	maxEdge := tightnessKm * 1000
	kept := tris[:0]
	for _, t := range tris {
		if edgeLength(pts[t.a], pts[t.b]) > maxEdge ||
			edgeLength(pts[t.b], pts[t.c]) > maxEdge ||
			edgeLength(pts[t.c], pts[t.a]) > maxEdge {
			continue
		}
		kept = append(kept, t)
	}
	if len(kept) == 0 {
		return nil, ErrNoHull
	}

	rings := traceBoundary(pts, kept)
	return assemble(rings)
}

// edgeLength returns the great-circle length in meters of the edge between
// two (lon, lat) points, on the same sphere as the graph edge weights
func edgeLength(a, b orb.Point) float64 {
	return graph.Haversine(a[1], a[0], b[1], b[0])
}

// checkCoverage rejects triangulations whose triangles overlap, which only
// happens when rounding broke the circumcircle tests.
func checkCoverage(pts []orb.Point, tris []triangle) error {
	if len(tris) == 0 {
		return fmt.Errorf("%w: no triangles", ErrDegenerate)
	}

	var sum float64
	for _, t := range tris {
		sum += cross(pts[t.a], pts[t.b], pts[t.c]) / 2
	}

	convex, err := Convex(pts)
	if err != nil {
		return err
	}
	limit := signedArea(convex[0])
	if sum > limit*(1+areaSlack) {
		return fmt.Errorf("%w: triangles cover %g, hull %g", ErrGeometry, sum, limit)
	}
	return nil
}

// traceBoundary follows the directed edges that belong to exactly one kept
// triangle. Triangles are counter-clockwise, so outer rings come out
// counter-clockwise and holes clockwise.
func traceBoundary(pts []orb.Point, tris []triangle) []orb.Ring {
	directed := make(map[edge]bool, len(tris)*3)
	for _, t := range tris {
		directed[edge{t.a, t.b}] = true
		directed[edge{t.b, t.c}] = true
		directed[edge{t.c, t.a}] = true
	}

	next := make(map[int][]int)
	for e := range directed {
		if !directed[edge{e.b, e.a}] {
			next[e.a] = append(next[e.a], e.b)
		}
	}

	starts := make([]int, 0, len(next))
	for v, outs := range next {
		sort.Ints(outs)
		starts = append(starts, v)
	}
	sort.Ints(starts)

	var rings []orb.Ring
	for _, start := range starts {
		for len(next[start]) > 0 {
			ring := orb.Ring{pts[start]}
			cur := start
			for {
				outs := next[cur]
				if len(outs) == 0 {
					// unbalanced boundary, drop the partial ring
					ring = nil
					break
				}
				to := outs[0]
				next[cur] = outs[1:]
				cur = to
				ring = append(ring, pts[cur])
				if cur == start {
					break
				}
			}
			if len(ring) >= 4 {
				rings = append(rings, ring)
			}
		}
	}
	return rings
}

// assemble sorts rings into shells and holes and attaches each hole to the
// smallest shell that contains it.
func assemble(rings []orb.Ring) (orb.Geometry, error) {
	type shell struct {
		poly orb.Polygon
		area float64
	}

	var shells []shell
	var holes []orb.Ring
	for _, r := range rings {
		a := signedArea(r)
		switch {
		case a > 0:
			shells = append(shells, shell{poly: orb.Polygon{r}, area: a})
		case a < 0:
			holes = append(holes, r)
		}
	}
	if len(shells) == 0 {
		return nil, ErrNoHull
	}

	sort.SliceStable(shells, func(i, j int) bool { return shells[i].area > shells[j].area })

	for _, h := range holes {
		owner := -1
		for i := len(shells) - 1; i >= 0 && owner < 0; i-- {
			for _, p := range h[:len(h)-1] {
				if planar.RingContains(shells[i].poly[0], p) {
					owner = i
					break
				}
			}
		}
		if owner >= 0 {
			shells[owner].poly = append(shells[owner].poly, h)
		}
	}

	if len(shells) == 1 {
		return shells[0].poly, nil
	}
	mp := make(orb.MultiPolygon, 0, len(shells))
	for _, s := range shells {
		mp = append(mp, s.poly)
	}
	return mp, nil
}
