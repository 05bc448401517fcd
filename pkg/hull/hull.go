// Package hull derives a reachability polygon from a set of reachable points.
//
// The primary boundary is a concave hull: the Delaunay triangulation of the
// points with every triangle that has an edge longer than the tightness
// removed, traced back into rings. When that fails or yields nothing, the
// convex hull of the same points is used instead.
package hull

import (
	"sort"

	"github.com/paulmach/orb"
	"go.trai.ch/zerr"
)

var (
	// ErrDegenerate is returned when the points cannot enclose an area.
	ErrDegenerate = zerr.New("degenerate point set")

	// ErrNoHull is returned when no triangle survives the edge length filter.
	ErrNoHull = zerr.New("concave hull is empty")

	// ErrGeometry is returned when the triangulation breaks down numerically.
	ErrGeometry = zerr.New("concave hull geometry failure")
)

// Generate returns the concave hull of points, the convex hull when the
// concave one cannot be built, or nil when fewer than 3 distinct points
// exist or they are all collinear. tightnessKm is the longest edge, in
// kilometers, a boundary triangle may have.
func Generate(points []orb.Point, tightnessKm float64) orb.Geometry {
	pts := distinct(points)
	if len(pts) < 3 {
		return nil
	}

	if g, err := Concave(pts, tightnessKm); err == nil && g != nil {
		return g
	}

	poly, err := Convex(pts)
	if err != nil {
		return nil
	}
	return poly
}

// distinct returns a sorted copy of points without duplicates
func distinct(points []orb.Point) []orb.Point {
	pts := make([]orb.Point, len(points))
	copy(pts, points)
	sort.Slice(pts, func(i, j int) bool { return less(pts[i], pts[j]) })

	out := pts[:0]
	for i, p := range pts {
		if i > 0 && p == pts[i-1] {
			continue
		}
		out = append(out, p)
	}
	return out
}

func less(a, b orb.Point) bool {
	if a[0] != b[0] {
		return a[0] < b[0]
	}
	return a[1] < b[1]
}

// cross returns the z component of (a-o) x (b-o)
func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

// signedArea is positive for counter-clockwise rings
func signedArea(r orb.Ring) float64 {
	var sum float64
	for i := 0; i+1 < len(r); i++ {
		sum += r[i][0]*r[i+1][1] - r[i+1][0]*r[i][1]
	}
	return sum / 2
}

func closeRing(r orb.Ring) orb.Ring {
	if len(r) > 0 && r[0] != r[len(r)-1] {
		r = append(r, r[0])
	}
	return r
}
