package hull

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Convex returns the convex hull of points as a counter-clockwise polygon
// using Andrew's monotone chain. Collinear points on the hull are dropped.
func Convex(points []orb.Point) (orb.Polygon, error) {
	pts := distinct(points)
	if len(pts) < 3 {
		return nil, fmt.Errorf("%w: %d distinct points", ErrDegenerate, len(pts))
	}

	lower := make([]orb.Point, 0, len(pts))
	for _, p := range pts {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}

	upper := make([]orb.Point, 0, len(pts))
	for i := len(pts) - 1; i >= 0; i-- {
		p := pts[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}

	ring := make(orb.Ring, 0, len(lower)+len(upper)-1)
	ring = append(ring, lower[:len(lower)-1]...)
	ring = append(ring, upper[:len(upper)-1]...)
	if len(ring) < 3 {
		return nil, fmt.Errorf("%w: points are collinear", ErrDegenerate)
	}

	ring = closeRing(ring)
	if signedArea(ring) <= 0 {
		return nil, fmt.Errorf("%w: zero area", ErrDegenerate)
	}
	return orb.Polygon{ring}, nil
}
