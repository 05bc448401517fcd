package isochrone

import (
	"context"
	"fmt"
	"strings"

	"github.com/kass/go-isochrone/pkg/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// SummaryNarrator describes an isochrone from its geometry alone
type SummaryNarrator struct{}

// Describe reports the reachable area and how many separate pieces it has
func (SummaryNarrator) Describe(_ context.Context, params models.Params, polygon orb.Geometry) (string, error) {
	if polygon == nil {
		return "", fmt.Errorf("no polygon to describe")
	}

	pieces := 1
	if mp, ok := polygon.(orb.MultiPolygon); ok {
		pieces = len(mp)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Within %d minutes %s from (%.5f, %.5f) you can reach about %.2f km²",
		params.Minutes, verb(params.Mode), params.Lat, params.Lng, geo.Area(polygon)/1e6)
	if pieces > 1 {
		fmt.Fprintf(&b, " split across %d separate areas", pieces)
	}
	b.WriteString(".")
	return b.String(), nil
}

func verb(m models.Mode) string {
	switch m {
	case models.Walking:
		return "on foot"
	case models.Cycling:
		return "by bike"
	case models.Driving:
		return "by car"
	}
	return string(m)
}
