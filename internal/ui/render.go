package ui

import (
	"fmt"
	"strings"

	"github.com/kass/go-isochrone/pkg/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Summary renders a boxed text report of one isochrone. A nil result is
// reported as insufficient data.
func Summary(params models.Params, res *models.Result) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("%d min %s isochrone", params.Minutes, params.Mode)))
	b.WriteString("\n\n")

	if res == nil {
		b.WriteString(warnStyle.Render("✗ Insufficient data: too few reachable nodes to build a polygon"))
		b.WriteString("\n")
		return b.String()
	}

	pieces := 1
	if mp, ok := res.Polygon.(orb.MultiPolygon); ok {
		pieces = len(mp)
	}
	bound := res.Polygon.Bound()

	content := fmt.Sprintf(
		"✓ Origin: %s\n"+
			"✓ Reachable nodes: %s\n"+
			"✓ Area: %s\n"+
			"✓ Pieces: %s\n"+
			"✓ Bounds: %s",
		statStyle.Render(fmt.Sprintf("%.5f, %.5f", params.Lat, params.Lng)),
		statStyle.Render(fmt.Sprintf("%d", res.Reachable)),
		statStyle.Render(fmt.Sprintf("%.3f km²", geo.Area(res.Polygon)/1e6)),
		statStyle.Render(fmt.Sprintf("%d", pieces)),
		statStyle.Render(fmt.Sprintf("[%.5f, %.5f] - [%.5f, %.5f]",
			bound.Min.Lon(), bound.Min.Lat(), bound.Max.Lon(), bound.Max.Lat())),
	)
	b.WriteString(boxStyle.Render(successStyle.Render("Isochrone computed\n\n") + content))

	if res.Narrative != "" {
		b.WriteString("\n")
		b.WriteString(infoStyle.Render(res.Narrative))
	}
	b.WriteString("\n")
	return b.String()
}

// BandsSummary renders one line per band
func BandsSummary(mode models.Mode, minutes []int, results []*models.Result) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s bands", mode)))
	b.WriteString("\n\n")

	for i, res := range results {
		if res == nil {
			b.WriteString(warnStyle.Render(fmt.Sprintf("✗ %3d min  insufficient data", minutes[i])))
		} else {
			b.WriteString(successStyle.Render(fmt.Sprintf("✓ %3d min  ", minutes[i])))
			b.WriteString(statStyle.Render(fmt.Sprintf("%.3f km²", geo.Area(res.Polygon)/1e6)))
			b.WriteString(dimStyle.Render(fmt.Sprintf("  %d nodes", res.Reachable)))
		}
		b.WriteString("\n")
	}
	return b.String()
}
