package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/kass/go-isochrone/internal/server"
	"github.com/kass/go-isochrone/internal/ui"
	"github.com/kass/go-isochrone/pkg/models"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Output formats
const (
	formatGeoJSON = "geojson"
	formatYAML    = "yaml"
	formatText    = "text"
)

var errInsufficientData = zerr.New("insufficient data to build an isochrone")

// yamlResult is the YAML form of a result
type yamlResult struct {
	Params    models.Params          `yaml:"params"`
	Reachable int                    `yaml:"reachable"`
	AreaKm2   float64                `yaml:"area_km2"`
	Narrative string                 `yaml:"narrative,omitempty"`
	Geometry  map[string]interface{} `yaml:"geometry"`
}

func toYAMLResult(res *models.Result) (yamlResult, error) {
	raw, err := json.Marshal(geojson.NewGeometry(res.Polygon))
	if err != nil {
		return yamlResult{}, fmt.Errorf("failed to encode geometry: %w", err)
	}
	var geometry map[string]interface{}
	if err := json.Unmarshal(raw, &geometry); err != nil {
		return yamlResult{}, fmt.Errorf("failed to encode geometry: %w", err)
	}
	return yamlResult{
		Params:    res.Params,
		Reachable: res.Reachable,
		AreaKm2:   geo.Area(res.Polygon) / 1e6,
		Narrative: res.Narrative,
		Geometry:  geometry,
	}, nil
}

func validFormat(format string) error {
	switch format {
	case formatGeoJSON, formatYAML, formatText:
		return nil
	}
	return fmt.Errorf("unknown output format %q (want geojson, yaml or text)", format)
}

// writeResult writes one result in format. A nil result is written as a
// text notice and reported as errInsufficientData.
func writeResult(w io.Writer, format string, params models.Params, res *models.Result) error {
	if format == formatText {
		if _, err := io.WriteString(w, ui.Summary(params, res)); err != nil {
			return err
		}
	}
	if res == nil {
		return errInsufficientData
	}

	switch format {
	case formatGeoJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(server.Feature(res))
	case formatYAML:
		out, err := toYAMLResult(res)
		if err != nil {
			return err
		}
		return yaml.NewEncoder(w).Encode(out)
	}
	return nil
}

// writeBands writes band results in format
func writeBands(w io.Writer, format string, mode models.Mode, minutes []int, results []*models.Result) error {
	switch format {
	case formatText:
		_, err := io.WriteString(w, ui.BandsSummary(mode, minutes, results))
		return err
	case formatGeoJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(server.FeatureCollection(results))
	case formatYAML:
		var out []yamlResult
		for _, res := range results {
			if res == nil {
				continue
			}
			yr, err := toYAMLResult(res)
			if err != nil {
				return err
			}
			out = append(out, yr)
		}
		return yaml.NewEncoder(w).Encode(out)
	}
	return validFormat(format)
}
