package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kass/go-isochrone/pkg/graph"
	"github.com/kass/go-isochrone/pkg/isochrone"
	"github.com/kass/go-isochrone/pkg/models"
	"github.com/paulmach/orb/geojson"
)

// maxBody bounds request bodies
const maxBody = 1 << 16

type handlers struct {
	engine Engine
	logger *slog.Logger
}

type bandsRequest struct {
	Lat     float64     `json:"lat"`
	Lng     float64     `json:"lng"`
	Mode    models.Mode `json:"mode"`
	Minutes []int       `json:"minutes"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) compute(w http.ResponseWriter, r *http.Request) {
	var params models.Params
	if err := decode(w, r, &params); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if mode, err := models.ParseMode(string(params.Mode)); err == nil {
		params.Mode = mode
	}

	res, err := h.engine.Compute(r.Context(), params)
	if err != nil {
		h.fail(w, err)
		return
	}
	if res == nil {
		writeError(w, http.StatusUnprocessableEntity, errors.New("insufficient data to build an isochrone"))
		return
	}

	writeJSON(w, http.StatusOK, Feature(res))
}

func (h *handlers) bands(w http.ResponseWriter, r *http.Request) {
	var req bandsRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if mode, err := models.ParseMode(string(req.Mode)); err == nil {
		req.Mode = mode
	}

	results, err := h.engine.Bands(r.Context(), req.Lat, req.Lng, req.Mode, req.Minutes)
	if err != nil {
		h.fail(w, err)
		return
	}

	fc := FeatureCollection(results)
	if len(fc.Features) == 0 {
		writeError(w, http.StatusUnprocessableEntity, errors.New("insufficient data to build any band"))
		return
	}
	writeJSON(w, http.StatusOK, fc)
}

func (h *handlers) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidParams), errors.Is(err, models.ErrUnknownMode):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, isochrone.ErrFetchFailed), errors.Is(err, graph.ErrMalformedElement):
		h.logger.Warn("network data unavailable", "error", err)
		writeError(w, http.StatusBadGateway, err)
	default:
		h.logger.Error("isochrone failed", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

// Feature converts a result into a GeoJSON feature carrying its parameters
func Feature(res *models.Result) *geojson.Feature {
	f := geojson.NewFeature(res.Polygon)
	f.Properties = geojson.Properties{
		"lat":       res.Params.Lat,
		"lng":       res.Params.Lng,
		"mode":      string(res.Params.Mode),
		"minutes":   res.Params.Minutes,
		"reachable": res.Reachable,
	}
	if res.Narrative != "" {
		f.Properties["narrative"] = res.Narrative
	}
	return f
}

// FeatureCollection converts band results, skipping bands without a polygon
func FeatureCollection(results []*models.Result) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, res := range results {
		if res == nil {
			continue
		}
		fc.Append(Feature(res))
	}
	return fc
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
