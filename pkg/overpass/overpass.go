// Package overpass fetches mode-filtered road networks from an Overpass API
// endpoint.
package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kass/go-isochrone/pkg/models"
	"github.com/paulmach/osm"
	"go.trai.ch/zerr"
)

// DefaultEndpoint is the public Overpass interpreter
const DefaultEndpoint = "https://overpass-api.de/api/interpreter"

// maxErrorBody caps how much of a failed response is kept in the error
const maxErrorBody = 512

// ErrStatus is returned for a non-2xx response.
var ErrStatus = zerr.New("overpass returned non-success status")

// excluded lists highway classes a mode cannot use
var excluded = map[models.Mode][]string{
	models.Walking: {"motorway", "motorway_link", "trunk", "trunk_link", "construction", "proposed"},
	models.Cycling: {"motorway", "motorway_link", "trunk", "trunk_link", "steps", "construction", "proposed"},
	models.Driving: {"footway", "pedestrian", "path", "steps", "cycleway", "bridleway", "corridor", "track", "construction", "proposed"},
}

// Client is an Overpass API client
type Client struct {
	endpoint string
	http     *http.Client
	logger   *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the structured logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a client for endpoint. An empty endpoint uses
// DefaultEndpoint.
func NewClient(endpoint string, timeout time.Duration, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query builds the Overpass QL query selecting the ways usable by mode
// within radius meters of (lat, lng), plus their nodes.
func Query(lat, lng, radius float64, mode models.Mode, timeout time.Duration) string {
	var filter strings.Builder
	filter.WriteString(`["highway"]["access"!="private"]["access"!="no"]`)
	if classes := excluded[mode]; len(classes) > 0 {
		fmt.Fprintf(&filter, `["highway"!~"^(%s)$"]`, strings.Join(classes, "|"))
	}
	switch mode {
	case models.Walking:
		filter.WriteString(`["foot"!="no"]`)
	case models.Cycling:
		filter.WriteString(`["bicycle"!="no"]`)
	case models.Driving:
		filter.WriteString(`["motor_vehicle"!="no"]`)
	}

	seconds := int(timeout.Seconds())
	if seconds <= 0 {
		seconds = 25
	}
	return fmt.Sprintf("[out:json][timeout:%d];way%s(around:%.0f,%f,%f);(._;>;);out body;",
		seconds, filter.String(), radius, lat, lng)
}

// Fetch runs the query for mode around (lat, lng) and decodes the elements
func (c *Client) Fetch(ctx context.Context, lat, lng, radiusMeters float64, mode models.Mode) (*osm.OSM, error) {
	if _, err := models.ParseMode(string(mode)); err != nil {
		return nil, err
	}

	q := Query(lat, lng, radiusMeters, mode, c.http.Timeout)
	form := url.Values{"data": {q}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("overpass request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: %d %s", ErrStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	data := &osm.OSM{}
	if err := json.NewDecoder(resp.Body).Decode(data); err != nil {
		return nil, fmt.Errorf("failed to decode overpass response: %w", err)
	}

	c.logger.Debug("overpass fetch complete",
		"mode", mode,
		"radius_m", radiusMeters,
		"nodes", len(data.Nodes),
		"ways", len(data.Ways),
		"elapsed", time.Since(start),
	)
	return data, nil
}
