package models

import (
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"go.trai.ch/zerr"
)

var (
	// ErrUnknownMode is returned for a transport mode outside the supported set.
	ErrUnknownMode = zerr.New("unknown transport mode")

	// ErrInvalidParams is returned when isochrone parameters fail validation.
	ErrInvalidParams = zerr.New("invalid isochrone parameters")
)

// Mode is a transport mode with its own average speed
type Mode string

const (
	Walking Mode = "walking"
	Cycling Mode = "cycling"
	Driving Mode = "driving"
)

// Modes lists the supported transport modes in a stable order
var Modes = []Mode{Walking, Cycling, Driving}

// ParseMode converts a user supplied string to a Mode
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case Walking, Cycling, Driving:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// SpeedTable maps a transport mode to its average speed in km/h
type SpeedTable map[Mode]float64

// DefaultSpeeds returns the stock average speeds
func DefaultSpeeds() SpeedTable {
	return SpeedTable{
		Walking: 5,
		Cycling: 15,
		Driving: 40,
	}
}

// MetersPerSecond returns the configured speed for mode converted from km/h
func (s SpeedTable) MetersPerSecond(mode Mode) (float64, error) {
	kmh, ok := s[mode]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	if kmh <= 0 || math.IsNaN(kmh) || math.IsInf(kmh, 0) {
		return 0, fmt.Errorf("invalid speed %v km/h for mode %s", kmh, mode)
	}
	return kmh * 1000 / 3600, nil
}

// Node represents a road network node
type Node struct {
	ID  osm.NodeID `json:"id"`
	Lat float64    `json:"lat"`
	Lon float64    `json:"lon"`
}

// Point returns the node location in (lon, lat) order
func (n Node) Point() orb.Point {
	return orb.Point{n.Lon, n.Lat}
}

// Edge is a directed travel-time edge, weight in seconds
type Edge struct {
	Source osm.NodeID `json:"source"`
	Target osm.NodeID `json:"target"`
	Weight float64    `json:"weight"`
}

// MaxMinutes caps the travel-time budget. Larger budgets need road networks
// too big to fetch in one request.
const MaxMinutes = 120

// Params fully determines one isochrone request
type Params struct {
	Lat     float64 `json:"lat" yaml:"lat"`
	Lng     float64 `json:"lng" yaml:"lng"`
	Mode    Mode    `json:"mode" yaml:"mode"`
	Minutes int     `json:"minutes" yaml:"minutes"`
}

// Validate checks coordinate ranges, mode and time budget
func (p Params) Validate() error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidParams, p.Lat)
	}
	if math.IsNaN(p.Lng) || p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidParams, p.Lng)
	}
	if _, err := ParseMode(string(p.Mode)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	if p.Minutes <= 0 || p.Minutes > MaxMinutes {
		return fmt.Errorf("%w: minutes must be in 1..%d, got %d", ErrInvalidParams, MaxMinutes, p.Minutes)
	}
	return nil
}

// Budget returns the travel-time budget in seconds
func (p Params) Budget() float64 {
	return float64(p.Minutes) * 60
}

// Result binds a reachability polygon to the parameters that produced it
type Result struct {
	Polygon   orb.Geometry `json:"polygon"`
	Params    Params       `json:"params"`
	Reachable int          `json:"reachable"`
	Narrative string       `json:"narrative,omitempty"`
}
