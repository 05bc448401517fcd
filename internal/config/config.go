// Package config loads and validates runtime configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kass/go-isochrone/pkg/isochrone"
	"github.com/kass/go-isochrone/pkg/models"
	"github.com/kass/go-isochrone/pkg/postgis"
	"go.trai.ch/zerr"
)

// Network data sources
const (
	SourceOverpass = "overpass"
	SourcePostGIS  = "postgis"
	SourceSnapshot = "snapshot"
)

// DefaultFileName is the config file looked up in the working directory
const DefaultFileName = "isochrone.yaml"

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = zerr.New("invalid configuration")

// Config is the full runtime configuration
type Config struct {
	Speeds        map[string]float64 `koanf:"speeds"`
	PaddingFactor float64            `koanf:"padding_factor"`
	TightnessKm   float64            `koanf:"tightness_km"`
	Source        string             `koanf:"source"`

	Overpass OverpassConfig `koanf:"overpass"`
	PostGIS  PostGISConfig  `koanf:"postgis"`
	Snapshot SnapshotConfig `koanf:"snapshot"`
	Server   ServerConfig   `koanf:"server"`
	Log      LogConfig      `koanf:"log"`
}

// OverpassConfig configures the Overpass client
type OverpassConfig struct {
	Endpoint string        `koanf:"endpoint"`
	Timeout  time.Duration `koanf:"timeout"`
}

// PostGISConfig configures the PostGIS store
type PostGISConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	DBName   string `koanf:"dbname"`
	SSLMode  string `koanf:"sslmode"`
}

// SnapshotConfig points at a stored network snapshot
type SnapshotConfig struct {
	Path string `koanf:"path"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Addr         string        `koanf:"addr"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// LogConfig selects log level and format
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaults() map[string]interface{} {
	speeds := models.DefaultSpeeds()
	return map[string]interface{}{
		"speeds.walking":       speeds[models.Walking],
		"speeds.cycling":       speeds[models.Cycling],
		"speeds.driving":       speeds[models.Driving],
		"padding_factor":       isochrone.DefaultPaddingFactor,
		"tightness_km":         isochrone.DefaultTightnessKm,
		"source":               SourceOverpass,
		"overpass.timeout":     "60s",
		"postgis.host":         "localhost",
		"postgis.port":         5432,
		"postgis.user":         "postgres",
		"postgis.dbname":       "isochrone",
		"postgis.sslmode":      "disable",
		"server.addr":          ":8080",
		"server.read_timeout":  "10s",
		"server.write_timeout": "120s",
		"log.level":            "info",
		"log.format":           "text",
	}
}

// Validate checks speeds, tuning constants and the selected source
func (c *Config) Validate() error {
	for _, m := range models.Modes {
		v, ok := c.Speeds[string(m)]
		if !ok || v <= 0 {
			return fmt.Errorf("%w: speeds.%s must be positive", ErrInvalidConfig, m)
		}
	}
	for name := range c.Speeds {
		if _, err := models.ParseMode(name); err != nil {
			return fmt.Errorf("%w: speeds.%s: %w", ErrInvalidConfig, name, err)
		}
	}
	if c.PaddingFactor <= 0 {
		return fmt.Errorf("%w: padding_factor must be positive", ErrInvalidConfig)
	}
	if c.TightnessKm <= 0 {
		return fmt.Errorf("%w: tightness_km must be positive", ErrInvalidConfig)
	}

	switch c.Source {
	case SourceOverpass:
	case SourcePostGIS:
		if c.PostGIS.Host == "" || c.PostGIS.DBName == "" {
			return fmt.Errorf("%w: postgis.host and postgis.dbname are required", ErrInvalidConfig)
		}
	case SourceSnapshot:
		if c.Snapshot.Path == "" {
			return fmt.Errorf("%w: snapshot.path is required for the snapshot source", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown source %q", ErrInvalidConfig, c.Source)
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}

// SpeedTable converts the configured speeds
func (c *Config) SpeedTable() models.SpeedTable {
	table := make(models.SpeedTable, len(c.Speeds))
	for name, v := range c.Speeds {
		table[models.Mode(strings.ToLower(name))] = v
	}
	return table
}

// Settings returns the engine settings described by c
func (c *Config) Settings() isochrone.Settings {
	return isochrone.Settings{
		Speeds:        c.SpeedTable(),
		PaddingFactor: c.PaddingFactor,
		TightnessKm:   c.TightnessKm,
	}
}

// StoreConfig returns the PostGIS connection settings
func (c *Config) StoreConfig() postgis.Config {
	return postgis.Config{
		Host:     c.PostGIS.Host,
		Port:     c.PostGIS.Port,
		User:     c.PostGIS.User,
		Password: c.PostGIS.Password,
		DBName:   c.PostGIS.DBName,
		SSLMode:  c.PostGIS.SSLMode,
	}
}
