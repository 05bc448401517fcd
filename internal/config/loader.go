package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment override. A double underscore
// separates nesting levels: ISOCHRONE_OVERPASS__ENDPOINT -> overpass.endpoint
const EnvPrefix = "ISOCHRONE_"

// flagKeys maps CLI flag names to config keys. Flags not listed here are
// command arguments, not configuration.
var flagKeys = map[string]string{
	"source":            "source",
	"tightness":         "tightness_km",
	"padding":           "padding_factor",
	"overpass-endpoint": "overpass.endpoint",
	"overpass-timeout":  "overpass.timeout",
	"snapshot":          "snapshot.path",
	"addr":              "server.addr",
	"log-level":         "log.level",
	"log-format":        "log.format",
	"pg-host":           "postgis.host",
	"pg-port":           "postgis.port",
	"pg-user":           "postgis.user",
	"pg-password":       "postgis.password",
	"pg-dbname":         "postgis.dbname",
}

// Load builds the configuration from, lowest precedence first: defaults,
// the YAML file, ISOCHRONE_ environment variables and explicitly set flags.
// An empty cfgFile loads isochrone.yaml from the working directory if it
// exists. The result is validated.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if cfgFile == "" {
		if _, err := os.Stat(DefaultFileName); err == nil {
			cfgFile = DefaultFileName
		}
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey transforms ISOCHRONE_SPEEDS__WALKING into speeds.walking
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}
