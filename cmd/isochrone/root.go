package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/kass/go-isochrone/internal/config"
	"github.com/kass/go-isochrone/pkg/isochrone"
	"github.com/kass/go-isochrone/pkg/overpass"
	"github.com/kass/go-isochrone/pkg/postgis"
	"github.com/kass/go-isochrone/pkg/snapshot"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "isochrone",
		Short: "Compute travel-time isochrones from OpenStreetMap road networks",
		Long: `isochrone fetches the road network around a point, runs a time-bounded
shortest-path search over it and wraps every node reachable within the
budget in a polygon.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			var err error
			cfg, err = config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}

			logger, err := config.NewLogger(cfg.Log, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(config.WithLogger(ctx, logger))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./isochrone.yaml)")
	pf.String("source", config.SourceOverpass, "network source (overpass|postgis|snapshot)")
	pf.String("snapshot", "", "snapshot file replayed by the snapshot source")
	pf.Float64("tightness", isochrone.DefaultTightnessKm, "longest boundary triangle edge in km")
	pf.Float64("padding", isochrone.DefaultPaddingFactor, "fetch radius padding factor")
	pf.String("overpass-endpoint", overpass.DefaultEndpoint, "Overpass API interpreter URL")
	pf.Duration("overpass-timeout", 0, "Overpass request timeout")
	pf.String("pg-host", "", "PostGIS host")
	pf.Int("pg-port", 0, "PostGIS port")
	pf.String("pg-user", "", "PostGIS user")
	pf.String("pg-password", "", "PostGIS password")
	pf.String("pg-dbname", "", "PostGIS database name")
	pf.String("log-level", "info", "log level (debug|info|warn|error)")
	pf.String("log-format", "text", "log format (text|json)")

	_ = rootCmd.RegisterFlagCompletionFunc("source", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{config.SourceOverpass, config.SourcePostGIS, config.SourceSnapshot}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(
		newComputeCmd(),
		newBandsCmd(),
		newServeCmd(),
		newSnapshotCmd(),
		newLoadCmd(),
	)
	return rootCmd
}

// logger returns the logger stored by the root command
func logger(cmd *cobra.Command) *slog.Logger {
	return config.GetLogger(cmd.Context())
}

// openSource returns the configured network fetcher and a function
// releasing its resources.
func openSource(ctx context.Context, c *config.Config, log *slog.Logger) (isochrone.Fetcher, func() error, error) {
	noop := func() error { return nil }

	switch c.Source {
	case config.SourceOverpass:
		return overpass.NewClient(c.Overpass.Endpoint, c.Overpass.Timeout, overpass.WithLogger(log)), noop, nil
	case config.SourcePostGIS:
		store, err := postgis.Open(ctx, c.StoreConfig(), log)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case config.SourceSnapshot:
		return snapshot.NewFetcher(c.Snapshot.Path), noop, nil
	}
	return nil, nil, fmt.Errorf("unknown source %q", c.Source)
}

// newEngine builds an engine over the configured source
func newEngine(ctx context.Context, c *config.Config, log *slog.Logger, narrate bool) (*isochrone.Engine, func() error, error) {
	fetcher, closeFn, err := openSource(ctx, c, log)
	if err != nil {
		return nil, nil, err
	}

	opts := []isochrone.Option{
		isochrone.WithSettings(c.Settings()),
		isochrone.WithLogger(log),
	}
	if narrate {
		opts = append(opts, isochrone.WithNarrator(isochrone.SummaryNarrator{}))
	}
	return isochrone.New(fetcher, opts...), closeFn, nil
}

// closeInto runs closeFn and reports its error through err unless err
// already holds one
func closeInto(err *error, closeFn func() error) {
	if cerr := closeFn(); cerr != nil && *err == nil {
		*err = cerr
	}
}

// openOutput opens path for writing, or returns the command output when
// path is empty.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}
