// Package postgis serves road networks from a PostGIS database loaded with
// Import.
package postgis

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/kass/go-isochrone/pkg/models"
	"github.com/lib/pq"
	"github.com/paulmach/osm"
)

// progressEvery controls how often Import logs its progress
const progressEvery = 10000

const (
	nodesInRadius = `
		SELECT id, ST_Y(geom) AS lat, ST_X(geom) AS lon
		FROM network_nodes
		WHERE ST_DWithin(geom::geography, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
	`

	waysInRadius = `
		SELECT id, node_ids
		FROM network_ways
		WHERE mode = $1 AND node_ids && (
			SELECT COALESCE(array_agg(id), '{}')
			FROM network_nodes
			WHERE ST_DWithin(geom::geography, ST_SetSRID(ST_MakePoint($2, $3), 4326)::geography, $4)
		)
		ORDER BY id
	`

	insertNode = `
		INSERT INTO network_nodes (id, geom)
		VALUES ($1, ST_SetSRID(ST_MakePoint($2, $3), 4326))
		ON CONFLICT (id) DO NOTHING
	`

	insertWay = `
		INSERT INTO network_ways (id, mode, node_ids)
		VALUES ($1, $2, $3)
		ON CONFLICT (id, mode) DO UPDATE SET node_ids = EXCLUDED.node_ids
	`
)

// Config holds connection settings
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns the lib/pq connection string
func (c Config) DSN() string {
	ssl := c.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, ssl)
}

// Store reads and writes mode-filtered road networks
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open connects to PostGIS and verifies the connection
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return New(db, logger), nil
}

// New wraps an existing connection pool
func New(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{db: db, logger: logger}
}

// InitSchema creates the network tables if they do not exist
func (s *Store) InitSchema(ctx context.Context) error {
	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS postgis;`,

		`CREATE TABLE IF NOT EXISTS network_nodes (
			id BIGINT PRIMARY KEY,
			geom GEOMETRY(POINT, 4326) NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS network_ways (
			id BIGINT NOT NULL,
			mode TEXT NOT NULL,
			node_ids BIGINT[] NOT NULL,
			PRIMARY KEY (id, mode)
		);`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

// CreateSpatialIndex creates the GIST index on node geometry and the GIN
// index used to find ways by member node.
func (s *Store) CreateSpatialIndex(ctx context.Context) error {
	queries := []string{
		`CREATE INDEX IF NOT EXISTS idx_network_nodes_geom ON network_nodes USING GIST(geom);`,
		`CREATE INDEX IF NOT EXISTS idx_network_ways_node_ids ON network_ways USING GIN(node_ids);`,
		`ANALYZE network_nodes;`,
		`ANALYZE network_ways;`,
	}

	start := time.Now()
	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create spatial index: %w", err)
		}
	}

	s.logger.Info("created spatial indexes", "elapsed", time.Since(start))
	return nil
}

// Import stores the nodes of data and records its ways as usable by mode.
// Everything is written in one transaction.
func (s *Store) Import(ctx context.Context, data *osm.OSM, mode models.Mode) (err error) {
	if _, err := models.ParseMode(string(mode)); err != nil {
		return err
	}
	if data == nil {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	nodeStmt, err := tx.PrepareContext(ctx, insertNode)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer nodeStmt.Close()

	wayStmt, err := tx.PrepareContext(ctx, insertWay)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer wayStmt.Close()

	start := time.Now()
	inserted := 0
	for _, n := range data.Nodes {
		if n == nil {
			continue
		}
		if _, err := nodeStmt.ExecContext(ctx, int64(n.ID), n.Lon, n.Lat); err != nil {
			return fmt.Errorf("failed to insert node %d: %w", n.ID, err)
		}
		inserted++
		if inserted%progressEvery == 0 {
			s.logger.Debug("import progress", "nodes", inserted)
		}
	}

	ways := 0
	for _, w := range data.Ways {
		if w == nil || len(w.Nodes) < 2 {
			continue
		}
		ids := make(pq.Int64Array, len(w.Nodes))
		for i, wn := range w.Nodes {
			ids[i] = int64(wn.ID)
		}
		if _, err := wayStmt.ExecContext(ctx, int64(w.ID), string(mode), ids); err != nil {
			return fmt.Errorf("failed to insert way %d: %w", w.ID, err)
		}
		ways++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}

	s.logger.Info("network imported", "mode", mode, "nodes", inserted, "ways", ways, "elapsed", time.Since(start))
	return nil
}

// Fetch returns the nodes within radiusMeters of (lat, lng) and the ways for
// mode touching them. Way members outside the radius are not returned.
func (s *Store) Fetch(ctx context.Context, lat, lng, radiusMeters float64, mode models.Mode) (*osm.OSM, error) {
	if _, err := models.ParseMode(string(mode)); err != nil {
		return nil, err
	}

	data := &osm.OSM{}

	rows, err := s.db.QueryContext(ctx, nodesInRadius, lng, lat, radiusMeters)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	for rows.Next() {
		var id int64
		var nlat, nlon float64
		if err := rows.Scan(&id, &nlat, &nlon); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		data.Nodes = append(data.Nodes, &osm.Node{ID: osm.NodeID(id), Lat: nlat, Lon: nlon})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("rows error: %w", err)
	}
	rows.Close()

	if len(data.Nodes) == 0 {
		return data, nil
	}

	rows, err = s.db.QueryContext(ctx, waysInRadius, string(mode), lng, lat, radiusMeters)
	if err != nil {
		return nil, fmt.Errorf("failed to query ways: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var ids pq.Int64Array
		if err := rows.Scan(&id, &ids); err != nil {
			return nil, fmt.Errorf("failed to scan way: %w", err)
		}
		way := &osm.Way{ID: osm.WayID(id), Nodes: make(osm.WayNodes, len(ids))}
		for i, nid := range ids {
			way.Nodes[i] = osm.WayNode{ID: osm.NodeID(nid)}
		}
		data.Ways = append(data.Ways, way)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return data, nil
}

// Count returns the number of stored nodes and ways
func (s *Store) Count(ctx context.Context) (nodes, ways int64, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM network_nodes),
		(SELECT COUNT(*) FROM network_ways)`).Scan(&nodes, &ways)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count network: %w", err)
	}
	return nodes, ways, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
