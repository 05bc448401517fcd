// Package snapshot stores fetched road networks on disk so a computation
// can be replayed without the network data service.
package snapshot

import (
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/kass/go-isochrone/pkg/models"
	"github.com/paulmach/osm"
	"go.trai.ch/zerr"
)

// formatVersion is bumped whenever the record layout changes
const formatVersion = 1

// ErrVersion is returned when a snapshot was written by an incompatible build.
var ErrVersion = zerr.New("unsupported snapshot version")

// nodeRecord is the serialized form of a network node
type nodeRecord struct {
	ID  int64
	Lat float64
	Lon float64
}

// wayRecord is the serialized form of a way
type wayRecord struct {
	ID    int64
	Nodes []int64
	Tags  map[string]string
}

// fileData is the serializable form of a network snapshot
type fileData struct {
	Version int
	Nodes   []nodeRecord
	Ways    []wayRecord
}

// Save writes data to filename, replacing any existing file
func Save(filename string, data *osm.OSM) error {
	out := fileData{Version: formatVersion}
	if data != nil {
		for _, n := range data.Nodes {
			if n == nil {
				continue
			}
			out.Nodes = append(out.Nodes, nodeRecord{ID: int64(n.ID), Lat: n.Lat, Lon: n.Lon})
		}
		for _, w := range data.Ways {
			if w == nil {
				continue
			}
			rec := wayRecord{ID: int64(w.ID), Nodes: make([]int64, len(w.Nodes))}
			for i, wn := range w.Nodes {
				rec.Nodes[i] = int64(wn.ID)
			}
			if len(w.Tags) > 0 {
				rec.Tags = w.Tags.Map()
			}
			out.Ways = append(out.Ways, rec)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(out); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return file.Close()
}

// Load reads a snapshot written by Save
func Load(filename string) (*osm.OSM, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var in fileData
	if err := gob.NewDecoder(file).Decode(&in); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if in.Version != formatVersion {
		return nil, fmt.Errorf("%w: %d", ErrVersion, in.Version)
	}

	data := &osm.OSM{}
	for _, n := range in.Nodes {
		data.Nodes = append(data.Nodes, &osm.Node{ID: osm.NodeID(n.ID), Lat: n.Lat, Lon: n.Lon})
	}
	for _, w := range in.Ways {
		way := &osm.Way{ID: osm.WayID(w.ID), Nodes: make(osm.WayNodes, len(w.Nodes))}
		for i, id := range w.Nodes {
			way.Nodes[i] = osm.WayNode{ID: osm.NodeID(id)}
		}
		for k, v := range w.Tags {
			way.Tags = append(way.Tags, osm.Tag{Key: k, Value: v})
		}
		way.Tags.SortByKeyValue()
		data.Ways = append(data.Ways, way)
	}
	return data, nil
}

// Fetcher replays a stored snapshot. The file is read once on first use and
// the same network is returned for every request.
type Fetcher struct {
	filename string

	once sync.Once
	data *osm.OSM
	err  error
}

// NewFetcher creates a fetcher replaying filename
func NewFetcher(filename string) *Fetcher {
	return &Fetcher{filename: filename}
}

// Fetch returns the stored network regardless of location
func (f *Fetcher) Fetch(ctx context.Context, _, _, _ float64, _ models.Mode) (*osm.OSM, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.once.Do(func() {
		f.data, f.err = Load(f.filename)
	})
	return f.data, f.err
}

// Source is anything that can fetch a road network
type Source interface {
	Fetch(ctx context.Context, lat, lng, radiusMeters float64, mode models.Mode) (*osm.OSM, error)
}

// Recorder decorates a Source and writes every successful response to a
// snapshot file.
type Recorder struct {
	next     Source
	filename string
	logger   *slog.Logger
}

// NewRecorder creates a recorder writing what next returns to filename
func NewRecorder(next Source, filename string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Recorder{next: next, filename: filename, logger: logger}
}

// Fetch forwards to the wrapped source and saves the result
func (r *Recorder) Fetch(ctx context.Context, lat, lng, radiusMeters float64, mode models.Mode) (*osm.OSM, error) {
	data, err := r.next.Fetch(ctx, lat, lng, radiusMeters, mode)
	if err != nil {
		return nil, err
	}
	if err := Save(r.filename, data); err != nil {
		return nil, zerr.Wrap(err, "failed to record snapshot")
	}
	if data != nil {
		r.logger.Info("snapshot recorded", "file", r.filename, "nodes", len(data.Nodes), "ways", len(data.Ways))
	}
	return data, nil
}
