package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kass/go-isochrone/internal/testutil"
	"github.com/kass/go-isochrone/pkg/models"
	"github.com/kass/go-isochrone/pkg/snapshot"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const (
	originLat = 52.52
	originLng = 13.405
)

func writeSnapshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grid.gob")
	require.NoError(t, snapshot.Save(path, testutil.GridNetwork(originLat, originLng, 9, 0.001)))
	return path
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestComputeGeoJSON(t *testing.T) {
	snap := writeSnapshot(t)

	out, _, err := run(t, "--source", "snapshot", "--snapshot", snap,
		"compute", "--lat", "52.52", "--lng", "13.405", "--mode", "walking", "--minutes", "10")
	require.NoError(t, err)

	f, err := geojson.UnmarshalFeature([]byte(out))
	require.NoError(t, err)
	switch f.Geometry.(type) {
	case orb.Polygon, orb.MultiPolygon:
	default:
		t.Fatalf("unexpected geometry %T", f.Geometry)
	}
	assert.Equal(t, "walking", f.Properties.MustString("mode"))
	assert.NotEmpty(t, f.Properties.MustString("narrative"))
}

func TestComputeText(t *testing.T) {
	snap := writeSnapshot(t)

	out, _, err := run(t, "--source", "snapshot", "--snapshot", snap,
		"compute", "--lat", "52.52", "--lng", "13.405", "-t", "10", "-f", "text", "--no-narrate")
	require.NoError(t, err)
	assert.Contains(t, out, "10 min walking isochrone")
	assert.Contains(t, out, "Reachable nodes")
}

func TestComputeOutputFile(t *testing.T) {
	snap := writeSnapshot(t)
	dest := filepath.Join(t.TempDir(), "iso.yaml")

	out, _, err := run(t, "--source", "snapshot", "--snapshot", snap,
		"compute", "--lat", "52.52", "--lng", "13.405", "-f", "yaml", "-o", dest)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.FileExists(t, dest)
}

func TestComputeInsufficientData(t *testing.T) {
	snap := writeSnapshot(t)

	// far away from every node the snap lands on a corner and one minute
	// reaches nothing else
	_, _, err := run(t, "--source", "snapshot", "--snapshot", snap,
		"compute", "--lat", "10", "--lng", "10", "-t", "1")
	assert.ErrorIs(t, err, errInsufficientData)
}

func TestComputeRejectsInput(t *testing.T) {
	snap := writeSnapshot(t)

	_, _, err := run(t, "--source", "snapshot", "--snapshot", snap,
		"compute", "--lat", "52.52", "--lng", "13.405", "--mode", "rocket")
	assert.ErrorIs(t, err, models.ErrUnknownMode)

	_, _, err = run(t, "--source", "snapshot", "--snapshot", snap,
		"compute", "--lat", "52.52", "--lng", "13.405", "-f", "csv")
	assert.ErrorContains(t, err, "unknown output format")

	_, _, err = run(t, "--source", "snapshot", "compute", "--lat", "1", "--lng", "1")
	assert.ErrorContains(t, err, "snapshot.path")

	_, _, err = run(t, "compute", "--lng", "1")
	assert.Error(t, err)
}

func TestBandsYAML(t *testing.T) {
	snap := writeSnapshot(t)

	out, _, err := run(t, "--source", "snapshot", "--snapshot", snap,
		"bands", "--lat", "52.52", "--lng", "13.405", "--minutes", "5,10", "-f", "yaml")
	require.NoError(t, err)

	var got []yamlResult
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)
	assert.Equal(t, 5, got[0].Params.Minutes)
	assert.Equal(t, 10, got[1].Params.Minutes)
	assert.Greater(t, got[1].AreaKm2, got[0].AreaKm2)
	assert.NotEmpty(t, got[0].Geometry["type"])
}

func TestWriteResultFormats(t *testing.T) {
	sq := orb.Polygon{{{0, 0}, {0.01, 0}, {0.01, 0.01}, {0, 0.01}, {0, 0}}}
	params := models.Params{Lat: 0.005, Lng: 0.005, Mode: models.Driving, Minutes: 3}
	res := &models.Result{Polygon: sq, Params: params, Reachable: 4}

	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, formatYAML, params, res))
	assert.Contains(t, buf.String(), "mode: driving")
	assert.Contains(t, buf.String(), "type: Polygon")

	buf.Reset()
	require.NoError(t, writeResult(&buf, formatGeoJSON, params, res))
	assert.Contains(t, buf.String(), `"type": "Feature"`)

	buf.Reset()
	err := writeResult(&buf, formatText, params, nil)
	assert.ErrorIs(t, err, errInsufficientData)
	assert.Contains(t, buf.String(), "Insufficient data")

	buf.Reset()
	require.NoError(t, writeBands(&buf, formatText, models.Driving, []int{3}, []*models.Result{res}))
	assert.Contains(t, buf.String(), "driving bands")
	assert.Error(t, writeBands(&buf, "xml", models.Driving, []int{3}, []*models.Result{res}))
}

func TestCloseInto(t *testing.T) {
	errClose := errors.New("disk full")
	failing := func() error { return errClose }

	var err error
	closeInto(&err, failing)
	assert.ErrorIs(t, err, errClose)

	// an earlier error wins over the close error
	errWrite := errors.New("write failed")
	err = errWrite
	closeInto(&err, failing)
	assert.ErrorIs(t, err, errWrite)

	err = nil
	closeInto(&err, func() error { return nil })
	assert.NoError(t, err)
}

func TestOpenOutputReportsCloseError(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.json")
	w, closeOut, err := openOutput(newRootCmd(), dest)
	require.NoError(t, err)

	_, err = w.Write([]byte("{}"))
	require.NoError(t, err)
	require.NoError(t, closeOut())

	// a second close fails and must surface
	err = nil
	closeInto(&err, closeOut)
	assert.ErrorIs(t, err, os.ErrClosed)
}
