package market

import (
	"os"
	"path/filepath"
	"testing"

	shp "github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFileJSON(t *testing.T) {
	path := writeFile(t, "markets.json", `[
		{"market": "Philly", "latitude": 39.95, "longitude": -75.16},
		{"market": "Austin", "latitude": 30.27, "longitude": -97.74}
	]`)

	c, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []Market{
		{Name: "Philly", Latitude: 39.95, Longitude: -75.16},
		{Name: "Austin", Latitude: 30.27, Longitude: -97.74},
	}, c.Markets())
}

func TestLoadFileYAML(t *testing.T) {
	path := writeFile(t, "markets.yaml", "- market: Denver\n  latitude: 39.74\n  longitude: -104.99\n")

	c, err := LoadFile(path)
	require.NoError(t, err)
	m, ok := c.Lookup("Denver")
	require.True(t, ok)
	assert.Equal(t, 39.74, m.Latitude)
}

func TestLoadFileEmpty(t *testing.T) {
	path := writeFile(t, "markets.json", `[]`)

	_, err := LoadFile(path)
	assert.ErrorIs(t, err, ErrEmptyCatalog)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = LoadFile(writeFile(t, "markets.csv", "market,lat,lon\n"))
	assert.Error(t, err)

	_, err = LoadFile(writeFile(t, "markets.json", `{not json`))
	assert.Error(t, err)
}

func TestLoadFileShapefile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "markets.shp")

	w, err := shp.Create(path, shp.POINT)
	require.NoError(t, err)
	w.SetFields([]shp.Field{shp.StringField("MARKET", 32)})
	names := []string{"Philly", "Austin"}
	points := []shp.Point{{X: -75.16, Y: 39.95}, {X: -97.74, Y: 30.27}}
	for i := range points {
		n := w.Write(&points[i])
		w.WriteAttribute(int(n), 0, names[i])
	}
	w.Close()

	c, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	m, ok := c.Lookup("Austin")
	require.True(t, ok)
	assert.InDelta(t, 30.27, m.Latitude, 1e-9)
	assert.InDelta(t, -97.74, m.Longitude, 1e-9)
}
