package footprint

import (
	"path/filepath"
	"testing"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/gpkg"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdok/muitiles/tile"
)

func TestPolygon(t *testing.T) {
	p := Polygon(tile.Index{Zoom: 0, X: 0, Y: 0})
	require.Len(t, p, 1)
	require.Len(t, p[0], 4)
	assert.InDelta(t, -180, p[0][0][0], 1e-9)
	assert.InDelta(t, -tile.MaxLatitude, p[0][0][1], 1e-9)
	assert.InDelta(t, 180, p[0][2][0], 1e-9)
	assert.InDelta(t, tile.MaxLatitude, p[0][2][1], 1e-9)
}

func TestWriter(t *testing.T) {
	file := filepath.Join(t.TempDir(), "footprint.gpkg")
	w, err := Create(file, true, 3, zerolog.Nop())
	require.NoError(t, err)

	tiles := tile.ForBBox(10, -80, 25, -79, 26)
	require.NoError(t, w.Write(tiles[:10]))

	ch := make(chan tile.Index)
	go func() {
		defer close(ch)
		for _, idx := range tiles[10:] {
			ch <- idx
		}
	}()
	require.NoError(t, w.WriteTiles(ch))
	assert.Equal(t, 16, w.Written())
	require.NoError(t, w.Close())

	h, err := gpkg.Open(file)
	require.NoError(t, err)
	defer h.Close()

	var count, minX, maxY int
	require.NoError(t, h.QueryRow(`SELECT count(*), min(x), max(y) FROM "tiles" WHERE zoom = 10`).Scan(&count, &minX, &maxY))
	assert.Equal(t, 16, count)
	assert.Equal(t, 284, minX)
	assert.Equal(t, 438, maxY)

	var blob []byte
	require.NoError(t, h.QueryRow(`SELECT geom FROM "tiles" WHERE x = 284 AND y = 435`).Scan(&blob))
	decoded, err := gpkg.DecodeGeometry(blob)
	require.NoError(t, err)
	polygon, ok := decoded.Geometry.(geom.Polygon)
	require.True(t, ok)
	b := tile.Bounds(tile.Index{Zoom: 10, X: 284, Y: 435})
	assert.InDelta(t, b.West, polygon[0][0][0], 1e-9)
	assert.InDelta(t, b.North, polygon[0][2][1], 1e-9)
}

func TestCreateOverwrite(t *testing.T) {
	file := filepath.Join(t.TempDir(), "footprint.gpkg")
	w, err := Create(file, false, 0, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, w.Write([]tile.Index{{Zoom: 1, X: 0, Y: 0}}))
	require.NoError(t, w.Close())

	w, err = Create(file, true, 0, zerolog.Nop())
	require.NoError(t, err)
	defer w.Close()
	assert.Zero(t, w.Written())

	var count int
	require.NoError(t, w.handle.QueryRow(`SELECT count(*) FROM "tiles"`).Scan(&count))
	assert.Zero(t, count)
}
