package tms20

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const originShift = 20037508.3427892

func TestLoadEmbeddedTileMatrixSet(t *testing.T) {
	got, err := LoadEmbeddedTileMatrixSet(WebMercatorQuad)
	require.NoError(t, err)
	require.Equal(t, WebMercatorQuad, got.ID)
	require.Equal(t, "3857", got.CRS.AuthorityCode())
	require.Equal(t, "EPSG", got.CRS.AuthorityName())
	require.Len(t, got.TileMatrices, 20)
	require.NotNil(t, got.BoundingBox)
	require.Equal(t, TwoDPoint{-originShift, -originShift}, got.BoundingBox.LowerLeft)

	for zoom, tm := range got.TileMatrices {
		require.Equal(t, fmt.Sprint(zoom), tm.ID)
		require.Equal(t, uint(1)<<zoom, tm.MatrixWidth)
		require.Equal(t, tm.MatrixWidth, tm.MatrixHeight)
		require.Equal(t, TopLeft, tm.CornerOfOrigin)
		require.Equal(t, uint(256), tm.TileWidth)
	}

	_, err = LoadEmbeddedTileMatrixSet("NoSuchQuad")
	require.Error(t, err)
}

func TestParseTileMatrixSet(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		wantErr bool
	}{
		{
			name: "defaults for tile size and corner",
			json: `{"id": "Tiny", "crs": {"uri": "http://www.opengis.net/def/crs/EPSG/0/3857"},
				"tileMatrices": [{"id": "0", "scaleDenominator": 1, "cellSize": 1, "pointOfOrigin": [0, 512], "matrixWidth": 2, "matrixHeight": 2}]}`,
		},
		{
			name:    "missing crs",
			json:    `{"id": "Tiny", "tileMatrices": [{"id": "0", "scaleDenominator": 1, "cellSize": 1, "pointOfOrigin": [0, 0], "matrixWidth": 1, "matrixHeight": 1}]}`,
			wantErr: true,
		},
		{
			name:    "non numeric matrix id",
			json:    `{"id": "Tiny", "crs": "urn:ogc:def:crs:EPSG::3857", "tileMatrices": [{"id": "a", "scaleDenominator": 1, "cellSize": 1, "pointOfOrigin": [0, 0], "matrixWidth": 1, "matrixHeight": 1}]}`,
			wantErr: true,
		},
		{
			name:    "invalid matrix",
			json:    `{"id": "Tiny", "crs": "urn:ogc:def:crs:EPSG::3857", "tileMatrices": [{"id": "0", "scaleDenominator": 1, "cellSize": 0, "pointOfOrigin": [0, 0], "matrixWidth": 1, "matrixHeight": 1}]}`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTileMatrixSet([]byte(tt.json))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tm := got.TileMatrices[0]
			assert.Equal(t, uint(256), tm.TileWidth)
			assert.Equal(t, uint(256), tm.TileHeight)
			assert.Equal(t, TopLeft, tm.CornerOfOrigin)
		})
	}
}

func TestTileMatrixSet_ZoomRange(t *testing.T) {
	tms, err := LoadEmbeddedTileMatrixSet(WebMercatorQuad)
	require.NoError(t, err)
	minZoom, maxZoom := tms.ZoomRange()
	assert.Equal(t, 0, minZoom)
	assert.Equal(t, 19, maxZoom)

	empty := TileMatrixSet{}
	minZoom, maxZoom = empty.ZoomRange()
	assert.Greater(t, minZoom, maxZoom)
}

func TestTileMatrixSet_Contains(t *testing.T) {
	tms, err := LoadEmbeddedTileMatrixSet(WebMercatorQuad)
	require.NoError(t, err)
	assert.True(t, tms.Contains(0, 0, 0))
	assert.True(t, tms.Contains(13, 8191, 8191))
	assert.False(t, tms.Contains(13, 8192, 0))
	assert.False(t, tms.Contains(13, -1, 0))
	assert.False(t, tms.Contains(20, 0, 0))

	w, h, ok := tms.TilePixels(13)
	require.True(t, ok)
	assert.Equal(t, uint(256), w)
	assert.Equal(t, uint(256), h)
	_, _, ok = tms.TilePixels(25)
	assert.False(t, ok)
}
