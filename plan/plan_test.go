package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdok/muitiles/tile"
)

var miami = tile.BoundingBox{West: -80, South: 25, East: -79, North: 26}

func TestPlan(t *testing.T) {
	m, err := Plan(miami, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, []int{10}, m.ZoomLevels())
	assert.Equal(t, 16, m.TotalTiles)
	assert.Equal(t, 131084, m.BytesPerTile)
	assert.Equal(t, int64(16*131084), m.EstimatedBytes)
	assert.Zero(t, m.OutsideGrid)

	zp, ok := m.Zooms.Get(10)
	require.True(t, ok)
	assert.Equal(t, tile.Index{Zoom: 10, X: 284, Y: 435}, zp.Tiles[0])
	assert.Equal(t, tile.Index{Zoom: 10, X: 287, Y: 438}, zp.Tiles[15])
}

func TestPlanZoomRange(t *testing.T) {
	m, err := Plan(miami, 8, 11)
	require.NoError(t, err)
	assert.Equal(t, []int{8, 9, 10, 11}, m.ZoomLevels())

	total := 0
	for _, zoom := range m.ZoomLevels() {
		zp, _ := m.Zooms.Get(zoom)
		assert.Equal(t, zoom, zp.Zoom)
		assert.Equal(t, tile.ForBBox(zoom, -80, 25, -79, 26), zp.Tiles)
		total += len(zp.Tiles)
	}
	assert.Equal(t, total, m.TotalTiles)
	assert.Len(t, m.Tiles(), total)
	assert.Equal(t, int64(total)*131084, m.EstimatedBytes)
}

func TestPlanInvalidZoomRange(t *testing.T) {
	tests := []struct {
		name     string
		min, max int
	}{
		{"min above max", 12, 10},
		{"negative", -1, 3},
		{"too deep", 18, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Plan(miami, tt.min, tt.max)
			assert.ErrorIs(t, err, ErrInvalidZoomRange)
		})
	}
}

func TestPlanBoundaries(t *testing.T) {
	p, err := NewPlanner()
	require.NoError(t, err)
	minZoom, maxZoom := p.ZoomRange()
	assert.Equal(t, 0, minZoom)
	assert.Equal(t, 19, maxZoom)

	m, err := p.Plan(tile.BoundingBox{West: 179.9, South: -85, East: -179.9, North: 85}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, m.TotalTiles)
	assert.Equal(t, tile.BoundingBox{West: -179.9, South: -85, East: 179.9, North: 85}, m.BoundingBox)

	_, err = p.Plan(miami, 19, 19)
	assert.NoError(t, err)
}

func TestPlanAround(t *testing.T) {
	p, err := NewPlanner()
	require.NoError(t, err)
	m, err := p.PlanAround(-33.8688, 151.2093, 12, 13, 4)
	require.NoError(t, err)
	assert.Equal(t, 2*81, m.TotalTiles)
	assert.Equal(t, int64(2*81*131084), m.EstimatedBytes)

	zp, _ := m.Zooms.Get(13)
	assert.Equal(t, tile.Index{Zoom: 13, X: 7532, Y: 4911}, zp.Tiles[0])
	assert.Equal(t, tile.Index{Zoom: 13, X: 7540, Y: 4919}, zp.Tiles[80])

	lat, lon := m.BoundingBox.Center()
	assert.InDelta(t, -33.87, lat, 0.1)
	assert.InDelta(t, 151.2, lon, 0.1)
}

func TestPlanAroundOutsideGrid(t *testing.T) {
	p, err := NewPlanner()
	require.NoError(t, err)
	m, err := p.PlanAround(0, 0, 0, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 9, m.TotalTiles)
	assert.Equal(t, 8, m.OutsideGrid)

	_, err = p.PlanAround(0, 0, 0, 0, -1)
	assert.ErrorIs(t, err, tile.ErrInvalidRadius)
}
