// Package plan composes tile enumeration over a zoom range into a per-zoom manifest with a size estimate.
// It performs no I/O.
package plan

import (
	"errors"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/pdok/muitiles/convert"
	"github.com/pdok/muitiles/mapslicehelp"
	"github.com/pdok/muitiles/tile"
	"github.com/pdok/muitiles/tms20"
)

var ErrInvalidZoomRange = errors.New("invalid zoom range")

type ZoomPlan struct {
	Zoom  int
	Tiles []tile.Index
}

// Manifest is what the fetch and convert stages consume.
type Manifest struct {
	BoundingBox tile.BoundingBox
	// zoom -> ZoomPlan, ascending by zoom
	Zooms      *orderedmap.OrderedMap[int, ZoomPlan]
	TotalTiles int
	// tiles that fall outside the tile matrix (around mode near the poles or the antimeridian)
	OutsideGrid    int
	BytesPerTile   int
	EstimatedBytes int64
}

// Tiles returns all tiles of the manifest, zoom by zoom.
func (m *Manifest) Tiles() []tile.Index {
	tiles := make([]tile.Index, 0, m.TotalTiles)
	for _, zp := range mapslicehelp.OrderedMapValues(m.Zooms) {
		tiles = append(tiles, zp.Tiles...)
	}
	return tiles
}

func (m *Manifest) ZoomLevels() []int {
	return mapslicehelp.OrderedMapKeys(m.Zooms)
}

type Planner struct {
	tms              tms20.TileMatrixSet
	minZoom, maxZoom int
}

// NewPlanner plans against the embedded WebMercatorQuad tile matrix set.
func NewPlanner() (*Planner, error) {
	tms, err := tms20.LoadEmbeddedTileMatrixSet(tms20.WebMercatorQuad)
	if err != nil {
		return nil, err
	}
	return NewPlannerFor(tms), nil
}

func NewPlannerFor(tms tms20.TileMatrixSet) *Planner {
	minZoom, maxZoom := tms.ZoomRange()
	return &Planner{tms: tms, minZoom: minZoom, maxZoom: maxZoom}
}

// ZoomRange is the inclusive range of zoom levels that can be planned.
func (p *Planner) ZoomRange() (minZoom, maxZoom int) {
	return p.minZoom, p.maxZoom
}

func (p *Planner) ValidateZoomRange(zoomMin, zoomMax int) error {
	if zoomMin > zoomMax {
		return fmt.Errorf("%w: min %d > max %d", ErrInvalidZoomRange, zoomMin, zoomMax)
	}
	if zoomMin < p.minZoom || zoomMax > p.maxZoom {
		return fmt.Errorf("%w: %d..%d outside %d..%d", ErrInvalidZoomRange, zoomMin, zoomMax, p.minZoom, p.maxZoom)
	}
	return nil
}

// Plan enumerates the tiles covering bbox for every zoom in [zoomMin, zoomMax].
// The box is clamped to the Web Mercator domain first.
func (p *Planner) Plan(bbox tile.BoundingBox, zoomMin, zoomMax int) (*Manifest, error) {
	bbox = bbox.Clamped()
	return p.build(bbox, zoomMin, zoomMax, func(zoom int) ([]tile.Index, error) {
		return tile.ForBBox(zoom, bbox.West, bbox.South, bbox.East, bbox.North), nil
	})
}

// PlanAround is Plan for the square of tiles around a center point.
func (p *Planner) PlanAround(lat, lon float64, zoomMin, zoomMax, radius int) (*Manifest, error) {
	var bbox tile.BoundingBox
	m, err := p.build(bbox, zoomMin, zoomMax, func(zoom int) ([]tile.Index, error) {
		return tile.Around(lat, lon, zoom, radius)
	})
	if err != nil {
		return nil, err
	}
	// the extent of the highest zoom is the tightest
	if last := m.Zooms.Newest(); last != nil && len(last.Value.Tiles) > 0 {
		tiles := last.Value.Tiles
		first, end := tile.Bounds(tiles[0]), tile.Bounds(tiles[len(tiles)-1])
		m.BoundingBox = tile.BoundingBox{West: first.West, North: first.North, East: end.East, South: end.South}
	}
	return m, nil
}

func (p *Planner) build(bbox tile.BoundingBox, zoomMin, zoomMax int, tilesFor func(zoom int) ([]tile.Index, error)) (*Manifest, error) {
	if err := p.ValidateZoomRange(zoomMin, zoomMax); err != nil {
		return nil, err
	}
	m := &Manifest{
		BoundingBox: bbox.Normalized(),
		Zooms:       orderedmap.New[int, ZoomPlan](orderedmap.WithCapacity[int, ZoomPlan](zoomMax - zoomMin + 1)),
	}
	for zoom := zoomMin; zoom <= zoomMax; zoom++ {
		tiles, err := tilesFor(zoom)
		if err != nil {
			return nil, err
		}
		m.Zooms.Set(zoom, ZoomPlan{Zoom: zoom, Tiles: tiles})
		for _, t := range tiles {
			if !p.tms.Contains(t.Zoom, t.X, t.Y) {
				m.OutsideGrid++
			}
		}
	}

	m.TotalTiles = mapslicehelp.SumOrderedMap(m.Zooms, func(zp ZoomPlan) int { return len(zp.Tiles) })
	m.EstimatedBytes = mapslicehelp.SumOrderedMap(m.Zooms, func(zp ZoomPlan) int64 {
		return int64(len(zp.Tiles)) * int64(p.bytesPerTile(zp.Zoom))
	})
	m.BytesPerTile = p.bytesPerTile(zoomMin)
	return m, nil
}

func (p *Planner) bytesPerTile(zoom int) int {
	w, h, ok := p.tms.TilePixels(zoom)
	if !ok {
		return 0
	}
	return convert.PackedSize(w, h)
}

// Plan uses a WebMercatorQuad planner, see Planner.Plan.
func Plan(bbox tile.BoundingBox, zoomMin, zoomMax int) (*Manifest, error) {
	p, err := NewPlanner()
	if err != nil {
		return nil, err
	}
	return p.Plan(bbox, zoomMin, zoomMax)
}
