// Package tile maps geographic coordinates onto the slippy map (Web Mercator quad tree) tile grid
// and enumerates the tiles covering an area.
// See https://wiki.openstreetmap.org/wiki/Slippy_map_tilenames
package tile

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/slippy"

	"github.com/pdok/muitiles/mathhelp"
	"github.com/pdok/muitiles/morton"
)

const (
	// MaxLatitude is the latitude where the Web Mercator square ends.
	MaxLatitude  = 85.05112877980659
	MaxLongitude = 180.0
)

var ErrInvalidCoordinate = errors.New("coordinate outside the web mercator domain")

// Index identifies one tile in the quad tree at a given zoom level.
type Index struct {
	Zoom int `json:"z"`
	X    int `json:"x"`
	Y    int `json:"y"`
}

func (i Index) String() string {
	return fmt.Sprintf("%d/%d/%d", i.Zoom, i.X, i.Y)
}

// Path returns root/<z>/<x>/<y>.<ext>
func (i Index) Path(root, ext string) string {
	return filepath.Join(root, strconv.Itoa(i.Zoom), strconv.Itoa(i.X), strconv.Itoa(i.Y)+"."+ext)
}

// Valid reports whether the tile lies within the 2^z by 2^z grid of its zoom level.
func (i Index) Valid() bool {
	if i.Zoom < 0 || i.Zoom > 30 {
		return false
	}
	n := int(mathhelp.Pow2(uint(i.Zoom)))
	return i.X >= 0 && i.X < n && i.Y >= 0 && i.Y < n
}

// Slippy converts a valid Index into a slippy.Tile.
func (i Index) Slippy() (*slippy.Tile, bool) {
	if !i.Valid() {
		return nil, false
	}
	return slippy.NewTile(uint(i.Zoom), uint(i.X), uint(i.Y)), true
}

// Quadkey returns the Bing Maps style quadkey of the tile.
func (i Index) Quadkey() (string, error) {
	if !i.Valid() {
		return "", fmt.Errorf("%w: tile %s outside the grid", ErrInvalidCoordinate, i)
	}
	return morton.Quadkey(uint(i.Zoom), uint(i.X), uint(i.Y))
}

// Project returns the tile containing the given point at the given zoom level.
// Latitude and longitude are not clamped, out of range input gives out of grid tiles.
func Project(lat, lon float64, zoom int) Index {
	n := float64(mathhelp.Pow2(uint(zoom)))
	latRad := mathhelp.Deg2Rad(lat)
	x := mathhelp.FloorInt((lon + 180.0) / 360.0 * n)
	y := mathhelp.FloorInt((1.0 - math.Asinh(math.Tan(latRad))/math.Pi) / 2.0 * n)
	return Index{Zoom: zoom, X: x, Y: y}
}

// webMercator is the EPSG:3857 quad grid of the slippy map servers.
var webMercator = func() slippy.Grid {
	g, err := slippy.NewGrid(3857)
	if err != nil {
		panic(err)
	}
	return g
}()

// Bounds returns the geographic extent of a tile. Tiles outside the grid get
// the extent they would have if the grid went on.
func Bounds(i Index) BoundingBox {
	if st, ok := i.Slippy(); ok {
		if ext, ok := slippy.Extent(webMercator, st); ok {
			return BoundingBox{
				West:  mercatorLon(ext.MinX()),
				South: mercatorLat(ext.MinY()),
				East:  mercatorLon(ext.MaxX()),
				North: mercatorLat(ext.MaxY()),
			}
		}
	}
	return BoundingBox{
		West:  tileLon(i.X, i.Zoom),
		South: tileLat(i.Y+1, i.Zoom),
		East:  tileLon(i.X+1, i.Zoom),
		North: tileLat(i.Y, i.Zoom),
	}
}

func mercatorLon(x float64) float64 {
	return x / slippy.WebMercatorMax * 180.0
}

func mercatorLat(y float64) float64 {
	return mathhelp.Rad2Deg(math.Atan(math.Sinh(y / slippy.WebMercatorMax * math.Pi)))
}

func tileLon(x, zoom int) float64 {
	return float64(x)/float64(mathhelp.Pow2(uint(zoom)))*360.0 - 180.0
}

func tileLat(y, zoom int) float64 {
	n := math.Pi * (1 - 2*float64(y)/float64(mathhelp.Pow2(uint(zoom))))
	return mathhelp.Rad2Deg(math.Atan(math.Sinh(n)))
}

// ValidateCoordinate rejects points outside the projectable domain.
func ValidateCoordinate(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) ||
		!mathhelp.BetweenInc(lat, -MaxLatitude, MaxLatitude) ||
		!mathhelp.BetweenInc(lon, -MaxLongitude, MaxLongitude) {
		return fmt.Errorf("%w: lat=%v lon=%v", ErrInvalidCoordinate, lat, lon)
	}
	return nil
}

// BoundingBox is a west/south/east/north rectangle in degrees.
// The order of the edges is not guaranteed, see Extent.
type BoundingBox struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// Extent returns the box as a normalized extent (minx, miny, maxx, maxy) in lon/lat.
func (b BoundingBox) Extent() *geom.Extent {
	minX, maxX := mathhelp.Sorted2(b.West, b.East)
	minY, maxY := mathhelp.Sorted2(b.South, b.North)
	return &geom.Extent{minX, minY, maxX, maxY}
}

// Normalized returns the box with west <= east and south <= north.
func (b BoundingBox) Normalized() BoundingBox {
	e := b.Extent()
	return BoundingBox{West: e.MinX(), South: e.MinY(), East: e.MaxX(), North: e.MaxY()}
}

// Center returns the center of the box as lat, lon.
func (b BoundingBox) Center() (lat, lon float64) {
	return (b.South + b.North) / 2, (b.West + b.East) / 2
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("%v,%v,%v,%v", b.West, b.South, b.East, b.North)
}

// Clamped returns the normalized box limited to the Web Mercator domain. Edges
// stay just inside so they do not spill into a row or column past the grid.
func (b BoundingBox) Clamped() BoundingBox {
	const eps = 1e-9
	n := b.Normalized()
	clamp := func(v, lo, hi float64) float64 { return math.Max(math.Min(v, hi), lo) }
	return BoundingBox{
		West:  clamp(n.West, -MaxLongitude, MaxLongitude-eps),
		South: clamp(n.South, -MaxLatitude+eps, MaxLatitude-eps),
		East:  clamp(n.East, -MaxLongitude, MaxLongitude-eps),
		North: clamp(n.North, -MaxLatitude+eps, MaxLatitude-eps),
	}
}
