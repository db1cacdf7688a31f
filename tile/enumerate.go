package tile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pdok/muitiles/mathhelp"
)

var (
	ErrInvalidRadius      = errors.New("radius must be >= 0")
	ErrInvalidBoundingBox = errors.New("invalid bounding box")
	ErrUnknownMode        = errors.New("unknown enumeration mode")
)

type Mode string

const (
	ModeAround Mode = "around"
	ModeBBox   Mode = "bbox"
)

// Request holds the parameters for either enumeration mode.
// Lat, Lon and Radius are used by ModeAround, BoundingBox by ModeBBox.
type Request struct {
	Mode        Mode
	Zoom        int
	Lat         float64
	Lon         float64
	Radius      int
	BoundingBox BoundingBox
}

func Enumerate(req Request) ([]Index, error) {
	switch req.Mode {
	case ModeAround:
		return Around(req.Lat, req.Lon, req.Zoom, req.Radius)
	case ModeBBox:
		b := req.BoundingBox
		return ForBBox(req.Zoom, b.West, b.South, b.East, b.North), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, req.Mode)
	}
}

// Around returns the (2*radius+1)^2 tiles centered on the tile containing lat, lon.
// Ordered x-major, y-minor, ascending.
func Around(lat, lon float64, zoom, radius int) ([]Index, error) {
	if radius < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRadius, radius)
	}
	c := Project(lat, lon, zoom)
	return rect(zoom, c.X-radius, c.X+radius, c.Y-radius, c.Y+radius), nil
}

// ForBBox returns every tile intersecting the box at the given zoom level.
// The edges may be passed in any order. Ordered x-major, y-minor, ascending.
func ForBBox(zoom int, west, south, east, north float64) []Index {
	topLeft := Project(north, west, zoom)
	bottomRight := Project(south, east, zoom)
	// y grows southwards while latitude grows northwards, and the edges may be swapped
	// on input, so neither corner is guaranteed to be the minimum
	minX, maxX := mathhelp.Sorted2(topLeft.X, bottomRight.X)
	minY, maxY := mathhelp.Sorted2(topLeft.Y, bottomRight.Y)
	return rect(zoom, minX, maxX, minY, maxY)
}

func rect(zoom, minX, maxX, minY, maxY int) []Index {
	tiles := make([]Index, 0, (maxX-minX+1)*(maxY-minY+1))
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			tiles = append(tiles, Index{Zoom: zoom, X: x, Y: y})
		}
	}
	return tiles
}

// ParseBoundingBox parses "west,south,east,north".
func ParseBoundingBox(s string) (BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BoundingBox{}, fmt.Errorf("%w: expected west,south,east,north, got %q", ErrInvalidBoundingBox, s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BoundingBox{}, fmt.Errorf("%w: coordinate %d of %q: %v", ErrInvalidBoundingBox, i, s, err)
		}
		v[i] = f
	}
	return BoundingBox{West: v[0], South: v[1], East: v[2], North: v[3]}, nil
}
