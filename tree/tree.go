// Package tree handles the map/<z>/<x>/<y>.<ext> folder tree that is copied to the SD card.
package tree

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/pdok/muitiles/tile"
)

const MapDir = "map"

var (
	ErrInvalidRange = errors.New("invalid range")
	ErrMissingZoom  = errors.New("missing zoom directory")
)

// Store is a tile tree rooted at Root (the directory containing the zoom directories).
type Store struct {
	Root string
}

func New(root string) Store {
	return Store{Root: root}
}

// ForExport returns the store under out/map.
func ForExport(out string) Store {
	return Store{Root: filepath.Join(out, MapDir)}
}

func (s Store) Path(t tile.Index, ext string) string {
	return t.Path(s.Root, ext)
}

// Present tells whether the tile file exists and is larger than minSize bytes.
func (s Store) Present(t tile.Index, ext string, minSize int64) bool {
	info, err := os.Stat(s.Path(t, ext))
	return err == nil && info.Mode().IsRegular() && info.Size() > minSize
}

func (s Store) Read(t tile.Index, ext string) ([]byte, error) {
	return os.ReadFile(s.Path(t, ext))
}

// Write stores data for the tile, creating the x directory when needed.
func (s Store) Write(t tile.Index, ext string, data []byte) error {
	p := s.Path(t, ext)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644) //nolint:gosec
}

func (s Store) Remove(t tile.Index, ext string) error {
	err := os.Remove(s.Path(t, ext))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Range is an inclusive integer range.
type Range struct {
	Min, Max int
}

// ParseRange parses "a..b" or a single "a".
func ParseRange(s string) (Range, error) {
	s = strings.TrimSpace(s)
	a, b, found := strings.Cut(s, "..")
	lo, err := strconv.Atoi(strings.TrimSpace(a))
	if err != nil {
		return Range{}, fmt.Errorf("%w %q: %v", ErrInvalidRange, s, err)
	}
	if !found {
		return Range{Min: lo, Max: lo}, nil
	}
	hi, err := strconv.Atoi(strings.TrimSpace(b))
	if err != nil {
		return Range{}, fmt.Errorf("%w %q: %v", ErrInvalidRange, s, err)
	}
	if hi < lo {
		return Range{}, fmt.Errorf("%w %q: end before start", ErrInvalidRange, s)
	}
	return Range{Min: lo, Max: hi}, nil
}

func (r Range) String() string {
	return fmt.Sprintf("%d..%d", r.Min, r.Max)
}

func (r Range) Len() int {
	return r.Max - r.Min + 1
}

// Report summarises a verification. Checked and Missing are only filled when ranges were given.
type Report struct {
	Zoom      int
	Extension string
	Found     int
	MinSize   int64
	MaxSize   int64
	Checked   int
	Missing   []tile.Index
	Ranged    bool
}

func (r *Report) add(size int64) {
	if r.Found == 0 || size < r.MinSize {
		r.MinSize = size
	}
	if r.Found == 0 || size > r.MaxSize {
		r.MaxSize = size
	}
	r.Found++
}

// OK is false when tiles in the checked ranges are missing.
func (r *Report) OK() bool {
	return len(r.Missing) == 0
}

// Verify counts the tiles of one zoom level. With both ranges set every tile in them is
// checked for presence; otherwise all files with the extension are counted.
func (s Store) Verify(zoom int, ext string, xRange, yRange *Range) (*Report, error) {
	zdir := filepath.Join(s.Root, strconv.Itoa(zoom))
	if info, err := os.Stat(zdir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrMissingZoom, zdir)
	}
	ext = strings.TrimPrefix(ext, ".")
	report := &Report{Zoom: zoom, Extension: ext}

	if xRange != nil && yRange != nil {
		report.Ranged = true
		for x := xRange.Min; x <= xRange.Max; x++ {
			for y := yRange.Min; y <= yRange.Max; y++ {
				t := tile.Index{Zoom: zoom, X: x, Y: y}
				report.Checked++
				info, err := os.Stat(s.Path(t, ext))
				if err != nil {
					report.Missing = append(report.Missing, t)
					continue
				}
				report.add(info.Size())
			}
		}
		return report, nil
	}

	err := filepath.WalkDir(zdir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || filepath.Ext(p) != "."+ext {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		report.add(info.Size())
		return nil
	})
	return report, err
}

// List returns the tiles of one zoom level that have a file with the extension,
// in x-major, y-minor order. Files not named <x>/<y>.<ext> are ignored.
func (s Store) List(zoom int, ext string) ([]tile.Index, error) {
	zdir := filepath.Join(s.Root, strconv.Itoa(zoom))
	ext = "." + strings.TrimPrefix(ext, ".")
	xdirs, err := os.ReadDir(zdir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingZoom, err)
	}
	var tiles []tile.Index
	for _, xdir := range xdirs {
		x, err := strconv.Atoi(xdir.Name())
		if err != nil || !xdir.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(zdir, xdir.Name()))
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if f.IsDir() || filepath.Ext(f.Name()) != ext {
				continue
			}
			y, err := strconv.Atoi(strings.TrimSuffix(f.Name(), ext))
			if err != nil {
				continue
			}
			tiles = append(tiles, tile.Index{Zoom: zoom, X: x, Y: y})
		}
	}
	slices.SortFunc(tiles, func(a, b tile.Index) int {
		if a.X != b.X {
			return cmp.Compare(a.X, b.X)
		}
		return cmp.Compare(a.Y, b.Y)
	})
	return tiles, nil
}
