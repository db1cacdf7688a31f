// Package footprint writes tile outlines to a GeoPackage so a planned or downloaded
// area can be inspected in a GIS.
package footprint

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/gpkg"
	"github.com/rs/zerolog"

	"github.com/pdok/muitiles/tile"
)

const (
	DefaultTable    = "tiles"
	DefaultPageSize = 1000
	geometryColumn  = "geom"
)

var wgs84 = gpkg.SpatialReferenceSystem{
	Name:                   "WGS 84 geodetic",
	ID:                     4326,
	Organization:           "EPSG",
	OrganizationCoordsysID: 4326,
	Definition:             `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AUTHORITY["EPSG","4326"]]`,
	Description:            "longitude/latitude coordinates in decimal degrees on the WGS 84 spheroid",
}

// Writer writes tile polygons with their z, x and y into one feature table,
// committing a transaction per page.
type Writer struct {
	Table    string
	pagesize int
	handle   *gpkg.Handle
	extent   *geom.Extent
	written  int
	logger   zerolog.Logger
}

// Create opens the GeoPackage at file and prepares the feature table.
// An existing file is only replaced when overwrite is set.
func Create(file string, overwrite bool, pagesize int, logger zerolog.Logger) (*Writer, error) {
	if overwrite {
		if err := os.Remove(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("could not remove target file: %w", err)
		}
	}
	if pagesize <= 0 {
		pagesize = DefaultPageSize
	}
	handle, err := gpkg.Open(file)
	if err != nil {
		return nil, fmt.Errorf("error opening GeoPackage: %w", err)
	}
	w := &Writer{Table: DefaultTable, pagesize: pagesize, handle: handle, logger: logger}
	if err = w.createTable(); err != nil {
		handle.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) createTable() error {
	if err := w.handle.UpdateSRS(wgs84); err != nil {
		return err
	}
	if _, err := w.handle.Exec(w.createSQL()); err != nil {
		return fmt.Errorf("error building table in target GeoPackage: %w", err)
	}
	err := w.handle.AddGeometryTable(gpkg.TableDescription{
		Name:          w.Table,
		ShortName:     w.Table,
		Description:   "tile footprints",
		GeometryField: geometryColumn,
		GeometryType:  gpkg.Polygon,
		SRS:           int32(wgs84.ID),
		Z:             gpkg.Prohibited,
		M:             gpkg.Prohibited,
	})
	if err != nil {
		return fmt.Errorf("error adding geometry table in target GeoPackage: %w", err)
	}
	return nil
}

func (w *Writer) createSQL() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "%s"(fid INTEGER PRIMARY KEY AUTOINCREMENT, zoom INTEGER NOT NULL, x INTEGER NOT NULL, y INTEGER NOT NULL, %s POLYGON);`,
		w.Table, geometryColumn)
}

func (w *Writer) insertSQL() string {
	return fmt.Sprintf(`INSERT INTO "%s"(zoom, x, y, %s) VALUES(?, ?, ?, ?)`, w.Table, geometryColumn)
}

// Polygon returns the outline of the tile in lon/lat.
func Polygon(t tile.Index) geom.Polygon {
	b := tile.Bounds(t)
	return geom.Polygon{{
		{b.West, b.South},
		{b.East, b.South},
		{b.East, b.North},
		{b.West, b.North},
	}}
}

// WriteTiles consumes the channel until it is closed.
func (w *Writer) WriteTiles(tiles <-chan tile.Index) error {
	page := make([]tile.Index, 0, w.pagesize)
	for t := range tiles {
		page = append(page, t)
		if len(page) == w.pagesize {
			if err := w.writePage(page); err != nil {
				return err
			}
			page = page[:0]
		}
	}
	return w.writePage(page)
}

// Write writes a slice of tiles page by page.
func (w *Writer) Write(tiles []tile.Index) error {
	for start := 0; start < len(tiles); start += w.pagesize {
		if err := w.writePage(tiles[start:min(start+w.pagesize, len(tiles))]); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writePage(page []tile.Index) (err error) {
	if len(page) == 0 {
		return nil
	}
	tx, err := w.handle.Begin()
	if err != nil {
		return fmt.Errorf("could not start a transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.Prepare(w.insertSQL())
	if err != nil {
		return fmt.Errorf("could not prepare a statement: %w", err)
	}
	defer stmt.Close()

	for _, t := range page {
		if err = w.insert(stmt, t); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	w.logger.Debug().Int("tiles", len(page)).Int("total", w.written).Msg("footprints written")
	return w.handle.UpdateGeometryExtent(w.Table, w.extent)
}

func (w *Writer) insert(stmt *sql.Stmt, t tile.Index) error {
	polygon := Polygon(t)
	sb, err := gpkg.NewBinary(int32(wgs84.ID), polygon)
	if err != nil {
		return fmt.Errorf("could not create a binary geometry for %s: %w", t, err)
	}
	if _, err = stmt.Exec(t.Zoom, t.X, t.Y, sb); err != nil {
		return fmt.Errorf("could not insert tile %s: %w", t, err)
	}
	w.written++
	if w.extent == nil {
		w.extent, err = geom.NewExtentFromGeometry(polygon)
		return err
	}
	return w.extent.AddGeometry(polygon)
}

// Written is the number of footprints inserted so far.
func (w *Writer) Written() int {
	return w.written
}

func (w *Writer) Close() error {
	return w.handle.Close()
}
