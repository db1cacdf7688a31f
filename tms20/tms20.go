// Package tms20 reads OGC Tile Matrix Set (v2.0) definitions.
// It is the source of truth for which zoom levels exist and how large a tile is.
// See https://www.ogc.org/standard/tms/
package tms20

import (
	"embed"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strconv"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/perimeterx/marshmallow"
	"golang.org/x/exp/maps"
)

const WebMercatorQuad = "WebMercatorQuad"

var (
	//go:embed tilematrixsets/*.json
	embeddedTileMatrixSetsJSONFS embed.FS
)

// LoadEmbeddedTileMatrixSet returns one of the tile matrix sets shipped with the binary.
func LoadEmbeddedTileMatrixSet(id string) (TileMatrixSet, error) {
	tmsJSON, err := embeddedTileMatrixSetsJSONFS.ReadFile("tilematrixsets/" + id + ".json")
	if err != nil {
		return TileMatrixSet{}, fmt.Errorf("unknown tile matrix set %q: %w", id, err)
	}
	return ParseTileMatrixSet(tmsJSON)
}

// ParseTileMatrixSet decodes and validates a tile matrix set document.
func ParseTileMatrixSet(data []byte) (TileMatrixSet, error) {
	var tms TileMatrixSet
	err := json.Unmarshal(data, &tms)
	return tms, err
}

// TileMatrixSet is a definition of a tile matrix set following the Tile Matrix Set standard.
type TileMatrixSet struct {
	// Tile matrix set identifier
	ID    string `validate:"required" json:"id"`
	Title string `json:"title,omitempty"`
	// Reference to an official source for this TileMatrixSet
	URI         string   `validate:"omitempty,uri" json:"uri,omitempty"`
	OrderedAxes []string `validate:"omitempty,len=2" json:"orderedAxes"`
	// Coordinate Reference System (CRS)
	CRS               URICRS `json:"-"`
	WellKnownScaleSet string `validate:"omitempty,uri" json:"wellKnownScaleSet,omitempty"`
	// Minimum bounding rectangle surrounding the tile matrix set, in the supported CRS
	BoundingBox *TwoDBoundingBox `json:"boundingBox,omitempty"`
	// Tile matrices by zoom level
	TileMatrices map[int]TileMatrix `validate:"required,min=1" json:"-"`
}

func (tms *TileMatrixSet) UnmarshalJSON(data []byte) error {
	err := defaults.Set(tms)
	if err != nil {
		return err
	}

	specials, err := marshmallow.Unmarshal(data, tms, marshmallow.WithExcludeKnownFieldsFromMap(true))
	if err != nil {
		return err
	}

	rawCrs, ok := specials["crs"]
	if !ok {
		return fmt.Errorf(`missing key "crs"`)
	}
	tms.CRS, err = unmarshalCRS(rawCrs)
	if err != nil {
		return err
	}

	rawTileMatrices, ok := specials["tileMatrices"]
	if !ok {
		return fmt.Errorf(`missing key "tileMatrices"`)
	}
	tms.TileMatrices, err = unmarshalTileMatrices(rawTileMatrices)
	if err != nil {
		return err
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	return validate.Struct(tms)
}

func unmarshalTileMatrices(rawTileMatrices interface{}) (map[int]TileMatrix, error) {
	rawTileMatricesList, ok := rawTileMatrices.([]interface{})
	if !ok {
		return nil, fmt.Errorf(`"tileMatrices" should be an array`)
	}
	tileMatrices := make(map[int]TileMatrix, len(rawTileMatricesList))
	for _, rawTileMatrix := range rawTileMatricesList {
		rawTileMatrixMap, ok := rawTileMatrix.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf(`"tileMatrices" should be objects`)
		}
		var tileMatrix TileMatrix
		err := tileMatrix.UnmarshalJSONFromMap(rawTileMatrixMap)
		if err != nil {
			return nil, err
		}
		zoom, err := strconv.Atoi(tileMatrix.ID)
		if err != nil {
			return nil, fmt.Errorf("only zoom level ids are supported for tile matrices: %w", err)
		}
		tileMatrices[zoom] = tileMatrix
	}
	return tileMatrices, nil
}

// unmarshalCRS accepts the crs either as a plain uri string or as an object with a uri
func unmarshalCRS(rawCrs interface{}) (URICRS, error) {
	var crs URICRS
	var err error
	switch v := rawCrs.(type) {
	case string:
		err = crs.UnmarshalJSONFromMap(map[string]interface{}{"uri": v})
	case map[string]interface{}:
		err = crs.UnmarshalJSONFromMap(v)
	default:
		err = fmt.Errorf(`wrong type key "crs": %T`, rawCrs)
	}
	return crs, err
}

var (
	crsURIRegexURL = regexp.MustCompile("https?://.+/def/crs/(?P<authority>[^/]+)/[^/]+/(?P<code>[^/]+)$")
	crsURIRegexURN = regexp.MustCompile("^urn:ogc:def:crs:(?P<authority>[^:]+)::(?P<code>[^:]+)$")
)

type URICRS struct {
	description   string
	uri           string
	authorityName string
	authorityCode string
}

func (crs *URICRS) UnmarshalJSONFromMap(data interface{}) error {
	dataMap, ok := data.(map[string]interface{})
	if !ok {
		return fmt.Errorf(`data is not a map but a %T`, data)
	}

	if rawDescription, ok := dataMap["description"]; ok {
		crs.description, ok = rawDescription.(string)
		if !ok {
			return fmt.Errorf(`description property is not a string but a %T`, rawDescription)
		}
	}

	rawURI, ok := dataMap["uri"]
	if !ok {
		return fmt.Errorf(`uri property not found`)
	}
	crs.uri, ok = rawURI.(string)
	if !ok {
		return fmt.Errorf(`uri property is not a string but a %T`, rawURI)
	}

	uriParts := crsURIRegexURL.FindStringSubmatch(crs.uri)
	if uriParts == nil {
		uriParts = crsURIRegexURN.FindStringSubmatch(crs.uri)
	}
	if uriParts == nil {
		return fmt.Errorf(`could not parse crs uri "%v"`, crs.uri)
	}
	crs.authorityName = uriParts[1]
	crs.authorityCode = uriParts[2]
	return nil
}

func (crs *URICRS) Description() string {
	return crs.description
}

func (crs *URICRS) URI() string {
	return crs.uri
}

func (crs *URICRS) AuthorityName() string {
	return crs.authorityName
}

func (crs *URICRS) AuthorityCode() string {
	return crs.authorityCode
}

// Minimum bounding rectangle surrounding a 2D resource in the CRS indicated elsewhere
type TwoDBoundingBox struct {
	LowerLeft   TwoDPoint `validate:"required" json:"lowerLeft"`
	UpperRight  TwoDPoint `validate:"required" json:"upperRight"`
	CRS         URICRS    `json:"-"`
	OrderedAxes []string  `validate:"omitempty,len=2" json:"orderedAxes,omitempty"`
}

func (bb *TwoDBoundingBox) UnmarshalJSON(data []byte) error {
	specials, err := marshmallow.Unmarshal(data, bb, marshmallow.WithExcludeKnownFieldsFromMap(true))
	if err != nil {
		return err
	}
	if rawCrs, ok := specials["crs"]; ok {
		bb.CRS, err = unmarshalCRS(rawCrs)
		if err != nil {
			return err
		}
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	return validate.Struct(bb)
}

// A 2D Point in the CRS indicated elsewhere
type TwoDPoint [2]float64

func (p TwoDPoint) XY() [2]float64 {
	return p
}

// A tile matrix, usually corresponding to a particular zoom level of a TileMatrixSet.
type TileMatrix struct {
	// Identifier, the zoom level
	ID string `validate:"required" json:"id"`
	// Scale denominator of this tile matrix
	ScaleDenominator float64 `validate:"required,gt=0" json:"scaleDenominator"`
	// Cell size of this tile matrix
	CellSize float64 `validate:"required,gt=0" json:"cellSize"`
	// The corner of the tile matrix used as the origin for numbering tile rows and columns.
	CornerOfOrigin CornerOfOrigin `default:"topLeft" validate:"oneof=topLeft bottomLeft" json:"cornerOfOrigin,omitempty"`
	// Position in CRS coordinates of the corner of origin.
	PointOfOrigin TwoDPoint `validate:"required" json:"pointOfOrigin"`
	// Width and height of each tile of this tile matrix in pixels
	TileWidth  uint `default:"256" validate:"required,min=1" json:"tileWidth"`
	TileHeight uint `default:"256" validate:"required,min=1" json:"tileHeight"`
	// Number of tiles in width and height
	MatrixWidth  uint `validate:"required,min=1" json:"matrixWidth"`
	MatrixHeight uint `validate:"required,min=1" json:"matrixHeight"`
}

func (tm *TileMatrix) UnmarshalJSONFromMap(data interface{}) error {
	err := defaults.Set(tm)
	if err != nil {
		return err
	}

	dataMap, ok := data.(map[string]interface{})
	if !ok {
		return fmt.Errorf(`data is not a map but a %T`, data)
	}

	_, err = marshmallow.UnmarshalFromJSONMap(dataMap, tm, marshmallow.WithExcludeKnownFieldsFromMap(true))
	if err != nil {
		return err
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	return validate.Struct(tm)
}

type CornerOfOrigin string

const (
	TopLeft    CornerOfOrigin = "topLeft"
	BottomLeft CornerOfOrigin = "bottomLeft"
)

// ZoomRange returns the lowest and the highest zoom level defined.
func (tms *TileMatrixSet) ZoomRange() (minZoom, maxZoom int) {
	zooms := maps.Keys(tms.TileMatrices)
	if len(zooms) == 0 {
		return 0, -1
	}
	return slices.Min(zooms), slices.Max(zooms)
}

// Contains reports whether the tile exists in the matrix of its zoom level.
func (tms *TileMatrixSet) Contains(zoom, x, y int) bool {
	tm, ok := tms.TileMatrices[zoom]
	if !ok {
		return false
	}
	return x >= 0 && y >= 0 && uint(x) < tm.MatrixWidth && uint(y) < tm.MatrixHeight
}

// TilePixels returns the width and height in pixels of a tile at the given zoom level.
func (tms *TileMatrixSet) TilePixels(zoom int) (width, height uint, ok bool) {
	tm, ok := tms.TileMatrices[zoom]
	if !ok {
		return 0, 0, false
	}
	return tm.TileWidth, tm.TileHeight, true
}
