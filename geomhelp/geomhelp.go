package geomhelp

import (
	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/wkt"
	"github.com/muesli/reflow/truncate"
)

// WktMustEncode encodes g as WKT, truncated to maxLen characters when maxLen > 0.
func WktMustEncode(g geom.Geometry, maxLen uint) string {
	if maxLen == 0 {
		return wkt.MustEncode(g)
	}
	return truncate.StringWithTail(wkt.MustEncode(g), maxLen, "...")
}

// ExtentWkt returns the extent as a WKT polygon, or an empty string for a nil extent.
func ExtentWkt(e *geom.Extent, maxLen uint) string {
	if e == nil {
		return ""
	}
	return WktMustEncode(e.AsPolygon(), maxLen)
}
