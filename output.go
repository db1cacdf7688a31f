package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/truncate"

	"github.com/pdok/muitiles/geomhelp"
	"github.com/pdok/muitiles/mapslicehelp"
	"github.com/pdok/muitiles/plan"
	"github.com/pdok/muitiles/region"
	"github.com/pdok/muitiles/tree"
)

const (
	displayNameWidth = 60
	wktWidth         = 160
)

// humanBytes renders sizes like "10 MB".
func humanBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

func printManifest(w io.Writer, m *plan.Manifest) {
	for _, zp := range mapslicehelp.OrderedMapValues(m.Zooms) {
		if len(zp.Tiles) == 0 {
			continue
		}
		first, last := zp.Tiles[0], zp.Tiles[len(zp.Tiles)-1]
		fmt.Fprintf(w, "z=%-2d x=%d..%d y=%d..%d tiles=%s\n",
			zp.Zoom, first.X, last.X, first.Y, last.Y, humanize.Comma(int64(len(zp.Tiles))))
	}
	fmt.Fprintf(w, "bbox=%s\n", m.BoundingBox)
	fmt.Fprintf(w, "area=%s\n", geomhelp.ExtentWkt(m.BoundingBox.Extent(), wktWidth))
	fmt.Fprintf(w, "total tiles=%s estimated size=%s (%s per tile)\n",
		humanize.Comma(int64(m.TotalTiles)), humanBytes(m.EstimatedBytes), humanBytes(int64(m.BytesPerTile)))
	if m.OutsideGrid > 0 {
		fmt.Fprintf(w, "%d tile(s) fall outside the grid and will be skipped\n", m.OutsideGrid)
	}
}

func printCandidates(w io.Writer, ranked []region.ScoredCandidate) {
	for i, sc := range ranked {
		fmt.Fprintf(w, "%2d) %-*s score=%-3d type=%s\n", i+1, displayNameWidth,
			truncate.StringWithTail(sc.Candidate.DisplayName, displayNameWidth, "..."), sc.Score, sc.Candidate.AddressType)
	}
}

func printReport(w io.Writer, r *tree.Report) {
	fmt.Fprintf(w, "found=%d files ext=.%s z=%d\n", r.Found, r.Extension, r.Zoom)
	if r.Found > 0 {
		fmt.Fprintf(w, "min_size=%d (%s) max_size=%d (%s)\n",
			r.MinSize, humanBytes(r.MinSize), r.MaxSize, humanBytes(r.MaxSize))
	}
	if r.Ranged {
		fmt.Fprintf(w, "checked=%d missing=%d\n", r.Checked, len(r.Missing))
	}
}
