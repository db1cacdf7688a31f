// Package processing takes care of the logistics around downloading, converting and storing tiles.
// Not the fetching or converting itself.
package processing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdok/muitiles/convert"
	"github.com/pdok/muitiles/fetch"
	"github.com/pdok/muitiles/tile"
	"github.com/pdok/muitiles/tms20"
	"github.com/pdok/muitiles/tree"
)

var ErrNoSource = errors.New("no source image and no fetcher")

type Options struct {
	// URL template with {z}, {x} and {y}
	Template string
	// extension of the downloaded images
	SourceExt string `default:"png"`
	// keep the downloaded images next to the converted ones
	KeepSource bool
	// politeness delay between downloads
	Delay time.Duration
}

// Stats are safe to read while the pipeline runs.
type Stats struct {
	Total      atomic.Int64
	Downloaded atomic.Int64
	Converted  atomic.Int64
	Skipped    atomic.Int64
	Failed     atomic.Int64
}

func (s *Stats) String() string {
	return fmt.Sprintf("total=%d downloaded=%d converted=%d skipped=%d failed=%d",
		s.Total.Load(), s.Downloaded.Load(), s.Converted.Load(), s.Skipped.Load(), s.Failed.Load())
}

type Pipeline struct {
	// nil means only images already in the store are converted
	Fetcher   fetch.Fetcher
	Converter convert.Converter
	Store     tree.Store
	// tiles outside the grid are counted as failed without a request, nil disables the check
	Grid    *tms20.TileMatrixSet
	Options Options
	Logger  zerolog.Logger
}

type fetched struct {
	tile tile.Index
	data []byte
}

// Run reads the tiles from the source and fetches, converts and stores each of them.
// Converted tiles are passed on to the targets. Failures are counted, not returned;
// the returned error is the context error when the run was canceled.
func (p *Pipeline) Run(ctx context.Context, source Source, targets ...Target) (*Stats, error) {
	stats := &Stats{}
	tilesIn := make(chan tile.Index)
	tilesFetched := make(chan fetched)
	tilesDone := make(chan tile.Index)

	wg := sync.WaitGroup{}
	wg.Add(1)
	var targetErr error
	go func() {
		defer wg.Done()
		targetErr = writeTilesToTargets(tilesDone, targets)
	}()
	go p.convertTiles(ctx, tilesFetched, tilesDone, stats)
	go p.fetchTiles(ctx, tilesIn, tilesFetched, stats)
	go source.ReadTiles(ctx, tilesIn)

	wg.Wait()

	p.Logger.Info().
		Int64("total", stats.Total.Load()).
		Int64("downloaded", stats.Downloaded.Load()).
		Int64("converted", stats.Converted.Load()).
		Int64("skipped", stats.Skipped.Load()).
		Int64("failed", stats.Failed.Load()).
		Msg("done")

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	return stats, targetErr
}

// fetchTiles gets the source image of every tile, from the store when a usable copy is present.
// Downloads are sequential with a politeness delay in between.
func (p *Pipeline) fetchTiles(ctx context.Context, tilesIn <-chan tile.Index, tilesOut chan<- fetched, stats *Stats) {
	defer close(tilesOut)
	ext := p.Options.SourceExt
	downloads := 0
	for t := range tilesIn {
		stats.Total.Add(1)
		log := p.Logger.With().Stringer("tile", t).Logger()

		if p.Grid != nil && !p.Grid.Contains(t.Zoom, t.X, t.Y) {
			stats.Failed.Add(1)
			log.Warn().Msg("tile outside the grid")
			continue
		}
		if p.Store.Present(t, convert.Extension(), convert.MinValidSize) {
			stats.Skipped.Add(1)
			log.Debug().Msg("already converted")
			continue
		}

		var data []byte
		var err error
		if p.Store.Present(t, ext, fetch.MinTileSize) {
			data, err = p.Store.Read(t, ext)
		} else {
			data, err = p.download(ctx, t, downloads)
			downloads++
			if err == nil {
				stats.Downloaded.Add(1)
			}
		}
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			stats.Failed.Add(1)
			log.Warn().Err(err).Msg("fetch failed")
			continue
		}

		select {
		case tilesOut <- fetched{tile: t, data: data}:
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pipeline) download(ctx context.Context, t tile.Index, previous int) ([]byte, error) {
	if p.Fetcher == nil {
		return nil, ErrNoSource
	}
	if previous > 0 {
		if err := fetch.Politely(ctx, p.Options.Delay); err != nil {
			return nil, err
		}
	}
	data, err := p.Fetcher.Fetch(ctx, fetch.URL(p.Options.Template, t))
	if err != nil {
		return nil, err
	}
	// stored until converted, so a failed conversion does not cost another download
	if err = p.Store.Write(t, p.Options.SourceExt, data); err != nil {
		return nil, err
	}
	return data, nil
}

// convertTiles converts and stores the fetched images and passes the stored tiles on.
func (p *Pipeline) convertTiles(ctx context.Context, tilesIn <-chan fetched, tilesOut chan<- tile.Index, stats *Stats) {
	defer close(tilesOut)
	for f := range tilesIn {
		log := p.Logger.With().Stringer("tile", f.tile).Logger()

		packed, err := p.Converter.Convert(ctx, f.data)
		if err == nil && !convert.Valid(packed) {
			err = &convert.ConversionError{Converter: p.Converter.Name(), Err: fmt.Errorf("output of %d bytes is too small", len(packed))}
		}
		if err == nil {
			err = p.Store.Write(f.tile, convert.Extension(), packed)
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			stats.Failed.Add(1)
			log.Warn().Err(err).Msg("convert failed")
			continue
		}
		stats.Converted.Add(1)
		log.Debug().Int("bytes", len(packed)).Msg("converted")

		if !p.Options.KeepSource {
			if err = p.Store.Remove(f.tile, p.Options.SourceExt); err != nil {
				log.Warn().Err(err).Msg("could not remove source image")
			}
		}

		select {
		case tilesOut <- f.tile:
		case <-ctx.Done():
			return
		}
	}
}

// writeTilesToTargets distributes the converted tiles over the targets, each in its own goroutine.
func writeTilesToTargets(tiles <-chan tile.Index, targets []Target) error {
	targetChannels := make([]chan tile.Index, len(targets))
	errs := make([]error, len(targets))
	wg := sync.WaitGroup{}

	for i, target := range targets {
		targetChannel := make(chan tile.Index)
		targetChannels[i] = targetChannel
		wg.Add(1)
		go func(i int, target Target) {
			defer wg.Done()
			errs[i] = target.WriteTiles(targetChannel)
			// keep draining so a failing target does not stall the others
			for range targetChannel { //nolint:revive
			}
		}(i, target)
	}

	for t := range tiles {
		for _, targetChannel := range targetChannels {
			targetChannel <- t
		}
	}

	// close the channels, the targets will do their last writing
	for _, targetChannel := range targetChannels {
		close(targetChannel)
	}

	wg.Wait()
	return errors.Join(errs...)
}
