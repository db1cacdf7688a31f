package processing

import (
	"context"

	"github.com/pdok/muitiles/tile"
)

// Source produces the tiles to process and closes the channel when done.
type Source interface {
	ReadTiles(ctx context.Context, tiles chan<- tile.Index)
}

// Target receives every tile that was converted successfully.
type Target interface {
	WriteTiles(tiles <-chan tile.Index) error
}

// Tiles is a Source over a fixed list.
type Tiles []tile.Index

func (t Tiles) ReadTiles(ctx context.Context, tiles chan<- tile.Index) {
	defer close(tiles)
	for _, idx := range t {
		select {
		case tiles <- idx:
		case <-ctx.Done():
			return
		}
	}
}
