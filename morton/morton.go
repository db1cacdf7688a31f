// Package morton interleaves tile x and y into Z-order codes, the basis of quadkeys.
package morton

import (
	"fmt"
	"math"
	"strings"
)

type Z = uint

var (
	masks = [...]uint{
		0b0101010101010101010101010101010101010101010101010101010101010101,
		0b0011001100110011001100110011001100110011001100110011001100110011,
		0b0000111100001111000011110000111100001111000011110000111100001111,
		0b0000000011111111000000001111111100000000111111110000000011111111,
		0b0000000000000000111111111111111100000000000000001111111111111111,
		0b0000000000000000000000000000000011111111111111111111111111111111,
	}
	powersOfTwo = [...]uint{0, 1, 2, 4, 8, 16}
)

// ToZ puts the bits of x on the even and those of y on the odd positions.
func ToZ(x, y uint) (z Z, ok bool) {
	ok = x <= math.MaxUint32 && y <= math.MaxUint32
	for i := 4; i >= 0; i-- {
		x = (x | (x << powersOfTwo[i+1])) & masks[i]
		y = (y | (y << powersOfTwo[i+1])) & masks[i]
	}
	return x | (y << 1), ok
}

// Quadkey returns the base-4 digits of the Z-order code of the tile, one digit per zoom level,
// the way Bing Maps names its tiles. Zoom 0 has the empty quadkey.
func Quadkey(zoom, x, y uint) (string, error) {
	if zoom > 32 || (zoom < 32 && (x>>zoom != 0 || y>>zoom != 0)) {
		return "", fmt.Errorf("tile %d/%d/%d has no quadkey", zoom, x, y)
	}
	z, _ := ToZ(x, y)
	var sb strings.Builder
	sb.Grow(int(zoom))
	for level := int(zoom) - 1; level >= 0; level-- {
		sb.WriteByte(byte('0' + (z>>(2*level))&0b11))
	}
	return sb.String(), nil
}
