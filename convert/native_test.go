package convert

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngTile(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPackedSize(t *testing.T) {
	assert.Equal(t, 131084, PackedSize(256, 256))
	assert.Equal(t, 12, PackedSize(0, 0))
	assert.Equal(t, 524300, PackedSize(512, 512))
}

func TestRGB565(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b uint8
		want    uint16
	}{
		{"black", 0, 0, 0, 0x0000},
		{"white", 255, 255, 255, 0xffff},
		{"red", 255, 0, 0, 0xf800},
		{"green", 0, 255, 0, 0x07e0},
		{"blue", 0, 0, 255, 0x001f},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RGB565(tt.r, tt.g, tt.b))
		})
	}
}

func TestNativeConvert(t *testing.T) {
	n := NewNative(256, 256)
	packed, err := n.Convert(context.Background(), pngTile(t, 256, 256, color.NRGBA{R: 255, A: 255}))
	require.NoError(t, err)
	require.Len(t, packed, 131084)
	assert.True(t, Valid(packed))

	h, err := ReadHeader(packed)
	require.NoError(t, err)
	assert.Equal(t, Header{Magic: 0x19, ColorFormat: 0x12, Width: 256, Height: 256, Stride: 512}, h)
	assert.Equal(t, uint16(0xf800), binary.LittleEndian.Uint16(packed[HeaderSize:]))
	assert.Equal(t, uint16(0xf800), binary.LittleEndian.Uint16(packed[len(packed)-2:]))
}

func TestNativeConvertScales(t *testing.T) {
	n := NewNative(256, 256)
	packed, err := n.Convert(context.Background(), pngTile(t, 128, 128, color.NRGBA{B: 255, A: 255}))
	require.NoError(t, err)
	require.Len(t, packed, PackedSize(256, 256))
	assert.Equal(t, uint16(0x001f), binary.LittleEndian.Uint16(packed[HeaderSize+2*(128*256+128):]))
}

func TestNativeConvertFlattensAlpha(t *testing.T) {
	n := NewNative(0, 0)
	packed, err := n.Convert(context.Background(), pngTile(t, 64, 32, color.NRGBA{}))
	require.NoError(t, err)
	h, err := ReadHeader(packed)
	require.NoError(t, err)
	assert.Equal(t, uint16(64), h.Width)
	assert.Equal(t, uint16(32), h.Height)
	assert.Equal(t, uint16(0xffff), binary.LittleEndian.Uint16(packed[HeaderSize:]))
}

func TestNativeConvertGarbage(t *testing.T) {
	_, err := NewNative(256, 256).Convert(context.Background(), []byte("<html>rate limited</html>"))
	var convErr *ConversionError
	require.True(t, errors.As(err, &convErr))
	assert.Equal(t, "native", convErr.Converter)
}

func TestNativeConvertCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewNative(256, 256).Convert(ctx, pngTile(t, 8, 8, color.White))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadHeader(t *testing.T) {
	_, err := ReadHeader([]byte{0x19})
	assert.Error(t, err)

	bad := make([]byte, HeaderSize)
	bad[0] = 0x42
	_, err = ReadHeader(bad)
	assert.ErrorContains(t, err, "magic")

	bad[0], bad[1] = magic, 0x10
	_, err = ReadHeader(bad)
	assert.ErrorContains(t, err, "color format")
}
