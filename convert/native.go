package convert

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // register decoders
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var ErrImageTooLarge = errors.New("image dimensions exceed the header limits")

// Native encodes tiles in-process. Images that are not Width x Height are rescaled.
// Transparent pixels are flattened onto Background.
type Native struct {
	Width      uint
	Height     uint
	Background color.Color
}

func NewNative(width, height uint) *Native {
	return &Native{Width: width, Height: height, Background: color.White}
}

func (n *Native) Name() string {
	return "native"
}

func (n *Native) Convert(ctx context.Context, src []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, &ConversionError{Converter: n.Name(), Err: fmt.Errorf("decode: %w", err)}
	}

	width, height := n.Width, n.Height
	if width == 0 || height == 0 {
		b := img.Bounds()
		width, height = uint(b.Dx()), uint(b.Dy())
	}
	if width > 0xffff || height > 0xffff {
		return nil, &ConversionError{Converter: n.Name(), Err: ErrImageTooLarge}
	}

	rgba := image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	bg := n.Background
	if bg == nil {
		bg = color.White
	}
	draw.Draw(rgba, rgba.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	if img.Bounds().Dx() == int(width) && img.Bounds().Dy() == int(height) {
		draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(rgba, rgba.Bounds(), img, img.Bounds(), draw.Over, nil)
	}

	return EncodeRGB565(rgba), nil
}

// EncodeRGB565 writes the LVGL v9 header followed by the little endian RGB565 pixels, row by row.
func EncodeRGB565(img *image.RGBA) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	stride := w * BytesPerPixel

	out := make([]byte, HeaderSize+stride*h)
	out[0] = magic
	out[1] = colorRGB565
	binary.LittleEndian.PutUint16(out[2:], 0) // flags
	binary.LittleEndian.PutUint16(out[4:], uint16(w))
	binary.LittleEndian.PutUint16(out[6:], uint16(h))
	binary.LittleEndian.PutUint16(out[8:], uint16(stride))
	binary.LittleEndian.PutUint16(out[10:], 0) // reserved

	i := HeaderSize
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBAAt(x, y)
			binary.LittleEndian.PutUint16(out[i:], RGB565(c.R, c.G, c.B))
			i += BytesPerPixel
		}
	}
	return out
}

// RGB565 packs 8 bit channels into 5-6-5 bits.
func RGB565(r, g, b uint8) uint16 {
	return uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
}

// Header is the decoded LVGL v9 image header.
type Header struct {
	Magic       uint8
	ColorFormat uint8
	Flags       uint16
	Width       uint16
	Height      uint16
	Stride      uint16
}

// ReadHeader decodes the header of a packed image.
func ReadHeader(packed []byte) (Header, error) {
	if len(packed) < HeaderSize {
		return Header{}, fmt.Errorf("packed image of %d bytes has no header", len(packed))
	}
	h := Header{
		Magic:       packed[0],
		ColorFormat: packed[1],
		Flags:       binary.LittleEndian.Uint16(packed[2:]),
		Width:       binary.LittleEndian.Uint16(packed[4:]),
		Height:      binary.LittleEndian.Uint16(packed[6:]),
		Stride:      binary.LittleEndian.Uint16(packed[8:]),
	}
	if h.Magic != magic {
		return h, fmt.Errorf("unexpected magic 0x%02x", h.Magic)
	}
	if h.ColorFormat != colorRGB565 {
		return h, fmt.Errorf("unexpected color format 0x%02x", h.ColorFormat)
	}
	return h, nil
}
