// Package convert turns downloaded tile images into LVGL v9 binary images (RGB565, no alpha).
package convert

import (
	"context"
	"fmt"
)

const (
	// HeaderSize is the size of the LVGL v9 image header.
	HeaderSize = 12
	// BytesPerPixel for RGB565.
	BytesPerPixel = 2
	// MinValidSize is the size a converted tile must exceed to be considered valid.
	MinValidSize = 1024

	magic        = 0x19
	colorRGB565  = 0x12
	binExtension = "bin"
)

// Converter converts a source image to the packed binary format.
type Converter interface {
	Convert(ctx context.Context, src []byte) ([]byte, error)
	// Name identifies the converter in logs and flags.
	Name() string
}

// PackedSize is the size of a packed width x height image, header included.
func PackedSize(width, height uint) int {
	return int(width*height*BytesPerPixel) + HeaderSize
}

// Extension of converted files.
func Extension() string {
	return binExtension
}

type ConversionError struct {
	Converter string
	Err       error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("%s conversion failed: %v", e.Converter, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// Valid tells whether a converted result is large enough to be a real image.
func Valid(packed []byte) bool {
	return len(packed) > MinValidSize
}
