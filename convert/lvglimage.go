package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

var ErrMissingProgram = errors.New("converter program not found")

// LVGLImage runs LVGL's scripts/LVGLImage.py. The script writes into a directory
// (-o) and names the file after --name, so every conversion gets its own scratch dir.
type LVGLImage struct {
	Python string
	Script string
	Logger zerolog.Logger
}

func NewLVGLImage(python, script string, logger zerolog.Logger) *LVGLImage {
	return &LVGLImage{Python: python, Script: script, Logger: logger}
}

func (l *LVGLImage) Name() string {
	return "lvglimage"
}

// Check verifies that both the interpreter and the script exist.
func (l *LVGLImage) Check() error {
	if _, err := os.Stat(l.Script); err != nil {
		return fmt.Errorf("%w: LVGLImage.py at %s: %w", ErrMissingProgram, l.Script, err)
	}
	if _, err := exec.LookPath(l.Python); err != nil {
		return fmt.Errorf("%w: python at %s: %w", ErrMissingProgram, l.Python, err)
	}
	return nil
}

// Args returns the script invocation for converting src into dir/name.bin.
func (l *LVGLImage) Args(src, dir, name string) []string {
	return []string{l.Script, src, "--ofmt", "BIN", "--cf", "RGB565", "-o", dir, "--name", name}
}

func (l *LVGLImage) Convert(ctx context.Context, src []byte) ([]byte, error) {
	dir, err := os.MkdirTemp("", "muitiles-lvgl-")
	if err != nil {
		return nil, &ConversionError{Converter: l.Name(), Err: err}
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "tile."+sniffExtension(src))
	if err = os.WriteFile(in, src, 0o600); err != nil {
		return nil, &ConversionError{Converter: l.Name(), Err: err}
	}
	outDir := filepath.Join(dir, "out")
	if err = os.Mkdir(outDir, 0o700); err != nil {
		return nil, &ConversionError{Converter: l.Name(), Err: err}
	}

	cmd := exec.CommandContext(ctx, l.Python, l.Args(in, outDir, "tile")...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		for _, line := range strings.Split(string(out), "\n") {
			if line == "" {
				continue
			}
			l.Logger.Debug().Str("cmd", cmd.String()).Msg(line)
		}
		return nil, &ConversionError{Converter: l.Name(), Err: err}
	}

	packed, err := os.ReadFile(filepath.Join(outDir, "tile."+binExtension))
	if err != nil {
		return nil, &ConversionError{Converter: l.Name(), Err: err}
	}
	return packed, nil
}

func sniffExtension(src []byte) string {
	switch {
	case bytes.HasPrefix(src, []byte("\x89PNG")):
		return "png"
	case bytes.HasPrefix(src, []byte("\xff\xd8")):
		return "jpg"
	case len(src) > 12 && string(src[0:4]) == "RIFF" && string(src[8:12]) == "WEBP":
		return "webp"
	}
	return "png"
}
