package convert

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLVGLImageArgs(t *testing.T) {
	l := NewLVGLImage("python3", "/opt/lvgl/scripts/LVGLImage.py", zerolog.Nop())
	assert.Equal(t,
		[]string{"/opt/lvgl/scripts/LVGLImage.py", "map/13/7536/4915.png", "--ofmt", "BIN", "--cf", "RGB565", "-o", "map/13/7536", "--name", "4915"},
		l.Args("map/13/7536/4915.png", "map/13/7536", "4915"))
}

func TestLVGLImageCheck(t *testing.T) {
	l := NewLVGLImage("python3", filepath.Join(t.TempDir(), "missing.py"), zerolog.Nop())
	assert.ErrorIs(t, l.Check(), ErrMissingProgram)
}

// fakeScript stands in for LVGLImage.py: it copies the input to <dir>/<name>.bin
func fakeScript(t *testing.T, body string) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("no sh available")
	}
	script := filepath.Join(t.TempDir(), "LVGLImage.sh")
	require.NoError(t, os.WriteFile(script, []byte(body), 0o600))
	return script
}

func TestLVGLImageConvert(t *testing.T) {
	script := fakeScript(t, "cp \"$1\" \"$7/$9.bin\"\n")
	l := NewLVGLImage("sh", script, zerolog.Nop())
	require.NoError(t, l.Check())

	src := []byte("\x89PNG pretend image")
	packed, err := l.Convert(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, src, packed)
}

func TestLVGLImageConvertFails(t *testing.T) {
	script := fakeScript(t, "echo broken >&2\nexit 3\n")
	_, err := NewLVGLImage("sh", script, zerolog.Nop()).Convert(context.Background(), []byte("x"))
	var convErr *ConversionError
	require.True(t, errors.As(err, &convErr))
	assert.Equal(t, "lvglimage", convErr.Converter)
}

func TestSniffExtension(t *testing.T) {
	assert.Equal(t, "png", sniffExtension([]byte("\x89PNG\r\n")))
	assert.Equal(t, "jpg", sniffExtension([]byte{0xff, 0xd8, 0xff}))
	assert.Equal(t, "webp", sniffExtension([]byte("RIFF\x00\x00\x00\x00WEBPVP8 ")))
	assert.Equal(t, "png", sniffExtension(nil))
}
