package ioutils

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"normal-file.mp3", "normal-file.mp3"},
		{"file:with:colons.mp3", "file_with_colons.mp3"},
		{"file<with>brackets.mp3", "file_with_brackets.mp3"},
		{"file/with\\slashes.mp3", "file_with_slashes.mp3"},
		{"file|with|pipes.mp3", "file_with_pipes.mp3"},
		{"file?with*wildcards.mp3", "file_with_wildcards.mp3"},
		{"file\"with\"quotes.mp3", "file_with_quotes.mp3"},
		{"trailing dots...", "trailing dots"},
		{"multiple   spaces", "multiple spaces"},
		{"trailing spaces   ", "trailing spaces"},
		{"  leading spaces", "leading spaces"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFileName(tt.input))
		})
	}
}

func TestSanitizeFileName_Truncates(t *testing.T) {
	long := strings.Repeat("é", 150) // 300 bytes

	got := SanitizeFileName(long)

	assert.LessOrEqual(t, len(got), maxNameBytes)
	assert.Equal(t, strings.Repeat("é", 100), got)
}

func TestCopyFile(t *testing.T) {
	afs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(afs, "/src/a.mp3", []byte("payload"), 0o644))

	require.NoError(t, CopyFile(context.Background(), afs, "/src/a.mp3", "/dst/nested/b.mp3"))

	got, err := afero.ReadFile(afs, "/dst/nested/b.mp3")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))

	exists, err := afero.Exists(afs, "/src/a.mp3")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCopyFile_MissingSource(t *testing.T) {
	err := CopyFile(context.Background(), afero.NewMemMapFs(), "/nope", "/dst")
	assert.Error(t, err)
}

func TestMoveFile(t *testing.T) {
	afs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(afs, "/out/a.zip", []byte("zip"), 0o644))

	require.NoError(t, MoveFile(context.Background(), afs, "/out/a.zip", "/delivery/a.zip"))

	exists, _ := afero.Exists(afs, "/out/a.zip")
	assert.False(t, exists)
	got, err := afero.ReadFile(afs, "/delivery/a.zip")
	require.NoError(t, err)
	assert.Equal(t, "zip", string(got))
}

func TestWriteFile(t *testing.T) {
	afs := afero.NewMemMapFs()

	require.NoError(t, WriteFile(context.Background(), afs, "/job/list.m3u", []byte("#EXTM3U\n")))

	got, err := afero.ReadFile(afs, "/job/list.m3u")
	require.NoError(t, err)
	assert.Equal(t, "#EXTM3U\n", string(got))
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestImageService_PrepareCover(t *testing.T) {
	svc := NewImageService()

	out, err := svc.PrepareCover(context.Background(), testPNG(t, 300, 200), 150)
	require.NoError(t, err)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 150, cfg.Width)
	assert.Equal(t, 100, cfg.Height)
}

func TestImageService_NeverEnlarges(t *testing.T) {
	svc := NewImageService()

	out, err := svc.ResizeImage(context.Background(), testPNG(t, 40, 30), 1000, 1000)
	require.NoError(t, err)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Width)
	assert.Equal(t, 30, cfg.Height)
}

func TestImageService_ConvertToJPEG(t *testing.T) {
	svc := NewImageService()

	out, err := svc.PrepareCover(context.Background(), testPNG(t, 10, 10), 0)
	require.NoError(t, err)
	_, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)

	_, err = svc.ConvertToJPEG(context.Background(), []byte("not an image"))
	assert.Error(t, err)
}
