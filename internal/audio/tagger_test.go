package audio

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bogem/id3v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handiism/bandcamp-courier/internal/model"
)

// fakeMP3 writes a file that looks like an untagged MPEG stream.
func fakeMP3(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "1.mp3")
	frame := append([]byte{0xFF, 0xFB, 0x90, 0x64}, bytes.Repeat([]byte{0}, 1020)...)
	require.NoError(t, os.WriteFile(path, bytes.Repeat(frame, 4), 0o644))
	return path
}

func TestTagger_SaveTags(t *testing.T) {
	path := fakeMP3(t)
	r := &model.ItemResult{Path: path, Title: "Song", Artist: "Artist", TrackNumber: "3", Lyrics: "la la"}
	album := &model.Collection{Title: "Album", Artist: "Album Artist", ReleaseDate: time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC)}

	require.NoError(t, NewTagger(nil).SaveTags(r, album, []byte{0xFF, 0xD8, 0xFF}))

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(t, err)
	defer tag.Close()

	assert.Equal(t, "Song", tag.Title())
	assert.Equal(t, "Artist", tag.Artist())
	assert.Equal(t, "Album", tag.Album())
	assert.Equal(t, "3", tag.GetTextFrame("TRCK").Text)
	assert.Equal(t, "Album Artist", tag.GetTextFrame("TPE2").Text)
	assert.Len(t, tag.GetFrames(tag.CommonID("Attached picture")), 1)
}

func TestTagger_StandaloneItem(t *testing.T) {
	path := fakeMP3(t)
	r := &model.ItemResult{Path: path, Title: "Single", Artist: "Artist", Position: 1}

	require.NoError(t, NewTagger(nil).SaveTags(r, nil, nil))

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(t, err)
	defer tag.Close()

	assert.Equal(t, "Single", tag.Title())
	assert.Empty(t, tag.Album())
	assert.Equal(t, "1", tag.GetTextFrame("TRCK").Text)
}

func TestTagger_MissingFile(t *testing.T) {
	r := &model.ItemResult{Path: filepath.Join(t.TempDir(), "missing.mp3")}
	assert.Error(t, NewTagger(nil).SaveTags(r, nil, nil))
}

func TestProbeTags(t *testing.T) {
	path := fakeMP3(t)
	r := &model.ItemResult{Path: path, Title: "Probed", Artist: "Someone", TrackNumber: "7"}
	require.NoError(t, NewTagger(nil).SaveTags(r, &model.Collection{Title: "Record"}, nil))

	tags, err := ProbeTags(afero.NewOsFs(), path)
	require.NoError(t, err)

	assert.Equal(t, "Probed", tags.Title)
	assert.Equal(t, "Someone", tags.Artist)
	assert.Equal(t, "Record", tags.Album)
	assert.Equal(t, "7", tags.TrackNumber)
}

func TestProbeTags_NoTags(t *testing.T) {
	afs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(afs, "/plain.bin", bytes.Repeat([]byte("x"), 64), 0o644))

	_, err := ProbeTags(afs, "/plain.bin")
	assert.ErrorIs(t, err, ErrNoTags)
}

func TestProbeTags_InMemoryFiles(t *testing.T) {
	afs := afero.NewMemMapFs()
	files := map[string][]byte{
		"/empty.mp3": nil,
		"/short.mp3": []byte("audio bytes of t1"),
		"/long.mp3":  bytes.Repeat([]byte("y"), 4096),
	}
	for name, data := range files {
		require.NoError(t, afero.WriteFile(afs, name, data, 0o644))
	}

	for name := range files {
		assert.NotPanics(t, func() {
			_, err := ProbeTags(afs, name)
			assert.Error(t, err, name)
		})
	}
}
