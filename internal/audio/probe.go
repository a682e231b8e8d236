package audio

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/dhowden/tag"
	"github.com/spf13/afero"
)

// ErrNoTags is returned by ProbeTags for files without readable metadata.
var ErrNoTags = tag.ErrNoTagsFound

// Tags is the subset of embedded metadata used to fill in missing result fields.
type Tags struct {
	Title  string
	Artist string
	Album  string

	// TrackNumber is empty when the file carries none.
	TrackNumber string

	// FileType is the container reported by the tag reader, e.g. "MP3".
	FileType string
}

// minTaggedSize is the size of an ID3v1 trailer. The tag reader seeks that
// far back from the end, which not every afero file supports on shorter
// files.
const minTaggedSize = 128

// ProbeTags reads the embedded tags (ID3, MP4, FLAC, OGG) of path on afs.
//
// Files shorter than an ID3v1 trailer report ErrNoTags. A panic of the tag
// reader on a malformed file is returned as an error.
func ProbeTags(afs afero.Fs, path string) (t Tags, err error) {
	f, err := afs.Open(path)
	if err != nil {
		return Tags{}, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return Tags{}, err
	}
	if stat.Size() < minTaggedSize {
		return Tags{}, ErrNoTags
	}

	defer func() {
		if r := recover(); r != nil {
			t, err = Tags{}, fmt.Errorf("reading tags of %s: %v", path, r)
		}
	}()

	m, err := tag.ReadFrom(f)
	if err != nil {
		if errors.Is(err, tag.ErrNoTagsFound) {
			return Tags{}, ErrNoTags
		}
		return Tags{}, err
	}

	t = Tags{
		Title:    m.Title(),
		Artist:   m.Artist(),
		Album:    m.Album(),
		FileType: string(m.FileType()),
	}
	if n, _ := m.Track(); n > 0 {
		t.TrackNumber = strconv.Itoa(n)
	}
	return t, nil
}
