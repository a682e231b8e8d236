package audio

import (
	"fmt"

	"github.com/bogem/id3v2"

	"github.com/handiism/bandcamp-courier/internal/model"
)

// TagEditAction defines how to handle individual ID3 tags.
type TagEditAction int

const (
	// TagEmpty clears the tag value.
	TagEmpty TagEditAction = iota

	// TagModify updates the tag with the catalog value.
	TagModify

	// TagDoNotModify leaves the existing tag value unchanged.
	TagDoNotModify
)

// TagConfig holds tagging configuration for each ID3 field.
//
// Example:
//
//	cfg := &TagConfig{
//	    ModifyTags:  true,
//	    Artist:      TagModify,      // Update artist from Bandcamp
//	    Album:       TagModify,      // Update album from Bandcamp
//	    TrackTitle:  TagModify,      // Update title from Bandcamp
//	    Comments:    TagEmpty,       // Clear any existing comments
//	    AlbumArtist: TagDoNotModify, // Keep existing album artist
//	}
type TagConfig struct {
	// ModifyTags is a master switch. If false, no text frames are modified.
	ModifyTags bool

	// Artist controls the TPE1 (Lead artist) frame.
	Artist TagEditAction

	// AlbumArtist controls the TPE2 (Album artist) frame.
	AlbumArtist TagEditAction

	// Album controls the TALB (Album title) frame.
	Album TagEditAction

	// Year controls the TYER (Year) frame.
	Year TagEditAction

	// Date controls the TDRC (Recording time) frame (ID3v2.4).
	Date TagEditAction

	// TrackNumber controls the TRCK (Track number) frame.
	TrackNumber TagEditAction

	// TrackTitle controls the TIT2 (Title) frame.
	TrackTitle TagEditAction

	// Lyrics controls the USLT (Unsynchronized lyrics) frame.
	Lyrics TagEditAction

	// Comments controls the COMM (Comments) frame.
	Comments TagEditAction
}

// DefaultTagConfig returns the default tag configuration.
//
// By default, all tags except comments are set to TagModify.
// Comments are cleared.
func DefaultTagConfig() *TagConfig {
	return &TagConfig{
		ModifyTags:  true,
		Artist:      TagModify,
		AlbumArtist: TagModify,
		Album:       TagModify,
		Year:        TagModify,
		Date:        TagModify,
		TrackNumber: TagModify,
		TrackTitle:  TagModify,
		Lyrics:      TagModify,
		Comments:    TagEmpty,
	}
}

// Tagger writes ID3 tags to staged MP3 files.
//
// Tagger works on the local filesystem only: id3v2 rewrites the file in
// place through a temporary sibling.
//
// Example:
//
//	tagger := NewTagger(DefaultTagConfig())
//	if err := tagger.SaveTags(result, album, coverJPEG); err != nil {
//	    log.WithError(err).Warn("Error tagging item")
//	}
type Tagger struct {
	config *TagConfig
}

// NewTagger creates a new Tagger with the given configuration.
//
// If config is nil, DefaultTagConfig() is used.
func NewTagger(config *TagConfig) *Tagger {
	if config == nil {
		config = DefaultTagConfig()
	}
	return &Tagger{config: config}
}

// SaveTags writes ID3 tags to the result's file.
//
// album may be nil for standalone items, in which case album frames are
// left alone. artwork is embedded as the front cover when not nil.
func (t *Tagger) SaveTags(r *model.ItemResult, album *model.Collection, artwork []byte) error {
	tag, err := id3v2.Open(r.Path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("opening tags of %s: %w", r.Path, err)
	}
	defer tag.Close()

	if t.config.ModifyTags {
		t.updateStringTags(tag, r, album)
	}

	if artwork != nil {
		t.updateArtwork(tag, artwork)
	}

	return tag.Save()
}

func (t *Tagger) updateStringTags(tag *id3v2.Tag, r *model.ItemResult, album *model.Collection) {
	switch t.config.Artist {
	case TagEmpty:
		tag.SetArtist("")
	case TagModify:
		tag.SetArtist(r.Artist)
	}

	switch t.config.TrackTitle {
	case TagEmpty:
		tag.SetTitle("")
	case TagModify:
		tag.SetTitle(r.Title)
	}

	switch t.config.TrackNumber {
	case TagEmpty:
		tag.DeleteFrames("TRCK")
	case TagModify:
		tag.AddTextFrame("TRCK", id3v2.EncodingUTF8, fmt.Sprintf("%d", r.OrderKey()))
	}

	switch t.config.Lyrics {
	case TagEmpty:
		tag.DeleteFrames(tag.CommonID("Unsynchronised lyrics/text transcription"))
	case TagModify:
		if r.Lyrics != "" {
			tag.AddUnsynchronisedLyricsFrame(id3v2.UnsynchronisedLyricsFrame{
				Encoding:          id3v2.EncodingUTF8,
				Language:          "eng",
				ContentDescriptor: "",
				Lyrics:            r.Lyrics,
			})
		}
	}

	if t.config.Comments == TagEmpty {
		tag.DeleteFrames(tag.CommonID("Comments"))
	}

	// Genre: Bandcamp pages carry none.
	tag.SetGenre("")

	if album == nil {
		return
	}

	switch t.config.Album {
	case TagEmpty:
		tag.SetAlbum("")
	case TagModify:
		tag.SetAlbum(album.Title)
	}

	switch t.config.AlbumArtist {
	case TagEmpty:
		tag.DeleteFrames("TPE2")
	case TagModify:
		tag.AddTextFrame("TPE2", id3v2.EncodingUTF8, album.Artist)
	}

	if album.ReleaseDate.IsZero() {
		return
	}

	switch t.config.Year {
	case TagEmpty:
		tag.DeleteFrames("TYER")
	case TagModify:
		tag.AddTextFrame("TYER", id3v2.EncodingUTF8, album.ReleaseDate.Format("2006"))
	}

	switch t.config.Date {
	case TagEmpty:
		tag.DeleteFrames("TDRC")
	case TagModify:
		tag.AddTextFrame("TDRC", id3v2.EncodingUTF8, album.ReleaseDate.Format("2006-01-02"))
	}
}

// updateArtwork embeds cover art as an attached picture frame.
func (t *Tagger) updateArtwork(tag *id3v2.Tag, artwork []byte) {
	tag.DeleteFrames(tag.CommonID("Attached picture"))

	tag.AddAttachedPicture(id3v2.PictureFrame{
		Encoding:    id3v2.EncodingUTF8,
		MimeType:    "image/jpeg",
		PictureType: id3v2.PTFrontCover,
		Description: "Cover",
		Picture:     artwork,
	})
}
