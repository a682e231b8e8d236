package model

import (
	"strconv"
	"strings"
)

// ItemDescriptor identifies one downloadable item (a single track).
//
// Descriptors are immutable values: they are created when a request or a
// collection is parsed and passed by value into every fetch task.
//
// Example:
//
//	item := ItemDescriptor{
//	    ID:          "1234567",
//	    URL:         "https://artist.bandcamp.com/track/song",
//	    TrackNumber: "3",
//	    Position:    3,
//	}
type ItemDescriptor struct {
	// ID is the catalog identifier of the item. It scopes the item's
	// staging directory, so it must be unique within a job.
	ID string

	// URL is the catalog page of the item. It is used to resolve the
	// transfer record when MediaURL is not known yet.
	URL string

	// MediaURL is the direct location of the media file, if already known.
	MediaURL string

	// Title is the display title, if known before the fetch.
	Title string

	// Artist is the display artist, if known before the fetch.
	Artist string

	// TrackNumber is the raw ordering key reported by the catalog.
	// It may be empty or non-numeric.
	TrackNumber string

	// Position is the 1-based index of the item within its collection.
	// Zero for standalone items.
	Position int

	// Duration is the track length in seconds, if known.
	Duration float64

	// Lyrics contains the song lyrics, if available.
	Lyrics string
}

// TransferInfo is the resolved record the transferer needs to fetch one item.
type TransferInfo struct {
	ItemID      string
	MediaURL    string
	Title       string
	Artist      string
	TrackNumber string

	// Extension is the file extension of the media, including the dot.
	// Empty when the catalog does not say.
	Extension string
}

// Valid reports whether the record carries enough to perform a transfer.
func (t TransferInfo) Valid() bool {
	return strings.TrimSpace(t.MediaURL) != ""
}

// ItemResult represents one successfully fetched item.
//
// A result is only ever created fully populated: a fetch that cannot fill
// it in is a failed fetch. The job that created it owns the file at Path
// until it is handed to the packer or a deliverer.
type ItemResult struct {
	// ItemID is the descriptor ID the result was fetched for.
	ItemID string

	// Path is the local staged file.
	Path string

	// Size is the byte size of the staged file at validation time.
	Size int64

	// TrackNumber is the raw ordering key (see OrderKey).
	TrackNumber string

	// Position is the descriptor position within its collection.
	Position int

	Title     string
	Artist    string
	Extension string
	Duration  float64
	Lyrics    string
}

// OrderKey returns the numeric ordering key of the result.
//
// The track number is used when it parses as a positive integer.
// Otherwise the collection position is used, so items without a usable
// track number keep their natural place in the collection.
func (r *ItemResult) OrderKey() int {
	if n, ok := parseTrackNumber(r.TrackNumber); ok {
		return n
	}
	return r.Position
}

// parseTrackNumber accepts "7" as well as "7/12".
func parseTrackNumber(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
