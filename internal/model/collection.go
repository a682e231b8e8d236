package model

import (
	"fmt"
	"strings"
	"time"

	ioutils "github.com/handiism/bandcamp-courier/internal/io"
)

// Collection is a caller-grouped set of items, typically an album.
//
// A collection is resolved once per job, before any item is fetched.
// Items are listed in catalog order and carry their 1-based Position.
type Collection struct {
	// ID is the catalog identifier of the collection.
	ID string

	// URL is the collection page.
	URL string

	// Title is the collection title.
	Title string

	// Artist is the collection artist, used when an item has none.
	Artist string

	// ReleaseDate is when the collection was released.
	ReleaseDate time.Time

	// ArtworkURL is the cover art location. Empty means no artwork.
	ArtworkURL string

	// Items contains every item of the collection, in catalog order.
	Items []ItemDescriptor

	// Unavailable lists titles of items the catalog shows but does not serve.
	Unavailable []string
}

// HasArtwork returns true if the collection has cover art available for download.
func (c *Collection) HasArtwork() bool {
	return c != nil && c.ArtworkURL != ""
}

// Year returns the four digit release year, or an empty string when the
// release date is unknown.
func (c *Collection) Year() string {
	if c == nil || c.ReleaseDate.IsZero() {
		return ""
	}
	return c.ReleaseDate.Format("2006")
}

// NamingConfig holds the templates used to name files inside deliverables.
//
// Both formats support placeholders that are replaced with actual values:
//   - {artist} - Item artist, falling back to the collection artist
//   - {album} - Collection title
//   - {title} - Item title
//   - {tracknum} - Ordering key (2 digits, zero-padded)
//   - {year}, {month}, {day} - Release date components
//
// Example:
//
//	cfg := NamingConfig{
//	    FolderNameFormat: "{artist} - {album} [{year}]",
//	    EntryNameFormat:  "{tracknum} - {artist} - {title}",
//	}
//	// cfg.EntryName(album, result) == "01 - Artist - Song.mp3"
type NamingConfig struct {
	// FolderNameFormat is the template for the directory holding a
	// collection inside an archive, and for the archive base name.
	FolderNameFormat string

	// EntryNameFormat is the template for an item's file name, without
	// extension.
	EntryNameFormat string
}

// DefaultNamingConfig returns the naming used when nothing is configured.
func DefaultNamingConfig() NamingConfig {
	return NamingConfig{
		FolderNameFormat: "{artist} - {album} [{year}]",
		EntryNameFormat:  "{tracknum} - {artist} - {title}",
	}
}

// FolderName renders FolderNameFormat for a collection.
//
// Empty bracket pairs left by a missing year are dropped, so an undated
// album is named "Artist - Album" rather than "Artist - Album []".
func (n NamingConfig) FolderName(c *Collection) string {
	if c == nil {
		return ""
	}
	name := n.expand(n.FolderNameFormat, c, nil)
	name = strings.NewReplacer("[]", "", "()", "").Replace(name)
	return ioutils.SanitizeFileName(strings.TrimSpace(name))
}

// EntryName renders EntryNameFormat for one result and appends its extension.
// c may be nil for standalone items.
func (n NamingConfig) EntryName(c *Collection, r *ItemResult) string {
	name := ioutils.SanitizeFileName(strings.TrimSpace(n.expand(n.EntryNameFormat, c, r)))
	return name + r.Extension
}

// BaseName returns the archive base name for a job: the folder name of the
// collection, or "{artist} - {title}" for a standalone item.
func (n NamingConfig) BaseName(c *Collection, r *ItemResult) string {
	if c != nil {
		if name := n.FolderName(c); name != "" {
			return name
		}
	}
	if r != nil {
		return ioutils.SanitizeFileName(fmt.Sprintf("%s - %s", r.Artist, r.Title))
	}
	return "download"
}

func (n NamingConfig) expand(format string, c *Collection, r *ItemResult) string {
	var artist, album, year, month, day string
	if c != nil {
		artist = c.Artist
		album = c.Title
		if !c.ReleaseDate.IsZero() {
			year = c.ReleaseDate.Format("2006")
			month = c.ReleaseDate.Format("01")
			day = c.ReleaseDate.Format("02")
		}
	}

	var title, tracknum string
	if r != nil {
		if r.Artist != "" {
			artist = r.Artist
		}
		title = r.Title
		tracknum = fmt.Sprintf("%02d", r.OrderKey())
	}

	return strings.NewReplacer(
		"{artist}", artist,
		"{album}", album,
		"{title}", title,
		"{tracknum}", tracknum,
		"{year}", year,
		"{month}", month,
		"{day}", day,
	).Replace(format)
}
