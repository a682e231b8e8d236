package dto

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/handiism/bandcamp-courier/internal/model"
)

// DefaultQuality is the only stream Bandcamp serves without a purchase.
const DefaultQuality = "mp3-128"

// JSONTrack represents a track from Bandcamp's JSON data.
type JSONTrack struct {
	ID        int64             `json:"id"`
	TrackID   int64             `json:"track_id"`
	Artist    string            `json:"artist"`
	Duration  float64           `json:"duration"`
	File      map[string]string `json:"file"`
	Lyrics    string            `json:"lyrics"`
	Number    *int              `json:"track_num"`
	Title     string            `json:"title"`
	TitleLink string            `json:"title_link"`
}

// MediaURL returns the stream for quality, falling back to DefaultQuality.
// URLs starting with "//" get an https scheme.
func (jt *JSONTrack) MediaURL(quality string) string {
	if len(jt.File) == 0 {
		return ""
	}
	u, ok := jt.File[quality]
	if !ok || u == "" {
		u = jt.File[DefaultQuality]
	}
	if strings.HasPrefix(u, "//") {
		u = "https:" + u
	}
	return u
}

// ToItem converts the track to a model.ItemDescriptor. position is the
// 1-based index of the track on its page.
func (jt *JSONTrack) ToItem(position int, pageURL, quality string) model.ItemDescriptor {
	id := jt.ID
	if id == 0 {
		id = jt.TrackID
	}

	item := model.ItemDescriptor{
		ID:       strconv.FormatInt(id, 10),
		URL:      resolveLink(pageURL, jt.TitleLink),
		MediaURL: jt.MediaURL(quality),
		Title:    jt.Title,
		Artist:   jt.Artist,
		Position: position,
		Duration: jt.Duration,
		Lyrics:   jt.Lyrics,
	}
	if id == 0 {
		item.ID = "track-" + strconv.Itoa(position)
	}
	if jt.Number != nil && *jt.Number > 0 {
		item.TrackNumber = strconv.Itoa(*jt.Number)
	}
	return item
}

func resolveLink(base, link string) string {
	if link == "" {
		return base
	}
	b, err := url.Parse(base)
	if err != nil {
		return link
	}
	ref, err := url.Parse(link)
	if err != nil {
		return link
	}
	return b.ResolveReference(ref).String()
}
