package dto

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/handiism/bandcamp-courier/internal/model"
)

const (
	artworkURLStart = "https://f4.bcbits.com/img/a"
	artworkURLEnd   = "_0.jpg"
)

// BandcampTime is a custom time type that handles Bandcamp's date format.
type BandcampTime struct {
	time.Time
}

// UnmarshalJSON parses Bandcamp's date format: "01 Jan 2023 00:00:00 GMT"
func (bt *BandcampTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	if s == "" {
		bt.Time = time.Time{}
		return nil
	}

	formats := []string{
		"02 Jan 2006 15:04:05 MST",
		"2 Jan 2006 15:04:05 MST",
		time.RFC3339,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			bt.Time = t
			return nil
		}
	}

	return fmt.Errorf("unable to parse date: %s", s)
}

// JSONAlbum represents the deserialized data-tralbum object of an album
// or track page.
type JSONAlbum struct {
	ID          int64          `json:"id"`
	URL         string         `json:"url"`
	ItemType    string         `json:"item_type"`
	AlbumData   *JSONAlbumData `json:"current"`
	ArtID       *int64         `json:"art_id"`
	Artist      string         `json:"artist"`
	ReleaseDate *BandcampTime  `json:"album_release_date"`
	Tracks      []JSONTrack    `json:"trackinfo"`
}

// JSONAlbumData contains album metadata.
type JSONAlbumData struct {
	AlbumTitle  string        `json:"title"`
	ReleaseDate *BandcampTime `json:"release_date"`
	PublishDate *BandcampTime `json:"publish_date"`
}

// ArtworkURL returns the full size cover location, or "" without art.
func (ja *JSONAlbum) ArtworkURL() string {
	if ja.ArtID == nil || *ja.ArtID == 0 {
		return ""
	}
	return fmt.Sprintf("%s%010d%s", artworkURLStart, *ja.ArtID, artworkURLEnd)
}

func (ja *JSONAlbum) releaseDate() time.Time {
	switch {
	case ja.ReleaseDate != nil:
		return ja.ReleaseDate.Time
	case ja.AlbumData != nil && ja.AlbumData.ReleaseDate != nil:
		return ja.AlbumData.ReleaseDate.Time
	case ja.AlbumData != nil && ja.AlbumData.PublishDate != nil:
		return ja.AlbumData.PublishDate.Time
	}
	return time.Time{}
}

// ToCollection converts the page data to a model.Collection.
//
// pageURL is used when the JSON carries no url, and to make track links
// absolute. quality selects the stream; see JSONTrack.MediaURL. Tracks
// without a stream (not playable without purchase) are listed in
// Collection.Unavailable instead of Items.
func (ja *JSONAlbum) ToCollection(pageURL, quality string) *model.Collection {
	c := &model.Collection{
		ID:          strconv.FormatInt(ja.ID, 10),
		URL:         ja.URL,
		Artist:      ja.Artist,
		ArtworkURL:  ja.ArtworkURL(),
		ReleaseDate: ja.releaseDate(),
	}
	if c.URL == "" {
		c.URL = pageURL
	}
	if ja.AlbumData != nil {
		c.Title = ja.AlbumData.AlbumTitle
	}

	for i, jt := range ja.Tracks {
		item := jt.ToItem(i+1, c.URL, quality)
		if item.MediaURL == "" {
			c.Unavailable = append(c.Unavailable, item.Title)
			continue
		}
		c.Items = append(c.Items, item)
	}

	return c
}
