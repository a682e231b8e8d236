package bandcamp

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/handiism/bandcamp-courier/internal/bandcamp/dto"
	"github.com/handiism/bandcamp-courier/internal/model"
)

// ErrNoPageData is returned when a page carries no data-tralbum attribute.
var ErrNoPageData = errors.New("could not find album data in page")

// concatenatedURL matches JavaScript-style string concatenation that some
// pages leave inside the embedded JSON:
//
//	url: "http://example.bandcamp.com" + "/album/name",
var concatenatedURL = regexp.MustCompile(`(url: ".+)" \+ "(.+",)`)

// Parser extracts catalog data from Bandcamp album and track pages.
//
// Bandcamp embeds page data as JSON in a data-tralbum attribute. The
// Parser reads that attribute, repairs known malformations and converts
// the result to a model.Collection. Lyrics shown only in the HTML are
// merged into the items.
//
// Example usage:
//
//	p := NewParser("mp3-128")
//	c, err := p.Parse(pageURL, html)
//	for _, item := range c.Items {
//	    fmt.Printf("%d. %s\n", item.Position, item.Title)
//	}
type Parser struct {
	quality string
}

// NewParser creates a Parser that prefers the given stream quality.
// An empty quality means dto.DefaultQuality.
func NewParser(quality string) *Parser {
	if quality == "" {
		quality = dto.DefaultQuality
	}
	return &Parser{quality: quality}
}

// Parse extracts the collection described by an album or track page.
//
// A track page yields a collection holding that single track. pageURL is
// used to make relative links absolute.
func (p *Parser) Parse(pageURL, htmlContent string) (*model.Collection, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to read page: %w", err)
	}

	raw, ok := doc.Find("[data-tralbum]").First().Attr("data-tralbum")
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, ErrNoPageData
	}

	var ja dto.JSONAlbum
	if err := json.Unmarshal([]byte(fixJSON(raw)), &ja); err != nil {
		return nil, fmt.Errorf("failed to parse album JSON: %w", err)
	}

	c := ja.ToCollection(pageURL, p.quality)
	extractLyrics(doc, c)

	return c, nil
}

func fixJSON(data string) string {
	return concatenatedURL.ReplaceAllString(data, "${1}${2}")
}

// extractLyrics fills empty Lyrics from the page.
//
// Album pages render lyrics in rows with ids like "lyrics_row_3", keyed by
// track number. Track pages have a single .lyricsText block.
func extractLyrics(doc *goquery.Document, c *model.Collection) {
	for i := range c.Items {
		item := &c.Items[i]
		if item.Lyrics != "" {
			continue
		}
		key := item.TrackNumber
		if key == "" {
			key = fmt.Sprint(item.Position)
		}
		row := doc.Find("#lyrics_row_" + key)
		if row.Length() == 0 {
			continue
		}
		item.Lyrics = strings.TrimSpace(row.Text())
	}

	if len(c.Items) == 1 && c.Items[0].Lyrics == "" {
		c.Items[0].Lyrics = strings.TrimSpace(doc.Find(".lyricsText").First().Text())
	}
}
