package bandcamp

import (
	"errors"
	"regexp"
	"sort"
	"strings"
)

// ErrNoAlbumFound is returned when no album or track URLs can be found on a page.
//
// This typically occurs when:
//   - The URL is not a valid Bandcamp artist/music page
//   - The artist has no published albums or tracks
var ErrNoAlbumFound = errors.New("no album found on page")

var (
	releaseLink    = regexp.MustCompile(`(/(?:album|track)/[^"&?#\s]+?)(?:"|&quot;)`)
	singleAlbumRef = regexp.MustCompile(`href="(/album/[^"?#]+)"`)
)

// Discography extracts release paths from Bandcamp artist pages.
//
// Discography handles two cases:
//  1. Music pages listing several releases
//  2. Single-album artists whose music page is the album page itself
type Discography struct{}

// NewDiscography creates a new Discography service.
func NewDiscography() *Discography {
	return &Discography{}
}

// ReleasePaths extracts the album and track paths listed on a music page,
// such as "/album/my-album" or "/track/my-track".
//
// Paths are deduplicated and returned sorted. Returns ErrNoAlbumFound if
// the page lists nothing.
func (d *Discography) ReleasePaths(musicPageHTML string) ([]string, error) {
	if isSingleAlbumPage(musicPageHTML) {
		path, err := singleAlbumPath(musicPageHTML)
		if err != nil {
			return nil, err
		}
		return []string{path}, nil
	}

	matches := releaseLink.FindAllStringSubmatch(musicPageHTML, -1)
	if len(matches) == 0 {
		return nil, ErrNoAlbumFound
	}

	return uniqueSorted(matches), nil
}

// isSingleAlbumPage reports whether a music page redirected to an album.
// Only album pages carry the "discography" sidebar.
func isSingleAlbumPage(html string) bool {
	return strings.Contains(html, `div id="discography"`)
}

func singleAlbumPath(html string) (string, error) {
	paths := uniqueSorted(singleAlbumRef.FindAllStringSubmatch(html, -1))

	switch len(paths) {
	case 0:
		return "", ErrNoAlbumFound
	case 1:
		return paths[0], nil
	}
	return "", errors.New("found multiple album URLs, expected exactly one")
}

func uniqueSorted(matches [][]string) []string {
	set := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		if len(m) > 1 {
			set[m[1]] = struct{}{}
		}
	}

	paths := make([]string, 0, len(set))
	for p := range set {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
