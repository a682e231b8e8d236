package bandcamp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/handiism/bandcamp-courier/internal/http"
	ioutils "github.com/handiism/bandcamp-courier/internal/io"
	"github.com/handiism/bandcamp-courier/internal/metrics"
	"github.com/handiism/bandcamp-courier/internal/model"
)

// ErrUnsupportedURL is returned for links that are not Bandcamp album,
// track or artist pages.
var ErrUnsupportedURL = errors.New("unsupported url")

const (
	pageTTL         = 5 * time.Minute
	cleanupInterval = 10 * time.Minute
)

// Source resolves and transfers items from Bandcamp.
//
// Pages are kept in a short-lived cache, so a retried attempt for a track
// or a cover download after an album lookup does not fetch the same page
// twice. Source is safe for concurrent use.
type Source struct {
	fs     afero.Fs
	client *http.Client
	parser *Parser
	disco  *Discography
	pages  *cache.Cache
	log    logrus.FieldLogger
}

// NewSource creates a Source writing transfers to afs.
//
// quality is the preferred stream; see dto.JSONTrack.MediaURL.
func NewSource(afs afero.Fs, client *http.Client, quality string, log logrus.FieldLogger) *Source {
	if client == nil {
		client = http.NewClient()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Source{
		fs:     afs,
		client: client,
		parser: NewParser(quality),
		disco:  NewDiscography(),
		pages:  cache.New(pageTTL, cleanupInterval),
		log:    log,
	}
}

func (s *Source) page(ctx context.Context, pageURL string) (string, error) {
	if v, ok := s.pages.Get(pageURL); ok {
		metrics.PageCache.WithLabelValues(metrics.CacheHit).Inc()
		return v.(string), nil
	}
	metrics.PageCache.WithLabelValues(metrics.CacheMiss).Inc()

	html, err := s.client.GetString(ctx, pageURL)
	if err != nil {
		return "", err
	}
	s.pages.SetDefault(pageURL, html)
	return html, nil
}

// ResolveCollection fetches and parses an album page.
func (s *Source) ResolveCollection(ctx context.Context, pageURL string) (*model.Collection, error) {
	html, err := s.page(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	c, err := s.parser.Parse(pageURL, html)
	if err != nil {
		return nil, err
	}
	if len(c.Unavailable) > 0 {
		s.log.WithFields(logrus.Fields{
			"collection":  pageURL,
			"unavailable": len(c.Unavailable),
		}).Warn("some tracks are not streamable and will be skipped")
	}
	return c, nil
}

// ResolveItem returns the transfer records for an item.
//
// A descriptor that already carries a media URL is returned as is.
// Otherwise the item page is parsed; an album page yields one record per
// streamable track, in page order.
func (s *Source) ResolveItem(ctx context.Context, item model.ItemDescriptor) ([]model.TransferInfo, error) {
	if item.MediaURL != "" {
		return []model.TransferInfo{transferInfo(item)}, nil
	}
	if item.URL == "" {
		return nil, nil
	}

	c, err := s.ResolveCollection(ctx, item.URL)
	if err != nil {
		return nil, err
	}

	infos := make([]model.TransferInfo, 0, len(c.Items))
	for _, it := range c.Items {
		info := transferInfo(it)
		if info.Artist == "" {
			info.Artist = c.Artist
		}
		if item.ID != "" && len(c.Items) == 1 {
			info.ItemID = item.ID
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func transferInfo(item model.ItemDescriptor) model.TransferInfo {
	return model.TransferInfo{
		ItemID:      item.ID,
		MediaURL:    item.MediaURL,
		Title:       item.Title,
		Artist:      item.Artist,
		TrackNumber: item.TrackNumber,
	}
}

// Download streams one item into destDir and returns the file path.
//
// The file is named after the item ID. When the record has no extension
// one is derived from quality.
func (s *Source) Download(ctx context.Context, info model.TransferInfo, destDir, quality string) (string, error) {
	ext := info.Extension
	if ext == "" {
		ext = extensionFor(quality)
	}
	dest := filepath.Join(destDir, ioutils.SanitizeFileName(info.ItemID)+ext)

	n, err := s.client.DownloadFile(ctx, s.fs, info.MediaURL, dest, nil)
	if err != nil {
		return dest, err
	}
	s.log.WithFields(logrus.Fields{"item": info.ItemID, "bytes": n}).Debug("transfer complete")
	return dest, nil
}

// Artwork downloads a cover image.
func (s *Source) Artwork(ctx context.Context, artworkURL string) ([]byte, error) {
	return s.client.DownloadBytes(ctx, artworkURL)
}

// extensionFor maps a Bandcamp stream name to a file extension.
func extensionFor(quality string) string {
	switch {
	case strings.HasPrefix(quality, "mp3"):
		return ".mp3"
	case quality == "flac":
		return ".flac"
	case quality == "vorbis":
		return ".ogg"
	case quality == "wav":
		return ".wav"
	case strings.HasPrefix(quality, "aac"), quality == "alac":
		return ".m4a"
	case strings.HasPrefix(quality, "aiff"):
		return ".aiff"
	}
	return ""
}

// RequestFor builds the request a link stands for: a track page becomes
// an item request and an album page a collection request.
func (s *Source) RequestFor(requester model.RequesterID, rawURL string) (model.DownloadRequest, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return model.DownloadRequest{}, fmt.Errorf("%w: %s", ErrUnsupportedURL, rawURL)
	}

	switch kind, slug := releaseKind(u.Path); kind {
	case "track":
		return model.NewItemRequest(requester, model.ItemDescriptor{ID: slug, URL: u.String()}), nil
	case "album":
		return model.NewCollectionRequest(requester, u.String()), nil
	}
	return model.DownloadRequest{}, fmt.Errorf("%w: %s", ErrUnsupportedURL, rawURL)
}

// AlbumURLs expands a link into release page URLs.
//
// Album and track links are returned unchanged. Any other link on an
// artist host is treated as the artist, and every release listed on its
// music page is returned.
func (s *Source) AlbumURLs(ctx context.Context, rawURL string) ([]string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedURL, rawURL)
	}
	if kind, _ := releaseKind(u.Path); kind != "" {
		return []string{u.String()}, nil
	}

	base := &url.URL{Scheme: u.Scheme, Host: u.Host}
	if base.Scheme == "" {
		base.Scheme = "https"
	}

	html, err := s.page(ctx, base.String()+"/music")
	if err != nil {
		return nil, err
	}
	paths, err := s.disco.ReleasePaths(html)
	if err != nil {
		return nil, err
	}

	urls := make([]string, len(paths))
	for i, p := range paths {
		urls[i] = base.String() + p
	}
	return urls, nil
}

// releaseKind returns "album" or "track" and the release slug for a page
// path, or empty strings for anything else.
func releaseKind(path string) (string, string) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || parts[1] == "" {
		return "", ""
	}
	switch parts[0] {
	case "album", "track":
		return parts[0], parts[1]
	}
	return "", ""
}
