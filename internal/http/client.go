package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/afero"
)

// ErrShortBody is returned when a download ends before Content-Length bytes
// were received.
var ErrShortBody = errors.New("response body shorter than Content-Length")

// StatusError is returned for any response other than 200 OK.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.URL)
}

// Client wraps HTTP operations with Bandcamp-specific configuration.
//
// Client provides:
//   - Configured User-Agent header for Bandcamp compatibility
//   - Timeout handling
//   - Streaming downloads into an afero filesystem, with progress tracking
//
// Example usage:
//
//	client := NewClient()
//
//	// Fetch HTML content
//	html, err := client.GetString(ctx, "https://artist.bandcamp.com/album/name")
//
//	// Download file with progress
//	n, err := client.DownloadFile(ctx, afero.NewOsFs(), mp3URL, "/tmp/file.mp3", func(written, total int64) {
//	    fmt.Printf("%d / %d\n", written, total)
//	})
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// NewClient creates a new HTTP client configured for Bandcamp.
//
// The client is configured with:
//   - 60 second timeout
//   - "BandcampCourier" User-Agent header
func NewClient() *Client {
	return NewClientWith(&http.Client{Timeout: 60 * time.Second}, "BandcampCourier")
}

// NewClientWith creates a client on top of an existing *http.Client.
func NewClientWith(hc *http.Client, userAgent string) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{httpClient: hc, userAgent: userAgent}
}

// ProgressWriter wraps a writer to track download progress.
//
// Example:
//
//	pw := &ProgressWriter{
//	    Writer: file,
//	    Total:  contentLength,
//	    OnUpdate: func(written, total int64) {
//	        fmt.Printf("%d / %d bytes\n", written, total)
//	    },
//	}
//	io.Copy(pw, response.Body)
type ProgressWriter struct {
	// Writer is the underlying writer to write data to.
	Writer io.Writer

	// Total is the expected total bytes (from Content-Length header).
	// -1 when unknown.
	Total int64

	// Written is the current number of bytes written.
	Written int64

	// OnUpdate is called after each Write with current progress.
	OnUpdate func(written, total int64)
}

// Write implements io.Writer, tracking progress and calling OnUpdate.
func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.Written += int64(n)
	if pw.OnUpdate != nil {
		pw.OnUpdate(pw.Written, pw.Total)
	}
	return n, err
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	return resp, nil
}

// Get performs a GET request and returns the response body as bytes.
//
// Returns an error if the request fails, the response status is not
// 200 OK (a *StatusError), or reading the body fails.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// GetString performs a GET request and returns the response body as a string.
//
// Example:
//
//	html, err := client.GetString(ctx, "https://artist.bandcamp.com/album/name")
func (c *Client) GetString(ctx context.Context, url string) (string, error) {
	body, err := c.Get(ctx, url)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// DownloadFile streams url into destPath on afs and returns the number of
// bytes written.
//
// The file is created or truncated. If the server announced a
// Content-Length and fewer bytes arrived, ErrShortBody is returned. The
// caller owns destPath in every case, including on error.
func (c *Client) DownloadFile(ctx context.Context, afs afero.Fs, url, destPath string, onProgress func(written, total int64)) (int64, error) {
	resp, err := c.get(ctx, url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	file, err := afs.Create(destPath)
	if err != nil {
		return 0, err
	}

	var writer io.Writer = file
	if onProgress != nil {
		writer = &ProgressWriter{
			Writer:   file,
			Total:    resp.ContentLength,
			OnUpdate: onProgress,
		}
	}

	n, err := io.Copy(writer, resp.Body)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, err
	}
	if resp.ContentLength >= 0 && n < resp.ContentLength {
		return n, fmt.Errorf("%w: got %d of %d bytes", ErrShortBody, n, resp.ContentLength)
	}
	return n, nil
}

// DownloadBytes downloads a file and returns the bytes in memory.
//
// Use this for small files like cover art images. For media files use
// DownloadFile to stream directly to disk.
func (c *Client) DownloadBytes(ctx context.Context, url string) ([]byte, error) {
	return c.Get(ctx, url)
}
