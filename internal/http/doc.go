// Package http provides an HTTP client configured for Bandcamp requests.
//
// The Client in this package handles:
//   - User-Agent headers for Bandcamp compatibility
//   - Streaming downloads into an afero filesystem
//   - Short-body detection against Content-Length
//
// # Basic Usage
//
//	client := http.NewClient()
//
//	// Fetch HTML page
//	html, err := client.GetString(ctx, "https://artist.bandcamp.com/album/name")
//
//	// Download file with progress callback
//	n, err := client.DownloadFile(ctx, afero.NewOsFs(), mp3URL, "/tmp/job/1.mp3", nil)
//
// Non-200 responses are reported as *StatusError.
package http
