// Package download provides the download orchestration: fetching single
// items with retries, fanning out over collections, and running whole
// jobs from admission to delivery.
//
// # Manager
//
// The Manager runs one job per request:
//
//  1. Admit the requester (one running job per requester)
//  2. Fetch the item, or resolve the collection and fetch all of its items
//  3. Download cover art and tag MP3 files with ID3 metadata
//  4. Generate a playlist (optional)
//  5. Pack everything into size-bounded zip parts, or list the files
//  6. Hand the result to a Deliverer and clean up staging
//
// # Basic Usage
//
//	src := bandcamp.NewSource(afero.NewOsFs(), http.NewClient(), settings.Quality, log)
//	manager := download.NewManager(settings, src, download.Options{
//	    OnProgress: func(event download.ProgressEvent) {
//	        fmt.Println(event.Message)
//	    },
//	})
//
//	req, err := src.RequestFor("alice", "https://artist.bandcamp.com/album/name")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	delivery, err := manager.Run(ctx, req)
//
// # Fetcher
//
// Fetcher retries each item with a linear backoff, staging every item in a
// directory of its own. Collections are fetched with bounded concurrency;
// items that fail are logged and left out, and only a collection where
// nothing succeeded is an error (ErrNoItemsSucceeded).
//
// # Progress Tracking
//
// Progress is reported via a callback function that receives ProgressEvent:
//
//	type ProgressEvent struct {
//	    Message string
//	    Level   ProgressLevel // Info, Verbose, Warning, Error, Success
//	}
package download
