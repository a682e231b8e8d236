// Package bandcamp resolves and downloads items from Bandcamp.
//
// The package handles three use cases:
//
//  1. Parsing album/track pages into a model.Collection
//  2. Resolving items and transferring their media (Source)
//  3. Parsing artist music pages to discover all releases
//
// # Source
//
// Source implements the resolver and transferer used by the download
// package:
//
//	src := bandcamp.NewSource(afero.NewOsFs(), http.NewClient(), "mp3-128", log)
//	req, err := src.RequestFor("alice", "https://artist.bandcamp.com/album/name")
//	c, err := src.ResolveCollection(ctx, req.CollectionID)
//
// # Discography Expansion
//
//	urls, err := src.AlbumURLs(ctx, "https://artist.bandcamp.com")
//	// ["https://artist.bandcamp.com/album/first", ...]
//
// # Bandcamp Data Format
//
// Bandcamp embeds page data as JSON in a `data-tralbum` attribute. The
// parser reads it with goquery, handling Bandcamp's non-standard date
// format and fixing malformed JSON.
package bandcamp
