// Package model defines the core data structures used throughout
// bandcamp-courier.
//
// # Requests
//
// A DownloadRequest names the requester and what they asked for:
//
//	req := model.NewItemRequest("42", model.ItemDescriptor{ID: "123", URL: trackURL})
//	req := model.NewCollectionRequest("42", albumURL)
//
// # Items and results
//
// ItemDescriptor identifies one downloadable item. TransferInfo is the
// resolved record a transferer needs. ItemResult is what a successful fetch
// produces:
//
//	res := &model.ItemResult{ItemID: "123", Path: "/tmp/x/123.mp3", TrackNumber: "1"}
//	res.OrderKey() // 1
//
// # Naming
//
// NamingConfig renders folder and entry names using placeholders:
//
//	cfg := model.DefaultNamingConfig()
//	cfg.FolderName(album)          // "Artist - Album [2023]"
//	cfg.EntryName(album, result)   // "01 - Artist - Song.mp3"
//
// Available placeholders: {artist}, {album}, {title}, {tracknum}, {year}, {month}, {day}
package model
