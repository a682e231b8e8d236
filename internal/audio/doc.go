// Package audio provides audio file services: ID3 tag writing, tag
// probing and playlist generation.
//
// # ID3 Tagging
//
//	tagger := audio.NewTagger(audio.DefaultTagConfig())
//	err := tagger.SaveTags(result, album, coverJPEG)
//
// # Tag Probing
//
// ProbeTags reads whatever metadata a downloaded file already carries.
// It is used to fill in titles and artists the catalog did not report:
//
//	tags, err := audio.ProbeTags(afs, result.Path)
//
// # Playlist Generation
//
//	creator := audio.NewPlaylistCreator(audio.FormatM3U, true) // extended M3U
//	content := creator.CreatePlaylist(audio.Playlist{Title: "Album", Items: items})
//
// Supported formats:
//   - M3U (with optional extended info)
//   - PLS
//   - WPL (Windows Media Player)
//   - ZPL (Zune Media Player)
package audio
