// Package ioutils provides file system and image processing utilities.
//
// File helpers work on an afero.Fs so that staging can live on disk in
// production and in memory in tests.
//
// # File Operations
//
//	err := ioutils.CopyFile(ctx, afs, "/src/file.mp3", "/dst/file.mp3")
//	err := ioutils.MoveFile(ctx, afs, "/src/file.zip", "/delivery/file.zip")
//	err := ioutils.WriteFile(ctx, afs, "/path/to/file.m3u", []byte("content"))
//
// # Filename Sanitization
//
//	safe := ioutils.SanitizeFileName("Song: Part 1/2") // Returns "Song_ Part 1_2"
//
// # Image Processing
//
//	svc := ioutils.NewImageService()
//	cover, err := svc.PrepareCover(ctx, imageData, 1200)
package ioutils
