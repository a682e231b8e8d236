package ioutils

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"
)

// maxNameBytes keeps names well below the 255 byte limit of common filesystems.
const maxNameBytes = 200

var (
	invalidChars   = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	trailingDots   = regexp.MustCompile(`\.+$`)
	whitespaceRuns = regexp.MustCompile(`\s+`)
)

// CopyFile copies src to dst on afs, creating dst's parent directories.
//
// The destination file is created with mode 0644, or truncated if it
// exists. ctx is checked before the copy starts.
//
// Example:
//
//	err := CopyFile(ctx, afs, "/tmp/job/1.mp3", "/srv/out/01 - Artist - Song.mp3")
func CopyFile(ctx context.Context, afs afero.Fs, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sourceFile, err := afs.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	if err := EnsureDir(afs, filepath.Dir(dst)); err != nil {
		return err
	}

	destFile, err := afs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		_ = destFile.Close()
		return err
	}
	return destFile.Close()
}

// MoveFile moves src to dst. A rename is tried first; when it fails (for
// example across devices) the file is copied and src removed.
func MoveFile(ctx context.Context, afs afero.Fs, src, dst string) error {
	if err := EnsureDir(afs, filepath.Dir(dst)); err != nil {
		return err
	}
	if err := afs.Rename(src, dst); err == nil {
		return nil
	}
	if err := CopyFile(ctx, afs, src, dst); err != nil {
		return err
	}
	return afs.Remove(src)
}

// WriteFile writes data to path on afs, creating parent directories.
//
// Example:
//
//	err := WriteFile(ctx, afs, "/tmp/job/Album.m3u", []byte("#EXTM3U\n..."))
func WriteFile(ctx context.Context, afs afero.Fs, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := EnsureDir(afs, filepath.Dir(path)); err != nil {
		return err
	}
	return afero.WriteFile(afs, path, data, 0o644)
}

// SanitizeFileName removes or replaces characters that are invalid in file/folder names.
//
// The following transformations are applied:
//   - Invalid characters (<>:"/\|?* and control chars 0x00-0x1f) → underscore
//   - Trailing dots → removed (Windows limitation)
//   - Whitespace runs → single space
//   - Leading and trailing whitespace → removed
//   - Names longer than 200 bytes are cut on a rune boundary
//
// Example:
//
//	SanitizeFileName("Song: Part 1/2")      // Returns "Song_ Part 1_2"
//	SanitizeFileName("Track...")            // Returns "Track"
//	SanitizeFileName("Name   with  spaces") // Returns "Name with spaces"
func SanitizeFileName(name string) string {
	name = invalidChars.ReplaceAllString(name, "_")
	name = whitespaceRuns.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	name = trailingDots.ReplaceAllString(name, "")
	name = strings.TrimRight(name, " ")

	if len(name) > maxNameBytes {
		cut := maxNameBytes
		for cut > 0 && !isRuneStart(name[cut]) {
			cut--
		}
		name = strings.TrimRight(name[:cut], " .")
	}

	return name
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// EnsureDir creates a directory and all parent directories if they don't exist.
//
// Directories are created with mode 0755. If the directory already exists,
// no error is returned.
func EnsureDir(afs afero.Fs, path string) error {
	return afs.MkdirAll(path, 0o755)
}
