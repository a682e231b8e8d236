package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/mholt/archives"
	"github.com/sirupsen/logrus"

	"github.com/handiism/bandcamp-courier/internal/metrics"
)

// PartFileName returns the file name of part n out of total parts:
// "<base>.zip" when there is a single part, "<base>_part<n>.zip" otherwise.
func PartFileName(base string, n, total int) string {
	if total <= 1 {
		return base + ".zip"
	}
	return fmt.Sprintf("%s_part%d.zip", base, n)
}

// Write writes one zip file per part of plan into outDir and returns their
// paths in part order.
//
// If any part fails, the failing part and every part written before it are
// removed and an error matching ErrPackWriteFailed is returned.
func (p *Packer) Write(ctx context.Context, plan *Plan, outDir, baseName string) ([]string, error) {
	if plan == nil || len(plan.Parts) == 0 {
		return nil, ErrNothingToPack
	}

	if err := p.fs.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPackWriteFailed, err)
	}

	written := make([]string, 0, len(plan.Parts))
	for _, part := range plan.Parts {
		dst := filepath.Join(outDir, PartFileName(baseName, part.Number, len(plan.Parts)))
		log := p.log.WithFields(logrus.Fields{"part": part.Number, "archive": dst})

		if err := p.writePart(ctx, part, dst); err != nil {
			log.WithError(err).Error("Error writing archive part")
			p.discard(append(written, dst))
			return nil, fmt.Errorf("%w: part %d: %w", ErrPackWriteFailed, part.Number, err)
		}

		written = append(written, dst)
		metrics.ArchiveParts.Inc()
		metrics.ArchiveBytes.Add(float64(part.Size))
		log.WithFields(logrus.Fields{
			"entries": len(part.Entries),
			"size":    humanize.IBytes(uint64(part.Size)),
		}).Info("Wrote archive part")
	}

	return written, nil
}

// Pack plans entries and writes the resulting parts.
func (p *Packer) Pack(ctx context.Context, entries []Entry, outDir, baseName string) (*Plan, []string, error) {
	plan, err := p.Plan(entries)
	if err != nil {
		return nil, nil, err
	}
	paths, err := p.Write(ctx, plan, outDir, baseName)
	if err != nil {
		return nil, nil, err
	}
	return plan, paths, nil
}

func (p *Packer) writePart(ctx context.Context, part *Part, dst string) error {
	files := make([]archives.FileInfo, 0, len(part.Entries))
	for _, e := range part.Entries {
		info, err := p.fs.Stat(e.Path)
		if err != nil {
			return err
		}
		src := e.Path
		files = append(files, archives.FileInfo{
			FileInfo:      info,
			NameInArchive: filepath.ToSlash(e.Name),
			Open: func() (fs.File, error) {
				return p.fs.Open(src)
			},
		})
	}

	out, err := p.fs.Create(dst)
	if err != nil {
		return err
	}

	// Media files are already compressed; only text entries such as
	// playlists get deflated.
	format := archives.Zip{
		Compression:          zip.Deflate,
		SelectiveCompression: true,
	}
	if err := format.Archive(ctx, out, files); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func (p *Packer) discard(paths []string) {
	for _, name := range paths {
		if err := p.fs.Remove(name); err != nil && !isNotExist(err) {
			p.log.WithError(err).WithField("archive", name).Warn("Error removing archive part")
		}
	}
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
