package download

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	ioutils "github.com/handiism/bandcamp-courier/internal/io"
)

// NopDeliverer leaves files where they are.
type NopDeliverer struct{}

// Deliver returns files unchanged.
func (NopDeliverer) Deliver(_ context.Context, _ string, files []string) ([]string, error) {
	return files, nil
}

// CopyDeliverer moves finished files into a delivery directory, keeping
// their layout relative to the job root. Once every file is delivered the
// emptied root is removed.
type CopyDeliverer struct {
	fs  afero.Fs
	dir string
	log logrus.FieldLogger
}

// NewCopyDeliverer creates a CopyDeliverer writing below dir.
func NewCopyDeliverer(afs afero.Fs, dir string, log logrus.FieldLogger) *CopyDeliverer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CopyDeliverer{fs: afs, dir: dir, log: log}
}

// Deliver moves files below the delivery directory. Delivery is all or
// nothing: when a move fails, the files moved so far are put back at their
// source and no file is reported delivered.
func (d *CopyDeliverer) Deliver(ctx context.Context, root string, files []string) ([]string, error) {
	delivered := make([]string, 0, len(files))
	for i, src := range files {
		rel, err := filepath.Rel(root, src)
		if err != nil || strings.HasPrefix(rel, "..") {
			rel = filepath.Base(src)
		}
		dst := filepath.Join(d.dir, rel)

		if err := ioutils.MoveFile(ctx, d.fs, src, dst); err != nil {
			d.rollback(files[:i], delivered)
			return nil, fmt.Errorf("delivering %s: %w", rel, err)
		}
		delivered = append(delivered, dst)
	}

	if err := d.fs.RemoveAll(root); err != nil {
		d.log.WithError(err).WithField("dir", root).Warn("Failed to remove delivered job root")
	}
	return delivered, nil
}

// rollback moves delivered[i] back to sources[i].
func (d *CopyDeliverer) rollback(sources, delivered []string) {
	for i, dst := range delivered {
		// The job context may already be done; moving back must still run.
		if err := ioutils.MoveFile(context.Background(), d.fs, dst, sources[i]); err != nil {
			d.log.WithError(err).WithFields(logrus.Fields{
				"file": dst,
				"dest": sources[i],
			}).Error("Failed to roll back delivered file")
		}
	}
}
