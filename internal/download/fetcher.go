package download

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/handiism/bandcamp-courier/internal/audio"
	ioutils "github.com/handiism/bandcamp-courier/internal/io"
	"github.com/handiism/bandcamp-courier/internal/metrics"
	"github.com/handiism/bandcamp-courier/internal/model"
	"github.com/handiism/bandcamp-courier/internal/retry"
)

const (
	defaultExtension = ".mp3"
	unknownArtist    = "Unknown Artist"
)

// FetcherConfig tunes a Fetcher.
type FetcherConfig struct {
	// Policy is the retry policy. Its MaxAttempts is used when a call
	// passes a non-positive bound.
	Policy retry.Policy

	// Quality is passed to the transferer as a hint.
	Quality string

	// StagingDir is the root below which items and collections are staged.
	StagingDir string

	// MaxConcurrency bounds the parallel fetches of a batch.
	// Zero or less means unbounded.
	MaxConcurrency int
}

// Hooks are optional callbacks a job uses to follow its fetches.
// They may be called from several goroutines at once.
type Hooks struct {
	// Resolved is called once a collection has been looked up.
	Resolved func(c *model.Collection)

	// Fetched is called for every item that was fetched successfully.
	Fetched func(r *model.ItemResult)
}

// Fetcher downloads items to staging with retries.
//
// Every item is staged in its own directory, named after its ID, which is
// owned by exactly one fetch. A failed attempt removes that directory
// before the next attempt starts, and so does exhaustion: a fetch that
// returns an error leaves nothing behind.
//
// Example:
//
//	f := NewFetcher(afs, src, src, FetcherConfig{
//	    Policy:     retry.Policy{BaseDelay: time.Second, MaxAttempts: 5},
//	    StagingDir: "/tmp/courier/job-1",
//	}, log)
//	result, err := f.Fetch(ctx, item, 0)
type Fetcher struct {
	fs         afero.Fs
	resolver   Resolver
	transferer Transferer
	cfg        FetcherConfig
	hooks      Hooks
	log        logrus.FieldLogger
}

// NewFetcher creates a Fetcher staging files on afs.
func NewFetcher(afs afero.Fs, resolver Resolver, transferer Transferer, cfg FetcherConfig, log logrus.FieldLogger) *Fetcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Fetcher{
		fs:         afs,
		resolver:   resolver,
		transferer: transferer,
		cfg:        cfg,
		log:        log,
	}
}

// ForJob returns a copy of f that stages below dir and reports to hooks.
func (f *Fetcher) ForJob(dir string, hooks Hooks, log logrus.FieldLogger) *Fetcher {
	c := *f
	c.cfg.StagingDir = dir
	c.hooks = hooks
	if log != nil {
		c.log = log
	}
	return &c
}

// StagingDir returns the root below which f stages.
func (f *Fetcher) StagingDir() string {
	return f.cfg.StagingDir
}

func (f *Fetcher) policy(maxAttempts int) retry.Policy {
	if maxAttempts > 0 {
		return f.cfg.Policy.WithAttempts(maxAttempts)
	}
	return f.cfg.Policy
}

// Fetch downloads one standalone item, trying at most maxAttempts times.
//
// The returned error is a *FetchError after exhaustion, or the context
// error if ctx ended first. In both cases the item's staging directory has
// been removed.
func (f *Fetcher) Fetch(ctx context.Context, item model.ItemDescriptor, maxAttempts int) (*model.ItemResult, error) {
	dir := filepath.Join(f.cfg.StagingDir, "item", stagingName(item))
	return f.fetchInto(ctx, item, dir, maxAttempts)
}

func (f *Fetcher) fetchInto(ctx context.Context, item model.ItemDescriptor, dir string, maxAttempts int) (*model.ItemResult, error) {
	policy := f.policy(maxAttempts)
	log := f.log.WithField("item", item.ID)

	var result *model.ItemResult
	err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		r, err := f.attempt(ctx, item, dir)
		if err != nil {
			return err
		}
		result = r
		return nil
	}, func(attempt int, err error) {
		metrics.FetchAttempts.WithLabelValues(metrics.OutcomeRetryable).Inc()
		log.WithError(err).WithField("attempt", attempt).Warn("Fetch attempt failed")
		f.discard(dir, log)
	})

	if err == nil {
		metrics.FetchAttempts.WithLabelValues(metrics.OutcomeSuccess).Inc()
		metrics.Items.WithLabelValues(metrics.ResultSucceeded).Inc()
		log.WithField("size", result.Size).Debug("Item fetched")
		if f.hooks.Fetched != nil {
			f.hooks.Fetched(result)
		}
		return result, nil
	}

	f.discard(dir, log)
	metrics.Items.WithLabelValues(metrics.ResultFailed).Inc()

	if errors.Is(err, retry.ErrExhausted) {
		metrics.FetchAttempts.WithLabelValues(metrics.OutcomeExhausted).Inc()
		log.WithError(err).Error("Giving up on item")
		return nil, &FetchError{ItemID: item.ID, Attempts: policy.Attempts(), Err: err}
	}
	return nil, fmt.Errorf("fetching %s: %w", item.ID, err)
}

// attempt performs one resolve, transfer and validate cycle.
func (f *Fetcher) attempt(ctx context.Context, item model.ItemDescriptor, dir string) (*model.ItemResult, error) {
	if err := ioutils.EnsureDir(f.fs, dir); err != nil {
		return nil, err
	}

	info, err := f.resolve(ctx, item)
	if err != nil {
		return nil, err
	}

	path, err := f.transferer.Download(ctx, info, dir, f.cfg.Quality)
	if err != nil {
		return nil, err
	}

	stat, err := f.fs.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s is missing", ErrEmptyTransfer, path)
	}
	if err != nil {
		return nil, err
	}
	if stat.IsDir() || stat.Size() == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrEmptyTransfer, path)
	}

	return f.enrich(item, info, path, stat.Size()), nil
}

func (f *Fetcher) resolve(ctx context.Context, item model.ItemDescriptor) (model.TransferInfo, error) {
	var info model.TransferInfo
	if item.MediaURL != "" {
		info = model.TransferInfo{ItemID: item.ID, MediaURL: item.MediaURL}
	} else {
		infos, err := f.resolver.ResolveItem(ctx, item)
		if err != nil {
			return info, err
		}
		if len(infos) == 0 {
			return info, fmt.Errorf("%w: no transfer record for %s", ErrInvalidMetadata, item.ID)
		}
		if len(infos) > 1 {
			f.log.WithFields(logrus.Fields{"item": item.ID, "records": len(infos)}).
				Debug("Ambiguous metadata, using the first record")
		}
		info = infos[0]
	}

	if !info.Valid() {
		return info, fmt.Errorf("%w: record for %s has no media url", ErrInvalidMetadata, item.ID)
	}
	if info.ItemID == "" {
		info.ItemID = item.ID
	}
	return info, nil
}

// enrich builds the result of a validated transfer.
//
// Title and artist prefer the transfer record, then the descriptor, then
// tags read from the file. The extension comes from the record, else from
// the sniffed content type.
func (f *Fetcher) enrich(item model.ItemDescriptor, info model.TransferInfo, path string, size int64) *model.ItemResult {
	r := &model.ItemResult{
		ItemID:      item.ID,
		Path:        path,
		Size:        size,
		TrackNumber: firstNonEmpty(info.TrackNumber, item.TrackNumber),
		Position:    item.Position,
		Title:       firstNonEmpty(info.Title, item.Title),
		Artist:      firstNonEmpty(info.Artist, item.Artist),
		Extension:   info.Extension,
		Duration:    item.Duration,
		Lyrics:      item.Lyrics,
	}

	if r.Title == "" || r.Artist == "" || r.TrackNumber == "" {
		if tags, err := audio.ProbeTags(f.fs, path); err == nil {
			r.Title = firstNonEmpty(r.Title, tags.Title)
			r.Artist = firstNonEmpty(r.Artist, tags.Artist)
			r.TrackNumber = firstNonEmpty(r.TrackNumber, tags.TrackNumber)
		}
	}
	if r.Title == "" {
		r.Title = "Track " + item.ID
	}
	if r.Artist == "" {
		r.Artist = unknownArtist
	}
	if r.Extension == "" {
		r.Extension = f.sniffExtension(path)
	}
	return r
}

func (f *Fetcher) sniffExtension(path string) string {
	file, err := f.fs.Open(path)
	if err != nil {
		return defaultExtension
	}
	defer file.Close()

	mtype, err := mimetype.DetectReader(file)
	if err != nil || mtype.Extension() == "" {
		return defaultExtension
	}
	return mtype.Extension()
}

func (f *Fetcher) discard(dir string, log logrus.FieldLogger) {
	if err := f.fs.RemoveAll(dir); err != nil {
		log.WithError(err).Warn("Could not remove staged files")
	}
}

// stagingName is the directory name of an item inside its batch.
func stagingName(item model.ItemDescriptor) string {
	if name := ioutils.SanitizeFileName(item.ID); name != "" {
		return name
	}
	return "item-" + strconv.Itoa(item.Position)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
