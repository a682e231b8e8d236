package download

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	ioutils "github.com/handiism/bandcamp-courier/internal/io"
	"github.com/handiism/bandcamp-courier/internal/metrics"
	"github.com/handiism/bandcamp-courier/internal/model"
	"github.com/handiism/bandcamp-courier/internal/retry"
)

// Batch is the outcome of a collection fetch.
type Batch struct {
	Collection *model.Collection

	// Results holds the fetched items, in no particular order.
	Results []*model.ItemResult

	// AnyFailed is true when at least one item was given up on.
	AnyFailed bool

	// Dir is the shared staging directory of the batch.
	Dir string
}

// FetchAll fetches every item concurrently, each staged in its own
// directory below dir.
//
// All fetches run to completion: a failed item is logged and left out,
// and never cancels its siblings. anyFailed reports whether something was
// left out. When nothing succeeded dir is removed and ErrNoItemsSucceeded
// is returned.
func (f *Fetcher) FetchAll(ctx context.Context, items []model.ItemDescriptor, dir string, maxAttempts int) ([]*model.ItemResult, bool, error) {
	limit := f.cfg.MaxConcurrency
	if limit <= 0 {
		limit = -1
	}

	g := new(errgroup.Group)
	g.SetLimit(limit)

	names := stagingNames(items)
	slots := make([]*model.ItemResult, len(items))
	for i := range items {
		g.Go(f.fetchTask(ctx, items[i], filepath.Join(dir, names[i]), maxAttempts, &slots[i]))
	}
	// tasks report their failures per item and always return nil
	g.Wait()

	results := make([]*model.ItemResult, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			results = append(results, r)
		}
	}
	anyFailed := len(results) < len(items)

	if len(results) == 0 {
		f.discard(dir, f.log)
		return nil, anyFailed, fmt.Errorf("%w: %d of %d items failed", ErrNoItemsSucceeded, len(items), len(items))
	}
	return results, anyFailed, nil
}

// fetchTask returns the task fetching one item into itemDir. The
// descriptor is passed by value so every task owns its own copy.
func (f *Fetcher) fetchTask(ctx context.Context, item model.ItemDescriptor, itemDir string, maxAttempts int, out **model.ItemResult) func() error {
	return func() error {
		log := f.log.WithFields(logrus.Fields{
			"item":  item.ID,
			"title": item.Title,
		})
		defer func() {
			if p := recover(); p != nil {
				f.discard(itemDir, log)
				metrics.Items.WithLabelValues(metrics.ResultFailed).Inc()
				log.WithField("panic", p).Error("Item fetch panicked, excluded from batch")
			}
		}()

		r, err := f.fetchInto(ctx, item, itemDir, maxAttempts)
		if err != nil {
			log.WithError(err).Warn("Item excluded from batch")
			return nil
		}
		*out = r
		return nil
	}
}

// stagingNames returns one directory name per item, unique within the batch.
func stagingNames(items []model.ItemDescriptor) []string {
	names := make([]string, len(items))
	seen := make(map[string]struct{}, len(items))
	for i, item := range items {
		base := stagingName(item)
		name := base
		for n := i + 1; ; n++ {
			if _, dup := seen[name]; !dup {
				break
			}
			name = fmt.Sprintf("%s-%d", base, n)
		}
		seen[name] = struct{}{}
		names[i] = name
	}
	return names
}

// FetchCollection resolves a collection and fetches all of its items.
//
// The lookup has its own retry loop with the same policy as items; if it
// is exhausted a *FetchError is returned before any item is fetched. Items
// without an artist inherit the collection artist, and items without a
// position get their 1-based index.
func (f *Fetcher) FetchCollection(ctx context.Context, id string, maxAttempts int) (*Batch, error) {
	c, err := f.resolveCollection(ctx, id, maxAttempts)
	if err != nil {
		return nil, err
	}
	if f.hooks.Resolved != nil {
		f.hooks.Resolved(c)
	}
	if len(c.Items) == 0 {
		return nil, fmt.Errorf("%w: collection %s lists no downloadable items", ErrNoItemsSucceeded, id)
	}

	name := ioutils.SanitizeFileName(firstNonEmpty(c.ID, id))
	dir := filepath.Join(f.cfg.StagingDir, "collection", name)

	results, anyFailed, err := f.FetchAll(ctx, prepareItems(c), dir, maxAttempts)
	if err != nil {
		return nil, err
	}
	return &Batch{Collection: c, Results: results, AnyFailed: anyFailed, Dir: dir}, nil
}

func (f *Fetcher) resolveCollection(ctx context.Context, id string, maxAttempts int) (*model.Collection, error) {
	policy := f.policy(maxAttempts)
	log := f.log.WithField("collection", id)

	var c *model.Collection
	err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		got, err := f.resolver.ResolveCollection(ctx, id)
		if err != nil {
			return err
		}
		if got == nil {
			return fmt.Errorf("%w: empty response for collection %s", ErrInvalidMetadata, id)
		}
		c = got
		return nil
	}, func(attempt int, err error) {
		log.WithError(err).WithField("attempt", attempt).Warn("Collection lookup failed")
	})

	switch {
	case err == nil:
		return c, nil
	case errors.Is(err, retry.ErrExhausted):
		log.WithError(err).Error("Giving up on collection")
		return nil, &FetchError{ItemID: id, Attempts: policy.Attempts(), Err: err}
	default:
		return nil, fmt.Errorf("resolving collection %s: %w", id, err)
	}
}

// prepareItems returns a copy of the collection items with defaults filled in.
func prepareItems(c *model.Collection) []model.ItemDescriptor {
	items := make([]model.ItemDescriptor, len(c.Items))
	copy(items, c.Items)
	for i := range items {
		if items[i].Position == 0 {
			items[i].Position = i + 1
		}
		if items[i].Artist == "" {
			items[i].Artist = c.Artist
		}
	}
	return items
}
