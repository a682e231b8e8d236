package archive

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/handiism/bandcamp-courier/internal/metrics"
)

// DefaultCapacity is the default part capacity: 48 MiB.
const DefaultCapacity int64 = 48 << 20

// Entry is one file to put into an archive.
type Entry struct {
	// Path is the source file on the packer's filesystem.
	Path string

	// Name is the destination name inside the archive. Slashes create
	// folders. An empty name falls back to the base name of Path.
	Name string

	// Priority entries are placed ahead of all others, first in part 1.
	Priority bool
}

func (e Entry) nameInArchive() string {
	if e.Name != "" {
		return e.Name
	}
	return path.Base(strings.ReplaceAll(e.Path, "\\", "/"))
}

// PlannedEntry is an Entry with the size committed for it.
type PlannedEntry struct {
	Entry
	Size int64
}

// Part is one capacity-bounded archive.
type Part struct {
	// Number is 1-based, in creation order.
	Number  int
	Entries []PlannedEntry

	// Size is the sum of the entry sizes. It never exceeds the plan capacity.
	Size int64
}

// Plan is the partitioning of a set of entries into parts.
type Plan struct {
	Capacity int64
	Parts    []*Part
	Skipped  []SkippedEntry
}

// Err joins the per-entry reports of skipped entries. It is nil when
// nothing was skipped.
func (p *Plan) Err() error {
	if p == nil || len(p.Skipped) == 0 {
		return nil
	}
	errs := make([]error, len(p.Skipped))
	for i, s := range p.Skipped {
		errs[i] = s
	}
	return errors.Join(errs...)
}

// Size returns the total size committed across all parts.
func (p *Plan) Size() int64 {
	var total int64
	for _, part := range p.Parts {
		total += part.Size
	}
	return total
}

// Entries returns the number of placed entries.
func (p *Plan) Entries() int {
	n := 0
	for _, part := range p.Parts {
		n += len(part.Entries)
	}
	return n
}

// Packer groups files into size-bounded zip archives.
type Packer struct {
	fs       afero.Fs
	capacity int64
	log      logrus.FieldLogger
}

// NewPacker creates a Packer. A non-positive capacity selects DefaultCapacity.
func NewPacker(afs afero.Fs, capacity int64, log logrus.FieldLogger) *Packer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Packer{fs: afs, capacity: capacity, log: log}
}

// Capacity returns the part capacity in bytes.
func (p *Packer) Capacity() int64 {
	return p.capacity
}

// Plan distributes entries over parts with a greedy first-fit in input
// order, priority entries first.
//
// An entry that fits the current part is appended to it. Otherwise the
// current part is closed and the entry opens a new one. Entries bigger
// than the capacity, and entries whose source is missing, are reported in
// Plan.Skipped and do not stop planning. Destination names are made unique
// across the plan.
//
// The result depends only on the input order, the file sizes and the
// capacity. ErrNothingToPack is returned if no entry could be placed.
func (p *Packer) Plan(entries []Entry) (*Plan, error) {
	if len(entries) == 0 {
		return nil, ErrNothingToPack
	}

	plan := &Plan{Capacity: p.capacity}
	names := NewNameSet()

	var current *Part
	closePart := func() {
		if current != nil && len(current.Entries) > 0 {
			plan.Parts = append(plan.Parts, current)
		}
		current = nil
	}

	for _, e := range prioritized(entries) {
		size, err := p.sizeOf(e.Path)
		if err != nil {
			plan.Skipped = append(plan.Skipped, SkippedEntry{Entry: e, Err: fmt.Errorf("%w: %w", ErrEntryMissing, err)})
			metrics.EntriesSkipped.WithLabelValues(metrics.ReasonMissing).Inc()
			continue
		}
		if size > p.capacity {
			plan.Skipped = append(plan.Skipped, SkippedEntry{Entry: e, Size: size, Err: ErrEntryTooLarge})
			metrics.EntriesSkipped.WithLabelValues(metrics.ReasonTooLarge).Inc()
			p.log.WithFields(logrus.Fields{
				"entry":    e.nameInArchive(),
				"size":     humanize.IBytes(uint64(size)),
				"capacity": humanize.IBytes(uint64(p.capacity)),
			}).Warn("Entry too large for an archive part, skipping")
			continue
		}

		if current != nil && current.Size+size > p.capacity {
			closePart()
		}
		if current == nil {
			current = &Part{Number: len(plan.Parts) + 1}
		}

		e.Name = names.Unique(e.nameInArchive())
		current.Entries = append(current.Entries, PlannedEntry{Entry: e, Size: size})
		current.Size += size
	}
	closePart()

	if len(plan.Parts) == 0 {
		if skipped := plan.Err(); skipped != nil {
			return nil, fmt.Errorf("%w: %w", ErrNothingToPack, skipped)
		}
		return nil, ErrNothingToPack
	}

	p.log.WithFields(logrus.Fields{
		"parts":   len(plan.Parts),
		"entries": plan.Entries(),
		"skipped": len(plan.Skipped),
		"size":    humanize.IBytes(uint64(plan.Size())),
	}).Debug("Planned archive")

	return plan, nil
}

func (p *Packer) sizeOf(name string) (int64, error) {
	info, err := p.fs.Stat(name)
	if err != nil {
		return 0, err
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%s: %w", name, fs.ErrInvalid)
	}
	return info.Size(), nil
}

// prioritized returns entries with the priority ones moved to the front.
// Relative order is kept within both groups.
func prioritized(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Priority {
			out = append(out, e)
		}
	}
	for _, e := range entries {
		if !e.Priority {
			out = append(out, e)
		}
	}
	return out
}

// NameSet hands out destination names that are unique ignoring case.
type NameSet map[string]struct{}

// NewNameSet creates an empty NameSet.
func NewNameSet() NameSet {
	return make(NameSet)
}

// Unique returns name, or name with " (n)" before its extension if it
// was already taken.
func (s NameSet) Unique(name string) string {
	candidate := name
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 2; ; n++ {
		if _, taken := s[strings.ToLower(candidate)]; !taken {
			s[strings.ToLower(candidate)] = struct{}{}
			return candidate
		}
		candidate = fmt.Sprintf("%s (%d)%s", stem, n, ext)
	}
}
