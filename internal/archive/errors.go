package archive

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
)

var (
	// ErrEntryTooLarge is reported for an entry bigger than the part capacity.
	// It is never fatal to the plan.
	ErrEntryTooLarge = errors.New("entry exceeds archive part capacity")

	// ErrEntryMissing is reported for an entry whose source cannot be found
	// or is not a regular file.
	ErrEntryMissing = errors.New("entry source is missing")

	// ErrNothingToPack is returned when no entry could be placed.
	ErrNothingToPack = errors.New("nothing to pack")

	// ErrPackWriteFailed is returned when writing an archive part failed.
	// No part written by the failing call is left on disk.
	ErrPackWriteFailed = errors.New("writing archive failed")
)

// SkippedEntry reports an entry left out of a plan.
type SkippedEntry struct {
	Entry Entry
	Size  int64
	Err   error
}

func (s SkippedEntry) Error() string {
	if errors.Is(s.Err, ErrEntryTooLarge) {
		return fmt.Sprintf("%s (%s): %v", s.Entry.nameInArchive(), humanize.IBytes(uint64(s.Size)), s.Err)
	}
	return fmt.Sprintf("%s: %v", s.Entry.nameInArchive(), s.Err)
}

func (s SkippedEntry) Unwrap() error {
	return s.Err
}
