package download

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMetadata is returned when the resolver yields no usable
	// transfer record. The attempt counts as failed.
	ErrInvalidMetadata = errors.New("invalid metadata")

	// ErrEmptyTransfer is returned when a transfer reported success but
	// left no file, or an empty one.
	ErrEmptyTransfer = errors.New("transfer produced no data")

	// ErrFetchFailed and ErrExhaustedRetries are both matched by a
	// *FetchError.
	ErrFetchFailed      = errors.New("fetch failed")
	ErrExhaustedRetries = errors.New("retries exhausted")

	// ErrNoItemsSucceeded is returned when not a single item of a batch
	// could be fetched.
	ErrNoItemsSucceeded = errors.New("no items succeeded")
)

// FetchError reports an item or collection lookup that failed on every
// attempt. It unwraps to the error of the last attempt.
type FetchError struct {
	// ItemID is the item ID, or the collection identifier for a failed
	// collection lookup.
	ItemID   string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s failed after %d attempts: %v", e.ItemID, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is match ErrFetchFailed and ErrExhaustedRetries.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailed || target == ErrExhaustedRetries
}
