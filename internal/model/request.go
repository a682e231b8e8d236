package model

import "fmt"

// RequesterID identifies the user on whose behalf a job runs.
// It is the unit of admission control.
type RequesterID string

// TargetKind tells whether a request targets one item or a collection.
type TargetKind int

const (
	// TargetItem requests a single item.
	TargetItem TargetKind = iota

	// TargetCollection requests every item of a collection (an album).
	TargetCollection
)

func (k TargetKind) String() string {
	switch k {
	case TargetItem:
		return "item"
	case TargetCollection:
		return "collection"
	default:
		return fmt.Sprintf("TargetKind(%d)", int(k))
	}
}

// DownloadRequest is one inbound trigger: who asked, and for what.
//
// Requests are immutable and are discarded once the job terminates.
type DownloadRequest struct {
	Requester RequesterID
	Kind      TargetKind

	// Item is the target when Kind is TargetItem.
	Item ItemDescriptor

	// CollectionID is the identifier (or page URL) handed to the
	// resolver when Kind is TargetCollection.
	CollectionID string
}

// NewItemRequest creates a request for a single item.
func NewItemRequest(requester RequesterID, item ItemDescriptor) DownloadRequest {
	return DownloadRequest{Requester: requester, Kind: TargetItem, Item: item}
}

// NewCollectionRequest creates a request for a whole collection.
func NewCollectionRequest(requester RequesterID, collectionID string) DownloadRequest {
	return DownloadRequest{Requester: requester, Kind: TargetCollection, CollectionID: collectionID}
}

// Target returns a printable identifier of what was requested.
func (r DownloadRequest) Target() string {
	if r.Kind == TargetCollection {
		return r.CollectionID
	}
	if r.Item.URL != "" {
		return r.Item.URL
	}
	return r.Item.ID
}
