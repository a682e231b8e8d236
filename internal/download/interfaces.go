package download

import (
	"context"

	"github.com/handiism/bandcamp-courier/internal/model"
)

// Resolver looks up catalog metadata.
type Resolver interface {
	// ResolveItem returns the transfer records for one item. More than one
	// record means the lookup was ambiguous; the first one is used.
	ResolveItem(ctx context.Context, item model.ItemDescriptor) ([]model.TransferInfo, error)

	// ResolveCollection returns a collection and its items in catalog order.
	ResolveCollection(ctx context.Context, id string) (*model.Collection, error)
}

// Transferer downloads the media of one item.
type Transferer interface {
	// Download writes the media into destDir and returns the file path.
	// quality is a hint; a transferer may ignore it.
	Download(ctx context.Context, info model.TransferInfo, destDir, quality string) (string, error)
}

// ArtworkSource downloads cover images.
type ArtworkSource interface {
	Artwork(ctx context.Context, url string) ([]byte, error)
}

// Source is a catalog able to resolve, transfer and provide artwork.
type Source interface {
	Resolver
	Transferer
	ArtworkSource
}

// Deliverer hands finished files to their recipient.
type Deliverer interface {
	// Deliver takes ownership of files, which all live below root, and
	// returns where they ended up.
	Deliver(ctx context.Context, root string, files []string) ([]string, error)
}
