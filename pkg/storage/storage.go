// Package storage defines the persistence contract the export pipeline writes
// tiles through: assets are created from encoded bytes, then grouped into a
// named collection. Implementations live in the memory, local and s3store
// subpackages.
package storage

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/menta2k/image-carousel/pkg/codec"
)

var (
	// ErrPermissionDenied means the store cannot be written at all
	ErrPermissionDenied = errors.New("storage: permission denied")
	// ErrCollectionNotFound is returned by GetCollection for unknown names
	ErrCollectionNotFound = errors.New("storage: collection not found")
	// ErrAssetNotFound is returned when an asset id is unknown
	ErrAssetNotFound = errors.New("storage: asset not found")
	// ErrUnsupported is returned for call shapes a store does not offer
	ErrUnsupported = errors.New("storage: operation not supported")
)

// DefaultCollection is the collection tiles go to when none is named
const DefaultCollection = "Pixert"

// CollectionKey maps a collection name to a single path segment. Distinct
// names always give distinct keys, so "a/b" and "a_b" never share storage.
func CollectionKey(name string) string {
	key := url.PathEscape(name)
	switch key {
	case "":
		// PathEscape never emits a lone '%'
		return "%"
	case ".", "..":
		return strings.ReplaceAll(key, ".", "%2E")
	}
	return key
}

// AssetID identifies a stored image
type AssetID string

// Collection is a named group of assets. Membership is append-only.
type Collection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CollectionOptions are honoured by CreateCollectionWithOptions
type CollectionOptions struct {
	// CopyAsset stores a copy of the seed inside the collection instead of a reference
	CopyAsset bool
}

// Store is the persistence adapter used by the export pipeline
type Store interface {
	// CheckAccess verifies the store can be written. It wraps ErrPermissionDenied on refusal.
	CheckAccess(ctx context.Context) error
	CreateAsset(ctx context.Context, img codec.Encoded) (AssetID, error)
	// GetCollection wraps ErrCollectionNotFound when no collection has the name
	GetCollection(ctx context.Context, name string) (Collection, error)
	// CreateCollectionWithOptions is the richer creation call; stores may reject it
	CreateCollectionWithOptions(ctx context.Context, name string, seed AssetID, opts CollectionOptions) (Collection, error)
	CreateCollection(ctx context.Context, name string, seed AssetID) (Collection, error)
	// AddAssets adds all ids in one call. Existing members are left in place.
	AddAssets(ctx context.Context, ids []AssetID, c Collection) error
}
