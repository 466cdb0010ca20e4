// Package memory is an in-process Store used for dry runs and tests
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/menta2k/image-carousel/pkg/codec"
	"github.com/menta2k/image-carousel/pkg/storage"
)

// Faults injects failures. Asset ordinals count CreateAsset calls from 1.
type Faults struct {
	DenyAccess       bool
	FailAssets       map[int]error
	RejectRichCreate bool
	FailCreate       error
	FailBatchAdd     error
	FailAdd          map[storage.AssetID]error
}

// Store keeps assets and collections in maps
type Store struct {
	Faults Faults

	mu          sync.Mutex
	assets      map[storage.AssetID]codec.Encoded
	order       []storage.AssetID
	collections map[string][]storage.AssetID
	batchCalls  int
	addCalls    int
}

// New creates an empty Store
func New() *Store {
	return &Store{
		assets:      make(map[storage.AssetID]codec.Encoded),
		collections: make(map[string][]storage.AssetID),
	}
}

func (s *Store) CheckAccess(ctx context.Context) error {
	if s.Faults.DenyAccess {
		return fmt.Errorf("%w: memory store locked", storage.ErrPermissionDenied)
	}
	return ctx.Err()
}

func (s *Store) CreateAsset(ctx context.Context, img codec.Encoded) (storage.AssetID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.order) + 1
	if err := s.Faults.FailAssets[n]; err != nil {
		// failed calls still consume an ordinal
		s.order = append(s.order, "")
		return "", err
	}
	id := storage.AssetID(fmt.Sprintf("asset-%d%s", n, img.Format.Extension()))
	s.assets[id] = img
	s.order = append(s.order, id)
	return id, nil
}

func (s *Store) GetCollection(ctx context.Context, name string) (storage.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		return storage.Collection{}, fmt.Errorf("%w: %s", storage.ErrCollectionNotFound, name)
	}
	return storage.Collection{ID: name, Name: name}, nil
}

func (s *Store) CreateCollectionWithOptions(ctx context.Context, name string, seed storage.AssetID, opts storage.CollectionOptions) (storage.Collection, error) {
	if s.Faults.RejectRichCreate {
		return storage.Collection{}, storage.ErrUnsupported
	}
	return s.CreateCollection(ctx, name, seed)
}

func (s *Store) CreateCollection(ctx context.Context, name string, seed storage.AssetID) (storage.Collection, error) {
	if s.Faults.FailCreate != nil {
		return storage.Collection{}, s.Faults.FailCreate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assets[seed]; !ok {
		return storage.Collection{}, fmt.Errorf("%w: %s", storage.ErrAssetNotFound, seed)
	}
	if _, ok := s.collections[name]; !ok {
		s.collections[name] = []storage.AssetID{seed}
	}
	return storage.Collection{ID: name, Name: name}, nil
}

func (s *Store) AddAssets(ctx context.Context, ids []storage.AssetID, c storage.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(ids) > 1 {
		s.batchCalls++
		if s.Faults.FailBatchAdd != nil {
			return s.Faults.FailBatchAdd
		}
	} else {
		s.addCalls++
	}

	members, ok := s.collections[c.ID]
	if !ok {
		return fmt.Errorf("%w: %s", storage.ErrCollectionNotFound, c.Name)
	}
	for _, id := range ids {
		if err := s.Faults.FailAdd[id]; err != nil {
			return err
		}
		if _, ok := s.assets[id]; !ok {
			return fmt.Errorf("%w: %s", storage.ErrAssetNotFound, id)
		}
	}
	for _, id := range ids {
		if !contains(members, id) {
			members = append(members, id)
		}
	}
	s.collections[c.ID] = members
	return nil
}

// Asset returns a stored asset
func (s *Store) Asset(id storage.AssetID) (codec.Encoded, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.assets[id]
	return img, ok
}

// Members returns the ordered members of a collection
func (s *Store) Members(name string) []storage.AssetID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]storage.AssetID(nil), s.collections[name]...)
}

// Calls reports how many batch and single-item AddAssets calls were made
func (s *Store) Calls() (batch, single int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batchCalls, s.addCalls
}

func contains(ids []storage.AssetID, id storage.AssetID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
