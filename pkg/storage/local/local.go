// Package local stores assets as files under a root directory. Each
// collection is a directory holding a JSON manifest and one file per member,
// numbered in insertion order so a file browser shows the row left to right.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/menta2k/image-carousel/internal/utils"
	"github.com/menta2k/image-carousel/pkg/codec"
	"github.com/menta2k/image-carousel/pkg/storage"
)

const manifestName = "collection.json"

// Store is a filesystem gallery rooted at one directory.
// It serializes manifest updates within the process.
type Store struct {
	root string
	mu   sync.Mutex
}

type manifest struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	CreatedAt time.Time         `json:"created_at"`
	Assets    []storage.AssetID `json:"assets"`
}

// New creates a Store rooted at root. Nothing is touched until CheckAccess.
func New(root string) *Store {
	return &Store{root: root}
}

// Root returns the gallery directory
func (s *Store) Root() string {
	return s.root
}

func (s *Store) assetPath(id storage.AssetID) string {
	return filepath.Join(s.root, "assets", string(id))
}

func (s *Store) collectionDir(name string) string {
	return filepath.Join(s.root, "collections", storage.CollectionKey(name))
}

func (s *Store) CheckAccess(ctx context.Context) error {
	for _, dir := range []string{filepath.Join(s.root, "assets"), filepath.Join(s.root, "collections")} {
		if err := utils.EnsureDir(dir); err != nil {
			return accessErr(err)
		}
	}
	f, err := os.CreateTemp(s.root, ".access-*")
	if err != nil {
		return accessErr(err)
	}
	f.Close()
	return os.Remove(f.Name())
}

func accessErr(err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %v", storage.ErrPermissionDenied, err)
	}
	return fmt.Errorf("failed to prepare gallery: %w", err)
}

func (s *Store) CreateAsset(ctx context.Context, img codec.Encoded) (storage.AssetID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(img.Data) == 0 {
		return "", errors.New("refusing to store empty image")
	}

	id := storage.AssetID(uuid.NewString() + img.Format.Extension())
	if err := writeFileAtomic(s.assetPath(id), img.Data); err != nil {
		return "", fmt.Errorf("failed to write asset: %w", err)
	}
	log.Ctx(ctx).Debug().Str("asset", string(id)).Int("bytes", len(img.Data)).Msg("asset stored")
	return id, nil
}

func (s *Store) GetCollection(ctx context.Context, name string) (storage.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.readManifest(name)
	if err != nil {
		return storage.Collection{}, err
	}
	return storage.Collection{ID: m.ID, Name: m.Name}, nil
}

func (s *Store) CreateCollectionWithOptions(ctx context.Context, name string, seed storage.AssetID, opts storage.CollectionOptions) (storage.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// another export may have created it first
	if m, err := s.readManifest(name); err == nil {
		return storage.Collection{ID: m.ID, Name: m.Name}, nil
	}

	if !utils.FileExists(s.assetPath(seed)) {
		return storage.Collection{}, fmt.Errorf("%w: %s", storage.ErrAssetNotFound, seed)
	}
	dir := s.collectionDir(name)
	if err := utils.EnsureDir(dir); err != nil {
		return storage.Collection{}, fmt.Errorf("failed to create collection directory: %w", err)
	}

	m := manifest{
		ID:        storage.CollectionKey(name),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.placeMember(dir, &m, seed, opts.CopyAsset); err != nil {
		return storage.Collection{}, err
	}
	if err := s.writeManifest(dir, m); err != nil {
		return storage.Collection{}, err
	}
	return storage.Collection{ID: m.ID, Name: m.Name}, nil
}

func (s *Store) CreateCollection(ctx context.Context, name string, seed storage.AssetID) (storage.Collection, error) {
	return s.CreateCollectionWithOptions(ctx, name, seed, storage.CollectionOptions{})
}

func (s *Store) AddAssets(ctx context.Context, ids []storage.AssetID, c storage.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.readManifest(c.Name)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if !utils.FileExists(s.assetPath(id)) {
			return fmt.Errorf("%w: %s", storage.ErrAssetNotFound, id)
		}
	}

	dir := s.collectionDir(c.Name)
	for _, id := range ids {
		if isMember(m.Assets, id) {
			continue
		}
		if err := s.placeMember(dir, &m, id, false); err != nil {
			return err
		}
	}
	return s.writeManifest(dir, m)
}

// Members returns the collection's asset ids in insertion order
func (s *Store) Members(name string) ([]storage.AssetID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.readManifest(name)
	if err != nil {
		return nil, err
	}
	return m.Assets, nil
}

func (s *Store) placeMember(dir string, m *manifest, id storage.AssetID, copyFile bool) error {
	dst := filepath.Join(dir, fmt.Sprintf("%04d_%s", len(m.Assets)+1, id))
	src := s.assetPath(id)

	var err error
	if copyFile {
		err = copyContents(src, dst)
	} else if err = os.Link(src, dst); err != nil {
		err = copyContents(src, dst)
	}
	if err != nil {
		return fmt.Errorf("failed to add %s to collection: %w", id, err)
	}
	m.Assets = append(m.Assets, id)
	return nil
}

func (s *Store) readManifest(name string) (manifest, error) {
	data, err := os.ReadFile(filepath.Join(s.collectionDir(name), manifestName))
	if errors.Is(err, fs.ErrNotExist) {
		return manifest{}, fmt.Errorf("%w: %s", storage.ErrCollectionNotFound, name)
	}
	if err != nil {
		return manifest{}, fmt.Errorf("failed to read collection manifest: %w", err)
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return manifest{}, fmt.Errorf("failed to parse collection manifest: %w", err)
	}
	return m, nil
}

func (s *Store) writeManifest(dir string, m manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal collection manifest: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, manifestName), data); err != nil {
		return fmt.Errorf("failed to write collection manifest: %w", err)
	}
	return nil
}

func isMember(ids []storage.AssetID, id storage.AssetID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func copyContents(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
