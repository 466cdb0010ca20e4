package local

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/menta2k/image-carousel/pkg/codec"
	"github.com/menta2k/image-carousel/pkg/storage"
	"github.com/menta2k/image-carousel/pkg/types"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s := New(t.TempDir())
	if err := s.CheckAccess(context.Background()); err != nil {
		t.Fatalf("CheckAccess failed: %v", err)
	}
	return s
}

func encoded(b string) codec.Encoded {
	return codec.Encoded{Data: []byte(b), Format: types.JPEG}
}

func TestCreateAsset(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	id, err := s.CreateAsset(ctx, encoded("tile"))
	if err != nil {
		t.Fatalf("CreateAsset failed: %v", err)
	}
	if filepath.Ext(string(id)) != ".jpg" {
		t.Errorf("Expected .jpg asset id, got %s", id)
	}

	data, err := os.ReadFile(s.assetPath(id))
	if err != nil || string(data) != "tile" {
		t.Errorf("Asset contents not stored: %q %v", data, err)
	}

	if _, err := s.CreateAsset(ctx, codec.Encoded{Format: types.PNG}); err == nil {
		t.Error("Expected error for empty image")
	}
}

func TestCollectionLifecycle(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if _, err := s.GetCollection(ctx, "Pixert"); !errors.Is(err, storage.ErrCollectionNotFound) {
		t.Fatalf("Expected ErrCollectionNotFound, got %v", err)
	}

	var ids []storage.AssetID
	for _, b := range []string{"one", "two", "three"} {
		id, err := s.CreateAsset(ctx, encoded(b))
		if err != nil {
			t.Fatalf("CreateAsset failed: %v", err)
		}
		ids = append(ids, id)
	}

	c, err := s.CreateCollectionWithOptions(ctx, "Pixert", ids[0], storage.CollectionOptions{CopyAsset: true})
	if err != nil {
		t.Fatalf("CreateCollectionWithOptions failed: %v", err)
	}
	if c.Name != "Pixert" {
		t.Errorf("Expected name Pixert, got %s", c.Name)
	}

	// seed is already a member; adding it again must not duplicate it
	if err := s.AddAssets(ctx, ids, c); err != nil {
		t.Fatalf("AddAssets failed: %v", err)
	}

	members, err := s.Members("Pixert")
	if err != nil {
		t.Fatalf("Members failed: %v", err)
	}
	if len(members) != 3 || members[0] != ids[0] || members[2] != ids[2] {
		t.Errorf("Expected members %v in order, got %v", ids, members)
	}

	entries, _ := os.ReadDir(s.collectionDir("Pixert"))
	if len(entries) != 4 {
		t.Errorf("Expected manifest plus 3 member files, got %d entries", len(entries))
	}

	again, err := s.CreateCollection(ctx, "Pixert", ids[1])
	if err != nil {
		t.Fatalf("CreateCollection on existing name failed: %v", err)
	}
	if again.ID != c.ID {
		t.Errorf("Expected existing collection to be returned")
	}
	if members, _ := s.Members("Pixert"); len(members) != 3 {
		t.Errorf("Existing collection must not be reset, got %v", members)
	}
}

func TestCollectionNamesDoNotCollide(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	names := []string{"a/b", "a_b", "a b", "..", "."}
	seen := map[string]bool{}
	for _, name := range names {
		id, err := s.CreateAsset(ctx, encoded(name))
		if err != nil {
			t.Fatalf("CreateAsset failed: %v", err)
		}
		c, err := s.CreateCollection(ctx, name, id)
		if err != nil {
			t.Fatalf("CreateCollection(%q) failed: %v", name, err)
		}
		if c.Name != name {
			t.Errorf("Expected collection %q, got %q", name, c.Name)
		}
		if seen[c.ID] {
			t.Errorf("Collection %q reuses id %s", name, c.ID)
		}
		seen[c.ID] = true

		dir := s.collectionDir(name)
		if filepath.Dir(dir) != filepath.Join(s.Root(), "collections") {
			t.Errorf("Collection %q escapes the collections directory: %s", name, dir)
		}

		members, err := s.Members(name)
		if err != nil {
			t.Fatalf("Members(%q) failed: %v", name, err)
		}
		if len(members) != 1 || members[0] != id {
			t.Errorf("Collection %q: expected only its own seed, got %v", name, members)
		}
	}
}

func TestAddUnknownAsset(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	id, _ := s.CreateAsset(ctx, encoded("seed"))
	c, err := s.CreateCollection(ctx, "album", id)
	if err != nil {
		t.Fatalf("CreateCollection failed: %v", err)
	}

	err = s.AddAssets(ctx, []storage.AssetID{"missing.jpg"}, c)
	if !errors.Is(err, storage.ErrAssetNotFound) {
		t.Errorf("Expected ErrAssetNotFound, got %v", err)
	}

	if _, err := s.CreateCollection(ctx, "other", "missing.jpg"); !errors.Is(err, storage.ErrAssetNotFound) {
		t.Errorf("Expected ErrAssetNotFound for unknown seed, got %v", err)
	}
}

func TestCheckAccessDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	dir := t.TempDir()
	if err := os.Chmod(dir, 0o500); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(dir, 0o700)

	s := New(filepath.Join(dir, "gallery"))
	if err := s.CheckAccess(context.Background()); !errors.Is(err, storage.ErrPermissionDenied) {
		t.Errorf("Expected ErrPermissionDenied, got %v", err)
	}
}
