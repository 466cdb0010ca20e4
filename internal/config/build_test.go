package config

import (
	"context"
	"fmt"
	"testing"

	"github.com/menta2k/image-carousel/pkg/storage/local"
	"github.com/menta2k/image-carousel/pkg/storage/memory"
)

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	cfg := Default().Storage
	cfg.Local.Root = t.TempDir()
	store, err := cfg.OpenStore(ctx)
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	if s, ok := store.(*local.Store); !ok || s.Root() != cfg.Local.Root {
		t.Errorf("Expected local store at %s, got %T", cfg.Local.Root, store)
	}

	cfg.Backend = BackendMemory
	if store, err = cfg.OpenStore(ctx); err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Errorf("Expected memory store, got %T", store)
	}

	cfg.Backend = "ftp"
	if _, err := cfg.OpenStore(ctx); err == nil {
		t.Error("Expected error for unknown backend")
	}
}

func TestNewLocator(t *testing.T) {
	tests := []struct {
		locator string
		want    string
	}{
		{LocatorSaliency, "*subject.SaliencyLocator"},
		{LocatorOllama, "*subject.OllamaLocator"},
		{LocatorLlamaCpp, "*subject.LlamaCppLocator"},
	}

	for _, tt := range tests {
		t.Run(tt.locator, func(t *testing.T) {
			cfg := Default().Subject
			cfg.Locator = tt.locator
			l, err := cfg.NewLocator()
			if err != nil {
				t.Fatalf("NewLocator failed: %v", err)
			}
			if got := fmt.Sprintf("%T", l); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}

	cfg := Default().Subject
	cfg.Timeout = "soon"
	if _, err := cfg.NewLocator(); err == nil {
		t.Error("Expected error for bad timeout")
	}
}
