package config

import (
	"context"
	"fmt"

	"github.com/menta2k/image-carousel/pkg/storage"
	"github.com/menta2k/image-carousel/pkg/storage/local"
	"github.com/menta2k/image-carousel/pkg/storage/memory"
	"github.com/menta2k/image-carousel/pkg/storage/s3store"
	"github.com/menta2k/image-carousel/pkg/subject"
)

// OpenStore builds the configured persistence backend
func (s StorageConfig) OpenStore(ctx context.Context) (storage.Store, error) {
	switch s.Backend {
	case BackendLocal:
		return local.New(s.Local.Root), nil
	case BackendS3:
		store, err := s3store.New(ctx, s.S3)
		if err != nil {
			return nil, err
		}
		return store, nil
	case BackendMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", s.Backend)
	}
}

// NewLocator builds the configured subject locator
func (s SubjectConfig) NewLocator() (subject.Locator, error) {
	timeout, err := s.TimeoutDuration()
	if err != nil {
		return nil, err
	}

	switch s.Locator {
	case LocatorSaliency, "":
		return subject.NewSaliencyLocator(), nil
	case LocatorOllama:
		l, err := subject.NewOllamaLocator(s.URL, s.Model, timeout)
		if err != nil {
			return nil, err
		}
		return l, nil
	case LocatorLlamaCpp:
		return subject.NewLlamaCppLocator(s.URL, s.Model, timeout), nil
	default:
		return nil, fmt.Errorf("unknown subject locator %q", s.Locator)
	}
}
