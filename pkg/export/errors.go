package export

import (
	"errors"
	"fmt"

	"github.com/menta2k/image-carousel/pkg/types"
)

// ErrEmptySequence is returned when there is nothing to export
var ErrEmptySequence = errors.New("export: empty crop sequence")

// EncodeError aborts an export. Nothing has been persisted when it is returned.
type EncodeError struct {
	Index int
	Rect  types.CropRectangle
	Err   error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("export: encode tile %d %s: %v", e.Index, e.Rect, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// PersistError lists tiles whose asset could not be created.
// Created counts the assets that were stored anyway.
type PersistError struct {
	Indices []int
	Created int
	Err     error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("export: persist failed for tiles %v (%d created): %v", e.Indices, e.Created, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// AttachError lists tiles that were stored but not added to the collection.
// It is recorded on the Result rather than returned.
type AttachError struct {
	Indices []int
	Err     error
}

func (e *AttachError) Error() string {
	return fmt.Sprintf("export: attach failed for tiles %v: %v", e.Indices, e.Err)
}

func (e *AttachError) Unwrap() error { return e.Err }
