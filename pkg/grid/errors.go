package grid

import (
	"errors"
	"fmt"
)

// ErrorKind classifies geometry failures
type ErrorKind int

const (
	InvalidParameters ErrorKind = iota + 1
	DegenerateTile
	OutOfBounds
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidParameters:
		return "invalid parameters"
	case DegenerateTile:
		return "degenerate tile"
	case OutOfBounds:
		return "out of bounds"
	}
	return "unknown"
}

// Sentinels for errors.Is
var (
	ErrInvalidParameters = errors.New("grid: invalid parameters")
	ErrDegenerateTile    = errors.New("grid: degenerate tile")
	ErrOutOfBounds       = errors.New("grid: grid exceeds source image")
)

// GeometryError is returned by Resolve before any I/O happens.
// The caller can correct it by lowering the split count or scale,
// or by picking another aspect ratio.
type GeometryError struct {
	Kind   ErrorKind
	Detail string
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("grid: %s: %s", e.Kind, e.Detail)
}

// Is matches the sentinel for the error kind
func (e *GeometryError) Is(target error) bool {
	switch target {
	case ErrInvalidParameters:
		return e.Kind == InvalidParameters
	case ErrDegenerateTile:
		return e.Kind == DegenerateTile
	case ErrOutOfBounds:
		return e.Kind == OutOfBounds
	}
	return false
}

func invalidParams(format string, args ...any) error {
	return &GeometryError{Kind: InvalidParameters, Detail: fmt.Sprintf(format, args...)}
}

func geometryErr(kind ErrorKind, format string, args ...any) error {
	return &GeometryError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
