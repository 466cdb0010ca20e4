package grid

import (
	"fmt"
	"math"

	"github.com/menta2k/image-carousel/pkg/types"
)

const (
	// MinSplitCount is the smallest row the resolver accepts
	MinSplitCount = 2
	// MaxSplitCount is the largest row offered to users
	MaxSplitCount = 10
	// DefaultScale keeps the grid at its maximum size
	DefaultScale = 1.0
)

// Tile aspect presets offered by the carousel UI
var (
	Classic  = types.AspectRatio{Numerator: 3, Denominator: 4, Name: "classic"}
	Portrait = types.AspectRatio{Numerator: 4, Denominator: 5, Name: "portrait"}
	Square   = types.AspectRatio{Numerator: 1, Denominator: 1, Name: "square"}
)

// CommonAspectRatios returns the preset tile ratios
func CommonAspectRatios() []types.AspectRatio {
	return []types.AspectRatio{Classic, Portrait, Square}
}

// LookupAspectRatio resolves a preset name ("portrait") or a "W:H" string
func LookupAspectRatio(s string) (types.AspectRatio, error) {
	for _, r := range CommonAspectRatios() {
		if r.Name == s || r.String() == s {
			return r, nil
		}
	}
	return types.ParseAspectRatio(s)
}

// LayoutParameters is everything the resolver needs besides the image size.
// Offsets are fractions of the preview extent and are resolution independent.
type LayoutParameters struct {
	SplitCount            int               `json:"split_count"`
	AspectRatio           types.AspectRatio `json:"aspect_ratio"`
	ScalePercent          float64           `json:"scale_percent"`
	VerticalOffsetRatio   float64           `json:"vertical_offset_ratio"`
	HorizontalOffsetRatio float64           `json:"horizontal_offset_ratio"`
}

// DefaultParameters returns a full-size, top-left aligned layout
func DefaultParameters(splitCount int, ratio types.AspectRatio) LayoutParameters {
	return LayoutParameters{
		SplitCount:   splitCount,
		AspectRatio:  ratio,
		ScalePercent: DefaultScale,
	}
}

// Scale returns the effective scale; zero means unset and maps to DefaultScale
func (p LayoutParameters) Scale() float64 {
	if p.ScalePercent == 0 {
		return DefaultScale
	}
	return p.ScalePercent
}

// Validate checks the parameter ranges accepted by the resolver
func (p LayoutParameters) Validate() error {
	if p.SplitCount < MinSplitCount {
		return invalidParams("split count must be at least %d, got %d", MinSplitCount, p.SplitCount)
	}
	if !p.AspectRatio.Valid() {
		return invalidParams("aspect ratio terms must be positive, got %s", p.AspectRatio)
	}
	// scale above 1 is left to Measure, which reports OutOfBounds
	if s := p.Scale(); !(s > 0) || math.IsInf(s, 1) {
		return invalidParams("scale must be positive and finite, got %g", s)
	}
	if !ValidRatio(p.VerticalOffsetRatio) {
		return invalidParams("vertical offset ratio must be in [0,1], got %g", p.VerticalOffsetRatio)
	}
	if !ValidRatio(p.HorizontalOffsetRatio) {
		return invalidParams("horizontal offset ratio must be in [0,1], got %g", p.HorizontalOffsetRatio)
	}
	return nil
}

// ValidRatio reports whether v is a fraction in [0,1]. NaN is not.
func ValidRatio(v float64) bool {
	return v >= 0 && v <= 1
}

// ValidateSplitCount applies the UI convention of 2..10 tiles
func ValidateSplitCount(n int) error {
	if n < MinSplitCount || n > MaxSplitCount {
		return fmt.Errorf("split count must be between %d and %d, got %d", MinSplitCount, MaxSplitCount, n)
	}
	return nil
}
