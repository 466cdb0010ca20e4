// Package subject finds the dominant subject of a photo so the carousel row
// can be placed over it instead of at a fixed alignment.
package subject

import (
	"context"
	"fmt"
	"image"

	"github.com/menta2k/image-carousel/pkg/grid"
	"github.com/menta2k/image-carousel/pkg/types"
)

// Box is a region in normalized image coordinates, all values in [0,1]
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Center returns the normalized center point
func (b Box) Center() (float64, float64) {
	return b.X + b.W/2, b.Y + b.H/2
}

// Clamp keeps the box inside the unit square
func (b Box) Clamp() Box {
	b.X = clamp01(b.X)
	b.Y = clamp01(b.Y)
	b.W = clamp01(b.W)
	b.H = clamp01(b.H)
	if b.X+b.W > 1 {
		b.W = 1 - b.X
	}
	if b.Y+b.H > 1 {
		b.H = 1 - b.Y
	}
	return b
}

// CenterBox covers the middle quarter of the image
var CenterBox = Box{X: 0.25, Y: 0.25, W: 0.5, H: 0.5}

// Subject is the located region
type Subject struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// Locator finds the dominant subject of an image
type Locator interface {
	Locate(ctx context.Context, img image.Image) (Subject, error)
}

// Offsets returns p with both offset ratios set so the row of tiles is
// centered on the box. The resolver clamps ratios that would push the row
// past an edge.
func Offsets(box Box, size types.ImageSize, p grid.LayoutParameters) (grid.LayoutParameters, error) {
	d, err := grid.Measure(size, p)
	if err != nil {
		return p, fmt.Errorf("measure grid: %w", err)
	}
	cx, cy := box.Clamp().Center()

	top := cy*float64(size.Height) - d.TileHeight/2
	left := cx*float64(size.Width) - d.TotalWidth(p.SplitCount)/2

	p.VerticalOffsetRatio = clamp01(top / float64(size.Height))
	p.HorizontalOffsetRatio = clamp01(left / float64(size.Width))
	return p, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
