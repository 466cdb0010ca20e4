package grid

import (
	"fmt"
	"math"
	"strings"

	"github.com/menta2k/image-carousel/pkg/types"
)

// Alignment positions the grid along one axis
type Alignment int

const (
	AlignStart Alignment = iota // top or left
	AlignCenter
	AlignEnd // bottom or right
	AlignCustom
)

func (a Alignment) String() string {
	switch a {
	case AlignCenter:
		return "center"
	case AlignEnd:
		return "end"
	case AlignCustom:
		return "custom"
	}
	return "start"
}

// ParseAlignment accepts top/left/start, center/middle, bottom/right/end and custom
func ParseAlignment(s string) (Alignment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "top", "left", "start":
		return AlignStart, nil
	case "center", "centre", "middle":
		return AlignCenter, nil
	case "bottom", "right", "end":
		return AlignEnd, nil
	case "custom":
		return AlignCustom, nil
	}
	return AlignStart, fmt.Errorf("unknown alignment %q", s)
}

// Placement maps alignment choices to the offset ratios the resolver expects.
// Custom ratios are used as given and typically come from FromPreview.
type Placement struct {
	Vertical         Alignment
	Horizontal       Alignment
	VerticalCustom   float64
	HorizontalCustom float64
}

// Apply returns p with both offset ratios set for the given image
func (pl Placement) Apply(size types.ImageSize, p LayoutParameters) (LayoutParameters, error) {
	if math.IsNaN(pl.VerticalCustom) || math.IsNaN(pl.HorizontalCustom) {
		return p, invalidParams("custom offsets must be numbers")
	}
	d, err := Measure(size, p)
	if err != nil {
		return p, err
	}
	p.VerticalOffsetRatio = offsetRatio(pl.Vertical, pl.VerticalCustom, float64(size.Height), d.TileHeight)
	p.HorizontalOffsetRatio = offsetRatio(pl.Horizontal, pl.HorizontalCustom, float64(size.Width), d.TotalWidth(p.SplitCount))
	return p, nil
}

func offsetRatio(a Alignment, custom, extent, span float64) float64 {
	switch a {
	case AlignEnd:
		// resolver clamps to extent-span
		return 1
	case AlignCenter:
		if span >= extent {
			return 0
		}
		return (extent - span) / 2 / extent
	case AlignCustom:
		return clamp(custom, 0, 1)
	}
	return 0
}

// FromPreview converts a drag offset measured on the preview into a ratio
func FromPreview(offset, previewExtent float64) float64 {
	if previewExtent <= 0 {
		return 0
	}
	return clamp(offset/previewExtent, 0, 1)
}

// PreviewGridHeight is the height of the grid overlay drawn across a preview
// of the given width.
func PreviewGridHeight(previewWidth float64, splitCount int, ratio types.AspectRatio) float64 {
	if splitCount <= 0 || !ratio.Valid() {
		return 0
	}
	return previewWidth / (ratio.Value() * float64(splitCount))
}

// ClampPreviewOffset keeps a dragged overlay inside the preview
func ClampPreviewOffset(offset, previewHeight, gridHeight float64) float64 {
	maxOffset := previewHeight - gridHeight
	if maxOffset < 0 {
		maxOffset = 0
	}
	return clamp(offset, 0, maxOffset)
}
