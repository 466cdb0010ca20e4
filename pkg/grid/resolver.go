package grid

import (
	"math"

	"github.com/menta2k/image-carousel/pkg/types"
)

// tolerance absorbs float error when the grid exactly fills an axis
const tolerance = 1e-6

// Axis names the image dimension that limits the grid
type Axis int

const (
	WidthConstrained Axis = iota
	HeightConstrained
)

func (a Axis) String() string {
	if a == HeightConstrained {
		return "height"
	}
	return "width"
}

// Dimensions is the unrounded tile geometry for one image and layout
type Dimensions struct {
	Axis       Axis
	TileWidth  float64
	TileHeight float64
}

// TotalWidth is the unrounded width of the whole row
func (d Dimensions) TotalWidth(splitCount int) float64 {
	return d.TileWidth * float64(splitCount)
}

// Measure computes the unrounded tile size, including scale, and checks that
// the grid fits the image.
func Measure(size types.ImageSize, p LayoutParameters) (Dimensions, error) {
	if !size.Valid() {
		return Dimensions{}, invalidParams("image size must be positive, got %s", size)
	}
	if err := p.Validate(); err != nil {
		return Dimensions{}, err
	}

	n := float64(p.SplitCount)
	tileAspect := p.AspectRatio.Value()
	gridAspect := tileAspect * n

	var d Dimensions
	var maxTileWidth float64
	if size.Aspect() <= gridAspect {
		// tall image: full width is available, crop top/bottom
		d.Axis = WidthConstrained
		maxTileWidth = float64(size.Width) / n
	} else {
		// wide image: full height is available, crop the sides
		d.Axis = HeightConstrained
		maxTileWidth = float64(size.Height) * gridAspect / n
	}

	d.TileWidth = maxTileWidth * p.Scale()
	d.TileHeight = d.TileWidth / tileAspect

	if d.TileHeight > float64(size.Height)+tolerance {
		return d, geometryErr(OutOfBounds, "tile height %.2f exceeds image height %d", d.TileHeight, size.Height)
	}
	if total := d.TotalWidth(p.SplitCount); total > float64(size.Width)+tolerance {
		return d, geometryErr(OutOfBounds, "row width %.2f exceeds image width %d", total, size.Width)
	}
	return d, nil
}

// Resolve returns exactly SplitCount contiguous rectangles, left to right,
// sharing one row and fully contained in the image.
func Resolve(size types.ImageSize, p LayoutParameters) (types.CropSequence, error) {
	d, err := Measure(size, p)
	if err != nil {
		return nil, err
	}

	w, h := float64(size.Width), float64(size.Height)
	yOffset := clamp(p.VerticalOffsetRatio*h, 0, math.Max(0, h-d.TileHeight))
	xBase := clamp(p.HorizontalOffsetRatio*w, 0, math.Max(0, w-d.TotalWidth(p.SplitCount)))

	height := int(math.Round(d.TileHeight))
	y := int(math.Round(yOffset))
	if y+height > size.Height {
		// both terms rounded up by half a pixel
		y = size.Height - height
	}
	if height <= 0 {
		return nil, geometryErr(DegenerateTile, "tile height %.3f rounds to %d", d.TileHeight, height)
	}

	seq := make(types.CropSequence, p.SplitCount)
	for i := range seq {
		start := math.Round(xBase + float64(i)*d.TileWidth)
		end := math.Round(xBase + float64(i+1)*d.TileWidth)
		seq[i] = types.CropRectangle{
			X:      int(start),
			Y:      y,
			Width:  int(end) - int(start),
			Height: height,
		}
		if seq[i].Width <= 0 {
			return nil, geometryErr(DegenerateTile, "tile %d width %.3f rounds to %d", i, d.TileWidth, seq[i].Width)
		}
	}
	return seq, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo || math.IsNaN(v) {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
