// Package grid computes the crop rectangles that split one source image into
// a horizontal row of equally shaped tiles.
//
// The resolver is a pure function of the true source dimensions and a
// LayoutParameters value. It picks the constraint axis (the image dimension
// that limits the grid), applies the user scale, converts the preview-relative
// offsets into source pixels and finally rounds tile boundaries, not tile
// widths, so that neighbouring tiles always meet exactly:
//
//	seq, err := grid.Resolve(types.ImageSize{Width: 1200, Height: 1600},
//		grid.DefaultParameters(4, grid.Portrait))
//	// seq: {0,0,300,375} {300,0,300,375} {600,0,300,375} {900,0,300,375}
//
// Rounding a width per tile would let the error accumulate across the row;
// rounding each boundary keeps the total within one pixel of the exact value
// no matter how many tiles are requested.
package grid
