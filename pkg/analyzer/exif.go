package analyzer

import (
	"io"

	"github.com/rwcarlsen/goexif/exif"
)

// swapsAxes reports whether an EXIF orientation rotates the image by 90 degrees
func swapsAxes(orientation int) bool {
	return orientation >= 5 && orientation <= 8
}

// readOrientation returns the EXIF orientation tag of a JPEG stream.
// Missing or malformed metadata yields 1 (upright).
func readOrientation(r io.Reader) int {
	x, err := exif.Decode(r)
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 1
	}
	return v
}
