package types

import (
	"fmt"
	"strings"
)

// ImageSize holds the true pixel dimensions of a source image.
// It must come from the original asset, never from a scaled preview.
type ImageSize struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Valid reports whether both dimensions are positive
func (s ImageSize) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// Aspect returns width/height
func (s ImageSize) Aspect() float64 {
	return float64(s.Width) / float64(s.Height)
}

func (s ImageSize) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// AspectRatio describes the width:height of one output tile
type AspectRatio struct {
	Numerator   int    `json:"numerator" yaml:"numerator"`
	Denominator int    `json:"denominator" yaml:"denominator"`
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Value returns numerator/denominator
func (a AspectRatio) Value() float64 {
	return float64(a.Numerator) / float64(a.Denominator)
}

// Valid reports whether both terms are positive
func (a AspectRatio) Valid() bool {
	return a.Numerator > 0 && a.Denominator > 0
}

func (a AspectRatio) String() string {
	return fmt.Sprintf("%d:%d", a.Numerator, a.Denominator)
}

// ParseAspectRatio parses "W:H" (or "WxH", "W/H")
func ParseAspectRatio(s string) (AspectRatio, error) {
	s = strings.TrimSpace(s)
	for _, sep := range []string{":", "x", "/"} {
		parts := strings.Split(s, sep)
		if len(parts) != 2 {
			continue
		}
		var n, d int
		if _, err := fmt.Sscanf(parts[0]+" "+parts[1], "%d %d", &n, &d); err != nil {
			return AspectRatio{}, fmt.Errorf("invalid aspect ratio %q: %w", s, err)
		}
		r := AspectRatio{Numerator: n, Denominator: d}
		if !r.Valid() {
			return AspectRatio{}, fmt.Errorf("invalid aspect ratio %q: terms must be positive", s)
		}
		return r, nil
	}
	return AspectRatio{}, fmt.Errorf("invalid aspect ratio %q: expected W:H", s)
}

// CropRectangle is an axis-aligned region in source-pixel space
type CropRectangle struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Right returns X+Width
func (r CropRectangle) Right() int {
	return r.X + r.Width
}

// Bottom returns Y+Height
func (r CropRectangle) Bottom() int {
	return r.Y + r.Height
}

// Within reports whether the rectangle lies fully inside an image of the given size
func (r CropRectangle) Within(size ImageSize) bool {
	return r.X >= 0 && r.Y >= 0 && r.Width > 0 && r.Height > 0 &&
		r.Right() <= size.Width && r.Bottom() <= size.Height
}

func (r CropRectangle) String() string {
	return fmt.Sprintf("{%d,%d,%d,%d}", r.X, r.Y, r.Width, r.Height)
}

// CropSequence is an ordered left-to-right row of tiles sharing y and height
type CropSequence []CropRectangle

// TotalWidth returns the horizontal extent covered by the row
func (s CropSequence) TotalWidth() int {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1].Right() - s[0].X
}

// Contiguous reports whether every tile starts where the previous one ends
// and all tiles share the same row.
func (s CropSequence) Contiguous() bool {
	for i := 1; i < len(s); i++ {
		if s[i-1].Right() != s[i].X || s[i-1].Y != s[i].Y || s[i-1].Height != s[i].Height {
			return false
		}
	}
	return true
}

// Format is an output image encoding
type Format string

const (
	JPEG Format = "jpg"
	PNG  Format = "png"
	WebP Format = "webp"
)

// ParseFormat normalizes a format name or file extension
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "jpg", "jpeg":
		return JPEG, nil
	case "png":
		return PNG, nil
	case "webp":
		return WebP, nil
	}
	return "", fmt.Errorf("unsupported output format: %s", s)
}

// Extension returns the file extension including the dot
func (f Format) Extension() string {
	return "." + string(f)
}

// ContentType returns the MIME type of the format
func (f Format) ContentType() string {
	switch f {
	case PNG:
		return "image/png"
	case WebP:
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
