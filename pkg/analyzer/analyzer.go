package analyzer

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/image-carousel/pkg/types"
)

// SizeSource records which step of the chain produced the dimensions
type SizeSource string

const (
	FromMetadata SizeSource = "metadata"
	FromDecode   SizeSource = "decode"
)

var (
	// ErrInvalidImage marks sources that cannot be used: undecodable,
	// unsupported or too small
	ErrInvalidImage = errors.New("invalid image")
	// ErrUnknownSize is returned when no step could determine the dimensions
	ErrUnknownSize = fmt.Errorf("%w: cannot determine image dimensions", ErrInvalidImage)
)

// ImageAnalyzer loads source images and resolves their true dimensions
type ImageAnalyzer struct {
	config Config
}

// Config holds configuration for the image analyzer
type Config struct {
	SupportedFormats []string
	MinImageSize     int
}

// DefaultConfig accepts every registered decoder and any image of at least 2x2
func DefaultConfig() Config {
	return Config{
		SupportedFormats: []string{"jpeg", "png", "webp", "gif", "bmp", "tiff"},
		MinImageSize:     2,
	}
}

// New creates a new ImageAnalyzer with default configuration
func New() *ImageAnalyzer {
	return &ImageAnalyzer{config: DefaultConfig()}
}

// NewWithConfig creates a new ImageAnalyzer with custom configuration
func NewWithConfig(config Config) *ImageAnalyzer {
	return &ImageAnalyzer{config: config}
}

// SizeResult is the outcome of ResolveSize
type SizeResult struct {
	Size        types.ImageSize
	Source      SizeSource
	Format      string
	Orientation int
}

// ResolveSize determines the true pixel dimensions of an encoded image,
// as they will be after EXIF orientation is applied. Header metadata is
// preferred; a full decode is the fallback.
func (a *ImageAnalyzer) ResolveSize(r io.ReadSeeker) (SizeResult, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err == nil && !a.isFormatSupported(format) {
		return SizeResult{}, fmt.Errorf("%w: unsupported image format: %s", ErrInvalidImage, format)
	}
	if err == nil {
		res := SizeResult{
			Size:        types.ImageSize{Width: cfg.Width, Height: cfg.Height},
			Source:      FromMetadata,
			Format:      format,
			Orientation: 1,
		}
		if format == "jpeg" {
			if _, err := r.Seek(0, io.SeekStart); err == nil {
				res.Orientation = readOrientation(r)
			}
			if swapsAxes(res.Orientation) {
				res.Size.Width, res.Size.Height = res.Size.Height, res.Size.Width
			}
		}
		if res.Size.Valid() {
			return res, nil
		}
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return SizeResult{}, fmt.Errorf("failed to rewind image: %w", err)
	}
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return SizeResult{}, fmt.Errorf("%w: %v", ErrUnknownSize, err)
	}
	size := a.GetImageInfo(img).Size
	if !size.Valid() {
		return SizeResult{}, ErrUnknownSize
	}
	return SizeResult{Size: size, Source: FromDecode, Format: format}, nil
}

// ResolveFileSize runs ResolveSize on a file
func (a *ImageAnalyzer) ResolveFileSize(path string) (SizeResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return SizeResult{}, fmt.Errorf("failed to open image file: %w", err)
	}
	defer f.Close()
	return a.ResolveSize(f)
}

// LoadImage loads an image from file with EXIF orientation applied
func (a *ImageAnalyzer) LoadImage(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	return a.LoadImageFromReader(bytes.NewReader(data))
}

// LoadImageFromReader loads an image from an io.Reader
func (a *ImageAnalyzer) LoadImageFromReader(reader io.Reader) (image.Image, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode image: %w", ErrInvalidImage, err)
	}
	if !a.isFormatSupported(format) {
		return nil, fmt.Errorf("%w: unsupported image format: %s", ErrInvalidImage, format)
	}

	img, err := imaging.Decode(bytes.NewReader(buf.Bytes()), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode image: %w", ErrInvalidImage, err)
	}
	return img, nil
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Size        types.ImageSize
	AspectRatio float64
	Area        int
}

// GetImageInfo returns basic information about a decoded image
func (a *ImageAnalyzer) GetImageInfo(img image.Image) ImageInfo {
	bounds := img.Bounds()
	size := types.ImageSize{Width: bounds.Dx(), Height: bounds.Dy()}

	info := ImageInfo{Size: size, Area: size.Width * size.Height}
	if size.Height > 0 {
		info.AspectRatio = size.Aspect()
	}
	return info
}

// ValidateImage checks if an image meets minimum requirements
func (a *ImageAnalyzer) ValidateImage(img image.Image) error {
	return a.ValidateSize(a.GetImageInfo(img).Size)
}

// ValidateSize checks dimensions against the configured minimum
func (a *ImageAnalyzer) ValidateSize(size types.ImageSize) error {
	if size.Width < a.config.MinImageSize || size.Height < a.config.MinImageSize {
		return fmt.Errorf("%w: image too small: %s (minimum: %d)", ErrInvalidImage, size, a.config.MinImageSize)
	}
	return nil
}

func (a *ImageAnalyzer) isFormatSupported(format string) bool {
	for _, supported := range a.config.SupportedFormats {
		if strings.EqualFold(format, supported) || (strings.EqualFold(supported, "jpg") && format == "jpeg") {
			return true
		}
	}
	return false
}
