package codec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	"github.com/menta2k/image-carousel/pkg/types"
)

// DefaultQuality is the near-maximum quality used for tiles
const DefaultQuality = 95

// ErrCodec matches every error produced by a Codec
var ErrCodec = errors.New("codec error")

// ErrInvalidRectangle is returned for rectangles outside the source
var ErrInvalidRectangle = errors.New("crop rectangle outside source image")

// Error describes a failed crop or encode
type Error struct {
	Rect types.CropRectangle
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("codec: %s %s: %v", e.Op, e.Rect, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes every codec failure match ErrCodec
func (e *Error) Is(target error) bool { return target == ErrCodec }

// Options controls the output encoding
type Options struct {
	Format   types.Format
	Quality  int
	Lossless bool
}

// DefaultOptions returns JPEG at DefaultQuality
func DefaultOptions() Options {
	return Options{Format: types.JPEG, Quality: DefaultQuality}
}

func (o Options) quality() int {
	if o.Quality <= 0 || o.Quality > 100 {
		return DefaultQuality
	}
	return o.Quality
}

// Encoded is one encoded tile held in memory
type Encoded struct {
	Data   []byte
	Format types.Format
	Size   types.ImageSize
}

// ContentType returns the MIME type of the encoded data
func (e Encoded) ContentType() string {
	return e.Format.ContentType()
}

// Codec crops a decoded source image and encodes the region
type Codec interface {
	Crop(ctx context.Context, src image.Image, rect types.CropRectangle, opts Options) (Encoded, error)
}

// ImagingCodec implements Codec with disintegration/imaging and chai2010/webp.
// Tiles keep their source resolution, nothing is resized.
type ImagingCodec struct{}

// New creates a new ImagingCodec
func New() *ImagingCodec {
	return &ImagingCodec{}
}

// Crop implements Codec
func (c *ImagingCodec) Crop(ctx context.Context, src image.Image, rect types.CropRectangle, opts Options) (Encoded, error) {
	if err := ctx.Err(); err != nil {
		return Encoded{}, &Error{Rect: rect, Op: "crop", Err: err}
	}
	if src == nil {
		return Encoded{}, &Error{Rect: rect, Op: "crop", Err: errors.New("source image is nil")}
	}

	bounds := src.Bounds()
	cropRect := image.Rect(rect.X, rect.Y, rect.Right(), rect.Bottom()).Add(bounds.Min)
	if rect.Width <= 0 || rect.Height <= 0 || !cropRect.In(bounds) {
		return Encoded{}, &Error{Rect: rect, Op: "crop", Err: ErrInvalidRectangle}
	}

	cropped := imaging.Crop(src, cropRect)

	data, err := Encode(cropped, opts)
	if err != nil {
		return Encoded{}, &Error{Rect: rect, Op: "encode", Err: err}
	}

	format := opts.Format
	if format == "" {
		format = types.JPEG
	}
	return Encoded{
		Data:   data,
		Format: format,
		Size:   types.ImageSize{Width: rect.Width, Height: rect.Height},
	}, nil
}

// Encode serializes img in the requested format
func Encode(img image.Image, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	switch opts.Format {
	case types.WebP:
		if err := webp.Encode(&buf, img, &webp.Options{Lossless: opts.Lossless, Quality: float32(opts.quality())}); err != nil {
			return nil, err
		}
	case types.PNG:
		if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
			return nil, err
		}
	case types.JPEG, "":
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(opts.quality())); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported output format: %s", opts.Format)
	}
	return buf.Bytes(), nil
}
