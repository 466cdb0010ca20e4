// Package carousel splits one photo into a row of tiles that reassemble the
// photo when shown side by side in a social-media grid.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		"github.com/menta2k/image-carousel"
//		"github.com/menta2k/image-carousel/pkg/grid"
//		"github.com/menta2k/image-carousel/pkg/storage/local"
//	)
//
//	func main() {
//		splitter := carousel.New(local.New("./gallery"))
//
//		out, err := splitter.Split(context.Background(), "beach.jpg", carousel.Request{
//			Params: grid.DefaultParameters(3, grid.Portrait),
//		})
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Printf("%s: %d tiles in %s\n", out.Result.Status, len(out.Result.Assets), out.Result.Collection.Name)
//	}
//
// The package wires four components:
//
// 1. Analyzer (pkg/analyzer): true pixel size and EXIF-aware loading
// 2. Grid (pkg/grid): the pure rectangle resolver and alignment mapping
// 3. Export (pkg/export): crop, encode, persist and attach with fallbacks
// 4. Storage (pkg/storage): local directory, S3 bucket or in-memory gallery
//
// Subject-aware placement (pkg/subject) is optional.
package carousel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/menta2k/image-carousel/pkg/analyzer"
	"github.com/menta2k/image-carousel/pkg/codec"
	"github.com/menta2k/image-carousel/pkg/export"
	"github.com/menta2k/image-carousel/pkg/grid"
	"github.com/menta2k/image-carousel/pkg/storage"
	"github.com/menta2k/image-carousel/pkg/subject"
	"github.com/menta2k/image-carousel/pkg/types"
)

// Version of the carousel library
const Version = "1.0.0"

// ErrSubjectUnavailable is returned when subject placement cannot be honored
var ErrSubjectUnavailable = errors.New("subject alignment unavailable")

// Config holds the defaults used by a Splitter
type Config struct {
	Analyzer analyzer.Config
	Export   export.Config
	// Locator is consulted for requests with FollowSubject; nil disables it
	Locator subject.Locator
}

// DefaultConfig returns JPEG output and no subject locator
func DefaultConfig() Config {
	return Config{
		Analyzer: analyzer.DefaultConfig(),
		Export:   export.DefaultConfig(),
	}
}

// Splitter is the high-level entry point
type Splitter struct {
	analyzer *analyzer.ImageAnalyzer
	codec    codec.Codec
	store    storage.Store
	config   Config
}

// New creates a Splitter with default configuration
func New(store storage.Store) *Splitter {
	return NewWithConfig(store, DefaultConfig())
}

// NewWithConfig creates a Splitter with custom configuration
func NewWithConfig(store storage.Store, config Config) *Splitter {
	return &Splitter{
		analyzer: analyzer.NewWithConfig(config.Analyzer),
		codec:    codec.New(),
		store:    store,
		config:   config,
	}
}

// Request describes one split
type Request struct {
	Params    grid.LayoutParameters
	Placement grid.Placement
	// FollowSubject centers the row on the located subject instead of Placement
	FollowSubject bool
	Collection    string
	OnProgress    export.ProgressFunc
}

// Plan is the resolved geometry for one image
type Plan struct {
	Size       types.ImageSize       `json:"size"`
	Params     grid.LayoutParameters `json:"params"`
	Axis       string                `json:"axis"`
	TileWidth  float64               `json:"tile_width"`
	TileHeight float64               `json:"tile_height"`
	Tiles      types.CropSequence    `json:"tiles"`
	Subject    *subject.Subject      `json:"subject,omitempty"`
}

// Outcome is what Split returns
type Outcome struct {
	Plan   *Plan
	Result *export.Result
}

// Plan resolves the rectangles for an image of the given true size
func (s *Splitter) Plan(size types.ImageSize, params grid.LayoutParameters) (*Plan, error) {
	d, err := grid.Measure(size, params)
	if err != nil {
		return nil, err
	}
	tiles, err := grid.Resolve(size, params)
	if err != nil {
		return nil, err
	}
	return &Plan{
		Size:       size,
		Params:     params,
		Axis:       d.Axis.String(),
		TileWidth:  d.TileWidth,
		TileHeight: d.TileHeight,
		Tiles:      tiles,
	}, nil
}

// PlanSize applies the request's placement to an image of the given size.
// Subject placement needs pixels and is rejected here.
func (s *Splitter) PlanSize(size types.ImageSize, req Request) (*Plan, error) {
	if req.FollowSubject {
		return nil, fmt.Errorf("%w: needs the image, not just its size", ErrSubjectUnavailable)
	}
	params, err := req.Placement.Apply(size, req.Params)
	if err != nil {
		return nil, err
	}
	return s.Plan(size, params)
}

// PlanImage applies the request's placement to a decoded image and resolves it
func (s *Splitter) PlanImage(ctx context.Context, img image.Image, req Request) (*Plan, error) {
	size := s.analyzer.GetImageInfo(img).Size

	var located *subject.Subject
	params, err := req.Placement.Apply(size, req.Params)
	if err != nil {
		return nil, err
	}

	if req.FollowSubject {
		if s.config.Locator == nil {
			return nil, fmt.Errorf("%w: no locator configured", ErrSubjectUnavailable)
		}
		sub, err := s.config.Locator.Locate(ctx, img)
		if err != nil {
			return nil, fmt.Errorf("failed to locate subject: %w", err)
		}
		params, err = subject.Offsets(sub.Box, size, params)
		if err != nil {
			return nil, err
		}
		located = &sub
	}

	plan, err := s.Plan(size, params)
	if err != nil {
		return nil, err
	}
	plan.Subject = located
	return plan, nil
}

// Split loads the image at a local path or http(s) URL and exports its tiles
func (s *Splitter) Split(ctx context.Context, source string, req Request) (*Outcome, error) {
	resolved, img, err := s.load(ctx, source)
	if err != nil {
		return nil, err
	}
	return s.split(ctx, resolved, img, req)
}

// PlanSource resolves the plan for the image at a path or URL without exporting
func (s *Splitter) PlanSource(ctx context.Context, source string, req Request) (*Plan, error) {
	_, img, err := s.load(ctx, source)
	if err != nil {
		return nil, err
	}
	if err := s.analyzer.ValidateImage(img); err != nil {
		return nil, err
	}
	return s.PlanImage(ctx, img, req)
}

// SplitReader is Split for an image held in a stream
func (s *Splitter) SplitReader(ctx context.Context, r io.Reader, req Request) (*Outcome, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	resolved, img, err := s.decode(data)
	if err != nil {
		return nil, err
	}
	return s.split(ctx, resolved, img, req)
}

func (s *Splitter) load(ctx context.Context, source string) (analyzer.SizeResult, image.Image, error) {
	if !analyzer.IsURL(source) {
		resolved, err := s.analyzer.ResolveFileSize(source)
		if err != nil {
			return resolved, nil, err
		}
		img, err := s.analyzer.LoadImage(source)
		return resolved, img, err
	}

	data, err := s.analyzer.ReadSource(ctx, source)
	if err != nil {
		return analyzer.SizeResult{}, nil, err
	}
	return s.decode(data)
}

func (s *Splitter) decode(data []byte) (analyzer.SizeResult, image.Image, error) {
	resolved, err := s.analyzer.ResolveSize(bytes.NewReader(data))
	if err != nil {
		return resolved, nil, err
	}
	img, err := s.analyzer.LoadImageFromReader(bytes.NewReader(data))
	return resolved, img, err
}

func (s *Splitter) split(ctx context.Context, resolved analyzer.SizeResult, img image.Image, req Request) (*Outcome, error) {
	if err := s.analyzer.ValidateImage(img); err != nil {
		return nil, err
	}
	if decoded := s.analyzer.GetImageInfo(img).Size; decoded != resolved.Size {
		// rectangles must be in the pixel space the codec crops
		log.Ctx(ctx).Warn().Stringer("resolved", resolved.Size).Stringer("decoded", decoded).Msg("resolved size differs from decoded image, using decoded")
	}

	plan, err := s.PlanImage(ctx, img, req)
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).Debug().Stringer("size", plan.Size).Str("axis", plan.Axis).Int("tiles", len(plan.Tiles)).Msg("plan resolved")

	cfg := s.config.Export
	if req.OnProgress != nil {
		cfg.OnProgress = req.OnProgress
	}
	collection := req.Collection
	if collection == "" {
		collection = storage.DefaultCollection
	}

	result, err := export.NewWithConfig(s.codec, s.store, cfg).Export(ctx, img, plan.Tiles, collection)
	return &Outcome{Plan: plan, Result: result}, err
}

// LoadImage loads an image with EXIF orientation applied
func (s *Splitter) LoadImage(path string) (image.Image, error) {
	return s.analyzer.LoadImage(path)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
