// Package export turns a resolved crop sequence into stored assets grouped in
// a named collection.
//
// An export runs three stages strictly in order, one tile at a time:
// crop and encode (0-50% progress), asset creation (50-90%) and collection
// attach (90-100%). Encoding failures abort before anything is stored.
// Asset creation failures are recorded per tile and the remaining tiles are
// still created. Attach failures only degrade the status to PartialAttach.
package export

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/rs/zerolog/log"

	"github.com/menta2k/image-carousel/pkg/codec"
	"github.com/menta2k/image-carousel/pkg/storage"
	"github.com/menta2k/image-carousel/pkg/types"
)

// Status is the terminal state of an export
type Status int

const (
	Complete Status = iota
	PartialAttach
	Failed
)

func (s Status) String() string {
	switch s {
	case Complete:
		return "complete"
	case PartialAttach:
		return "partial_attach"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// MarshalText renders the status name in JSON output
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Stage names a pipeline stage in progress reports
type Stage string

const (
	StageEncode  Stage = "encode"
	StagePersist Stage = "persist"
	StageAttach  Stage = "attach"
)

// Progress is one progress report. Percent never decreases within an export.
type Progress struct {
	Stage   Stage
	Done    int
	Total   int
	Percent float64
}

// ProgressFunc receives progress reports on the exporting goroutine
type ProgressFunc func(Progress)

// Config controls an export
type Config struct {
	Encoding codec.Options
	// CopyToCollection asks the store to copy the seed asset when it creates the collection
	CopyToCollection bool
	OnProgress       ProgressFunc
}

// DefaultConfig encodes JPEG at near-maximum quality
func DefaultConfig() Config {
	return Config{Encoding: codec.DefaultOptions()}
}

// TileResult is the outcome for one rectangle
type TileResult struct {
	Index      int                 `json:"index"`
	Rect       types.CropRectangle `json:"rect"`
	Encoded    codec.Encoded       `json:"-"`
	Bytes      int                 `json:"bytes"`
	Asset      storage.AssetID     `json:"asset,omitempty"`
	Attached   bool                `json:"attached"`
	PersistErr error               `json:"-"`
	AttachErr  error               `json:"-"`
}

// Result describes a finished or aborted export
type Result struct {
	Tiles      []TileResult       `json:"tiles"`
	Assets     []storage.AssetID  `json:"assets"`
	Collection storage.Collection `json:"collection"`
	Status     Status             `json:"status"`
	// AttachErr is set when Status is PartialAttach
	AttachErr *AttachError `json:"-"`
}

// FailedAttach returns the indices of tiles missing from the collection
func (r *Result) FailedAttach() []int {
	if r.AttachErr == nil {
		return nil
	}
	return r.AttachErr.Indices
}

// Pipeline exports tiles through a codec into a store. It holds no per-export
// state, so one Pipeline may run several exports concurrently.
type Pipeline struct {
	codec  codec.Codec
	store  storage.Store
	config Config
}

// run carries the state of one export
type run struct {
	*Pipeline
	result      *Result
	lastPercent float64
}

// New creates a Pipeline with DefaultConfig
func New(c codec.Codec, s storage.Store) *Pipeline {
	return NewWithConfig(c, s, DefaultConfig())
}

// NewWithConfig creates a Pipeline with custom configuration
func NewWithConfig(c codec.Codec, s storage.Store, config Config) *Pipeline {
	return &Pipeline{codec: c, store: s, config: config}
}

// Export crops src along seq and stores every tile in the named collection.
//
// Storage access is checked once before any work. The returned Result is nil
// only when nothing was attempted; otherwise it reports every created asset,
// including on cancellation. A non-nil error accompanies Status Failed and
// cancellation.
// PartialAttach is not an error: inspect Result.AttachErr.
func (p *Pipeline) Export(ctx context.Context, src image.Image, seq types.CropSequence, collection string) (*Result, error) {
	if len(seq) == 0 {
		return nil, ErrEmptySequence
	}
	if src == nil {
		return nil, errors.New("export: nil source image")
	}
	if collection == "" {
		collection = storage.DefaultCollection
	}

	logger := log.Ctx(ctx).With().Str("collection", collection).Int("tiles", len(seq)).Logger()
	ctx = logger.WithContext(ctx)

	if err := p.store.CheckAccess(ctx); err != nil {
		logger.Error().Err(err).Msg("storage access check failed")
		return nil, fmt.Errorf("export: %w", err)
	}

	result := &Result{Tiles: make([]TileResult, len(seq)), Status: Failed}
	for i, rect := range seq {
		result.Tiles[i] = TileResult{Index: i, Rect: rect}
	}
	r := &run{Pipeline: p, result: result}

	if err := r.encode(ctx, src); err != nil {
		return result, err
	}
	if err := r.persist(ctx); err != nil {
		return result, err
	}
	if err := r.attach(ctx, collection); err != nil {
		return result, err
	}
	logger.Info().Stringer("status", result.Status).Int("assets", len(result.Assets)).Msg("export finished")
	return result, nil
}

func (r *run) encode(ctx context.Context, src image.Image) error {
	result := r.result
	n := len(result.Tiles)
	for i := range result.Tiles {
		tile := &result.Tiles[i]
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("export canceled while encoding: %w", err)
		}

		enc, err := r.codec.Crop(ctx, src, tile.Rect, r.config.Encoding)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Int("index", i).Msg("encode failed, aborting export")
			return &EncodeError{Index: i, Rect: tile.Rect, Err: err}
		}
		tile.Encoded = enc
		tile.Bytes = len(enc.Data)

		log.Ctx(ctx).Debug().Int("index", i).Stringer("rect", tile.Rect).Int("bytes", tile.Bytes).Msg("tile encoded")
		r.report(StageEncode, i+1, n, 50*float64(i+1)/float64(n))
	}
	return nil
}

func (r *run) persist(ctx context.Context) error {
	result := r.result
	n := len(result.Tiles)
	var failed []int
	var firstErr error

	for i := range result.Tiles {
		tile := &result.Tiles[i]
		if err := ctx.Err(); err != nil {
			for j := i; j < n; j++ {
				failed = append(failed, j)
			}
			return &PersistError{Indices: failed, Created: len(result.Assets), Err: err}
		}

		id, err := r.store.CreateAsset(ctx, tile.Encoded)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Int("index", i).Msg("asset creation failed")
			tile.PersistErr = err
			failed = append(failed, i)
			if firstErr == nil {
				firstErr = err
			}
		} else {
			tile.Asset = id
			result.Assets = append(result.Assets, id)
			log.Ctx(ctx).Debug().Int("index", i).Str("asset", string(id)).Msg("asset created")
		}
		r.report(StagePersist, i+1, n, 50+40*float64(i+1)/float64(n))
	}

	if len(failed) > 0 {
		return &PersistError{Indices: failed, Created: len(result.Assets), Err: firstErr}
	}
	return nil
}

func (r *run) attach(ctx context.Context, name string) error {
	result := r.result
	n := len(result.Tiles)
	// every tile has an asset once persist succeeded
	result.Status = PartialAttach

	c, err := r.ensureCollection(ctx, name, result.Assets[0])
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("collection unavailable, tiles stay unattached")
		r.failAttach(allIndices(n), err)
		r.report(StageAttach, n, n, 100)
		return nil
	}
	result.Collection = c
	r.report(StageAttach, 0, n, 95)

	err = r.store.AddAssets(ctx, result.Assets, c)
	if err == nil {
		for i := range result.Tiles {
			result.Tiles[i].Attached = true
		}
		result.Status = Complete
		r.report(StageAttach, n, n, 100)
		return nil
	}
	log.Ctx(ctx).Warn().Err(err).Msg("batch attach failed, adding tiles one at a time")

	var failed []int
	var firstErr error
	for i := range result.Tiles {
		tile := &result.Tiles[i]
		err := ctx.Err()
		if err == nil {
			err = r.store.AddAssets(ctx, []storage.AssetID{tile.Asset}, c)
		}
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Int("index", i).Str("asset", string(tile.Asset)).Msg("attach failed")
			tile.AttachErr = err
			failed = append(failed, i)
			if firstErr == nil {
				firstErr = err
			}
		} else {
			tile.Attached = true
			log.Ctx(ctx).Debug().Int("index", i).Msg("tile attached")
		}
		r.report(StageAttach, i+1, n, 95+5*float64(i+1)/float64(n))
	}

	if len(failed) == 0 {
		result.Status = Complete
		return nil
	}
	result.AttachErr = &AttachError{Indices: failed, Err: firstErr}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("export canceled while attaching: %w", err)
	}
	return nil
}

// ensureCollection looks the collection up and creates it seeded with the
// first asset when missing, trying the rich creation call first.
func (p *Pipeline) ensureCollection(ctx context.Context, name string, seed storage.AssetID) (storage.Collection, error) {
	c, err := p.store.GetCollection(ctx, name)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, storage.ErrCollectionNotFound) {
		return storage.Collection{}, fmt.Errorf("lookup collection %q: %w", name, err)
	}

	opts := storage.CollectionOptions{CopyAsset: p.config.CopyToCollection}
	c, err = p.store.CreateCollectionWithOptions(ctx, name, seed, opts)
	if err == nil {
		return c, nil
	}
	log.Ctx(ctx).Warn().Err(err).Msg("rich collection create rejected, falling back")

	c, err = p.store.CreateCollection(ctx, name, seed)
	if err != nil {
		return storage.Collection{}, fmt.Errorf("create collection %q: %w", name, err)
	}
	return c, nil
}

func (r *run) failAttach(indices []int, err error) {
	result := r.result
	for _, i := range indices {
		result.Tiles[i].AttachErr = err
	}
	result.AttachErr = &AttachError{Indices: indices, Err: err}
}

func (r *run) report(stage Stage, done, total int, percent float64) {
	if percent < r.lastPercent {
		percent = r.lastPercent
	}
	r.lastPercent = percent
	if r.config.OnProgress != nil {
		r.config.OnProgress(Progress{Stage: stage, Done: done, Total: total, Percent: percent})
	}
}

func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
