package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	carousel "github.com/menta2k/image-carousel"
	"github.com/menta2k/image-carousel/internal/config"
	"github.com/menta2k/image-carousel/internal/server"
	"github.com/menta2k/image-carousel/internal/utils"
	"github.com/menta2k/image-carousel/pkg/analyzer"
	"github.com/menta2k/image-carousel/pkg/export"
	"github.com/menta2k/image-carousel/pkg/storage"
	"github.com/menta2k/image-carousel/pkg/storage/memory"
)

// newSplitter wires the configured codec options and subject locator
func newSplitter(cfg *config.Config, store storage.Store) (*carousel.Splitter, error) {
	opts, err := cfg.Output.Options()
	if err != nil {
		return nil, err
	}
	locator, err := cfg.Subject.NewLocator()
	if err != nil {
		return nil, err
	}
	return carousel.NewWithConfig(store, carousel.Config{
		Analyzer: analyzer.DefaultConfig(),
		Export: export.Config{
			Encoding:         opts,
			CopyToCollection: cfg.Output.CopyToCollection,
		},
		Locator: locator,
	}), nil
}

type planCmd struct {
	Source string `arg:"" help:"Image path or http(s) URL"`

	Layout layoutFlags `embed:""`
}

func (cmd *planCmd) Run(g *globals) error {
	ctx, cancel := g.setup()
	defer cancel()

	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	req, err := cmd.Layout.request(cfg.Layout)
	if err != nil {
		return err
	}
	splitter, err := newSplitter(cfg, memory.New())
	if err != nil {
		return err
	}

	plan, err := splitter.PlanSource(ctx, cmd.Source, req)
	if err != nil {
		return err
	}
	return printJSON(plan)
}

type splitCmd struct {
	Sources []string `arg:"" help:"Image paths, directories or http(s) URLs"`

	Layout layoutFlags `embed:""`

	Collection  string `help:"Collection the tiles are added to"`
	Format      string `help:"Tile format: jpg, png or webp" short:"f"`
	Quality     int    `help:"JPEG/WebP quality (1-100)" short:"q"`
	Out         string `help:"Also write the encoded tiles to this directory" type:"path" short:"o"`
	DryRun      bool   `help:"Keep tiles in memory instead of the configured store"`
	Concurrency int    `help:"Images processed in parallel (default: number of CPUs)"`
}

// splitSummary is printed as one JSON line per source
type splitSummary struct {
	Source       string            `json:"source"`
	Status       string            `json:"status,omitempty"`
	Collection   string            `json:"collection,omitempty"`
	Assets       []storage.AssetID `json:"assets,omitempty"`
	FailedAttach []int             `json:"failed_attach,omitempty"`
	Files        []string          `json:"files,omitempty"`
	Error        string            `json:"error,omitempty"`
}

func (cmd *splitCmd) Run(g *globals) error {
	ctx, cancel := g.setup()
	defer cancel()

	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if cmd.Format != "" {
		cfg.Output.Format = cmd.Format
	}
	if cmd.Quality != 0 {
		cfg.Output.Quality = cmd.Quality
	}
	if cmd.Collection != "" {
		cfg.Output.Collection = cmd.Collection
	}
	if cmd.DryRun {
		cfg.Storage.Backend = config.BackendMemory
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	req, err := cmd.Layout.request(cfg.Layout)
	if err != nil {
		return err
	}
	req.Collection = cfg.Output.Collection

	store, err := cfg.Storage.OpenStore(ctx)
	if err != nil {
		return err
	}
	splitter, err := newSplitter(cfg, store)
	if err != nil {
		return err
	}

	sources, err := expandSources(cmd.Sources)
	if err != nil {
		return err
	}

	workers := cmd.Concurrency
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	summaries := make([]splitSummary, len(sources))
	p := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(workers)
	for i, source := range sources {
		p.Go(func(ctx context.Context) error {
			summary, err := cmd.splitOne(ctx, splitter, source, req)
			if err != nil {
				log.Ctx(ctx).Error().Err(err).Str("source", source).Msg("split failed")
				summary.Error = err.Error()
			}
			summaries[i] = summary
			return err
		})
	}
	err = p.Wait()

	for _, s := range summaries {
		if perr := printJSON(s); perr != nil {
			log.Error().Err(perr).Msg("Failed to encode summary")
		}
	}
	return err
}

func (cmd *splitCmd) splitOne(ctx context.Context, splitter *carousel.Splitter, source string, req carousel.Request) (splitSummary, error) {
	summary := splitSummary{Source: source}
	logger := log.Ctx(ctx).With().Str("source", source).Logger()
	ctx = logger.WithContext(ctx)

	req.OnProgress = func(p export.Progress) {
		logger.Debug().Str("stage", string(p.Stage)).Int("done", p.Done).Int("total", p.Total).Float64("percent", p.Percent).Msg("progress")
	}

	out, err := splitter.Split(ctx, source, req)
	if out != nil && out.Result != nil {
		summary.Status = out.Result.Status.String()
		summary.Collection = out.Result.Collection.Name
		summary.Assets = out.Result.Assets
		summary.FailedAttach = out.Result.FailedAttach()
	}
	if err != nil {
		return summary, err
	}

	if out.Result.Status == export.PartialAttach {
		logger.Warn().Ints("failed", summary.FailedAttach).Msg("some tiles were not added to the collection")
	} else {
		var total int64
		for _, t := range out.Result.Tiles {
			total += int64(t.Bytes)
		}
		logger.Info().
			Str("collection", summary.Collection).
			Int("tiles", len(summary.Assets)).
			Str("size", utils.FormatFileSize(total)).
			Msg("split complete")
	}

	if cmd.Out != "" {
		files, werr := writeTiles(cmd.Out, source, out.Result)
		summary.Files = files
		if werr != nil {
			return summary, werr
		}
	}
	return summary, nil
}

// writeTiles saves the encoded tiles in dir, named after the source
func writeTiles(dir, source string, result *export.Result) ([]string, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if i := strings.IndexAny(source, "?#"); i >= 0 && analyzer.IsURL(source) {
		source = source[:i]
	}

	var files []string
	for _, t := range result.Tiles {
		if len(t.Encoded.Data) == 0 {
			continue
		}
		name := filepath.Join(dir, utils.TileFilename(source, t.Index, len(result.Tiles), t.Encoded.Format.Extension()))
		if err := os.WriteFile(name, t.Encoded.Data, 0644); err != nil {
			return files, fmt.Errorf("failed to write tile %d: %w", t.Index, err)
		}
		files = append(files, name)
	}
	return files, nil
}

// expandSources replaces directories with the images they contain
func expandSources(sources []string) ([]string, error) {
	var out []string
	for _, source := range sources {
		if analyzer.IsURL(source) || !utils.DirExists(source) {
			out = append(out, source)
			continue
		}
		files, err := utils.ListImageFiles(source)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", source, err)
		}
		out = append(out, files...)
	}
	if len(out) == 0 {
		return nil, errors.New("no images to split")
	}
	return out, nil
}

type serveCmd struct {
	Addr string `help:"Listen address, overrides server.addr"`
}

func (cmd *serveCmd) Run(g *globals) error {
	ctx, cancel := g.setup()
	defer cancel()

	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if cmd.Addr != "" {
		cfg.Server.Addr = cmd.Addr
	}

	store, err := cfg.Storage.OpenStore(ctx)
	if err != nil {
		return err
	}
	splitter, err := newSplitter(cfg, store)
	if err != nil {
		return err
	}

	srv := server.New(splitter, server.Config{
		Addr:       cfg.Server.Addr,
		BodyLimit:  cfg.Server.BodyLimitMB * 1024 * 1024,
		Layout:     cfg.Layout,
		Collection: cfg.Output.Collection,
		OnReady: func(addr string) {
			log.Ctx(ctx).Info().Str("backend", cfg.Storage.Backend).Msgf("Server started at %s", addr)
		},
	})
	return srv.Run(ctx)
}

type configCmd struct {
	Init configInitCmd `cmd:"" help:"Write a configuration file with default values"`
	Show configShowCmd `cmd:"" help:"Print the effective configuration"`
}

type configInitCmd struct {
	Path  string `arg:"" optional:"" help:"Destination (default: ~/.config/image-carousel/config.yaml)" type:"path"`
	Force bool   `help:"Overwrite an existing file"`
}

func (cmd *configInitCmd) Run(g *globals) error {
	path := cmd.Path
	if path == "" {
		path = config.GetConfigPath()
	}
	if _, err := os.Stat(path); err == nil && !cmd.Force {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}
	if err := config.Default().SaveToFile(path); err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

type configShowCmd struct{}

func (cmd *configShowCmd) Run(g *globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	return printJSON(cfg)
}
