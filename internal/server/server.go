// Package server exposes planning and splitting over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	carousel "github.com/menta2k/image-carousel"
	"github.com/menta2k/image-carousel/internal/config"
	"github.com/menta2k/image-carousel/pkg/analyzer"
	"github.com/menta2k/image-carousel/pkg/export"
	"github.com/menta2k/image-carousel/pkg/grid"
	"github.com/menta2k/image-carousel/pkg/storage"
	"github.com/menta2k/image-carousel/pkg/types"
)

type Config struct {
	Addr      string
	BodyLimit int
	// Layout supplies defaults for fields a request leaves empty
	Layout     config.LayoutConfig
	Collection string
	OnReady    func(addr string)
}

type Server struct {
	config   Config
	splitter *carousel.Splitter
	app      *fiber.App
}

func New(splitter *carousel.Splitter, cfg Config) *Server {
	s := &Server{config: cfg, splitter: splitter}
	s.app = fiber.New(fiber.Config{
		Immutable:             true,
		DisableStartupMessage: true,
		BodyLimit:             cfg.BodyLimit,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Ctx(c.UserContext()).Error().
				Err(err).
				Str("path", c.Path()).
				Str("method", c.Method()).
				Msg("Request failed")
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
			}
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Internal Server Error"})
		},
	})

	s.app.Get("/api/presets", s.handlePresets)
	s.app.Post("/api/plan", s.handlePlan)
	s.app.Post("/api/split", s.handleSplit)
	return s
}

// App returns the underlying fiber app
func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves until ctx is done
func (s *Server) Run(ctx context.Context) error {
	s.app.Hooks().OnListen(func(listen fiber.ListenData) error {
		if fn := s.config.OnReady; fn != nil {
			fn(fmt.Sprintf("http://%s:%s", listen.Host, listen.Port))
		}
		return nil
	})

	go func() {
		<-ctx.Done()
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("Failed to shutdown server")
		}
	}()

	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	if err := s.app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

type presetResponse struct {
	Name  string  `json:"name"`
	Ratio string  `json:"ratio"`
	Value float64 `json:"value"`
}

func (s *Server) handlePresets(c *fiber.Ctx) error {
	var presets []presetResponse
	for _, r := range grid.CommonAspectRatios() {
		presets = append(presets, presetResponse{Name: r.Name, Ratio: r.String(), Value: r.Value()})
	}
	return c.JSON(fiber.Map{
		"aspect_ratios": presets,
		"split_count":   fiber.Map{"min": grid.MinSplitCount, "max": grid.MaxSplitCount},
		"alignments":    []string{"top", "center", "bottom", "custom", "subject"},
	})
}

func (s *Server) handlePlan(c *fiber.Ctx) error {
	var req layoutRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	size := types.ImageSize{Width: req.Width, Height: req.Height}
	if !size.Valid() {
		return fiber.NewError(http.StatusBadRequest, "width and height are required")
	}

	r, preview, err := req.toRequest(s.config.Layout)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	plan, err := s.splitter.PlanSize(size, r)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(fiber.Map{"plan": plan, "preview": preview})
}

type splitResponse struct {
	Status       export.Status       `json:"status"`
	Collection   storage.Collection  `json:"collection"`
	Assets       []storage.AssetID   `json:"assets"`
	Tiles        []export.TileResult `json:"tiles"`
	FailedAttach []int               `json:"failed_attach,omitempty"`
	Plan         *carousel.Plan      `json:"plan"`
	Error        string              `json:"error,omitempty"`
}

func (s *Server) handleSplit(c *fiber.Ctx) error {
	var req layoutRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	fh, err := c.FormFile("image")
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "multipart field 'image' is required")
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	r, _, err := req.toRequest(s.config.Layout)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	r.Collection = req.Collection
	if r.Collection == "" {
		r.Collection = s.config.Collection
	}

	out, err := s.splitter.SplitReader(c.UserContext(), f, r)
	if out == nil || out.Result == nil {
		if err == nil {
			err = errors.New("split produced no result")
		}
		return httpError(err)
	}

	res := out.Result
	body := splitResponse{
		Status:       res.Status,
		Collection:   res.Collection,
		Assets:       res.Assets,
		Tiles:        res.Tiles,
		FailedAttach: res.FailedAttach(),
		Plan:         out.Plan,
	}
	status := http.StatusOK
	if err != nil {
		body.Error = err.Error()
		status = http.StatusInternalServerError
	} else if res.AttachErr != nil {
		body.Error = res.AttachErr.Error()
	}
	return c.Status(status).JSON(body)
}

func httpError(err error) error {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, grid.ErrInvalidParameters), errors.Is(err, carousel.ErrSubjectUnavailable),
		errors.Is(err, analyzer.ErrInvalidImage):
		code = http.StatusBadRequest
	case errors.Is(err, grid.ErrDegenerateTile), errors.Is(err, grid.ErrOutOfBounds):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrPermissionDenied):
		code = http.StatusForbidden
	}
	return fiber.NewError(code, err.Error())
}
