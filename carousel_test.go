package carousel

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/menta2k/image-carousel/pkg/export"
	"github.com/menta2k/image-carousel/pkg/grid"
	"github.com/menta2k/image-carousel/pkg/storage/memory"
	"github.com/menta2k/image-carousel/pkg/subject"
	"github.com/menta2k/image-carousel/pkg/types"
)

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 64, 255})
		}
	}
	return img
}

func writePNG(t *testing.T, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

type fixedLocator struct {
	box subject.Box
}

func (l fixedLocator) Locate(ctx context.Context, img image.Image) (subject.Subject, error) {
	return subject.Subject{Label: "fixed", Confidence: 1, Box: l.box}, nil
}

func TestNew(t *testing.T) {
	s := New(memory.New())
	if s == nil {
		t.Fatal("New() returned nil")
	}
	if s.analyzer == nil || s.codec == nil || s.store == nil {
		t.Error("Splitter components not initialized")
	}
	if GetVersion() == "" {
		t.Error("Version should not be empty")
	}
}

func TestPlan(t *testing.T) {
	s := New(memory.New())

	plan, err := s.Plan(types.ImageSize{Width: 1200, Height: 1600}, grid.DefaultParameters(4, grid.Portrait))
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if plan.Axis != "width" || plan.TileWidth != 300 || plan.TileHeight != 375 {
		t.Errorf("Unexpected plan %+v", plan)
	}
	for i, r := range plan.Tiles {
		want := types.CropRectangle{X: 300 * i, Y: 0, Width: 300, Height: 375}
		if r != want {
			t.Errorf("Tile %d: expected %v, got %v", i, want, r)
		}
	}

	_, err = s.Plan(types.ImageSize{Width: 1200, Height: 1600}, grid.LayoutParameters{SplitCount: 4, AspectRatio: grid.Portrait, ScalePercent: 1.5})
	if !errors.Is(err, grid.ErrOutOfBounds) {
		t.Errorf("Expected ErrOutOfBounds, got %v", err)
	}
}

func TestPlanImagePlacement(t *testing.T) {
	s := New(memory.New())
	img := createTestImage(240, 100)

	plan, err := s.PlanImage(context.Background(), img, Request{
		Params:    grid.DefaultParameters(2, grid.Square),
		Placement: grid.Placement{Horizontal: grid.AlignCenter},
	})
	if err != nil {
		t.Fatalf("PlanImage failed: %v", err)
	}
	if plan.Axis != "height" || plan.Tiles[0].X != 20 || plan.Tiles[1].Right() != 220 {
		t.Errorf("Expected centered height-constrained row, got %+v", plan.Tiles)
	}
}

func TestPlanImageFollowSubject(t *testing.T) {
	img := createTestImage(100, 400)
	req := Request{Params: grid.DefaultParameters(2, grid.Square), FollowSubject: true}

	if _, err := New(memory.New()).PlanImage(context.Background(), img, req); !errors.Is(err, ErrSubjectUnavailable) {
		t.Errorf("Expected ErrSubjectUnavailable without locator, got %v", err)
	}

	cfg := DefaultConfig()
	cfg.Locator = fixedLocator{box: subject.Box{X: 0.4, Y: 0.9, W: 0.2, H: 0.1}}
	plan, err := NewWithConfig(memory.New(), cfg).PlanImage(context.Background(), img, req)
	if err != nil {
		t.Fatalf("PlanImage failed: %v", err)
	}
	// 50px tiles centered at y=380 clamp to the bottom edge
	if plan.Tiles[0].Y != 350 || plan.Subject == nil || plan.Subject.Label != "fixed" {
		t.Errorf("Expected row at the bottom with subject, got %+v", plan)
	}
}

func TestSplit(t *testing.T) {
	store := memory.New()
	path := writePNG(t, createTestImage(300, 200))

	var last export.Progress
	out, err := New(store).Split(context.Background(), path, Request{
		Params:     grid.DefaultParameters(3, grid.Square),
		Collection: "holiday",
		OnProgress: func(p export.Progress) { last = p },
	})
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if out.Result.Status != export.Complete {
		t.Errorf("Expected Complete, got %s", out.Result.Status)
	}
	if len(store.Members("holiday")) != 3 {
		t.Errorf("Expected 3 members, got %v", store.Members("holiday"))
	}
	if last.Percent != 100 {
		t.Errorf("Expected final progress 100, got %v", last.Percent)
	}
}

func TestSplitGeometryBeforeStorage(t *testing.T) {
	store := memory.New()
	store.Faults.DenyAccess = true
	path := writePNG(t, createTestImage(100, 100))

	_, err := New(store).Split(context.Background(), path, Request{
		Params: grid.LayoutParameters{SplitCount: 2, AspectRatio: grid.Square, ScalePercent: 1.5},
	})
	if !errors.Is(err, grid.ErrOutOfBounds) {
		t.Errorf("Expected geometry error before storage access, got %v", err)
	}
}

func TestSplitReader(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, createTestImage(120, 160)); err != nil {
		t.Fatal(err)
	}

	out, err := New(memory.New()).SplitReader(context.Background(), &buf, Request{
		Params: grid.DefaultParameters(2, grid.Classic),
	})
	if err != nil {
		t.Fatalf("SplitReader failed: %v", err)
	}
	if len(out.Result.Assets) != 2 || out.Plan.Size != (types.ImageSize{Width: 120, Height: 160}) {
		t.Errorf("Unexpected outcome %+v", out.Plan)
	}

	if _, err := New(memory.New()).SplitReader(context.Background(), bytes.NewReader([]byte("nope")), Request{}); err == nil {
		t.Error("Expected error for invalid image")
	}
}

func TestSplitURL(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, createTestImage(200, 100)); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	store := memory.New()
	out, err := New(store).Split(context.Background(), srv.URL+"/wide.png", Request{
		Params:     grid.DefaultParameters(2, grid.Square),
		Collection: "remote",
	})
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if out.Result.Status != export.Complete || len(store.Members("remote")) != 2 {
		t.Errorf("Unexpected result %+v", out.Result)
	}
}

func TestPlanSource(t *testing.T) {
	path := writePNG(t, createTestImage(400, 300))
	s := New(memory.New())

	plan, err := s.PlanSource(context.Background(), path, Request{
		Params:    grid.DefaultParameters(2, grid.Square),
		Placement: grid.Placement{Vertical: grid.AlignEnd},
	})
	if err != nil {
		t.Fatalf("PlanSource failed: %v", err)
	}
	if len(plan.Tiles) != 2 || plan.Tiles[0].Y != 100 {
		t.Errorf("Unexpected plan %+v", plan.Tiles)
	}

	if _, err := s.PlanSource(context.Background(), filepath.Join(t.TempDir(), "none.png"), Request{}); err == nil {
		t.Error("Expected error for missing file")
	}
}
