package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	carousel "github.com/menta2k/image-carousel"
	"github.com/menta2k/image-carousel/internal/config"
	"github.com/menta2k/image-carousel/pkg/storage/memory"
)

func newTestServer(store *memory.Store) *Server {
	return New(carousel.New(store), Config{
		Layout:     config.Default().Layout,
		Collection: "Pixert",
	})
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("Invalid JSON %q: %v", body, err)
	}
}

func TestPresets(t *testing.T) {
	s := newTestServer(memory.New())

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/api/presets", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		AspectRatios []presetResponse `json:"aspect_ratios"`
	}
	decode(t, resp, &body)
	if len(body.AspectRatios) != 3 || body.AspectRatios[1].Ratio != "4:5" {
		t.Errorf("Unexpected presets %+v", body.AspectRatios)
	}
}

func postJSON(t *testing.T, s *Server, path, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestPlan(t *testing.T) {
	s := newTestServer(memory.New())

	tests := []struct {
		name     string
		body     string
		status   int
		firstX   int
		firstY   int
		tileSize int
	}{
		{"scenario A", `{"width":1200,"height":1600,"split_count":4,"aspect_ratio":"4:5","halign":"left"}`, http.StatusOK, 0, 0, 300},
		{"bottom", `{"width":1200,"height":1600,"split_count":4,"aspect_ratio":"portrait","alignment":"bottom"}`, http.StatusOK, 0, 1225, 300},
		{"centered wide", `{"width":2400,"height":1000,"split_count":2,"aspect_ratio":"1:1"}`, http.StatusOK, 200, 0, 1000},
		{"preview drag", `{"width":1200,"height":1600,"split_count":4,"aspect_ratio":"4:5","alignment":"custom","preview_width":300,"preview_height":400,"preview_offset":1000}`, http.StatusOK, 0, 1225, 300},
		{"missing size", `{"split_count":4}`, http.StatusBadRequest, 0, 0, 0},
		{"split too large", `{"width":100,"height":100,"split_count":11}`, http.StatusBadRequest, 0, 0, 0},
		{"scale too large", `{"width":1200,"height":1600,"split_count":4,"scale_percent":1.5}`, http.StatusUnprocessableEntity, 0, 0, 0},
		{"degenerate", `{"width":3,"height":1000,"split_count":10,"aspect_ratio":"1:1"}`, http.StatusUnprocessableEntity, 0, 0, 0},
		{"subject without image", `{"width":100,"height":100,"alignment":"subject"}`, http.StatusBadRequest, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, s, "/api/plan", tt.body)
			if resp.StatusCode != tt.status {
				t.Fatalf("Expected %d, got %d", tt.status, resp.StatusCode)
			}
			if tt.status != http.StatusOK {
				return
			}
			var body struct {
				Plan carousel.Plan `json:"plan"`
			}
			decode(t, resp, &body)
			first := body.Plan.Tiles[0]
			if first.X != tt.firstX || first.Y != tt.firstY || first.Width != tt.tileSize {
				t.Errorf("Unexpected first tile %+v", first)
			}
		})
	}
}

func multipartImage(t *testing.T, fields map[string]string, width, height int) (*bytes.Buffer, string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 0, 255})
		}
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		w.WriteField(k, v)
	}
	part, err := w.CreateFormFile("image", "photo.png")
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(part, img); err != nil {
		t.Fatal(err)
	}
	w.Close()
	return &buf, w.FormDataContentType()
}

func TestSplit(t *testing.T) {
	store := memory.New()
	s := newTestServer(store)

	body, ctype := multipartImage(t, map[string]string{"split_count": "3", "aspect_ratio": "1:1"}, 300, 200)
	req := httptest.NewRequest(http.MethodPost, "/api/split", body)
	req.Header.Set("Content-Type", ctype)

	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var out struct {
		Status string   `json:"status"`
		Assets []string `json:"assets"`
	}
	decode(t, resp, &out)
	if out.Status != "complete" || len(out.Assets) != 3 {
		t.Errorf("Unexpected response %+v", out)
	}
	if len(store.Members("Pixert")) != 3 {
		t.Errorf("Expected tiles in the default collection")
	}
}

func TestSplitPartialAttach(t *testing.T) {
	store := memory.New()
	store.Faults.RejectRichCreate = true
	store.Faults.FailCreate = io.ErrClosedPipe
	s := newTestServer(store)

	body, ctype := multipartImage(t, map[string]string{"split_count": "2", "aspect_ratio": "1:1", "collection": "album"}, 200, 100)
	req := httptest.NewRequest(http.MethodPost, "/api/split", body)
	req.Header.Set("Content-Type", ctype)

	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	var out struct {
		Status       string `json:"status"`
		FailedAttach []int  `json:"failed_attach"`
		Error        string `json:"error"`
	}
	decode(t, resp, &out)
	if resp.StatusCode != http.StatusOK || out.Status != "partial_attach" || len(out.FailedAttach) != 2 || out.Error == "" {
		t.Errorf("Unexpected response %d %+v", resp.StatusCode, out)
	}
}

func TestSplitErrors(t *testing.T) {
	store := memory.New()
	store.Faults.DenyAccess = true
	s := newTestServer(store)

	body, ctype := multipartImage(t, map[string]string{"split_count": "2"}, 200, 100)
	req := httptest.NewRequest(http.MethodPost, "/api/split", body)
	req.Header.Set("Content-Type", ctype)
	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/split", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	resp, err = s.App().Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 without image, got %d", resp.StatusCode)
	}
}

func TestPlanRejectsNaNOffset(t *testing.T) {
	s := newTestServer(memory.New())

	form := "width=1200&height=1600&split_count=4&alignment=custom&vertical_offset=NaN"
	req := httptest.NewRequest(http.MethodPost, "/api/plan", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for NaN offset, got %d", resp.StatusCode)
	}
}

func TestSplitRejectsBadUpload(t *testing.T) {
	s := newTestServer(memory.New())

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", "notes.png")
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte("definitely not a picture"))
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/split", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for undecodable upload, got %d", resp.StatusCode)
	}

	// 1x1 decodes but is below the minimum size
	tiny, ctype := multipartImage(t, nil, 1, 1)
	req = httptest.NewRequest(http.MethodPost, "/api/split", tiny)
	req.Header.Set("Content-Type", ctype)
	if resp, err = s.App().Test(req, -1); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for undersized upload, got %d", resp.StatusCode)
	}
}
