package analyzer

import (
	"bytes"
	"context"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestIsURL(t *testing.T) {
	tests := []struct {
		source string
		want   bool
	}{
		{"http://example.com/a.jpg", true},
		{"https://example.com/a.jpg", true},
		{"ftp://example.com/a.jpg", false},
		{"/tmp/a.jpg", false},
		{"photo.png", false},
	}
	for _, tt := range tests {
		if got := IsURL(tt.source); got != tt.want {
			t.Errorf("IsURL(%q) = %v, want %v", tt.source, got, tt.want)
		}
	}
}

func TestReadSourceURL(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, createTestImage(30, 20)); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/photo.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(buf.Bytes())
		case "/page":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	a := New()
	ctx := context.Background()

	data, err := a.ReadSource(ctx, srv.URL+"/photo.png")
	if err != nil {
		t.Fatalf("ReadSource failed: %v", err)
	}
	res, err := a.ResolveSize(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ResolveSize failed: %v", err)
	}
	if res.Size.Width != 30 || res.Size.Height != 20 {
		t.Errorf("Expected 30x20, got %v", res.Size)
	}

	if _, err := a.ReadSource(ctx, srv.URL+"/page"); err == nil {
		t.Error("Expected error for non-image content type")
	}
	if _, err := a.ReadSource(ctx, srv.URL+"/missing.png"); err == nil {
		t.Error("Expected error for 404")
	}
}

func TestReadSourceFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.bin")
	if err := os.WriteFile(path, []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}
	data, err := New().ReadSource(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadSource failed: %v", err)
	}
	if string(data) != "abc" {
		t.Errorf("Unexpected data %q", data)
	}
	if _, err := New().ReadSource(context.Background(), filepath.Join(t.TempDir(), "none")); err == nil {
		t.Error("Expected error for missing file")
	}
}
