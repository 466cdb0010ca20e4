package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsImageFile(t *testing.T) {
	tests := map[string]bool{
		"photo.JPG":  true,
		"photo.webp": true,
		"notes.txt":  false,
		"noext":      false,
	}
	for input, expected := range tests {
		if got := IsImageFile(input); got != expected {
			t.Errorf("IsImageFile(%s) = %v, expected %v", input, got, expected)
		}
	}
}

func TestTileFilename(t *testing.T) {
	tests := []struct {
		source   string
		index    int
		count    int
		ext      string
		expected string
	}{
		{"dir/beach.jpg", 0, 4, ".jpg", "beach_01of04.jpg"},
		{"beach.png", 9, 10, ".webp", "beach_10of10.webp"},
		{"a:b.jpg", 1, 2, ".png", "a_b_02of02.png"},
	}

	for _, test := range tests {
		result := TileFilename(test.source, test.index, test.count, test.ext)
		if result != test.expected {
			t.Errorf("TileFilename(%s, %d, %d) = %s, expected %s",
				test.source, test.index, test.count, result, test.expected)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"Pixert":        "Pixert",
		"my/album":      "my_album",
		" ..hidden.. ":  "hidden",
		"...":           "_",
		"a<b>c|d?e*f\"": "a_b_c_d_e_f_",
	}
	for input, expected := range tests {
		if got := SanitizeFilename(input); got != expected {
			t.Errorf("SanitizeFilename(%q) = %q, expected %q", input, got, expected)
		}
	}
}

func TestListImageFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.jpg", "a.png", "readme.md", "sub/c.webp"} {
		path := filepath.Join(dir, name)
		if err := EnsureDir(filepath.Dir(path)); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := ListImageFiles(dir)
	if err != nil {
		t.Fatalf("ListImageFiles failed: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("Expected 3 images, got %v", files)
	}
	if filepath.Base(files[0]) != "a.png" {
		t.Errorf("Expected sorted output, got %v", files)
	}

	if !FileExists(files[0]) || FileExists(dir) {
		t.Error("FileExists gave wrong answer")
	}
	if !DirExists(dir) || DirExists(files[0]) {
		t.Error("DirExists gave wrong answer")
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := map[int64]string{
		512:     "512 B",
		2048:    "2.0 KB",
		5242880: "5.0 MB",
	}
	for input, expected := range tests {
		if got := FormatFileSize(input); got != expected {
			t.Errorf("FormatFileSize(%d) = %s, expected %s", input, got, expected)
		}
	}
}
