package io

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"

	"image-super-resolution/internal/tensor"
)

func newTestLoader() *ImageLoader {
	logger, _ := logtest.NewNullLogger()
	return NewImageLoader(logger)
}

func writePNG(t *testing.T, dir string, w, h int) string {
	t.Helper()
	src := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			src.SetRGBA(x, y, color.RGBA{R: uint8(x * 40), G: uint8(y * 40), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("png.Encode error: %v", err)
	}
	path := filepath.Join(dir, "input.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	return path
}

func TestLoadImage_DecodesBGR(t *testing.T) {
	path := writePNG(t, t.TempDir(), 3, 2)

	img, err := newTestLoader().LoadImage(path)
	if err != nil {
		t.Fatalf("LoadImage error: %v", err)
	}
	if img.Rows != 2 || img.Cols != 3 {
		t.Fatalf("size = %dx%d, want 3x2", img.Cols, img.Rows)
	}
	b, g, r := img.At(1, 2)
	if b != 200 || g != 40 || r != 80 {
		t.Errorf("At(1,2) = (%d,%d,%d), want (200,40,80)", b, g, r)
	}
}

func TestLoadImage_Errors(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "broken.png")
	if err := os.WriteFile(corrupt, []byte("not a png"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{"unsupported extension", filepath.Join(dir, "image.gif"), ErrUnsupportedFormat},
		{"missing file", filepath.Join(dir, "missing.png"), ErrDecode},
		{"corrupt file", corrupt, ErrDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestLoader().LoadImage(tt.path)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("LoadImage() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncode_PNGRoundTrip(t *testing.T) {
	loader := newTestLoader()
	img := tensor.NewImage(4, 5)
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 7)
	}

	data, err := loader.Encode(img, "PNG")
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	if !bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G'}) {
		t.Error("encoded data does not start with the PNG signature")
	}

	path := filepath.Join(t.TempDir(), "out.png")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	back, err := loader.LoadImage(path)
	if err != nil {
		t.Fatalf("LoadImage error: %v", err)
	}
	if !back.Equal(img) {
		t.Error("PNG round trip changed pixels")
	}
}

func TestEncode_RejectsUnknownFormat(t *testing.T) {
	_, err := newTestLoader().Encode(tensor.NewImage(1, 1), ".gif")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("Encode() error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestEncode_RejectsEmptyImage(t *testing.T) {
	_, err := newTestLoader().Encode(&tensor.Image{}, ".png")
	if !errors.Is(err, ErrEncode) {
		t.Fatalf("Encode() error = %v, want ErrEncode", err)
	}
}

func TestNormalizeExtension(t *testing.T) {
	tests := map[string]string{
		"":      ".png",
		"PNG":   ".png",
		".JPG":  ".jpg",
		" bmp ": ".bmp",
	}
	for in, want := range tests {
		if got := NormalizeExtension(in); got != want {
			t.Errorf("NormalizeExtension(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsSupported(t *testing.T) {
	if !IsSupported("/tmp/Photo.JPEG", InputExtensions) {
		t.Error("expected .JPEG to be supported")
	}
	if IsSupported("/tmp/photo.tiff", InputExtensions) {
		t.Error("expected .tiff to be rejected")
	}
}
