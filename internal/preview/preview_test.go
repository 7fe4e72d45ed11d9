package preview

import (
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"

	imgio "image-super-resolution/internal/io"
	"image-super-resolution/internal/tensor"
)

func TestFit(t *testing.T) {
	tests := []struct {
		name       string
		w, h       int
		maxW, maxH int
		wantW      int
		wantH      int
	}{
		{"already fits", 200, 100, 500, 300, 200, 100},
		{"landscape bound by width", 2000, 1000, 500, 300, 500, 250},
		{"landscape bound by height", 1600, 1200, 500, 300, 400, 300},
		{"portrait", 1000, 4000, 500, 300, 75, 300},
		{"square", 1024, 1024, 500, 300, 300, 300},
		{"extreme strip", 100000, 1, 500, 300, 500, 1},
		{"zero source", 0, 10, 500, 300, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := Fit(tt.w, tt.h, tt.maxW, tt.maxH)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("Fit(%d,%d,%d,%d) = %dx%d, want %dx%d",
					tt.w, tt.h, tt.maxW, tt.maxH, w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestFit_PreservesAspectRatio(t *testing.T) {
	w, h := Fit(1920, 1080, 500, 300)
	if w > 500 || h > 300 {
		t.Fatalf("Fit exceeded box: %dx%d", w, h)
	}
	src := 1920.0 / 1080.0
	got := float64(w) / float64(h)
	if diff := got - src; diff > 0.02 || diff < -0.02 {
		t.Errorf("aspect ratio = %.3f, want %.3f", got, src)
	}
}

func TestParseResampler(t *testing.T) {
	if r, err := ParseResampler(""); err != nil || r != Lanczos {
		t.Errorf("ParseResampler(\"\") = %q, %v", r, err)
	}
	if r, err := ParseResampler("catmullrom"); err != nil || r != CatmullRom {
		t.Errorf("ParseResampler(catmullrom) = %q, %v", r, err)
	}
	if _, err := ParseResampler("nearest"); err == nil {
		t.Error("ParseResampler(nearest) expected error")
	}
}

func solidImage(rows, cols int) *tensor.Image {
	img := tensor.NewImage(rows, cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			img.Set(y, x, 10, 120, 240)
		}
	}
	return img
}

func TestRender_Resamplers(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	for _, rs := range []Resampler{Lanczos, CatmullRom} {
		t.Run(string(rs), func(t *testing.T) {
			r := NewRenderer(50, 30, rs, logger)
			out, err := r.Render(solidImage(120, 200))
			if err != nil {
				t.Fatalf("Render error: %v", err)
			}
			b := out.Bounds()
			if b.Dx() != 50 || b.Dy() != 30 {
				t.Fatalf("preview = %dx%d, want 50x30", b.Dx(), b.Dy())
			}
			cr, cg, cb, _ := out.At(25, 15).RGBA()
			if !near(cr>>8, 240) || !near(cg>>8, 120) || !near(cb>>8, 10) {
				t.Errorf("center = (%d,%d,%d), want (240,120,10)", cr>>8, cg>>8, cb>>8)
			}
		})
	}
}

// near allows one level of rounding drift from the resampling kernels.
func near(got uint32, want int) bool {
	d := int(got) - want
	return d >= -1 && d <= 1
}

func TestRender_SmallImageKeepsSize(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	r := NewRenderer(0, 0, CatmullRom, logger)
	out, err := r.Render(solidImage(10, 20))
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if b := out.Bounds(); b.Dx() != 20 || b.Dy() != 10 {
		t.Errorf("preview = %dx%d, want 20x10", b.Dx(), b.Dy())
	}
	if w, h := r.Bounds(); w != DefaultMaxWidth || h != DefaultMaxHeight {
		t.Errorf("Bounds() = %dx%d, want defaults", w, h)
	}
}

func TestRender_RejectsEmpty(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	if _, err := NewRenderer(10, 10, Lanczos, logger).Render(&tensor.Image{}); err == nil {
		t.Fatal("Render expected error for empty image")
	}
}

func TestStepDown_StopsWithinTwiceTarget(t *testing.T) {
	src, err := imgio.ImageToMat(solidImage(300, 1000))
	if err != nil {
		t.Fatalf("ImageToMat error: %v", err)
	}
	defer src.Close()

	out, err := stepDown(src, 100, 30)
	if err != nil {
		t.Fatalf("stepDown error: %v", err)
	}
	defer out.Close()

	if out.Cols() > 200 || out.Rows() > 60 {
		t.Errorf("stepDown left %dx%d, want within 200x60", out.Cols(), out.Rows())
	}
	if out.Cols() < 100 || out.Rows() < 30 {
		t.Errorf("stepDown went below target: %dx%d", out.Cols(), out.Rows())
	}
}
