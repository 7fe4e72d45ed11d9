package tensor

import (
	"math"
	"testing"
)

func gradientImage(rows, cols int) *Image {
	img := NewImage(rows, cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			img.Set(y, x, uint8((x*37+y)%256), uint8((y*53+x*7)%256), uint8((x*y+11)%256))
		}
	}
	return img
}

func TestFromImage_LayoutAndScale(t *testing.T) {
	img := NewImage(1, 2)
	img.Set(0, 0, 255, 0, 51) // B G R
	img.Set(0, 1, 0, 102, 255)

	tn := FromImage(img)

	wantShape := []int{1, 3, 1, 2}
	for i, d := range wantShape {
		if tn.Shape[i] != d {
			t.Fatalf("Shape = %v, want %v", tn.Shape, wantShape)
		}
	}

	// Channel 0 is red, channel 2 is blue.
	want := []float32{51.0 / 255, 1, 0, 102.0 / 255, 1, 0}
	for i, v := range want {
		if math.Abs(float64(tn.Data[i]-v)) > 1e-6 {
			t.Errorf("Data[%d] = %v, want %v", i, tn.Data[i], v)
		}
	}
}

func TestRoundTrip_IsLossless(t *testing.T) {
	sizes := []struct{ rows, cols int }{
		{1, 1},
		{3, 5},
		{16, 16},
		{17, 9},
	}
	for _, s := range sizes {
		img := gradientImage(s.rows, s.cols)
		back, err := ToImage(FromImage(img))
		if err != nil {
			t.Fatalf("ToImage(%dx%d) error: %v", s.cols, s.rows, err)
		}
		if !back.Equal(img) {
			t.Errorf("round trip of %dx%d image changed pixels", s.cols, s.rows)
		}
	}
}

func TestRoundTrip_AllByteValues(t *testing.T) {
	img := NewImage(1, 256)
	for x := 0; x < 256; x++ {
		v := uint8(x)
		img.Set(0, x, v, 255-v, v/2)
	}
	back, err := ToImage(FromImage(img))
	if err != nil {
		t.Fatalf("ToImage error: %v", err)
	}
	if !back.Equal(img) {
		t.Fatal("round trip over every byte value changed pixels")
	}
}

func TestToImage_ClampsAndRounds(t *testing.T) {
	tn := New(1, 3, 1, 1)
	tn.Data[0] = 1.7                // R above range
	tn.Data[1] = -0.3               // G below range
	tn.Data[2] = float32(127.5/255) // B halfway

	img, err := ToImage(tn)
	if err != nil {
		t.Fatalf("ToImage error: %v", err)
	}
	b, g, r := img.At(0, 0)
	if r != 255 {
		t.Errorf("r = %d, want 255", r)
	}
	if g != 0 {
		t.Errorf("g = %d, want 0", g)
	}
	if b != 128 {
		t.Errorf("b = %d, want 128", b)
	}
}

func TestToImage_NaNBecomesZero(t *testing.T) {
	tn := New(1, 3, 1, 1)
	tn.Data[0] = float32(math.NaN())
	img, err := ToImage(tn)
	if err != nil {
		t.Fatalf("ToImage error: %v", err)
	}
	if _, _, r := img.At(0, 0); r != 0 {
		t.Errorf("r = %d, want 0", r)
	}
}

func TestToImage_RejectsBadShapes(t *testing.T) {
	tests := []struct {
		name  string
		shape []int
	}{
		{"three dims", []int{3, 4, 4}},
		{"batch of two", []int{2, 3, 4, 4}},
		{"single channel", []int{1, 1, 4, 4}},
		{"zero height", []int{1, 3, 0, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ToImage(New(tt.shape...)); err == nil {
				t.Errorf("ToImage(%v) expected error", tt.shape)
			}
		})
	}
}

func TestToImage_RejectsShortData(t *testing.T) {
	tn := &Tensor{Shape: []int{1, 3, 2, 2}, Data: make([]float32, 5)}
	if _, err := ToImage(tn); err == nil {
		t.Fatal("expected error for truncated data")
	}
}
