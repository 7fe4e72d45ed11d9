// Package tensor converts between 8-bit BGR pixel grids and the
// normalized NCHW float tensors a super-resolution network consumes.
package tensor

import (
	"fmt"
	"math"
)

// Tensor is a dense float32 array. Shape lists dimensions outermost first.
type Tensor struct {
	Shape []int
	Data  []float32
}

func New(shape ...int) *Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}
	s := make([]int, len(shape))
	copy(s, shape)
	return &Tensor{Shape: s, Data: make([]float32, n)}
}

// Len returns the number of elements implied by Shape.
func (t *Tensor) Len() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Dims4 unpacks an NCHW shape.
func (t *Tensor) Dims4() (n, c, h, w int, err error) {
	if len(t.Shape) != 4 {
		return 0, 0, 0, 0, fmt.Errorf("expected 4-dimensional tensor, got shape %v", t.Shape)
	}
	return t.Shape[0], t.Shape[1], t.Shape[2], t.Shape[3], nil
}

// FromImage scales every channel to [0,1], swaps BGR to RGB, moves channels
// to the front and prepends a batch dimension of one.
func FromImage(img *Image) *Tensor {
	h, w := img.Rows, img.Cols
	plane := h * w
	t := New(1, Channels, h, w)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			b, g, r := img.At(y, x)
			i := y*w + x
			t.Data[i] = float32(r) / 255
			t.Data[plane+i] = float32(g) / 255
			t.Data[2*plane+i] = float32(b) / 255
		}
	}
	return t
}

// ToImage reverses FromImage: it drops the batch dimension, clamps to [0,1],
// swaps RGB back to BGR, interleaves the channels and quantizes to 8 bits
// with round-to-nearest.
func ToImage(t *Tensor) (*Image, error) {
	n, c, h, w, err := t.Dims4()
	if err != nil {
		return nil, err
	}
	if n != 1 || c != Channels {
		return nil, fmt.Errorf("expected shape [1 %d H W], got %v", Channels, t.Shape)
	}
	if h <= 0 || w <= 0 {
		return nil, fmt.Errorf("invalid spatial size %dx%d", w, h)
	}
	if len(t.Data) != t.Len() {
		return nil, fmt.Errorf("tensor data length %d does not match shape %v", len(t.Data), t.Shape)
	}

	plane := h * w
	img := NewImage(h, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			img.Set(y, x,
				quantize(t.Data[2*plane+i]),
				quantize(t.Data[plane+i]),
				quantize(t.Data[i]),
			)
		}
	}
	return img, nil
}

func quantize(v float32) uint8 {
	f := float64(v)
	if math.IsNaN(f) || f < 0 {
		f = 0
	} else if f > 1 {
		f = 1
	}
	return uint8(math.Round(f * 255))
}
