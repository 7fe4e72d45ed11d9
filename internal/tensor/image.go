// Host-side pixel grid used between decoding and inference
package tensor

import (
	"fmt"
	"image"
	"image/color"
)

// Channels is the number of interleaved color channels in an Image.
const Channels = 3

// Image is an 8-bit pixel grid with interleaved BGR channels, stored row-major.
type Image struct {
	Rows int
	Cols int
	Pix  []uint8
}

func NewImage(rows, cols int) *Image {
	return &Image{
		Rows: rows,
		Cols: cols,
		Pix:  make([]uint8, rows*cols*Channels),
	}
}

// Empty reports whether the image holds no pixels.
func (img *Image) Empty() bool {
	return img == nil || img.Rows <= 0 || img.Cols <= 0 || len(img.Pix) == 0
}

// Validate checks that Pix matches the declared dimensions.
func (img *Image) Validate() error {
	if img == nil {
		return fmt.Errorf("image is nil")
	}
	if img.Rows <= 0 || img.Cols <= 0 {
		return fmt.Errorf("invalid image dimensions: %dx%d", img.Cols, img.Rows)
	}
	if want := img.Rows * img.Cols * Channels; len(img.Pix) != want {
		return fmt.Errorf("pixel buffer length %d does not match %dx%dx%d", len(img.Pix), img.Rows, img.Cols, Channels)
	}
	return nil
}

// At returns the B, G and R values at (row, col).
func (img *Image) At(row, col int) (b, g, r uint8) {
	i := (row*img.Cols + col) * Channels
	return img.Pix[i], img.Pix[i+1], img.Pix[i+2]
}

func (img *Image) Set(row, col int, b, g, r uint8) {
	i := (row*img.Cols + col) * Channels
	img.Pix[i], img.Pix[i+1], img.Pix[i+2] = b, g, r
}

func (img *Image) Clone() *Image {
	if img == nil {
		return nil
	}
	pix := make([]uint8, len(img.Pix))
	copy(pix, img.Pix)
	return &Image{Rows: img.Rows, Cols: img.Cols, Pix: pix}
}

// Equal reports whether both images have the same shape and bytes.
func (img *Image) Equal(other *Image) bool {
	if img == nil || other == nil {
		return img == other
	}
	if img.Rows != other.Rows || img.Cols != other.Cols || len(img.Pix) != len(other.Pix) {
		return false
	}
	for i := range img.Pix {
		if img.Pix[i] != other.Pix[i] {
			return false
		}
	}
	return true
}

// ToRGBA converts the BGR grid into an opaque Go image.
func (img *Image) ToRGBA() *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, img.Cols, img.Rows))
	for y := 0; y < img.Rows; y++ {
		for x := 0; x < img.Cols; x++ {
			b, g, r := img.At(y, x)
			dst.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: 0xff})
		}
	}
	return dst
}
