// Image file decoding and encoding on top of OpenCV
package io

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"image-super-resolution/internal/tensor"
)

// DefaultExtension is used when a save path carries no extension.
const DefaultExtension = ".png"

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrDecode            = errors.New("unable to decode image")
	ErrEncode            = errors.New("unable to encode image")
)

// InputExtensions are the formats offered when picking an input image.
var InputExtensions = []string{".png", ".jpg", ".jpeg", ".bmp"}

// OutputExtensions are the formats an upscaled image can be written as.
var OutputExtensions = []string{".png", ".jpg", ".jpeg", ".bmp"}

// ImageLoader handles image file operations
type ImageLoader struct {
	logger logrus.FieldLogger
}

func NewImageLoader(logger logrus.FieldLogger) *ImageLoader {
	return &ImageLoader{
		logger: logger,
	}
}

// LoadImage decodes a file into an 8-bit BGR image.
func (il *ImageLoader) LoadImage(path string) (*tensor.Image, error) {
	il.logger.WithField("filepath", path).Debug("Loading image")

	if !IsSupported(path, InputExtensions) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	mat := gocv.IMRead(path, gocv.IMReadColor)
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("%w at %s", ErrDecode, path)
	}

	img, err := MatToImage(mat)
	if err != nil {
		return nil, fmt.Errorf("%w at %s: %v", ErrDecode, path, err)
	}

	il.logger.WithFields(logrus.Fields{
		"filepath": path,
		"width":    img.Cols,
		"height":   img.Rows,
	}).Info("Image loaded successfully")

	return img, nil
}

// Encode compresses img into the format named by ext (".png", ".jpg", ...).
func (il *ImageLoader) Encode(img *tensor.Image, ext string) ([]byte, error) {
	if img.Empty() {
		return nil, fmt.Errorf("%w: cannot encode empty image", ErrEncode)
	}
	ext = NormalizeExtension(ext)
	if !containsExt(OutputExtensions, ext) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	mat, err := ImageToMat(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	defer mat.Close()

	buf, err := gocv.IMEncode(gocv.FileExt(ext), mat)
	if err != nil {
		return nil, fmt.Errorf("%w as %s: %v", ErrEncode, ext, err)
	}
	defer buf.Close()

	// The native buffer is freed on Close.
	src := buf.GetBytes()
	data := make([]byte, len(src))
	copy(data, src)

	return data, nil
}

// MatToImage copies an 8-bit three-channel Mat into a BGR image.
func MatToImage(mat gocv.Mat) (*tensor.Image, error) {
	if mat.Empty() {
		return nil, fmt.Errorf("mat is empty")
	}
	if mat.Type() != gocv.MatTypeCV8UC3 {
		return nil, fmt.Errorf("expected 8-bit 3-channel mat, got type %v", mat.Type())
	}

	img := &tensor.Image{
		Rows: mat.Rows(),
		Cols: mat.Cols(),
		Pix:  mat.ToBytes(),
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return img, nil
}

// ImageToMat builds an owned 8-bit three-channel Mat from a BGR image.
// The caller must Close the result.
func ImageToMat(img *tensor.Image) (gocv.Mat, error) {
	if err := img.Validate(); err != nil {
		return gocv.NewMat(), err
	}

	view, err := gocv.NewMatFromBytes(img.Rows, img.Cols, gocv.MatTypeCV8UC3, img.Pix)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to wrap pixels: %w", err)
	}
	defer view.Close()

	// The view aliases Go memory; clone so the Mat owns its pixels.
	return view.Clone(), nil
}

// NormalizeExtension lower-cases ext, adds the leading dot and falls back
// to DefaultExtension when ext is empty.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return DefaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// IsSupported reports whether path ends in one of exts.
func IsSupported(path string, exts []string) bool {
	return containsExt(exts, strings.ToLower(filepath.Ext(path)))
}

func containsExt(exts []string, ext string) bool {
	for _, e := range exts {
		if e == ext {
			return true
		}
	}
	return false
}
