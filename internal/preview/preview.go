// Package preview renders a size-capped copy of an upscaled image for display.
package preview

import (
	"fmt"
	"image"
	"math"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
	"golang.org/x/image/draw"

	imgio "image-super-resolution/internal/io"
	"image-super-resolution/internal/tensor"
)

const (
	DefaultMaxWidth  = 500
	DefaultMaxHeight = 300
)

// Resampler names a resampling filter.
type Resampler string

const (
	// Lanczos uses OpenCV's 8x8 Lanczos kernel.
	Lanczos Resampler = "lanczos"
	// CatmullRom uses the pure Go bicubic kernel from x/image/draw.
	CatmullRom Resampler = "catmullrom"
)

func ParseResampler(s string) (Resampler, error) {
	switch Resampler(s) {
	case Lanczos, "":
		return Lanczos, nil
	case CatmullRom:
		return CatmullRom, nil
	default:
		return "", fmt.Errorf("unknown resampler: %s", s)
	}
}

// Fit returns the largest size not exceeding maxW x maxH that keeps the
// aspect ratio of w x h. Images that already fit are left at their size.
func Fit(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	if maxW < 1 {
		maxW = 1
	}
	if maxH < 1 {
		maxH = 1
	}
	if w <= maxW && h <= maxH {
		return w, h
	}

	ratio := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	newW := int(math.Round(float64(w) * ratio))
	newH := int(math.Round(float64(h) * ratio))
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}
	if newW > maxW {
		newW = maxW
	}
	if newH > maxH {
		newH = maxH
	}
	return newW, newH
}

// Renderer produces display copies of upscaled images.
type Renderer struct {
	maxWidth  int
	maxHeight int
	resampler Resampler
	logger    logrus.FieldLogger
}

func NewRenderer(maxWidth, maxHeight int, resampler Resampler, logger logrus.FieldLogger) *Renderer {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	if maxHeight <= 0 {
		maxHeight = DefaultMaxHeight
	}
	if resampler == "" {
		resampler = Lanczos
	}
	return &Renderer{
		maxWidth:  maxWidth,
		maxHeight: maxHeight,
		resampler: resampler,
		logger:    logger,
	}
}

// Bounds returns the preview box.
func (r *Renderer) Bounds() (int, int) {
	return r.maxWidth, r.maxHeight
}

// Render scales img to fit the preview box.
func (r *Renderer) Render(img *tensor.Image) (image.Image, error) {
	if err := img.Validate(); err != nil {
		return nil, fmt.Errorf("cannot render preview: %w", err)
	}

	w, h := Fit(img.Cols, img.Rows, r.maxWidth, r.maxHeight)
	r.logger.WithFields(logrus.Fields{
		"source":    fmt.Sprintf("%dx%d", img.Cols, img.Rows),
		"preview":   fmt.Sprintf("%dx%d", w, h),
		"resampler": r.resampler,
	}).Debug("Rendering preview")

	switch r.resampler {
	case CatmullRom:
		return renderCatmullRom(img, w, h), nil
	default:
		return renderLanczos(img, w, h)
	}
}

func renderLanczos(img *tensor.Image, w, h int) (image.Image, error) {
	src, err := imgio.ImageToMat(img)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	if w == img.Cols && h == img.Rows {
		return src.ToImage()
	}

	reduced, err := stepDown(src, w, h)
	if err != nil {
		return nil, err
	}
	defer reduced.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	if err := gocv.Resize(reduced, &dst, image.Point{X: w, Y: h}, 0, 0, gocv.InterpolationLanczos4); err != nil {
		return nil, fmt.Errorf("lanczos resize failed: %w", err)
	}

	out, err := dst.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert preview: %w", err)
	}
	return out, nil
}

const (
	stepFactor = 0.6
	maxSteps   = 15
)

// stepDown shrinks src with area interpolation in 0.6x steps until it is
// within twice the target size, so the final Lanczos pass never has to
// skip source pixels. The caller closes the result.
func stepDown(src gocv.Mat, w, h int) (gocv.Mat, error) {
	current := src.Clone()
	cw, ch := current.Cols(), current.Rows()

	for step := 0; (cw > w*2 || ch > h*2) && step < maxSteps; step++ {
		nw := int(math.Max(float64(cw)*stepFactor, float64(w)))
		nh := int(math.Max(float64(ch)*stepFactor, float64(h)))
		if nw >= cw && nh >= ch {
			break
		}

		next := gocv.NewMat()
		if err := gocv.Resize(current, &next, image.Point{X: nw, Y: nh}, 0, 0, gocv.InterpolationArea); err != nil {
			next.Close()
			current.Close()
			return gocv.Mat{}, fmt.Errorf("area resize failed: %w", err)
		}
		current.Close()
		current = next
		cw, ch = nw, nh
	}
	return current, nil
}

func renderCatmullRom(img *tensor.Image, w, h int) image.Image {
	src := img.ToRGBA()
	if w == img.Cols && h == img.Rows {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}
