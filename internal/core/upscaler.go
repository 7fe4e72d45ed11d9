// Super-resolution inference pipeline
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"image-super-resolution/internal/tensor"
)

// MaxInputDimension bounds either side of an input image. A ×4 network
// turns this into a 16384 px output, the largest a Mat comfortably holds.
const MaxInputDimension = 4096

var (
	ErrEmptyImage     = errors.New("input image is empty")
	ErrImageTooLarge  = errors.New("input image too large")
	ErrShapeMismatch  = errors.New("network output shape mismatch")
	ErrNetworkMissing = errors.New("no network loaded")
)

// Network is a loaded, inference-only super-resolution model. Forward takes
// a 1x3xHxW tensor and returns a 1x3x(H*s)x(W*s) tensor where s is Scale.
type Network interface {
	Forward(in *tensor.Tensor) (*tensor.Tensor, error)
	Scale() int
}

// Upscaler runs decoded BGR images through a Network.
type Upscaler struct {
	net      Network
	logger   logrus.FieldLogger
	recorder *Recorder
}

func NewUpscaler(net Network, logger logrus.FieldLogger) *Upscaler {
	return &Upscaler{
		net:      net,
		logger:   logger,
		recorder: NewRecorder(logger),
	}
}

// Stats returns the stage timings recorded so far.
func (u *Upscaler) Stats() *Recorder {
	return u.recorder
}

// Scale returns the upscaling factor of the underlying network.
func (u *Upscaler) Scale() int {
	if u.net == nil {
		return 0
	}
	return u.net.Scale()
}

// Upscale normalizes img into a tensor, runs one forward pass and converts the
// result back into an 8-bit BGR image. The input is not modified.
func (u *Upscaler) Upscale(ctx context.Context, img *tensor.Image) (result *tensor.Image, err error) {
	start := time.Now()
	defer func() {
		u.recorder.Record(StageTotal, time.Since(start), err)
	}()

	if u.net == nil {
		return nil, ErrNetworkMissing
	}
	if err := ValidateInput(img); err != nil {
		return nil, err
	}

	scale := u.net.Scale()
	log := u.logger.WithFields(logrus.Fields{
		"width":  img.Cols,
		"height": img.Rows,
		"scale":  scale,
	})

	convStart := time.Now()
	in := tensor.FromImage(img)
	u.recorder.Record(StageToTensor, time.Since(convStart), nil)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("upscale cancelled: %w", err)
	}

	var out *tensor.Tensor
	err = u.recorder.Time(StageForward, func() error {
		var ferr error
		out, ferr = u.net.Forward(in)
		return ferr
	})
	if err != nil {
		log.WithError(err).Error("Forward pass failed")
		return nil, fmt.Errorf("forward pass failed: %w", err)
	}

	want := []int{1, tensor.Channels, img.Rows * scale, img.Cols * scale}
	if !sameShape(out.Shape, want) {
		return nil, fmt.Errorf("%w: got %v, want %v", ErrShapeMismatch, out.Shape, want)
	}

	err = u.recorder.Time(StageToImage, func() error {
		var cerr error
		result, cerr = tensor.ToImage(out)
		return cerr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to convert network output: %w", err)
	}

	log.WithFields(logrus.Fields{
		"out_width":  result.Cols,
		"out_height": result.Rows,
		"duration":   time.Since(start),
	}).Info("Image upscaled")

	return result, nil
}

// ValidateInput rejects images the pipeline cannot process.
func ValidateInput(img *tensor.Image) error {
	if img.Empty() {
		return ErrEmptyImage
	}
	if err := img.Validate(); err != nil {
		return err
	}
	if img.Rows > MaxInputDimension || img.Cols > MaxInputDimension {
		return fmt.Errorf("%w: %dx%d (max: %d)", ErrImageTooLarge, img.Cols, img.Rows, MaxInputDimension)
	}
	return nil
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
