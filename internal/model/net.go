package model

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"image-super-resolution/internal/tensor"
)

// DefaultProbeSize is the spatial size of the tensor used to verify a
// freshly loaded network.
const DefaultProbeSize = 8

// Net is a loaded super-resolution network. OpenCV's DNN module never tracks
// gradients, so every Forward call is a pure inference pass.
type Net struct {
	mu     sync.Mutex
	net    gocv.Net
	closed bool
	arch   Architecture
	path   string
	logger logrus.FieldLogger
}

// Options configures Load.
type Options struct {
	Path         string
	Architecture Architecture
	Device       Device
	ProbeSize    int
}

// Load reads serialized weights (ONNX or any format gocv.ReadNet accepts),
// places the network on the requested device and verifies that it behaves
// like the expected architecture.
func Load(opts Options, logger logrus.FieldLogger) (*Net, error) {
	if err := opts.Architecture.Validate(); err != nil {
		return nil, fmt.Errorf("invalid architecture: %w", err)
	}
	if opts.ProbeSize <= 0 {
		opts.ProbeSize = DefaultProbeSize
	}

	log := logger.WithFields(logrus.Fields{
		"path":   opts.Path,
		"device": opts.Device.String(),
	})
	log.Debug("Loading network weights")

	if _, err := os.Stat(opts.Path); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrWeightsNotFound, opts.Path, err)
	}

	start := time.Now()
	net := gocv.ReadNet(opts.Path, "")
	if net.Empty() {
		return nil, fmt.Errorf("failed to read network weights: %s", opts.Path)
	}

	net.SetPreferableBackend(opts.Device.backend())
	net.SetPreferableTarget(opts.Device.target())

	n := &Net{
		net:    net,
		arch:   opts.Architecture,
		path:   opts.Path,
		logger: logger,
	}

	if err := n.verify(opts.ProbeSize); err != nil {
		n.Close()
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"architecture": opts.Architecture.String(),
		"duration":     time.Since(start),
	}).Info("Network loaded")

	return n, nil
}

// verify checks the convolution count when the graph exposes it and runs a
// probe tensor through the network to confirm channel counts and scale.
func (n *Net) verify(probe int) error {
	if convs := n.countConvolutions(); convs > 0 && convs != n.arch.ConvLayers() {
		return fmt.Errorf("%w: %d convolution layers, want %d for %s",
			ErrArchitectureMismatch, convs, n.arch.ConvLayers(), n.arch)
	}

	in := tensor.New(1, n.arch.InChannels, probe, probe)
	out, err := n.Forward(in)
	if err != nil {
		return fmt.Errorf("%w: probe forward failed: %v", ErrArchitectureMismatch, err)
	}

	want := []int{1, n.arch.OutChannels, probe * n.arch.Scale, probe * n.arch.Scale}
	if len(out.Shape) != len(want) {
		return fmt.Errorf("%w: probe output shape %v, want %v", ErrArchitectureMismatch, out.Shape, want)
	}
	for i := range want {
		if out.Shape[i] != want[i] {
			return fmt.Errorf("%w: probe output shape %v, want %v", ErrArchitectureMismatch, out.Shape, want)
		}
	}
	return nil
}

func (n *Net) countConvolutions() int {
	names := n.net.GetLayerNames()
	count := 0
	for i := range names {
		// Layer id 0 is the implicit input layer.
		layer := n.net.GetLayer(i + 1)
		if layer.GetType() == "Convolution" {
			count++
		}
		layer.Close()
	}
	return count
}

// Forward runs one inference pass on an NCHW float tensor.
func (n *Net) Forward(in *tensor.Tensor) (*tensor.Tensor, error) {
	if len(in.Shape) != 4 {
		return nil, fmt.Errorf("expected 4-dimensional input, got shape %v", in.Shape)
	}
	if in.Shape[1] != n.arch.InChannels {
		return nil, fmt.Errorf("expected %d input channels, got %d", n.arch.InChannels, in.Shape[1])
	}
	if len(in.Data) != in.Len() {
		return nil, fmt.Errorf("input holds %d values, shape %v needs %d", len(in.Data), in.Shape, in.Len())
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil, fmt.Errorf("network is closed")
	}

	blob := gocv.NewMatWithSizes(in.Shape, gocv.MatTypeCV32F)
	defer blob.Close()

	dst, err := blob.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to access input blob: %w", err)
	}
	copy(dst, in.Data)

	n.net.SetInput(blob, "")
	result := n.net.Forward("")
	defer result.Close()

	if result.Empty() {
		return nil, fmt.Errorf("network produced an empty output")
	}

	src, err := result.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to access output blob: %w", err)
	}

	out := tensor.New(result.Size()...)
	if len(src) != len(out.Data) {
		return nil, fmt.Errorf("output blob holds %d values, shape %v needs %d", len(src), out.Shape, len(out.Data))
	}
	copy(out.Data, src)

	return out, nil
}

// Scale returns the network's fixed upscaling factor.
func (n *Net) Scale() int {
	return n.arch.Scale
}

// Close releases the network and the device memory it holds.
func (n *Net) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil
	}
	n.closed = true
	err := n.net.Close()
	n.logger.WithField("path", n.path).Debug("Network released")
	return err
}
