// Package model loads the pretrained RRDB super-resolution network through
// OpenCV's DNN module and exposes it as an inference-only forward function.
package model

import (
	"errors"
	"fmt"
	"strings"

	"gocv.io/x/gocv"
)

var (
	ErrArchitectureMismatch = errors.New("network does not match expected architecture")
	ErrWeightsNotFound      = errors.New("model weights not found")
)

// Architecture describes an RRDB network (residual-in-residual dense blocks).
type Architecture struct {
	InChannels  int
	OutChannels int
	Features    int
	Blocks      int
	Growth      int
	Scale       int
}

// DefaultArchitecture is the ×4 ESRGAN generator: RRDBNet(3, 3, 64, 23, gc=32).
var DefaultArchitecture = Architecture{
	InChannels:  3,
	OutChannels: 3,
	Features:    64,
	Blocks:      23,
	Growth:      32,
	Scale:       4,
}

// ConvLayers is the number of convolutions the network contains: five per
// dense block, three dense blocks per RRDB, plus the first conv, trunk conv,
// two upsampling convs, the HR conv and the last conv.
func (a Architecture) ConvLayers() int {
	return a.Blocks*3*5 + 6
}

func (a Architecture) Validate() error {
	if a.InChannels <= 0 || a.OutChannels <= 0 {
		return fmt.Errorf("channel counts must be positive: in=%d out=%d", a.InChannels, a.OutChannels)
	}
	if a.Features <= 0 || a.Blocks <= 0 || a.Growth <= 0 {
		return fmt.Errorf("features, blocks and growth must be positive")
	}
	if a.Scale < 1 {
		return fmt.Errorf("scale must be at least 1, got %d", a.Scale)
	}
	return nil
}

func (a Architecture) String() string {
	return fmt.Sprintf("RRDBNet(in=%d, out=%d, nf=%d, nb=%d, gc=%d, x%d)",
		a.InChannels, a.OutChannels, a.Features, a.Blocks, a.Growth, a.Scale)
}

// Device selects where OpenCV runs the network.
type Device struct {
	Backend string
	Target  string
}

// CPU is OpenCV's default backend on the host processor.
var CPU = Device{Backend: "opencv", Target: "cpu"}

func (d Device) backend() gocv.NetBackendType {
	return gocv.ParseNetBackend(strings.ToLower(d.Backend))
}

func (d Device) target() gocv.NetTargetType {
	return gocv.ParseNetTarget(strings.ToLower(d.Target))
}

func (d Device) String() string {
	b, t := d.Backend, d.Target
	if b == "" {
		b = "default"
	}
	if t == "" {
		t = "cpu"
	}
	return b + "/" + t
}
