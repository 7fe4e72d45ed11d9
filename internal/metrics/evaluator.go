package metrics

import (
	"fmt"
	"image"
	"sort"

	"gocv.io/x/gocv"

	imgio "image-super-resolution/internal/io"
	"image-super-resolution/internal/tensor"
)

// Evaluator manages and calculates multiple metrics
type Evaluator struct {
	metrics map[string]Metric
}

func NewEvaluator() *Evaluator {
	e := &Evaluator{
		metrics: make(map[string]Metric),
	}
	e.RegisterDefaultMetrics()
	return e
}

func (e *Evaluator) RegisterDefaultMetrics() {
	e.Register("psnr", NewPSNR())
	e.Register("mse", NewMSE())
	e.Register("ssim", NewSSIM())
}

func (e *Evaluator) Register(name string, metric Metric) {
	e.metrics[name] = metric
}

// Names returns the registered metric names in sorted order.
func (e *Evaluator) Names() []string {
	names := make([]string, 0, len(e.metrics))
	for name := range e.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *Evaluator) Calculate(name string, reference, candidate gocv.Mat) (float64, error) {
	metric, ok := e.metrics[name]
	if !ok {
		return 0, fmt.Errorf("metric not found: %s", name)
	}
	return metric.Calculate(reference, candidate)
}

// CalculateAll skips metrics that fail.
func (e *Evaluator) CalculateAll(reference, candidate gocv.Mat) map[string]float64 {
	results := make(map[string]float64)
	for name, metric := range e.metrics {
		if value, err := metric.Calculate(reference, candidate); err == nil {
			results[name] = value
		}
	}
	return results
}

// Report summarizes how faithful an upscaled image is to its source.
type Report struct {
	// Values holds the reference metrics computed between the input and the
	// output downsampled back to the input size.
	Values map[string]float64
	// Sharpness is the output's Laplacian variance relative to a Lanczos
	// upscale of the input to the same size.
	Sharpness float64
}

// Consistency downsamples output to the size of input with area
// interpolation and compares the two. A faithful super-resolution output
// should shrink back to something close to its input.
func (e *Evaluator) Consistency(input, output *tensor.Image) (*Report, error) {
	in, err := imgio.ImageToMat(input)
	if err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	defer in.Close()

	out, err := imgio.ImageToMat(output)
	if err != nil {
		return nil, fmt.Errorf("invalid output: %w", err)
	}
	defer out.Close()

	down := gocv.NewMat()
	defer down.Close()
	if err := gocv.Resize(out, &down, image.Point{X: in.Cols(), Y: in.Rows()}, 0, 0, gocv.InterpolationArea); err != nil {
		return nil, fmt.Errorf("downsample failed: %w", err)
	}

	baseline := gocv.NewMat()
	defer baseline.Close()
	if err := gocv.Resize(in, &baseline, image.Point{X: out.Cols(), Y: out.Rows()}, 0, 0, gocv.InterpolationLanczos4); err != nil {
		return nil, fmt.Errorf("baseline upscale failed: %w", err)
	}

	sharpness, err := NewSharpness().Calculate(baseline, out)
	if err != nil {
		return nil, err
	}

	return &Report{
		Values:    e.CalculateAll(in, down),
		Sharpness: sharpness,
	}, nil
}

// Lines formats a report for display, one metric per line.
func (r *Report) Lines(e *Evaluator) []string {
	lines := make([]string, 0, len(r.Values)+1)
	for _, name := range e.Names() {
		v, ok := r.Values[name]
		if !ok {
			continue
		}
		label := name
		if m, ok := e.metrics[name]; ok {
			label = m.Name()
		}
		lines = append(lines, fmt.Sprintf("%s: %.3f", label, v))
	}
	lines = append(lines, fmt.Sprintf("Sharpness vs Lanczos: %.2fx", r.Sharpness))
	return lines
}
