// Image quality metrics over OpenCV mats
package metrics

import (
	"fmt"
	"math"

	"gocv.io/x/gocv"
)

// Metric compares a candidate image against a reference of the same size.
type Metric interface {
	Calculate(reference, candidate gocv.Mat) (float64, error)
	Name() string
	Description() string
	HigherIsBetter() bool
}

// PSNR is the peak signal-to-noise ratio in dB, capped at 100 for identical images.
type PSNR struct{}

func NewPSNR() *PSNR { return &PSNR{} }

func (p *PSNR) Calculate(reference, candidate gocv.Mat) (float64, error) {
	if err := checkPair(reference, candidate); err != nil {
		return 0, err
	}
	gray1, release1 := grayscale(reference)
	defer release1()
	gray2, release2 := grayscale(candidate)
	defer release2()

	psnr := gocv.PSNR(gray1, gray2)
	if math.IsInf(psnr, 1) || psnr > 100 {
		return 100.0, nil
	}
	return psnr, nil
}

func (p *PSNR) Name() string         { return "PSNR" }
func (p *PSNR) Description() string  { return "Peak Signal-to-Noise Ratio (dB)" }
func (p *PSNR) HigherIsBetter() bool { return true }

// MSE is the mean squared error of the luminance channel.
type MSE struct{}

func NewMSE() *MSE { return &MSE{} }

func (m *MSE) Calculate(reference, candidate gocv.Mat) (float64, error) {
	if err := checkPair(reference, candidate); err != nil {
		return 0, err
	}
	gray1, release1 := grayscale(reference)
	defer release1()
	gray2, release2 := grayscale(candidate)
	defer release2()

	f1, f2 := gocv.NewMat(), gocv.NewMat()
	defer f1.Close()
	defer f2.Close()
	gray1.ConvertTo(&f1, gocv.MatTypeCV32F)
	gray2.ConvertTo(&f2, gocv.MatTypeCV32F)

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(f1, f2, &diff)

	diffSq := gocv.NewMat()
	defer diffSq.Close()
	gocv.Multiply(diff, diff, &diffSq)

	return diffSq.Mean().Val1, nil
}

func (m *MSE) Name() string         { return "MSE" }
func (m *MSE) Description() string  { return "Mean Squared Error" }
func (m *MSE) HigherIsBetter() bool { return false }

// SSIM is a global (single window) structural similarity index.
type SSIM struct{}

func NewSSIM() *SSIM { return &SSIM{} }

func (s *SSIM) Calculate(reference, candidate gocv.Mat) (float64, error) {
	if err := checkPair(reference, candidate); err != nil {
		return 0, err
	}
	gray1, release1 := grayscale(reference)
	defer release1()
	gray2, release2 := grayscale(candidate)
	defer release2()

	f1, f2 := gocv.NewMat(), gocv.NewMat()
	defer f1.Close()
	defer f2.Close()
	gray1.ConvertTo(&f1, gocv.MatTypeCV32F)
	gray2.ConvertTo(&f2, gocv.MatTypeCV32F)

	const c1, c2 = 6.5025, 58.5225

	mu1 := f1.Mean().Val1
	mu2 := f2.Mean().Val1

	f1Sq, f2Sq, f1f2 := gocv.NewMat(), gocv.NewMat(), gocv.NewMat()
	defer f1Sq.Close()
	defer f2Sq.Close()
	defer f1f2.Close()

	gocv.Multiply(f1, f1, &f1Sq)
	gocv.Multiply(f2, f2, &f2Sq)
	gocv.Multiply(f1, f2, &f1f2)

	sigma1Sq := f1Sq.Mean().Val1 - mu1*mu1
	sigma2Sq := f2Sq.Mean().Val1 - mu2*mu2
	sigma12 := f1f2.Mean().Val1 - mu1*mu2

	num := (2*mu1*mu2 + c1) * (2*sigma12 + c2)
	den := (mu1*mu1 + mu2*mu2 + c1) * (sigma1Sq + sigma2Sq + c2)
	if den == 0 {
		return 1.0, nil
	}
	return num / den, nil
}

func (s *SSIM) Name() string         { return "SSIM" }
func (s *SSIM) Description() string  { return "Structural Similarity Index" }
func (s *SSIM) HigherIsBetter() bool { return true }

// Sharpness is the ratio of the candidate's Laplacian variance to the
// reference's. Sizes may differ.
type Sharpness struct{}

func NewSharpness() *Sharpness { return &Sharpness{} }

func (s *Sharpness) Calculate(reference, candidate gocv.Mat) (float64, error) {
	if reference.Empty() || candidate.Empty() {
		return 0, fmt.Errorf("empty images")
	}
	ref := LaplacianVariance(reference)
	if ref == 0 {
		return 1.0, nil
	}
	return LaplacianVariance(candidate) / ref, nil
}

func (s *Sharpness) Name() string         { return "Sharpness" }
func (s *Sharpness) Description() string  { return "Laplacian variance relative to the reference" }
func (s *Sharpness) HigherIsBetter() bool { return true }

// LaplacianVariance measures edge energy; blurrier images score lower.
func LaplacianVariance(input gocv.Mat) float64 {
	gray, release := grayscale(input)
	defer release()

	laplacian := gocv.NewMat()
	defer laplacian.Close()
	gocv.Laplacian(gray, &laplacian, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)

	mean, stddev := gocv.NewMat(), gocv.NewMat()
	defer mean.Close()
	defer stddev.Close()
	gocv.MeanStdDev(laplacian, &mean, &stddev)

	sd := stddev.GetDoubleAt(0, 0)
	return sd * sd
}

func checkPair(a, b gocv.Mat) error {
	if a.Empty() || b.Empty() {
		return fmt.Errorf("empty images")
	}
	if a.Rows() != b.Rows() || a.Cols() != b.Cols() {
		return fmt.Errorf("dimension mismatch: %dx%d vs %dx%d", a.Cols(), a.Rows(), b.Cols(), b.Rows())
	}
	return nil
}

// grayscale returns a single-channel view of m and a func releasing any
// temporary it allocated.
func grayscale(m gocv.Mat) (gocv.Mat, func()) {
	if m.Channels() == 1 {
		return m, func() {}
	}
	g := gocv.NewMat()
	gocv.CvtColor(m, &g, gocv.ColorBGRToGray)
	return g, func() { g.Close() }
}
