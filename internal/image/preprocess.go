package image

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// DetectorConfig describes the imaging panel and the preprocessing applied to it.
type DetectorConfig struct {
	PixelPitchMM         float64 `json:"pixel_pitch_mm"`
	Upsample             int     `json:"upsample"`
	SmoothingSigma       float64 `json:"smoothing_sigma"`
	TopMedianCount       int     `json:"top_median_count"`
	SourceAxisDistanceMM float64 `json:"source_axis_distance_mm"`
}

// DefaultDetectorConfig returns the panel geometry of the standard portal imager.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		PixelPitchMM:         0.336,
		Upsample:             2,
		SmoothingSigma:       3,
		TopMedianCount:       10000,
		SourceAxisDistanceMM: 1000,
	}
}

// PitchMM returns the isocenter-plane size of one working pixel for a panel at the
// given source distance.
func (c DetectorConfig) PitchMM(panelDistanceMM float64) float64 {
	mag := panelDistanceMM / c.SourceAxisDistanceMM
	up := float64(c.Upsample)
	if up < 1 {
		up = 1
	}
	return c.PixelPitchMM / mag / up
}

// Validate checks that the configuration can produce a working pixel pitch.
func (c DetectorConfig) Validate() error {
	if c.PixelPitchMM <= 0 {
		return fmt.Errorf("pixel pitch must be positive, got %g", c.PixelPitchMM)
	}
	if c.SourceAxisDistanceMM <= 0 {
		return fmt.Errorf("source-axis distance must be positive, got %g", c.SourceAxisDistanceMM)
	}
	if c.Upsample < 1 {
		return fmt.Errorf("upsample factor must be at least 1, got %d", c.Upsample)
	}
	if c.TopMedianCount < 1 {
		return fmt.Errorf("top median count must be at least 1, got %d", c.TopMedianCount)
	}
	return nil
}

// Preprocessor turns a raw decoded frame into the working frame the localizer reads.
type Preprocessor func(raw *Frame) (*Frame, error)

// NormalizeByTopMedian divides every pixel by the median of the brightest n pixels.
func NormalizeByTopMedian(f *Frame, n int) (*Frame, error) {
	pix := f.Pixels()
	sort.Float64s(pix)
	if n > len(pix) || n < 1 {
		n = len(pix)
	}
	top := pix[len(pix)-n:]
	med := stat.Quantile(0.5, stat.Empirical, top, nil)
	if med <= 0 {
		return nil, fmt.Errorf("cannot normalize: top median intensity is %g", med)
	}
	return f.Scaled(1 / med), nil
}
