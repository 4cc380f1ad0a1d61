// Package filter smooths and upsamples radiographs with OpenCV.
package filter

import (
	"image"

	pimage "jaw-calibrator/internal/image"

	"gocv.io/x/gocv"
)

// New returns the standard preprocessor for the configured detector:
// top-median normalization, Gaussian smoothing, then bicubic upsampling.
func New(cfg pimage.DetectorConfig) pimage.Preprocessor {
	return func(raw *pimage.Frame) (*pimage.Frame, error) {
		norm, err := pimage.NormalizeByTopMedian(raw, cfg.TopMedianCount)
		if err != nil {
			return nil, err
		}
		return SmoothAndUpsample(norm, cfg.SmoothingSigma, cfg.Upsample)
	}
}

// SmoothAndUpsample applies a Gaussian filter and a bicubic resize by factor.
func SmoothAndUpsample(f *pimage.Frame, sigma float64, factor int) (*pimage.Frame, error) {
	rows, cols := f.Dims()

	src := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV32F)
	defer src.Close()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			src.SetFloatAt(r, c, float32(f.At(r, c)))
		}
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	if sigma > 0 {
		gocv.GaussianBlur(src, &blurred, image.Point{}, sigma, sigma, gocv.BorderReflect)
	} else {
		src.CopyTo(&blurred)
	}

	if factor < 1 {
		factor = 1
	}
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(blurred, &resized, image.Point{X: cols * factor, Y: rows * factor}, 0, 0, gocv.InterpolationCubic)

	outRows, outCols := resized.Rows(), resized.Cols()
	pix := make([]float64, 0, outRows*outCols)
	for r := 0; r < outRows; r++ {
		for c := 0; c < outCols; c++ {
			pix = append(pix, float64(resized.GetFloatAt(r, c)))
		}
	}
	return pimage.NewFrame(outRows, outCols, pix)
}
