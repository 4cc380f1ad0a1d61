package encoder

import (
	"fmt"
	"math"

	"jaw-calibrator/internal/offsets"
	"jaw-calibrator/pkg/geometry"
)

// ReferencePointsCM are the machine's jaw calibration points, measured from the
// calibration origin.
var ReferencePointsCM = [4]float64{1, 5, 9, 19}

// Predict returns the encoder counts at each reference point for a jaw, given the
// isocenter pixel, the new calibration offsets in mm and the working pixel pitch.
func Predict(iso geometry.Pixel, jaw offsets.Jaw, candidate offsets.PerJaw, fit Poly, pitchMM float64) [4]int {
	var out [4]int
	for i, cm := range ReferencePointsCM {
		out[i] = int(math.Round(fit.Eval(ReferencePixel(iso, jaw, candidate[jaw], cm*10, pitchMM))))
	}
	return out
}

// ReferencePixel returns the pixel where a jaw stands when it is distanceMM from a
// calibration origin that sits calibrationMM from the isocenter.
func ReferencePixel(iso geometry.Pixel, jaw offsets.Jaw, calibrationMM, distanceMM, pitchMM float64) float64 {
	switch jaw {
	case offsets.X1:
		return iso.Col - calibrationMM/pitchMM - distanceMM/pitchMM
	case offsets.X2:
		return iso.Col + calibrationMM/pitchMM + distanceMM/pitchMM
	case offsets.Y1:
		return iso.Row + calibrationMM/pitchMM + distanceMM/pitchMM
	default:
		return iso.Row - calibrationMM/pitchMM - distanceMM/pitchMM
	}
}

// Fits holds the cubic and linear fit for each jaw.
type Fits struct {
	Cubic  [4]Poly
	Linear [4]Poly
}

// FitAll fits both curves for every jaw in the table.
func FitAll(t *FitTable) (*Fits, error) {
	fits := &Fits{}
	for _, j := range offsets.Jaws {
		px, enc := t.Points(j)
		var err error
		if fits.Cubic[j], err = Fit(px, enc, Cubic); err != nil {
			return nil, fmt.Errorf("%s cubic: %w", j, err)
		}
		if fits.Linear[j], err = Fit(px, enc, Linear); err != nil {
			return nil, fmt.Errorf("%s linear: %w", j, err)
		}
	}
	return fits, nil
}

// Predictions are encoder targets per jaw at each reference point.
type Predictions struct {
	Cubic  [4][4]int
	Linear [4][4]int
}

// PredictAll applies both fits for every jaw.
func (f *Fits) PredictAll(iso geometry.Pixel, candidate offsets.PerJaw, pitchMM float64) Predictions {
	var p Predictions
	for _, j := range offsets.Jaws {
		p.Cubic[j] = Predict(iso, j, candidate, f.Cubic[j], pitchMM)
		p.Linear[j] = Predict(iso, j, candidate, f.Linear[j], pitchMM)
	}
	return p
}
