package encoder

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Fit kinds produced for every jaw.
const (
	Linear = 1
	Cubic  = 3
)

// Poly is a least-squares polynomial in the centered, scaled variable
// (x - Center) / Scale. Coeffs[i] multiplies the i-th power.
type Poly struct {
	Coeffs []float64
	Center float64
	Scale  float64
}

// Degree returns the polynomial degree.
func (p Poly) Degree() int {
	return len(p.Coeffs) - 1
}

// Eval evaluates the polynomial at x.
func (p Poly) Eval(x float64) float64 {
	u := (x - p.Center) / p.Scale
	var y float64
	for i := len(p.Coeffs) - 1; i >= 0; i-- {
		y = y*u + p.Coeffs[i]
	}
	return y
}

// Fit returns the least-squares polynomial of the given degree through (xs, ys).
// It needs at least degree+1 distinct x values.
func Fit(xs, ys []float64, degree int) (Poly, error) {
	if len(xs) != len(ys) {
		return Poly{}, fmt.Errorf("fit: %d x values but %d y values", len(xs), len(ys))
	}
	if degree < 0 {
		return Poly{}, fmt.Errorf("fit: negative degree %d", degree)
	}
	if n := distinct(xs); n < degree+1 {
		return Poly{}, fmt.Errorf("%w: degree %d needs %d distinct pixels, have %d", ErrInsufficientPoints, degree, degree+1, n)
	}

	center, scale := stat.MeanStdDev(xs, nil)
	if scale == 0 || math.IsNaN(scale) {
		scale = 1
	}

	cols := degree + 1
	A := mat.NewDense(len(xs), cols, nil)
	B := mat.NewVecDense(len(ys), ys)
	for i, x := range xs {
		u := (x - center) / scale
		v := 1.0
		for k := 0; k < cols; k++ {
			A.Set(i, k, v)
			v *= u
		}
	}

	var qr mat.QR
	qr.Factorize(A)

	var params mat.VecDense
	if err := qr.SolveVecTo(&params, false, B); err != nil {
		return Poly{}, fmt.Errorf("fit degree %d: %w", degree, err)
	}

	coeffs := make([]float64, cols)
	for k := range coeffs {
		coeffs[k] = params.AtVec(k)
	}
	return Poly{Coeffs: coeffs, Center: center, Scale: scale}, nil
}

func distinct(xs []float64) int {
	seen := make(map[float64]bool, len(xs))
	for _, x := range xs {
		seen[x] = true
	}
	return len(seen)
}
