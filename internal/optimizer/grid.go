// Package optimizer searches a grid of per-jaw calibration shifts for the one that
// minimizes the calibration cost.
package optimizer

import (
	"fmt"

	"jaw-calibrator/internal/offsets"

	"gonum.org/v1/gonum/floats"
)

// Axis is an evenly spaced range of candidate shifts for one jaw, in mm.
type Axis struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Samples int     `json:"samples"`
}

// Values returns the sample positions, Min and Max included.
func (a Axis) Values() []float64 {
	if a.Samples == 1 {
		return []float64{a.Min}
	}
	return floats.Span(make([]float64, a.Samples), a.Min, a.Max)
}

// Grid holds one axis per jaw, indexed by offsets.Jaw.
type Grid [4]Axis

// DefaultGrid returns 31 samples for x1 and x2 and 21 for y1 and y2, all over [-1, 1] mm.
// The x jaws set the tangent junctions and get the finer spacing.
func DefaultGrid() Grid {
	var g Grid
	g[offsets.X1] = Axis{Min: -1, Max: 1, Samples: 31}
	g[offsets.X2] = Axis{Min: -1, Max: 1, Samples: 31}
	g[offsets.Y1] = Axis{Min: -1, Max: 1, Samples: 21}
	g[offsets.Y2] = Axis{Min: -1, Max: 1, Samples: 21}
	return g
}

// SinglePoint returns a grid containing only p.
func SinglePoint(p offsets.PerJaw) Grid {
	var g Grid
	for _, j := range offsets.Jaws {
		g[j] = Axis{Min: p[j], Max: p[j], Samples: 1}
	}
	return g
}

// Validate checks every axis is non-empty and ordered.
func (g Grid) Validate() error {
	for _, j := range offsets.Jaws {
		a := g[j]
		if a.Samples < 1 {
			return fmt.Errorf("%w: %s axis has %d samples", ErrConfiguration, j, a.Samples)
		}
		if a.Samples > 1 && !(a.Max > a.Min) {
			return fmt.Errorf("%w: %s axis range [%g, %g] is empty", ErrConfiguration, j, a.Min, a.Max)
		}
	}
	return nil
}

// Dims returns the sample count per jaw.
func (g Grid) Dims() [4]int {
	var d [4]int
	for _, j := range offsets.Jaws {
		d[j] = g[j].Samples
	}
	return d
}

// Size returns the number of grid points.
func (g Grid) Size() int {
	d := g.Dims()
	return d[0] * d[1] * d[2] * d[3]
}

// Tensor is the cost at every grid point, stored x1-major then x2, y1, y2.
type Tensor struct {
	Dims   [4]int
	Values []float64
}

func newTensor(dims [4]int) *Tensor {
	return &Tensor{Dims: dims, Values: make([]float64, dims[0]*dims[1]*dims[2]*dims[3])}
}

func (t *Tensor) offset(idx [4]int) int {
	return ((idx[0]*t.Dims[1]+idx[1])*t.Dims[2]+idx[2])*t.Dims[3] + idx[3]
}

// At returns the cost at a grid index.
func (t *Tensor) At(idx [4]int) float64 {
	return t.Values[t.offset(idx)]
}

// Index converts a flat position back to a grid index.
func (t *Tensor) Index(flat int) [4]int {
	var idx [4]int
	for d := 3; d >= 0; d-- {
		idx[d] = flat % t.Dims[d]
		flat /= t.Dims[d]
	}
	return idx
}

// ArgMin returns the flat position of the first minimum in storage order, which is
// lexicographic (x1, x2, y1, y2) index order. It fails when every point ties.
func (t *Tensor) ArgMin() (int, error) {
	if len(t.Values) == 0 {
		return 0, fmt.Errorf("%w: empty cost tensor", ErrDegenerateCost)
	}
	best := floats.MinIdx(t.Values)
	if len(t.Values) > 1 && floats.Max(t.Values) == t.Values[best] {
		return 0, fmt.Errorf("%w: all %d grid points cost %g", ErrDegenerateCost, len(t.Values), t.Values[best])
	}
	return best, nil
}
