package image

import (
	"fmt"

	"jaw-calibrator/pkg/geometry"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Quadrant indexes the four half-image regions used to identify a blocked jaw.
type Quadrant int

const (
	QuadrantLeft Quadrant = iota
	QuadrantRight
	QuadrantTop
	QuadrantBottom
)

func (q Quadrant) String() string {
	switch q {
	case QuadrantLeft:
		return "left"
	case QuadrantRight:
		return "right"
	case QuadrantTop:
		return "top"
	case QuadrantBottom:
		return "bottom"
	default:
		return "unknown"
	}
}

// Frame is an immutable 2-D intensity array.
// Once a Frame reaches the localizer it has been normalized, smoothed and upsampled.
type Frame struct {
	data *mat.Dense
}

// NewFrame creates a Frame from row-major pixel values. The slice is copied.
func NewFrame(rows, cols int, pix []float64) (*Frame, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", rows, cols)
	}
	if len(pix) != rows*cols {
		return nil, fmt.Errorf("pixel count mismatch: have %d, want %d", len(pix), rows*cols)
	}
	cp := make([]float64, len(pix))
	copy(cp, pix)
	return &Frame{data: mat.NewDense(rows, cols, cp)}, nil
}

// Dims returns the frame size.
func (f *Frame) Dims() (rows, cols int) {
	return f.data.Dims()
}

// At returns the intensity at (row, col).
func (f *Frame) At(row, col int) float64 {
	return f.data.At(row, col)
}

// Pixels returns a row-major copy of the frame data.
func (f *Frame) Pixels() []float64 {
	rows, cols := f.Dims()
	out := make([]float64, 0, rows*cols)
	for r := 0; r < rows; r++ {
		out = append(out, f.data.RawRowView(r)...)
	}
	return out
}

// Profile returns a copy of the 1-D intensity profile running along the given axis.
// For AxisRow the profile runs down column `through`; for AxisCol it runs along row `through`.
func (f *Frame) Profile(axis geometry.Axis, through int) ([]float64, error) {
	rows, cols := f.Dims()
	switch axis {
	case geometry.AxisRow:
		if through < 0 || through >= cols {
			return nil, fmt.Errorf("column %d outside frame width %d", through, cols)
		}
		return mat.Col(nil, through, f.data), nil
	case geometry.AxisCol:
		if through < 0 || through >= rows {
			return nil, fmt.Errorf("row %d outside frame height %d", through, rows)
		}
		return mat.Row(nil, through, f.data), nil
	}
	return nil, fmt.Errorf("unknown axis %d", axis)
}

// Max returns the brightest pixel value.
func (f *Frame) Max() float64 {
	return floats.Max(f.Pixels())
}

// Scaled returns a new frame with every pixel multiplied by s.
func (f *Frame) Scaled(s float64) *Frame {
	var out mat.Dense
	out.Scale(s, f.data)
	return &Frame{data: &out}
}

// QuadrantMeans returns the mean intensity of the left, right, top and bottom halves.
func (f *Frame) QuadrantMeans() [4]float64 {
	rows, cols := f.Dims()
	halfR, halfC := rows/2, cols/2
	regionMean := func(r0, r1, c0, c1 int) float64 {
		if r1 <= r0 || c1 <= c0 {
			return 0
		}
		region := f.data.Slice(r0, r1, c0, c1)
		return mat.Sum(region) / float64((r1-r0)*(c1-c0))
	}
	return [4]float64{
		QuadrantLeft:   regionMean(0, rows, 0, halfC),
		QuadrantRight:  regionMean(0, rows, halfC, cols),
		QuadrantTop:    regionMean(0, halfR, 0, cols),
		QuadrantBottom: regionMean(halfR, rows, 0, cols),
	}
}
