// Package geometry provides the pixel-space value types shared by the localizer,
// the offset extractor and the encoder mapper.
package geometry

import (
	"math"
)

// Pixel is a fractional image coordinate. Row grows downwards, Col grows to the right.
type Pixel struct {
	Row float64 `json:"row"`
	Col float64 `json:"col"`
}

// NewPixel creates a new Pixel.
func NewPixel(row, col float64) Pixel {
	return Pixel{Row: row, Col: col}
}

// Rounded returns the nearest integer pixel, suitable for indexing.
func (p Pixel) Rounded() PixelInt {
	return PixelInt{Row: int(math.Round(p.Row)), Col: int(math.Round(p.Col))}
}

// Round returns the pixel rounded half away from zero to the given number of decimals.
func (p Pixel) Round(decimals int) Pixel {
	return Pixel{Row: RoundTo(p.Row, decimals), Col: RoundTo(p.Col, decimals)}
}

// Along returns the coordinate of p on the given axis.
func (p Pixel) Along(a Axis) float64 {
	if a == AxisRow {
		return p.Row
	}
	return p.Col
}

// PixelInt is an integer image coordinate.
type PixelInt struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Axis names the image direction a 1-D profile runs along.
type Axis int

const (
	// AxisRow profiles run down a column; positions are row indices.
	AxisRow Axis = iota
	// AxisCol profiles run along a row; positions are column indices.
	AxisCol
)

func (a Axis) String() string {
	if a == AxisRow {
		return "row"
	}
	return "col"
}

// Span is a half-open index interval [Start, End).
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of indices in the span.
func (s Span) Len() int {
	if s.End <= s.Start {
		return 0
	}
	return s.End - s.Start
}

// Clamp restricts the span to [0, n).
func (s Span) Clamp(n int) Span {
	if s.Start < 0 {
		s.Start = 0
	}
	if s.End > n {
		s.End = n
	}
	if s.End < s.Start {
		s.End = s.Start
	}
	return s
}

// FractionSpan returns [floor(lo*n), floor(hi*n)).
func FractionSpan(n int, lo, hi float64) Span {
	return Span{Start: int(lo * float64(n)), End: int(hi * float64(n))}.Clamp(n)
}

// Window is a rectangular region of whole pixels.
type Window struct {
	Rows Span `json:"rows"`
	Cols Span `json:"cols"`
}

// RoundTo rounds v half away from zero to the given number of decimals.
func RoundTo(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}

// RoundToHalf rounds v to the nearest multiple of 0.5.
func RoundToHalf(v float64) float64 {
	return RoundTo(math.Round(2*v)/2, 1)
}
