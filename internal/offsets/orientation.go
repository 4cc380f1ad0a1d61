package offsets

import (
	"fmt"

	pimage "jaw-calibrator/internal/image"
	"jaw-calibrator/pkg/geometry"
)

// Orientation tells the extractor how a jaw projects onto the panel at one
// collimator angle: which axis its profile runs along and how an index delta
// from the bead converts to a signed offset.
type Orientation struct {
	Axis geometry.Axis
	Sign float64
}

// quadrantJaw maps the darkest quadrant of a quarter-blocked image to the closed jaw.
// Quadrant order is left, right, top, bottom.
var quadrantJaw = map[int][4]Jaw{
	0:   {X1, X2, Y2, Y1},
	90:  {Y2, Y1, X2, X1},
	270: {Y1, Y2, X1, X2},
}

// jawOrientation is indexed by collimator angle, then by Jaw.
var jawOrientation = map[int][4]Orientation{
	0: {
		X1: {Axis: geometry.AxisCol, Sign: -1},
		X2: {Axis: geometry.AxisCol, Sign: +1},
		Y1: {Axis: geometry.AxisRow, Sign: +1},
		Y2: {Axis: geometry.AxisRow, Sign: -1},
	},
	90: {
		X1: {Axis: geometry.AxisRow, Sign: +1},
		X2: {Axis: geometry.AxisRow, Sign: -1},
		Y1: {Axis: geometry.AxisCol, Sign: +1},
		Y2: {Axis: geometry.AxisCol, Sign: -1},
	},
	270: {
		X1: {Axis: geometry.AxisRow, Sign: -1},
		X2: {Axis: geometry.AxisRow, Sign: +1},
		Y1: {Axis: geometry.AxisCol, Sign: -1},
		Y2: {Axis: geometry.AxisCol, Sign: +1},
	},
}

// Collimators lists the collimator angles with a known orientation, ascending.
var Collimators = []int{0, 90, 270}

// JawForQuadrant returns the jaw that blocks the given quadrant at a collimator angle.
func JawForQuadrant(collimator int, q pimage.Quadrant) (Jaw, error) {
	table, ok := quadrantJaw[collimator]
	if !ok {
		return 0, fmt.Errorf("no quadrant mapping for collimator %d", collimator)
	}
	if q < pimage.QuadrantLeft || q > pimage.QuadrantBottom {
		return 0, fmt.Errorf("invalid quadrant %d", q)
	}
	return table[q], nil
}

// OrientationOf returns how a jaw is measured at a collimator angle.
func OrientationOf(collimator int, jaw Jaw) (Orientation, error) {
	table, ok := jawOrientation[collimator]
	if !ok {
		return Orientation{}, fmt.Errorf("no orientation for collimator %d", collimator)
	}
	return table[jaw], nil
}

// asymmetricHalf gives, for single-jaw fields at collimator 0, the profile axis,
// sign, and the half of the profile holding that jaw's edge.
var asymmetricHalf = [4]struct {
	Orientation
	firstHalf bool
}{
	X1: {Orientation{Axis: geometry.AxisCol, Sign: -1}, true},
	X2: {Orientation{Axis: geometry.AxisCol, Sign: +1}, false},
	Y1: {Orientation{Axis: geometry.AxisRow, Sign: +1}, false},
	Y2: {Orientation{Axis: geometry.AxisRow, Sign: -1}, true},
}
