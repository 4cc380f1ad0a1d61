package localize

import (
	"errors"
	"fmt"
	"math"

	"jaw-calibrator/pkg/geometry"

	"gonum.org/v1/gonum/floats"
)

// ErrDegenerateProfile is returned when a profile window has no penumbra crossing.
var ErrDegenerateProfile = errors.New("no penumbra crossing in profile")

// Slope selects which jaw edge the steepest-gradient search looks for.
type Slope int

const (
	// Rising edges go from blocked (dark) to open (bright) with increasing index.
	Rising Slope = iota
	// Falling edges go from open to blocked with increasing index.
	Falling
)

// Half selects one half of a profile.
type Half int

const (
	FirstHalf Half = iota
	SecondHalf
)

// LocateEdge returns the index of the sample nearest the edge level at a level
// crossing inside window. Only adjacent sample pairs that both lie inside the
// window count as crossings. When several crossings exist the one whose nearest
// sample is closest to the level wins; ties go to the earlier crossing, and within
// a crossing to the sample past the level.
func LocateEdge(profile []float64, window geometry.Span, level float64) (int, error) {
	window = window.Clamp(len(profile))
	if window.Len() < 2 {
		return 0, fmt.Errorf("%w: window [%d,%d) too small", ErrDegenerateProfile, window.Start, window.End)
	}

	best := -1
	bestDist := math.Inf(1)
	for i := window.Start; i+1 < window.End; i++ {
		a := profile[i] - level
		b := profile[i+1] - level
		if a*b > 0 || (a == 0 && b == 0) {
			continue
		}
		j, d := i+1, math.Abs(b)
		if math.Abs(a) < d {
			j, d = i, math.Abs(a)
		}
		if d < bestDist {
			best, bestDist = j, d
		}
	}
	if best < 0 {
		return 0, fmt.Errorf("%w: window [%d,%d) never reaches %.2f", ErrDegenerateProfile, window.Start, window.End, level)
	}
	return best, nil
}

// EdgeNearSteepest locates an isolated jaw edge in an otherwise open field by
// searching the neighborhood of the steepest rising or falling gradient.
func EdgeNearSteepest(profile []float64, slope Slope, p Params) (int, error) {
	if len(profile) < 2 {
		return 0, fmt.Errorf("%w: profile has %d samples", ErrDegenerateProfile, len(profile))
	}
	grad := Gradient(profile)
	var g int
	if slope == Rising {
		g = floats.MaxIdx(grad)
	} else {
		g = floats.MinIdx(grad)
	}
	window := geometry.Span{Start: g - p.EdgeWindow, End: g + p.EdgeWindow}
	return LocateEdge(profile, window, p.EdgeLevel)
}

// EdgeInCentralHalf locates the single jaw edge between the outer quarters of a
// partially blocked field, ignoring the opposite jaw's edge near the border.
func EdgeInCentralHalf(profile []float64, p Params) (int, error) {
	n := len(profile)
	return LocateEdge(profile, geometry.Span{Start: n / 4, End: 3 * n / 4}, p.EdgeLevel)
}

// EdgeInHalf locates the jaw edge of an asymmetric single-jaw field, searching only
// the half of the profile where that jaw's shadow falls.
func EdgeInHalf(profile []float64, half Half, p Params) (int, error) {
	n := len(profile)
	window := geometry.Span{Start: n / 2, End: n}
	if half == FirstHalf {
		window = geometry.Span{Start: 0, End: n / 2}
	}
	return LocateEdge(profile, window, p.EdgeLevel)
}

// Gradient returns the central-difference derivative of a profile, using one-sided
// differences at both ends.
func Gradient(profile []float64) []float64 {
	n := len(profile)
	grad := make([]float64, n)
	if n < 2 {
		return grad
	}
	grad[0] = profile[1] - profile[0]
	grad[n-1] = profile[n-1] - profile[n-2]
	for i := 1; i < n-1; i++ {
		grad[i] = (profile[i+1] - profile[i-1]) / 2
	}
	return grad
}
