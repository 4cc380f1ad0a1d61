package encoder

import (
	"fmt"
	"sort"

	"jaw-calibrator/internal/offsets"
	"jaw-calibrator/pkg/geometry"
)

// Entry pairs a reference encoder count with the pixel where that jaw position was
// seen. Observed is false until an image at that position has been measured.
type Entry struct {
	Nominal  float64
	Encoder  int
	Pixel    float64
	Observed bool
}

// FitTable holds, per jaw, every reference position and what was observed there.
type FitTable struct {
	entries [4]map[float64]*Entry
}

// NewFitTable seeds a fit table from the reference encoder counts.
func NewFitTable(ref ReferenceTable) *FitTable {
	t := &FitTable{}
	for _, j := range offsets.Jaws {
		t.entries[j] = make(map[float64]*Entry, len(ref))
	}
	for pos, enc := range ref {
		for _, j := range offsets.Jaws {
			t.entries[j][pos] = &Entry{Nominal: pos, Encoder: enc[j]}
		}
	}
	return t
}

// FitKey converts a jaw aperture in mm to the nominal symmetric field position
// used as the reference table key.
func FitKey(apertureMM float64) float64 {
	if apertureMM < 0 {
		apertureMM = -apertureMM
	}
	return geometry.RoundToHalf(geometry.RoundTo(2*apertureMM/10, 1))
}

// Observe records the pixel where a jaw was seen at a nominal position.
func (t *FitTable) Observe(jaw offsets.Jaw, nominal, pixel float64) error {
	e, ok := t.entries[jaw][nominal]
	if !ok {
		return fmt.Errorf("%s: no reference encoder at position %.1f", jaw, nominal)
	}
	e.Pixel = pixel
	e.Observed = true
	return nil
}

// Entries returns a jaw's entries ordered by nominal position.
func (t *FitTable) Entries(jaw offsets.Jaw) []Entry {
	out := make([]Entry, 0, len(t.entries[jaw]))
	for _, e := range t.entries[jaw] {
		out = append(out, *e)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Nominal < out[b].Nominal })
	return out
}

// Points returns the observed (pixel, encoder) pairs for a jaw.
func (t *FitTable) Points(jaw offsets.Jaw) (pixels, encoders []float64) {
	for _, e := range t.Entries(jaw) {
		if !e.Observed {
			continue
		}
		pixels = append(pixels, e.Pixel)
		encoders = append(encoders, float64(e.Encoder))
	}
	return pixels, encoders
}
