package localize

import (
	"errors"
	"fmt"
	"log"
	"sort"

	"jaw-calibrator/internal/image"
	"jaw-calibrator/pkg/geometry"
)

// ErrNoBead is returned when the central band holds no sub-background fiducial.
var ErrNoBead = errors.New("no bead found in central band")

// BeadWindow returns the central band of a rows x cols frame searched for the bead.
func (p Params) BeadWindow(rows, cols int) geometry.Window {
	return geometry.Window{
		Rows: geometry.FractionSpan(rows, p.BandLo, p.BandHi),
		Cols: geometry.FractionSpan(cols, p.BandLo, p.BandHi),
	}
}

// LocateBead returns the centroid of the darkest pixels in the central band,
// weighted by their darkness, rounded to two decimals.
// The frame is not modified.
func LocateBead(f *image.Frame, p Params) (geometry.Pixel, error) {
	rows, cols := f.Dims()
	win := p.BeadWindow(rows, cols)
	if win.Rows.Len() == 0 || win.Cols.Len() == 0 {
		return geometry.Pixel{}, fmt.Errorf("%w: band is empty for %dx%d frame", ErrNoBead, rows, cols)
	}

	peak := f.Max()
	if peak <= 0 {
		return geometry.Pixel{}, fmt.Errorf("%w: frame has no positive intensity", ErrNoBead)
	}

	band := make([]float64, 0, win.Rows.Len()*win.Cols.Len())
	for r := win.Rows.Start; r < win.Rows.End; r++ {
		for c := win.Cols.Start; c < win.Cols.End; c++ {
			band = append(band, f.At(r, c)/peak)
		}
	}
	sorted := make([]float64, len(band))
	copy(sorted, band)
	sort.Float64s(sorted)

	if sorted[0] == sorted[len(sorted)-1] {
		return geometry.Pixel{}, fmt.Errorf("%w: band is uniform", ErrNoBead)
	}

	rank := p.DarkestCount
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	cutoff := sorted[rank]

	var sumW, sumR, sumC float64
	kept := 0
	i := 0
	for r := win.Rows.Start; r < win.Rows.End; r++ {
		for c := win.Cols.Start; c < win.Cols.End; c++ {
			v := band[i]
			i++
			if v > cutoff {
				continue
			}
			w := 1 - v
			if w <= 0 {
				continue
			}
			sumW += w
			sumR += w * float64(r)
			sumC += w * float64(c)
			kept++
		}
	}
	if sumW == 0 {
		return geometry.Pixel{}, fmt.Errorf("%w: no pixel darker than background", ErrNoBead)
	}

	bead := geometry.NewPixel(sumR/sumW, sumC/sumW).Round(2)
	log.Printf("[Bead] centroid (%.2f, %.2f) from %d pixels", bead.Row, bead.Col, kept)
	return bead, nil
}
