// Package localize finds the isocenter bead and jaw-edge penumbra crossings in
// normalized portal images.
package localize

// Params controls bead and edge localization.
// The defaults are tuned for a 0.336 mm panel upsampled by two.
type Params struct {
	// Central band searched for the bead, as fractions of each image axis.
	BandLo float64 `json:"band_lo"`
	BandHi float64 `json:"band_hi"`

	// Rank of the intensity cutoff: pixels at or below the DarkestCount-th
	// darkest band pixel belong to the bead.
	DarkestCount int `json:"darkest_count"`

	// Half-width in pixels of the neighborhood kept around the steepest gradient.
	EdgeWindow int `json:"edge_window"`

	// Penumbra level treated as the jaw edge, relative to the open field.
	EdgeLevel float64 `json:"edge_level"`
}

// DefaultParams returns the localization parameters used for clinical runs.
func DefaultParams() Params {
	return Params{
		BandLo:       14.0 / 30.0,
		BandHi:       16.0 / 30.0,
		DarkestCount: 200,
		EdgeWindow:   20,
		EdgeLevel:    0.5,
	}
}

// WithDarkestCount returns a copy of params with a different bead pixel count.
func (p Params) WithDarkestCount(n int) Params {
	if n < 1 {
		n = 1
	}
	p.DarkestCount = n
	return p
}

// WithEdgeWindow returns a copy of params with a different gradient neighborhood.
func (p Params) WithEdgeWindow(px int) Params {
	if px < 1 {
		px = 1
	}
	p.EdgeWindow = px
	return p
}

// WithBand returns a copy of params searching a different central band.
func (p Params) WithBand(lo, hi float64) Params {
	if lo < 0 {
		lo = 0
	}
	if hi > 1 {
		hi = 1
	}
	p.BandLo = lo
	p.BandHi = hi
	return p
}
