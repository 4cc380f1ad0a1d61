package cost

import (
	"math"

	"jaw-calibrator/internal/coincidence"
	"jaw-calibrator/internal/offsets"
)

// Params weights the cost terms.
type Params struct {
	// Share of the geometric cost given to junctions; the rest goes to absolute offsets.
	JunctionPriority  float64
	OptimizeJunctions bool

	// Extra weight on the magnitude of negative (cold) junction gaps.
	ColdJunctionWeight float64

	UseCoincidence bool
	// Governs only displacements below CoincidenceLow, which cost nothing in either mode.
	OptimizeCoincidence bool
	CoincidenceLow      float64
	CoincidenceHigh     float64
}

// DefaultParams returns the clinical weighting.
func DefaultParams() Params {
	return Params{
		JunctionPriority:    0.7,
		OptimizeJunctions:   true,
		ColdJunctionWeight:  0.5,
		UseCoincidence:      true,
		OptimizeCoincidence: true,
		CoincidenceLow:      0.4,
		CoincidenceHigh:     0.9,
	}
}

// Components breaks a cost down into its terms.
type Components struct {
	Absolute     float64
	Junction     float64
	ColdJunction float64
	Coincidence  float64
	Total        float64

	Entries   int // jaw entries that contributed to Absolute
	Junctions int // junctions that contributed to Junction and ColdJunction
}

// Calculate scores an offset table. reference holds the offsets measured at the
// calibration configuration before any shift, so the difference between the table's
// calibration entries and reference is how far each jaw moved.
// Calculate is a pure function of its arguments.
func Calculate(t *offsets.Table, reference offsets.PerJaw, p Params, g Geometry, ms []coincidence.Measurement) Components {
	var c Components

	t.Each(func(_ offsets.Key, m offsets.Measurement) {
		if !m.Valid() {
			return
		}
		c.Absolute += math.Abs(m.OffsetMM)
		c.Entries++
	})
	if c.Entries > 0 {
		c.Absolute /= float64(c.Entries)
	}

	if p.OptimizeJunctions {
		junctions := g.JunctionGaps(t)
		for _, j := range junctions {
			c.Junction += math.Abs(j.GapMM)
			if j.GapMM < 0 {
				c.ColdJunction += p.ColdJunctionWeight * math.Abs(j.GapMM)
			}
		}
		c.Junctions = len(junctions)
		if c.Junctions > 0 {
			c.Junction /= float64(c.Junctions)
			c.ColdJunction /= float64(c.Junctions)
		}
		c.Total = p.JunctionPriority*(c.Junction+c.ColdJunction) + (1-p.JunctionPriority)*c.Absolute
	} else {
		c.Total = c.Absolute
	}

	if p.UseCoincidence && len(ms) > 0 {
		var disp offsets.PerJaw
		for _, jaw := range offsets.Jaws {
			v, _ := t.Offset(g.CalibrationGantry, g.CalibrationCollimator, jaw)
			disp[jaw] = v - reference[jaw]
		}
		for _, m := range ms {
			proj := coincidence.Project(m, disp)
			c.Coincidence += p.CoincidencePenalty(proj.Y) + p.CoincidencePenalty(proj.X)
		}
		c.Coincidence /= float64(len(ms))
		c.Total += c.Coincidence
	}

	return c
}

// CoincidencePenalty scores one projected displacement: nothing below the low
// tolerance, its square up to the high tolerance, and its cube at or beyond it.
func (p Params) CoincidencePenalty(displacement float64) float64 {
	a := math.Abs(displacement)
	switch {
	case a >= p.CoincidenceHigh:
		return a * a * a
	case a >= p.CoincidenceLow:
		return a * a
	default:
		return 0
	}
}
