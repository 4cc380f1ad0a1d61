// Package cost scores an offset table: absolute jaw error, field-junction gaps
// with an extra penalty for cold junctions, and projected light/radiation field
// coincidence.
package cost

import "jaw-calibrator/internal/offsets"

// Geometry names the gantry and collimator angles the cost terms are built from.
type Geometry struct {
	// Off-axis gantry angles of the lower (tangent) fields.
	TangentGantries []int
	// Gantry angles of the upper fields whose x1 jaw abuts each tangent x2 jaw.
	ReferenceGantries []int
	// Collimator angle all junction fields are delivered at.
	JunctionCollimator int
	// Configuration the machine is calibrated at.
	CalibrationGantry     int
	CalibrationCollimator int
}

// DefaultGeometry returns the breast-tangent junction set.
func DefaultGeometry() Geometry {
	return Geometry{
		TangentGantries:       []int{50, 130, 310, 230},
		ReferenceGantries:     []int{0, 180},
		JunctionCollimator:    90,
		CalibrationGantry:     0,
		CalibrationCollimator: 0,
	}
}

// Junction is the gap between an upper field's x1 jaw and a tangent field's x2 jaw.
// Zero means the fields abut exactly; negative gaps leave a cold seam.
type Junction struct {
	ReferenceGantry int
	TangentGantry   int
	GapMM           float64
}

// JunctionGaps returns the gap of every junction whose two jaws were measured,
// tangent-major in geometry order.
func (g Geometry) JunctionGaps(t *offsets.Table) []Junction {
	out := make([]Junction, 0, len(g.TangentGantries)*len(g.ReferenceGantries))
	for _, tg := range g.TangentGantries {
		lower, ok := t.Offset(tg, g.JunctionCollimator, offsets.X2)
		if !ok {
			continue
		}
		for _, rg := range g.ReferenceGantries {
			upper, ok := t.Offset(rg, g.JunctionCollimator, offsets.X1)
			if !ok {
				continue
			}
			out = append(out, Junction{ReferenceGantry: rg, TangentGantry: tg, GapMM: lower + upper})
		}
	}
	return out
}
