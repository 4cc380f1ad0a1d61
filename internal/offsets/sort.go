package offsets

import (
	"log"
	"path/filepath"

	pimage "jaw-calibrator/internal/image"
	"jaw-calibrator/pkg/geometry"

	"gonum.org/v1/gonum/floats"
)

// DefaultSymmetryRatio is the min/max quadrant mean ratio above which an image is
// treated as the open isocenter image rather than a quarter-blocked field.
const DefaultSymmetryRatio = 0.6

// JunctionImages groups the junction test images by what they show.
type JunctionImages struct {
	Iso     map[int]*pimage.Radiograph // open field with bead, by gantry
	Blocked map[Key]*pimage.Radiograph // quarter-blocked field, by closed jaw
}

// SortJunctionImages classifies every prepared radiograph as an isocenter image or
// a quarter-blocked image of a specific jaw. Images that cannot be classified are
// logged and skipped.
func SortJunctionImages(rgs []*pimage.Radiograph, symmetryRatio float64) *JunctionImages {
	out := &JunctionImages{
		Iso:     make(map[int]*pimage.Radiograph),
		Blocked: make(map[Key]*pimage.Radiograph),
	}
	for _, rg := range rgs {
		if rg.Frame == nil {
			log.Printf("[Offsets] %s: not prepared, skipping", filepath.Base(rg.Path))
			continue
		}
		g, c := rg.Meta.Gantry, rg.Meta.Collimator

		means := rg.Frame.QuadrantMeans()
		lo, hi := floats.Min(means[:]), floats.Max(means[:])
		if hi > 0 && lo/hi > symmetryRatio {
			if _, dup := out.Iso[g]; dup {
				log.Printf("[Offsets] %s: replaces earlier isocenter image for gantry %d", filepath.Base(rg.Path), g)
			}
			out.Iso[g] = rg
			continue
		}

		q := pimage.Quadrant(floats.MinIdx(means[:]))
		jaw, err := JawForQuadrant(c, q)
		if err != nil {
			log.Printf("[Offsets] %s: %v, skipping", filepath.Base(rg.Path), err)
			continue
		}
		out.Blocked[Key{Gantry: g, Collimator: c, Jaw: jaw}] = rg
	}
	log.Printf("[Offsets] sorted %d isocenter and %d blocked images", len(out.Iso), len(out.Blocked))
	return out
}

// JawImages holds asymmetric single-jaw images keyed by jaw, then by nominal
// jaw position in cm.
type JawImages map[Jaw]map[float64]*pimage.Radiograph

// NominalCM converts a jaw aperture in mm to the nominal position key in cm.
func NominalCM(apertureMM float64) float64 {
	if apertureMM < 0 {
		apertureMM = -apertureMM
	}
	return geometry.RoundTo(apertureMM/10, 1)
}

// SortJawImages registers every image under all four jaws at that jaw's nominal position.
func SortJawImages(rgs []*pimage.Radiograph) JawImages {
	out := JawImages{
		X1: make(map[float64]*pimage.Radiograph),
		X2: make(map[float64]*pimage.Radiograph),
		Y1: make(map[float64]*pimage.Radiograph),
		Y2: make(map[float64]*pimage.Radiograph),
	}
	for _, rg := range rgs {
		out[X1][NominalCM(rg.Meta.JawsX[0])] = rg
		out[X2][NominalCM(rg.Meta.JawsX[1])] = rg
		out[Y1][NominalCM(rg.Meta.JawsY[0])] = rg
		out[Y2][NominalCM(rg.Meta.JawsY[1])] = rg
	}
	return out
}
