package encoder

import (
	"fmt"
	"log"
	"path/filepath"

	pimage "jaw-calibrator/internal/image"
	"jaw-calibrator/internal/localize"
	"jaw-calibrator/internal/offsets"
	"jaw-calibrator/pkg/geometry"
)

// Config controls where jaw edges are searched in encoder calibration images.
type Config struct {
	Localize localize.Params
	Detector pimage.DetectorConfig

	// Panel distance of the encoder image set.
	PanelDistanceMM float64

	// Each jaw is searched in the part of its profile on its own side: from the
	// start up to NearFraction of the length, or from FarFraction to the end.
	NearFraction float64
	FarFraction  float64
}

// DefaultConfig returns the settings for the standard encoder image set.
func DefaultConfig() Config {
	return Config{
		Localize:        localize.DefaultParams(),
		Detector:        pimage.DefaultDetectorConfig(),
		PanelDistanceMM: 1180,
		NearFraction:    1500.0 / 2560.0,
		FarFraction:     1000.0 / 2560.0,
	}
}

// PitchMM returns the working pixel pitch for the encoder image set.
func (c Config) PitchMM() float64 {
	return c.Detector.PitchMM(c.PanelDistanceMM)
}

type edgeSearch struct {
	axis  geometry.Axis
	far   bool
	slope localize.Slope
}

// x jaws are found along the isocenter row, y jaws down the isocenter column.
var jawSearch = [4]edgeSearch{
	offsets.X1: {axis: geometry.AxisCol, far: false, slope: localize.Rising},
	offsets.X2: {axis: geometry.AxisCol, far: true, slope: localize.Falling},
	offsets.Y1: {axis: geometry.AxisRow, far: true, slope: localize.Falling},
	offsets.Y2: {axis: geometry.AxisRow, far: false, slope: localize.Rising},
}

// JawEdge returns the pixel index of a jaw's edge in an encoder image.
func (c Config) JawEdge(f *pimage.Frame, iso geometry.PixelInt, jaw offsets.Jaw) (int, error) {
	s := jawSearch[jaw]
	through := iso.Col
	if s.axis == geometry.AxisCol {
		through = iso.Row
	}
	profile, err := f.Profile(s.axis, through)
	if err != nil {
		return 0, err
	}
	span := geometry.FractionSpan(len(profile), 0, c.NearFraction)
	if s.far {
		span = geometry.FractionSpan(len(profile), c.FarFraction, 1)
	}
	idx, err := localize.EdgeNearSteepest(profile[span.Start:span.End], s.slope, c.Localize)
	if err != nil {
		return 0, err
	}
	return span.Start + idx, nil
}

// nominalOf returns a jaw's aperture in mm as recorded in the image metadata.
func nominalOf(m pimage.Metadata, jaw offsets.Jaw) float64 {
	switch jaw {
	case offsets.X1:
		return m.JawsX[0]
	case offsets.X2:
		return m.JawsX[1]
	case offsets.Y1:
		return m.JawsY[0]
	default:
		return m.JawsY[1]
	}
}

// BuildFitTable measures every jaw edge in the encoder images and records it
// against the reference encoder count for that image's jaw positions. Images or
// jaws that cannot be measured are logged and left unobserved.
func BuildFitTable(ref ReferenceTable, rgs []*pimage.Radiograph, iso geometry.Pixel, cfg Config) *FitTable {
	table := NewFitTable(ref)
	at := iso.Rounded()
	for _, rg := range rgs {
		if rg.Frame == nil {
			log.Printf("[Encoder] %s: not prepared, skipping", filepath.Base(rg.Path))
			continue
		}
		for _, j := range offsets.Jaws {
			key := FitKey(nominalOf(rg.Meta, j))
			px, err := cfg.JawEdge(rg.Frame, at, j)
			if err == nil {
				err = table.Observe(j, key, float64(px))
			}
			if err != nil {
				log.Printf("[Encoder] %s %s at %.1f: %v", filepath.Base(rg.Path), j, key, err)
			}
		}
	}
	for _, j := range offsets.Jaws {
		px, _ := table.Points(j)
		log.Printf("[Encoder] %s: %d observed positions", j, len(px))
	}
	return table
}

// LocateIso finds the isocenter bead in the encoder isocenter image.
func LocateIso(rg *pimage.Radiograph, cfg Config) (geometry.Pixel, error) {
	if rg.Frame == nil {
		return geometry.Pixel{}, fmt.Errorf("%s: not prepared", rg.Path)
	}
	bead, err := localize.LocateBead(rg.Frame, cfg.Localize)
	if err != nil {
		return geometry.Pixel{}, fmt.Errorf("encoder isocenter %s: %w", filepath.Base(rg.Path), err)
	}
	return bead, nil
}
