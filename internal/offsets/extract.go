package offsets

import (
	"fmt"
	"log"
	"sort"

	pimage "jaw-calibrator/internal/image"
	"jaw-calibrator/internal/localize"
	"jaw-calibrator/pkg/geometry"
)

// Config controls offset extraction.
type Config struct {
	Localize               localize.Params
	Detector               pimage.DetectorConfig
	DefaultPanelDistanceMM float64 // used when an image carries no panel distance
}

// DefaultConfig returns the extraction settings for junction images.
func DefaultConfig() Config {
	return Config{
		Localize:               localize.DefaultParams(),
		Detector:               pimage.DefaultDetectorConfig(),
		DefaultPanelDistanceMM: 1500,
	}
}

// pitch returns the mm-per-pixel scale at isocenter for a radiograph.
func (c Config) pitch(rg *pimage.Radiograph) float64 {
	d := rg.Meta.PanelDistanceMM
	if d <= 0 {
		d = c.DefaultPanelDistanceMM
	}
	return c.Detector.PitchMM(d)
}

// measure converts the edge in a profile to a signed offset from the bead.
func (c Config) measure(rg *pimage.Radiograph, bead geometry.Pixel, o Orientation, locate func([]float64) (int, error)) (float64, error) {
	through := bead.Rounded().Col
	if o.Axis == geometry.AxisCol {
		through = bead.Rounded().Row
	}
	profile, err := rg.Frame.Profile(o.Axis, through)
	if err != nil {
		return 0, err
	}
	idx, err := locate(profile)
	if err != nil {
		return 0, err
	}
	return o.Sign * (float64(idx) - bead.Along(o.Axis)) * c.pitch(rg), nil
}

// ExtractJunctionOffsets measures every jaw at every gantry and collimator angle
// against that gantry's bead. Each (gantry, collimator) pair always receives four
// entries; absent or unusable images are recorded as missing.
func ExtractJunctionOffsets(imgs *JunctionImages, cfg Config) *Table {
	gantries := make(map[int]bool)
	for g := range imgs.Iso {
		gantries[g] = true
	}
	for k := range imgs.Blocked {
		gantries[k.Gantry] = true
	}

	table := NewTable()
	for _, g := range sortedInts(gantries) {
		var bead geometry.Pixel
		var beadErr error
		if iso, ok := imgs.Iso[g]; ok {
			bead, beadErr = localize.LocateBead(iso.Frame, cfg.Localize)
		} else {
			beadErr = fmt.Errorf("no isocenter image for gantry %d", g)
		}
		if beadErr == nil {
			table.SetIso(g, bead)
		} else {
			log.Printf("[Offsets] gantry %d: %v", g, beadErr)
		}

		for _, c := range Collimators {
			for _, jaw := range Jaws {
				key := Key{Gantry: g, Collimator: c, Jaw: jaw}
				if beadErr != nil {
					table.Set(key, Missing(key, beadErr))
					continue
				}
				rg, ok := imgs.Blocked[key]
				if !ok {
					log.Printf("[Offsets] %s: no image", key)
					table.Set(key, Missing(key, nil))
					continue
				}
				o, err := OrientationOf(c, jaw)
				if err != nil {
					table.Set(key, Missing(key, err))
					continue
				}
				locate := func(p []float64) (int, error) { return localize.EdgeInCentralHalf(p, cfg.Localize) }
				mm, err := cfg.measure(rg, bead, o, locate)
				if err != nil {
					log.Printf("[Offsets] %s: %v", key, err)
					table.Set(key, Missing(key, err))
					continue
				}
				table.SetOffset(key, mm)
			}
		}
	}
	if missing := table.Missing(); len(missing) > 0 {
		log.Printf("[Offsets] %d of %d jaw entries missing", len(missing), table.Len())
	}
	return table
}

// DefaultFieldSizes are the nominal asymmetric jaw positions in cm.
var DefaultFieldSizes = []float64{2.5, 5.0, 7.5, 10.0}

// JawOffset is a static jaw position check at one nominal position.
type JawOffset struct {
	Jaw         Jaw
	NominalCM   float64
	Measurement Measurement
}

// ExtractJawOffsets measures each jaw's edge in asymmetric single-jaw images against
// a fixed bead location. Absent jaw/position combinations are logged and returned
// as missing entries.
func ExtractJawOffsets(imgs JawImages, bead geometry.Pixel, fieldSizes []float64, cfg Config) []JawOffset {
	var out []JawOffset
	for _, fs := range fieldSizes {
		nominal := geometry.RoundTo(fs, 1)
		for _, jaw := range Jaws {
			entry := JawOffset{Jaw: jaw, NominalCM: nominal}
			rg, ok := imgs[jaw][nominal]
			if !ok {
				log.Printf("[Offsets] no asymmetric image for %s at %.1f cm", jaw, nominal)
				entry.Measurement = Measurement{Err: fmt.Errorf("%s at %.1f cm: %w", jaw, nominal, ErrMissingMeasurement)}
				out = append(out, entry)
				continue
			}
			search := asymmetricHalf[jaw]
			half := localize.SecondHalf
			if search.firstHalf {
				half = localize.FirstHalf
			}
			locate := func(p []float64) (int, error) { return localize.EdgeInHalf(p, half, cfg.Localize) }
			mm, err := cfg.measure(rg, bead, search.Orientation, locate)
			if err != nil {
				log.Printf("[Offsets] %s at %.1f cm: %v", jaw, nominal, err)
				entry.Measurement = Measurement{Err: fmt.Errorf("%s at %.1f cm: %w: %w", jaw, nominal, ErrMissingMeasurement, err)}
			} else {
				entry.Measurement = Measurement{OffsetMM: mm}
			}
			out = append(out, entry)
		}
	}
	return out
}

func sortedInts(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}
