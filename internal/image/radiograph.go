// Package image provides radiograph loading, intensity normalization and the
// smoothing/upsampling applied before any localization runs.
package image

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	_ "image/png"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "golang.org/x/image/tiff"
)

// Metadata carries the acquisition parameters the calibration needs from a radiograph.
type Metadata struct {
	Gantry          int        `json:"gantry"`
	Collimator      int        `json:"collimator"`
	JawsX           [2]float64 `json:"jaws_x"` // x1, x2 aperture in mm
	JawsY           [2]float64 `json:"jaws_y"` // y1, y2 aperture in mm
	PanelDistanceMM float64    `json:"panel_distance_mm"`
}

// sidecar is the on-disk metadata written next to each radiograph.
// Angles are stored as recorded by the machine and normalized on load.
type sidecar struct {
	Gantry          float64    `json:"gantry"`
	Collimator      float64    `json:"collimator"`
	JawsX           [2]float64 `json:"jaws_x"`
	JawsY           [2]float64 `json:"jaws_y"`
	PanelDistanceMM float64    `json:"panel_distance_mm"`
}

// Radiograph is one decoded portal image.
type Radiograph struct {
	Path  string
	Raw   *Frame // decoded intensities, unnormalized
	Frame *Frame // normalized, smoothed and upsampled; nil until Prepare is called
	Meta  Metadata
}

// NormalizeAngle rounds a machine angle to whole degrees in [0, 360).
func NormalizeAngle(deg float64) int {
	a := int(math.Round(deg)) % 360
	if a < 0 {
		a += 360
	}
	return a
}

// IsRadiograph reports whether the file extension is a supported image format.
func IsRadiograph(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff", ".png":
		return true
	}
	return false
}

// SidecarPath returns the metadata file expected next to an image.
func SidecarPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".json"
}

// Load decodes a grayscale radiograph and its metadata sidecar.
func Load(path string) (*Radiograph, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	raw, err := grayFrame(img)
	if err != nil {
		return nil, err
	}

	meta, err := LoadMetadata(SidecarPath(path))
	if err != nil {
		return nil, err
	}

	return &Radiograph{Path: path, Raw: raw, Meta: meta}, nil
}

// LoadMetadata reads a metadata sidecar.
func LoadMetadata(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}
	var sc sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata %s: %w", path, err)
	}
	return Metadata{
		Gantry:          NormalizeAngle(sc.Gantry),
		Collimator:      NormalizeAngle(sc.Collimator),
		JawsX:           sc.JawsX,
		JawsY:           sc.JawsY,
		PanelDistanceMM: sc.PanelDistanceMM,
	}, nil
}

// LoadDir loads and prepares every radiograph in dir, in file name order.
// Files that fail to load are logged and skipped.
func LoadDir(dir string, prep Preprocessor) ([]*Radiograph, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !IsRadiograph(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var out []*Radiograph
	for _, name := range names {
		path := filepath.Join(dir, name)
		rg, err := Load(path)
		if err != nil {
			log.Printf("[Load] skipping %s: %v", name, err)
			continue
		}
		if err := rg.Prepare(prep); err != nil {
			log.Printf("[Load] skipping %s: %v", name, err)
			continue
		}
		out = append(out, rg)
	}
	log.Printf("[Load] %d of %d radiographs loaded from %s", len(out), len(names), dir)
	return out, nil
}

// Prepare runs the preprocessor over the raw frame.
func (r *Radiograph) Prepare(prep Preprocessor) error {
	f, err := prep(r.Raw)
	if err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(r.Path), err)
	}
	r.Frame = f
	return nil
}

// grayFrame converts any decoded image to 16-bit gray intensities.
func grayFrame(img image.Image) (*Frame, error) {
	b := img.Bounds()
	rows, cols := b.Dy(), b.Dx()
	pix := make([]float64, 0, rows*cols)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
			pix = append(pix, float64(g.Y))
		}
	}
	return NewFrame(rows, cols, pix)
}
