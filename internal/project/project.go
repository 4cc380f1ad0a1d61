// Package project provides the calibration run file and its persistence.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"jaw-calibrator/internal/cost"
	"jaw-calibrator/internal/encoder"
	pimage "jaw-calibrator/internal/image"
	"jaw-calibrator/internal/localize"
	"jaw-calibrator/internal/offsets"
	"jaw-calibrator/internal/optimizer"
)

// ErrConfiguration marks a run file that cannot drive a run.
var ErrConfiguration = errors.New("invalid run configuration")

// File represents a calibration run file (.jawcal.json).
type File struct {
	Version     int       `json:"version"`
	Unit        string    `json:"unit"`
	Created     time.Time `json:"created"`
	Modified    time.Time `json:"modified"`
	Description string    `json:"description,omitempty"`

	// Optimization weights
	JunctionPriority    float64 `json:"junction_priority"`
	OptimizeJunctions   bool    `json:"optimize_junctions"`
	OptimizeCoincidence bool    `json:"optimize_coincidence"`

	// Input and output paths (relative to the run file)
	JunctionImages  string `json:"junction_images"`
	JawImages       string `json:"jaw_images,omitempty"`
	EncoderImages   string `json:"encoder_images,omitempty"`
	EncoderIsoImage string `json:"encoder_iso_image,omitempty"`
	EncoderTable    string `json:"encoder_table,omitempty"`
	CoincidenceFile string `json:"coincidence,omitempty"`
	OutputDir       string `json:"output,omitempty"`

	// Panel distances used when an image carries none
	JunctionPanelDistanceMM float64 `json:"junction_panel_distance_mm"`
	EncoderPanelDistanceMM  float64 `json:"encoder_panel_distance_mm"`

	Detector   pimage.DetectorConfig `json:"detector"`
	Localize   localize.Params       `json:"localize"`
	Grid       optimizer.Grid        `json:"grid"`
	FieldSizes []float64             `json:"field_sizes,omitempty"`
}

// New creates a run file for a unit with default settings.
func New(unit string) *File {
	now := time.Now()
	return &File{
		Version:                 1,
		Unit:                    unit,
		Created:                 now,
		Modified:                now,
		JunctionPriority:        0.7,
		OptimizeJunctions:       true,
		OptimizeCoincidence:     true,
		JunctionPanelDistanceMM: 1500,
		EncoderPanelDistanceMM:  1180,
		Detector:                pimage.DefaultDetectorConfig(),
		Localize:                localize.DefaultParams(),
		Grid:                    optimizer.DefaultGrid(),
		FieldSizes:              append([]float64(nil), offsets.DefaultFieldSizes...),
	}
}

// Load loads a run file. Settings absent from the file keep their defaults.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	proj := New("")
	if err := json.Unmarshal(data, proj); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfiguration, filepath.Base(path), err)
	}

	return proj, nil
}

// Save saves the run file.
func (p *File) Save(path string) error {
	p.Modified = time.Now()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Resolve returns a copy with every relative path joined to the run file's directory.
func (p *File) Resolve(projectPath string) *File {
	c := *p
	c.FieldSizes = append([]float64(nil), p.FieldSizes...)
	base := filepath.Dir(projectPath)
	for _, s := range []*string{
		&c.JunctionImages, &c.JawImages, &c.EncoderImages, &c.EncoderIsoImage,
		&c.EncoderTable, &c.CoincidenceFile, &c.OutputDir,
	} {
		if *s != "" && !filepath.IsAbs(*s) {
			*s = filepath.Join(base, *s)
		}
	}
	return &c
}

// Validate checks the run file can drive a run.
func (p *File) Validate() error {
	if p.Unit == "" {
		return fmt.Errorf("%w: unit is required", ErrConfiguration)
	}
	if p.JunctionPriority < 0 || p.JunctionPriority > 1 {
		return fmt.Errorf("%w: junction priority %g outside [0, 1]", ErrConfiguration, p.JunctionPriority)
	}
	if p.JunctionImages == "" {
		return fmt.Errorf("%w: junction image directory is required", ErrConfiguration)
	}
	if p.EncoderImages != "" && (p.EncoderTable == "" || p.EncoderIsoImage == "") {
		return fmt.Errorf("%w: encoder images need an encoder table and an isocenter image", ErrConfiguration)
	}
	if p.JunctionPanelDistanceMM <= 0 || p.EncoderPanelDistanceMM <= 0 {
		return fmt.Errorf("%w: panel distances must be positive", ErrConfiguration)
	}
	if err := p.Detector.Validate(); err != nil {
		return fmt.Errorf("%w: detector: %w", ErrConfiguration, err)
	}
	if p.Localize.DarkestCount < 1 || p.Localize.EdgeWindow < 1 || !(p.Localize.BandHi > p.Localize.BandLo) {
		return fmt.Errorf("%w: localize parameters out of range", ErrConfiguration)
	}
	if err := p.Grid.Validate(); err != nil {
		return fmt.Errorf("%w: grid: %w", ErrConfiguration, err)
	}
	return nil
}

// OutputPath returns the report directory, defaulting to U<unit>_Output beside the
// junction images.
func (p *File) OutputPath() string {
	if p.OutputDir != "" {
		return p.OutputDir
	}
	return filepath.Join(filepath.Dir(filepath.Clean(p.JunctionImages)), "U"+p.Unit+"_Output")
}

// CostParams returns the cost weighting for the run.
func (p *File) CostParams() cost.Params {
	c := cost.DefaultParams()
	c.JunctionPriority = p.JunctionPriority
	c.OptimizeJunctions = p.OptimizeJunctions
	c.OptimizeCoincidence = p.OptimizeCoincidence
	c.UseCoincidence = p.CoincidenceFile != ""
	return c
}

// OffsetConfig returns the junction image extraction settings.
func (p *File) OffsetConfig() offsets.Config {
	return offsets.Config{
		Localize:               p.Localize,
		Detector:               p.Detector,
		DefaultPanelDistanceMM: p.JunctionPanelDistanceMM,
	}
}

// EncoderConfig returns the encoder image settings.
func (p *File) EncoderConfig() encoder.Config {
	c := encoder.DefaultConfig()
	c.Localize = p.Localize
	c.Detector = p.Detector
	c.PanelDistanceMM = p.EncoderPanelDistanceMM
	return c
}
