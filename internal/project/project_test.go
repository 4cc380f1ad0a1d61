package project

import (
	"os"
	"path/filepath"
	"testing"

	"jaw-calibrator/internal/offsets"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsValid(t *testing.T) {
	p := New("2")
	p.JunctionImages = "images"
	require.NoError(t, p.Validate())
	assert.Equal(t, 0.336, p.Detector.PixelPitchMM)
	assert.Equal(t, 31, p.Grid[offsets.X1].Samples)
	assert.Equal(t, 21, p.Grid[offsets.Y2].Samples)
}

func TestLoadKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "u2.jawcal.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"unit": "2",
		"junction_priority": 0.5,
		"optimize_junctions": false,
		"junction_images": "Images/U2_2024",
		"encoder_table": "/abs/u2_encoders.csv",
		"detector": {"pixel_pitch_mm": 0.336, "upsample": 2, "smoothing_sigma": 3, "top_median_count": 5000, "source_axis_distance_mm": 1000}
	}`), 0644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "2", p.Unit)
	assert.Equal(t, 0.5, p.JunctionPriority)
	assert.False(t, p.OptimizeJunctions)
	assert.True(t, p.OptimizeCoincidence)
	assert.Equal(t, 5000, p.Detector.TopMedianCount)
	assert.Equal(t, 200, p.Localize.DarkestCount)
	assert.Equal(t, 1180.0, p.EncoderPanelDistanceMM)

	r := p.Resolve(path)
	assert.Equal(t, filepath.Join(dir, "Images/U2_2024"), r.JunctionImages)
	assert.Equal(t, "/abs/u2_encoders.csv", r.EncoderTable)
	assert.Equal(t, "Images/U2_2024", p.JunctionImages)
	assert.Equal(t, filepath.Join(dir, "Images", "U2_Output"), r.OutputPath())

	c := r.CostParams()
	assert.Equal(t, 0.5, c.JunctionPriority)
	assert.False(t, c.OptimizeJunctions)
	assert.False(t, c.UseCoincidence)
	assert.Equal(t, 1500.0, r.OffsetConfig().DefaultPanelDistanceMM)
	assert.InDelta(t, 0.336/1.18/2, r.EncoderConfig().PitchMM(), 1e-12)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, ErrConfiguration)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{unit"), 0644))
	_, err = Load(bad)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestValidate(t *testing.T) {
	valid := func() *File {
		p := New("2")
		p.JunctionImages = "images"
		return p
	}
	cases := map[string]func(*File){
		"no unit":           func(p *File) { p.Unit = "" },
		"priority":          func(p *File) { p.JunctionPriority = 1.5 },
		"no junction dir":   func(p *File) { p.JunctionImages = "" },
		"encoder w/o table": func(p *File) { p.EncoderImages = "enc" },
		"panel distance":    func(p *File) { p.EncoderPanelDistanceMM = 0 },
		"detector":          func(p *File) { p.Detector.Upsample = 0 },
		"localize":          func(p *File) { p.Localize.BandHi = p.Localize.BandLo },
		"grid":              func(p *File) { p.Grid[offsets.Y1].Samples = 0 },
	}
	for name, mutate := range cases {
		p := valid()
		mutate(p)
		assert.ErrorIs(t, p.Validate(), ErrConfiguration, name)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.jawcal.json")
	p := New("4")
	p.JunctionImages = "j"
	p.CoincidenceFile = "lrfc.csv"
	require.NoError(t, p.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, p.Grid, got.Grid)
	assert.Equal(t, p.Localize, got.Localize)
	assert.True(t, got.CostParams().UseCoincidence)
}
