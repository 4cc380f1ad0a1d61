package encoder

import (
	"path/filepath"
	"strings"
	"testing"

	pimage "jaw-calibrator/internal/image"
	"jaw-calibrator/internal/offsets"
	"jaw-calibrator/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const referenceCSV = `Unit 2 jaw encoders,,,,
position,x1,x2,y1,y2
5.0,1000,2000,3000,4000
10.0,1100,2100,3100,4100
15.0,1250,2250,3250,4250
20.04,1450,2450,3450,4450
25.0,1700,2700,3700,4700
`

func TestParseReferenceTable(t *testing.T) {
	ref, err := ParseReferenceTable(strings.NewReader(referenceCSV))
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 10, 15, 20, 25}, ref.Positions())
	assert.Equal(t, [4]int{1450, 2450, 3450, 4450}, ref[20])
}

func TestParseReferenceTableErrors(t *testing.T) {
	for name, in := range map[string]string{
		"headers only": "a\nb\n",
		"short row":    "a\nb\n5.0,1,2,3\n",
		"bad encoder":  "a\nb\n5.0,1,2,x,4\n",
		"bad position": "a\nb\nfive,1,2,3,4\n",
	} {
		_, err := ParseReferenceTable(strings.NewReader(in))
		assert.ErrorIs(t, err, ErrConfiguration, name)
	}

	_, err := LoadReferenceTable(filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestFitKey(t *testing.T) {
	assert.Equal(t, 5.0, FitKey(24.9))
	assert.Equal(t, 5.5, FitKey(26.4))
	assert.Equal(t, 10.0, FitKey(-50))
	assert.Equal(t, 0.5, FitKey(2.6))
}

func TestFitRecoversPolynomials(t *testing.T) {
	xs := []float64{1000, 1200, 1350, 1500, 1800, 2100, 2500}
	cubic := func(x float64) float64 { return 3 + 0.5*x - 0.001*x*x + 2e-7*x*x*x }
	ys := make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = cubic(x)
	}

	p, err := Fit(xs, ys, Cubic)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Degree())
	for _, x := range []float64{1000, 1111, 1777, 2500} {
		assert.InDelta(t, cubic(x), p.Eval(x), 1e-6)
	}

	line := []float64{5, 7, 9.5, 11}
	lp, err := Fit([]float64{0, 1, 2, 3}, line, Linear)
	require.NoError(t, err)
	// Least-squares slope and intercept of the points above.
	assert.InDelta(t, 2.05, lp.Eval(1)-lp.Eval(0), 1e-9)
	assert.InDelta(t, 5.05, lp.Eval(0), 1e-9)
}

func TestFitNeedsDistinctPoints(t *testing.T) {
	_, err := Fit([]float64{1, 2, 2, 3}, []float64{1, 2, 2, 3}, Cubic)
	assert.ErrorIs(t, err, ErrInsufficientPoints)

	_, err = Fit(nil, nil, Linear)
	assert.ErrorIs(t, err, ErrInsufficientPoints)

	_, err = Fit([]float64{1, 2}, []float64{1}, Linear)
	assert.Error(t, err)
}

func TestPredict(t *testing.T) {
	iso := geometry.Pixel{Row: 500, Col: 600}
	identity := Poly{Coeffs: []float64{0, 1}, Scale: 1}
	cand := offsets.PerJaw{0.5, 0.25, -0.5, 1}

	assert.Equal(t, [4]int{516, 196, -124, -924}, Predict(iso, offsets.X1, cand, identity, 0.125))
	assert.Equal(t, [4]int{682, 1002, 1322, 2122}, Predict(iso, offsets.X2, cand, identity, 0.125))
	assert.Equal(t, [4]int{576, 896, 1216, 2016}, Predict(iso, offsets.Y1, cand, identity, 0.125))
	assert.Equal(t, [4]int{412, 92, -228, -1028}, Predict(iso, offsets.Y2, cand, identity, 0.125))

	half := Poly{Coeffs: []float64{0.5, 0.5}, Scale: 1}
	assert.Equal(t, 259, Predict(iso, offsets.X1, cand, half, 0.125)[0])
}

// encoderImage opens the field between lo and hi on both axes.
func encoderImage(t *testing.T, lo, hi int, apertureMM float64) *pimage.Radiograph {
	t.Helper()
	const n = 200
	pix := make([]float64, n*n)
	for r := lo; r < hi; r++ {
		for c := lo; c < hi; c++ {
			pix[r*n+c] = 1
		}
	}
	f, err := pimage.NewFrame(n, n, pix)
	require.NoError(t, err)
	return &pimage.Radiograph{
		Path:  "enc",
		Raw:   f,
		Frame: f,
		Meta: pimage.Metadata{
			JawsX: [2]float64{-apertureMM, apertureMM},
			JawsY: [2]float64{-apertureMM, apertureMM},
		},
	}
}

func TestBuildFitTable(t *testing.T) {
	ref, err := ParseReferenceTable(strings.NewReader(referenceCSV))
	require.NoError(t, err)

	var rgs []*pimage.Radiograph
	for k := 0; k < 4; k++ {
		e := 20 + 10*k
		rgs = append(rgs, encoderImage(t, 100-e, 100+e, 25*float64(k+1)))
	}
	// No reference position at 3.0.
	rgs = append(rgs, encoderImage(t, 90, 110, 15))
	rgs = append(rgs, &pimage.Radiograph{Path: "unprepared"})

	table := BuildFitTable(ref, rgs, geometry.Pixel{Row: 100, Col: 100}, DefaultConfig())

	px, enc := table.Points(offsets.X1)
	assert.Equal(t, []float64{80, 70, 60, 50}, px)
	assert.Equal(t, []float64{1000, 1100, 1250, 1450}, enc)
	px, _ = table.Points(offsets.X2)
	assert.Equal(t, []float64{120, 130, 140, 150}, px)
	px, _ = table.Points(offsets.Y1)
	assert.Equal(t, []float64{120, 130, 140, 150}, px)
	px, _ = table.Points(offsets.Y2)
	assert.Equal(t, []float64{80, 70, 60, 50}, px)

	entries := table.Entries(offsets.X1)
	require.Len(t, entries, 5)
	assert.False(t, entries[4].Observed)

	fits, err := FitAll(table)
	require.NoError(t, err)
	assert.InDelta(t, 1250, fits.Cubic[offsets.X1].Eval(60), 1e-6)
	assert.InDelta(t, 4100, fits.Cubic[offsets.Y2].Eval(70), 1e-6)

	preds := fits.PredictAll(geometry.Pixel{Row: 100, Col: 100}, offsets.PerJaw{}, 1)
	assert.Equal(t, int(fits.Linear[offsets.X2].Eval(110)+0.5), preds.Linear[offsets.X2][0])
}

func TestFitAllReportsSparseJaw(t *testing.T) {
	ref, err := ParseReferenceTable(strings.NewReader(referenceCSV))
	require.NoError(t, err)
	table := NewFitTable(ref)
	for _, j := range offsets.Jaws {
		require.NoError(t, table.Observe(j, 5, 10))
		require.NoError(t, table.Observe(j, 10, 20))
	}
	_, err = FitAll(table)
	assert.ErrorIs(t, err, ErrInsufficientPoints)

	assert.Error(t, table.Observe(offsets.X1, 7.5, 3))
}
