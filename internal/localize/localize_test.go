package localize

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"jaw-calibrator/internal/image"
	"jaw-calibrator/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// beadFrame plants a radially darkening bead on a bright, noisy background.
func beadFrame(t *testing.T, size int, center geometry.Pixel, radius, noise float64, seed int64) *image.Frame {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	pix := make([]float64, size*size)
	for r := 0; r < size; r++ {
		for c := 0; c < size; c++ {
			v := 0.9 + noise*rng.Float64()
			d := math.Hypot(float64(r)-center.Row, float64(c)-center.Col)
			if d < radius {
				v = 0.2 + 0.6*(d/radius)*(d/radius)
			}
			pix[r*size+c] = v
		}
	}
	f, err := image.NewFrame(size, size, pix)
	require.NoError(t, err)
	return f
}

func TestLocateBeadRecoversPlantedCentroid(t *testing.T) {
	centers := []geometry.Pixel{
		{Row: 300, Col: 300},
		{Row: 299.5, Col: 301.25},
		{Row: 302.7, Col: 297.4},
	}
	for i, want := range centers {
		f := beadFrame(t, 600, want, 12, 0.05, int64(i))
		got, err := LocateBead(f, DefaultParams())
		require.NoError(t, err)
		assert.InDelta(t, want.Row, got.Row, 0.5, "row for %v", want)
		assert.InDelta(t, want.Col, got.Col, 0.5, "col for %v", want)

		idx := got.Rounded()
		assert.InDelta(t, want.Row, float64(idx.Row), 1.0)
		assert.InDelta(t, want.Col, float64(idx.Col), 1.0)
	}
}

func TestLocateBeadDoesNotModifyFrame(t *testing.T) {
	f := beadFrame(t, 300, geometry.Pixel{Row: 150, Col: 150}, 6, 0, 1)
	before := f.Pixels()
	_, err := LocateBead(f, DefaultParams().WithDarkestCount(100))
	require.NoError(t, err)
	assert.Equal(t, before, f.Pixels())
}

func TestLocateBeadIsDeterministic(t *testing.T) {
	f := beadFrame(t, 300, geometry.Pixel{Row: 151.3, Col: 148.8}, 6, 0.05, 7)
	a, err := LocateBead(f, DefaultParams().WithDarkestCount(100))
	require.NoError(t, err)
	b, err := LocateBead(f, DefaultParams().WithDarkestCount(100))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestLocateBeadUniformFrame(t *testing.T) {
	pix := make([]float64, 90*90)
	for i := range pix {
		pix[i] = 1
	}
	f, err := image.NewFrame(90, 90, pix)
	require.NoError(t, err)
	_, err = LocateBead(f, DefaultParams())
	assert.True(t, errors.Is(err, ErrNoBead))
}

func step(n, at int) []float64 {
	p := make([]float64, n)
	for i := at; i < n; i++ {
		p[i] = 1
	}
	return p
}

func TestEdgeInCentralHalfBinaryStep(t *testing.T) {
	p := DefaultParams()
	for _, at := range []int{31, 50, 61, 89} {
		idx, err := EdgeInCentralHalf(step(120, at), p)
		require.NoError(t, err)
		assert.Equal(t, at, idx)
	}
}

func TestEdgeInCentralHalfIgnoresBorderEdges(t *testing.T) {
	// Field edges at 10 and 110 sit in the outer quarters; the jaw edge is at 70.
	prof := make([]float64, 120)
	for i := 10; i < 110; i++ {
		prof[i] = 1
	}
	for i := 70; i < 110; i++ {
		prof[i] = 0.02
	}
	prof[69] = 0.52
	idx, err := EdgeInCentralHalf(prof, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 69, idx)
}

func TestLocateEdgePrefersSampleNearestLevel(t *testing.T) {
	prof := []float64{0, 0.1, 0.3, 0.45, 0.7, 0.9, 1}
	idx, err := LocateEdge(prof, geometry.Span{Start: 0, End: len(prof)}, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 3, idx)
}

func TestLocateEdgeDegenerate(t *testing.T) {
	flat := make([]float64, 50)
	for i := range flat {
		flat[i] = 0.8
	}
	_, err := EdgeInCentralHalf(flat, DefaultParams())
	assert.True(t, errors.Is(err, ErrDegenerateProfile))

	_, err = LocateEdge([]float64{0.1}, geometry.Span{Start: 0, End: 1}, 0.5)
	assert.True(t, errors.Is(err, ErrDegenerateProfile))
}

func TestEdgeNearSteepest(t *testing.T) {
	// Smooth rising penumbra centred on 40, falling penumbra centred on 160.
	prof := make([]float64, 200)
	for i := range prof {
		x := float64(i)
		prof[i] = 1/(1+math.Exp(-(x-40)/2)) - 1/(1+math.Exp(-(x-160)/2))
	}
	p := DefaultParams()

	rise, err := EdgeNearSteepest(prof, Rising, p)
	require.NoError(t, err)
	assert.Equal(t, 40, rise)

	fall, err := EdgeNearSteepest(prof, Falling, p)
	require.NoError(t, err)
	assert.Equal(t, 160, fall)
}

func TestEdgeInHalf(t *testing.T) {
	p := DefaultParams()
	prof := make([]float64, 100)
	for i := 20; i < 80; i++ {
		prof[i] = 1
	}

	first, err := EdgeInHalf(prof, FirstHalf, p)
	require.NoError(t, err)
	assert.Equal(t, 20, first)

	second, err := EdgeInHalf(prof, SecondHalf, p)
	require.NoError(t, err)
	assert.Equal(t, 80, second)
}

func TestGradient(t *testing.T) {
	assert.Equal(t, []float64{1, 1.5, 2.5, 3}, Gradient([]float64{0, 1, 3, 6}))
}
