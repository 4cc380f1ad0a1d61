package cost

import (
	"errors"
	"math"
	"testing"

	"jaw-calibrator/internal/coincidence"
	"jaw-calibrator/internal/offsets"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testGantries = []int{0, 50, 90, 130, 180, 230, 270, 310}

// fullTable fills 8 gantries x 3 collimators x 4 jaws with value(key).
func fullTable(value func(offsets.Key) float64) *offsets.Table {
	t := offsets.NewTable()
	for _, g := range testGantries {
		for _, c := range offsets.Collimators {
			for _, j := range offsets.Jaws {
				k := offsets.Key{Gantry: g, Collimator: c, Jaw: j}
				t.SetOffset(k, value(k))
			}
		}
	}
	return t
}

func TestCoincidencePenaltyTiers(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, 0.0, p.CoincidencePenalty(0.39))
	assert.InDelta(t, 0.25, p.CoincidencePenalty(0.5), 1e-12)
	assert.InDelta(t, 0.25, p.CoincidencePenalty(-0.5), 1e-12)
	assert.InDelta(t, 0.857375, p.CoincidencePenalty(0.95), 1e-12)
	assert.InDelta(t, 0.729, p.CoincidencePenalty(0.9), 1e-12)
	assert.InDelta(t, 0.16, p.CoincidencePenalty(0.4), 1e-12)

	p.OptimizeCoincidence = false
	assert.Equal(t, 0.0, p.CoincidencePenalty(0.39))
	assert.InDelta(t, 0.25, p.CoincidencePenalty(0.5), 1e-12)
	assert.InDelta(t, 0.857375, p.CoincidencePenalty(0.95), 1e-12)
}

func TestMidBandCoincidenceChargedWithoutOptimizing(t *testing.T) {
	tbl := fullTable(func(offsets.Key) float64 { return 0 })
	ms := []coincidence.Measurement{{Y: 0.5, FieldSize: 10}}
	for _, optimize := range []bool{true, false} {
		p := DefaultParams()
		p.OptimizeJunctions = false
		p.OptimizeCoincidence = optimize
		c := Calculate(tbl, offsets.PerJaw{}, p, DefaultGeometry(), ms)
		assert.InDelta(t, 0.25, c.Coincidence, 1e-12, "optimize %v", optimize)
		assert.InDelta(t, 0.25, c.Total, 1e-12, "optimize %v", optimize)
	}
}

func TestZeroTableCostsNothing(t *testing.T) {
	tbl := fullTable(func(offsets.Key) float64 { return 0 })
	for _, prio := range []float64{0, 0.3, 0.7, 1} {
		p := DefaultParams()
		p.JunctionPriority = prio
		c := Calculate(tbl, offsets.PerJaw{}, p, DefaultGeometry(), nil)
		assert.Equal(t, 0.0, c.Total, "priority %v", prio)
		assert.Equal(t, 96, c.Entries)
		assert.Equal(t, 8, c.Junctions)
	}
}

func TestAbsoluteNormalization(t *testing.T) {
	// Only the calibration entries are non-zero.
	tbl := fullTable(func(k offsets.Key) float64 {
		if k.Gantry == 0 && k.Collimator == 0 {
			return -float64(k.Jaw + 1)
		}
		return 0
	})
	p := DefaultParams()
	p.OptimizeJunctions = false
	c := Calculate(tbl, offsets.PerJaw{}, p, DefaultGeometry(), nil)
	assert.InDelta(t, 10.0/96.0, c.Absolute, 1e-12)
	assert.Equal(t, c.Absolute, c.Total)
}

func TestMissingEntriesAreSkipped(t *testing.T) {
	tbl := fullTable(func(offsets.Key) float64 { return 1 })
	k := offsets.Key{Gantry: 50, Collimator: 90, Jaw: offsets.X2}
	tbl.Set(k, offsets.Missing(k, errors.New("no image")))

	c := Calculate(tbl, offsets.PerJaw{}, DefaultParams(), DefaultGeometry(), nil)
	assert.Equal(t, 95, c.Entries)
	assert.InDelta(t, 1.0, c.Absolute, 1e-12)
	assert.Equal(t, 6, c.Junctions)
	assert.InDelta(t, 2.0, c.Junction, 1e-12)
}

func TestJunctionGaps(t *testing.T) {
	tbl := fullTable(func(k offsets.Key) float64 {
		switch {
		case k.Collimator == 90 && k.Jaw == offsets.X1 && k.Gantry == 0:
			return 0.3
		case k.Collimator == 90 && k.Jaw == offsets.X1 && k.Gantry == 180:
			return -0.5
		case k.Collimator == 90 && k.Jaw == offsets.X2:
			return 0.1
		}
		return 0
	})
	gaps := DefaultGeometry().JunctionGaps(tbl)
	require.Len(t, gaps, 8)
	assert.Equal(t, Junction{ReferenceGantry: 0, TangentGantry: 50, GapMM: 0.4}, roundGap(gaps[0]))
	assert.Equal(t, Junction{ReferenceGantry: 180, TangentGantry: 50, GapMM: -0.4}, roundGap(gaps[1]))

	p := DefaultParams()
	c := Calculate(tbl, offsets.PerJaw{}, p, DefaultGeometry(), nil)
	assert.InDelta(t, 0.4, c.Junction, 1e-12)
	assert.InDelta(t, 0.5*0.4/2, c.ColdJunction, 1e-12)
}

func roundGap(j Junction) Junction {
	j.GapMM = math.Round(j.GapMM*1e9) / 1e9
	return j
}

func TestCalculateIsPure(t *testing.T) {
	tbl := fullTable(func(k offsets.Key) float64 { return 0.1*float64(k.Jaw) - 0.13 })
	ms := []coincidence.Measurement{{Y: 0.3, X: -0.6, FieldSize: 10}, {Y: 1.0, X: 0.1, FieldSize: 20}}
	ref := offsets.PerJaw{0.2, -0.1, 0, 0.4}
	a := Calculate(tbl, ref, DefaultParams(), DefaultGeometry(), ms)
	b := Calculate(tbl, ref, DefaultParams(), DefaultGeometry(), ms)
	assert.Equal(t, math.Float64bits(a.Total), math.Float64bits(b.Total))
	assert.Equal(t, a, b)
}

func TestPriorityMovesTowardJunctionCost(t *testing.T) {
	tbl := fullTable(func(k offsets.Key) float64 {
		if k.Collimator == 90 && k.Jaw == offsets.X2 {
			return -0.8
		}
		return 0.2
	})
	p := DefaultParams()
	p.UseCoincidence = false

	prev := math.Inf(1)
	var junction, absolute float64
	for i := 0; i <= 10; i++ {
		p.JunctionPriority = float64(i) / 10
		c := Calculate(tbl, offsets.PerJaw{}, p, DefaultGeometry(), nil)
		junction, absolute = c.Junction+c.ColdJunction, c.Absolute
		dist := math.Abs(c.Total - junction)
		assert.LessOrEqual(t, dist, prev)
		prev = dist
		if i == 0 {
			assert.InDelta(t, absolute, c.Total, 1e-12)
		}
	}
	assert.InDelta(t, 0.0, prev, 1e-12)
	assert.NotEqual(t, junction, absolute)
}

func TestCoincidenceUsesCalibrationShift(t *testing.T) {
	// Calibration entries moved by y1 +0.2, y2 -0.2: vertical displacement grows by 0.2.
	tbl := fullTable(func(k offsets.Key) float64 {
		if k.Gantry == 0 && k.Collimator == 0 {
			switch k.Jaw {
			case offsets.Y1:
				return 0.2
			case offsets.Y2:
				return -0.2
			}
		}
		return 0
	})
	ms := []coincidence.Measurement{{Y: 0.3, X: 0, FieldSize: 10}}
	p := DefaultParams()
	p.OptimizeJunctions = false

	c := Calculate(tbl, offsets.PerJaw{}, p, DefaultGeometry(), ms)
	assert.InDelta(t, 0.25, c.Coincidence, 1e-12)

	p.UseCoincidence = false
	c = Calculate(tbl, offsets.PerJaw{}, p, DefaultGeometry(), ms)
	assert.Equal(t, 0.0, c.Coincidence)
}
