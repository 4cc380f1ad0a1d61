package optimizer

import (
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"jaw-calibrator/internal/coincidence"
	"jaw-calibrator/internal/cost"
	"jaw-calibrator/internal/offsets"
)

var (
	// ErrDegenerateCost means the cost tensor cannot single out a minimum.
	ErrDegenerateCost = errors.New("degenerate cost tensor")
	// ErrConfiguration means the search cannot be set up from the given inputs.
	ErrConfiguration = errors.New("invalid optimizer configuration")
)

// Problem is everything one search needs.
type Problem struct {
	// Table holds the measured offsets at the current calibration.
	Table       *offsets.Table
	Coincidence []coincidence.Measurement
	Params      cost.Params
	Geometry    cost.Geometry
	Grid        Grid
	// Workers bounds the goroutines evaluating the grid; zero means runtime.NumCPU().
	Workers int
}

// NewProblem returns a problem with the default weighting, geometry and grid.
func NewProblem(t *offsets.Table, ms []coincidence.Measurement) Problem {
	return Problem{
		Table:       t,
		Coincidence: ms,
		Params:      cost.DefaultParams(),
		Geometry:    cost.DefaultGeometry(),
		Grid:        DefaultGrid(),
	}
}

// Result is the optimal calibration and everything derived from it.
type Result struct {
	// Candidate is the winning shift, i.e. the new offsets at the calibration configuration.
	Candidate offsets.PerJaw
	Index     [4]int
	Cost      cost.Components

	// Reference is the measured offsets at the calibration configuration.
	Reference    offsets.PerJaw
	OriginalCost cost.Components

	Original *offsets.Table
	Offsets  *offsets.Table

	OriginalJunctions []cost.Junction
	Junctions         []cost.Junction

	OriginalCoincidence []coincidence.Measurement
	Coincidence         []coincidence.Measurement

	Costs   *Tensor
	Elapsed time.Duration
}

// Displacement returns how far each jaw moves from the current calibration.
func (r *Result) Displacement() offsets.PerJaw {
	var d offsets.PerJaw
	for _, j := range offsets.Jaws {
		d[j] = r.Candidate[j] - r.Reference[j]
	}
	return d
}

// Optimize evaluates the cost at every grid point and returns the first minimum in
// lexicographic (x1, x2, y1, y2) index order.
func Optimize(pr Problem) (*Result, error) {
	if pr.Table == nil {
		return nil, fmt.Errorf("%w: no offset table", ErrConfiguration)
	}
	if err := pr.Grid.Validate(); err != nil {
		return nil, err
	}
	geom := pr.Geometry
	reference, err := pr.Table.Reference(geom.CalibrationGantry, geom.CalibrationCollimator)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if pr.Params.OptimizeJunctions && len(geom.JunctionGaps(pr.Table)) == 0 {
		return nil, fmt.Errorf("%w: junction optimization enabled but no junction pair was measured", ErrConfiguration)
	}

	start := time.Now()
	costs := evaluate(pr, reference)
	best, err := costs.ArgMin()
	if err != nil {
		return nil, err
	}

	idx := costs.Index(best)
	var candidate offsets.PerJaw
	for _, j := range offsets.Jaws {
		candidate[j] = pr.Grid[j].Values()[idx[j]]
	}
	final := pr.Table.Rebased(reference, candidate)

	res := &Result{
		Candidate:           candidate,
		Index:               idx,
		Cost:                cost.Calculate(final, reference, pr.Params, geom, pr.Coincidence),
		Reference:           reference,
		OriginalCost:        cost.Calculate(pr.Table, reference, pr.Params, geom, pr.Coincidence),
		Original:            pr.Table,
		Offsets:             final,
		OriginalJunctions:   geom.JunctionGaps(pr.Table),
		Junctions:           geom.JunctionGaps(final),
		OriginalCoincidence: pr.Coincidence,
		Costs:               costs,
		Elapsed:             time.Since(start),
	}
	res.Coincidence = coincidence.ProjectAll(pr.Coincidence, res.Displacement())

	log.Printf("[Optimizer] %d grid points in %.1fms: x1=%.3f x2=%.3f y1=%.3f y2=%.3f cost %.4f (was %.4f)",
		pr.Grid.Size(), float64(res.Elapsed.Microseconds())/1000,
		candidate[offsets.X1], candidate[offsets.X2], candidate[offsets.Y1], candidate[offsets.Y2],
		costs.At(idx), res.OriginalCost.Total)
	return res, nil
}

// evaluate fills the cost tensor. Work is split by (x1, x2) cell; each worker
// rebases into its own scratch table and writes a disjoint slab of the tensor.
func evaluate(pr Problem, reference offsets.PerJaw) *Tensor {
	dims := pr.Grid.Dims()
	costs := newTensor(dims)
	var values [4][]float64
	for _, j := range offsets.Jaws {
		values[j] = pr.Grid[j].Values()
	}

	cells := dims[0] * dims[1]
	numWorkers := pr.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > cells {
		numWorkers = cells
	}

	var wg sync.WaitGroup
	cellChan := make(chan int, cells)

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			scratch := pr.Table.Clone()
			var shift offsets.PerJaw
			for cell := range cellChan {
				i, k := cell/dims[1], cell%dims[1]
				shift[offsets.X1] = values[offsets.X1][i]
				shift[offsets.X2] = values[offsets.X2][k]
				for a, y1 := range values[offsets.Y1] {
					shift[offsets.Y1] = y1
					for b, y2 := range values[offsets.Y2] {
						shift[offsets.Y2] = y2
						pr.Table.RebaseInto(scratch, reference, shift)
						c := cost.Calculate(scratch, reference, pr.Params, pr.Geometry, pr.Coincidence)
						costs.Values[costs.offset([4]int{i, k, a, b})] = c.Total
					}
				}
			}
		}()
	}
	for cell := 0; cell < cells; cell++ {
		cellChan <- cell
	}
	close(cellChan)
	wg.Wait()

	return costs
}
