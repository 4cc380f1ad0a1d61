// Package app runs a complete jaw calibration from a run file: offsets, optimization,
// encoder prediction and report.
package app

import (
	"fmt"
	"log"
	"sync"
	"time"

	"jaw-calibrator/internal/coincidence"
	"jaw-calibrator/internal/encoder"
	pimage "jaw-calibrator/internal/image"
	"jaw-calibrator/internal/offsets"
	"jaw-calibrator/internal/optimizer"
	"jaw-calibrator/internal/project"
	"jaw-calibrator/internal/report"
	"jaw-calibrator/pkg/geometry"
)

// EventType identifies the stages a run reports.
type EventType int

const (
	EventImagesLoaded EventType = iota
	EventOffsetsMeasured
	EventJawsMeasured
	EventOptimized
	EventEncodersPredicted
	EventReportSaved
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// Result is everything a run produces.
type Result struct {
	Offsets      *offsets.Table
	JawOffsets   []offsets.JawOffset
	Optimization *optimizer.Result

	EncoderIso  geometry.Pixel
	Fits        *encoder.Fits
	Predictions *encoder.Predictions

	ReportPath string
}

// Runner executes runs for one configuration.
type Runner struct {
	mu sync.RWMutex

	cfg     *project.File
	prepare pimage.Preprocessor

	// SkipReport suppresses writing the CSV report.
	SkipReport bool
	// Workers bounds the optimizer's goroutines; zero means one per CPU.
	Workers int

	listeners map[EventType][]EventListener
}

// NewRunner creates a runner. cfg paths must already be resolved; prepare turns raw
// frames into working frames.
func NewRunner(cfg *project.File, prepare pimage.Preprocessor) *Runner {
	return &Runner{
		cfg:       cfg,
		prepare:   prepare,
		listeners: make(map[EventType][]EventListener),
	}
}

// On registers an event listener for the specified event type.
func (r *Runner) On(event EventType, listener EventListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[event] = append(r.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (r *Runner) Emit(event EventType, data interface{}) {
	r.mu.RLock()
	listeners := r.listeners[event]
	r.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// Run executes a run with default runner settings.
func Run(cfg *project.File, prepare pimage.Preprocessor) (*Result, error) {
	return NewRunner(cfg, prepare).Run()
}

// Run measures the junction offsets, finds the optimal calibration, predicts encoder
// targets when encoder inputs are configured, and writes the report.
// Missing images degrade coverage; configuration problems stop the run.
func (r *Runner) Run() (*Result, error) {
	cfg := r.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	res := &Result{}

	table, err := r.measureJunctions()
	if err != nil {
		return nil, err
	}
	res.Offsets = table

	if cfg.JawImages != "" {
		jaws, err := r.measureJaws(table)
		if err != nil {
			return nil, err
		}
		res.JawOffsets = jaws
	}

	var ms []coincidence.Measurement
	if cfg.CoincidenceFile != "" {
		ms, err = coincidence.CSVFile(cfg.CoincidenceFile).Measurements()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", project.ErrConfiguration, err)
		}
		log.Printf("[Run] %d coincidence measurements", len(ms))
	}

	pr := optimizer.NewProblem(table, ms)
	pr.Params = cfg.CostParams()
	pr.Grid = cfg.Grid
	pr.Workers = r.Workers
	opt, err := optimizer.Optimize(pr)
	if err != nil {
		return nil, err
	}
	res.Optimization = opt
	r.Emit(EventOptimized, opt)

	if cfg.EncoderImages != "" {
		if err := r.predictEncoders(res); err != nil {
			return nil, err
		}
	}

	if !r.SkipReport {
		rep := &report.Report{
			Unit:      cfg.Unit,
			Generated: time.Now(),
			Result:    opt,
			Jaws:      res.JawOffsets,
			Encoders:  res.Predictions,
		}
		path, err := rep.Save(cfg.OutputPath())
		if err != nil {
			return nil, err
		}
		res.ReportPath = path
		log.Printf("[Run] report written to %s", path)
		r.Emit(EventReportSaved, path)
	}

	return res, nil
}

func (r *Runner) loadDir(dir string) ([]*pimage.Radiograph, error) {
	rgs, err := pimage.LoadDir(dir, r.prepare)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", project.ErrConfiguration, err)
	}
	if len(rgs) == 0 {
		return nil, fmt.Errorf("%w: no usable radiographs in %s", project.ErrConfiguration, dir)
	}
	r.Emit(EventImagesLoaded, dir)
	return rgs, nil
}

func (r *Runner) measureJunctions() (*offsets.Table, error) {
	rgs, err := r.loadDir(r.cfg.JunctionImages)
	if err != nil {
		return nil, err
	}
	imgs := offsets.SortJunctionImages(rgs, offsets.DefaultSymmetryRatio)
	table := offsets.ExtractJunctionOffsets(imgs, r.cfg.OffsetConfig())
	r.Emit(EventOffsetsMeasured, table)
	return table, nil
}

// measureJaws checks the asymmetric jaw images against the gantry 0 bead.
func (r *Runner) measureJaws(table *offsets.Table) ([]offsets.JawOffset, error) {
	rgs, err := r.loadDir(r.cfg.JawImages)
	if err != nil {
		return nil, err
	}
	bead, ok := table.Iso(0)
	if !ok {
		log.Printf("[Run] no gantry 0 isocenter, skipping asymmetric jaw images")
		return nil, nil
	}
	jaws := offsets.ExtractJawOffsets(offsets.SortJawImages(rgs), bead, r.cfg.FieldSizes, r.cfg.OffsetConfig())
	r.Emit(EventJawsMeasured, jaws)
	return jaws, nil
}

func (r *Runner) predictEncoders(res *Result) error {
	cfg := r.cfg
	ecfg := cfg.EncoderConfig()

	ref, err := encoder.LoadReferenceTable(cfg.EncoderTable)
	if err != nil {
		return err
	}

	isoImg, err := pimage.Load(cfg.EncoderIsoImage)
	if err != nil {
		return fmt.Errorf("%w: encoder isocenter: %w", project.ErrConfiguration, err)
	}
	if err := isoImg.Prepare(r.prepare); err != nil {
		return fmt.Errorf("%w: encoder isocenter: %w", project.ErrConfiguration, err)
	}
	iso, err := encoder.LocateIso(isoImg, ecfg)
	if err != nil {
		return err
	}
	res.EncoderIso = iso

	rgs, err := r.loadDir(cfg.EncoderImages)
	if err != nil {
		return err
	}
	fits, err := encoder.FitAll(encoder.BuildFitTable(ref, rgs, iso, ecfg))
	if err != nil {
		return err
	}
	res.Fits = fits

	preds := fits.PredictAll(iso, res.Optimization.Candidate, ecfg.PitchMM())
	res.Predictions = &preds
	for _, j := range offsets.Jaws {
		log.Printf("[Encoder] %s cubic %v linear %v", j, preds.Cubic[j], preds.Linear[j])
	}
	r.Emit(EventEncodersPredicted, res.Predictions)
	return nil
}
