// Package main runs a jaw calibration from a run file and writes the report.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"jaw-calibrator/internal/app"
	"jaw-calibrator/internal/image/filter"
	"jaw-calibrator/internal/offsets"
	"jaw-calibrator/internal/project"
	"jaw-calibrator/internal/version"
)

const appTitle = "jawcal"

func main() {
	configPath := flag.String("config", "", "Path to run file (.jawcal.json)")
	unit := flag.String("unit", "", "Override unit identifier")
	priority := flag.Float64("junction-priority", -1, "Override junction priority in [0, 1]")
	noJunctions := flag.Bool("no-junctions", false, "Optimize absolute offsets only")
	out := flag.String("out", "", "Override report directory")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String(appTitle))
		return
	}
	if *configPath == "" {
		fmt.Println("Usage: jawcal -config <run.jawcal.json> [-unit N] [-junction-priority P] [-no-junctions] [-out DIR]")
		os.Exit(1)
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Starting %s", version.String(appTitle))

	proj, err := project.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load run file: %v", err)
	}
	cfg := proj.Resolve(*configPath)
	if *unit != "" {
		cfg.Unit = *unit
	}
	if *priority >= 0 {
		cfg.JunctionPriority = *priority
	}
	if *noJunctions {
		cfg.OptimizeJunctions = false
	}
	if *out != "" {
		cfg.OutputDir = *out
	}

	res, err := app.Run(cfg, filter.New(cfg.Detector))
	if err != nil {
		log.Fatalf("Calibration failed: %v", err)
	}

	opt := res.Optimization
	fmt.Printf("\n=== Unit %s optimal calibration ===\n", cfg.Unit)
	fmt.Printf("%-4s %10s %10s\n", "jaw", "current", "optimal")
	for _, j := range offsets.Jaws {
		fmt.Printf("%-4s %10.3f %10.3f\n", j, opt.Reference[j], opt.Candidate[j])
	}
	fmt.Printf("cost %.4f -> %.4f (absolute %.4f, junction %.4f, cold %.4f, coincidence %.4f)\n",
		opt.OriginalCost.Total, opt.Cost.Total,
		opt.Cost.Absolute, opt.Cost.Junction, opt.Cost.ColdJunction, opt.Cost.Coincidence)
	if missing := res.Offsets.Missing(); len(missing) > 0 {
		fmt.Printf("%d jaw entries missing: %v\n", len(missing), missing)
	}
	if res.Predictions != nil {
		fmt.Printf("\n=== Encoder targets (p1 p5 p9 p19) ===\n")
		for _, j := range offsets.Jaws {
			fmt.Printf("%-4s cubic %v linear %v\n", j, res.Predictions.Cubic[j], res.Predictions.Linear[j])
		}
	}
	if res.ReportPath != "" {
		fmt.Printf("\nReport: %s\n", res.ReportPath)
	}
}
