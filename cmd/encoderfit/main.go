// Command encoderfit fits jaw encoder curves and predicts encoder targets for a
// given calibration vector.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"jaw-calibrator/internal/encoder"
	pimage "jaw-calibrator/internal/image"
	"jaw-calibrator/internal/image/filter"
	"jaw-calibrator/internal/offsets"
)

func parseCalibration(s string) (offsets.PerJaw, error) {
	var cal offsets.PerJaw
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return cal, fmt.Errorf("calibration needs 4 values x1,x2,y1,y2, got %d", len(parts))
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return cal, fmt.Errorf("calibration %s: %w", offsets.Jaws[i], err)
		}
		cal[i] = v
	}
	return cal, nil
}

func main() {
	tablePath := flag.String("table", "", "Encoder reference table CSV")
	isoPath := flag.String("iso", "", "Encoder isocentre radiograph")
	dir := flag.String("d", "", "Directory of encoder radiographs")
	calStr := flag.String("cal", "0,0,0,0", "Calibration offsets x1,x2,y1,y2 (mm)")
	panel := flag.Float64("panel", 1180, "Panel distance of the encoder images (mm)")
	flag.Parse()

	if *tablePath == "" || *isoPath == "" || *dir == "" {
		fmt.Println("Usage: encoderfit -table <csv> -iso <image> -d <dir> [-cal x1,x2,y1,y2] [-panel mm]")
		os.Exit(1)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cal, err := parseCalibration(*calStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	cfg := encoder.DefaultConfig()
	cfg.PanelDistanceMM = *panel
	prep := filter.New(cfg.Detector)

	ref, err := encoder.LoadReferenceTable(*tablePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	isoImg, err := pimage.Load(*isoPath)
	if err == nil {
		err = isoImg.Prepare(prep)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load isocentre image: %v\n", err)
		os.Exit(1)
	}
	iso, err := encoder.LocateIso(isoImg, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	rgs, err := pimage.LoadDir(*dir, prep)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load encoder images: %v\n", err)
		os.Exit(1)
	}
	table := encoder.BuildFitTable(ref, rgs, iso, cfg)
	fits, err := encoder.FitAll(table)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fit failed: %v\n", err)
		os.Exit(1)
	}

	preds := fits.PredictAll(iso, cal, cfg.PitchMM())
	fmt.Printf("\n=== Encoder targets at p1 p5 p9 p19 (iso %.2f, %.2f) ===\n", iso.Row, iso.Col)
	for _, j := range offsets.Jaws {
		fmt.Printf("%-3s cubic %v  linear %v\n", j, preds.Cubic[j], preds.Linear[j])
	}
}
