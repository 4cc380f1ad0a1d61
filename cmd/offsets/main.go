// Command offsets measures the jaw offset table from a junction image directory and prints it.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	pimage "jaw-calibrator/internal/image"
	"jaw-calibrator/internal/image/filter"
	"jaw-calibrator/internal/localize"
	"jaw-calibrator/internal/offsets"
)

func main() {
	dir := flag.String("d", "", "Directory of junction radiographs")
	jawDir := flag.String("jaws", "", "Optional directory of asymmetric jaw radiographs")
	panel := flag.Float64("panel", 1500, "Panel distance (mm) for images without one")
	darkest := flag.Int("darkest", 200, "Bead pixel count")
	window := flag.Int("window", 20, "Edge search half-width around the steepest gradient (px)")
	only := flag.String("jaw", "", "Only print this jaw (x1, x2, y1, y2)")
	flag.Parse()

	if *dir == "" {
		fmt.Println("Usage: offsets -d <junction dir> [-jaws <dir>] [-jaw x1|x2|y1|y2] [-panel mm] [-darkest N] [-window px]")
		os.Exit(1)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	show := offsets.Jaws[:]
	if *only != "" {
		j, err := offsets.ParseJaw(*only)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		show = []offsets.Jaw{j}
	}

	cfg := offsets.DefaultConfig()
	cfg.DefaultPanelDistanceMM = *panel
	cfg.Localize = localize.DefaultParams().WithDarkestCount(*darkest).WithEdgeWindow(*window)
	prep := filter.New(cfg.Detector)

	rgs, err := pimage.LoadDir(*dir, prep)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load images: %v\n", err)
		os.Exit(1)
	}
	table := offsets.ExtractJunctionOffsets(offsets.SortJunctionImages(rgs, offsets.DefaultSymmetryRatio), cfg)

	fmt.Printf("\n=== Jaw offsets from isocentre (mm) ===\n")
	fmt.Printf("%7s %5s", "gantry", "coll")
	for _, j := range show {
		fmt.Printf(" %8s", j)
	}
	fmt.Println()
	for _, k := range table.Keys() {
		if k.Jaw != offsets.X1 {
			continue
		}
		fmt.Printf("%7d %5d", k.Gantry, k.Collimator)
		for _, j := range show {
			if v, ok := table.Offset(k.Gantry, k.Collimator, j); ok {
				fmt.Printf(" %8.3f", v)
			} else {
				fmt.Printf(" %8s", "-")
			}
		}
		fmt.Println()
	}
	for _, g := range table.Gantries() {
		if bead, ok := table.Iso(g); ok {
			fmt.Printf("gantry %d isocentre at (%.2f, %.2f)\n", g, bead.Row, bead.Col)
		}
	}

	if *jawDir == "" {
		return
	}
	bead, ok := table.Iso(0)
	if !ok {
		fmt.Fprintln(os.Stderr, "No gantry 0 isocentre; cannot measure asymmetric jaws")
		os.Exit(1)
	}
	jrgs, err := pimage.LoadDir(*jawDir, prep)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load jaw images: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\n=== Asymmetric jaw positions ===\n")
	for _, jo := range offsets.ExtractJawOffsets(offsets.SortJawImages(jrgs), bead, offsets.DefaultFieldSizes, cfg) {
		if len(show) == 1 && jo.Jaw != show[0] {
			continue
		}
		if jo.Measurement.Valid() {
			fmt.Printf("%s %5.1f cm: %8.3f mm\n", jo.Jaw, jo.NominalCM, jo.Measurement.OffsetMM)
		} else {
			fmt.Printf("%s %5.1f cm: %v\n", jo.Jaw, jo.NominalCM, jo.Measurement.Err)
		}
	}
}
