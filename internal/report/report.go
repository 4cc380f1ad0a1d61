// Package report writes the calibration run summary as CSV.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"jaw-calibrator/internal/encoder"
	"jaw-calibrator/internal/offsets"
	"jaw-calibrator/internal/optimizer"
)

// Report is everything written for one run. Jaws and Encoders are optional.
type Report struct {
	Unit      string
	Generated time.Time
	Result    *optimizer.Result
	Jaws      []offsets.JawOffset
	Encoders  *encoder.Predictions
}

// FileName returns the report file name for a run.
func (r *Report) FileName() string {
	return fmt.Sprintf("jaws_and_junctions_u%s_%s.csv", r.Unit, r.Generated.Format("2006-01-02_15_04_05"))
}

// Save writes the report into dir and returns the file path.
func (r *Report) Save(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, r.FileName())
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report: %w", err)
	}
	if err := r.Write(f); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close report: %w", err)
	}
	return path, nil
}

// Write emits the report sections in order: calibration, junctions, coincidence,
// offset table, asymmetric jaws and encoder targets.
func (r *Report) Write(w io.Writer) error {
	if r.Result == nil {
		return fmt.Errorf("report has no optimizer result")
	}
	res := r.Result
	cw := csv.NewWriter(w)
	blank := []string{"", "", ""}

	cw.Write([]string{"Offsets"})
	cw.Write([]string{"", "Current", "Optimal"})
	for _, j := range offsets.Jaws {
		cw.Write([]string{j.String(), num(res.Reference[j]), num(res.Candidate[j])})
	}
	cw.Write([]string{"Cost", num(res.OriginalCost.Total), num(res.Cost.Total)})

	cw.Write([]string{"Junction", "Original Offset", "Final Offset"})
	final := make(map[[2]int]float64, len(res.Junctions))
	for _, j := range res.Junctions {
		final[[2]int{j.ReferenceGantry, j.TangentGantry}] = j.GapMM
	}
	for _, j := range res.OriginalJunctions {
		cw.Write([]string{
			fmt.Sprintf("g%dc90_x1 and g%dc90_x2", j.ReferenceGantry, j.TangentGantry),
			num(j.GapMM),
			num(final[[2]int{j.ReferenceGantry, j.TangentGantry}]),
		})
	}

	if len(res.OriginalCoincidence) > 0 {
		cw.Write(blank)
		for i, m := range res.OriginalCoincidence {
			p := res.Coincidence[i]
			fs := num(m.FieldSize)
			cw.Write([]string{fmt.Sprintf("Radiation Light Field Coincidence (%sX%s)", fs, fs), "Original", "Final"})
			cw.Write([]string{"Y", num(m.Y), num(p.Y)})
			cw.Write([]string{"X", num(m.X), num(p.X)})
		}
	}

	cw.Write(blank)
	cw.Write([]string{"Jaw Displacements from Isocentre"})
	cw.Write(blank)
	cw.Write([]string{"Gantry Angle", "Collimator Angle", "X1", "", "X2", "", "Y1", "", "Y2", ""})
	cw.Write([]string{"", "", "Original", "Final", "Original", "Final", "Original", "Final", "Original", "Final"})
	for _, k := range res.Original.Keys() {
		if k.Jaw != offsets.X1 {
			continue
		}
		row := []string{strconv.Itoa(k.Gantry), strconv.Itoa(k.Collimator)}
		for _, j := range offsets.Jaws {
			key := offsets.Key{Gantry: k.Gantry, Collimator: k.Collimator, Jaw: j}
			before, _ := res.Original.Get(key)
			after, _ := res.Offsets.Get(key)
			row = append(row, measurement(before), measurement(after))
		}
		cw.Write(row)
	}

	if len(r.Jaws) > 0 {
		cw.Write(blank)
		cw.Write([]string{"Asymmetric Jaw Measurements"})
		for _, jaw := range offsets.Jaws {
			cw.Write(blank)
			cw.Write([]string{strings.ToUpper(jaw.String())})
			for _, jo := range r.Jaws {
				if jo.Jaw == jaw {
					cw.Write([]string{num(jo.NominalCM), measurement(jo.Measurement)})
				}
			}
		}
	}

	if r.Encoders != nil {
		writeEncoders(cw, "Cubic", r.Encoders.Cubic)
		writeEncoders(cw, "Linear", r.Encoders.Linear)
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func writeEncoders(cw *csv.Writer, kind string, preds [4][4]int) {
	cw.Write([]string{"", "", ""})
	header := []string{kind + " Encoder Targets"}
	for _, cm := range encoder.ReferencePointsCM {
		header = append(header, "p"+num(cm))
	}
	cw.Write(header)
	for _, j := range offsets.Jaws {
		row := []string{strings.ToUpper(j.String())}
		for _, v := range preds[j] {
			row = append(row, strconv.Itoa(v))
		}
		cw.Write(row)
	}
}

func measurement(m offsets.Measurement) string {
	if !m.Valid() {
		return "missing"
	}
	return num(m.OffsetMM)
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
