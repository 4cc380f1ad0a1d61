// Package coincidence carries light/radiation field coincidence measurements and
// projects them under a jaw recalibration.
package coincidence

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"jaw-calibrator/internal/offsets"
)

// Measurement is one light/radiation field displacement pair in mm and the square
// field size (cm) it was measured at.
type Measurement struct {
	Y         float64 `json:"y"`
	X         float64 `json:"x"`
	FieldSize float64 `json:"field_size"`
}

// Source produces coincidence measurements, typically from an external field
// analysis routine.
type Source interface {
	Measurements() ([]Measurement, error)
}

// Static is a Source backed by an in-memory list.
type Static []Measurement

// Measurements implements Source.
func (s Static) Measurements() ([]Measurement, error) {
	out := make([]Measurement, len(s))
	copy(out, s)
	return out, nil
}

// CSVFile is a Source reading rows of y,x,field_size. A non-numeric first row is
// treated as a header.
type CSVFile string

// Measurements implements Source.
func (f CSVFile) Measurements() ([]Measurement, error) {
	fp, err := os.Open(string(f))
	if err != nil {
		return nil, fmt.Errorf("failed to open coincidence file: %w", err)
	}
	defer fp.Close()
	return Parse(fp)
}

// Parse reads y,x,field_size rows.
func Parse(r io.Reader) ([]Measurement, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var out []Measurement
	for line := 1; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("coincidence line %d: %w", line, err)
		}
		if len(rec) < 3 {
			return nil, fmt.Errorf("coincidence line %d: want 3 fields, have %d", line, len(rec))
		}
		var vals [3]float64
		numeric := true
		for i := 0; i < 3; i++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
			if err != nil {
				numeric = false
				break
			}
			vals[i] = v
		}
		if !numeric {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("coincidence line %d: non-numeric value in %v", line, rec)
		}
		out = append(out, Measurement{Y: vals[0], X: vals[1], FieldSize: vals[2]})
	}
	return out, nil
}

// Project returns the measurement as it would read after each jaw moves by
// displacement (new calibration offset minus current, mm). The field center moves
// by half the imbalance between opposing jaws.
func Project(m Measurement, displacement offsets.PerJaw) Measurement {
	return Measurement{
		Y:         m.Y + (displacement[offsets.Y1]-displacement[offsets.Y2])/2,
		X:         m.X + (displacement[offsets.X2]-displacement[offsets.X1])/2,
		FieldSize: m.FieldSize,
	}
}

// ProjectAll projects every measurement.
func ProjectAll(ms []Measurement, displacement offsets.PerJaw) []Measurement {
	out := make([]Measurement, len(ms))
	for i, m := range ms {
		out[i] = Project(m, displacement)
	}
	return out
}
