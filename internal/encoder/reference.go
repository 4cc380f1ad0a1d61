// Package encoder maps jaw positions seen on the imager to raw jaw encoder counts and
// predicts the encoder targets for a new calibration origin.
package encoder

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"jaw-calibrator/internal/offsets"
	"jaw-calibrator/pkg/geometry"
)

var (
	// ErrConfiguration marks a malformed or missing encoder reference table.
	ErrConfiguration = errors.New("invalid encoder reference table")
	// ErrInsufficientPoints means a fit has fewer distinct pixel positions than coefficients.
	ErrInsufficientPoints = errors.New("insufficient points for fit")
)

// referenceHeaderRows is the number of title rows preceding the data in a
// reference table export.
const referenceHeaderRows = 2

// ReferenceTable maps a nominal symmetric jaw position (0.1 resolution) to the raw
// encoder count of each jaw at that position.
type ReferenceTable map[float64][4]int

// Positions returns the nominal positions in ascending order.
func (r ReferenceTable) Positions() []float64 {
	out := make([]float64, 0, len(r))
	for p := range r {
		out = append(out, p)
	}
	sort.Float64s(out)
	return out
}

// LoadReferenceTable reads a unit's encoder reference table.
func LoadReferenceTable(path string) (ReferenceTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	defer f.Close()
	return ParseReferenceTable(f)
}

// ParseReferenceTable reads rows of position,x1,x2,y1,y2 after two header rows.
func ParseReferenceTable(r io.Reader) (ReferenceTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if len(rows) <= referenceHeaderRows {
		return nil, fmt.Errorf("%w: no data rows", ErrConfiguration)
	}

	table := make(ReferenceTable)
	for i, row := range rows[referenceHeaderRows:] {
		line := i + referenceHeaderRows + 1
		if len(row) < 5 {
			return nil, fmt.Errorf("%w: line %d has %d columns, need 5", ErrConfiguration, line, len(row))
		}
		pos, err := strconv.ParseFloat(strings.TrimSpace(row[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d position: %w", ErrConfiguration, line, err)
		}
		var enc [4]int
		for _, j := range offsets.Jaws {
			v, err := strconv.Atoi(strings.TrimSpace(row[1+int(j)]))
			if err != nil {
				return nil, fmt.Errorf("%w: line %d %s encoder: %w", ErrConfiguration, line, j, err)
			}
			enc[j] = v
		}
		table[geometry.RoundTo(pos, 1)] = enc
	}
	return table, nil
}
