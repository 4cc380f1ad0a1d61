// Package offsets measures signed jaw-edge displacements from the isocenter bead
// across gantry and collimator angles, and holds them in an offset table.
package offsets

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"jaw-calibrator/pkg/geometry"
)

// ErrMissingMeasurement marks a jaw entry whose image was absent or unusable.
var ErrMissingMeasurement = errors.New("missing measurement")

// Jaw identifies one of the four collimator jaws.
type Jaw int

const (
	X1 Jaw = iota
	X2
	Y1
	Y2
)

// Jaws lists every jaw in canonical order.
var Jaws = [4]Jaw{X1, X2, Y1, Y2}

func (j Jaw) String() string {
	switch j {
	case X1:
		return "x1"
	case X2:
		return "x2"
	case Y1:
		return "y1"
	case Y2:
		return "y2"
	default:
		return fmt.Sprintf("jaw(%d)", int(j))
	}
}

// ParseJaw parses "x1", "X2", etc.
func ParseJaw(s string) (Jaw, error) {
	for _, j := range Jaws {
		if strings.EqualFold(s, j.String()) {
			return j, nil
		}
	}
	return 0, fmt.Errorf("unknown jaw %q", s)
}

// PerJaw holds one value per jaw, indexed by Jaw.
type PerJaw [4]float64

// Key addresses one jaw measurement.
type Key struct {
	Gantry     int `json:"gantry"`
	Collimator int `json:"collimator"`
	Jaw        Jaw `json:"jaw"`
}

func (k Key) String() string {
	return fmt.Sprintf("g%dc%d/%s", k.Gantry, k.Collimator, k.Jaw)
}

func (k Key) less(o Key) bool {
	if k.Gantry != o.Gantry {
		return k.Gantry < o.Gantry
	}
	if k.Collimator != o.Collimator {
		return k.Collimator < o.Collimator
	}
	return k.Jaw < o.Jaw
}

// Measurement is a signed jaw offset in mm, or the reason it could not be measured.
// Positive offsets mean the jaw stops short of the isocenter; negative means it crosses.
type Measurement struct {
	OffsetMM float64
	Err      error
}

// Valid reports whether the measurement holds an offset.
func (m Measurement) Valid() bool {
	return m.Err == nil
}

// Missing builds a measurement that records why a jaw has no offset.
func Missing(k Key, cause error) Measurement {
	switch {
	case cause == nil:
		return Measurement{Err: fmt.Errorf("%s: %w", k, ErrMissingMeasurement)}
	case errors.Is(cause, ErrMissingMeasurement):
		return Measurement{Err: fmt.Errorf("%s: %w", k, cause)}
	default:
		return Measurement{Err: fmt.Errorf("%s: %w: %w", k, ErrMissingMeasurement, cause)}
	}
}

// Table holds one measurement per (gantry, collimator, jaw) plus the isocenter
// bead location for each gantry angle.
type Table struct {
	keys  []Key
	vals  []Measurement
	index map[Key]int
	iso   map[int]geometry.Pixel
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		index: make(map[Key]int),
		iso:   make(map[int]geometry.Pixel),
	}
}

// Set stores a measurement, replacing any previous value for the key.
func (t *Table) Set(k Key, m Measurement) {
	if i, ok := t.index[k]; ok {
		t.vals[i] = m
		return
	}
	t.index[k] = len(t.keys)
	t.keys = append(t.keys, k)
	t.vals = append(t.vals, m)
}

// SetOffset stores a valid offset.
func (t *Table) SetOffset(k Key, mm float64) {
	t.Set(k, Measurement{OffsetMM: mm})
}

// Get returns the measurement for a key.
func (t *Table) Get(k Key) (Measurement, bool) {
	i, ok := t.index[k]
	if !ok {
		return Measurement{}, false
	}
	return t.vals[i], true
}

// Offset returns the offset for a jaw if it was measured.
func (t *Table) Offset(gantry, collimator int, jaw Jaw) (float64, bool) {
	m, ok := t.Get(Key{Gantry: gantry, Collimator: collimator, Jaw: jaw})
	if !ok || !m.Valid() {
		return 0, false
	}
	return m.OffsetMM, true
}

// SetIso records the bead location for a gantry angle.
func (t *Table) SetIso(gantry int, bead geometry.Pixel) {
	t.iso[gantry] = bead
}

// Iso returns the bead location for a gantry angle.
func (t *Table) Iso(gantry int) (geometry.Pixel, bool) {
	p, ok := t.iso[gantry]
	return p, ok
}

// Len returns the number of jaw entries, valid or missing.
func (t *Table) Len() int {
	return len(t.keys)
}

// Keys returns every key ordered by gantry, collimator, then jaw.
func (t *Table) Keys() []Key {
	out := make([]Key, len(t.keys))
	copy(out, t.keys)
	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	return out
}

// Each calls fn for every entry in insertion order.
func (t *Table) Each(fn func(Key, Measurement)) {
	for i, k := range t.keys {
		fn(k, t.vals[i])
	}
}

// Gantries returns the sorted distinct gantry angles in the table.
func (t *Table) Gantries() []int {
	seen := make(map[int]bool)
	var out []int
	for _, k := range t.keys {
		if !seen[k.Gantry] {
			seen[k.Gantry] = true
			out = append(out, k.Gantry)
		}
	}
	sort.Ints(out)
	return out
}

// Missing returns the keys that have no valid measurement.
func (t *Table) Missing() []Key {
	var out []Key
	for i, k := range t.keys {
		if !t.vals[i].Valid() {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	return out
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	c := &Table{
		keys:  make([]Key, len(t.keys)),
		vals:  make([]Measurement, len(t.vals)),
		index: make(map[Key]int, len(t.index)),
		iso:   make(map[int]geometry.Pixel, len(t.iso)),
	}
	copy(c.keys, t.keys)
	copy(c.vals, t.vals)
	for k, v := range t.index {
		c.index[k] = v
	}
	for g, p := range t.iso {
		c.iso[g] = p
	}
	return c
}

// Reference returns the offsets measured at the calibration configuration.
// Every jaw must be present.
func (t *Table) Reference(gantry, collimator int) (PerJaw, error) {
	var ref PerJaw
	for _, j := range Jaws {
		v, ok := t.Offset(gantry, collimator, j)
		if !ok {
			return ref, fmt.Errorf("%w: reference g%dc%d/%s", ErrMissingMeasurement, gantry, collimator, j)
		}
		ref[j] = v
	}
	return ref, nil
}

// RebaseInto writes into dst every offset re-expressed against a new calibration
// zero point: offset - reference[jaw] + shift[jaw]. Missing entries stay missing.
// dst must be a Clone of t (or of another table with the same keys).
func (t *Table) RebaseInto(dst *Table, reference, shift PerJaw) {
	for i, k := range t.keys {
		m := t.vals[i]
		if m.Valid() {
			m.OffsetMM = m.OffsetMM - reference[k.Jaw] + shift[k.Jaw]
		}
		dst.vals[i] = m
	}
}

// Rebased returns a new table re-expressed against a new calibration zero point.
func (t *Table) Rebased(reference, shift PerJaw) *Table {
	dst := t.Clone()
	t.RebaseInto(dst, reference, shift)
	return dst
}
