// Package data holds the tabular data that is imputed: a Frame of typed,
// named columns in which missing values are NaN, and the design matrices
// that regression models read from a Frame.
package data

import (
	"fmt"
	"math"
)

// Kind is the type of the values held by a column.
type Kind uint8

// Numeric, ... are the column kinds.  Binary columns hold 0/1 values and
// categorical columns hold level codes 0, 1, ..., L-1.
const (
	Numeric Kind = iota
	Binary
	Categorical
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Binary:
		return "binary"
	case Categorical:
		return "categorical"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Column is a named column of a Frame.  Missing values are NaN.
type Column struct {

	// Name is the variable name.
	Name string

	// Kind is the type of the values.
	Kind Kind

	// Levels are the labels of the categories of a categorical column,
	// indexed by code.
	Levels []string

	// Values holds one value per observation.
	Values []float64
}

// NumericColumn returns a numeric column.
func NumericColumn(name string, values []float64) *Column {
	return &Column{Name: name, Kind: Numeric, Values: values}
}

// BinaryColumn returns a binary (0/1) column.
func BinaryColumn(name string, values []float64) *Column {
	return &Column{Name: name, Kind: Binary, Values: values}
}

// CategoricalColumn returns a categorical column with the given level
// labels.  The values are level codes.
func CategoricalColumn(name string, levels []string, values []float64) *Column {
	return &Column{Name: name, Kind: Categorical, Levels: levels, Values: values}
}

// NumLevels returns the number of distinct values the column can take:
// 2 for binary columns, the number of levels for categorical columns and
// 0 for numeric columns.
func (c *Column) NumLevels() int {
	switch c.Kind {
	case Binary:
		return 2
	case Categorical:
		return len(c.Levels)
	default:
		return 0
	}
}

func (c *Column) check() error {

	for i, v := range c.Values {
		if math.IsNaN(v) {
			continue
		}
		switch c.Kind {
		case Binary:
			if v != 0 && v != 1 {
				return fmt.Errorf("column '%s' is binary but row %d has value %v", c.Name, i, v)
			}
		case Categorical:
			if v < 0 || v >= float64(len(c.Levels)) || v != math.Floor(v) {
				return fmt.Errorf("column '%s' has %d levels but row %d has code %v", c.Name, len(c.Levels), i, v)
			}
		}
	}

	if c.Kind == Categorical && len(c.Levels) < 2 {
		return fmt.Errorf("categorical column '%s' needs at least two levels", c.Name)
	}

	return nil
}

// Frame is an ordered collection of named columns of equal length.
type Frame struct {
	cols []*Column
	pos  map[string]int
}

// NewFrame returns a Frame holding the given columns.  The columns are
// not copied.
func NewFrame(cols ...*Column) (*Frame, error) {

	f := &Frame{
		pos: make(map[string]int),
	}

	for j, c := range cols {
		if c == nil {
			return nil, fmt.Errorf("column %d is nil", j)
		}
		if _, ok := f.pos[c.Name]; ok {
			return nil, fmt.Errorf("duplicate column name '%s'", c.Name)
		}
		if j > 0 && len(c.Values) != len(cols[0].Values) {
			return nil, fmt.Errorf("column '%s' has length %d, expected %d",
				c.Name, len(c.Values), len(cols[0].Values))
		}
		if err := c.check(); err != nil {
			return nil, err
		}
		f.pos[c.Name] = j
		f.cols = append(f.cols, c)
	}

	return f, nil
}

// NumObs returns the number of rows.
func (f *Frame) NumObs() int {
	if len(f.cols) == 0 {
		return 0
	}
	return len(f.cols[0].Values)
}

// Names returns the column names in order.
func (f *Frame) Names() []string {
	var na []string
	for _, c := range f.cols {
		na = append(na, c.Name)
	}
	return na
}

// Columns returns the columns in order.
func (f *Frame) Columns() []*Column {
	return f.cols
}

// Column returns the named column, or nil if there is no such column.
func (f *Frame) Column(name string) *Column {
	j, ok := f.pos[name]
	if !ok {
		return nil
	}
	return f.cols[j]
}

// Has returns true if the frame has a column with the given name.
func (f *Frame) Has(name string) bool {
	_, ok := f.pos[name]
	return ok
}

// Values returns the values of the named column, or nil if there is no
// such column.
func (f *Frame) Values(name string) []float64 {
	c := f.Column(name)
	if c == nil {
		return nil
	}
	return c.Values
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {

	g := &Frame{
		pos: make(map[string]int, len(f.pos)),
	}

	for j, c := range f.cols {
		v := make([]float64, len(c.Values))
		copy(v, c.Values)
		var lev []string
		if c.Levels != nil {
			lev = make([]string, len(c.Levels))
			copy(lev, c.Levels)
		}
		g.cols = append(g.cols, &Column{Name: c.Name, Kind: c.Kind, Levels: lev, Values: v})
		g.pos[c.Name] = j
	}

	return g
}

// Missing returns the missingness mask of the named column.
func (f *Frame) Missing(name string) []bool {
	c := f.Column(name)
	if c == nil {
		return nil
	}
	m := make([]bool, len(c.Values))
	for i, v := range c.Values {
		m[i] = math.IsNaN(v)
	}
	return m
}

// NumMissing returns the number of missing values in the named column.
func (f *Frame) NumMissing(name string) int {
	var n int
	for _, v := range f.Values(name) {
		if math.IsNaN(v) {
			n++
		}
	}
	return n
}

// Equal returns true if the two frames have the same columns, kinds,
// levels and values.  Missing values compare equal to each other.
func (f *Frame) Equal(g *Frame) bool {

	if len(f.cols) != len(g.cols) || f.NumObs() != g.NumObs() {
		return false
	}

	for j, c := range f.cols {
		d := g.cols[j]
		if c.Name != d.Name || c.Kind != d.Kind || len(c.Levels) != len(d.Levels) {
			return false
		}
		for k := range c.Levels {
			if c.Levels[k] != d.Levels[k] {
				return false
			}
		}
		for i, v := range c.Values {
			w := d.Values[i]
			if v != w && !(math.IsNaN(v) && math.IsNaN(w)) {
				return false
			}
		}
	}

	return true
}
