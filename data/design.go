package data

import (
	"fmt"
	"math"
	"strings"
)

// Factor is a variable raised to a power within a model term.  A zero
// Power is read as 1.
type Factor struct {
	Var   string
	Power int
}

func (f Factor) power() int {
	if f.Power == 0 {
		return 1
	}
	return f.Power
}

func (f Factor) String() string {
	if f.power() == 1 {
		return f.Var
	}
	return fmt.Sprintf("%s^%d", f.Var, f.Power)
}

// Term is a product of factors, e.g. x, x^2 or x:z.
type Term struct {
	Factors []Factor
}

// Var returns a term consisting of a single variable.
func Var(name string) Term {
	return Term{Factors: []Factor{{Var: name, Power: 1}}}
}

func (t Term) String() string {
	var s []string
	for _, f := range t.Factors {
		s = append(s, f.String())
	}
	return strings.Join(s, ":")
}

// Design describes how the columns of a design matrix are computed from
// a Frame.  Each term contributes one column, except that a term
// containing a categorical factor with L levels contributes L-1
// treatment-coded columns with level 0 as the reference.  The columns
// are recomputed from the current values of the frame on each call.
type Design struct {
	Terms     []Term
	Intercept bool
}

// Vars returns the distinct variables used by the design, in order of
// first appearance.
func (d *Design) Vars() []string {
	seen := make(map[string]bool)
	var vars []string
	for _, t := range d.Terms {
		for _, f := range t.Factors {
			if !seen[f.Var] {
				seen[f.Var] = true
				vars = append(vars, f.Var)
			}
		}
	}
	return vars
}

// Check returns an error if the design cannot be computed from the
// frame.
func (d *Design) Check(f *Frame) error {

	for _, t := range d.Terms {
		if len(t.Factors) == 0 {
			return fmt.Errorf("empty term")
		}
		ncat := 0
		for _, fa := range t.Factors {
			c := f.Column(fa.Var)
			if c == nil {
				return fmt.Errorf("term '%s': variable '%s' not found", t, fa.Var)
			}
			if fa.Power < 0 {
				return fmt.Errorf("term '%s': negative power", t)
			}
			if c.Kind == Categorical {
				ncat++
				if fa.power() != 1 {
					return fmt.Errorf("term '%s': categorical variable '%s' cannot be raised to a power", t, fa.Var)
				}
			}
		}
		if ncat > 1 {
			return fmt.Errorf("term '%s' has more than one categorical factor", t)
		}
	}

	return nil
}

// catFactor returns the categorical column of a term, or nil if there is
// none.
func catFactor(f *Frame, t Term) *Column {
	for _, fa := range t.Factors {
		c := f.Column(fa.Var)
		if c != nil && c.Kind == Categorical {
			return c
		}
	}
	return nil
}

// Width returns the number of columns of the design matrix.
func (d *Design) Width(f *Frame) int {
	w := 0
	if d.Intercept {
		w++
	}
	for _, t := range d.Terms {
		if c := catFactor(f, t); c != nil {
			w += len(c.Levels) - 1
		} else {
			w++
		}
	}
	return w
}

// Names returns the names of the columns of the design matrix.
func (d *Design) Names(f *Frame) []string {

	var na []string
	if d.Intercept {
		na = append(na, "(Intercept)")
	}

	for _, t := range d.Terms {
		c := catFactor(f, t)
		if c == nil {
			na = append(na, t.String())
			continue
		}
		for k := 1; k < len(c.Levels); k++ {
			var s []string
			for _, fa := range t.Factors {
				if fa.Var == c.Name {
					s = append(s, fmt.Sprintf("%s=%s", c.Name, c.Levels[k]))
				} else {
					s = append(s, fa.String())
				}
			}
			na = append(na, strings.Join(s, ":"))
		}
	}

	return na
}

// Row writes row i of the design matrix into dst, which is allocated if
// it is too short, and returns it.  A missing value in any factor makes
// the columns of its term NaN.
func (d *Design) Row(f *Frame, i int, dst []float64) []float64 {

	w := d.Width(f)
	if cap(dst) < w {
		dst = make([]float64, w)
	}
	dst = dst[0:w]

	j := 0
	if d.Intercept {
		dst[0] = 1
		j++
	}

	for _, t := range d.Terms {

		prod := 1.0
		var cat *Column
		for _, fa := range t.Factors {
			c := f.Column(fa.Var)
			if c.Kind == Categorical {
				cat = c
				continue
			}
			v := c.Values[i]
			if fa.power() == 1 {
				prod *= v
			} else {
				prod *= math.Pow(v, float64(fa.power()))
			}
		}

		if cat == nil {
			dst[j] = prod
			j++
			continue
		}

		code := cat.Values[i]
		for k := 1; k < len(cat.Levels); k++ {
			switch {
			case math.IsNaN(code) || math.IsNaN(prod):
				dst[j] = math.NaN()
			case int(code) == k:
				dst[j] = prod
			default:
				dst[j] = 0
			}
			j++
		}
	}

	return dst
}

// Columns returns the design matrix in column-major form.
func (d *Design) Columns(f *Frame) [][]float64 {

	n := f.NumObs()
	w := d.Width(f)
	cols := make([][]float64, w)
	for j := range cols {
		cols[j] = make([]float64, n)
	}

	row := make([]float64, w)
	for i := 0; i < n; i++ {
		row = d.Row(f, i, row)
		for j := range cols {
			cols[j][i] = row[j]
		}
	}

	return cols
}
