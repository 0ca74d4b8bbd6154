package impute

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/edbonneville/smcfcs/statmodel"
)

// Trace holds the substantive model coefficients estimated at the end
// of every iteration of every imputation, for assessing convergence of
// the Gibbs sampler.
type Trace struct {

	// Names are the names of the coefficients.
	Names []string

	// values[i][it] are the coefficients of imputation i after
	// iteration it.
	values [][][]float64
}

// NewTrace returns an empty trace for m imputations of the given number
// of iterations.
func NewTrace(names []string, m, iterations int) *Trace {

	values := make([][][]float64, m)
	for i := range values {
		values[i] = make([][]float64, iterations)
	}

	return &Trace{
		Names:  names,
		values: values,
	}
}

// Shape returns the number of imputations, iterations and
// coefficients.
func (t *Trace) Shape() (int, int, int) {
	if len(t.values) == 0 {
		return 0, 0, len(t.Names)
	}
	return len(t.values), len(t.values[0]), len(t.Names)
}

// At returns the coefficients of imputation i after iteration it.
func (t *Trace) At(i, it int) []float64 {
	return t.values[i][it]
}

// set records a copy of the coefficients of imputation i after
// iteration it.
func (t *Trace) set(i, it int, coeff []float64) {
	c := make([]float64, len(coeff))
	copy(c, coeff)
	t.values[i][it] = c
}

// Stack returns a trace holding the imputations of t followed by those
// of other.
func (t *Trace) Stack(other *Trace) (*Trace, error) {

	m1, it1, k1 := t.Shape()
	m2, it2, k2 := other.Shape()

	switch {
	case m1 == 0:
		return other, nil
	case m2 == 0:
		return t, nil
	case it1 != it2 || k1 != k2:
		return nil, fmt.Errorf("cannot stack traces of shape [%d %d %d] and [%d %d %d]", m1, it1, k1, m2, it2, k2)
	}

	for j := range t.Names {
		if t.Names[j] != other.Names[j] {
			return nil, fmt.Errorf("cannot stack traces with coefficients %v and %v", t.Names, other.Names)
		}
	}

	values := make([][][]float64, 0, m1+m2)
	values = append(values, t.values...)
	values = append(values, other.values...)

	return &Trace{Names: t.Names, values: values}, nil
}

// Coefficient returns the values of coefficient j as an array indexed
// by imputation and iteration.
func (t *Trace) Coefficient(j int) [][]float64 {
	x := make([][]float64, len(t.values))
	for i, v := range t.values {
		x[i] = make([]float64, len(v))
		for it := range v {
			x[i][it] = v[it][j]
		}
	}
	return x
}

// Summary returns a table of the coefficients after the first and the
// last iteration, averaged over the imputations, and their standard
// deviation over the imputations after the last iteration.  Coefficients
// whose averages change substantially between the first and last
// iteration, relative to the between-imputation variation, suggest that
// more iterations are needed.
func (t *Trace) Summary() string {

	m, nit, k := t.Shape()
	if m == 0 || nit == 0 {
		return ""
	}

	first := make([]float64, k)
	last := make([]float64, k)
	sd := make([]float64, k)

	x := make([]float64, m)
	for j := 0; j < k; j++ {
		for i := 0; i < m; i++ {
			x[i] = t.values[i][0][j]
		}
		first[j] = stat.Mean(x, nil)
		for i := 0; i < m; i++ {
			x[i] = t.values[i][nit-1][j]
		}
		last[j], sd[j] = stat.MeanStdDev(x, nil)
	}

	tab := &statmodel.SummaryTable{
		Title:    "Coefficient trace",
		ColNames: []string{"Variable   ", "First", "Last", "SD"},
		ColFmt:   []statmodel.Fmter{statmodel.FormatStrings, statmodel.FormatFloats, statmodel.FormatFloats, statmodel.FormatFloats},
		Cols:     []interface{}{t.Names, first, last, sd},
		Top: []string{
			fmt.Sprintf("Imputations: %d", m),
			fmt.Sprintf("Iterations:  %d", nit),
		},
	}

	if m < 2 {
		tab.Msg = append(tab.Msg, "The standard deviation needs at least two imputations.")
	}

	return tab.String()
}
