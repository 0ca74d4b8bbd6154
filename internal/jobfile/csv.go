package jobfile

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/edbonneville/smcfcs/data"
	"github.com/edbonneville/smcfcs/impute"
)

// MissingValue is written for missing values.  Empty cells are also read
// as missing.
const MissingValue = "NA"

func isMissing(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == MissingValue
}

func parseKind(s string) (data.Kind, error) {
	for _, k := range []data.Kind{data.Numeric, data.Binary, data.Categorical} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown variable kind '%s'", s)
}

// ReadCSV reads a data file with a header line.  The kind of a variable
// is taken from vars if declared there.  Otherwise a variable whose
// values are all numbers is binary if they are all 0 or 1 and numeric if
// not, and any other variable is categorical with its distinct values,
// in sorted order, as levels.
func ReadCSV(r io.Reader, vars []VariableConfig) (*data.Frame, error) {

	rdr := csv.NewReader(r)
	rdr.TrimLeadingSpace = true

	head, err := rdr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	recs, err := rdr.ReadAll()
	if err != nil {
		return nil, err
	}

	declared := make(map[string]VariableConfig)
	for _, v := range vars {
		declared[v.Name] = v
	}

	var cols []*data.Column
	cells := make([]string, len(recs))
	for j, name := range head {

		name = strings.TrimSpace(name)
		for i, rec := range recs {
			cells[i] = strings.TrimSpace(rec[j])
		}

		var col *data.Column
		if vc, ok := declared[name]; ok {
			kind, err := parseKind(vc.Kind)
			if err != nil {
				return nil, fmt.Errorf("variable '%s': %w", name, err)
			}
			col, err = column(name, kind, vc.Levels, cells)
			if err != nil {
				return nil, err
			}
			delete(declared, name)
		} else {
			col = inferColumn(name, cells)
		}

		cols = append(cols, col)
	}

	for name := range declared {
		return nil, fmt.Errorf("declared variable '%s' not found in data", name)
	}

	return data.NewFrame(cols...)
}

// column converts the cells of a variable of a declared kind.
func column(name string, kind data.Kind, levels []string, cells []string) (*data.Column, error) {

	x := make([]float64, len(cells))

	if kind == data.Categorical {
		if len(levels) == 0 {
			levels = distinct(cells)
		}
		code := make(map[string]int)
		for k, l := range levels {
			code[l] = k
		}
		for i, s := range cells {
			if isMissing(s) {
				x[i] = math.NaN()
				continue
			}
			k, ok := code[s]
			if !ok {
				return nil, fmt.Errorf("variable '%s', row %d: '%s' is not a level", name, i+1, s)
			}
			x[i] = float64(k)
		}
		return data.CategoricalColumn(name, levels, x), nil
	}

	for i, s := range cells {
		if isMissing(s) {
			x[i] = math.NaN()
			continue
		}
		v, err := cast.ToFloat64E(s)
		if err != nil {
			return nil, fmt.Errorf("variable '%s', row %d: %w", name, i+1, err)
		}
		x[i] = v
	}

	if kind == data.Binary {
		return data.BinaryColumn(name, x), nil
	}
	return data.NumericColumn(name, x), nil
}

func inferColumn(name string, cells []string) *data.Column {

	x := make([]float64, len(cells))
	binary := true
	for i, s := range cells {
		if isMissing(s) {
			x[i] = math.NaN()
			continue
		}
		v, err := cast.ToFloat64E(s)
		if err != nil {
			col, _ := column(name, data.Categorical, nil, cells)
			return col
		}
		if v != 0 && v != 1 {
			binary = false
		}
		x[i] = v
	}

	if binary {
		return data.BinaryColumn(name, x)
	}
	return data.NumericColumn(name, x)
}

// distinct returns the sorted distinct non-missing cells.
func distinct(cells []string) []string {

	seen := make(map[string]bool)
	var levels []string
	for _, s := range cells {
		if !isMissing(s) && !seen[s] {
			seen[s] = true
			levels = append(levels, s)
		}
	}
	sort.Strings(levels)

	return levels
}

// WriteCSV writes a frame with a header line.  Categorical values are
// written as their level labels and missing values as MissingValue.
func WriteCSV(w io.Writer, f *data.Frame) error {

	wtr := csv.NewWriter(w)
	if err := wtr.Write(f.Names()); err != nil {
		return err
	}

	cols := f.Columns()
	rec := make([]string, len(cols))
	for i := 0; i < f.NumObs(); i++ {
		for j, c := range cols {
			v := c.Values[i]
			switch {
			case math.IsNaN(v):
				rec[j] = MissingValue
			case c.Kind == data.Categorical:
				rec[j] = c.Levels[int(v)]
			default:
				rec[j] = cast.ToString(v)
			}
		}
		if err := wtr.Write(rec); err != nil {
			return err
		}
	}

	wtr.Flush()
	return wtr.Error()
}

// writeTrace writes the coefficient trace in long form, one line per
// imputation and iteration.
func writeTrace(w io.Writer, tr *impute.Trace) error {

	wtr := csv.NewWriter(w)
	if err := wtr.Write(append([]string{"imputation", "iteration"}, tr.Names...)); err != nil {
		return err
	}

	m, nit, k := tr.Shape()
	rec := make([]string, 2+k)
	for i := 0; i < m; i++ {
		for it := 0; it < nit; it++ {
			rec[0] = cast.ToString(i + 1)
			rec[1] = cast.ToString(it + 1)
			for j, v := range tr.At(i, it) {
				rec[2+j] = cast.ToString(v)
			}
			if err := wtr.Write(rec); err != nil {
				return err
			}
		}
	}

	wtr.Flush()
	return wtr.Error()
}

// RunInfo describes a completed run.
type RunInfo struct {
	RunID       string   `yaml:"runID"`
	Model       string   `yaml:"model"`
	M           int      `yaml:"m"`
	Iterations  int      `yaml:"iterations"`
	Seed        uint64   `yaml:"seed"`
	Imputations []string `yaml:"imputations"`
	Trace       string   `yaml:"trace"`
}

// WriteResult writes the completed datasets of a run to the output
// directory of the job, as imputation_1.csv, ..., together with the
// coefficient trace in trace.csv and a description of the run in
// run.yaml.  It returns the description.
func (job *Job) WriteResult(res *impute.Result) (*RunInfo, error) {

	if err := os.MkdirAll(job.Output, 0o755); err != nil {
		return nil, err
	}

	info := &RunInfo{
		RunID:      res.RunID.String(),
		Model:      res.SM.Type.String(),
		M:          len(res.Imputations),
		Iterations: job.Imputation.Iterations,
		Seed:       job.Imputation.Seed,
		Trace:      "trace.csv",
	}

	write := func(name string, fn func(io.Writer) error) error {
		fid, err := os.Create(filepath.Join(job.Output, name))
		if err != nil {
			return err
		}
		if err := fn(fid); err != nil {
			fid.Close()
			return fmt.Errorf("write %s: %w", name, err)
		}
		return fid.Close()
	}

	for i, f := range res.Imputations {
		name := fmt.Sprintf("imputation_%d.csv", i+1)
		if err := write(name, func(w io.Writer) error { return WriteCSV(w, f) }); err != nil {
			return nil, err
		}
		info.Imputations = append(info.Imputations, name)
	}

	if err := write(info.Trace, func(w io.Writer) error { return writeTrace(w, res.Trace) }); err != nil {
		return nil, err
	}

	err := write("run.yaml", func(w io.Writer) error {
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(info); err != nil {
			return err
		}
		return enc.Close()
	})
	if err != nil {
		return nil, err
	}

	return info, nil
}
