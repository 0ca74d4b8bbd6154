package statmodel

import "fmt"

// Dataset is a collection of named data columns, along with the name of
// an outcome variable and the names of the covariates.  Models read
// their variables from a Dataset by name.
type Dataset struct {
	data     [][]Dtype
	varnames []string
	yname    string
	xnames   []string
}

// NewDataset returns a Dataset holding the given columns.  The
// varnames give the name of each column in data, in order.
func NewDataset(data [][]Dtype, varnames []string, yname string, xnames []string) Dataset {

	if len(data) != len(varnames) {
		msg := fmt.Sprintf("NewDataset: %d columns but %d names\n", len(data), len(varnames))
		panic(msg)
	}

	return Dataset{
		data:     data,
		varnames: varnames,
		yname:    yname,
		xnames:   xnames,
	}
}

// Data returns the data columns.
func (d Dataset) Data() [][]Dtype {
	return d.data
}

// Names returns the names of all columns.
func (d Dataset) Names() []string {
	return d.varnames
}

// YName returns the name of the outcome variable.
func (d Dataset) YName() string {
	return d.yname
}

// XNames returns the names of the covariates.
func (d Dataset) XNames() []string {
	return d.xnames
}

// NumObs returns the number of observations.
func (d Dataset) NumObs() int {
	if len(d.data) == 0 {
		return 0
	}
	return len(d.data[0])
}

// Positions returns a map from variable name to column position.
func (d Dataset) Positions() map[string]int {
	pos := make(map[string]int, len(d.varnames))
	for i, v := range d.varnames {
		pos[v] = i
	}
	return pos
}
