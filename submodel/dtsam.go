package submodel

import (
	"fmt"
	"sort"

	"golang.org/x/exp/rand"

	"github.com/edbonneville/smcfcs/data"
	"github.com/edbonneville/smcfcs/glm"
)

// discreteModel is a discrete time survival model: a logistic
// regression for the event indicator of each period in which a subject
// is at risk, with the effect of time given by the time effects
// specification.
//
// With factor time effects a period in which no event occurs has a zero
// hazard estimate, so such periods are left out of the fit and have
// zero hazard in the likelihood.
type discreteModel struct {
	spec    *Spec
	design  *data.Design
	effects string

	// The periods with their own hazard under factor time effects.
	periods []int
	pindex  map[int]int

	params []float64
	vcov   []float64
	names  []string
	drawn  []float64

	row []float64
}

func newDiscreteModel(spec *Spec) *discreteModel {

	effects := spec.TimeEffects
	if effects == "" {
		effects = TimeFactor
	}

	return &discreteModel{
		spec:    spec,
		design:  &data.Design{Terms: spec.Terms},
		effects: effects,
	}
}

// numTimeParams returns the number of parameters of the time effects.
func (m *discreteModel) numTimeParams() int {
	switch m.effects {
	case TimeFactor:
		return len(m.periods)
	case TimeLinear:
		return 2
	case TimeQuad:
		return 3
	default:
		return 1
	}
}

// timeRow writes the time effects columns of period t into x.  It
// returns false if the period has zero hazard.
func (m *discreteModel) timeRow(t int, x []float64) bool {

	switch m.effects {
	case TimeFactor:
		j, ok := m.pindex[t]
		if !ok {
			return false
		}
		for k := range x {
			x[k] = 0
		}
		x[j] = 1
	case TimeLinear:
		x[0], x[1] = 1, float64(t)
	case TimeQuad:
		x[0], x[1], x[2] = 1, float64(t), float64(t*t)
	default:
		x[0] = 1
	}

	return true
}

func (m *discreteModel) timeNames() []string {
	switch m.effects {
	case TimeFactor:
		var na []string
		for _, t := range m.periods {
			na = append(na, fmt.Sprintf("t=%d", t))
		}
		return na
	case TimeLinear:
		return []string{"(Intercept)", "t"}
	case TimeQuad:
		return []string{"(Intercept)", "t", "t^2"}
	default:
		return []string{"(Intercept)"}
	}
}

func (m *discreteModel) setPeriods(time, status []float64) error {

	seen := make(map[int]bool)
	for i, t := range time {
		if status[i] == 1 {
			seen[int(t)] = true
		}
	}
	if len(seen) == 0 {
		return fmt.Errorf("discrete time model: no events")
	}

	m.periods = m.periods[:0]
	for t := range seen {
		m.periods = append(m.periods, t)
	}
	sort.Ints(m.periods)

	m.pindex = make(map[int]int)
	for j, t := range m.periods {
		m.pindex[t] = j
	}

	return nil
}

// Fit expands the data to one row per subject and period at risk, and
// fits the logistic regression model.
func (m *discreteModel) Fit(f *data.Frame) error {

	time := f.Values(m.spec.Time)
	status := f.Values(m.spec.Status)

	if m.pindex == nil {
		if err := m.setPeriods(time, status); err != nil {
			return err
		}
	}

	nt := m.numTimeParams()
	xcols := m.design.Columns(f)
	p := nt + len(xcols)

	cols := make([][]float64, p+1)
	tx := make([]float64, nt)
	for i, ti := range time {
		for t := 1; t <= int(ti); t++ {
			if !m.timeRow(t, tx) {
				continue
			}
			y := 0.0
			if t == int(ti) && status[i] == 1 {
				y = 1
			}
			cols[0] = append(cols[0], y)
			for j, v := range tx {
				cols[1+j] = append(cols[1+j], v)
			}
			for j, x := range xcols {
				cols[1+nt+j] = append(cols[1+nt+j], x[i])
			}
		}
	}

	names := []string{"y"}
	var xnames []string
	for j := 0; j < p; j++ {
		na := fmt.Sprintf("x%d", j)
		names = append(names, na)
		xnames = append(xnames, na)
	}

	var c columns
	for j, x := range cols {
		c.add(names[j], x)
	}

	model, err := glm.NewGLM(c.dataset("y", xnames), glm.DefaultConfig(glm.BinomialFamily))
	if err != nil {
		return err
	}

	rslt, err := model.Fit()
	if err != nil {
		return fmt.Errorf("fitting %s model: %w", m.spec.Type, err)
	}

	m.params = rslt.Params()
	m.vcov = rslt.VCov()
	m.names = append(m.timeNames(), m.design.Names(f)...)

	return nil
}

func (m *discreteModel) Draw(rng *rand.Rand) error {
	var err error
	m.drawn, err = drawParams(m.params, m.vcov, rng)
	return err
}

func (m *discreteModel) Coeff() []float64 {
	return m.params
}

func (m *discreteModel) Names() []string {
	return m.names
}

// Weight returns the product over the periods at risk of h^y (1-h)^(1-y),
// where h is the hazard of the period and y indicates an event in the
// period.
func (m *discreteModel) Weight(f *data.Frame, i int) float64 {

	nt := m.numTimeParams()
	m.row = m.design.Row(f, i, m.row)
	eta := dot(m.drawn[nt:], m.row)

	ti := int(f.Values(m.spec.Time)[i])
	event := f.Values(m.spec.Status)[i] == 1

	tx := make([]float64, nt)
	w := 1.0
	for t := 1; t <= ti; t++ {
		if !m.timeRow(t, tx) {
			continue
		}
		h := glm.Expit(dot(m.drawn[0:nt], tx) + eta)
		if t == ti && event {
			w *= h
		} else {
			w *= 1 - h
		}
	}

	return w
}
