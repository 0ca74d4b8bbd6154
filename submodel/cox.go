package submodel

import (
	"fmt"
	"math"
	"sort"

	"golang.org/x/exp/rand"

	"github.com/edbonneville/smcfcs/data"
	"github.com/edbonneville/smcfcs/duration"
)

// coxModel is a proportional hazards model for a full cohort, a
// case-cohort study or a nested case-control study.
//
// Case-cohort data are fit with weight 1 for the cases and the inverse
// sampling fraction for the subcohort non-cases, so that the weighted
// risk sets estimate the full cohort risk sets.  Nested case-control
// data are fit by conditional likelihood, stratifying on the matched
// sets, and the baseline cumulative hazard is the Breslow estimator in
// which each set's risk set sum is scaled up by the number at risk
// divided by the set size.
type coxModel struct {
	spec   *Spec
	design *data.Design

	params []float64
	vcov   []float64
	names  []string

	ph     *duration.PHReg
	last   *duration.PHResults
	x      [][]float64
	time   []float64
	status []float64
	set    []float64
	nrisk  []float64

	// If not nil, the event indicators used in place of the status
	// variable.
	event []float64

	drawn []float64

	// Baseline cumulative hazard at each row's time
	h0 []float64

	// Baseline cumulative hazard step function of a single stratum
	etimes []float64
	cumhaz []float64

	row []float64
}

func newCoxModel(spec *Spec) *coxModel {
	return &coxModel{
		spec:   spec,
		design: &data.Design{Terms: spec.Terms},
	}
}

// caseCohortWeights returns weight 1 for cases and 1/sampfrac for the
// subcohort non-cases.
func caseCohortWeights(status []float64, sampfrac float64) []float64 {
	w := make([]float64, len(status))
	for i, d := range status {
		if d == 1 {
			w[i] = 1
		} else {
			w[i] = 1 / sampfrac
		}
	}
	return w
}

func (m *coxModel) Fit(f *data.Frame) error {

	m.time = f.Values(m.spec.Time)
	m.status = m.event
	if m.status == nil {
		m.status = f.Values(m.spec.Status)
	}

	var c columns
	c.add("time", m.time)
	c.add("status", m.status)
	xnames := c.addDesign("x", f, m.design)
	m.x = c.data[2 : 2+len(xnames)]

	config := duration.DefaultPHRegConfig()
	switch m.spec.Type {
	case CaseCohort:
		c.add("weight", caseCohortWeights(m.status, m.spec.SampFrac))
		config.WeightVar = "weight"
	case NestedCC:
		m.set = f.Values(m.spec.Set)
		m.nrisk = f.Values(m.spec.NumAtRisk)
		c.add("set", m.set)
		config.StrataVar = "set"
	}
	if len(m.params) == len(xnames) {
		config.Start = m.params
	}

	ph, err := duration.NewPHReg(c.dataset("time", xnames), "time", "status", xnames, config)
	if err != nil {
		return err
	}

	rslt, err := ph.Fit()
	if err != nil {
		return fmt.Errorf("fitting %s model: %w", m.spec.Type, err)
	}

	m.ph = ph
	m.last = rslt
	m.params = rslt.Params()
	m.vcov = rslt.VCov()
	m.names = m.design.Names(f)

	return nil
}

func (m *coxModel) Summary() string {
	if m.last == nil {
		return ""
	}
	return m.last.Summary().String()
}

// Draw draws the log hazard ratios and computes the baseline cumulative
// hazard at the drawn values.
func (m *coxModel) Draw(rng *rand.Rand) error {

	var err error
	m.drawn, err = drawParams(m.params, m.vcov, rng)
	if err != nil {
		return err
	}

	if m.spec.Type == NestedCC {
		m.h0 = m.nccBaseline()
		return nil
	}

	m.h0 = m.ph.BaselineCumHazAt(m.drawn)
	m.etimes, m.cumhaz = m.ph.BaselineCumHaz(0, m.drawn)

	return nil
}

// linpred returns the linear predictor of row i of the design matrix
// used in the last fit.
func (m *coxModel) linpred(i int) float64 {
	var lp float64
	for j, b := range m.drawn {
		lp += b * m.x[j][i]
	}
	return lp
}

// nccBaseline returns the baseline cumulative hazard of each row for
// nested case-control data.
func (m *coxModel) nccBaseline() []float64 {

	type setInfo struct {
		id     float64
		size   float64
		nrisk  float64
		ncase  float64
		time   float64
		expsum float64
	}

	sets := make(map[float64]*setInfo)
	for i, s := range m.set {
		si, ok := sets[s]
		if !ok {
			si = &setInfo{id: s}
			sets[s] = si
		}
		si.size++
		si.nrisk = m.nrisk[i]
		si.expsum += math.Exp(m.linpred(i))
		if m.status[i] == 1 {
			si.ncase++
			si.time = m.time[i]
		}
	}

	var jumps []*setInfo
	for _, si := range sets {
		if si.ncase > 0 {
			jumps = append(jumps, si)
		}
	}
	sort.Slice(jumps, func(i, j int) bool {
		if jumps[i].time != jumps[j].time {
			return jumps[i].time < jumps[j].time
		}
		return jumps[i].id < jumps[j].id
	})

	times := make([]float64, len(jumps))
	cum := make([]float64, len(jumps))
	var h float64
	for k, si := range jumps {
		h += si.ncase / (si.nrisk / si.size * si.expsum)
		times[k] = si.time
		cum[k] = h
	}

	h0 := make([]float64, len(m.time))
	for i, t := range m.time {
		h0[i] = duration.StepValue(times, cum, t)
	}

	return h0
}

func (m *coxModel) Coeff() []float64 {
	return m.params
}

func (m *coxModel) Names() []string {
	return m.names
}

func (m *coxModel) Weight(f *data.Frame, i int) float64 {
	m.row = m.design.Row(f, i, m.row)
	h := m.h0[i] * math.Exp(dot(m.drawn, m.row))
	return survWeight(m.status[i], h)
}

// DrawTime solves H(T) = H(C) + E for T, where E is a standard
// exponential draw, C is the row's time and H is the Breslow cumulative
// hazard at the drawn coefficients.  The result is the first event time
// at which the cumulative hazard reaches the target, or +Inf if there is
// no such time.
func (m *coxModel) DrawTime(f *data.Frame, i int, rng *rand.Rand) float64 {

	m.row = m.design.Row(f, i, m.row)
	eta := dot(m.drawn, m.row)

	c := f.Values(m.spec.Time)[i]
	target := duration.StepValue(m.etimes, m.cumhaz, c) + rng.ExpFloat64()*math.Exp(-eta)

	k := sort.SearchFloat64s(m.cumhaz, target)
	if k == len(m.cumhaz) {
		return math.Inf(1)
	}

	return m.etimes[k]
}
