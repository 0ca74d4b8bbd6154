package submodel

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"github.com/edbonneville/smcfcs/data"
	"github.com/edbonneville/smcfcs/duration"
)

// flexModel is a Royston-Parmar flexible parametric proportional
// hazards model.  Coeff and Names describe the log hazard ratios only;
// the spline coefficients are nuisance parameters.
type flexModel struct {
	spec   *Spec
	design *data.Design

	fs     *duration.FlexSurv
	params []float64
	vcov   []float64
	names  []string

	gamma []float64
	drawn []float64
	h0    []float64

	row []float64
}

func newFlexModel(spec *Spec) *flexModel {
	return &flexModel{
		spec:   spec,
		design: &data.Design{Terms: spec.Terms},
	}
}

func (m *flexModel) Fit(f *data.Frame) error {

	var c columns
	c.add("time", f.Values(m.spec.Time))
	c.add("status", f.Values(m.spec.Status))
	xnames := c.addDesign("x", f, m.design)

	config := duration.DefaultFlexSurvConfig()
	config.Knots = m.spec.Knots

	// Start from the previous estimates, which are close after the
	// first iteration.
	if len(m.params) == len(xnames)+m.spec.Knots+2 {
		config.Start = m.params
	}

	fs, err := duration.NewFlexSurv(c.dataset("time", xnames), "time", "status", xnames, config)
	if err != nil {
		return err
	}

	rslt, err := fs.Fit()
	if err != nil {
		return fmt.Errorf("fitting %s model: %w", m.spec.Type, err)
	}

	m.fs = fs
	m.params = rslt.Params()
	m.vcov = rslt.VCov()
	m.names = m.design.Names(f)

	return nil
}

// Draw draws the spline coefficients and log hazard ratios jointly, and
// evaluates the baseline cumulative hazard at each row's time.
func (m *flexModel) Draw(rng *rand.Rand) error {

	theta, err := drawParams(m.params, m.vcov, rng)
	if err != nil {
		return err
	}

	ns := m.fs.NumSpline()
	m.gamma = theta[0:ns]
	m.drawn = theta[ns:]

	time := m.fs.Dataset()[0]
	m.h0 = make([]float64, len(time))
	for i, t := range time {
		m.h0[i] = m.fs.BaselineCumHaz(m.gamma, t)
	}

	return nil
}

func (m *flexModel) Coeff() []float64 {
	return m.params[m.fs.NumSpline():]
}

func (m *flexModel) Names() []string {
	return m.names
}

func (m *flexModel) Weight(f *data.Frame, i int) float64 {
	m.row = m.design.Row(f, i, m.row)
	h := m.h0[i] * math.Exp(dot(m.drawn, m.row))
	return survWeight(f.Values(m.spec.Status)[i], h)
}

// DrawTime solves H(T) = H(C) + E for T by inverting the spline, where E
// is a standard exponential draw and C is the row's time.
func (m *flexModel) DrawTime(f *data.Frame, i int, rng *rand.Rand) float64 {

	m.row = m.design.Row(f, i, m.row)
	eta := dot(m.drawn, m.row)

	c := f.Values(m.spec.Time)[i]
	target := m.fs.BaselineCumHaz(m.gamma, c) + rng.ExpFloat64()*math.Exp(-eta)

	return m.fs.InvBaselineCumHaz(m.gamma, target)
}
