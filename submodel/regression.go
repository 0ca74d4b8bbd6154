package submodel

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/edbonneville/smcfcs/data"
	"github.com/edbonneville/smcfcs/glm"
)

// glmModel is a linear, logistic or Poisson regression model.
type glmModel struct {
	spec   *Spec
	design *data.Design
	fam    glm.FamilyType

	params []float64
	vcov   []float64
	scale  float64
	nobs   int
	names  []string
	last   *glm.GLMResults

	drawn []float64
	sigma float64

	row []float64
}

func newGLMModel(spec *Spec) *glmModel {

	fam := glm.GaussianFamily
	switch spec.Type {
	case Logistic:
		fam = glm.BinomialFamily
	case Poisson:
		fam = glm.PoissonFamily
	}

	return &glmModel{
		spec:   spec,
		design: &data.Design{Terms: spec.Terms, Intercept: true},
		fam:    fam,
	}
}

func (m *glmModel) Fit(f *data.Frame) error {

	var c columns
	c.add("y", f.Values(m.spec.Outcome))
	xnames := c.addDesign("x", f, m.design)

	model, err := glm.NewGLM(c.dataset("y", xnames), glm.DefaultConfig(m.fam))
	if err != nil {
		return err
	}

	rslt, err := model.Fit()
	if err != nil {
		return fmt.Errorf("fitting %s model: %w", m.spec.Type, err)
	}

	m.last = rslt
	m.params = rslt.Params()
	m.vcov = rslt.VCov()
	m.scale = rslt.Scale()
	m.nobs = f.NumObs()
	m.names = m.design.Names(f)

	return nil
}

func (m *glmModel) Summary() string {
	if m.last == nil {
		return ""
	}
	return m.last.Summary().String()
}

// Draw draws the coefficients from their approximate posterior.  For the
// linear model the residual variance is first drawn as RSS / chi^2(n-p).
func (m *glmModel) Draw(rng *rand.Rand) error {

	if m.fam != glm.GaussianFamily {
		var err error
		m.drawn, err = drawParams(m.params, m.vcov, rng)
		return err
	}

	df := float64(m.nobs - len(m.params))
	if df <= 0 || !(m.scale > 0) {
		return fmt.Errorf("linear model: cannot draw the residual variance with %v degrees of freedom and scale %v",
			df, m.scale)
	}

	s2 := m.scale * df / distuv.ChiSquared{K: df, Src: rng}.Rand()
	vcov := make([]float64, len(m.vcov))
	copy(vcov, m.vcov)
	floats.Scale(s2/m.scale, vcov)

	var err error
	m.drawn, err = drawParams(m.params, vcov, rng)
	m.sigma = math.Sqrt(s2)

	return err
}

func (m *glmModel) Coeff() []float64 {
	return m.params
}

func (m *glmModel) Names() []string {
	return m.names
}

func (m *glmModel) Weight(f *data.Frame, i int) float64 {

	m.row = m.design.Row(f, i, m.row)
	lp := dot(m.drawn, m.row)
	y := f.Values(m.spec.Outcome)[i]

	switch m.fam {
	case glm.BinomialFamily:
		p := glm.Expit(lp)
		if y == 1 {
			return p
		}
		return 1 - p
	case glm.PoissonFamily:
		return poissonRatio(y, math.Exp(lp))
	default:
		r := (y - lp) / m.sigma
		return math.Exp(-r * r / 2)
	}
}

// poissonRatio returns the Poisson probability of y with mean mu,
// divided by its maximum over mu, which is attained at mu=y.
func poissonRatio(y, mu float64) float64 {
	if y == 0 {
		return math.Exp(-mu)
	}
	return math.Exp(y*math.Log(mu/y) - mu + y)
}
