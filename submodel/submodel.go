package submodel

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"github.com/edbonneville/smcfcs/data"
	"github.com/edbonneville/smcfcs/statmodel"
)

// Evaluator is a fitted substantive model.
type Evaluator interface {

	// Fit fits the model to the current values of the frame, keeping
	// the parameter estimates and their covariance matrix.
	Fit(f *data.Frame) error

	// Draw draws the parameters from their approximate posterior
	// distribution.  The draw is used by subsequent calls to Weight
	// and DrawTime.
	Draw(rng *rand.Rand) error

	// Coeff returns the estimated coefficients of the last fit.
	Coeff() []float64

	// Names returns the names of the coefficients.
	Names() []string

	// Weight returns the likelihood contribution of row i of the
	// frame at the drawn parameters, divided by its upper bound over
	// the covariates, so that it lies in [0, 1].  The covariates are
	// read from the frame, while the outcome and quantities depending
	// only on it are those of the last call to Draw.
	Weight(f *data.Frame, i int) float64
}

// TimeImputer is implemented by survival models under which censored
// event times can be imputed.
type TimeImputer interface {

	// DrawTime returns an event time for row i drawn from the fitted
	// conditional distribution given survival beyond the row's time,
	// at the drawn parameters.  The result may be +Inf if the fitted
	// survival function does not reach zero.
	DrawTime(f *data.Frame, i int, rng *rand.Rand) float64
}

// Summarizer is implemented by models that can describe their last fit.
type Summarizer interface {

	// Summary returns a table of the estimates of the last fit, or an
	// empty string before the first fit.
	Summary() string
}

// New returns an evaluator for the given model.  The Spec should have
// been validated.
func New(spec *Spec) (Evaluator, error) {

	switch spec.Type {
	case Linear, Logistic, Poisson:
		return newGLMModel(spec), nil
	case Cox, CaseCohort, NestedCC:
		return newCoxModel(spec), nil
	case FlexParam:
		return newFlexModel(spec), nil
	case CompetingRisks:
		return newCompetingModel(spec), nil
	case DiscreteTime:
		return newDiscreteModel(spec), nil
	default:
		return nil, fmt.Errorf("unknown substantive model type %v", spec.Type)
	}
}

// survWeight is the likelihood contribution of a proportional hazards
// model with event indicator d and cumulative hazard h, as a function of
// the linear predictor, divided by its maximum.  For an event the
// contribution is proportional to h*exp(-h), which is largest at h=1.
func survWeight(d, h float64) float64 {
	if d == 1 {
		return h * math.Exp(1-h)
	}
	return math.Exp(-h)
}

// drawParams draws from the normal approximation to the posterior.
func drawParams(mean, vcov []float64, rng *rand.Rand) ([]float64, error) {
	if len(mean) == 0 {
		return nil, nil
	}
	return statmodel.DrawNormal(mean, vcov, rng)
}

func dot(x, y []float64) float64 {
	var v float64
	for j := range x {
		v += x[j] * y[j]
	}
	return v
}

// columns collects the named columns of a Dataset.
type columns struct {
	data  [][]float64
	names []string
}

func (c *columns) add(name string, x []float64) {
	c.data = append(c.data, x)
	c.names = append(c.names, name)
}

// addDesign adds the columns of the design matrix, named by prefix and
// position, and returns their names.
func (c *columns) addDesign(prefix string, f *data.Frame, d *data.Design) []string {
	var xnames []string
	for j, x := range d.Columns(f) {
		na := fmt.Sprintf("%s%d", prefix, j)
		c.add(na, x)
		xnames = append(xnames, na)
	}
	return xnames
}

func (c *columns) dataset(yname string, xnames []string) statmodel.Dataset {
	return statmodel.NewDataset(c.data, c.names, yname, xnames)
}
