// Package covmodel provides the conditional models used to propose
// imputed values for a partially observed covariate.  Each model is
// fit to the current completed data, after which its parameters are
// drawn from their approximate posterior distribution.  Proposals are
// then drawn from the conditional distribution at the drawn parameters.
package covmodel

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/edbonneville/smcfcs/glm"
	"github.com/edbonneville/smcfcs/statmodel"
)

// Method identifies the conditional model of a covariate.
type Method uint8

// MethodNone, ... are the conditional model types.  MethodNone is used
// for covariates that are not imputed.
const (
	MethodNone Method = iota
	MethodNorm
	MethodLogReg
	MethodMLogit
	MethodPoisson
)

var methodNames = map[Method]string{
	MethodNone:    "",
	MethodNorm:    "norm",
	MethodLogReg:  "logreg",
	MethodMLogit:  "mlogit",
	MethodPoisson: "poisson",
}

func (m Method) String() string {
	if s, ok := methodNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Method(%d)", uint8(m))
}

// ParseMethod returns the method with the given name.  The empty string
// is MethodNone.
func ParseMethod(s string) (Method, error) {
	for m, na := range methodNames {
		if na == s {
			return m, nil
		}
	}
	return MethodNone, fmt.Errorf("unknown imputation method '%s'", s)
}

// Discrete returns true if the method models a covariate taking a finite
// set of values, whose imputed values are drawn directly from their
// conditional distribution over the levels.
func (m Method) Discrete() bool {
	return m == MethodLogReg || m == MethodMLogit
}

// Model is a conditional model for one covariate given its predictors.
type Model interface {

	// Fit fits the model to the outcome y and the design matrix X,
	// given as columns, then draws the parameters from their
	// approximate posterior distribution.
	Fit(X [][]float64, y []float64, rng *rand.Rand) error

	// Coeff returns the drawn coefficients.
	Coeff() []float64

	// Draw returns a value drawn from the conditional distribution at
	// the design row x.
	Draw(x []float64, rng *rand.Rand) float64

	// Probs returns the probability of each level at the design row x,
	// or nil for models of continuous covariates.
	Probs(x []float64) []float64
}

// New returns an unfitted model for the given method.  The number of
// levels is used by MethodMLogit.
func New(method Method, nlevels int) (Model, error) {

	switch method {
	case MethodNorm:
		return &Norm{}, nil
	case MethodLogReg:
		return &LogReg{}, nil
	case MethodPoisson:
		return &Poisson{}, nil
	case MethodMLogit:
		if nlevels < 2 {
			return nil, fmt.Errorf("mlogit needs at least two levels, got %d", nlevels)
		}
		return &MLogit{nlevels: nlevels}, nil
	case MethodNone:
		return nil, fmt.Errorf("no conditional model for a covariate that is not imputed")
	default:
		return nil, fmt.Errorf("unknown method %v", method)
	}
}

// dataset packs a design matrix and outcome into a Dataset.
func dataset(X [][]float64, y []float64) statmodel.Dataset {

	cols := make([][]float64, 0, len(X)+1)
	names := make([]string, 0, len(X)+1)
	var xnames []string

	cols = append(cols, y)
	names = append(names, "y")
	for j, x := range X {
		na := fmt.Sprintf("x%d", j)
		cols = append(cols, x)
		names = append(names, na)
		xnames = append(xnames, na)
	}

	return statmodel.NewDataset(cols, names, "y", xnames)
}

// fitGLM fits a GLM with the given family and returns its estimated
// coefficients, covariance matrix and scale.
func fitGLM(fam glm.FamilyType, X [][]float64, y []float64) (*glm.GLMResults, error) {

	model, err := glm.NewGLM(dataset(X, y), glm.DefaultConfig(fam))
	if err != nil {
		return nil, err
	}

	return model.Fit()
}

func linpred(coeff, x []float64) float64 {
	var lp float64
	for j, c := range coeff {
		lp += c * x[j]
	}
	return lp
}
