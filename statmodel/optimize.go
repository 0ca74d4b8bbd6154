package statmodel

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// ScoreTol is the largest absolute score per observation at which a
// maximization that ended with an optimizer error is still accepted.
const ScoreTol = 1e-5

// Maximize maximizes the log-likelihood of a model starting from the
// given point, using the given optimization method (BFGS when nil).
// newParam wraps a point of the search space as a parameter of the
// model.
//
// Quasi-Newton line searches commonly fail to make progress within
// rounding error of the maximum.  When the optimizer returns an error
// the score is evaluated at the best point found, and the point is
// accepted if the score is negligible.  Otherwise Newton's method is
// run from that point using the Hessian of the model.
func Maximize(model RegFitter, newParam func([]float64) Parameter, start []float64,
	settings *optimize.Settings, method optimize.Method) (*optimize.Result, error) {

	if method == nil {
		method = &optimize.BFGS{Linesearcher: &optimize.MoreThuente{}}
	}

	q := len(start)
	prob := optimize.Problem{
		Func: func(x []float64) float64 {
			return -model.LogLike(newParam(x), false)
		},
		Grad: func(grad, x []float64) {
			model.Score(newParam(x), grad)
			floats.Scale(-1, grad)
		},
		Hess: func(hess *mat.SymDense, x []float64) {
			h := make([]float64, q*q)
			model.Hessian(newParam(x), ObsHess, h)
			for i := 0; i < q; i++ {
				for j := i; j < q; j++ {
					hess.SetSym(i, j, -(h[i*q+j]+h[j*q+i])/2)
				}
			}
		},
	}

	rslt, err := optimize.Minimize(prob, start, settings, method)
	if err == nil {
		err = rslt.Status.Err()
	}
	if err == nil || stationary(prob, model.NumObs(), rslt) {
		return rslt, nil
	}

	x := start
	if rslt != nil && finite(rslt.X) {
		x = rslt.X
	}
	nrslt, nerr := optimize.Minimize(prob, x, settings, &optimize.Newton{})
	if nerr == nil {
		nerr = nrslt.Status.Err()
	}
	if nerr == nil || stationary(prob, model.NumObs(), nrslt) {
		return nrslt, nil
	}

	return nil, err
}

// stationary returns true if the score at the result point is within
// ScoreTol per observation of zero.
func stationary(prob optimize.Problem, nobs int, rslt *optimize.Result) bool {

	if rslt == nil || len(rslt.X) == 0 || !finite(rslt.X) || math.IsNaN(rslt.F) || math.IsInf(rslt.F, 0) {
		return false
	}

	if nobs < 1 {
		nobs = 1
	}

	grad := make([]float64, len(rslt.X))
	prob.Grad(grad, rslt.X)
	for _, g := range grad {
		if math.IsNaN(g) || math.Abs(g) > ScoreTol*float64(nobs) {
			return false
		}
	}

	return true
}

func finite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
