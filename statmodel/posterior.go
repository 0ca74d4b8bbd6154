package statmodel

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// DrawNormal returns a draw from the multivariate normal distribution
// with the given mean and covariance matrix.  The covariance matrix is
// vectorized in row-major order, as returned by GetVcov.  This is the
// large-sample approximation to the posterior distribution of the
// parameters of a fitted model.
func DrawNormal(mean, vcov []float64, src rand.Source) ([]float64, error) {

	p := len(mean)
	if len(vcov) != p*p {
		return nil, fmt.Errorf("DrawNormal: covariance has length %d, expected %d", len(vcov), p*p)
	}

	sym := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			sym.SetSym(i, j, (vcov[i*p+j]+vcov[j*p+i])/2)
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(sym); !ok {
		return nil, fmt.Errorf("DrawNormal: covariance matrix is not positive definite")
	}
	var l mat.TriDense
	chol.LTo(&l)

	nrm := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	z := make([]float64, p)
	for i := range z {
		z[i] = nrm.Rand()
	}

	x := make([]float64, p)
	for i := 0; i < p; i++ {
		x[i] = mean[i]
		for j := 0; j <= i; j++ {
			x[i] += l.At(i, j) * z[j]
		}
	}

	return x, nil
}
