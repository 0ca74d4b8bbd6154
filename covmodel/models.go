package covmodel

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/edbonneville/smcfcs/glm"
	"github.com/edbonneville/smcfcs/sampler"
	"github.com/edbonneville/smcfcs/statmodel"
)

// Norm is a linear regression model with normal errors.
type Norm struct {
	coeff []float64
	sigma float64
}

// Fit fits the model by least squares.  The residual variance is drawn
// as RSS / chi^2(n-p), then the coefficients are drawn from the normal
// distribution centered at the estimate, with covariance matrix scaled
// by the drawn variance.
func (m *Norm) Fit(X [][]float64, y []float64, rng *rand.Rand) error {

	n, p := len(y), len(X)
	if n <= p {
		return fmt.Errorf("norm: %d observations for %d coefficients", n, p)
	}

	rslt, err := fitGLM(glm.GaussianFamily, X, y)
	if err != nil {
		return err
	}

	scale := rslt.Scale()
	if scale <= 0 || math.IsNaN(scale) {
		return fmt.Errorf("norm: residual variance is %v", scale)
	}

	df := float64(n - p)
	chi := distuv.ChiSquared{K: df, Src: rng}.Rand()
	s2 := scale * df / chi

	vcov := make([]float64, len(rslt.VCov()))
	copy(vcov, rslt.VCov())
	floats.Scale(s2/scale, vcov)

	m.coeff, err = statmodel.DrawNormal(rslt.Params(), vcov, rng)
	if err != nil {
		return err
	}
	m.sigma = math.Sqrt(s2)

	return nil
}

// Coeff returns the drawn regression coefficients.
func (m *Norm) Coeff() []float64 {
	return m.coeff
}

// Sigma returns the drawn residual standard deviation.
func (m *Norm) Sigma() float64 {
	return m.sigma
}

// Draw returns a normal draw with mean x'b and the drawn residual
// standard deviation.
func (m *Norm) Draw(x []float64, rng *rand.Rand) float64 {
	return linpred(m.coeff, x) + m.sigma*rng.NormFloat64()
}

// Probs returns nil.
func (m *Norm) Probs(x []float64) []float64 {
	return nil
}

// LogReg is a logistic regression model for a binary covariate.
type LogReg struct {
	coeff []float64
}

// Fit fits the model and draws the coefficients from their approximate
// normal posterior.
func (m *LogReg) Fit(X [][]float64, y []float64, rng *rand.Rand) error {

	rslt, err := fitGLM(glm.BinomialFamily, X, y)
	if err != nil {
		return err
	}

	m.coeff, err = statmodel.DrawNormal(rslt.Params(), rslt.VCov(), rng)
	return err
}

// Coeff returns the drawn coefficients.
func (m *LogReg) Coeff() []float64 {
	return m.coeff
}

// Probs returns the probabilities of 0 and 1 at x.
func (m *LogReg) Probs(x []float64) []float64 {
	p := glm.Expit(linpred(m.coeff, x))
	return []float64{1 - p, p}
}

// Draw returns a Bernoulli draw.
func (m *LogReg) Draw(x []float64, rng *rand.Rand) float64 {
	if rng.Float64() < m.Probs(x)[1] {
		return 1
	}
	return 0
}

// Poisson is a log-linear model for a count covariate.
type Poisson struct {
	coeff []float64
}

// Fit fits the model and draws the coefficients from their approximate
// normal posterior.
func (m *Poisson) Fit(X [][]float64, y []float64, rng *rand.Rand) error {

	rslt, err := fitGLM(glm.PoissonFamily, X, y)
	if err != nil {
		return err
	}

	m.coeff, err = statmodel.DrawNormal(rslt.Params(), rslt.VCov(), rng)
	return err
}

// Coeff returns the drawn coefficients.
func (m *Poisson) Coeff() []float64 {
	return m.coeff
}

// Mean returns the mean of the count at x.
func (m *Poisson) Mean(x []float64) float64 {
	return math.Exp(linpred(m.coeff, x))
}

// Draw returns a Poisson draw.
func (m *Poisson) Draw(x []float64, rng *rand.Rand) float64 {
	return distuv.Poisson{Lambda: m.Mean(x), Src: rng}.Rand()
}

// Probs returns nil; count covariates are imputed by rejection sampling.
func (m *Poisson) Probs(x []float64) []float64 {
	return nil
}

// MLogit is a multinomial logistic regression model for a categorical
// covariate with level 0 as the reference.  With two levels the model
// is the logistic regression model and is fit as one, so that a
// two-level categorical covariate and the same covariate coded as binary
// give identical draws.
type MLogit struct {
	nlevels int
	coeff   []float64
	binary  *LogReg

	// Estimates of the previous fit, the starting values of the next.
	est []float64
}

// Fit fits the model and draws the coefficients from their approximate
// normal posterior.
func (m *MLogit) Fit(X [][]float64, y []float64, rng *rand.Rand) error {

	if m.nlevels == 2 {
		m.binary = &LogReg{}
		if err := m.binary.Fit(X, y, rng); err != nil {
			return err
		}
		m.coeff = m.binary.coeff
		return nil
	}

	config := glm.DefaultMNLogitConfig()
	if len(m.est) == (m.nlevels-1)*len(X) {
		config.Start = m.est
	}

	model, err := glm.NewMNLogit(dataset(X, y), m.nlevels, config)
	if err != nil {
		return err
	}

	rslt, err := model.Fit()
	if err != nil {
		return err
	}

	m.est = rslt.Params()
	m.coeff, err = statmodel.DrawNormal(m.est, rslt.VCov(), rng)
	return err
}

// NumLevels returns the number of levels of the covariate.
func (m *MLogit) NumLevels() int {
	return m.nlevels
}

// Coeff returns the drawn coefficients, level 1 first.
func (m *MLogit) Coeff() []float64 {
	return m.coeff
}

// Probs returns the probabilities of the levels at x.
func (m *MLogit) Probs(x []float64) []float64 {

	if m.binary != nil {
		return m.binary.Probs(x)
	}

	probs := make([]float64, m.nlevels)
	glm.Probs(m.coeff, m.nlevels, x, probs)
	return probs
}

// Draw returns a level code drawn from the level probabilities.
func (m *MLogit) Draw(x []float64, rng *rand.Rand) float64 {

	if m.binary != nil {
		return m.binary.Draw(x, rng)
	}

	k, err := sampler.Categorical(m.Probs(x), rng.Float64())
	if err != nil {
		return math.NaN()
	}
	return float64(k)
}
