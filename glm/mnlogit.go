package glm

import (
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"github.com/edbonneville/smcfcs/statmodel"
)

// MNLogit is a multinomial logistic regression model.  The outcome
// variable holds class codes 0, 1, ..., K-1, and class 0 is the
// reference class.  The coefficients are stored in K-1 consecutive
// blocks, block k-1 holding the coefficients for class k.
type MNLogit struct {

	// The names of the variables.  The order agrees with the order of 'data'.
	varnames []string

	// The data to which the model is fit
	data [][]statmodel.Dtype

	// Positions of the covariates
	xpos []int

	// Position of the outcome variable
	ypos int

	// Position of the weight variable, -1 if not present.
	weightpos int

	// The number of outcome classes
	nclass int

	start []float64

	optsettings *optimize.Settings

	optmethod optimize.Method

	log *log.Logger
}

// MNLogitConfig contains configuration parameters for a multinomial
// logistic regression.
type MNLogitConfig struct {

	// WeightVar is the name of a frequency weight variable, if empty
	// all cases have unit weight.
	WeightVar string

	// Start contains optional starting values.
	Start []float64

	// Log receives progress messages if not nil.
	Log *log.Logger

	// OptMethod is the Gonum optimization used to fit the model.
	OptMethod optimize.Method

	// OptSettings configures the Gonum optimization routine.
	OptSettings *optimize.Settings
}

// DefaultMNLogitConfig returns a default configuration for a multinomial
// logistic regression.
func DefaultMNLogitConfig() *MNLogitConfig {
	return &MNLogitConfig{
		OptMethod: &optimize.BFGS{
			Linesearcher: &optimize.MoreThuente{},
		},
	}
}

// NewMNLogit returns a multinomial logistic regression for the outcome
// and covariates of the given dataset, with nclass outcome classes.
func NewMNLogit(data statmodel.Dataset, nclass int, config *MNLogitConfig) (*MNLogit, error) {

	if config == nil {
		config = DefaultMNLogitConfig()
	}

	if nclass < 2 {
		return nil, fmt.Errorf("MNLogit: at least two classes are needed, got %d", nclass)
	}

	pos := data.Positions()

	ypos, ok := pos[data.YName()]
	if !ok {
		return nil, fmt.Errorf("MNLogit: outcome variable '%s' not found", data.YName())
	}

	var xpos []int
	for _, xna := range data.XNames() {
		xp, ok := pos[xna]
		if !ok {
			return nil, fmt.Errorf("MNLogit: predictor '%s' not found", xna)
		}
		xpos = append(xpos, xp)
	}

	weightpos := -1
	if config.WeightVar != "" {
		weightpos, ok = pos[config.WeightVar]
		if !ok {
			return nil, fmt.Errorf("MNLogit: weight variable '%s' not found", config.WeightVar)
		}
	}

	for i, y := range data.Data()[ypos] {
		if y < 0 || y >= float64(nclass) || y != math.Floor(y) {
			return nil, fmt.Errorf("MNLogit: outcome value %v in row %d is not a class code", y, i)
		}
	}

	m := &MNLogit{
		varnames:    data.Names(),
		data:        data.Data(),
		xpos:        xpos,
		ypos:        ypos,
		weightpos:   weightpos,
		nclass:      nclass,
		start:       config.Start,
		log:         config.Log,
		optsettings: config.OptSettings,
		optmethod:   config.OptMethod,
	}

	if m.optmethod == nil {
		m.optmethod = &optimize.BFGS{Linesearcher: &optimize.MoreThuente{}}
	}

	if m.start != nil && len(m.start) != m.NumParams() {
		return nil, fmt.Errorf("MNLogit: the starting values have length %d, expected %d",
			len(m.start), m.NumParams())
	}

	return m, nil
}

// NumParams returns the number of coefficients, (K-1) times the number
// of covariates.
func (m *MNLogit) NumParams() int {
	return (m.nclass - 1) * len(m.xpos)
}

// NumObs returns the number of observations.
func (m *MNLogit) NumObs() int {
	return len(m.data[m.ypos])
}

// Xpos returns the positions of the covariates.
func (m *MNLogit) Xpos() []int {
	return m.xpos
}

// Dataset returns the data columns.
func (m *MNLogit) Dataset() [][]statmodel.Dtype {
	return m.data
}

// Probs computes the class probabilities for a single case with
// covariate vector x, storing them in probs (length nclass).
func Probs(coeff []float64, nclass int, x []float64, probs []float64) {

	p := len(x)
	probs[0] = 0
	mx := 0.0
	for k := 1; k < nclass; k++ {
		probs[k] = floats.Dot(coeff[(k-1)*p:k*p], x)
		if probs[k] > mx {
			mx = probs[k]
		}
	}

	var tot float64
	for k := range probs[0:nclass] {
		probs[k] = math.Exp(probs[k] - mx)
		tot += probs[k]
	}
	floats.Scale(1/tot, probs[0:nclass])
}

// caseProbs fills probs with the class probabilities of case i.
func (m *MNLogit) caseProbs(coeff []float64, i int, x, probs []float64) {
	for j, k := range m.xpos {
		x[j] = m.data[k][i]
	}
	Probs(coeff, m.nclass, x, probs)
}

func (m *MNLogit) weight(i int) float64 {
	if m.weightpos == -1 {
		return 1
	}
	return m.data[m.weightpos][i]
}

// LogLike returns the log-likelihood at the given parameter.
func (m *MNLogit) LogLike(param statmodel.Parameter, exact bool) float64 {

	coeff := param.GetCoeff()
	x := make([]float64, len(m.xpos))
	probs := make([]float64, m.nclass)

	var ll float64
	for i, y := range m.data[m.ypos] {
		m.caseProbs(coeff, i, x, probs)
		ll += m.weight(i) * math.Log(probs[int(y)])
	}

	return ll
}

// Score computes the score vector at the given parameter.
func (m *MNLogit) Score(param statmodel.Parameter, score []float64) {

	coeff := param.GetCoeff()
	p := len(m.xpos)
	x := make([]float64, p)
	probs := make([]float64, m.nclass)

	zero(score)
	for i, y := range m.data[m.ypos] {
		m.caseProbs(coeff, i, x, probs)
		w := m.weight(i)
		for k := 1; k < m.nclass; k++ {
			r := -probs[k]
			if int(y) == k {
				r++
			}
			floats.AddScaled(score[(k-1)*p:k*p], w*r, x)
		}
	}
}

// Hessian computes the Hessian matrix at the given parameter.  The
// observed and expected Hessians coincide for this model.
func (m *MNLogit) Hessian(param statmodel.Parameter, ht statmodel.HessType, hess []float64) {

	coeff := param.GetCoeff()
	p := len(m.xpos)
	q := m.NumParams()
	x := make([]float64, p)
	probs := make([]float64, m.nclass)

	zero(hess)
	for i := range m.data[m.ypos] {
		m.caseProbs(coeff, i, x, probs)
		w := m.weight(i)
		for k := 1; k < m.nclass; k++ {
			for l := 1; l < m.nclass; l++ {
				f := -probs[k] * probs[l]
				if k == l {
					f += probs[k]
				}
				f *= w
				for j1 := 0; j1 < p; j1++ {
					r := ((k-1)*p + j1) * q
					for j2 := 0; j2 < p; j2++ {
						hess[r+(l-1)*p+j2] -= f * x[j1] * x[j2]
					}
				}
			}
		}
	}
}

// MNLogitResults describes the results of a fitted multinomial
// logistic regression.
type MNLogitResults struct {
	statmodel.BaseResults
}

// Fit estimates the model parameters by maximum likelihood.
func (m *MNLogit) Fit() (*MNLogitResults, error) {

	start := m.start
	if start == nil {
		start = make([]float64, m.NumParams())
	}

	settings := m.optsettings
	if settings == nil {
		settings = &optimize.Settings{
			GradientThreshold: 1e-6,
		}
	}

	if m.log != nil {
		m.log.Printf("Fitting multinomial logit model with %d classes\n", m.nclass)
	}

	newParam := func(x []float64) statmodel.Parameter {
		return statmodel.NewGenericParameter(x)
	}
	optrslt, err := statmodel.Maximize(m, newParam, start, settings, m.optmethod)
	if err != nil {
		return nil, err
	}

	param := make([]float64, len(optrslt.X))
	copy(param, optrslt.X)

	vcov, err := statmodel.GetVcov(m, statmodel.NewGenericParameter(param))
	if err != nil {
		return nil, err
	}

	var xna []string
	for k := 1; k < m.nclass; k++ {
		for _, j := range m.xpos {
			xna = append(xna, fmt.Sprintf("%d:%s", k, m.varnames[j]))
		}
	}

	return &MNLogitResults{
		BaseResults: statmodel.NewBaseResults(m, -optrslt.F, param, xna, vcov),
	}, nil
}
