package duration

import (
	"fmt"
	"log"
	"math"
	"sort"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/edbonneville/smcfcs/statmodel"
)

// FlexSurv is a Royston-Parmar flexible parametric proportional hazards
// model.  The log cumulative hazard is a restricted cubic spline in log
// time plus a linear predictor:
//
//	log H(t|x) = s(log t) + x'b
//
// The spline s has boundary knots at the smallest and largest log event
// times and interior knots at quantiles of the log event times.  The
// parameter vector holds the spline coefficients followed by the
// regression coefficients b.
type FlexSurv struct {

	// The names of the variables.  The order agrees with the order of 'data'.
	varnames []string

	// The data to which the model is fit
	data [][]statmodel.Dtype

	timepos   int
	statuspos int
	weightpos int
	xpos      []int

	// Knot locations on the log time scale: the lower boundary knot,
	// the interior knots, and the upper boundary knot.
	knots []float64

	// Spline basis and its derivative evaluated at each log time
	basis  [][]float64
	dbasis [][]float64

	start       []float64
	optsettings *optimize.Settings
	optmethod   optimize.Method
	log         *log.Logger
}

// FlexSurvConfig contains configuration parameters for a flexible
// parametric survival model.
type FlexSurvConfig struct {

	// Knots is the number of interior knots of the spline.
	Knots int

	// WeightVar is the name of a variable containing case weights.
	WeightVar string

	// Start contains optional starting values.
	Start []float64

	// A logger to which logging information is written
	Log *log.Logger

	// OptMethod is the Gonum optimization used to fit the model.
	OptMethod optimize.Method

	// OptSettings configures the Gonum optimization routine.
	OptSettings *optimize.Settings
}

// DefaultFlexSurvConfig returns the default configuration, with two
// interior knots.
func DefaultFlexSurvConfig() *FlexSurvConfig {
	return &FlexSurvConfig{
		Knots: 2,
		OptMethod: &optimize.BFGS{
			Linesearcher: &optimize.MoreThuente{},
		},
	}
}

// NewFlexSurv returns a flexible parametric survival model for the given
// time and status variables and predictors.
func NewFlexSurv(data statmodel.Dataset, time, status string, predictors []string, config *FlexSurvConfig) (*FlexSurv, error) {

	if config == nil {
		config = DefaultFlexSurvConfig()
	}
	if config.Knots < 0 {
		return nil, fmt.Errorf("FlexSurv: the number of knots must be non-negative")
	}

	pos := data.Positions()

	timepos, ok := pos[time]
	if !ok {
		return nil, fmt.Errorf("FlexSurv: time variable '%s' not found in dataset", time)
	}
	statuspos, ok := pos[status]
	if !ok {
		return nil, fmt.Errorf("FlexSurv: status variable '%s' not found in dataset", status)
	}

	var xpos []int
	for _, xna := range predictors {
		xp, ok := pos[xna]
		if !ok {
			return nil, fmt.Errorf("FlexSurv: predictor '%s' not found in dataset", xna)
		}
		xpos = append(xpos, xp)
	}

	weightpos := -1
	if config.WeightVar != "" {
		weightpos, ok = pos[config.WeightVar]
		if !ok {
			return nil, fmt.Errorf("FlexSurv: weight variable '%s' not found in dataset", config.WeightVar)
		}
	}

	fs := &FlexSurv{
		varnames:    data.Names(),
		data:        data.Data(),
		timepos:     timepos,
		statuspos:   statuspos,
		weightpos:   weightpos,
		xpos:        xpos,
		start:       config.Start,
		optsettings: config.OptSettings,
		optmethod:   config.OptMethod,
		log:         config.Log,
	}

	if fs.optmethod == nil {
		fs.optmethod = &optimize.BFGS{Linesearcher: &optimize.MoreThuente{}}
	}

	if err := fs.setupKnots(config.Knots); err != nil {
		return nil, err
	}

	if fs.start != nil && len(fs.start) != fs.NumParams() {
		return nil, fmt.Errorf("FlexSurv: the starting values have length %d, expected %d",
			len(fs.start), fs.NumParams())
	}

	return fs, nil
}

func (fs *FlexSurv) setupKnots(nknots int) error {

	time := fs.data[fs.timepos]
	status := fs.data[fs.statuspos]

	var lt []float64
	for i, t := range time {
		if !(t > 0) {
			return fmt.Errorf("FlexSurv: times must be positive, found %v", t)
		}
		switch status[i] {
		case 1:
			lt = append(lt, math.Log(t))
		case 0:
		default:
			return fmt.Errorf("FlexSurv: status variable has values other than 0 and 1")
		}
	}

	if len(lt) < 2 {
		return fmt.Errorf("FlexSurv: at least two events are needed, found %d", len(lt))
	}

	sort.Float64s(lt)
	if lt[0] == lt[len(lt)-1] {
		return fmt.Errorf("FlexSurv: all event times are equal")
	}

	fs.knots = []float64{lt[0]}
	for j := 1; j <= nknots; j++ {
		p := float64(j) / float64(nknots+1)
		fs.knots = append(fs.knots, stat.Quantile(p, stat.LinInterp, lt, nil))
	}
	fs.knots = append(fs.knots, lt[len(lt)-1])

	fs.basis = make([][]float64, len(time))
	fs.dbasis = make([][]float64, len(time))
	for i, t := range time {
		u := math.Log(t)
		fs.basis[i] = fs.splineBasis(u, nil)
		fs.dbasis[i] = fs.splineDeriv(u, nil)
	}

	return nil
}

// Knots returns the boundary and interior knots on the log time scale.
func (fs *FlexSurv) Knots() []float64 {
	return fs.knots
}

func cube(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return x * x * x
}

func square(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return x * x
}

// splineBasis evaluates the restricted cubic spline basis (1, u, v_1, ..., v_K) at u.
func (fs *FlexSurv) splineBasis(u float64, b []float64) []float64 {

	nk := len(fs.knots)
	kmin, kmax := fs.knots[0], fs.knots[nk-1]
	b = append(b[:0], 1, u)
	for _, kj := range fs.knots[1 : nk-1] {
		lam := (kmax - kj) / (kmax - kmin)
		b = append(b, cube(u-kj)-lam*cube(u-kmin)-(1-lam)*cube(u-kmax))
	}
	return b
}

// splineDeriv evaluates the derivative of the spline basis with respect to u.
func (fs *FlexSurv) splineDeriv(u float64, b []float64) []float64 {

	nk := len(fs.knots)
	kmin, kmax := fs.knots[0], fs.knots[nk-1]
	b = append(b[:0], 0, 1)
	for _, kj := range fs.knots[1 : nk-1] {
		lam := (kmax - kj) / (kmax - kmin)
		b = append(b, 3*(square(u-kj)-lam*square(u-kmin)-(1-lam)*square(u-kmax)))
	}
	return b
}

// NumSpline returns the number of spline coefficients.
func (fs *FlexSurv) NumSpline() int {
	return len(fs.knots)
}

// NumParams returns the number of spline and regression coefficients.
func (fs *FlexSurv) NumParams() int {
	return len(fs.knots) + len(fs.xpos)
}

// NumObs returns the number of observations.
func (fs *FlexSurv) NumObs() int {
	return len(fs.data[fs.timepos])
}

// Xpos returns the positions of the covariates.  The spline coefficients
// do not correspond to columns of the dataset.
func (fs *FlexSurv) Xpos() []int {
	return fs.xpos
}

// Dataset returns the data columns.
func (fs *FlexSurv) Dataset() [][]statmodel.Dtype {
	return fs.data
}

func (fs *FlexSurv) weight(i int) float64 {
	if fs.weightpos == -1 {
		return 1
	}
	return fs.data[fs.weightpos][i]
}

// Smallest spline slope used in the log-likelihood, so that parameter
// values with a decreasing cumulative hazard are penalized rather than
// infeasible.
const minSlope = 1e-10

// terms returns the log cumulative hazard and the spline slope for case i.
func (fs *FlexSurv) terms(coeff []float64, i int) (float64, float64) {

	q := len(fs.knots)
	lh := floats.Dot(coeff[0:q], fs.basis[i])
	ds := floats.Dot(coeff[0:q], fs.dbasis[i])
	for j, k := range fs.xpos {
		lh += coeff[q+j] * fs.data[k][i]
	}

	return lh, ds
}

// LogLike returns the log-likelihood at the given parameter.  The 'exact'
// parameter is ignored.
func (fs *FlexSurv) LogLike(param statmodel.Parameter, exact bool) float64 {

	coeff := param.GetCoeff()
	time := fs.data[fs.timepos]
	status := fs.data[fs.statuspos]

	var ll float64
	for i := range time {
		lh, ds := fs.terms(coeff, i)
		w := fs.weight(i)
		if status[i] == 1 {
			ll += w * (math.Log(math.Max(ds, minSlope)) - math.Log(time[i]) + lh)
		}
		ll -= w * math.Exp(lh)
	}

	return ll
}

// Score computes the score vector at the given parameter.
func (fs *FlexSurv) Score(param statmodel.Parameter, score []float64) {

	coeff := param.GetCoeff()
	status := fs.data[fs.statuspos]
	q := len(fs.knots)

	zero(score)
	for i := range status {
		lh, ds := fs.terms(coeff, i)
		w := fs.weight(i)
		elh := math.Exp(lh)

		r := -elh
		if status[i] == 1 {
			r++
		}

		floats.AddScaled(score[0:q], w*r, fs.basis[i])
		if status[i] == 1 && ds > minSlope {
			floats.AddScaled(score[0:q], w/ds, fs.dbasis[i])
		}
		for j, k := range fs.xpos {
			score[q+j] += w * r * fs.data[k][i]
		}
	}
}

// Hessian computes the Hessian matrix by numerically differentiating the
// score.  The Hessian type parameter is not used.
func (fs *FlexSurv) Hessian(param statmodel.Parameter, ht statmodel.HessType, hess []float64) {

	p := fs.NumParams()
	grad := func(y, x []float64) {
		fs.Score(&PHParameter{x}, y)
	}

	coeff := make([]float64, p)
	copy(coeff, param.GetCoeff())

	jac := mat.NewDense(p, p, hess)
	fd.Jacobian(jac, grad, coeff, &fd.JacobianSettings{
		Formula: fd.Central,
	})

	// Symmetrize
	for j1 := 0; j1 < p; j1++ {
		for j2 := 0; j2 < j1; j2++ {
			u := (hess[j1*p+j2] + hess[j2*p+j1]) / 2
			hess[j1*p+j2] = u
			hess[j2*p+j1] = u
		}
	}
}

// startValues returns the parameters of the exponential model with the
// same event rate and no covariate effects.
func (fs *FlexSurv) startValues() []float64 {

	time := fs.data[fs.timepos]
	status := fs.data[fs.statuspos]

	var d, tt float64
	for i, t := range time {
		w := fs.weight(i)
		d += w * status[i]
		tt += w * t
	}

	start := make([]float64, fs.NumParams())
	start[0] = math.Log(d / tt)
	start[1] = 1

	return start
}

// FlexSurvResults describes the results of a fitted flexible parametric
// survival model.
type FlexSurvResults struct {
	statmodel.BaseResults
}

// Fit estimates the model parameters by maximum likelihood.
func (fs *FlexSurv) Fit() (*FlexSurvResults, error) {

	start := fs.start
	if start == nil {
		start = fs.startValues()
	}

	settings := fs.optsettings
	if settings == nil {
		settings = &optimize.Settings{
			GradientThreshold: 1e-6,
		}
	}

	if fs.log != nil {
		fs.log.Printf("Fitting flexible parametric model with knots %v\n", fs.knots)
	}

	optrslt, err := statmodel.Maximize(fs, newPHParameter, start, settings, fs.optmethod)
	if err != nil {
		return nil, err
	}

	param := make([]float64, len(optrslt.X))
	copy(param, optrslt.X)

	vcov, err := statmodel.GetVcov(fs, &PHParameter{param})
	if err != nil {
		return nil, err
	}

	var xna []string
	for j := range fs.knots {
		xna = append(xna, fmt.Sprintf("gamma%d", j))
	}
	for _, k := range fs.xpos {
		xna = append(xna, fs.varnames[k])
	}

	return &FlexSurvResults{
		BaseResults: statmodel.NewBaseResults(fs, -optrslt.F, param, xna, vcov),
	}, nil
}

// LogBaselineCumHaz returns the spline s(log t) at the given spline
// coefficients, the log of the baseline cumulative hazard at time t.
func (fs *FlexSurv) LogBaselineCumHaz(gamma []float64, t float64) float64 {
	b := fs.splineBasis(math.Log(t), make([]float64, 0, len(fs.knots)))
	return floats.Dot(gamma[0:len(fs.knots)], b)
}

// BaselineCumHaz returns the baseline cumulative hazard at time t.
func (fs *FlexSurv) BaselineCumHaz(gamma []float64, t float64) float64 {
	return math.Exp(fs.LogBaselineCumHaz(gamma, t))
}

// InvBaselineCumHaz returns the time t at which the baseline cumulative
// hazard equals h, found by bisection on the log time scale.  The
// spline is assumed to be increasing.
func (fs *FlexSurv) InvBaselineCumHaz(gamma []float64, h float64) float64 {

	target := math.Log(h)
	nk := len(fs.knots)
	width := fs.knots[nk-1] - fs.knots[0]

	lo, hi := fs.knots[0]-width, fs.knots[nk-1]+width
	f := func(u float64) float64 {
		b := fs.splineBasis(u, make([]float64, 0, nk))
		return floats.Dot(gamma[0:nk], b) - target
	}

	// Widen the bracket until it contains the root
	for i := 0; f(lo) > 0 && i < 60; i++ {
		lo -= width * float64(i+1)
	}
	for i := 0; f(hi) < 0 && i < 60; i++ {
		hi += width * float64(i+1)
	}

	for i := 0; i < 100 && hi-lo > 1e-10; i++ {
		mid := (lo + hi) / 2
		if f(mid) < 0 {
			lo = mid
		} else {
			hi = mid
		}
	}

	return math.Exp((lo + hi) / 2)
}
