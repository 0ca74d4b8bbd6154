package glm

import (
	"fmt"
	"log"
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/edbonneville/smcfcs/statmodel"
)

// GLM represents a generalized linear model.
type GLM struct {

	// The names of the variables.  The order agrees with the order of 'data'.
	varnames []string

	// The data to which the model is fit
	data [][]statmodel.Dtype

	// Positions of the covariates
	xpos []int

	// Position of the outcome variable
	ypos int

	// Position of the offset variable, -1 if not present.
	offsetpos int

	// Position of the weight variable, -1 if not present.
	weightpos int

	// The GLM family
	fam *Family

	// The GLM link function
	link *Link

	// The GLM variance function
	vari *Variance

	// Starting values, optional
	start []float64

	// Maximum number of IRLS iterations
	maxIter int

	// If not nil, write log messages here
	log *log.Logger

	// Use concurrent calculations in IRLS if the sample size is at least
	// as large as this value.
	concurrentIRLS int

	nslices [][]float64
}

// GLMParams represents the model parameters for a GLM.
type GLMParams struct {
	coeff []float64
	scale float64
}

// GetCoeff returns the coefficients (slopes for individual
// covariates) from the parameter.
func (p *GLMParams) GetCoeff() []float64 {
	return p.coeff
}

// SetCoeff sets the coefficients (slopes for individual covariates)
// for the parameter.
func (p *GLMParams) SetCoeff(coeff []float64) {
	p.coeff = coeff
}

// Clone produces a deep copy of the parameter value.
func (p *GLMParams) Clone() statmodel.Parameter {
	coeff := make([]float64, len(p.coeff))
	copy(coeff, p.coeff)
	return &GLMParams{
		coeff: coeff,
		scale: p.scale,
	}
}

// Config defines configuration parameters for a GLM.
type Config struct {

	// The GLM family
	Family FamilyType

	// Link is the link function, if nil the canonical link of the family is used.
	Link *Link

	// WeightVar is the name of the variable for frequency-weighting the cases, if an empty
	// string, all weights are equal to 1.
	WeightVar string

	// OffsetVar is the name of a variable that defines an offset.
	OffsetVar string

	// Start contains starting values for the regression parameter estimates
	Start []float64

	// MaxIter is the maximum number of IRLS iterations.
	MaxIter int

	// A logger to which logging information is written
	Log *log.Logger

	// ConcurrentIRLS is the minimum sample size for which the IRLS cross
	// products are computed concurrently.
	ConcurrentIRLS int
}

// DefaultConfig returns a default configuration for a GLM of the given family.
func DefaultConfig(fam FamilyType) *Config {
	return &Config{
		Family:         fam,
		MaxIter:        25,
		ConcurrentIRLS: 1000,
	}
}

// NewGLM returns a GLM for the given data.  The outcome and covariates
// are the YName and XNames of the dataset.
func NewGLM(data statmodel.Dataset, config *Config) (*GLM, error) {

	if config == nil {
		config = DefaultConfig(GaussianFamily)
	}

	fam, err := NewFamily(config.Family)
	if err != nil {
		return nil, err
	}

	pos := data.Positions()

	ypos, ok := pos[data.YName()]
	if !ok {
		return nil, fmt.Errorf("outcome variable '%s' not found", data.YName())
	}

	var xpos []int
	for _, xna := range data.XNames() {
		xp, ok := pos[xna]
		if !ok {
			return nil, fmt.Errorf("predictor '%s' not found", xna)
		}
		xpos = append(xpos, xp)
	}

	getpos := func(vn string) (int, error) {
		if vn == "" {
			return -1, nil
		}
		loc, ok := pos[vn]
		if !ok {
			return -1, fmt.Errorf("'%s' not found", vn)
		}
		return loc, nil
	}

	weightpos, err := getpos(config.WeightVar)
	if err != nil {
		return nil, err
	}
	offsetpos, err := getpos(config.OffsetVar)
	if err != nil {
		return nil, err
	}

	glm := &GLM{
		varnames:       data.Names(),
		data:           data.Data(),
		xpos:           xpos,
		ypos:           ypos,
		weightpos:      weightpos,
		offsetpos:      offsetpos,
		fam:            fam,
		link:           config.Link,
		start:          config.Start,
		maxIter:        config.MaxIter,
		log:            config.Log,
		concurrentIRLS: config.ConcurrentIRLS,
	}

	if glm.maxIter <= 0 {
		glm.maxIter = 25
	}

	if glm.link == nil {
		glm.link, _ = NewLink(fam.validLinks[0])
	} else if !fam.IsValidLink(glm.link) {
		return nil, fmt.Errorf("link %s is not valid for family %s", glm.link.Name, fam.Name)
	}

	glm.vari, err = NewVariance(fam.varType)
	if err != nil {
		return nil, err
	}

	if glm.start != nil && len(glm.start) != len(xpos) {
		return nil, fmt.Errorf("GLM: the starting values have length %d, but the model has %d covariates",
			len(glm.start), len(xpos))
	}

	return glm, nil
}

// NumParams returns the number of covariates in the model.
func (glm *GLM) NumParams() int {
	return len(glm.xpos)
}

// NumObs returns the number of observations used to fit the model.
func (glm *GLM) NumObs() int {
	return len(glm.data[glm.ypos])
}

// Xpos returns the positions of the covariates in the model's data.
func (glm *GLM) Xpos() []int {
	return glm.xpos
}

// Dataset returns the data columns that are used to fit the model.
func (glm *GLM) Dataset() [][]statmodel.Dtype {
	return glm.data
}

// Family returns the family of the GLM.
func (glm *GLM) Family() *Family {
	return glm.fam
}

// GLMResults describes the results of a fitted generalized linear model.
type GLMResults struct {
	statmodel.BaseResults

	scale float64
}

// Scale returns the estimated scale parameter.
func (rslt *GLMResults) Scale() float64 {
	return rslt.scale
}

func (glm *GLM) linpred(coeff []float64, linpred []float64) {

	zero(linpred)
	for j, k := range glm.xpos {
		floats.AddScaled(linpred, coeff[j], glm.data[k])
	}
	if glm.offsetpos != -1 {
		floats.Add(linpred, glm.data[glm.offsetpos])
	}
}

func (glm *GLM) weights() []statmodel.Dtype {
	if glm.weightpos == -1 {
		return nil
	}
	return glm.data[glm.weightpos]
}

// LogLike returns the log-likelihood value for the generalized linear
// model at the given parameter values.
func (glm *GLM) LogLike(params statmodel.Parameter, exact bool) float64 {

	gpar := params.(*GLMParams)

	lp := glm.getNslice()
	mn := glm.getNslice()

	glm.linpred(gpar.coeff, lp)
	glm.link.InvLink(lp, mn)
	ll := glm.fam.LogLike(glm.data[glm.ypos], mn, glm.weights(), gpar.scale, exact)

	glm.putNslice(lp)
	glm.putNslice(mn)

	return ll
}

func scoreFactor(yda, mn, deriv, va, sfac []float64) {
	for i, y := range yda {
		sfac[i] = (y - mn[i]) / (deriv[i] * va[i])
	}
}

// Score returns the score vector for the generalized linear model at
// the given parameter values.
func (glm *GLM) Score(params statmodel.Parameter, score []float64) {

	gpar := params.(*GLMParams)

	lp := glm.getNslice()
	mn := glm.getNslice()
	deriv := glm.getNslice()
	va := glm.getNslice()
	fac := glm.getNslice()

	zero(score)
	glm.linpred(gpar.coeff, lp)
	glm.link.InvLink(lp, mn)
	glm.link.Deriv(mn, deriv)
	glm.vari.Var(mn, va)
	scoreFactor(glm.data[glm.ypos], mn, deriv, va, fac)

	if wgts := glm.weights(); wgts != nil {
		floats.Mul(fac, wgts)
	}

	for j, k := range glm.xpos {
		score[j] = floats.Dot(fac, glm.data[k])
	}

	glm.putNslice(lp)
	glm.putNslice(mn)
	glm.putNslice(deriv)
	glm.putNslice(va)
	glm.putNslice(fac)
}

// Hessian returns the Hessian matrix for the model.  The Hessian is
// returned as a one-dimensional array, which is the vectorized form
// of the Hessian matrix.  Either the observed or expected Hessian can
// be calculated.
func (glm *GLM) Hessian(param statmodel.Parameter, ht statmodel.HessType, hess []float64) {

	gpar := param.(*GLMParams)

	nvar := glm.NumParams()
	xdat := make([][]float64, nvar)
	for j, k := range glm.xpos {
		xdat[j] = glm.data[k]
	}
	wgts := glm.weights()

	lp := glm.getNslice()
	mn := glm.getNslice()
	lderiv := glm.getNslice()
	va := glm.getNslice()
	fac := glm.getNslice()

	zero(hess)
	glm.linpred(gpar.coeff, lp)
	glm.link.InvLink(lp, mn)
	glm.link.Deriv(mn, lderiv)
	glm.vari.Var(mn, va)

	// Factor for the expected Hessian
	for i := range lderiv {
		fac[i] = 1 / (lderiv[i] * lderiv[i] * va[i])
	}

	// Adjust the factor for the observed Hessian
	if ht == statmodel.ObsHess {
		vad := glm.getNslice()
		lderiv2 := glm.getNslice()
		sfac := glm.getNslice()
		glm.link.Deriv2(mn, lderiv2)
		glm.vari.Deriv(mn, vad)
		scoreFactor(glm.data[glm.ypos], mn, lderiv, va, sfac)

		for i := range fac {
			h := va[i]*lderiv2[i] + lderiv[i]*vad[i]
			fac[i] *= 1 + h*sfac[i]
		}
		glm.putNslice(vad)
		glm.putNslice(lderiv2)
		glm.putNslice(sfac)
	}

	glm.hessXprod(xdat, fac, wgts, hess)

	// Fill in the upper triangle
	for j1 := 0; j1 < nvar; j1++ {
		for j2 := 0; j2 < j1; j2++ {
			hess[j2*nvar+j1] = hess[j1*nvar+j2]
		}
	}

	glm.putNslice(lp)
	glm.putNslice(mn)
	glm.putNslice(lderiv)
	glm.putNslice(va)
	glm.putNslice(fac)
}

func (glm *GLM) hessXprod(xdat [][]float64, fac, wgts, hess []float64) {

	nvar := len(xdat)

	var wg sync.WaitGroup

	for j1 := 0; j1 < nvar; j1++ {
		for j2 := 0; j2 <= j1; j2++ {

			wg.Add(1)
			go func(j1, j2 int) {
				defer wg.Done()
				x1 := xdat[j1]
				x2 := xdat[j2]
				var u float64
				if wgts == nil {
					for i := range x1 {
						u += fac[i] * x1[i] * x2[i]
					}
				} else {
					for i := range x1 {
						u += wgts[i] * fac[i] * x1[i] * x2[i]
					}
				}
				hess[j1*nvar+j2] = -u
			}(j1, j2)
		}
	}

	wg.Wait()
}

// Fit estimates the parameters of the GLM using iteratively
// reweighted least squares, and returns a results object.
func (glm *GLM) Fit() (*GLMResults, error) {

	start := glm.start
	if start == nil {
		start = make([]float64, glm.NumParams())
	}

	if glm.log != nil {
		glm.log.Printf("Fitting %s GLM using IRLS\n", glm.fam.Name)
	}

	params, err := glm.fitIRLS(start, glm.maxIter)
	if err != nil {
		return nil, err
	}

	for _, x := range params {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("GLM: IRLS produced non-finite parameter estimates")
		}
	}

	scale := glm.EstimateScale(params)

	vcov, err := statmodel.GetVcov(glm, &GLMParams{params, scale})
	if err != nil {
		return nil, err
	}
	floats.Scale(scale, vcov)

	ll := glm.LogLike(&GLMParams{params, scale}, true)

	var xna []string
	for _, j := range glm.xpos {
		xna = append(xna, glm.varnames[j])
	}

	results := &GLMResults{
		BaseResults: statmodel.NewBaseResults(glm, ll, params, xna, vcov),
		scale:       scale,
	}

	return results, nil
}

// EstimateScale returns an estimate of the GLM scale parameter at the
// given parameter values.
func (glm *GLM) EstimateScale(params []float64) float64 {

	if !glm.fam.freeScale {
		return 1
	}

	lp := glm.getNslice()
	mn := glm.getNslice()
	va := glm.getNslice()

	glm.linpred(params, lp)
	glm.link.InvLink(lp, mn)
	glm.vari.Var(mn, va)

	wgt := glm.weights()
	var scale, ws float64
	for i, y := range glm.data[glm.ypos] {
		r := y - mn[i]
		if wgt == nil {
			scale += r * r / va[i]
			ws++
		} else {
			scale += wgt[i] * r * r / va[i]
			ws += wgt[i]
		}
	}

	glm.putNslice(lp)
	glm.putNslice(mn)
	glm.putNslice(va)

	return scale / (ws - float64(glm.NumParams()))
}

func (glm *GLM) putNslice(x []float64) {
	glm.nslices = append(glm.nslices, x)
}

func (glm *GLM) getNslice() []float64 {

	if len(glm.nslices) == 0 {
		return make([]float64, glm.NumObs())
	}
	q := len(glm.nslices) - 1
	x := glm.nslices[q]
	zero(x)
	glm.nslices = glm.nslices[0:q]

	return x
}

// zero sets all elements of the slice to 0
func zero(x []float64) {
	for i := range x {
		x[i] = 0
	}
}

// one sets all elements of the slice to 1
func one(x []float64) {
	for i := range x {
		x[i] = 1
	}
}

// GLMSummary summarizes a fitted generalized linear model.
type GLMSummary struct {

	// The GLM
	glm *GLM

	// The results structure
	results *GLMResults

	// Messages that are appended to the table
	messages []string
}

// String returns a string representation of a summary table for the model.
func (gs *GLMSummary) String() string {

	sum := &statmodel.SummaryTable{
		Msg:   gs.messages,
		Title: "Generalized linear model analysis",
	}

	sum.Top = []string{
		fmt.Sprintf("Family:   %s", gs.glm.fam.Name),
		fmt.Sprintf("Link:     %s", gs.glm.link.Name),
		fmt.Sprintf("Variance: %s", gs.glm.vari.Name),
		fmt.Sprintf("Num obs:  %d", gs.glm.NumObs()),
		fmt.Sprintf("Scale:    %f", gs.results.scale),
	}

	sum.ColNames = []string{"Variable   ", "Parameter", "SE", "LCB", "UCB", "Z-score", "P-value"}
	fs, fn := statmodel.FormatStrings, statmodel.FormatFloats
	sum.ColFmt = []statmodel.Fmter{fs, fn, fn, fn, fn, fn, fn}

	// Create estimate and CI for the parameters
	var lcb, ucb []float64
	pax := gs.results.Params()
	se := gs.results.StdErr()
	for j := range pax {
		lcb = append(lcb, pax[j]-2*se[j])
		ucb = append(ucb, pax[j]+2*se[j])
	}

	sum.Cols = []interface{}{
		gs.results.Names(),
		pax,
		se,
		lcb,
		ucb,
		gs.results.ZScores(),
		gs.results.PValues(),
	}

	return sum.String()
}

// Summary displays a summary table of the model results.
func (rslt *GLMResults) Summary() *GLMSummary {

	glm := rslt.Model().(*GLM)

	return &GLMSummary{
		glm:     glm,
		results: rslt,
	}
}
