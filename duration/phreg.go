// Package duration supports regression analysis of duration data
// (survival analysis): the proportional hazards model and the
// Royston-Parmar flexible parametric survival model.
package duration

import (
	"fmt"
	"log"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"github.com/edbonneville/smcfcs/statmodel"
)

// PHParameter contains a parameter value for a proportional hazards
// regression model.
type PHParameter struct {
	coeff []float64
}

// GetCoeff returns the array of model coefficients from a parameter value.
func (p *PHParameter) GetCoeff() []float64 {
	return p.coeff
}

// SetCoeff sets the array of model coefficients for a parameter value.
func (p *PHParameter) SetCoeff(x []float64) {
	p.coeff = x
}

// Clone returns a deep copy of the parameter value.
func (p *PHParameter) Clone() statmodel.Parameter {
	q := make([]float64, len(p.coeff))
	copy(q, p.coeff)
	return &PHParameter{q}
}

// PHReg describes a proportional hazards regression model for right
// censored data.
type PHReg struct {

	// The names of the variables.  The order agrees with the order of 'data'.
	varnames []string

	// The data to which the model is fit, sorted by stratum.  Columns
	// that are not used by the model are nil.
	data [][]statmodel.Dtype

	// perm[i] is the row of the caller's data that is stored in row i of 'data'
	perm []int

	// Starting values, optional
	start []float64

	// Position of the event variable
	statuspos int

	// Position of the time variable
	timepos int

	// Position of the entry time variable
	entrypos int

	// Position of an offset variable
	offsetpos int

	// Position of a case weight variable
	weightpos int

	// Position of a stratum variable
	stratapos int

	// Start and end position of the strata
	stratumix [][2]int

	// The sorted times at which events occur in each stratum
	etimes [][]float64

	// enter[i][j] are the row indices that enter the risk set at
	// the jth distinct time in stratum i
	enter [][][]int

	// event[i][j] are the row indices that have an event at
	// the jth distinct time in stratum i
	event [][][]int

	// exit[i][j] are the row indices that exit the risk set at
	// the jth distinct time in stratum i
	exit [][][]int

	// The sum of covariates with events in each stratum
	sumx [][]float64

	// The positions of the covariates
	xpos []int

	// If skip[i] is true, case i is skipped since it is censored before the first event.
	skip []bool

	// The number of cases that are skipped because they are censored before the first event
	skipEarlyCensor int

	// Optimization settings
	optsettings *optimize.Settings

	// Optimization method
	optmethod optimize.Method

	log *log.Logger

	nslices [][]float64
}

// NumObs returns the number of observations in the data set.
func (ph *PHReg) NumObs() int {
	return len(ph.data[ph.timepos])
}

// NumParams returns the number of model parameters (regression coefficients).
func (ph *PHReg) NumParams() int {
	return len(ph.xpos)
}

// Xpos returns the positions of the covariates in the model's dataset.
func (ph *PHReg) Xpos() []int {
	return ph.xpos
}

// Dataset returns the data columns that are used to fit the model, in
// stratum order.
func (ph *PHReg) Dataset() [][]statmodel.Dtype {
	return ph.data
}

// NumStrata returns the number of strata.
func (ph *PHReg) NumStrata() int {
	return len(ph.stratumix)
}

// PHRegConfig defines configuration parameters for a proportional hazards regression.
type PHRegConfig struct {

	// A logger to which logging information is written
	Log *log.Logger

	// WeightVar is the name of a variable containing case weights.
	WeightVar string

	// StrataVar is the name of a variable whose distinct values
	// define the strata.
	StrataVar string

	// OffsetVar is the name of a variable containing an offset.
	OffsetVar string

	// EntryVar is the name of a variable containing delayed
	// entry times.
	EntryVar string

	// Start contains optional starting values.
	Start []float64

	// OptMethod is the Gonum optimization used to fit the model.
	OptMethod optimize.Method

	// OptSettings configures the Gonum optimization routine.
	OptSettings *optimize.Settings
}

// DefaultPHRegConfig returns a default configuration struct for a proportional hazards regression.
func DefaultPHRegConfig() *PHRegConfig {

	return &PHRegConfig{
		OptMethod: &optimize.BFGS{
			Linesearcher: &optimize.MoreThuente{},
		},
	}
}

// NewPHReg returns a PHReg value that can be used to fit a
// proportional hazards regression model.  The caller's data columns
// are not modified.
func NewPHReg(data statmodel.Dataset, time, status string, predictors []string, config *PHRegConfig) (*PHReg, error) {

	if config == nil {
		config = DefaultPHRegConfig()
	}

	pos := data.Positions()

	timepos, ok := pos[time]
	if !ok {
		return nil, fmt.Errorf("PHReg: time variable '%s' not found in dataset", time)
	}

	statuspos, ok := pos[status]
	if !ok {
		return nil, fmt.Errorf("PHReg: status variable '%s' not found in dataset", status)
	}

	var xpos []int
	for _, xna := range predictors {
		xp, ok := pos[xna]
		if !ok {
			return nil, fmt.Errorf("PHReg: predictor '%s' not found in dataset", xna)
		}
		xpos = append(xpos, xp)
	}

	getpos := func(vn string) (int, error) {
		if vn == "" {
			return -1, nil
		}
		loc, ok := pos[vn]
		if !ok {
			return -1, fmt.Errorf("PHReg: '%s' not found in dataset", vn)
		}
		return loc, nil
	}

	var err error
	var weightpos, stratapos, offsetpos, entrypos int
	if weightpos, err = getpos(config.WeightVar); err != nil {
		return nil, err
	}
	if stratapos, err = getpos(config.StrataVar); err != nil {
		return nil, err
	}
	if offsetpos, err = getpos(config.OffsetVar); err != nil {
		return nil, err
	}
	if entrypos, err = getpos(config.EntryVar); err != nil {
		return nil, err
	}

	optmethod := config.OptMethod
	if optmethod == nil {
		optmethod = &optimize.BFGS{Linesearcher: &optimize.MoreThuente{}}
	}

	ph := &PHReg{
		data:        data.Data(),
		varnames:    data.Names(),
		timepos:     timepos,
		statuspos:   statuspos,
		xpos:        xpos,
		weightpos:   weightpos,
		offsetpos:   offsetpos,
		entrypos:    entrypos,
		stratapos:   stratapos,
		start:       config.Start,
		log:         config.Log,
		optsettings: config.OptSettings,
		optmethod:   optmethod,
	}

	if ph.start != nil && len(ph.start) != len(xpos) {
		return nil, fmt.Errorf("PHReg: the starting values have length %d, but the model has %d covariates",
			len(ph.start), len(xpos))
	}

	if err := ph.init(); err != nil {
		return nil, err
	}

	return ph, nil
}

func (ph *PHReg) init() error {
	ph.sortByStratum()
	if err := ph.setupTimes(); err != nil {
		return err
	}
	ph.setupCovs()
	return nil
}

type argsort struct {
	s    []statmodel.Dtype
	inds []int
}

func (a argsort) Len() int {
	return len(a.s)
}

func (a argsort) Swap(i, j int) {
	a.s[i], a.s[j] = a.s[j], a.s[i]
	a.inds[i], a.inds[j] = a.inds[j], a.inds[i]
}

func (a argsort) Less(i, j int) bool {
	return a.s[i] < a.s[j]
}

// sortByStratum replaces the data columns used by the model with copies
// that are sorted by stratum.
func (ph *PHReg) sortByStratum() {

	nobs := len(ph.data[ph.timepos])

	inds := make([]int, nobs)
	for i := range inds {
		inds[i] = i
	}

	if ph.stratapos != -1 {
		strata := make([]statmodel.Dtype, nobs)
		copy(strata, ph.data[ph.stratapos])
		sort.Stable(argsort{s: strata, inds: inds})
	}
	ph.perm = inds

	data := make([][]statmodel.Dtype, len(ph.data))
	re := func(pos int) {
		if pos == -1 || data[pos] != nil {
			return
		}
		x := ph.data[pos]
		y := make([]statmodel.Dtype, nobs)
		for i, j := range inds {
			y[i] = x[j]
		}
		data[pos] = y
	}

	re(ph.timepos)
	re(ph.statuspos)
	re(ph.offsetpos)
	re(ph.weightpos)
	re(ph.entrypos)
	re(ph.stratapos)
	for _, k := range ph.xpos {
		re(k)
	}
	ph.data = data

	if ph.stratapos == -1 {
		ph.stratumix = [][2]int{{0, nobs}}
		return
	}

	strata := ph.data[ph.stratapos]
	var i0 int
	for i := 0; i <= len(strata); i++ {
		if i == len(strata) || (i > 0 && strata[i-1] != strata[i]) {
			ph.stratumix = append(ph.stratumix, [2]int{i0, i})
			i0 = i
		}
	}
}

func (ph *PHReg) setupTimes() error {

	ph.skipEarlyCensor = 0

	time := ph.data[ph.timepos]
	status := ph.data[ph.statuspos]
	nobs := len(time)

	// Track cases that are omitted since they are
	// censored before the first event in their stratum.
	ph.skip = make([]bool, nobs)

	// Get the sorted distinct times where events occur
	for _, ix := range ph.stratumix {

		var et []float64

		for i := ix[0]; i < ix[1]; i++ {
			if time[i] < 0 || math.IsNaN(time[i]) {
				return fmt.Errorf("PHReg: invalid time value %v", time[i])
			}
			if status[i] == 1 {
				et = append(et, time[i])
			} else if status[i] != 0 {
				return fmt.Errorf("PHReg: status variable '%s' has values other than 0 and 1",
					ph.varnames[ph.statuspos])
			}
		}

		if len(et) > 0 {
			sort.Float64s(et)

			// Deduplicate
			j := 0
			for i := 1; i < len(et); i++ {
				if et[i] != et[j] {
					j++
					et[j] = et[i]
				}
			}
			et = et[0 : j+1]
		}
		ph.etimes = append(ph.etimes, et)

		// Indices of cases that enter or exit the risk set,
		// or have an event at each time point.
		enter := make([][]int, len(et))
		exit := make([][]int, len(et))
		event := make([][]int, len(et))
		ph.enter = append(ph.enter, enter)
		ph.exit = append(ph.exit, exit)
		ph.event = append(ph.event, event)

		// No events in this stratum
		if len(et) == 0 {
			for i := ix[0]; i < ix[1]; i++ {
				ph.skip[i] = true
			}
			continue
		}

		// Risk set exit times
		for i := ix[0]; i < ix[1]; i++ {
			ii := sort.SearchFloat64s(et, time[i])
			if ii == len(et) {
				// Censored after last event, never exits
				continue
			} else if et[ii] == time[i] {
				// Event or censored at an event time
				exit[ii] = append(exit[ii], i)
			} else if ii == 0 {
				// Censored before first event, never enters
				ph.skip[i] = true
				ph.skipEarlyCensor++
			} else {
				// Censored between event times
				exit[ii-1] = append(exit[ii-1], i)
			}
		}

		// Event times
		for i := ix[0]; i < ix[1]; i++ {
			if status[i] == 0 || ph.skip[i] {
				continue
			}
			ii := sort.SearchFloat64s(et, time[i])
			event[ii] = append(event[ii], i)
		}

		// Risk set entry times
		if ph.entrypos == -1 {
			// Everyone enters at time 0
			for i := ix[0]; i < ix[1]; i++ {
				if !ph.skip[i] {
					enter[0] = append(enter[0], i)
				}
			}
		} else {
			entry := ph.data[ph.entrypos]
			for i := ix[0]; i < ix[1]; i++ {
				if ph.skip[i] {
					continue
				}
				t := entry[i]
				if t > time[i] {
					return fmt.Errorf("PHReg: entry times may not occur after event or censoring times")
				}
				if t < 0 {
					return fmt.Errorf("PHReg: entry times may not be negative")
				}
				ii := sort.SearchFloat64s(et, t)
				if ii < len(et) {
					// Enter on or between event times
					enter[ii] = append(enter[ii], i)
				}
			}
		}
	}

	return nil
}

func (ph *PHReg) putNslice(x []float64) {
	ph.nslices = append(ph.nslices, x)
}

func (ph *PHReg) getNslice() []float64 {

	if len(ph.nslices) == 0 {
		return make([]float64, ph.NumObs())
	}
	q := len(ph.nslices) - 1
	x := ph.nslices[q]
	zero(x)
	ph.nslices = ph.nslices[0:q]

	return x
}

func (ph *PHReg) weights() []statmodel.Dtype {
	if ph.weightpos == -1 {
		return nil
	}
	return ph.data[ph.weightpos]
}

func (ph *PHReg) setupCovs() {

	ph.sumx = ph.sumx[0:0]
	status := ph.data[ph.statuspos]
	wgt := ph.weights()

	// Get the sum of covariates in each stratum,
	// including only covariates for cases with the event
	for _, ix := range ph.stratumix {
		sumx := make([]float64, len(ph.xpos))
		for j, k := range ph.xpos {
			x := ph.data[k]
			for i := ix[0]; i < ix[1]; i++ {
				if !ph.skip[i] && status[i] == 1 {
					if wgt == nil {
						sumx[j] += x[i]
					} else {
						sumx[j] += wgt[i] * x[i]
					}
				}
			}
		}
		ph.sumx = append(ph.sumx, sumx)
	}
}

// linpred computes the linear predictor, including the offset, in stratum order.
func (ph *PHReg) linpred(params []float64, lp []float64) {

	zero(lp)
	for j, k := range ph.xpos {
		floats.AddScaled(lp, params[j], ph.data[k])
	}

	if ph.offsetpos != -1 {
		floats.Add(lp, ph.data[ph.offsetpos])
	}
}

// LogLike returns the log-likelihood at the given parameter value. The 'exact'
// parameter is ignored here.
func (ph *PHReg) LogLike(param statmodel.Parameter, exact bool) float64 {
	return ph.breslowLogLike(param.GetCoeff())
}

// breslowLogLike returns the log-likelihood value for the
// proportional hazards regression model at the given parameter
// values, using the Breslow method to resolve ties.
func (ph *PHReg) breslowLogLike(params []float64) float64 {

	wgt := ph.weights()

	lp := ph.getNslice()
	elp := ph.getNslice()

	ph.linpred(params, lp)

	ql := float64(0)
	for s, ix := range ph.stratumix {

		if len(ph.etimes[s]) == 0 {
			continue
		}

		// We can add any constant here due to invariance in
		// the partial likelihood.
		mx := floats.Max(lp[ix[0]:ix[1]])
		for i := ix[0]; i < ix[1]; i++ {
			lp[i] -= mx
			elp[i] = math.Exp(lp[i])
		}
		if wgt != nil {
			for i := ix[0]; i < ix[1]; i++ {
				lp[i] *= wgt[i]
				elp[i] *= wgt[i]
			}
		}

		rlp := float64(0)
		for k := 0; k < len(ph.etimes[s]); k++ {

			// Update for new entries
			for _, i := range ph.enter[s][k] {
				rlp += elp[i]
			}

			for _, i := range ph.event[s][k] {
				ql += lp[i]
			}

			ql -= ph.eventWeight(s, k) * math.Log(rlp)

			// Update for new exits
			for _, i := range ph.exit[s][k] {
				rlp -= elp[i]
			}
		}
	}

	ph.putNslice(lp)
	ph.putNslice(elp)

	return ql
}

// eventWeight returns the (weighted) number of events at the k'th event
// time of stratum s.
func (ph *PHReg) eventWeight(s, k int) float64 {
	wgt := ph.weights()
	if wgt == nil {
		return float64(len(ph.event[s][k]))
	}
	var d float64
	for _, i := range ph.event[s][k] {
		d += wgt[i]
	}
	return d
}

// BaselineCumHaz returns the Breslow estimator of the baseline cumulative
// hazard function for the given stratum.  The estimate is a right-continuous
// step function that jumps at the returned event times; the second
// returned slice holds its value at each event time.
func (ph *PHReg) BaselineCumHaz(stratum int, params []float64) ([]float64, []float64) {

	wgt := ph.weights()

	lp := ph.getNslice()
	ph.linpred(params, lp)

	h := make([]float64, len(ph.etimes[stratum]))

	var rlp, cum float64
	for k := range ph.etimes[stratum] {

		// Update for new entries
		for _, i := range ph.enter[stratum][k] {
			e := math.Exp(lp[i])
			if wgt != nil {
				e *= wgt[i]
			}
			rlp += e
		}

		cum += ph.eventWeight(stratum, k) / rlp
		h[k] = cum

		// Update for new exits
		for _, i := range ph.exit[stratum][k] {
			e := math.Exp(lp[i])
			if wgt != nil {
				e *= wgt[i]
			}
			rlp -= e
		}
	}
	ph.putNslice(lp)

	return ph.etimes[stratum], h
}

// StepValue evaluates the right-continuous step function with jumps at
// the sorted times, taking the value y[k] on [times[k], times[k+1]).
// The value before the first jump is zero.
func StepValue(times, y []float64, t float64) float64 {
	k := sort.Search(len(times), func(i int) bool { return times[i] > t })
	if k == 0 {
		return 0
	}
	return y[k-1]
}

// BaselineCumHazAt returns the baseline cumulative hazard of each case
// in its own stratum, evaluated at the case's time.  The values are in
// the row order of the caller's data.
func (ph *PHReg) BaselineCumHazAt(params []float64) []float64 {

	time := ph.data[ph.timepos]
	h := make([]float64, ph.NumObs())

	for s, ix := range ph.stratumix {
		et, ch := ph.BaselineCumHaz(s, params)
		for i := ix[0]; i < ix[1]; i++ {
			h[ph.perm[i]] = StepValue(et, ch, time[i])
		}
	}

	return h
}

func zero(x []float64) {
	for i := range x {
		x[i] = 0
	}
}

// Score computes the score vector for the proportional hazards
// regression model at the given parameter setting.
func (ph *PHReg) Score(params statmodel.Parameter, score []float64) {
	ph.breslowScore(params.GetCoeff(), score)
}

// breslowScore calculates the score vector for the proportional
// hazards regression model at the given parameter values, using the
// Breslow approach to resolving ties.
func (ph *PHReg) breslowScore(params, score []float64) {

	zero(score)

	wgt := ph.weights()

	lp := ph.getNslice()
	ph.linpred(params, lp)

	for s, ix := range ph.stratumix {

		if len(ph.etimes[s]) == 0 {
			continue
		}

		for j := 0; j < len(ph.xpos); j++ {
			score[j] += ph.sumx[s][j]
		}

		// We can add any constant here due to invariance in
		// the partial likelihood.
		mx := floats.Max(lp[ix[0]:ix[1]])
		for i := ix[0]; i < ix[1]; i++ {
			lp[i] = math.Exp(lp[i] - mx)
		}
		if wgt != nil {
			for i := ix[0]; i < ix[1]; i++ {
				lp[i] *= wgt[i]
			}
		}

		rlp := float64(0)
		rlpv := make([]float64, len(ph.xpos))
		for q := range ph.etimes[s] {

			// Update for new entries
			for _, i := range ph.enter[s][q] {
				rlp += lp[i]
				for j, k := range ph.xpos {
					rlpv[j] += lp[i] * ph.data[k][i]
				}
			}

			d := ph.eventWeight(s, q)
			floats.AddScaledTo(score, score, -d/rlp, rlpv)

			// Update for new exits
			for _, i := range ph.exit[s][q] {
				rlp -= lp[i]
				for j, k := range ph.xpos {
					rlpv[j] -= lp[i] * ph.data[k][i]
				}
			}
		}
	}

	ph.putNslice(lp)
}

// Hessian computes the Hessian matrix for the model evaluated at the
// given parameter setting.  The Hessian type parameter is not used
// here.
func (ph *PHReg) Hessian(params statmodel.Parameter, ht statmodel.HessType, hess []float64) {
	ph.breslowHess(params.GetCoeff(), hess)
}

// breslowHess calculates the Hessian matrix for the proportional
// hazards regression model at the given parameter values.
func (ph *PHReg) breslowHess(params []float64, hess []float64) {

	zero(hess)

	wgt := ph.weights()

	lp := ph.getNslice()
	ph.linpred(params, lp)

	p := len(ph.xpos)
	d1s := make([]float64, p)
	d2s := make([]float64, p*p)

	update := func(i int, sign float64) {
		for j1, k1 := range ph.xpos {
			x1 := ph.data[k1]
			d1s[j1] += sign * lp[i] * x1[i]
			for j2 := 0; j2 <= j1; j2++ {
				x2 := ph.data[ph.xpos[j2]]
				u := sign * lp[i] * x1[i] * x2[i]
				d2s[j1*p+j2] += u
				if j2 != j1 {
					d2s[j2*p+j1] += u
				}
			}
		}
	}

	for s, ix := range ph.stratumix {

		if len(ph.etimes[s]) == 0 {
			continue
		}

		// We can add any constant here due to invariance in
		// the partial likelihood.
		mx := floats.Max(lp[ix[0]:ix[1]])
		for i := ix[0]; i < ix[1]; i++ {
			lp[i] = math.Exp(lp[i] - mx)
		}
		if wgt != nil {
			for i := ix[0]; i < ix[1]; i++ {
				lp[i] *= wgt[i]
			}
		}

		rlp := float64(0)

		zero(d1s)
		zero(d2s)

		for k := 0; k < len(ph.etimes[s]); k++ {

			// Update for new entries
			for _, i := range ph.enter[s][k] {
				rlp += lp[i]
				update(i, 1)
			}

			d := ph.eventWeight(s, k)

			jj := 0
			for j1 := 0; j1 < p; j1++ {
				for j2 := 0; j2 < p; j2++ {
					hess[jj] -= d * d2s[j1*p+j2] / rlp
					hess[jj] += d * d1s[j1] * d1s[j2] / (rlp * rlp)
					jj++
				}
			}

			// Update for new exits
			for _, i := range ph.exit[s][k] {
				rlp -= lp[i]
				update(i, -1)
			}
		}
	}

	ph.putNslice(lp)
}

func newPHParameter(x []float64) statmodel.Parameter {
	return &PHParameter{x}
}

// PHResults describes the results of a proportional hazards model.
type PHResults struct {
	statmodel.BaseResults
}

// Fit fits the model to the data.
func (ph *PHReg) Fit() (*PHResults, error) {

	nvar := len(ph.xpos)

	start := ph.start
	if start == nil {
		start = make([]float64, nvar)
	}

	settings := ph.optsettings
	if settings == nil {
		settings = &optimize.Settings{
			GradientThreshold: 1e-5,
		}
	}

	var xna []string
	for _, k := range ph.xpos {
		xna = append(xna, ph.varnames[k])
	}

	if nvar == 0 {
		ll := ph.breslowLogLike(nil)
		return &PHResults{
			BaseResults: statmodel.NewBaseResults(ph, ll, nil, nil, nil),
		}, nil
	}

	optrslt, err := statmodel.Maximize(ph, newPHParameter, start, settings, ph.optmethod)
	if err != nil {
		if ph.log != nil {
			ph.log.Printf("PHReg: optimization failed from %v: %v\n", start, err)
		}
		return nil, err
	}

	param := make([]float64, len(optrslt.X))
	copy(param, optrslt.X)

	ll := -optrslt.F
	vcov, err := statmodel.GetVcov(ph, &PHParameter{param})
	if err != nil {
		return nil, err
	}

	results := &PHResults{
		BaseResults: statmodel.NewBaseResults(ph, ll, param, xna, vcov),
	}

	return results, nil
}

func (rslt *PHResults) summaryStats() (int, int, int, int) {

	ph := rslt.Model().(*PHReg)
	data := ph.Dataset()

	status := data[ph.statuspos]

	var entry []statmodel.Dtype
	if ph.entrypos != -1 {
		entry = data[ph.entrypos]
	}

	var n, e, pe, ns int
	for _, ix := range ph.stratumix {
		n += ix[1] - ix[0]
		for i := ix[0]; i < ix[1]; i++ {
			e += int(status[i])
		}
		if entry != nil {
			for i := ix[0]; i < ix[1]; i++ {
				if entry[i] > 0 {
					pe++
				}
			}
		}
		ns++
	}

	return n, e, pe, ns
}

// PHSummary summarizes a fitted proportional hazards regression model.
type PHSummary struct {

	// The model
	ph *PHReg

	// The results structure
	results *PHResults

	// Messages that are appended to the table
	messages []string
}

// Summary displays a summary table of the model results.
func (rslt *PHResults) Summary() *PHSummary {

	ph := rslt.Model().(*PHReg)

	return &PHSummary{
		ph:      ph,
		results: rslt,
	}
}

// String returns a string representation of a summary table for the model.
func (phs *PHSummary) String() string {

	n, e, pe, ns := phs.results.summaryStats()

	ph := phs.ph
	sum := &statmodel.SummaryTable{
		Msg: phs.messages,
	}

	sum.Title = "Proportional hazards regression analysis"

	sum.Top = append(sum.Top, fmt.Sprintf("  Sample size: %10d", n))
	sum.Top = append(sum.Top, fmt.Sprintf("  Strata:      %10d", ns))
	sum.Top = append(sum.Top, fmt.Sprintf("  Events:      %10d", e))
	sum.Top = append(sum.Top, "  Ties:           Breslow")

	fs, fn := statmodel.FormatStrings, statmodel.FormatFloats

	par := phs.results.Params()
	se := phs.results.StdErr()

	var hr, lcb, ucb []float64
	for j := range par {
		hr = append(hr, math.Exp(par[j]))
		lcb = append(lcb, math.Exp(par[j]-2*se[j]))
		ucb = append(ucb, math.Exp(par[j]+2*se[j]))
	}

	sum.ColNames = []string{"Variable   ", "Coefficient", "SE", "HR", "LCB", "UCB", "Z-score", "P-value"}
	sum.ColFmt = []statmodel.Fmter{fs, fn, fn, fn, fn, fn, fn, fn}
	sum.Cols = []interface{}{phs.results.Names(), par, se, hr, lcb, ucb,
		phs.results.ZScores(), phs.results.PValues()}

	if pe > 0 {
		msg := fmt.Sprintf("%d observations have positive entry times", pe)
		sum.Msg = append(sum.Msg, msg)
	}

	if ph.skipEarlyCensor > 0 {
		msg := fmt.Sprintf("%d observations dropped for being censored before the first event", ph.skipEarlyCensor)
		sum.Msg = append(sum.Msg, msg)
	}

	return sum.String()
}
