package impute

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/exp/rand"

	"github.com/edbonneville/smcfcs/covmodel"
	"github.com/edbonneville/smcfcs/data"
	"github.com/edbonneville/smcfcs/sampler"
	"github.com/edbonneville/smcfcs/submodel"
)

// newEvaluator returns the substantive model of a chain.
var newEvaluator = submodel.New

// Diagnostics records the rejection sampling effort of one imputation.
type Diagnostics struct {

	// Variables are the imputed covariates.
	Variables []string

	// Attempts[it][j] is the total number of proposals drawn for
	// covariate j in iteration it.
	Attempts [][]int

	// MaxAttempts[it][j] is the largest number of proposals drawn for
	// a single value of covariate j in iteration it.
	MaxAttempts [][]int
}

// chain is the Gibbs sampler of a single imputation.
type chain struct {
	imp  int
	opts *Options
	rng  *rand.Rand

	// The current completed data
	frame *data.Frame

	covs    []CovariateSpec
	columns []*data.Column
	models  []covmodel.Model
	designs []*data.Design
	missing [][]int

	sm *submodel.Spec
	ev submodel.Evaluator

	// Imputed event times and status, if times are imputed
	time   []float64
	status []float64

	trace [][]float64
	diag  *Diagnostics
}

func newChain(imp int, frame *data.Frame, covs []CovariateSpec, sm *submodel.Spec, opts *Options,
	rng *rand.Rand) (*chain, error) {

	ev, err := newEvaluator(sm)
	if err != nil {
		return nil, err
	}

	c := &chain{
		imp:   imp,
		opts:  opts,
		rng:   rng,
		frame: frame.Clone(),
		covs:  covs,
		sm:    sm,
		ev:    ev,
		diag:  &Diagnostics{},
	}

	for _, cv := range covs {
		col := c.frame.Column(cv.Name)
		model, err := covmodel.New(cv.Method, col.NumLevels())
		if err != nil {
			return nil, err
		}

		d := &data.Design{Intercept: true}
		for _, p := range cv.Predictors {
			d.Terms = append(d.Terms, data.Var(p))
		}

		var miss []int
		for i, v := range col.Values {
			if math.IsNaN(v) {
				miss = append(miss, i)
			}
		}

		c.columns = append(c.columns, col)
		c.models = append(c.models, model)
		c.designs = append(c.designs, d)
		c.missing = append(c.missing, miss)
		c.diag.Variables = append(c.diag.Variables, cv.Name)
	}

	return c, nil
}

// seed fills the missing values by sampling with replacement from the
// observed values of each covariate.
func (c *chain) seed() {

	for j, col := range c.columns {
		var obs []float64
		for _, v := range col.Values {
			if !math.IsNaN(v) {
				obs = append(obs, v)
			}
		}
		for _, i := range c.missing[j] {
			col.Values[i] = obs[c.rng.Intn(len(obs))]
		}
	}
}

// updateCovariate redraws the missing values of covariate j.
func (c *chain) updateCovariate(it, j int) (int, int, error) {

	cv := c.covs[j]
	col := c.columns[j]
	model := c.models[j]
	design := c.designs[j]

	if err := model.Fit(design.Columns(c.frame), col.Values, c.rng); err != nil {
		return 0, 0, fmt.Errorf("imputation %d, iteration %d: conditional model of '%s': %w",
			c.imp, it, cv.Name, err)
	}

	if err := c.ev.Fit(c.frame); err != nil {
		return 0, 0, fmt.Errorf("imputation %d, iteration %d: %w", c.imp, it, err)
	}
	if err := c.ev.Draw(c.rng); err != nil {
		return 0, 0, fmt.Errorf("imputation %d, iteration %d: %w", c.imp, it, err)
	}

	var total, most int
	var row []float64
	for _, i := range c.missing[j] {

		row = design.Row(c.frame, i, row)

		if cv.Method.Discrete() {
			probs := model.Probs(row)
			w := make([]float64, len(probs))
			for k, p := range probs {
				col.Values[i] = float64(k)
				w[k] = p * c.ev.Weight(c.frame, i)
			}
			k, err := sampler.Categorical(w, c.rng.Float64())
			if err != nil {
				return 0, 0, &RejectionLimitError{Imputation: c.imp, Iteration: it, Variable: cv.Name,
					Subject: i, Attempts: 1}
			}
			col.Values[i] = float64(k)
			total++
			most = 1
			continue
		}

		r, err := sampler.Sample(
			func() float64 {
				return model.Draw(row, c.rng)
			},
			func(x float64) float64 {
				col.Values[i] = x
				return c.ev.Weight(c.frame, i)
			},
			c.opts.RjLimit,
			c.rng.Float64,
		)
		total += r.Attempts
		if r.Attempts > most {
			most = r.Attempts
		}
		if err != nil {
			return 0, 0, &RejectionLimitError{Imputation: c.imp, Iteration: it, Variable: cv.Name,
				Subject: i, Attempts: r.Attempts}
		}
		col.Values[i] = r.Value
	}

	return total, most, nil
}

// imputeTimes redraws the event times of the censored subjects from the
// fitted model given survival beyond their censoring time.  Draws
// beyond the administrative censoring time, and observed times beyond
// it, are censored at that time.
func (c *chain) imputeTimes(it int) error {

	ti, ok := c.ev.(submodel.TimeImputer)
	if !ok {
		return fmt.Errorf("%s model cannot impute event times", c.sm.Type)
	}

	if err := c.ev.Draw(c.rng); err != nil {
		return fmt.Errorf("imputation %d, iteration %d: %w", c.imp, it, err)
	}

	time := c.frame.Values(c.sm.Time)
	status := c.frame.Values(c.sm.Status)

	for i, t := range time {

		cens := c.opts.censTime(i)

		switch {
		case status[i] == 1 && t > cens:
			c.time[i], c.status[i] = cens, 0
			continue
		case status[i] == 1:
			continue
		case t >= cens:
			c.time[i], c.status[i] = cens, 0
			continue
		}

		r, err := sampler.Sample(
			func() float64 {
				return ti.DrawTime(c.frame, i, c.rng)
			},
			func(float64) float64 {
				return 1
			},
			c.opts.RjLimit,
			c.rng.Float64,
		)
		if err != nil {
			return &RejectionLimitError{Imputation: c.imp, Iteration: it, Variable: c.sm.Time,
				Subject: i, Attempts: r.Attempts}
		}

		if r.Value > cens {
			c.time[i], c.status[i] = cens, 0
		} else {
			c.time[i], c.status[i] = r.Value, 1
		}
	}

	return nil
}

// run runs the Gibbs sampler and returns the completed data.
func (c *chain) run(ctx context.Context) (*data.Frame, error) {

	c.seed()

	if c.opts.ImputeTimes {
		c.time = make([]float64, c.frame.NumObs())
		c.status = make([]float64, c.frame.NumObs())
		copy(c.time, c.frame.Values(c.sm.Time))
		copy(c.status, c.frame.Values(c.sm.Status))
	}

	for it := 0; it < c.opts.Iterations; it++ {

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		attempts := make([]int, len(c.covs))
		most := make([]int, len(c.covs))

		for j, cv := range c.covs {
			var err error
			attempts[j], most[j], err = c.updateCovariate(it, j)
			if err != nil {
				return nil, err
			}
			if c.opts.Log != nil {
				c.opts.Log.Printf("imputation %d, iteration %d: %s: %d proposals for %d values, at most %d for one value\n",
					c.imp, it, cv.Name, attempts[j], len(c.missing[j]), most[j])
			}
			if c.opts.Observer != nil {
				c.opts.Observer.ObserveCovariate(cv.Name, attempts[j], len(c.missing[j]))
			}
		}
		c.diag.Attempts = append(c.diag.Attempts, attempts)
		c.diag.MaxAttempts = append(c.diag.MaxAttempts, most)

		if err := c.ev.Fit(c.frame); err != nil {
			return nil, fmt.Errorf("imputation %d, iteration %d: %w", c.imp, it, err)
		}
		coeff := make([]float64, len(c.ev.Coeff()))
		copy(coeff, c.ev.Coeff())
		c.trace = append(c.trace, coeff)

		if c.opts.ImputeTimes {
			if err := c.imputeTimes(it); err != nil {
				return nil, err
			}
		}

		if c.opts.Log != nil {
			c.opts.Log.Printf("imputation %d, iteration %d: coefficients %v\n", c.imp, it, coeff)
		}
		if c.opts.Observer != nil {
			c.opts.Observer.ObserveIteration(c.imp, it, time.Since(start))
		}
	}

	if c.opts.Log != nil {
		if sm, ok := c.ev.(submodel.Summarizer); ok {
			c.opts.Log.Printf("imputation %d: final fit of the %s model\n%s\n", c.imp, c.sm.Type, sm.Summary())
		}
	}

	out := c.frame
	if c.opts.ImputeTimes {
		copy(out.Values(c.sm.Time), c.time)
		copy(out.Values(c.sm.Status), c.status)
	}

	return out, nil
}

// ImputeOnce runs the Gibbs sampler for opts.Iterations iterations and
// returns the completed data, the substantive model coefficients after
// each iteration, and the rejection sampling diagnostics.  The frame is
// not modified.  The random stream rng determines the result.
func ImputeOnce(frame *data.Frame, covs []CovariateSpec, sm *submodel.Spec, opts *Options,
	rng *rand.Rand) (*data.Frame, [][]float64, *Diagnostics, error) {

	if opts == nil {
		opts = DefaultOptions()
	}
	if err := Validate(frame, covs, sm, opts); err != nil {
		return nil, nil, nil, err
	}

	rcovs, _ := resolve(frame, covs, sm)
	c, err := newChain(0, frame, rcovs, sm, opts, rng)
	if err != nil {
		return nil, nil, nil, err
	}

	out, err := c.run(context.Background())
	if err != nil {
		return nil, nil, nil, err
	}

	return out, c.trace, c.diag, nil
}
