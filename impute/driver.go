package impute

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/exp/rand"

	"github.com/edbonneville/smcfcs/data"
	"github.com/edbonneville/smcfcs/submodel"
)

// Result holds the completed datasets of a multiple imputation run.
type Result struct {

	// RunID identifies the run.
	RunID uuid.UUID

	// Imputations are the completed datasets.
	Imputations []*data.Frame

	// Trace holds the substantive model coefficients after each
	// iteration of each imputation.
	Trace *Trace

	// Diagnostics holds the rejection sampling effort of each
	// imputation.
	Diagnostics []*Diagnostics

	// SM is the substantive model.
	SM submodel.Spec
}

// runChunk runs the imputations of one worker serially.
func runChunk(ctx context.Context, chunk Chunk, frame *data.Frame, covs []CovariateSpec, sm *submodel.Spec,
	opts *Options) (*Result, error) {

	res := &Result{}
	var trace *Trace

	for i := chunk.Start; i < chunk.Start+chunk.Len; i++ {

		rng := rand.New(rand.NewSource(deriveSeed(opts.Seed, i)))

		c, err := newChain(i, frame, covs, sm, opts, rng)
		if err != nil {
			return nil, err
		}

		out, err := c.run(ctx)
		if opts.Observer != nil {
			opts.Observer.ObserveImputation(i, err)
		}
		if err != nil {
			return nil, err
		}

		res.Imputations = append(res.Imputations, out)
		res.Diagnostics = append(res.Diagnostics, c.diag)
		if trace == nil {
			trace = NewTrace(c.ev.Names(), chunk.Len, opts.Iterations)
		}
		for it, coeff := range c.trace {
			trace.set(i-chunk.Start, it, coeff)
		}
	}

	res.Trace = trace

	return res, nil
}

// Combine concatenates the results of the workers of a run, in worker
// order.  The traces are stacked along the imputation axis.
func Combine(parts ...*Result) (*Result, error) {

	res := &Result{Trace: &Trace{}}
	for w, p := range parts {
		if p == nil {
			continue
		}
		res.Imputations = append(res.Imputations, p.Imputations...)
		res.Diagnostics = append(res.Diagnostics, p.Diagnostics...)
		if p.Trace != nil {
			tr, err := res.Trace.Stack(p.Trace)
			if err != nil {
				return nil, fmt.Errorf("worker %d: %w", w, err)
			}
			res.Trace = tr
		}
	}

	return res, nil
}

// Run imputes the missing covariate values opts.M times.  Imputation i
// uses a random stream derived from opts.Seed and i, so the result does
// not depend on the number of workers.  The imputations are divided
// among opts.Workers workers; if any imputation fails, Run fails.
func Run(ctx context.Context, frame *data.Frame, covs []CovariateSpec, sm *submodel.Spec,
	opts *Options) (*Result, error) {

	if opts == nil {
		opts = DefaultOptions()
	}
	if err := Validate(frame, covs, sm, opts); err != nil {
		return nil, err
	}
	rcovs, _ := resolve(frame, covs, sm)

	// The workers share the specification and never modify it.
	spec := *sm

	chunks := Partition(opts.M, opts.workers())
	parts := make([]*Result, len(chunks))
	tasks := make([]Task, len(chunks))
	for w, chunk := range chunks {
		w, chunk := w, chunk
		tasks[w] = func(ctx context.Context) error {
			p, err := runChunk(ctx, chunk, frame, rcovs, &spec, opts)
			if err != nil {
				return err
			}
			parts[w] = p
			return nil
		}
	}

	if opts.Log != nil {
		opts.Log.Printf("running %d imputations of %d iterations with %d workers\n",
			opts.M, opts.Iterations, len(chunks))
	}

	if err := opts.executor().Execute(ctx, tasks); err != nil {
		return nil, err
	}

	res, err := Combine(parts...)
	if err != nil {
		return nil, err
	}
	res.RunID = uuid.New()
	res.SM = spec

	return res, nil
}
