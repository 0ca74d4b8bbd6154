// Package impute implements substantive model compatible fully
// conditional specification (SMC-FCS) multiple imputation of missing
// covariates.
//
// Each imputation runs a Gibbs sampler.  In every iteration each
// partially observed covariate is updated in turn: its conditional model
// given the other covariates is fit and its parameters drawn, the
// substantive model is fit and its parameters drawn, and each missing
// value is replaced by a draw from the conditional model that is
// accepted with probability given by the subject's substantive model
// likelihood.  The imputed values are therefore draws from a
// distribution that is compatible with the substantive model, including
// any non-linear effects and interactions of the covariates.
package impute

import (
	"log"
	"time"

	"github.com/edbonneville/smcfcs/covmodel"
	"github.com/edbonneville/smcfcs/sampler"
)

// CovariateSpec describes the imputation of one covariate.
type CovariateSpec struct {

	// Name is the name of the covariate in the frame.
	Name string

	// Method is the conditional model of the covariate.  It is
	// MethodNone exactly when the covariate has no missing values.
	Method covmodel.Method

	// Predictors are the covariates of the conditional model.  If
	// empty, the other covariates of the substantive model and the
	// other partially observed covariates are used.
	Predictors []string
}

// Observer receives progress of a run.  The methods of an Observer are
// called concurrently by the workers of a parallel run.
type Observer interface {

	// ObserveCovariate is called after the missing values of a
	// covariate were updated, with the total number of proposals and
	// the number of values imputed.
	ObserveCovariate(variable string, proposals, imputed int)

	// ObserveIteration is called after each iteration.
	ObserveIteration(imputation, iteration int, elapsed time.Duration)

	// ObserveImputation is called when an imputation completes, with a
	// nil error on success.
	ObserveImputation(imputation int, err error)
}

// Options configures a multiple imputation run.
type Options struct {

	// M is the number of imputations.
	M int

	// Iterations is the number of Gibbs iterations of each imputation.
	Iterations int

	// Seed determines the random streams of the imputations.
	Seed uint64

	// RjLimit is the maximum number of proposals drawn for a single
	// value.
	RjLimit int

	// Workers is the number of imputation chains run concurrently.
	Workers int

	// Executor runs the workers.  If nil, Serial is used for a single
	// worker and Parallel otherwise.
	Executor Executor

	// ImputeTimes requests imputation of censored event times.
	ImputeTimes bool

	// CensTime is the administrative censoring time used with
	// ImputeTimes, either a single value or one value per row.
	CensTime []float64

	// Log receives progress messages, if not nil.
	Log *log.Logger

	// Observer receives progress of the run, if not nil.
	Observer Observer
}

// DefaultOptions returns the default options: 5 imputations of 10
// iterations each, run serially.
func DefaultOptions() *Options {
	return &Options{
		M:          5,
		Iterations: 10,
		Seed:       1,
		RjLimit:    sampler.DefaultMaxDraws,
		Workers:    1,
	}
}

func (opts *Options) workers() int {
	if opts.Workers < 1 {
		return 1
	}
	return opts.Workers
}

func (opts *Options) executor() Executor {
	switch {
	case opts.Executor != nil:
		return opts.Executor
	case opts.workers() == 1:
		return Serial{}
	default:
		return Parallel{}
	}
}

// censTime returns the administrative censoring time of row i.
func (opts *Options) censTime(i int) float64 {
	if len(opts.CensTime) == 1 {
		return opts.CensTime[0]
	}
	return opts.CensTime[i]
}
