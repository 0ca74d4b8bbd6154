package impute

import (
	"math"

	"github.com/edbonneville/smcfcs/covmodel"
	"github.com/edbonneville/smcfcs/data"
	"github.com/edbonneville/smcfcs/submodel"
)

// Validate checks the data, covariate specifications, substantive model
// and options of a run.  The returned error matches ErrInvalidInput.
func Validate(frame *data.Frame, covs []CovariateSpec, sm *submodel.Spec, opts *Options) error {

	if frame == nil || frame.NumObs() == 0 {
		return invalid("data", "no observations")
	}
	if sm == nil {
		return invalid("substantive model", "not specified")
	}
	if opts == nil {
		return invalid("options", "not specified")
	}

	if err := validateOptions(frame, sm, opts); err != nil {
		return err
	}

	if err := sm.Validate(frame); err != nil {
		return invalid("substantive model", "%v", err)
	}

	if _, err := resolve(frame, covs, sm); err != nil {
		return err
	}

	return nil
}

func validateOptions(frame *data.Frame, sm *submodel.Spec, opts *Options) error {

	switch {
	case opts.M < 1:
		return invalid("m", "must be at least 1, got %d", opts.M)
	case opts.Iterations < 1:
		return invalid("iterations", "must be at least 1, got %d", opts.Iterations)
	case opts.RjLimit < 1:
		return invalid("rjlimit", "must be at least 1, got %d", opts.RjLimit)
	case opts.Workers < 0:
		return invalid("workers", "must be non-negative, got %d", opts.Workers)
	}

	if !opts.ImputeTimes {
		return nil
	}

	if !sm.Type.ImputesTimes() {
		return invalid("imputeTimes", "event times cannot be imputed under a %s model", sm.Type)
	}

	if n := len(opts.CensTime); n != 1 && n != frame.NumObs() {
		return invalid("censtime", "has length %d, expected 1 or %d", n, frame.NumObs())
	}
	for _, c := range opts.CensTime {
		if !(c > 0) || math.IsInf(c, 1) {
			return invalid("censtime", "must be positive and finite, got %v", c)
		}
	}

	return nil
}

// checkKind returns an error if the method cannot impute the column.
func checkKind(c *data.Column, method covmodel.Method) error {

	switch method {
	case covmodel.MethodNorm:
		if c.Kind != data.Numeric {
			return invalid(c.Name, "norm imputation needs a numeric variable, not %s", c.Kind)
		}
	case covmodel.MethodLogReg:
		if c.Kind != data.Binary {
			return invalid(c.Name, "logreg imputation needs a binary variable, not %s", c.Kind)
		}
	case covmodel.MethodMLogit:
		if c.Kind != data.Categorical {
			return invalid(c.Name, "mlogit imputation needs a categorical variable, not %s", c.Kind)
		}
	case covmodel.MethodPoisson:
		if c.Kind != data.Numeric {
			return invalid(c.Name, "poisson imputation needs a numeric variable, not %s", c.Kind)
		}
		for _, v := range c.Values {
			if !math.IsNaN(v) && (v < 0 || v != math.Floor(v)) {
				return invalid(c.Name, "poisson imputation needs non-negative integer values, found %v", v)
			}
		}
	}

	return nil
}

// resolve validates the covariate specifications and returns those of
// the covariates to be imputed, in declared order, with default
// predictors filled in.
func resolve(frame *data.Frame, covs []CovariateSpec, sm *submodel.Spec) ([]CovariateSpec, error) {

	seen := make(map[string]bool)
	imputed := make(map[string]bool)
	var partial []string

	for _, cv := range covs {

		c := frame.Column(cv.Name)
		if c == nil {
			return nil, invalid(cv.Name, "variable not found")
		}
		if seen[cv.Name] {
			return nil, invalid(cv.Name, "specified more than once")
		}
		seen[cv.Name] = true

		nmiss := frame.NumMissing(cv.Name)
		switch {
		case cv.Method == covmodel.MethodNone && nmiss > 0:
			return nil, invalid(cv.Name, "has %d missing values but no imputation method", nmiss)
		case cv.Method != covmodel.MethodNone && nmiss == 0:
			return nil, invalid(cv.Name, "has no missing values but imputation method '%s'", cv.Method)
		case nmiss == frame.NumObs():
			return nil, invalid(cv.Name, "has no observed values")
		}

		if err := checkKind(c, cv.Method); err != nil {
			return nil, err
		}

		if cv.Method != covmodel.MethodNone {
			imputed[cv.Name] = true
			partial = append(partial, cv.Name)
		}
	}

	for _, v := range sm.OutcomeVars() {
		if imputed[v] {
			return nil, invalid(v, "outcome variables cannot be imputed")
		}
	}

	// Variables used as covariates must be complete or imputed.
	complete := func(field, v string) error {
		if !frame.Has(v) {
			return invalid(field, "variable '%s' not found", v)
		}
		if !imputed[v] && frame.NumMissing(v) > 0 {
			return invalid(field, "variable '%s' has missing values but is not imputed", v)
		}
		return nil
	}

	smvars := sm.Vars()
	for _, v := range smvars {
		if err := complete("substantive model", v); err != nil {
			return nil, err
		}
	}

	var rcovs []CovariateSpec
	for _, cv := range covs {

		if cv.Method == covmodel.MethodNone {
			continue
		}

		preds := cv.Predictors
		if len(preds) == 0 {
			preds = defaultPredictors(cv.Name, smvars, partial)
		}

		pseen := make(map[string]bool)
		for _, p := range preds {
			if p == cv.Name {
				return nil, invalid(cv.Name, "a covariate cannot predict itself")
			}
			if pseen[p] {
				return nil, invalid(cv.Name, "predictor '%s' listed more than once", p)
			}
			pseen[p] = true
			if err := complete(cv.Name, p); err != nil {
				return nil, err
			}
		}

		rcovs = append(rcovs, CovariateSpec{Name: cv.Name, Method: cv.Method, Predictors: preds})
	}

	return rcovs, nil
}

// defaultPredictors returns the other covariates of the substantive
// model followed by the other partially observed covariates.
func defaultPredictors(name string, smvars, partial []string) []string {

	seen := map[string]bool{name: true}
	var preds []string
	for _, v := range append(append([]string{}, smvars...), partial...) {
		if !seen[v] {
			seen[v] = true
			preds = append(preds, v)
		}
	}

	return preds
}
