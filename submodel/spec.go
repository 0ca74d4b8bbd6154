// Package submodel implements the substantive models with which imputed
// covariates are kept compatible.  Each model is fit to the current
// completed data, its parameters are drawn from their approximate
// posterior, and it then provides each subject's likelihood contribution
// as a function of the subject's covariates, normalized by its upper
// bound so that it can be used directly as an acceptance probability.
package submodel

import (
	"fmt"
	"math"

	"github.com/edbonneville/smcfcs/data"
)

// Term is a product of covariate factors in a model formula.
type Term = data.Term

// Factor is a covariate raised to a power within a Term.
type Factor = data.Factor

// Type is the type of a substantive model.
type Type uint8

// Linear, ... are the substantive model types.
const (
	Linear Type = iota
	Logistic
	Poisson
	Cox
	FlexParam
	CompetingRisks
	CaseCohort
	NestedCC
	DiscreteTime
)

var typeNames = []string{
	Linear:         "lm",
	Logistic:       "logistic",
	Poisson:        "poisson",
	Cox:            "coxph",
	FlexParam:      "flexsurv",
	CompetingRisks: "compet",
	CaseCohort:     "casecohort",
	NestedCC:       "nestedcc",
	DiscreteTime:   "dtsam",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// ParseType returns the model type with the given name.
func ParseType(s string) (Type, error) {
	for k, na := range typeNames {
		if na == s {
			return Type(k), nil
		}
	}
	return 0, fmt.Errorf("unknown substantive model type '%s'", s)
}

// Survival returns true for the models of time-to-event outcomes.
func (t Type) Survival() bool {
	return t >= Cox && t <= DiscreteTime
}

// ImputesTimes returns true if censored event times can be imputed
// under the model.
func (t Type) ImputesTimes() bool {
	return t == Cox || t == FlexParam || t == CaseCohort
}

// DefaultKnots is the usual number of interior knots of the spline in a
// flexible parametric model.
const DefaultKnots = 2

// Time effect specifications of the discrete time model.
const (
	TimeFactor = "factor"
	TimeLinear = "linear"
	TimeQuad   = "quad"
	TimeNone   = "none"
)

// Spec describes a substantive model.  A Spec must not be changed after
// it has been validated.
type Spec struct {

	// Type is the model type.
	Type Type

	// Outcome is the outcome variable of the linear, logistic and
	// Poisson models.
	Outcome string

	// Time and Status are the time and event indicator variables of the
	// survival models.  For competing risks the status holds the cause
	// of the event, 1, ..., K, or 0 for censored cases.
	Time   string
	Status string

	// Terms are the terms of the linear predictor.  The linear, logistic,
	// Poisson and discrete time models have an intercept.
	Terms []Term

	// CauseTerms are the terms of the cause-specific hazard models of a
	// competing risks model, one list per cause.
	CauseTerms [][]Term

	// Knots is the number of interior spline knots of a flexible
	// parametric model.
	Knots int

	// Subcohort is a binary variable indicating membership in the
	// subcohort of a case-cohort study, and SampFrac is the fraction of
	// the full cohort sampled into the subcohort.
	Subcohort string
	SampFrac  float64

	// Set identifies the matched sets of a nested case-control study,
	// and NumAtRisk holds the number of subjects at risk in the full
	// cohort at the event time of the set's case.
	Set       string
	NumAtRisk string

	// TimeEffects is the parameterization of time in a discrete time
	// model: TimeFactor (the default), TimeLinear, TimeQuad or TimeNone.
	TimeEffects string
}

// NumCauses returns the number of competing causes, or 1 for other
// models.
func (s *Spec) NumCauses() int {
	if s.Type == CompetingRisks {
		return len(s.CauseTerms)
	}
	return 1
}

// designs returns the designs of the linear predictors.  The intercept
// of the GLMs is added by their evaluators.
func (s *Spec) designs() []*data.Design {
	if s.Type == CompetingRisks {
		var d []*data.Design
		for _, t := range s.CauseTerms {
			d = append(d, &data.Design{Terms: t})
		}
		return d
	}
	return []*data.Design{{Terms: s.Terms}}
}

// Vars returns the covariates appearing in the model terms, in order of
// first appearance.
func (s *Spec) Vars() []string {
	seen := make(map[string]bool)
	var vars []string
	for _, d := range s.designs() {
		for _, v := range d.Vars() {
			if !seen[v] {
				seen[v] = true
				vars = append(vars, v)
			}
		}
	}
	return vars
}

// OutcomeVars returns the variables describing the outcome and the
// study design.  These must be fully observed.
func (s *Spec) OutcomeVars() []string {
	var vars []string
	for _, v := range []string{s.Outcome, s.Time, s.Status, s.Subcohort, s.Set, s.NumAtRisk} {
		if v != "" {
			vars = append(vars, v)
		}
	}
	return vars
}

// Validate returns an error if the model cannot be fit to the frame.
func (s *Spec) Validate(f *data.Frame) error {

	if int(s.Type) >= len(typeNames) {
		return fmt.Errorf("unknown substantive model type %d", s.Type)
	}

	if s.Type == CompetingRisks && len(s.CauseTerms) == 0 {
		return fmt.Errorf("competing risks model has no cause-specific terms")
	}
	for _, d := range s.designs() {
		if err := d.Check(f); err != nil {
			return err
		}
	}

	if s.Type.Survival() {
		if s.Time == "" || s.Status == "" {
			return fmt.Errorf("%s model needs time and status variables", s.Type)
		}
	} else if s.Outcome == "" {
		return fmt.Errorf("%s model needs an outcome variable", s.Type)
	}

	for _, v := range s.OutcomeVars() {
		if !f.Has(v) {
			return fmt.Errorf("variable '%s' not found", v)
		}
		if n := f.NumMissing(v); n > 0 {
			return fmt.Errorf("variable '%s' has %d missing values", v, n)
		}
	}

	switch s.Type {
	case Logistic:
		for _, y := range f.Values(s.Outcome) {
			if y != 0 && y != 1 {
				return fmt.Errorf("logistic model outcome '%s' has value %v", s.Outcome, y)
			}
		}
	case Poisson:
		for _, y := range f.Values(s.Outcome) {
			if y < 0 || y != math.Floor(y) {
				return fmt.Errorf("Poisson model outcome '%s' has value %v", s.Outcome, y)
			}
		}
	}

	if !s.Type.Survival() {
		return nil
	}

	return s.validateSurvival(f)
}

func (s *Spec) validateSurvival(f *data.Frame) error {

	time := f.Values(s.Time)
	status := f.Values(s.Status)

	for i, t := range time {
		if !(t > 0) {
			return fmt.Errorf("time variable '%s' has non-positive value %v in row %d", s.Time, t, i)
		}
		if s.Type == DiscreteTime && t != math.Floor(t) {
			return fmt.Errorf("discrete time variable '%s' has non-integer value %v in row %d", s.Time, t, i)
		}
	}

	maxStatus := float64(s.NumCauses())
	for i, d := range status {
		if d < 0 || d > maxStatus || d != math.Floor(d) {
			return fmt.Errorf("status variable '%s' has invalid value %v in row %d", s.Status, d, i)
		}
	}

	switch s.Type {
	case FlexParam:
		if s.Knots < 0 {
			return fmt.Errorf("the number of knots must be non-negative")
		}
	case CaseCohort:
		if s.Subcohort == "" {
			return fmt.Errorf("case-cohort model needs a subcohort variable")
		}
		if !(s.SampFrac > 0 && s.SampFrac <= 1) {
			return fmt.Errorf("subcohort sampling fraction must be in (0, 1], got %v", s.SampFrac)
		}
		for i, v := range f.Values(s.Subcohort) {
			if v != 0 && v != 1 {
				return fmt.Errorf("subcohort variable '%s' has value %v", s.Subcohort, v)
			}
			if v == 0 && status[i] == 0 {
				return fmt.Errorf("row %d is neither a case nor in the subcohort", i)
			}
		}
	case NestedCC:
		if s.Set == "" || s.NumAtRisk == "" {
			return fmt.Errorf("nested case-control model needs set and number at risk variables")
		}
		size := make(map[float64]int)
		for _, v := range f.Values(s.Set) {
			size[v]++
		}
		set := f.Values(s.Set)
		for i, r := range f.Values(s.NumAtRisk) {
			if r < float64(size[set[i]]) {
				return fmt.Errorf("row %d: %v at risk is less than the size %d of its set", i, r, size[set[i]])
			}
		}
	case DiscreteTime:
		switch s.TimeEffects {
		case "", TimeFactor, TimeLinear, TimeQuad, TimeNone:
		default:
			return fmt.Errorf("unknown time effects '%s'", s.TimeEffects)
		}
	}

	return nil
}
