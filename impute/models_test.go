package impute

import (
	"context"
	"fmt"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/edbonneville/smcfcs/covmodel"
	"github.com/edbonneville/smcfcs/data"
	"github.com/edbonneville/smcfcs/glm"
	"github.com/edbonneville/smcfcs/submodel"
)

var levels3 = []string{"a", "b", "c"}

// cohort is a simulated full cohort with a continuous covariate x and a
// three-level covariate h, outcomes for each type of substantive model,
// and a subcohort indicator.
type cohort struct {
	x, h                    []float64
	y, yb, yc               []float64
	time, status, cause, dt []float64
	sub                     []float64
}

// newCohort simulates n subjects.  The time to an event of cause 1 has
// hazard 0.2*exp(0.5*x+0.3*h), the time to an event of cause 2 has
// hazard 0.1*exp(-0.3*x), and censoring is uniform on (0, 15).
func newCohort(n int, seed uint64) *cohort {

	rng := rand.New(rand.NewSource(seed))
	c := &cohort{}
	for i := 0; i < n; i++ {
		h := float64(rng.Intn(3))
		x := 0.3*h + rng.NormFloat64()
		c.h = append(c.h, h)
		c.x = append(c.x, x)

		c.y = append(c.y, x+0.5*h+rng.NormFloat64())

		yb := 0.0
		if rng.Float64() < glm.Expit(-0.5+x+0.3*h) {
			yb = 1
		}
		c.yb = append(c.yb, yb)

		var k float64
		lam := math.Exp(0.2 + 0.3*x)
		for s := rng.ExpFloat64(); s < lam; s += rng.ExpFloat64() {
			k++
		}
		c.yc = append(c.yc, k)

		t1 := 5 * rng.ExpFloat64() * math.Exp(-0.5*x-0.3*h)
		t2 := 10 * rng.ExpFloat64() * math.Exp(0.3*x)
		ce := 15 * rng.Float64()
		var tm, st, cause float64
		switch {
		case t1 < t2 && t1 < ce:
			tm, st, cause = t1, 1, 1
		case t2 < ce:
			tm, cause = t2, 2
		default:
			tm = ce
		}
		c.time = append(c.time, tm)
		c.status = append(c.status, st)
		c.cause = append(c.cause, cause)
		c.dt = append(c.dt, math.Ceil(tm/3))

		sub := 0.0
		if rng.Float64() < 0.3 {
			sub = 1
		}
		c.sub = append(c.sub, sub)
	}

	return c
}

// withMissing returns a copy of v with each value missing with
// probability p.
func withMissing(v []float64, p float64, rng *rand.Rand) []float64 {
	w := make([]float64, len(v))
	for i := range v {
		w[i] = v[i]
		if rng.Float64() < p {
			w[i] = math.NaN()
		}
	}
	return w
}

// frame returns the full cohort with x and h partially observed.
func (c *cohort) frame(t *testing.T, seed uint64) *data.Frame {

	rng := rand.New(rand.NewSource(seed))
	f, err := data.NewFrame(
		data.NumericColumn("x", withMissing(c.x, 0.2, rng)),
		data.CategoricalColumn("h", levels3, withMissing(c.h, 0.15, rng)),
		data.NumericColumn("y", c.y),
		data.BinaryColumn("yb", c.yb),
		data.NumericColumn("yc", c.yc),
		data.NumericColumn("time", c.time),
		data.BinaryColumn("status", c.status),
		data.NumericColumn("cause", c.cause),
		data.NumericColumn("dtime", c.dt),
	)
	require.NoError(t, err)
	return f
}

// caseCohort returns the subcohort and the cases outside it.
func (c *cohort) caseCohort(t *testing.T, seed uint64) *data.Frame {

	var x, h, time, status, sub []float64
	for i, d := range c.status {
		if d == 1 || c.sub[i] == 1 {
			x = append(x, c.x[i])
			h = append(h, c.h[i])
			time = append(time, c.time[i])
			status = append(status, d)
			sub = append(sub, c.sub[i])
		}
	}

	rng := rand.New(rand.NewSource(seed))
	f, err := data.NewFrame(
		data.NumericColumn("x", withMissing(x, 0.2, rng)),
		data.CategoricalColumn("h", levels3, withMissing(h, 0.15, rng)),
		data.NumericColumn("time", time),
		data.BinaryColumn("status", status),
		data.BinaryColumn("sub", sub),
	)
	require.NoError(t, err)
	return f
}

// nestedCC matches two controls drawn from the risk set to each case.
func (c *cohort) nestedCC(t *testing.T, seed uint64) *data.Frame {

	rng := rand.New(rand.NewSource(seed))

	ord := make([]int, len(c.time))
	for i := range ord {
		ord[i] = i
	}
	sort.Slice(ord, func(i, j int) bool { return c.time[ord[i]] < c.time[ord[j]] })

	var x, h, time, status, set, nrisk []float64
	for k, i := range ord {
		if c.status[i] != 1 {
			continue
		}
		risk := ord[k+1:]
		if len(risk) < 2 {
			continue
		}
		id := float64(len(set))
		for j, r := range []int{i, risk[rng.Intn(len(risk))], risk[rng.Intn(len(risk))]} {
			x = append(x, c.x[r])
			h = append(h, c.h[r])
			time = append(time, c.time[i])
			st := 0.0
			if j == 0 {
				st = 1
			}
			status = append(status, st)
			set = append(set, id)
			nrisk = append(nrisk, float64(len(risk)+1))
		}
	}

	f, err := data.NewFrame(
		data.NumericColumn("x", withMissing(x, 0.2, rng)),
		data.CategoricalColumn("h", levels3, withMissing(h, 0.15, rng)),
		data.NumericColumn("time", time),
		data.BinaryColumn("status", status),
		data.NumericColumn("set", set),
		data.NumericColumn("nrisk", nrisk),
	)
	require.NoError(t, err)
	return f
}

func modelCovs() []CovariateSpec {
	return []CovariateSpec{
		{Name: "x", Method: covmodel.MethodNorm},
		{Name: "h", Method: covmodel.MethodMLogit},
	}
}

// modelCase returns the frame and substantive model of a model type.
func modelCase(t *testing.T, typ submodel.Type, c *cohort, seed uint64) (*data.Frame, *submodel.Spec) {

	terms := []submodel.Term{data.Var("x"), data.Var("h")}
	sm := &submodel.Spec{Type: typ, Terms: terms}

	switch typ {
	case submodel.Linear:
		sm.Outcome = "y"
	case submodel.Logistic:
		sm.Outcome = "yb"
	case submodel.Poisson:
		sm.Outcome = "yc"
	case submodel.Cox:
		sm.Time, sm.Status = "time", "status"
	case submodel.FlexParam:
		sm.Time, sm.Status = "time", "status"
		sm.Knots = submodel.DefaultKnots
	case submodel.CompetingRisks:
		sm.Time, sm.Status = "time", "cause"
		sm.Terms = nil
		sm.CauseTerms = [][]submodel.Term{terms, {data.Var("x")}}
	case submodel.CaseCohort:
		sm.Time, sm.Status = "time", "status"
		sm.Subcohort, sm.SampFrac = "sub", 0.3
		return c.caseCohort(t, seed), sm
	case submodel.NestedCC:
		sm.Time, sm.Status = "time", "status"
		sm.Set, sm.NumAtRisk = "set", "nrisk"
		return c.nestedCC(t, seed), sm
	case submodel.DiscreteTime:
		sm.Time, sm.Status = "dtime", "status"
	default:
		t.Fatalf("no data for model type %s", typ)
	}

	return c.frame(t, seed), sm
}

// checkResult checks that every imputation is complete, that h takes
// only its levels, and that the trace has the expected shape with finite
// values.
func checkResult(t *testing.T, res *Result, f *data.Frame, m, iterations int) {

	require.Len(t, res.Imputations, m)
	for _, imp := range res.Imputations {
		require.Equal(t, f.NumObs(), imp.NumObs())
		require.Equal(t, 0, imp.NumMissing("x"))
		require.Equal(t, 0, imp.NumMissing("h"))
		for _, v := range imp.Values("h") {
			require.Contains(t, []float64{0, 1, 2}, v)
		}
	}

	mm, it, k := res.Trace.Shape()
	require.Equal(t, []int{m, iterations, len(res.Trace.Names)}, []int{mm, it, k})
	for i := 0; i < m; i++ {
		for j := 0; j < iterations; j++ {
			for _, b := range res.Trace.At(i, j) {
				require.False(t, math.IsNaN(b) || math.IsInf(b, 0), "imputation %d iteration %d", i, j)
			}
		}
	}
}

// Every type of substantive model completes a run of realistic size, for
// several seeds, with a continuous and a three-level covariate missing.
func TestRunModels(t *testing.T) {

	seeds := []uint64{1, 2, 3}
	if testing.Short() {
		seeds = seeds[:1]
	}

	for _, typ := range []submodel.Type{
		submodel.Linear,
		submodel.Logistic,
		submodel.Poisson,
		submodel.Cox,
		submodel.FlexParam,
		submodel.CompetingRisks,
		submodel.CaseCohort,
		submodel.NestedCC,
		submodel.DiscreteTime,
	} {
		for _, seed := range seeds {
			t.Run(fmt.Sprintf("%s/%d", typ, seed), func(t *testing.T) {

				c := newCohort(600, 100+seed)
				f, sm := modelCase(t, typ, c, seed)
				require.Greater(t, f.NumObs(), 300)

				opts := options(5, 10)
				opts.Seed = seed
				opts.Workers = 2

				res, err := Run(context.Background(), f, modelCovs(), sm, opts)
				require.NoError(t, err)
				checkResult(t, res, f, 5, 10)
				assert.Equal(t, typ, res.SM.Type)
			})
		}
	}
}

// Censored times are imputed up to the common censoring time under each
// model that supports it.
func TestImputeTimesModels(t *testing.T) {

	for _, typ := range []submodel.Type{submodel.Cox, submodel.FlexParam, submodel.CaseCohort} {
		t.Run(typ.String(), func(t *testing.T) {

			c := newCohort(600, 200)
			f, sm := modelCase(t, typ, c, 4)

			opts := options(3, 5)
			opts.ImputeTimes = true
			opts.CensTime = []float64{10}

			res, err := Run(context.Background(), f, modelCovs(), sm, opts)
			require.NoError(t, err)
			checkResult(t, res, f, 3, 5)

			var nobs int
			for i, d := range f.Values("status") {
				if d == 1 && f.Values("time")[i] <= 10 {
					nobs++
				}
			}

			for _, imp := range res.Imputations {
				var nevent int
				tm := imp.Values("time")
				for i, d := range imp.Values("status") {
					if d == 0 {
						require.Equal(t, 10.0, tm[i])
					} else {
						require.LessOrEqual(t, tm[i], 10.0)
						nevent++
					}
				}
				assert.GreaterOrEqual(t, nevent, nobs)
			}
		})
	}
}
