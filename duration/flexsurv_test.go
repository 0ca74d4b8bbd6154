package duration

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"

	"github.com/edbonneville/smcfcs/statmodel"
)

// weibullData simulates proportional hazards data with cumulative hazard
// t^kw * exp(b*x), so that the log cumulative hazard is linear in log time.
func weibullData(n int, kw, b float64, seed int64) statmodel.Dataset {

	rng := rand.New(rand.NewSource(seed))

	time := make([]float64, n)
	status := make([]float64, n)
	x := make([]float64, n)

	for i := range time {
		x[i] = rng.NormFloat64()
		e := -math.Log(rng.Float64())
		time[i] = math.Pow(e*math.Exp(-b*x[i]), 1/kw)
		c := 3 * rng.Float64()
		if c < time[i] {
			time[i] = c
		} else {
			status[i] = 1
		}
	}

	return statmodel.NewDataset([][]float64{time, status, x}, []string{"time", "status", "x"}, "time",
		[]string{"x"})
}

func TestFlexSurvWeibull(t *testing.T) {

	for _, kw := range []float64{1, 1.5} {

		da := weibullData(2000, kw, 0.5, 431)

		fs, err := NewFlexSurv(da, "time", "status", []string{"x"}, nil)
		if err != nil {
			t.Fatal(err)
		}

		if len(fs.Knots()) != 4 || fs.NumParams() != 5 {
			t.Fatalf("knots=%v", fs.Knots())
		}

		rslt, err := fs.Fit()
		if err != nil {
			t.Fatal(err)
		}

		par := rslt.Params()

		// Weibull: gamma0=0, gamma1=kw, no curvature
		if math.Abs(par[0]) > 0.15 || math.Abs(par[1]-kw) > 0.15 {
			fmt.Printf("spline coefficients: %v\n", par)
			t.Fail()
		}
		if math.Abs(par[4]-0.5) > 0.1 {
			fmt.Printf("log hazard ratio: %v\n", par[4])
			t.Fail()
		}

		// The score vanishes at the estimate
		score := make([]float64, len(par))
		fs.Score(&PHParameter{par}, score)
		if floats.Norm(score, math.Inf(1)) > 1e-3 {
			fmt.Printf("score at estimate: %v\n", score)
			t.Fail()
		}

		for _, s := range rslt.StdErr() {
			if math.IsNaN(s) || s <= 0 {
				t.Fail()
			}
		}

		if rslt.Names()[0] != "gamma0" || rslt.Names()[4] != "x" {
			t.Fail()
		}
	}
}

func TestFlexSurvGrad(t *testing.T) {

	da := weibullData(200, 1.2, -0.3, 99)

	config := DefaultFlexSurvConfig()
	config.Knots = 1
	fs, err := NewFlexSurv(da, "time", "status", []string{"x"}, config)
	if err != nil {
		t.Fatal(err)
	}

	loglike := func(x []float64) float64 {
		return fs.LogLike(&PHParameter{x}, false)
	}

	p := fs.NumParams()
	for _, par := range [][]float64{{0, 1, 0, 0}, {-0.5, 1.2, 0.01, 0.3}, {0.2, 0.8, -0.02, -1}} {

		ngrad := make([]float64, p)
		fd.Gradient(ngrad, loglike, par, &fd.Settings{Formula: fd.Central})
		score := make([]float64, p)
		fs.Score(&PHParameter{par}, score)
		if !floats.EqualApprox(score, ngrad, 1e-5) {
			fmt.Printf("Numerical:  %v\n", ngrad)
			fmt.Printf("Analytical: %v\n", score)
			t.Fail()
		}
	}
}

func TestFlexSurvInverse(t *testing.T) {

	da := weibullData(300, 1.5, 0.2, 7)
	fs, err := NewFlexSurv(da, "time", "status", []string{"x"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	gamma := []float64{-0.2, 1.4, 0.01, -0.01}
	for _, tm := range []float64{0.01, 0.3, 1, 2.5, 40} {
		h := fs.BaselineCumHaz(gamma, tm)
		t2 := fs.InvBaselineCumHaz(gamma, h)
		if math.Abs(t2-tm)/tm > 1e-6 {
			fmt.Printf("t=%v recovered %v\n", tm, t2)
			t.Fail()
		}
	}
}

func TestFlexSurvErrors(t *testing.T) {

	bad := statmodel.NewDataset([][]float64{{1, 0, 2}, {1, 1, 1}}, []string{"time", "status"}, "time", nil)
	if _, err := NewFlexSurv(bad, "time", "status", nil, nil); err == nil {
		t.Fail()
	}

	oneEvent := statmodel.NewDataset([][]float64{{1, 2, 3}, {1, 0, 0}}, []string{"time", "status"}, "time", nil)
	if _, err := NewFlexSurv(oneEvent, "time", "status", nil, nil); err == nil {
		t.Fail()
	}

	da := weibullData(50, 1, 0, 1)
	if _, err := NewFlexSurv(da, "time", "status", []string{"z"}, nil); err == nil {
		t.Fail()
	}
}

func TestFlexSurvSimulated(t *testing.T) {

	for seed := int64(1); seed <= 10; seed++ {

		da := weibullData(1000, 1.5, 0.5, seed)
		fs, err := NewFlexSurv(da, "time", "status", []string{"x"}, nil)
		if err != nil {
			t.Fatal(err)
		}

		rslt, err := fs.Fit()
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}

		par := rslt.Params()
		if math.Abs(par[4]-0.5) > 0.2 {
			fmt.Printf("seed %d: log hazard ratio %v\n", seed, par[4])
			t.Fail()
		}

		// Refit from the estimates
		config := DefaultFlexSurvConfig()
		config.Start = par
		fs, err = NewFlexSurv(da, "time", "status", []string{"x"}, config)
		if err != nil {
			t.Fatal(err)
		}

		rslt2, err := fs.Fit()
		if err != nil {
			t.Fatalf("seed %d, refit: %v", seed, err)
		}
		if !floats.EqualApprox(rslt2.Params(), par, 1e-3) {
			fmt.Printf("seed %d: %v != %v\n", seed, rslt2.Params(), par)
			t.Fail()
		}
	}
}
