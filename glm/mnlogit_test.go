package glm

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/edbonneville/smcfcs/statmodel"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func mnData() statmodel.Dataset {

	y := []float64{0, 1, 2, 2, 1, 0, 2, 1, 0, 2, 1, 1}
	x1 := []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}
	x2 := []float64{4, 1, -1, 3, 5, -5, 3, 0, 2, -2, 1, 0}
	w := []float64{1, 2, 1, 1, 3, 2, 1, 1, 2, 1, 1, 2}

	return statmodel.NewDataset([][]float64{y, x1, x2, w}, []string{"y", "x1", "x2", "w"}, "y",
		[]string{"x1", "x2"})
}

// With two classes the multinomial model is the logistic regression.
func TestMNLogitBinary(t *testing.T) {

	m, err := NewMNLogit(data2(false), 2, nil)
	if err != nil {
		t.Fatal(err)
	}

	rslt, err := m.Fit()
	if err != nil {
		t.Fatal(err)
	}

	if !floats.EqualApprox(rslt.Params(), []float64{-1.650145, 0.190136, 0.344331}, 1e-4) {
		fmt.Printf("params: %v\n", rslt.Params())
		t.Fail()
	}

	if !floats.EqualApprox(rslt.StdErr(), []float64{1.505798, 0.323601, 0.593428}, 1e-4) {
		fmt.Printf("stderr: %v\n", rslt.StdErr())
		t.Fail()
	}

	if !scalarClose(rslt.LogLike(), -3.9607532681097091, 1e-5) {
		t.Fail()
	}
}

func TestMNLogitDerivatives(t *testing.T) {

	cfg := DefaultMNLogitConfig()
	cfg.WeightVar = "w"
	m, err := NewMNLogit(mnData(), 3, cfg)
	if err != nil {
		t.Fatal(err)
	}

	q := m.NumParams()
	if q != 4 {
		t.Fatalf("NumParams=%d", q)
	}

	loglike := func(x []float64) float64 {
		return m.LogLike(statmodel.NewGenericParameter(x), false)
	}

	for _, par := range [][]float64{{0, 0, 0, 0}, {0.5, -0.2, 1, 0.3}, {-1, 0.1, 0.2, -0.4}} {

		ngrad := make([]float64, q)
		fd.Gradient(ngrad, loglike, par, nil)
		score := make([]float64, q)
		m.Score(statmodel.NewGenericParameter(par), score)
		if !floats.EqualApprox(score, ngrad, 1e-5) {
			fmt.Printf("Numerical:  %v\nAnalytical: %v\n", ngrad, score)
			t.Fail()
		}

		nhess := make([]float64, q*q)
		grad := func(y, x []float64) {
			m.Score(statmodel.NewGenericParameter(x), y)
		}
		jac := make([]float64, q*q)
		fd.Jacobian(mat.NewDense(q, q, jac), grad, par, nil)
		copy(nhess, jac)

		hess := make([]float64, q*q)
		m.Hessian(statmodel.NewGenericParameter(par), statmodel.ExpHess, hess)
		if !floats.EqualApprox(hess, nhess, 1e-4) {
			fmt.Printf("Numerical:  %v\nAnalytical: %v\n", nhess, hess)
			t.Fail()
		}
	}
}

func TestMNLogitFit(t *testing.T) {

	cfg := DefaultMNLogitConfig()
	cfg.WeightVar = "w"
	m, err := NewMNLogit(mnData(), 3, cfg)
	if err != nil {
		t.Fatal(err)
	}

	rslt, err := m.Fit()
	if err != nil {
		t.Fatal(err)
	}

	score := make([]float64, m.NumParams())
	m.Score(statmodel.NewGenericParameter(rslt.Params()), score)
	if floats.Norm(score, 2) > 1e-4 {
		fmt.Printf("score at fit: %v\n", score)
		t.Fail()
	}

	if len(rslt.Names()) != 4 || rslt.Names()[2] != "2:x1" {
		fmt.Printf("names: %v\n", rslt.Names())
		t.Fail()
	}
}

func TestProbs(t *testing.T) {

	probs := make([]float64, 3)
	Probs([]float64{0, 0, 0, 0}, 3, []float64{1, 2}, probs)
	if !floats.EqualApprox(probs, []float64{1.0 / 3, 1.0 / 3, 1.0 / 3}, 1e-12) {
		t.Fail()
	}

	Probs([]float64{800, 0, -800, 0}, 3, []float64{1, 0}, probs)
	if !floats.EqualApprox(probs, []float64{0, 1, 0}, 1e-12) {
		t.Fail()
	}
}

func TestMNLogitErrors(t *testing.T) {

	if _, err := NewMNLogit(mnData(), 1, nil); err == nil {
		t.Fail()
	}

	// Class code out of range
	if _, err := NewMNLogit(mnData(), 2, nil); err == nil {
		t.Fail()
	}
}

// mnSim simulates three-class data with an intercept and one standard
// normal predictor.
func mnSim(n int, seed int64) statmodel.Dataset {

	rng := rand.New(rand.NewSource(seed))
	coeff := []float64{0.5, 1, -0.5, -1}

	y := make([]float64, n)
	x1 := make([]float64, n)
	x2 := make([]float64, n)
	probs := make([]float64, 3)
	for i := range y {
		x1[i] = 1
		x2[i] = rng.NormFloat64()
		Probs(coeff, 3, []float64{x1[i], x2[i]}, probs)
		u := rng.Float64()
		switch {
		case u < probs[0]:
			y[i] = 0
		case u < probs[0]+probs[1]:
			y[i] = 1
		default:
			y[i] = 2
		}
	}

	return statmodel.NewDataset([][]float64{y, x1, x2}, []string{"y", "x1", "x2"}, "y",
		[]string{"x1", "x2"})
}

func TestMNLogitSimulated(t *testing.T) {

	for seed := int64(1); seed <= 20; seed++ {

		da := mnSim(1000, seed)
		m, err := NewMNLogit(da, 3, nil)
		if err != nil {
			t.Fatal(err)
		}

		rslt, err := m.Fit()
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}

		par := rslt.Params()
		if !floats.EqualApprox(par, []float64{0.5, 1, -0.5, -1}, 0.35) {
			fmt.Printf("seed %d: %v\n", seed, par)
			t.Fail()
		}

		score := make([]float64, m.NumParams())
		m.Score(statmodel.NewGenericParameter(par), score)
		if floats.Norm(score, math.Inf(1)) > 1e-5*float64(m.NumObs()) {
			fmt.Printf("seed %d: score at fit %v\n", seed, score)
			t.Fail()
		}

		cfg := DefaultMNLogitConfig()
		cfg.Start = par
		m, err = NewMNLogit(da, 3, cfg)
		if err != nil {
			t.Fatal(err)
		}
		rslt2, err := m.Fit()
		if err != nil {
			t.Fatalf("seed %d, refit: %v", seed, err)
		}
		if !floats.EqualApprox(rslt2.Params(), par, 1e-4) {
			fmt.Printf("seed %d: %v != %v\n", seed, rslt2.Params(), par)
			t.Fail()
		}
	}
}
