package covmodel

import (
	"fmt"
	"math"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"

	"github.com/edbonneville/smcfcs/glm"
)

// design returns an intercept and a standard normal covariate.
func design(n int, rng *rand.Rand) [][]float64 {
	one := make([]float64, n)
	x := make([]float64, n)
	for i := range x {
		one[i] = 1
		x[i] = rng.NormFloat64()
	}
	return [][]float64{one, x}
}

func TestParseMethod(t *testing.T) {

	for _, m := range []Method{MethodNone, MethodNorm, MethodLogReg, MethodMLogit, MethodPoisson} {
		m2, err := ParseMethod(m.String())
		if err != nil || m2 != m {
			t.Fail()
		}
	}

	if _, err := ParseMethod("pmm"); err == nil {
		t.Fail()
	}

	if !MethodMLogit.Discrete() || MethodPoisson.Discrete() {
		t.Fail()
	}
}

func TestNew(t *testing.T) {

	if _, err := New(MethodNone, 0); err == nil {
		t.Fail()
	}
	if _, err := New(MethodMLogit, 1); err == nil {
		t.Fail()
	}
	if _, err := New(Method(99), 0); err == nil {
		t.Fail()
	}

	m, err := New(MethodNorm, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m.(*Norm); !ok {
		t.Fail()
	}
}

func TestNorm(t *testing.T) {

	rng := rand.New(rand.NewSource(38))
	n := 2000
	X := design(n, rng)
	y := make([]float64, n)
	for i := range y {
		y[i] = 1 + 2*X[1][i] + 0.5*rng.NormFloat64()
	}

	m := &Norm{}
	if err := m.Fit(X, y, rng); err != nil {
		t.Fatal(err)
	}

	if !floats.EqualApprox(m.Coeff(), []float64{1, 2}, 0.1) {
		fmt.Printf("coeff=%v\n", m.Coeff())
		t.Fail()
	}
	if math.Abs(m.Sigma()-0.5) > 0.05 {
		fmt.Printf("sigma=%v\n", m.Sigma())
		t.Fail()
	}

	var mn float64
	nd := 5000
	for i := 0; i < nd; i++ {
		mn += m.Draw([]float64{1, 1}, rng)
	}
	mn /= float64(nd)
	if math.Abs(mn-linpred(m.Coeff(), []float64{1, 1})) > 0.05 {
		t.Fail()
	}

	if m.Probs([]float64{1, 0}) != nil {
		t.Fail()
	}
}

func TestNormTooSmall(t *testing.T) {

	m := &Norm{}
	X := [][]float64{{1, 1}, {0, 1}}
	if err := m.Fit(X, []float64{1, 2}, rand.New(rand.NewSource(1))); err == nil {
		t.Fail()
	}
}

func TestLogReg(t *testing.T) {

	rng := rand.New(rand.NewSource(2))
	n := 4000
	X := design(n, rng)
	y := make([]float64, n)
	for i := range y {
		if rng.Float64() < glm.Expit(-0.5+X[1][i]) {
			y[i] = 1
		}
	}

	m := &LogReg{}
	if err := m.Fit(X, y, rng); err != nil {
		t.Fatal(err)
	}

	if !floats.EqualApprox(m.Coeff(), []float64{-0.5, 1}, 0.15) {
		fmt.Printf("coeff=%v\n", m.Coeff())
		t.Fail()
	}

	pr := m.Probs([]float64{1, 0.3})
	if len(pr) != 2 || math.Abs(floats.Sum(pr)-1) > 1e-12 {
		t.Fail()
	}

	for i := 0; i < 100; i++ {
		v := m.Draw([]float64{1, 0}, rng)
		if v != 0 && v != 1 {
			t.Fail()
		}
	}
}

func TestPoisson(t *testing.T) {

	rng := rand.New(rand.NewSource(5))
	n := 3000
	X := design(n, rng)
	y := make([]float64, n)
	m0 := &Poisson{coeff: []float64{0.5, 0.3}}
	for i := range y {
		y[i] = m0.Draw([]float64{1, X[1][i]}, rng)
	}

	m := &Poisson{}
	if err := m.Fit(X, y, rng); err != nil {
		t.Fatal(err)
	}

	if !floats.EqualApprox(m.Coeff(), []float64{0.5, 0.3}, 0.1) {
		fmt.Printf("coeff=%v\n", m.Coeff())
		t.Fail()
	}

	for i := 0; i < 100; i++ {
		v := m.Draw([]float64{1, 1}, rng)
		if v < 0 || v != math.Floor(v) {
			t.Fail()
		}
	}
}

func TestMLogit(t *testing.T) {

	rng := rand.New(rand.NewSource(11))
	n := 4000
	X := design(n, rng)
	y := make([]float64, n)
	truth := []float64{0.2, 1, -0.3, -1}
	probs := make([]float64, 3)
	for i := range y {
		glm.Probs(truth, 3, []float64{1, X[1][i]}, probs)
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

	m := &MLogit{nlevels: 3}
	if err := m.Fit(X, y, rng); err != nil {
		t.Fatal(err)
	}

	if !floats.EqualApprox(m.Coeff(), truth, 0.2) {
		fmt.Printf("coeff=%v\n", m.Coeff())
		t.Fail()
	}

	pr := m.Probs([]float64{1, -0.4})
	if len(pr) != 3 || math.Abs(floats.Sum(pr)-1) > 1e-12 {
		t.Fail()
	}

	counts := make([]float64, 3)
	for i := 0; i < 3000; i++ {
		counts[int(m.Draw([]float64{1, -0.4}, rng))]++
	}
	floats.Scale(1.0/3000, counts)
	if !floats.EqualApprox(counts, pr, 0.04) {
		fmt.Printf("frequencies=%v, probabilities=%v\n", counts, pr)
		t.Fail()
	}

	// Refitting starts from the previous estimates and repeated fits
	// keep succeeding.
	est := m.est
	if len(est) != 4 {
		t.Fatalf("estimates=%v", est)
	}
	for k := 0; k < 5; k++ {
		if err := m.Fit(X, y, rng); err != nil {
			t.Fatal(err)
		}
	}
	if !floats.EqualApprox(m.est, est, 1e-4) {
		fmt.Printf("%v != %v\n", m.est, est)
		t.Fail()
	}
}

// A two-level multinomial model gives the same draws as a logistic
// regression model using the same random stream.
func TestMLogitBinary(t *testing.T) {

	rng := rand.New(rand.NewSource(8))
	n := 500
	X := design(n, rng)
	y := make([]float64, n)
	for i := range y {
		if rng.Float64() < glm.Expit(X[1][i]) {
			y[i] = 1
		}
	}

	m1 := &MLogit{nlevels: 2}
	m2 := &LogReg{}
	if err := m1.Fit(X, y, rand.New(rand.NewSource(3))); err != nil {
		t.Fatal(err)
	}
	if err := m2.Fit(X, y, rand.New(rand.NewSource(3))); err != nil {
		t.Fatal(err)
	}

	if !floats.Equal(m1.Coeff(), m2.Coeff()) {
		t.Fail()
	}

	x := []float64{1, 0.7}
	if !floats.Equal(m1.Probs(x), m2.Probs(x)) {
		t.Fail()
	}

	r1 := rand.New(rand.NewSource(4))
	r2 := rand.New(rand.NewSource(4))
	for i := 0; i < 50; i++ {
		if m1.Draw(x, r1) != m2.Draw(x, r2) {
			t.Fail()
		}
	}
}
