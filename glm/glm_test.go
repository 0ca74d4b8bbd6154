package glm

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/edbonneville/smcfcs/statmodel"
	"gonum.org/v1/gonum/floats"
)

func scalarClose(x, y, eps float64) bool {
	return math.Abs(x-y) <= eps
}

func dataset(da [][]float64, na []string, wgt []float64, xnames []string) statmodel.Dataset {
	if wgt != nil {
		da = append(da, wgt)
		na = append(na, "w")
	}
	return statmodel.NewDataset(da, na, "y", xnames)
}

func data1(wgt bool) statmodel.Dataset {

	y := []float64{0, 1, 3, 2, 1, 1, 0}
	x1 := []float64{1, 1, 1, 1, 1, 1, 1}
	x2 := []float64{4, 1, -1, 3, 5, -5, 3}
	var w []float64
	if wgt {
		w = []float64{1, 2, 2, 3, 1, 3, 2}
	}

	return dataset([][]float64{y, x1, x2}, []string{"y", "x1", "x2"}, w, []string{"x1", "x2"})
}

func data2(wgt bool) statmodel.Dataset {

	y := []float64{0, 0, 1, 0, 1, 0, 0}
	x1 := []float64{1, 1, 1, 1, 1, 1, 1}
	x2 := []float64{4, 1, -1, 3, 5, -5, 3}
	x3 := []float64{1, -1, 1, 1, 2, 5, -1}
	var w []float64
	if wgt {
		w = []float64{2, 1, 3, 3, 4, 2, 3}
	}

	return dataset([][]float64{y, x1, x2, x3}, []string{"y", "x1", "x2", "x3"}, w,
		[]string{"x1", "x2", "x3"})
}

func data3(wgt bool) statmodel.Dataset {

	y := []float64{1, 1, 1, 0, 0, 0, 0}
	x1 := []float64{1, 1, 1, 1, 1, 1, 1}
	x2 := []float64{0, 1, 0, 0, -1, 0, 1}
	var w []float64
	if wgt {
		w = []float64{3, 3, 2, 3, 1, 3, 2}
	}

	return dataset([][]float64{y, x1, x2}, []string{"y", "x1", "x2"}, w, []string{"x1", "x2"})
}

func data5(wgt bool) statmodel.Dataset {

	y := []float64{0, 1, 3, 2, 1, 1, 0}
	x1 := []float64{1, 1, 1, 1, 1, 1, 1}
	x2 := []float64{4, 1, -1, 3, 5, -5, 3}
	off := []float64{0, 0, 1, 1, 0, 0, 0}
	var w []float64
	if wgt {
		w = []float64{1, 2, 2, 3, 1, 3, 2}
	}

	return dataset([][]float64{y, x1, x2, off}, []string{"y", "x1", "x2", "off"}, w,
		[]string{"x1", "x2"})
}

// A test problem
type testprob struct {
	family FamilyType
	data   statmodel.Dataset
	weight bool
	offset bool
	params []float64
	stderr []float64
	vcov   []float64
	ll     float64
	scale  float64
}

var glmTests = []testprob{
	{
		family: GaussianFamily,
		data:   data1(true),
		weight: true,
		params: []float64{1.316285, -0.047555},
		stderr: []float64{0.277652, 0.080877},
		vcov:   []float64{0.077091, -0.004205, -0.004205, 0.006541},
		ll:     -19.14926021670413,
		scale:  1.0414236578435769,
	},
	{
		family: GaussianFamily,
		data:   data2(true),
		weight: true,
		params: []float64{0.191194, 0.046013, 0.090639},
		stderr: []float64{0.199909, 0.044360, 0.082265},
		vcov: []float64{0.039963, -0.005955, -0.011730,
			-0.005955, 0.001968, 0.001831,
			-0.011730, 0.001831, 0.006768},
		ll:    -11.876495505764467,
		scale: 0.25882586275287583,
	},
	{
		family: PoissonFamily,
		data:   data1(true),
		weight: true,
		params: []float64{0.266817, -0.035637},
		stderr: []float64{0.236179, 0.067480},
		vcov:   []float64{0.055780, -0.001012, -0.001012, 0.004553},
		ll:     -19.00280708909699,
		scale:  1,
	},
	{
		family: PoissonFamily,
		data:   data3(true),
		weight: true,
		params: []float64{-0.896361, 0.467334},
		stderr: []float64{0.428867, 0.647330},
		vcov:   []float64{0.183927, -0.157139, -0.157139, 0.419036},
		ll:     -13.768882387425702,
		scale:  1,
	},
	{
		family: BinomialFamily,
		data:   data2(true),
		weight: true,
		params: []float64{-1.378328, 0.201911, 0.407917},
		stderr: []float64{0.927975, 0.187708, 0.363425},
		vcov: []float64{0.861138, -0.122218, -0.258570, -0.122218, 0.035234, 0.037427,
			-0.258570, 0.037427, 0.132078},
		ll:    -11.17418536789415,
		scale: 1,
	},
	{
		family: BinomialFamily,
		data:   data3(false),
		params: []float64{-0.434175, 0.868350},
		stderr: []float64{0.830041, 1.306904},
		vcov:   []float64{0.688967, -0.330063, -0.330063, 1.707998},
		ll:     -4.53963553741,
		scale:  1,
	},
	{
		family: BinomialFamily,
		data:   data2(false),
		params: []float64{-1.650145, 0.190136, 0.344331},
		stderr: []float64{1.505798, 0.323601, 0.593428},
		vcov: []float64{2.267429, -0.337163, -0.684836,
			-0.337163, 0.104718, 0.116028,
			-0.684836, 0.116028, 0.352157},
		ll:    -3.9607532681097091,
		scale: 1,
	},
	{
		family: PoissonFamily,
		data:   data1(false),
		params: []float64{0.213361, -0.081530},
		stderr: []float64{0.357095, 0.100337},
		vcov:   []float64{0.127517, -0.005034, -0.005034, 0.010067},
		ll:     -9.1041354864426385,
		scale:  1,
	},
	{
		family: GaussianFamily,
		data:   data1(false),
		params: []float64{1.290837, -0.103586},
		stderr: []float64{0.456706, 0.130298},
		vcov:   []float64{0.208581, -0.024254, -0.024254, 0.016978},
		ll:     -9.621454,
		scale:  1.21752988048,
	},
	{
		family: GaussianFamily,
		data:   data3(false),
		params: []float64{0.4, 0.2},
		stderr: []float64{0.219089, 0.334664},
		vcov:   []float64{0.048, -0.016, -0.016, 0.112},
		ll:     -4.944550,
		scale:  0.32,
	},
	{
		family: PoissonFamily,
		data:   data5(true),
		weight: true,
		offset: true,
		params: []float64{-0.183029, -0.075427},
		stderr: []float64{0.236279, 0.074241},
		vcov:   []float64{0.055828, -0.001225, -0.001225, 0.005512},
		ll:     -15.259195632772048,
		scale:  1.0,
	},
}

func TestFit(t *testing.T) {

	for jd, ds := range glmTests {

		config := DefaultConfig(ds.family)
		if ds.weight {
			config.WeightVar = "w"
		}
		if ds.offset {
			config.OffsetVar = "off"
		}

		glm, err := NewGLM(ds.data, config)
		if err != nil {
			t.Fatal(err)
		}

		result, err := glm.Fit()
		if err != nil {
			t.Fatal(err)
		}

		if !floats.EqualApprox(result.Params(), ds.params, 1e-5) {
			fmt.Printf("params failed %d:\n", jd)
			fmt.Printf("%v\n", result.Params())
			t.Fail()
		}

		if math.Abs(result.Scale()-ds.scale) > 1e-5 {
			fmt.Printf("scale failed: %d\n", jd)
			t.Fail()
		}

		if !scalarClose(result.LogLike(), ds.ll, 1e-5) {
			fmt.Printf("loglike failed: %d\n", jd)
			t.Fail()
		}

		if !floats.EqualApprox(result.StdErr(), ds.stderr, 1e-5) {
			fmt.Printf("stderr failed: %d\n", jd)
			t.Fail()
		}

		if !floats.EqualApprox(result.VCov(), ds.vcov, 1e-5) {
			fmt.Printf("vcov failed: %d\n", jd)
			t.Fail()
		}

		if !strings.Contains(result.Summary().String(), "x2") {
			fmt.Printf("summary failed: %d\n", jd)
			t.Fail()
		}
	}
}

func TestFitConcurrent(t *testing.T) {

	for _, fam := range []FamilyType{GaussianFamily, PoissonFamily, BinomialFamily} {

		da := data2(true)
		if fam != BinomialFamily {
			da = data1(true)
		}

		c1 := DefaultConfig(fam)
		c1.WeightVar = "w"
		c2 := DefaultConfig(fam)
		c2.WeightVar = "w"
		c2.ConcurrentIRLS = 1

		m1, _ := NewGLM(da, c1)
		m2, _ := NewGLM(da, c2)
		r1, err1 := m1.Fit()
		r2, err2 := m2.Fit()
		if err1 != nil || err2 != nil {
			t.Fatal(err1, err2)
		}

		if !floats.EqualApprox(r1.Params(), r2.Params(), 1e-10) {
			t.Fail()
		}
	}
}

func TestNewGLMErrors(t *testing.T) {

	da := data1(false)

	c := DefaultConfig(GaussianFamily)
	c.WeightVar = "nope"
	if _, err := NewGLM(da, c); err == nil {
		t.Fail()
	}

	c = DefaultConfig(PoissonFamily)
	c.Link, _ = NewLink(LogitLink)
	if _, err := NewGLM(da, c); err == nil {
		t.Fail()
	}

	c = DefaultConfig(GaussianFamily)
	c.Start = []float64{0}
	if _, err := NewGLM(da, c); err == nil {
		t.Fail()
	}

	bad := statmodel.NewDataset(da.Data(), da.Names(), "z", da.XNames())
	if _, err := NewGLM(bad, nil); err == nil {
		t.Fail()
	}

	if _, err := NewFamily(FamilyType(99)); err == nil {
		t.Fail()
	}
}

func TestSingular(t *testing.T) {

	y := []float64{1, 2, 3, 4, 5}
	x1 := []float64{1, 1, 1, 1, 1}
	x2 := []float64{2, 2, 2, 2, 2}
	da := statmodel.NewDataset([][]float64{y, x1, x2}, []string{"y", "x1", "x2"}, "y", []string{"x1", "x2"})

	glm, err := NewGLM(da, DefaultConfig(GaussianFamily))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := glm.Fit(); err == nil {
		t.Fail()
	}
}

func TestSetLink(t *testing.T) {

	fam, _ := NewFamily(BinomialFamily)
	for _, v := range []LinkType{LogitLink, LogLink, IdentityLink} {
		link, err := NewLink(v)
		if err != nil {
			t.Fatal(err)
		}
		if !fam.IsValidLink(link) {
			t.Fail()
		}
	}
}

func TestExpit(t *testing.T) {

	for _, x := range []float64{-800, -30, -1, 0, 1, 30, 800} {
		p := Expit(x)
		if math.IsNaN(p) || p < 0 || p > 1 {
			t.Fail()
		}
		if !scalarClose(p+Expit(-x), 1, 1e-12) {
			t.Fail()
		}
	}
	if !scalarClose(Expit(0), 0.5, 1e-15) {
		t.Fail()
	}
}
