package data

import (
	"fmt"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
)

func frame1() *Frame {

	nan := math.NaN()
	f, err := NewFrame(
		NumericColumn("x", []float64{1, 2, nan, 4}),
		BinaryColumn("b", []float64{0, 1, 1, nan}),
		CategoricalColumn("g", []string{"a", "b", "c"}, []float64{0, 2, 1, 1}),
	)
	if err != nil {
		panic(err)
	}
	return f
}

func TestFrame(t *testing.T) {

	f := frame1()

	if f.NumObs() != 4 {
		t.Fail()
	}
	if fmt.Sprintf("%v", f.Names()) != "[x b g]" {
		t.Fail()
	}
	if f.NumMissing("x") != 1 || f.NumMissing("g") != 0 {
		t.Fail()
	}
	if fmt.Sprintf("%v", f.Missing("b")) != "[false false false true]" {
		t.Fail()
	}
	if f.Column("z") != nil || f.Has("z") || !f.Has("g") {
		t.Fail()
	}
	if f.Column("g").NumLevels() != 3 || f.Column("b").NumLevels() != 2 {
		t.Fail()
	}

	g := f.Clone()
	if !f.Equal(g) {
		t.Fail()
	}

	g.Values("x")[2] = 3
	if f.Equal(g) || !math.IsNaN(f.Values("x")[2]) {
		t.Fail()
	}
}

func TestNewFrameErrors(t *testing.T) {

	for k, cols := range [][]*Column{
		{NumericColumn("x", []float64{1, 2}), NumericColumn("x", []float64{1, 2})},
		{NumericColumn("x", []float64{1, 2}), NumericColumn("y", []float64{1})},
		{BinaryColumn("b", []float64{0, 2})},
		{CategoricalColumn("g", []string{"a", "b"}, []float64{0, 2})},
		{CategoricalColumn("g", []string{"a", "b"}, []float64{0, 0.5})},
		{CategoricalColumn("g", []string{"a"}, []float64{0, 0})},
	} {
		if _, err := NewFrame(cols...); err == nil {
			fmt.Printf("case %d: expected an error\n", k)
			t.Fail()
		}
	}
}

func TestDesign(t *testing.T) {

	f := frame1()

	d := &Design{
		Intercept: true,
		Terms: []Term{
			Var("x"),
			{Factors: []Factor{{Var: "x", Power: 2}}},
			{Factors: []Factor{{Var: "g"}, {Var: "x"}}},
			Var("b"),
		},
	}

	if err := d.Check(f); err != nil {
		t.Fatal(err)
	}

	if d.Width(f) != 6 {
		t.Fail()
	}

	names := fmt.Sprintf("%v", d.Names(f))
	if names != "[(Intercept) x x^2 g=b:x g=c:x b]" {
		fmt.Printf("names=%s\n", names)
		t.Fail()
	}

	if fmt.Sprintf("%v", d.Vars()) != "[x g b]" {
		t.Fail()
	}

	row := d.Row(f, 1, nil)
	if !floats.Equal(row, []float64{1, 2, 4, 0, 2, 1}) {
		fmt.Printf("row=%v\n", row)
		t.Fail()
	}

	cols := d.Columns(f)
	if cols[4][0] != 0 || cols[4][1] != 2 || !math.IsNaN(cols[4][2]) || cols[4][3] != 0 {
		t.Fail()
	}
	if cols[3][3] != 4 || !math.IsNaN(cols[1][2]) || !math.IsNaN(cols[5][3]) {
		fmt.Printf("cols=%v\n", cols)
		t.Fail()
	}
}

func TestDesignErrors(t *testing.T) {

	f := frame1()

	for k, d := range []*Design{
		{Terms: []Term{Var("z")}},
		{Terms: []Term{{Factors: []Factor{{Var: "g", Power: 2}}}}},
		{Terms: []Term{{Factors: []Factor{{Var: "g"}, {Var: "g"}}}}},
		{Terms: []Term{{}}},
	} {
		if err := d.Check(f); err == nil {
			fmt.Printf("case %d: expected an error\n", k)
			t.Fail()
		}
	}
}

// A categorical factor gives the same design matrix as explicit
// numeric indicator columns.
func TestDummyEncoding(t *testing.T) {

	f := frame1()
	g, err := NewFrame(
		NumericColumn("x", f.Values("x")),
		NumericColumn("gb", []float64{0, 0, 1, 1}),
		NumericColumn("gc", []float64{0, 1, 0, 0}),
	)
	if err != nil {
		t.Fatal(err)
	}

	d1 := &Design{Intercept: true, Terms: []Term{Var("g"), {Factors: []Factor{{Var: "g"}, {Var: "x"}}}}}
	d2 := &Design{Intercept: true, Terms: []Term{Var("gb"), Var("gc"),
		{Factors: []Factor{{Var: "gb"}, {Var: "x"}}}, {Factors: []Factor{{Var: "gc"}, {Var: "x"}}}}}

	for i := 0; i < f.NumObs(); i++ {
		r1 := d1.Row(f, i, nil)
		r2 := d2.Row(g, i, nil)
		for j := range r1 {
			if r1[j] != r2[j] && !(math.IsNaN(r1[j]) && math.IsNaN(r2[j])) {
				fmt.Printf("row %d: %v != %v\n", i, r1, r2)
				t.Fail()
			}
		}
	}
}
