/*
Copyright © 2024 the Concordia authors.
This file is part of Concordia.

Concordia is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Concordia is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Concordia.  If not, see <http://www.gnu.org/licenses/>.*/

package concordia

import (
	"math"
	"reflect"
	"testing"
)

func TestNewTrajectory(t *testing.T) {
	tr, err := NewTrajectory("CO2", "Energy", "fra",
		[]int{2050, 2020, 2035}, []float64{50, 80, 65})
	if err != nil {
		t.Fatal(err)
	}
	wantYears := []int{2020, 2035, 2050}
	wantValues := []float64{80, 65, 50}
	if !reflect.DeepEqual(tr.Years, wantYears) {
		t.Errorf("years: got %v, want %v", tr.Years, wantYears)
	}
	if !reflect.DeepEqual(tr.Values, wantValues) {
		t.Errorf("values: got %v, want %v", tr.Values, wantValues)
	}

	if _, err := NewTrajectory("CO2", "Energy", "fra",
		[]int{2020, 2020}, []float64{1, 2}); err == nil {
		t.Error("duplicate year should cause an error")
	}
	if _, err := NewTrajectory("CO2", "Energy", "fra",
		[]int{2020}, []float64{1, 2}); err == nil {
		t.Error("mismatched lengths should cause an error")
	}
}

func TestTrajectoryValue(t *testing.T) {
	tr, err := NewTrajectory("CO2", "Energy", "fra",
		[]int{2020, 2035, 2050}, []float64{80, 65, 50})
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := tr.Value(2035); !ok || v != 65 {
		t.Errorf("Value(2035) = %g, %v; want 65, true", v, ok)
	}
	if _, ok := tr.Value(2030); ok {
		t.Error("Value(2030) should not be present")
	}
}

func TestTrajectoryAnnual(t *testing.T) {
	tr, err := NewTrajectory("CO2", "Energy", "fra",
		[]int{2020, 2030}, []float64{10, 20})
	if err != nil {
		t.Fatal(err)
	}
	a := tr.Annual()
	if len(a.Years) != 11 {
		t.Fatalf("got %d years, want 11", len(a.Years))
	}
	for i, y := range a.Years {
		want := 10 + float64(y-2020)
		if math.Abs(a.Values[i]-want) > 1e-12 {
			t.Errorf("year %d: got %g, want %g", y, a.Values[i], want)
		}
	}
	// The end points pass through unchanged.
	if a.Values[0] != 10 || a.Values[10] != 20 {
		t.Errorf("end points: got %g and %g, want 10 and 20", a.Values[0], a.Values[10])
	}
}

func TestConvertToKgPerSec(t *testing.T) {
	tr, err := NewTrajectory("CO2", "Energy", "fra",
		[]int{2020}, []float64{100})
	if err != nil {
		t.Fatal(err)
	}
	tr.Units = "Mt CO2/yr"
	c, err := tr.ConvertToKgPerSec()
	if err != nil {
		t.Fatal(err)
	}
	want := 100. * 1.0e9 / 31536000.
	if math.Abs(c.Values[0]-want)/want > 1e-12 {
		t.Errorf("got %g kg/s, want %g", c.Values[0], want)
	}
	if c.Units != "kg/s" {
		t.Errorf("units: got %q, want kg/s", c.Units)
	}
	// The receiver is unchanged.
	if tr.Values[0] != 100 {
		t.Errorf("receiver changed to %g", tr.Values[0])
	}

	// Already-converted trajectories pass through.
	c2, err := c.ConvertToKgPerSec()
	if err != nil {
		t.Fatal(err)
	}
	if c2.Values[0] != c.Values[0] {
		t.Error("kg/s trajectory should pass through unchanged")
	}

	tr.Units = "furlongs CO2/yr"
	if _, err := tr.ConvertToKgPerSec(); err == nil {
		t.Error("unsupported prefix should cause an error")
	}
}

func TestSumTrajectories(t *testing.T) {
	a, err := NewTrajectory("CO2", "Energy", "fra",
		[]int{2020, 2035, 2050}, []float64{60, 50, 40})
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewTrajectory("CO2", "Energy", "deu",
		[]int{2020, 2050}, []float64{40, 10})
	if err != nil {
		t.Fatal(err)
	}
	sum, err := SumTrajectories([]*Trajectory{a, b}, "CO2", "Energy", "EUR")
	if err != nil {
		t.Fatal(err)
	}
	// Only shared years survive.
	wantYears := []int{2020, 2050}
	wantValues := []float64{100, 50}
	if !reflect.DeepEqual(sum.Years, wantYears) {
		t.Errorf("years: got %v, want %v", sum.Years, wantYears)
	}
	if !reflect.DeepEqual(sum.Values, wantValues) {
		t.Errorf("values: got %v, want %v", sum.Values, wantValues)
	}
	if sum.Code != "EUR" {
		t.Errorf("code: got %q, want EUR", sum.Code)
	}

	b.Units = "kt CO2/yr"
	if _, err := SumTrajectories([]*Trajectory{a, b}, "CO2", "Energy", "EUR"); err == nil {
		t.Error("mixed units should cause an error")
	}
}
