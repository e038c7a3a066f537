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
	"testing"
)

func mustTrajectory(t *testing.T, gas, sector, code string, years []int, values []float64) *Trajectory {
	t.Helper()
	tr, err := NewTrajectory(gas, sector, code, years, values)
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

func TestHarmonize(t *testing.T) {
	h := &Harmonizer{BaseYear: 2020, ConvergenceYear: 2050}
	scen := mustTrajectory(t, "CO2", "Energy", "EUR",
		[]int{2020, 2035, 2050}, []float64{80, 65, 50})
	hist := mustTrajectory(t, "CO2", "Energy", "EUR",
		[]int{2015, 2020}, []float64{95, 100})

	harm, conds, err := h.Harmonize(scen, hist)
	if err != nil {
		t.Fatal(err)
	}
	if len(conds) != 0 {
		t.Errorf("unexpected conditions: %v", conds)
	}
	// The base year matches history bit-for-bit.
	if v, _ := harm.Value(2020); v != 100 {
		t.Errorf("base year: got %g, want exactly 100", v)
	}
	// The convergence year matches the unmodified scenario bit-for-bit.
	if v, _ := harm.Value(2050); v != 50 {
		t.Errorf("convergence year: got %g, want exactly 50", v)
	}
	// Intermediate years are strictly between.
	if v, _ := harm.Value(2035); !(v > 50 && v < 100) {
		t.Errorf("2035: got %g, want strictly between 50 and 100", v)
	}
	// With the linear decay, 2035 is halfway: 65 + 20*0.5 = 75.
	if v, _ := harm.Value(2035); v != 75 {
		t.Errorf("2035: got %g, want 75", v)
	}
	// The input is not modified.
	if v, _ := scen.Value(2020); v != 80 {
		t.Errorf("input changed to %g", v)
	}
}

func TestHarmonizeNoHistory(t *testing.T) {
	h := &Harmonizer{BaseYear: 2020}
	scen := mustTrajectory(t, "CO2", "Energy", "EUR",
		[]int{2020, 2050}, []float64{80, 50})
	harm, conds, err := h.Harmonize(scen, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(conds) != 1 || conds[0].Kind != KindNoHistory {
		t.Fatalf("got conditions %v, want one NoHistory", conds)
	}
	if v, _ := harm.Value(2020); v != 80 {
		t.Errorf("pass-through: got %g, want 80", v)
	}
}

func TestHarmonizeMissingBaseYear(t *testing.T) {
	h := &Harmonizer{BaseYear: 2020}
	scen := mustTrajectory(t, "CO2", "Energy", "EUR",
		[]int{2030, 2050}, []float64{80, 50})
	hist := mustTrajectory(t, "CO2", "Energy", "EUR",
		[]int{2020}, []float64{100})
	_, _, err := h.Harmonize(scen, hist)
	c, ok := AsCondition(err)
	if !ok || c.Kind != KindMissingBaseYear {
		t.Fatalf("got %v, want a MissingBaseYear condition error", err)
	}
	if !c.Kind.Fatal() {
		t.Error("MissingBaseYear should be fatal")
	}
}

func TestHarmonizeDefaultConvergence(t *testing.T) {
	// With no convergence year configured, the offset decays to zero
	// by the last year of the trajectory.
	h := &Harmonizer{BaseYear: 2020}
	scen := mustTrajectory(t, "CO2", "Energy", "EUR",
		[]int{2020, 2060, 2100}, []float64{80, 60, 40})
	hist := mustTrajectory(t, "CO2", "Energy", "EUR",
		[]int{2020}, []float64{100})
	harm, _, err := h.Harmonize(scen, hist)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := harm.Value(2100); v != 40 {
		t.Errorf("final year: got %g, want exactly 40", v)
	}
	if v, _ := harm.Value(2060); v != 70 {
		t.Errorf("2060: got %g, want 70", v)
	}
}

func TestHarmonizeOverride(t *testing.T) {
	h := &Harmonizer{
		BaseYear:        2020,
		ConvergenceYear: 2100,
		Overrides: map[VarKey]HarmonizationOverride{
			{Gas: "CO2", Sector: "Energy"}: {ConvergenceYear: 2040},
		},
	}
	scen := mustTrajectory(t, "CO2", "Energy", "EUR",
		[]int{2020, 2040, 2100}, []float64{80, 70, 40})
	hist := mustTrajectory(t, "CO2", "Energy", "EUR",
		[]int{2020}, []float64{100})
	harm, _, err := h.Harmonize(scen, hist)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := harm.Value(2040); v != 70 {
		t.Errorf("override convergence year: got %g, want exactly 70", v)
	}
}

func TestHarmonizeAll(t *testing.T) {
	h := &Harmonizer{BaseYear: 2020, ConvergenceYear: 2050}
	ref, err := NewHistoricalReference([]*Trajectory{
		mustTrajectory(t, "CO2", "Energy", "EUR", []int{2020}, []float64{100}),
	}, 2020)
	if err != nil {
		t.Fatal(err)
	}
	scens := []*Trajectory{
		mustTrajectory(t, "CO2", "Energy", "EUR", []int{2020, 2050}, []float64{80, 50}),
		mustTrajectory(t, "CO2", "Energy", "ASIA", []int{2020, 2050}, []float64{30, 20}),
		mustTrajectory(t, "CO2", "Energy", "LAM", []int{2030, 2050}, []float64{10, 5}),
	}
	out, conds, err := h.HarmonizeAll(scens, ref)
	if err != nil {
		t.Fatal(err)
	}
	// LAM lacks the base year and is dropped; ASIA has no history and
	// passes through.
	if len(out) != 2 {
		t.Fatalf("got %d harmonized trajectories, want 2", len(out))
	}
	var noHistory, missingBase int
	for _, c := range conds {
		switch c.Kind {
		case KindNoHistory:
			noHistory++
		case KindMissingBaseYear:
			missingBase++
		}
	}
	if noHistory != 1 || missingBase != 1 {
		t.Errorf("got %d NoHistory and %d MissingBaseYear conditions, want 1 and 1",
			noHistory, missingBase)
	}
	if v, _ := out[0].Value(2020); v != 100 {
		t.Errorf("EUR base year: got %g, want 100", v)
	}
}
