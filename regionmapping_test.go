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
	"reflect"
	"strings"
	"testing"
)

const testMapping = `country;region;name
FRA;EUR;France
DEU;EUR;Germany
SDN;AFR;Sudan
SSD;AFR;South Sudan
EGY;AFR;Egypt
`

func testRegionMapping(t *testing.T) *RegionMapping {
	t.Helper()
	rm, err := ReadRegionMapping(strings.NewReader(testMapping), ';', "country", "region")
	if err != nil {
		t.Fatal(err)
	}
	return rm
}

func TestReadRegionMapping(t *testing.T) {
	rm := testRegionMapping(t)
	r, err := rm.Region("FRA")
	if err != nil {
		t.Fatal(err)
	}
	if r != "EUR" {
		t.Errorf("FRA: got %q, want EUR", r)
	}
	if got := rm.Countries("AFR"); !reflect.DeepEqual(got, []string{"egy", "sdn", "ssd"}) {
		t.Errorf("AFR countries: got %v", got)
	}
	if got := rm.Regions(); !reflect.DeepEqual(got, []string{"AFR", "EUR"}) {
		t.Errorf("regions: got %v", got)
	}
	_, err = rm.Region("atlantis")
	if c, ok := AsCondition(err); !ok || c.Kind != KindUnresolvedCountry {
		t.Errorf("got %v, want an UnresolvedCountry condition error", err)
	}
}

func TestWithCombinations(t *testing.T) {
	rm := testRegionMapping(t)
	rm2, err := rm.WithCombinations(map[string][]string{"sdn_ssd": {"sdn", "ssd"}})
	if err != nil {
		t.Fatal(err)
	}
	// The alias replaces its members in the canonical space.
	if got := rm2.Countries("AFR"); !reflect.DeepEqual(got, []string{"egy", "sdn_ssd"}) {
		t.Errorf("AFR countries: got %v", got)
	}
	if got := rm2.Constituents("sdn_ssd"); !reflect.DeepEqual(got, []string{"sdn", "ssd"}) {
		t.Errorf("constituents: got %v", got)
	}
	if got := rm2.Canonical("ssd"); got != "sdn_ssd" {
		t.Errorf("Canonical(ssd): got %q", got)
	}
	// Members still resolve to their region.
	if r, err := rm2.Region("sdn"); err != nil || r != "AFR" {
		t.Errorf("Region(sdn): got %q, %v", r, err)
	}
	// The original mapping is unchanged.
	if got := rm.Countries("AFR"); !reflect.DeepEqual(got, []string{"egy", "sdn", "ssd"}) {
		t.Errorf("original changed: %v", got)
	}

	// Members spanning regions are rejected.
	if _, err := rm.WithCombinations(map[string][]string{"bad": {"fra", "egy"}}); err == nil {
		t.Error("cross-region combination should cause an error")
	}
	// A country cannot be in two combinations.
	if _, err := rm.WithCombinations(map[string][]string{
		"a": {"sdn", "ssd"}, "b": {"ssd", "egy"},
	}); err == nil {
		t.Error("overlapping combinations should cause an error")
	}
	// Unknown members are rejected.
	if _, err := rm.WithCombinations(map[string][]string{"x": {"atlantis"}}); err == nil {
		t.Error("unknown member should cause an error")
	}
}

func TestAggregate(t *testing.T) {
	rm := testRegionMapping(t)
	trajs := []*Trajectory{
		mustTrajectory(t, "CO2", "Energy", "fra", []int{2020, 2050}, []float64{60, 30}),
		mustTrajectory(t, "CO2", "Energy", "deu", []int{2020, 2050}, []float64{40, 20}),
		mustTrajectory(t, "CO2", "Energy", "egy", []int{2020, 2050}, []float64{10, 15}),
	}
	agg, err := rm.Aggregate(trajs)
	if err != nil {
		t.Fatal(err)
	}
	if len(agg) != 2 {
		t.Fatalf("got %d regions, want 2", len(agg))
	}
	// Output is sorted by region.
	if agg[0].Code != "AFR" || agg[1].Code != "EUR" {
		t.Errorf("codes: got %q, %q", agg[0].Code, agg[1].Code)
	}
	if v, _ := agg[1].Value(2020); v != 100 {
		t.Errorf("EUR 2020: got %g, want 100", v)
	}
	if v, _ := agg[0].Value(2050); v != 15 {
		t.Errorf("AFR 2050: got %g, want 15", v)
	}

	trajs = append(trajs, mustTrajectory(t, "CO2", "Energy", "atlantis", []int{2020}, []float64{1}))
	if _, err := rm.Aggregate(trajs); err == nil {
		t.Error("unmapped country should cause an error")
	}
}

func TestFilter(t *testing.T) {
	rm := testRegionMapping(t)
	f := rm.Filter([]string{"fra", "egy"})
	if got := f.Regions(); !reflect.DeepEqual(got, []string{"AFR", "EUR"}) {
		t.Errorf("regions: got %v", got)
	}
	if got := f.Countries("EUR"); !reflect.DeepEqual(got, []string{"fra"}) {
		t.Errorf("EUR countries: got %v", got)
	}
	if _, err := f.Region("deu"); err == nil {
		t.Error("filtered-out country should be unresolved")
	}
}
