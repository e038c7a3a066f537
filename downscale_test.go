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
	"context"
	"math"
	"testing"
)

func TestDownscale(t *testing.T) {
	rm := testRegionMapping(t)
	src := &testProxySource{data: map[string]*RawProxy{
		proxyKey("CO2", "Energy", 2020): testRaw(2, 4, map[string]map[[2]int]float64{
			"fra": {{0, 0}: 3},
			"deu": {{0, 1}: 1},
		}),
		proxyKey("CO2", "Energy", 2050): testRaw(2, 4, map[string]map[[2]int]float64{
			"fra": {{0, 0}: 1},
			"deu": {{0, 1}: 1},
		}),
	}}
	d := &Downscaler{Mapping: rm, Proxy: NewProxyStore(src)}

	region := mustTrajectory(t, "CO2", "Energy", "EUR",
		[]int{2020, 2050}, []float64{100, 50})
	out, conds, err := d.Downscale(context.Background(), region)
	if err != nil {
		t.Fatal(err)
	}
	if len(conds) != 0 {
		t.Errorf("unexpected conditions: %v", conds)
	}
	if len(out) != 2 {
		t.Fatalf("got %d countries, want 2", len(out))
	}
	byCode := make(map[string]*Trajectory)
	for _, o := range out {
		byCode[o.Code] = o
	}
	if v, _ := byCode["fra"].Value(2020); v != 75 {
		t.Errorf("fra 2020: got %g, want 75", v)
	}
	if v, _ := byCode["deu"].Value(2020); v != 25 {
		t.Errorf("deu 2020: got %g, want 25", v)
	}
	// The country sum reproduces the region value.
	for _, year := range region.Years {
		want, _ := region.Value(year)
		sum := 0.
		for _, o := range out {
			v, _ := o.Value(year)
			sum += v
		}
		if relDiff(sum, want) > 1e-6 {
			t.Errorf("year %d: countries sum to %g, region is %g", year, sum, want)
		}
	}
}

func TestDownscaleZeroCoverageFallbacks(t *testing.T) {
	rm := testRegionMapping(t)
	// 2020 has coverage, 2050 has none: the prior-year weights apply.
	src := &testProxySource{data: map[string]*RawProxy{
		proxyKey("CO2", "Energy", 2020): testRaw(2, 4, map[string]map[[2]int]float64{
			"fra": {{0, 0}: 3},
			"deu": {{0, 1}: 1},
		}),
	}}
	d := &Downscaler{Mapping: rm, Proxy: NewProxyStore(src)}
	region := mustTrajectory(t, "CO2", "Energy", "EUR",
		[]int{2020, 2050}, []float64{100, 40})
	out, conds, err := d.Downscale(context.Background(), region)
	if err != nil {
		t.Fatal(err)
	}
	if len(conds) != 1 || conds[0].Kind != KindZeroProxyCoverage || conds[0].Year != 2050 {
		t.Fatalf("got conditions %v, want one ZeroProxyCoverage for 2050", conds)
	}
	byCode := make(map[string]*Trajectory)
	for _, o := range out {
		byCode[o.Code] = o
	}
	if v, _ := byCode["fra"].Value(2050); v != 30 {
		t.Errorf("fra 2050 (prior-year weights): got %g, want 30", v)
	}

	// No year has coverage: the value splits uniformly.
	d = &Downscaler{Mapping: rm, Proxy: NewProxyStore(&testProxySource{})}
	out, conds, err = d.Downscale(context.Background(), region)
	if err != nil {
		t.Fatal(err)
	}
	if len(conds) != 2 {
		t.Fatalf("got %d conditions, want 2", len(conds))
	}
	for _, c := range conds {
		if c.Kind != KindZeroProxyCoverage {
			t.Errorf("got condition %v, want ZeroProxyCoverage", c)
		}
	}
	byCode = make(map[string]*Trajectory)
	for _, o := range out {
		byCode[o.Code] = o
	}
	if v, _ := byCode["fra"].Value(2020); v != 50 {
		t.Errorf("fra 2020 (uniform): got %g, want 50", v)
	}
	if v, _ := byCode["deu"].Value(2020); v != 50 {
		t.Errorf("deu 2020 (uniform): got %g, want 50", v)
	}
}

func TestDownscaleCombination(t *testing.T) {
	rm, err := testRegionMapping(t).WithCombinations(map[string][]string{
		"sdn_ssd": {"sdn", "ssd"},
	})
	if err != nil {
		t.Fatal(err)
	}
	// The proxy reports the constituents separately with equal
	// weights; egy gets nothing.
	src := &testProxySource{data: map[string]*RawProxy{
		proxyKey("CO2", "Energy", 2020): testRaw(2, 4, map[string]map[[2]int]float64{
			"sdn": {{0, 0}: 1},
			"ssd": {{0, 1}: 1},
		}),
	}}
	d := &Downscaler{Mapping: rm, Proxy: NewProxyStore(src)}
	region := mustTrajectory(t, "CO2", "Energy", "AFR", []int{2020}, []float64{10})
	out, conds, err := d.Downscale(context.Background(), region)
	if err != nil {
		t.Fatal(err)
	}
	byCode := make(map[string]*Trajectory)
	for _, o := range out {
		byCode[o.Code] = o
	}
	// The combined value splits equally between the constituents, and
	// the output carries the real country codes, not the alias.
	if _, ok := byCode["sdn_ssd"]; ok {
		t.Error("alias code should not appear in the output")
	}
	v, _ := byCode["sdn"].Value(2020)
	if math.Abs(v-5.0) > 1e-12 {
		t.Errorf("sdn: got %g, want 5.0", v)
	}
	v, _ = byCode["ssd"].Value(2020)
	if math.Abs(v-5.0) > 1e-12 {
		t.Errorf("ssd: got %g, want 5.0", v)
	}
	if v, _ := byCode["egy"].Value(2020); v != 0 {
		t.Errorf("egy: got %g, want 0", v)
	}
	if len(conds) != 0 {
		t.Errorf("unexpected conditions: %v", conds)
	}
}
