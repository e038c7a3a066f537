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
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// ReadIAMC reads scenario or inventory data from an IAMC-style CSV
// table with columns Model, Scenario, Region (or Country), Variable,
// Unit followed by one column per year. Variable names are resolved
// through vd into typed (gas, sector) keys; variables that do not
// match the template are skipped. Empty year cells are treated as
// missing, not zero.
func ReadIAMC(r io.Reader, vd *VariableDefinitions) ([]*Trajectory, error) {
	d := csv.NewReader(r)
	d.Comment = '#'
	d.TrimLeadingSpace = true
	lines, err := d.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("concordia: reading IAMC table: %v", err)
	}
	if len(lines) < 2 {
		return nil, fmt.Errorf("concordia: IAMC table has no data rows")
	}
	header := lines[0]
	cols := make(map[string]int)
	var yearCols []int
	var years []int
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if y, err := strconv.Atoi(name); err == nil {
			yearCols = append(yearCols, i)
			years = append(years, y)
			continue
		}
		cols[name] = i
	}
	codeCol, ok := cols["region"]
	if !ok {
		codeCol, ok = cols["country"]
	}
	if !ok {
		return nil, fmt.Errorf("concordia: IAMC table is missing a Region or Country column")
	}
	varCol, ok := cols["variable"]
	if !ok {
		return nil, fmt.Errorf("concordia: IAMC table is missing a Variable column")
	}
	unitCol, hasUnit := cols["unit"]
	if len(yearCols) == 0 {
		return nil, fmt.Errorf("concordia: IAMC table has no year columns")
	}

	var out []*Trajectory
	for n, line := range lines[1:] {
		gas, sector, err := vd.ParseName(strings.TrimSpace(line[varCol]))
		if err != nil {
			continue
		}
		if _, err := vd.Get(gas, sector); err != nil {
			// Subsector rows resolve against their parent sector.
			if _, perr := vd.Get(gas, parentSector(sector)); perr != nil {
				return nil, fmt.Errorf("concordia: IAMC table row %d: %v", n+2, err)
			}
		}
		var ty []int
		var tv []float64
		for i, c := range yearCols {
			s := strings.TrimSpace(line[c])
			if s == "" {
				continue
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("concordia: IAMC table row %d year %d: %v", n+2, years[i], err)
			}
			ty = append(ty, years[i])
			tv = append(tv, v)
		}
		code := strings.ToLower(strings.TrimSpace(line[codeCol]))
		t, err := NewTrajectory(gas, sector, code, ty, tv)
		if err != nil {
			return nil, err
		}
		if hasUnit {
			t.Units = strings.TrimSpace(line[unitCol])
		}
		out = append(out, t)
	}
	return out, nil
}

type seriesKey struct {
	gas, sector, code string
}

// HistoricalReference holds per-country or per-region historical
// emission series and exposes base-year lookup. It is read-only
// after construction and safe for concurrent use.
type HistoricalReference struct {
	baseYear int
	series   map[seriesKey]*Trajectory
}

// NewHistoricalReference creates a historical reference for the
// given base year. Multiple trajectories with the same key are
// rejected.
func NewHistoricalReference(trajs []*Trajectory, baseYear int) (*HistoricalReference, error) {
	h := &HistoricalReference{
		baseYear: baseYear,
		series:   make(map[seriesKey]*Trajectory),
	}
	for _, t := range trajs {
		k := seriesKey{gas: t.Gas, sector: t.Sector, code: t.Code}
		if _, ok := h.series[k]; ok {
			return nil, fmt.Errorf("concordia: duplicate historical series %s", t)
		}
		h.series[k] = t
	}
	return h, nil
}

// BaseYear returns the base year of the reference.
func (h *HistoricalReference) BaseYear() int { return h.baseYear }

// Series returns the historical series for the given key, if present.
func (h *HistoricalReference) Series(gas, sector, code string) (*Trajectory, bool) {
	t, ok := h.series[seriesKey{gas: gas, sector: sector, code: code}]
	return t, ok
}

// BaseValue returns the historical value at the base year for the
// given key. The second returned value is false if either the series
// or the base year is missing.
func (h *HistoricalReference) BaseValue(gas, sector, code string) (float64, bool) {
	t, ok := h.Series(gas, sector, code)
	if !ok {
		return 0, false
	}
	return t.Value(h.baseYear)
}

// Trajectories returns all series sorted by key.
func (h *HistoricalReference) Trajectories() []*Trajectory {
	keys := make([]seriesKey, 0, len(h.series))
	for k := range h.series {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.gas != b.gas {
			return a.gas < b.gas
		}
		if a.sector != b.sector {
			return a.sector < b.sector
		}
		return a.code < b.code
	})
	out := make([]*Trajectory, len(keys))
	for i, k := range keys {
		out[i] = h.series[k]
	}
	return out
}

// AggregateRegions sums the country-level reference up to the
// regions of the given mapping, returning a new region-level
// reference. Country codes absent from the mapping are skipped and
// returned so the caller can account for uncovered history.
func (h *HistoricalReference) AggregateRegions(rm *RegionMapping) (*HistoricalReference, []string, error) {
	var covered []*Trajectory
	uncoveredSet := make(map[string]bool)
	for _, t := range h.Trajectories() {
		if _, err := rm.Region(t.Code); err != nil {
			uncoveredSet[t.Code] = true
			continue
		}
		covered = append(covered, t)
	}
	agg, err := rm.Aggregate(covered)
	if err != nil {
		return nil, nil, err
	}
	o, err := NewHistoricalReference(agg, h.baseYear)
	if err != nil {
		return nil, nil, err
	}
	var uncovered []string
	for c := range uncoveredSet {
		uncovered = append(uncovered, c)
	}
	sort.Strings(uncovered)
	return o, uncovered, nil
}

// UncoveredMass sums the base-year historical mass in the given
// uncovered countries per (gas, sector), so that history lost to
// aggregation can be reported. The "World" pseudo-country is ignored.
func (h *HistoricalReference) UncoveredMass(uncovered []string) map[VarKey]float64 {
	set := make(map[string]bool)
	for _, c := range uncovered {
		set[strings.ToLower(c)] = true
	}
	out := make(map[VarKey]float64)
	for k, t := range h.series {
		if !set[k.code] || strings.EqualFold(k.code, "world") {
			continue
		}
		if v, ok := t.Value(h.baseYear); ok {
			out[VarKey{Gas: k.gas, Sector: k.sector}] += v
		}
	}
	return out
}
