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
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
)

// A Workflow drives the full pipeline for one scenario: harmonize,
// downscale, grid and assemble every (gas, sector) unit of work, and
// collect reportable conditions into a run report.
//
// Units are independent and run concurrently; all shared inputs are
// read-only snapshots. Cancellation is coarse-grained: a canceled
// context aborts between units and partially completed units are
// discarded.
type Workflow struct {
	// Model holds the region-level scenario trajectories. Variables
	// flagged Global are reported under the "world" code.
	Model []*Trajectory

	// History is the country-level historical reference inventory.
	History *HistoricalReference

	Mapping    *RegionMapping
	Defs       *VariableDefinitions
	Harmonizer *Harmonizer
	Proxy      *ProxyStore
	Grid       *GridDef

	// AnnualInterpolation expands reporting years to annual steps
	// before gridding. The default keeps the reporting years.
	AnnualInterpolation bool

	// UncoveredThreshold is the relative amount of base-year
	// historical mass missing from the region mapping above which a
	// warning is logged. The default is 0.01.
	UncoveredThreshold float64

	// NumWorkers is the number of concurrent unit workers. The
	// default is runtime.GOMAXPROCS(0).
	NumWorkers int

	Logger *logrus.Logger
}

func (w *Workflow) logger() *logrus.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return logrus.StandardLogger()
}

// unitWork is one independent (gas, sector) unit of work.
type unitWork struct {
	def     *VariableDef
	regions []*Trajectory
}

// unitResult is the outcome of one unit: the per-sector monthly
// layers plus the expected annual totals used for verification.
type unitResult struct {
	def    *VariableDef
	years  []int
	months []*sparse.SparseArray // len(years)*12
	totals map[int]float64       // expected rate per year, kg/s
	conds  []Condition
	err    error
}

// Run executes the pipeline and returns the assembled output fields
// keyed by variable name (for example "CO2_em_anthro"), along with
// the run report. A unit failure never aborts sibling units; Run
// returns a non-nil error only for structural problems or
// cancellation.
func (w *Workflow) Run(ctx context.Context) (map[string]*GriddedField, *Report, error) {
	report := NewReport()
	if w.Mapping == nil || w.Proxy == nil || w.History == nil || w.Defs == nil || w.Grid == nil {
		report.Status = StatusFailed
		return nil, report, fmt.Errorf("concordia: workflow is missing a structural input")
	}

	histAgg, uncovered, err := w.History.AggregateRegions(w.Mapping)
	if err != nil {
		report.Status = StatusFailed
		return nil, report, err
	}
	w.logUncoveredHistory(uncovered)

	model, err := AggregateSubsectors(w.Model)
	if err != nil {
		report.Status = StatusFailed
		return nil, report, err
	}

	units := w.collectUnits(model, report)

	nprocs := w.NumWorkers
	if nprocs <= 0 {
		nprocs = runtime.GOMAXPROCS(0)
	}
	unitChan := make(chan *unitWork)
	// Buffered so workers never block on a departed receiver.
	resultChan := make(chan *unitResult, len(units))
	for i := 0; i < nprocs; i++ {
		go func() {
			for u := range unitChan {
				resultChan <- w.runUnit(ctx, u, histAgg)
			}
		}()
	}
	go func() {
		defer close(unitChan)
		for _, u := range units {
			select {
			case <-ctx.Done():
				return
			case unitChan <- u:
			}
		}
	}()

	type gasFamily struct {
		gas    string
		family Family
	}
	layers := make(map[gasFamily]map[string][]*sparse.SparseArray)
	yearsFor := make(map[gasFamily][]int)
	totals := make(map[VarKey]map[int]float64)
	for range units {
		var res *unitResult
		select {
		case <-ctx.Done():
			return nil, report, ctx.Err()
		case res = <-resultChan:
		}
		gas := res.def.Gas
		if res.err != nil {
			if c, ok := AsCondition(res.err); ok {
				report.Add(c)
			} else if ctx.Err() != nil {
				return nil, report, ctx.Err()
			} else {
				w.logger().WithFields(logrus.Fields{
					"gas":    gas,
					"sector": res.def.Sector,
				}).Error(res.err)
			}
			report.AddUnit(gas, true)
			continue
		}
		report.Add(res.conds...)
		report.AddUnit(gas, false)
		if res.months == nil {
			continue
		}
		k := gasFamily{gas: gas, family: res.def.Family}
		if layers[k] == nil {
			layers[k] = make(map[string][]*sparse.SparseArray)
		}
		layers[k][res.def.Sector] = res.months
		if prev, ok := yearsFor[k]; ok && !equalYears(prev, res.years) {
			report.Add(Condition{
				Kind:   KindUnknownSector,
				Gas:    gas,
				Sector: res.def.Sector,
				Detail: "inconsistent reporting years within gas",
			})
			delete(layers[k], res.def.Sector)
			continue
		}
		yearsFor[k] = res.years
		totals[VarKey{Gas: gas, Sector: res.def.Sector}] = res.totals
	}
	if err := ctx.Err(); err != nil {
		return nil, report, err
	}

	assembler := &SectorAssembler{Defs: w.Defs, Grid: w.Grid}
	out := make(map[string]*GriddedField)
	var keys []gasFamily
	for k := range layers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].gas != keys[j].gas {
			return keys[i].gas < keys[j].gas
		}
		return keys[i].family < keys[j].family
	})
	for _, k := range keys {
		field, err := assembler.Assemble(k.gas, k.family, yearsFor[k], layers[k])
		if err != nil {
			if c, ok := AsCondition(err); ok {
				report.Add(c)
				report.AddUnit(k.gas, true)
				continue
			}
			return nil, report, err
		}
		w.verify(field, totals, report)
		out[field.VarName()] = field
	}
	return out, report.Finalize(), nil
}

// collectUnits groups model trajectories into (gas, sector) units.
// Trajectories whose sector is not declared are reported as
// UnknownSector and dropped.
func (w *Workflow) collectUnits(model []*Trajectory, report *Report) []*unitWork {
	grouped := make(map[VarKey][]*Trajectory)
	var order []VarKey
	for _, t := range model {
		k := VarKey{Gas: t.Gas, Sector: t.Sector}
		if _, ok := grouped[k]; !ok {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], t)
	}
	sort.Slice(order, func(i, j int) bool { return order[i].String() < order[j].String() })
	var units []*unitWork
	for _, k := range order {
		def, err := w.Defs.Get(k.Gas, k.Sector)
		if err != nil {
			if c, ok := AsCondition(err); ok {
				report.Add(c)
			}
			report.AddUnit(k.Gas, true)
			continue
		}
		units = append(units, &unitWork{def: def, regions: grouped[k]})
	}
	return units
}

// runUnit executes harmonize, downscale and grid for one unit.
func (w *Workflow) runUnit(ctx context.Context, u *unitWork, histAgg *HistoricalReference) *unitResult {
	res := &unitResult{def: u.def}
	log := w.logger().WithFields(logrus.Fields{"gas": u.def.Gas, "sector": u.def.Sector})

	hist := histAgg
	if u.def.Global {
		// Global variables harmonize directly against world-level
		// history and skip country downscaling.
		hist = w.History
	}
	harmonized, conds, err := w.Harmonizer.HarmonizeAll(u.regions, hist)
	if err != nil {
		res.err = err
		return res
	}
	res.conds = append(res.conds, conds...)
	if len(harmonized) == 0 {
		// every region was skipped; surface the conditions only.
		return res
	}
	log.Debugf("harmonized %d regions", len(harmonized))

	var countries []*Trajectory
	for _, h := range harmonized {
		h, err := h.ConvertToKgPerSec()
		if err != nil {
			res.err = err
			return res
		}
		if w.AnnualInterpolation {
			h = h.Annual()
		}
		if u.def.Global || strings.EqualFold(h.Code, "world") {
			countries = append(countries, h)
			continue
		}
		down, conds, err := (&Downscaler{Mapping: w.Mapping, Proxy: w.Proxy}).Downscale(ctx, h)
		if err != nil {
			res.err = err
			return res
		}
		res.conds = append(res.conds, conds...)
		countries = append(countries, down...)
	}

	res.years = unionYears(countries)
	res.totals = make(map[int]float64)
	gridder := &Gridder{Grid: w.Grid, Proxy: w.Proxy}
	for _, year := range res.years {
		annual, conds, err := gridder.GridYear(ctx, countries, year)
		if err != nil {
			res.err = err
			return res
		}
		res.conds = append(res.conds, conds...)
		pw, err := w.Proxy.Weights(ctx, u.def.Gas, u.def.Sector, year)
		if err != nil {
			res.err = err
			return res
		}
		res.months = append(res.months, distributeMonthly(annual, pw.Seasonality)...)
		for _, c := range countries {
			if v, ok := c.Value(year); ok {
				res.totals[year] += v
			}
		}
	}
	return res
}

// verify recomputes global sums from the gridded output and compares
// them with the tabular totals, reporting discrepancies beyond
// 1e-6 relative as unaccounted mass. Shortfalls already reported
// during gridding appear here aggregated per sector and year.
func (w *Workflow) verify(f *GriddedField, totals map[VarKey]map[int]float64, report *Report) {
	for si, sector := range f.Sectors {
		expected := totals[VarKey{Gas: f.Gas, Sector: sector}]
		if expected == nil {
			continue
		}
		for yi, year := range f.Years {
			got := f.AnnualMean(yi, si)
			want := expected[year]
			if relDiff(got, want) > 1e-6 {
				report.Add(Condition{
					Kind:      KindUnaccountedMass,
					Gas:       f.Gas,
					Sector:    sector,
					Year:      year,
					Magnitude: want - got,
					Detail:    "gridded output differs from tabular total",
				})
			}
		}
	}
}

// logUncoveredHistory reports base-year historical mass in countries
// that are missing from the region mapping, following the reporting
// style of the upstream inventory tooling.
func (w *Workflow) logUncoveredHistory(uncovered []string) {
	if len(uncovered) == 0 {
		return
	}
	threshold := w.UncoveredThreshold
	if threshold == 0 {
		threshold = 0.01
	}
	mass := w.History.UncoveredMass(uncovered)
	var keys []VarKey
	for k := range mass {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	for _, k := range keys {
		total := 0.
		for _, t := range w.History.Trajectories() {
			if t.Gas == k.Gas && t.Sector == k.Sector && !strings.EqualFold(t.Code, "world") {
				if v, ok := t.Value(w.History.BaseYear()); ok {
					total += v
				}
			}
		}
		rel := 0.
		if total != 0 {
			rel = mass[k] / total
		}
		log := w.logger().WithFields(logrus.Fields{
			"gas":       k.Gas,
			"sector":    k.Sector,
			"uncovered": mass[k],
			"relative":  rel,
		})
		if rel > threshold {
			log.Warn("historical emissions in countries missing from region mapping")
		} else {
			log.Info("historical emissions in countries missing from region mapping")
		}
	}
}

func equalYears(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func unionYears(trajs []*Trajectory) []int {
	set := make(map[int]bool)
	for _, t := range trajs {
		for _, y := range t.Years {
			set[y] = true
		}
	}
	years := make([]int, 0, len(set))
	for y := range set {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}
