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
	"fmt"
)

// A HarmonizationOverride changes the convergence year for one
// variable, with an optional method label recorded in the report.
type HarmonizationOverride struct {
	ConvergenceYear int
	Method          string
}

// A Harmonizer reconciles scenario trajectories with a historical
// reference at the base year, decaying the base-year offset to zero
// by the convergence year. The zero value is not usable; BaseYear
// must be set.
type Harmonizer struct {
	// BaseYear is the year at which scenario and history are forced
	// to agree exactly.
	BaseYear int

	// ConvergenceYear is the year by which the harmonization offset
	// decays to zero. If zero, the last year of each scenario
	// trajectory is used.
	ConvergenceYear int

	// Overrides changes the convergence policy for individual
	// variables.
	Overrides map[VarKey]HarmonizationOverride
}

// decayWeight is the piecewise-linear offset weight: 1 at the base
// year, 0 at the convergence year and beyond.
func decayWeight(year, base, convergence int) float64 {
	if year <= base {
		return 1
	}
	if year >= convergence {
		return 0
	}
	return float64(convergence-year) / float64(convergence-base)
}

func (h *Harmonizer) convergenceYear(k VarKey, t *Trajectory) int {
	if o, ok := h.Overrides[k]; ok && o.ConvergenceYear != 0 {
		return o.ConvergenceYear
	}
	if h.ConvergenceYear != 0 {
		return h.ConvergenceYear
	}
	return t.Years[len(t.Years)-1]
}

// Harmonize reconciles the scenario trajectory scen with the
// historical series hist. The harmonized value at the base year
// equals the historical value exactly, and the harmonized trajectory
// converges to the unmodified scenario by the convergence year.
//
// If hist is nil the scenario passes through unharmonized, recorded
// as a NoHistory condition. If scen does not include the base year,
// a MissingBaseYear ConditionError is returned and the unit should
// be skipped.
func (h *Harmonizer) Harmonize(scen, hist *Trajectory) (*Trajectory, []Condition, error) {
	if len(scen.Years) == 0 {
		return nil, nil, fmt.Errorf("concordia: harmonizing %s: empty trajectory", scen)
	}
	if hist == nil {
		return scen.Clone(), []Condition{{
			Kind:   KindNoHistory,
			Gas:    scen.Gas,
			Sector: scen.Sector,
			Code:   scen.Code,
		}}, nil
	}
	scenBase, ok := scen.Value(h.BaseYear)
	if !ok {
		return nil, nil, &ConditionError{Condition{
			Kind:   KindMissingBaseYear,
			Gas:    scen.Gas,
			Sector: scen.Sector,
			Code:   scen.Code,
			Year:   h.BaseYear,
		}}
	}
	histBase, ok := hist.Value(h.BaseYear)
	if !ok {
		return scen.Clone(), []Condition{{
			Kind:   KindNoHistory,
			Gas:    scen.Gas,
			Sector: scen.Sector,
			Code:   scen.Code,
			Year:   h.BaseYear,
			Detail: "history lacks base year",
		}}, nil
	}

	delta := histBase - scenBase
	convergence := h.convergenceYear(VarKey{Gas: scen.Gas, Sector: scen.Sector}, scen)
	o := scen.Clone()
	for i, y := range o.Years {
		if y == h.BaseYear {
			// pinned to history, not scenario+delta, to stay exact
			o.Values[i] = histBase
			continue
		}
		o.Values[i] = scen.Values[i] + delta*decayWeight(y, h.BaseYear, convergence)
	}
	return o, nil, nil
}

// HarmonizeAll harmonizes every scenario trajectory against the
// reference at its own (gas, sector, code) key, collecting reportable
// conditions. Units that fail with MissingBaseYear are dropped from
// the output but recorded; the pipeline continues with other units.
func (h *Harmonizer) HarmonizeAll(scens []*Trajectory, ref *HistoricalReference) ([]*Trajectory, []Condition, error) {
	var out []*Trajectory
	var conds []Condition
	for _, scen := range scens {
		var hist *Trajectory
		if t, ok := ref.Series(scen.Gas, scen.Sector, scen.Code); ok {
			hist = t
		}
		harm, cs, err := h.Harmonize(scen, hist)
		if err != nil {
			if c, ok := AsCondition(err); ok {
				conds = append(conds, c)
				continue
			}
			return nil, nil, err
		}
		conds = append(conds, cs...)
		out = append(out, harm)
	}
	return out, conds, nil
}
