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

	"gonum.org/v1/gonum/floats"
)

// A Downscaler splits region-level trajectories into country-level
// trajectories using proxy aggregate weights, preserving region
// totals. Country combinations are resolved before downscaling and
// split back into their constituents afterwards.
type Downscaler struct {
	Mapping *RegionMapping
	Proxy   *ProxyStore
}

// memberWeights returns the aggregate proxy weight for each member
// at the given year. Alias members sum their constituents' weights.
func (d *Downscaler) memberWeights(ctx context.Context, gas, sector string, year int, members []string) ([]float64, error) {
	pw, err := d.Proxy.Weights(ctx, gas, sector, year)
	if err != nil {
		return nil, err
	}
	w := make([]float64, len(members))
	for i, m := range members {
		for _, c := range d.Mapping.Constituents(m) {
			w[i] += pw.AggregateWeight(c)
		}
	}
	return w, nil
}

// Downscale splits the region-level trajectory region into
// country-level trajectories whose sum equals the region value for
// every year. If proxy coverage is zero for a year, the most recent
// prior year with coverage is used; if no such year exists the value
// is distributed uniformly across member countries. Both fallbacks
// are flagged as low-confidence ZeroProxyCoverage conditions.
func (d *Downscaler) Downscale(ctx context.Context, region *Trajectory) ([]*Trajectory, []Condition, error) {
	members := d.Mapping.Countries(region.Code)
	if len(members) == 0 {
		return nil, nil, fmt.Errorf("concordia: downscaling %s: region %s has no member countries",
			region, region.Code)
	}

	var conds []Condition
	values := make(map[string][]float64, len(members))
	for _, m := range members {
		values[m] = make([]float64, len(region.Years))
	}

	var lastGood []float64
	for yi, year := range region.Years {
		w, err := d.memberWeights(ctx, region.Gas, region.Sector, year, members)
		if err != nil {
			return nil, nil, err
		}
		total := floats.Sum(w)
		switch {
		case total > 0:
			lastGood = w
		case lastGood != nil:
			w = lastGood
			total = floats.Sum(w)
			conds = append(conds, Condition{
				Kind:   KindZeroProxyCoverage,
				Gas:    region.Gas,
				Sector: region.Sector,
				Code:   region.Code,
				Year:   year,
				Detail: "using most recent prior-year weights",
			})
		default:
			for i := range w {
				w[i] = 1
			}
			total = float64(len(w))
			conds = append(conds, Condition{
				Kind:   KindZeroProxyCoverage,
				Gas:    region.Gas,
				Sector: region.Sector,
				Code:   region.Code,
				Year:   year,
				Detail: "uniform split across member countries",
			})
		}
		for i, m := range members {
			values[m][yi] = region.Values[yi] * w[i] / total
		}
	}

	var out []*Trajectory
	for _, m := range members {
		t := &Trajectory{
			Gas:    region.Gas,
			Sector: region.Sector,
			Code:   m,
			Units:  region.Units,
			Years:  region.Years,
			Values: values[m],
		}
		constituents := d.Mapping.Constituents(m)
		if len(constituents) == 1 && constituents[0] == m {
			out = append(out, t)
			continue
		}
		split, cs, err := d.splitAlias(ctx, t, constituents)
		if err != nil {
			return nil, nil, err
		}
		conds = append(conds, cs...)
		out = append(out, split...)
	}
	return out, conds, nil
}

// splitAlias splits an alias pseudo-country trajectory back into its
// constituent countries, using the proxy's finer within-alias
// weights where available and an equal split otherwise.
func (d *Downscaler) splitAlias(ctx context.Context, alias *Trajectory, constituents []string) ([]*Trajectory, []Condition, error) {
	var conds []Condition
	values := make(map[string][]float64, len(constituents))
	for _, c := range constituents {
		values[c] = make([]float64, len(alias.Years))
	}
	for yi, year := range alias.Years {
		pw, err := d.Proxy.Weights(ctx, alias.Gas, alias.Sector, year)
		if err != nil {
			return nil, nil, err
		}
		w := make([]float64, len(constituents))
		for i, c := range constituents {
			w[i] = pw.AggregateWeight(c)
		}
		total := floats.Sum(w)
		if total == 0 {
			for i := range w {
				w[i] = 1
			}
			total = float64(len(w))
			if alias.Values[yi] != 0 {
				conds = append(conds, Condition{
					Kind:   KindZeroProxyCoverage,
					Gas:    alias.Gas,
					Sector: alias.Sector,
					Code:   alias.Code,
					Year:   year,
					Detail: "equal split among combination members",
				})
			}
		}
		for i, c := range constituents {
			values[c][yi] = alias.Values[yi] * w[i] / total
		}
	}
	out := make([]*Trajectory, len(constituents))
	for i, c := range constituents {
		out[i] = &Trajectory{
			Gas:    alias.Gas,
			Sector: alias.Sector,
			Code:   c,
			Units:  alias.Units,
			Years:  alias.Years,
			Values: values[c],
		}
	}
	return out, conds, nil
}
