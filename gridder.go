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

	"github.com/ctessum/sparse"
)

// A Gridder distributes country- or region-level values onto the
// output grid using normalized proxy cell weights. Gridding
// multiplies signed unit totals by unsigned weights, so
// negative-emission (CDR) totals keep their sign.
type Gridder struct {
	Grid  *GridDef
	Proxy *ProxyStore
}

// GridUnit allocates value for one spatial unit to the grid,
// returning a sparse [Ny, Nx] field whose cells sum to value. If the
// unit has no proxy coverage for the year, the returned field is all
// zeros and the shortfall is reported as an UnaccountedMass
// condition rather than silently lost.
func (g *Gridder) GridUnit(ctx context.Context, gas, sector, code string, year int, value float64) (*sparse.SparseArray, []Condition, error) {
	pw, err := g.Proxy.Weights(ctx, gas, sector, year)
	if err != nil {
		return nil, nil, err
	}
	weights, ok := pw.CellWeights(code)
	if !ok {
		out := sparse.ZerosSparse(g.Grid.Ny, g.Grid.Nx)
		var conds []Condition
		if value != 0 {
			conds = append(conds, Condition{
				Kind:      KindUnaccountedMass,
				Gas:       gas,
				Sector:    sector,
				Code:      code,
				Year:      year,
				Magnitude: value,
			})
		}
		return out, conds, nil
	}
	return weights.ScaleCopy(value), nil, nil
}

// GridYear grids every trajectory's value at the given year and sums
// the results into one [Ny, Nx] field. Trajectories without a value
// at the year contribute nothing.
func (g *Gridder) GridYear(ctx context.Context, trajs []*Trajectory, year int) (*sparse.SparseArray, []Condition, error) {
	out := sparse.ZerosSparse(g.Grid.Ny, g.Grid.Nx)
	var conds []Condition
	for _, t := range trajs {
		v, ok := t.Value(year)
		if !ok {
			continue
		}
		cells, cs, err := g.GridUnit(ctx, t.Gas, t.Sector, t.Code, year, v)
		if err != nil {
			return nil, nil, err
		}
		conds = append(conds, cs...)
		out.AddSparse(cells)
	}
	return out, conds, nil
}
