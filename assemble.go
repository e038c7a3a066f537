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
	"math"

	"github.com/ctessum/sparse"
)

// A GriddedField is the assembled output for one gas and variable
// family: emission rates indexed by (time, sector, lat, lon). The
// time axis is monthly, twelve steps per reported year, and the
// sector axis follows the canonical ordering for the gas. Values are
// in kg/s per grid cell; cells outside a unit's footprint are zero,
// and sectors declared but not yet available are NaN-filled.
type GriddedField struct {
	Gas     string
	Family  Family
	Sectors []string
	Years   []int
	Grid    *GridDef

	// Data is shaped [len(Years)*12, len(Sectors), Grid.Ny, Grid.Nx].
	Data *sparse.DenseArray
}

// VarName returns the output variable name, for example
// "CO2_em_anthro".
func (f *GriddedField) VarName() string {
	return f.Gas + "_" + f.Family.String()
}

// TimeIndex returns the time axis index for the given year index and
// month (0-11).
func (f *GriddedField) TimeIndex(yearIdx, month int) int {
	return yearIdx*12 + month
}

// GlobalSum returns the sum over all grid cells for the given time
// and sector indices, treating NaN layers as zero.
func (f *GriddedField) GlobalSum(timeIdx, sectorIdx int) float64 {
	sum := 0.
	for j := 0; j < f.Grid.Ny; j++ {
		for i := 0; i < f.Grid.Nx; i++ {
			v := f.Data.Get(timeIdx, sectorIdx, j, i)
			if !math.IsNaN(v) {
				sum += v
			}
		}
	}
	return sum
}

// AnnualMean returns the mean over the twelve months of the given
// year index of the global sum for the given sector, which for a
// mean-1 seasonality equals the annual emission rate.
func (f *GriddedField) AnnualMean(yearIdx, sectorIdx int) float64 {
	sum := 0.
	for m := 0; m < 12; m++ {
		sum += f.GlobalSum(f.TimeIndex(yearIdx, m), sectorIdx)
	}
	return sum / 12
}

// distributeMonthly expands an annual-rate field into twelve monthly
// fields using seasonality factors with mean 1, so that the monthly
// mean reproduces the annual rate.
func distributeMonthly(annual *sparse.SparseArray, seasonality []float64) []*sparse.SparseArray {
	out := make([]*sparse.SparseArray, 12)
	for m := 0; m < 12; m++ {
		s := 1.
		if len(seasonality) == 12 {
			s = seasonality[m]
		}
		out[m] = annual.ScaleCopy(s)
	}
	return out
}

// A SectorAssembler merges per-sector gridded fields into the final
// multi-sector array for one gas, enforcing the canonical sector
// ordering and injecting NaN layers for declared-but-unavailable
// sectors.
type SectorAssembler struct {
	Defs *VariableDefinitions
	Grid *GridDef
}

// Assemble builds the output field for one gas and family from
// per-sector monthly layers. layers maps sector names to
// len(years)*12 monthly [Ny, Nx] fields. Sectors outside the
// canonical set cause an UnknownSector error; canonical sectors
// without layers are zero-filled if available and NaN-filled if
// declared unavailable.
func (a *SectorAssembler) Assemble(gas string, family Family, years []int, layers map[string][]*sparse.SparseArray) (*GriddedField, error) {
	canonical := a.Defs.CanonicalSectors(gas, family)
	idx := make(map[string]int, len(canonical))
	for i, s := range canonical {
		idx[s] = i
	}
	for sector := range layers {
		if _, ok := idx[sector]; !ok {
			return nil, &ConditionError{Condition{
				Kind:   KindUnknownSector,
				Gas:    gas,
				Sector: sector,
			}}
		}
	}

	nt := len(years) * 12
	f := &GriddedField{
		Gas:     gas,
		Family:  family,
		Sectors: canonical,
		Years:   years,
		Grid:    a.Grid,
		Data:    sparse.ZerosDense(nt, len(canonical), a.Grid.Ny, a.Grid.Nx),
	}
	for si, sector := range canonical {
		d, err := a.Defs.Get(gas, sector)
		if err != nil {
			return nil, err
		}
		ls, ok := layers[sector]
		if !ok {
			if !d.Available {
				a.fillNaN(f, si)
			}
			continue
		}
		if len(ls) != nt {
			return nil, fmt.Errorf("concordia: assembling %s %s sector %s: %d monthly layers, want %d",
				gas, family, sector, len(ls), nt)
		}
		for ti, l := range ls {
			for i1d, v := range l.Elements {
				nd := l.IndexNd(i1d)
				f.Data.Set(v, ti, si, nd[0], nd[1])
			}
		}
	}
	return f, nil
}

func (a *SectorAssembler) fillNaN(f *GriddedField, sectorIdx int) {
	nan := math.NaN()
	for ti := 0; ti < len(f.Years)*12; ti++ {
		for j := 0; j < a.Grid.Ny; j++ {
			for i := 0; i < a.Grid.Nx; i++ {
				f.Data.Set(nan, ti, sectorIdx, j, i)
			}
		}
	}
}
