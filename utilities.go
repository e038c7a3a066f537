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
	"sort"
	"strings"
)

func sortStrings(s []string) { sort.Strings(s) }

// relDiff returns the relative difference between a and b.
func relDiff(a, b float64) float64 {
	if a == 0 && b == 0 {
		return 0
	}
	return math.Abs(a-b) / math.Max(math.Abs(a), math.Abs(b))
}

// parentSector returns the parent of a "Sector|Subsector" name, or
// the name itself if it has no subsector part.
func parentSector(sector string) string {
	if i := strings.Index(sector, "|"); i >= 0 {
		return sector[:i]
	}
	return sector
}

// AggregateSubsectors sums trajectories reported as
// "Sector|Subsector" into their parent sector, leaving trajectories
// without subsectors untouched. Trajectories are grouped by
// (gas, parent sector, code).
func AggregateSubsectors(trajs []*Trajectory) ([]*Trajectory, error) {
	type key struct {
		gas, sector, code string
	}
	groups := make(map[key][]*Trajectory)
	var order []key
	for _, t := range trajs {
		k := key{gas: t.Gas, sector: parentSector(t.Sector), code: t.Code}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], t)
	}
	out := make([]*Trajectory, 0, len(order))
	for _, k := range order {
		g := groups[k]
		if len(g) == 1 && g[0].Sector == k.sector {
			out = append(out, g[0])
			continue
		}
		sum, err := SumTrajectories(g, k.gas, k.sector, k.code)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, nil
}
