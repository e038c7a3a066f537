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
	"sort"

	"github.com/ctessum/unit"
)

// A Trajectory is an annual emission-rate series for one gas and
// sector in one spatial unit, which can be either a country or a
// region. Years are sorted ascending and Values is parallel to Years.
// Trajectories are not modified after construction; operations that
// change values return a new Trajectory.
type Trajectory struct {
	Gas    string
	Sector string
	Code   string // country or region code

	// Units describes the units the values are in, for example
	// "Mt CO2/yr". The empty string means kg/s.
	Units string

	Years  []int
	Values []float64
}

// NewTrajectory creates a new trajectory, sorting years and values
// into ascending year order.
func NewTrajectory(gas, sector, code string, years []int, values []float64) (*Trajectory, error) {
	if len(years) != len(values) {
		return nil, fmt.Errorf("concordia: trajectory %s/%s/%s: %d years but %d values",
			gas, sector, code, len(years), len(values))
	}
	t := &Trajectory{
		Gas:    gas,
		Sector: sector,
		Code:   code,
		Years:  make([]int, len(years)),
		Values: make([]float64, len(values)),
	}
	copy(t.Years, years)
	copy(t.Values, values)
	sort.Sort(byYear{t})
	for i := 1; i < len(t.Years); i++ {
		if t.Years[i] == t.Years[i-1] {
			return nil, fmt.Errorf("concordia: trajectory %s/%s/%s: duplicate year %d",
				gas, sector, code, t.Years[i])
		}
	}
	return t, nil
}

type byYear struct{ t *Trajectory }

func (s byYear) Len() int           { return len(s.t.Years) }
func (s byYear) Less(i, j int) bool { return s.t.Years[i] < s.t.Years[j] }
func (s byYear) Swap(i, j int) {
	s.t.Years[i], s.t.Years[j] = s.t.Years[j], s.t.Years[i]
	s.t.Values[i], s.t.Values[j] = s.t.Values[j], s.t.Values[i]
}

func (t *Trajectory) String() string {
	return fmt.Sprintf("%s|%s|%s", t.Gas, t.Sector, t.Code)
}

// Value returns the value at the given year. The second returned
// value reports whether the year is present in the trajectory.
func (t *Trajectory) Value(year int) (float64, bool) {
	i := sort.SearchInts(t.Years, year)
	if i < len(t.Years) && t.Years[i] == year {
		return t.Values[i], true
	}
	return 0, false
}

// Clone returns a deep copy of the receiver.
func (t *Trajectory) Clone() *Trajectory {
	o := &Trajectory{
		Gas:    t.Gas,
		Sector: t.Sector,
		Code:   t.Code,
		Units:  t.Units,
		Years:  make([]int, len(t.Years)),
		Values: make([]float64, len(t.Values)),
	}
	copy(o.Years, t.Years)
	copy(o.Values, t.Values)
	return o
}

// ScaleCopy returns a copy of the receiver with all values
// multiplied by f.
func (t *Trajectory) ScaleCopy(f float64) *Trajectory {
	o := t.Clone()
	for i := range o.Values {
		o.Values[i] *= f
	}
	return o
}

// Annual returns a copy of the receiver linearly interpolated to a
// yearly time step between the first and last reported years.
func (t *Trajectory) Annual() *Trajectory {
	if len(t.Years) < 2 {
		return t.Clone()
	}
	y0, y1 := t.Years[0], t.Years[len(t.Years)-1]
	o := &Trajectory{
		Gas:    t.Gas,
		Sector: t.Sector,
		Code:   t.Code,
		Units:  t.Units,
		Years:  make([]int, 0, y1-y0+1),
		Values: make([]float64, 0, y1-y0+1),
	}
	j := 0
	for y := y0; y <= y1; y++ {
		for t.Years[j+1] < y {
			j++
		}
		ya, yb := t.Years[j], t.Years[j+1]
		va, vb := t.Values[j], t.Values[j+1]
		frac := float64(y-ya) / float64(yb-ya)
		o.Years = append(o.Years, y)
		o.Values = append(o.Values, va+(vb-va)*frac)
	}
	return o
}

// massPrefixes converts emission mass prefixes to kilograms.
var massPrefixes = map[string]float64{
	"Gt": 1.0e12,
	"Mt": 1.0e9,
	"kt": 1.0e6,
	"t":  1.0e3,
	"kg": 1,
}

var secPerYear *unit.Unit

func init() {
	secPerYear = unit.New(31536000., unit.Second)
}

// emisRate converts an emission amount in the given mass prefix per
// year to a rate in kg/s.
func emisRate(v float64, prefix string) (*unit.Unit, error) {
	fac, ok := massPrefixes[prefix]
	if !ok {
		return nil, fmt.Errorf("concordia: unsupported mass prefix %q", prefix)
	}
	return unit.Div(unit.New(v*fac, unit.Kilogram), secPerYear), nil
}

// ConvertToKgPerSec returns a copy of the receiver with values
// converted from "<prefix> <gas>/yr" units to kg/s. Trajectories
// already in kg/s pass through unchanged.
func (t *Trajectory) ConvertToKgPerSec() (*Trajectory, error) {
	if t.Units == "" || t.Units == "kg/s" {
		return t, nil
	}
	prefix, err := massPrefix(t.Units)
	if err != nil {
		return nil, err
	}
	o := t.Clone()
	for i, v := range o.Values {
		r, err := emisRate(v, prefix)
		if err != nil {
			return nil, err
		}
		o.Values[i] = r.Value()
	}
	o.Units = "kg/s"
	return o, nil
}

// massPrefix extracts the mass prefix from a units string of the
// form "<prefix> <species>/yr".
func massPrefix(units string) (string, error) {
	for i := 0; i < len(units); i++ {
		if units[i] == ' ' {
			return units[:i], nil
		}
	}
	return "", fmt.Errorf("concordia: cannot parse units %q", units)
}

// SumTrajectories sums the given trajectories year by year, keeping
// only years present in every input. The result carries the given
// gas, sector and code labels.
func SumTrajectories(ts []*Trajectory, gas, sector, code string) (*Trajectory, error) {
	if len(ts) == 0 {
		return nil, fmt.Errorf("concordia: summing zero trajectories for %s/%s/%s", gas, sector, code)
	}
	units := ts[0].Units
	counts := make(map[int]int)
	sums := make(map[int]float64)
	for _, t := range ts {
		if t.Units != units {
			return nil, fmt.Errorf("concordia: summing %s: units %q != %q", t, t.Units, units)
		}
		for i, y := range t.Years {
			counts[y]++
			sums[y] += t.Values[i]
		}
	}
	var years []int
	for y, n := range counts {
		if n == len(ts) {
			years = append(years, y)
		}
	}
	sort.Ints(years)
	values := make([]float64, len(years))
	for i, y := range years {
		values[i] = sums[y]
	}
	o, err := NewTrajectory(gas, sector, code, years, values)
	if err != nil {
		return nil, err
	}
	o.Units = units
	return o, nil
}
