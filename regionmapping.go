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
	"strings"
)

// RegionMapping is the static lookup of country-region membership.
// Country codes are held in a canonical spatial-unit space: when
// country combinations are declared, the member countries are
// replaced by their alias pseudo-country, and the members can be
// recovered through Constituents. The mapping is read-only after
// construction and safe for concurrent use.
type RegionMapping struct {
	countryToRegion   map[string]string
	regionToCountries map[string][]string

	// combinations maps an alias code to its ordered member
	// country codes.
	combinations map[string][]string
	memberAlias  map[string]string
}

// ReadRegionMapping reads a delimited table relating country codes to
// region codes. comma is the column separator. countryCol and
// regionCol name the two columns of interest; other columns are
// ignored. Codes are lower-cased.
func ReadRegionMapping(r io.Reader, comma rune, countryCol, regionCol string) (*RegionMapping, error) {
	d := csv.NewReader(r)
	d.Comma = comma
	d.Comment = '#'
	d.TrimLeadingSpace = true
	lines, err := d.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("concordia: reading region mapping: %v", err)
	}
	if len(lines) < 2 {
		return nil, fmt.Errorf("concordia: region mapping table has no data rows")
	}
	ci, ri := -1, -1
	for i, name := range lines[0] {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case strings.ToLower(countryCol):
			ci = i
		case strings.ToLower(regionCol):
			ri = i
		}
	}
	if ci < 0 || ri < 0 {
		return nil, fmt.Errorf("concordia: region mapping table is missing column %q or %q",
			countryCol, regionCol)
	}
	rm := &RegionMapping{
		countryToRegion:   make(map[string]string),
		regionToCountries: make(map[string][]string),
		combinations:      make(map[string][]string),
		memberAlias:       make(map[string]string),
	}
	for _, line := range lines[1:] {
		country := strings.ToLower(strings.TrimSpace(line[ci]))
		region := strings.TrimSpace(line[ri])
		if country == "" || region == "" {
			continue
		}
		if prev, ok := rm.countryToRegion[country]; ok && prev != region {
			return nil, fmt.Errorf("concordia: country %s is in regions %s and %s", country, prev, region)
		}
		rm.addCountry(country, region)
	}
	return rm, nil
}

func (rm *RegionMapping) addCountry(country, region string) {
	if _, ok := rm.countryToRegion[country]; ok {
		return
	}
	rm.countryToRegion[country] = region
	rm.regionToCountries[region] = append(rm.regionToCountries[region], country)
	sort.Strings(rm.regionToCountries[region])
}

func (rm *RegionMapping) removeCountry(country string) {
	region, ok := rm.countryToRegion[country]
	if !ok {
		return
	}
	delete(rm.countryToRegion, country)
	members := rm.regionToCountries[region]
	for i, c := range members {
		if c == country {
			rm.regionToCountries[region] = append(members[:i:i], members[i+1:]...)
			break
		}
	}
}

// WithCombinations returns a copy of the mapping with the given
// country combinations applied: each alias replaces its member
// countries in the canonical space. All members of an alias must
// belong to the same region, and a country may belong to at most one
// alias.
func (rm *RegionMapping) WithCombinations(combinations map[string][]string) (*RegionMapping, error) {
	o := &RegionMapping{
		countryToRegion:   make(map[string]string),
		regionToCountries: make(map[string][]string),
		combinations:      make(map[string][]string),
		memberAlias:       make(map[string]string),
	}
	for c, r := range rm.countryToRegion {
		o.addCountry(c, r)
	}
	var aliases []string
	for alias := range combinations {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	for _, alias := range aliases {
		members := combinations[alias]
		alias = strings.ToLower(alias)
		if len(members) == 0 {
			return nil, fmt.Errorf("concordia: country combination %s has no members", alias)
		}
		region := ""
		for _, m := range members {
			m = strings.ToLower(m)
			if prev, ok := o.memberAlias[m]; ok {
				return nil, fmt.Errorf("concordia: country %s is in combinations %s and %s", m, prev, alias)
			}
			r, ok := o.countryToRegion[m]
			if !ok {
				return nil, &ConditionError{Condition{Kind: KindUnresolvedCountry, Code: m}}
			}
			if region == "" {
				region = r
			} else if r != region {
				return nil, fmt.Errorf("concordia: combination %s spans regions %s and %s", alias, region, r)
			}
			o.memberAlias[m] = alias
			o.removeCountry(m)
		}
		mm := make([]string, len(members))
		for i, m := range members {
			mm[i] = strings.ToLower(m)
		}
		o.combinations[alias] = mm
		o.addCountry(alias, region)
	}
	return o, nil
}

// Region returns the region the given country (or alias) belongs to.
// Countries that are members of an alias resolve to the alias's
// region. An UnresolvedCountry error is returned for unknown codes.
func (rm *RegionMapping) Region(country string) (string, error) {
	country = strings.ToLower(country)
	if alias, ok := rm.memberAlias[country]; ok {
		country = alias
	}
	r, ok := rm.countryToRegion[country]
	if !ok {
		return "", &ConditionError{Condition{Kind: KindUnresolvedCountry, Code: country}}
	}
	return r, nil
}

// Countries returns the canonical-space member countries of the given
// region, sorted, including any alias pseudo-countries.
func (rm *RegionMapping) Countries(region string) []string {
	return rm.regionToCountries[region]
}

// Regions returns all region codes, sorted.
func (rm *RegionMapping) Regions() []string {
	var out []string
	for r := range rm.regionToCountries {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Constituents returns the member countries of an alias, or the code
// itself if it is not an alias.
func (rm *RegionMapping) Constituents(code string) []string {
	code = strings.ToLower(code)
	if m, ok := rm.combinations[code]; ok {
		return m
	}
	return []string{code}
}

// Canonical maps a raw country code into the canonical spatial-unit
// space, replacing alias members by their alias.
func (rm *RegionMapping) Canonical(country string) string {
	country = strings.ToLower(country)
	if alias, ok := rm.memberAlias[country]; ok {
		return alias
	}
	return country
}

// Aggregate sums country-level trajectories into region-level
// trajectories. Input codes are mapped through the canonical space;
// an UnresolvedCountry error is returned for codes absent from the
// mapping. Only years shared by all members of a region survive.
func (rm *RegionMapping) Aggregate(trajs []*Trajectory) ([]*Trajectory, error) {
	groups := make(map[string]map[VarKey][]*Trajectory)
	for _, t := range trajs {
		region, err := rm.Region(t.Code)
		if err != nil {
			return nil, err
		}
		if groups[region] == nil {
			groups[region] = make(map[VarKey][]*Trajectory)
		}
		k := VarKey{Gas: t.Gas, Sector: t.Sector}
		groups[region][k] = append(groups[region][k], t)
	}
	var regions []string
	for r := range groups {
		regions = append(regions, r)
	}
	sort.Strings(regions)
	var out []*Trajectory
	for _, region := range regions {
		var keys []VarKey
		for k := range groups[region] {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		for _, k := range keys {
			sum, err := SumTrajectories(groups[region][k], k.Gas, k.Sector, region)
			if err != nil {
				return nil, err
			}
			out = append(out, sum)
		}
	}
	return out, nil
}

// Filter returns a copy of the mapping restricted to the given
// canonical-space countries. Regions left without members disappear.
func (rm *RegionMapping) Filter(countries []string) *RegionMapping {
	keep := make(map[string]bool)
	for _, c := range countries {
		keep[strings.ToLower(c)] = true
	}
	o := &RegionMapping{
		countryToRegion:   make(map[string]string),
		regionToCountries: make(map[string][]string),
		combinations:      make(map[string][]string),
		memberAlias:       make(map[string]string),
	}
	for c, r := range rm.countryToRegion {
		if keep[c] {
			o.addCountry(c, r)
			if m, ok := rm.combinations[c]; ok {
				o.combinations[c] = m
				for _, mm := range m {
					o.memberAlias[mm] = c
				}
			}
		}
	}
	return o
}
