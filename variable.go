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
	"strconv"
	"strings"
)

// Family identifies one of the two output variable families.
type Family int

const (
	// FamilyAnthro holds the direct anthropogenic sectors.
	FamilyAnthro Family = iota
	// FamilyBurning holds the open-burning and land-use-change sectors.
	FamilyBurning
)

func (f Family) String() string {
	switch f {
	case FamilyAnthro:
		return "em_anthro"
	case FamilyBurning:
		return "em_openburning"
	default:
		return fmt.Sprintf("Family(%d)", int(f))
	}
}

// VarKey identifies one variable, and with it one unit of pipeline
// work per scenario.
type VarKey struct {
	Gas    string
	Sector string
}

func (k VarKey) String() string { return k.Gas + "|" + k.Sector }

// A VariableDef describes one emission variable: a gas emitted by
// one sector.
type VariableDef struct {
	Gas    string
	Sector string

	// Family is the output variable family the sector belongs to.
	Family Family

	// Global indicates that the variable is reported at the World
	// level only and skips country downscaling.
	Global bool

	// CDR indicates a carbon-dioxide-removal sector whose values
	// may be negative.
	CDR bool

	// Available indicates whether gridded data can be produced for
	// this variable. Declared-but-unavailable sectors appear in the
	// output as NaN-filled layers.
	Available bool

	// Proxy names the proxy raster set used to spatially distribute
	// this variable.
	Proxy string
}

// VariableDefinitions resolves templated variable names into typed
// (gas, sector) keys and holds the canonical sector ordering for each
// output variable family. The template uses {gas} and {sector}
// placeholders, for example "Emissions|{gas}|{sector}".
// Names are resolved once at load time; the pipeline operates on the
// typed keys only.
type VariableDefinitions struct {
	Template string

	defs map[VarKey]*VariableDef

	// sectors holds the canonical sector order per family, CDR
	// sectors last.
	sectors map[Family][]string
}

// NewVariableDefinitions creates a variable definition set from the
// given name template and definitions. The canonical sector order for
// each family is the order in which the definitions are given, with
// CDR sectors moved after all others.
func NewVariableDefinitions(template string, defs []*VariableDef) (*VariableDefinitions, error) {
	if !strings.Contains(template, "{gas}") || !strings.Contains(template, "{sector}") {
		return nil, fmt.Errorf("concordia: variable template %q must contain {gas} and {sector}", template)
	}
	vd := &VariableDefinitions{
		Template: template,
		defs:     make(map[VarKey]*VariableDef),
		sectors:  make(map[Family][]string),
	}
	seen := make(map[Family]map[string]bool)
	var cdr map[Family][]string
	for _, d := range defs {
		k := VarKey{Gas: d.Gas, Sector: d.Sector}
		if _, ok := vd.defs[k]; ok {
			return nil, fmt.Errorf("concordia: duplicate variable definition %s", k)
		}
		vd.defs[k] = d
		if seen[d.Family] == nil {
			seen[d.Family] = make(map[string]bool)
		}
		if !seen[d.Family][d.Sector] {
			seen[d.Family][d.Sector] = true
			if d.CDR {
				if cdr == nil {
					cdr = make(map[Family][]string)
				}
				cdr[d.Family] = append(cdr[d.Family], d.Sector)
			} else {
				vd.sectors[d.Family] = append(vd.sectors[d.Family], d.Sector)
			}
		}
	}
	for f, s := range cdr {
		vd.sectors[f] = append(vd.sectors[f], s...)
	}
	return vd, nil
}

// VarName returns the full templated variable name for the given gas
// and sector.
func (vd *VariableDefinitions) VarName(gas, sector string) string {
	r := strings.NewReplacer("{gas}", gas, "{sector}", sector)
	return r.Replace(vd.Template)
}

// ParseName resolves a templated variable name into its gas and
// sector. It is the inverse of VarName. When {sector} is the last
// template field, it absorbs any trailing name fields, so subsector
// names such as "Energy|Demand" parse as one sector.
func (vd *VariableDefinitions) ParseName(name string) (gas, sector string, err error) {
	tparts := strings.Split(vd.Template, "|")
	nparts := strings.Split(name, "|")
	sectorLast := tparts[len(tparts)-1] == "{sector}"
	if len(tparts) != len(nparts) && !(sectorLast && len(nparts) > len(tparts)) {
		return "", "", fmt.Errorf("concordia: variable %q does not match template %q", name, vd.Template)
	}
	for i, tp := range tparts {
		switch tp {
		case "{gas}":
			gas = nparts[i]
		case "{sector}":
			if sectorLast && i == len(tparts)-1 {
				sector = strings.Join(nparts[i:], "|")
			} else {
				sector = nparts[i]
			}
		default:
			if tp != nparts[i] {
				return "", "", fmt.Errorf("concordia: variable %q does not match template %q", name, vd.Template)
			}
		}
	}
	return gas, sector, nil
}

// Get returns the definition for the given gas and sector, or an
// UnknownSector error if the sector has not been declared for the gas.
func (vd *VariableDefinitions) Get(gas, sector string) (*VariableDef, error) {
	d, ok := vd.defs[VarKey{Gas: gas, Sector: sector}]
	if !ok {
		return nil, &ConditionError{Condition{
			Kind:   KindUnknownSector,
			Gas:    gas,
			Sector: sector,
		}}
	}
	return d, nil
}

// Defs returns all variable definitions in canonical family and
// sector order.
func (vd *VariableDefinitions) Defs() []*VariableDef {
	var out []*VariableDef
	var gases []string
	g := make(map[string]bool)
	for k := range vd.defs {
		if !g[k.Gas] {
			g[k.Gas] = true
			gases = append(gases, k.Gas)
		}
	}
	sortStrings(gases)
	for _, gas := range gases {
		for _, f := range []Family{FamilyAnthro, FamilyBurning} {
			for _, sector := range vd.sectors[f] {
				if d, ok := vd.defs[VarKey{Gas: gas, Sector: sector}]; ok {
					out = append(out, d)
				}
			}
		}
	}
	return out
}

// CanonicalSectors returns the fixed output sector ordering for the
// given gas and family: only sectors declared for the gas, ordered
// with CDR sectors last.
func (vd *VariableDefinitions) CanonicalSectors(gas string, f Family) []string {
	var out []string
	for _, sector := range vd.sectors[f] {
		if _, ok := vd.defs[VarKey{Gas: gas, Sector: sector}]; ok {
			out = append(out, sector)
		}
	}
	return out
}

// Gases returns the gases defined for the given family, sorted.
func (vd *VariableDefinitions) Gases(f Family) []string {
	var out []string
	seen := make(map[string]bool)
	for k, d := range vd.defs {
		if d.Family == f && !seen[k.Gas] {
			seen[k.Gas] = true
			out = append(out, k.Gas)
		}
	}
	sortStrings(out)
	return out
}

// ForProxy returns the definitions that use the named proxy set.
func (vd *VariableDefinitions) ForProxy(name string) []*VariableDef {
	var out []*VariableDef
	for _, d := range vd.Defs() {
		if d.Proxy == name {
			out = append(out, d)
		}
	}
	return out
}

// ReadVariableDefinitions reads variable definitions from a CSV file
// with the header columns gas, sector, family, global, cdr, available
// and proxy. The family column holds "em_anthro" or "em_openburning";
// the boolean columns accept anything strconv.ParseBool does, with
// empty cells meaning false (true for available).
func ReadVariableDefinitions(r io.Reader, template string) (*VariableDefinitions, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	lines, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("concordia: reading variable definitions: %v", err)
	}
	if len(lines) < 2 {
		return nil, fmt.Errorf("concordia: variable definition file has no data rows")
	}
	col := make(map[string]int)
	for i, name := range lines[0] {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"gas", "sector", "family"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("concordia: variable definition file is missing column %q", required)
		}
	}
	cell := func(line []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(line) {
			return ""
		}
		return strings.TrimSpace(line[i])
	}
	boolCell := func(line []string, name string, dflt bool) (bool, error) {
		s := cell(line, name)
		if s == "" {
			return dflt, nil
		}
		return strconv.ParseBool(s)
	}
	var defs []*VariableDef
	for i, line := range lines[1:] {
		d := &VariableDef{
			Gas:    cell(line, "gas"),
			Sector: cell(line, "sector"),
			Proxy:  cell(line, "proxy"),
		}
		switch f := cell(line, "family"); f {
		case "em_anthro":
			d.Family = FamilyAnthro
		case "em_openburning":
			d.Family = FamilyBurning
		default:
			return nil, fmt.Errorf("concordia: line %d: unknown variable family %q", i+2, f)
		}
		if d.Global, err = boolCell(line, "global", false); err != nil {
			return nil, fmt.Errorf("concordia: line %d: %v", i+2, err)
		}
		if d.CDR, err = boolCell(line, "cdr", false); err != nil {
			return nil, fmt.Errorf("concordia: line %d: %v", i+2, err)
		}
		if d.Available, err = boolCell(line, "available", true); err != nil {
			return nil, fmt.Errorf("concordia: line %d: %v", i+2, err)
		}
		defs = append(defs, d)
	}
	return NewVariableDefinitions(template, defs)
}
