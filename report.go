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
	"io"
	"sort"
	"text/tabwriter"
)

// ConditionKind classifies the reportable conditions the pipeline
// can produce.
type ConditionKind int

const (
	// KindMissingBaseYear indicates a scenario trajectory that does
	// not include the base year. The unit is skipped.
	KindMissingBaseYear ConditionKind = iota

	// KindNoHistory indicates a unit without historical reference
	// data. The unit passes through unharmonized.
	KindNoHistory

	// KindZeroProxyCoverage indicates a region whose proxy weights
	// were all zero, downscaled with a fallback policy and flagged
	// low-confidence.
	KindZeroProxyCoverage

	// KindUnaccountedMass indicates emission mass that could not be
	// placed on the grid because a spatial unit had no proxy
	// coverage. Magnitude holds the shortfall.
	KindUnaccountedMass

	// KindUnknownSector indicates a sector outside the canonical
	// set. It is fatal for the affected gas's output.
	KindUnknownSector

	// KindUnresolvedCountry indicates a country code absent from the
	// region mapping. It is fatal for the affected unit.
	KindUnresolvedCountry
)

func (k ConditionKind) String() string {
	switch k {
	case KindMissingBaseYear:
		return "MissingBaseYear"
	case KindNoHistory:
		return "NoHistory"
	case KindZeroProxyCoverage:
		return "ZeroProxyCoverage"
	case KindUnaccountedMass:
		return "UnaccountedMass"
	case KindUnknownSector:
		return "UnknownSector"
	case KindUnresolvedCountry:
		return "UnresolvedCountry"
	default:
		return fmt.Sprintf("ConditionKind(%d)", int(k))
	}
}

// Fatal reports whether a condition of this kind fails its unit
// rather than merely flagging it.
func (k ConditionKind) Fatal() bool {
	switch k {
	case KindMissingBaseYear, KindUnknownSector, KindUnresolvedCountry:
		return true
	default:
		return false
	}
}

// A Condition is one reportable event, keyed so downstream consumers
// can audit which numbers are low-confidence or zero-filled.
type Condition struct {
	Kind ConditionKind

	Gas    string
	Sector string
	Code   string // country or region, if applicable
	Year   int    // zero if not year-specific

	// Magnitude quantifies the condition where applicable, for
	// example the unaccounted mass in kg/s.
	Magnitude float64

	Detail string
}

func (c Condition) String() string {
	s := c.Kind.String()
	if c.Gas != "" || c.Sector != "" {
		s += " " + c.Gas + "|" + c.Sector
	}
	if c.Code != "" {
		s += " " + c.Code
	}
	if c.Year != 0 {
		s += fmt.Sprintf(" %d", c.Year)
	}
	if c.Magnitude != 0 {
		s += fmt.Sprintf(" (%g)", c.Magnitude)
	}
	if c.Detail != "" {
		s += ": " + c.Detail
	}
	return s
}

// ConditionError wraps a fatal Condition as an error.
type ConditionError struct {
	Condition Condition
}

func (e *ConditionError) Error() string {
	return "concordia: " + e.Condition.String()
}

// AsCondition extracts the Condition from an error if it carries one.
func AsCondition(err error) (Condition, bool) {
	if ce, ok := err.(*ConditionError); ok {
		return ce.Condition, true
	}
	return Condition{}, false
}

// RunStatus summarizes the outcome of a pipeline run.
type RunStatus int

const (
	// StatusSuccess means every unit completed without fatal
	// conditions.
	StatusSuccess RunStatus = iota
	// StatusPartialFailure means some units failed or were flagged
	// but at least one unit per gas succeeded.
	StatusPartialFailure
	// StatusFailed means every unit for some gas failed, or a
	// structural input was missing.
	StatusFailed
)

func (s RunStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusPartialFailure:
		return "partial-failure"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("RunStatus(%d)", int(s))
	}
}

// A Report collects the outcome of one pipeline run: its status plus
// every reportable condition with its key.
type Report struct {
	Status     RunStatus
	Conditions []Condition

	// unit accounting per gas, used to decide the run status.
	unitsPerGas  map[string]int
	failedPerGas map[string]int
}

// NewReport creates an empty report.
func NewReport() *Report {
	return &Report{
		unitsPerGas:  make(map[string]int),
		failedPerGas: make(map[string]int),
	}
}

// Add appends conditions to the report.
func (r *Report) Add(cs ...Condition) {
	r.Conditions = append(r.Conditions, cs...)
}

// AddUnit records a completed or failed unit of work for the given
// gas.
func (r *Report) AddUnit(gas string, failed bool) {
	r.unitsPerGas[gas]++
	if failed {
		r.failedPerGas[gas]++
	}
}

// Finalize computes the run status from the recorded units and
// conditions and returns the report.
func (r *Report) Finalize() *Report {
	r.Status = StatusSuccess
	anyFailed := false
	for gas, n := range r.unitsPerGas {
		f := r.failedPerGas[gas]
		if f > 0 {
			anyFailed = true
		}
		if n > 0 && f == n {
			r.Status = StatusFailed
			return r
		}
	}
	if anyFailed {
		r.Status = StatusPartialFailure
	}
	return r
}

// CountKind returns the number of recorded conditions of kind k.
func (r *Report) CountKind(k ConditionKind) int {
	n := 0
	for _, c := range r.Conditions {
		if c.Kind == k {
			n++
		}
	}
	return n
}

// Table returns the report's conditions as a text table, sorted by
// kind and key.
func (r *Report) Table() Table {
	t := Table{{"Condition", "Gas", "Sector", "Code", "Year", "Magnitude", "Detail"}}
	cs := make([]Condition, len(r.Conditions))
	copy(cs, r.Conditions)
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Kind != cs[j].Kind {
			return cs[i].Kind < cs[j].Kind
		}
		return cs[i].String() < cs[j].String()
	})
	for _, c := range cs {
		year := ""
		if c.Year != 0 {
			year = fmt.Sprintf("%d", c.Year)
		}
		mag := ""
		if c.Magnitude != 0 {
			mag = fmt.Sprintf("%g", c.Magnitude)
		}
		t = append(t, []string{c.Kind.String(), c.Gas, c.Sector, c.Code, year, mag, c.Detail})
	}
	return t
}

// A Table holds a text representation of report data.
type Table [][]string

// Tabbed creates a tab-separated table.
func (t Table) Tabbed(w io.Writer) (n int, err error) {
	ww := new(tabwriter.Writer)
	ww.Init(w, 0, 2, 0, '\t', 0)
	var nn int
	for _, l := range t {
		for _, r := range l {
			nn, err = fmt.Fprint(ww, r+"\t")
			if err != nil {
				return
			}
			n += nn
		}
		nn, err = fmt.Fprint(ww, "\n")
		if err != nil {
			return
		}
		n += nn
	}
	err = ww.Flush()
	return
}
