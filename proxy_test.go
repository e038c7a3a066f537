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
	"math"
	"sync"
	"testing"

	"github.com/ctessum/sparse"
)

// testProxySource is an in-memory ProxySource that counts reads.
type testProxySource struct {
	mx    sync.Mutex
	reads int
	data  map[string]*RawProxy
}

func proxyKey(gas, sector string, year int) string {
	return fmt.Sprintf("%s|%s|%d", gas, sector, year)
}

func (s *testProxySource) ReadProxy(gas, sector string, year int) (*RawProxy, error) {
	s.mx.Lock()
	s.reads++
	s.mx.Unlock()
	raw, ok := s.data[proxyKey(gas, sector, year)]
	if !ok {
		return nil, ErrProxyNotFound
	}
	return raw, nil
}

// testRaw builds a raw proxy on a ny x nx grid from per-unit cell
// values keyed by "row,col".
func testRaw(ny, nx int, units map[string]map[[2]int]float64) *RawProxy {
	raw := &RawProxy{Cells: make(map[string]*sparse.SparseArray)}
	for code, cells := range units {
		a := sparse.ZerosSparse(ny, nx)
		for rc, v := range cells {
			a.Set(v, rc[0], rc[1])
		}
		raw.Cells[code] = a
	}
	return raw
}

func TestNormalizeProxy(t *testing.T) {
	raw := testRaw(2, 4, map[string]map[[2]int]float64{
		"fra":  {{0, 0}: 1, {0, 1}: 3},
		"deu":  {{1, 0}: -2, {1, 1}: 2},
		"zero": {{1, 3}: 0},
	})
	pw := normalizeProxy("CO2", "Energy", 2020, raw)

	w, ok := pw.CellWeights("fra")
	if !ok {
		t.Fatal("fra should have weights")
	}
	if got := w.Get(0, 0); got != 0.25 {
		t.Errorf("fra (0,0): got %g, want 0.25", got)
	}
	if got := w.Sum(); math.Abs(got-1) > 1e-15 {
		t.Errorf("fra weights sum to %g, want 1", got)
	}
	if got := pw.AggregateWeight("fra"); got != 4 {
		t.Errorf("fra aggregate: got %g, want 4", got)
	}

	// Negative raw weights become positive.
	w, _ = pw.CellWeights("deu")
	if got := w.Get(1, 0); got != 0.5 {
		t.Errorf("deu (1,0): got %g, want 0.5", got)
	}
	if got := pw.AggregateWeight("deu"); got != 4 {
		t.Errorf("deu aggregate: got %g, want 4", got)
	}

	// All-zero units are dropped.
	if _, ok := pw.CellWeights("zero"); ok {
		t.Error("zero-coverage unit should be dropped")
	}
	if got := pw.AggregateWeight("zero"); got != 0 {
		t.Errorf("zero aggregate: got %g, want 0", got)
	}
}

func TestNormalizeSeasonality(t *testing.T) {
	s := normalizeSeasonality([]float64{2, 2, 2, 2, 2, 2, 0, 0, 0, 0, 0, 0})
	sum := 0.
	for _, v := range s {
		sum += v
	}
	if math.Abs(sum-12) > 1e-12 {
		t.Errorf("seasonality sums to %g, want 12", sum)
	}
	if s[0] != 2 || s[6] != 0 {
		t.Errorf("got s[0] = %g, s[6] = %g; want 2, 0", s[0], s[6])
	}

	// Missing or degenerate input falls back to uniform.
	for _, in := range [][]float64{nil, {1, 2}, make([]float64, 12)} {
		s := normalizeSeasonality(in)
		for m, v := range s {
			if v != 1 {
				t.Errorf("fallback month %d: got %g, want 1", m, v)
			}
		}
	}
}

func TestProxyStoreMemoizes(t *testing.T) {
	src := &testProxySource{data: map[string]*RawProxy{
		proxyKey("CO2", "Energy", 2020): testRaw(2, 4, map[string]map[[2]int]float64{
			"fra": {{0, 0}: 1},
		}),
	}}
	store := NewProxyStore(src)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		pw, err := store.Weights(ctx, "CO2", "Energy", 2020)
		if err != nil {
			t.Fatal(err)
		}
		if got := pw.AggregateWeight("fra"); got != 1 {
			t.Errorf("fra aggregate: got %g, want 1", got)
		}
		if len(pw.Seasonality) != 12 {
			t.Errorf("got %d seasonality factors, want 12", len(pw.Seasonality))
		}
	}
	if src.reads != 1 {
		t.Errorf("source read %d times, want 1", src.reads)
	}

	// The weights survive the cache's gob round trip.
	pw, err := store.Weights(ctx, "CO2", "Energy", 2020)
	if err != nil {
		t.Fatal(err)
	}
	w, ok := pw.CellWeights("fra")
	if !ok {
		t.Fatal("fra should have weights")
	}
	if got := w.Get(0, 0); got != 1 {
		t.Errorf("cached weight: got %g, want 1", got)
	}
}

func TestProxyStoreMissingProxy(t *testing.T) {
	store := NewProxyStore(&testProxySource{data: nil})
	pw, err := store.Weights(context.Background(), "CO2", "Energy", 2020)
	if err != nil {
		t.Fatal(err)
	}
	// A missing proxy is an empty weight field, not an error, so the
	// zero-coverage fallbacks can apply downstream.
	if len(pw.Cells) != 0 {
		t.Errorf("got %d units, want 0", len(pw.Cells))
	}
	if got := pw.AggregateWeight("fra"); got != 0 {
		t.Errorf("aggregate: got %g, want 0", got)
	}
}
