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
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/ctessum/requestcache/v4"
	"github.com/ctessum/sparse"

	"github.com/IAMconsortium/concordia/internal/hash"
)

// ErrProxyNotFound is returned by a ProxySource when no proxy data
// exists for the requested gas, sector and year.
var ErrProxyNotFound = errors.New("concordia: proxy not found")

// A ProxySource provides raw, unnormalized proxy weight data. Raw
// weights may carry any sign; normalization takes absolute values so
// the stored weights are sign-invariant.
type ProxySource interface {
	ReadProxy(gas, sector string, year int) (*RawProxy, error)
}

// RawProxy is unnormalized proxy data for one (gas, sector, year),
// as read from a proxy raster set.
type RawProxy struct {
	// Cells maps each spatial unit code to its raw cell weights on
	// the grid, shaped [Ny, Nx].
	Cells map[string]*sparse.SparseArray

	// Seasonality optionally holds 12 monthly shape factors. If nil,
	// a uniform seasonality is assumed.
	Seasonality []float64
}

// ProxyWeights holds the normalized weights for one
// (gas, sector, year): per spatial unit, non-negative cell weights
// summing to 1 over the unit's footprint, plus the unit's aggregate
// weight for downscaling. Weights are stored as sparse per-unit cell
// sets rather than dense globe-sized arrays.
type ProxyWeights struct {
	Gas    string
	Sector string
	Year   int

	// Cells maps unit codes to normalized cell weights.
	Cells map[string]*sparse.SparseArray

	// Aggregate maps unit codes to the total absolute raw weight of
	// the unit, used as the country share within its region.
	Aggregate map[string]float64

	// Seasonality holds 12 monthly factors with mean 1.
	Seasonality []float64
}

// CellWeights returns the normalized cell weights for the given unit.
func (pw *ProxyWeights) CellWeights(code string) (*sparse.SparseArray, bool) {
	w, ok := pw.Cells[code]
	return w, ok
}

// AggregateWeight returns the aggregate weight for the given unit,
// or zero if the unit has no coverage.
func (pw *ProxyWeights) AggregateWeight(code string) float64 {
	return pw.Aggregate[code]
}

// normalizeProxy converts raw proxy data into normalized weights.
// Cell weights become non-negative (absolute values) and are scaled
// to sum to 1 per unit; units whose weights sum to zero are dropped.
func normalizeProxy(gas, sector string, year int, raw *RawProxy) *ProxyWeights {
	pw := &ProxyWeights{
		Gas:       gas,
		Sector:    sector,
		Year:      year,
		Cells:     make(map[string]*sparse.SparseArray),
		Aggregate: make(map[string]float64),
	}
	for code, cells := range raw.Cells {
		shape := cells.GetShape()
		abs := sparse.ZerosSparse(shape...)
		for i, v := range cells.Elements {
			if math.IsNaN(v) || v == 0 {
				continue
			}
			abs.Elements[i] = math.Abs(v)
		}
		sum := abs.Sum()
		if sum == 0 {
			continue
		}
		abs.Scale(1 / sum)
		pw.Cells[code] = abs
		pw.Aggregate[code] = sum
	}
	pw.Seasonality = normalizeSeasonality(raw.Seasonality)
	return pw
}

// normalizeSeasonality scales 12 monthly factors to mean 1, falling
// back to uniform when the input is missing or degenerate.
func normalizeSeasonality(s []float64) []float64 {
	out := make([]float64, 12)
	if len(s) != 12 {
		for i := range out {
			out[i] = 1
		}
		return out
	}
	sum := 0.
	for _, v := range s {
		sum += math.Abs(v)
	}
	if sum == 0 {
		for i := range out {
			out[i] = 1
		}
		return out
	}
	for i, v := range s {
		out[i] = math.Abs(v) * 12 / sum
	}
	return out
}

// A ProxyStore exposes normalized proxy weight fields per
// (gas, sector, year), memoizing loads because proxy raster reads
// are expensive and weights are pure functions of their inputs.
// It is safe for concurrent use.
type ProxyStore struct {
	// Source provides the raw proxy data.
	Source ProxySource

	// MemCacheSize is the number of weight fields to hold in the
	// memory cache. The default is 50.
	MemCacheSize int

	cache    *requestcache.Cache
	lazyLoad sync.Once
}

// NewProxyStore creates a proxy store backed by the given source.
func NewProxyStore(source ProxySource) *ProxyStore {
	return &ProxyStore{
		Source:       source,
		MemCacheSize: 50,
	}
}

func (p *ProxyStore) load() {
	p.cache = requestcache.NewCache(requestcache.Deduplicate(), requestcache.Memory(p.MemCacheSize))
}

type proxyWeightsHolder ProxyWeights

// MarshalBinary marshals the data to a byte array.
func (pw *proxyWeightsHolder) MarshalBinary() ([]byte, error) {
	w := bytes.NewBuffer(nil)
	e := gob.NewEncoder(w)
	if err := e.Encode((*ProxyWeights)(pw)); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// UnmarshalBinary unmarshals the receiver from a byte array.
func (pw *proxyWeightsHolder) UnmarshalBinary(b []byte) error {
	r := bytes.NewBuffer(b)
	d := gob.NewDecoder(r)
	dd := (*ProxyWeights)(pw)
	if err := d.Decode(dd); err != nil {
		return err
	}
	for _, cells := range dd.Cells {
		cells.Fix()
	}
	return nil
}

// proxyRequest loads one proxy weight field through the cache.
type proxyRequest struct {
	store       *ProxyStore
	gas, sector string
	year        int
}

func (r *proxyRequest) Key() string {
	return "proxy_" + hash.Hash(struct {
		Gas, Sector string
		Year        int
	}{Gas: r.gas, Sector: r.sector, Year: r.year})
}

// Run reads and normalizes a proxy weight field. A missing proxy
// becomes an empty weight field rather than an error so that
// zero-coverage fallbacks can apply downstream.
func (r *proxyRequest) Run(_ context.Context, _ *requestcache.Cache, res requestcache.Result) error {
	raw, err := r.store.Source.ReadProxy(r.gas, r.sector, r.year)
	if err != nil {
		if errors.Is(err, ErrProxyNotFound) {
			raw = &RawProxy{}
		} else {
			return fmt.Errorf("concordia: reading proxy %s/%s/%d: %v", r.gas, r.sector, r.year, err)
		}
	}
	pw := normalizeProxy(r.gas, r.sector, r.year, raw)
	resH := res.(*proxyWeightsHolder)
	*resH = *(*proxyWeightsHolder)(pw)
	return nil
}

// Weights returns the normalized proxy weight field for the given
// gas, sector and year. Results are memoized; the returned value is
// shared and must not be modified.
func (p *ProxyStore) Weights(ctx context.Context, gas, sector string, year int) (*ProxyWeights, error) {
	p.lazyLoad.Do(p.load)
	req := p.cache.NewRequestRecursive(ctx, &proxyRequest{store: p, gas: gas, sector: sector, year: year})
	result := new(ProxyWeights)
	if err := req.Result((*proxyWeightsHolder)(result)); err != nil {
		return nil, err
	}
	return result, nil
}
