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
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// readCOARDSVar reads a floating point variable from a COARDS file.
// It will return nil if the variable is not floating point.
// _FillValue cells become NaN.
func readCOARDSVar(nc *cdf.File, v string) ([]float64, error) {
	r := nc.Reader(v, nil, nil)
	dataI := r.Zero(-1)
	switch dataI.(type) {
	case []float32, []float64:
	default:
		return nil, nil
	}
	if _, err := r.Read(dataI); err != nil {
		return nil, err
	}
	var data []float64
	switch d := dataI.(type) {
	case []float64:
		data = d
	case []float32:
		data = make([]float64, len(d))
		for i, v := range d {
			data[i] = float64(v)
		}
	}
	noDataI := nc.Header.GetAttribute(v, "_FillValue")
	if noDataI != nil {
		var noData float64
		switch nd := noDataI.(type) {
		case []float32:
			noData = float64(nd[0])
		case []float64:
			noData = nd[0]
		default:
			return nil, fmt.Errorf("concordia: invalid type for COARDS FillValue: %T", noDataI)
		}
		for i, d := range data {
			if d == noData {
				data[i] = math.NaN()
			}
		}
	}
	return data, nil
}

// readCOARDSIntVar reads an integer variable from a COARDS file.
func readCOARDSIntVar(nc *cdf.File, v string) ([]int, error) {
	r := nc.Reader(v, nil, nil)
	dataI := r.Zero(-1)
	if _, err := r.Read(dataI); err != nil {
		return nil, err
	}
	switch d := dataI.(type) {
	case []int32:
		data := make([]int, len(d))
		for i, v := range d {
			data[i] = int(v)
		}
		return data, nil
	case []int16:
		data := make([]int, len(d))
		for i, v := range d {
			data[i] = int(v)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("concordia: variable %s is not an integer variable", v)
	}
}

// A UnitIndex assigns each grid cell to at most one spatial unit.
// It is the sparse country-cellset association that proxy weight
// fields are split along.
type UnitIndex struct {
	grid  *GridDef
	codes []string
	cells []int // per cell, index into codes or -1
}

// ReadUnitIndex reads a COARDS index raster assigning grid cells to
// country codes. The file must contain an integer variable "country"
// with dimensions [lat, lon] holding indices into the global
// "country_codes" attribute, a comma-separated code list. Cells with
// negative indices belong to no unit.
func ReadUnitIndex(file string, grid *GridDef) (*UnitIndex, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("concordia: opening unit index %s: %v", file, err)
	}
	defer f.Close()
	nc, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("concordia: opening unit index %s: %v", file, err)
	}
	dims := nc.Header.Lengths("country")
	if len(dims) != 2 || dims[0] != grid.Ny || dims[1] != grid.Nx {
		return nil, fmt.Errorf("concordia: unit index %s dimensions %v do not match grid %dx%d",
			file, dims, grid.Ny, grid.Nx)
	}
	codesI := nc.Header.GetAttribute("", "country_codes")
	codesS, ok := codesI.(string)
	if !ok {
		return nil, fmt.Errorf("concordia: unit index %s is missing the country_codes attribute", file)
	}
	cells, err := readCOARDSIntVar(nc, "country")
	if err != nil {
		return nil, fmt.Errorf("concordia: reading unit index %s: %v", file, err)
	}
	codes := strings.Split(codesS, ",")
	for i, c := range codes {
		codes[i] = strings.ToLower(strings.TrimSpace(c))
	}
	for _, ci := range cells {
		if ci >= len(codes) {
			return nil, fmt.Errorf("concordia: unit index %s cell index %d out of range", file, ci)
		}
	}
	return &UnitIndex{grid: grid, codes: codes, cells: cells}, nil
}

// NewUnitIndex creates a unit index directly from a per-cell code
// assignment, shaped [Ny, Nx] in row-major order with empty strings
// for unassigned cells.
func NewUnitIndex(grid *GridDef, assignment []string) (*UnitIndex, error) {
	if len(assignment) != grid.Ny*grid.Nx {
		return nil, fmt.Errorf("concordia: unit index has %d cells but grid %dx%d",
			len(assignment), grid.Ny, grid.Nx)
	}
	u := &UnitIndex{grid: grid, cells: make([]int, len(assignment))}
	idx := make(map[string]int)
	for i, code := range assignment {
		code = strings.ToLower(code)
		if code == "" {
			u.cells[i] = -1
			continue
		}
		j, ok := idx[code]
		if !ok {
			j = len(u.codes)
			idx[code] = j
			u.codes = append(u.codes, code)
		}
		u.cells[i] = j
	}
	return u, nil
}

// Code returns the unit code of the cell at the given row and
// column, or the empty string if the cell is unassigned.
func (u *UnitIndex) Code(row, col int) string {
	i := u.cells[row*u.grid.Nx+col]
	if i < 0 {
		return ""
	}
	return u.codes[i]
}

// Split splits a dense [lat, lon] field into sparse per-unit cell
// sets. NaN cells are skipped.
func (u *UnitIndex) Split(data []float64) map[string]*sparse.SparseArray {
	out := make(map[string]*sparse.SparseArray)
	for j := 0; j < u.grid.Ny; j++ {
		for i := 0; i < u.grid.Nx; i++ {
			code := u.Code(j, i)
			if code == "" {
				continue
			}
			v := data[j*u.grid.Nx+i]
			if math.IsNaN(v) || v == 0 {
				continue
			}
			a, ok := out[code]
			if !ok {
				a = sparse.ZerosSparse(u.grid.Ny, u.grid.Nx)
				out[code] = a
			}
			a.Set(v, j, i)
		}
	}
	return out
}

// FileProxySource reads proxy weight rasters from COARDS-compliant
// netCDF files, one file per (gas, sector, year), splitting cells
// among spatial units with a UnitIndex.
type FileProxySource struct {
	// Dir is the directory holding the proxy files.
	Dir string

	// Pattern is the file name pattern, with {gas}, {sector} and
	// {year} placeholders. Sector names are lower-cased with spaces
	// replaced by underscores.
	Pattern string

	Grid  *GridDef
	Index *UnitIndex
}

func (s *FileProxySource) fileName(gas, sector string, year int) string {
	sector = strings.ReplaceAll(strings.ToLower(sector), " ", "_")
	r := strings.NewReplacer("{gas}", gas, "{sector}", sector, "{year}", fmt.Sprintf("%d", year))
	return filepath.Join(s.Dir, r.Replace(s.Pattern))
}

// ReadProxy reads the proxy raster for the given gas, sector and
// year. The first floating-point variable with [lat, lon] dimensions
// is taken as the weight field; an optional "seasonality" variable
// with a single length-12 dimension supplies monthly shape factors.
func (s *FileProxySource) ReadProxy(gas, sector string, year int) (*RawProxy, error) {
	file := s.fileName(gas, sector, year)
	f, err := os.Open(file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrProxyNotFound
		}
		return nil, fmt.Errorf("concordia: opening proxy file %s: %v", file, err)
	}
	defer f.Close()
	nc, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("concordia: opening proxy file %s: %v", file, err)
	}
	raw := &RawProxy{}
	for _, v := range nc.Header.Variables() {
		dims := nc.Header.Dimensions(v)
		if len(dims) == 2 && dims[0] == "lat" && dims[1] == "lon" && raw.Cells == nil {
			lens := nc.Header.Lengths(v)
			if lens[0] != s.Grid.Ny || lens[1] != s.Grid.Nx {
				return nil, fmt.Errorf("concordia: proxy file %s variable %s shape %v does not match grid %dx%d",
					file, v, lens, s.Grid.Ny, s.Grid.Nx)
			}
			data, err := readCOARDSVar(nc, v)
			if err != nil {
				return nil, fmt.Errorf("concordia: reading proxy file %s variable %s: %v", file, v, err)
			}
			if data != nil {
				raw.Cells = s.Index.Split(data)
			}
		}
		if len(dims) == 1 && dims[0] == "month" {
			data, err := readCOARDSVar(nc, v)
			if err != nil {
				return nil, fmt.Errorf("concordia: reading proxy file %s variable %s: %v", file, v, err)
			}
			raw.Seasonality = data
		}
	}
	if raw.Cells == nil {
		return nil, fmt.Errorf("concordia: proxy file %s has no [lat, lon] weight variable", file)
	}
	return raw, nil
}
