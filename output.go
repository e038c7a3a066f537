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
	"strings"
	"time"

	"github.com/ctessum/cdf"
)

// Encoding holds the numeric encoding parameters for output files.
type Encoding struct {
	// Zlib and ComplevelN describe the deflate settings recorded in
	// the output metadata for downstream conversion.
	Zlib       bool
	ComplevelN int

	// Dtype is the storage type of the data variable; only
	// "float32" is supported.
	Dtype string
}

// DefaultEncoding is the standard output encoding.
var DefaultEncoding = Encoding{Zlib: true, ComplevelN: 2, Dtype: "float32"}

// WriteGriddedField writes the field to w as a netCDF file with
// dimensions ordered (time, sector, lat, lon). The data variable is
// stored as single-precision flux in kg m-2 s-1; the time coordinate
// is mid-month days since the start of the field's first year.
func WriteGriddedField(w *os.File, f *GriddedField, enc Encoding) error {
	if enc.Dtype != "" && enc.Dtype != "float32" {
		return fmt.Errorf("concordia: unsupported output dtype %q", enc.Dtype)
	}
	nt := len(f.Years) * 12
	ns := len(f.Sectors)
	h := cdf.NewHeader(
		[]string{"time", "sector", "lat", "lon"},
		[]int{nt, ns, f.Grid.Ny, f.Grid.Nx})
	h.AddAttribute("", "title", fmt.Sprintf("Gridded %s emissions", f.Gas))
	h.AddAttribute("", "source_version", Version)
	h.AddAttribute("", "sector_ids", sectorIDs(f.Sectors))
	if enc.Zlib {
		h.AddAttribute("", "compression", fmt.Sprintf("zlib complevel %d", enc.ComplevelN))
	}

	epoch := time.Date(f.Years[0], time.January, 1, 0, 0, 0, 0, time.UTC)
	h.AddVariable("time", []string{"time"}, []float64{0})
	h.AddAttribute("time", "units", fmt.Sprintf("days since %d-01-01 00:00:00", f.Years[0]))
	h.AddAttribute("time", "calendar", "standard")
	h.AddVariable("sector", []string{"sector"}, []int32{0})
	h.AddAttribute("sector", "long_name", "emission sector index")
	h.AddVariable("lat", []string{"lat"}, []float64{0})
	h.AddAttribute("lat", "units", "degrees_north")
	h.AddVariable("lon", []string{"lon"}, []float64{0})
	h.AddAttribute("lon", "units", "degrees_east")

	v := f.VarName()
	h.AddVariable(v, []string{"time", "sector", "lat", "lon"}, []float32{0})
	h.AddAttribute(v, "units", "kg m-2 s-1")
	h.AddAttribute(v, "_FillValue", []float32{float32(math.NaN())})
	h.Define()
	for _, err := range h.Check() {
		return fmt.Errorf("concordia: creating output file: %v", err)
	}

	ff, err := cdf.Create(w, h) // writes the header to w
	if err != nil {
		return fmt.Errorf("concordia: creating output file: %v", err)
	}

	times := make([]float64, nt)
	for yi, year := range f.Years {
		for m := 0; m < 12; m++ {
			mid := midMonth(year, time.Month(m+1))
			times[yi*12+m] = mid.Sub(epoch).Hours() / 24
		}
	}
	if err := writeVar(ff, "time", times); err != nil {
		return err
	}
	sectors := make([]int32, ns)
	for i := range sectors {
		sectors[i] = int32(i)
	}
	if err := writeVar(ff, "sector", sectors); err != nil {
		return err
	}
	if err := writeVar(ff, "lat", f.Grid.Lats); err != nil {
		return err
	}
	if err := writeVar(ff, "lon", f.Grid.Lons); err != nil {
		return err
	}

	// Convert cell rates [kg/s] to fluxes [kg m-2 s-1].
	areas := f.Grid.CellAreas()
	data := make([]float32, len(f.Data.Elements))
	for i, val := range f.Data.Elements {
		nd := f.Data.IndexNd(i)
		data[i] = float32(val / areas[nd[2]])
	}
	if err := writeVar(ff, v, data); err != nil {
		return err
	}
	if err := cdf.UpdateNumRecs(w); err != nil {
		return fmt.Errorf("concordia: finalizing output file: %v", err)
	}
	return nil
}

func writeVar(f *cdf.File, v string, data interface{}) error {
	end := f.Header.Lengths(v)
	start := make([]int, len(end))
	w := f.Writer(v, start, end)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("concordia: writing variable %s: %v", v, err)
	}
	return nil
}

func midMonth(year int, month time.Month) time.Time {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	return start.Add(end.Sub(start) / 2)
}

func sectorIDs(sectors []string) string {
	parts := make([]string, len(sectors))
	for i, s := range sectors {
		parts[i] = fmt.Sprintf("%d: %s", i, s)
	}
	return strings.Join(parts, "; ")
}
