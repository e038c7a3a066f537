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

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/ctessum/geom/proj"
)

// GridDef specifies the regular latitude-longitude grid that
// emissions are allocated to.
type GridDef struct {
	Name   string
	Nx, Ny int
	Dx, Dy float64
	X0, Y0 float64

	// Lats and Lons hold the cell center coordinates.
	Lats, Lons []float64

	Cells  []*GridCell
	SR     *proj.SR
	Extent geom.Polygon
	rtree  *rtree.Rtree
}

// GridCell defines an individual cell in a grid.
type GridCell struct {
	geom.Polygonal
	Row, Col int
}

// NewGridRegular creates a new regular grid, where all grid cells are
// the same size. X0, Y0 is the lower-left corner of the grid and sr
// is its spatial reference.
func NewGridRegular(name string, nx, ny int, dx, dy, x0, y0 float64, sr *proj.SR) *GridDef {
	grid := &GridDef{
		Name: name,
		Nx:   nx, Ny: ny,
		Dx: dx, Dy: dy,
		X0: x0, Y0: y0,
		SR:    sr,
		rtree: rtree.NewTree(25, 50),
	}
	grid.Cells = make([]*GridCell, grid.Nx*grid.Ny)
	grid.Lons = make([]float64, nx)
	grid.Lats = make([]float64, ny)
	for ix := 0; ix < nx; ix++ {
		grid.Lons[ix] = x0 + (float64(ix)+0.5)*dx
	}
	for iy := 0; iy < ny; iy++ {
		grid.Lats[iy] = y0 + (float64(iy)+0.5)*dy
	}
	i := 0
	for ix := 0; ix < grid.Nx; ix++ {
		for iy := 0; iy < grid.Ny; iy++ {
			cell := new(GridCell)
			x := x0 + float64(ix)*dx
			y := y0 + float64(iy)*dy
			cell.Row, cell.Col = iy, ix
			cell.Polygonal = geom.Polygon([]geom.Path{{
				{X: x, Y: y}, {X: x + dx, Y: y},
				{X: x + dx, Y: y + dy}, {X: x, Y: y + dy}, {X: x, Y: y}}})
			grid.rtree.Insert(cell)
			grid.Cells[i] = cell
			i++
		}
	}
	grid.Extent = geom.Polygon([]geom.Path{{{X: x0, Y: y0},
		{X: x0 + dx*float64(nx), Y: y0},
		{X: x0 + dx*float64(nx), Y: y0 + dy*float64(ny)},
		{X: x0, Y: y0 + dy*float64(ny)}, {X: x0, Y: y0}}})
	return grid
}

// NewGlobalGrid creates a global longitude-latitude grid with the
// given resolution in degrees, covering longitudes [-180,180) and
// latitudes [-90,90).
func NewGlobalGrid(res float64) (*GridDef, error) {
	sr, err := proj.Parse("+proj=longlat")
	if err != nil {
		return nil, fmt.Errorf("concordia: parsing grid projection: %v", err)
	}
	nx := int(math.Round(360 / res))
	ny := int(math.Round(180 / res))
	return NewGridRegular(fmt.Sprintf("global_%gdeg", res), nx, ny, res, res, -180, -90, sr), nil
}

// GetIndex returns the row and column indices of point p in the grid.
// withinGrid is false if p is not within the grid.
func (grid *GridDef) GetIndex(p geom.Point) (row, col int, withinGrid bool) {
	for _, cI := range grid.rtree.SearchIntersect(p.Bounds()) {
		c := cI.(*GridCell)
		return c.Row, c.Col, true
	}
	return 0, 0, false
}

// earthRadius is the mean Earth radius [m].
const earthRadius = 6.371e6

// CellAreas returns the area in square meters of the cells in each
// grid row, assuming a spherical Earth and a longitude-latitude grid.
func (grid *GridDef) CellAreas() []float64 {
	deg := math.Pi / 180
	areas := make([]float64, grid.Ny)
	for iy := 0; iy < grid.Ny; iy++ {
		y0 := (grid.Y0 + float64(iy)*grid.Dy) * deg
		y1 := (grid.Y0 + float64(iy+1)*grid.Dy) * deg
		areas[iy] = earthRadius * earthRadius * grid.Dx * deg * (math.Sin(y1) - math.Sin(y0))
	}
	return areas
}
