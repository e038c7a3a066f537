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
	"testing"

	"github.com/ctessum/geom"
)

func TestNewGlobalGrid(t *testing.T) {
	grid, err := NewGlobalGrid(0.5)
	if err != nil {
		t.Fatal(err)
	}
	if grid.Nx != 720 || grid.Ny != 360 {
		t.Errorf("got %dx%d, want 720x360", grid.Nx, grid.Ny)
	}
	if grid.Lons[0] != -179.75 || grid.Lats[0] != -89.75 {
		t.Errorf("first centers: got %g, %g", grid.Lons[0], grid.Lats[0])
	}
	if grid.Lons[719] != 179.75 || grid.Lats[359] != 89.75 {
		t.Errorf("last centers: got %g, %g", grid.Lons[719], grid.Lats[359])
	}
}

func TestGetIndex(t *testing.T) {
	grid, err := NewGlobalGrid(90)
	if err != nil {
		t.Fatal(err)
	}
	row, col, ok := grid.GetIndex(geom.Point{X: 10, Y: 45})
	if !ok {
		t.Fatal("point should be within the grid")
	}
	if row != 1 || col != 2 {
		t.Errorf("got (%d, %d), want (1, 2)", row, col)
	}
	if _, _, ok := grid.GetIndex(geom.Point{X: 500, Y: 45}); ok {
		t.Error("point outside the grid should not be found")
	}
}

func TestCellAreas(t *testing.T) {
	grid, err := NewGlobalGrid(90)
	if err != nil {
		t.Fatal(err)
	}
	areas := grid.CellAreas()
	if len(areas) != grid.Ny {
		t.Fatalf("got %d rows, want %d", len(areas), grid.Ny)
	}
	// The row areas times the number of columns cover the sphere.
	total := 0.
	for _, a := range areas {
		total += a * float64(grid.Nx)
	}
	want := 4 * math.Pi * earthRadius * earthRadius
	if relDiff(total, want) > 1e-12 {
		t.Errorf("total area %g, want %g", total, want)
	}
	// Rows are symmetric about the equator.
	if relDiff(areas[0], areas[grid.Ny-1]) > 1e-12 {
		t.Errorf("polar rows differ: %g vs %g", areas[0], areas[grid.Ny-1])
	}
}
