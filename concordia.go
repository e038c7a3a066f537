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

// Package concordia converts region-level greenhouse-gas emission
// scenario trajectories from integrated-assessment models into
// spatially gridded, sector-resolved emission fields consistent with
// a historical reference inventory.
//
// The processing pipeline for each gas and sector is:
// harmonize the scenario against history at the base year,
// downscale region totals to countries using proxy weights,
// distribute country totals onto a regular latitude-longitude grid,
// and assemble the per-sector fields into output variables.
package concordia

// Version gives the version number of this library.
const Version = "1.0.0"
