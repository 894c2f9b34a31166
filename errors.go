/*
Copyright © 2024 the cesmplot authors.
This file is part of cesmplot.

cesmplot is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

cesmplot is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with cesmplot.  If not, see <http://www.gnu.org/licenses/>.
*/

package cesmplot

import (
	"fmt"
	"strings"
)

// UnknownIndexError is returned when an index name is not Raw,
// Global Mean, a region box, or a difference index.
type UnknownIndexError struct {
	Name string
}

func (e *UnknownIndexError) Error() string {
	return fmt.Sprintf("cesmplot: unknown index %q", e.Name)
}

// VariableMismatchError is returned when a difference index is requested
// for a variable other than the one it is defined for.
type VariableMismatchError struct {
	Index, Required, Got string
}

func (e *VariableMismatchError) Error() string {
	return fmt.Sprintf("cesmplot: index %s requires variable %s, not %s",
		e.Index, e.Required, e.Got)
}

// MissingDimensionError is returned when an operation needs a dimension
// that the variable does not have.
type MissingDimensionError struct {
	Variable string
	Dims     []string
}

func (e *MissingDimensionError) Error() string {
	return fmt.Sprintf("cesmplot: variable %s is missing dimension(s) %s",
		e.Variable, strings.Join(e.Dims, ", "))
}

// EmptySelectionError is returned when a box or time window
// selects no data.
type EmptySelectionError struct {
	Variable string
	What     string // description of the selection
}

func (e *EmptySelectionError) Error() string {
	return fmt.Sprintf("cesmplot: %s selects no data from variable %s", e.What, e.Variable)
}

// UnknownVariableError is returned when a dataset does not contain
// the requested variable.
type UnknownVariableError struct {
	Name, Path string
}

func (e *UnknownVariableError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("cesmplot: no variable named %q", e.Name)
	}
	return fmt.Sprintf("cesmplot: no variable named %q in %s", e.Name, e.Path)
}

// InvalidBoxError is returned for a region box whose bounds are not
// strictly increasing.
type InvalidBoxError struct {
	Box RegionBox
}

func (e *InvalidBoxError) Error() string {
	return fmt.Sprintf("cesmplot: invalid region box %s: lat %v, lon %v; minimums must be less than maximums",
		e.Box.Name, e.Box.Lat, e.Box.Lon)
}
