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

// Package cesmplot computes climate indices (global means, regional box
// means and zonal-difference indices) from gridded CESM and iCESM model
// output. The figure package renders them.
package cesmplot

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ctessum/sparse"
)

// Version gives the version number.
const Version = "0.3.0"

// Names of the dimensions that carry coordinate vectors.
const (
	TimeDim = "time"
	LatDim  = "lat"
	LonDim  = "lon"
)

// Field is a gridded variable: named dimensions, values in row-major order
// and the coordinate vectors for the time, lat and lon dimensions when they
// are present.
type Field struct {
	Name        string
	Dims        []string           // netcdf dimensions for this variable
	Data        *sparse.DenseArray // variable data, shape matches Dims
	Time        []time.Time        // coordinate for TimeDim
	Lat         []float64          // coordinate for LatDim, degrees north
	Lon         []float64          // coordinate for LonDim, degrees east in [0, 360)
	Units       string
	Description string

	// FillValues are the declared missing-data markers. They have already
	// been replaced with NaN in Data.
	FillValues []float64

	Attributes map[string]interface{}
}

// NewField returns a field of zeros with the given dimensions.
func NewField(name string, dims []string, shape ...int) *Field {
	return &Field{
		Name:       name,
		Dims:       dims,
		Data:       sparse.ZerosDense(shape...),
		Attributes: make(map[string]interface{}),
	}
}

// DimIndex returns the position of dimension name in f.Dims, or -1.
func (f *Field) DimIndex(name string) int {
	for i, d := range f.Dims {
		if d == name {
			return i
		}
	}
	return -1
}

// HasDim returns whether f has dimension name.
func (f *Field) HasDim(name string) bool { return f.DimIndex(name) >= 0 }

// HasLatLon returns whether f has both geographic dimensions
// with coordinates.
func (f *Field) HasLatLon() bool {
	return f.HasDim(LatDim) && f.HasDim(LonDim) && f.Lat != nil && f.Lon != nil
}

// Len returns the number of elements in f.
func (f *Field) Len() int { return len(f.Data.Elements) }

// Copy returns a deep copy of f.
func (f *Field) Copy() *Field {
	o := *f
	o.Dims = append([]string{}, f.Dims...)
	o.Data = f.Data.Copy()
	o.Time = append([]time.Time(nil), f.Time...)
	o.Lat = append([]float64(nil), f.Lat...)
	o.Lon = append([]float64(nil), f.Lon...)
	o.FillValues = append([]float64(nil), f.FillValues...)
	o.Attributes = make(map[string]interface{}, len(f.Attributes))
	for k, v := range f.Attributes {
		o.Attributes[k] = v
	}
	return &o
}

// Check makes sure the data and coordinates are consistent with the
// dimensions.
func (f *Field) Check() error {
	if f.Data == nil {
		return fmt.Errorf("cesmplot: variable %s has no data", f.Name)
	}
	if len(f.Dims) != len(f.Data.Shape) {
		return fmt.Errorf("cesmplot: variable %s has %d dimensions but data has %d",
			f.Name, len(f.Dims), len(f.Data.Shape))
	}
	n := 1
	for _, l := range f.Data.Shape {
		n *= l
	}
	if n != len(f.Data.Elements) {
		return fmt.Errorf("cesmplot: variable %s: dims are %d but array length is %d",
			f.Name, n, len(f.Data.Elements))
	}
	check := func(dim string, l int) error {
		i := f.DimIndex(dim)
		if i < 0 || l == 0 {
			return nil
		}
		if f.Data.Shape[i] != l {
			return fmt.Errorf("cesmplot: variable %s: %s coordinate has length %d but dimension has length %d",
				f.Name, dim, l, f.Data.Shape[i])
		}
		return nil
	}
	if err := check(TimeDim, len(f.Time)); err != nil {
		return err
	}
	if err := check(LatDim, len(f.Lat)); err != nil {
		return err
	}
	return check(LonDim, len(f.Lon))
}

// Series is a named scalar time series, such as an observed index
// read from a table.
type Series struct {
	Name   string
	Time   []time.Time
	Values []float64
}

// Select returns the part of s within w.
func (s Series) Select(w TimeWindow) Series {
	o := Series{Name: s.Name}
	for i, t := range s.Time {
		if w.Contains(t) {
			o.Time = append(o.Time, t)
			o.Values = append(o.Values, s.Values[i])
		}
	}
	return o
}

// TimeWindow is a closed interval of time.
type TimeWindow struct {
	Start, End time.Time
}

// Contains returns whether t is within the window, inclusive of both ends.
// A zero Start or End leaves that side open.
func (w TimeWindow) Contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && t.After(w.End) {
		return false
	}
	return true
}

func (w TimeWindow) String() string {
	return fmt.Sprintf("%s to %s", FormatTime(w.Start), FormatTime(w.End))
}

// FormatTime formats t the way it appears in captions.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "..."
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04")
}

// Dataset is a set of variables read from one file.
type Dataset struct {
	Path       string
	Vars       map[string]*Field
	Attributes map[string]interface{}

	order []string
}

// NewDataset returns an empty dataset.
func NewDataset(path string) *Dataset {
	return &Dataset{
		Path:       path,
		Vars:       make(map[string]*Field),
		Attributes: make(map[string]interface{}),
	}
}

// AddVariable adds f to d, replacing any variable with the same name.
func (d *Dataset) AddVariable(f *Field) {
	if _, ok := d.Vars[f.Name]; !ok {
		d.order = append(d.order, f.Name)
	}
	d.Vars[f.Name] = f
}

// RemoveVariable removes variable name from d.
func (d *Dataset) RemoveVariable(name string) {
	delete(d.Vars, name)
	for i, n := range d.order {
		if n == name {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// Variables returns the names of the variables in d in the order
// they were added.
func (d *Dataset) Variables() []string {
	o := make([]string, 0, len(d.Vars))
	seen := make(map[string]bool)
	for _, n := range d.order {
		if _, ok := d.Vars[n]; ok && !seen[n] {
			o = append(o, n)
			seen[n] = true
		}
	}
	// Variables added directly to the map.
	var extra []string
	for n := range d.Vars {
		if !seen[n] {
			extra = append(extra, n)
		}
	}
	sort.Strings(extra)
	return append(o, extra...)
}

// DataVariables returns the names of the variables that are not
// coordinate variables, i.e. those that plots can be made of.
func (d *Dataset) DataVariables() []string {
	var o []string
	for _, n := range d.Variables() {
		f := d.Vars[n]
		if len(f.Dims) == 1 && f.Dims[0] == n {
			continue
		}
		o = append(o, n)
	}
	return o
}

// Variable returns the named variable or an *UnknownVariableError.
func (d *Dataset) Variable(name string) (*Field, error) {
	f, ok := d.Vars[name]
	if !ok {
		return nil, &UnknownVariableError{Name: name, Path: d.Path}
	}
	return f, nil
}

// TimeRange returns the first and last time over all variables.
func (d *Dataset) TimeRange() (TimeWindow, bool) {
	var w TimeWindow
	ok := false
	for _, f := range d.Vars {
		for _, t := range f.Time {
			if !ok || t.Before(w.Start) {
				w.Start = t
			}
			if !ok || t.After(w.End) {
				w.End = t
			}
			ok = true
		}
	}
	return w, ok
}

// NormalizeLon maps a longitude to [0, 360).
func NormalizeLon(lon float64) float64 {
	l := math.Mod(lon, 360)
	if l < 0 {
		l += 360
	}
	return l
}
