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

// Package cesmio reads and writes the gridded model output that
// cesmplot works with.
package cesmio

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"time"

	"github.com/ctessum/sparse"
	"github.com/spatialmodel/cesmplot"
)

// variable is a variable as read from a file, before any
// unpacking or coordinate matching.
type variable struct {
	name  string
	dims  []string
	shape []int
	data  []float64
	attrs map[string]interface{}
}

// dimAliases maps alternative dimension names to the ones cesmplot uses.
var dimAliases = map[string]string{
	"latitude":  cesmplot.LatDim,
	"longitude": cesmplot.LonDim,
	"Time":      cesmplot.TimeDim,
}

// Open reads the NetCDF file at path. Classic (CDF-1 and CDF-2) and
// NetCDF-4 (HDF5) files are supported.
func Open(path string) (*cesmplot.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cesmio: opening %s: %v", path, err)
	}
	magic := make([]byte, 4)
	if _, err = io.ReadFull(f, magic); err != nil {
		f.Close()
		return nil, fmt.Errorf("cesmio: reading %s: %v", path, err)
	}
	var vars []variable
	var global map[string]interface{}
	switch {
	case bytes.HasPrefix(magic, []byte("CDF")):
		vars, global, err = readClassic(f)
		f.Close()
	case bytes.Equal(magic, []byte("\x89HDF")):
		f.Close()
		vars, global, err = readHDF(path)
	default:
		f.Close()
		return nil, fmt.Errorf("cesmio: %s is not a NetCDF file", path)
	}
	if err != nil {
		return nil, fmt.Errorf("cesmio: reading %s: %v", path, err)
	}
	return assemble(path, vars, global)
}

// assemble converts the raw variables to fields, attaching coordinates.
func assemble(path string, vars []variable, global map[string]interface{}) (*cesmplot.Dataset, error) {
	for i := range vars {
		v := &vars[i]
		if a, ok := dimAliases[v.name]; ok && len(v.dims) == 1 && v.dims[0] == v.name {
			v.name = a
		}
		for j, d := range v.dims {
			if a, ok := dimAliases[d]; ok {
				v.dims[j] = a
			}
		}
		unpack(v)
	}

	byName := make(map[string]*variable, len(vars))
	for i := range vars {
		byName[vars[i].name] = &vars[i]
	}
	coord := func(dim string) []float64 {
		v, ok := byName[dim]
		if !ok || len(v.dims) != 1 || v.dims[0] != dim {
			return nil
		}
		return v.data
	}

	ds := cesmplot.NewDataset(path)
	for k, v := range global {
		ds.Attributes[k] = v
	}

	var times []time.Time
	if tv, ok := byName[cesmplot.TimeDim]; ok && coord(cesmplot.TimeDim) != nil {
		var err error
		times, err = DecodeTime(tv.data, attrString(tv.attrs, "units"), attrString(tv.attrs, "calendar"))
		if err != nil {
			return nil, fmt.Errorf("cesmio: decoding time in %s: %v", path, err)
		}
	}
	lat := coord(cesmplot.LatDim)
	lon := coord(cesmplot.LonDim)
	var lonOrder []int
	if lon != nil {
		lon, lonOrder = normalizeLon(lon)
	}

	for i := range vars {
		v := &vars[i]
		f := &cesmplot.Field{
			Name:        v.name,
			Dims:        v.dims,
			Data:        sparse.ZerosDense(v.shape...),
			Units:       attrString(v.attrs, "units"),
			Description: attrString(v.attrs, "long_name"),
			FillValues:  fillValues(v.attrs),
			Attributes:  v.attrs,
		}
		if f.Description == "" {
			f.Description = attrString(v.attrs, "description")
		}
		copy(f.Data.Elements, v.data)
		for _, d := range v.dims {
			switch d {
			case cesmplot.TimeDim:
				f.Time = times
			case cesmplot.LatDim:
				f.Lat = lat
			case cesmplot.LonDim:
				f.Lon = lon
			}
		}
		if lonOrder != nil && f.HasDim(cesmplot.LonDim) {
			f = f.Take(cesmplot.LonDim, lonOrder)
			f.Lon = lon
		}
		if f.Name == cesmplot.LonDim && len(f.Dims) == 1 && f.Dims[0] == cesmplot.LonDim {
			copy(f.Data.Elements, lon)
		}
		if err := f.Check(); err != nil {
			return nil, err
		}
		ds.AddVariable(f)
	}
	return ds, nil
}

// normalizeLon maps longitudes to [0, 360). If the result is not
// increasing, it returns the sorted longitudes and the order of the
// original indices.
func normalizeLon(lon []float64) ([]float64, []int) {
	o := make([]float64, len(lon))
	increasing := true
	for i, l := range lon {
		o[i] = cesmplot.NormalizeLon(l)
		if i > 0 && o[i] <= o[i-1] {
			increasing = false
		}
	}
	if increasing {
		return o, nil
	}
	order := make([]int, len(o))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return o[order[i]] < o[order[j]] })
	sorted := make([]float64, len(o))
	for i, k := range order {
		sorted[i] = o[k]
	}
	return sorted, order
}

// unpack replaces fill values with NaN and applies the CF
// scale_factor and add_offset attributes.
func unpack(v *variable) {
	fill := fillValues(v.attrs)
	scale, hasScale := attrFloat(v.attrs, "scale_factor")
	offset, hasOffset := attrFloat(v.attrs, "add_offset")
	for i, d := range v.data {
		for _, f := range fill {
			if d == f || (math.Abs(f) >= 1e30 && math.Abs(d-f) <= 1e-6*math.Abs(f)) {
				d = math.NaN()
				break
			}
		}
		if hasScale {
			d *= scale
		}
		if hasOffset {
			d += offset
		}
		v.data[i] = d
	}
}

// fillValues returns the declared missing-data values of a variable.
func fillValues(attrs map[string]interface{}) []float64 {
	var o []float64
	for _, a := range []string{"_FillValue", "missing_value"} {
		if v, ok := attrs[a]; ok {
			o = append(o, toFloat64s(v)...)
		}
	}
	return o
}

func attrString(attrs map[string]interface{}, name string) string {
	switch v := attrs[name].(type) {
	case string:
		return v
	case []byte:
		return string(bytes.TrimRight(v, "\x00"))
	default:
		return ""
	}
}

func attrFloat(attrs map[string]interface{}, name string) (float64, bool) {
	v, ok := attrs[name]
	if !ok {
		return 0, false
	}
	f := toFloat64s(v)
	if len(f) == 0 {
		return 0, false
	}
	return f[0], true
}

// toFloat64s converts numeric slices and scalars to float64. Other
// types return nil.
func toFloat64s(v interface{}) []float64 {
	switch t := v.(type) {
	case []float64:
		return append([]float64(nil), t...)
	case []float32:
		o := make([]float64, len(t))
		for i, x := range t {
			o[i] = float64(x)
		}
		return o
	case []int64:
		o := make([]float64, len(t))
		for i, x := range t {
			o[i] = float64(x)
		}
		return o
	case []int32:
		o := make([]float64, len(t))
		for i, x := range t {
			o[i] = float64(x)
		}
		return o
	case []int16:
		o := make([]float64, len(t))
		for i, x := range t {
			o[i] = float64(x)
		}
		return o
	case []int8:
		o := make([]float64, len(t))
		for i, x := range t {
			o[i] = float64(x)
		}
		return o
	case []uint8:
		o := make([]float64, len(t))
		for i, x := range t {
			o[i] = float64(x)
		}
		return o
	case []uint16:
		o := make([]float64, len(t))
		for i, x := range t {
			o[i] = float64(x)
		}
		return o
	case []uint32:
		o := make([]float64, len(t))
		for i, x := range t {
			o[i] = float64(x)
		}
		return o
	case []uint64:
		o := make([]float64, len(t))
		for i, x := range t {
			o[i] = float64(x)
		}
		return o
	case float64:
		return []float64{t}
	case float32:
		return []float64{float64(t)}
	case int64:
		return []float64{float64(t)}
	case int32:
		return []float64{float64(t)}
	case int16:
		return []float64{float64(t)}
	case int8:
		return []float64{float64(t)}
	case uint8:
		return []float64{float64(t)}
	case uint16:
		return []float64{float64(t)}
	case uint32:
		return []float64{float64(t)}
	case uint64:
		return []float64{float64(t)}
	default:
		return nil
	}
}

// Clean drops the data variables in ds that have no finite values and
// removes length-1 dimensions other than time from the rest.
func Clean(ds *cesmplot.Dataset) *cesmplot.Dataset {
	o := cesmplot.NewDataset(ds.Path)
	for k, v := range ds.Attributes {
		o.Attributes[k] = v
	}
	coords := make(map[string]bool)
	for _, name := range ds.Variables() {
		f := ds.Vars[name]
		if len(f.Dims) == 1 && f.Dims[0] == name {
			coords[name] = true
		}
	}
	for _, name := range ds.Variables() {
		f := ds.Vars[name]
		if !coords[name] && len(cesmplot.Finite(f.Data.Elements)) == 0 {
			continue
		}
		o.AddVariable(squeeze(f))
	}
	return o
}

// squeeze removes length-1 dimensions other than time. Removing a
// length-1 dimension does not change the row-major order of the data.
func squeeze(f *cesmplot.Field) *cesmplot.Field {
	var dims []string
	var shape []int
	for i, d := range f.Dims {
		if f.Data.Shape[i] == 1 && d != cesmplot.TimeDim && len(f.Dims) > 1 {
			continue
		}
		dims = append(dims, d)
		shape = append(shape, f.Data.Shape[i])
	}
	if len(dims) == len(f.Dims) {
		return f
	}
	o := f.Copy()
	o.Dims = dims
	o.Data = sparse.ZerosDense(shape...)
	copy(o.Data.Elements, f.Data.Elements)
	if !o.HasDim(cesmplot.LatDim) {
		o.Lat = nil
	}
	if !o.HasDim(cesmplot.LonDim) {
		o.Lon = nil
	}
	return o
}
