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

package cesmio

import (
	"fmt"
	"reflect"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/sirupsen/logrus"
)

// readHDF reads all numeric variables from a NetCDF-4 file. Variables
// that cannot be read as gridded numbers are skipped with a warning.
func readHDF(path string) ([]variable, map[string]interface{}, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer nc.Close()

	global := attributes(nc.Attributes())
	var vars []variable
	for _, name := range nc.ListVariables() {
		log := logrus.WithFields(logrus.Fields{"file": path, "variable": name})
		v, err := nc.GetVariable(name)
		if err != nil {
			log.Warnf("cesmio: skipping variable: %v", err)
			continue
		}
		hv, err := hdfVariable(name, v)
		if err != nil {
			log.Warnf("cesmio: skipping variable: %v", err)
			continue
		}
		if hv != nil {
			vars = append(vars, *hv)
		}
	}
	return vars, global, nil
}

// hdfVariable converts v. It returns nil for strings, compound types
// and scalars, and an error if the data do not match the declared
// dimensions.
func hdfVariable(name string, v *api.Variable) (*variable, error) {
	data, shape, ok := flatten(v.Values)
	if !ok || len(shape) == 0 {
		return nil, nil
	}
	if len(shape) != len(v.Dimensions) {
		return nil, fmt.Errorf("variable %s has %d dimensions but %d-dimensional data",
			name, len(v.Dimensions), len(shape))
	}
	return &variable{
		name:  name,
		dims:  append([]string{}, v.Dimensions...),
		shape: shape,
		data:  data,
		attrs: attributes(v.Attributes),
	}, nil
}

func attributes(am api.AttributeMap) map[string]interface{} {
	o := make(map[string]interface{})
	if am == nil {
		return o
	}
	for _, k := range am.Keys() {
		if v, ok := am.Get(k); ok {
			o[k] = v
		}
	}
	return o
}

// flatten converts a value that is a (possibly nested) slice of numbers
// to a row-major []float64 and its shape. ok is false for values that
// are not numeric.
func flatten(values interface{}) (data []float64, shape []int, ok bool) {
	rv := reflect.ValueOf(values)
	if !rv.IsValid() {
		return nil, nil, false
	}
	// Find the shape from the first element at each level.
	for v := rv; v.Kind() == reflect.Slice; {
		shape = append(shape, v.Len())
		if v.Len() == 0 {
			break
		}
		v = v.Index(0)
	}
	n := 1
	for _, l := range shape {
		n *= l
	}
	data = make([]float64, 0, n)
	var walk func(v reflect.Value, depth int) bool
	walk = func(v reflect.Value, depth int) bool {
		if v.Kind() == reflect.Slice {
			if depth >= len(shape) || v.Len() != shape[depth] {
				return false
			}
			for i := 0; i < v.Len(); i++ {
				if !walk(v.Index(i), depth+1) {
					return false
				}
			}
			return true
		}
		switch v.Kind() {
		case reflect.Float32, reflect.Float64:
			data = append(data, v.Float())
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			data = append(data, float64(v.Int()))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			data = append(data, float64(v.Uint()))
		default:
			return false
		}
		return true
	}
	if !walk(rv, 0) {
		return nil, nil, false
	}
	return data, shape, true
}
