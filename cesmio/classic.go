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
	"io"
	"math"
	"os"

	"github.com/ctessum/cdf"
	"github.com/spatialmodel/cesmplot"
)

// readClassic reads all numeric variables from a classic NetCDF file.
func readClassic(f *os.File) ([]variable, map[string]interface{}, error) {
	nc, err := cdf.Open(f)
	if err != nil {
		return nil, nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	nrec := int(nc.Header.NumRecs(fi.Size()))

	global := make(map[string]interface{})
	for _, a := range nc.Header.Attributes("") {
		global[a] = nc.Header.GetAttribute("", a)
	}

	var vars []variable
	for _, name := range nc.Header.Variables() {
		dims := nc.Header.Dimensions(name)
		if len(dims) == 0 {
			continue // scalars
		}
		if _, ok := nc.Header.ZeroValue(name, 0).(string); ok {
			continue // character data
		}
		shape := append([]int{}, nc.Header.Lengths(name)...)
		rec := nc.Header.IsRecordVariable(name)
		if rec {
			shape[0] = nrec
		}
		data, err := readClassicVar(nc, name, shape, rec)
		if err != nil {
			return nil, nil, fmt.Errorf("variable %s: %v", name, err)
		}
		attrs := make(map[string]interface{})
		for _, a := range nc.Header.Attributes(name) {
			attrs[a] = nc.Header.GetAttribute(name, a)
		}
		vars = append(vars, variable{
			name:  name,
			dims:  dims,
			shape: shape,
			data:  data,
			attrs: attrs,
		})
	}
	return vars, global, nil
}

// readClassicVar reads variable v. Record variables are read one
// record at a time because their records are interleaved.
func readClassicVar(nc *cdf.File, v string, shape []int, rec bool) ([]float64, error) {
	n := 1
	for _, l := range shape {
		n *= l
	}
	if n == 0 {
		return []float64{}, nil
	}
	if !rec {
		r := nc.Reader(v, nil, nil)
		buf := r.Zero(n)
		if _, err := r.Read(buf); err != nil && err != io.EOF {
			return nil, err
		}
		return toFloat64s(buf), nil
	}
	recSize := n / shape[0]
	o := make([]float64, 0, n)
	begin := make([]int, len(shape))
	end := make([]int, len(shape))
	for i := 1; i < len(shape); i++ {
		end[i] = shape[i] - 1
	}
	for t := 0; t < shape[0]; t++ {
		begin[0], end[0] = t, t
		r := nc.Reader(v, begin, end)
		buf := r.Zero(recSize)
		if _, err := r.Read(buf); err != nil && err != io.EOF {
			return nil, fmt.Errorf("record %d: %v", t, err)
		}
		o = append(o, toFloat64s(buf)...)
	}
	return o, nil
}

// classicFill is the default NetCDF fill value for floats, which is
// written in place of NaN.
const classicFill = 9.969209968386869e36

// Write writes the variables in ds to w as a classic NetCDF file.
// Data variables are stored as 32-bit floats; coordinates as 64-bit
// floats. Times are written in days since the first time.
func Write(w *os.File, ds *cesmplot.Dataset) error {
	var dims []string
	lengths := make(map[string]int)
	coords := make(map[string]*cesmplot.Field)
	for _, name := range ds.Variables() {
		f := ds.Vars[name]
		if err := f.Check(); err != nil {
			return err
		}
		for i, d := range f.Dims {
			if l, ok := lengths[d]; ok {
				if l != f.Data.Shape[i] {
					return fmt.Errorf("cesmio: dimension %s has length %d in variable %s but %d elsewhere",
						d, f.Data.Shape[i], name, l)
				}
				continue
			}
			dims = append(dims, d)
			lengths[d] = f.Data.Shape[i]
		}
		for _, d := range []string{cesmplot.TimeDim, cesmplot.LatDim, cesmplot.LonDim} {
			if _, ok := coords[d]; !ok && f.HasDim(d) {
				coords[d] = f
			}
		}
	}
	l := make([]int, len(dims))
	for i, d := range dims {
		l[i] = lengths[d]
	}
	h := cdf.NewHeader(dims, l)
	for k, v := range ds.Attributes {
		if s, ok := v.(string); ok {
			h.AddAttribute("", k, s)
		}
	}

	var timeValues []float64
	if f, ok := coords[cesmplot.TimeDim]; ok && f.Time != nil {
		var units string
		timeValues, units = EncodeTime(f.Time)
		h.AddVariable(cesmplot.TimeDim, []string{cesmplot.TimeDim}, []float64{0})
		h.AddAttribute(cesmplot.TimeDim, "units", units)
		h.AddAttribute(cesmplot.TimeDim, "calendar", "standard")
	}
	if f, ok := coords[cesmplot.LatDim]; ok && f.Lat != nil {
		h.AddVariable(cesmplot.LatDim, []string{cesmplot.LatDim}, []float64{0})
		h.AddAttribute(cesmplot.LatDim, "units", "degrees_north")
	}
	if f, ok := coords[cesmplot.LonDim]; ok && f.Lon != nil {
		h.AddVariable(cesmplot.LonDim, []string{cesmplot.LonDim}, []float64{0})
		h.AddAttribute(cesmplot.LonDim, "units", "degrees_east")
	}

	var names []string
	for _, name := range ds.Variables() {
		if name == cesmplot.TimeDim || name == cesmplot.LatDim || name == cesmplot.LonDim {
			continue
		}
		f := ds.Vars[name]
		names = append(names, name)
		h.AddVariable(name, f.Dims, []float32{0})
		if f.Units != "" {
			h.AddAttribute(name, "units", f.Units)
		}
		if f.Description != "" {
			h.AddAttribute(name, "long_name", f.Description)
		}
		h.AddAttribute(name, "_FillValue", []float32{classicFill})
	}
	h.Define()

	nc, err := cdf.Create(w, h) // writes the header to w
	if err != nil {
		return fmt.Errorf("cesmio: writing header: %v", err)
	}
	if timeValues != nil {
		if err = writeValues(nc, cesmplot.TimeDim, timeValues); err != nil {
			return fmt.Errorf("cesmio: writing time: %v", err)
		}
	}
	if f, ok := coords[cesmplot.LatDim]; ok && f.Lat != nil {
		if err = writeValues(nc, cesmplot.LatDim, f.Lat); err != nil {
			return fmt.Errorf("cesmio: writing lat: %v", err)
		}
	}
	if f, ok := coords[cesmplot.LonDim]; ok && f.Lon != nil {
		if err = writeValues(nc, cesmplot.LonDim, f.Lon); err != nil {
			return fmt.Errorf("cesmio: writing lon: %v", err)
		}
	}
	for _, name := range names {
		if err = writeNCF(nc, name, ds.Vars[name].Data.Elements); err != nil {
			return fmt.Errorf("cesmio: writing variable %s: %v", name, err)
		}
	}
	return cdf.UpdateNumRecs(w)
}

func writeNCF(nc *cdf.File, v string, data []float64) error {
	if len(data) == 0 {
		return nil
	}
	data32 := make([]float32, len(data))
	for i, e := range data {
		if math.IsNaN(e) || math.IsInf(e, 0) {
			data32[i] = classicFill
		} else {
			data32[i] = float32(e)
		}
	}
	return writeValues(nc, v, data32)
}

// writeValues writes all of the values of variable v. The writer
// reports io.EOF when it reaches the end of the variable.
func writeValues(nc *cdf.File, v string, values interface{}) error {
	_, err := nc.Writer(v, nil, nil).Write(values)
	if err == io.EOF {
		return nil
	}
	return err
}
