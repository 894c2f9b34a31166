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
	"math"
	"time"

	"github.com/ctessum/sparse"
)

// reduction describes a weighted mean over a set of dimensions.
type reduction struct {
	// drop[i] is true if dimension i is averaged over.
	drop []bool

	// weight returns the weight of the element at index idx.
	// Elements with zero weight are excluded. If weight is nil,
	// every element has weight 1.
	weight func(idx []int) float64
}

// apply performs the reduction. Non-finite values are skipped and the
// weights are normalized over the remaining elements, so a group with
// no finite values results in NaN.
func (r reduction) apply(f *Field) *Field {
	var dims []string
	var shape []int
	for i, d := range f.Dims {
		if !r.drop[i] {
			dims = append(dims, d)
			shape = append(shape, f.Data.Shape[i])
		}
	}
	o := &Field{
		Name:        f.Name,
		Dims:        dims,
		Data:        sparse.ZerosDense(shape...),
		Units:       f.Units,
		Description: f.Description,
		Attributes:  f.Attributes,
	}
	for _, d := range dims {
		switch d {
		case TimeDim:
			o.Time = append([]time.Time(nil), f.Time...)
		case LatDim:
			o.Lat = append([]float64(nil), f.Lat...)
		case LonDim:
			o.Lon = append([]float64(nil), f.Lon...)
		}
	}
	sum := make([]float64, len(o.Data.Elements))
	wsum := make([]float64, len(o.Data.Elements))

	outStride := strides(shape)
	idx := make([]int, len(f.Dims))
	for i, v := range f.Data.Elements {
		if i > 0 {
			increment(idx, f.Data.Shape)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		w := 1.0
		if r.weight != nil {
			w = r.weight(idx)
			if w == 0 {
				continue
			}
		}
		j, k := 0, 0
		for d, ii := range idx {
			if !r.drop[d] {
				j += ii * outStride[k]
				k++
			}
		}
		sum[j] += w * v
		wsum[j] += w
	}
	for j := range o.Data.Elements {
		if wsum[j] == 0 {
			o.Data.Elements[j] = math.NaN()
		} else {
			o.Data.Elements[j] = sum[j] / wsum[j]
		}
	}
	return o
}

// strides returns the row-major strides for shape.
func strides(shape []int) []int {
	s := make([]int, len(shape))
	n := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = n
		n *= shape[i]
	}
	return s
}

// increment advances a row-major index vector by one element.
func increment(idx, shape []int) {
	for d := len(idx) - 1; d >= 0; d-- {
		idx[d]++
		if idx[d] < shape[d] {
			return
		}
		idx[d] = 0
	}
}

// MeanOver returns the unweighted mean of f over the named dimensions,
// skipping non-finite values. Dimensions that f does not have are ignored.
func (f *Field) MeanOver(dims ...string) *Field {
	r := reduction{drop: make([]bool, len(f.Dims))}
	for _, d := range dims {
		if i := f.DimIndex(d); i >= 0 {
			r.drop[i] = true
		}
	}
	return r.apply(f)
}

// MeanExcept returns the unweighted mean of f over all dimensions
// other than the named ones.
func (f *Field) MeanExcept(keep ...string) *Field {
	r := reduction{drop: make([]bool, len(f.Dims))}
	for i, d := range f.Dims {
		r.drop[i] = true
		for _, k := range keep {
			if d == k {
				r.drop[i] = false
			}
		}
	}
	return r.apply(f)
}

// areaMean returns the cos(latitude)-weighted mean of f over its lat and
// lon dimensions, restricted to the cells for which inLat and inLon
// return true. Other dimensions are preserved.
func areaMean(f *Field, inLat, inLon func(float64) bool, what string) (*Field, error) {
	latI, lonI := f.DimIndex(LatDim), f.DimIndex(LonDim)
	var missing []string
	if latI < 0 || f.Lat == nil {
		missing = append(missing, LatDim)
	}
	if lonI < 0 || f.Lon == nil {
		missing = append(missing, LonDim)
	}
	if missing != nil {
		return nil, &MissingDimensionError{Variable: f.Name, Dims: missing}
	}
	if err := f.Check(); err != nil {
		return nil, err
	}

	w := make([]float64, len(f.Lat))
	nLat := 0
	for i, lat := range f.Lat {
		if inLat(lat) {
			w[i] = math.Cos(lat * math.Pi / 180)
			nLat++
		}
	}
	use := make([]bool, len(f.Lon))
	nLon := 0
	for i, lon := range f.Lon {
		if inLon(lon) {
			use[i] = true
			nLon++
		}
	}
	if nLat == 0 || nLon == 0 {
		return nil, &EmptySelectionError{Variable: f.Name, What: what}
	}

	r := reduction{drop: make([]bool, len(f.Dims))}
	r.drop[latI] = true
	r.drop[lonI] = true
	r.weight = func(idx []int) float64 {
		if !use[idx[lonI]] {
			return 0
		}
		return w[idx[latI]]
	}
	return r.apply(f), nil
}

// GlobalMean returns the mean of f over the globe. Fields with lat and lon
// are weighted by cos(latitude); other fields are averaged without weights
// over every dimension except time.
func GlobalMean(f *Field) (*Field, error) {
	if !f.HasLatLon() {
		if err := f.Check(); err != nil {
			return nil, err
		}
		return f.MeanExcept(TimeDim), nil
	}
	all := func(float64) bool { return true }
	return areaMean(f, all, all, "global mean")
}

// BoxMean returns the cos(latitude)-weighted mean of f over the cells
// within box. Time and any other non-horizontal dimensions are preserved.
func BoxMean(f *Field, box RegionBox) (*Field, error) {
	if err := box.Validate(); err != nil {
		return nil, err
	}
	return areaMean(f, box.ContainsLat, box.ContainsLon,
		fmt.Sprintf("region box %s (lat %g to %g, lon %g to %g)",
			box.Name, box.Lat[0], box.Lat[1], box.Lon[0], box.Lon[1]))
}

// SelectTime returns the part of f within w. It returns a
// *MissingDimensionError if f has no time dimension and an
// *EmptySelectionError if no times are within w.
func (f *Field) SelectTime(w TimeWindow) (*Field, error) {
	ti := f.DimIndex(TimeDim)
	if ti < 0 || len(f.Time) == 0 {
		return nil, &MissingDimensionError{Variable: f.Name, Dims: []string{TimeDim}}
	}
	var keep []int
	for i, t := range f.Time {
		if w.Contains(t) {
			keep = append(keep, i)
		}
	}
	if len(keep) == 0 {
		return nil, &EmptySelectionError{Variable: f.Name, What: "time window " + w.String()}
	}
	if len(keep) == len(f.Time) {
		return f, nil
	}
	return f.Take(TimeDim, keep), nil
}

// Take returns a copy of f with only the elements at the given indices
// along dimension dim, in the given order. The coordinate vector of dim,
// if any, is reordered to match.
func (f *Field) Take(dim string, keep []int) *Field {
	di := f.DimIndex(dim)
	if di < 0 {
		return f.Copy()
	}
	shape := append([]int{}, f.Data.Shape...)
	shape[di] = len(keep)
	o := &Field{
		Name:        f.Name,
		Dims:        append([]string{}, f.Dims...),
		Data:        sparse.ZerosDense(shape...),
		Time:        f.Time,
		Lat:         f.Lat,
		Lon:         f.Lon,
		Units:       f.Units,
		Description: f.Description,
		FillValues:  f.FillValues,
		Attributes:  f.Attributes,
	}
	switch dim {
	case TimeDim:
		o.Time = make([]time.Time, len(keep))
		for i, k := range keep {
			o.Time[i] = f.Time[k]
		}
	case LatDim:
		o.Lat = make([]float64, len(keep))
		for i, k := range keep {
			o.Lat[i] = f.Lat[k]
		}
	case LonDim:
		o.Lon = make([]float64, len(keep))
		for i, k := range keep {
			o.Lon[i] = f.Lon[k]
		}
	}
	inStride := strides(f.Data.Shape)
	idx := make([]int, len(shape))
	for j := range o.Data.Elements {
		if j > 0 {
			increment(idx, shape)
		}
		src := 0
		for d, ii := range idx {
			if d == di {
				ii = keep[ii]
			}
			src += ii * inStride[d]
		}
		o.Data.Elements[j] = f.Data.Elements[src]
	}
	return o
}

// Series collapses every dimension of f other than time with an
// unweighted mean and returns the times and values.
func (f *Field) Series() ([]time.Time, []float64, error) {
	if f.DimIndex(TimeDim) < 0 || len(f.Time) == 0 {
		return nil, nil, &MissingDimensionError{Variable: f.Name, Dims: []string{TimeDim}}
	}
	if err := f.Check(); err != nil {
		return nil, nil, err
	}
	s := f.MeanExcept(TimeDim)
	return s.Time, s.Data.Elements, nil
}
