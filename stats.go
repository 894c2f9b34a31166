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
	"sort"
	"strings"
	"time"

	"github.com/GaryBoone/GoStats/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Finite returns the finite values in x.
func Finite(x []float64) []float64 {
	o := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			o = append(o, v)
		}
	}
	return o
}

// Summary holds descriptive statistics of the finite values in a series.
type Summary struct {
	N                   int
	Mean, Std, Min, Max float64
}

// Summarize calculates statistics of the finite values of x. Std is the
// population standard deviation. All statistics are NaN if there are
// no finite values.
func Summarize(x []float64) Summary {
	v := Finite(x)
	if len(v) == 0 {
		nan := math.NaN()
		return Summary{Mean: nan, Std: nan, Min: nan, Max: nan}
	}
	s := Summary{N: len(v), Min: floats.Min(v), Max: floats.Max(v)}
	if len(v) == 1 {
		s.Mean = v[0]
		return s
	}
	var variance float64
	s.Mean, variance = stat.MeanVariance(v, nil)
	s.Std = math.Sqrt(variance * float64(len(v)-1) / float64(len(v)))
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("μ=%.3g, σ=%.3g", s.Mean, s.Std)
}

// Percentile returns the p-th percentile (0 <= p <= 100) of the finite
// values of x, or NaN if there are none. The percentile is the smallest
// value whose empirical cumulative fraction is at least p/100, without
// interpolating between neighboring values.
func Percentile(x []float64, p float64) float64 {
	v := Finite(x)
	if len(v) == 0 {
		return math.NaN()
	}
	sort.Float64s(v)
	return stat.Quantile(p/100, stat.Empirical, v, nil)
}

// Trend is an ordinary least-squares line fit.
type Trend struct {
	Slope, Intercept float64

	// RSquared is the squared Pearson correlation between the
	// observations and the fitted line.
	RSquared float64

	N int
}

// At returns the fitted value at x.
func (t Trend) At(x float64) float64 { return t.Intercept + t.Slope*x }

// FitTrend fits a degree-1 polynomial to the pairs of x and y where
// both are finite. It returns an error if fewer than two pairs remain
// or x has no spread.
func FitTrend(x, y []float64) (Trend, error) {
	if len(x) != len(y) {
		return Trend{}, fmt.Errorf("cesmplot: trend x has length %d but y has length %d", len(x), len(y))
	}
	var xx, yy []float64
	for i := range x {
		if math.IsNaN(x[i]) || math.IsInf(x[i], 0) || math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			continue
		}
		xx = append(xx, x[i])
		yy = append(yy, y[i])
	}
	if len(xx) < 2 {
		return Trend{}, fmt.Errorf("cesmplot: need at least 2 finite points for a trend, have %d", len(xx))
	}
	if floats.Max(xx) == floats.Min(xx) {
		return Trend{}, fmt.Errorf("cesmplot: trend x values are all %g", xx[0])
	}
	var t Trend
	t.Slope, t.Intercept, t.RSquared, _, _, _ = stats.LinearRegression(xx, yy)
	t.N = len(xx)
	if floats.Max(yy) == floats.Min(yy) {
		// A flat series is fit exactly.
		t.Slope, t.Intercept, t.RSquared = 0, yy[0], 1
	}
	return t, nil
}

// YearsSince converts times to fractional years since t0, using
// a year length of 365.25 days.
func YearsSince(t0 time.Time, times []time.Time) []float64 {
	o := make([]float64, len(times))
	for i, t := range times {
		o[i] = t.Sub(t0).Hours() / 24 / 365.25
	}
	return o
}

// TimeTrend fits a line to y against time. The slope is per year.
func TimeTrend(times []time.Time, y []float64) (Trend, error) {
	if len(times) == 0 {
		return Trend{}, fmt.Errorf("cesmplot: no times for trend")
	}
	return FitTrend(YearsSince(times[0], times), y)
}

// trendUnits returns the units of a per-time-step trend of a quantity
// in units u. Dimensionless quantities get "1/timestep".
func trendUnits(u string) string {
	if strings.TrimSpace(u) == "" {
		u = "1"
	}
	return u + "/timestep"
}

// TrendField returns the least-squares slope of f against the time step
// index for every grid cell. The result has the dimensions of f without
// time. Cells with fewer than two finite values are NaN.
func TrendField(f *Field) (*Field, error) {
	ti := f.DimIndex(TimeDim)
	if ti < 0 {
		return nil, &MissingDimensionError{Variable: f.Name, Dims: []string{TimeDim}}
	}
	if err := f.Check(); err != nil {
		return nil, err
	}
	nt := f.Data.Shape[ti]
	if nt == 0 {
		return nil, &EmptySelectionError{Variable: f.Name, What: "time dimension"}
	}
	o := f.MeanOver(TimeDim)
	o.Units = trendUnits(f.Units)
	o.Description = "linear trend of " + f.Name

	inStride := strides(f.Data.Shape)
	outShape := o.Data.Shape
	cell := make([]int, len(outShape))
	x := make([]float64, nt)
	for i := range x {
		x[i] = float64(i)
	}
	y := make([]float64, nt)
	for j := range o.Data.Elements {
		if j > 0 {
			increment(cell, outShape)
		}
		base, k := 0, 0
		for d := range f.Dims {
			if d == ti {
				continue
			}
			base += cell[k] * inStride[d]
			k++
		}
		for t := 0; t < nt; t++ {
			y[t] = f.Data.Elements[base+t*inStride[ti]]
		}
		tr, err := FitTrend(x, y)
		if err != nil {
			o.Data.Elements[j] = math.NaN()
			continue
		}
		o.Data.Elements[j] = tr.Slope
	}
	return o, nil
}

// CorrelationField returns the Pearson correlation between the series
// of every grid cell of f and index, which must have one value per
// time step of f. Cells with fewer than three finite pairs, or with
// no variance, are NaN.
func CorrelationField(f *Field, index []float64) (*Field, error) {
	ti := f.DimIndex(TimeDim)
	if ti < 0 {
		return nil, &MissingDimensionError{Variable: f.Name, Dims: []string{TimeDim}}
	}
	if err := f.Check(); err != nil {
		return nil, err
	}
	nt := f.Data.Shape[ti]
	if nt != len(index) {
		return nil, fmt.Errorf("cesmplot: variable %s has %d time steps but the index has %d", f.Name, nt, len(index))
	}
	o := f.MeanOver(TimeDim)
	o.Units = "r"
	o.Description = "correlation of " + f.Name

	inStride := strides(f.Data.Shape)
	cell := make([]int, len(o.Data.Shape))
	var x, y []float64
	for j := range o.Data.Elements {
		if j > 0 {
			increment(cell, o.Data.Shape)
		}
		base, k := 0, 0
		for d := range f.Dims {
			if d == ti {
				continue
			}
			base += cell[k] * inStride[d]
			k++
		}
		x, y = x[:0], y[:0]
		for t := 0; t < nt; t++ {
			v := f.Data.Elements[base+t*inStride[ti]]
			if math.IsNaN(v) || math.IsInf(v, 0) || math.IsNaN(index[t]) || math.IsInf(index[t], 0) {
				continue
			}
			x = append(x, v)
			y = append(y, index[t])
		}
		if len(x) < 3 || floats.Max(x) == floats.Min(x) || floats.Max(y) == floats.Min(y) {
			o.Data.Elements[j] = math.NaN()
			continue
		}
		o.Data.Elements[j] = stat.Correlation(x, y, nil)
	}
	return o, nil
}
