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
	"errors"
	"math"
	"testing"
	"time"
)

const tolerance = 1.e-9

func different(a, b, tol float64) bool {
	return math.Abs(a-b) > tol*(1+math.Abs(a)+math.Abs(b))
}

// testField creates a (time, lat, lon) field with values from fn.
func testField(name string, nt int, lats, lons []float64, fn func(t, j, i int) float64) *Field {
	f := NewField(name, []string{TimeDim, LatDim, LonDim}, nt, len(lats), len(lons))
	f.Lat = lats
	f.Lon = lons
	f.Units = "K"
	t0 := time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	for t := 0; t < nt; t++ {
		f.Time = append(f.Time, t0.AddDate(0, t, 0))
	}
	n := 0
	for t := 0; t < nt; t++ {
		for j := range lats {
			for i := range lons {
				f.Data.Elements[n] = fn(t, j, i)
				n++
			}
		}
	}
	return f
}

func linspace(start, end float64, n int) []float64 {
	o := make([]float64, n)
	for i := range o {
		o[i] = start + (end-start)*float64(i)/float64(n-1)
	}
	return o
}

func testDataset(fields ...*Field) *Dataset {
	ds := NewDataset("test.nc")
	for _, f := range fields {
		ds.AddVariable(f)
	}
	return ds
}

func TestGlobalMeanConstant(t *testing.T) {
	f := testField("tas", 5, linspace(-88, 88, 12), linspace(0, 357.5, 24),
		func(_, _, _ int) float64 { return 287.5 })
	ds := testDataset(f)
	o, err := ComputeIndex(ds, "tas", "Global Mean", BuiltinBoxes())
	if err != nil {
		t.Fatal(err)
	}
	if len(o.Dims) != 1 || o.Dims[0] != TimeDim {
		t.Fatalf("dims: have %v, want [time]", o.Dims)
	}
	if len(o.Time) != 5 {
		t.Errorf("time length: have %d, want 5", len(o.Time))
	}
	for i, v := range o.Data.Elements {
		if different(v, 287.5, tolerance) {
			t.Errorf("element %d: have %g, want 287.5", i, v)
		}
	}
}

func TestGlobalMeanWeighting(t *testing.T) {
	// Equator has value 1, high latitudes value 0, so the weighted mean
	// must be above the unweighted mean.
	lats := []float64{-60, 0, 60}
	f := testField("x", 1, lats, []float64{0, 180},
		func(_, j, _ int) float64 {
			if j == 1 {
				return 1
			}
			return 0
		})
	o, err := GlobalMean(f)
	if err != nil {
		t.Fatal(err)
	}
	want := 1 / (1 + 2*math.Cos(60*math.Pi/180))
	if different(o.Data.Elements[0], want, tolerance) {
		t.Errorf("have %g, want %g", o.Data.Elements[0], want)
	}
}

func TestGlobalMeanNoLatLon(t *testing.T) {
	f := NewField("idx", []string{TimeDim, "ens"}, 2, 3)
	f.Time = []time.Time{time.Unix(0, 0), time.Unix(86400, 0)}
	copy(f.Data.Elements, []float64{1, 2, 3, 4, 5, 6})
	o, err := GlobalMean(f)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{2, 5}
	for i, w := range want {
		if different(o.Data.Elements[i], w, tolerance) {
			t.Errorf("element %d: have %g, want %g", i, o.Data.Elements[i], w)
		}
	}
}

func TestBoxMeanWithinRange(t *testing.T) {
	lats := linspace(-30, 30, 13)
	lons := linspace(120, 280, 33)
	f := testField("tas", 4, lats, lons, func(t, j, i int) float64 {
		return float64(t) + math.Sin(float64(j)) + math.Cos(float64(i)*0.3)
	})
	ds := testDataset(f)
	for _, name := range BuiltinBoxes().Names() {
		box := BuiltinBoxes()[name]
		t.Run(name, func(t *testing.T) {
			o, err := ComputeIndex(ds, "tas", name, BuiltinBoxes())
			if err != nil {
				t.Fatal(err)
			}
			for ti := 0; ti < 4; ti++ {
				min, max := math.Inf(1), math.Inf(-1)
				for j, lat := range lats {
					for i, lon := range lons {
						if !box.ContainsLat(lat) || !box.ContainsLon(lon) {
							continue
						}
						v := f.Data.Elements[(ti*len(lats)+j)*len(lons)+i]
						min = math.Min(min, v)
						max = math.Max(max, v)
					}
				}
				v := o.Data.Elements[ti]
				if v < min-tolerance || v > max+tolerance {
					t.Errorf("time %d: mean %g outside of [%g, %g]", ti, v, min, max)
				}
			}
		})
	}
}

func TestBoxMeanPreservesOtherDims(t *testing.T) {
	f := NewField("T", []string{TimeDim, "lev", LatDim, LonDim}, 2, 3, 2, 2)
	f.Time = []time.Time{time.Unix(0, 0), time.Unix(1, 0)}
	f.Lat = []float64{-1, 1}
	f.Lon = []float64{200, 201}
	for i := range f.Data.Elements {
		f.Data.Elements[i] = float64(i / 4)
	}
	o, err := BoxMean(f, RegionBox{Name: "b", Lat: [2]float64{-5, 5}, Lon: [2]float64{190, 240}})
	if err != nil {
		t.Fatal(err)
	}
	if len(o.Dims) != 2 || o.Dims[0] != TimeDim || o.Dims[1] != "lev" {
		t.Fatalf("dims: have %v", o.Dims)
	}
	for i, v := range o.Data.Elements {
		if different(v, float64(i), tolerance) {
			t.Errorf("element %d: have %g, want %d", i, v, i)
		}
	}
}

func TestBoxMeanSkipsNaN(t *testing.T) {
	f := testField("x", 1, []float64{0}, []float64{200, 210}, func(_, _, i int) float64 {
		if i == 0 {
			return math.NaN()
		}
		return 3
	})
	o, err := BoxMean(f, BuiltinBoxes()["Nino3.4"])
	if err != nil {
		t.Fatal(err)
	}
	if different(o.Data.Elements[0], 3, tolerance) {
		t.Errorf("have %g, want 3", o.Data.Elements[0])
	}
}

func TestBoxWrap(t *testing.T) {
	tests := []struct {
		box  RegionBox
		want map[float64]bool
	}{
		{
			box:  RegionBox{Name: "wrap", Lat: [2]float64{-10, 10}, Lon: [2]float64{350, 370}},
			want: map[float64]bool{355: true, 5: true, 10: true, -5: true, 11: false, 180: false},
		},
		{
			box:  RegionBox{Name: "negative", Lat: [2]float64{-10, 10}, Lon: [2]float64{-10, 10}},
			want: map[float64]bool{355: true, 350: true, 5: true, -5: true, 0: true, 349: false, 11: false, 180: false},
		},
		{
			box:  RegionBox{Name: "plain", Lat: [2]float64{-10, 10}, Lon: [2]float64{190, 240}},
			want: map[float64]bool{200: true, -160: true, 560: true, 180: false},
		},
	}
	for _, test := range tests {
		for lon, want := range test.want {
			if have := test.box.ContainsLon(lon); have != want {
				t.Errorf("%s: lon %g: have %v, want %v", test.box.Name, lon, have, want)
			}
		}
	}
}

func TestBoxMeanNegativeLon(t *testing.T) {
	lons := []float64{5, 355}
	f := testField("tas", 1, []float64{0}, lons, func(_, _, i int) float64 {
		return float64(i + 1)
	})
	neg, err := BoxMean(f, RegionBox{Name: "neg", Lat: [2]float64{-10, 10}, Lon: [2]float64{-10, 10}})
	if err != nil {
		t.Fatal(err)
	}
	wrap, err := BoxMean(f, RegionBox{Name: "wrap", Lat: [2]float64{-10, 10}, Lon: [2]float64{350, 370}})
	if err != nil {
		t.Fatal(err)
	}
	if different(neg.Data.Elements[0], 1.5, tolerance) || different(wrap.Data.Elements[0], 1.5, tolerance) {
		t.Errorf("have %g and %g, want 1.5", neg.Data.Elements[0], wrap.Data.Elements[0])
	}
}

func TestDiffIndexEqualBoxes(t *testing.T) {
	f := testField("U850", 6, linspace(-20, 20, 9), linspace(100, 260, 33),
		func(_, _, _ int) float64 { return -4.25 })
	ds := testDataset(f)
	o, err := ComputeIndex(ds, "U850", "PWC-U850", BuiltinBoxes())
	if err != nil {
		t.Fatal(err)
	}
	if len(o.Data.Elements) != 6 {
		t.Fatalf("length: have %d, want 6", len(o.Data.Elements))
	}
	for i, v := range o.Data.Elements {
		if math.Abs(v) > tolerance {
			t.Errorf("element %d: have %g, want 0", i, v)
		}
	}
}

func TestDiffIndexWestMinusEast(t *testing.T) {
	lons := linspace(100, 260, 33)
	f := testField("U850", 1, []float64{0}, lons, func(_, _, i int) float64 {
		if lons[i] < 180 {
			return 5
		}
		return 2
	})
	o, err := ComputeIndex(testDataset(f), "U850", "PWC-U850", nil)
	if err != nil {
		t.Fatal(err)
	}
	if different(o.Data.Elements[0], 3, tolerance) {
		t.Errorf("have %g, want 3", o.Data.Elements[0])
	}
}

func TestErrors(t *testing.T) {
	f := testField("tas", 2, []float64{0}, []float64{200}, func(_, _, _ int) float64 { return 1 })
	ds := testDataset(f)

	t.Run("mismatch", func(t *testing.T) {
		_, err := ComputeIndex(ds, "tas", "PWC-U850", BuiltinBoxes())
		var e *VariableMismatchError
		if !errors.As(err, &e) {
			t.Fatalf("have %v, want VariableMismatchError", err)
		}
		if e.Required != "U850" || e.Got != "tas" {
			t.Errorf("error fields: %+v", e)
		}
	})
	t.Run("unknown index", func(t *testing.T) {
		_, err := ComputeIndex(ds, "tas", "Nino9", BuiltinBoxes())
		var e *UnknownIndexError
		if !errors.As(err, &e) {
			t.Fatalf("have %v, want UnknownIndexError", err)
		}
	})
	t.Run("unknown variable", func(t *testing.T) {
		_, err := ComputeIndex(ds, "pr", "Raw", BuiltinBoxes())
		var e *UnknownVariableError
		if !errors.As(err, &e) {
			t.Fatalf("have %v, want UnknownVariableError", err)
		}
	})
	t.Run("missing dimension", func(t *testing.T) {
		g := NewField("ts", []string{TimeDim}, 2)
		g.Time = f.Time
		_, err := ComputeIndex(testDataset(g), "ts", "Nino3", BuiltinBoxes())
		var e *MissingDimensionError
		if !errors.As(err, &e) {
			t.Fatalf("have %v, want MissingDimensionError", err)
		}
	})
	t.Run("empty box", func(t *testing.T) {
		_, err := ComputeIndex(ds, "tas", "Nino1+2", BuiltinBoxes())
		var e *EmptySelectionError
		if !errors.As(err, &e) {
			t.Fatalf("have %v, want EmptySelectionError", err)
		}
	})
}

func TestRaw(t *testing.T) {
	f := testField("tas", 2, []float64{0}, []float64{200}, func(_, _, _ int) float64 { return 1 })
	o, err := ComputeIndex(testDataset(f), "tas", "Raw", nil)
	if err != nil {
		t.Fatal(err)
	}
	if o != f {
		t.Error("Raw should return the field unchanged")
	}
}

func TestParseIndex(t *testing.T) {
	boxes := BuiltinBoxes()
	diffs := BuiltinDiffIndices()
	for name, want := range map[string]Index{
		"Raw":         Raw{},
		"Global Mean": GlobalMeanIndex{},
		"Nino3":       BoxIndex{Box: boxes["Nino3"]},
		"PWC-U850":    ZonalDiff{Spec: diffs["PWC-U850"]},
	} {
		have, err := ParseIndex(name, boxes, diffs)
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if have != want {
			t.Errorf("%s: have %#v, want %#v", name, have, want)
		}
	}
}

func TestEngineIndexNames(t *testing.T) {
	names := NewEngine().IndexNames()
	want := []string{"Raw", "Global Mean", "Nino1+2", "Nino3", "Nino3.4", "Nino4", "PWC-U850"}
	if len(names) != len(want) {
		t.Fatalf("have %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("%d: have %s, want %s", i, names[i], want[i])
		}
	}
}

func TestBuiltinTablesAreCopies(t *testing.T) {
	b := BuiltinBoxes()
	delete(b, "Nino3")
	if _, ok := BuiltinBoxes()["Nino3"]; !ok {
		t.Error("modifying a returned table changed the built-in boxes")
	}
}

func TestSelectTime(t *testing.T) {
	f := testField("tas", 12, []float64{0}, []float64{0}, func(t, _, _ int) float64 { return float64(t) })
	w := TimeWindow{Start: f.Time[2], End: f.Time[5]}
	o, err := f.SelectTime(w)
	if err != nil {
		t.Fatal(err)
	}
	if len(o.Time) != 4 || o.Data.Shape[0] != 4 {
		t.Fatalf("have %d times, want 4", len(o.Time))
	}
	for i, v := range o.Data.Elements {
		if v != float64(i+2) {
			t.Errorf("element %d: have %g, want %d", i, v, i+2)
		}
	}
	_, err = f.SelectTime(TimeWindow{Start: f.Time[11].AddDate(1, 0, 0)})
	var e *EmptySelectionError
	if !errors.As(err, &e) {
		t.Errorf("have %v, want EmptySelectionError", err)
	}
}
