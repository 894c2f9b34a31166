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
	"context"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spatialmodel/cesmplot"
)

func different(a, b, tol float64) bool {
	return math.Abs(a-b) > tol*(1+math.Abs(a)+math.Abs(b))
}

func smallConfig() SyntheticConfig {
	return SyntheticConfig{
		Variable:    "tas",
		Units:       "K",
		Description: "surface air temperature",
		Start:       time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC),
		NTime:       24,
		Monthly:     true,
		Lat:         [2]float64{-30, 30},
		NLat:        10,
		Lon:         [2]float64{120, 280},
		NLon:        20,
		Mean:        290,
		Trend:       0.1,
		Noise:       2,
		Seed:        7,
	}
}

// writeTemp writes ds to a new file in dir and returns its path.
func writeTemp(t *testing.T, dir string, ds *cesmplot.Dataset) string {
	path := filepath.Join(dir, "test.nc")
	w, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err = Write(w, ds); err != nil {
		t.Fatal(err)
	}
	if err = w.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSyntheticDeterministic(t *testing.T) {
	a, err := Synthetic(smallConfig())
	if err != nil {
		t.Fatal(err)
	}
	b, err := Synthetic(smallConfig())
	if err != nil {
		t.Fatal(err)
	}
	fa, fb := a.Vars["tas"], b.Vars["tas"]
	for i, v := range fa.Data.Elements {
		if v != fb.Data.Elements[i] {
			t.Fatalf("element %d: %g != %g", i, v, fb.Data.Elements[i])
		}
	}
	if len(fa.Time) != 24 || len(fa.Lat) != 10 || len(fa.Lon) != 20 {
		t.Errorf("shape: %d, %d, %d", len(fa.Time), len(fa.Lat), len(fa.Lon))
	}
	if fa.Lat[0] != -30 || fa.Lat[9] != 30 || fa.Lon[0] != 120 || fa.Lon[19] != 280 {
		t.Errorf("coordinates: lat %v, lon %v", fa.Lat, fa.Lon)
	}
	if !fa.Time[23].Equal(time.Date(2001, time.December, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("last time: %v", fa.Time[23])
	}
}

func TestSyntheticDefault(t *testing.T) {
	ds, err := Synthetic(DefaultSynthetic())
	if err != nil {
		t.Fatal(err)
	}
	f, err := ds.Variable("d18Op")
	if err != nil {
		t.Fatal(err)
	}
	if f.Units != "per mil" {
		t.Errorf("units: %q", f.Units)
	}
	if f.Time[0].Year() != 1850 || f.Time[len(f.Time)-1].Year() != 2005 {
		t.Errorf("time range %v to %v", f.Time[0], f.Time[len(f.Time)-1])
	}
	for _, v := range f.Data.Elements {
		if v < 0 || v >= 1 {
			t.Fatalf("value %g outside [0, 1)", v)
		}
	}
}

func TestSyntheticInvalid(t *testing.T) {
	cfg := smallConfig()
	cfg.NLat = 0
	if _, err := Synthetic(cfg); err == nil {
		t.Error("expected an error for an empty grid")
	}
	cfg = smallConfig()
	cfg.Variable = ""
	if _, err := Synthetic(cfg); err == nil {
		t.Error("expected an error for a missing variable name")
	}
}

func TestWriteOpen(t *testing.T) {
	dir, err := ioutil.TempDir("", "cesmio")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	ds, err := Synthetic(smallConfig())
	if err != nil {
		t.Fatal(err)
	}
	want := ds.Vars["tas"]
	want.Data.Elements[5] = math.NaN()
	path := writeTemp(t, dir, ds)

	got, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if vars := got.DataVariables(); len(vars) != 1 || vars[0] != "tas" {
		t.Fatalf("variables: %v", vars)
	}
	f := got.Vars["tas"]
	if f.Units != "K" || f.Description != "surface air temperature" {
		t.Errorf("metadata: %q, %q", f.Units, f.Description)
	}
	if strings.Join(f.Dims, ",") != "time,lat,lon" {
		t.Errorf("dims: %v", f.Dims)
	}
	if len(f.Time) != len(want.Time) {
		t.Fatalf("%d times, want %d", len(f.Time), len(want.Time))
	}
	for i, tt := range want.Time {
		if !f.Time[i].Equal(tt) {
			t.Errorf("time %d: %v != %v", i, f.Time[i], tt)
		}
	}
	for i, l := range want.Lat {
		if f.Lat[i] != l {
			t.Errorf("lat %d: %g != %g", i, f.Lat[i], l)
		}
	}
	for i, l := range want.Lon {
		if f.Lon[i] != l {
			t.Errorf("lon %d: %g != %g", i, f.Lon[i], l)
		}
	}
	for i, v := range want.Data.Elements {
		g := f.Data.Elements[i]
		if math.IsNaN(v) {
			if !math.IsNaN(g) {
				t.Errorf("element %d: %g should be NaN", i, g)
			}
			continue
		}
		if different(g, v, 1e-6) {
			t.Errorf("element %d: %g != %g", i, g, v)
		}
	}
}

func TestOpenNotNetCDF(t *testing.T) {
	dir, err := ioutil.TempDir("", "cesmio")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "x.nc")
	if err := ioutil.WriteFile(path, []byte("not a netcdf file"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Error("expected an error")
	}
	if _, err := Open(filepath.Join(dir, "missing.nc")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestUnpack(t *testing.T) {
	v := &variable{
		data: []float64{1, 2, -999, 9.969209968386869e36},
		attrs: map[string]interface{}{
			"_FillValue":    []float32{9.969209968386869e36},
			"missing_value": []int16{-999},
			"scale_factor":  []float64{0.5},
			"add_offset":    []float64{10},
		},
	}
	unpack(v)
	want := []float64{10.5, 11, math.NaN(), math.NaN()}
	for i, w := range want {
		if math.IsNaN(w) {
			if !math.IsNaN(v.data[i]) {
				t.Errorf("%d: %g should be NaN", i, v.data[i])
			}
		} else if different(v.data[i], w, 1e-12) {
			t.Errorf("%d: %g != %g", i, v.data[i], w)
		}
	}
}

func TestAssembleAliasesAndLon(t *testing.T) {
	vars := []variable{
		{name: "longitude", dims: []string{"longitude"}, shape: []int{4}, data: []float64{-90, 0, 90, 180}},
		{name: "latitude", dims: []string{"latitude"}, shape: []int{2}, data: []float64{-45, 45}},
		{
			name: "pr", dims: []string{"latitude", "longitude"}, shape: []int{2, 4},
			data:  []float64{1, 2, 3, 4, 5, 6, 7, 8},
			attrs: map[string]interface{}{"units": "mm/day"},
		},
	}
	ds, err := assemble("test", vars, nil)
	if err != nil {
		t.Fatal(err)
	}
	f := ds.Vars["pr"]
	if f == nil {
		t.Fatalf("variables: %v", ds.Variables())
	}
	wantLon := []float64{0, 90, 180, 270}
	wantData := []float64{2, 3, 4, 1, 6, 7, 8, 5}
	for i, l := range wantLon {
		if f.Lon[i] != l {
			t.Errorf("lon: %v, want %v", f.Lon, wantLon)
			break
		}
	}
	for i, v := range wantData {
		if f.Data.Elements[i] != v {
			t.Errorf("data: %v, want %v", f.Data.Elements, wantData)
			break
		}
	}
	if !f.HasLatLon() {
		t.Error("pr should have lat and lon")
	}
}

func TestClean(t *testing.T) {
	ds := cesmplot.NewDataset("test")
	lat := cesmplot.NewField("lat", []string{"lat"}, 2)
	lat.Lat = []float64{-10, 10}
	ds.AddVariable(lat)

	empty := cesmplot.NewField("empty", []string{"lat"}, 2)
	empty.Lat = lat.Lat
	empty.Data.Elements[0], empty.Data.Elements[1] = math.NaN(), math.NaN()
	ds.AddVariable(empty)

	f := cesmplot.NewField("ts", []string{"time", "lev", "lat"}, 1, 1, 2)
	f.Time = []time.Time{time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)}
	f.Lat = lat.Lat
	f.Data.Elements[0], f.Data.Elements[1] = 3, 4
	ds.AddVariable(f)

	o := Clean(ds)
	if _, ok := o.Vars["empty"]; ok {
		t.Error("all-NaN variable should be removed")
	}
	ts := o.Vars["ts"]
	if strings.Join(ts.Dims, ",") != "time,lat" {
		t.Errorf("dims: %v", ts.Dims)
	}
	if ts.Data.Shape[0] != 1 || ts.Data.Shape[1] != 2 {
		t.Errorf("shape: %v", ts.Data.Shape)
	}
	if len(ds.Vars["ts"].Dims) != 3 {
		t.Error("input dataset was modified")
	}
}

func TestLoader(t *testing.T) {
	dir, err := ioutil.TempDir("", "cesmio")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	ds, err := Synthetic(smallConfig())
	if err != nil {
		t.Fatal(err)
	}
	path := writeTemp(t, dir, ds)

	l := NewLoader(2, nil)
	var wg sync.WaitGroup
	results := make([]*cesmplot.Dataset, 4)
	errs := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = l.Load(context.Background(), path)
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	if _, err := results[0].Variable("tas"); err != nil {
		t.Error(err)
	}
	for i, r := range results {
		if r != results[0] {
			t.Errorf("request %d got a different dataset", i)
		}
	}
	again, err := l.Load(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if again != results[0] {
		t.Error("second load should come from the cache")
	}
	if r := l.cache.Requests(); r[len(r)-1] != 1 {
		t.Errorf("file was read %d times, want 1", r[len(r)-1])
	}
	if _, err := l.Load(context.Background(), filepath.Join(dir, "missing.nc")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
