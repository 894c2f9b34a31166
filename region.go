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
	"io"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/ctessum/geom"
)

// RegionBox is a named latitude/longitude rectangle. Both ranges are
// closed intervals in degrees. A box that crosses the prime meridian is
// written either with Lon[1] > 360 (e.g. 350 to 370) or with Lon[0] < 0
// (e.g. -10 to 10).
type RegionBox struct {
	Name string
	Lat  [2]float64
	Lon  [2]float64
}

// Validate returns an *InvalidBoxError if the box bounds are not
// strictly increasing or are outside of the globe.
func (b RegionBox) Validate() error {
	if !(b.Lat[0] < b.Lat[1]) || !(b.Lon[0] < b.Lon[1]) ||
		b.Lat[0] < -90 || b.Lat[1] > 90 || b.Lon[1]-b.Lon[0] > 360 {
		return &InvalidBoxError{Box: b}
	}
	return nil
}

// ContainsLat returns whether lat is within the box.
func (b RegionBox) ContainsLat(lat float64) bool {
	return lat >= b.Lat[0] && lat <= b.Lat[1]
}

// ContainsLon returns whether lon is within the box, taking
// wrapping across the prime meridian into account.
func (b RegionBox) ContainsLon(lon float64) bool {
	l := NormalizeLon(lon)
	for _, w := range []float64{l, l + 360, l - 360} {
		if w >= b.Lon[0] && w <= b.Lon[1] {
			return true
		}
	}
	return false
}

// Bounds returns the extent of the box, with X being longitude
// and Y being latitude.
func (b RegionBox) Bounds() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: b.Lon[0], Y: b.Lat[0]},
		Max: geom.Point{X: b.Lon[1], Y: b.Lat[1]},
	}
}

// Polygon returns the outline of the box as a closed ring.
func (b RegionBox) Polygon() geom.Polygon {
	return geom.Polygon{{
		{X: b.Lon[0], Y: b.Lat[0]},
		{X: b.Lon[1], Y: b.Lat[0]},
		{X: b.Lon[1], Y: b.Lat[1]},
		{X: b.Lon[0], Y: b.Lat[1]},
		{X: b.Lon[0], Y: b.Lat[0]},
	}}
}

// DiffIndexSpec defines an index computed as the area mean over the West
// box minus the area mean over the East box. It is only valid for
// RequiredVar.
type DiffIndexSpec struct {
	Name        string
	RequiredVar string
	West, East  RegionBox
}

// BoxTable holds region boxes by name.
type BoxTable map[string]RegionBox

// DiffTable holds difference indices by name.
type DiffTable map[string]DiffIndexSpec

// Names returns the box names in sorted order.
func (t BoxTable) Names() []string {
	o := make([]string, 0, len(t))
	for n := range t {
		o = append(o, n)
	}
	sort.Strings(o)
	return o
}

// Names returns the index names in sorted order.
func (t DiffTable) Names() []string {
	o := make([]string, 0, len(t))
	for n := range t {
		o = append(o, n)
	}
	sort.Strings(o)
	return o
}

// BuiltinBoxes returns the standard ENSO region boxes.
// A new table is returned for each call.
func BuiltinBoxes() BoxTable {
	return BoxTable{
		"Nino1+2": {Name: "Nino1+2", Lat: [2]float64{-10, 0}, Lon: [2]float64{270, 280}},
		"Nino3":   {Name: "Nino3", Lat: [2]float64{-5, 5}, Lon: [2]float64{210, 270}},
		"Nino3.4": {Name: "Nino3.4", Lat: [2]float64{-5, 5}, Lon: [2]float64{190, 240}},
		"Nino4":   {Name: "Nino4", Lat: [2]float64{-5, 5}, Lon: [2]float64{160, 210}},
	}
}

// BuiltinDiffIndices returns the standard difference indices.
// A new table is returned for each call.
func BuiltinDiffIndices() DiffTable {
	return DiffTable{
		"PWC-U850": {
			Name:        "PWC-U850",
			RequiredVar: "U850",
			West:        RegionBox{Name: "PWC-U850 west", Lat: [2]float64{-5, 5}, Lon: [2]float64{130, 160}},
			East:        RegionBox{Name: "PWC-U850 east", Lat: [2]float64{-5, 5}, Lon: [2]float64{200, 230}},
		},
	}
}

// regionFile is the layout of a region definition file, e.g.:
//
//	[Box.WPWP]
//	Lat = [-10.0, 10.0]
//	Lon = [120.0, 160.0]
//
//	[Diff.PWC-SLP]
//	RequiredVar = "PSL"
//	West = {Lat = [-5.0, 5.0], Lon = [200.0, 280.0]}
//	East = {Lat = [-5.0, 5.0], Lon = [80.0, 160.0]}
type regionFile struct {
	Box  map[string]struct{ Lat, Lon [2]float64 }
	Diff map[string]struct {
		RequiredVar string
		West, East  struct{ Lat, Lon [2]float64 }
	}
}

// ReadRegions reads additional region boxes and difference indices from
// a TOML file and adds them to copies of boxes and diffs.
// Entries in the file replace entries with the same name.
func ReadRegions(r io.Reader, boxes BoxTable, diffs DiffTable) (BoxTable, DiffTable, error) {
	var rf regionFile
	if _, err := toml.DecodeReader(r, &rf); err != nil {
		return nil, nil, fmt.Errorf("cesmplot: reading region file: %v", err)
	}
	ob := make(BoxTable, len(boxes)+len(rf.Box))
	for k, v := range boxes {
		ob[k] = v
	}
	od := make(DiffTable, len(diffs)+len(rf.Diff))
	for k, v := range diffs {
		od[k] = v
	}
	for name, b := range rf.Box {
		box := RegionBox{Name: name, Lat: b.Lat, Lon: b.Lon}
		if err := box.Validate(); err != nil {
			return nil, nil, err
		}
		ob[name] = box
	}
	for name, d := range rf.Diff {
		spec := DiffIndexSpec{
			Name:        name,
			RequiredVar: d.RequiredVar,
			West:        RegionBox{Name: name + " west", Lat: d.West.Lat, Lon: d.West.Lon},
			East:        RegionBox{Name: name + " east", Lat: d.East.Lat, Lon: d.East.Lon},
		}
		if spec.RequiredVar == "" {
			return nil, nil, fmt.Errorf("cesmplot: difference index %s has no RequiredVar", name)
		}
		if err := spec.West.Validate(); err != nil {
			return nil, nil, err
		}
		if err := spec.East.Validate(); err != nil {
			return nil, nil, err
		}
		od[name] = spec
	}
	return ob, od, nil
}
