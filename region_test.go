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
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadRegions(t *testing.T) {
	const regions = `
[Box.WPWP]
Lat = [-10.0, 10.0]
Lon = [120.0, 160.0]

[Diff.PWC-SLP]
RequiredVar = "PSL"
West = {Lat = [-5.0, 5.0], Lon = [200.0, 280.0]}
East = {Lat = [-5.0, 5.0], Lon = [80.0, 160.0]}
`
	boxes, diffs, err := ReadRegions(strings.NewReader(regions), BuiltinBoxes(), BuiltinDiffIndices())
	if err != nil {
		t.Fatal(err)
	}
	b, ok := boxes["WPWP"]
	if !ok {
		t.Fatal("missing WPWP box")
	}
	if b.Lat != [2]float64{-10, 10} || b.Lon != [2]float64{120, 160} || b.Name != "WPWP" {
		t.Errorf("WPWP: have %+v", b)
	}
	if _, ok := boxes["Nino3.4"]; !ok {
		t.Error("built-in boxes should be kept")
	}
	d, ok := diffs["PWC-SLP"]
	if !ok {
		t.Fatal("missing PWC-SLP index")
	}
	if d.RequiredVar != "PSL" || d.West.Lon != [2]float64{200, 280} || d.East.Lon != [2]float64{80, 160} {
		t.Errorf("PWC-SLP: have %+v", d)
	}
}

func TestReadRegionsInvalid(t *testing.T) {
	const regions = `
[Box.Bad]
Lat = [10.0, -10.0]
Lon = [120.0, 160.0]
`
	_, _, err := ReadRegions(strings.NewReader(regions), nil, nil)
	var e *InvalidBoxError
	if !errors.As(err, &e) {
		t.Errorf("have %v, want InvalidBoxError", err)
	}
}

func TestRegionBoxGeometry(t *testing.T) {
	b := BuiltinBoxes()["Nino3.4"]
	bounds := b.Polygon().Bounds()
	want := b.Bounds()
	if *bounds != *want {
		t.Errorf("polygon bounds %+v != box bounds %+v", bounds, want)
	}
	if !b.Bounds().Overlaps(BuiltinBoxes()["Nino4"].Bounds()) {
		t.Error("Nino3.4 and Nino4 should overlap")
	}
	if b.Bounds().Overlaps(BuiltinBoxes()["Nino1+2"].Bounds()) {
		t.Error("Nino3.4 and Nino1+2 should not overlap")
	}
}

func TestCitationTable(t *testing.T) {
	dir, err := ioutil.TempDir("", "cesmplot")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "citations.toml")

	ct, err := NewCitationTable(path)
	if err != nil {
		t.Fatal(err)
	}
	if c, ok := ct.Get("Nino3.4"); !ok || c.Year != 1997 {
		t.Errorf("built-in Nino3.4 citation: have %+v", c)
	}
	pwc := CitationEntry{
		Authors:     "Vecchi, G. A., et al.",
		Year:        2006,
		Title:       "Weakening of tropical Pacific atmospheric circulation due to anthropogenic forcing",
		Journal:     "Nature",
		DOI:         "10.1038/nature04744",
		Description: "Pacific Walker circulation strength from 850 hPa zonal wind",
	}
	if err := ct.Set("PWC-U850", pwc); err != nil {
		t.Fatal(err)
	}

	ct2, err := NewCitationTable(path)
	if err != nil {
		t.Fatal(err)
	}
	c, ok := ct2.Get("PWC-U850")
	if !ok {
		t.Fatal("saved citation was not reloaded")
	}
	if c != pwc {
		t.Errorf("have %+v, want %+v", c, pwc)
	}
	if err := ct2.Delete("PWC-U850"); err != nil {
		t.Fatal(err)
	}
	ct3, err := NewCitationTable(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := ct3.Get("PWC-U850"); ok {
		t.Error("deleted citation was reloaded")
	}
}

func TestCitationTableSaveFails(t *testing.T) {
	dir, err := ioutil.TempDir("", "cesmplot")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "citations.toml")

	ct, err := NewCitationTable(path)
	if err != nil {
		t.Fatal(err)
	}
	// A directory in place of the file makes every save fail.
	if err := os.Mkdir(path, 0755); err != nil {
		t.Fatal(err)
	}
	if err := ct.Set("PWC-U850", CitationEntry{Authors: "Bjerknes, J.", Year: 1969}); err == nil {
		t.Fatal("expected an error")
	}
	if _, ok := ct.Get("PWC-U850"); ok {
		t.Error("failed Set changed the table")
	}

	before, _ := ct.Get("Nino3.4")
	if err := ct.Set("Nino3.4", CitationEntry{Authors: "Someone", Year: 2020}); err == nil {
		t.Fatal("expected an error")
	}
	if c, _ := ct.Get("Nino3.4"); c != before {
		t.Errorf("failed Set replaced the entry: %+v", c)
	}
	if err := ct.Delete("Nino3.4"); err == nil {
		t.Fatal("expected an error")
	}
	if c, ok := ct.Get("Nino3.4"); !ok || c != before {
		t.Errorf("failed Delete changed the table: %+v, %v", c, ok)
	}
}

func TestCitationString(t *testing.T) {
	c := CitationEntry{Authors: "A. B.", Year: 2000, Title: "T", Journal: "J", DOI: "10.1/x"}
	if s := c.String(); s != "A. B. (2000). T. J. doi:10.1/x" {
		t.Errorf("have %q", s)
	}
}
