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
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const indexCSV = `# observed indices
time, Nino3.4, PWC-U850
1997-01, 0.5, 1.2
1997-02-15, 0.8,
1997-03-01T00:00:00Z, NaN, 0.9
1998, 2.1, -0.4
`

func TestReadIndexCSV(t *testing.T) {
	s, err := ReadIndexCSV(strings.NewReader(indexCSV))
	if err != nil {
		t.Fatal(err)
	}
	if len(s) != 2 || s[0].Name != "Nino3.4" || s[1].Name != "PWC-U850" {
		t.Fatalf("series: %+v", s)
	}
	wantTime := []time.Time{date(1997, 1, 1), date(1997, 2, 15), date(1997, 3, 1), date(1998, 1, 1)}
	for i, w := range wantTime {
		if !s[0].Time[i].Equal(w) {
			t.Errorf("time %d: %v != %v", i, s[0].Time[i], w)
		}
	}
	if s[0].Values[1] != 0.8 || !math.IsNaN(s[0].Values[2]) || s[0].Values[3] != 2.1 {
		t.Errorf("Nino3.4: %v", s[0].Values)
	}
	if !math.IsNaN(s[1].Values[1]) || s[1].Values[3] != -0.4 {
		t.Errorf("PWC-U850: %v", s[1].Values)
	}
}

func TestReadIndexCSVErrors(t *testing.T) {
	for name, data := range map[string]string{
		"empty":     "",
		"no series": "time\n2000\n",
		"bad time":  "time,a\nyesterday,1\n",
		"bad value": "time,a\n2000,one\n",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := ReadIndexCSV(strings.NewReader(data)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestReadIndexFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "cesmio")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "obs.csv")
	if err := ioutil.WriteFile(path, []byte(indexCSV), 0644); err != nil {
		t.Fatal(err)
	}
	s, err := ReadIndexFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(s) != 2 || len(s[1].Values) != 4 {
		t.Errorf("series: %+v", s)
	}
	if _, err := ReadIndexFile(filepath.Join(dir, "missing.xlsx")); err == nil {
		t.Error("expected an error for a missing spreadsheet")
	}
}
