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

package cesmutil

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spatialmodel/cesmplot"
)

// run executes the command line args and returns its output.
func run(t *testing.T, args ...string) string {
	var buf bytes.Buffer
	Root.SetOutput(&buf)
	Root.SetArgs(args)
	if err := Root.Execute(); err != nil {
		t.Fatalf("%s: %v\n%s", strings.Join(args, " "), err, buf.String())
	}
	return buf.String()
}

func TestVersion(t *testing.T) {
	if out := run(t, "version"); !strings.Contains(out, cesmplot.Version) {
		t.Errorf("output: %q", out)
	}
}

func TestSynthAndFigures(t *testing.T) {
	dir, err := ioutil.TempDir("", "cesmutil")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	nc := filepath.Join(dir, "synth.nc")
	out := filepath.Join(dir, "figures")

	Cfg.Set("Synth.Output", nc)
	Cfg.Set("Synth.NTime", 12)
	Cfg.Set("Synth.NLat", 18)
	Cfg.Set("Synth.NLon", 36)
	Cfg.Set("Synth.Trend", 0.05)
	run(t, "synth")
	if _, err := os.Stat(nc); err != nil {
		t.Fatal(err)
	}

	Cfg.Set("NetCDF", nc)
	Cfg.Set("OutputDir", out)
	Cfg.Set("Variable", "d18Op")
	defer func() {
		Cfg.Set("NetCDF", "")
		Cfg.Set("Variable", "")
	}()

	if o := run(t, "variables"); !strings.Contains(o, "d18Op(time=12, lat=18, lon=36)") {
		t.Errorf("variables output: %q", o)
	}
	run(t, "all")
	for _, name := range []string{"d18Op_timeseries", "d18Op_spatial_mean", "d18Op_trend"} {
		for _, ext := range []string{".png", ".txt"} {
			if _, err := os.Stat(filepath.Join(out, name+ext)); err != nil {
				t.Error(err)
			}
		}
	}
	b, err := ioutil.ReadFile(filepath.Join(out, "d18Op_trend.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(b), "Linear trend of d18Op") {
		t.Errorf("trend caption: %q", b)
	}
}

func TestCite(t *testing.T) {
	dir, err := ioutil.TempDir("", "cesmutil")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "citations.toml")

	Cfg.Set("CitationFile", path)
	Cfg.Set("Cite.Authors", "Bjerknes, J.")
	Cfg.Set("Cite.Year", 1969)
	Cfg.Set("Cite.Title", "Atmospheric teleconnections from the equatorial Pacific")
	defer Cfg.Set("CitationFile", "")

	run(t, "cite", "set", "PWC-U850")
	cites, err := cesmplot.NewCitationTable(path)
	if err != nil {
		t.Fatal(err)
	}
	c, ok := cites.Get("PWC-U850")
	if !ok || c.Authors != "Bjerknes, J." || c.Year != 1969 {
		t.Errorf("citation: %+v", c)
	}
	if o := run(t, "cite", "show", "PWC-U850"); !strings.Contains(o, "Bjerknes") {
		t.Errorf("show output: %q", o)
	}

	run(t, "cite", "delete", "PWC-U850")
	cites, err = cesmplot.NewCitationTable(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := cites.Get("PWC-U850"); ok {
		t.Error("citation was not deleted")
	}
}
