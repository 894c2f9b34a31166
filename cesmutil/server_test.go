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
	"context"
	"encoding/json"
	"io/ioutil"
	"mime"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/lnashier/viper"
)

// testServer starts a server for a synthetic tas file. The returned
// function shuts it down and removes the file.
func testServer(t *testing.T) (*Server, *httptest.Server, func()) {
	dir := tempDir(t)
	cfg := viper.New()
	cfg.Set("NetCDF", testFile(t, dir))
	cfg.Set("DataDir", dir)
	s, err := NewServer(context.Background(), cfg)
	if err != nil {
		os.RemoveAll(dir)
		t.Fatal(err)
	}
	srv := httptest.NewServer(s)
	return s, srv, func() {
		srv.Close()
		os.RemoveAll(dir)
	}
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, b
}

func captionHeader(t *testing.T, h http.Header) string {
	c, err := new(mime.WordDecoder).DecodeHeader(h.Get("X-Caption"))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func TestServerVariables(t *testing.T) {
	_, srv, done := testServer(t)
	defer done()

	resp, b := get(t, srv.URL+"/variables")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, b)
	}
	var out struct {
		Variables []variableInfo
		Start     string
		End       string
	}
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Variables) != 1 || out.Variables[0].Name != "tas" || out.Variables[0].Units != "K" {
		t.Errorf("variables: %+v", out.Variables)
	}
	if out.Start != "2000-01-01" || out.End != "2001-12-01" {
		t.Errorf("time range: %s to %s", out.Start, out.End)
	}
}

func TestServerIndices(t *testing.T) {
	_, srv, done := testServer(t)
	defer done()

	_, b := get(t, srv.URL+"/indices")
	var out []struct{ Name, Citation string }
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, i := range out {
		if i.Name == "Nino3.4" {
			found = true
			if i.Citation == "" {
				t.Error("Nino3.4 should have a citation")
			}
		}
	}
	if !found {
		t.Errorf("Nino3.4 is missing from %s", b)
	}
}

func TestServerFigures(t *testing.T) {
	_, srv, done := testServer(t)
	defer done()

	for _, test := range []struct {
		path, caption string
	}{
		{path: "/timeseries.png", caption: "Global Mean"},
		{path: "/timeseries.png?index=Nino3.4&trend=true", caption: "Nino3.4"},
		{path: "/map.png?colorbar=robust&start=2000&end=2000", caption: "Spatial mean of tas (2000-01-01 to 2000-12-31 23:59)"},
		{path: "/trend.png?journal=nature", caption: "Linear trend of tas"},
		{path: "/correlation.png?with=Nino3.4", caption: "Correlation of tas with tas Nino3.4"},
	} {
		resp, b := get(t, srv.URL+test.path)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: status %d: %s", test.path, resp.StatusCode, b)
			continue
		}
		if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("%s: content type %s", test.path, ct)
		}
		if !bytes.HasPrefix(b, pngMagic) {
			t.Errorf("%s: not a PNG image", test.path)
		}
		if c := captionHeader(t, resp.Header); !strings.Contains(c, test.caption) {
			t.Errorf("%s: caption %q does not contain %q", test.path, c, test.caption)
		}
	}
}

func TestServerCaption(t *testing.T) {
	_, srv, done := testServer(t)
	defer done()

	resp, b := get(t, srv.URL+"/caption?figure=trend&caption=Run+1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, b)
	}
	var out struct{ Figure, Caption string }
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	if out.Figure != "trend" || !strings.HasPrefix(out.Caption, "Linear trend of tas") ||
		!strings.HasSuffix(out.Caption, " | Run 1") {
		t.Errorf("caption: %+v", out)
	}
}

func TestServerErrors(t *testing.T) {
	_, srv, done := testServer(t)
	defer done()

	for _, test := range []struct {
		path   string
		status int
	}{
		{path: "/map.png?variable=nope", status: http.StatusBadRequest},
		{path: "/map.png?colorbar=bogus", status: http.StatusBadRequest},
		{path: "/map.png?journal=Cell", status: http.StatusBadRequest},
		{path: "/map.png?vmin=low", status: http.StatusBadRequest},
		{path: "/timeseries.png?index=Nino99", status: http.StatusBadRequest},
		{path: "/caption?figure=histogram", status: http.StatusBadRequest},
		{path: "/map.png?start=2010", status: http.StatusUnprocessableEntity},
		{path: "/trend.png?start=2000&end=1990", status: http.StatusBadRequest},
		{path: "/nothing", status: http.StatusNotFound},
	} {
		resp, b := get(t, srv.URL+test.path)
		if resp.StatusCode != test.status {
			t.Errorf("%s: status %d, want %d: %s", test.path, resp.StatusCode, test.status, b)
		}
	}
}

func TestServerCache(t *testing.T) {
	s, srv, done := testServer(t)
	defer done()

	for i := 0; i < 2; i++ {
		resp, b := get(t, srv.URL+"/map.png?colormap=kindlmann")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, b)
		}
	}
	if n := s.cache.Len(); n != 1 {
		t.Errorf("%d cached figures, want 1", n)
	}
	get(t, srv.URL+"/map.png?colormap=blackbody")
	if n := s.cache.Len(); n != 2 {
		t.Errorf("%d cached figures, want 2", n)
	}
}

func TestServerHelp(t *testing.T) {
	_, srv, done := testServer(t)
	defer done()

	resp, b := get(t, srv.URL+"/help")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if !strings.Contains(string(b), "tas.nc") || !strings.Contains(string(b), "Nature") {
		t.Errorf("help page: %s", b)
	}
}
