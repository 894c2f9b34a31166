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
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cloud/blob"
	"github.com/spatialmodel/cesmplot/cesmio"
)

func tempDir(t *testing.T) string {
	dir, err := ioutil.TempDir("", "cesmutil")
	if err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestMaybeDownloadLocal(t *testing.T) {
	if k, err := maybeDownload(context.Background(), "/dev/null", ""); err != nil || k != "/dev/null" {
		t.Error("Expected /dev/null, got ", k, err)
	}
}

func TestMaybeDownloadLocal2(t *testing.T) {
	if k, err := maybeDownload(context.Background(), "/blah/test/", ""); err != nil || k != "/blah/test/" {
		t.Error("Expected /blah/test/, got ", k, err)
	}
}

func TestMaybeDownloadRemoteFail(t *testing.T) {
	defer func(r uint64) { httpRetries = r }(httpRetries)
	httpRetries = 1
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	if _, err := maybeDownload(context.Background(), srv.URL+"/missing.nc", dir); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestMaybeDownloadRemote(t *testing.T) {
	src := tempDir(t)
	defer os.RemoveAll(src)
	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		if err := ioutil.WriteFile(filepath.Join(src, "coast"+ext), []byte(ext), 0644); err != nil {
			t.Fatal(err)
		}
	}
	srv := httptest.NewServer(http.FileServer(http.Dir(src)))
	defer srv.Close()
	dir := tempDir(t)
	defer os.RemoveAll(dir)

	k, err := maybeDownload(context.Background(), srv.URL+"/coast.shp", dir)
	if err != nil {
		t.Fatal(err)
	}
	if k != filepath.Join(dir, "coast.shp") {
		t.Error("Expected dir/coast.shp, got ", k)
	}
	for _, ext := range []string{".shx", ".dbf"} {
		if _, err := os.Stat(filepath.Join(dir, "coast"+ext)); err != nil {
			t.Errorf("support file: %v", err)
		}
	}
}

func TestMaybeDownloadRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("data"))
	}))
	defer srv.Close()
	dir := tempDir(t)
	defer os.RemoveAll(dir)

	k, err := maybeDownload(context.Background(), srv.URL+"/index.csv", dir)
	if err != nil {
		t.Fatal(err)
	}
	b, err := ioutil.ReadFile(k)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "data" {
		t.Errorf("contents: %q", b)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("%d requests, want 2", n)
	}
}

func TestMaybeDownloadBlob(t *testing.T) {
	ctx := context.Background()
	if err := os.MkdirAll("testbucket", 0755); err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll("testbucket")
	bucket, err := OpenBucket(ctx, "file://testbucket")
	if err != nil {
		t.Fatal(err)
	}
	w, err := bucket.NewWriter(ctx, "run.csv", &blob.WriterOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("time,nino34\n")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	dir := tempDir(t)
	defer os.RemoveAll(dir)
	k, err := maybeDownload(ctx, "file://testbucket/run.csv", dir)
	if err != nil {
		t.Fatal(err)
	}
	b, err := ioutil.ReadFile(k)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "time,nino34\n" {
		t.Errorf("contents: %q", b)
	}
}

func TestIsBlob(t *testing.T) {
	for path, want := range map[string]bool{
		"gs://bucket/a.nc":   true,
		"s3://bucket/a.nc":   true,
		"file://bucket/a.nc": true,
		"https://host/a.nc":  false,
		"/data/a.nc":         false,
	} {
		if IsBlob(path) != want {
			t.Errorf("%s: want %v", path, want)
		}
	}
}

func TestFetchClean(t *testing.T) {
	src := tempDir(t)
	defer os.RemoveAll(src)
	path := testFile(t, src)
	dir := tempDir(t)
	defer os.RemoveAll(dir)

	out, err := fetch(context.Background(), path, dir, true)
	if err != nil {
		t.Fatal(err)
	}
	if out != filepath.Join(dir, "tas.nc") {
		t.Errorf("output path: %s", out)
	}
	ds, err := cesmio.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	if vars := strings.Join(ds.DataVariables(), ","); vars != "tas" {
		t.Errorf("variables: %s", vars)
	}

	if _, err := fetch(context.Background(), out, dir, true); err == nil {
		t.Error("expected an error when cleaning a file into its own directory")
	}
	unclean := dir + string(filepath.Separator) + "." + string(filepath.Separator) + "tas.nc"
	if _, err := fetch(context.Background(), unclean, dir, true); err == nil {
		t.Errorf("expected an error when cleaning %s into %s", unclean, dir)
	}
}

func TestSameFile(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	a := filepath.Join(dir, "a.nc")
	if err := ioutil.WriteFile(a, []byte("a"), 0644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link.nc")
	if err := os.Symlink(a, link); err != nil {
		t.Fatal(err)
	}
	for _, test := range []struct {
		a, b string
		same bool
	}{
		{a: a, b: a, same: true},
		{a: a, b: dir + "/sub/../a.nc", same: true},
		{a: a, b: link, same: true},
		{a: a, b: filepath.Join(dir, "b.nc"), same: false},
		{a: filepath.Join(dir, "b.nc"), b: filepath.Join(dir, "c.nc"), same: false},
	} {
		if same := sameFile(test.a, test.b); same != test.same {
			t.Errorf("sameFile(%s, %s) = %v, want %v", test.a, test.b, same, test.same)
		}
	}
}
