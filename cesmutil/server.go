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
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/golang/groupcache/lru"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/cesmplot"
	"github.com/spatialmodel/cesmplot/cesmio"
	"github.com/spatialmodel/cesmplot/figure"
	"github.com/spatialmodel/cesmplot/internal/hash"
)

// Server renders figures of one dataset in response to HTTP requests.
// Figure settings default to the configuration the server was created
// with and can be overridden by query parameters.
type Server struct {
	path     string
	loader   *cesmio.Loader
	gen      *figure.Generator
	presets  map[string]figure.JournalPreset
	defaults figureOptions
	cites    *cesmplot.CitationTable
	log      logrus.FieldLogger

	mux *http.ServeMux

	mu    sync.Mutex
	cache *lru.Cache // rendered figures
}

// maxCachedFigures is the number of rendered figures kept in memory.
const maxCachedFigures = 32

// NewServer returns a server for the dataset and figure settings in cfg.
func NewServer(ctx context.Context, cfg *viper.Viper) (*Server, error) {
	path, err := datasetPath(ctx, cfg)
	if err != nil {
		return nil, err
	}
	g, err := generator(cfg)
	if err != nil {
		return nil, err
	}
	p, err := presets(cfg)
	if err != nil {
		return nil, err
	}
	o, err := figureOptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	cites, err := citations(cfg)
	if err != nil {
		return nil, err
	}
	s := &Server{
		path:     path,
		loader:   loader,
		gen:      g,
		presets:  p,
		defaults: *o,
		cites:    cites,
		log:      logrus.StandardLogger(),
		cache:    lru.New(maxCachedFigures),
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux = http.NewServeMux()
	s.mux.HandleFunc("/", s.helpHandler)
	s.mux.HandleFunc("/help", s.helpHandler)
	s.mux.HandleFunc("/variables", s.variablesHandler)
	s.mux.HandleFunc("/indices", s.indicesHandler)
	s.mux.HandleFunc("/caption", s.captionHandler)
	for kind := range figureKinds {
		s.mux.HandleFunc("/"+kind+".png", s.figureHandler(kind))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// badRequestError is returned for invalid query parameters.
type badRequestError struct{ error }

// handleErrHTTP writes err to w with a status matching its cause
// and reports whether there was an error.
func (s *Server) handleErrHTTP(err error, w http.ResponseWriter) bool {
	if err == nil {
		return false
	}
	status := http.StatusInternalServerError
	var (
		br  badRequestError
		ui  *cesmplot.UnknownIndexError
		uv  *cesmplot.UnknownVariableError
		vm  *cesmplot.VariableMismatchError
		es  *cesmplot.EmptySelectionError
		md  *cesmplot.MissingDimensionError
		box *cesmplot.InvalidBoxError
	)
	switch {
	case errors.As(err, &br), errors.As(err, &ui), errors.As(err, &uv),
		errors.As(err, &vm), errors.As(err, &box):
		status = http.StatusBadRequest
	case errors.As(err, &es), errors.As(err, &md):
		status = http.StatusUnprocessableEntity
	}
	s.log.WithField("status", status).Warn(err)
	http.Error(w, err.Error(), status)
	return true
}

// options returns the server defaults overridden by the query parameters q.
func (s *Server) options(q url.Values) (*figureOptions, error) {
	o := s.defaults
	str := map[string]*string{
		"variable": &o.variable,
		"colormap": &o.colormap,
		"caption":  &o.caption,
		"with":     &o.correlateWith,
		"indexvar": &o.indexVariable,
	}
	for k, p := range str {
		if v, ok := q[k]; ok {
			*p = v[0]
		}
	}
	if v, ok := q["index"]; ok {
		o.indices = nil
		for _, i := range v {
			more, _ := toStringSlice(i)
			o.indices = append(o.indices, more...)
		}
	}
	if q.Get("start") != "" || q.Get("end") != "" {
		w, err := parseWindow(q.Get("start"), q.Get("end"))
		if err != nil {
			return nil, badRequestError{err}
		}
		o.window = w
	}
	if v := q.Get("journal"); v != "" {
		p, err := figure.FindPreset(s.presets, v)
		if err != nil {
			return nil, badRequestError{err}
		}
		o.preset = p
	}
	if v := q.Get("colorbar"); v != "" {
		m, err := figure.ParseColorbarMode(v)
		if err != nil {
			return nil, badRequestError{err}
		}
		o.colorbar = m
	}
	floats := map[string]*float64{"vmin": &o.vmin, "vmax": &o.vmax}
	for k, p := range floats {
		if v := q.Get(k); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, badRequestError{fmt.Errorf("cesmutil: %s: %v", k, err)}
			}
			*p = f
		}
	}
	bools := map[string]*bool{"trend": &o.trend, "boxes": &o.boxes}
	for k, p := range bools {
		if v := q.Get(k); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, badRequestError{fmt.Errorf("cesmutil: %s: %v", k, err)}
			}
			*p = b
		}
	}
	return &o, nil
}

// render returns the figure of the given kind for query q, from the cache
// if the same figure of the same version of the file was requested before.
func (s *Server) render(ctx context.Context, kind string, q url.Values) (*figure.Figure, error) {
	f, ok := figureKinds[kind]
	if !ok {
		return nil, badRequestError{fmt.Errorf("cesmutil: unknown figure %q", kind)}
	}
	fileKey, err := hash.File(s.path)
	if err != nil {
		return nil, fmt.Errorf("cesmutil: %v", err)
	}
	key := kind + "?" + q.Encode() + "#" + fileKey
	s.mu.Lock()
	cached, ok := s.cache.Get(key)
	s.mu.Unlock()
	if ok {
		return cached.(*figure.Figure), nil
	}

	o, err := s.options(q)
	if err != nil {
		return nil, err
	}
	ds, err := s.loader.Load(ctx, s.path)
	if err != nil {
		return nil, err
	}
	_, fig, err := f(s.gen, ds, o)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cache.Add(key, fig)
	s.mu.Unlock()
	return fig, nil
}

// figureHandler serves PNG images. The caption is sent in the
// X-Caption header, encoded as in RFC 2047 when it is not ASCII.
func (s *Server) figureHandler(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fig, err := s.render(r.Context(), kind, r.URL.Query())
		if s.handleErrHTTP(err, w) {
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("X-Caption", mime.QEncoding.Encode("utf-8", fig.Caption))
		w.Header().Set("Content-Length", strconv.Itoa(len(fig.PNG)))
		w.Write(fig.PNG)
	}
}

// captionHandler serves the caption of the figure named by the "figure"
// query parameter as JSON.
func (s *Server) captionHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind := q.Get("figure")
	q.Del("figure")
	fig, err := s.render(r.Context(), kind, q)
	if s.handleErrHTTP(err, w) {
		return
	}
	writeJSON(w, struct {
		Figure  string `json:"figure"`
		Caption string `json:"caption"`
	}{Figure: kind, Caption: fig.Caption})
}

// variableInfo describes one variable of the dataset.
type variableInfo struct {
	Name        string   `json:"name"`
	Dims        []string `json:"dims"`
	Shape       []int    `json:"shape"`
	Units       string   `json:"units,omitempty"`
	Description string   `json:"description,omitempty"`
}

func (s *Server) variablesHandler(w http.ResponseWriter, r *http.Request) {
	ds, err := s.loader.Load(r.Context(), s.path)
	if s.handleErrHTTP(err, w) {
		return
	}
	var out struct {
		Path      string         `json:"path"`
		Variables []variableInfo `json:"variables"`
		Start     string         `json:"start,omitempty"`
		End       string         `json:"end,omitempty"`
	}
	out.Path = s.path
	for _, name := range ds.DataVariables() {
		v := ds.Vars[name]
		out.Variables = append(out.Variables, variableInfo{
			Name:        name,
			Dims:        v.Dims,
			Shape:       v.Data.Shape,
			Units:       v.Units,
			Description: v.Description,
		})
	}
	if tr, ok := ds.TimeRange(); ok {
		out.Start = cesmplot.FormatTime(tr.Start)
		out.End = cesmplot.FormatTime(tr.End)
	}
	writeJSON(w, out)
}

func (s *Server) indicesHandler(w http.ResponseWriter, r *http.Request) {
	type index struct {
		Name     string `json:"name"`
		Citation string `json:"citation,omitempty"`
	}
	eng := &cesmplot.Engine{Boxes: s.gen.Boxes, Diffs: s.gen.Diffs}
	var out []index
	for _, name := range eng.IndexNames() {
		i := index{Name: name}
		if c, ok := s.cites.Get(name); ok {
			i.Citation = c.String()
		}
		out = append(out, i)
	}
	writeJSON(w, out)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	if err := e.Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

var helpTemplate = template.Must(template.New("help").Parse(`<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<title>cesmplot</title>
	<style>
		html, body {padding: 0; margin: 2% 0; font-family: sans-serif;}
		.container { max-width: 900px; margin: 0 auto; padding: 10px; }
		img { max-width: 100%; }
	</style>
</head>
<body>
<div class="container">
	<h1>cesmplot</h1>
	<p>Serving <code>{{.Path}}</code>.</p>
	<ul>
		<li><a href="/variables">/variables</a>: the variables in the file</li>
		<li><a href="/indices">/indices</a>: the available climate indices</li>
		<li><a href="/timeseries.png">/timeseries.png</a>: index time series</li>
		<li><a href="/map.png">/map.png</a>: time-mean map</li>
		<li><a href="/trend.png">/trend.png</a>: trend map</li>
		<li><a href="/correlation.png">/correlation.png</a>: correlation map</li>
		<li>/caption?figure=map: the caption of a figure</li>
	</ul>
	<p>
		Query parameters: variable, index (repeatable), start, end, journal,
		colormap, colorbar, vmin, vmax, trend, boxes, caption, with, indexvar.
	</p>
	<p>Journal presets: {{range .Presets}}{{.}} {{end}}</p>
</div>
</body>
</html>`))

func (s *Server) helpHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/help" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := helpTemplate.Execute(w, struct {
		Path    string
		Presets []string
	}{Path: s.path, Presets: figure.PresetNames(s.presets)})
	if err != nil {
		s.log.Error(err)
	}
}
