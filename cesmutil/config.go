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
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/cesmplot"
	"github.com/spatialmodel/cesmplot/cesmio"
	"github.com/spatialmodel/cesmplot/figure"
	"github.com/spf13/cast"
)

// setLogging sets the level and format of the standard logger.
func setLogging(cfg *viper.Viper) error {
	level := cfg.GetString("LogLevel")
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("cesmplot: LogLevel: %v", err)
	}
	logrus.SetLevel(lvl)
	switch strings.ToLower(cfg.GetString("LogFormat")) {
	case "", "text":
		logrus.SetFormatter(&logrus.TextFormatter{})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("cesmplot: LogFormat must be text or json but is %q", cfg.GetString("LogFormat"))
	}
	return nil
}

// toStringSlice converts a configuration value to a slice of strings.
// Strings, as set by environment variables, are split at commas.
func toStringSlice(v interface{}) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(s), "["), "]")
		if strings.TrimSpace(s) == "" {
			return nil, nil
		}
		o := strings.Split(s, ",")
		for i := range o {
			o[i] = strings.TrimSpace(o[i])
		}
		return o, nil
	}
	return cast.ToStringSliceE(v)
}

// parseTime parses a time window end given as a year, a month, a date or
// an RFC 3339 time. When end is true, a year, month or date is
// taken to mean its last instant so that the window includes all of it.
func parseTime(s string, end bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if y, err := strconv.Atoi(s); err == nil {
		t := time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
		if end {
			t = t.AddDate(1, 0, 0).Add(-time.Nanosecond)
		}
		return t, nil
	}
	for _, f := range []struct {
		layout              string
		years, months, days int
	}{
		{layout: time.RFC3339},
		{layout: "2006-01-02 15:04:05"},
		{layout: "2006-01-02T15:04:05"},
		{layout: "2006-01-02", days: 1},
		{layout: "2006-01", months: 1},
	} {
		t, err := time.Parse(f.layout, s)
		if err != nil {
			continue
		}
		if end && f.years+f.months+f.days > 0 {
			t = t.AddDate(f.years, f.months, f.days).Add(-time.Nanosecond)
		}
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("cesmplot: invalid time %q; use a year, YYYY-MM, YYYY-MM-DD or RFC 3339", s)
}

// parseWindow returns the time window between start and end.
func parseWindow(start, end string) (cesmplot.TimeWindow, error) {
	var w cesmplot.TimeWindow
	var err error
	if w.Start, err = parseTime(start, false); err != nil {
		return w, err
	}
	if w.End, err = parseTime(end, true); err != nil {
		return w, err
	}
	if !w.Start.IsZero() && !w.End.IsZero() && w.End.Before(w.Start) {
		return w, fmt.Errorf("cesmplot: time window end %s is before start %s", end, start)
	}
	return w, nil
}

// dataset reads the file specified by the NetCDF option, fetching it
// first if it is remote.
func dataset(ctx context.Context, cfg *viper.Viper) (*cesmplot.Dataset, error) {
	path, err := datasetPath(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return loader.Load(ctx, path)
}

func datasetPath(ctx context.Context, cfg *viper.Viper) (string, error) {
	p := os.ExpandEnv(cfg.GetString("NetCDF"))
	if p == "" {
		return "", fmt.Errorf("cesmplot: the NetCDF configuration variable is not specified")
	}
	return maybeDownload(ctx, p, os.ExpandEnv(cfg.GetString("DataDir")))
}

// generator returns a figure generator with the region boxes in BoxFile
// and the coastlines and borders in CoastlineFile and BorderFile, if
// they are specified.
func generator(cfg *viper.Viper) (*figure.Generator, error) {
	ctx := context.TODO()
	dataDir := os.ExpandEnv(cfg.GetString("DataDir"))
	g := figure.NewGenerator()
	g.Log = logrus.StandardLogger()
	if p := os.ExpandEnv(cfg.GetString("BoxFile")); p != "" {
		p, err := maybeDownload(ctx, p, dataDir)
		if err != nil {
			return nil, err
		}
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("cesmplot: opening BoxFile: %v", err)
		}
		defer f.Close()
		g.Boxes, g.Diffs, err = cesmplot.ReadRegions(f, g.Boxes, g.Diffs)
		if err != nil {
			return nil, err
		}
	}
	if p := os.ExpandEnv(cfg.GetString("CoastlineFile")); p != "" {
		p, err := maybeDownload(ctx, p, dataDir)
		if err != nil {
			return nil, err
		}
		g.Coastlines, err = figure.ReadCoastlines(p)
		if err != nil {
			return nil, err
		}
	}
	if p := os.ExpandEnv(cfg.GetString("BorderFile")); p != "" {
		p, err := maybeDownload(ctx, p, dataDir)
		if err != nil {
			return nil, err
		}
		g.Borders, err = figure.ReadCoastlines(p)
		if err != nil {
			return nil, err
		}
	}
	return g, nil
}

// presets returns the built-in journal presets plus those in PresetFile.
func presets(cfg *viper.Viper) (map[string]figure.JournalPreset, error) {
	p := figure.Presets()
	path := os.ExpandEnv(cfg.GetString("PresetFile"))
	if path == "" {
		return p, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cesmplot: opening PresetFile: %v", err)
	}
	defer f.Close()
	return figure.ReadPresets(f, p)
}

// citations returns the citation table saved in CitationFile.
func citations(cfg *viper.Viper) (*cesmplot.CitationTable, error) {
	return cesmplot.NewCitationTable(os.ExpandEnv(cfg.GetString("CitationFile")))
}

// figureOptions holds the settings shared by all figure kinds.
type figureOptions struct {
	variable      string
	indices       []string
	window        cesmplot.TimeWindow
	preset        figure.JournalPreset
	colormap      string
	colorbar      figure.ColorbarMode
	vmin, vmax    float64
	trend, boxes  bool
	caption       string
	correlateWith string
	indexVariable string
	overlays      []cesmplot.Series
}

// figureOptionsFromConfig reads the figure settings from cfg.
func figureOptionsFromConfig(cfg *viper.Viper) (*figureOptions, error) {
	o := &figureOptions{
		variable:      cfg.GetString("Variable"),
		colormap:      cfg.GetString("Colormap"),
		vmin:          cfg.GetFloat64("VMin"),
		vmax:          cfg.GetFloat64("VMax"),
		trend:         cfg.GetBool("Trendline"),
		boxes:         cfg.GetBool("ShowBoxes"),
		caption:       cfg.GetString("Caption"),
		correlateWith: cfg.GetString("CorrelateWith"),
		indexVariable: cfg.GetString("IndexVariable"),
	}
	var err error
	if o.indices, err = toStringSlice(cfg.Get("Indices")); err != nil {
		return nil, fmt.Errorf("cesmplot: Indices: %v", err)
	}
	if o.window, err = parseWindow(cfg.GetString("Start"), cfg.GetString("End")); err != nil {
		return nil, err
	}
	if o.colorbar, err = figure.ParseColorbarMode(cfg.GetString("Colorbar")); err != nil {
		return nil, err
	}
	p, err := presets(cfg)
	if err != nil {
		return nil, err
	}
	if o.preset, err = figure.FindPreset(p, cfg.GetString("Journal")); err != nil {
		return nil, err
	}
	if path := os.ExpandEnv(cfg.GetString("IndexCSV")); path != "" {
		path, err = maybeDownload(context.TODO(), path, os.ExpandEnv(cfg.GetString("DataDir")))
		if err != nil {
			return nil, err
		}
		if o.overlays, err = cesmio.ReadIndexFile(path); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// resolveVariable fills in the variable when it is not specified and ds
// holds only one.
func (o *figureOptions) resolveVariable(ds *cesmplot.Dataset) error {
	if o.variable != "" {
		return nil
	}
	vars := ds.DataVariables()
	if len(vars) != 1 {
		return fmt.Errorf("cesmplot: the Variable configuration variable is not specified; "+
			"the file contains %s", strings.Join(vars, ", "))
	}
	o.variable = vars[0]
	return nil
}

func (o *figureOptions) timeSeriesRequest() figure.TimeSeriesRequest {
	return figure.TimeSeriesRequest{
		Variable:  o.variable,
		Indices:   o.indices,
		Window:    o.window,
		Preset:    o.preset,
		ShowTrend: o.trend,
		Caption:   o.caption,
		Overlays:  o.overlays,
	}
}

func (o *figureOptions) mapRequest() figure.MapRequest {
	return figure.MapRequest{
		Variable:      o.variable,
		Window:        o.window,
		Preset:        o.preset,
		Colormap:      o.colormap,
		Indices:       o.indices,
		ShowBoxes:     o.boxes,
		ColorbarMode:  o.colorbar,
		VMin:          o.vmin,
		VMax:          o.vmax,
		CorrelateWith: o.correlateWith,
		IndexVariable: o.indexVariable,
		Caption:       o.caption,
	}
}

// figureFunc renders one kind of figure and returns the base name of
// the files it is saved to.
type figureFunc func(g *figure.Generator, ds *cesmplot.Dataset, o *figureOptions) (string, *figure.Figure, error)

func timeseriesFigure(g *figure.Generator, ds *cesmplot.Dataset, o *figureOptions) (string, *figure.Figure, error) {
	if err := o.resolveVariable(ds); err != nil {
		return "", nil, err
	}
	fig, err := g.TimeSeries(ds, o.timeSeriesRequest())
	return fileName(o.variable, "timeseries"), fig, err
}

func spatialFigure(g *figure.Generator, ds *cesmplot.Dataset, o *figureOptions) (string, *figure.Figure, error) {
	if err := o.resolveVariable(ds); err != nil {
		return "", nil, err
	}
	fig, err := g.SpatialMap(ds, o.mapRequest())
	return fileName(o.variable, "spatial_mean"), fig, err
}

func trendFigure(g *figure.Generator, ds *cesmplot.Dataset, o *figureOptions) (string, *figure.Figure, error) {
	if err := o.resolveVariable(ds); err != nil {
		return "", nil, err
	}
	fig, err := g.TrendMap(ds, o.mapRequest())
	return fileName(o.variable, "trend"), fig, err
}

func correlationFigure(g *figure.Generator, ds *cesmplot.Dataset, o *figureOptions) (string, *figure.Figure, error) {
	if err := o.resolveVariable(ds); err != nil {
		return "", nil, err
	}
	fig, err := g.CorrelationMap(ds, o.mapRequest())
	return fileName(o.variable, "correlation", o.correlateWith), fig, err
}

// figureKinds are the figures that can be requested by name.
var figureKinds = map[string]figureFunc{
	"timeseries":  timeseriesFigure,
	"map":         spatialFigure,
	"trend":       trendFigure,
	"correlation": correlationFigure,
}

// fileName joins parts with underscores, replacing characters that
// do not belong in file names.
func fileName(parts ...string) string {
	r := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-")
	for i, p := range parts {
		parts[i] = r.Replace(p)
	}
	return strings.Join(parts, "_")
}

// syntheticConfig reads the Synth options.
func syntheticConfig(cfg *viper.Viper) (cesmio.SyntheticConfig, error) {
	sc := cesmio.DefaultSynthetic()
	start, err := parseTime(cfg.GetString("Synth.Start"), false)
	if err != nil {
		return sc, fmt.Errorf("cesmplot: Synth.Start: %v", err)
	}
	if !start.IsZero() {
		sc.Start = start
	}
	sc.Variable = cfg.GetString("Synth.Variable")
	sc.Units = cfg.GetString("Synth.Units")
	sc.NTime = cfg.GetInt("Synth.NTime")
	sc.Monthly = cfg.GetBool("Synth.Monthly")
	sc.NLat = cfg.GetInt("Synth.NLat")
	sc.NLon = cfg.GetInt("Synth.NLon")
	if sc.NLon > 0 {
		sc.Lon = [2]float64{0, 360 - 360/float64(sc.NLon)}
	}
	sc.Mean = cfg.GetFloat64("Synth.Mean")
	sc.Trend = cfg.GetFloat64("Synth.Trend")
	sc.Noise = cfg.GetFloat64("Synth.Noise")
	sc.Seed = int64(cfg.GetInt("Synth.Seed"))
	if sc.Variable != cesmio.DefaultSynthetic().Variable {
		sc.Description = ""
	}
	return sc, nil
}

// writeDataset writes ds to a NetCDF file at path.
func writeDataset(path string, ds *cesmplot.Dataset) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("cesmplot: %v", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cesmplot: %v", err)
	}
	if err := cesmio.Write(f, ds); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeFile(path string, b []byte) error {
	if err := ioutil.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("cesmplot: %v", err)
	}
	return nil
}
