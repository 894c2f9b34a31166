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

package figure

import (
	"fmt"
	"image/color"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/cesmplot"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// TimeSeriesRequest specifies a time-series figure.
type TimeSeriesRequest struct {
	Variable string

	// Indices are the names of the indices to plot. If empty,
	// the global mean is plotted.
	Indices []string

	Window cesmplot.TimeWindow
	Preset JournalPreset

	// ShowTrend adds a least-squares trend line to each series and
	// reports the slope and R² in the caption.
	ShowTrend bool

	// Caption is appended to the generated caption.
	Caption string

	// Overlays are additional series, such as observations, that are
	// drawn as thin lines.
	Overlays []cesmplot.Series
}

// seriesStats holds what the caption reports about one series.
type seriesStats struct {
	name    string
	summary cesmplot.Summary
	trend   *cesmplot.Trend
}

func (s seriesStats) String(units string) string {
	o := fmt.Sprintf("%s: %s", s.name, s.summary)
	if s.trend != nil {
		per := "/yr"
		if units != "" {
			per = " " + units + "/yr"
		}
		o += fmt.Sprintf(", trend=%.3g%s, R²=%.2f", s.trend.Slope, per, s.trend.RSquared)
	}
	return o
}

// TimeSeries plots one line per requested index of req.Variable over
// req.Window, with a shaded band of ±1 standard deviation about the
// mean of each series.
func (g *Generator) TimeSeries(ds *cesmplot.Dataset, req TimeSeriesRequest) (*Figure, error) {
	preset := req.Preset
	if preset.Name == "" {
		preset = Presets()[Default]
	}
	if err := preset.Validate(); err != nil {
		return nil, err
	}
	indices := req.Indices
	if len(indices) == 0 {
		indices = []string{cesmplot.GlobalMeanName}
	}
	v, err := ds.Variable(req.Variable)
	if err != nil {
		return nil, err
	}

	p, err := newPlot(preset)
	if err != nil {
		return nil, err
	}
	p.Title.Text = fmt.Sprintf("%s Time Series", req.Variable)
	p.X.Label.Text = "Year"
	p.Y.Label.Text = axisLabel(req.Variable, v.Units)
	p.X.Tick.Marker = yearTicks{}

	eng := g.engine()
	var all []time.Time
	var stats []seriesStats
	for i, name := range indices {
		f, err := eng.Compute(ds, req.Variable, name)
		if err != nil {
			return nil, err
		}
		f, err = f.SelectTime(req.Window)
		if err != nil {
			return nil, err
		}
		times, values, err := f.Series()
		if err != nil {
			return nil, err
		}
		all = append(all, times...)
		s := seriesStats{name: name, summary: cesmplot.Summarize(values)}
		c := plotutil.Color(i)

		if s.summary.N > 0 {
			if err := addBand(p, times, s.summary, c); err != nil {
				return nil, err
			}
		}
		if err := addSeries(p, name, times, values, draw.LineStyle{Color: c, Width: vg.Points(1)}); err != nil {
			return nil, err
		}
		if req.ShowTrend {
			tr, err := cesmplot.TimeTrend(times, values)
			if err != nil {
				g.log().WithFields(logrus.Fields{
					"variable": req.Variable,
					"index":    name,
				}).Warnf("skipping trend: %v", err)
			} else {
				s.trend = &tr
				if err := addTrend(p, times, tr, c); err != nil {
					return nil, err
				}
			}
		}
		stats = append(stats, s)
	}
	for i, o := range req.Overlays {
		o = o.Select(req.Window)
		c := plotutil.Color(len(indices) + i)
		ls := draw.LineStyle{Color: c, Width: vg.Points(0.5)}
		if err := addSeries(p, o.Name, o.Time, o.Values, ls); err != nil {
			return nil, err
		}
		stats = append(stats, seriesStats{name: o.Name, summary: cesmplot.Summarize(o.Values)})
	}
	if preset.Map.Gridline.Width > 0 {
		if err := addGrid(p, preset.Map.Gridline); err != nil {
			return nil, err
		}
	}

	img, dc := newCanvas(preset)
	p.Draw(dc)

	parts := make([]string, len(stats))
	for i, s := range stats {
		parts[i] = s.String(v.Units)
	}
	caption := appendUserCaption(strings.Join(parts, "; "), req.Caption)

	w := effectiveWindow(req.Window, all)
	g.log().WithFields(logrus.Fields{
		"variable": req.Variable,
		"indices":  indices,
		"window":   w.String(),
		"preset":   preset.Name,
	}).Info("created time series figure")
	return finish(img, caption)
}

// newPlot returns a plot whose text follows the preset.
func newPlot(preset JournalPreset) (*plot.Plot, error) {
	p, err := plot.New()
	if err != nil {
		return nil, fmt.Errorf("figure: %v", err)
	}
	title, err := preset.textStyle(2, true)
	if err != nil {
		return nil, err
	}
	label, err := preset.textStyle(0, false)
	if err != nil {
		return nil, err
	}
	legend, err := preset.textStyle(-1, false)
	if err != nil {
		return nil, err
	}
	p.Title.TextStyle = title
	p.X.Label.TextStyle = label
	p.Y.Label.TextStyle = label
	p.X.Tick.Label = legend
	p.Y.Tick.Label = legend
	p.Legend.TextStyle = legend
	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.ThumbnailWidth = 0.25 * vg.Inch
	p.Legend.Padding = 0.75 * vg.Millimeter
	return p, nil
}

// axisLabel returns "name [units]", or the name alone when there are
// no units.
func axisLabel(name, units string) string {
	if units == "" {
		return name
	}
	return fmt.Sprintf("%s [%s]", name, units)
}

// segments splits a series into runs of finite values. Lines are broken
// where values are missing.
func segments(times []time.Time, values []float64) []plotter.XYs {
	var o []plotter.XYs
	var cur plotter.XYs
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			if len(cur) > 0 {
				o = append(o, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, struct{ X, Y float64 }{X: decimalYear(times[i]), Y: v})
	}
	if len(cur) > 0 {
		o = append(o, cur)
	}
	return o
}

// addSeries draws a series as lines, with isolated points as dots,
// and adds it to the legend.
func addSeries(p *plot.Plot, name string, times []time.Time, values []float64, ls draw.LineStyle) error {
	inLegend := false
	for _, seg := range segments(times, values) {
		if len(seg) == 1 {
			s, err := plotter.NewScatter(seg)
			if err != nil {
				return fmt.Errorf("figure: %v", err)
			}
			s.Color = ls.Color
			s.Radius = ls.Width
			s.Shape = draw.CircleGlyph{}
			p.Add(s)
			continue
		}
		l, err := plotter.NewLine(seg)
		if err != nil {
			return fmt.Errorf("figure: %v", err)
		}
		l.LineStyle = ls
		p.Add(l)
		if !inLegend {
			p.Legend.Add(name, l)
			inLegend = true
		}
	}
	return nil
}

// addBand draws a translucent band of mean ± one standard deviation
// and a dotted line at the mean.
func addBand(p *plot.Plot, times []time.Time, s cesmplot.Summary, c color.Color) error {
	x0, x1 := decimalYear(times[0]), decimalYear(times[len(times)-1])
	band, err := plotter.NewPolygon(plotter.XYs{
		{X: x0, Y: s.Mean - s.Std},
		{X: x1, Y: s.Mean - s.Std},
		{X: x1, Y: s.Mean + s.Std},
		{X: x0, Y: s.Mean + s.Std},
	})
	if err != nil {
		return fmt.Errorf("figure: %v", err)
	}
	nc := color.NRGBAModel.Convert(c).(color.NRGBA)
	band.Color = color.NRGBA{R: nc.R, G: nc.G, B: nc.B, A: 40}
	band.LineStyle.Width = 0
	p.Add(band)

	mean, err := plotter.NewLine(plotter.XYs{{X: x0, Y: s.Mean}, {X: x1, Y: s.Mean}})
	if err != nil {
		return fmt.Errorf("figure: %v", err)
	}
	mean.LineStyle = draw.LineStyle{
		Color:  c,
		Width:  vg.Points(0.5),
		Dashes: []vg.Length{vg.Points(1), vg.Points(1.5)},
	}
	p.Add(mean)
	return nil
}

// addTrend draws tr, which was fit against years since times[0], as a
// dashed line.
func addTrend(p *plot.Plot, times []time.Time, tr cesmplot.Trend, c color.Color) error {
	ends := []time.Time{times[0], times[len(times)-1]}
	yrs := cesmplot.YearsSince(times[0], ends)
	l, err := plotter.NewLine(plotter.XYs{
		{X: decimalYear(ends[0]), Y: tr.At(yrs[0])},
		{X: decimalYear(ends[1]), Y: tr.At(yrs[1])},
	})
	if err != nil {
		return fmt.Errorf("figure: %v", err)
	}
	l.LineStyle = draw.LineStyle{
		Color:  c,
		Width:  vg.Points(1),
		Dashes: []vg.Length{vg.Points(4), vg.Points(2)},
	}
	p.Add(l)
	return nil
}

// addGrid adds grid lines in the given style.
func addGrid(p *plot.Plot, spec LineSpec) error {
	ls, err := spec.lineStyle()
	if err != nil {
		return fmt.Errorf("figure: %v", err)
	}
	ls.Dashes = []vg.Length{vg.Points(1), vg.Points(1)}
	grid := plotter.NewGrid()
	grid.Vertical = ls
	grid.Horizontal = ls
	p.Add(grid)
	return nil
}

// yearTicks labels the major ticks of a decimal-year axis
// with whole years.
type yearTicks struct{}

func (yearTicks) Ticks(min, max float64) []plot.Tick {
	ticks := plot.DefaultTicks{}.Ticks(min, max)
	for i, t := range ticks {
		if t.Label == "" {
			continue
		}
		if t.Value == math.Trunc(t.Value) {
			ticks[i].Label = fmt.Sprintf("%.0f", t.Value)
		}
	}
	return ticks
}
