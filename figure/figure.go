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

// Package figure renders time-series, spatial-mean, trend and
// correlation figures of CESM output, styled after journal presets,
// together with captions that summarize what is shown.
package figure

import (
	"bytes"
	"fmt"
	"image/color"
	"time"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/cesmplot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Generator creates figures from datasets.
type Generator struct {
	// Boxes and Diffs are the region boxes and difference indices
	// that index names are resolved against.
	Boxes cesmplot.BoxTable
	Diffs cesmplot.DiffTable

	// Coastlines, if not nil, are drawn on maps. Coordinates are
	// longitude (X) and latitude (Y) in degrees.
	Coastlines []geom.Geom

	// Borders, if not nil, are political boundaries drawn on maps
	// with the preset's Border style.
	Borders []geom.Geom

	// Log receives a message for each figure. If nil,
	// logrus.StandardLogger() is used.
	Log logrus.FieldLogger
}

// NewGenerator returns a generator that uses the built-in region boxes
// and difference indices and draws no coastlines.
func NewGenerator() *Generator {
	return &Generator{
		Boxes: cesmplot.BuiltinBoxes(),
		Diffs: cesmplot.BuiltinDiffIndices(),
	}
}

func (g *Generator) log() logrus.FieldLogger {
	if g.Log == nil {
		return logrus.StandardLogger()
	}
	return g.Log
}

func (g *Generator) engine() *cesmplot.Engine {
	return &cesmplot.Engine{Boxes: g.Boxes, Diffs: g.Diffs, Log: g.Log}
}

// Figure is a rendered figure.
type Figure struct {
	Canvas  *vgimg.Canvas
	PNG     []byte
	Caption string
}

// newCanvas returns a white canvas of the preset's size and resolution.
func newCanvas(p JournalPreset) (*vgimg.Canvas, draw.Canvas) {
	img := vgimg.NewWith(
		vgimg.UseWH(vg.Length(p.Width)*vg.Inch, vg.Length(p.Height)*vg.Inch),
		vgimg.UseDPI(p.DPI),
	)
	dc := draw.New(img)
	dc.FillPolygon(color.White, []vg.Point{
		{X: dc.Min.X, Y: dc.Min.Y},
		{X: dc.Max.X, Y: dc.Min.Y},
		{X: dc.Max.X, Y: dc.Max.Y},
		{X: dc.Min.X, Y: dc.Max.Y},
	})
	return img, dc
}

// finish encodes img as a PNG and bundles it with caption.
func finish(img *vgimg.Canvas, caption string) (*Figure, error) {
	b := new(bytes.Buffer)
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(b); err != nil {
		return nil, fmt.Errorf("figure: encoding png: %v", err)
	}
	return &Figure{Canvas: img, PNG: b.Bytes(), Caption: caption}, nil
}

// appendUserCaption adds a user supplied caption to an
// automatically generated one.
func appendUserCaption(auto, user string) string {
	if user == "" {
		return auto
	}
	return auto + " | " + user
}

// decimalYear returns t as a fractional calendar year.
func decimalYear(t time.Time) float64 {
	y := t.Year()
	start := time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(y+1, 1, 1, 0, 0, 0, 0, time.UTC)
	return float64(y) + float64(t.Sub(start))/float64(end.Sub(start))
}

// effectiveWindow fills in the open ends of w with the first and last
// of times.
func effectiveWindow(w cesmplot.TimeWindow, times []time.Time) cesmplot.TimeWindow {
	if len(times) == 0 {
		return w
	}
	first, last := times[0], times[0]
	for _, t := range times {
		if t.Before(first) {
			first = t
		}
		if t.After(last) {
			last = t
		}
	}
	if w.Start.IsZero() {
		w.Start = first
	}
	if w.End.IsZero() {
		w.End = last
	}
	return w
}
