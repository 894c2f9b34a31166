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
	"image/color"
	"math"

	"github.com/ctessum/geom"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// cellGrid is a plot.Plotter that fills one polygon per grid cell.
// Cells with non-finite values are left unfilled.
type cellGrid struct {
	// XEdges and YEdges are the cell boundaries; there is one more
	// edge than there are columns or rows.
	XEdges, YEdges []float64

	// Values holds the cell values in row-major order.
	Values []float64

	ColorMap palette.ColorMap

	// Background, if not nil, fills the extent of the grid
	// before the cells are drawn.
	Background color.Color
}

// edges returns cell boundaries halfway between centers, extended by
// half a cell at each end.
func edges(centers []float64) []float64 {
	n := len(centers)
	o := make([]float64, n+1)
	if n == 1 {
		o[0], o[1] = centers[0]-0.5, centers[0]+0.5
		return o
	}
	for i := 1; i < n; i++ {
		o[i] = (centers[i-1] + centers[i]) / 2
	}
	o[0] = centers[0] - (o[1] - centers[0])
	o[n] = centers[n-1] + (centers[n-1] - o[n-1])
	return o
}

// indexEdges returns the edges of n cells centered on 0, 1, ..., n-1.
func indexEdges(n int) []float64 {
	o := make([]float64, n+1)
	for i := range o {
		o[i] = float64(i) - 0.5
	}
	return o
}

// Plot implements the plot.Plotter interface.
func (g *cellGrid) Plot(c draw.Canvas, p *plot.Plot) {
	trX, trY := p.Transforms(&c)
	if g.Background != nil {
		xmin, xmax, ymin, ymax := g.DataRange()
		c.FillPolygon(g.Background, c.ClipPolygonXY([]vg.Point{
			{X: trX(xmin), Y: trY(ymin)},
			{X: trX(xmax), Y: trY(ymin)},
			{X: trX(xmax), Y: trY(ymax)},
			{X: trX(xmin), Y: trY(ymax)},
		}))
	}
	nx := len(g.XEdges) - 1
	for j := 0; j < len(g.YEdges)-1; j++ {
		y0, y1 := trY(g.YEdges[j]), trY(g.YEdges[j+1])
		for i := 0; i < nx; i++ {
			v := g.Values[j*nx+i]
			if !isFinite(v) {
				continue
			}
			x0, x1 := trX(g.XEdges[i]), trX(g.XEdges[i+1])
			pts := c.ClipPolygonXY([]vg.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}})
			if len(pts) == 0 {
				continue
			}
			c.FillPolygon(colorAt(g.ColorMap, v), pts)
		}
	}
}

// DataRange implements the plot.DataRanger interface.
func (g *cellGrid) DataRange() (xmin, xmax, ymin, ymax float64) {
	xmin, xmax = minMax(g.XEdges)
	ymin, ymax = minMax(g.YEdges)
	return
}

func minMax(x []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range x {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// geomLayer is a plot.Plotter that draws geometries given in
// longitude and latitude degrees. Every geometry is also drawn shifted
// by ±360° so that features cross the edges of a 0–360° map.
type geomLayer struct {
	Geoms []geom.Geom
	draw.LineStyle

	// Fill, if not nil, fills polygons.
	Fill color.Color
}

var wrapOffsets = []float64{-360, 0, 360}

// Plot implements the plot.Plotter interface.
func (l *geomLayer) Plot(c draw.Canvas, p *plot.Plot) {
	trX, trY := p.Transforms(&c)
	path := func(pts []geom.Point, dx float64) []vg.Point {
		o := make([]vg.Point, len(pts))
		for i, pt := range pts {
			o[i] = vg.Point{X: trX(pt.X + dx), Y: trY(pt.Y)}
		}
		return o
	}
	var rings func(g geom.Geom) ([][]geom.Point, bool)
	rings = func(g geom.Geom) ([][]geom.Point, bool) {
		switch t := g.(type) {
		case geom.Polygon:
			o := make([][]geom.Point, len(t))
			for i, r := range t {
				o[i] = r
			}
			return o, true
		case geom.MultiPolygon:
			var o [][]geom.Point
			for _, pg := range t {
				r, _ := rings(pg)
				o = append(o, r...)
			}
			return o, true
		case geom.LineString:
			return [][]geom.Point{t}, false
		case geom.MultiLineString:
			o := make([][]geom.Point, len(t))
			for i, ls := range t {
				o[i] = ls
			}
			return o, false
		}
		return nil, false
	}
	for _, g := range l.Geoms {
		rr, closed := rings(g)
		for _, dx := range wrapOffsets {
			if closed && l.Fill != nil {
				for _, r := range rr {
					if pts := c.ClipPolygonXY(path(r, dx)); len(pts) > 0 {
						c.FillPolygon(l.Fill, pts)
					}
				}
			}
			if l.LineStyle.Width <= 0 {
				continue
			}
			for _, r := range rr {
				c.StrokeLines(l.LineStyle, c.ClipLinesXY(path(r, dx))...)
			}
		}
	}
}
