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
	"time"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/cesmplot"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// MapRequest specifies a map figure.
type MapRequest struct {
	Variable string
	Window   cesmplot.TimeWindow
	Preset   JournalPreset

	// Colormap is the name of the colormap. See Colormap.
	Colormap string

	// Indices are index names whose region boxes are outlined when
	// ShowBoxes is true. Names that do not refer to a box or a
	// difference index are ignored.
	Indices   []string
	ShowBoxes bool

	ColorbarMode ColorbarMode
	VMin, VMax   float64 // used when ColorbarMode is Manual

	// CorrelateWith is the index that CorrelationMap correlates each
	// cell with. IndexVariable is the variable the index is computed
	// from; if empty, Variable is used.
	CorrelateWith string
	IndexVariable string

	// Caption is appended to the generated caption.
	Caption string
}

// mapData is a reduced two-dimensional field ready to be drawn.
type mapData struct {
	field   *cesmplot.Field
	title   string
	caption string
	units   string
}

// SpatialMap draws the mean of req.Variable over req.Window at every
// grid cell.
func (g *Generator) SpatialMap(ds *cesmplot.Dataset, req MapRequest) (*Figure, error) {
	f, err := ds.Variable(req.Variable)
	if err != nil {
		return nil, err
	}
	f = maskFill(f)
	window := "all times"
	if f.HasDim(cesmplot.TimeDim) {
		f, err = f.SelectTime(req.Window)
		if err != nil {
			return nil, err
		}
		window = effectiveWindow(req.Window, f.Time).String()
		f = f.MeanOver(cesmplot.TimeDim)
	}
	return g.drawMap(req, mapData{
		field:   f,
		title:   fmt.Sprintf("%s Spatial Mean", req.Variable),
		caption: fmt.Sprintf("Spatial mean of %s (%s)", req.Variable, window),
		units:   f.Units,
	})
}

// TrendMap draws the least-squares slope of req.Variable against the
// time step index at every grid cell.
func (g *Generator) TrendMap(ds *cesmplot.Dataset, req MapRequest) (*Figure, error) {
	f, err := ds.Variable(req.Variable)
	if err != nil {
		return nil, err
	}
	f, err = maskFill(f).SelectTime(req.Window)
	if err != nil {
		return nil, err
	}
	tr, err := cesmplot.TrendField(f)
	if err != nil {
		return nil, err
	}
	return g.drawMap(req, mapData{
		field: tr,
		title: fmt.Sprintf("%s Linear Trend", req.Variable),
		caption: fmt.Sprintf("Linear trend of %s (%s)", req.Variable,
			effectiveWindow(req.Window, f.Time)),
		units: tr.Units,
	})
}

// CorrelationMap draws the correlation between the series at every grid
// cell of req.Variable and the index req.CorrelateWith.
func (g *Generator) CorrelationMap(ds *cesmplot.Dataset, req MapRequest) (*Figure, error) {
	if req.CorrelateWith == "" {
		return nil, fmt.Errorf("figure: correlation map of %s needs an index to correlate with", req.Variable)
	}
	f, err := ds.Variable(req.Variable)
	if err != nil {
		return nil, err
	}
	f, err = maskFill(f).SelectTime(req.Window)
	if err != nil {
		return nil, err
	}
	iv := req.IndexVariable
	if iv == "" {
		iv = req.Variable
	}
	idx, err := g.engine().Compute(ds, iv, req.CorrelateWith)
	if err != nil {
		return nil, err
	}
	times, values, err := idx.Series()
	if err != nil {
		return nil, err
	}
	r, err := cesmplot.CorrelationField(f, alignSeries(f.Time, times, values))
	if err != nil {
		return nil, err
	}
	if req.ColorbarMode == Auto {
		req.ColorbarMode, req.VMin, req.VMax = Manual, -1, 1
	}
	return g.drawMap(req, mapData{
		field: r,
		title: fmt.Sprintf("%s Correlation with %s", req.Variable, req.CorrelateWith),
		caption: fmt.Sprintf("Correlation of %s with %s %s (%s)", req.Variable, iv, req.CorrelateWith,
			effectiveWindow(req.Window, f.Time)),
		units: r.Units,
	})
}

// maskFill returns f with its declared fill values replaced by NaN.
// f itself is returned if it has no fill values left to mask.
func maskFill(f *cesmplot.Field) *cesmplot.Field {
	if len(f.FillValues) == 0 {
		return f
	}
	var o *cesmplot.Field
	for i, v := range f.Data.Elements {
		for _, fv := range f.FillValues {
			if v == fv {
				if o == nil {
					o = f.Copy()
				}
				o.Data.Elements[i] = math.NaN()
			}
		}
	}
	if o == nil {
		return f
	}
	return o
}

// alignSeries returns the values of the series (times, values) at each
// of at, or NaN where the series has no value.
func alignSeries(at, times []time.Time, values []float64) []float64 {
	byTime := make(map[int64]float64, len(times))
	for i, t := range times {
		byTime[t.UnixNano()] = values[i]
	}
	o := make([]float64, len(at))
	for i, t := range at {
		v, ok := byTime[t.UnixNano()]
		if !ok {
			v = math.NaN()
		}
		o[i] = v
	}
	return o
}

// drawMap renders a reduced field as a map with a colorbar.
func (g *Generator) drawMap(req MapRequest, m mapData) (*Figure, error) {
	preset := req.Preset
	if preset.Name == "" {
		preset = Presets()[Default]
	}
	if err := preset.Validate(); err != nil {
		return nil, err
	}
	cm, err := Colormap(req.Colormap)
	if err != nil {
		return nil, err
	}

	cells, xLabel, yLabel, geographic := gridCells(m.field)
	lo, hi := ColorRange(cells.Values, req.ColorbarMode, req.VMin, req.VMax)
	cm.SetMax(hi)
	cm.SetMin(lo)
	cells.ColorMap = cm

	p, err := newPlot(preset)
	if err != nil {
		return nil, err
	}
	p.Title.Text = m.title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	xmin, xmax, ymin, ymax := cells.DataRange()
	p.X.Min, p.X.Max, p.Y.Min, p.Y.Max = xmin, xmax, ymin, ymax

	style := preset.Map
	if geographic {
		if cells.Background, err = parseColor(style.Ocean, 1); err != nil {
			return nil, err
		}
	}
	p.Add(cells)
	if geographic && g.Coastlines != nil {
		land, err := parseColor(style.Land, 1)
		if err != nil {
			return nil, err
		}
		coast, err := style.Coastline.lineStyle()
		if err != nil {
			return nil, err
		}
		if land != nil {
			// Land shows only where there is no data.
			over := *cells
			over.Background = nil
			p.Add(&geomLayer{Geoms: landPolygons(g.Coastlines), Fill: land}, &over)
		}
		p.Add(&geomLayer{Geoms: g.Coastlines, LineStyle: coast})
	}
	if geographic && g.Borders != nil {
		border, err := style.Border.lineStyle()
		if err != nil {
			return nil, err
		}
		p.Add(&geomLayer{Geoms: g.Borders, LineStyle: border})
	}
	if style.Gridline.Width > 0 {
		if err := addGrid(p, style.Gridline); err != nil {
			return nil, err
		}
	}
	if geographic && req.ShowBoxes {
		p.Add(&geomLayer{
			Geoms: g.boxOutlines(req.Indices),
			LineStyle: draw.LineStyle{
				Color:  color.Black,
				Width:  vg.Points(1),
				Dashes: []vg.Length{vg.Points(4), vg.Points(2)},
			},
		})
	}

	cb, err := newPlot(preset)
	if err != nil {
		return nil, err
	}
	cb.Add(&plotter.ColorBar{ColorMap: cm, Vertical: true})
	cb.HideX()
	cb.Y.Label.Text = axisLabel(m.field.Name, m.units)
	cb.Y.Padding = 0

	img, dc := newCanvas(preset)
	cbWidth := vg.Length(preset.FontSize)*vg.Points(5) + 0.25*vg.Inch
	mapC, cbC := splitHorizontal(dc, dc.Max.X-dc.Min.X-cbWidth)
	p.Draw(mapC)
	// Align the colorbar with the plotting area of the map.
	pad := vg.Length(preset.FontSize+2) * vg.Points(2)
	cb.Draw(draw.Crop(cbC, 0, 0, pad, -pad))

	caption := m.caption
	if m.units != "" {
		caption += fmt.Sprintf(" [%s]", m.units)
	}
	caption = appendUserCaption(caption, req.Caption)

	g.log().WithFields(logrus.Fields{
		"variable": req.Variable,
		"title":    m.title,
		"range":    []float64{lo, hi},
		"colormap": req.Colormap,
		"preset":   preset.Name,
	}).Info("created map figure")
	return finish(img, caption)
}

// splitHorizontal splits c at x.
func splitHorizontal(c draw.Canvas, x vg.Length) (left, right draw.Canvas) {
	return draw.Crop(c, 0, c.Min.X-c.Max.X+x, 0, 0), draw.Crop(c, x, 0, 0, 0)
}

// gridCells arranges f as a grid of cells. Fields with latitude and
// longitude are drawn in geographic coordinates; other fields are drawn
// by array index over their last two dimensions. Any other dimensions
// are averaged.
func gridCells(f *cesmplot.Field) (cells *cellGrid, xLabel, yLabel string, geographic bool) {
	var rowDim, colDim string
	switch {
	case f.HasLatLon():
		f = f.MeanExcept(cesmplot.LatDim, cesmplot.LonDim)
		rowDim, colDim = cesmplot.LatDim, cesmplot.LonDim
		xLabel, yLabel, geographic = "Longitude (°E)", "Latitude (°N)", true
	case len(f.Dims) >= 2:
		rowDim, colDim = f.Dims[len(f.Dims)-2], f.Dims[len(f.Dims)-1]
		f = f.MeanExcept(rowDim, colDim)
		xLabel, yLabel = colDim, rowDim
	case len(f.Dims) == 1:
		colDim = f.Dims[0]
		xLabel = colDim
	}

	nRow, nCol := 1, 1
	rowStride, colStride := 0, 0
	st := make([]int, len(f.Data.Shape))
	s := 1
	for i := len(st) - 1; i >= 0; i-- {
		st[i] = s
		s *= f.Data.Shape[i]
	}
	if i := f.DimIndex(rowDim); i >= 0 && rowDim != "" {
		nRow, rowStride = f.Data.Shape[i], st[i]
	}
	if i := f.DimIndex(colDim); i >= 0 && colDim != "" {
		nCol, colStride = f.Data.Shape[i], st[i]
	}

	cells = &cellGrid{Values: make([]float64, nRow*nCol)}
	for r := 0; r < nRow; r++ {
		for c := 0; c < nCol; c++ {
			cells.Values[r*nCol+c] = f.Data.Elements[r*rowStride+c*colStride]
		}
	}
	if geographic {
		cells.XEdges, cells.YEdges = edges(f.Lon), edges(f.Lat)
	} else {
		cells.XEdges, cells.YEdges = indexEdges(nCol), indexEdges(nRow)
	}
	return cells, xLabel, yLabel, geographic
}

// boxOutlines returns the outlines of the region boxes of the
// named indices. Both boxes of a difference index are included.
func (g *Generator) boxOutlines(names []string) []geom.Geom {
	var o []geom.Geom
	for _, n := range names {
		idx, err := cesmplot.ParseIndex(n, g.Boxes, g.Diffs)
		if err != nil {
			continue
		}
		switch t := idx.(type) {
		case cesmplot.BoxIndex:
			o = append(o, t.Box.Polygon())
		case cesmplot.ZonalDiff:
			o = append(o, t.Spec.West.Polygon(), t.Spec.East.Polygon())
		}
	}
	return o
}

// plotterCheck makes sure the custom layers satisfy the plot interfaces.
var (
	_ plot.Plotter    = &cellGrid{}
	_ plot.DataRanger = &cellGrid{}
	_ plot.Plotter    = &geomLayer{}
)
