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
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// LineSpec describes how a map line is drawn.
type LineSpec struct {
	Color  string  // hex color, e.g. "#222222"; empty means black
	Alpha  float64 // opacity in [0, 1]; 0 means opaque
	Width  float64 // points
	Dashed bool
}

// MapStyle holds the line and fill styles of map figures.
type MapStyle struct {
	Coastline, Border, Gridline LineSpec

	// Land and Ocean are hex fill colors. Empty means no fill.
	Land, Ocean string
}

// JournalPreset is a figure style that follows a journal's
// artwork guidelines.
type JournalPreset struct {
	Name          string
	DPI           int
	Width, Height float64 // inches
	FontSize      float64 // points
	FontFamily    string  // "Helvetica" or "Times"
	Map           MapStyle
}

// Names of the built-in presets.
const (
	Nature  = "Nature"
	Science = "Science"
	GRL     = "GRL"
	Default = "Default"
)

// Presets returns the built-in journal presets.
func Presets() map[string]JournalPreset {
	natureMap := MapStyle{
		Coastline: LineSpec{Color: "#000000", Width: 0.5},
		Border:    LineSpec{Color: "#808080", Width: 0.3},
		Gridline:  LineSpec{Color: "#808080", Alpha: 0.5, Width: 0.2, Dashed: true},
		Land:      "#f5f5f5",
		Ocean:     "#e0ffff",
	}
	scienceMap := MapStyle{
		Coastline: LineSpec{Color: "#222222", Width: 0.6},
		Border:    LineSpec{Color: "#444444", Width: 0.4},
		Gridline:  LineSpec{Color: "#666666", Alpha: 0.4, Width: 0.25, Dashed: true},
		Land:      "#f5f5f5",
		Ocean:     "#e6f2ff",
	}
	return map[string]JournalPreset{
		Nature: {
			Name: Nature, DPI: 600, Width: 7, Height: 5,
			FontSize: 8, FontFamily: "Helvetica", Map: natureMap,
		},
		Science: {
			Name: Science, DPI: 600, Width: 6.5, Height: 4.5,
			FontSize: 8, FontFamily: "Times", Map: scienceMap,
		},
		GRL: {
			Name: GRL, DPI: 300, Width: 6.5, Height: 4.5,
			FontSize: 9, FontFamily: "Helvetica", Map: natureMap,
		},
		Default: {
			Name: Default, DPI: 150, Width: 8, Height: 5,
			FontSize: 10, FontFamily: "Helvetica", Map: natureMap,
		},
	}
}

// PresetNames returns the names of the presets in p in sorted order.
func PresetNames(p map[string]JournalPreset) []string {
	o := make([]string, 0, len(p))
	for n := range p {
		o = append(o, n)
	}
	sort.Strings(o)
	return o
}

// LookupPreset returns the built-in preset with the given name.
// Names are not case sensitive.
func LookupPreset(name string) (JournalPreset, error) {
	return FindPreset(Presets(), name)
}

// FindPreset returns the preset in presets with the given name, which is
// not case sensitive. An empty name selects the Default preset.
func FindPreset(presets map[string]JournalPreset, name string) (JournalPreset, error) {
	if name == "" {
		name = Default
	}
	for n, p := range presets {
		if strings.EqualFold(n, name) {
			return p, nil
		}
	}
	return JournalPreset{}, fmt.Errorf("figure: unknown journal preset %q; valid presets are %s",
		name, strings.Join(PresetNames(presets), ", "))
}

// ReadPresets reads additional presets from TOML, where each table is
// named after the preset:
//
//	[Preset.Poster]
//	DPI = 200
//	Width = 16
//	Height = 9
//	FontSize = 24
//	FontFamily = "Helvetica"
//
// The presets are added to a copy of presets, which is returned.
// Omitted fields take the value of the Default preset.
func ReadPresets(r io.Reader, presets map[string]JournalPreset) (map[string]JournalPreset, error) {
	var file struct {
		Preset map[string]JournalPreset
	}
	if _, err := toml.DecodeReader(r, &file); err != nil {
		return nil, fmt.Errorf("figure: reading presets: %v", err)
	}
	o := make(map[string]JournalPreset, len(presets)+len(file.Preset))
	for n, p := range presets {
		o[n] = p
	}
	def := Presets()[Default]
	for n, p := range file.Preset {
		p.Name = n
		if p.DPI == 0 {
			p.DPI = def.DPI
		}
		if p.Width == 0 {
			p.Width = def.Width
		}
		if p.Height == 0 {
			p.Height = def.Height
		}
		if p.FontSize == 0 {
			p.FontSize = def.FontSize
		}
		if p.FontFamily == "" {
			p.FontFamily = def.FontFamily
		}
		if p.Map == (MapStyle{}) {
			p.Map = def.Map
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		o[n] = p
	}
	return o, nil
}

// Validate checks that p can be rendered.
func (p JournalPreset) Validate() error {
	if p.DPI <= 0 || p.Width <= 0 || p.Height <= 0 || p.FontSize <= 0 {
		return fmt.Errorf("figure: preset %s: DPI, size and font size must be positive", p.Name)
	}
	if _, err := fontName(p.FontFamily, false); err != nil {
		return fmt.Errorf("figure: preset %s: %v", p.Name, err)
	}
	for _, c := range []string{p.Map.Coastline.Color, p.Map.Border.Color, p.Map.Gridline.Color, p.Map.Land, p.Map.Ocean} {
		if _, err := parseColor(c, 1); err != nil {
			return fmt.Errorf("figure: preset %s: %v", p.Name, err)
		}
	}
	return nil
}

// fontName returns the name of the vg font of a family.
func fontName(family string, bold bool) (string, error) {
	switch strings.ToLower(strings.TrimSpace(family)) {
	case "", "helvetica", "arial", "sans-serif":
		if bold {
			return "Helvetica-Bold", nil
		}
		return "Helvetica", nil
	case "times", "times new roman", "times-roman", "serif":
		if bold {
			return "Times-Bold", nil
		}
		return "Times-Roman", nil
	case "courier", "monospace":
		if bold {
			return "Courier-Bold", nil
		}
		return "Courier", nil
	default:
		return "", fmt.Errorf("unsupported font family %q", family)
	}
}

// textStyle returns a text style in the preset's font, with the font
// size offset by delta points.
func (p JournalPreset) textStyle(delta float64, bold bool) (draw.TextStyle, error) {
	name, err := fontName(p.FontFamily, bold)
	if err != nil {
		return draw.TextStyle{}, err
	}
	size := p.FontSize + delta
	if size < 1 {
		size = 1
	}
	font, err := vg.MakeFont(name, vg.Points(size))
	if err != nil {
		return draw.TextStyle{}, fmt.Errorf("figure: %v", err)
	}
	return draw.TextStyle{Color: color.Black, Font: font}, nil
}

// lineStyle converts s to a draw.LineStyle.
func (s LineSpec) lineStyle() (draw.LineStyle, error) {
	alpha := s.Alpha
	if alpha == 0 {
		alpha = 1
	}
	c, err := parseColor(s.Color, alpha)
	if err != nil {
		return draw.LineStyle{}, err
	}
	if c == nil {
		c = color.Black
	}
	ls := draw.LineStyle{Color: c, Width: vg.Points(s.Width)}
	if s.Dashed {
		ls.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}
	}
	return ls, nil
}

// parseColor parses a "#rrggbb" color. It returns nil for an empty string.
func parseColor(s string, alpha float64) (color.Color, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	h := strings.TrimPrefix(s, "#")
	if len(h) != 6 {
		return nil, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid color %q", s)
	}
	a := uint8(alpha*255 + 0.5)
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: a}, nil
}
