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
	"sort"
	"strings"

	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
)

// DefaultColormap is used when no colormap is requested.
const DefaultColormap = "RdBu_r"

var colormaps = map[string]func() (palette.ColorMap, error){
	"rdbu_r":    smooth(diverging(moreland.SmoothBlueRed)),
	"coolwarm":  smooth(diverging(moreland.SmoothBlueRed)),
	"rdbu":      reversed(diverging(moreland.SmoothBlueRed)),
	"brbg":      reversed(diverging(moreland.SmoothBlueTan)),
	"puor":      reversed(diverging(moreland.SmoothPurpleOrange)),
	"prgn":      smooth(diverging(moreland.SmoothGreenPurple)),
	"kindlmann": smooth(moreland.Kindlmann),
	"blackbody": smooth(moreland.BlackBody),
	"hot":       smooth(moreland.BlackBody),
	"greys": func() (palette.ColorMap, error) {
		cm, err := moreland.NewLuminance([]color.Color{
			color.NRGBA{A: 255},
			color.NRGBA{R: 255, G: 255, B: 255, A: 255},
		})
		if err != nil {
			return nil, err
		}
		return palette.Reverse(cm), nil
	},
}

// diverging adapts the moreland diverging constructors.
func diverging(f func() palette.DivergingColorMap) func() palette.ColorMap {
	return func() palette.ColorMap { return f() }
}

func smooth(f func() palette.ColorMap) func() (palette.ColorMap, error) {
	return func() (palette.ColorMap, error) { return f(), nil }
}

func reversed(f func() palette.ColorMap) func() (palette.ColorMap, error) {
	return func() (palette.ColorMap, error) { return palette.Reverse(f()), nil }
}

// Colormap returns a new instance of the named colormap. Names are
// not case sensitive and the empty name means DefaultColormap.
func Colormap(name string) (palette.ColorMap, error) {
	if name == "" {
		name = DefaultColormap
	}
	f, ok := colormaps[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("figure: unknown colormap %q; valid colormaps are %s",
			name, strings.Join(ColormapNames(), ", "))
	}
	return f()
}

// ColormapNames returns the valid colormap names.
func ColormapNames() []string {
	o := make([]string, 0, len(colormaps))
	for n := range colormaps {
		o = append(o, n)
	}
	sort.Strings(o)
	return o
}

// colorAt returns the color of v, clamped to the range of cm.
// Non-finite values are transparent.
func colorAt(cm palette.ColorMap, v float64) color.Color {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return color.Transparent
	}
	if v < cm.Min() {
		v = cm.Min()
	}
	if v > cm.Max() {
		v = cm.Max()
	}
	c, err := cm.At(v)
	if err != nil {
		return color.Transparent
	}
	return c
}
