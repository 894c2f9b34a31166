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
	"math"
	"strings"

	"github.com/spatialmodel/cesmplot"
)

// ColorbarMode specifies how the range of a map colorbar is chosen.
type ColorbarMode int

// The colorbar modes.
const (
	// Auto uses the data minimum and maximum.
	Auto ColorbarMode = iota

	// Robust uses the 2nd and 98th percentiles, taken as data values
	// (see cesmplot.Percentile) rather than interpolated between them.
	Robust

	// Symmetric centers the range on zero: ±max|v|.
	Symmetric

	// Manual uses the requested VMin and VMax.
	Manual
)

func (m ColorbarMode) String() string {
	switch m {
	case Auto:
		return "auto"
	case Robust:
		return "robust"
	case Symmetric:
		return "symmetric"
	case Manual:
		return "manual"
	default:
		return fmt.Sprintf("ColorbarMode(%d)", int(m))
	}
}

// ParseColorbarMode converts a name to a ColorbarMode.
func ParseColorbarMode(s string) (ColorbarMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return Auto, nil
	case "robust":
		return Robust, nil
	case "symmetric":
		return Symmetric, nil
	case "manual":
		return Manual, nil
	}
	return Auto, fmt.Errorf("figure: invalid colorbar mode %q; valid modes are auto, robust, symmetric and manual", s)
}

// ColorRange returns the colorbar range for values. The result always has
// lo < hi: a field with no finite values gets [0, 1] and a degenerate
// range is widened.
func ColorRange(values []float64, mode ColorbarMode, vmin, vmax float64) (lo, hi float64) {
	finite := cesmplot.Finite(values)
	if mode == Manual && isFinite(vmin) && isFinite(vmax) {
		lo, hi = vmin, vmax
		if lo > hi {
			lo, hi = hi, lo
		}
		return widen(lo, hi)
	}
	if len(finite) == 0 {
		return 0, 1
	}
	switch mode {
	case Robust:
		lo, hi = cesmplot.Percentile(finite, 2), cesmplot.Percentile(finite, 98)
	case Symmetric:
		var m float64
		for _, v := range finite {
			m = math.Max(m, math.Abs(v))
		}
		lo, hi = -m, m
	default:
		s := cesmplot.Summarize(finite)
		lo, hi = s.Min, s.Max
	}
	return widen(lo, hi)
}

func widen(lo, hi float64) (float64, float64) {
	if lo < hi {
		return lo, hi
	}
	d := math.Abs(lo) * 0.05
	if d == 0 {
		d = 0.5
	}
	return lo - d, hi + d
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
