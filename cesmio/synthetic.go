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

package cesmio

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/spatialmodel/cesmplot"
)

// SyntheticConfig describes a generated dataset with a single
// (time, lat, lon) variable.
type SyntheticConfig struct {
	Variable    string
	Units       string
	Description string

	Start   time.Time
	NTime   int
	Monthly bool // time step is one month rather than one year

	Lat  [2]float64 // first and last latitude
	NLat int
	Lon  [2]float64 // first and last longitude
	NLon int

	// Each value is Mean + Trend*t + Noise*u, where t is the time
	// index and u is uniform in [0, 1).
	Mean, Trend, Noise float64

	Seed int64
}

// DefaultSynthetic returns the configuration of the standard test file:
// annual d18Op from 1850 through 2005 on a 36 by 72 global grid.
func DefaultSynthetic() SyntheticConfig {
	return SyntheticConfig{
		Variable:    "d18Op",
		Units:       "per mil",
		Description: "Oxygen isotope ratio in precipitation",
		Start:       time.Date(1850, time.January, 1, 0, 0, 0, 0, time.UTC),
		NTime:       156,
		Lat:         [2]float64{-90, 90},
		NLat:        36,
		Lon:         [2]float64{0, 355},
		NLon:        72,
		Noise:       1,
		Seed:        1,
	}
}

// Synthetic generates a dataset from cfg. The same configuration always
// produces the same values.
func Synthetic(cfg SyntheticConfig) (*cesmplot.Dataset, error) {
	if cfg.Variable == "" {
		return nil, fmt.Errorf("cesmio: synthetic dataset needs a variable name")
	}
	if cfg.NTime < 1 || cfg.NLat < 1 || cfg.NLon < 1 {
		return nil, fmt.Errorf("cesmio: invalid synthetic dataset shape %d×%d×%d",
			cfg.NTime, cfg.NLat, cfg.NLon)
	}
	f := cesmplot.NewField(cfg.Variable,
		[]string{cesmplot.TimeDim, cesmplot.LatDim, cesmplot.LonDim},
		cfg.NTime, cfg.NLat, cfg.NLon)
	f.Units = cfg.Units
	f.Description = cfg.Description
	f.Time = make([]time.Time, cfg.NTime)
	for i := range f.Time {
		if cfg.Monthly {
			f.Time[i] = cfg.Start.AddDate(0, i, 0)
		} else {
			f.Time[i] = cfg.Start.AddDate(i, 0, 0)
		}
	}
	f.Lat = linspace(cfg.Lat[0], cfg.Lat[1], cfg.NLat)
	lon, order := normalizeLon(linspace(cfg.Lon[0], cfg.Lon[1], cfg.NLon))
	if order != nil {
		return nil, fmt.Errorf("cesmio: synthetic longitudes %g to %g are not increasing in [0, 360)",
			cfg.Lon[0], cfg.Lon[1])
	}
	f.Lon = lon

	r := rand.New(rand.NewSource(cfg.Seed))
	n := cfg.NLat * cfg.NLon
	for t := 0; t < cfg.NTime; t++ {
		for j := 0; j < n; j++ {
			f.Data.Elements[t*n+j] = cfg.Mean + cfg.Trend*float64(t) + cfg.Noise*r.Float64()
		}
	}

	ds := cesmplot.NewDataset("synthetic")
	ds.Attributes["source"] = "cesmplot synthetic data"
	ds.AddVariable(f)
	return ds, nil
}

func linspace(start, end float64, n int) []float64 {
	o := make([]float64, n)
	if n == 1 {
		o[0] = start
		return o
	}
	for i := range o {
		o[i] = start + (end-start)*float64(i)/float64(n-1)
	}
	return o
}
