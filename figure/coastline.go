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

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
)

// ReadCoastlines reads coastline, land or border geometry from a shapefile
// in geographic (longitude, latitude) coordinates. Points are not
// supported and are skipped.
func ReadCoastlines(path string) ([]geom.Geom, error) {
	d, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("figure: opening coastline shapefile: %v", err)
	}
	defer d.Close()
	var o []geom.Geom
	for {
		g, _, more := d.DecodeRowFields()
		if !more {
			break
		}
		switch g.(type) {
		case geom.Polygon, geom.MultiPolygon, geom.LineString, geom.MultiLineString:
			o = append(o, g)
		}
	}
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("figure: reading coastline shapefile %s: %v", path, err)
	}
	return o, nil
}

// landPolygons returns the polygonal geometries in gs.
func landPolygons(gs []geom.Geom) []geom.Geom {
	var o []geom.Geom
	for _, g := range gs {
		if _, ok := g.(geom.Polygonal); ok {
			o = append(o, g)
		}
	}
	return o
}
