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
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spatialmodel/cesmplot"
	"github.com/tealeg/xlsx"
)

// ReadIndexCSV reads index series from CSV data. The first row holds the
// column names. The first column is the time, as RFC 3339, YYYY-MM-DD,
// YYYY-MM or a (possibly fractional) year; each other column is one
// series. Empty cells and "NaN" are read as NaN.
func ReadIndexCSV(r io.Reader) ([]cesmplot.Series, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("cesmio: reading index table: %v", err)
	}
	return parseIndexTable(rows)
}

// ReadIndexFile reads index series from a .csv or .xlsx file. For
// spreadsheets the first sheet is read, with the same layout as
// ReadIndexCSV.
func ReadIndexFile(path string) ([]cesmplot.Series, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		f, err := xlsx.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("cesmio: opening %s: %v", path, err)
		}
		if len(f.Sheets) == 0 {
			return nil, fmt.Errorf("cesmio: %s has no sheets", path)
		}
		var rows [][]string
		for _, row := range f.Sheets[0].Rows {
			if row == nil {
				continue
			}
			r := make([]string, len(row.Cells))
			for i, c := range row.Cells {
				if c != nil {
					r[i] = c.Value
				}
			}
			rows = append(rows, r)
		}
		s, err := parseIndexTable(rows)
		if err != nil {
			return nil, fmt.Errorf("%v in %s", err, path)
		}
		return s, nil
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("cesmio: %v", err)
		}
		defer f.Close()
		s, err := ReadIndexCSV(f)
		if err != nil {
			return nil, fmt.Errorf("%v in %s", err, path)
		}
		return s, nil
	}
}

func parseIndexTable(rows [][]string) ([]cesmplot.Series, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("cesmio: index table is empty")
	}
	header := rows[0]
	if len(header) < 2 {
		return nil, fmt.Errorf("cesmio: index table needs a time column and at least one series")
	}
	o := make([]cesmplot.Series, len(header)-1)
	for i := range o {
		o[i].Name = strings.TrimSpace(header[i+1])
	}
	for line, row := range rows[1:] {
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}
		t, err := parseTableTime(row[0])
		if err != nil {
			return nil, fmt.Errorf("cesmio: index table row %d: %v", line+2, err)
		}
		for i := range o {
			v := math.NaN()
			if i+1 < len(row) {
				s := strings.TrimSpace(row[i+1])
				if s != "" && !strings.EqualFold(s, "nan") {
					v, err = strconv.ParseFloat(s, 64)
					if err != nil {
						return nil, fmt.Errorf("cesmio: index table row %d, column %s: %v", line+2, o[i].Name, err)
					}
				}
			}
			o[i].Time = append(o[i].Time, t)
			o[i].Values = append(o[i].Values, v)
		}
	}
	return o, nil
}

var tableTimeFormats = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02", "2006-01"}

func parseTableTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range tableTimeFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	y, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized time %q", s)
	}
	t, err := DecodeTime([]float64{y}, "", "")
	if err != nil {
		return time.Time{}, err
	}
	return t[0], nil
}
