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
	"math"
	"strconv"
	"strings"
	"time"
)

// Calendar is a CF-conventions calendar.
type Calendar int

// These are the supported calendars. Julian dates are treated
// as proleptic Gregorian.
const (
	Standard Calendar = iota
	NoLeap
	AllLeap
	Day360
)

// ParseCalendar returns the calendar with the given CF name.
// An empty name is the standard calendar.
func ParseCalendar(name string) (Calendar, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "standard", "gregorian", "proleptic_gregorian", "julian":
		return Standard, nil
	case "noleap", "365_day":
		return NoLeap, nil
	case "all_leap", "366_day":
		return AllLeap, nil
	case "360_day":
		return Day360, nil
	default:
		return Standard, fmt.Errorf("cesmio: unsupported calendar %q", name)
	}
}

var noLeapMonths = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

func (c Calendar) monthLength(year, month int) int {
	switch c {
	case Day360:
		return 30
	case AllLeap:
		if month == 2 {
			return 29
		}
		return noLeapMonths[month-1]
	default:
		return noLeapMonths[month-1]
	}
}

func (c Calendar) yearLength() int {
	switch c {
	case Day360:
		return 360
	case AllLeap:
		return 366
	default:
		return 365
	}
}

// dayNumber returns the number of days from 0001-01-01 to the given
// date in a calendar with fixed year lengths.
func (c Calendar) dayNumber(year, month, day int) int {
	n := (year - 1) * c.yearLength()
	for m := 1; m < month; m++ {
		n += c.monthLength(year, m)
	}
	return n + day - 1
}

// date is the inverse of dayNumber.
func (c Calendar) date(n int) (year, month, day int) {
	yl := c.yearLength()
	year = n/yl + 1
	n = n % yl
	if n < 0 {
		n += yl
		year--
	}
	month = 1
	for n >= c.monthLength(year, month) {
		n -= c.monthLength(year, month)
		month++
	}
	return year, month, n + 1
}

// cfUnit is a parsed CF time unit, e.g. "days since 1850-01-01 00:00:00".
type cfUnit struct {
	seconds float64 // length of one unit

	refYear, refMonth, refDay int
	refSeconds                float64 // seconds into refDay
}

func parseUnits(units string) (cfUnit, error) {
	var u cfUnit
	parts := strings.SplitN(strings.TrimSpace(units), " since ", 2)
	if len(parts) != 2 {
		return u, fmt.Errorf("cesmio: invalid time units %q", units)
	}
	switch strings.ToLower(strings.TrimSpace(parts[0])) {
	case "days", "day", "d":
		u.seconds = 86400
	case "hours", "hour", "hrs", "hr", "h":
		u.seconds = 3600
	case "minutes", "minute", "mins", "min":
		u.seconds = 60
	case "seconds", "second", "secs", "sec", "s":
		u.seconds = 1
	default:
		return u, fmt.Errorf("cesmio: unsupported time unit %q", parts[0])
	}

	ref := strings.TrimSpace(parts[1])
	ref = strings.TrimSuffix(ref, "UTC")
	ref = strings.TrimSuffix(strings.TrimSpace(ref), "Z")
	ref = strings.Replace(ref, "T", " ", 1)
	fields := strings.Fields(ref)
	if len(fields) == 0 {
		return u, fmt.Errorf("cesmio: invalid time units %q", units)
	}
	ymd := strings.Split(fields[0], "-")
	if len(ymd) != 3 {
		return u, fmt.Errorf("cesmio: invalid reference date in time units %q", units)
	}
	var err error
	if u.refYear, err = strconv.Atoi(ymd[0]); err != nil {
		return u, fmt.Errorf("cesmio: invalid reference year in %q: %v", units, err)
	}
	if u.refMonth, err = strconv.Atoi(ymd[1]); err != nil {
		return u, fmt.Errorf("cesmio: invalid reference month in %q: %v", units, err)
	}
	if u.refDay, err = strconv.Atoi(ymd[2]); err != nil {
		return u, fmt.Errorf("cesmio: invalid reference day in %q: %v", units, err)
	}
	if len(fields) > 1 {
		hms := strings.Split(fields[1], ":")
		mult := 3600.
		for _, s := range hms {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return u, fmt.Errorf("cesmio: invalid reference time in %q: %v", units, err)
			}
			u.refSeconds += v * mult
			mult /= 60
		}
	}
	return u, nil
}

// DecodeTime converts CF time values to times. If units is empty, the
// values are taken to be (possibly fractional) calendar years.
func DecodeTime(values []float64, units, calendar string) ([]time.Time, error) {
	o := make([]time.Time, len(values))
	if strings.TrimSpace(units) == "" {
		for i, v := range values {
			y := math.Floor(v)
			t0 := time.Date(int(y), time.January, 1, 0, 0, 0, 0, time.UTC)
			t1 := t0.AddDate(1, 0, 0)
			o[i] = t0.Add(time.Duration((v - y) * float64(t1.Sub(t0))))
		}
		return o, nil
	}
	cal, err := ParseCalendar(calendar)
	if err != nil {
		return nil, err
	}
	u, err := parseUnits(units)
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("cesmio: invalid time value %g at index %d", v, i)
		}
		secs := v*u.seconds + u.refSeconds
		days := math.Floor(secs / 86400)
		rem := time.Duration((secs - days*86400) * float64(time.Second)).Round(time.Millisecond)
		if cal == Standard {
			base := time.Date(u.refYear, time.Month(u.refMonth), u.refDay, 0, 0, 0, 0, time.UTC)
			o[i] = base.AddDate(0, 0, int(days)).Add(rem)
			continue
		}
		n := cal.dayNumber(u.refYear, u.refMonth, u.refDay) + int(days)
		y, m, d := cal.date(n)
		if dm := daysIn(y, m); d > dm {
			// 360_day dates such as February 30.
			d = dm
		}
		o[i] = time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC).Add(rem)
	}
	return o, nil
}

// daysIn returns the number of days in a month of the standard calendar.
func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// EncodeTime converts times to values in days since the first time
// at midnight, in the standard calendar.
func EncodeTime(times []time.Time) (values []float64, units string) {
	if len(times) == 0 {
		return nil, "days since 1970-01-01 00:00:00"
	}
	t0 := times[0].UTC()
	ref := time.Date(t0.Year(), t0.Month(), t0.Day(), 0, 0, 0, 0, time.UTC)
	values = make([]float64, len(times))
	for i, t := range times {
		values[i] = float64(t.Unix()-ref.Unix())/86400 + float64(t.Nanosecond())/86400e9
	}
	return values, "days since " + ref.Format("2006-01-02 15:04:05")
}
