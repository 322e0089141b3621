// Package disruption turns calendar exception records into monthly
// service-removal statistics.
//
// A record counts as removed when its exception type is 2. Any other code,
// including missing or unknown ones, counts as not removed. Records whose
// date does not parse as YYYYMMDD have no month: they are kept in the table
// but excluded from every month-keyed view.
package disruption

import (
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"transitrisk/internal/gtfs"
)

// ExceptionRemoved is the GTFS exception_type for a removed service.
const ExceptionRemoved = 2

// dateLayout is the compact calendar_dates date format.
const dateLayout = "20060102"

// Exception is a calendar exception with its derived columns.
type Exception struct {
	ServiceID     string
	RawDate       string
	Date          time.Time // zero when RawDate does not parse
	ExceptionType string
	Removed       int // 1 iff ExceptionType is 2
	Month         int // 1..12, or 0 when undefined
}

// HasMonth reports whether the record takes part in month-keyed statistics.
func (e Exception) HasMonth() bool { return e.Month != 0 }

// MonthRate is one point of the monthly trend.
type MonthRate struct {
	Month int     `json:"month"`
	Rate  float64 `json:"rate"`
}

// ValidMonth reports whether m is a selectable calendar month.
func ValidMonth(m int) bool { return m >= 1 && m <= 12 }

// ClassifyRemoved returns 1 iff exceptionType is 2, else 0.
func ClassifyRemoved(exceptionType string) int {
	n, err := strconv.ParseFloat(strings.TrimSpace(exceptionType), 64)
	if err != nil || n != ExceptionRemoved {
		return 0
	}
	return 1
}

// DeriveMonth returns the calendar month of a YYYYMMDD date, or 0 if it does not parse.
func DeriveMonth(date string) int {
	t, ok := parseDate(date)
	if !ok {
		return 0
	}
	return int(t.Month())
}

func parseDate(date string) (time.Time, bool) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(date))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Derive adds the removed and month columns to raw exception rows.
func Derive(dates []gtfs.CalendarDate) []Exception {
	out := make([]Exception, 0, len(dates))
	for _, d := range dates {
		e := Exception{
			ServiceID:     d.ServiceID,
			RawDate:       d.Date,
			ExceptionType: d.ExceptionType,
			Removed:       ClassifyRemoved(d.ExceptionType),
		}
		if t, ok := parseDate(d.Date); ok {
			e.Date = t
			e.Month = int(t.Month())
		}
		out = append(out, e)
	}
	return out
}

// FilterByMonth returns the records whose month equals month. Records
// without a month never match.
func FilterByMonth(table []Exception, month int) []Exception {
	var out []Exception
	if !ValidMonth(month) {
		return out
	}
	for _, e := range table {
		if e.Month == month {
			out = append(out, e)
		}
	}
	return out
}

// RemovalRate is the mean of Removed over subset, or 0 when subset is empty.
func RemovalRate(subset []Exception) float64 {
	if len(subset) == 0 {
		return 0
	}
	xs := make([]float64, len(subset))
	for i, e := range subset {
		xs[i] = float64(e.Removed)
	}
	return stat.Mean(xs, nil)
}

// RemovedCount is the number of removed records in subset.
func RemovedCount(subset []Exception) int {
	n := 0
	for _, e := range subset {
		n += e.Removed
	}
	return n
}

// ActiveCount is the number of records in subset that are not removals.
func ActiveCount(subset []Exception) int {
	return len(subset) - RemovedCount(subset)
}

// MonthlyTrend returns the removal rate for every month 1..12 in order.
// Months with no records have rate 0.
func MonthlyTrend(table []Exception) []MonthRate {
	var removed, total [13]int
	for _, e := range table {
		if !e.HasMonth() {
			continue
		}
		total[e.Month]++
		removed[e.Month] += e.Removed
	}

	trend := make([]MonthRate, 12)
	for m := 1; m <= 12; m++ {
		trend[m-1].Month = m
		if total[m] > 0 {
			trend[m-1].Rate = float64(removed[m]) / float64(total[m])
		}
	}
	return trend
}
