package gtfs

import "math"

// Dataset names as they appear in a feed directory or zip (without extension).
const (
	DatasetCalendar      = "calendar"
	DatasetCalendarDates = "calendar_dates"
	DatasetStops         = "stops"
	DatasetFrequencies   = "frequencies"
)

// Datasets lists every table the catalog knows how to load.
var Datasets = []string{DatasetCalendar, DatasetCalendarDates, DatasetStops, DatasetFrequencies}

// CalendarEntry is a row of calendar.txt exactly as read.
type CalendarEntry struct {
	ServiceID string `csv:"service_id"`
	Monday    string `csv:"monday"`
	Tuesday   string `csv:"tuesday"`
	Wednesday string `csv:"wednesday"`
	Thursday  string `csv:"thursday"`
	Friday    string `csv:"friday"`
	Saturday  string `csv:"saturday"`
	Sunday    string `csv:"sunday"`
	StartDate string `csv:"start_date"`
	EndDate   string `csv:"end_date"`
}

// CalendarDate is a row of calendar_dates.txt. ExceptionType is kept raw so
// unknown or missing codes survive to the aggregator.
type CalendarDate struct {
	ServiceID     string `csv:"service_id"`
	Date          string `csv:"date"`
	ExceptionType string `csv:"exception_type"`
}

// Stop is a stop, station, or other feed location. Coordinates are not
// bounds-checked. A blank or unparseable coordinate is NaN; GTFS leaves
// them empty for generic nodes and boarding areas.
type Stop struct {
	StopID   string
	StopName string
	StopLat  float64
	StopLon  float64
}

// HasCoordinates reports whether both coordinates parsed.
func (s Stop) HasCoordinates() bool {
	return !math.IsNaN(s.StopLat) && !math.IsNaN(s.StopLon)
}

// stopRow is the raw stops.txt row before coordinate parsing.
type stopRow struct {
	StopID   string `csv:"stop_id"`
	StopName string `csv:"stop_name"`
	StopLat  string `csv:"stop_lat"`
	StopLon  string `csv:"stop_lon"`
}

// Frequency is a row of frequencies.txt. StartTime stays raw; the hourly
// summarizer drops values it cannot parse.
type Frequency struct {
	TripID      string `csv:"trip_id"`
	StartTime   string `csv:"start_time"`
	EndTime     string `csv:"end_time"`
	HeadwaySecs string `csv:"headway_secs"`
}

// Service is a CalendarEntry with its day-of-week flags parsed.
type Service struct {
	ServiceID string
	Monday    int
	Tuesday   int
	Wednesday int
	Thursday  int
	Friday    int
	Saturday  int
	Sunday    int
	StartDate string
	EndDate   string
}

// DayFlags returns the seven flags in Monday..Sunday order.
func (s Service) DayFlags() [7]int {
	return [7]int{s.Monday, s.Tuesday, s.Wednesday, s.Thursday, s.Friday, s.Saturday, s.Sunday}
}
