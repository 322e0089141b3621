package gtfs

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"transitrisk/internal/metrics"
)

// lazy holds a value loaded on first successful access. Failed loads are
// not remembered, so a later call retries.
type lazy[T any] struct {
	mu     sync.Mutex
	loaded bool
	value  T
}

func (l *lazy[T]) get(load func() (T, error)) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loaded {
		return l.value, nil
	}
	v, err := load()
	if err != nil {
		var zero T
		return zero, err
	}
	l.value, l.loaded = v, true
	return v, nil
}

// Catalog exposes the four feed tables, each loaded once per session and
// treated as immutable afterwards. There is no invalidation.
type Catalog struct {
	src    Source
	logger *slog.Logger

	calendar  lazy[[]CalendarEntry]
	services  lazy[[]Service]
	// dayColumnsMissing is set by the calendar load and read by Services.
	dayColumnsMissing []string
	dates     lazy[[]CalendarDate]
	stops     lazy[[]Stop]
	frequency lazy[[]Frequency]
}

// NewCatalog creates a Catalog over src. Nothing is read until first access.
func NewCatalog(src Source, logger *slog.Logger) *Catalog {
	return &Catalog{src: src, logger: logger}
}

var dayColumns = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// Calendar returns calendar rows as read. Only service_id is required; the
// day columns are checked by Services.
func (c *Catalog) Calendar(ctx context.Context) ([]CalendarEntry, error) {
	return c.calendar.get(func() ([]CalendarEntry, error) {
		t, err := c.read(ctx, DatasetCalendar, "service_id")
		if err != nil {
			return nil, err
		}
		c.dayColumnsMissing = t.missing(dayColumns...)
		return decodeTable[CalendarEntry](t), nil
	})
}

// Services returns calendar rows with parsed day flags. A missing day column
// or a flag that is not an integer makes the whole calendar unavailable.
func (c *Catalog) Services(ctx context.Context) ([]Service, error) {
	return c.services.get(func() ([]Service, error) {
		entries, err := c.Calendar(ctx)
		if err != nil {
			return nil, err
		}
		if miss := c.dayColumnsMissing; len(miss) > 0 {
			return nil, unavailable(DatasetCalendar, fmt.Errorf("missing columns: %s", strings.Join(miss, ", ")))
		}
		out := make([]Service, 0, len(entries))
		for i, e := range entries {
			s, err := parseService(e)
			if err != nil {
				return nil, unavailable(DatasetCalendar, fmt.Errorf("row %d: %w", i+1, err))
			}
			out = append(out, s)
		}
		return out, nil
	})
}

// CalendarDates returns calendar exception rows as read.
func (c *Catalog) CalendarDates(ctx context.Context) ([]CalendarDate, error) {
	return c.dates.get(func() ([]CalendarDate, error) {
		t, err := c.read(ctx, DatasetCalendarDates, "service_id", "date", "exception_type")
		if err != nil {
			return nil, err
		}
		return decodeTable[CalendarDate](t), nil
	})
}

// Stops returns every stop row. Rows whose coordinates are blank or do not
// parse are kept with NaN coordinates.
func (c *Catalog) Stops(ctx context.Context) ([]Stop, error) {
	return c.stops.get(func() ([]Stop, error) {
		t, err := c.read(ctx, DatasetStops, "stop_lat", "stop_lon")
		if err != nil {
			return nil, err
		}
		rows := decodeTable[stopRow](t)
		out := make([]Stop, 0, len(rows))
		unplaced := 0
		for _, r := range rows {
			s := Stop{StopID: r.StopID, StopName: r.StopName,
				StopLat: parseCoord(r.StopLat), StopLon: parseCoord(r.StopLon)}
			if !s.HasCoordinates() {
				unplaced++
			}
			out = append(out, s)
		}
		if unplaced > 0 {
			c.logger.Debug("stops without coordinates", "rows", unplaced)
		}
		return out, nil
	})
}

func parseCoord(v string) float64 {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// Frequencies returns frequency rows as read.
func (c *Catalog) Frequencies(ctx context.Context) ([]Frequency, error) {
	return c.frequency.get(func() ([]Frequency, error) {
		t, err := c.read(ctx, DatasetFrequencies, "start_time")
		if err != nil {
			return nil, err
		}
		return decodeTable[Frequency](t), nil
	})
}

// read fetches a raw table and checks the required columns are present.
func (c *Catalog) read(ctx context.Context, dataset string, required ...string) (*RawTable, error) {
	start := time.Now()
	t, err := c.src.ReadTable(ctx, dataset)
	if err != nil {
		metrics.DatasetLoads.WithLabelValues(dataset, "error").Inc()
		return nil, unavailable(dataset, err)
	}
	if miss := t.missing(required...); len(miss) > 0 {
		metrics.DatasetLoads.WithLabelValues(dataset, "error").Inc()
		return nil, unavailable(dataset, fmt.Errorf("missing columns: %s", strings.Join(miss, ", ")))
	}
	metrics.DatasetLoads.WithLabelValues(dataset, "ok").Inc()
	c.logger.Info("dataset loaded",
		"dataset", dataset,
		"rows", len(t.Rows),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return t, nil
}

func parseService(e CalendarEntry) (Service, error) {
	s := Service{ServiceID: e.ServiceID, StartDate: e.StartDate, EndDate: e.EndDate}
	flags := []struct {
		name string
		raw  string
		dst  *int
	}{
		{"monday", e.Monday, &s.Monday},
		{"tuesday", e.Tuesday, &s.Tuesday},
		{"wednesday", e.Wednesday, &s.Wednesday},
		{"thursday", e.Thursday, &s.Thursday},
		{"friday", e.Friday, &s.Friday},
		{"saturday", e.Saturday, &s.Saturday},
		{"sunday", e.Sunday, &s.Sunday},
	}
	for _, f := range flags {
		n, err := strconv.Atoi(f.raw)
		if err != nil {
			return Service{}, fmt.Errorf("service %s: %s %q: %w", e.ServiceID, f.name, f.raw, err)
		}
		*f.dst = n
	}
	return s, nil
}
