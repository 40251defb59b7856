package schedule

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// DateLayout is the ISO calendar date format used for every attendance date.
const DateLayout = "2006-01-02"

// ErrInvalidDateRange is returned when a range ends before it starts.
var ErrInvalidDateRange = errors.New("invalid date range: end precedes start")

// Config describes the weekly session pattern of one program instance.
type Config struct {
	ProgramStart string
	WeekOneEnd   string
	WeekOneDates []string
	Weekdays     []time.Weekday
	TotalWeeks   int
	TotalTeams   int
	Location     *time.Location
}

// Range is an inclusive span of ISO dates.
type Range struct {
	From string `form:"from" json:"from"`
	To   string `form:"to" json:"to"`
}

// DefaultConfig returns the calendar of the 2026 cohort.
func DefaultConfig() *Config {
	return &Config{
		ProgramStart: "2026-01-19",
		WeekOneEnd:   "2026-01-23",
		WeekOneDates: []string{"2026-01-20", "2026-01-21", "2026-01-22"},
		Weekdays:     []time.Weekday{time.Tuesday, time.Wednesday, time.Thursday},
		TotalWeeks:   11,
		TotalTeams:   8,
		Location:     loadLocation("Europe/Stockholm"),
	}
}

// Validate checks that the week-1 window is derived from the program start
// and that every scheduled day is a weekday.
func (c *Config) Validate() error {
	start, err := time.Parse(DateLayout, c.ProgramStart)
	if err != nil {
		return fmt.Errorf("program start %q: %w", c.ProgramStart, err)
	}
	end, err := time.Parse(DateLayout, c.WeekOneEnd)
	if err != nil {
		return fmt.Errorf("week one end %q: %w", c.WeekOneEnd, err)
	}
	if want := start.AddDate(0, 0, 4); !end.Equal(want) {
		return fmt.Errorf("week one end must be %s (program start + 4 days), got %s", want.Format(DateLayout), c.WeekOneEnd)
	}
	for _, d := range c.WeekOneDates {
		if _, err := time.Parse(DateLayout, d); err != nil {
			return fmt.Errorf("week one date %q: %w", d, err)
		}
		if d < c.ProgramStart || d > c.WeekOneEnd {
			return fmt.Errorf("week one date %s outside %s..%s", d, c.ProgramStart, c.WeekOneEnd)
		}
	}
	if len(c.Weekdays) == 0 {
		return errors.New("at least one scheduled weekday is required")
	}
	for _, wd := range c.Weekdays {
		if wd == time.Saturday || wd == time.Sunday {
			return fmt.Errorf("scheduled weekday %s is not a weekday", wd)
		}
	}
	if c.Location == nil {
		return errors.New("timezone is required")
	}
	return nil
}

// IsScheduledDay reports whether attendance is expected on date. Dates in the
// week-1 window are scheduled only when enumerated; later dates follow the
// standard weekday set. It panics on a malformed date.
func (c *Config) IsScheduledDay(date string) bool {
	t := mustParse(date)
	if date >= c.ProgramStart && date <= c.WeekOneEnd {
		return slices.Contains(c.WeekOneDates, date)
	}
	return slices.Contains(c.Weekdays, t.Weekday())
}

// ScheduledDates keeps the scheduled days of dates, preserving order.
func (c *Config) ScheduledDates(dates []string) []string {
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		if c.IsScheduledDay(d) {
			out = append(out, d)
		}
	}
	return out
}

// Today is the calendar date of now in the program timezone.
func (c *Config) Today(now time.Time) string {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(DateLayout)
}

// IsWeekday reports whether date falls Monday through Friday.
func IsWeekday(date string) bool {
	wd := mustParse(date).Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// WeekdayDates lists every Mon-Fri date in r, inclusive on both ends.
func WeekdayDates(r Range) ([]string, error) {
	from, err := time.Parse(DateLayout, r.From)
	if err != nil {
		return nil, fmt.Errorf("from date %q: %w", r.From, err)
	}
	to, err := time.Parse(DateLayout, r.To)
	if err != nil {
		return nil, fmt.Errorf("to date %q: %w", r.To, err)
	}
	if to.Before(from) {
		return nil, ErrInvalidDateRange
	}

	var dates []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			dates = append(dates, d.Format(DateLayout))
		}
	}
	return dates, nil
}

// WeekDates returns Monday..Friday of the week containing today.
func WeekDates(today string) []string {
	t := mustParse(today)
	offset := int(t.Weekday()) - 1
	if t.Weekday() == time.Sunday {
		offset = 6
	}
	monday := t.AddDate(0, 0, -offset)

	dates := make([]string, 5)
	for i := range dates {
		dates[i] = monday.AddDate(0, 0, i).Format(DateLayout)
	}
	return dates
}

// ValidDate reports whether s is a well-formed ISO date.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

func mustParse(date string) time.Time {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		panic(fmt.Sprintf("schedule: malformed date %q: %v", date, err))
	}
	return t
}

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
