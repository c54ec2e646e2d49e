package booking

import (
	"fmt"
	"time"
)

const (
	// DateLayout is the canonical calendar-day form used on the wire and for comparisons.
	DateLayout = "2006-01-02"
	// TimeLayout is the canonical 24-hour, zero-padded time-of-day form.
	TimeLayout = "15:04"
)

// Date is a calendar day with no time component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses a YYYY-MM-DD string. Impossible days such as 2025-02-30 are rejected.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, &ValidationError{Field: "date", Reason: fmt.Sprintf("%q is not a YYYY-MM-DD date", s)}
	}
	return DateOf(t), nil
}

// DateOf returns the calendar day of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Midnight returns the start of the day in UTC.
func (d Date) Midnight() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// TimeOfDay counts minutes since midnight.
type TimeOfDay int

// Clock builds a TimeOfDay from hours and minutes.
func Clock(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay parses an HH:MM string in 24-hour form.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil || len(s) != len(TimeLayout) {
		return 0, &ValidationError{Field: "time", Reason: fmt.Sprintf("%q is not an HH:MM time", s)}
	}
	return Clock(t.Hour(), t.Minute()), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// Add advances t by d, truncated to whole minutes.
func (t TimeOfDay) Add(d time.Duration) TimeOfDay {
	return t + TimeOfDay(d/time.Minute)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// TimeSlot is the atomic unit of schedulable time. It is comparable, so two
// slots are equal exactly when date and time-of-day match, and it can key maps.
type TimeSlot struct {
	Date Date
	Time TimeOfDay
}

// ParseTimeSlot validates and combines a YYYY-MM-DD date and an HH:MM time.
func ParseTimeSlot(date, timeOfDay string) (TimeSlot, error) {
	d, err := ParseDate(date)
	if err != nil {
		return TimeSlot{}, err
	}
	t, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		return TimeSlot{}, err
	}
	return TimeSlot{Date: d, Time: t}, nil
}

// SlotAt returns the slot that starts at t. Seconds are dropped.
func SlotAt(t time.Time) TimeSlot {
	return TimeSlot{Date: DateOf(t), Time: Clock(t.Hour(), t.Minute())}
}

// Start returns the slot start as a UTC wall-clock instant.
func (s TimeSlot) Start() time.Time {
	return s.Date.Midnight().Add(time.Duration(s.Time) * time.Minute)
}

func (s TimeSlot) String() string {
	return s.Date.String() + " " + s.Time.String()
}
