package booking

import (
	"fmt"
	"time"
)

// WorkingHoursPolicy bounds the bookable part of a day.
type WorkingHoursPolicy struct {
	Start       TimeOfDay
	End         TimeOfDay
	Granularity time.Duration
}

// DefaultPolicy is the clinic-wide working day: 09:00 to 17:00 in 30 minute slots.
var DefaultPolicy = WorkingHoursPolicy{
	Start:       Clock(9, 0),
	End:         Clock(17, 0),
	Granularity: 30 * time.Minute,
}

// Validate checks start < end and a positive granularity of whole minutes.
// A granularity that does not divide the day evenly is allowed.
func (p WorkingHoursPolicy) Validate() error {
	if p.Start < 0 || p.End > Clock(24, 0) {
		return fmt.Errorf("working hours %s-%s fall outside the day", p.Start, p.End)
	}
	if p.Start >= p.End {
		return fmt.Errorf("working hours start %s must be before end %s", p.Start, p.End)
	}
	if p.Granularity < time.Minute || p.Granularity%time.Minute != 0 {
		return fmt.Errorf("slot granularity %s must be a positive number of minutes", p.Granularity)
	}
	return nil
}

// Generate returns every slot start t with Start <= t < End, stepping by
// Granularity, in ascending order, all dated date. Each call returns a fresh slice.
func (p WorkingHoursPolicy) Generate(date Date) []TimeSlot {
	if p.Granularity < time.Minute {
		return nil
	}
	var slots []TimeSlot
	// When the day is not a multiple of the granularity the last slot runs past End.
	for t := p.Start; t < p.End; t = t.Add(p.Granularity) {
		slots = append(slots, TimeSlot{Date: date, Time: t})
	}
	return slots
}

// Contains reports whether t is one of the grid's slot starts.
func (p WorkingHoursPolicy) Contains(t TimeOfDay) bool {
	if t < p.Start || t >= p.End || p.Granularity < time.Minute {
		return false
	}
	step := TimeOfDay(p.Granularity / time.Minute)
	return (t-p.Start)%step == 0
}
