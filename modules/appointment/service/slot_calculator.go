package service

import (
	"time"

	"funnel-api/core/constants"
	"funnel-api/modules/appointment/entity"
)

// TimeRange is a half-open [Start, End) busy interval.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// TimeSlot is a bookable interval produced for one date. It has no identity
// of its own.
type TimeSlot struct {
	Time  string
	Start time.Time
	End   time.Time
}

type SlotConfig struct {
	BusinessHoursStart int
	BusinessHoursEnd   int
	GranularityMinutes int
	DurationMinutes    int
	Location           *time.Location
}

// SlotCalculator computes candidate slots from business-hour rules and a set
// of busy intervals. It is deterministic, never fails, and knows nothing
// about the calendar provider.
type SlotCalculator struct {
	cfg SlotConfig
}

func NewSlotCalculator(cfg SlotConfig) *SlotCalculator {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	// a non-positive step would keep the slot loop from ever advancing
	if cfg.GranularityMinutes <= 0 {
		cfg.GranularityMinutes = constants.DefaultSlotGranularityMin
	}
	if cfg.DurationMinutes <= 0 {
		cfg.DurationMinutes = constants.DefaultSlotDurationMin
	}
	return &SlotCalculator{cfg: cfg}
}

// AvailableSlots returns every candidate slot on the given date whose
// [start, start+duration) interval overlaps no busy interval. Overlap uses
// the half-open test: slotStart < busyEnd && slotEnd > busyStart.
func (c *SlotCalculator) AvailableSlots(date time.Time, busy []TimeRange) []TimeSlot {
	duration := time.Duration(c.cfg.DurationMinutes) * time.Minute
	step := time.Duration(c.cfg.GranularityMinutes) * time.Minute

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), c.cfg.BusinessHoursStart, 0, 0, 0, c.cfg.Location)
	dayEnd := time.Date(date.Year(), date.Month(), date.Day(), c.cfg.BusinessHoursEnd, 0, 0, 0, c.cfg.Location)

	slots := []TimeSlot{}
	for start := dayStart; !start.Add(duration).After(dayEnd); start = start.Add(step) {
		end := start.Add(duration)
		if overlapsAny(start, end, busy) {
			continue
		}
		slots = append(slots, TimeSlot{
			Time:  start.Format(entity.TimeLayout),
			Start: start,
			End:   end,
		})
	}
	return slots
}

func overlapsAny(start, end time.Time, busy []TimeRange) bool {
	for _, b := range busy {
		if start.Before(b.End) && end.After(b.Start) {
			return true
		}
	}
	return false
}
