package entity

import (
	"fmt"
	"time"

	coreEntity "funnel-api/core/entity"

	"github.com/google/uuid"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Appointment is the authoritative local record of a booked consultation.
// GoogleEventID is a weak reference to the provider's mirror: it is present
// iff the mirror succeeded at least once, and its absence never invalidates
// the appointment.
type Appointment struct {
	coreEntity.BaseEntity
	LeadID           uuid.UUID `db:"lead_id" json:"lead_id"`
	AppointmentDate  time.Time `db:"appointment_date" json:"appointment_date"`
	AppointmentTime  string    `db:"appointment_time" json:"appointment_time"`
	Timezone         string    `db:"timezone" json:"timezone"`
	Status           string    `db:"status" json:"status"`
	GoogleEventID    *string   `db:"google_event_id" json:"google_event_id,omitempty"`
	HTMLLink         *string   `db:"html_link" json:"html_link,omitempty"`
	MeetLink         *string   `db:"meet_link" json:"meet_link,omitempty"`
	MeetingCode      *string   `db:"meeting_code" json:"meeting_code,omitempty"`
	CalendarSynced   bool      `db:"calendar_synced" json:"calendar_synced"`
	ConfirmationSent bool      `db:"confirmation_sent" json:"confirmation_sent"`
	ReminderSent     bool      `db:"reminder_sent" json:"reminder_sent"`
	ReminderAttempts int       `db:"reminder_attempts" json:"reminder_attempts"`
}

func (a *Appointment) DateString() string {
	return a.AppointmentDate.Format(DateLayout)
}

// StartEnd resolves the appointment's wall-clock slot into absolute times.
func (a *Appointment) StartEnd(duration time.Duration) (time.Time, time.Time, error) {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid timezone %q: %w", a.Timezone, err)
	}
	t, err := time.ParseInLocation(TimeLayout, a.AppointmentTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid time %q: %w", a.AppointmentTime, err)
	}
	d := a.AppointmentDate
	start := time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, loc)
	return start, start.Add(duration), nil
}
