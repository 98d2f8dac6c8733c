package dto

type BookAppointmentRequest struct {
	Name            string  `json:"name" validate:"required"`
	Email           string  `json:"email" validate:"required,email"`
	Phone           *string `json:"phone"`
	Website         *string `json:"website"`
	Revenue         *string `json:"revenue"`
	AppointmentDate string  `json:"appointment_date" validate:"required"`
	AppointmentTime string  `json:"appointment_time" validate:"required"`
	Timezone        string  `json:"timezone"`
}

type UpdateAppointmentRequest struct {
	AppointmentDate string `json:"appointment_date"`
	AppointmentTime string `json:"appointment_time"`
	Timezone        string `json:"timezone"`
}

// BookingResponse always reports success for a locally committed booking.
// CalendarMessage is set when the external mirror is missing or stale.
type BookingResponse struct {
	ID              string  `json:"id"`
	AppointmentDate string  `json:"appointment_date"`
	AppointmentTime string  `json:"appointment_time"`
	Timezone        string  `json:"timezone"`
	Status          string  `json:"status"`
	GoogleEventID   *string `json:"google_event_id,omitempty"`
	HTMLLink        *string `json:"html_link,omitempty"`
	MeetLink        *string `json:"meet_link,omitempty"`
	CalendarSynced  bool    `json:"calendar_synced"`
	CalendarMessage string  `json:"calendar_message,omitempty"`
}

type AvailableSlotsResponse struct {
	Date     string   `json:"date"`
	Slots    []string `json:"slots"`
	Degraded bool     `json:"degraded"`
	Message  string   `json:"message,omitempty"`
}
