package gateway

import (
	"context"
	"time"
)

// Event is the provider's view of a booked interval.
type Event struct {
	ID      string
	Summary string
	Start   time.Time
	End     time.Time
}

// EventInput carries everything needed to mirror an appointment upstream.
type EventInput struct {
	Summary       string
	Description   string
	Start         time.Time
	End           time.Time
	Timezone      string
	AttendeeEmail string
	MeetLink      string
}

type CreatedEvent struct {
	EventID  string
	HTMLLink string
}

// CalendarGateway is the single point of contact with the external provider.
// The local store stays authoritative: callers treat every method here as
// best-effort and never block local state changes on its failures.
type CalendarGateway interface {
	// IsAvailable reports whether the provider is reachable and authorized.
	// It never fails; any doubt reads as false.
	IsAvailable(ctx context.Context) bool

	// ListEvents returns the provider's events overlapping [from, to).
	ListEvents(ctx context.Context, from, to time.Time) ([]Event, error)

	// CreateEvent mirrors an appointment upstream. The provider offers no
	// idempotency; callers guard against duplicate creates via the stored
	// external event id.
	CreateEvent(ctx context.Context, in EventInput) (*CreatedEvent, error)

	UpdateEvent(ctx context.Context, eventID string, in EventInput) error

	// DeleteEvent removes the mirror. An already-gone event is success.
	DeleteEvent(ctx context.Context, eventID string) error
}
