package service

import (
	"context"
	"strings"
	"time"

	"funnel-api/core/config"
	"funnel-api/core/constants"
	"funnel-api/core/errors"
	"funnel-api/core/logger"
	"funnel-api/core/utils"
	"funnel-api/modules/appointment/entity"
	"funnel-api/modules/appointment/repository"
	"funnel-api/modules/calendar/gateway"
	leadDto "funnel-api/modules/lead/dto"
	leadEntity "funnel-api/modules/lead/entity"

	"github.com/google/uuid"
)

const (
	msgMirrorFailed = "Appointment saved, but it could not be added to the calendar. Our team will add it manually."
	msgMirrorStale  = "Appointment updated locally; the calendar copy may be out of date."
	msgFallback     = "Live availability is temporarily unavailable; showing standard time slots."
)

// AppointmentStore is the slice of the repository the engine depends on.
type AppointmentStore interface {
	Insert(ctx context.Context, apt *entity.Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Appointment, error)
	UpdateSchedule(ctx context.Context, id uuid.UUID, date, timeOfDay, timezone string) error
	MarkCancelled(ctx context.Context, id uuid.UUID) error
	ListConfirmedByDate(ctx context.Context, date string) ([]entity.Appointment, error)
	ListDueForReminder(ctx context.Context, now time.Time, leadTime time.Duration, maxAttempts int) ([]entity.Appointment, error)
	SetExternalEvent(ctx context.Context, id uuid.UUID, eventID, htmlLink string) error
	ClearExternalEvent(ctx context.Context, id uuid.UUID) error
}

var _ AppointmentStore = (*repository.AppointmentRepository)(nil)

// SlotCache caches computed availability per date.
type SlotCache interface {
	GetSlots(ctx context.Context, date string) ([]string, bool, error)
	SetSlots(ctx context.Context, date string, slots []string) error
	InvalidateSlots(ctx context.Context, date string) error
}

// LeadDirectory is the slice of the lead service the engine depends on.
type LeadDirectory interface {
	Capture(ctx context.Context, req *leadDto.CreateLeadRequest) (*leadEntity.Lead, error)
	GetByID(ctx context.Context, id uuid.UUID) (*leadEntity.Lead, error)
}

// ConfirmationEnqueuer hands confirmation emails to the background worker.
type ConfirmationEnqueuer interface {
	EnqueueConfirmation(ctx context.Context, appointmentID uuid.UUID) error
}

// BookingResult is the engine's answer for Book/Update/Cancel. The local
// record is the contract; CalendarMessage reports degraded sync only.
type BookingResult struct {
	Appointment     *entity.Appointment
	CalendarMessage string
}

type SlotsResult struct {
	Date     string
	Slots    []string
	Degraded bool
	Message  string
}

// SchedulingService orchestrates slot calculation, the local store, and the
// best-effort calendar mirror. The store commits before any provider I/O so
// a slow or down provider never stalls booking.
type SchedulingService struct {
	repo    AppointmentStore
	leads   LeadDirectory
	gateway gateway.CalendarGateway
	cache   SlotCache
	queue   ConfirmationEnqueuer
	cfg     config.SchedulingConfig
	loc     *time.Location
}

func NewSchedulingService(
	repo AppointmentStore,
	leads LeadDirectory,
	gw gateway.CalendarGateway,
	cache SlotCache,
	queue ConfirmationEnqueuer,
	cfg config.SchedulingConfig,
) *SchedulingService {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Warn("SchedulingService: invalid timezone, using UTC", "timezone", cfg.Timezone)
		loc = time.UTC
	}
	return &SchedulingService{
		repo:    repo,
		leads:   leads,
		gateway: gw,
		cache:   cache,
		queue:   queue,
		cfg:     cfg,
		loc:     loc,
	}
}

func (s *SchedulingService) calculator() *SlotCalculator {
	return NewSlotCalculator(SlotConfig{
		BusinessHoursStart: s.cfg.BusinessHoursStart,
		BusinessHoursEnd:   s.cfg.BusinessHoursEnd,
		GranularityMinutes: s.cfg.GranularityMinutes,
		DurationMinutes:    s.cfg.DurationMinutes,
		Location:           s.loc,
	})
}

func (s *SchedulingService) duration() time.Duration {
	return time.Duration(s.cfg.DurationMinutes) * time.Minute
}

// Book validates the requested slot, commits the appointment locally, then
// mirrors it to the calendar. A mirror failure downgrades to a calendar
// message on a successful result; it is never fatal to the booking.
func (s *SchedulingService) Book(ctx context.Context, name, email string, phone, website, revenue *string, dateStr, timeStr, timezone string) (*BookingResult, error) {
	if timezone == "" {
		timezone = s.cfg.Timezone
	}
	date, err := time.ParseInLocation(entity.DateLayout, dateStr, s.loc)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "Invalid appointment date", err)
	}
	if _, err := time.Parse(entity.TimeLayout, timeStr); err != nil {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "Invalid appointment time", err)
	}

	// Advisory availability check. The unique index on confirmed rows is the
	// authoritative guard; this catches the common case early.
	available, _, err := s.availableTimes(ctx, date, uuid.Nil, "")
	if err != nil {
		return nil, err
	}
	if !contains(available, timeStr) {
		return nil, errors.NewAppError(errors.ErrSlotUnavailable, "Requested slot is no longer available", nil)
	}

	lead, err := s.leads.Capture(ctx, &leadDto.CreateLeadRequest{
		FirstName: name,
		Email:     email,
		Phone:     phone,
		Website:   website,
		Revenue:   revenue,
	})
	if err != nil {
		return nil, err
	}

	meetingCode := utils.GenerateMeetingCode()
	meetLink := "https://meet.google.com/" + meetingCode

	apt := &entity.Appointment{
		LeadID:          lead.ID,
		AppointmentDate: date,
		AppointmentTime: timeStr,
		Timezone:        timezone,
		Status:          entity.StatusConfirmed,
		MeetLink:        &meetLink,
		MeetingCode:     &meetingCode,
	}
	if err := s.repo.Insert(ctx, apt); err != nil {
		// first committer wins; a lost race surfaces as SlotConflict
		return nil, err
	}

	result := &BookingResult{Appointment: apt}
	if created := s.mirrorCreate(ctx, lead.FirstName, lead.Email, apt); created != "" {
		result.CalendarMessage = created
	}

	if err := s.queue.EnqueueConfirmation(ctx, apt.ID); err != nil {
		logger.Warn("SchedulingService:Book: confirmation enqueue failed", "appointment_id", apt.ID, "error", err)
	}
	s.invalidateSlots(ctx, apt.DateString())

	return result, nil
}

// Update moves an appointment to a new slot. Local changes persist
// unconditionally; the mirror is then reconciled: a lost mirror falls back
// to a fresh create, a provider failure keeps the stale copy.
func (s *SchedulingService) Update(ctx context.Context, id uuid.UUID, dateStr, timeStr, timezone string) (*BookingResult, error) {
	apt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if apt.Status == entity.StatusCancelled {
		return nil, errors.NewAppError(errors.ErrNotFound, "Appointment has been cancelled", nil)
	}

	oldDate := apt.DateString()
	if dateStr == "" {
		dateStr = oldDate
	}
	if timeStr == "" {
		timeStr = apt.AppointmentTime
	}
	if timezone == "" {
		timezone = apt.Timezone
	}
	date, err := time.ParseInLocation(entity.DateLayout, dateStr, s.loc)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "Invalid appointment date", err)
	}
	if _, err := time.Parse(entity.TimeLayout, timeStr); err != nil {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "Invalid appointment time", err)
	}

	// Re-check availability excluding this appointment's own slot, both the
	// local row and its mirror event.
	ownEventID := ""
	if apt.GoogleEventID != nil {
		ownEventID = *apt.GoogleEventID
	}
	available, _, err := s.availableTimes(ctx, date, apt.ID, ownEventID)
	if err != nil {
		return nil, err
	}
	if !contains(available, timeStr) {
		return nil, errors.NewAppError(errors.ErrSlotUnavailable, "Requested slot is no longer available", nil)
	}

	if err := s.repo.UpdateSchedule(ctx, apt.ID, dateStr, timeStr, timezone); err != nil {
		return nil, err
	}
	apt.AppointmentDate = date
	apt.AppointmentTime = timeStr
	apt.Timezone = timezone

	lead, leadErr := s.leads.GetByID(ctx, apt.LeadID)
	result := &BookingResult{Appointment: apt}
	if leadErr != nil {
		logger.Error("SchedulingService:Update: lead lookup failed", "appointment_id", apt.ID, "error", leadErr)
		result.CalendarMessage = msgMirrorStale
	} else {
		result.CalendarMessage = s.mirrorUpdate(ctx, lead.FirstName, lead.Email, apt)
	}

	s.invalidateSlots(ctx, oldDate)
	s.invalidateSlots(ctx, apt.DateString())
	return result, nil
}

// Cancel marks the appointment cancelled locally and best-effort deletes the
// mirror. Cancelling twice is a no-op success with no second provider call.
func (s *SchedulingService) Cancel(ctx context.Context, id uuid.UUID) (*BookingResult, error) {
	apt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if apt.Status == entity.StatusCancelled {
		return &BookingResult{Appointment: apt}, nil
	}

	if err := s.repo.MarkCancelled(ctx, apt.ID); err != nil {
		return nil, err
	}
	apt.Status = entity.StatusCancelled

	result := &BookingResult{Appointment: apt}
	if apt.GoogleEventID != nil && *apt.GoogleEventID != "" {
		mirrorCtx, cancel := s.providerContext(ctx)
		err := s.gateway.DeleteEvent(mirrorCtx, *apt.GoogleEventID)
		cancel()
		if err != nil {
			logger.Error("SchedulingService:Cancel: mirror delete failed", "appointment_id", apt.ID, "error", err)
			result.CalendarMessage = "Appointment cancelled; the calendar copy could not be removed."
		} else {
			if err := s.repo.ClearExternalEvent(ctx, apt.ID); err != nil {
				logger.Error("SchedulingService:Cancel: clear event failed", "appointment_id", apt.ID, "error", err)
			}
			apt.GoogleEventID = nil
			apt.CalendarSynced = false
		}
	}

	s.invalidateSlots(ctx, apt.DateString())
	return result, nil
}

// GetAvailableSlots returns bookable times for a date. With the provider up
// it merges external events with local confirmed rows; with the provider
// down it degrades to the configured static slot list minus local bookings.
func (s *SchedulingService) GetAvailableSlots(ctx context.Context, dateStr string) (*SlotsResult, error) {
	date, err := time.ParseInLocation(entity.DateLayout, dateStr, s.loc)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "Invalid date", err)
	}

	if cached, ok, cacheErr := s.cache.GetSlots(ctx, dateStr); cacheErr == nil && ok {
		return &SlotsResult{Date: dateStr, Slots: cached}, nil
	}

	times, degraded, err := s.availableTimes(ctx, date, uuid.Nil, "")
	if err != nil {
		return nil, err
	}

	result := &SlotsResult{Date: dateStr, Slots: times, Degraded: degraded}
	if degraded {
		result.Message = msgFallback
	} else if err := s.cache.SetSlots(ctx, dateStr, times); err != nil {
		logger.Warn("SchedulingService: slot cache write failed", "date", dateStr, "error", err)
	}
	return result, nil
}

// ListReminderCandidates exposes the due-reminder window for inspection.
func (s *SchedulingService) ListReminderCandidates(ctx context.Context, now time.Time) ([]entity.Appointment, error) {
	return s.repo.ListDueForReminder(ctx, now, s.cfg.ReminderLeadTime, s.cfg.ReminderMaxAttempts)
}

// availableTimes computes bookable times for a date, excluding excludeID's
// own row and excludeEventID's mirror event from the busy set. The bool
// result reports degraded mode.
func (s *SchedulingService) availableTimes(ctx context.Context, date time.Time, excludeID uuid.UUID, excludeEventID string) ([]string, bool, error) {
	dateStr := date.Format(entity.DateLayout)

	local, err := s.repo.ListConfirmedByDate(ctx, dateStr)
	if err != nil {
		return nil, false, err
	}
	busy := make([]TimeRange, 0, len(local))
	for i := range local {
		if local[i].ID == excludeID {
			continue
		}
		start, end, rangeErr := local[i].StartEnd(s.duration())
		if rangeErr != nil {
			logger.Warn("SchedulingService: skipping malformed row", "appointment_id", local[i].ID, "error", rangeErr)
			continue
		}
		busy = append(busy, TimeRange{Start: start, End: end})
	}

	probeCtx, cancel := s.providerContext(ctx)
	providerUp := s.gateway.IsAvailable(probeCtx)
	cancel()

	if !providerUp {
		return s.fallbackTimes(busy, date), true, nil
	}

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, s.loc)
	listCtx, cancel := s.providerContext(ctx)
	events, err := s.gateway.ListEvents(listCtx, dayStart, dayStart.AddDate(0, 0, 1))
	cancel()
	if err != nil {
		logger.Warn("SchedulingService: event listing failed, using fallback slots", "date", dateStr, "error", err)
		return s.fallbackTimes(busy, date), true, nil
	}
	for _, ev := range events {
		if excludeEventID != "" && ev.ID == excludeEventID {
			continue
		}
		busy = append(busy, TimeRange{Start: ev.Start, End: ev.End})
	}

	slots := s.calculator().AvailableSlots(date, busy)
	times := make([]string, 0, len(slots))
	for _, slot := range slots {
		times = append(times, slot.Time)
	}
	return times, false, nil
}

// fallbackTimes filters the configured static list against local bookings.
func (s *SchedulingService) fallbackTimes(busy []TimeRange, date time.Time) []string {
	times := make([]string, 0, len(s.cfg.FallbackSlots))
	for _, t := range s.cfg.FallbackSlots {
		parsed, err := time.Parse(entity.TimeLayout, t)
		if err != nil {
			continue
		}
		start := time.Date(date.Year(), date.Month(), date.Day(), parsed.Hour(), parsed.Minute(), 0, 0, s.loc)
		if overlapsAny(start, start.Add(s.duration()), busy) {
			continue
		}
		times = append(times, t)
	}
	return times
}

// mirrorCreate attempts the external create and returns a calendar message
// when the mirror is degraded. At most one create per appointment: the
// stored event id guards retries.
func (s *SchedulingService) mirrorCreate(ctx context.Context, name, email string, apt *entity.Appointment) string {
	start, end, err := apt.StartEnd(s.duration())
	if err != nil {
		logger.Error("SchedulingService: cannot resolve slot for mirror", "appointment_id", apt.ID, "error", err)
		return msgMirrorFailed
	}

	meetLink := ""
	if apt.MeetLink != nil {
		meetLink = *apt.MeetLink
	}
	mirrorCtx, cancel := s.providerContext(ctx)
	created, err := s.gateway.CreateEvent(mirrorCtx, gateway.EventInput{
		Summary:       "Consultation with " + name,
		Description:   buildEventDescription(name, email, apt),
		Start:         start,
		End:           end,
		Timezone:      apt.Timezone,
		AttendeeEmail: email,
		MeetLink:      meetLink,
	})
	cancel()
	if err != nil {
		logger.Error("SchedulingService: mirror create failed", "appointment_id", apt.ID, "error", err)
		return msgMirrorFailed
	}

	if err := s.repo.SetExternalEvent(ctx, apt.ID, created.EventID, created.HTMLLink); err != nil {
		logger.Error("SchedulingService: recording mirror failed", "appointment_id", apt.ID, "error", err)
		return msgMirrorStale
	}
	apt.GoogleEventID = &created.EventID
	apt.HTMLLink = &created.HTMLLink
	apt.CalendarSynced = true
	return ""
}

// mirrorUpdate reconciles the mirror after a local change. A lost mirror
// (stale event id) is cleared and recreated; a provider failure keeps the
// stale copy and reports degraded sync.
func (s *SchedulingService) mirrorUpdate(ctx context.Context, name, email string, apt *entity.Appointment) string {
	if apt.GoogleEventID == nil || *apt.GoogleEventID == "" {
		return s.mirrorCreate(ctx, name, email, apt)
	}

	start, end, err := apt.StartEnd(s.duration())
	if err != nil {
		logger.Error("SchedulingService: cannot resolve slot for mirror", "appointment_id", apt.ID, "error", err)
		return msgMirrorStale
	}

	meetLink := ""
	if apt.MeetLink != nil {
		meetLink = *apt.MeetLink
	}
	mirrorCtx, cancel := s.providerContext(ctx)
	err = s.gateway.UpdateEvent(mirrorCtx, *apt.GoogleEventID, gateway.EventInput{
		Summary:       "Consultation with " + name,
		Description:   buildEventDescription(name, email, apt),
		Start:         start,
		End:           end,
		Timezone:      apt.Timezone,
		AttendeeEmail: email,
		MeetLink:      meetLink,
	})
	cancel()

	switch {
	case err == nil:
		return ""
	case errors.Is(err, errors.ErrEventNotFound):
		// mirror lost upstream: drop the stale id and recreate
		if clearErr := s.repo.ClearExternalEvent(ctx, apt.ID); clearErr != nil {
			logger.Error("SchedulingService: clearing stale mirror failed", "appointment_id", apt.ID, "error", clearErr)
			return msgMirrorStale
		}
		apt.GoogleEventID = nil
		apt.HTMLLink = nil
		apt.CalendarSynced = false
		return s.mirrorCreate(ctx, name, email, apt)
	default:
		logger.Error("SchedulingService: mirror update failed", "appointment_id", apt.ID, "error", err)
		return msgMirrorStale
	}
}

func (s *SchedulingService) providerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = constants.DefaultProviderTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func (s *SchedulingService) invalidateSlots(ctx context.Context, date string) {
	if err := s.cache.InvalidateSlots(ctx, date); err != nil {
		logger.Warn("SchedulingService: slot cache invalidation failed", "date", date, "error", err)
	}
}

func buildEventDescription(name, email string, apt *entity.Appointment) string {
	var b strings.Builder
	b.WriteString("Name: " + name + "\nEmail: " + email)
	b.WriteString("\n\nTime: " + apt.AppointmentTime + "\nTimezone: " + apt.Timezone)
	b.WriteString("\n\nBooked through sales funnel.")
	return b.String()
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
