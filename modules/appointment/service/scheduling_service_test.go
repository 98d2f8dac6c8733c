package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"funnel-api/core/config"
	"funnel-api/core/errors"
	"funnel-api/modules/appointment/entity"
	"funnel-api/modules/calendar/gateway"
	leadDto "funnel-api/modules/lead/dto"
	leadEntity "funnel-api/modules/lead/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu   sync.Mutex
	apts map[uuid.UUID]*entity.Appointment
}

func newFakeStore() *fakeStore {
	return &fakeStore{apts: map[uuid.UUID]*entity.Appointment{}}
}

func (f *fakeStore) slotTaken(date, timeOfDay string, exclude uuid.UUID) bool {
	for _, a := range f.apts {
		if a.ID != exclude && a.Status == entity.StatusConfirmed &&
			a.DateString() == date && a.AppointmentTime == timeOfDay {
			return true
		}
	}
	return false
}

func (f *fakeStore) Insert(_ context.Context, apt *entity.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if apt.Status == entity.StatusConfirmed && f.slotTaken(apt.DateString(), apt.AppointmentTime, uuid.Nil) {
		return errors.NewAppError(errors.ErrSlotConflict, "slot taken", nil)
	}
	apt.ID = uuid.New()
	cp := *apt
	f.apts[apt.ID] = &cp
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*entity.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	apt, ok := f.apts[id]
	if !ok {
		return nil, errors.NewAppError(errors.ErrNotFound, "not found", nil)
	}
	cp := *apt
	return &cp, nil
}

func (f *fakeStore) UpdateSchedule(_ context.Context, id uuid.UUID, date, timeOfDay, timezone string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	apt, ok := f.apts[id]
	if !ok {
		return errors.NewAppError(errors.ErrNotFound, "not found", nil)
	}
	if f.slotTaken(date, timeOfDay, id) {
		return errors.NewAppError(errors.ErrSlotConflict, "slot taken", nil)
	}
	d, _ := time.ParseInLocation(entity.DateLayout, date, time.UTC)
	apt.AppointmentDate = d
	apt.AppointmentTime = timeOfDay
	apt.Timezone = timezone
	return nil
}

func (f *fakeStore) MarkCancelled(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if apt, ok := f.apts[id]; ok {
		apt.Status = entity.StatusCancelled
	}
	return nil
}

func (f *fakeStore) ListConfirmedByDate(_ context.Context, date string) ([]entity.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Appointment
	for _, a := range f.apts {
		if a.Status == entity.StatusConfirmed && a.DateString() == date {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeStore) ListDueForReminder(context.Context, time.Time, time.Duration, int) ([]entity.Appointment, error) {
	return nil, nil
}

func (f *fakeStore) SetExternalEvent(_ context.Context, id uuid.UUID, eventID, htmlLink string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if apt, ok := f.apts[id]; ok {
		apt.GoogleEventID = &eventID
		apt.HTMLLink = &htmlLink
		apt.CalendarSynced = true
	}
	return nil
}

func (f *fakeStore) ClearExternalEvent(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if apt, ok := f.apts[id]; ok {
		apt.GoogleEventID = nil
		apt.HTMLLink = nil
		apt.CalendarSynced = false
	}
	return nil
}

type fakeGateway struct {
	available   bool
	events      []gateway.Event
	createErr   error
	updateErr   error
	deleteErr   error
	createCalls int
	updateCalls int
	deleteCalls int
}

func (f *fakeGateway) IsAvailable(context.Context) bool { return f.available }

func (f *fakeGateway) ListEvents(context.Context, time.Time, time.Time) ([]gateway.Event, error) {
	return f.events, nil
}

func (f *fakeGateway) CreateEvent(context.Context, gateway.EventInput) (*gateway.CreatedEvent, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &gateway.CreatedEvent{EventID: uuid.NewString(), HTMLLink: "https://calendar.example/event"}, nil
}

func (f *fakeGateway) UpdateEvent(context.Context, string, gateway.EventInput) error {
	f.updateCalls++
	return f.updateErr
}

func (f *fakeGateway) DeleteEvent(context.Context, string) error {
	f.deleteCalls++
	return f.deleteErr
}

type fakeCache struct {
	mu    sync.Mutex
	slots map[string][]string
}

func newFakeCache() *fakeCache { return &fakeCache{slots: map[string][]string{}} }

func (f *fakeCache) GetSlots(_ context.Context, date string) ([]string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[date]
	return s, ok, nil
}

func (f *fakeCache) SetSlots(_ context.Context, date string, slots []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slots[date] = slots
	return nil
}

func (f *fakeCache) InvalidateSlots(_ context.Context, date string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.slots, date)
	return nil
}

type fakeQueue struct {
	enqueued []uuid.UUID
}

func (f *fakeQueue) EnqueueConfirmation(_ context.Context, id uuid.UUID) error {
	f.enqueued = append(f.enqueued, id)
	return nil
}

type fakeLeads struct {
	lead leadEntity.Lead
}

func (f *fakeLeads) Capture(_ context.Context, req *leadDto.CreateLeadRequest) (*leadEntity.Lead, error) {
	f.lead.FirstName = req.FirstName
	f.lead.Email = req.Email
	if f.lead.ID == uuid.Nil {
		f.lead.ID = uuid.New()
	}
	cp := f.lead
	return &cp, nil
}

func (f *fakeLeads) GetByID(context.Context, uuid.UUID) (*leadEntity.Lead, error) {
	cp := f.lead
	return &cp, nil
}

func testSchedulingConfig() config.SchedulingConfig {
	return config.SchedulingConfig{
		BusinessHoursStart:  10,
		BusinessHoursEnd:    19,
		GranularityMinutes:  30,
		DurationMinutes:     60,
		Timezone:            "UTC",
		FallbackSlots:       []string{"10:00", "11:00", "12:00", "14:00"},
		ProviderTimeout:     time.Second,
		ReminderLeadTime:    time.Hour,
		ReminderMaxAttempts: 5,
	}
}

func newTestService(store *fakeStore, gw *fakeGateway) (*SchedulingService, *fakeQueue, *fakeCache) {
	queue := &fakeQueue{}
	cache := newFakeCache()
	svc := NewSchedulingService(store, &fakeLeads{}, gw, cache, queue, testSchedulingConfig())
	return svc, queue, cache
}

func TestBookSucceedsAndMirrors(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{available: true}
	svc, queue, _ := newTestService(store, gw)

	result, err := svc.Book(context.Background(), "Alice", "alice@example.com", nil, nil, nil,
		"2025-08-22", "10:00", "UTC")
	require.NoError(t, err)

	assert.Equal(t, entity.StatusConfirmed, result.Appointment.Status)
	assert.Empty(t, result.CalendarMessage)
	assert.NotNil(t, result.Appointment.GoogleEventID)
	assert.True(t, result.Appointment.CalendarSynced)
	assert.Equal(t, 1, gw.createCalls)
	assert.Len(t, queue.enqueued, 1)
}

func TestBookSucceedsWhenProviderDown(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{
		available: false,
		createErr: errors.NewAppError(errors.ErrProvider, "provider down", nil),
	}
	svc, _, _ := newTestService(store, gw)

	result, err := svc.Book(context.Background(), "Alice", "alice@example.com", nil, nil, nil,
		"2025-08-22", "11:00", "UTC")
	require.NoError(t, err)

	assert.Equal(t, entity.StatusConfirmed, result.Appointment.Status)
	assert.Nil(t, result.Appointment.GoogleEventID)
	assert.NotEmpty(t, result.CalendarMessage)
}

func TestBookRejectsOccupiedSlot(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{available: true}
	svc, _, _ := newTestService(store, gw)

	_, err := svc.Book(context.Background(), "Alice", "alice@example.com", nil, nil, nil,
		"2025-08-22", "10:00", "UTC")
	require.NoError(t, err)

	_, err = svc.Book(context.Background(), "Bob", "bob@example.com", nil, nil, nil,
		"2025-08-22", "10:00", "UTC")
	require.Error(t, err)
	assert.Equal(t, errors.ErrSlotUnavailable, errors.CodeOf(err))
}

func TestBookSurfacesCommitRace(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{available: true}
	svc, _, _ := newTestService(store, gw)

	// seed a confirmed row behind the advisory check's back
	rival := &entity.Appointment{
		LeadID:          uuid.New(),
		AppointmentTime: "10:00",
		Status:          entity.StatusConfirmed,
	}
	rival.AppointmentDate, _ = time.ParseInLocation(entity.DateLayout, "2025-08-22", time.UTC)

	// book via a racing store: advisory check sees an empty day, insert loses
	racingStore := &racingInsertStore{fakeStore: store, rival: rival}
	svc = NewSchedulingService(racingStore, &fakeLeads{}, gw, newFakeCache(), &fakeQueue{}, testSchedulingConfig())

	_, err := svc.Book(context.Background(), "Bob", "bob@example.com", nil, nil, nil,
		"2025-08-22", "10:00", "UTC")
	require.Error(t, err)
	assert.Equal(t, errors.ErrSlotConflict, errors.CodeOf(err))
}

// racingInsertStore commits a rival row between the advisory check and the
// insert, modelling two requests racing for one slot.
type racingInsertStore struct {
	*fakeStore
	rival *entity.Appointment
	once  sync.Once
}

func (r *racingInsertStore) Insert(ctx context.Context, apt *entity.Appointment) error {
	r.once.Do(func() {
		_ = r.fakeStore.Insert(ctx, r.rival)
	})
	return r.fakeStore.Insert(ctx, apt)
}

func TestUpdateRecreatesLostMirror(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{available: true}
	svc, _, _ := newTestService(store, gw)

	result, err := svc.Book(context.Background(), "Alice", "alice@example.com", nil, nil, nil,
		"2025-08-22", "10:00", "UTC")
	require.NoError(t, err)
	require.NotNil(t, result.Appointment.GoogleEventID)

	gw.updateErr = errors.NewAppError(errors.ErrEventNotFound, "gone", nil)

	updated, err := svc.Update(context.Background(), result.Appointment.ID, "2025-08-22", "12:00", "")
	require.NoError(t, err)

	assert.Equal(t, 1, gw.updateCalls)
	assert.Equal(t, 2, gw.createCalls, "lost mirror falls back to a fresh create")
	assert.NotNil(t, updated.Appointment.GoogleEventID)
	assert.Empty(t, updated.CalendarMessage)
}

func TestUpdateWithoutMirrorCreatesOne(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{
		available: false,
		createErr: errors.NewAppError(errors.ErrProvider, "provider down", nil),
	}
	svc, _, _ := newTestService(store, gw)

	result, err := svc.Book(context.Background(), "Alice", "alice@example.com", nil, nil, nil,
		"2025-08-22", "11:00", "UTC")
	require.NoError(t, err)
	require.Nil(t, result.Appointment.GoogleEventID)

	// provider comes back
	gw.available = true
	gw.createErr = nil

	updated, err := svc.Update(context.Background(), result.Appointment.ID, "2025-08-22", "12:00", "")
	require.NoError(t, err)

	assert.Equal(t, 0, gw.updateCalls, "no stale id to update")
	assert.NotNil(t, updated.Appointment.GoogleEventID)
}

func TestUpdateKeepsStaleMirrorOnProviderError(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{available: true}
	svc, _, _ := newTestService(store, gw)

	result, err := svc.Book(context.Background(), "Alice", "alice@example.com", nil, nil, nil,
		"2025-08-22", "10:00", "UTC")
	require.NoError(t, err)
	eventID := *result.Appointment.GoogleEventID

	gw.updateErr = errors.NewAppError(errors.ErrProvider, "timeout", nil)

	updated, err := svc.Update(context.Background(), result.Appointment.ID, "2025-08-22", "12:00", "")
	require.NoError(t, err, "local update persists despite mirror failure")

	assert.NotEmpty(t, updated.CalendarMessage)
	stored, err := store.GetByID(context.Background(), result.Appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, "12:00", stored.AppointmentTime)
	require.NotNil(t, stored.GoogleEventID)
	assert.Equal(t, eventID, *stored.GoogleEventID, "stale mirror kept")
}

func TestUpdateIgnoresOwnMirrorEvent(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{available: true}
	svc, _, _ := newTestService(store, gw)

	result, err := svc.Book(context.Background(), "Alice", "alice@example.com", nil, nil, nil,
		"2025-08-22", "10:00", "UTC")
	require.NoError(t, err)
	require.NotNil(t, result.Appointment.GoogleEventID)

	// the provider now reports the appointment's own mirror as a busy event
	start := time.Date(2025, 8, 22, 10, 0, 0, 0, time.UTC)
	gw.events = []gateway.Event{
		{ID: *result.Appointment.GoogleEventID, Start: start, End: start.Add(time.Hour)},
	}

	// timezone-only change keeps the same slot
	updated, err := svc.Update(context.Background(), result.Appointment.ID, "", "", "America/New_York")
	require.NoError(t, err, "own mirror event must not block the current slot")
	assert.Equal(t, "America/New_York", updated.Appointment.Timezone)
	assert.Equal(t, "10:00", updated.Appointment.AppointmentTime)

	// moving into a window overlapping the old slot also succeeds
	moved, err := svc.Update(context.Background(), result.Appointment.ID, "2025-08-22", "10:30", "")
	require.NoError(t, err)
	assert.Equal(t, "10:30", moved.Appointment.AppointmentTime)

	// a different provider event still blocks
	noon := time.Date(2025, 8, 22, 12, 0, 0, 0, time.UTC)
	gw.events = append(gw.events, gateway.Event{ID: "other", Start: noon, End: noon.Add(time.Hour)})
	_, err = svc.Update(context.Background(), result.Appointment.ID, "2025-08-22", "12:30", "")
	require.Error(t, err)
	assert.Equal(t, errors.ErrSlotUnavailable, errors.CodeOf(err))
}

func TestUpdateMissingAppointment(t *testing.T) {
	svc, _, _ := newTestService(newFakeStore(), &fakeGateway{available: true})

	_, err := svc.Update(context.Background(), uuid.New(), "2025-08-22", "12:00", "")
	require.Error(t, err)
	assert.Equal(t, errors.ErrNotFound, errors.CodeOf(err))
}

func TestCancelIsIdempotent(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{available: true}
	svc, _, _ := newTestService(store, gw)

	result, err := svc.Book(context.Background(), "Alice", "alice@example.com", nil, nil, nil,
		"2025-08-22", "10:00", "UTC")
	require.NoError(t, err)

	first, err := svc.Cancel(context.Background(), result.Appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCancelled, first.Appointment.Status)
	assert.Equal(t, 1, gw.deleteCalls)

	second, err := svc.Cancel(context.Background(), result.Appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCancelled, second.Appointment.Status)
	assert.Equal(t, 1, gw.deleteCalls, "no second provider delete")
}

func TestCancelledSlotIsBookableAgain(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{available: true}
	svc, _, _ := newTestService(store, gw)

	result, err := svc.Book(context.Background(), "Alice", "alice@example.com", nil, nil, nil,
		"2025-08-22", "10:00", "UTC")
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), result.Appointment.ID)
	require.NoError(t, err)

	_, err = svc.Book(context.Background(), "Bob", "bob@example.com", nil, nil, nil,
		"2025-08-22", "10:00", "UTC")
	assert.NoError(t, err, "cancelled appointments do not occupy the slot")
}

func TestGetAvailableSlotsProviderDownFallsBack(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{available: false}
	svc, _, _ := newTestService(store, gw)

	result, err := svc.GetAvailableSlots(context.Background(), "2025-08-22")
	require.NoError(t, err)

	assert.True(t, result.Degraded)
	assert.NotEmpty(t, result.Message)
	assert.Equal(t, []string{"10:00", "11:00", "12:00", "14:00"}, result.Slots)
}

func TestGetAvailableSlotsExcludesProviderEvents(t *testing.T) {
	store := newFakeStore()
	start := time.Date(2025, 8, 22, 10, 0, 0, 0, time.UTC)
	gw := &fakeGateway{
		available: true,
		events:    []gateway.Event{{ID: "ev1", Start: start, End: start.Add(time.Hour)}},
	}
	svc, _, _ := newTestService(store, gw)

	result, err := svc.GetAvailableSlots(context.Background(), "2025-08-22")
	require.NoError(t, err)

	assert.False(t, result.Degraded)
	assert.NotContains(t, result.Slots, "10:00")
	assert.NotContains(t, result.Slots, "10:30", "60 min slots overlapping the event are excluded")
	assert.Contains(t, result.Slots, "11:00")
}

func TestGetAvailableSlotsCachesHealthyResults(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{available: true}
	svc, _, cache := newTestService(store, gw)

	_, err := svc.GetAvailableSlots(context.Background(), "2025-08-22")
	require.NoError(t, err)
	_, ok, _ := cache.GetSlots(context.Background(), "2025-08-22")
	assert.True(t, ok)

	// booking invalidates the cached day
	_, err = svc.Book(context.Background(), "Alice", "alice@example.com", nil, nil, nil,
		"2025-08-22", "10:00", "UTC")
	require.NoError(t, err)
	_, ok, _ = cache.GetSlots(context.Background(), "2025-08-22")
	assert.False(t, ok)
}
