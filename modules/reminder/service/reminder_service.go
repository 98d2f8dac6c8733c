package service

import (
	"context"
	"time"

	"funnel-api/core/config"
	"funnel-api/core/logger"
	aptEntity "funnel-api/modules/appointment/entity"
	leadEntity "funnel-api/modules/lead/entity"
	notifService "funnel-api/modules/notification/service"

	"github.com/google/uuid"
)

// ReminderStore is the slice of the appointment repository the sweep needs.
type ReminderStore interface {
	ListDueForReminder(ctx context.Context, now time.Time, leadTime time.Duration, maxAttempts int) ([]aptEntity.Appointment, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID) error
	IncrementReminderAttempts(ctx context.Context, id uuid.UUID) error
}

type LeadLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*leadEntity.Lead, error)
}

// ReminderService sweeps the store for appointments due a reminder and sends
// through the Notifier. reminder_sent flips only after a successful send; a
// failed send bumps the attempt counter so the row drops out of the due set
// once it reaches the cap.
type ReminderService struct {
	store    ReminderStore
	leads    LeadLookup
	notifier notifService.Notifier
	cfg      config.SchedulingConfig
}

func NewReminderService(store ReminderStore, leads LeadLookup, notifier notifService.Notifier, cfg config.SchedulingConfig) *ReminderService {
	return &ReminderService{
		store:    store,
		leads:    leads,
		notifier: notifier,
		cfg:      cfg,
	}
}

// ProcessDue runs one sweep. It never aborts mid-batch: each appointment is
// handled independently and failures roll over to the next sweep.
func (s *ReminderService) ProcessDue(ctx context.Context, now time.Time) (sent, failed int, err error) {
	due, err := s.store.ListDueForReminder(ctx, now, s.cfg.ReminderLeadTime, s.cfg.ReminderMaxAttempts)
	if err != nil {
		return 0, 0, err
	}
	if len(due) == 0 {
		return 0, 0, nil
	}
	logger.Info("ReminderService:ProcessDue", "due", len(due))

	for i := range due {
		apt := &due[i]
		if s.processOne(ctx, apt) {
			sent++
		} else {
			failed++
		}
	}
	return sent, failed, nil
}

func (s *ReminderService) processOne(ctx context.Context, apt *aptEntity.Appointment) bool {
	lead, err := s.leads.GetByID(ctx, apt.LeadID)
	if err != nil {
		logger.Error("ReminderService: lead lookup failed", "appointment_id", apt.ID, "error", err)
		s.recordFailure(ctx, apt.ID)
		return false
	}

	if err := s.notifier.SendReminder(ctx, lead, apt); err != nil {
		logger.Error("ReminderService: send failed", "appointment_id", apt.ID, "error", err)
		s.recordFailure(ctx, apt.ID)
		return false
	}

	if err := s.store.MarkReminderSent(ctx, apt.ID); err != nil {
		// the email went out; the flag catches up on the next sweep
		logger.Error("ReminderService: mark sent failed", "appointment_id", apt.ID, "error", err)
	}
	return true
}

func (s *ReminderService) recordFailure(ctx context.Context, id uuid.UUID) {
	if err := s.store.IncrementReminderAttempts(ctx, id); err != nil {
		logger.Error("ReminderService: recording attempt failed", "appointment_id", id, "error", err)
	}
}
