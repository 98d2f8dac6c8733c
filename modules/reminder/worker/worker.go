package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"funnel-api/core/constants"
	"funnel-api/core/logger"
	"funnel-api/core/queue"
	aptEntity "funnel-api/modules/appointment/entity"
	notifService "funnel-api/modules/notification/service"
	"funnel-api/modules/reminder/service"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// AppointmentLoader is what the confirmation handler needs from the
// appointment repository.
type AppointmentLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*aptEntity.Appointment, error)
	MarkConfirmationSent(ctx context.Context, id uuid.UUID) error
}

// Worker hosts the asynq server and scheduler: the periodic reminder sweep
// and the confirmation email tasks booked bookings enqueue.
type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux

	reminders *service.ReminderService
	apts      AppointmentLoader
	leads     service.LeadLookup
	notifier  notifService.Notifier
	sweepFreq time.Duration
}

func New(
	redis asynq.RedisClientOpt,
	reminders *service.ReminderService,
	apts AppointmentLoader,
	leads service.LeadLookup,
	notifier notifService.Notifier,
	sweepInterval time.Duration,
) *Worker {
	if sweepInterval <= 0 {
		sweepInterval = constants.DefaultSweepInterval
	}

	w := &Worker{
		server: asynq.NewServer(redis, asynq.Config{
			Concurrency: 5,
		}),
		scheduler: asynq.NewScheduler(redis, &asynq.SchedulerOpts{}),
		mux:       asynq.NewServeMux(),
		reminders: reminders,
		apts:      apts,
		leads:     leads,
		notifier:  notifier,
		sweepFreq: sweepInterval,
	}

	w.mux.HandleFunc(constants.TaskReminderSweep, w.handleSweep)
	w.mux.HandleFunc(constants.TaskEmailConfirmation, w.handleConfirmation)
	return w
}

// Start launches the task server and registers the periodic sweep.
func (w *Worker) Start() error {
	cronspec := fmt.Sprintf("@every %s", w.sweepFreq)
	if _, err := w.scheduler.Register(cronspec, asynq.NewTask(constants.TaskReminderSweep, nil)); err != nil {
		return fmt.Errorf("failed to register reminder sweep: %w", err)
	}

	go func() {
		if err := w.scheduler.Run(); err != nil {
			logger.Error("Worker: scheduler stopped", "error", err)
		}
	}()
	go func() {
		if err := w.server.Run(w.mux); err != nil {
			logger.Error("Worker: server stopped", "error", err)
		}
	}()

	logger.Info("Worker started", "sweep_interval", w.sweepFreq.String())
	return nil
}

func (w *Worker) Shutdown() {
	w.scheduler.Shutdown()
	w.server.Shutdown()
}

func (w *Worker) handleSweep(ctx context.Context, _ *asynq.Task) error {
	sent, failed, err := w.reminders.ProcessDue(ctx, time.Now())
	if err != nil {
		logger.Error("Worker: reminder sweep failed", "error", err)
		return err
	}
	if sent > 0 || failed > 0 {
		logger.Info("Worker: reminder sweep complete", "sent", sent, "failed", failed)
	}
	return nil
}

func (w *Worker) handleConfirmation(ctx context.Context, task *asynq.Task) error {
	var payload queue.ConfirmationPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("malformed confirmation payload: %w", err)
	}
	id, err := uuid.Parse(payload.AppointmentID)
	if err != nil {
		return fmt.Errorf("malformed appointment id %q: %w", payload.AppointmentID, err)
	}

	apt, err := w.apts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if apt.ConfirmationSent || apt.Status == aptEntity.StatusCancelled {
		return nil
	}

	lead, err := w.leads.GetByID(ctx, apt.LeadID)
	if err != nil {
		return err
	}

	if err := w.notifier.SendConfirmation(ctx, lead, apt); err != nil {
		// asynq retries with backoff
		return err
	}
	if err := w.apts.MarkConfirmationSent(ctx, apt.ID); err != nil {
		logger.Error("Worker: mark confirmation sent failed", "appointment_id", apt.ID, "error", err)
	}
	return nil
}
