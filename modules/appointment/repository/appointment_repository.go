package repository

import (
	"context"
	"database/sql"
	"time"

	"funnel-api/core/database"
	"funnel-api/core/errors"
	"funnel-api/core/logger"
	"funnel-api/modules/appointment/entity"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

type AppointmentRepository struct {
	db database.Database
}

func NewAppointmentRepository(db database.Database) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

// Insert commits the appointment row. The partial unique index over
// (appointment_date, appointment_time) WHERE status = 'confirmed' is the
// authoritative race-resolution point: losing a race surfaces SlotConflict.
func (r *AppointmentRepository) Insert(ctx context.Context, apt *entity.Appointment) error {
	query := `
		INSERT INTO appointments
			(lead_id, appointment_date, appointment_time, timezone, status,
			 meet_link, meeting_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	row := r.db.QueryRowContext(ctx, query,
		apt.LeadID, apt.DateString(), apt.AppointmentTime, apt.Timezone, apt.Status,
		apt.MeetLink, apt.MeetingCode)
	if err := row.Scan(&apt.ID, &apt.CreatedAt, &apt.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return errors.NewAppError(errors.ErrSlotConflict, "Slot was just taken by another booking", err)
		}
		logger.Error("AppointmentRepository:Insert:Error", "error", err)
		return errors.NewAppError(errors.ErrStorage, "Failed to save appointment", err)
	}
	return nil
}

func (r *AppointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Appointment, error) {
	var apt entity.Appointment
	err := r.db.GetContext(ctx, &apt, `SELECT * FROM appointments WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, errors.NewAppError(errors.ErrNotFound, "Appointment not found", err)
	}
	if err != nil {
		logger.Error("AppointmentRepository:GetByID:Error", "id", id, "error", err)
		return nil, errors.NewAppError(errors.ErrStorage, "Failed to load appointment", err)
	}
	return &apt, nil
}

// UpdateSchedule moves an appointment to a new slot. A clash with another
// confirmed row surfaces SlotConflict, same as Insert.
func (r *AppointmentRepository) UpdateSchedule(ctx context.Context, id uuid.UUID, date, timeOfDay, timezone string) error {
	query := `
		UPDATE appointments
		SET appointment_date = $2, appointment_time = $3, timezone = $4, updated_at = NOW()
		WHERE id = $1
	`
	if err := r.db.ExecContext(ctx, query, id, date, timeOfDay, timezone); err != nil {
		if isUniqueViolation(err) {
			return errors.NewAppError(errors.ErrSlotConflict, "Slot was just taken by another booking", err)
		}
		logger.Error("AppointmentRepository:UpdateSchedule:Error", "id", id, "error", err)
		return errors.NewAppError(errors.ErrStorage, "Failed to update appointment", err)
	}
	return nil
}

func (r *AppointmentRepository) MarkCancelled(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE appointments SET status = $2, updated_at = NOW() WHERE id = $1`
	if err := r.db.ExecContext(ctx, query, id, entity.StatusCancelled); err != nil {
		logger.Error("AppointmentRepository:MarkCancelled:Error", "id", id, "error", err)
		return errors.NewAppError(errors.ErrStorage, "Failed to cancel appointment", err)
	}
	return nil
}

func (r *AppointmentRepository) ListConfirmedByDate(ctx context.Context, date string) ([]entity.Appointment, error) {
	query := `
		SELECT * FROM appointments
		WHERE appointment_date = $1 AND status = $2
		ORDER BY appointment_time
	`
	var apts []entity.Appointment
	if err := r.db.SelectContext(ctx, &apts, query, date, entity.StatusConfirmed); err != nil {
		logger.Error("AppointmentRepository:ListConfirmedByDate:Error", "date", date, "error", err)
		return nil, errors.NewAppError(errors.ErrStorage, "Failed to list appointments", err)
	}
	return apts, nil
}

// ListDueForReminder returns confirmed, un-reminded appointments whose start
// falls within the lead-time window, skipping rows at the attempts cap.
func (r *AppointmentRepository) ListDueForReminder(ctx context.Context, now time.Time, leadTime time.Duration, maxAttempts int) ([]entity.Appointment, error) {
	query := `
		SELECT * FROM appointments a
		WHERE a.status = $1
		  AND a.reminder_sent = FALSE
		  AND a.reminder_attempts < $2
		  AND ((a.appointment_date + a.appointment_time::time) AT TIME ZONE a.timezone) <= $3
		  AND ((a.appointment_date + a.appointment_time::time) AT TIME ZONE a.timezone) > $4
		ORDER BY a.appointment_date, a.appointment_time
	`
	var apts []entity.Appointment
	err := r.db.SelectContext(ctx, &apts, query,
		entity.StatusConfirmed, maxAttempts, now.Add(leadTime), now)
	if err != nil {
		logger.Error("AppointmentRepository:ListDueForReminder:Error", "error", err)
		return nil, errors.NewAppError(errors.ErrStorage, "Failed to list due reminders", err)
	}
	return apts, nil
}

// MarkReminderSent flips reminder_sent exactly once.
func (r *AppointmentRepository) MarkReminderSent(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE appointments SET reminder_sent = TRUE, updated_at = NOW() WHERE id = $1 AND reminder_sent = FALSE`
	if err := r.db.ExecContext(ctx, query, id); err != nil {
		logger.Error("AppointmentRepository:MarkReminderSent:Error", "id", id, "error", err)
		return errors.NewAppError(errors.ErrStorage, "Failed to mark reminder sent", err)
	}
	return nil
}

func (r *AppointmentRepository) IncrementReminderAttempts(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE appointments SET reminder_attempts = reminder_attempts + 1, updated_at = NOW() WHERE id = $1`
	if err := r.db.ExecContext(ctx, query, id); err != nil {
		logger.Error("AppointmentRepository:IncrementReminderAttempts:Error", "id", id, "error", err)
		return errors.NewAppError(errors.ErrStorage, "Failed to record reminder attempt", err)
	}
	return nil
}

func (r *AppointmentRepository) MarkConfirmationSent(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE appointments SET confirmation_sent = TRUE, updated_at = NOW() WHERE id = $1`
	if err := r.db.ExecContext(ctx, query, id); err != nil {
		logger.Error("AppointmentRepository:MarkConfirmationSent:Error", "id", id, "error", err)
		return errors.NewAppError(errors.ErrStorage, "Failed to mark confirmation sent", err)
	}
	return nil
}

// SetExternalEvent records a successful mirror.
func (r *AppointmentRepository) SetExternalEvent(ctx context.Context, id uuid.UUID, eventID, htmlLink string) error {
	query := `
		UPDATE appointments
		SET google_event_id = $2, html_link = $3, calendar_synced = TRUE, updated_at = NOW()
		WHERE id = $1
	`
	if err := r.db.ExecContext(ctx, query, id, eventID, htmlLink); err != nil {
		logger.Error("AppointmentRepository:SetExternalEvent:Error", "id", id, "error", err)
		return errors.NewAppError(errors.ErrStorage, "Failed to record calendar event", err)
	}
	return nil
}

// ClearExternalEvent drops a stale mirror reference.
func (r *AppointmentRepository) ClearExternalEvent(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE appointments
		SET google_event_id = NULL, html_link = NULL, calendar_synced = FALSE, updated_at = NOW()
		WHERE id = $1
	`
	if err := r.db.ExecContext(ctx, query, id); err != nil {
		logger.Error("AppointmentRepository:ClearExternalEvent:Error", "id", id, "error", err)
		return errors.NewAppError(errors.ErrStorage, "Failed to clear calendar event", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == uniqueViolation
	}
	return false
}
