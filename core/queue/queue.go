package queue

import (
	"context"
	"encoding/json"

	"funnel-api/core/config"
	"funnel-api/core/constants"
	"funnel-api/core/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type ConfirmationPayload struct {
	AppointmentID string `json:"appointment_id"`
}

// Client enqueues background tasks. Booking latency never includes SMTP;
// confirmation emails go through here.
type Client struct {
	client *asynq.Client
}

func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{client: asynq.NewClient(RedisOpt(cfg))}
}

func (c *Client) EnqueueConfirmation(ctx context.Context, appointmentID uuid.UUID) error {
	payload, err := json.Marshal(ConfirmationPayload{AppointmentID: appointmentID.String()})
	if err != nil {
		return err
	}
	task := asynq.NewTask(constants.TaskEmailConfirmation, payload)
	info, err := c.client.EnqueueContext(ctx, task, asynq.MaxRetry(5))
	if err != nil {
		logger.Error("Queue:EnqueueConfirmation:Error", "appointment_id", appointmentID, "error", err)
		return err
	}
	logger.Info("Queue:EnqueueConfirmation", "appointment_id", appointmentID, "task_id", info.ID)
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
