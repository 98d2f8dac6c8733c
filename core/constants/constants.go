package constants

import "time"

// Database pool settings.
const (
	DatabaseSSLMode         = "disable"
	DatabaseMaxOpenConns    = 25
	DatabaseMaxIdleConns    = 5
	DatabaseConnMaxLifetime = 30 // minutes
)

// Request handling.
const (
	DefaultRequestTimeout = 30 * time.Second
	ContextTokenData      = "token_data"
)

// Scheduling defaults. Overridable via config.
const (
	DefaultBusinessHoursStart  = 10
	DefaultBusinessHoursEnd    = 19
	DefaultSlotGranularityMin  = 30
	DefaultSlotDurationMin     = 60
	DefaultProviderTimeout     = 10 * time.Second
	DefaultReminderLeadTime    = time.Hour
	DefaultReminderMaxAttempts = 5
	DefaultSweepInterval       = time.Minute
	SlotCacheTTL               = 5 * time.Minute
)

// Asynq task type names.
const (
	TaskReminderSweep     = "reminder:sweep"
	TaskEmailConfirmation = "email:confirmation"
)
