package config

import (
	"fmt"
	"strings"
	"time"

	"funnel-api/core/constants"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	// AdminEmail receives a copy of every booking notification.
	AdminEmail string `mapstructure:"admin_email"`
}

// GoogleAPIConfig carries the pre-authorized calendar capability: a client
// and a long-lived refresh token obtained out of band. The core never runs
// a consent flow.
type GoogleAPIConfig struct {
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	RefreshToken string        `mapstructure:"refresh_token"`
	CalendarID   string        `mapstructure:"calendar_id"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type SchedulingConfig struct {
	BusinessHoursStart  int           `mapstructure:"business_hours_start"`
	BusinessHoursEnd    int           `mapstructure:"business_hours_end"`
	GranularityMinutes  int           `mapstructure:"granularity_minutes"`
	DurationMinutes     int           `mapstructure:"duration_minutes"`
	Timezone            string        `mapstructure:"timezone"`
	FallbackSlots       []string      `mapstructure:"fallback_slots"`
	ProviderTimeout     time.Duration `mapstructure:"provider_timeout"`
	ReminderLeadTime    time.Duration `mapstructure:"reminder_lead_time"`
	ReminderMaxAttempts int           `mapstructure:"reminder_max_attempts"`
	SweepInterval       time.Duration `mapstructure:"sweep_interval"`
}

type AdminConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	SMTP       SMTPConfig       `mapstructure:"smtp"`
	GoogleAPI  GoogleAPIConfig  `mapstructure:"google"`
	Scheduling SchedulingConfig `mapstructure:"scheduling"`
	Admin      AdminConfig      `mapstructure:"admin"`
}

// Load reads config.yaml (optional) and environment variables, applying
// scheduling defaults. Environment keys use underscores: SERVER_PORT,
// DATABASE_HOST, GOOGLE_REFRESH_TOKEN, ...
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 7070)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "funnel")
	v.SetDefault("database.sslmode", constants.DatabaseSSLMode)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("smtp.port", 465)

	v.SetDefault("google.calendar_id", "primary")
	v.SetDefault("google.timeout", constants.DefaultProviderTimeout)

	v.SetDefault("scheduling.business_hours_start", constants.DefaultBusinessHoursStart)
	v.SetDefault("scheduling.business_hours_end", constants.DefaultBusinessHoursEnd)
	v.SetDefault("scheduling.granularity_minutes", constants.DefaultSlotGranularityMin)
	v.SetDefault("scheduling.duration_minutes", constants.DefaultSlotDurationMin)
	v.SetDefault("scheduling.provider_timeout", constants.DefaultProviderTimeout)
	v.SetDefault("scheduling.timezone", "Europe/Moscow")
	v.SetDefault("scheduling.fallback_slots", []string{
		"10:00", "11:00", "12:00", "14:00", "15:00", "16:00", "17:00", "18:00",
	})
	v.SetDefault("scheduling.reminder_lead_time", constants.DefaultReminderLeadTime)
	v.SetDefault("scheduling.reminder_max_attempts", constants.DefaultReminderMaxAttempts)
	v.SetDefault("scheduling.sweep_interval", constants.DefaultSweepInterval)
}

