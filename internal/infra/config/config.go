package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
type AppConfig struct {
	TelegramToken        string
	DatabaseURL          string
	AdminTelegramIDs     []int64 // ADMIN_IDS, comma separated
	Location             *time.Location
	WindowDays           int // length of the compliance window after each anchor date
	ReminderIntervalDays int // reminder grid spacing inside the window
	CronSpecDailySweep   string
	LogLevel             string
	Environment          string
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	adminIDsStr := os.Getenv("ADMIN_IDS")
	if strings.TrimSpace(adminIDsStr) == "" {
		return nil, fmt.Errorf("ADMIN_IDS is not set")
	}
	for _, part := range strings.Split(adminIDsStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid admin ID %q in ADMIN_IDS: %w", part, err)
		}
		cfg.AdminTelegramIDs = append(cfg.AdminTelegramIDs, id)
	}
	if len(cfg.AdminTelegramIDs) == 0 {
		return nil, fmt.Errorf("ADMIN_IDS contains no valid IDs")
	}

	tzName := os.Getenv("TZ")
	if tzName == "" {
		tzName = "Asia/Singapore"
	}
	location, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TZ %q: %w", tzName, err)
	}
	cfg.Location = location

	cfg.WindowDays, err = intEnv("WINDOW_DAYS", 100)
	if err != nil {
		return nil, err
	}
	cfg.ReminderIntervalDays, err = intEnv("REMINDER_INTERVAL_DAYS", 10)
	if err != nil {
		return nil, err
	}
	if cfg.WindowDays <= 0 || cfg.ReminderIntervalDays <= 0 {
		return nil, fmt.Errorf("WINDOW_DAYS and REMINDER_INTERVAL_DAYS must be positive")
	}

	cfg.CronSpecDailySweep = os.Getenv("CRON_SPEC_DAILY_SWEEP")
	if cfg.CronSpecDailySweep == "" {
		cfg.CronSpecDailySweep = "0 9 * * *" // Default: 09:00 daily, local time
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	return cfg, nil
}

func intEnv(name string, fallback int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, nil
}
