// Package config loads the bot configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coredatabase "github.com/glowdesk/bookingbot/core/database"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Enabled bool   `yaml:"enabled" envconfig:"TELEGRAM_ENABLED"`
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies Telegram webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// WhatsAppConfig holds WhatsApp Cloud API settings.
type WhatsAppConfig struct {
	Enabled     bool   `yaml:"enabled" envconfig:"WHATSAPP_ENABLED"`
	PhoneID     string `yaml:"phone_id" envconfig:"WHATSAPP_PHONE_ID"`
	AccessToken string `yaml:"access_token" envconfig:"WHATSAPP_ACCESS_TOKEN"`
	APIVersion  string `yaml:"api_version" envconfig:"WHATSAPP_API_VERSION"`
	// Listen is the address of the inbound webhook intake, e.g. ":8081".
	Listen string `yaml:"listen" envconfig:"WHATSAPP_LISTEN"`
}

// SessionConfig controls booking session storage.
type SessionConfig struct {
	// Backend selects the session store: "memory" or "redis".
	Backend    string `yaml:"backend" envconfig:"SESSION_BACKEND"`
	TTLMinutes int    `yaml:"ttl_minutes" envconfig:"SESSION_TTL_MINUTES"`
	RedisAddr  string `yaml:"redis_addr" envconfig:"SESSION_REDIS_ADDR"`
	RedisDB    int    `yaml:"redis_db" envconfig:"SESSION_REDIS_DB"`
}

// TTL returns the staleness window for booking contexts.
func (s SessionConfig) TTL() time.Duration {
	if s.TTLMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(s.TTLMinutes) * time.Minute
}

// SalonConfig describes the salon whose appointments the bot books.
type SalonConfig struct {
	Name    string `yaml:"name" envconfig:"SALON_NAME"`
	Phone   string `yaml:"phone" envconfig:"SALON_PHONE"`
	Address string `yaml:"address" envconfig:"SALON_ADDRESS"`
	MapsURL string `yaml:"maps_url" envconfig:"SALON_MAPS_URL"`
	// OpenHour/CloseHour bound the bookable day, 24h clock.
	OpenHour    int    `yaml:"open_hour" envconfig:"SALON_OPEN_HOUR"`
	CloseHour   int    `yaml:"close_hour" envconfig:"SALON_CLOSE_HOUR"`
	SlotMinutes int    `yaml:"slot_minutes" envconfig:"SALON_SLOT_MINUTES"`
	HoursText   string `yaml:"hours_text" envconfig:"SALON_HOURS_TEXT"`
}

// RemindersConfig controls the scheduled reminder and feedback campaigns.
type RemindersConfig struct {
	Enabled bool `yaml:"enabled" envconfig:"REMINDERS_ENABLED"`
	// ReminderSpec and FeedbackSpec are cron expressions.
	ReminderSpec string `yaml:"reminder_spec" envconfig:"REMINDERS_REMINDER_SPEC"`
	FeedbackSpec string `yaml:"feedback_spec" envconfig:"REMINDERS_FEEDBACK_SPEC"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	Dir     string `yaml:"dir"`
	BotFile string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

// RateLimitConfig holds settings for per-user rate limiting.
type RateLimitConfig struct {
	IntervalMS int `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
}

// Config aggregates the full application configuration.
type Config struct {
	Telegram  TelegramConfig      `yaml:"telegram"`
	Webhook   WebhookConfig       `yaml:"webhook"`
	WhatsApp  WhatsAppConfig      `yaml:"whatsapp"`
	Database  coredatabase.Config `yaml:"database"`
	Session   SessionConfig       `yaml:"session"`
	Salon     SalonConfig         `yaml:"salon"`
	Reminders RemindersConfig     `yaml:"reminders"`
	Logging   LoggingConfig       `yaml:"logging"`
	RateLimit RateLimitConfig     `yaml:"rate_limit"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if !cfg.Telegram.Enabled && !cfg.WhatsApp.Enabled {
		return fmt.Errorf("at least one transport must be enabled")
	}

	if cfg.Telegram.Enabled {
		if cfg.Telegram.Token == "" {
			return fmt.Errorf("telegram token is required")
		}

		rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
		if rm == "" {
			rm = RunModeLongpoll
		}
		if rm == "polling" { // accept alias
			rm = RunModeLongpoll
		}
		switch rm {
		case RunModeWebhook:
			if strings.TrimSpace(cfg.Webhook.URL) == "" {
				return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
			}
			if strings.TrimSpace(cfg.Webhook.Listen) == "" {
				return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
			}
			if cfg.Webhook.Port <= 0 {
				return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
			}
		case RunModeLongpoll:
			if cfg.Telegram.LongPollTimeoutSeconds < 0 {
				return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
			}
		default:
			return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
		}
		cfg.Telegram.RunMode = rm
	}

	if cfg.WhatsApp.Enabled {
		if cfg.WhatsApp.PhoneID == "" {
			return fmt.Errorf("whatsapp.phone_id is required")
		}
		if cfg.WhatsApp.AccessToken == "" {
			return fmt.Errorf("whatsapp.access_token is required")
		}
		if cfg.WhatsApp.APIVersion == "" {
			cfg.WhatsApp.APIVersion = "v18.0"
		}
		if cfg.WhatsApp.Listen == "" {
			cfg.WhatsApp.Listen = ":8081"
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Session.Backend)) {
	case "", "memory":
		cfg.Session.Backend = "memory"
	case "redis":
		cfg.Session.Backend = "redis"
		if strings.TrimSpace(cfg.Session.RedisAddr) == "" {
			return fmt.Errorf("session.redis_addr is required when session.backend is 'redis'")
		}
	default:
		return fmt.Errorf("invalid session.backend %q; allowed: memory, redis", cfg.Session.Backend)
	}

	if cfg.Salon.OpenHour <= 0 {
		cfg.Salon.OpenHour = 9
	}
	if cfg.Salon.CloseHour <= 0 {
		cfg.Salon.CloseHour = 19
	}
	if cfg.Salon.CloseHour <= cfg.Salon.OpenHour {
		return fmt.Errorf("salon.close_hour must be after salon.open_hour")
	}
	if cfg.Salon.SlotMinutes <= 0 {
		cfg.Salon.SlotMinutes = 30
	}

	if cfg.Reminders.Enabled {
		if strings.TrimSpace(cfg.Reminders.ReminderSpec) == "" {
			cfg.Reminders.ReminderSpec = "0 18 * * *"
		}
		if strings.TrimSpace(cfg.Reminders.FeedbackSpec) == "" {
			cfg.Reminders.FeedbackSpec = "0 20 * * *"
		}
	}

	return nil
}
