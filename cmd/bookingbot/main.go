package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/glowdesk/bookingbot/core/booking"
	"github.com/glowdesk/bookingbot/core/booking/store"
	"github.com/glowdesk/bookingbot/core/bootstrap"
	coreconfig "github.com/glowdesk/bookingbot/core/config"
	"github.com/glowdesk/bookingbot/core/flow"
	"github.com/glowdesk/bookingbot/core/logger"
	"github.com/glowdesk/bookingbot/core/platform"
	"github.com/glowdesk/bookingbot/core/reminder"
	corerouter "github.com/glowdesk/bookingbot/core/router"
	"github.com/glowdesk/bookingbot/core/session"
	"github.com/glowdesk/bookingbot/core/telegram"
	"github.com/glowdesk/bookingbot/core/whatsapp"
	"log/slog"
)

// sessionBackend is the combined store contract both backends satisfy.
type sessionBackend interface {
	session.Store
	session.OptionRegistry
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("bookingbot: %v", err)
	}
}

func run() error {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	log.Printf("loading config: %s", cfgPath)
	cfg, err := coreconfig.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	boot, err := bootstrap.Run(bootstrap.Options{Config: cfg})
	if err != nil {
		return err
	}
	defer func() {
		_ = boot.DB.Close()
		if err := logger.Shutdown(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	sessions, err := buildSessions(cfg)
	if err != nil {
		return err
	}

	repo := store.NewRepository(boot.DB, booking.Hours{
		OpenHour:    cfg.Salon.OpenHour,
		CloseHour:   cfg.Salon.CloseHour,
		SlotMinutes: cfg.Salon.SlotMinutes,
	})

	engine := flow.NewEngine(sessions, repo, repo, flow.Salon{
		Name:      cfg.Salon.Name,
		Phone:     cfg.Salon.Phone,
		Address:   cfg.Salon.Address,
		MapsURL:   cfg.Salon.MapsURL,
		HoursText: cfg.Salon.HoursText,
	})
	rt := corerouter.New(engine, sessions, sessions)

	var (
		transports []platform.Transport
		pushers    []reminder.Pusher
	)
	if cfg.Telegram.Enabled {
		tg := telegram.NewAdapter(cfg, rt, sessions)
		transports = append(transports, tg)
		pushers = append(pushers, tg)
	}
	if cfg.WhatsApp.Enabled {
		client, err := whatsapp.NewClient(cfg.WhatsApp.PhoneID, cfg.WhatsApp.AccessToken, cfg.WhatsApp.APIVersion)
		if err != nil {
			return err
		}
		wa := whatsapp.NewAdapter(cfg, rt, client, sessions)
		transports = append(transports, wa)
		pushers = append(pushers, wa)
	}

	campaigns := reminder.New(cfg.Reminders, repo, pushers...)
	if err := campaigns.Start(); err != nil {
		return err
	}
	defer campaigns.Stop()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.L.With("component", "app").Info("app ready",
		slog.String("event", "ready"),
		slog.Int("transports", len(transports)),
	)
	return platform.RunAll(ctx, transports...)
}

// buildSessions selects the session backend from config.
func buildSessions(cfg *coreconfig.Config) (sessionBackend, error) {
	switch cfg.Session.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr: cfg.Session.RedisAddr,
			DB:   cfg.Session.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("session: redis ping: %w", err)
		}
		return session.NewRedisStore(client, cfg.Session.TTL()), nil
	default:
		return session.NewMemoryStore(cfg.Session.TTL()), nil
	}
}
