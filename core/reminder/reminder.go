// Package reminder runs the scheduled outbound campaigns: day-before
// appointment reminders and post-visit feedback prompts.
package reminder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/glowdesk/bookingbot/core/booking"
	coreconfig "github.com/glowdesk/bookingbot/core/config"
	"github.com/glowdesk/bookingbot/core/flow"
	"github.com/glowdesk/bookingbot/core/logger"
	"log/slog"
)

// Source provides the appointments each campaign targets.
type Source interface {
	RemindersDue(ctx context.Context, date time.Time) ([]booking.Appointment, error)
	FeedbackDue(ctx context.Context, date time.Time) ([]booking.Appointment, error)
}

// Pusher delivers an unsolicited flow response to an identity. Each
// transport adapter implements it for its own identities.
type Pusher interface {
	Name() string
	Push(ctx context.Context, identity string, resp flow.Response) error
}

// transportByPrefix maps the identity prefix to the transport name.
var transportByPrefix = map[string]string{
	"tg": "telegram",
	"wa": "whatsapp",
}

// Service schedules and runs the campaigns.
type Service struct {
	cfg     coreconfig.RemindersConfig
	src     Source
	pushers map[string]Pusher
	cron    *cron.Cron
	now     func() time.Time
}

// New builds the campaign service over the given transports.
func New(cfg coreconfig.RemindersConfig, src Source, pushers ...Pusher) *Service {
	byName := make(map[string]Pusher, len(pushers))
	for _, p := range pushers {
		byName[p.Name()] = p
	}
	return &Service{
		cfg:     cfg,
		src:     src,
		pushers: byName,
		cron:    cron.New(),
		now:     time.Now,
	}
}

// Start registers the cron entries and begins scheduling.
func (s *Service) Start() error {
	if !s.cfg.Enabled {
		return nil
	}

	if _, err := s.cron.AddFunc(s.cfg.ReminderSpec, s.runReminders); err != nil {
		return fmt.Errorf("reminder: bad reminder spec %q: %w", s.cfg.ReminderSpec, err)
	}
	if _, err := s.cron.AddFunc(s.cfg.FeedbackSpec, s.runFeedback); err != nil {
		return fmt.Errorf("reminder: bad feedback spec %q: %w", s.cfg.FeedbackSpec, err)
	}

	s.cron.Start()
	logger.Flow.Info("campaigns scheduled",
		slog.String("event", "reminder.start"),
		slog.String("reminder_spec", s.cfg.ReminderSpec),
		slog.String("feedback_spec", s.cfg.FeedbackSpec),
	)
	return nil
}

// Stop halts scheduling and waits for a running campaign to finish.
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
}

// runReminders messages everyone booked for tomorrow.
func (s *Service) runReminders() {
	ctx := logger.Background()
	tomorrow := s.now().AddDate(0, 0, 1)

	due, err := s.src.RemindersDue(ctx, tomorrow)
	if err != nil {
		logger.Error(ctx, "flow", "reminder.fetch_failed", slog.String("err", err.Error()))
		return
	}

	sent := 0
	for _, apt := range due {
		resp := reminderResponse(apt)
		if s.push(ctx, apt.Contact, resp) {
			sent++
		}
	}
	logger.Info(ctx, "flow", "reminder.run",
		slog.Int("due", len(due)),
		slog.Int("sent", sent),
	)
}

// runFeedback prompts today's visitors who have not rated yet.
func (s *Service) runFeedback() {
	ctx := logger.Background()
	today := s.now()

	due, err := s.src.FeedbackDue(ctx, today)
	if err != nil {
		logger.Error(ctx, "flow", "feedback.fetch_failed", slog.String("err", err.Error()))
		return
	}

	sent := 0
	for _, apt := range due {
		resp := feedbackResponse(apt)
		if s.push(ctx, apt.Contact, resp) {
			sent++
		}
	}
	logger.Info(ctx, "flow", "feedback.run",
		slog.Int("due", len(due)),
		slog.Int("sent", sent),
	)
}

// push routes a response to the transport owning the identity. Contacts that
// are not transport identities (customer emails) have no push channel.
func (s *Service) push(ctx context.Context, identity string, resp flow.Response) bool {
	prefix, _, ok := strings.Cut(identity, ":")
	if !ok {
		return false
	}
	pusher, ok := s.pushers[transportByPrefix[prefix]]
	if !ok {
		return false
	}
	if err := pusher.Push(ctx, identity, resp); err != nil {
		logger.Warn(ctx, "flow", "campaign.push_failed",
			slog.String("transport", pusher.Name()),
			slog.String("err", err.Error()),
		)
		return false
	}
	return true
}

func reminderResponse(apt booking.Appointment) flow.Response {
	var b strings.Builder
	b.WriteString("⏰ Reminder: you have an appointment tomorrow!\n")
	fmt.Fprintf(&b, "\n💇 %s", strings.Join(apt.ServiceNames, " + "))
	if apt.StylistName != "" {
		fmt.Fprintf(&b, "\n👩‍🎨 %s", apt.StylistName)
	}
	fmt.Fprintf(&b, "\n🕐 %s", apt.Time)
	b.WriteString("\n\nSee you there! Need to make a change?")

	return flow.Response{
		Text: b.String(),
		Keyboard: [][]flow.Button{
			flow.Row(
				flow.Btn("🔁 Reschedule", fmt.Sprintf("reschedule_apt_%d", apt.ID)),
				flow.Btn("❌ Cancel", fmt.Sprintf("cancel_apt_%d", apt.ID)),
			),
		},
	}
}

func feedbackResponse(apt booking.Appointment) flow.Response {
	text := fmt.Sprintf("💖 Thanks for visiting us today!\nHow was your %s?",
		strings.Join(apt.ServiceNames, " + "))

	return flow.Response{
		Text: text,
		Keyboard: [][]flow.Button{
			flow.Row(flow.Btn("😍 Loved it", fmt.Sprintf("feedback:%d:5", apt.ID))),
			flow.Row(flow.Btn("🙂 It was fine", fmt.Sprintf("feedback:%d:3", apt.ID))),
			flow.Row(flow.Btn("😕 Not great", fmt.Sprintf("feedback:%d:1", apt.ID))),
		},
	}
}
