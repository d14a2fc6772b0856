package telegram

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	coreconfig "github.com/glowdesk/bookingbot/core/config"
	"github.com/glowdesk/bookingbot/core/flow"
	"github.com/glowdesk/bookingbot/core/logger"
	corerouter "github.com/glowdesk/bookingbot/core/router"
	"github.com/glowdesk/bookingbot/core/session"
	tghelpers "github.com/glowdesk/bookingbot/core/telegram/helpers"
	"github.com/glowdesk/bookingbot/core/telegram/keyboard"
	"github.com/glowdesk/bookingbot/core/telegram/middleware"
	tgsender "github.com/glowdesk/bookingbot/core/telegram/sender"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// Adapter serves the booking flow over Telegram. Step turns edit the
// previous bot message in place so the chat reads as one evolving card;
// terminal turns start a new message.
type Adapter struct {
	cfg        *coreconfig.Config
	router     *corerouter.Router
	store      session.Store
	dispatcher *tgsender.Dispatcher

	bot *tele.Bot
}

// NewAdapter wires the Telegram transport over the shared router.
func NewAdapter(cfg *coreconfig.Config, r *corerouter.Router, store session.Store) *Adapter {
	return &Adapter{cfg: cfg, router: r, store: store}
}

func (a *Adapter) Name() string { return "telegram" }

func (a *Adapter) SupportsEdit() bool { return true }

// onCommand routes a slash command straight through the shared router so
// Telegram and free text resolve identically.
func (a *Adapter) onCommand(name string) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		identity := tghelpers.Identity(c)
		return a.handleWithSummary(c, normalizeHandlerName(name), func() error {
			resp := a.router.HandleText(ctx, identity, c.Text())
			return a.deliver(ctx, c, identity, resp)
		})
	}
}

// onText handles free text: numbered replies, custom date entry, and fallback.
func (a *Adapter) onText(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	identity := tghelpers.Identity(c)
	return a.handleWithSummary(c, "text", func() error {
		resp := a.router.HandleText(ctx, identity, c.Text())
		return a.deliver(ctx, c, identity, resp)
	})
}

// onCallback handles inline button taps. The action code travels in the
// callback payload; the callback is answered immediately so the client
// spinner never hangs on slow handlers.
func (a *Adapter) onCallback(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	identity := tghelpers.Identity(c)
	code := callbackAction(c.Callback())

	if err := c.Respond(&tele.CallbackResponse{}); err != nil {
		logger.Warn(ctx, "tg", "callback.respond_failed", slog.String("err", err.Error()))
	}
	if code == "" || code == flow.CodeNoOp {
		return nil
	}

	return a.handleWithSummary(c, "callback", func() error {
		resp := a.router.HandleAction(ctx, identity, code)
		return a.deliver(ctx, c, identity, resp)
	}, slog.String("action", logger.SanitizeLimit(code, 64)))
}

// callbackAction extracts the action code from telebot's \f<unique>|<data>
// callback encoding.
func callbackAction(cb *tele.Callback) string {
	if cb == nil {
		return ""
	}
	raw := strings.TrimPrefix(cb.Data, "\f")
	if unique, data, ok := strings.Cut(raw, "|"); ok && strings.TrimSpace(unique) == keyboard.CallbackUnique {
		return strings.TrimSpace(data)
	}
	return strings.TrimSpace(raw)
}

// deliver renders a flow response into the chat. EditPrevious rewrites the
// current step message; otherwise a new message is sent and recorded as the
// step message for later edits.
func (a *Adapter) deliver(ctx context.Context, c tele.Context, identity string, resp flow.Response) error {
	if resp.Empty() {
		return nil
	}
	markup := keyboard.FromResponse(resp)

	if resp.EditPrevious {
		if cb := c.Callback(); cb != nil && cb.Message != nil {
			return a.enqueue(ctx, "edit.step", "editMessageText", func() error {
				if markup != nil {
					return c.Edit(resp.Text, markup)
				}
				return c.Edit(resp.Text)
			})
		}
		if msg, ok := a.storedStepMessage(ctx, c, identity); ok {
			return a.enqueue(ctx, "edit.step", "editMessageText", func() error {
				var err error
				if markup != nil {
					_, err = a.bot.Edit(msg, resp.Text, markup)
				} else {
					_, err = a.bot.Edit(msg, resp.Text)
				}
				if err != nil {
					return a.sendAndRemember(ctx, c, identity, resp.Text, markup)
				}
				return nil
			})
		}
	}

	return a.enqueue(ctx, "send.step", "sendMessage", func() error {
		return a.sendAndRemember(ctx, c, identity, resp.Text, markup)
	})
}

// sendAndRemember sends a new message and records its ID as the current step
// message. Runs on a dispatcher worker.
func (a *Adapter) sendAndRemember(ctx context.Context, c tele.Context, identity, text string, markup *tele.ReplyMarkup) error {
	chat := c.Chat()
	if chat == nil {
		return tele.ErrBadRecipient
	}

	var (
		msg *tele.Message
		err error
	)
	if markup != nil {
		msg, err = a.bot.Send(chat, text, markup)
	} else {
		msg, err = a.bot.Send(chat, text)
	}
	if err != nil {
		return err
	}

	stepID := strconv.Itoa(msg.ID)
	if _, mergeErr := a.store.Merge(ctx, identity, session.Partial{MessageID: &stepID}); mergeErr != nil {
		logger.Warn(ctx, "tg", "step_message.save_failed", slog.String("err", mergeErr.Error()))
	}
	return nil
}

// storedStepMessage resolves the session's current step message for edits on
// turns that did not come from a button tap.
func (a *Adapter) storedStepMessage(ctx context.Context, c tele.Context, identity string) (*tele.StoredMessage, bool) {
	chat := c.Chat()
	if chat == nil {
		return nil, false
	}
	sess, _, err := a.store.Get(ctx, identity)
	if err != nil || sess.CurrentStepMessageID == "" {
		return nil, false
	}
	return &tele.StoredMessage{
		MessageID: sess.CurrentStepMessageID,
		ChatID:    chat.ID,
	}, true
}

func (a *Adapter) enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if a.dispatcher == nil {
		return run()
	}
	if err := a.dispatcher.Enqueue(ctx, action, endpoint, run); err != nil {
		return run()
	}
	return nil
}

// Push delivers an unsolicited message (reminders, feedback prompts) to a
// "tg:<id>" identity. Push never edits; campaign messages always start a new
// message in the chat.
func (a *Adapter) Push(ctx context.Context, identity string, resp flow.Response) error {
	if a.bot == nil {
		return fmt.Errorf("telegram: bot not running")
	}
	raw, ok := strings.CutPrefix(identity, "tg:")
	if !ok {
		return fmt.Errorf("telegram: foreign identity %q", logger.SanitizeLimit(identity, 64))
	}
	chatID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: bad identity %q", logger.SanitizeLimit(identity, 64))
	}

	markup := keyboard.FromResponse(resp)
	return a.enqueue(ctx, "push", "sendMessage", func() error {
		chat := &tele.Chat{ID: chatID}
		var sendErr error
		if markup != nil {
			_, sendErr = a.bot.Send(chat, resp.Text, markup)
		} else {
			_, sendErr = a.bot.Send(chat, resp.Text)
		}
		return sendErr
	})
}

// handleWithSummary runs a handler and emits one summary log line with
// status, outcome, message counters and timing.
func (a *Adapter) handleWithSummary(c tele.Context, handlerName string, fn func() error, extras ...slog.Attr) error {
	start := time.Now()
	ctx := tghelpers.WithHandler(c, handlerName)
	err := fn()

	msgs, kb := middleware.GetCounters(c)
	status := "ok"
	if err != nil {
		status = "fail"
	}

	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("handler", handlerName),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", deriveErrorCode(err)),
		)
	}
	attrs = append(attrs, extras...)
	logger.LogEvent(ctx, logger.Component("tg"), slog.LevelInfo, "handler.handled", attrs...)
	return err
}

func normalizeHandlerName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	name = strings.TrimPrefix(name, "/")
	name = strings.ReplaceAll(name, " ", "_")
	return strings.ToLower(name)
}

func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	type coder interface{ Code() string }
	if c, ok := err.(coder); ok {
		code := strings.TrimSpace(c.Code())
		if code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil {
		return strings.ToUpper(strings.ReplaceAll(t.Name(), " ", "_"))
	}
	return "UNKNOWN_ERROR"
}
