package whatsapp

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	coreconfig "github.com/glowdesk/bookingbot/core/config"
	"github.com/glowdesk/bookingbot/core/flow"
	"github.com/glowdesk/bookingbot/core/logger"
	corerouter "github.com/glowdesk/bookingbot/core/router"
	"github.com/glowdesk/bookingbot/core/session"
	"log/slog"
)

// Adapter serves the booking flow over WhatsApp. The platform has no inline
// keyboards or message editing, so keyboards render as numbered menus and a
// reply with the bare number selects the option.
type Adapter struct {
	cfg     *coreconfig.Config
	router  *corerouter.Router
	client  *Client
	options session.OptionRegistry
}

// NewAdapter wires the WhatsApp transport over the shared router.
func NewAdapter(cfg *coreconfig.Config, r *corerouter.Router, client *Client, options session.OptionRegistry) *Adapter {
	return &Adapter{cfg: cfg, router: r, client: client, options: options}
}

func (a *Adapter) Name() string { return "whatsapp" }

func (a *Adapter) SupportsEdit() bool { return false }

// handleInbound processes one inbound customer message.
func (a *Adapter) handleInbound(ctx context.Context, msg inboundMessage) {
	identity := "wa:" + cleanPhoneNumber(msg.From)
	rid := logger.BuildRID("wa", msg.SequenceID, identity)
	ctx = logger.WithRID(ctx, rid)
	ctx = logger.WithIdentity(ctx, identity)
	ctx = logger.WithLogger(ctx, logger.Component("wa"))

	logger.Debug(ctx, "wa", "update.received",
		slog.String("rid", rid),
		slog.String("payload", logger.SanitizeLimit(msg.Text, 256)),
	)

	if msg.ID != "" {
		if err := a.client.MarkRead(ctx, msg.ID); err != nil {
			logger.Warn(ctx, "wa", "mark_read.failed", slog.String("err", err.Error()))
		}
	}

	resp := a.router.HandleText(ctx, identity, msg.Text)
	if err := a.deliver(ctx, identity, msg.From, resp); err != nil {
		logger.Error(ctx, "wa", "deliver.failed", slog.String("err", err.Error()))
	}
}

// deliver renders a flow response as text with a numbered menu and replaces
// the identity's option registry with the new menu. A response without
// actionable buttons clears the registry.
func (a *Adapter) deliver(ctx context.Context, identity, to string, resp flow.Response) error {
	if resp.Empty() {
		return nil
	}

	text, opts := RenderText(resp)
	if err := a.options.ReplaceOptions(ctx, identity, opts); err != nil {
		logger.Warn(ctx, "wa", "options.replace_failed", slog.String("err", err.Error()))
	}
	return a.client.SendText(ctx, to, text)
}

// Push delivers an unsolicited message (reminders, feedback prompts) to a
// "wa:<digits>" identity.
func (a *Adapter) Push(ctx context.Context, identity string, resp flow.Response) error {
	digits, ok := strings.CutPrefix(identity, "wa:")
	if !ok {
		return fmt.Errorf("whatsapp: foreign identity %q", logger.SanitizeLimit(identity, 64))
	}
	return a.deliver(ctx, identity, digits, resp)
}

// RenderText flattens a response into WhatsApp text. Action buttons become
// numbered options, headers become section lines, and link buttons are
// printed with their URL.
func RenderText(resp flow.Response) (string, []session.CommandOption) {
	var b strings.Builder
	b.WriteString(resp.Text)

	var opts []session.CommandOption
	n := 0
	for _, row := range resp.Keyboard {
		for _, btn := range row {
			switch {
			case btn.URL != "":
				fmt.Fprintf(&b, "\n%s: %s", btn.Label, btn.URL)
			case btn.IsHeader():
				b.WriteString("\n\n" + btn.Label)
			default:
				n++
				id := strconv.Itoa(n)
				fmt.Fprintf(&b, "\n%s. %s", id, btn.Label)
				opts = append(opts, session.CommandOption{
					ID:         id,
					Label:      btn.Label,
					ActionCode: btn.Action,
				})
			}
		}
	}
	if len(opts) > 0 {
		b.WriteString("\n\nReply with a number to choose.")
	}
	return b.String(), opts
}
