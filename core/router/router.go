// Package router maps inbound chat events to flow actions. It is transport
// neutral: adapters feed it raw action codes and free text, and render the
// Response it returns.
package router

import (
	"context"
	"strings"

	"github.com/glowdesk/bookingbot/core/flow"
	"github.com/glowdesk/bookingbot/core/logger"
	"github.com/glowdesk/bookingbot/core/session"
	"log/slog"
)

// Interpreter turns free text into a flow action. Implementations may call
// an NLP service; ok=false means the text was not understood.
type Interpreter interface {
	Interpret(ctx context.Context, text string) (act flow.Action, ok bool, err error)
}

// Router dispatches inbound events for every transport.
type Router struct {
	engine  *flow.Engine
	store   session.Store
	options session.OptionRegistry
	nlp     Interpreter
}

func New(engine *flow.Engine, store session.Store, options session.OptionRegistry) *Router {
	return &Router{engine: engine, store: store, options: options}
}

// SetInterpreter installs an optional free-text interpreter.
func (r *Router) SetInterpreter(nlp Interpreter) { r.nlp = nlp }

// HandleAction handles a structured action code, typically from an inline
// button callback.
func (r *Router) HandleAction(ctx context.Context, identity, code string) flow.Response {
	act := flow.ParseAction(code)
	if act.Kind == flow.KindUnknown {
		logger.Warn(ctx, "flow", "action.unknown", slog.String("code", logger.SanitizeLimit(code, 64)))
	}
	return r.engine.Handle(ctx, identity, act)
}

// HandleText handles a free-text message. Resolution order: slash command,
// custom date entry mode, numbered menu reply, interpreter, fallback.
func (r *Router) HandleText(ctx context.Context, identity, text string) flow.Response {
	text = strings.TrimSpace(text)

	if code, ok := commandCode(text); ok {
		return r.engine.Handle(ctx, identity, flow.ParseAction(code))
	}

	if sess, live, err := r.store.Get(ctx, identity); err == nil && live && sess.AwaitingCustomDate {
		return r.engine.HandleCustomDateText(ctx, identity, text)
	}

	if isNumericReply(text) {
		opt, ok, err := r.options.Resolve(ctx, identity, text)
		if err != nil {
			logger.Warn(ctx, "flow", "options.resolve_failed", slog.String("err", err.Error()))
		} else if ok {
			return r.HandleAction(ctx, identity, opt.ActionCode)
		}
	}

	if r.nlp != nil {
		act, ok, err := r.nlp.Interpret(ctx, text)
		if err != nil {
			logger.Warn(ctx, "flow", "nlp.failed", slog.String("err", err.Error()))
		} else if ok {
			return r.engine.Handle(ctx, identity, act)
		}
	}

	if isGreeting(text) {
		return r.engine.Handle(ctx, identity, flow.Action{Kind: flow.KindStart})
	}

	return r.engine.Handle(ctx, identity, flow.Action{Kind: flow.KindUnknown})
}

// commandCode maps a slash command (with optional @botname suffix) to its
// action code.
func commandCode(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	cmd := strings.Fields(text)[0]
	if at := strings.IndexByte(cmd, '@'); at > 0 {
		cmd = cmd[:at]
	}

	switch strings.ToLower(cmd) {
	case "/start", "/menu":
		return flow.CodeStart, true
	case "/book":
		return flow.CodeBook, true
	case "/appointments", "/my":
		return flow.CodeAppointments, true
	case "/services", "/prices":
		return flow.CodeServices, true
	case "/cancel":
		return flow.CodeCancelCmd, true
	case "/reschedule":
		return flow.CodeRescheduleCmd, true
	case "/hours":
		return flow.CodeHours, true
	case "/help":
		return flow.CodeHelp, true
	}
	return "", false
}

func isNumericReply(text string) bool {
	if text == "" || len(text) > 3 {
		return false
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isGreeting(text string) bool {
	switch strings.ToLower(strings.TrimRight(text, "!. ")) {
	case "hi", "hello", "hey", "good morning", "good afternoon", "good evening":
		return true
	}
	return false
}
