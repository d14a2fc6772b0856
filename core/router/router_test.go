package router

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glowdesk/bookingbot/core/booking"
	"github.com/glowdesk/bookingbot/core/flow"
	"github.com/glowdesk/bookingbot/core/session"
)

type staticCatalog struct{}

func (staticCatalog) ListServices(context.Context) ([]booking.Service, error) {
	return []booking.Service{{ID: 1, Name: "Haircut", PriceCents: 3500, DurationMin: 30}}, nil
}

func (staticCatalog) ListStylists(context.Context) ([]booking.Stylist, error) {
	return nil, nil
}

type staticScheduler struct{}

func (staticScheduler) Availability(_ context.Context, _ time.Time) ([]string, error) {
	return []string{"10:00"}, nil
}

func (staticScheduler) Create(_ context.Context, spec booking.Spec) (*booking.Appointment, error) {
	return &booking.Appointment{ID: 1, ServiceNames: spec.ServiceNames, Date: spec.Date, Time: spec.Time}, nil
}

func (staticScheduler) FindByContact(context.Context, string) ([]booking.Appointment, error) {
	return nil, nil
}

func (staticScheduler) FindByID(context.Context, int64) (*booking.Appointment, error) {
	return nil, booking.ErrNotFound
}

func (staticScheduler) Cancel(context.Context, int64) error { return booking.ErrNotFound }

func (staticScheduler) SaveFeedback(context.Context, int64, int) error { return nil }

func newTestRouter(t *testing.T) (*Router, *session.MemoryStore) {
	t.Helper()
	store := session.NewMemoryStore(30 * time.Minute)
	engine := flow.NewEngine(store, staticCatalog{}, staticScheduler{}, flow.Salon{Name: "Glow Studio"})
	return New(engine, store, store), store
}

func TestHandleTextSlashCommands(t *testing.T) {
	r, _ := newTestRouter(t)
	ctx := context.Background()

	resp := r.HandleText(ctx, "tg:1", "/start")
	assert.Contains(t, resp.Text, "Glow Studio")

	resp = r.HandleText(ctx, "tg:1", "/book")
	assert.Contains(t, resp.Text, "Which service")

	// @botname suffix and aliases resolve to the same commands.
	resp = r.HandleText(ctx, "tg:1", "/menu@glowdeskbot")
	assert.Contains(t, resp.Text, "Glow Studio")

	resp = r.HandleText(ctx, "tg:1", "/prices")
	assert.Contains(t, resp.Text, "Haircut")

	resp = r.HandleText(ctx, "tg:1", "/unknowncmd")
	assert.Contains(t, resp.Text, "didn't understand")
}

func TestHandleTextNumericReplySelectsOption(t *testing.T) {
	r, store := newTestRouter(t)
	ctx := context.Background()

	require.NoError(t, store.ReplaceOptions(ctx, "wa:1555", []session.CommandOption{
		{ID: "1", Label: "Book an appointment", ActionCode: flow.CodeBook},
		{ID: "2", Label: "Main menu", ActionCode: flow.CodeStart},
	}))

	resp := r.HandleText(ctx, "wa:1555", "1")
	assert.Contains(t, resp.Text, "Which service")

	resp = r.HandleText(ctx, "wa:1555", "2")
	assert.Contains(t, resp.Text, "Glow Studio")
}

func TestHandleTextNumericReplyWithoutMenuFallsThrough(t *testing.T) {
	r, _ := newTestRouter(t)

	resp := r.HandleText(context.Background(), "wa:1555", "3")
	assert.Contains(t, resp.Text, "didn't understand")
}

func TestHandleTextCustomDateModeWins(t *testing.T) {
	r, store := newTestRouter(t)
	ctx := context.Background()

	// Mid-flow with custom date entry armed; a numeric-looking reply must be
	// treated as date text, not as a menu pick.
	_, err := store.Merge(ctx, "tg:1", session.Partial{
		Services:           []string{"Haircut"},
		SetServices:        true,
		AwaitingCustomDate: session.Ptr(true),
	})
	require.NoError(t, err)
	require.NoError(t, store.ReplaceOptions(ctx, "tg:1", []session.CommandOption{
		{ID: "12", Label: "Main menu", ActionCode: flow.CodeStart},
	}))

	resp := r.HandleText(ctx, "tg:1", "12")
	assert.Contains(t, resp.Text, "couldn't read")
}

func TestHandleTextGreeting(t *testing.T) {
	r, _ := newTestRouter(t)

	for _, text := range []string{"hi", "Hello!", "HEY", "good morning"} {
		resp := r.HandleText(context.Background(), "tg:1", text)
		assert.Contains(t, resp.Text, "Glow Studio", text)
	}
}

type cannedInterpreter struct {
	act flow.Action
	ok  bool
}

func (c cannedInterpreter) Interpret(context.Context, string) (flow.Action, bool, error) {
	return c.act, c.ok, nil
}

func TestHandleTextInterpreter(t *testing.T) {
	r, _ := newTestRouter(t)
	ctx := context.Background()

	r.SetInterpreter(cannedInterpreter{act: flow.Action{Kind: flow.KindBook}, ok: true})
	resp := r.HandleText(ctx, "tg:1", "i need a haircut next week")
	assert.Contains(t, resp.Text, "Which service")

	r.SetInterpreter(cannedInterpreter{ok: false})
	resp = r.HandleText(ctx, "tg:1", "i need a haircut next week")
	assert.Contains(t, resp.Text, "didn't understand")
}

func TestHandleActionUnknownCode(t *testing.T) {
	r, _ := newTestRouter(t)

	resp := r.HandleAction(context.Background(), "tg:1", "definitely_not_a_code")
	assert.Contains(t, resp.Text, "didn't understand")
}

func TestHandleActionCallbackCode(t *testing.T) {
	r, _ := newTestRouter(t)

	resp := r.HandleAction(context.Background(), "tg:1", flow.CodeBook)
	assert.Contains(t, resp.Text, "Which service")
}
