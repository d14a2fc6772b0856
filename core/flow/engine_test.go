package flow

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glowdesk/bookingbot/core/booking"
	"github.com/glowdesk/bookingbot/core/session"
)

type fakeCatalog struct {
	services []booking.Service
	stylists []booking.Stylist
	err      error
}

func (f *fakeCatalog) ListServices(context.Context) ([]booking.Service, error) {
	return f.services, f.err
}

func (f *fakeCatalog) ListStylists(context.Context) ([]booking.Stylist, error) {
	return f.stylists, f.err
}

type fakeScheduler struct {
	slots     map[string][]string
	createErr error
	created   []booking.Spec
	appts     map[int64]*booking.Appointment
	canceled  []int64
	feedback  map[int64]int
	nextID    int64
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{
		slots:    map[string][]string{},
		appts:    map[int64]*booking.Appointment{},
		feedback: map[int64]int{},
	}
}

func (f *fakeScheduler) Availability(_ context.Context, date time.Time) ([]string, error) {
	return f.slots[date.Format(booking.DateFormat)], nil
}

func (f *fakeScheduler) Create(_ context.Context, spec booking.Spec) (*booking.Appointment, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, spec)
	f.nextID++
	apt := &booking.Appointment{
		ID:           f.nextID,
		ServiceNames: spec.ServiceNames,
		StylistID:    spec.StylistID,
		Date:         spec.Date,
		Time:         spec.Time,
		DurationMin:  spec.DurationMin,
		PriceCents:   spec.PriceCents,
		CustomerName: spec.CustomerName,
		Contact:      spec.Contact,
		CreatedAt:    time.Now(),
	}
	f.appts[apt.ID] = apt
	return apt, nil
}

func (f *fakeScheduler) FindByContact(_ context.Context, contact string) ([]booking.Appointment, error) {
	ids := make([]int64, 0, len(f.appts))
	for id := range f.appts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []booking.Appointment
	for _, id := range ids {
		apt := f.appts[id]
		if apt.Active() && apt.Contact == contact {
			out = append(out, *apt)
		}
	}
	return out, nil
}

func (f *fakeScheduler) FindByID(_ context.Context, id int64) (*booking.Appointment, error) {
	apt, ok := f.appts[id]
	if !ok || !apt.Active() {
		return nil, booking.ErrNotFound
	}
	copied := *apt
	return &copied, nil
}

func (f *fakeScheduler) Cancel(_ context.Context, id int64) error {
	apt, ok := f.appts[id]
	if !ok || !apt.Active() {
		return booking.ErrNotFound
	}
	now := time.Now()
	apt.CanceledAt = &now
	f.canceled = append(f.canceled, id)
	return nil
}

func (f *fakeScheduler) SaveFeedback(_ context.Context, id int64, rating int) error {
	if _, ok := f.appts[id]; !ok {
		return booking.ErrNotFound
	}
	f.feedback[id] = rating
	return nil
}

// testNow is a Monday morning; dateMenu and slot filtering are relative to it.
var testNow = time.Date(2026, 9, 7, 8, 0, 0, 0, time.Local)

func newTestEngine(t *testing.T) (*Engine, *session.MemoryStore, *fakeScheduler, *fakeCatalog) {
	t.Helper()

	store := session.NewMemoryStore(30 * time.Minute)
	store.SetClock(func() time.Time { return testNow })

	catalog := &fakeCatalog{
		services: []booking.Service{
			{ID: 1, Name: "Haircut", PriceCents: 3500, DurationMin: 30},
			{ID: 2, Name: "Keratin Treatment", PriceCents: 18000, DurationMin: 120},
			{ID: 3, Name: "Beard Trim", PriceCents: 2000, DurationMin: 20},
		},
		stylists: []booking.Stylist{
			{ID: 1, Name: "Maria"},
			{ID: 2, Name: "Sofia"},
		},
	}

	sched := newFakeScheduler()
	sched.slots[testNow.Format(booking.DateFormat)] = []string{"09:00", "11:30", "14:00", "17:30"}

	engine := NewEngine(store, catalog, sched, Salon{
		Name:      "Glow Studio",
		Phone:     "+1 555 010 2030",
		Address:   "12 Main St",
		MapsURL:   "https://maps.example/glow",
		HoursText: "Mon-Sat 9:00-19:00",
	})
	engine.SetClock(func() time.Time { return testNow })

	return engine, store, sched, catalog
}

func buttonCodes(resp Response) []string {
	var codes []string
	for _, row := range resp.Keyboard {
		for _, btn := range row {
			if btn.Action != "" {
				codes = append(codes, btn.Action)
			}
		}
	}
	return codes
}

func hasButton(resp Response, code string) bool {
	for _, c := range buttonCodes(resp) {
		if c == code {
			return true
		}
	}
	return false
}

// walk drives the engine through a sequence of raw action codes and returns
// the last response.
func walk(t *testing.T, e *Engine, identity string, codes ...string) Response {
	t.Helper()
	var resp Response
	for _, code := range codes {
		act := ParseAction(code)
		require.NotEqual(t, KindUnknown, act.Kind, "bad test code %q", code)
		resp = e.Handle(context.Background(), identity, act)
	}
	return resp
}

func TestMainMenuOffersQuickRebookAfterBooking(t *testing.T) {
	engine, store, _, _ := newTestEngine(t)
	ctx := context.Background()

	resp := engine.Handle(ctx, "tg:1", Action{Kind: KindStart})
	assert.False(t, hasButton(resp, CodeQuickRebook))

	_, err := store.Merge(ctx, "tg:1", session.Partial{LastService: session.Ptr("Haircut")})
	require.NoError(t, err)

	resp = engine.Handle(ctx, "tg:1", Action{Kind: KindStart})
	assert.True(t, hasButton(resp, CodeQuickRebook))
	assert.Contains(t, resp.Text, "Glow Studio")
}

func TestSelectServiceNeverDuplicates(t *testing.T) {
	engine, store, _, _ := newTestEngine(t)
	ctx := context.Background()

	walk(t, engine, "tg:1", "cmd_book", "book_service_1", "add_service_1", "add_service_2")

	sess, _, err := store.Get(ctx, "tg:1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Haircut", "Keratin Treatment"}, sess.Services,
		"re-selecting a service must not duplicate it, order follows selection")
}

func TestAddAnotherMenuExcludesChosenServices(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)

	resp := walk(t, engine, "tg:1", "cmd_book", "book_service_1", "add_another_service")

	assert.False(t, hasButton(resp, "add_service_1"), "already chosen service stays hidden")
	assert.True(t, hasButton(resp, "add_service_2"))
	assert.True(t, hasButton(resp, CodeProceed))
}

func TestSelectStylistNamedAndAny(t *testing.T) {
	engine, store, _, _ := newTestEngine(t)
	ctx := context.Background()

	walk(t, engine, "tg:1", "cmd_book", "book_service_1", "proceed_to_stylist", "select_stylist_2")
	sess, _, err := store.Get(ctx, "tg:1")
	require.NoError(t, err)
	require.NotNil(t, sess.StylistID)
	assert.Equal(t, int64(2), *sess.StylistID)

	walk(t, engine, "tg:2", "cmd_book", "book_service_1", "proceed_to_stylist", "select_stylist_any")
	sess, _, err = store.Get(ctx, "tg:2")
	require.NoError(t, err)
	assert.Nil(t, sess.StylistID, "no-preference selection stores no stylist")
}

func TestStylistStepSkippedWhenSalonHasNoStylists(t *testing.T) {
	engine, _, _, catalog := newTestEngine(t)
	catalog.stylists = nil

	resp := walk(t, engine, "tg:1", "cmd_book", "book_service_1", "proceed_to_stylist")

	assert.Contains(t, resp.Text, "When would you like to come in")
	assert.True(t, hasButton(resp, "pick_date_"+testNow.Format(booking.DateFormat)))
}

func TestDateMenuShowsWeekAndNav(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)

	resp := walk(t, engine, "tg:1", "cmd_book", "book_service_1", "proceed_to_stylist", "select_stylist_any")

	codes := buttonCodes(resp)
	var dates int
	for _, c := range codes {
		if strings.HasPrefix(c, "pick_date_") {
			dates++
		}
	}
	assert.Equal(t, 7, dates)
	assert.True(t, hasButton(resp, "week_nav_1"))
	assert.False(t, hasButton(resp, "week_nav_0"), "no back nav on the first week")
	assert.True(t, hasButton(resp, CodeCustomDate))
}

func TestWeekNavClampsToWindow(t *testing.T) {
	engine, store, _, _ := newTestEngine(t)
	ctx := context.Background()

	walk(t, engine, "tg:1", "cmd_book", "book_service_1", "proceed_to_stylist", "select_stylist_any", "week_nav_9")

	sess, _, err := store.Get(ctx, "tg:1")
	require.NoError(t, err)
	assert.Equal(t, 1, sess.CurrentWeekOffset)
}

func TestPickDateWithOpeningsShowsTimeMenu(t *testing.T) {
	engine, store, _, _ := newTestEngine(t)
	ctx := context.Background()

	today := testNow.Format(booking.DateFormat)
	resp := walk(t, engine, "tg:1",
		"cmd_book", "book_service_1", "proceed_to_stylist", "select_stylist_any", "pick_date_"+today)

	assert.True(t, hasButton(resp, "pick_time_09:00"))
	sess, _, err := store.Get(ctx, "tg:1")
	require.NoError(t, err)
	require.NotNil(t, sess.Date)
	assert.Equal(t, today, sess.Date.Format(booking.DateFormat))
}

func TestPickDateFullyBookedSuggestsNearestAlternatives(t *testing.T) {
	engine, store, sched, _ := newTestEngine(t)
	ctx := context.Background()

	target := testNow.AddDate(0, 0, 3)
	for _, off := range []int{1, 2, 5, 6} {
		day := target.AddDate(0, 0, off)
		sched.slots[day.Format(booking.DateFormat)] = []string{"10:00"}
	}

	resp := walk(t, engine, "tg:1",
		"cmd_book", "book_service_1", "proceed_to_stylist", "select_stylist_any",
		"pick_date_"+target.Format(booking.DateFormat))

	var alternatives int
	for _, c := range buttonCodes(resp) {
		if strings.HasPrefix(c, "pick_date_") {
			alternatives++
		}
	}
	assert.Equal(t, 3, alternatives, "at most three nearest alternatives")
	assert.True(t, hasButton(resp, "pick_date_"+target.AddDate(0, 0, 1).Format(booking.DateFormat)))
	assert.True(t, hasButton(resp, CodeBackToDates))

	sess, _, err := store.Get(ctx, "tg:1")
	require.NoError(t, err)
	assert.Nil(t, sess.Date, "fully booked date is not stored")
}

func TestPickDateInPastReprompts(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)

	past := testNow.AddDate(0, 0, -2)
	resp := walk(t, engine, "tg:1",
		"cmd_book", "book_service_1", "proceed_to_stylist", "select_stylist_any",
		"pick_date_"+past.Format(booking.DateFormat))

	assert.Contains(t, resp.Text, "already passed")
	assert.True(t, hasButton(resp, CodeBackToDates))
}

func TestReviewTotalsSumSelectedServices(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)

	today := testNow.Format(booking.DateFormat)
	resp := walk(t, engine, "tg:1",
		"cmd_book", "book_service_1", "add_service_2",
		"proceed_to_stylist", "select_stylist_1",
		"pick_date_"+today, "pick_time_09:00")

	assert.Contains(t, resp.Text, "Haircut + Keratin Treatment")
	assert.Contains(t, resp.Text, "Maria")
	assert.Contains(t, resp.Text, "$215")
	assert.Contains(t, resp.Text, "150 min")
	assert.True(t, hasButton(resp, CodeConfirm))
	assert.True(t, hasButton(resp, CodeCancelBooking))
	assert.True(t, hasButton(resp, "pick_date_"+today), "change-time returns to the chosen date")
}

func TestConfirmBooksAndRemembersLastBooking(t *testing.T) {
	engine, store, sched, _ := newTestEngine(t)
	ctx := context.Background()

	today := testNow.Format(booking.DateFormat)
	resp := walk(t, engine, "tg:1",
		"cmd_book", "book_service_1", "proceed_to_stylist", "select_stylist_any",
		"pick_date_"+today, "pick_time_09:00", "confirm_booking_final")

	require.Len(t, sched.created, 1)
	spec := sched.created[0]
	assert.Equal(t, []string{"Haircut"}, spec.ServiceNames)
	assert.Nil(t, spec.StylistID)
	assert.Equal(t, "09:00", spec.Time)
	assert.Equal(t, int64(3500), spec.PriceCents)
	assert.Equal(t, 30, spec.DurationMin)
	assert.Equal(t, "tg:1", spec.Contact)

	assert.Contains(t, resp.Text, "Haircut")
	assert.Contains(t, resp.Text, "09:00")
	assert.Contains(t, resp.Text, "$35")
	assert.Contains(t, resp.Text, "30 min")
	assert.False(t, resp.EditPrevious, "confirmation is a fresh message")

	sess, _, err := store.Get(ctx, "tg:1")
	require.NoError(t, err)
	assert.False(t, sess.InFlow(), "flow state is cleared after booking")
	assert.Equal(t, "Haircut", sess.LastServiceBooked)
	assert.Equal(t, today, sess.LastBookingDate)
}

func TestConfirmTwiceCreatesOneAppointment(t *testing.T) {
	engine, _, sched, _ := newTestEngine(t)

	today := testNow.Format(booking.DateFormat)
	walk(t, engine, "tg:1",
		"cmd_book", "book_service_1", "proceed_to_stylist", "select_stylist_any",
		"pick_date_"+today, "pick_time_09:00", "confirm_booking_final")

	resp := walk(t, engine, "tg:1", "confirm_booking_final")

	assert.Len(t, sched.created, 1, "second tap of the same confirm button must not book again")
	assert.Contains(t, resp.Text, "start fresh")
}

func TestConfirmSlotTakenKeepsSelections(t *testing.T) {
	engine, store, sched, _ := newTestEngine(t)
	ctx := context.Background()

	today := testNow.Format(booking.DateFormat)
	walk(t, engine, "tg:1",
		"cmd_book", "book_service_1", "proceed_to_stylist", "select_stylist_any",
		"pick_date_"+today, "pick_time_09:00")

	sched.createErr = booking.ErrSlotTaken
	resp := walk(t, engine, "tg:1", "confirm_booking_final")

	assert.Contains(t, resp.Text, "just taken")
	assert.True(t, hasButton(resp, "pick_date_"+today), "recovery points back at the same date")
	assert.True(t, hasButton(resp, CodeBackToDates))

	sess, _, err := store.Get(ctx, "tg:1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Haircut"}, sess.Services, "selections survive the collision")
}

func TestConfirmFailureOffersRetryWithSameSlot(t *testing.T) {
	engine, _, sched, _ := newTestEngine(t)

	today := testNow.Format(booking.DateFormat)
	walk(t, engine, "tg:1",
		"cmd_book", "book_service_1", "proceed_to_stylist", "select_stylist_any",
		"pick_date_"+today, "pick_time_11:30")

	sched.createErr = assert.AnError
	resp := walk(t, engine, "tg:1", "confirm_booking_final")

	assert.Contains(t, resp.Text, "Nothing was booked")
	assert.True(t, hasButton(resp, "pick_time_11:30"), "retry re-offers the same slot")
	assert.True(t, hasButton(resp, CodeCancelBooking))
}

func TestStaleButtonsRecoverWithContextLost(t *testing.T) {
	engine, store, _, _ := newTestEngine(t)

	today := testNow.Format(booking.DateFormat)
	walk(t, engine, "tg:1",
		"cmd_book", "book_service_1", "proceed_to_stylist", "select_stylist_any", "pick_date_"+today)

	store.SetClock(func() time.Time { return testNow.Add(31 * time.Minute) })

	for _, code := range []string{
		"add_another_service", "proceed_to_stylist", "select_stylist_1",
		"week_nav_1", "back_to_dates", "custom_date_entry",
		"pick_date_" + today, "pick_time_09:00", "confirm_booking_final",
	} {
		resp := walk(t, engine, "tg:1", code)
		assert.Contains(t, resp.Text, "start fresh", "stale %s must recover", code)
		assert.True(t, hasButton(resp, CodeBook), "stale %s offers a fresh start", code)
	}
}

func TestFlowButtonsAfterCompletionRecoverWithContextLost(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)

	today := testNow.Format(booking.DateFormat)
	walk(t, engine, "tg:1",
		"cmd_book", "book_service_1", "proceed_to_stylist", "select_stylist_any",
		"pick_date_"+today, "pick_time_09:00", "confirm_booking_final")

	// The record is fresh but the flow is over; leftover step buttons must
	// not re-enter the middle of a booking.
	resp := walk(t, engine, "tg:1", "back_to_dates")
	assert.Contains(t, resp.Text, "start fresh")
}

func TestCancelBookingDiscardsFlow(t *testing.T) {
	engine, store, sched, _ := newTestEngine(t)
	ctx := context.Background()

	walk(t, engine, "tg:1", "cmd_book", "book_service_1", "cancel_booking")

	assert.Empty(t, sched.created)
	sess, _, err := store.Get(ctx, "tg:1")
	require.NoError(t, err)
	assert.False(t, sess.InFlow())
}

func TestAppointmentCancelIsTwoTap(t *testing.T) {
	engine, _, sched, _ := newTestEngine(t)

	today := testNow.Format(booking.DateFormat)
	walk(t, engine, "tg:1",
		"cmd_book", "book_service_1", "proceed_to_stylist", "select_stylist_any",
		"pick_date_"+today, "pick_time_09:00", "confirm_booking_final")
	require.Len(t, sched.created, 1)

	resp := walk(t, engine, "tg:1", "cancel_apt_1")
	assert.Contains(t, resp.Text, "Are you sure")
	assert.Empty(t, sched.canceled, "first tap never cancels")
	assert.True(t, hasButton(resp, "confirm_cancel_1"))
	assert.True(t, hasButton(resp, "view_apt_1"))

	resp = walk(t, engine, "tg:1", "confirm_cancel_1")
	assert.Contains(t, resp.Text, "Canceled")
	assert.Equal(t, []int64{1}, sched.canceled)

	// Racing a second confirmation reports the appointment gone.
	resp = walk(t, engine, "tg:1", "confirm_cancel_1")
	assert.Contains(t, resp.Text, "no longer available")
	assert.Equal(t, []int64{1}, sched.canceled)
}

func TestRescheduleReleasesOldSlotOnlyAfterNewBooking(t *testing.T) {
	engine, store, sched, _ := newTestEngine(t)
	ctx := context.Background()

	today := testNow.Format(booking.DateFormat)
	walk(t, engine, "tg:1",
		"cmd_book", "book_service_1", "proceed_to_stylist", "select_stylist_1",
		"pick_date_"+today, "pick_time_09:00", "confirm_booking_final")
	require.Len(t, sched.created, 1)

	resp := walk(t, engine, "tg:1", "reschedule_apt_1")
	assert.Contains(t, resp.Text, "When would you like to come in")
	assert.Empty(t, sched.canceled, "original stays booked until the new one exists")

	sess, _, err := store.Get(ctx, "tg:1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Haircut"}, sess.Services, "flow is pre-seeded from the appointment")
	require.NotNil(t, sess.RescheduleID)

	walk(t, engine, "tg:1", "pick_date_"+today, "pick_time_11:30", "confirm_booking_final")

	require.Len(t, sched.created, 2)
	assert.Equal(t, []int64{1}, sched.canceled, "old appointment released after the new booking")
}

func TestQuickRebookSeedsFlowFromLastBooking(t *testing.T) {
	engine, store, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := store.Merge(ctx, "tg:1", session.Partial{
		LastService: session.Ptr("Haircut"),
		LastStylist: session.Ptr("Maria"),
	})
	require.NoError(t, err)

	resp := walk(t, engine, "tg:1", "quick_rebook")
	assert.Contains(t, resp.Text, "When would you like to come in")

	sess, _, err := store.Get(ctx, "tg:1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Haircut"}, sess.Services)
	require.NotNil(t, sess.StylistID)
	assert.Equal(t, int64(1), *sess.StylistID)
}

func TestQuickRebookWithoutHistoryStartsNormalFlow(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)

	resp := walk(t, engine, "tg:1", "quick_rebook")
	assert.Contains(t, resp.Text, "Which service")
}

func TestFeedbackRecordsRating(t *testing.T) {
	engine, _, sched, _ := newTestEngine(t)

	today := testNow.Format(booking.DateFormat)
	walk(t, engine, "tg:1",
		"cmd_book", "book_service_1", "proceed_to_stylist", "select_stylist_any",
		"pick_date_"+today, "pick_time_09:00", "confirm_booking_final")

	resp := walk(t, engine, "tg:1", "feedback:1:5")
	assert.Contains(t, resp.Text, "Thank you")
	assert.Equal(t, 5, sched.feedback[1])

	resp = walk(t, engine, "tg:1", "feedback:1:1")
	assert.Contains(t, resp.Text, "Sorry")
	assert.Equal(t, 1, sched.feedback[1], "re-rating overwrites")
}

func TestListAppointmentsModes(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)

	today := testNow.Format(booking.DateFormat)
	walk(t, engine, "tg:1",
		"cmd_book", "book_service_1", "proceed_to_stylist", "select_stylist_any",
		"pick_date_"+today, "pick_time_09:00", "confirm_booking_final")

	resp := walk(t, engine, "tg:1", "cmd_appointments")
	assert.True(t, hasButton(resp, "view_apt_1"))

	resp = walk(t, engine, "tg:1", "cmd_cancel")
	assert.True(t, hasButton(resp, "cancel_apt_1"))

	resp = walk(t, engine, "tg:1", "cmd_reschedule")
	assert.True(t, hasButton(resp, "reschedule_apt_1"))
}

func TestListAppointmentsEmptyState(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)

	resp := walk(t, engine, "tg:9", "cmd_appointments")
	assert.Contains(t, resp.Text, "no upcoming appointments")
	assert.True(t, hasButton(resp, CodeBook))
}

func TestUnknownActionFallsBack(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)

	resp := engine.Handle(context.Background(), "tg:1", Action{Kind: KindUnknown})
	assert.Contains(t, resp.Text, "didn't understand")
	assert.True(t, hasButton(resp, CodeBook))
}
