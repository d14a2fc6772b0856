package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glowdesk/bookingbot/core/booking"
	"github.com/glowdesk/bookingbot/core/logger"
	"github.com/glowdesk/bookingbot/core/session"
	"log/slog"
)

// Salon carries the static salon details rendered into menu and info responses.
type Salon struct {
	Name      string
	Phone     string
	Address   string
	MapsURL   string
	HoursText string
}

// Engine is the booking flow state machine. One Engine serves every
// transport; adapters differ only in how they render the Response.
type Engine struct {
	sessions  session.Store
	catalog   booking.Catalog
	scheduler booking.Scheduler
	salon     Salon
	now       func() time.Time
}

// NewEngine wires the state machine over its collaborators.
func NewEngine(sessions session.Store, catalog booking.Catalog, scheduler booking.Scheduler, salon Salon) *Engine {
	return &Engine{
		sessions:  sessions,
		catalog:   catalog,
		scheduler: scheduler,
		salon:     salon,
		now:       time.Now,
	}
}

// SetClock overrides the time source for tests.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Handle executes one typed action for an identity and always returns a
// renderable Response; failures are converted to recovery responses here.
func (e *Engine) Handle(ctx context.Context, identity string, act Action) Response {
	resp, err := e.dispatch(ctx, identity, act)
	if err != nil {
		var ferr *Error
		if !errors.As(err, &ferr) {
			ferr = errGeneric(err)
		}
		logger.Error(ctx, "flow", "handler.failed",
			slog.String("err_code", ferr.Code()),
			slog.String("action", act.Code()),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return ferr.Response()
	}
	return resp
}

func (e *Engine) dispatch(ctx context.Context, identity string, act Action) (Response, error) {
	switch act.Kind {
	case KindStart:
		return e.mainMenu(ctx, identity)
	case KindBook:
		return e.startBooking(ctx, identity)
	case KindServices:
		return e.servicesInfo(ctx)
	case KindHours:
		return e.hoursInfo(), nil
	case KindHelp:
		return e.helpInfo(), nil

	case KindBookService:
		return e.selectService(ctx, identity, act.ServiceID, true)
	case KindAddService:
		return e.selectService(ctx, identity, act.ServiceID, false)
	case KindAddAnother:
		return e.addAnotherMenu(ctx, identity)
	case KindProceedToStylist:
		return e.stylistMenu(ctx, identity)
	case KindSelectStylist:
		return e.selectStylist(ctx, identity, act)

	case KindWeekNav:
		return e.weekNav(ctx, identity, act.WeekOffset)
	case KindBackToDates:
		return e.backToDates(ctx, identity)
	case KindCustomDate:
		return e.promptCustomDate(ctx, identity)
	case KindPickDate:
		return e.pickDate(ctx, identity, act.Date)
	case KindPickTime:
		return e.pickTime(ctx, identity, act.Time)
	case KindConfirm:
		return e.confirmBooking(ctx, identity)
	case KindCancelBooking:
		return e.cancelBooking(ctx, identity)

	case KindAppointments:
		return e.listAppointments(ctx, identity, manageView)
	case KindCancelCmd:
		return e.listAppointments(ctx, identity, manageCancel)
	case KindRescheduleCmd:
		return e.listAppointments(ctx, identity, manageReschedule)
	case KindViewApt:
		return e.viewAppointment(ctx, act.AppointmentID)
	case KindCancelApt:
		return e.promptCancelAppointment(ctx, act.AppointmentID)
	case KindConfirmCancel:
		return e.cancelAppointment(ctx, act.AppointmentID)
	case KindRescheduleApt:
		return e.rescheduleAppointment(ctx, identity, act.AppointmentID)

	case KindQuickRebook:
		return e.quickRebook(ctx, identity)
	case KindFeedback:
		return e.recordFeedback(ctx, act.AppointmentID, act.Rating)

	case KindNoOp:
		return Response{}, nil
	}

	return e.unknownAction(), nil
}

// liveContext loads the identity's context and fails with context_lost when
// the flow state is missing or stale. Every mid-flow handler goes through
// this so stale button taps recover gracefully from any state.
func (e *Engine) liveContext(ctx context.Context, identity string) (*session.BookingContext, error) {
	sess, live, err := e.sessions.Get(ctx, identity)
	if err != nil {
		return nil, errGeneric(err)
	}
	if !live {
		return nil, errContextLost()
	}
	return sess, nil
}

// liveFlow additionally requires that a booking flow is actually in
// progress, so buttons left over from a completed or abandoned flow fail
// the same way stale ones do.
func (e *Engine) liveFlow(ctx context.Context, identity string) (*session.BookingContext, error) {
	sess, err := e.liveContext(ctx, identity)
	if err != nil {
		return nil, err
	}
	if !sess.InFlow() {
		return nil, errContextLost()
	}
	return sess, nil
}

// mainMenu renders the Start state.
func (e *Engine) mainMenu(ctx context.Context, identity string) (Response, error) {
	sess, _, err := e.sessions.Get(ctx, identity)
	if err != nil {
		return Response{}, errGeneric(err)
	}

	name := e.salon.Name
	if name == "" {
		name = "our salon"
	}
	text := fmt.Sprintf("💈 Welcome to %s!\nI can book your next appointment in a few taps.", name)

	kb := [][]Button{
		Row(Btn("💇 Book an appointment", CodeBook)),
		Row(Btn("🗓 My appointments", CodeAppointments), Btn("💅 Services", CodeServices)),
		Row(Btn("🕐 Opening hours", CodeHours), Btn("❓ Help", CodeHelp)),
	}
	if sess.LastServiceBooked != "" {
		kb = append([][]Button{
			Row(Btn(fmt.Sprintf("⚡ Book %s again", sess.LastServiceBooked), CodeQuickRebook)),
		}, kb...)
	}
	kb = append(kb, contactRow(e.salon)...)

	return Response{Text: text, Keyboard: kb, EditPrevious: false}, nil
}

// startBooking enters ServiceSelection and creates the session context.
func (e *Engine) startBooking(ctx context.Context, identity string) (Response, error) {
	if _, err := e.sessions.Merge(ctx, identity, session.Partial{
		Services:    nil,
		SetServices: true,
		SetStylist:  true,
		SetDate:     true,
		Time:        session.Ptr(""),
		WeekOffset:  session.Ptr(0),
	}); err != nil {
		return Response{}, errGeneric(err)
	}
	return e.serviceMenu(ctx, nil)
}

// serviceMenu renders ServiceSelection, optionally excluding already chosen
// services for the add-another re-entry.
func (e *Engine) serviceMenu(ctx context.Context, exclude []string) (Response, error) {
	services, err := e.catalog.ListServices(ctx)
	if err != nil {
		return Response{}, errFetchFailed(err)
	}

	excluded := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		excluded[name] = true
	}

	adding := len(exclude) > 0
	var kb [][]Button
	for _, svc := range services {
		if excluded[svc.Name] {
			continue
		}
		label := fmt.Sprintf("%s — %s · %d min", svc.Name, svc.PriceLabel(), svc.DurationMin)
		code := fmt.Sprintf("book_service_%d", svc.ID)
		if adding {
			code = fmt.Sprintf("add_service_%d", svc.ID)
		}
		kb = append(kb, Row(Btn(label, code)))
	}

	text := "💇 Which service would you like to book?"
	if adding {
		if len(kb) == 0 {
			return Response{
				Text:         "You've already picked everything we offer! Let's continue.",
				Keyboard:     [][]Button{Row(Btn("➡️ Continue", CodeProceed))},
				EditPrevious: true,
			}, nil
		}
		text = "💇 Which service should I add?"
		kb = append(kb, Row(Btn("➡️ No, continue", CodeProceed)))
	}

	return Response{Text: text, Keyboard: kb, EditPrevious: true}, nil
}

// selectService stores the chosen service and moves to AddMoreOrProceed.
// Re-selecting an already chosen service never duplicates it.
func (e *Engine) selectService(ctx context.Context, identity string, serviceID int64, first bool) (Response, error) {
	sess, err := e.liveContext(ctx, identity)
	if err != nil {
		return Response{}, err
	}

	svc, err := e.serviceByID(ctx, serviceID)
	if err != nil {
		return Response{}, err
	}

	services := sess.Services
	if first && len(services) == 0 {
		services = []string{svc.Name}
	} else if !containsString(services, svc.Name) {
		services = append(append([]string(nil), services...), svc.Name)
	}

	if _, err := e.sessions.Merge(ctx, identity, session.Partial{
		Services:    services,
		SetServices: true,
	}); err != nil {
		return Response{}, errGeneric(err)
	}

	text := fmt.Sprintf("✅ %s added.\nWould you like another service in the same visit?",
		strings.Join(services, " + "))
	kb := [][]Button{
		Row(Btn("➕ Add another service", CodeAddAnother)),
		Row(Btn("➡️ Continue", CodeProceed)),
	}
	return Response{Text: text, Keyboard: kb, EditPrevious: true}, nil
}

// addAnotherMenu loops back into a filtered ServiceSelection.
func (e *Engine) addAnotherMenu(ctx context.Context, identity string) (Response, error) {
	sess, err := e.liveFlow(ctx, identity)
	if err != nil {
		return Response{}, err
	}
	return e.serviceMenu(ctx, sess.Services)
}

// stylistMenu renders StylistSelection, short-circuiting straight to
// DateSelection when the salon has no stylists on file.
func (e *Engine) stylistMenu(ctx context.Context, identity string) (Response, error) {
	sess, err := e.liveContext(ctx, identity)
	if err != nil {
		return Response{}, err
	}
	if len(sess.Services) == 0 {
		return Response{}, errContextLost()
	}

	stylists, err := e.catalog.ListStylists(ctx)
	if err != nil {
		return Response{}, errFetchFailed(err)
	}
	if len(stylists) == 0 {
		return e.dateMenu(ctx, identity, 0)
	}

	kb := make([][]Button, 0, len(stylists)+1)
	for _, st := range stylists {
		kb = append(kb, Row(Btn("💇‍♀️ "+st.Name, fmt.Sprintf("select_stylist_%d", st.ID))))
	}
	kb = append(kb, Row(Btn("✨ Any available stylist", CodeStylistAny)))

	return Response{
		Text:         "👩‍🎨 Do you have a preferred stylist?",
		Keyboard:     kb,
		EditPrevious: true,
	}, nil
}

// selectStylist stores the stylist choice (or clears it for "any") and moves
// to DateSelection.
func (e *Engine) selectStylist(ctx context.Context, identity string, act Action) (Response, error) {
	if _, err := e.liveFlow(ctx, identity); err != nil {
		return Response{}, err
	}

	var stylistID *int64
	if !act.StylistAny {
		st, err := e.stylistByID(ctx, act.StylistID)
		if err != nil {
			return Response{}, err
		}
		stylistID = &st.ID
	}

	if _, err := e.sessions.Merge(ctx, identity, session.Partial{
		StylistID:  stylistID,
		SetStylist: true,
	}); err != nil {
		return Response{}, errGeneric(err)
	}

	return e.dateMenu(ctx, identity, 0)
}

func (e *Engine) servicesInfo(ctx context.Context) (Response, error) {
	services, err := e.catalog.ListServices(ctx)
	if err != nil {
		return Response{}, errFetchFailed(err)
	}

	var b strings.Builder
	b.WriteString("💅 Our services:\n")
	for _, svc := range services {
		fmt.Fprintf(&b, "\n• %s — %s · %d min", svc.Name, svc.PriceLabel(), svc.DurationMin)
	}
	kb := [][]Button{
		Row(Btn("💇 Book now", CodeBook)),
		Row(Btn("🏠 Main menu", CodeStart)),
	}
	return Response{Text: b.String(), Keyboard: kb, EditPrevious: false}, nil
}

func (e *Engine) hoursInfo() Response {
	text := "🕐 Opening hours:\n" + e.salon.HoursText
	if e.salon.Address != "" {
		text += "\n\n📍 " + e.salon.Address
	}
	kb := [][]Button{Row(Btn("🏠 Main menu", CodeStart))}
	kb = append(contactRow(e.salon), kb...)
	return Response{Text: text, Keyboard: kb, EditPrevious: false}
}

func (e *Engine) helpInfo() Response {
	text := "❓ I can help you with:\n\n" +
		"• /book — book a new appointment\n" +
		"• /appointments — view, cancel, or move your bookings\n" +
		"• /services — our services and prices\n" +
		"• /hours — opening hours and directions\n\n" +
		"You can also just tap the buttons below any message."
	return Response{
		Text:         text,
		Keyboard:     [][]Button{Row(Btn("🏠 Main menu", CodeStart))},
		EditPrevious: false,
	}
}

func (e *Engine) unknownAction() Response {
	return Response{
		Text: "Sorry, I didn't understand that. Tap a button below or type /help.",
		Keyboard: [][]Button{
			Row(Btn("💇 Book an appointment", CodeBook)),
			Row(Btn("🏠 Main menu", CodeStart)),
		},
		EditPrevious: false,
	}
}

func (e *Engine) serviceByID(ctx context.Context, id int64) (*booking.Service, error) {
	services, err := e.catalog.ListServices(ctx)
	if err != nil {
		return nil, errFetchFailed(err)
	}
	for i := range services {
		if services[i].ID == id {
			return &services[i], nil
		}
	}
	return nil, errNotFound("service")
}

func (e *Engine) stylistByID(ctx context.Context, id int64) (*booking.Stylist, error) {
	stylists, err := e.catalog.ListStylists(ctx)
	if err != nil {
		return nil, errFetchFailed(err)
	}
	for i := range stylists {
		if stylists[i].ID == id {
			return &stylists[i], nil
		}
	}
	return nil, errNotFound("stylist")
}

func (e *Engine) servicesByNames(ctx context.Context, names []string) ([]booking.Service, error) {
	all, err := e.catalog.ListServices(ctx)
	if err != nil {
		return nil, errFetchFailed(err)
	}
	byName := make(map[string]booking.Service, len(all))
	for _, svc := range all {
		byName[svc.Name] = svc
	}

	out := make([]booking.Service, 0, len(names))
	for _, name := range names {
		svc, ok := byName[name]
		if !ok {
			return nil, errNotFound("service")
		}
		out = append(out, svc)
	}
	return out, nil
}

func contactRow(salon Salon) [][]Button {
	var row []Button
	if salon.Phone != "" {
		row = append(row, LinkBtn("📞 Call us", "tel:"+salon.Phone))
	}
	if salon.MapsURL != "" {
		row = append(row, LinkBtn("📍 Directions", salon.MapsURL))
	}
	if len(row) == 0 {
		return nil
	}
	return [][]Button{row}
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
