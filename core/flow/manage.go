package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/glowdesk/bookingbot/core/booking"
	"github.com/glowdesk/bookingbot/core/logger"
	"github.com/glowdesk/bookingbot/core/session"
	"log/slog"
)

type manageMode int

const (
	manageView manageMode = iota
	manageCancel
	manageReschedule
)

// listAppointments renders the customer's upcoming appointments. The same
// list serves /appointments, /cancel and /reschedule; the mode selects which
// action each row's button carries.
func (e *Engine) listAppointments(ctx context.Context, identity string, mode manageMode) (Response, error) {
	sess, _, err := e.sessions.Get(ctx, identity)
	if err != nil {
		return Response{}, errGeneric(err)
	}

	appointments, err := e.scheduler.FindByContact(ctx, e.contactFor(identity, sess))
	if err != nil {
		return Response{}, errFetchFailed(err)
	}
	if len(appointments) == 0 {
		return Response{
			Text: "🗓 You have no upcoming appointments.",
			Keyboard: [][]Button{
				Row(Btn("💇 Book an appointment", CodeBook)),
				Row(Btn("🏠 Main menu", CodeStart)),
			},
			EditPrevious: false,
		}, nil
	}

	var text string
	prefix := "view_apt_"
	switch mode {
	case manageCancel:
		text = "❌ Which appointment would you like to cancel?"
		prefix = "cancel_apt_"
	case manageReschedule:
		text = "🔁 Which appointment would you like to move?"
		prefix = "reschedule_apt_"
	default:
		text = "🗓 Your upcoming appointments:"
	}

	today := dateOnly(e.now())
	kb := make([][]Button, 0, len(appointments)+1)
	for _, apt := range appointments {
		label := fmt.Sprintf("%s · %s %s", strings.Join(apt.ServiceNames, " + "), humanDate(dateOnly(apt.Date), today), apt.Time)
		kb = append(kb, Row(Btn(label, fmt.Sprintf("%s%d", prefix, apt.ID))))
	}
	kb = append(kb, Row(Btn("🏠 Main menu", CodeStart)))

	return Response{Text: text, Keyboard: kb, EditPrevious: false}, nil
}

// viewAppointment shows one appointment with its management actions.
func (e *Engine) viewAppointment(ctx context.Context, id int64) (Response, error) {
	apt, err := e.scheduler.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			return Response{}, errNotFound("appointment")
		}
		return Response{}, errFetchFailed(err)
	}

	var b strings.Builder
	b.WriteString("🗓 Appointment details:\n")
	fmt.Fprintf(&b, "\n💇 %s", strings.Join(apt.ServiceNames, " + "))
	if apt.StylistName != "" {
		fmt.Fprintf(&b, "\n👩‍🎨 %s", apt.StylistName)
	}
	fmt.Fprintf(&b, "\n📅 %s at %s", humanDate(dateOnly(apt.Date), dateOnly(e.now())), apt.Time)
	fmt.Fprintf(&b, "\n⏳ %d min", apt.DurationMin)
	fmt.Fprintf(&b, "\n💵 %s", booking.FormatPrice(apt.PriceCents))

	kb := [][]Button{
		Row(Btn("🔁 Reschedule", fmt.Sprintf("reschedule_apt_%d", apt.ID)), Btn("❌ Cancel", fmt.Sprintf("cancel_apt_%d", apt.ID))),
		Row(Btn("⬅️ All appointments", CodeAppointments)),
	}

	return Response{Text: b.String(), Keyboard: kb, EditPrevious: true}, nil
}

// promptCancelAppointment is the first step of the two-tap cancellation.
func (e *Engine) promptCancelAppointment(ctx context.Context, id int64) (Response, error) {
	apt, err := e.scheduler.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			return Response{}, errNotFound("appointment")
		}
		return Response{}, errFetchFailed(err)
	}

	text := fmt.Sprintf("Are you sure you want to cancel %s on %s at %s?",
		strings.Join(apt.ServiceNames, " + "),
		humanDate(dateOnly(apt.Date), dateOnly(e.now())),
		apt.Time,
	)
	kb := [][]Button{
		Row(Btn("✅ Yes, cancel it", fmt.Sprintf("confirm_cancel_%d", apt.ID))),
		Row(Btn("⬅️ Keep it", fmt.Sprintf("view_apt_%d", apt.ID))),
	}
	return Response{Text: text, Keyboard: kb, EditPrevious: true}, nil
}

// cancelAppointment performs the confirmed cancellation. The appointment is
// re-fetched first so a cancellation raced through another channel reports
// not_found instead of silently succeeding twice.
func (e *Engine) cancelAppointment(ctx context.Context, id int64) (Response, error) {
	apt, err := e.scheduler.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			return Response{}, errNotFound("appointment")
		}
		return Response{}, errFetchFailed(err)
	}

	if err := e.scheduler.Cancel(ctx, id); err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			return Response{}, errNotFound("appointment")
		}
		return Response{}, errGeneric(err)
	}

	logger.Info(ctx, "flow", "appointment.canceled", slog.Int64("appointment_id", id))

	text := fmt.Sprintf("✅ Canceled: %s on %s at %s.\nHope to see you another time!",
		strings.Join(apt.ServiceNames, " + "),
		humanDate(dateOnly(apt.Date), dateOnly(e.now())),
		apt.Time,
	)
	kb := [][]Button{
		Row(Btn("💇 Book a new appointment", CodeBook)),
		Row(Btn("🏠 Main menu", CodeStart)),
	}
	return Response{Text: text, Keyboard: kb, EditPrevious: false}, nil
}

// rescheduleAppointment seeds a fresh booking flow from an existing
// appointment. The original stays booked until the replacement is confirmed.
func (e *Engine) rescheduleAppointment(ctx context.Context, identity string, id int64) (Response, error) {
	apt, err := e.scheduler.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			return Response{}, errNotFound("appointment")
		}
		return Response{}, errFetchFailed(err)
	}

	if _, err := e.sessions.Merge(ctx, identity, session.Partial{
		Services:      apt.ServiceNames,
		SetServices:   true,
		StylistID:     apt.StylistID,
		SetStylist:    true,
		SetDate:       true,
		Time:          session.Ptr(""),
		RescheduleID:  &apt.ID,
		SetReschedule: true,
		WeekOffset:    session.Ptr(0),
	}); err != nil {
		return Response{}, errGeneric(err)
	}

	return e.dateMenu(ctx, identity, 0)
}

// quickRebook starts a new flow pre-filled from the customer's last booking.
func (e *Engine) quickRebook(ctx context.Context, identity string) (Response, error) {
	sess, _, err := e.sessions.Get(ctx, identity)
	if err != nil {
		return Response{}, errGeneric(err)
	}
	if sess.LastServiceBooked == "" {
		return e.startBooking(ctx, identity)
	}

	services := strings.Split(sess.LastServiceBooked, " + ")

	var stylistID *int64
	if sess.LastStylistBooked != "" {
		stylists, err := e.catalog.ListStylists(ctx)
		if err != nil {
			return Response{}, errFetchFailed(err)
		}
		for i := range stylists {
			if stylists[i].Name == sess.LastStylistBooked {
				stylistID = &stylists[i].ID
				break
			}
		}
	}

	if _, err := e.sessions.Merge(ctx, identity, session.Partial{
		Services:    services,
		SetServices: true,
		StylistID:   stylistID,
		SetStylist:  true,
		SetDate:     true,
		Time:        session.Ptr(""),
		WeekOffset:  session.Ptr(0),
	}); err != nil {
		return Response{}, errGeneric(err)
	}

	return e.dateMenu(ctx, identity, 0)
}

// recordFeedback stores a post-visit rating. Re-rating overwrites, so tapping
// twice or changing one's mind is harmless.
func (e *Engine) recordFeedback(ctx context.Context, id int64, rating int) (Response, error) {
	if err := e.scheduler.SaveFeedback(ctx, id, rating); err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			return Response{}, errNotFound("appointment")
		}
		return Response{}, errGeneric(err)
	}

	logger.Info(ctx, "flow", "feedback.recorded",
		slog.Int64("appointment_id", id),
		slog.Int("rating", rating),
	)

	text := "💖 Thank you for your feedback!"
	if rating <= 1 {
		text = "😔 Sorry we fell short. Thank you for telling us, we'll do better."
	}
	return Response{
		Text:         text,
		Keyboard:     [][]Button{Row(Btn("💇 Book again", CodeBook), Btn("🏠 Main menu", CodeStart))},
		EditPrevious: false,
	}, nil
}
