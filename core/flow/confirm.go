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

// pickTime stores the chosen slot and renders the Confirmation review screen
// with full price and duration totals.
func (e *Engine) pickTime(ctx context.Context, identity, slot string) (Response, error) {
	sess, err := e.liveContext(ctx, identity)
	if err != nil {
		return Response{}, err
	}
	if len(sess.Services) == 0 || sess.Date == nil {
		return Response{}, errContextLost()
	}

	sess, err = e.sessions.Merge(ctx, identity, session.Partial{
		Time: session.Ptr(slot),
	})
	if err != nil {
		return Response{}, errGeneric(err)
	}

	services, err := e.servicesByNames(ctx, sess.Services)
	if err != nil {
		return Response{}, err
	}

	var priceCents int64
	var durationMin int
	for _, svc := range services {
		priceCents += svc.PriceCents
		durationMin += svc.DurationMin
	}

	stylist := "Any available stylist"
	if sess.StylistID != nil {
		st, err := e.stylistByID(ctx, *sess.StylistID)
		if err != nil {
			return Response{}, err
		}
		stylist = st.Name
	}

	var b strings.Builder
	b.WriteString("📋 Please review your booking:\n")
	fmt.Fprintf(&b, "\n💇 Services: %s", strings.Join(sess.Services, " + "))
	fmt.Fprintf(&b, "\n👩‍🎨 Stylist: %s", stylist)
	fmt.Fprintf(&b, "\n📅 Date: %s", humanDate(dateOnly(*sess.Date), dateOnly(e.now())))
	fmt.Fprintf(&b, "\n🕐 Time: %s", slot)
	fmt.Fprintf(&b, "\n⏳ Duration: %d min", durationMin)
	fmt.Fprintf(&b, "\n💵 Total: %s", booking.FormatPrice(priceCents))
	if sess.RescheduleID != nil {
		b.WriteString("\n\n🔁 Your previous time will be released once this is confirmed.")
	}

	kb := [][]Button{
		Row(Btn("✅ Confirm booking", CodeConfirm)),
		Row(Btn("🕐 Change time", "pick_date_"+sess.Date.Format(booking.DateFormat)), Btn("❌ Cancel", CodeCancelBooking)),
	}
	return Response{Text: b.String(), Keyboard: kb, EditPrevious: true}, nil
}

// confirmBooking creates the appointment. The selected time is taken out of
// the context before the insert, so a second tap of the same confirm button
// finds an incomplete context and cannot book twice.
func (e *Engine) confirmBooking(ctx context.Context, identity string) (Response, error) {
	sess, err := e.liveContext(ctx, identity)
	if err != nil {
		return Response{}, err
	}
	if len(sess.Services) == 0 || sess.Date == nil || sess.Time == "" {
		return Response{}, errContextLost()
	}

	slot := sess.Time
	date := dateOnly(*sess.Date)
	dateCode := "pick_date_" + date.Format(booking.DateFormat)

	// Claim this attempt before touching the scheduler.
	if _, err := e.sessions.Merge(ctx, identity, session.Partial{
		Time: session.Ptr(""),
	}); err != nil {
		return Response{}, errGeneric(err)
	}

	services, err := e.servicesByNames(ctx, sess.Services)
	if err != nil {
		return Response{}, err
	}
	var priceCents int64
	var durationMin int
	for _, svc := range services {
		priceCents += svc.PriceCents
		durationMin += svc.DurationMin
	}

	apt, err := e.scheduler.Create(ctx, booking.Spec{
		ServiceNames: sess.Services,
		StylistID:    sess.StylistID,
		Date:         date,
		Time:         slot,
		DurationMin:  durationMin,
		PriceCents:   priceCents,
		CustomerName: sess.CustomerName,
		Contact:      e.contactFor(identity, sess),
	})
	if err != nil {
		if errors.Is(err, booking.ErrSlotTaken) {
			return Response{}, errFullyBooked(dateCode)
		}
		return Response{}, errBookingFailed(err, slot)
	}

	logger.Info(ctx, "flow", "booking.created",
		slog.Int64("appointment_id", apt.ID),
		slog.String("date", date.Format(booking.DateFormat)),
		slog.String("time", slot),
	)

	// On reschedule the old appointment is released only after the new one
	// exists, so a failure above never loses the customer's slot.
	if sess.RescheduleID != nil {
		if err := e.scheduler.Cancel(ctx, *sess.RescheduleID); err != nil && !errors.Is(err, booking.ErrNotFound) {
			logger.Warn(ctx, "flow", "reschedule.release_failed",
				slog.Int64("appointment_id", *sess.RescheduleID),
				slog.String("err", err.Error()),
			)
		}
	}

	stylistName := ""
	if sess.StylistID != nil {
		if st, err := e.stylistByID(ctx, *sess.StylistID); err == nil {
			stylistName = st.Name
		}
	}

	if err := e.sessions.Clear(ctx, identity); err != nil {
		return Response{}, errGeneric(err)
	}
	if _, err := e.sessions.Merge(ctx, identity, session.Partial{
		LastService: session.Ptr(strings.Join(sess.Services, " + ")),
		LastStylist: session.Ptr(stylistName),
		LastDate:    session.Ptr(date.Format(booking.DateFormat)),
	}); err != nil {
		return Response{}, errGeneric(err)
	}

	var b strings.Builder
	b.WriteString("🎉 You're booked!\n")
	fmt.Fprintf(&b, "\n💇 %s", strings.Join(sess.Services, " + "))
	if stylistName != "" {
		fmt.Fprintf(&b, "\n👩‍🎨 %s", stylistName)
	}
	fmt.Fprintf(&b, "\n📅 %s at %s", humanDate(date, dateOnly(e.now())), slot)
	fmt.Fprintf(&b, "\n⏳ %d min", durationMin)
	fmt.Fprintf(&b, "\n💵 %s", booking.FormatPrice(priceCents))
	b.WriteString("\n\nSee you soon! We'll send a reminder the day before.")

	kb := [][]Button{
		Row(Btn("🗓 My appointments", CodeAppointments)),
		Row(Btn("🏠 Main menu", CodeStart)),
	}
	kb = append(kb, contactRow(e.salon)...)

	return Response{Text: b.String(), Keyboard: kb, EditPrevious: false}, nil
}

// cancelBooking abandons the in-progress flow and returns to the main menu.
func (e *Engine) cancelBooking(ctx context.Context, identity string) (Response, error) {
	if err := e.sessions.Clear(ctx, identity); err != nil {
		return Response{}, errGeneric(err)
	}
	return Response{
		Text: "No problem, nothing was booked. Anything else?",
		Keyboard: [][]Button{
			Row(Btn("💇 Book an appointment", CodeBook)),
			Row(Btn("🏠 Main menu", CodeStart)),
		},
		EditPrevious: false,
	}, nil
}

// contactFor resolves the contact key appointments are stored under. A known
// customer email wins over the transport identity.
func (e *Engine) contactFor(identity string, sess *session.BookingContext) string {
	if sess != nil && sess.CustomerEmail != "" {
		return sess.CustomerEmail
	}
	return identity
}
