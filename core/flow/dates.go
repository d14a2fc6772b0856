package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glowdesk/bookingbot/core/booking"
	"github.com/glowdesk/bookingbot/core/session"
)

const (
	maxWeekOffset      = 1
	alternativeDateCap = 3
	alternativeScan    = 14
)

// dateMenu renders DateSelection for the given week window. Offset 0 starts
// today, offset 1 the day after that window ends.
func (e *Engine) dateMenu(ctx context.Context, identity string, offset int) (Response, error) {
	if offset < 0 {
		offset = 0
	}
	if offset > maxWeekOffset {
		offset = maxWeekOffset
	}

	if _, err := e.sessions.Merge(ctx, identity, session.Partial{
		WeekOffset: session.Ptr(offset),
	}); err != nil {
		return Response{}, errGeneric(err)
	}

	today := dateOnly(e.now())
	start := today.AddDate(0, 0, offset*7)

	var kb [][]Button
	var row []Button
	for i := 0; i < 7; i++ {
		day := start.AddDate(0, 0, i)
		row = append(row, Btn(dayLabel(day, today), "pick_date_"+day.Format(booking.DateFormat)))
		if len(row) == 2 {
			kb = append(kb, row)
			row = nil
		}
	}
	if len(row) > 0 {
		kb = append(kb, row)
	}

	var nav []Button
	if offset > 0 {
		nav = append(nav, Btn("⬅️ This week", fmt.Sprintf("week_nav_%d", offset-1)))
	}
	if offset < maxWeekOffset {
		nav = append(nav, Btn("➡️ Next week", fmt.Sprintf("week_nav_%d", offset+1)))
	}
	kb = append(kb, nav)
	kb = append(kb, Row(Btn("📅 Type a date", CodeCustomDate)))

	return Response{
		Text:         "📅 When would you like to come in?",
		Keyboard:     kb,
		EditPrevious: true,
	}, nil
}

func (e *Engine) weekNav(ctx context.Context, identity string, offset int) (Response, error) {
	if _, err := e.liveFlow(ctx, identity); err != nil {
		return Response{}, err
	}
	return e.dateMenu(ctx, identity, offset)
}

// backToDates re-renders the date grid at the week the user last viewed.
func (e *Engine) backToDates(ctx context.Context, identity string) (Response, error) {
	sess, err := e.liveFlow(ctx, identity)
	if err != nil {
		return Response{}, err
	}
	return e.dateMenu(ctx, identity, sess.CurrentWeekOffset)
}

// promptCustomDate switches the session into free-text date entry mode. The
// response is a fresh prompt message so the date grid stays visible above it.
func (e *Engine) promptCustomDate(ctx context.Context, identity string) (Response, error) {
	if _, err := e.liveFlow(ctx, identity); err != nil {
		return Response{}, err
	}
	if _, err := e.sessions.Merge(ctx, identity, session.Partial{
		AwaitingCustomDate: session.Ptr(true),
	}); err != nil {
		return Response{}, errGeneric(err)
	}
	return Response{
		Text:         "📅 Type the date you'd like, e.g. \"tomorrow\", \"Dec 15\" or \"2026-09-15\".",
		EditPrevious: false,
	}, nil
}

// HandleCustomDateText consumes one free-text message while the session is in
// custom date entry mode. Unparseable input re-prompts and stays in the mode.
func (e *Engine) HandleCustomDateText(ctx context.Context, identity, text string) Response {
	if _, err := e.liveFlow(ctx, identity); err != nil {
		var ferr *Error
		if !errors.As(err, &ferr) {
			ferr = errGeneric(err)
		}
		return ferr.Response()
	}

	date, ok := parseHumanDate(text, e.now())
	if !ok {
		return Response{
			Text:         "Hmm, I couldn't read that date. Try something like \"tomorrow\", \"Dec 15\" or \"2026-09-15\".",
			EditPrevious: false,
		}
	}
	if date.Before(dateOnly(e.now())) {
		return Response{
			Text:         "That date is in the past. Which upcoming day works for you?",
			EditPrevious: false,
		}
	}

	if _, err := e.sessions.Merge(ctx, identity, session.Partial{
		AwaitingCustomDate: session.Ptr(false),
	}); err != nil {
		return errGeneric(err).Response()
	}
	return e.Handle(ctx, identity, Action{Kind: KindPickDate, Date: date})
}

// pickDate stores the chosen date and moves to TimeSelection, or offers the
// nearest dates that do have openings when the chosen one is fully booked.
func (e *Engine) pickDate(ctx context.Context, identity string, date time.Time) (Response, error) {
	if _, err := e.liveFlow(ctx, identity); err != nil {
		return Response{}, err
	}

	date = dateOnly(date)
	if date.Before(dateOnly(e.now())) {
		return Response{
			Text:         "That date has already passed. Pick an upcoming day instead.",
			Keyboard:     [][]Button{Row(Btn("📅 Pick a date", CodeBackToDates))},
			EditPrevious: true,
		}, nil
	}

	slots, err := e.scheduler.Availability(ctx, date)
	if err != nil {
		return Response{}, errFetchFailed(err)
	}
	if len(slots) == 0 {
		return e.fullyBookedMenu(ctx, date)
	}

	if _, err := e.sessions.Merge(ctx, identity, session.Partial{
		Date:    &date,
		SetDate: true,
	}); err != nil {
		return Response{}, errGeneric(err)
	}

	return e.timeMenu(date, slots), nil
}

// fullyBookedMenu keeps the user in DateSelection and suggests up to three
// nearest alternatives that still have openings.
func (e *Engine) fullyBookedMenu(ctx context.Context, date time.Time) (Response, error) {
	today := dateOnly(e.now())
	var alternatives []time.Time
	for i := 1; i <= alternativeScan && len(alternatives) < alternativeDateCap; i++ {
		for _, candidate := range []time.Time{date.AddDate(0, 0, i), date.AddDate(0, 0, -i)} {
			if len(alternatives) == alternativeDateCap || candidate.Before(today) {
				continue
			}
			slots, err := e.scheduler.Availability(ctx, candidate)
			if err != nil {
				return Response{}, errFetchFailed(err)
			}
			if len(slots) > 0 {
				alternatives = append(alternatives, candidate)
			}
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "😔 %s is fully booked.", humanDate(date, today))
	var kb [][]Button
	if len(alternatives) > 0 {
		b.WriteString("\nThe nearest days with openings:")
		for _, alt := range alternatives {
			kb = append(kb, Row(Btn("📅 "+humanDate(alt, today), "pick_date_"+alt.Format(booking.DateFormat))))
		}
	}
	kb = append(kb, Row(Btn("📅 Other dates", CodeBackToDates)))

	return Response{Text: b.String(), Keyboard: kb, EditPrevious: true}, nil
}

// dayLabel is the short per-button form ("Mon 07 Sep", "Today", "Tomorrow").
func dayLabel(day, today time.Time) string {
	switch int(day.Sub(today).Hours() / 24) {
	case 0:
		return "Today"
	case 1:
		return "Tomorrow"
	}
	return day.Format("Mon 02 Jan")
}

// humanDate is the long in-text form ("Monday, 7 September").
func humanDate(day, today time.Time) string {
	switch int(day.Sub(today).Hours() / 24) {
	case 0:
		return "Today"
	case 1:
		return "Tomorrow"
	}
	return day.Format("Monday, 2 January")
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// parseHumanDate accepts the formats customers actually type. Formats without
// a year resolve to the next occurrence from today.
func parseHumanDate(text string, now time.Time) (time.Time, bool) {
	text = strings.TrimSpace(strings.ToLower(text))
	today := dateOnly(now)

	switch text {
	case "today":
		return today, true
	case "tomorrow":
		return today.AddDate(0, 0, 1), true
	}

	for _, layout := range []string{booking.DateFormat, "02.01.2006", "02/01/2006", "January 2 2006", "Jan 2 2006", "2 January 2006", "2 Jan 2006"} {
		if d, err := time.ParseInLocation(layout, text, now.Location()); err == nil {
			return dateOnly(d), true
		}
	}

	// Year-less forms roll into next year once the date has passed.
	for _, layout := range []string{"January 2", "Jan 2", "2 January", "2 Jan", "02.01", "02/01"} {
		d, err := time.ParseInLocation(layout, text, now.Location())
		if err != nil {
			continue
		}
		d = time.Date(today.Year(), d.Month(), d.Day(), 0, 0, 0, 0, now.Location())
		if d.Before(today) {
			d = d.AddDate(1, 0, 0)
		}
		return d, true
	}

	return time.Time{}, false
}
