package flow

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/glowdesk/bookingbot/core/booking"
)

// Kind identifies one action family of the button/code protocol.
type Kind int

const (
	KindUnknown Kind = iota

	// Top-level menu commands.
	KindStart
	KindBook
	KindAppointments
	KindServices
	KindCancelCmd
	KindRescheduleCmd
	KindHours
	KindHelp

	// Service selection.
	KindBookService
	KindAddService
	KindAddAnother

	// Stylist selection.
	KindSelectStylist
	KindProceedToStylist

	// Date selection.
	KindPickDate
	KindWeekNav
	KindBackToDates
	KindCustomDate

	// Time selection and confirmation.
	KindPickTime
	KindConfirm
	KindCancelBooking

	// Appointment management.
	KindViewApt
	KindCancelApt
	KindConfirmCancel
	KindRescheduleApt

	// Shortcuts and extras.
	KindQuickRebook
	KindFeedback
	KindNoOp
)

// Fixed action codes. These are a wire contract shared with previously sent
// buttons, so the exact strings must never change.
const (
	CodeStart         = "cmd_start"
	CodeBook          = "cmd_book"
	CodeAppointments  = "cmd_appointments"
	CodeServices      = "cmd_services"
	CodeCancelCmd     = "cmd_cancel"
	CodeRescheduleCmd = "cmd_reschedule"
	CodeHours         = "cmd_hours"
	CodeHelp          = "cmd_help"
	CodeAddAnother    = "add_another_service"
	CodeStylistAny    = "select_stylist_any"
	CodeProceed       = "proceed_to_stylist"
	CodeBackToDates   = "back_to_dates"
	CodeCustomDate    = "custom_date_entry"
	CodeConfirm       = "confirm_booking_final"
	CodeCancelBooking = "cancel_booking"
	CodeQuickRebook   = "quick_rebook"
	CodeNoOp          = "no_op"
)

// Action is the parsed form of an inbound action code. The router parses raw
// codes exactly once; the engine only ever sees typed actions.
type Action struct {
	Kind Kind

	ServiceID     int64
	StylistID     int64
	StylistAny    bool
	Date          time.Time
	WeekOffset    int
	Time          string
	AppointmentID int64
	Rating        int
}

var fixedCodes = map[string]Kind{
	CodeStart:         KindStart,
	CodeBook:          KindBook,
	CodeAppointments:  KindAppointments,
	CodeServices:      KindServices,
	CodeCancelCmd:     KindCancelCmd,
	CodeRescheduleCmd: KindRescheduleCmd,
	CodeHours:         KindHours,
	CodeHelp:          KindHelp,
	CodeAddAnother:    KindAddAnother,
	CodeStylistAny:    KindSelectStylist,
	CodeProceed:       KindProceedToStylist,
	CodeBackToDates:   KindBackToDates,
	CodeCustomDate:    KindCustomDate,
	CodeConfirm:       KindConfirm,
	CodeCancelBooking: KindCancelBooking,
	CodeQuickRebook:   KindQuickRebook,
	CodeNoOp:          KindNoOp,
}

// ParseAction decodes a raw action code into its typed form. Unparseable or
// unrecognized codes come back as KindUnknown; each code is independently
// parseable without any session state so stale buttons stay decodable.
func ParseAction(code string) Action {
	code = strings.TrimSpace(code)
	if kind, ok := fixedCodes[code]; ok {
		act := Action{Kind: kind}
		if code == CodeStylistAny {
			act.StylistAny = true
		}
		return act
	}

	switch {
	case strings.HasPrefix(code, "book_service_"):
		if id, ok := parseID(code, "book_service_"); ok {
			return Action{Kind: KindBookService, ServiceID: id}
		}
	case strings.HasPrefix(code, "add_service_"):
		if id, ok := parseID(code, "add_service_"); ok {
			return Action{Kind: KindAddService, ServiceID: id}
		}
	case strings.HasPrefix(code, "select_stylist_"):
		if id, ok := parseID(code, "select_stylist_"); ok {
			return Action{Kind: KindSelectStylist, StylistID: id}
		}
	case strings.HasPrefix(code, "pick_date_"):
		raw := strings.TrimPrefix(code, "pick_date_")
		if date, err := time.ParseInLocation(booking.DateFormat, raw, time.Local); err == nil {
			return Action{Kind: KindPickDate, Date: date}
		}
	case strings.HasPrefix(code, "week_nav_"):
		if off, err := strconv.Atoi(strings.TrimPrefix(code, "week_nav_")); err == nil {
			return Action{Kind: KindWeekNav, WeekOffset: off}
		}
	case strings.HasPrefix(code, "pick_time_"):
		raw := strings.TrimPrefix(code, "pick_time_")
		if _, err := time.Parse(booking.TimeFormat, raw); err == nil {
			return Action{Kind: KindPickTime, Time: raw}
		}
	case strings.HasPrefix(code, "view_apt_"):
		if id, ok := parseID(code, "view_apt_"); ok {
			return Action{Kind: KindViewApt, AppointmentID: id}
		}
	case strings.HasPrefix(code, "cancel_apt_"):
		if id, ok := parseID(code, "cancel_apt_"); ok {
			return Action{Kind: KindCancelApt, AppointmentID: id}
		}
	case strings.HasPrefix(code, "confirm_cancel_"):
		if id, ok := parseID(code, "confirm_cancel_"); ok {
			return Action{Kind: KindConfirmCancel, AppointmentID: id}
		}
	case strings.HasPrefix(code, "reschedule_apt_"):
		if id, ok := parseID(code, "reschedule_apt_"); ok {
			return Action{Kind: KindRescheduleApt, AppointmentID: id}
		}
	case strings.HasPrefix(code, "feedback:"):
		parts := strings.Split(code, ":")
		if len(parts) == 3 {
			id, errID := strconv.ParseInt(parts[1], 10, 64)
			rating, errRating := strconv.Atoi(parts[2])
			if errID == nil && errRating == nil && (rating == 1 || rating == 3 || rating == 5) {
				return Action{Kind: KindFeedback, AppointmentID: id, Rating: rating}
			}
		}
	}

	return Action{Kind: KindUnknown}
}

func parseID(code, prefix string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimPrefix(code, prefix), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Code re-encodes the action to its wire form, byte for byte.
func (a Action) Code() string {
	switch a.Kind {
	case KindStart:
		return CodeStart
	case KindBook:
		return CodeBook
	case KindAppointments:
		return CodeAppointments
	case KindServices:
		return CodeServices
	case KindCancelCmd:
		return CodeCancelCmd
	case KindRescheduleCmd:
		return CodeRescheduleCmd
	case KindHours:
		return CodeHours
	case KindHelp:
		return CodeHelp
	case KindBookService:
		return fmt.Sprintf("book_service_%d", a.ServiceID)
	case KindAddService:
		return fmt.Sprintf("add_service_%d", a.ServiceID)
	case KindAddAnother:
		return CodeAddAnother
	case KindSelectStylist:
		if a.StylistAny {
			return CodeStylistAny
		}
		return fmt.Sprintf("select_stylist_%d", a.StylistID)
	case KindProceedToStylist:
		return CodeProceed
	case KindPickDate:
		return "pick_date_" + a.Date.Format(booking.DateFormat)
	case KindWeekNav:
		return fmt.Sprintf("week_nav_%d", a.WeekOffset)
	case KindBackToDates:
		return CodeBackToDates
	case KindCustomDate:
		return CodeCustomDate
	case KindPickTime:
		return "pick_time_" + a.Time
	case KindConfirm:
		return CodeConfirm
	case KindCancelBooking:
		return CodeCancelBooking
	case KindViewApt:
		return fmt.Sprintf("view_apt_%d", a.AppointmentID)
	case KindCancelApt:
		return fmt.Sprintf("cancel_apt_%d", a.AppointmentID)
	case KindConfirmCancel:
		return fmt.Sprintf("confirm_cancel_%d", a.AppointmentID)
	case KindRescheduleApt:
		return fmt.Sprintf("reschedule_apt_%d", a.AppointmentID)
	case KindQuickRebook:
		return CodeQuickRebook
	case KindFeedback:
		return fmt.Sprintf("feedback:%d:%d", a.AppointmentID, a.Rating)
	case KindNoOp:
		return CodeNoOp
	}
	return ""
}
