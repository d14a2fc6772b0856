package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseActionFixedCodes(t *testing.T) {
	cases := map[string]Kind{
		"cmd_start":           KindStart,
		"cmd_book":            KindBook,
		"cmd_appointments":    KindAppointments,
		"cmd_services":        KindServices,
		"cmd_cancel":          KindCancelCmd,
		"cmd_reschedule":      KindRescheduleCmd,
		"cmd_hours":           KindHours,
		"cmd_help":            KindHelp,
		"add_another_service": KindAddAnother,
		"proceed_to_stylist":  KindProceedToStylist,
		"back_to_dates":       KindBackToDates,
		"custom_date_entry":   KindCustomDate,
		"confirm_booking_final": KindConfirm,
		"cancel_booking":      KindCancelBooking,
		"quick_rebook":        KindQuickRebook,
		"no_op":               KindNoOp,
	}
	for code, kind := range cases {
		assert.Equal(t, kind, ParseAction(code).Kind, code)
	}
}

func TestParseActionParameterized(t *testing.T) {
	act := ParseAction("book_service_12")
	assert.Equal(t, KindBookService, act.Kind)
	assert.Equal(t, int64(12), act.ServiceID)

	act = ParseAction("add_service_3")
	assert.Equal(t, KindAddService, act.Kind)
	assert.Equal(t, int64(3), act.ServiceID)

	act = ParseAction("select_stylist_7")
	assert.Equal(t, KindSelectStylist, act.Kind)
	assert.Equal(t, int64(7), act.StylistID)
	assert.False(t, act.StylistAny)

	act = ParseAction("select_stylist_any")
	assert.Equal(t, KindSelectStylist, act.Kind)
	assert.True(t, act.StylistAny)

	act = ParseAction("pick_date_2026-09-15")
	assert.Equal(t, KindPickDate, act.Kind)
	assert.Equal(t, time.Date(2026, 9, 15, 0, 0, 0, 0, time.Local), act.Date)

	act = ParseAction("week_nav_1")
	assert.Equal(t, KindWeekNav, act.Kind)
	assert.Equal(t, 1, act.WeekOffset)

	act = ParseAction("pick_time_09:30")
	assert.Equal(t, KindPickTime, act.Kind)
	assert.Equal(t, "09:30", act.Time)

	act = ParseAction("view_apt_42")
	assert.Equal(t, KindViewApt, act.Kind)
	assert.Equal(t, int64(42), act.AppointmentID)

	act = ParseAction("confirm_cancel_42")
	assert.Equal(t, KindConfirmCancel, act.Kind)

	act = ParseAction("feedback:42:5")
	assert.Equal(t, KindFeedback, act.Kind)
	assert.Equal(t, int64(42), act.AppointmentID)
	assert.Equal(t, 5, act.Rating)
}

func TestParseActionRejectsMalformedCodes(t *testing.T) {
	for _, code := range []string{
		"",
		"garbage",
		"book_service_",
		"book_service_abc",
		"book_service_-1",
		"book_service_0",
		"pick_date_15-09-2026",
		"pick_time_25:99",
		"week_nav_x",
		"feedback:42:2", // only ratings 1, 3, 5 exist
		"feedback:42",
		"view_apt_0",
	} {
		assert.Equal(t, KindUnknown, ParseAction(code).Kind, code)
	}
}

// Codes round-trip byte for byte: buttons sent months ago must still decode
// to the same action.
func TestActionCodeRoundTrip(t *testing.T) {
	codes := []string{
		"cmd_start", "cmd_book", "cmd_appointments", "cmd_services",
		"cmd_cancel", "cmd_reschedule", "cmd_hours", "cmd_help",
		"book_service_5", "add_service_9", "add_another_service",
		"select_stylist_2", "select_stylist_any", "proceed_to_stylist",
		"pick_date_2026-12-31", "week_nav_0", "week_nav_1",
		"back_to_dates", "custom_date_entry",
		"pick_time_17:30", "confirm_booking_final", "cancel_booking",
		"view_apt_10", "cancel_apt_10", "confirm_cancel_10", "reschedule_apt_10",
		"quick_rebook", "feedback:10:3", "no_op",
	}
	for _, code := range codes {
		act := ParseAction(code)
		assert.NotEqual(t, KindUnknown, act.Kind, code)
		assert.Equal(t, code, act.Code(), code)
	}
}
