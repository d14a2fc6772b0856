package flow

import "fmt"

// Taxonomy codes for flow failures. Every failure inside the engine is
// converted to a recovery Response at the Handle boundary; raw error text
// never reaches the end user.
const (
	ErrCodeContextLost   = "context_lost"
	ErrCodeFetchFailed   = "fetch_failed"
	ErrCodeNotFound      = "not_found"
	ErrCodeBookingFailed = "booking_failed"
	ErrCodeFullyBooked   = "fully_booked"
	ErrCodeGeneric       = "generic"
)

// Error is a classified flow failure carrying the user-visible explanation
// and a recovery keyboard.
type Error struct {
	kind     string
	message  string
	keyboard [][]Button
	cause    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("flow: %s: %v", e.kind, e.cause)
	}
	return "flow: " + e.kind
}

// Code returns the taxonomy code for structured logging.
func (e *Error) Code() string { return e.kind }

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.cause }

// Response renders the failure as a user-facing recovery response.
func (e *Error) Response() Response {
	kb := e.keyboard
	if len(kb) == 0 {
		kb = [][]Button{Row(Btn("🏠 Main menu", CodeStart))}
	}
	return Response{Text: e.message, Keyboard: kb, EditPrevious: false}
}

func errContextLost() *Error {
	return &Error{
		kind:    ErrCodeContextLost,
		message: "Looks like your session expired, so let's start fresh. What would you like to do?",
		keyboard: [][]Button{
			Row(Btn("💇 Book an appointment", CodeBook)),
			Row(Btn("🏠 Main menu", CodeStart)),
		},
	}
}

func errFetchFailed(cause error) *Error {
	return &Error{
		kind:    ErrCodeFetchFailed,
		message: "Sorry, I couldn't load that right now. Please try again in a moment.",
		keyboard: [][]Button{
			Row(Btn("🔄 Try again", CodeStart)),
		},
		cause: cause,
	}
}

func errNotFound(what string) *Error {
	return &Error{
		kind:    ErrCodeNotFound,
		message: fmt.Sprintf("Hmm, that %s is no longer available. Let's pick something else.", what),
		keyboard: [][]Button{
			Row(Btn("💇 Book an appointment", CodeBook)),
			Row(Btn("🏠 Main menu", CodeStart)),
		},
	}
}

func errBookingFailed(cause error, timeSlot string) *Error {
	retry := Btn("🔄 Try again", "pick_time_"+timeSlot)
	return &Error{
		kind:    ErrCodeBookingFailed,
		message: "Something went wrong while confirming your booking. Nothing was booked — you can try again or cancel.",
		keyboard: [][]Button{
			Row(retry),
			Row(Btn("❌ Cancel", CodeCancelBooking)),
		},
		cause: cause,
	}
}

func errFullyBooked(dateCode string) *Error {
	return &Error{
		kind:    ErrCodeFullyBooked,
		message: "Oh no — that time was just taken by another booking. Your selections are saved; please pick another slot.",
		keyboard: [][]Button{
			Row(Btn("🕐 Choose another time", dateCode)),
			Row(Btn("📅 Pick another date", CodeBackToDates)),
		},
	}
}

func errGeneric(cause error) *Error {
	return &Error{
		kind:    ErrCodeGeneric,
		message: "Sorry, something went wrong. Please try again.",
		cause:   cause,
	}
}
