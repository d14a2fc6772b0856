package telegram

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	tele "gopkg.in/telebot.v4"
)

func TestCallbackAction(t *testing.T) {
	assert.Equal(t, "", callbackAction(nil))

	// telebot encodes button callbacks as \f<unique>|<data>.
	cb := &tele.Callback{Data: "\fact|cmd_book"}
	assert.Equal(t, "cmd_book", callbackAction(cb))

	cb = &tele.Callback{Data: "\fact|pick_date_2026-09-15"}
	assert.Equal(t, "pick_date_2026-09-15", callbackAction(cb))

	// Bare payloads (for example from older clients) pass through as-is.
	cb = &tele.Callback{Data: "cmd_start"}
	assert.Equal(t, "cmd_start", callbackAction(cb))

	// Foreign uniques fall through to the raw payload; the router maps
	// anything unrecognized to the fallback response.
	cb = &tele.Callback{Data: "\fother|whatever"}
	assert.Equal(t, "other|whatever", callbackAction(cb))
}

func TestNormalizeHandlerName(t *testing.T) {
	assert.Equal(t, "start", normalizeHandlerName("/start"))
	assert.Equal(t, "my_appointments", normalizeHandlerName("My Appointments"))
	assert.Equal(t, "unknown", normalizeHandlerName("  "))
}

type codedError struct{ code string }

func (e codedError) Error() string { return "coded" }
func (e codedError) Code() string  { return e.code }

func TestDeriveErrorCode(t *testing.T) {
	assert.Equal(t, "", deriveErrorCode(nil))
	assert.Equal(t, "CONTEXT_LOST", deriveErrorCode(codedError{code: "context_lost"}))
	assert.Equal(t, "CODEDERROR", deriveErrorCode(codedError{}))
	assert.NotEmpty(t, deriveErrorCode(errors.New("plain")))
}
