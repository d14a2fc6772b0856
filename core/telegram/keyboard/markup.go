// Package keyboard renders flow keyboards as Telegram inline markup.
package keyboard

import (
	"github.com/glowdesk/bookingbot/core/flow"

	tele "gopkg.in/telebot.v4"
)

// CallbackUnique is the single telebot callback endpoint all action buttons
// share; the action code travels in the callback data.
const CallbackUnique = "act"

// FromResponse converts a flow keyboard into Telegram inline markup.
// Returns nil when the response carries no keyboard.
func FromResponse(resp flow.Response) *tele.ReplyMarkup {
	if len(resp.Keyboard) == 0 {
		return nil
	}

	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, 0, len(resp.Keyboard))
	for _, row := range resp.Keyboard {
		r := make([]tele.InlineButton, 0, len(row))
		for _, btn := range row {
			r = append(r, inlineButton(markup, btn))
		}
		if len(r) > 0 {
			inline = append(inline, r)
		}
	}
	markup.InlineKeyboard = inline
	return markup
}

func inlineButton(markup *tele.ReplyMarkup, btn flow.Button) tele.InlineButton {
	if btn.URL != "" {
		return *markup.URL(btn.Label, btn.URL).Inline()
	}
	action := btn.Action
	if btn.IsHeader() {
		action = flow.CodeNoOp
	}
	return *markup.Data(btn.Label, CallbackUnique, action).Inline()
}
