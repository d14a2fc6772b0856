package telegram

import (
	"context"

	"github.com/glowdesk/bookingbot/core/logger"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// botCommands is the command menu shown in the Telegram client. Every entry
// routes through the shared text router, so aliases and plain typed commands
// behave the same.
var botCommands = []tele.Command{
	{Text: "/start", Description: "Main menu"},
	{Text: "/book", Description: "Book an appointment"},
	{Text: "/appointments", Description: "My appointments"},
	{Text: "/services", Description: "Services and prices"},
	{Text: "/cancel", Description: "Cancel an appointment"},
	{Text: "/reschedule", Description: "Move an appointment"},
	{Text: "/hours", Description: "Opening hours"},
	{Text: "/help", Description: "Help"},
}

// setupCommands registers command handlers and publishes the command menu.
func setupCommands(bot *tele.Bot, a *Adapter) {
	for _, cmd := range botCommands {
		bot.Handle(cmd.Text, a.onCommand(cmd.Text))
	}

	if err := bot.SetCommands(botCommands); err != nil {
		logger.TG.LogAttrs(context.Background(), slog.LevelError, "commands.set_failed",
			slog.String("err", err.Error()),
		)
	}
}
