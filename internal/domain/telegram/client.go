package telegram

import "gopkg.in/telebot.v3"

// Client is the notifier the reminder sweep and services send through.
// Decoupling from the bot library keeps send failures catchable per person
// and lets tests substitute a recorder.
type Client interface {
	SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error
}
