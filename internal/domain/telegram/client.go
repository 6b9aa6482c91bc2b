package telegram

import "gopkg.in/telebot.v3"

// Client sends chat messages to members. Notification delivery depends on this port,
// not on the bot library's Bot type.
type Client interface {
	SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error
}
