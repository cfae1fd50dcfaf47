package telegram

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Messenger sends typing indicators and replies through a bot instance.
type Messenger struct {
	b *bot.Bot
}

// NewMessenger wraps b.
func NewMessenger(b *bot.Bot) Messenger {
	return Messenger{b: b}
}

// SendTyping shows the typing indicator in chatID.
func (m Messenger) SendTyping(ctx context.Context, chatID int64) error {
	_, err := m.b.SendChatAction(ctx, &bot.SendChatActionParams{
		ChatID: chatID,
		Action: models.ChatActionTyping,
	})
	return err
}

// SendReply sends text to chatID as a reply to message replyTo. A zero
// replyTo sends a plain message; a deleted original does not fail the send.
func (m Messenger) SendReply(ctx context.Context, chatID int64, replyTo int, text string) error {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}
	if replyTo != 0 {
		params.ReplyParameters = &models.ReplyParameters{
			MessageID:                replyTo,
			AllowSendingWithoutReply: true,
		}
	}
	_, err := m.b.SendMessage(ctx, params)
	return err
}
