package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"

	"github.com/edgard/textgenbot/internal/dispatch"
	"github.com/edgard/textgenbot/internal/telegram"
)

type generateHandler struct {
	deps HandlerDeps
}

// NewGenerateHandler creates the default handler: every text message that is
// not a command is treated as a prompt and answered by the model.
func NewGenerateHandler(deps HandlerDeps) bot.HandlerFunc {
	return generateHandler{deps}.Handle
}

func (h generateHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "generate")

	msg := update.Message
	if msg == nil || msg.Text == "" {
		log.DebugContext(ctx, "Ignoring non-text update", "update_id", update.ID)
		return
	}
	if strings.HasPrefix(msg.Text, "/") {
		log.DebugContext(ctx, "Ignoring unknown command", "chat_id", msg.Chat.ID, "command", firstWord(msg.Text))
		return
	}

	in := dispatch.IncomingMessage{
		RequestID: uuid.NewString(),
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
		Text:      msg.Text,
	}
	if msg.From != nil {
		in.SenderID = msg.From.ID
	}

	h.deps.Dispatcher.Handle(ctx, telegram.NewMessenger(b), in)
}

func firstWord(s string) string {
	if i := strings.IndexAny(s, " \n\t"); i >= 0 {
		return s[:i]
	}
	return s
}
