package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewHelpHandler returns a handler for the /help command.
func NewHelpHandler(deps HandlerDeps) bot.HandlerFunc {
	return helpHandler{deps}.Handle
}

// helpHandler processes the /help command using injected dependencies.
type helpHandler struct {
	deps HandlerDeps
}

func (h helpHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "help")

	if update.Message == nil {
		log.WarnContext(ctx, "Help handler received update without message", "update_id", update.ID)
		return
	}
	chatID := update.Message.Chat.ID

	log.InfoContext(ctx, "Handling /help command", "chat_id", chatID)

	_, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: h.text()})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send help message", "error", err, "chat_id", chatID)
	} else {
		log.DebugContext(ctx, "Sent help message", "chat_id", chatID)
	}
}

// text appends the active model and sampling parameters to the help message.
func (h helpHandler) text() string {
	var sb strings.Builder
	sb.WriteString(h.deps.Config.Messages.Help)

	if h.deps.Model.ID != "" {
		fmt.Fprintf(&sb, "\n\nModel: %s", h.deps.Model.ID)
		if h.deps.Model.Device != "" {
			fmt.Fprintf(&sb, " on %s", h.deps.Model.Device)
		}
	}
	if h.deps.Dispatcher != nil {
		p := h.deps.Dispatcher.Params()
		fmt.Fprintf(&sb, "\nmax_new_tokens=%d temperature=%g top_p=%g do_sample=%t",
			p.MaxNewTokens, p.Temperature, p.TopP, p.DoSample)
	}
	return sb.String()
}
