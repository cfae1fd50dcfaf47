package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const statsWindow = 24 * time.Hour

// NewStatsHandler returns a handler for the admin /stats command.
func NewStatsHandler(deps HandlerDeps) bot.HandlerFunc {
	return statsHandler{deps: deps, now: time.Now}.Handle
}

type statsHandler struct {
	deps HandlerDeps
	now  func() time.Time
}

func (h statsHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "stats")

	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	reply := "Statistics are unavailable."
	if h.deps.Store != nil {
		stats, err := h.deps.Store.GenerationStats(ctx, h.now().Add(-statsWindow))
		if err != nil {
			log.ErrorContext(ctx, "Failed to read generation stats", "error", err)
		} else {
			reply = fmt.Sprintf(
				"Last 24h:\nGenerations: %d\nFailed: %d\nTruncated: %d\nUsers: %d\nAverage duration: %s",
				stats.Total, stats.Failed, stats.Truncated, stats.Users,
				(time.Duration(stats.AvgDurationMS) * time.Millisecond).Round(time.Millisecond),
			)
		}
	}

	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: reply}); err != nil {
		log.ErrorContext(ctx, "Failed to send stats", "error", err, "chat_id", chatID)
	}
}
