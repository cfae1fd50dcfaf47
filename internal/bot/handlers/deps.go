package handlers

import (
	"context"
	"log/slog"

	"github.com/edgard/textgenbot/internal/config"
	"github.com/edgard/textgenbot/internal/database"
	"github.com/edgard/textgenbot/internal/dispatch"
)

// Dispatcher runs one inbound message through generation and reply.
type Dispatcher interface {
	Handle(ctx context.Context, m dispatch.Messenger, msg dispatch.IncomingMessage) dispatch.Outcome
	Params() config.GenerationConfig
}

// ModelInfo describes the loaded model for user-facing messages.
type ModelInfo struct {
	ID     string
	Device string
}

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger     *slog.Logger
	Config     *config.Config
	Store      database.Store
	Dispatcher Dispatcher
	Model      ModelInfo
}
