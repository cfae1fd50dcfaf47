// Package bot implements lifecycle management and component orchestration
// for the text-generation bot.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Listener receives updates until its context is cancelled.
// *github.com/go-telegram/bot.Bot satisfies it.
type Listener interface {
	Start(ctx context.Context)
}

// TaskScheduler runs periodic tasks between Start and Stop.
type TaskScheduler interface {
	Start() error
	Stop() error
}

// OpsServer serves operational endpoints until its context is cancelled.
type OpsServer interface {
	Run(ctx context.Context) error
}

// Bot represents the main bot application and manages its components' lifecycle.
type Bot struct {
	logger    *slog.Logger
	listener  Listener
	scheduler TaskScheduler
	ops       OpsServer
	closers   []io.Closer
}

// Option configures optional components.
type Option func(*Bot)

// WithOpsServer runs srv alongside the listener.
func WithOpsServer(srv OpsServer) Option {
	return func(b *Bot) { b.ops = srv }
}

// WithClosers registers resources released after every component stopped,
// in order. The inference engine is one of them.
func WithClosers(closers ...io.Closer) Option {
	return func(b *Bot) { b.closers = append(b.closers, closers...) }
}

// NewBot creates the orchestrator over the Telegram listener and the scheduler.
func NewBot(logger *slog.Logger, listener Listener, scheduler TaskScheduler, opts ...Option) *Bot {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	b := &Bot{
		logger:    logger.With("component", "bot_orchestrator"),
		listener:  listener,
		scheduler: scheduler,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails. Registered closers run before Run returns.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator...")
	defer b.close()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.logger.Info("Starting Telegram bot listener...")
		b.listener.Start(gCtx)
		b.logger.Info("Telegram bot listener stopped.")

		if gCtx.Err() == nil {
			b.logger.Warn("Telegram bot listener stopped unexpectedly without context cancellation.")
			return fmt.Errorf("telegram listener stopped unexpectedly")
		}
		return nil
	})

	if b.scheduler != nil {
		g.Go(func() error {
			b.logger.Info("Starting scheduler...")
			if err := b.scheduler.Start(); err != nil {
				b.logger.Error("Failed to start scheduler", "error", err)
				return fmt.Errorf("failed to start scheduler: %w", err)
			}

			<-gCtx.Done()
			b.logger.Info("Shutdown signal received, stopping scheduler...")
			if err := b.scheduler.Stop(); err != nil {
				b.logger.Error("Error stopping scheduler", "error", err)
			}
			return nil
		})
	}

	if b.ops != nil {
		g.Go(func() error {
			if err := b.ops.Run(gCtx); err != nil {
				return fmt.Errorf("ops http server: %w", err)
			}
			return nil
		})
	}

	b.logger.Info("Bot orchestrator running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}

func (b *Bot) close() {
	for _, c := range b.closers {
		if err := c.Close(); err != nil {
			b.logger.Error("Error releasing resource", "error", err)
		}
	}
}
