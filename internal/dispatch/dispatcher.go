// Package dispatch turns inbound chat messages into generation jobs and
// delivers the outcome back to the originating chat.
//
// Each message moves through RECEIVED, TYPING-INDICATOR-SENT and GENERATING
// before ending in REPLIED or FAILED-REPLIED. The user always gets a reply.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/edgard/textgenbot/internal/config"
	"github.com/edgard/textgenbot/internal/database"
	"github.com/edgard/textgenbot/internal/metrics"
	"github.com/edgard/textgenbot/internal/text"
	"github.com/edgard/textgenbot/internal/worker"
)

// Messenger delivers presence signals and replies to a chat.
type Messenger interface {
	SendTyping(ctx context.Context, chatID int64) error
	SendReply(ctx context.Context, chatID int64, replyTo int, text string) error
}

// Generator produces text for a prompt. *inference.Engine satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxNewTokens int, temperature, topP float64, doSample bool) (string, error)
}

// Recorder persists a ledger row per handled message.
type Recorder interface {
	RecordGeneration(ctx context.Context, g *database.Generation) error
}

// IncomingMessage is one inbound text message. SenderID is zero when the
// platform did not identify the sender.
type IncomingMessage struct {
	RequestID string
	SenderID  int64
	ChatID    int64
	MessageID int
	Text      string
}

// Outcome describes how a message was handled.
type Outcome struct {
	Reply     string
	Err       error
	Truncated bool
	Duration  time.Duration
}

// Options configures a Dispatcher.
type Options struct {
	Generation       config.GenerationConfig
	MaxMessageLength int
	ErrorPrefix      string
	EmptyReply       string
	Logger           *slog.Logger
	// Recorder is optional.
	Recorder Recorder
}

// Dispatcher runs the per-message pipeline. It is safe for concurrent use.
type Dispatcher struct {
	gen       Generator
	pool      *worker.Pool
	params    config.GenerationConfig
	limit     int
	errPrefix string
	empty     string
	recorder  Recorder
	logger    *slog.Logger
}

// New creates a Dispatcher. The generation parameters are copied and stay
// fixed for the dispatcher's lifetime.
func New(gen Generator, pool *worker.Pool, opts Options) (*Dispatcher, error) {
	if gen == nil {
		return nil, errors.New("dispatch: generator is required")
	}
	if pool == nil {
		return nil, errors.New("dispatch: worker pool is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	limit := opts.MaxMessageLength
	if limit <= 0 {
		limit = config.DefaultMaxMessageLength
	}
	errPrefix := opts.ErrorPrefix
	if errPrefix == "" {
		errPrefix = config.DefaultMessages.ErrorPrefix
	}
	empty := opts.EmptyReply
	if empty == "" {
		empty = config.DefaultMessages.EmptyReply
	}
	return &Dispatcher{
		gen:       gen,
		pool:      pool,
		params:    opts.Generation,
		limit:     limit,
		errPrefix: errPrefix,
		empty:     empty,
		recorder:  opts.Recorder,
		logger:    logger.With("component", "dispatcher"),
	}, nil
}

// Params returns the generation parameters used for every request.
func (d *Dispatcher) Params() config.GenerationConfig { return d.params }

// Handle processes msg to completion, replying through m. It never panics on
// generation failures and always attempts a reply.
func (d *Dispatcher) Handle(ctx context.Context, m Messenger, msg IncomingMessage) Outcome {
	log := d.logger.With("request_id", msg.RequestID, "chat_id", msg.ChatID, "user_id", msg.SenderID)
	log.DebugContext(ctx, "Message received", "prompt_chars", utf8.RuneCountInString(msg.Text))

	if err := m.SendTyping(ctx, msg.ChatID); err != nil {
		metrics.IncTypingFailure()
		log.WarnContext(ctx, "Failed to send typing indicator", "error", err)
	}

	start := time.Now()
	done := metrics.TrackInflight()
	result, genErr := d.generate(ctx, msg.Text)
	done()
	out := Outcome{Err: genErr, Duration: time.Since(start)}

	status := metrics.StatusOK
	if genErr != nil {
		status = metrics.StatusFailed
		log.ErrorContext(ctx, "Generation failed", "error", genErr, "duration", out.Duration)
		out.Reply = text.Truncate(d.errPrefix+genErr.Error(), d.limit)
	} else {
		reply := text.Clean(result)
		if strings.TrimSpace(reply) == "" {
			reply = d.empty
		}
		out.Reply = text.Truncate(reply, d.limit)
		out.Truncated = out.Reply != reply
		if out.Truncated {
			metrics.IncTruncated()
		}
		log.InfoContext(ctx, "Generation completed",
			"duration", out.Duration, "reply_chars", utf8.RuneCountInString(out.Reply), "truncated", out.Truncated)
	}
	metrics.ObserveGeneration(status, out.Duration)

	if err := m.SendReply(ctx, msg.ChatID, msg.MessageID, out.Reply); err != nil {
		log.ErrorContext(ctx, "Failed to send reply", "error", err)
	}

	d.record(ctx, log, msg, out, status)
	return out
}

// generate runs the engine on the pool. Waiting for a worker honours ctx;
// once started the generation is not cancelled.
func (d *Dispatcher) generate(ctx context.Context, prompt string) (string, error) {
	p := d.params
	return d.pool.Do(ctx, func(jobCtx context.Context) (string, error) {
		return d.gen.Generate(context.WithoutCancel(jobCtx), prompt, p.MaxNewTokens, p.Temperature, p.TopP, p.DoSample)
	})
}

func (d *Dispatcher) record(ctx context.Context, log *slog.Logger, msg IncomingMessage, out Outcome, status string) {
	if d.recorder == nil {
		return
	}
	g := &database.Generation{
		RequestID:   msg.RequestID,
		ChatID:      msg.ChatID,
		UserID:      msg.SenderID,
		PromptChars: utf8.RuneCountInString(msg.Text),
		DurationMS:  out.Duration.Milliseconds(),
		Status:      status,
		Truncated:   out.Truncated,
	}
	if out.Err != nil {
		g.Error = text.Truncate(out.Err.Error(), 512)
	} else {
		g.ReplyChars = utf8.RuneCountInString(out.Reply)
	}
	if err := d.recorder.RecordGeneration(context.WithoutCancel(ctx), g); err != nil {
		log.WarnContext(ctx, "Failed to record generation", "error", fmt.Errorf("ledger: %w", err))
	}
}
