package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the ledger operations. Methods accept context.Context for
// cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// RecordGeneration inserts one ledger row and sets its ID.
	RecordGeneration(ctx context.Context, g *Generation) error

	// GenerationStats summarizes rows created at or after since.
	GenerationStats(ctx context.Context, since time.Time) (*GenerationStats, error)

	// PruneGenerations deletes rows created before the cutoff and reports how many.
	PruneGenerations(ctx context.Context, before time.Time) (int64, error)

	// RunSQLMaintenance compacts and optimizes the database.
	RunSQLMaintenance(ctx context.Context) error
}

type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a Store backed by sqlx.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) RecordGeneration(ctx context.Context, g *Generation) error {
	if g == nil {
		return errors.New("cannot record nil generation")
	}
	if g.ChatID == 0 {
		return errors.New("generation must have a non-zero chat_id")
	}
	if g.Status != StatusOK && g.Status != StatusFailed {
		return fmt.Errorf("invalid generation status %q", g.Status)
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = s.now()
	}
	g.CreatedAt = g.CreatedAt.UTC()

	query := `
        INSERT INTO generations (request_id, chat_id, user_id, prompt_chars, reply_chars,
            duration_ms, status, error, truncated, created_at)
        VALUES (:request_id, :chat_id, :user_id, :prompt_chars, :reply_chars,
            :duration_ms, :status, :error, :truncated, :created_at);
    `
	result, err := s.db.NamedExecContext(ctx, query, g)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error recording generation",
			"request_id", g.RequestID, "chat_id", g.ChatID, "error", err)
		return fmt.Errorf("failed to record generation %s: %w", g.RequestID, err)
	}
	if id, err := result.LastInsertId(); err == nil {
		//nolint:gosec // row ids are positive
		g.ID = uint(id)
	} else {
		s.logger.WarnContext(ctx, "Could not retrieve last insert ID", "request_id", g.RequestID, "error", err)
	}

	s.logger.DebugContext(ctx, "Generation recorded",
		"request_id", g.RequestID, "id", g.ID, "status", g.Status)
	return nil
}

func (s *sqlxStore) GenerationStats(ctx context.Context, since time.Time) (*GenerationStats, error) {
	query := `
        SELECT
            COUNT(*) AS total,
            COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0) AS failed,
            COALESCE(SUM(CASE WHEN truncated THEN 1 ELSE 0 END), 0) AS truncated,
            COALESCE(AVG(duration_ms), 0) AS avg_duration_ms,
            COUNT(DISTINCT CASE WHEN user_id != 0 THEN user_id END) AS users
        FROM generations
        WHERE created_at >= ?;
    `
	var stats GenerationStats
	if err := s.db.GetContext(ctx, &stats, query, since.UTC()); err != nil {
		s.logger.ErrorContext(ctx, "Error reading generation stats", "since", since, "error", err)
		return nil, fmt.Errorf("failed to read generation stats: %w", err)
	}
	return &stats, nil
}

func (s *sqlxStore) PruneGenerations(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM generations WHERE created_at < ?;`, before.UTC())
	if err != nil {
		s.logger.ErrorContext(ctx, "Error pruning generations", "before", before, "error", err)
		return 0, fmt.Errorf("failed to prune generations: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		s.logger.WarnContext(ctx, "Could not determine pruned row count", "error", err)
		return 0, nil
	}
	s.logger.InfoContext(ctx, "Pruned generation ledger", "before", before, "deleted", deleted)
	return deleted, nil
}

// RunSQLMaintenance runs VACUUM and PRAGMA optimize. VACUUM must run outside
// a transaction.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		s.logger.WarnContext(ctx, "Context done before starting VACUUM", "error", err)
		return err
	}

	s.logger.InfoContext(ctx, "Starting database maintenance")
	start := time.Now()

	_, err := s.db.ExecContext(ctx, "VACUUM;")
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "VACUUM failed", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) failed: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize;"); err != nil {
		s.logger.WarnContext(ctx, "PRAGMA optimize failed", "error", err)
		return fmt.Errorf("database maintenance (optimize) failed: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance completed", "duration", time.Since(start))
	return nil
}
