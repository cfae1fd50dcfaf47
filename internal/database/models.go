package database

import "time"

// Generation statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Generation is one ledger row. Prompt and reply text are never stored, only
// their lengths.
type Generation struct {
	ID          uint      `db:"id"`
	RequestID   string    `db:"request_id"`
	ChatID      int64     `db:"chat_id"`
	UserID      int64     `db:"user_id"`
	PromptChars int       `db:"prompt_chars"`
	ReplyChars  int       `db:"reply_chars"`
	DurationMS  int64     `db:"duration_ms"`
	Status      string    `db:"status"`
	Error       string    `db:"error"`
	Truncated   bool      `db:"truncated"`
	CreatedAt   time.Time `db:"created_at"`
}

// GenerationStats summarizes ledger rows over a window.
type GenerationStats struct {
	Total         int     `db:"total"`
	Failed        int     `db:"failed"`
	Truncated     int     `db:"truncated"`
	AvgDurationMS float64 `db:"avg_duration_ms"`
	Users         int     `db:"users"`
}
