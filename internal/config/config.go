// Package config provides configuration loading, validation, and management
// for the text-generation bot. Values come from defaults, an optional YAML
// file, an optional .env file, and the process environment, in increasing
// order of precedence.
package config

import (
	"time"
)

// Config defines the application configuration for all components.
type Config struct {
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Generation GenerationConfig `mapstructure:"generation"`
	Runtime    RuntimeConfig    `mapstructure:"runtime"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Messages   MessagesConfig   `mapstructure:"messages"`
}

// TelegramConfig holds the bot credentials and the admin allow-list.
type TelegramConfig struct {
	Token string `mapstructure:"token" validate:"required"`
	// AdminIDs is parsed from a comma-separated list; see parseAdminIDs.
	AdminIDs []int64 `mapstructure:"-"`
	// MaxMessageLength is the outbound channel limit in characters.
	MaxMessageLength int `mapstructure:"max_message_length" validate:"gt=0"`
}

// IsAdmin reports whether userID is listed in ADMIN_IDS.
func (t TelegramConfig) IsAdmin(userID int64) bool {
	for _, id := range t.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// GenerationConfig is the process-wide set of generation parameters. It is
// built once at startup and passed by value to every request.
type GenerationConfig struct {
	ModelID      string  `mapstructure:"model_id"`
	Device       string  `mapstructure:"device"`
	MaxNewTokens int     `mapstructure:"max_new_tokens" validate:"gt=0"`
	Temperature  float64 `mapstructure:"temperature"`
	TopP         float64 `mapstructure:"top_p"`
	DoSample     bool    `mapstructure:"-"`
}

// RuntimeConfig configures the inference runtime and the worker pool.
type RuntimeConfig struct {
	ModelsDir     string        `mapstructure:"models_dir"`
	ServerURL     string        `mapstructure:"server_url"     validate:"omitempty,url"`
	ServerAPIKey  string        `mapstructure:"server_api_key"`
	ServerTimeout time.Duration `mapstructure:"server_timeout" validate:"min=0"`
	ContextSize   int           `mapstructure:"context_size"   validate:"gt=0"`
	Threads       int           `mapstructure:"threads"        validate:"gt=0"`
	Workers       int           `mapstructure:"workers"        validate:"min=1,max=64"`
}

// LoggerConfig selects the slog level and handler format.
type LoggerConfig struct {
	Level  string `mapstructure:"level"  validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// DatabaseConfig configures the generation ledger.
type DatabaseConfig struct {
	Path      string        `mapstructure:"path"      validate:"required"`
	Retention time.Duration `mapstructure:"retention" validate:"min=1h"`
}

// SchedulerConfig maps task names to their schedules.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// TaskConfig configures a single scheduled task.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// MetricsConfig configures the ops HTTP listener. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// MessagesConfig holds user-facing texts.
type MessagesConfig struct {
	Welcome      string `mapstructure:"welcome"      validate:"required"`
	Help         string `mapstructure:"help"         validate:"required"`
	ErrorPrefix  string `mapstructure:"error_prefix" validate:"required"`
	Unauthorized string `mapstructure:"unauthorized" validate:"required"`
	EmptyReply   string `mapstructure:"empty_reply"  validate:"required"`
}
