package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ErrConfiguration marks every error returned by Load.
var ErrConfiguration = errors.New("configuration error")

// Load loads and validates configuration from:
// 1. Default values
// 2. the YAML file at path, when path is non-empty and the file exists
// 3. environment variables (TELEGRAM_TOKEN, MODEL_NAME, ...)
func Load(path string) (*Config, error) {
	startTime := time.Now()
	v := viper.New()

	for key, value := range defaults() {
		v.SetDefault(key, value)
	}
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("%w: failed to bind %s: %v", ErrConfiguration, env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: failed to read config file: %v", ErrConfiguration, err)
			}
			slog.Info("Configuration file not found, using defaults and environment", "path", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}

	adminIDs, err := parseAdminIDs(v.GetString(keyAdminIDs))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	cfg.Telegram.AdminIDs = adminIDs
	cfg.Generation.DoSample = parseFlag(v.GetString(keyDoSample))
	cfg.Logger.Level = normalizeLevel(cfg.Logger.Level)
	cfg.Logger.Format = strings.ToLower(strings.TrimSpace(cfg.Logger.Format))

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	slog.Debug("Configuration loaded",
		"model", cfg.Generation.ModelID,
		"device", cfg.Generation.Device,
		"workers", cfg.Runtime.Workers,
		"admins", len(cfg.Telegram.AdminIDs),
		"duration_ms", time.Since(startTime).Milliseconds())

	return cfg, nil
}

// parseAdminIDs parses a comma-separated list of Telegram user IDs.
// Empty items are skipped.
func parseAdminIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_IDS entry %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseFlag treats "1", "true" and "yes" (any case) as true.
func parseFlag(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

// normalizeLevel accepts Python-style upper-case names such as INFO or WARNING.
func normalizeLevel(level string) string {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		return "warn"
	}
	return level
}
