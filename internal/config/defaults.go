package config

import (
	"runtime"
	"time"
)

// Default values for configuration
const (
	// Telegram defaults
	DefaultMaxMessageLength = 4096 // Telegram's maximum message length

	// Generation defaults
	DefaultModelID      = "gpt2"
	DefaultDevice       = "cpu"
	DefaultMaxNewTokens = 128
	DefaultTemperature  = 0.7
	DefaultTopP         = 0.95
	DefaultDoSample     = true

	// Runtime defaults
	DefaultModelsDir     = "./models"
	DefaultServerURL     = "http://127.0.0.1:8080"
	DefaultServerTimeout = time.Duration(0) // model listing only; generations never time out
	DefaultContextSize   = 2048
	DefaultWorkers       = 1 // llama.cpp contexts are not safe for concurrent Predict

	// Log defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"

	// Database defaults
	DefaultDBPath    = "generations.db"
	DefaultRetention = 30 * 24 * time.Hour

	// Scheduler defaults
	DefaultPruneSchedule       = "0 0 * * * *"
	DefaultMaintenanceSchedule = "0 30 3 * * *"

	// Task names, shared with the task registry.
	TaskLedgerPrune    = "ledger_prune"
	TaskSQLMaintenance = "sql_maintenance"
)

// Default bot messages
var DefaultMessages = MessagesConfig{
	Welcome:      "Hi! I'm a local AI bot. Send me a message and I'll generate a reply.",
	Help:         "Send any text message and I'll continue it with the local model.",
	ErrorPrefix:  "Generation error: ",
	Unauthorized: "You are not authorized to use this command.",
	EmptyReply:   "The model returned an empty response.",
}

// Viper keys that need special parsing after unmarshalling.
const (
	keyAdminIDs = "telegram.admin_ids"
	keyDoSample = "generation.do_sample"
)

// envBindings maps viper keys to the environment variables that override them.
var envBindings = map[string]string{
	"telegram.token":              "TELEGRAM_TOKEN",
	keyAdminIDs:                   "ADMIN_IDS",
	"telegram.max_message_length": "MAX_MESSAGE_LENGTH",

	"generation.model_id":       "MODEL_NAME",
	"generation.device":         "DEVICE",
	"generation.max_new_tokens": "MAX_NEW_TOKENS",
	"generation.temperature":    "TEMPERATURE",
	"generation.top_p":          "TOP_P",
	keyDoSample:                 "DO_SAMPLE",

	"runtime.models_dir":     "MODELS_DIR",
	"runtime.server_url":     "LLAMA_SERVER_URL",
	"runtime.server_api_key": "LLAMA_SERVER_API_KEY",
	"runtime.server_timeout": "LLAMA_SERVER_TIMEOUT",
	"runtime.context_size":   "LLAMA_CONTEXT_SIZE",
	"runtime.threads":        "LLAMA_THREADS",
	"runtime.workers":        "GENERATION_WORKERS",

	"logger.level":  "LOG_LEVEL",
	"logger.format": "LOG_FORMAT",

	"database.path":      "DB_PATH",
	"database.retention": "STATS_RETENTION",

	"scheduler.tasks." + TaskLedgerPrune + ".schedule":    "PRUNE_SCHEDULE",
	"scheduler.tasks." + TaskSQLMaintenance + ".schedule": "MAINTENANCE_SCHEDULE",

	"metrics.addr": "METRICS_ADDR",

	"messages.welcome":      "WELCOME_MESSAGE",
	"messages.error_prefix": "ERROR_PREFIX",
}

// defaults returns the default value for every optional key.
func defaults() map[string]any {
	return map[string]any{
		keyAdminIDs:                   "",
		"telegram.max_message_length": DefaultMaxMessageLength,

		"generation.model_id":       DefaultModelID,
		"generation.device":         DefaultDevice,
		"generation.max_new_tokens": DefaultMaxNewTokens,
		"generation.temperature":    DefaultTemperature,
		"generation.top_p":          DefaultTopP,
		keyDoSample:                 DefaultDoSample,

		"runtime.models_dir":     DefaultModelsDir,
		"runtime.server_url":     DefaultServerURL,
		"runtime.server_timeout": DefaultServerTimeout,
		"runtime.context_size":   DefaultContextSize,
		"runtime.threads":        runtime.NumCPU(),
		"runtime.workers":        DefaultWorkers,

		"logger.level":  DefaultLogLevel,
		"logger.format": DefaultLogFormat,

		"database.path":      DefaultDBPath,
		"database.retention": DefaultRetention,

		"scheduler.tasks." + TaskLedgerPrune + ".enabled":     true,
		"scheduler.tasks." + TaskLedgerPrune + ".schedule":    DefaultPruneSchedule,
		"scheduler.tasks." + TaskSQLMaintenance + ".enabled":  true,
		"scheduler.tasks." + TaskSQLMaintenance + ".schedule": DefaultMaintenanceSchedule,

		"metrics.addr": "",

		"messages.welcome":      DefaultMessages.Welcome,
		"messages.help":         DefaultMessages.Help,
		"messages.error_prefix": DefaultMessages.ErrorPrefix,
		"messages.unauthorized": DefaultMessages.Unauthorized,
		"messages.empty_reply":  DefaultMessages.EmptyReply,
	}
}
