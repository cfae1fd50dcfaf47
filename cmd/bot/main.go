// Package main contains the entrypoint for the text-generation Telegram bot.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/joho/godotenv"

	"github.com/edgard/textgenbot/internal/bot"
	"github.com/edgard/textgenbot/internal/bot/handlers"
	"github.com/edgard/textgenbot/internal/bot/tasks"
	"github.com/edgard/textgenbot/internal/config"
	"github.com/edgard/textgenbot/internal/database"
	"github.com/edgard/textgenbot/internal/dispatch"
	"github.com/edgard/textgenbot/internal/httpapi"
	"github.com/edgard/textgenbot/internal/inference"
	"github.com/edgard/textgenbot/internal/logger"
	"github.com/edgard/textgenbot/internal/telegram"
	"github.com/edgard/textgenbot/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires every component, runs the bot until ctx is cancelled and returns
// the process exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "", "Path to an optional YAML configuration file")
	envPath := flag.String("env", ".env", "Path to an optional .env file")
	flag.Parse()

	if err := loadDotEnv(*envPath); err != nil {
		slog.Error("Failed to load .env file", "path", *envPath, "error", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "format", cfg.Logger.Format)

	rt := inference.NewLlamaRuntime(inference.LlamaOptions{
		ModelsDir:     cfg.Runtime.ModelsDir,
		ContextSize:   cfg.Runtime.ContextSize,
		Threads:       cfg.Runtime.Threads,
		ServerURL:     cfg.Runtime.ServerURL,
		ServerAPIKey:  cfg.Runtime.ServerAPIKey,
		ServerTimeout: cfg.Runtime.ServerTimeout,
	}, log)
	engine, err := inference.NewEngine(ctx, rt, cfg.Generation.ModelID, cfg.Generation.Device, log)
	if err != nil {
		log.Error("Failed to load model", "model", cfg.Generation.ModelID, "device", cfg.Generation.Device, "error", err)
		return 1
	}

	db, err := database.NewDB(cfg.Database.Path, log)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		_ = engine.Close()
		return 1
	}
	defer database.CloseDB(db, log)
	store := database.NewStore(db, log)

	pool := worker.New(cfg.Runtime.Workers, log)

	disp, err := dispatch.New(engine, pool, dispatch.Options{
		Generation:       cfg.Generation,
		MaxMessageLength: cfg.Telegram.MaxMessageLength,
		ErrorPrefix:      cfg.Messages.ErrorPrefix,
		EmptyReply:       cfg.Messages.EmptyReply,
		Logger:           log,
		Recorder:         store,
	})
	if err != nil {
		log.Error("Failed to create dispatcher", "error", err)
		_ = engine.Close()
		return 1
	}

	hDeps := handlers.HandlerDeps{
		Logger:     log,
		Config:     cfg,
		Store:      store,
		Dispatcher: disp,
		Model:      handlers.ModelInfo{ID: engine.ModelID(), Device: engine.Device().String()},
	}
	tDeps := tasks.TaskDeps{
		Logger: log,
		Store:  store,
		Config: cfg,
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(handlers.NewGenerateHandler(hDeps)),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		_ = engine.Close()
		return 1
	}

	if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		_ = engine.Close()
		return 1
	}

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		_ = engine.Close()
		return 1
	}

	appOpts := []bot.Option{bot.WithClosers(pool, engine)}
	if cfg.Metrics.Addr != "" {
		mux := httpapi.NewMux(map[string]httpapi.ReadinessCheck{"database": store.Ping})
		appOpts = append(appOpts, bot.WithOpsServer(httpapi.NewServer(cfg.Metrics.Addr, mux, log)))
	}
	app := bot.NewBot(log, tg, sched, appOpts...)

	log.Info("Starting bot...", "model", engine.ModelID(), "device", engine.Device().String(), "workers", pool.Size())
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	return 0
}

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
