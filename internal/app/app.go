package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"lms/internal/api"
	"lms/internal/bot"
	"lms/internal/config"
	"lms/internal/id"
	"lms/internal/insight"
	"lms/internal/library"
	"lms/internal/seed"
	"lms/internal/storage"
	"lms/internal/storage/ch"
	"lms/internal/storage/kv"
	"lms/internal/storage/sqlite"
	"lms/internal/storage/stubs"
)

// App represents the application
type App struct {
	config *config.Config
	logger *zap.Logger
	db     storage.Storage
	lib    *library.Library
	bot    *bot.Bot
	server *http.Server
}

// New creates and initializes a new application instance
func New() (*App, error) {
	// Load .env file if it exists
	envErr := godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := NewLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	if envErr != nil {
		logger.Debug("No .env file found, using system environment variables")
	}

	return NewWithConfig(context.Background(), cfg, logger)
}

// NewWithConfig builds the application from an already loaded configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{config: cfg, logger: logger}

	logger.Info("Starting library service",
		zap.String("env", cfg.Env),
		zap.String("storage", cfg.Storage.Backend),
	)

	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}

	if err := app.initLibrary(ctx); err != nil {
		app.closeDatabase()
		return nil, err
	}

	if cfg.BotEnabled() {
		if err := app.initBot(); err != nil {
			app.closeDatabase()
			return nil, err
		}
	} else {
		logger.Info("TELEGRAM_BOT_TOKEN not set, Telegram bot disabled")
	}

	app.initHTTPServer()

	return app, nil
}

// NewLogger builds the zap logger for cfg.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.IsDevelopment() {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = level
	return zapCfg.Build()
}

// OpenStorage connects the configured storage adapter and prepares its schema.
func OpenStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	var db storage.Storage

	switch cfg.Storage.Backend {
	case config.BackendMemory:
		logger.Info("Using in-memory storage")
		db = stubs.NewMemoryDB()

	case config.BackendBadger:
		logger.Info("Opening Badger storage", zap.String("dir", cfg.Storage.DataDir))
		badgerDB, err := kv.Open(cfg.Storage.DataDir, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open Badger: %w", err)
		}
		db = badgerDB

	case config.BackendSQLite:
		logger.Info("Opening SQLite storage", zap.String("path", cfg.Storage.SQLitePath))
		sqliteDB, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite: %w", err)
		}
		db = sqliteDB

	case config.BackendClickHouse:
		logger.Info("Connecting to ClickHouse",
			zap.String("host", cfg.ClickHouse.Host),
			zap.Int("port", cfg.ClickHouse.Port),
			zap.String("database", cfg.ClickHouse.Database),
			zap.String("user", cfg.ClickHouse.User),
			zap.Bool("tls", cfg.ClickHouse.UseTLS),
		)
		clickhouseDB, err := ch.NewClickHouseDB(
			cfg.ClickHouse.Host,
			cfg.ClickHouse.Port,
			cfg.ClickHouse.Database,
			cfg.ClickHouse.User,
			cfg.ClickHouse.Password,
			cfg.ClickHouse.UseTLS,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		db = clickhouseDB

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	if err := db.Initialize(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, nil
}

// OpenLibrary loads the library from db using cfg's circulation rules.
func OpenLibrary(ctx context.Context, cfg *config.Config, db storage.Storage, logger *zap.Logger) (*library.Library, error) {
	lib, err := library.Open(ctx, library.Options{
		Storage:    db,
		IDs:        id.UUID{},
		Logger:     logger,
		LoanPeriod: cfg.LoanPeriod(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load library: %w", err)
	}
	return lib, nil
}

// Seed runs the demo seeder with cfg's sizes.
func Seed(ctx context.Context, cfg *config.Config, lib *library.Library) (bool, error) {
	seeder := seed.New(id.UUID{})
	seeder.Students = cfg.Library.SeedStudents
	seeder.Books = cfg.Library.SeedBooks
	return seeder.Run(ctx, lib)
}

func (a *App) initDatabase(ctx context.Context) error {
	db, err := OpenStorage(ctx, a.config, a.logger)
	if err != nil {
		return err
	}
	a.logger.Info("Database initialized successfully")
	a.db = db
	return nil
}

func (a *App) initLibrary(ctx context.Context) error {
	lib, err := OpenLibrary(ctx, a.config, a.db, a.logger)
	if err != nil {
		return err
	}
	a.lib = lib

	if !a.config.Library.SeedOnStart {
		return nil
	}
	seeded, err := Seed(ctx, a.config, lib)
	if err != nil {
		return fmt.Errorf("failed to seed demo data: %w", err)
	}
	if !seeded {
		a.logger.Info("Members already present, skipping demo seed")
	}
	return nil
}

// initBot initializes the Telegram bot
func (a *App) initBot() error {
	telegramBot, err := bot.NewBot(a.config.Telegram.Token, a.lib, a.config.Telegram.AllowedUserIDs, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	a.logger.Info("Bot created successfully", zap.Int64s("allowed_users", a.config.Telegram.AllowedUserIDs))

	a.bot = telegramBot
	return nil
}

func (a *App) newGenerator() insight.Generator {
	if a.config.Gemini.APIKey == "" {
		a.logger.Info("GEMINI_API_KEY not set, serving static blurbs")
		return insight.Static{}
	}
	return insight.NewGemini(insight.GeminiConfig{
		APIKey:  a.config.Gemini.APIKey,
		Model:   a.config.Gemini.Model,
		Timeout: a.config.Gemini.Timeout,
	}, a.logger)
}

func (a *App) initHTTPServer() {
	opts := api.Options{AllowedOrigins: a.config.AllowedOrigins}
	if a.bot != nil && a.config.Telegram.WebhookMode {
		opts.Webhook = a.bot.WebhookHandler()
	}

	a.server = &http.Server{
		Addr:         ":" + a.config.Port,
		Handler:      api.NewServer(a.lib, a.newGenerator(), a.logger, opts),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Run starts the application and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("Starting HTTP server", zap.String("port", a.config.Port))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	if a.bot != nil {
		if a.config.Telegram.WebhookMode {
			a.logger.Info("Starting bot in WEBHOOK mode", zap.String("webhook_url", a.config.Telegram.WebhookURL))
			if err := a.bot.StartWebhook(a.config.Telegram.WebhookURL, api.WebhookPath); err != nil {
				return errors.Join(fmt.Errorf("failed to setup webhook: %w", err), a.Shutdown())
			}
		} else {
			go func() {
				if err := a.bot.Start(ctx); err != nil {
					a.logger.Error("Bot polling stopped", zap.Error(err))
				}
			}()
		}
	}

	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down...")
		return a.Shutdown()
	case err := <-serverErr:
		a.logger.Error("HTTP server error", zap.Error(err))
		return errors.Join(err, a.Shutdown())
	}
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	if err := a.closeDatabase(); err != nil {
		return err
	}

	a.logger.Info("Shutdown complete")
	_ = a.logger.Sync()
	return nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

func (a *App) closeDatabase() error {
	if a.db == nil {
		return nil
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("Error closing database", zap.Error(err))
		return err
	}
	return nil
}
