package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mychat/backend/internal/api/handler"
	"mychat/backend/internal/auth"
	"mychat/backend/internal/chathub"
	"mychat/backend/internal/config"
	"mychat/backend/internal/directory"
	"mychat/backend/internal/localization"
	"mychat/backend/internal/logger"
	"mychat/backend/internal/messagelog"
	"mychat/backend/internal/notify"
	"mychat/backend/internal/registry"
	"mychat/backend/internal/storage"
	"mychat/backend/internal/telegram"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Long polling holds a request open for 30s, so the bot's HTTP client needs more.
const minBotHTTPTimeout = 60 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Configuration & Logger
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel, cfg.LogFilePath, cfg.IsProduction())
	defer func() { _ = log.Sync() }()
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Storage
	store, ping, closeStore, err := openStorage(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	// 3. Presence (optional, only needed with more than one instance)
	var presence chathub.Presence
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect Redis: %w", err)
		}
		instanceID := uuid.NewString()
		presence = storage.NewPresence(rdb, instanceID, cfg.PresenceTTL)
		log.Info("Presence enabled", zap.String("redis", cfg.RedisAddr), zap.String("instance", instanceID))
	}

	// 4. Services
	users := directory.NewService(store, cfg.UserCacheTTL, log.Named("directory"))
	chats := registry.NewService(store, users, log.Named("registry"))
	messages := messagelog.NewService(store, users, log.Named("messagelog"))

	localizer, err := localization.NewLocalizer()
	if err != nil {
		return fmt.Errorf("failed to load locales: %w", err)
	}

	if cfg.SeedDemo {
		if err := seedDemo(ctx, cfg, users, chats, messages, log); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
	}

	// 5. Telegram (optional)
	var sender notify.Sender
	var bot *telegram.BotService
	if cfg.BotToken != "" {
		api, err := telegram.NewBotAPI(cfg.BotToken, tgbotapi.APIEndpoint, max(cfg.NotifyTimeout, minBotHTTPTimeout))
		if err != nil {
			return fmt.Errorf("failed to start Telegram bot: %w", err)
		}
		sender = telegram.NewSender(api, log.Named("telegram"))
		bot = telegram.NewBotService(api, users, localizer, cfg.NotifyLanguage, log.Named("telegram"))
	} else {
		log.Warn("BOT_TOKEN is not set, notifications are disabled")
	}

	dispatcher := notify.NewDispatcher(users, sender, localizer, notify.Options{
		Timeout:   cfg.NotifyTimeout,
		Workers:   cfg.NotifyWorkers,
		QueueSize: cfg.NotifyQueueSize,
		Language:  cfg.NotifyLanguage,
	}, log.Named("notify"))

	hub := chathub.NewManagerService(messages, dispatcher, presence, chathub.Options{
		StrictSender: cfg.StrictSender,
	}, log.Named("hub"))

	// 6. HTTP
	h := handler.NewHandler(users, chats, messages, hub,
		auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
		auth.NewValidator(auth.DefaultPolicy),
		cfg.BcryptCost,
		log.Named("http"))
	h.Ping = ping
	h.LinkSecret = cfg.LinkSecret

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler.NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	// 7. Run until a signal or a fatal error
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Starting HTTP server", zap.String("address", server.Addr), zap.String("storage", cfg.StorageDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := hub.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("relay listener: %w", err)
		}
		return nil
	})
	if bot != nil {
		g.Go(func() error { return bot.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		hub.Close()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	dispatcher.Wait()
	if err != nil {
		return err
	}
	log.Info("Program stopped cleanly")
	return nil
}

// openStorage returns the configured store, a health check for it and a cleanup func.
func openStorage(cfg *config.Config, log *zap.Logger) (storage.Storage, func(context.Context) error, func(), error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		log.Warn("Using in-memory storage, data is lost on restart")
		return storage.NewMemoryStore(), nil, func() {}, nil
	}

	dsn := cfg.DatabaseDSN
	if dsn == "" {
		dsn = storage.PostgresDSN(cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUser,
			cfg.DatabasePassword, cfg.DatabaseName, cfg.DatabaseSSLMode)
	}
	db, err := storage.NewGormDB(dsn, log)
	if err != nil {
		return nil, nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, nil, err
	}
	if err := storage.Migrate(db); err != nil {
		_ = sqlDB.Close()
		return nil, nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("Database connection established, migrations complete")

	closeDB := func() {
		log.Info("Closing database...")
		_ = sqlDB.Close()
	}
	return storage.NewStorageService(db), sqlDB.PingContext, closeDB, nil
}
