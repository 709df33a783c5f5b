package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"salon/internal/api"
	"salon/internal/config"
	"salon/internal/database"
	"salon/internal/domain"
	"salon/internal/events"
	"salon/internal/export"
	"salon/internal/google"
	"salon/internal/logging"
	"salon/internal/metrics"
	"salon/internal/repository"
	"salon/internal/service"
	"salon/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, baseLogger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}
	logger := logging.Component(baseLogger, "api-main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(cfg.Database.Path, logging.Component(baseLogger, "database"))
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	if err := seedCatalog(ctx, cfg, db, logger); err != nil {
		return err
	}

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer (func() { _ = repository.Close(redisClient) })()
	}
	cache := initCache(redisClient, logging.Component(baseLogger, "cache"))

	var syncWorker domain.SyncWorker
	if sheets := initGoogleSheets(ctx, cfg, logger); sheets != nil {
		retryPolicy := worker.RetryPolicy{MaxRetries: 5, InitialDelay: 2 * time.Second, MaxDelay: time.Minute, BackoffFactor: 2}
		sheetsWorker := worker.NewSheetsWorker(db, sheets, redisClient, retryPolicy, logging.Component(baseLogger, "sheets-worker"))
		go sheetsWorker.Start(ctx)
		syncWorker = sheetsWorker
	}

	eventBus := events.NewEventBus(logging.Component(baseLogger, "events"))
	eventBus.Subscribe(events.EventCatalogChanged, events.CatalogAudit(logging.Component(baseLogger, "audit")))
	startNotifications(ctx, cfg, eventBus, db, logging.Component(baseLogger, "notifications"))

	serviceLogger := logging.Component(baseLogger, "service")
	catalog := service.NewCatalogService(db, cache, time.Duration(cfg.Catalog.CacheTTL)*time.Second, cfg.Media.URLPrefix, serviceLogger)
	bookings := service.NewBookingService(db, cache, eventBus, syncWorker, cfg.Booking, serviceLogger)
	admin := service.NewAdminService(db, catalog, eventBus, syncWorker,
		export.NewExporter(cfg.Exports.Path, serviceLogger), cfg.Media.Path, cfg.Media.MaxUpload, serviceLogger)

	httpServer := api.NewHTTPServer(cfg.API, cfg.Media, api.Dependencies{
		Catalog:  catalog,
		Bookings: bookings,
		Admin:    admin,
		Health:   db.PingContext,
	}, logging.Component(baseLogger, "http"))

	startMetrics(ctx, cfg, logger)

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, logging.Component(baseLogger, "backup"))
		go func() {
			if err := backupService.Start(ctx); err != nil {
				logger.Error().Err(err).Msg("backup service stopped")
			}
		}()
	}

	return serve(ctx, httpServer, cfg, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, closer, nil
}

// seedCatalog applies the catalog file when it exists.
func seedCatalog(ctx context.Context, cfg *config.Config, db *database.DB, logger *zerolog.Logger) error {
	catalogPath := os.Getenv("CATALOG_PATH")
	if catalogPath == "" {
		catalogPath = cfg.Catalog.SeedPath
	}
	if catalogPath == "" {
		catalogPath = "configs/catalog.yaml"
	}

	seed, err := service.LoadCatalogSeed(catalogPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info().Str("catalog_path", catalogPath).Msg("catalog seed not found, skipping")
			return nil
		}
		logger.Error().Err(err).Str("catalog_path", catalogPath).Msg("read catalog seed")
		return err
	}
	return service.ApplyCatalogSeed(ctx, db, seed, logger)
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		// the failover cache keeps serving from memory until redis comes back
		logger.Warn().Err(err).Msg("redis unavailable at startup")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}
	return client
}

func initCache(client *redis.Client, logger *zerolog.Logger) domain.CacheStore {
	memory := repository.NewMemoryCacheRepository()
	if client == nil {
		return memory
	}
	return repository.NewFailoverCacheRepository(repository.NewRedisCacheRepository(client), memory, logger)
}

func initGoogleSheets(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *google.SheetsService {
	if cfg.Google.GoogleCredentialsFile == "" || cfg.Google.BookingSpreadSheetID == "" {
		return nil
	}

	sheets, err := google.NewSheetsService(ctx, cfg.Google.GoogleCredentialsFile, cfg.Google.BookingSpreadSheetID, cfg.Google.BookingSheetName)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	if err := sheets.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets connection test failed, continuing without sheets")
		return nil
	}
	if err := sheets.WarmUpCache(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets cache warm-up failed")
	}

	logger.Info().Msg("google sheets connected")
	return sheets
}

func startNotifications(ctx context.Context, cfg *config.Config, bus *events.EventBus, db *database.DB, logger *zerolog.Logger) {
	if cfg.Telegram.BotToken == "" || len(cfg.Managers) == 0 {
		logger.Info().Msg("telegram notifications disabled")
		return
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram bot init failed, continuing without notifications")
		return
	}
	botAPI.Debug = cfg.Telegram.Debug
	logger.Info().Str("bot", botAPI.Self.UserName).Msg("telegram bot authorized")

	notifications := service.NewNotificationService(botAPI, cfg.Managers, logger)
	notifications.Subscribe(bus)
	go notifications.Start(ctx)
	go func() {
		if err := notifications.StartDigest(ctx, db, cfg.Telegram.DigestSchedule); err != nil {
			logger.Error().Err(err).Msg("daily digest stopped")
		}
	}()
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	metrics.Register()
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func serve(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	logger.Info().Int("port", port).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
