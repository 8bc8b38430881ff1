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

	"slotbook/internal/api"
	"slotbook/internal/config"
	"slotbook/internal/database"
	"slotbook/internal/domain"
	"slotbook/internal/events"
	"slotbook/internal/google"
	"slotbook/internal/logging"
	"slotbook/internal/metrics"
	"slotbook/internal/models"
	"slotbook/internal/notify"
	"slotbook/internal/repository"
	"slotbook/internal/service"
	"slotbook/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

// closers are released in reverse order on shutdown.
type closers []func()

func (c *closers) add(fn func()) { *c = append(*c, fn) }

func (c closers) closeAll() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	if err := loadCatalog(cfg, &logger); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cleanup closers
	defer cleanup.closeAll()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		cleanup.add(func() { _ = redisClient.Close() })
	}

	store, err := initStore(ctx, cfg, redisClient, &cleanup, &logger)
	if err != nil {
		return err
	}

	labels, err := cfg.Booking.Labels()
	if err != nil {
		return err
	}
	catalog, err := models.NewCatalog(labels)
	if err != nil {
		return err
	}

	bus := events.NewEventBus()
	bus.OnError(func(event *events.Event, err error) {
		logger.Error().Err(err).Str("event_type", event.Type).Int64("event_id", event.ID).Msg("event handler failed")
	})

	notifier := notify.Multi(
		notify.NewLogNotifier(logging.Component(&logger, "notify")),
		notify.ContextNotifier{},
	)

	manager := service.NewManager(
		store,
		initSelections(cfg, redisClient, &logger),
		notifier,
		bus,
		service.Options{MaxCustomersPerSlot: cfg.Booking.MaxCustomersPerSlot, Catalog: catalog},
		logging.Component(&logger, "manager"),
	)

	if err := manager.LoadIndex(ctx); err != nil {
		// the widget stays usable against an empty index
		logger.Warn().Err(err).Msg("starting with an empty booking index")
	}

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		metrics.RegisterIndexGauge(manager.Stats)
		metrics.Subscribe(bus)
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if tg := initTelegram(cfg, &logger); tg != nil {
		tg.Subscribe(bus)
		cleanup.add(tg.Wait)
	}

	if w := initSheetsWorker(ctx, cfg, manager, &logger); w != nil {
		w.Subscribe(bus)
		go w.Start(ctx)
	}

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}
	httpServer := api.NewHTTPServer(cfg.API, manager, logging.Component(&logger, "http"))

	return startServer(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

// loadCatalog overrides booking.time_slots from CATALOG_PATH when it is set.
func loadCatalog(cfg *config.Config, logger *zerolog.Logger) error {
	catalogPath := os.Getenv("CATALOG_PATH")
	if catalogPath == "" {
		return nil
	}
	data, err := os.ReadFile(catalogPath)
	if err != nil {
		logger.Error().Err(err).Str("catalog_path", catalogPath).Msg("read catalog")
		return err
	}

	var catalogConfig struct {
		TimeSlots []string `yaml:"time_slots"`
	}
	if err := yaml.Unmarshal(data, &catalogConfig); err != nil {
		logger.Error().Err(err).Str("catalog_path", catalogPath).Msg("parse catalog")
		return err
	}
	if _, err := models.NewCatalog(catalogConfig.TimeSlots); err != nil {
		return fmt.Errorf("catalog %s: %w", catalogPath, err)
	}

	cfg.Booking.TimeSlots = catalogConfig.TimeSlots
	logger.Info().Int("slots", len(catalogConfig.TimeSlots)).Str("catalog_path", catalogPath).Msg("catalog loaded")
	return nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing with failover")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}
	return redisClient
}

func initStore(
	ctx context.Context,
	cfg *config.Config,
	redisClient *redis.Client,
	cleanup *closers,
	logger *zerolog.Logger,
) (domain.BookingStore, error) {
	primary, err := openStore(ctx, cfg, cfg.Store.Backend, redisClient, cleanup, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	logger.Info().Str("backend", cfg.Store.Backend).Msg("booking store opened")

	store := primary
	if cfg.Store.Fallback != "" {
		fallback, err := openStore(ctx, cfg, cfg.Store.Fallback, redisClient, cleanup, logger)
		if err != nil {
			return nil, fmt.Errorf("open %s fallback store: %w", cfg.Store.Fallback, err)
		}
		store = repository.NewFailoverBookingStore(primary, fallback, logging.Component(logger, "store"))
		logger.Info().Str("fallback", cfg.Store.Fallback).Msg("booking store failover enabled")
	}

	return metrics.InstrumentStore(store), nil
}

func openStore(
	ctx context.Context,
	cfg *config.Config,
	backend string,
	redisClient *redis.Client,
	cleanup *closers,
	logger *zerolog.Logger,
) (domain.BookingStore, error) {
	switch backend {
	case config.BackendSQLite:
		db, err := database.NewDB(cfg.Database.Path, logging.Component(logger, "database"))
		if err != nil {
			return nil, err
		}
		cleanup.add(func() { _ = db.Close() })

		backup := database.NewBackupService(db, cfg.Backup, logging.Component(logger, "backup"))
		go backup.Start(ctx)
		return db, nil

	case config.BackendRedis:
		if redisClient == nil {
			return nil, errors.New("redis address is not configured")
		}
		return repository.NewRedisBookingStore(redisClient), nil

	case config.BackendMongo:
		client, err := repository.NewMongoClient(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		cleanup.add(func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(shutdownCtx)
		})
		store := repository.NewMongoBookingStore(client, cfg.Mongo)
		if err := store.EnsureIndexes(ctx); err != nil {
			logger.Warn().Err(err).Msg("ensure mongo indexes")
		}
		return store, nil

	case config.BackendFirestore:
		client, err := repository.NewFirestoreClient(ctx, cfg.Firestore)
		if err != nil {
			return nil, err
		}
		cleanup.add(func() { _ = client.Close() })
		return repository.NewFirestoreBookingStore(client, cfg.Firestore.Collection), nil

	case config.BackendFile:
		return repository.NewFileBookingStore(cfg.Local.Path)

	case config.BackendMemory:
		return repository.NewMemoryBookingStore(), nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

func initSelections(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.SelectionRepository {
	memory := repository.NewMemorySelectionRepository(cfg.Booking.SelectionTTL)
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverSelectionRepository(
		repository.NewRedisSelectionRepository(redisClient, cfg.Booking.SelectionTTL),
		memory,
		logging.Component(logger, "selections"),
	)
}

func initTelegram(cfg *config.Config, logger *zerolog.Logger) *notify.TelegramNotifier {
	if cfg.Telegram.BotToken == "" || len(cfg.Telegram.ManagerChatIDs) == 0 {
		return nil
	}

	bot, err := notify.NewTelegramBot(cfg.Telegram)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without manager notifications")
		return nil
	}

	logger.Info().Str("bot", bot.Self.UserName).Msg("telegram connected")
	return notify.NewTelegramNotifier(bot, cfg.Telegram.ManagerChatIDs, logging.Component(logger, "telegram"))
}

func initSheetsWorker(
	ctx context.Context,
	cfg *config.Config,
	manager *service.Manager,
	logger *zerolog.Logger,
) *worker.SyncWorker {
	if cfg.Google.CredentialsFile == "" || cfg.Google.BookingsSpreadsheetID == "" {
		return nil
	}

	writer, err := google.NewSheetsWriter(ctx, cfg.Google.CredentialsFile, cfg.Google.BookingsSpreadsheetID)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	if err := writer.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets unreachable, sync will retry")
	} else {
		logger.Info().Msg("google sheets connected")
	}

	return worker.NewSyncWorker(writer, manager.ListBookings, worker.RetryPolicy{}, 0, logging.Component(logger, "sheets-sync"))
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		logger.Error().Err(err).Msg("http server stopped")
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

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
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
