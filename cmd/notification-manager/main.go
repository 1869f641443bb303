// cmd/notification-manager/main.go
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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"notification-workers/internal/api"
	"notification-workers/internal/common/aws"
	"notification-workers/internal/common/camunda"
	"notification-workers/internal/common/config"
	"notification-workers/internal/common/database"
	commonhttp "notification-workers/internal/common/http"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/common/observability"
	"notification-workers/internal/email"
	"notification-workers/internal/feed"
	"notification-workers/internal/identity"
	"notification-workers/internal/live"
	"notification-workers/internal/notification"
	"notification-workers/internal/store"
	"notification-workers/internal/triggers"

	dispatchevent "notification-workers/internal/workers/notification/dispatch-event"
	sendnotification "notification-workers/internal/workers/notification/send-notification"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync() //nolint:errcheck

	log := logger.NewZapAdapter(zapLog)
	zapLog.Info("Starting notification manager...", zap.String("environment", cfg.App.Environment))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}

	// --- Zeebe ---
	zeebe, err := camunda.NewClientWithConfig(ctx, &camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
	})
	if err != nil {
		zapLog.Fatal("zeebe client failed", zap.Error(err))
	}
	defer zeebe.Close() //nolint:errcheck
	zapLog.Info("Zeebe client connected successfully")

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres, cfg.App.Name)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close() //nolint:errcheck
	zapLog.Info("PostgreSQL connected successfully")

	if cfg.Database.Postgres.AutoMigrate {
		if err := store.Migrate(ctx, pg.DB, log); err != nil {
			zapLog.Fatal("migrations failed", zap.Error(err))
		}
	}

	// --- Redis (change feed) ---
	rdb := database.NewRedis(cfg.Database.Redis, cfg.App.Name+"-feed")
	err = retryWithBackoff(func() error {
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close() //nolint:errcheck
	zapLog.Info("Redis connected successfully")

	publisher := feed.NewPublisher(rdb.Client, log, "user_id")
	subscriber := feed.NewSubscriber(rdb.Client, log)

	// --- Stores and service ---
	notifications := store.NewNotifications(pg.DB, publisher, log)
	prefs := store.NewPreferences(pg.DB, publisher, log)
	templates := store.NewTemplates(pg.DB, 5*time.Minute)
	users := store.NewUsers(pg.DB)

	opts := []notification.Option{notification.WithBulkConcurrency(cfg.Notifications.Bulk.MaxConcurrency)}
	if cfg.Notifications.Email.Enabled {
		transport, err := emailTransport(ctx, cfg.Notifications)
		if err != nil {
			zapLog.Fatal("email transport init failed", zap.Error(err))
		}
		opts = append(opts, notification.WithEmail(
			email.NewDispatcher(transport, cfg.Notifications.Email.UnsubscribeBaseURL, log)))
	}
	service := notification.NewService(templates, notifications, prefs, users, log, opts...)
	trig := triggers.New(service, users, log)

	// --- Workers ---
	sendHandler, err := sendnotification.NewHandler(
		sendnotification.LoadConfig(config.GetWorkerConfig(cfg, sendnotification.TaskType)), service, obs, log)
	if err != nil {
		zapLog.Fatal("send-notification handler init failed", zap.Error(err))
	}
	dispatchHandler, err := dispatchevent.NewHandler(
		dispatchevent.LoadConfig(config.GetWorkerConfig(cfg, dispatchevent.TaskType)), trig, obs, log)
	if err != nil {
		zapLog.Fatal("dispatch-event handler init failed", zap.Error(err))
	}

	workers := camunda.StartWorkers(zeebe.GetClient(), []camunda.Registration{
		{TaskType: sendnotification.TaskType, Config: config.GetWorkerConfig(cfg, sendnotification.TaskType), Handler: sendHandler.Handle},
		{TaskType: dispatchevent.TaskType, Config: config.GetWorkerConfig(cfg, dispatchevent.TaskType), Handler: dispatchHandler.Handle},
	}, log)
	defer camunda.StopWorkers(workers)

	// --- HTTP API ---
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	provider := identity.NewKeycloakProvider(cfg.Auth.Keycloak, commonhttp.NewClient(10*time.Second))
	newLive := func() *live.Store {
		return live.NewStore(service, subscriber, log, cfg.Notifications.Live.PageSize)
	}
	apiServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           api.NewServer(service, provider, newLive, log, api.WithInternalRole(cfg.Auth.InternalRole)).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// --- Health & Metrics ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := pg.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"not ready"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	for _, srv := range []*http.Server{apiServer, metricsServer} {
		go func(srv *http.Server) {
			zapLog.Info("HTTP server listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zapLog.Error("HTTP server failed", zap.String("addr", srv.Addr), zap.Error(err))
				stop()
			}
		}(srv)
	}

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, srv := range []*http.Server{apiServer, metricsServer} {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zapLog.Error("HTTP server shutdown failed", zap.String("addr", srv.Addr), zap.Error(err))
		}
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("observability shutdown failed", zap.Error(err))
	}

	zapLog.Info("Notification manager stopped")
}

func emailTransport(ctx context.Context, cfg config.NotificationConfig) (email.Transport, error) {
	switch cfg.Email.Provider {
	case "ses":
		ses, err := aws.NewSESClient(ctx, cfg.AWS.Region, cfg.Email.FromEmail)
		if err != nil {
			return nil, err
		}
		return email.NewSESTransport(ses), nil
	case "http":
		client := commonhttp.NewClient(config.GetDuration(cfg.Email.Timeout))
		return email.NewHTTPTransport(client, cfg.Email.Endpoint, cfg.Email.APIKey), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Email.Provider)
	}
}
