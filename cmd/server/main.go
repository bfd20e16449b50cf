package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"reservio/internal/api"
	"reservio/internal/audit"
	"reservio/internal/catalog"
	"reservio/internal/config"
	"reservio/internal/events"
	"reservio/internal/holds"
	"reservio/internal/ledger"
	"reservio/internal/metrics"
	"reservio/internal/models"
	"reservio/internal/ratelimit"
	"reservio/internal/service"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("RESERVIO_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load catalog")
	}
	logger.Info().Str("catalog", cat.String()).Msg("catalog loaded")

	bookings, err := ledger.NewSQLiteLedger(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open booking ledger error")
	}
	defer bookings.Close()

	var rdb *redis.Client
	var limiter ratelimit.Limiter
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		limiter = ratelimit.NewRedisLimiter(rdb, cfg.RateLimit.RequestsPerWindow, cfg.RateLimitWindow(), &logger)
	} else {
		limiter = ratelimit.NewLocalLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimitWindow())
	}

	bus := events.NewBus()
	store := holds.NewStore(holds.Config{
		DefaultTTL:    cfg.HoldTTL(),
		SweepInterval: cfg.SweepInterval(),
		SweepBatch:    cfg.Holds.SweepBatch,
		OnExpired: func(h models.Hold) {
			metrics.AddHoldsSwept(1)
			bus.Publish(events.Event{Type: events.TypeHoldExpired, SlotID: h.SlotID, ClientID: h.ClientID})
		},
	}, time.Now, &logger)

	trail := audit.NewTrail(cfg.Audit.TrailSize, time.Now)

	opts := service.DefaultOptions()
	opts.Weights = cfg.Scoring
	if cfg.Search.MaxWindowDays > 0 {
		opts.MaxWindowDays = cfg.Search.MaxWindowDays
	}
	if cfg.Search.TopN > 0 {
		opts.TopN = cfg.Search.TopN
	}
	engine := service.NewEngine(cat, store, bookings, bus, trail, opts, &logger)

	bus.Subscribe(events.TypeBookingConfirmed, func(e events.Event) error {
		logger.Info().Str("booking_id", e.BookingID).Str("client_id", e.ClientID).Msg("booking confirmed")
		return nil
	})
	bus.Subscribe(events.TypeHoldExpired, func(e events.Event) error {
		logger.Debug().Str("slot_id", e.SlotID).Msg("hold expired")
		return nil
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go store.Start(ctx)
	defer store.Stop()

	backup := ledger.NewBackupService(cfg.Database.Path, ledger.BackupConfig{
		Enabled:       cfg.Backup.Enabled,
		StoragePath:   cfg.Backup.Path,
		Interval:      cfg.BackupInterval(),
		RetentionDays: cfg.Backup.RetentionDays,
	}, &logger)
	go backup.Start(ctx)

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, bookings, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	srv := api.NewHTTPServer(api.Config{
		Host:    cfg.Server.Host,
		Port:    cfg.Server.Port,
		APIKeys: cfg.Server.APIKeys,
	}, engine, limiter, &logger)

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error().Err(err).Msg("api server shutdown error")
		}
	}()

	logger.Info().Msg("reservio started")
	if err := srv.Start(); err != nil {
		logger.Fatal().Err(err).Msg("api server error")
	}
	logger.Info().Msg("reservio stopped")
}

func startHealthServer(ctx context.Context, port int, bookings *ledger.SQLiteLedger, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := bookings.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
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
