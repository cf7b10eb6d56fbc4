package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"medkiosk/internal/analytics"
	checkinhandler "medkiosk/internal/checkin/handler"
	checkinmetrics "medkiosk/internal/checkin/metrics"
	checkinservice "medkiosk/internal/checkin/service"
	"medkiosk/internal/clinic"
	"medkiosk/internal/clinic/backend"
	"medkiosk/internal/devicetoken"
	identifyconfig "medkiosk/internal/identify/config"
	identifyservice "medkiosk/internal/identify/service"
	"medkiosk/internal/offline/cache"
	offlineconfig "medkiosk/internal/offline/config"
	offlinemetrics "medkiosk/internal/offline/metrics"
	offlineports "medkiosk/internal/offline/ports"
	offlineservice "medkiosk/internal/offline/service"
	offlinememory "medkiosk/internal/offline/store/memory"
	"medkiosk/internal/offline/store/redisstore"
	"medkiosk/internal/platform/config"
	"medkiosk/internal/platform/httpserver"
	"medkiosk/internal/platform/logger"
	"medkiosk/internal/platform/middleware"
	platformredis "medkiosk/internal/platform/redis"
	queueconfig "medkiosk/internal/queue/config"
	queuemetrics "medkiosk/internal/queue/metrics"
	queueservice "medkiosk/internal/queue/service"
	"medkiosk/internal/records"
	screeningconfig "medkiosk/internal/screening/config"
	screeningservice "medkiosk/internal/screening/service"
)

// main wires the admission core together and owns the process lifecycle.
// Business logic lives in the internal service packages; everything here is
// construction, routing, and shutdown.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backendClient, err := backend.New(cfg.Clinic.BaseURL, backend.WithLogger(log))
	if err != nil {
		fatal(log, "invalid clinic backend configuration", err)
	}

	offlineCfg := offlineconfig.DefaultConfig()

	// Redis gives the offline queue durability across kiosk restarts. When
	// it is not configured or unreachable the kiosk still runs, with the
	// queue held in memory.
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, offline queue will not survive restarts", "error", err)
		redisClient = nil
	}

	var itemStore offlineports.ItemStore
	var snapshotCache offlineports.SnapshotCache
	if redisClient != nil {
		itemStore = redisstore.New(redisClient.Client)
		snapshotCache = cache.NewRedis(redisClient.Client, offlineCfg.SnapshotTTL)
		defer redisClient.Close()
	} else {
		itemStore = offlinememory.New()
		snapshotCache = cache.NewMemory(offlineCfg.SnapshotTTL)
	}

	var recordStore records.Store
	var db *sql.DB
	if cfg.Postgres.DSN != "" {
		db, err = sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			fatal(log, "failed to open postgres", err)
		}
		defer db.Close()

		pg := records.NewPostgres(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			fatal(log, "failed to ensure records schema", err)
		}
		recordStore = pg
	} else {
		log.Warn("postgres not configured, check-in records held in memory")
		recordStore = records.NewMemory()
	}

	publisher, err := analytics.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
	if err != nil {
		fatal(log, "failed to build analytics publisher", err)
	}
	defer publisher.Close()

	gate := screeningservice.New(screeningconfig.DefaultConfig(), screeningservice.WithLogger(log))

	// No biometric hardware adapter is wired yet; identification degrades
	// to attribute search against the backend directory.
	identifier, err := identifyservice.New(identifyservice.NopMatcher{}, backendClient,
		identifyconfig.DefaultConfig(), identifyservice.WithLogger(log))
	if err != nil {
		fatal(log, "failed to build identifier", err)
	}

	queueManager := queueservice.New(queueconfig.DefaultConfig(),
		queueservice.WithLogger(log),
		queueservice.WithNotifier(backendClient),
		queueservice.WithMetrics(queuemetrics.New()),
	)

	offlineLayer, err := offlineservice.New(offlineCfg, itemStore, snapshotCache, gate, backendClient,
		offlineservice.WithLogger(log),
		offlineservice.WithFailureRecorder(recordStore),
		offlineservice.WithPublisher(publisher),
		offlineservice.WithMetrics(offlinemetrics.New()),
	)
	if err != nil {
		fatal(log, "failed to build offline layer", err)
	}

	engine, err := checkinservice.New(checkinservice.Dependencies{
		Identifier:   identifier,
		Gate:         gate,
		Queue:        queueManager,
		Offline:      offlineLayer,
		Appointments: backendClient,
		Patients:     backendClient,
		Probe:        backendClient,
		Store:        recordStore,
	},
		checkinservice.WithLogger(log),
		checkinservice.WithNotifier(backendClient),
		checkinservice.WithPrinter(clinic.NewLogPrinter(log)),
		checkinservice.WithPublisher(publisher),
		checkinservice.WithMetrics(checkinmetrics.New()),
	)
	if err != nil {
		fatal(log, "failed to build check-in engine", err)
	}

	tokenService := devicetoken.NewService(cfg.JWTSigningKey, "medkiosk", "medkiosk-devices")
	enrollHandler := devicetoken.NewHandler(tokenService, cfg.EnrollmentSecretHash, log)
	kioskHandler := checkinhandler.New(engine, offlineLayer, log)

	router := chi.NewRouter()
	router.Use(
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.RequestTime,
		middleware.Logger(log),
		middleware.Timeout(30*time.Second),
	)
	router.Get("/healthz", healthz(backendClient, redisClient, db))
	router.Handle("/metrics", promhttp.Handler())
	enrollHandler.Register(router)
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireDevice(tokenService, log))
		kioskHandler.Register(r)
	})

	go offlineLayer.RunSync(ctx)

	refresher := offlineservice.NewRefresher(backendClient, snapshotCache, backendClient,
		cfg.Clinic.SnapshotRefreshInterval, log)
	go refresher.Run(ctx)

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("starting medkiosk", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(log, "server error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fatal(log, "graceful shutdown failed", err)
	}
}

// healthz reports the state of each infrastructure dependency. The kiosk is
// healthy even when the backend is unreachable; offline operation is a
// supported mode, not an outage.
func healthz(probe clinic.ConnectivityProbe, redisClient *platformredis.Client, db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		status := map[string]any{
			"status": "ok",
			"clinic": probe.Online(ctx),
		}
		if redisClient != nil {
			status["redis"] = redisClient.Health(ctx) == nil
		}
		if db != nil {
			status["postgres"] = db.PingContext(ctx) == nil
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(status)
	}
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
