// main wires the attendance core: stores, services, handlers, and the server
// lifecycle. Business logic lives in the internal packages.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	analyticscache "timeclock/internal/analytics/cache"
	analyticshandler "timeclock/internal/analytics/handler"
	analyticsmetrics "timeclock/internal/analytics/metrics"
	analyticsservice "timeclock/internal/analytics/service"
	attendancehandler "timeclock/internal/attendance/handler"
	attendancemetrics "timeclock/internal/attendance/metrics"
	attendanceservice "timeclock/internal/attendance/service"
	eventstore "timeclock/internal/attendance/store/event"
	"timeclock/internal/directory"
	"timeclock/internal/jwttoken"
	kioskhandler "timeclock/internal/kiosk/handler"
	kioskservice "timeclock/internal/kiosk/service"
	kioskstore "timeclock/internal/kiosk/store"
	"timeclock/internal/platform/config"
	"timeclock/internal/platform/httpserver"
	"timeclock/internal/platform/logger"
	platformredis "timeclock/internal/platform/redis"
	summaryhandler "timeclock/internal/summary/handler"
	summarymetrics "timeclock/internal/summary/metrics"
	summaryservice "timeclock/internal/summary/service"
	summarystore "timeclock/internal/summary/store"
	"timeclock/internal/workhours"
	"timeclock/pkg/audit"
	auditkafka "timeclock/pkg/audit/kafka"
	auditmemory "timeclock/pkg/audit/memory"
	auditpublisher "timeclock/pkg/audit/publisher"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	// Stores: Postgres when configured, in-memory for development.
	var (
		events    eventstore.Store
		summaries summarystore.Store
		kiosks    kioskstore.Store
		pool      *pgxpool.Pool
	)
	if cfg.PostgresURL != "" {
		var err error
		pool, err = pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			log.Error("postgres connect failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		events = eventstore.NewPostgres(pool)
		summaries = summarystore.NewPostgres(pool)
		kiosks = kioskstore.NewPostgres(pool)
		log.Info("using postgres stores")
	} else {
		events = eventstore.NewInMemory()
		summaries = summarystore.NewInMemory()
		kiosks = kioskstore.NewInMemory()
		log.Warn("no postgres configured, using in-memory stores")
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connect failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Audit trail: Kafka when brokers are configured, in-process otherwise.
	var auditSink audit.Store
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := auditkafka.NewSink(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		if err != nil {
			log.Error("kafka connect failed", "error", err)
			os.Exit(1)
		}
		defer sink.Close()
		auditSink = sink
	} else {
		auditSink = auditmemory.NewInMemoryStore()
	}
	publisher := auditpublisher.NewPublisher(auditSink,
		auditpublisher.WithAsyncBuffer(256),
		auditpublisher.WithLogger(log),
	)
	defer publisher.Close()

	hours := workhours.NewResolver(nil, nil)
	subjects := directory.NewInMemory()

	kioskSvc, err := kioskservice.New(kiosks, kioskservice.WithLogger(log))
	if err != nil {
		log.Error("kiosk service init failed", "error", err)
		os.Exit(1)
	}

	summarySvc, err := summaryservice.New(events, summaries, hours,
		summaryservice.WithLogger(log),
		summaryservice.WithMetrics(summarymetrics.New()),
		summaryservice.WithAuditPublisher(publisher),
	)
	if err != nil {
		log.Error("summary service init failed", "error", err)
		os.Exit(1)
	}

	attendanceSvc, err := attendanceservice.New(events, kioskSvc, hours,
		attendanceservice.WithLogger(log),
		attendanceservice.WithMetrics(attendancemetrics.New()),
		attendanceservice.WithAuditPublisher(publisher),
		attendanceservice.WithSummaryInvalidator(summarySvc),
		attendanceservice.WithSelfCheckEnabled(cfg.SelfCheckEnabled),
	)
	if err != nil {
		log.Error("attendance service init failed", "error", err)
		os.Exit(1)
	}

	analyticsOpts := []analyticsservice.Option{
		analyticsservice.WithLogger(log),
		analyticsservice.WithMetrics(analyticsmetrics.New()),
	}
	if redisClient != nil {
		analyticsOpts = append(analyticsOpts, analyticsservice.WithCache(analyticscache.NewRedis(redisClient.Client)))
	}
	analyticsSvc, err := analyticsservice.New(events, subjects, analyticsOpts...)
	if err != nil {
		log.Error("analytics service init failed", "error", err)
		os.Exit(1)
	}

	validator := jwttoken.NewValidator(cfg.JWTSigningKey)

	router := chi.NewRouter()
	attendancehandler.New(attendanceSvc, kioskSvc, log, validator).Register(router)
	kioskhandler.New(kioskSvc, log).Register(router)
	summaryhandler.New(summarySvc, log, validator).Register(router)
	analyticshandler.New(analyticsSvc, log, validator).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if pool != nil {
			if err := pool.Ping(r.Context()); err != nil {
				http.Error(w, "postgres unreachable", http.StatusServiceUnavailable)
				return
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				http.Error(w, "redis unreachable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting timeclock", "addr", cfg.Addr, "self_check", cfg.SelfCheckEnabled)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("stopped")
}
