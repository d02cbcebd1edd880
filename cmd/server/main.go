// Command server runs the tenure-records import service: staging intake,
// validation, duplicate detection, conflict review, and commit, behind one
// HTTP API. Wiring lives here; business logic stays in internal packages.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/audit"
	auditkafka "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/audit/kafka"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/authoritative"
	authcache "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/authoritative/cache"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/commit"
	conflicthandler "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/conflicts/handler"
	conflictmetrics "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/conflicts/metrics"
	conflictservice "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/conflicts/service"
	conflictstore "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/conflicts/store"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/matching"
	pkgservice "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/packages/service"
	pkgstore "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/packages/store"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/pipeline"
	pipelinehandler "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/pipeline/handler"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/platform/config"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/platform/httpserver"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/platform/logger"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/platform/metrics"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/platform/middleware"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/platform/postgres"
	platformredis "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/platform/redis"
	stagingstore "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/staging/store"
	httptransport "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/transport/http"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/validation"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/vocabulary"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Error("postgres init failed", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
	}

	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	auditPublisher, err := auditkafka.New(cfg.KafkaBrokers, cfg.KafkaAuditTopic, log)
	if err != nil {
		log.Error("kafka init failed", "error", err)
		os.Exit(1)
	}
	defer auditPublisher.Close()
	// A nil concrete publisher must stay a nil interface for audit.Log.
	var auditSink audit.Publisher
	if auditPublisher != nil {
		auditSink = auditPublisher
	}

	// One store family per deployment: postgres when configured, the
	// in-memory set otherwise.
	var (
		staging   stagingstore.Store
		packages  pkgstore.Store
		conflicts conflictstore.Store
		authStore authoritative.Store
	)
	if pool != nil {
		staging = stagingstore.NewPostgres(pool)
		packages = pkgstore.NewPostgres(pool)
		conflicts = conflictstore.NewPostgres(pool)
		authStore = authoritative.NewPostgres(pool)
	} else {
		staging = stagingstore.NewInMemory()
		packages = pkgstore.NewInMemory()
		conflicts = conflictstore.NewInMemory()
		authStore = authoritative.NewInMemory()
	}

	var personDirectory authoritative.PersonDirectory = authStore
	if redisClient != nil {
		personDirectory = authcache.New(authStore, redisClient.Client, cfg.PrefixCacheTTL, log)
	}

	vocab := vocabulary.Provider(vocabulary.Static{Version: vocabulary.DefaultVersion})
	if cfg.CodeListFile != "" {
		vocab, err = vocabulary.FromFile(cfg.CodeListFile)
		if err != nil {
			log.Error("code-list file load failed", "file", cfg.CodeListFile, "error", err)
			os.Exit(1)
		}
	}

	packageService := pkgservice.New(packages, pkgservice.WithLogger(log), pkgservice.WithAudit(auditSink))
	validationPipeline := validation.New(vocab, validation.WithLogger(log))
	personMatcher := matching.NewPersonMatcher(personDirectory,
		matching.WithThresholds(cfg.MatchThreshold, cfg.HighConfidenceThreshold),
		matching.WithPersonLogger(log),
	)
	propertyMatcher := matching.NewPropertyMatcher(authStore, matching.WithPropertyLogger(log))

	conflictService := conflictservice.New(conflicts, staging, authStore, packageService,
		conflictservice.WithLogger(log),
		conflictservice.WithAudit(auditSink),
		conflictservice.WithMetrics(conflictmetrics.New(prometheus.DefaultRegisterer)),
		conflictservice.WithSLA(cfg.ConflictSLA),
	)
	commitService := commit.New(staging, authStore, packageService, conflicts,
		commit.WithLogger(log), commit.WithAudit(auditSink))

	importPipeline := pipeline.New(packageService, staging, validationPipeline,
		personMatcher, propertyMatcher, conflictService, commitService,
		pipeline.WithLogger(log), pipeline.WithAudit(auditSink))

	router := httptransport.NewRouter(httptransport.Config{
		Logger:         log,
		Metrics:        metrics.New(),
		TokenValidator: middleware.NewHMACValidator(cfg.JWTSigningKey),
		RequestTimeout: 30 * time.Second,
	},
		pipelinehandler.New(importPipeline, packageService, log),
		conflicthandler.New(conflictService, log),
	)

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting import service", "addr", cfg.Addr, "postgres", pool != nil, "redis", redisClient != nil)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
