// Command emsd runs the endorsement pipeline's bus-driven worker process:
// one consumer goroutine per topic, the scheduler's tumbling-window
// sweeper, and a /metrics endpoint for Prometheus scraping. It has no
// HTTP request surface of its own — ingestion, employer/employee/coverage
// CRUD, and JWT auth are external collaborators per spec.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/pmundhra/plum-ems/internal/audit"
	"github.com/pmundhra/plum-ems/internal/bus"
	"github.com/pmundhra/plum-ems/internal/config"
	"github.com/pmundhra/plum-ems/internal/domain"
	"github.com/pmundhra/plum-ems/internal/gateway"
	"github.com/pmundhra/plum-ems/internal/holdrelease"
	"github.com/pmundhra/plum-ems/internal/kv"
	"github.com/pmundhra/plum-ems/internal/ledger"
	"github.com/pmundhra/plum-ems/internal/logging"
	"github.com/pmundhra/plum-ems/internal/metrics"
	"github.com/pmundhra/plum-ems/internal/orchestrator"
	"github.com/pmundhra/plum-ems/internal/pricing"
	"github.com/pmundhra/plum-ems/internal/scheduler"
	"github.com/pmundhra/plum-ems/internal/store"
	"github.com/pmundhra/plum-ems/internal/store/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	logger.WithComponent("main").Info("starting emsd")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.Database)
	if err != nil {
		logger.WithComponent("main").WithError(err).Fatal("connect to postgres")
	}
	defer db.Close()

	if cfg.Database.MigrateOnStart {
		if err := migrations.Apply(db); err != nil {
			logger.WithComponent("main").WithError(err).Fatal("apply migrations")
		}
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = redisClient.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		logger.WithComponent("main").WithError(err).Fatal("connect to redis")
	}

	kvStore := kv.NewFromClient(redisClient)
	publisher := bus.NewRedisPublisher(redisClient)

	employerRepo := store.NewEmployerRepo(db)
	endorsementRepo := store.NewEndorsementRepo(db)
	ledgerTxRepo := store.NewLedgerTxRepo(db)
	auditStore := audit.NewStore(db)

	dedupTTL := time.Duration(cfg.Ledger.DedupTTLSeconds) * time.Second
	dedupGuard := scheduler.NewDedupGuard(kvStore, dedupTTL)

	window := time.Duration(cfg.Scheduler.WindowSeconds) * time.Second
	sched := scheduler.New(kvStore, dedupGuard, publisher, window, logger)

	sweeper, err := scheduler.NewSweeper(sched, cfg.Scheduler.SweepIntervalCron, logger)
	if err != nil {
		logger.WithComponent("main").WithError(err).Fatal("build scheduler sweeper")
	}

	orch := orchestrator.New(endorsementRepo, publisher, orchestrator.Config{
		MaxRetryCount: cfg.Ledger.MaxRetryCount,
		BackoffBase:   cfg.Ledger.BackoffBase,
	}, logger)

	ledgerEngine := ledger.New(employerRepo, ledgerTxRepo, pricing.ZeroResolver{}, publisher, logger)
	releaser := holdrelease.New(endorsementRepo, publisher, logger)

	insurerResolver, err := gateway.NewStaticResolver(cfg.Gateway.InsurerConfigPath)
	if err != nil {
		logger.WithComponent("main").WithError(err).Fatal("load insurer config")
	}
	gw := gateway.New(insurerResolver, auditStore, publisher, cfg.Gateway, logger)

	registry := bus.NewRegistry()
	registry.Register(domain.TopicEndorsementIngested, sched)
	registry.Register(domain.TopicEndorsementPrioritized, orchestrator.PrioritizedHandler{Orchestrator: orch})
	registry.Register(domain.TopicLedgerCheckFunds, ledgerEngine)
	registry.Register(domain.TopicLedgerFundsLocked, orchestrator.FundsLockedHandler{Orchestrator: orch})
	registry.Register(domain.TopicLedgerBalanceIncreased, releaser)
	registry.Register(domain.TopicInsurerRequest, gw)
	registry.Register(domain.TopicInsurerRequestRetry, gw)
	registry.Register(domain.TopicInsurerSuccess, orchestrator.InsurerOutcomeHandler{Orchestrator: orch})

	hostname, _ := os.Hostname()
	consumerName := fmt.Sprintf("emsd-%s-%d", hostname, os.Getpid())
	consumer := bus.NewConsumer(redisClient, registry, "emsd", consumerName, logger)

	topics := []string{
		domain.TopicEndorsementIngested,
		domain.TopicEndorsementPrioritized,
		domain.TopicLedgerCheckFunds,
		domain.TopicLedgerFundsLocked,
		domain.TopicLedgerBalanceIncreased,
		domain.TopicInsurerRequest,
		domain.TopicInsurerRequestRetry,
		domain.TopicInsurerSuccess,
	}

	var wg sync.WaitGroup
	for _, topic := range topics {
		topic := topic
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.RunSingle(ctx, topic); err != nil && ctx.Err() == nil {
				logger.WithComponent("main").WithError(err).WithField("topic", topic).Error("consumer loop exited")
			}
		}()
	}

	sweeper.Start()

	metricsServer := &http.Server{
		Addr:    cfg.Server.MetricsAddr,
		Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithComponent("main").WithError(err).Error("metrics server failed")
		}
	}()
	logger.WithComponent("main").WithField("addr", cfg.Server.MetricsAddr).Info("metrics endpoint listening")

	<-ctx.Done()
	logger.WithComponent("main").Info("shutdown signal received")

	sweeper.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.WithComponent("main").WithError(err).Error("metrics server shutdown")
	}

	wg.Wait()
	logger.WithComponent("main").Info("emsd stopped")
}
