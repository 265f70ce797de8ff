// Command server runs the entity-resolution HTTP surface: review queue,
// ingest runs, match configuration, health, and metrics. Batch match passes
// are triggered separately via unifyctl.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"unify/internal/entity"
	entitymetrics "unify/internal/entity/metrics"
	"unify/internal/entity/merge"
	entitypg "unify/internal/entity/store/postgres"
	identifierpg "unify/internal/identifier/store/postgres"
	"unify/internal/ingest"
	ingesthandler "unify/internal/ingest/handler"
	ingestmetrics "unify/internal/ingest/metrics"
	ingestpg "unify/internal/ingest/store/postgres"
	jwttoken "unify/internal/jwt_token"
	matchconfig "unify/internal/match/config"
	confighandler "unify/internal/match/config/handler"
	policypg "unify/internal/match/policy/store/postgres"
	matchpg "unify/internal/match/store/postgres"
	"unify/internal/platform/config"
	"unify/internal/platform/httpserver"
	"unify/internal/platform/logger"
	platformmetrics "unify/internal/platform/metrics"
	"unify/internal/platform/pglock"
	"unify/internal/platform/postgres"
	redisclient "unify/internal/platform/redis"
	"unify/internal/review"
	reviewhandler "unify/internal/review/handler"
	reviewmetrics "unify/internal/review/metrics"
	httptransport "unify/internal/transport/http"
	"unify/pkg/platform/audit/consumer"
	"unify/pkg/platform/audit/relay"
	auditpg "unify/pkg/platform/audit/store/postgres"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	cache, err := redisclient.New(cfg.RedisURL)
	if err != nil {
		return err
	}
	if cache != nil {
		defer cache.Close()
	}

	locker, err := pglock.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer locker.Close()

	entityStore := entitypg.New(db)
	identifierStore := identifierpg.New(db)
	candidateStore := matchpg.NewCandidateStore(db)
	blockStore := matchpg.NewBlockStore(db)
	policyStore := policypg.New(db)
	runStore := ingestpg.NewRunStore(db)
	recordStore := ingestpg.NewRecordStore(db)
	auditStore := auditpg.New(db)
	sqlTx := merge.NewSQLTx(db)

	platMetrics := platformmetrics.New()
	entMetrics := entitymetrics.New()
	revMetrics := reviewmetrics.New()
	ingMetrics := ingestmetrics.New()

	resolver := entity.NewResolver(entityStore, cache, log)
	executor := merge.NewExecutor(
		entityStore, resolver, blockStore, auditStore,
		locker, sqlTx, log, entMetrics,
		identifierStore, recordStore,
	)

	reviewSvc := review.NewService(
		candidateStore, blockStore, entityStore, executor,
		auditStore, auditStore, sqlTx, log, revMetrics,
	)
	ingestSvc := ingest.NewService(runStore, recordStore, identifierStore, sqlTx, log, ingMetrics, cfg.DefaultPhoneRegion)
	repairer := ingest.NewRepairer(runStore, recordStore, auditStore, sqlTx, log, ingMetrics, cfg.StaleRunWindow)
	configSvc := matchconfig.NewService(policyStore, auditStore, sqlTx, log)

	tokens := jwttoken.NewService(cfg.JWTSigningKey, "unify")

	checks := map[string]httptransport.HealthChecker{
		"postgres": dbHealth{db},
	}
	if cache != nil {
		checks["redis"] = cache
	}

	router := httptransport.NewRouter(
		httptransport.Deps{
			Logger:    log,
			Validator: tokens,
			Metrics:   platMetrics,
			Checks:    checks,
		},
		reviewhandler.New(reviewSvc, log),
		ingesthandler.New(ingestSvc, repairer, log),
		confighandler.New(configSvc, log),
	)
	srv := httpserver.New(cfg.Addr, router)

	// Outbox relay; nil when Kafka is not configured.
	auditRelay, err := relay.New(db, relay.Config{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaAuditTopic,
	}, log)
	if err != nil {
		return err
	}
	if auditRelay != nil {
		go func() {
			if err := auditRelay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit relay stopped", "error", err)
			}
		}()

		// Materializes the topic back into audit_events, which backs the
		// merge-history endpoint.
		auditConsumer, err := consumer.New(
			cfg.KafkaBrokers, cfg.KafkaAuditTopic, cfg.KafkaConsumerGroup,
			auditStore, log,
		)
		if err != nil {
			return err
		}
		go func() {
			if err := auditConsumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit consumer stopped", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

// dbHealth adapts *sql.DB to the router's health check interface.
type dbHealth struct {
	db *sql.DB
}

func (h dbHealth) Health(ctx context.Context) error {
	return h.db.PingContext(ctx)
}
