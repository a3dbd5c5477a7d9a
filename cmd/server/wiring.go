package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/prometheus/client_golang/prometheus"

	auditkafka "authguard/internal/audit/kafka"
	auditmetrics "authguard/internal/audit/metrics"
	auditports "authguard/internal/audit/ports"
	auditservice "authguard/internal/audit/service"
	auditmemory "authguard/internal/audit/store/memory"
	auditpostgres "authguard/internal/audit/store/postgres"
	evalhandler "authguard/internal/evaluation/handler"
	evalmetrics "authguard/internal/evaluation/metrics"
	evalservice "authguard/internal/evaluation/service"
	"authguard/internal/platform/config"
	pgplatform "authguard/internal/platform/postgres"
	redisplatform "authguard/internal/platform/redis"
	rlconfig "authguard/internal/ratelimit/config"
	rlmetrics "authguard/internal/ratelimit/metrics"
	rlservice "authguard/internal/ratelimit/service"
	rlmemory "authguard/internal/ratelimit/store/memory"
	rlpostgres "authguard/internal/ratelimit/store/postgres"
	rlredis "authguard/internal/ratelimit/store/redis"
	"authguard/pkg/platform/privacy"
)

// app holds everything main starts and stops.
type app struct {
	handler  *evalhandler.Handler
	recorder *auditservice.Recorder
	janitor  *rlpostgres.Janitor
	checks   []healthCheck
	closers  []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func build(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	hasher, err := privacy.NewHasher([]byte(cfg.Audit.HashKey))
	if err != nil {
		return nil, err
	}
	if cfg.Audit.HashKey == config.DevHashKey {
		logger.WarnContext(ctx, "using development hash key; set AUDIT_HASH_KEY")
	}

	policies, err := rlconfig.Load(cfg.RateLimit.PolicyFile, os.LookupEnv)
	if err != nil {
		return nil, err
	}
	if slices.Contains(cfg.RateLimit.Tiers, config.TierPostgres) {
		if err := policies.CheckRetention(cfg.Cleanup.Retention); err != nil {
			return nil, err
		}
	}

	var db *sql.DB
	if cfg.UsesPostgres() {
		db, err = pgplatform.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		a.checks = append(a.checks, healthCheck{name: "postgres", check: db.PingContext})
		if cfg.Postgres.MigrateOnStart {
			n, err := pgplatform.Migrate(ctx, db)
			if err != nil {
				return nil, err
			}
			logger.InfoContext(ctx, "database migrated", "applied", n)
		}
	}

	limiter, err := buildLimiter(ctx, a, cfg, policies, db, logger, reg)
	if err != nil {
		return nil, err
	}

	sink, err := buildSink(ctx, a, cfg, db)
	if err != nil {
		return nil, err
	}
	a.recorder, err = auditservice.New(sink,
		auditservice.WithBufferSize(cfg.Audit.BufferSize),
		auditservice.WithWriteTimeout(cfg.Audit.WriteTimeout),
		auditservice.WithLogger(logger),
		auditservice.WithMetrics(auditmetrics.New(reg)),
	)
	if err != nil {
		return nil, err
	}

	evaluator, err := evalservice.New(limiter, a.recorder,
		evalservice.WithLogger(logger),
		evalservice.WithMetrics(evalmetrics.New(reg)),
	)
	if err != nil {
		return nil, err
	}
	a.handler, err = evalhandler.New(evaluator, hasher, logger)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func buildLimiter(ctx context.Context, a *app, cfg *config.Config, policies *rlconfig.Config, db *sql.DB, logger *slog.Logger, reg prometheus.Registerer) (*rlservice.Service, error) {
	opts := []rlservice.Option{
		rlservice.WithTimeout(cfg.RateLimit.BackendTimeout),
		rlservice.WithCircuitBreakers(cfg.Breaker.FailureThreshold, cfg.Breaker.SuccessThreshold, cfg.Breaker.Cooldown),
		rlservice.WithLogger(logger),
		rlservice.WithMetrics(rlmetrics.New(reg)),
	}
	for _, tier := range cfg.RateLimit.Tiers {
		switch tier {
		case config.TierRedis:
			client, err := redisplatform.Open(cfg.Redis)
			if err != nil {
				return nil, err
			}
			// An unreachable Redis keeps its tier: calls fail over (or fail open when it
			// is the only tier) until the client reconnects.
			if err := client.Health(ctx); err != nil {
				logger.WarnContext(ctx, "redis unavailable at startup", "error", err)
			}
			a.closers = append(a.closers, func() { _ = client.Close() })
			a.checks = append(a.checks, healthCheck{name: "redis", check: client.Health})
			store, err := rlredis.New(client.Client)
			if err != nil {
				return nil, err
			}
			opts = append(opts, rlservice.WithTier(tier, store))

		case config.TierPostgres:
			store, err := rlpostgres.New(db)
			if err != nil {
				return nil, err
			}
			a.janitor, err = rlpostgres.NewJanitor(store, cfg.Cleanup.Schedule, cfg.Cleanup.Retention, logger)
			if err != nil {
				return nil, fmt.Errorf("cleanup schedule: %w", err)
			}
			opts = append(opts, rlservice.WithTier(tier, store))

		case config.TierMemory:
			store, err := rlmemory.New(rlmemory.WithCapacity(cfg.RateLimit.MemoryCapacity))
			if err != nil {
				return nil, err
			}
			opts = append(opts, rlservice.WithTier(tier, store))
		}
	}
	return rlservice.New(policies, opts...)
}

func buildSink(ctx context.Context, a *app, cfg *config.Config, db *sql.DB) (auditports.Sink, error) {
	var sinks []auditports.Sink
	for _, name := range cfg.Audit.Sinks {
		switch name {
		case config.SinkMemory:
			sinks = append(sinks, auditmemory.New(cfg.Audit.MemoryCapacity))

		case config.SinkPostgres:
			store, err := auditpostgres.New(db)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, store)

		case config.SinkKafka:
			sink, err := auditkafka.New(cfg.Kafka.Brokers, cfg.Kafka.Topic)
			if err != nil {
				return nil, err
			}
			a.closers = append(a.closers, sink.Close)
			a.checks = append(a.checks, healthCheck{name: "kafka", check: sink.Ping})
			if cfg.Kafka.CreateTopic {
				if err := sink.EnsureTopic(ctx, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
					return nil, err
				}
			}
			sinks = append(sinks, sink)
		}
	}
	switch len(sinks) {
	case 0:
		return nil, errors.New("no audit sink configured")
	case 1:
		return sinks[0], nil
	default:
		return auditservice.NewMultiSink(sinks...), nil
	}
}
