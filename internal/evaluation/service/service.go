// Package service runs one risk evaluation: rate limit check, scoring, audit.
package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	audit "authguard/internal/audit/models"
	"authguard/internal/evaluation/metrics"
	"authguard/internal/evaluation/models"
	"authguard/internal/evaluation/ports"
	ratelimit "authguard/internal/ratelimit/models"
	"authguard/internal/risk"
	riskmodels "authguard/internal/risk/models"
	"authguard/pkg/requestcontext"
)

type Service struct {
	limiter ports.RateLimiter
	auditor ports.Auditor
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(limiter ports.RateLimiter, auditor ports.Auditor, opts ...Option) (*Service, error) {
	if limiter == nil {
		return nil, errors.New("rate limiter is required")
	}
	if auditor == nil {
		return nil, errors.New("auditor is required")
	}
	s := &Service{
		limiter: limiter,
		auditor: auditor,
		logger:  slog.Default(),
		tracer:  otel.Tracer("authguard/evaluation"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Evaluate scores req. The only error is an invalid request; backend trouble shows up
// as a degraded verdict instead.
func (s *Service) Evaluate(ctx context.Context, req models.Request) (*models.Result, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "evaluation.Evaluate",
		trace.WithAttributes(attribute.String("action", string(req.Action))))
	defer span.End()

	if err := req.Validate(); err != nil {
		span.SetStatus(codes.Error, "invalid request")
		return nil, err
	}
	if req.CaptchaState == "" {
		req.CaptchaState = riskmodels.CaptchaNone
	}

	verdict := s.limiter.Check(ctx, req.Identifier, req.Action)
	if verdict == nil {
		verdict = ratelimit.FailOpen()
	}

	eval := risk.Evaluate(riskmodels.Input{
		Action:       req.Action,
		CaptchaState: req.CaptchaState,
		Snapshot:     req.Signals,
		RateLimit:    *verdict,
	})
	now := requestcontext.Now(ctx)

	s.auditor.Record(ctx, audit.Event{
		RequestID:         req.RequestID,
		Action:            req.Action,
		Decision:          string(eval.Decision),
		RiskLevel:         string(eval.Level),
		RiskScore:         eval.Score,
		CooldownSec:       eval.CooldownSec,
		ReasonCodes:       slices.Clone(eval.ReasonCodes),
		FingerprintHash:   req.FingerprintHash,
		IPHash:            req.IPHash,
		DegradedRateLimit: verdict.Degraded,
		Signals:           req.Signals.Bounded(),
		Timestamp:         now,
	})

	span.SetAttributes(
		attribute.Int("risk.score", eval.Score),
		attribute.String("risk.level", string(eval.Level)),
		attribute.String("risk.decision", string(eval.Decision)),
		attribute.Bool("ratelimit.degraded", verdict.Degraded),
	)
	s.metrics.ObserveDecision(string(req.Action), string(eval.Level), string(eval.Decision), eval.Score)
	s.metrics.ObserveEvaluateLatency(time.Since(start))

	if eval.Decision != riskmodels.DecisionAllow {
		s.logger.InfoContext(ctx, "risk evaluation escalated",
			"request_id", req.RequestID,
			"action", req.Action,
			"score", eval.Score,
			"level", eval.Level,
			"decision", eval.Decision,
			"reasons", eval.ReasonCodes,
		)
	}

	return &models.Result{
		Evaluation:  eval,
		RateLimit:   *verdict,
		EvaluatedAt: now,
	}, nil
}
