// Package service answers rate limit checks through an ordered chain of backends.
//
// The first tier is trusted. Any answer from a later tier is marked degraded, and when
// no tier answers the check fails open with the degraded flag set, so the risk engine
// carries the enforcement burden instead of the auth flow failing.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"authguard/internal/ratelimit/metrics"
	"authguard/internal/ratelimit/models"
	"authguard/internal/ratelimit/ports"
	"authguard/pkg/domain"
	"authguard/pkg/platform/circuit"
	"authguard/pkg/platform/sentinel"
)

// DefaultTimeout bounds each backend call.
const DefaultTimeout = 250 * time.Millisecond

// PolicySource resolves the attempt budget for an action.
type PolicySource interface {
	Policy(action domain.Action) (models.Policy, bool)
}

type tier struct {
	name    string
	backend ports.Backend
	breaker *circuit.Breaker
}

type breakerConfig struct {
	failures  int
	successes int
	cooldown  time.Duration
}

// Service is the rate limiter fallback chain.
type Service struct {
	policies PolicySource
	tiers    []tier
	timeout  time.Duration
	breakers *breakerConfig
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithTier appends a backend to the chain. Order of options is order of fallback.
func WithTier(name string, backend ports.Backend) Option {
	return func(s *Service) {
		s.tiers = append(s.tiers, tier{name: name, backend: backend})
	}
}

// WithTimeout sets the per-call time budget.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithCircuitBreakers guards every tier with its own breaker.
func WithCircuitBreakers(failures, successes int, cooldown time.Duration) Option {
	return func(s *Service) {
		s.breakers = &breakerConfig{failures: failures, successes: successes, cooldown: cooldown}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New builds the chain. At least one tier is required.
func New(policies PolicySource, opts ...Option) (*Service, error) {
	if policies == nil {
		return nil, errors.New("policy source is required")
	}
	s := &Service{
		policies: policies,
		timeout:  DefaultTimeout,
		logger:   slog.Default(),
		tracer:   otel.Tracer("authguard/ratelimit"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.tiers) == 0 {
		return nil, errors.New("at least one rate limit backend is required")
	}
	for i, t := range s.tiers {
		if t.backend == nil {
			return nil, fmt.Errorf("rate limit tier %q has no backend", t.name)
		}
		if s.breakers != nil {
			s.tiers[i].breaker = circuit.New(t.name,
				circuit.WithFailureThreshold(s.breakers.failures),
				circuit.WithSuccessThreshold(s.breakers.successes),
				circuit.WithCooldown(s.breakers.cooldown),
			)
		}
	}
	return s, nil
}

// Check records an attempt and returns a verdict. It never fails.
func (s *Service) Check(ctx context.Context, identifier string, action domain.Action) *models.Verdict {
	ctx, span := s.tracer.Start(ctx, "ratelimit.Check", trace.WithAttributes(
		attribute.String("action", string(action)),
	))
	defer span.End()

	policy, ok := s.policies.Policy(action)
	if !ok {
		s.logger.ErrorContext(ctx, "no rate limit policy configured, failing open", "action", action)
		return s.failOpen(ctx, action, span)
	}

	for i, t := range s.tiers {
		v, err := s.callTier(ctx, t, identifier, action, policy)
		if err != nil {
			s.logger.WarnContext(ctx, "rate limit tier failed",
				"tier", t.name,
				"action", action,
				"error", err,
			)
			continue
		}
		out := v.Normalized()
		out.Degraded = out.Degraded || i > 0
		span.SetAttributes(
			attribute.String("tier", t.name),
			attribute.Bool("allowed", out.Allowed),
			attribute.Bool("degraded", out.Degraded),
		)
		s.metrics.IncrementVerdict(string(action), out.Allowed, out.Degraded)
		return out
	}
	return s.failOpen(ctx, action, span)
}

// Reset clears the identifier's attempts on every tier that supports it. All tiers are
// attempted; the joined errors are returned.
func (s *Service) Reset(ctx context.Context, identifier string, action domain.Action) error {
	var errs []error
	for _, t := range s.tiers {
		r, ok := t.backend.(ports.Resetter)
		if !ok {
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err := r.Reset(callCtx, identifier, action)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.name, err))
		}
	}
	return errors.Join(errs...)
}

type tierResult struct {
	verdict *models.Verdict
	err     error
}

// callTier enforces the time budget even against a backend that ignores its context.
func (s *Service) callTier(ctx context.Context, t tier, identifier string, action domain.Action, policy models.Policy) (*models.Verdict, error) {
	if t.breaker != nil && !t.breaker.Allow() {
		s.metrics.ObserveTier(t.name, metrics.OutcomeSkipped, 0)
		return nil, fmt.Errorf("circuit open: %w", sentinel.ErrUnavailable)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan tierResult, 1)
	go func() {
		v, err := t.backend.Check(callCtx, identifier, action, policy)
		done <- tierResult{verdict: v, err: err}
	}()

	var res tierResult
	outcome := metrics.OutcomeAnswered
	select {
	case res = <-done:
		switch {
		case res.err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded):
			outcome = metrics.OutcomeTimeout
			res.err = fmt.Errorf("%w: %w", sentinel.ErrTimeout, res.err)
		case res.err != nil:
			outcome = metrics.OutcomeError
		case res.verdict == nil:
			outcome = metrics.OutcomeNoData
			res.err = sentinel.ErrNoData
		}
	case <-callCtx.Done():
		outcome = metrics.OutcomeTimeout
		res.err = fmt.Errorf("%w: %w", sentinel.ErrTimeout, callCtx.Err())
	}
	s.metrics.ObserveTier(t.name, outcome, time.Since(start))
	s.recordBreaker(ctx, t, res.err == nil)
	return res.verdict, res.err
}

func (s *Service) recordBreaker(ctx context.Context, t tier, ok bool) {
	if t.breaker == nil {
		return
	}
	if ok {
		if _, change := t.breaker.RecordSuccess(); change.Closed {
			s.logger.InfoContext(ctx, "rate limit tier recovered", "tier", t.name)
			s.metrics.SetBreakerOpen(t.name, false)
		}
		return
	}
	if _, change := t.breaker.RecordFailure(); change.Opened {
		s.logger.WarnContext(ctx, "rate limit tier circuit opened", "tier", t.name)
		s.metrics.SetBreakerOpen(t.name, true)
	}
}

func (s *Service) failOpen(ctx context.Context, action domain.Action, span trace.Span) *models.Verdict {
	s.logger.WarnContext(ctx, "no rate limit backend answered, failing open", "action", action)
	s.metrics.IncrementFailOpen()
	s.metrics.IncrementVerdict(string(action), true, true)
	span.SetAttributes(attribute.Bool("fail_open", true))
	return models.FailOpen()
}
