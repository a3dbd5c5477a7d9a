package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"authguard/internal/ratelimit/config"
	"authguard/internal/ratelimit/metrics"
	"authguard/internal/ratelimit/mocks"
	"authguard/internal/ratelimit/models"
	"authguard/pkg/domain"
)

const identifier = "5f0c9a"

// ServiceSuite covers the fallback chain with mocked backends. The in-memory, Redis and
// Postgres backends are covered by their own store tests.
type ServiceSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	primary *mocks.MockBackend
	legacy  *mocks.MockBackend
	metrics *metrics.Metrics
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.primary = mocks.NewMockBackend(s.ctrl)
	s.legacy = mocks.NewMockBackend(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.ctx = context.Background()
	s.service = s.newService()
}

func (s *ServiceSuite) newService(extra ...Option) *Service {
	opts := []Option{
		WithTier("redis", s.primary),
		WithTier("postgres", s.legacy),
		WithTimeout(50 * time.Millisecond),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
	}
	svc, err := New(config.DefaultConfig(), append(opts, extra...)...)
	s.Require().NoError(err)
	return svc
}

func minutes(n int) *int { return &n }

var loginPolicy = models.Policy{MaxAttempts: 40, Window: 5 * time.Minute}

// =============================================================================
// Construction
// =============================================================================

func (s *ServiceSuite) TestNewValidation() {
	_, err := New(nil, WithTier("redis", s.primary))
	s.Error(err)

	_, err = New(config.DefaultConfig())
	s.Error(err, "no tiers")

	_, err = New(config.DefaultConfig(), WithTier("redis", nil))
	s.Error(err)
}

// =============================================================================
// Fallback chain
// =============================================================================

func (s *ServiceSuite) TestPrimaryAnswers() {
	s.primary.EXPECT().Check(gomock.Any(), identifier, domain.ActionLogin, loginPolicy).
		Return(&models.Verdict{Allowed: true, RemainingMinutes: minutes(5)}, nil)

	v := s.service.Check(s.ctx, identifier, domain.ActionLogin)
	s.True(v.Allowed)
	s.False(v.Degraded)
	s.Equal(5, *v.RemainingMinutes)
}

func (s *ServiceSuite) TestPrimaryDenialIsFinal() {
	s.primary.EXPECT().Check(gomock.Any(), identifier, domain.ActionRegister, gomock.Any()).
		Return(&models.Verdict{Allowed: false, RemainingMinutes: minutes(12)}, nil)

	v := s.service.Check(s.ctx, identifier, domain.ActionRegister)
	s.False(v.Allowed)
	s.False(v.Degraded)
}

func (s *ServiceSuite) TestPrimaryErrorFallsBackDegraded() {
	s.primary.EXPECT().Check(gomock.Any(), identifier, domain.ActionLogin, loginPolicy).
		Return(nil, errors.New("function rate_limit_v2 does not exist"))
	s.legacy.EXPECT().Check(gomock.Any(), identifier, domain.ActionLogin, loginPolicy).
		Return(&models.Verdict{Allowed: true}, nil)

	v := s.service.Check(s.ctx, identifier, domain.ActionLogin)
	s.True(v.Allowed)
	s.True(v.Degraded)
	s.Nil(v.RemainingMinutes)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.TierOutcomes.WithLabelValues("redis", metrics.OutcomeError)))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.TierOutcomes.WithLabelValues("postgres", metrics.OutcomeAnswered)))
}

func (s *ServiceSuite) TestPrimaryNoDataFallsBack() {
	s.primary.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)
	s.legacy.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&models.Verdict{Allowed: false, RemainingMinutes: minutes(3)}, nil)

	v := s.service.Check(s.ctx, identifier, domain.ActionLogin)
	s.False(v.Allowed, "legacy answer is kept")
	s.True(v.Degraded)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.TierOutcomes.WithLabelValues("redis", metrics.OutcomeNoData)))
}

func (s *ServiceSuite) TestPrimaryTimeoutFallsBack() {
	s.primary.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, domain.Action, models.Policy) (*models.Verdict, error) {
			time.Sleep(200 * time.Millisecond)
			return &models.Verdict{Allowed: false}, nil
		})
	s.legacy.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&models.Verdict{Allowed: true}, nil)

	start := time.Now()
	v := s.service.Check(s.ctx, identifier, domain.ActionLogin)
	s.Less(time.Since(start), 150*time.Millisecond)
	s.True(v.Allowed)
	s.True(v.Degraded)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.TierOutcomes.WithLabelValues("redis", metrics.OutcomeTimeout)))

	// Let the abandoned call finish before the controller checks expectations.
	time.Sleep(200 * time.Millisecond)
}

func (s *ServiceSuite) TestBothFailFailsOpen() {
	s.primary.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("redis down"))
	s.legacy.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("postgres down"))

	v := s.service.Check(s.ctx, identifier, domain.ActionLogin)
	s.True(v.Allowed)
	s.True(v.Degraded)
	s.Nil(v.RemainingMinutes)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.FailOpenTotal))
}

func (s *ServiceSuite) TestUnknownActionFailsOpenWithoutBackends() {
	v := s.service.Check(s.ctx, identifier, domain.Action("logout"))
	s.True(v.Allowed)
	s.True(v.Degraded)
}

func (s *ServiceSuite) TestNegativeRemainingClamped() {
	s.primary.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&models.Verdict{Allowed: false, RemainingMinutes: minutes(-2)}, nil)

	v := s.service.Check(s.ctx, identifier, domain.ActionLogin)
	s.Require().NotNil(v.RemainingMinutes)
	s.Equal(0, *v.RemainingMinutes)
}

// =============================================================================
// Circuit breakers
// =============================================================================

func (s *ServiceSuite) TestOpenBreakerSkipsPrimary() {
	svc := s.newService(WithCircuitBreakers(2, 1, time.Hour))

	s.primary.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("redis down")).Times(2)
	s.legacy.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&models.Verdict{Allowed: true}, nil).Times(4)

	for range 4 {
		v := svc.Check(s.ctx, identifier, domain.ActionLogin)
		s.True(v.Degraded)
	}
	s.Equal(2.0, testutil.ToFloat64(s.metrics.TierOutcomes.WithLabelValues("redis", metrics.OutcomeSkipped)))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.BreakerState.WithLabelValues("redis")))
}

// =============================================================================
// Reset
// =============================================================================

type resettableBackend struct {
	*mocks.MockBackend
	*mocks.MockResetter
}

func (s *ServiceSuite) TestResetReachesResettableTiers() {
	primary := resettableBackend{mocks.NewMockBackend(s.ctrl), mocks.NewMockResetter(s.ctrl)}
	legacy := resettableBackend{mocks.NewMockBackend(s.ctrl), mocks.NewMockResetter(s.ctrl)}
	svc, err := New(config.DefaultConfig(),
		WithTier("redis", primary),
		WithTier("postgres", legacy),
		WithTier("plain", s.primary),
	)
	s.Require().NoError(err)

	primary.MockResetter.EXPECT().Reset(gomock.Any(), identifier, domain.ActionLogin).Return(errors.New("redis down"))
	legacy.MockResetter.EXPECT().Reset(gomock.Any(), identifier, domain.ActionLogin).Return(nil)

	err = svc.Reset(s.ctx, identifier, domain.ActionLogin)
	s.ErrorContains(err, "redis: redis down")
}
