package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	audit "authguard/internal/audit/models"
	"authguard/internal/evaluation/metrics"
	"authguard/internal/evaluation/mocks"
	"authguard/internal/evaluation/models"
	ratelimit "authguard/internal/ratelimit/models"
	riskmodels "authguard/internal/risk/models"
	"authguard/internal/signals"
	"authguard/pkg/domain"
	dErrors "authguard/pkg/domain-errors"
	"authguard/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	limiter *mocks.MockRateLimiter
	auditor *mocks.MockAuditor
	metrics *metrics.Metrics
	svc     *Service
	ctx     context.Context
	now     time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.limiter = mocks.NewMockRateLimiter(s.ctrl)
	s.auditor = mocks.NewMockAuditor(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())

	var err error
	s.svc, err = New(s.limiter, s.auditor, WithMetrics(s.metrics))
	s.Require().NoError(err)

	s.now = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func botSignals() signals.Snapshot {
	return signals.Snapshot{ElapsedMs: 500, AntiBotScore: 10}
}

func humanSignals() signals.Snapshot {
	return signals.Snapshot{
		ElapsedMs: 5000, AntiBotScore: 90, InputSwitchCount: 3,
		HasMouseMovement: true, HasNaturalMousePath: true, HasNaturalInputPattern: true, HasFocusActivity: true,
		Slider: &signals.SliderSignal{Verified: true, QualityScore: 80, Attempts: 1, ReachedEnd: true, DragDurationMs: 900},
	}
}

func (s *ServiceSuite) TestRequiresCollaborators() {
	_, err := New(nil, s.auditor)
	s.Error(err)
	_, err = New(s.limiter, nil)
	s.Error(err)
}

func (s *ServiceSuite) TestInvalidRequest() {
	s.Run("missing identifier", func() {
		_, err := s.svc.Evaluate(s.ctx, models.Request{Action: domain.ActionLogin})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
	s.Run("unknown action", func() {
		_, err := s.svc.Evaluate(s.ctx, models.Request{Identifier: "id", Action: "reset"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
	s.Run("unknown captcha state", func() {
		_, err := s.svc.Evaluate(s.ctx, models.Request{Identifier: "id", Action: domain.ActionLogin, CaptchaState: "solved"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestHumanIsAllowed() {
	s.limiter.EXPECT().Check(gomock.Any(), "id-1", domain.ActionLogin).Return(&ratelimit.Verdict{Allowed: true})
	s.auditor.EXPECT().Record(gomock.Any(), gomock.Any()).Do(func(_ context.Context, ev audit.Event) {
		s.Equal("req-1", ev.RequestID)
		s.Equal("allow", ev.Decision)
		s.Equal("low", ev.RiskLevel)
		s.Equal("ip-h", ev.IPHash)
		s.Equal("fp-h", ev.FingerprintHash)
		s.Equal(s.now, ev.Timestamp)
		s.False(ev.DegradedRateLimit)
	})

	res, err := s.svc.Evaluate(s.ctx, models.Request{
		Identifier: "id-1", IPHash: "ip-h", FingerprintHash: "fp-h", RequestID: "req-1",
		Action: domain.ActionLogin, CaptchaState: riskmodels.CaptchaSliderPassed, Signals: humanSignals(),
	})
	s.Require().NoError(err)
	s.Equal(riskmodels.DecisionAllow, res.Evaluation.Decision)
	s.Equal(0, res.Evaluation.Score)
	s.Equal(s.now, res.EvaluatedAt)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Decisions.WithLabelValues("login", "low", "allow")))
}

func (s *ServiceSuite) TestDegradedVerdictRaisesScore() {
	s.limiter.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any()).Return(&ratelimit.Verdict{Allowed: true, Degraded: true})
	s.auditor.EXPECT().Record(gomock.Any(), gomock.Any()).Do(func(_ context.Context, ev audit.Event) {
		s.True(ev.DegradedRateLimit)
		s.Contains(ev.ReasonCodes, riskmodels.ReasonRateLimitDegraded)
	})

	snap := humanSignals()
	snap.AntiBotScore = 70
	res, err := s.svc.Evaluate(s.ctx, models.Request{Identifier: "id", Action: domain.ActionLogin, Signals: snap})
	s.Require().NoError(err)
	s.Equal(5, res.Evaluation.Score)
	s.True(res.RateLimit.Degraded)
}

func (s *ServiceSuite) TestRateLimitedIsChallenged() {
	remaining := 4
	s.limiter.EXPECT().Check(gomock.Any(), gomock.Any(), domain.ActionRegister).
		Return(&ratelimit.Verdict{Allowed: false, RemainingMinutes: &remaining})
	s.auditor.EXPECT().Record(gomock.Any(), gomock.Any())

	res, err := s.svc.Evaluate(s.ctx, models.Request{Identifier: "id", Action: domain.ActionRegister, Signals: humanSignals()})
	s.Require().NoError(err)
	s.Equal(riskmodels.DecisionChallenge, res.Evaluation.Decision)
	s.Equal(15, res.Evaluation.CooldownSec)
	s.Equal(&remaining, res.RateLimit.RemainingMinutes)
}

func (s *ServiceSuite) TestNilVerdictFailsOpen() {
	s.limiter.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	s.auditor.EXPECT().Record(gomock.Any(), gomock.Any())

	res, err := s.svc.Evaluate(s.ctx, models.Request{Identifier: "id", Action: domain.ActionLogin, Signals: botSignals()})
	s.Require().NoError(err)
	s.True(res.RateLimit.Allowed)
	s.True(res.RateLimit.Degraded)
	s.Equal(100, res.Evaluation.Score)
}

func (s *ServiceSuite) TestAuditEventDoesNotShareReasonSlice() {
	s.limiter.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any()).Return(&ratelimit.Verdict{Allowed: true})
	var recorded audit.Event
	s.auditor.EXPECT().Record(gomock.Any(), gomock.Any()).Do(func(_ context.Context, ev audit.Event) { recorded = ev })

	res, err := s.svc.Evaluate(s.ctx, models.Request{Identifier: "id", Action: domain.ActionLogin, Signals: botSignals()})
	s.Require().NoError(err)

	recorded.ReasonCodes[0] = "mutated"
	s.Equal(riskmodels.ReasonTooFast, res.Evaluation.ReasonCodes[0])
}
