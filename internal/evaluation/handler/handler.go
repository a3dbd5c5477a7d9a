package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"authguard/internal/evaluation/models"
	"authguard/internal/fingerprint"
	dErrors "authguard/pkg/domain-errors"
	"authguard/pkg/platform/httputil"
	"authguard/pkg/platform/privacy"
	"authguard/pkg/requestcontext"
)

// Service defines the interface for risk evaluation.
type Service interface {
	Evaluate(ctx context.Context, req models.Request) (*models.Result, error)
}

// Handler wires the evaluation endpoint to the evaluation service. It owns the web
// concerns the core stays out of: identifier derivation and fingerprint hashing.
type Handler struct {
	service Service
	hasher  *privacy.Hasher
	logger  *slog.Logger
}

func New(service Service, hasher *privacy.Hasher, logger *slog.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("evaluation service is required")
	}
	if hasher == nil {
		return nil, errors.New("hasher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, hasher: hasher, logger: logger}, nil
}

// Register mounts the evaluation endpoint on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/risk/evaluate", h.HandleEvaluate)
}

// HandleEvaluate handles POST /risk/evaluate requests.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[EvaluateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	ip := requestcontext.ClientIP(ctx)
	ua := requestcontext.UserAgent(ctx)
	fp := fingerprint.Compute(ua, requestcontext.AcceptLanguage(ctx))

	result, err := h.service.Evaluate(ctx, models.Request{
		Identifier:      h.hasher.Hash("id", ip, ua),
		IPHash:          h.hasher.HashIP(ip),
		FingerprintHash: h.hasher.HashFingerprint(fp),
		RequestID:       requestID,
		Action:          req.parsedAction,
		CaptchaState:    req.parsedCaptcha,
		Signals:         req.snapshot,
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidation) {
			h.logger.WarnContext(ctx, "risk evaluation rejected",
				"request_id", requestID,
				"error", err,
			)
			httputil.WriteErrorWithRequestID(w, err, requestID)
			return
		}
		h.logger.ErrorContext(ctx, "risk evaluation failed",
			"request_id", requestID,
			"action", req.parsedAction,
			"error", err,
		)
		httputil.WriteErrorWithRequestID(w, dErrors.Wrap(err, dErrors.CodeInternal, "internal error"), requestID)
		return
	}

	h.logger.InfoContext(ctx, "risk evaluated",
		"request_id", requestID,
		"action", req.parsedAction,
		"client_ip", privacy.AnonymizeIP(ip),
		"decision", result.Evaluation.Decision,
		"level", result.Evaluation.Level,
		"degraded", result.RateLimit.Degraded,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusOK, FromResult(result))
}
