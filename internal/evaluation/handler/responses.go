package handler

import "authguard/internal/evaluation/models"

// EvaluateResponse is the HTTP response for POST /risk/evaluate.
type EvaluateResponse struct {
	Success           bool     `json:"success"`
	RiskLevel         string   `json:"riskLevel"`
	Decision          string   `json:"decision"`
	ChallengeType     string   `json:"challengeType"`
	CooldownSec       int      `json:"cooldownSec"`
	ReasonCodes       []string `json:"reasonCodes"`
	DegradedRateLimit bool     `json:"degradedRateLimit"`
}

func FromResult(result *models.Result) *EvaluateResponse {
	reasons := result.Evaluation.ReasonCodes
	if reasons == nil {
		reasons = []string{}
	}
	return &EvaluateResponse{
		Success:           true,
		RiskLevel:         string(result.Evaluation.Level),
		Decision:          string(result.Evaluation.Decision),
		ChallengeType:     string(result.Evaluation.ChallengeType),
		CooldownSec:       result.Evaluation.CooldownSec,
		ReasonCodes:       reasons,
		DegradedRateLimit: result.RateLimit.Degraded,
	}
}
