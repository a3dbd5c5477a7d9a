package models

import (
	"time"

	"authguard/internal/signals"
	"authguard/pkg/domain"
)

// Event is one evaluated authentication attempt. It carries hashes only; raw IP
// addresses and user agents never reach a sink.
type Event struct {
	RequestID         string           `json:"requestId,omitempty"`
	Action            domain.Action    `json:"action"`
	Decision          string           `json:"decision"`
	RiskLevel         string           `json:"riskLevel"`
	RiskScore         int              `json:"riskScore"`
	CooldownSec       int              `json:"cooldownSec"`
	ReasonCodes       []string         `json:"reasonCodes"`
	FingerprintHash   string           `json:"fingerprintHash"`
	IPHash            string           `json:"ipHash"`
	DegradedRateLimit bool             `json:"degradedRateLimit"`
	Signals           signals.Snapshot `json:"signals"`
	Timestamp         time.Time        `json:"timestamp"`
}
