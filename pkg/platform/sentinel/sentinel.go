package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Backends return these (optionally
// wrapped) so the fallback chain can decide whether to try the next tier.
//
// - ErrUnavailable: backend unreachable or circuit open
// - ErrNoData: backend answered without a usable result
// - ErrTimeout: backend call exceeded its time budget
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNoData      = errors.New("no data")
	ErrTimeout     = errors.New("timeout")
	ErrUnavailable = errors.New("unavailable")
)
