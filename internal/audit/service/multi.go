package service

import (
	"context"
	"errors"

	"authguard/internal/audit/models"
	"authguard/internal/audit/ports"
)

// MultiSink writes every event to each sink in order. A failing sink does not stop
// the others; the errors are joined.
type MultiSink []ports.Sink

func NewMultiSink(sinks ...ports.Sink) MultiSink {
	out := make(MultiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m MultiSink) Record(ctx context.Context, event models.Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
