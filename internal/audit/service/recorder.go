// Package service records audit events off the request path.
//
// Record never blocks and never fails the caller: events go onto a bounded queue and
// are dropped, and counted, when it is full. A single worker writes each event once.
// Delivery is at-most-once.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"authguard/internal/audit/metrics"
	"authguard/internal/audit/models"
	"authguard/internal/audit/ports"
)

const (
	DefaultBufferSize   = 1024
	DefaultWriteTimeout = time.Second
)

// Recorder is the asynchronous audit writer.
type Recorder struct {
	sink         ports.Sink
	queue        chan models.Event
	writeTimeout time.Duration
	bufferSize   int
	logger       *slog.Logger
	metrics      *metrics.Metrics
	now          func() time.Time

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	inflight  sync.WaitGroup
}

type Option func(*Recorder)

func WithBufferSize(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.bufferSize = n
		}
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.writeTimeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) { r.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

// WithClock overrides the timestamp source for events recorded without one.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

func New(sink ports.Sink, opts ...Option) (*Recorder, error) {
	if sink == nil {
		return nil, errors.New("audit sink is required")
	}
	r := &Recorder{
		sink:         sink,
		writeTimeout: DefaultWriteTimeout,
		bufferSize:   DefaultBufferSize,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.queue = make(chan models.Event, r.bufferSize)
	return r, nil
}

// Record enqueues event for writing. It returns immediately.
func (r *Recorder) Record(ctx context.Context, event models.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = r.now()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.drop(ctx, event, "recorder closed")
		return
	}

	r.inflight.Add(1)
	select {
	case r.queue <- event:
		r.metrics.SetQueueDepth(len(r.queue))
	default:
		r.inflight.Done()
		r.drop(ctx, event, "buffer full")
	}
}

// Run writes queued events until ctx is cancelled or the recorder is closed.
// Events still queued when ctx is cancelled are left for Close.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-r.queue:
			if !ok {
				return nil
			}
			// A write that started keeps its own deadline through shutdown.
			r.write(context.WithoutCancel(ctx), event)
		}
	}
}

// Close stops accepting events and drains the queue. Events still queued when ctx
// expires are dropped.
func (r *Recorder) Close(ctx context.Context) error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.queue)
		r.mu.Unlock()
	})

	var expired bool
	for event := range r.queue {
		if ctx.Err() != nil {
			expired = true
			r.inflight.Done()
			r.drop(ctx, event, "shutdown deadline")
			continue
		}
		r.write(ctx, event)
	}
	if expired {
		return ctx.Err()
	}

	done := make(chan struct{})
	go func() {
		r.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) write(ctx context.Context, event models.Event) {
	defer r.inflight.Done()
	r.metrics.SetQueueDepth(len(r.queue))

	wctx, cancel := context.WithTimeout(ctx, r.writeTimeout)
	defer cancel()
	if err := r.sink.Record(wctx, event); err != nil {
		r.metrics.IncOutcome(metrics.OutcomeFailed)
		r.logger.WarnContext(ctx, "audit write failed",
			"error", err,
			"request_id", event.RequestID,
			"action", event.Action,
		)
		return
	}
	r.metrics.IncOutcome(metrics.OutcomeWritten)
}

func (r *Recorder) drop(ctx context.Context, event models.Event, reason string) {
	r.metrics.IncOutcome(metrics.OutcomeDropped)
	r.logger.DebugContext(ctx, "audit event dropped",
		"reason", reason,
		"request_id", event.RequestID,
	)
}
