package postgres

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

// =============================================================================
// Janitor
// =============================================================================

func (s *StoreSuite) TestJanitorValidation() {
	log := slog.New(slog.DiscardHandler)

	_, err := NewJanitor(nil, "@every 1m", time.Hour, log)
	s.Error(err)

	_, err = NewJanitor(s.store, "@every 1m", 0, log)
	s.Error(err)

	_, err = NewJanitor(s.store, "not a schedule", time.Hour, log)
	s.Error(err)
}

func (s *StoreSuite) TestJanitorPurgesPastRetention() {
	var buf bytes.Buffer
	j, err := NewJanitor(s.store, "@every 10m", time.Hour, slog.New(slog.NewTextHandler(&buf, nil)))
	s.Require().NoError(err)

	s.mock.ExpectExec(`DELETE FROM rate_limit_attempts WHERE attempted_at <= \$1`).
		WithArgs(s.now.Add(-time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 7))

	j.Purge(s.ctx)

	s.Contains(buf.String(), "removed=7")
}

func (s *StoreSuite) TestJanitorLogsPurgeFailure() {
	var buf bytes.Buffer
	j, err := NewJanitor(s.store, "@every 10m", time.Hour, slog.New(slog.NewTextHandler(&buf, nil)))
	s.Require().NoError(err)

	s.mock.ExpectExec(`DELETE FROM rate_limit_attempts`).
		WillReturnError(errors.New("connection reset"))

	j.Purge(s.ctx)

	s.Contains(buf.String(), "rate limit purge failed")
}

func (s *StoreSuite) TestJanitorStartStop() {
	j, err := NewJanitor(s.store, "@every 10m", time.Hour, nil)
	s.Require().NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	j.Start()
	j.Stop(ctx)
	s.NoError(ctx.Err())
}
