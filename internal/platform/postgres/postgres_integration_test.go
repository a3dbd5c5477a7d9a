//go:build integration

package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"authguard/pkg/testutil/containers"
)

func TestMigrateIsIdempotent(t *testing.T) {
	db := containers.NewPostgres(t)
	ctx := context.Background()

	n, err := Migrate(ctx, db)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = Migrate(ctx, db)
	require.NoError(t, err)
	require.Zero(t, n)

	var exists bool
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'risk_audit_events')`).Scan(&exists))
	require.True(t, exists)
}
