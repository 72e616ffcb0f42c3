//go:build integration

package testsupport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStartPostgresAppliesSchema(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool := StartPostgres(ctx, t)
	id := InsertGym(ctx, t, pool, "Bloc Session", "Paris", 48.85, 2.35, nil)
	require.NotEmpty(t, id)

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM gyms`).Scan(&count))
	require.Equal(t, 1, count)
}
