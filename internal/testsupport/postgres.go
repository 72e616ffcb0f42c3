//go:build integration

package testsupport

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// GymsSchema mirrors the directory table the application reads.
const GymsSchema = `
CREATE EXTENSION IF NOT EXISTS pgcrypto;
CREATE TABLE IF NOT EXISTS gyms (
	id          uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	name        text NOT NULL,
	address     text NOT NULL,
	latitude    double precision NOT NULL,
	longitude   double precision NOT NULL,
	description text,
	created_at  timestamptz NOT NULL DEFAULT now(),
	updated_at  timestamptz NOT NULL DEFAULT now()
);`

// StartPostgres launches a Postgres container, applies the gyms schema, and
// returns a connected pool. The container is terminated on test cleanup.
func StartPostgres(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("blocus"),
		postgrescontainer.WithUsername("blocus"),
		postgrescontainer.WithPassword("blocus"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.Eventually(t, func() bool {
		return pool.Ping(ctx) == nil
	}, 30*time.Second, 500*time.Millisecond, "postgres never became ready")

	_, err = pool.Exec(ctx, GymsSchema)
	require.NoError(t, err)
	return pool
}

// InsertGym writes a row and returns its generated id.
func InsertGym(ctx context.Context, t *testing.T, pool *pgxpool.Pool, name, address string, lat, lon float64, description *string) string {
	t.Helper()

	var id string
	err := pool.QueryRow(ctx,
		`INSERT INTO gyms (name, address, latitude, longitude, description) VALUES ($1, $2, $3, $4, $5) RETURNING id::text`,
		name, address, lat, lon, description,
	).Scan(&id)
	require.NoError(t, err)
	return id
}
