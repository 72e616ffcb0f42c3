// Package testhelpers exposes fixtures for services that integrate with the
// gym directory and its change events.
package testhelpers

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/blocus/internal/domain"
)

const gymsDDL = `
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

// DirectoryDatabase is a running Postgres holding the gyms table.
type DirectoryDatabase struct {
	Container *postgrescontainer.PostgresContainer
	ConnStr   string
	Pool      *pgxpool.Pool
}

// StartDirectoryDatabase launches Postgres, creates the gyms table and
// inserts seed rows.
func StartDirectoryDatabase(ctx context.Context, seed ...domain.Gym) (*DirectoryDatabase, error) {
	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("blocus"),
		postgrescontainer.WithUsername("blocus"),
		postgrescontainer.WithPassword("blocus"),
	)
	if err != nil {
		return nil, err
	}

	db := &DirectoryDatabase{Container: pg}
	if err := db.init(ctx, seed); err != nil {
		_ = db.Terminate(context.Background())
		return nil, err
	}
	return db, nil
}

func (db *DirectoryDatabase) init(ctx context.Context, seed []domain.Gym) error {
	connStr, err := db.Container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return err
	}
	db.ConnStr = connStr

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return err
	}
	db.Pool = pool

	deadline := time.Now().Add(30 * time.Second)
	for {
		if err := pool.Ping(ctx); err == nil {
			break
		} else if time.Now().After(deadline) {
			return fmt.Errorf("postgres not ready: %w", err)
		}
		time.Sleep(500 * time.Millisecond)
	}

	if _, err := pool.Exec(ctx, gymsDDL); err != nil {
		return fmt.Errorf("create gyms table: %w", err)
	}
	for _, gym := range seed {
		if _, err := db.InsertGym(ctx, gym); err != nil {
			return err
		}
	}
	return nil
}

// InsertGym writes gym and returns its generated id. gym.ID is ignored.
func (db *DirectoryDatabase) InsertGym(ctx context.Context, gym domain.Gym) (string, error) {
	var id string
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO gyms (name, address, latitude, longitude, description) VALUES ($1, $2, $3, $4, $5) RETURNING id::text`,
		gym.Name, gym.Address, gym.Latitude, gym.Longitude, gym.Description,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert gym %q: %w", gym.Name, err)
	}
	return id, nil
}

// Terminate closes the pool and stops the container.
func (db *DirectoryDatabase) Terminate(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	return db.Container.Terminate(ctx)
}
