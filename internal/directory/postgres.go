package directory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/blocus/internal/domain"
)

const gymColumns = `id::text, name, address, latitude, longitude, description, created_at, updated_at`

// PostgresDirectory reads the gyms table directly.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

// NewPostgresDirectory constructs a PostgresDirectory.
func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

// ListGyms implements domain.Directory.
func (r *PostgresDirectory) ListGyms(ctx context.Context) ([]domain.Gym, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+gymColumns+` FROM gyms ORDER BY name`)
	if err != nil {
		return nil, queryError("list", err)
	}
	defer rows.Close()

	gyms := make([]domain.Gym, 0)
	for rows.Next() {
		gym, err := scanGym(rows)
		if err != nil {
			return nil, queryError("list", err)
		}
		gyms = append(gyms, gym)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError("list", err)
	}
	return gyms, nil
}

// GetGymByID implements domain.Directory.
func (r *PostgresDirectory) GetGymByID(ctx context.Context, id string) (domain.Gym, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+gymColumns+` FROM gyms WHERE id::text = $1`, id)
	gym, err := scanGym(row)
	if err != nil {
		return domain.Gym{}, queryError("get", err)
	}
	return gym, nil
}

// Health checks that the table is reachable.
func (r *PostgresDirectory) Health(ctx context.Context) error {
	var id string
	err := r.pool.QueryRow(ctx, `SELECT id::text FROM gyms LIMIT 1`).Scan(&id)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return queryError("health", err)
	}
	return nil
}

func scanGym(row pgx.Row) (domain.Gym, error) {
	var (
		gym                  domain.Gym
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(&gym.ID, &gym.Name, &gym.Address, &gym.Latitude, &gym.Longitude, &gym.Description, &createdAt, &updatedAt); err != nil {
		return domain.Gym{}, err
	}
	gym.CreatedAt = formatTimestamp(createdAt)
	gym.UpdatedAt = formatTimestamp(updatedAt)
	return gym, nil
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339Nano)
}

func queryError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NewDirectoryError(op, "JSON object requested, multiple (or no) rows returned", domain.ErrGymNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return domain.NewDirectoryError(op, pgErr.Message, err)
	}
	return domain.NewDirectoryError(op, "", err)
}
