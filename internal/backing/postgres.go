// internal/backing/postgres.go
package backing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBacking stores the table blob in a one-row-per-key snapshot table,
// for deployments where Redis holds only ephemeral state.
type PostgresBacking struct {
	pool *pgxpool.Pool
	key  string
}

// NewPostgresBacking opens a pool against databaseURL and ensures the
// snapshot table exists.
func NewPostgresBacking(ctx context.Context, databaseURL, key string) (*PostgresBacking, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS room_snapshots (
			key        TEXT PRIMARY KEY,
			blob       BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure room_snapshots table: %w", err)
	}
	return &PostgresBacking{pool: pool, key: key}, nil
}

func (p *PostgresBacking) Load(ctx context.Context) ([]byte, error) {
	var blob []byte
	err := p.pool.QueryRow(ctx,
		`SELECT blob FROM room_snapshots WHERE key = $1`, p.key).Scan(&blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return blob, nil
}

func (p *PostgresBacking) Save(ctx context.Context, blob []byte) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO room_snapshots (key, blob, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET blob = EXCLUDED.blob, updated_at = now()`,
		p.key, blob)
	return err
}

// Close releases the underlying pool.
func (p *PostgresBacking) Close() {
	p.pool.Close()
}
