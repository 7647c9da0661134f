package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStorage struct {
	Pool *pgxpool.Pool
}

func NewPostgresStorage(ctx context.Context, dsn string) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("can't open database: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("can't connect to database: %w", err)
	}

	return &PostgresStorage{Pool: pool}, nil
}

// Init creates the tables this process reads. The REST API owns the writes;
// the schema here only has to match it.
func (that *PostgresStorage) Init(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		username TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS lobbies (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		game_id BIGINT NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS lobby_members (
		lobby_id BIGINT NOT NULL REFERENCES lobbies (id) ON DELETE CASCADE,
		user_id BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		joined_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (lobby_id, user_id)
	);`

	if _, err := that.Pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("can't create tables: %w", err)
	}

	return nil
}

func (that *PostgresStorage) Close() {
	that.Pool.Close()
}
