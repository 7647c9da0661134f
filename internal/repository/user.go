package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cingohq/cingo-backend/internal/apperror"
)

type UserRepository interface {
	GetNameByID(ctx context.Context, id int64) (string, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{
		pool: pool,
	}
}

func (that *userRepository) GetNameByID(ctx context.Context, id int64) (string, error) {
	query := `SELECT username FROM users WHERE id = $1`

	var name string

	err := that.pool.QueryRow(ctx, query, id).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperror.ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("can't find user: %w", err)
	}

	return name, nil
}
