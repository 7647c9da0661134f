package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cingohq/cingo-backend/internal/apperror"
	"github.com/cingohq/cingo-backend/internal/entity"
)

type LobbyRepository interface {
	ListMembers(ctx context.Context, lobbyID string) ([]entity.LobbyMember, error)
}

type lobbyRepository struct {
	pool *pgxpool.Pool
}

func NewLobbyRepository(pool *pgxpool.Pool) LobbyRepository {
	return &lobbyRepository{
		pool: pool,
	}
}

// ListMembers returns the lobby roster in join order. Room ids arrive as
// strings on the wire; a non-numeric id simply has no lobby behind it.
func (that *lobbyRepository) ListMembers(ctx context.Context, lobbyID string) ([]entity.LobbyMember, error) {
	id, err := strconv.ParseInt(lobbyID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", apperror.ErrLobbyNotFound, lobbyID)
	}

	query := `
	SELECT u.id, u.username
	FROM lobby_members lm
	JOIN users u ON u.id = lm.user_id
	WHERE lm.lobby_id = $1
	ORDER BY lm.joined_at`

	rows, err := that.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("can't list lobby members: %w", err)
	}
	defer rows.Close()

	var members []entity.LobbyMember
	for rows.Next() {
		var member entity.LobbyMember
		if err = rows.Scan(&member.ID, &member.Name); err != nil {
			return nil, fmt.Errorf("can't scan lobby member: %w", err)
		}
		members = append(members, member)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("can't read lobby members: %w", err)
	}

	return members, nil
}
