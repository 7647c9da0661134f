package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cingohq/cingo-backend/internal/apperror"
	"github.com/cingohq/cingo-backend/internal/entity"
)

type userRepo interface {
	GetNameByID(ctx context.Context, id int64) (string, error)
}

type lobbyRepo interface {
	ListMembers(ctx context.Context, lobbyID string) ([]entity.LobbyMember, error)
}

// Coordinator owns the in-memory room registry and applies every game
// event to it. A single mutex serializes all room-mutating operations,
// standing in for the run-to-completion event loop of the web client's
// protocol; persistence lookups happen outside the lock, and every write
// path re-checks registry state afterwards.
type Coordinator struct {
	logger  *slog.Logger
	users   userRepo
	lobbies lobbyRepo

	mu    sync.Mutex
	rooms map[string]*entity.Room
}

// RoomSummary is the read-only view served by the REST rooms listing.
type RoomSummary struct {
	ID      string `json:"roomId"`
	GameID  int64  `json:"gameId"`
	Players int    `json:"players"`
	Started bool   `json:"started"`
	Winner  string `json:"winner,omitempty"`
}

func NewCoordinator(logger *slog.Logger, users userRepo, lobbies lobbyRepo) *Coordinator {
	return &Coordinator{
		logger:  logger,
		users:   users,
		lobbies: lobbies,
		rooms:   make(map[string]*entity.Room),
	}
}

// CreateRoom creates the room if needed and attaches the user to it with a
// freshly looked-up display name.
func (that *Coordinator) CreateRoom(ctx context.Context, roomID string, gameID, userID int64, connID string) (*entity.Room, *entity.Player, error) {
	name, err := that.users.GetNameByID(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get user name: %w", err)
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	room, ok := that.rooms[roomID]
	if !ok {
		room = entity.NewRoom(roomID, gameID)
		that.rooms[roomID] = room
	}

	player := room.AttachPlayer(userID, name, connID)

	return room.Clone(), clonePlayer(player), nil
}

// JoinRoom attaches the user to an existing room, or bootstraps the room
// from lobby membership when it is not registered yet. The membership
// round trip runs outside the registry lock, so room existence is
// re-checked before writing: two near-simultaneous joins must not
// double-initialize the room.
func (that *Coordinator) JoinRoom(ctx context.Context, roomID string, userID int64, connID string) (*entity.Room, *entity.Player, error) {
	name, err := that.users.GetNameByID(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get user name: %w", err)
	}

	var members []entity.LobbyMember
	if !that.hasRoom(roomID) {
		members, err = that.lobbies.ListMembers(ctx, roomID)
		if err != nil && !errors.Is(err, apperror.ErrLobbyNotFound) {
			return nil, nil, fmt.Errorf("failed to list lobby members: %w", err)
		}
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	room, ok := that.rooms[roomID]
	if !ok {
		room = entity.NewRoom(roomID, 0)
		for _, member := range members {
			room.SeedMember(member)
		}
		that.rooms[roomID] = room
	}

	player := room.AttachPlayer(userID, name, connID)

	return room.Clone(), clonePlayer(player), nil
}

// StartGame opens the room's game and hands the turn to the first player.
func (that *Coordinator) StartGame(roomID string) (*entity.Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	room, ok := that.rooms[roomID]
	if !ok {
		return nil, apperror.ErrRoomNotFound
	}

	if err := room.Start(); err != nil {
		return nil, fmt.Errorf("failed to start game: %w", err)
	}

	return room.Clone(), nil
}

// DrawNumber draws the next unique number for the room and advances the
// turn. A room that exhausted the domain comes back with Winner set to
// entity.WinnerDraw and number entity.NoNumber.
func (that *Coordinator) DrawNumber(roomID string) (*entity.Room, int, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	room, ok := that.rooms[roomID]
	if !ok {
		return nil, entity.NoNumber, apperror.ErrRoomNotFound
	}

	number, err := room.DrawNumber()
	if err != nil {
		return nil, entity.NoNumber, err
	}

	return room.Clone(), number, nil
}

// MakeMove marks one cell for the player and reports bingo progression.
func (that *Coordinator) MakeMove(roomID string, userID int64, cellID string) (*entity.Room, entity.MoveResult, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	room, ok := that.rooms[roomID]
	if !ok {
		return nil, entity.MoveResult{}, apperror.ErrRoomNotFound
	}

	result, err := room.ApplyMove(userID, cellID)
	if err != nil {
		return nil, entity.MoveResult{}, err
	}

	return room.Clone(), result, nil
}

// ResetGame returns a room to the forming state, keeping its roster.
func (that *Coordinator) ResetGame(roomID string) (*entity.Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	room, ok := that.rooms[roomID]
	if !ok {
		return nil, apperror.ErrRoomNotFound
	}

	room.Reset()

	return room.Clone(), nil
}

// Disconnect removes the connection's player from every room it appears
// in, dropping rooms that end up empty. It returns the surviving rooms
// that lost a player, for the transport to re-broadcast.
func (that *Coordinator) Disconnect(connID string) []*entity.Room {
	log := that.logger.With("method", "Disconnect")

	that.mu.Lock()
	defer that.mu.Unlock()

	var affected []*entity.Room

	for roomID, room := range that.rooms {
		removed := room.RemoveByConnection(connID)
		if removed == nil {
			continue
		}

		if room.IsEmpty() {
			delete(that.rooms, roomID)
			log.Info("room removed", "roomID", roomID)
			continue
		}

		affected = append(affected, room.Clone())
	}

	return affected
}

// Rooms returns a summary of every registered room.
func (that *Coordinator) Rooms() []RoomSummary {
	that.mu.Lock()
	defer that.mu.Unlock()

	summaries := make([]RoomSummary, 0, len(that.rooms))
	for _, room := range that.rooms {
		summaries = append(summaries, RoomSummary{
			ID:      room.ID,
			GameID:  room.GameID,
			Players: len(room.Players),
			Started: room.Started,
			Winner:  room.Winner,
		})
	}

	return summaries
}

func (that *Coordinator) hasRoom(roomID string) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	_, ok := that.rooms[roomID]

	return ok
}

func clonePlayer(player *entity.Player) *entity.Player {
	copied := *player
	return &copied
}
