package apperror

import "errors"

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrLobbyNotFound     = errors.New("lobby not found")
	ErrPlayerNotInRoom   = errors.New("player is not in this room")
	ErrGameNotStarted    = errors.New("game is not started")
	ErrGameFinished      = errors.New("game is already finished")
	ErrRoomEmpty         = errors.New("room has no players")
	ErrBadCellID         = errors.New("invalid cell id")
	ErrCellOutOfRange    = errors.New("cell index is out of range")
	ErrCellEmpty         = errors.New("cell is empty")
	ErrCellAlreadyMarked = errors.New("cell is already marked")
	ErrNumberNotDrawn    = errors.New("number has not been drawn yet")
)
