package websocket

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/cingohq/cingo-backend/internal/cingo"
	"github.com/cingohq/cingo-backend/internal/entity"
)

// Inbound event names.
const (
	actionCreateGameRoom = "create_game_room"
	actionJoinGame       = "join_game"
	actionStartGame      = "start_game"
	actionDrawNumber     = "draw_number"
	actionMakeMove       = "make_move"
	actionResetGame      = "reset_game"
	actionSetUsername    = "set_username"
)

// Outbound event names.
const (
	eventGameState    = "game_state"
	eventPlayerJoined = "player_joined"
	eventDrawNumber   = "draw_number"
	eventBingoUpdated = "bingo_updated"
	eventGameWon      = "game_won"
	eventError        = "error"
)

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// roomID tolerates both string and numeric room identifiers on the wire;
// the web client derives them from numeric lobby ids.
type roomID string

func (that *roomID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("failed to unmarshal room id: %w", err)
		}
		*that = roomID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("failed to unmarshal room id: %w", err)
	}
	*that = roomID(n.String())

	return nil
}

type createGameRoomPayload struct {
	GameID int64  `json:"gameId"`
	RoomID roomID `json:"roomId"`
	UserID int64  `json:"userId"`
}

type joinGamePayload struct {
	GameName string `json:"gameName"`
	RoomID   roomID `json:"id"`
	UserID   int64  `json:"userId"`
}

type startGamePayload struct {
	GameName string `json:"gameName"`
	RoomID   roomID `json:"id"`
	UserID   int64  `json:"userId"`
}

type drawNumberPayload struct {
	RoomID roomID `json:"id"`
	UserID int64  `json:"userId"`
}

type makeMovePayload struct {
	RoomID roomID `json:"id"`
	CellID string `json:"cellId"`
	UserID int64  `json:"userId"`
}

type resetGamePayload struct {
	RoomID roomID `json:"id"`
}

type setUsernamePayload struct {
	Username string `json:"username"`
}

// PlayerInfo is the roster entry shared with every participant.
type PlayerInfo struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// GameState is the outbound room snapshot. The full variant is
// personalized per recipient; the partial variant, sent to bystanders
// during another player's move, omits the per-player fields.
type GameState struct {
	Board         *cingo.Board `json:"board,omitempty"`
	PlayerColor   string       `json:"playerColor,omitempty"`
	SelectedCells *[]string    `json:"selectedCells,omitempty"`
	BingoCount    *int         `json:"bingoCount,omitempty"`
	Players       []PlayerInfo `json:"players"`
	Turn          string       `json:"turn"`
	Started       bool         `json:"started"`
	Winner        string       `json:"winner"`
	CurrentNumber int          `json:"currentNumber"`
	DrawnNumbers  []int        `json:"drawnNumbers"`
}

type playerJoinedPayload struct {
	PlayerName string `json:"playerName"`
}

type drawNumberBroadcast struct {
	Number       int   `json:"number"`
	DrawnNumbers []int `json:"drawnNumbers"`
}

type bingoUpdatedPayload struct {
	UserID     int64 `json:"userId"`
	BingoCount int   `json:"bingoCount"`
}

type gameWonPayload struct {
	Winner string `json:"winner"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func roster(room *entity.Room) []PlayerInfo {
	players := make([]PlayerInfo, len(room.Players))
	for i, player := range room.Players {
		players[i] = PlayerInfo{ID: player.ID, Name: player.Name}
	}

	return players
}

// fullGameState builds the personalized snapshot for one recipient.
func fullGameState(room *entity.Room, playerID int64) GameState {
	state := partialGameState(room)

	if board, ok := room.Boards[playerID]; ok {
		state.Board = &board
	}

	state.PlayerColor = room.PlayerColors[playerID]

	// Always present in the full snapshot, even before the first mark.
	selected := append([]string{}, room.SelectedCells[playerID]...)
	state.SelectedCells = &selected

	bingoCount := room.BingoCount[playerID]
	state.BingoCount = &bingoCount

	return state
}

// partialGameState carries only the room-wide fields.
func partialGameState(room *entity.Room) GameState {
	return GameState{
		Players:       roster(room),
		Turn:          room.Turn,
		Started:       room.Started,
		Winner:        room.Winner,
		CurrentNumber: room.CurrentNumber,
		DrawnNumbers:  append([]int{}, room.DrawnNumbers...),
	}
}
