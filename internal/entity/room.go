package entity

import (
	"fmt"
	"math/rand"

	"github.com/cingohq/cingo-backend/internal/apperror"
	"github.com/cingohq/cingo-backend/internal/cingo"
)

// WinnerDraw is the winner value when all 90 numbers run out before any
// player completes three rows.
const WinnerDraw = "Draw"

// NoNumber is the CurrentNumber sentinel before the first draw.
const NoNumber = 0

// Room is one live or forming game instance. It is mutated in place; the
// coordinator serializes all access, so the room itself carries no locking.
type Room struct {
	ID            string
	GameID        int64
	Players       []*Player
	Boards        map[int64]cingo.Board
	PlayerColors  map[int64]string
	SelectedCells map[int64][]string
	BingoCount    map[int64]int
	Turn          string
	Started       bool
	Winner        string
	CurrentNumber int
	DrawnNumbers  []int

	drawn map[int]bool
}

// MoveResult describes the outcome of a single applied move.
type MoveResult struct {
	CellIndex  int
	BingoCount int
	Improved   bool
	Winner     string
}

func NewRoom(id string, gameID int64) *Room {
	return &Room{
		ID:            id,
		GameID:        gameID,
		Players:       []*Player{},
		Boards:        make(map[int64]cingo.Board),
		PlayerColors:  make(map[int64]string),
		SelectedCells: make(map[int64][]string),
		BingoCount:    make(map[int64]int),
		CurrentNumber: NoNumber,
		DrawnNumbers:  []int{},
		drawn:         make(map[int]bool),
	}
}

// Player returns the roster entry for the given user id, or nil.
func (that *Room) Player(userID int64) *Player {
	for _, player := range that.Players {
		if player.ID == userID {
			return player
		}
	}

	return nil
}

// PlayerByConnection returns the roster entry bound to the given
// connection id, or nil.
func (that *Room) PlayerByConnection(connID string) *Player {
	for _, player := range that.Players {
		if player.ConnectionID == connID {
			return player
		}
	}

	return nil
}

// ConnectedPlayers returns the roster entries with a live connection.
func (that *Room) ConnectedPlayers() []*Player {
	connected := make([]*Player, 0, len(that.Players))
	for _, player := range that.Players {
		if player.IsConnected() {
			connected = append(connected, player)
		}
	}

	return connected
}

func (that *Room) IsEmpty() bool {
	return len(that.Players) == 0
}

func (that *Room) IsFinished() bool {
	return that.Winner != ""
}

// AttachPlayer adds the user to the roster, or rebinds the connection id of
// an already known roster entry. Board, color and counters are initialized
// for new players.
func (that *Room) AttachPlayer(userID int64, name, connID string) *Player {
	player := that.Player(userID)
	if player == nil {
		player = &Player{ID: userID, Name: name}
		that.Players = append(that.Players, player)
	}

	if name != "" {
		player.Name = name
	}
	player.ConnectionID = connID

	that.ensureState(player)

	return player
}

// SeedMember adds a lobby member to the roster without a connection. Known
// members are left untouched.
func (that *Room) SeedMember(member LobbyMember) {
	if that.Player(member.ID) != nil {
		return
	}

	player := &Player{ID: member.ID, Name: member.Name}
	that.Players = append(that.Players, player)
	that.ensureState(player)
}

func (that *Room) ensureState(player *Player) {
	if board, ok := that.Boards[player.ID]; !ok || board.Populated() != cingo.PopulatedCells {
		that.Boards[player.ID] = cingo.GenerateBoard()
	}

	if _, ok := that.PlayerColors[player.ID]; !ok {
		that.PlayerColors[player.ID] = cingo.ColorFor(len(that.PlayerColors))
	}

	if _, ok := that.SelectedCells[player.ID]; !ok {
		that.SelectedCells[player.ID] = []string{}
	}

	if _, ok := that.BingoCount[player.ID]; !ok {
		that.BingoCount[player.ID] = 0
	}
}

// Start regenerates any invalid board and opens the game, handing the turn
// to the first player in join order.
func (that *Room) Start() error {
	if that.IsEmpty() {
		return apperror.ErrRoomEmpty
	}

	for _, player := range that.Players {
		that.ensureState(player)
	}

	that.Started = true
	that.Turn = that.Players[0].Name

	return nil
}

// DrawNumber reveals the next unique number in [1, MaxNumber] and advances
// the turn. When the domain is exhausted it sets Winner to WinnerDraw and
// returns NoNumber without drawing.
func (that *Room) DrawNumber() (int, error) {
	if !that.Started {
		return NoNumber, apperror.ErrGameNotStarted
	}

	if that.IsFinished() {
		return NoNumber, apperror.ErrGameFinished
	}

	if len(that.DrawnNumbers) >= cingo.MaxNumber {
		that.Winner = WinnerDraw
		return NoNumber, nil
	}

	// Rejection sampling: redraw on collision with an already drawn number.
	number := rand.Intn(cingo.MaxNumber) + 1
	for that.drawn[number] {
		number = rand.Intn(cingo.MaxNumber) + 1
	}

	that.drawn[number] = true
	that.DrawnNumbers = append(that.DrawnNumbers, number)
	that.CurrentNumber = number

	that.advanceTurn()

	return number, nil
}

// advanceTurn hands the turn to the next player in join order, wrapping
// around. With a single player the turn stays put.
func (that *Room) advanceTurn() {
	if that.IsEmpty() {
		that.Turn = ""
		return
	}

	current := 0
	for i, player := range that.Players {
		if player.Name == that.Turn {
			current = i
			break
		}
	}

	that.Turn = that.Players[(current+1)%len(that.Players)].Name
}

// ApplyMove validates and records one marked cell for the given player.
// The room is left unchanged when an error is returned.
func (that *Room) ApplyMove(userID int64, cellID string) (MoveResult, error) {
	if !that.Started {
		return MoveResult{}, apperror.ErrGameNotStarted
	}

	if that.IsFinished() {
		return MoveResult{}, apperror.ErrGameFinished
	}

	player := that.Player(userID)
	if player == nil {
		return MoveResult{}, apperror.ErrPlayerNotInRoom
	}

	index, err := cingo.DecodeCellID(cellID)
	if err != nil {
		return MoveResult{}, err
	}

	if index < 0 || index >= cingo.BoardCells {
		return MoveResult{}, fmt.Errorf("%w: %d", apperror.ErrCellOutOfRange, index)
	}

	board := that.Boards[userID]

	value := board[index]
	if value == cingo.EmptyCell {
		return MoveResult{}, fmt.Errorf("%w: %s", apperror.ErrCellEmpty, cellID)
	}

	for _, selected := range that.SelectedCells[userID] {
		if selected == cellID {
			return MoveResult{}, fmt.Errorf("%w: %s", apperror.ErrCellAlreadyMarked, cellID)
		}
	}

	if !that.drawn[value] {
		return MoveResult{}, fmt.Errorf("%w: %d", apperror.ErrNumberNotDrawn, value)
	}

	that.SelectedCells[userID] = append(that.SelectedCells[userID], cellID)

	result := MoveResult{CellIndex: index, BingoCount: that.BingoCount[userID]}

	bingos := cingo.CountBingos(board, that.markedIndices(userID))
	if bingos > that.BingoCount[userID] {
		that.BingoCount[userID] = bingos
		result.BingoCount = bingos
		result.Improved = true
	}

	if that.BingoCount[userID] >= cingo.BingosToWin && !that.IsFinished() {
		that.Winner = player.Name
		result.Winner = player.Name
	}

	return result, nil
}

func (that *Room) markedIndices(userID int64) map[int]bool {
	marked := make(map[int]bool, len(that.SelectedCells[userID]))
	for _, cellID := range that.SelectedCells[userID] {
		index, err := cingo.DecodeCellID(cellID)
		if err != nil {
			continue
		}
		marked[index] = true
	}

	return marked
}

// Reset returns the room to the forming state with fresh boards and colors,
// keeping the player roster.
func (that *Room) Reset() {
	that.Boards = make(map[int64]cingo.Board)
	that.PlayerColors = make(map[int64]string)
	that.SelectedCells = make(map[int64][]string)
	that.BingoCount = make(map[int64]int)
	that.Turn = ""
	that.Started = false
	that.Winner = ""
	that.CurrentNumber = NoNumber
	that.DrawnNumbers = []int{}
	that.drawn = make(map[int]bool)

	for _, player := range that.Players {
		that.ensureState(player)
	}
}

// Clone returns a deep copy of the room. The coordinator hands clones to
// the transport layer so broadcasts never read state mutated by a later
// event.
func (that *Room) Clone() *Room {
	clone := &Room{
		ID:            that.ID,
		GameID:        that.GameID,
		Players:       make([]*Player, len(that.Players)),
		Boards:        make(map[int64]cingo.Board, len(that.Boards)),
		PlayerColors:  make(map[int64]string, len(that.PlayerColors)),
		SelectedCells: make(map[int64][]string, len(that.SelectedCells)),
		BingoCount:    make(map[int64]int, len(that.BingoCount)),
		Turn:          that.Turn,
		Started:       that.Started,
		Winner:        that.Winner,
		CurrentNumber: that.CurrentNumber,
		DrawnNumbers:  append([]int{}, that.DrawnNumbers...),
		drawn:         make(map[int]bool, len(that.drawn)),
	}

	for i, player := range that.Players {
		copied := *player
		clone.Players[i] = &copied
	}

	for id, board := range that.Boards {
		clone.Boards[id] = board
	}

	for id, color := range that.PlayerColors {
		clone.PlayerColors[id] = color
	}

	for id, cells := range that.SelectedCells {
		clone.SelectedCells[id] = append([]string{}, cells...)
	}

	for id, count := range that.BingoCount {
		clone.BingoCount[id] = count
	}

	for number := range that.drawn {
		clone.drawn[number] = true
	}

	return clone
}

// RemoveByConnection drops the roster entry bound to the given connection
// id, along with its per-player state. It returns the removed player or nil.
func (that *Room) RemoveByConnection(connID string) *Player {
	for i, player := range that.Players {
		if player.ConnectionID != connID {
			continue
		}

		that.Players = append(that.Players[:i], that.Players[i+1:]...)
		delete(that.Boards, player.ID)
		delete(that.PlayerColors, player.ID)
		delete(that.SelectedCells, player.ID)
		delete(that.BingoCount, player.ID)

		return player
	}

	return nil
}
