package cingo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
)

const (
	Rows           = 3
	Columns        = 9
	BoardCells     = Rows * Columns
	CellsPerRow    = 5
	PopulatedCells = Rows * CellsPerRow

	// MaxNumber is the upper bound of the drawing domain, inclusive.
	MaxNumber = 90

	// EmptyCell marks an unpopulated board cell.
	EmptyCell = 0
)

// maxGenerateRetries bounds the defensive regeneration loop. Generation is
// structurally unable to produce fewer than PopulatedCells values, so the
// retry branch should never be taken.
const maxGenerateRetries = 5

// Board is a player's personal 3x9 grid. Each row holds exactly CellsPerRow
// values, unique across the whole board and drawn from [1, MaxNumber].
// EmptyCell marks the remaining slots and serializes as JSON null.
type Board [BoardCells]int

// GenerateBoard produces a fresh randomized board.
func GenerateBoard() Board {
	var board Board

	for attempt := 0; attempt < maxGenerateRetries; attempt++ {
		board = generate()
		if board.Populated() == PopulatedCells {
			break
		}
	}

	return board
}

func generate() Board {
	var board Board

	numbers := rand.Perm(MaxNumber)[:PopulatedCells]

	for row := 0; row < Rows; row++ {
		columns := rand.Perm(Columns)[:CellsPerRow]
		for i, col := range columns {
			board[row*Columns+col] = numbers[row*CellsPerRow+i] + 1
		}
	}

	return board
}

// Populated returns the count of non-empty cells.
func (that Board) Populated() int {
	count := 0
	for _, cell := range that {
		if cell != EmptyCell {
			count++
		}
	}

	return count
}

// Contains reports whether the given number is on the board.
func (that Board) Contains(number int) bool {
	for _, cell := range that {
		if cell == number {
			return true
		}
	}

	return false
}

// MarshalJSON serializes the board as a 27-element array with null for
// empty cells, matching what the web client renders.
func (that Board) MarshalJSON() ([]byte, error) {
	cells := make([]*int, BoardCells)
	for i := range that {
		if that[i] != EmptyCell {
			cells[i] = &that[i]
		}
	}

	data, err := json.Marshal(cells)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal board: %w", err)
	}

	return data, nil
}

func (that *Board) UnmarshalJSON(data []byte) error {
	cells := make([]*int, 0, BoardCells)
	if err := json.Unmarshal(bytes.TrimSpace(data), &cells); err != nil {
		return fmt.Errorf("failed to unmarshal board: %w", err)
	}

	var board Board
	for i, cell := range cells {
		if i >= BoardCells {
			break
		}
		if cell != nil {
			board[i] = *cell
		}
	}

	*that = board

	return nil
}
