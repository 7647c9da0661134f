package cingo

import (
	"fmt"

	"github.com/cingohq/cingo-backend/internal/apperror"
)

// BingosToWin is how many completed rows end the game for one player.
const BingosToWin = 3

// Palette holds the display colors assigned to players by join order.
var Palette = []string{
	"#e6194b",
	"#3cb44b",
	"#4363d8",
	"#f58231",
	"#911eb4",
	"#46f0f0",
	"#f032e6",
	"#808000",
}

// ColorFor returns the display color for the player at the given join index.
func ColorFor(index int) string {
	if index < 0 {
		index = -index
	}

	return Palette[index%len(Palette)]
}

// DecodeCellID turns a two-character cell id into a linear board index.
// The first character is the row digit (0-2), the second the column digit
// (0-8); the index is row*Columns+col.
func DecodeCellID(cellID string) (int, error) {
	if len(cellID) != 2 {
		return 0, fmt.Errorf("%w: %q", apperror.ErrBadCellID, cellID)
	}

	row := int(cellID[0] - '0')
	col := int(cellID[1] - '0')

	if row < 0 || row >= Rows || col < 0 || col >= Columns {
		return 0, fmt.Errorf("%w: %q", apperror.ErrBadCellID, cellID)
	}

	return row*Columns + col, nil
}

// EncodeCellID is the inverse of DecodeCellID.
func EncodeCellID(index int) string {
	return fmt.Sprintf("%d%d", index/Columns, index%Columns)
}

// CountBingos counts how many rows of the board are fully marked. A row
// counts once every populated cell in it appears in the marked set, which
// holds linear board indices.
func CountBingos(board Board, marked map[int]bool) int {
	bingos := 0

	for row := 0; row < Rows; row++ {
		populated := 0
		complete := true
		for col := 0; col < Columns; col++ {
			index := row*Columns + col
			if board[index] == EmptyCell {
				continue
			}
			populated++
			if !marked[index] {
				complete = false
				break
			}
		}

		if complete && populated > 0 {
			bingos++
		}
	}

	return bingos
}
