package cingo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateBoard(t *testing.T) {
	t.Run("Every generated board has exactly 15 populated cells", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			// Given/When: a freshly generated board
			board := GenerateBoard()

			// Then: 15 of 27 cells are populated
			assert.Equal(t, PopulatedCells, board.Populated())
		}
	})

	t.Run("Each row has exactly 5 populated cells", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			board := GenerateBoard()

			for row := 0; row < Rows; row++ {
				populated := 0
				for col := 0; col < Columns; col++ {
					if board[row*Columns+col] != EmptyCell {
						populated++
					}
				}

				assert.Equal(t, CellsPerRow, populated, "row %d", row)
			}
		}
	})

	t.Run("Populated values are pairwise distinct and within [1, 90]", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			board := GenerateBoard()

			seen := make(map[int]bool)
			for _, cell := range board {
				if cell == EmptyCell {
					continue
				}

				assert.GreaterOrEqual(t, cell, 1)
				assert.LessOrEqual(t, cell, MaxNumber)
				assert.False(t, seen[cell], "duplicate value %d", cell)
				seen[cell] = true
			}
		}
	})
}

func TestBoard_Contains(t *testing.T) {
	t.Run("Reports populated values and rejects absent ones", func(t *testing.T) {
		// Given: a board with one known value
		var board Board
		board[4] = 42

		// Then: Contains sees the value but not others
		assert.True(t, board.Contains(42))
		assert.False(t, board.Contains(7))
		assert.False(t, board.Contains(EmptyCell))
	})
}

func TestBoard_JSON(t *testing.T) {
	t.Run("Empty cells serialize as null and survive a round trip", func(t *testing.T) {
		// Given: a generated board
		board := GenerateBoard()

		// When: marshaling and unmarshaling it
		data, err := json.Marshal(board)
		require.NoError(t, err)

		var decoded Board
		require.NoError(t, json.Unmarshal(data, &decoded))

		// Then: the board is unchanged and nulls appear in the payload
		assert.Equal(t, board, decoded)
		assert.Contains(t, string(data), "null")
	})
}
