package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cingohq/cingo-backend/internal/apperror"
	"github.com/cingohq/cingo-backend/internal/cingo"
	"github.com/cingohq/cingo-backend/internal/entity"
	"github.com/cingohq/cingo-backend/internal/usecase"
)

const readWait = 2 * time.Second

type stubUserRepo struct {
	names map[int64]string
}

func (that *stubUserRepo) GetNameByID(_ context.Context, id int64) (string, error) {
	name, ok := that.names[id]
	if !ok {
		return "", apperror.ErrUserNotFound
	}

	return name, nil
}

type stubLobbyRepo struct {
	members map[string][]entity.LobbyMember
}

func (that *stubLobbyRepo) ListMembers(_ context.Context, lobbyID string) ([]entity.LobbyMember, error) {
	members, ok := that.members[lobbyID]
	if !ok {
		return nil, apperror.ErrLobbyNotFound
	}

	return members, nil
}

func newTestServer(t *testing.T, lobbies map[string][]entity.LobbyMember) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	coordinator := usecase.NewCoordinator(logger,
		&stubUserRepo{names: map[int64]string{10: "alice", 11: "bob"}},
		&stubLobbyRepo{members: lobbies},
	)

	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(New(logger, coordinator).Handler(ctx))

	t.Cleanup(func() {
		cancel()
		srv.Close()
	})

	return srv
}

func dial(t *testing.T, srv *httptest.Server) *gorilla.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func send(t *testing.T, conn *gorilla.Conn, action string, payload any) {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	data, err := json.Marshal(Message{Action: action, Payload: raw})
	require.NoError(t, err)

	require.NoError(t, conn.WriteMessage(gorilla.TextMessage, data))
}

// readEvent reads the next message and requires it to carry the given
// event name, decoding its payload into out when out is non-nil.
func readEvent(t *testing.T, conn *gorilla.Conn, event string, out any) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readWait)))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var message Message
	require.NoError(t, json.Unmarshal(data, &message))
	require.Equal(t, event, message.Action, "unexpected event, payload: %s", message.Payload)

	if out != nil {
		require.NoError(t, json.Unmarshal(message.Payload, out))
	}
}

func TestServer_CreateGameRoom(t *testing.T) {
	t.Run("The creator receives a personalized snapshot", func(t *testing.T) {
		// Given: a connected client
		srv := newTestServer(t, nil)
		conn := dial(t, srv)

		// When: the client creates a room
		send(t, conn, actionCreateGameRoom, createGameRoomPayload{GameID: 7, RoomID: "42", UserID: 10})

		// Then: it gets the full game state back
		var state GameState
		readEvent(t, conn, eventGameState, &state)

		require.NotNil(t, state.Board)
		assert.Equal(t, cingo.PopulatedCells, state.Board.Populated())
		assert.NotEmpty(t, state.PlayerColor)
		assert.False(t, state.Started)
		require.Len(t, state.Players, 1)
		assert.Equal(t, "alice", state.Players[0].Name)
	})

	t.Run("Other players in the room are told who joined", func(t *testing.T) {
		srv := newTestServer(t, nil)
		first := dial(t, srv)
		second := dial(t, srv)

		send(t, first, actionCreateGameRoom, createGameRoomPayload{GameID: 7, RoomID: "42", UserID: 10})
		readEvent(t, first, eventGameState, nil)

		send(t, second, actionCreateGameRoom, createGameRoomPayload{GameID: 7, RoomID: "42", UserID: 11})
		readEvent(t, second, eventGameState, nil)

		var joined playerJoinedPayload
		readEvent(t, first, eventPlayerJoined, &joined)
		assert.Equal(t, "bob", joined.PlayerName)
	})

	t.Run("An unknown user gets an error event", func(t *testing.T) {
		srv := newTestServer(t, nil)
		conn := dial(t, srv)

		send(t, conn, actionCreateGameRoom, createGameRoomPayload{GameID: 7, RoomID: "42", UserID: 99})

		var errMsg errorPayload
		readEvent(t, conn, eventError, &errMsg)
		assert.Contains(t, errMsg.Message, "user not found")
	})
}

func TestServer_JoinGame(t *testing.T) {
	t.Run("Joining an unregistered room seeds the lobby roster", func(t *testing.T) {
		// Given: a lobby with two members behind room 42
		srv := newTestServer(t, map[string][]entity.LobbyMember{
			"42": {{ID: 10, Name: "alice"}, {ID: 11, Name: "bob"}},
		})
		conn := dial(t, srv)

		// When: one member joins
		send(t, conn, actionJoinGame, joinGamePayload{RoomID: "42", UserID: 10})

		// Then: the snapshot lists the full roster
		var state GameState
		readEvent(t, conn, eventGameState, &state)

		require.Len(t, state.Players, 2)
		assert.Equal(t, "bob", state.Players[1].Name)
	})

	t.Run("A room id without a lobby still opens a room", func(t *testing.T) {
		srv := newTestServer(t, nil)
		conn := dial(t, srv)

		send(t, conn, actionJoinGame, joinGamePayload{RoomID: "friendly", UserID: 10})

		var state GameState
		readEvent(t, conn, eventGameState, &state)
		require.Len(t, state.Players, 1)
	})
}

func TestServer_GameFlow(t *testing.T) {
	setup := func(t *testing.T) (*gorilla.Conn, *gorilla.Conn) {
		t.Helper()

		srv := newTestServer(t, nil)
		first := dial(t, srv)
		second := dial(t, srv)

		send(t, first, actionCreateGameRoom, createGameRoomPayload{GameID: 7, RoomID: "42", UserID: 10})
		readEvent(t, first, eventGameState, nil)

		send(t, second, actionCreateGameRoom, createGameRoomPayload{GameID: 7, RoomID: "42", UserID: 11})
		readEvent(t, second, eventGameState, nil)
		readEvent(t, first, eventPlayerJoined, nil)

		return first, second
	}

	t.Run("Starting the game reaches every player", func(t *testing.T) {
		first, second := setup(t)

		send(t, first, actionStartGame, startGamePayload{RoomID: "42"})

		for _, conn := range []*gorilla.Conn{first, second} {
			var state GameState
			readEvent(t, conn, eventGameState, &state)
			assert.True(t, state.Started)
			assert.Equal(t, "alice", state.Turn)
		}
	})

	t.Run("Drawing broadcasts the number and a fresh snapshot", func(t *testing.T) {
		first, second := setup(t)

		send(t, first, actionStartGame, startGamePayload{RoomID: "42"})
		readEvent(t, first, eventGameState, nil)
		readEvent(t, second, eventGameState, nil)

		send(t, first, actionDrawNumber, drawNumberPayload{RoomID: "42", UserID: 10})

		for _, conn := range []*gorilla.Conn{first, second} {
			var draw drawNumberBroadcast
			readEvent(t, conn, eventDrawNumber, &draw)
			assert.GreaterOrEqual(t, draw.Number, 1)
			assert.LessOrEqual(t, draw.Number, cingo.MaxNumber)
			assert.Equal(t, []int{draw.Number}, draw.DrawnNumbers)

			var state GameState
			readEvent(t, conn, eventGameState, &state)
			assert.Equal(t, draw.Number, state.CurrentNumber)
			assert.Equal(t, "bob", state.Turn)
		}
	})

	t.Run("A move before any draw is rejected for the mover only", func(t *testing.T) {
		first, second := setup(t)

		send(t, first, actionStartGame, startGamePayload{RoomID: "42"})
		readEvent(t, first, eventGameState, nil)
		readEvent(t, second, eventGameState, nil)

		send(t, first, actionMakeMove, makeMovePayload{RoomID: "42", CellID: "00", UserID: 10})

		var errMsg errorPayload
		readEvent(t, first, eventError, &errMsg)
		assert.NotEmpty(t, errMsg.Message)
	})

	t.Run("Reset returns everyone to a forming room", func(t *testing.T) {
		first, second := setup(t)

		send(t, first, actionStartGame, startGamePayload{RoomID: "42"})
		readEvent(t, first, eventGameState, nil)
		readEvent(t, second, eventGameState, nil)

		send(t, second, actionResetGame, resetGamePayload{RoomID: "42"})

		for _, conn := range []*gorilla.Conn{first, second} {
			var state GameState
			readEvent(t, conn, eventGameState, &state)
			assert.False(t, state.Started)
			assert.Empty(t, state.Turn)
			require.Len(t, state.Players, 2)
		}
	})

	t.Run("A disconnect updates the surviving player's snapshot", func(t *testing.T) {
		first, second := setup(t)

		require.NoError(t, second.Close())

		var state GameState
		readEvent(t, first, eventGameState, &state)
		require.Len(t, state.Players, 1)
		assert.Equal(t, "alice", state.Players[0].Name)
	})
}

func TestServer_Emit(t *testing.T) {
	newServer := func(t *testing.T) *Server {
		t.Helper()

		return New(slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	}

	t.Run("A frame to an already closed client is dropped, not fatal", func(t *testing.T) {
		// Given: a client fetched from the registry whose disconnect
		// completed in the meantime
		server := newServer(t)
		client := &Client{id: "conn-1", send: make(chan []byte, sendBufferSize)}
		client.Close()

		// When/Then: emitting to it drops the frame instead of panicking
		require.NotPanics(t, func() {
			server.emit(client, eventGameState, GameState{})
		})
	})

	t.Run("Concurrent broadcasts and a disconnect never panic", func(t *testing.T) {
		server := newServer(t)
		client := &Client{id: "conn-1", send: make(chan []byte, 1)}

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					server.emit(client, eventDrawNumber, drawNumberBroadcast{Number: j})
				}
			}()
		}
		client.Close()
		wg.Wait()

		assert.False(t, client.trySend([]byte("late")))
	})

	t.Run("Closing twice is safe", func(t *testing.T) {
		client := &Client{id: "conn-1", send: make(chan []byte, 1)}

		require.NotPanics(t, func() {
			client.Close()
			client.Close()
		})
	})
}

func TestServer_Protocol(t *testing.T) {
	t.Run("Unknown actions are answered with an error event", func(t *testing.T) {
		srv := newTestServer(t, nil)
		conn := dial(t, srv)

		send(t, conn, "no_such_action", struct{}{})

		var errMsg errorPayload
		readEvent(t, conn, eventError, &errMsg)
		assert.Contains(t, errMsg.Message, "unknown action")
	})

	t.Run("Malformed frames are answered with an error event", func(t *testing.T) {
		srv := newTestServer(t, nil)
		conn := dial(t, srv)

		require.NoError(t, conn.WriteMessage(gorilla.TextMessage, []byte("not json")))

		var errMsg errorPayload
		readEvent(t, conn, eventError, &errMsg)
		assert.Equal(t, "malformed message", errMsg.Message)
	})
}
