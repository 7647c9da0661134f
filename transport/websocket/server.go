package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cingohq/cingo-backend/internal/entity"
)

const sendBufferSize = 32

type gameCoordinator interface {
	CreateRoom(ctx context.Context, roomID string, gameID, userID int64, connID string) (*entity.Room, *entity.Player, error)
	JoinRoom(ctx context.Context, roomID string, userID int64, connID string) (*entity.Room, *entity.Player, error)
	StartGame(roomID string) (*entity.Room, error)
	DrawNumber(roomID string) (*entity.Room, int, error)
	MakeMove(roomID string, userID int64, cellID string) (*entity.Room, entity.MoveResult, error)
	ResetGame(roomID string) (*entity.Room, error)
	Disconnect(connID string) []*entity.Room
}

// Client is one realtime connection. The username is transport-local
// display state set by set_username and never persisted.
type Client struct {
	id       string
	username string
	conn     *websocket.Conn

	mu     sync.Mutex
	closed bool
	send   chan []byte
}

func (that *Client) Close() {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return
	}
	that.closed = true

	close(that.send)
	if that.conn != nil {
		_ = that.conn.Close()
	}
}

// trySend queues one frame for the write pump. It reports false when the
// client is already closed or its buffer is full; Close and trySend share
// the client mutex, so a concurrent disconnect can never turn a queued
// frame into a send on a closed channel.
func (that *Client) trySend(data []byte) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return false
	}

	select {
	case that.send <- data:
		return true
	default:
		return false
	}
}

type Server struct {
	logger      *slog.Logger
	coordinator gameCoordinator
	upgrader    websocket.Upgrader

	handlers map[string]func(ctx context.Context, client *Client, payload json.RawMessage) error

	mu      sync.RWMutex
	clients map[string]*Client
}

func New(logger *slog.Logger, coordinator gameCoordinator) *Server {
	server := &Server{
		logger:      logger,
		coordinator: coordinator,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		handlers: make(map[string]func(context.Context, *Client, json.RawMessage) error),
		clients:  make(map[string]*Client),
	}

	server.handlers[actionCreateGameRoom] = server.handleCreateGameRoom
	server.handlers[actionJoinGame] = server.handleJoinGame
	server.handlers[actionStartGame] = server.handleStartGame
	server.handlers[actionDrawNumber] = server.handleDrawNumber
	server.handlers[actionMakeMove] = server.handleMakeMove
	server.handlers[actionResetGame] = server.handleResetGame
	server.handlers[actionSetUsername] = server.handleSetUsername

	return server
}

// Start - starts the WebSocket server and blocks until it stops.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.serveConnection(ctx, w, r)
	})

	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Handler exposes the /ws endpoint for tests.
func (that *Server) Handler(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		that.serveConnection(ctx, w, r)
	}
}

func (that *Server) serveConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "serveConnection")

	conn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	client := &Client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	that.mu.Lock()
	that.clients[client.id] = client
	that.mu.Unlock()

	log.Info("connection established", "connID", client.id)

	go that.writePump(client)
	that.readPump(ctx, client)
}

// readPump processes inbound messages until the connection drops, then
// runs the disconnect cleanup.
func (that *Server) readPump(ctx context.Context, client *Client) {
	log := that.logger.With("method", "readPump", "connID", client.id)

	defer that.disconnect(client)

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Info("connection closed")
			} else {
				log.Error("failed to read message", "error", err)
			}
			return
		}

		var message Message
		if err = json.Unmarshal(data, &message); err != nil {
			that.sendError(client, "malformed message")
			continue
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			that.sendError(client, "unknown action: "+message.Action)
			continue
		}

		if err = that.dispatch(ctx, client, handler, message.Payload); err != nil {
			log.Error("failed to process message", "action", message.Action, "error", err)
		}
	}
}

// dispatch runs one handler, converting a panic into an error so a single
// bad message cannot take the connection's goroutine down with it.
func (that *Server) dispatch(ctx context.Context, client *Client, handler func(context.Context, *Client, json.RawMessage) error, payload json.RawMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovered from handler panic: %v", r)
		}
	}()

	return handler(ctx, client, payload)
}

func (that *Server) writePump(client *Client) {
	log := that.logger.With("method", "writePump", "connID", client.id)

	defer func() { _ = client.conn.Close() }()

	for msg := range client.send {
		if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Error("failed to write message", "error", err)
			return
		}
	}
}

// disconnect removes the client's player from every room and notifies the
// remaining participants.
func (that *Server) disconnect(client *Client) {
	log := that.logger.With("method", "disconnect", "connID", client.id)

	that.mu.Lock()
	delete(that.clients, client.id)
	that.mu.Unlock()

	client.Close()

	for _, room := range that.coordinator.Disconnect(client.id) {
		that.broadcastGameState(room)
	}

	log.Info("client disconnected")
}

// emit sends one event to a single client.
func (that *Server) emit(client *Client, event string, payload any) {
	log := that.logger.With("method", "emit", "connID", client.id)

	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error("failed to marshal payload", "event", event, "error", err)
		return
	}

	data, err := json.Marshal(Message{Action: event, Payload: raw})
	if err != nil {
		log.Error("failed to marshal message", "event", event, "error", err)
		return
	}

	if !client.trySend(data) {
		log.Warn("dropping message to closed or slow client", "event", event)
	}
}

func (that *Server) emitToConn(connID, event string, payload any) {
	that.mu.RLock()
	client, ok := that.clients[connID]
	that.mu.RUnlock()

	if !ok {
		return
	}

	that.emit(client, event, payload)
}

// broadcast fans one event out to every connected player of the room,
// optionally skipping one connection.
func (that *Server) broadcast(room *entity.Room, event string, payload any, exceptConnID string) {
	for _, player := range room.ConnectedPlayers() {
		if player.ConnectionID == exceptConnID {
			continue
		}

		that.emitToConn(player.ConnectionID, event, payload)
	}
}

// broadcastGameState sends each connected player their personalized full
// snapshot.
func (that *Server) broadcastGameState(room *entity.Room) {
	for _, player := range room.ConnectedPlayers() {
		that.emitToConn(player.ConnectionID, eventGameState, fullGameState(room, player.ID))
	}
}

func (that *Server) sendError(client *Client, message string) {
	that.emit(client, eventError, errorPayload{Message: message})
}
