package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cingohq/cingo-backend/internal/entity"
)

func (that *Server) handleCreateGameRoom(ctx context.Context, client *Client, payload json.RawMessage) error {
	log := that.logger.With("method", "handleCreateGameRoom", "connID", client.id)

	var req createGameRoomPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		that.sendError(client, "malformed create_game_room payload")
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	room, player, err := that.coordinator.CreateRoom(ctx, string(req.RoomID), req.GameID, req.UserID, client.id)
	if err != nil {
		log.Error("failed to create game room", "roomID", req.RoomID, "error", err)
		that.sendError(client, err.Error())
		return nil
	}

	that.broadcast(room, eventPlayerJoined, playerJoinedPayload{PlayerName: player.Name}, client.id)
	that.emit(client, eventGameState, fullGameState(room, player.ID))

	log.Info("player joined room", "roomID", room.ID, "userID", player.ID)

	return nil
}

func (that *Server) handleJoinGame(ctx context.Context, client *Client, payload json.RawMessage) error {
	log := that.logger.With("method", "handleJoinGame", "connID", client.id)

	var req joinGamePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		that.sendError(client, "malformed join_game payload")
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	room, player, err := that.coordinator.JoinRoom(ctx, string(req.RoomID), req.UserID, client.id)
	if err != nil {
		log.Error("failed to join game", "roomID", req.RoomID, "error", err)
		that.sendError(client, err.Error())
		return nil
	}

	that.emit(client, eventGameState, fullGameState(room, player.ID))
	that.broadcast(room, eventPlayerJoined, playerJoinedPayload{PlayerName: player.Name}, client.id)

	log.Info("player joined game", "roomID", room.ID, "userID", player.ID)

	return nil
}

func (that *Server) handleStartGame(_ context.Context, client *Client, payload json.RawMessage) error {
	log := that.logger.With("method", "handleStartGame", "connID", client.id)

	var req startGamePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		that.sendError(client, "malformed start_game payload")
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	room, err := that.coordinator.StartGame(string(req.RoomID))
	if err != nil {
		log.Error("failed to start game", "roomID", req.RoomID, "error", err)
		that.sendError(client, err.Error())
		return nil
	}

	that.broadcastGameState(room)

	log.Info("game started", "roomID", room.ID, "turn", room.Turn)

	return nil
}

func (that *Server) handleDrawNumber(_ context.Context, client *Client, payload json.RawMessage) error {
	log := that.logger.With("method", "handleDrawNumber", "connID", client.id)

	var req drawNumberPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		that.sendError(client, "malformed draw_number payload")
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	room, number, err := that.coordinator.DrawNumber(string(req.RoomID))
	if err != nil {
		log.Error("failed to draw number", "roomID", req.RoomID, "error", err)
		that.sendError(client, err.Error())
		return nil
	}

	// Exhausting all 90 numbers ends the game in a draw instead of
	// revealing a new number.
	if number == entity.NoNumber && room.Winner == entity.WinnerDraw {
		that.broadcast(room, eventGameWon, gameWonPayload{Winner: room.Winner}, "")
		that.broadcastGameState(room)

		log.Info("game drawn", "roomID", room.ID)

		return nil
	}

	that.broadcast(room, eventDrawNumber, drawNumberBroadcast{
		Number:       number,
		DrawnNumbers: room.DrawnNumbers,
	}, "")
	that.broadcastGameState(room)

	return nil
}

func (that *Server) handleMakeMove(_ context.Context, client *Client, payload json.RawMessage) error {
	log := that.logger.With("method", "handleMakeMove", "connID", client.id)

	var req makeMovePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		that.sendError(client, "malformed make_move payload")
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	room, result, err := that.coordinator.MakeMove(string(req.RoomID), req.UserID, req.CellID)
	if err != nil {
		log.Error("failed to make move", "roomID", req.RoomID, "cellID", req.CellID, "error", err)
		that.sendError(client, err.Error())
		return nil
	}

	that.emit(client, eventGameState, fullGameState(room, req.UserID))
	that.broadcast(room, eventGameState, partialGameState(room), client.id)

	if result.Improved {
		that.broadcast(room, eventBingoUpdated, bingoUpdatedPayload{
			UserID:     req.UserID,
			BingoCount: result.BingoCount,
		}, "")
	}

	if result.Winner != "" {
		that.broadcast(room, eventGameWon, gameWonPayload{Winner: result.Winner}, "")

		log.Info("game won", "roomID", room.ID, "winner", result.Winner)
	}

	return nil
}

func (that *Server) handleResetGame(_ context.Context, client *Client, payload json.RawMessage) error {
	log := that.logger.With("method", "handleResetGame", "connID", client.id)

	var req resetGamePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		that.sendError(client, "malformed reset_game payload")
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	room, err := that.coordinator.ResetGame(string(req.RoomID))
	if err != nil {
		log.Error("failed to reset game", "roomID", req.RoomID, "error", err)
		that.sendError(client, err.Error())
		return nil
	}

	that.broadcastGameState(room)

	log.Info("game reset", "roomID", room.ID)

	return nil
}

func (that *Server) handleSetUsername(_ context.Context, client *Client, payload json.RawMessage) error {
	var req setUsernamePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		that.sendError(client, "malformed set_username payload")
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	client.username = req.Username

	return nil
}
