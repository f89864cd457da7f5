package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/apperror"
)

func (that *Server) handleJoinRoom(ctx context.Context, c *client, msg *Message) error {
	var payload JoinPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("%w: %w", apperror.ErrBadRequest, err)
	}

	if _, err := that.rooms.JoinRoom(ctx, payload.Room, c.id); err != nil {
		return fmt.Errorf("failed to join room: %w", err)
	}

	return nil
}

func (that *Server) handleMakeMove(ctx context.Context, c *client, msg *Message) error {
	var payload MovePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("%w: %w", apperror.ErrBadRequest, err)
	}

	player, err := payload.validate()
	if err != nil {
		return err
	}

	if err = that.rooms.SubmitMove(ctx, c.id, payload.Room, *payload.Board, *payload.Cell, player); err != nil {
		return fmt.Errorf("failed make turn: %w", err)
	}

	return nil
}

func (that *Server) handleLeaveRoom(ctx context.Context, c *client, _ *Message) error {
	that.rooms.Leave(ctx, c.id)

	return nil
}
