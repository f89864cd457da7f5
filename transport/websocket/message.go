package websocket

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/entity"
)

// inbound actions
const (
	ActionJoinRoom  = "room:join"
	ActionMakeMove  = "game:move"
	ActionLeaveRoom = "room:leave"
)

// outbound actions
const (
	ActionPlayerRole   = "player:role"
	ActionGameStart    = "game:start"
	ActionGameState    = "game:state"
	ActionGameOver     = "game:over"
	ActionOpponentLeft = "opponent:left"
	ActionError        = "error"
	ActionMoveAck      = "move:ack"
)

var errUnknownEvent = errors.New("unknown event type")

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type JoinPayload struct {
	Room string `json:"room"`
}

// MovePayload uses pointers so that a missing index is told apart from index 0.
type MovePayload struct {
	Room   string `json:"room"`
	Board  *int   `json:"board"`
	Cell   *int   `json:"cell"`
	Player string `json:"player"`
}

func (that *MovePayload) validate() (entity.Mark, error) {
	if that.Board == nil || that.Cell == nil {
		return entity.MarkNone, fmt.Errorf("%w: board and cell are required", apperror.ErrBadRequest)
	}

	player, ok := entity.ParseMark(that.Player)
	if !ok {
		return entity.MarkNone, fmt.Errorf("%w: unknown player %q", apperror.ErrBadRequest, that.Player)
	}

	return player, nil
}

// encodeEvent - wraps event in a Message; every entity.Event variant has exactly one action.
func encodeEvent(event entity.Event) ([]byte, error) {
	var action string

	switch event.(type) {
	case entity.RoleAssigned:
		action = ActionPlayerRole
	case entity.GameStarted:
		action = ActionGameStart
	case entity.StateUpdated:
		action = ActionGameState
	case entity.GameOver:
		action = ActionGameOver
	case entity.OpponentLeft:
		action = ActionOpponentLeft
	case entity.Rejected:
		action = ActionError
	case entity.MoveAccepted:
		action = ActionMoveAck
	default:
		return nil, fmt.Errorf("%w: %T", errUnknownEvent, event)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", action, err)
	}

	data, err := json.Marshal(Message{Action: action, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	return data, nil
}

func rejection(err error) entity.Rejected {
	return entity.Rejected{
		Code:    apperror.Reason(err),
		Message: apperror.Message(err),
	}
}
