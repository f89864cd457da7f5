package apperror

import "errors"

var (
	ErrInvalidRoom      = errors.New("invalid room code")
	ErrRoomFull         = errors.New("room is full")
	ErrRoomNotFound     = errors.New("room not found")
	ErrAlreadyJoined    = errors.New("connection already joined a room")
	ErrNotAParticipant  = errors.New("you are not in this room")
	ErrRoleMismatch     = errors.New("player role mismatch")
	ErrGameIsNotStarted = errors.New("game is not started")
	ErrGameOver         = errors.New("game is already over")
	ErrInvalidMove      = errors.New("board or cell index out of range")
	ErrNotYourTurn      = errors.New("it's not your turn")
	ErrBoardUnavailable = errors.New("board is already won")
	ErrCellOccupied     = errors.New("cell is already occupied")
	ErrBoardNotAllowed  = errors.New("board is not allowed")
	ErrBadRequest       = errors.New("malformed request")
	ErrUnknownAction    = errors.New("unknown action")
	ErrInternal         = errors.New("internal server error")
)

// ReasonInternal is reported for any error outside the taxonomy.
const ReasonInternal = "internal"

var reasons = []struct {
	err  error
	code string
}{
	{ErrInvalidRoom, "invalid_room"},
	{ErrRoomFull, "room_full"},
	{ErrRoomNotFound, "room_not_found"},
	{ErrAlreadyJoined, "already_joined"},
	{ErrNotAParticipant, "not_a_participant"},
	{ErrRoleMismatch, "role_mismatch"},
	{ErrGameIsNotStarted, "game_not_started"},
	{ErrGameOver, "game_over"},
	{ErrInvalidMove, "invalid_move"},
	{ErrNotYourTurn, "not_your_turn"},
	{ErrBoardUnavailable, "board_unavailable"},
	{ErrCellOccupied, "cell_occupied"},
	{ErrBoardNotAllowed, "board_not_allowed"},
	{ErrBadRequest, "bad_request"},
	{ErrUnknownAction, "unknown_action"},
	{ErrInternal, ReasonInternal},
}

// Reason - returns the stable wire code for err.
func Reason(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.code
		}
	}

	return ReasonInternal
}

// Message - returns the client-facing text for err. Errors outside the taxonomy are not leaked.
func Message(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.err.Error()
		}
	}

	return ErrInternal.Error()
}
