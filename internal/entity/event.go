package entity

import "time"

// Event is an outbound notification for a participant. The set of implementations is closed.
type Event interface {
	isEvent()
}

type RoleAssigned struct {
	Role Mark `json:"role"`
}

type GameStarted struct {
	State Snapshot `json:"state"`
}

type StateUpdated struct {
	State Snapshot `json:"state"`
}

// GameOver carries a nil Winner for a draw.
type GameOver struct {
	Winner *Mark `json:"winner"`
}

type OpponentLeft struct{}

type Rejected struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type MoveAccepted struct {
	Board int `json:"board"`
	Cell  int `json:"cell"`
}

func (RoleAssigned) isEvent() {}
func (GameStarted) isEvent()  {}
func (StateUpdated) isEvent() {}
func (GameOver) isEvent()     {}
func (OpponentLeft) isEvent() {}
func (Rejected) isEvent()     {}
func (MoveAccepted) isEvent() {}

func NewGameOver(winner Mark) GameOver {
	return GameOver{Winner: winner.ptr()}
}

// GameResult is the record of a finished game kept in match history.
type GameResult struct {
	Room       string    `json:"room"`
	Winner     Mark      `json:"winner"`
	Moves      int       `json:"moves"`
	FinishedAt time.Time `json:"finished_at"`
}

func (that GameResult) IsDraw() bool {
	return that.Winner == MarkNone
}

// WinStats counts finished games by outcome.
type WinStats struct {
	X    int64 `json:"x"`
	O    int64 `json:"o"`
	Draw int64 `json:"draw"`
}
