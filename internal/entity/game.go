package entity

import (
	"encoding/json"
	"fmt"
	"slices"
)

// NoForcedBoard marks MetaGame.Forced as unrestricted.
const NoForcedBoard = -1

const allBoards = "all"

// MetaGame is the full state of one ultimate tic-tac-toe game.
type MetaGame struct {
	Boards [BoardSize]SubBoard
	Turn   Mark
	// Forced is the only sub-board the next move may target, or NoForcedBoard.
	Forced int
	Over   bool
	Winner Mark
	Moves  int
}

func NewMetaGame() *MetaGame {
	return &MetaGame{
		Turn:   MarkX,
		Forced: NoForcedBoard,
	}
}

// PlayableBoards - indices of every sub-board that is neither won nor full.
func (that *MetaGame) PlayableBoards() []int {
	boards := make([]int, 0, BoardSize)
	for i := range that.Boards {
		if that.Boards[i].IsPlayable() {
			boards = append(boards, i)
		}
	}

	return boards
}

// Allowed - the boards the player to move may target.
func (that *MetaGame) Allowed() AllowedBoards {
	if that.Forced != NoForcedBoard {
		return AllowedBoards{Boards: []int{that.Forced}}
	}

	return AllowedBoards{All: true, Boards: that.PlayableBoards()}
}

// MetaWinner - the player holding three sub-boards in a line, or MarkNone.
func (that *MetaGame) MetaWinner() Mark {
	var winners [BoardSize]Mark
	for i := range that.Boards {
		winners[i] = that.Boards[i].Winner
	}

	return LineWinner(winners)
}

func (that *MetaGame) Snapshot() Snapshot {
	snap := Snapshot{
		Turn:    that.Turn,
		Allowed: that.Allowed(),
		Over:    that.Over,
		Winner:  that.Winner.ptr(),
		Moves:   that.Moves,
	}

	for i := range that.Boards {
		snap.Boards[i] = BoardSnapshot{
			Cells:  that.Boards[i].Cells,
			Won:    that.Boards[i].Won,
			Winner: that.Boards[i].Winner.ptr(),
		}
	}

	return snap
}

// AllowedBoards is either an explicit list or "all" on the wire. When All is set, Boards still lists the
// currently playable sub-boards.
type AllowedBoards struct {
	All    bool
	Boards []int
}

func (that AllowedBoards) Contains(board int) bool {
	return slices.Contains(that.Boards, board)
}

func (that AllowedBoards) MarshalJSON() ([]byte, error) {
	if that.All {
		return json.Marshal(allBoards)
	}

	boards := that.Boards
	if boards == nil {
		boards = []int{}
	}

	return json.Marshal(boards)
}

func (that *AllowedBoards) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != allBoards {
			return fmt.Errorf("unexpected allowed boards value %q", s)
		}
		*that = AllowedBoards{All: true}
		return nil
	}

	var boards []int
	if err := json.Unmarshal(data, &boards); err != nil {
		return fmt.Errorf("failed to unmarshal allowed boards: %w", err)
	}
	*that = AllowedBoards{Boards: boards}

	return nil
}

// Snapshot is the self-contained serialization of a MetaGame sent to participants.
type Snapshot struct {
	Boards  [BoardSize]BoardSnapshot `json:"boards"`
	Turn    Mark                     `json:"turn"`
	Allowed AllowedBoards            `json:"allowed"`
	Over    bool                     `json:"over"`
	Winner  *Mark                    `json:"winner"`
	Moves   int                      `json:"moves"`
}

type BoardSnapshot struct {
	Cells  [BoardSize]Mark `json:"cells"`
	Won    bool            `json:"won"`
	Winner *Mark           `json:"winner"`
}
