package usecase

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/entity"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/tictactoe"
)

// errRoomClosed - the room was torn down between the table lookup and taking its lock.
var errRoomClosed = errors.New("room closed")

// room serializes every game operation behind its own mutex. seats is the only record of who holds
// which role; RoomManager.members is derived from it.
type room struct {
	code string

	mu     sync.Mutex
	seats  [2]string
	game   *entity.MetaGame
	closed atomic.Bool
}

func newRoom(code string) *room {
	return &room{
		code: code,
		game: entity.NewMetaGame(),
	}
}

// moveResult is what an accepted move hands back to the manager once the room lock is released.
type moveResult struct {
	snapshot entity.Snapshot
	outcome  tictactoe.Outcome
}

func (that *room) roleOf(connID string) entity.Mark {
	if connID == "" {
		return entity.MarkNone
	}

	switch connID {
	case that.seats[entity.MarkX.Index()]:
		return entity.MarkX
	case that.seats[entity.MarkO.Index()]:
		return entity.MarkO
	default:
		return entity.MarkNone
	}
}

func (that *room) seated() int {
	n := 0
	for _, conn := range that.seats {
		if conn != "" {
			n++
		}
	}

	return n
}

// participants - seated connections in role order.
func (that *room) participants() []string {
	conns := make([]string, 0, len(that.seats))
	for _, conn := range that.seats {
		if conn != "" {
			conns = append(conns, conn)
		}
	}

	return conns
}

func (that *room) broadcast(notifier notifier, event entity.Event) {
	for _, conn := range that.participants() {
		notifier.Send(conn, event)
	}
}

// join - seats connID in the first free role. X is always taken before O.
func (that *room) join(connID string, notifier notifier) (entity.Mark, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed.Load() {
		return entity.MarkNone, errRoomClosed
	}

	var role entity.Mark
	switch {
	case that.seats[entity.MarkX.Index()] == "":
		role = entity.MarkX
	case that.seats[entity.MarkO.Index()] == "":
		role = entity.MarkO
	default:
		return entity.MarkNone, fmt.Errorf("%w: %s", apperror.ErrRoomFull, that.code)
	}

	that.seats[role.Index()] = connID
	notifier.Send(connID, entity.RoleAssigned{Role: role})

	if that.seated() == len(that.seats) {
		that.broadcast(notifier, entity.GameStarted{State: that.game.Snapshot()})
	}

	return role, nil
}

// leave - frees the seat held by connID. Returns true when the room is now empty and closed.
func (that *room) leave(connID string, notifier notifier) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	role := that.roleOf(connID)
	if role == entity.MarkNone {
		return false
	}
	that.seats[role.Index()] = ""

	if that.seated() == 0 {
		that.closed.Store(true)
		return true
	}

	that.broadcast(notifier, entity.OpponentLeft{})

	return false
}

// move - validates the caller and applies the move to a copy of the game, which replaces the room's
// game only when the engine accepts it.
func (that *room) move(connID string, claimed entity.Mark, board, cell int, notifier notifier) (*moveResult, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed.Load() {
		return nil, fmt.Errorf("%w: %s", apperror.ErrRoomNotFound, that.code)
	}

	role := that.roleOf(connID)
	if role == entity.MarkNone {
		return nil, apperror.ErrNotAParticipant
	}

	if claimed != role {
		return nil, fmt.Errorf("%w: you play %s", apperror.ErrRoleMismatch, role)
	}

	if !that.game.Over && that.seated() < len(that.seats) {
		return nil, apperror.ErrGameIsNotStarted
	}

	next := *that.game
	outcome, err := safeMakeTurn(&next, role, board, cell)
	if err != nil {
		return nil, err
	}
	*that.game = next

	snapshot := next.Snapshot()
	if outcome.Finished {
		that.broadcast(notifier, entity.NewGameOver(outcome.Winner))
	}
	that.broadcast(notifier, entity.StateUpdated{State: snapshot})
	notifier.Send(connID, entity.MoveAccepted{Board: board, Cell: cell})

	return &moveResult{snapshot: snapshot, outcome: outcome}, nil
}

// safeMakeTurn - converts an engine panic into ErrInternal.
func safeMakeTurn(game *entity.MetaGame, role entity.Mark, board, cell int) (outcome tictactoe.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: recovered from panic: %v", apperror.ErrInternal, r)
		}
	}()

	return tictactoe.MakeTurn(game, role, board, cell)
}
