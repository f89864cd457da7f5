package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/entity"
)

var errRedisDown = errors.New("redis down")

type recordingNotifier struct {
	mu     sync.Mutex
	events map[string][]entity.Event
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{events: make(map[string][]entity.Event)}
}

func (that *recordingNotifier) Send(connID string, event entity.Event) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.events[connID] = append(that.events[connID], event)
}

// take - returns and forgets everything sent to connID so far.
func (that *recordingNotifier) take(connID string) []entity.Event {
	that.mu.Lock()
	defer that.mu.Unlock()

	events := that.events[connID]
	delete(that.events, connID)

	return events
}

type mockResultRecorder struct {
	mock.Mock
}

func (that *mockResultRecorder) Record(ctx context.Context, result entity.GameResult) error {
	args := that.Called(ctx, result)
	return args.Error(0)
}

func newTestManager(t *testing.T, opts ...Option) (*RoomManager, *recordingNotifier) {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	notifier := newRecordingNotifier()

	return NewRoomManager(logger, notifier, opts...), notifier
}

// startGame - seats "x" and "o" in room and drains the join events.
func startGame(t *testing.T, manager *RoomManager, notifier *recordingNotifier, code string) {
	t.Helper()

	ctx := context.Background()

	role, err := manager.JoinRoom(ctx, code, "x")
	require.NoError(t, err)
	require.Equal(t, entity.MarkX, role)

	role, err = manager.JoinRoom(ctx, code, "o")
	require.NoError(t, err)
	require.Equal(t, entity.MarkO, role)

	notifier.take("x")
	notifier.take("o")
}

func TestRoomManager_JoinRoom(t *testing.T) {
	ctx := context.Background()

	t.Run("First player waits, second starts the game", func(t *testing.T) {
		// Given: an empty manager
		manager, notifier := newTestManager(t)

		// When: the first connection joins
		role, err := manager.JoinRoom(ctx, "1234", "a")

		// Then: it is X and only learns its role
		require.NoError(t, err)
		assert.Equal(t, entity.MarkX, role)
		assert.Equal(t, []entity.Event{entity.RoleAssigned{Role: entity.MarkX}}, notifier.take("a"))

		// When: the second connection joins
		role, err = manager.JoinRoom(ctx, "1234", "b")

		// Then: it is O and both receive the fresh game
		require.NoError(t, err)
		assert.Equal(t, entity.MarkO, role)

		fresh := entity.NewMetaGame().Snapshot()
		assert.Equal(t, []entity.Event{entity.GameStarted{State: fresh}}, notifier.take("a"))
		assert.Equal(t, []entity.Event{
			entity.RoleAssigned{Role: entity.MarkO},
			entity.GameStarted{State: fresh},
		}, notifier.take("b"))
		assert.Equal(t, Stats{Rooms: 1, Players: 2}, manager.Stats())
	})

	t.Run("Third connection gets RoomFull", func(t *testing.T) {
		// Given: a room with both roles assigned
		manager, notifier := newTestManager(t)
		startGame(t, manager, notifier, "1234")

		// When: a third connection joins
		role, err := manager.JoinRoom(ctx, "1234", "c")

		// Then: it is rejected and nobody is notified
		require.ErrorIs(t, err, apperror.ErrRoomFull)
		assert.Equal(t, entity.MarkNone, role)
		assert.Empty(t, notifier.take("c"))
		assert.Empty(t, notifier.take("x"))
		assert.Empty(t, notifier.take("o"))
		assert.Equal(t, Stats{Rooms: 1, Players: 2}, manager.Stats())

		// And: the rejected connection may still join another room
		_, err = manager.JoinRoom(ctx, "5678", "c")
		require.NoError(t, err)
	})

	t.Run("Invalid codes", func(t *testing.T) {
		// Given: a manager limited to 8-byte codes
		manager, _ := newTestManager(t, WithMaxCodeLength(8))

		// When/Then: empty and oversized codes are rejected without creating rooms
		_, err := manager.JoinRoom(ctx, "", "a")
		require.ErrorIs(t, err, apperror.ErrInvalidRoom)

		_, err = manager.JoinRoom(ctx, strings.Repeat("9", 9), "a")
		require.ErrorIs(t, err, apperror.ErrInvalidRoom)

		assert.Equal(t, Stats{}, manager.Stats())
	})

	t.Run("Codes are opaque", func(t *testing.T) {
		// Given: a manager
		manager, _ := newTestManager(t)

		// When: codes with arbitrary alphabets are used
		_, errA := manager.JoinRoom(ctx, "room with spaces", "a")
		_, errB := manager.JoinRoom(ctx, "ルーム", "b")

		// Then: both are accepted as distinct rooms
		require.NoError(t, errA)
		require.NoError(t, errB)
		assert.Equal(t, 2, manager.Stats().Rooms)
	})

	t.Run("A connection holds at most one seat", func(t *testing.T) {
		// Given: a connection seated in one room
		manager, _ := newTestManager(t)
		_, err := manager.JoinRoom(ctx, "1111", "a")
		require.NoError(t, err)

		// When: it joins the same or another room
		_, errSame := manager.JoinRoom(ctx, "1111", "a")
		_, errOther := manager.JoinRoom(ctx, "2222", "a")

		// Then: both are rejected and no extra room is left behind
		require.ErrorIs(t, errSame, apperror.ErrAlreadyJoined)
		require.ErrorIs(t, errOther, apperror.ErrAlreadyJoined)
		assert.Equal(t, Stats{Rooms: 1, Players: 1}, manager.Stats())
	})
}

func TestRoomManager_SubmitMove(t *testing.T) {
	ctx := context.Background()

	t.Run("Accepted move is broadcast and acknowledged", func(t *testing.T) {
		// Given: a started game
		manager, notifier := newTestManager(t)
		startGame(t, manager, notifier, "1234")

		// When: X plays board 4 cell 0
		err := manager.SubmitMove(ctx, "x", "1234", 4, 0, entity.MarkX)

		// Then: both players get the new state and only X gets the ack, after the state
		require.NoError(t, err)

		xEvents := notifier.take("x")
		oEvents := notifier.take("o")
		require.Len(t, xEvents, 2)
		require.Len(t, oEvents, 1)
		assert.Equal(t, xEvents[0], oEvents[0])
		assert.Equal(t, entity.MoveAccepted{Board: 4, Cell: 0}, xEvents[1])

		state, ok := oEvents[0].(entity.StateUpdated)
		require.True(t, ok)
		assert.Equal(t, entity.MarkX, state.State.Boards[4].Cells[0])
		assert.Equal(t, []int{0}, state.State.Allowed.Boards)
		assert.Equal(t, entity.MarkO, state.State.Turn)
	})

	t.Run("Unknown room", func(t *testing.T) {
		manager, _ := newTestManager(t)

		err := manager.SubmitMove(ctx, "x", "nope", 0, 0, entity.MarkX)

		require.ErrorIs(t, err, apperror.ErrRoomNotFound)
	})

	t.Run("Caller is not seated in the room", func(t *testing.T) {
		// Given: a started game and an outsider seated elsewhere
		manager, notifier := newTestManager(t)
		startGame(t, manager, notifier, "1234")
		_, err := manager.JoinRoom(ctx, "other", "stranger")
		require.NoError(t, err)
		notifier.take("stranger")

		// When: the outsider submits a move to the game
		err = manager.SubmitMove(ctx, "stranger", "1234", 4, 0, entity.MarkX)

		// Then: it is rejected and nothing is broadcast
		require.ErrorIs(t, err, apperror.ErrNotAParticipant)
		assert.Empty(t, notifier.take("x"))
		assert.Empty(t, notifier.take("o"))
		assert.Empty(t, notifier.take("stranger"))
	})

	t.Run("Impersonating the opponent", func(t *testing.T) {
		// Given: a started game where it is X's turn
		manager, notifier := newTestManager(t)
		startGame(t, manager, notifier, "1234")

		// When: O claims to be X
		err := manager.SubmitMove(ctx, "o", "1234", 4, 0, entity.MarkX)

		// Then: RoleMismatch and the game is untouched
		require.ErrorIs(t, err, apperror.ErrRoleMismatch)
		assert.Equal(t, *entity.NewMetaGame(), *manager.lookup("1234").game)
		assert.Empty(t, notifier.take("x"))
		assert.Empty(t, notifier.take("o"))
	})

	t.Run("Moves wait for the second player", func(t *testing.T) {
		// Given: a room with only X
		manager, _ := newTestManager(t)
		_, err := manager.JoinRoom(ctx, "1234", "x")
		require.NoError(t, err)

		// When: X tries to move
		err = manager.SubmitMove(ctx, "x", "1234", 4, 0, entity.MarkX)

		// Then: the game has not started
		require.ErrorIs(t, err, apperror.ErrGameIsNotStarted)
	})

	t.Run("Rule violations go back to the caller only", func(t *testing.T) {
		// Given: a started game after X played board 4 cell 0
		manager, notifier := newTestManager(t)
		startGame(t, manager, notifier, "1234")
		require.NoError(t, manager.SubmitMove(ctx, "x", "1234", 4, 0, entity.MarkX))
		notifier.take("x")
		notifier.take("o")

		// When: O ignores the forced board, then X plays out of turn
		errAllowed := manager.SubmitMove(ctx, "o", "1234", 5, 0, entity.MarkO)
		errTurn := manager.SubmitMove(ctx, "x", "1234", 0, 1, entity.MarkX)

		// Then: each gets its own reason and no events are sent
		require.ErrorIs(t, errAllowed, apperror.ErrBoardNotAllowed)
		require.ErrorIs(t, errTurn, apperror.ErrNotYourTurn)
		assert.Empty(t, notifier.take("x"))
		assert.Empty(t, notifier.take("o"))

		// And: the valid reply is still accepted
		require.NoError(t, manager.SubmitMove(ctx, "o", "1234", 0, 4, entity.MarkO))
	})

	t.Run("Winning move ends the game and is recorded", func(t *testing.T) {
		// Given: X is one move from taking the top row of sub-boards
		recorder := &mockResultRecorder{}
		manager, notifier := newTestManager(t, WithResultRecorder(recorder))
		startGame(t, manager, notifier, "1234")

		game := manager.lookup("1234").game
		for _, b := range []int{0, 1} {
			game.Boards[b].Won = true
			game.Boards[b].Winner = entity.MarkX
		}
		game.Boards[2].Cells[0] = entity.MarkX
		game.Boards[2].Cells[1] = entity.MarkX
		game.Moves = 20

		recorder.On("Record", mock.Anything, mock.MatchedBy(func(result entity.GameResult) bool {
			return result.Room == "1234" && result.Winner == entity.MarkX && result.Moves == 21
		})).Return(nil).Once()

		// When: X completes board 2
		err := manager.SubmitMove(ctx, "x", "1234", 2, 2, entity.MarkX)

		// Then: game over precedes the final state for both players
		require.NoError(t, err)
		oEvents := notifier.take("o")
		require.Len(t, oEvents, 2)
		assert.Equal(t, entity.NewGameOver(entity.MarkX), oEvents[0])
		state, ok := oEvents[1].(entity.StateUpdated)
		require.True(t, ok)
		assert.True(t, state.State.Over)

		xEvents := notifier.take("x")
		require.Len(t, xEvents, 3)
		assert.Equal(t, entity.MoveAccepted{Board: 2, Cell: 2}, xEvents[2])
		recorder.AssertExpectations(t)

		// And: further moves are rejected with GameOver
		err = manager.SubmitMove(ctx, "o", "1234", 4, 4, entity.MarkO)
		require.ErrorIs(t, err, apperror.ErrGameOver)
	})

	t.Run("Recorder failure does not affect the move", func(t *testing.T) {
		// Given: a recorder that always fails and a game one move from a draw
		recorder := &mockResultRecorder{}
		recorder.On("Record", mock.Anything, mock.Anything).Return(errRedisDown).Once()

		manager, notifier := newTestManager(t, WithResultRecorder(recorder))
		startGame(t, manager, notifier, "1234")

		game := manager.lookup("1234").game
		pattern := [entity.BoardSize]entity.Mark{
			entity.MarkO, entity.MarkX, entity.MarkO,
			entity.MarkO, entity.MarkX, entity.MarkX,
			entity.MarkX, entity.MarkO, entity.MarkX,
		}
		for b := range game.Boards {
			game.Boards[b].Cells = pattern
		}
		game.Boards[8].Cells[8] = entity.MarkNone

		// When: X fills the last cell
		err := manager.SubmitMove(ctx, "x", "1234", 8, 8, entity.MarkX)

		// Then: the move succeeds as a draw
		require.NoError(t, err)
		oEvents := notifier.take("o")
		require.NotEmpty(t, oEvents)
		assert.Equal(t, entity.GameOver{}, oEvents[0])
		recorder.AssertExpectations(t)
	})
}

func TestRoomManager_Leave(t *testing.T) {
	ctx := context.Background()

	t.Run("Remaining player is told the opponent left", func(t *testing.T) {
		// Given: a started game
		manager, notifier := newTestManager(t)
		startGame(t, manager, notifier, "1234")

		// When: O disconnects
		manager.Leave(ctx, "o")

		// Then: X is notified and the room survives
		assert.Equal(t, []entity.Event{entity.OpponentLeft{}}, notifier.take("x"))
		assert.Empty(t, notifier.take("o"))
		assert.Equal(t, Stats{Rooms: 1, Players: 1}, manager.Stats())

		// And: O's moves now fail as a non-participant
		err := manager.SubmitMove(ctx, "o", "1234", 0, 0, entity.MarkO)
		require.ErrorIs(t, err, apperror.ErrNotAParticipant)
	})

	t.Run("Freed seat is refilled and the game continues", func(t *testing.T) {
		// Given: a game in progress whose X player left
		manager, notifier := newTestManager(t)
		startGame(t, manager, notifier, "1234")
		require.NoError(t, manager.SubmitMove(ctx, "x", "1234", 4, 0, entity.MarkX))
		manager.Leave(ctx, "x")
		notifier.take("o")

		// When: a new connection joins
		role, err := manager.JoinRoom(ctx, "1234", "x2")

		// Then: it takes the free X seat and both get the current state
		require.NoError(t, err)
		assert.Equal(t, entity.MarkX, role)

		events := notifier.take("o")
		require.Len(t, events, 1)
		started, ok := events[0].(entity.GameStarted)
		require.True(t, ok)
		assert.Equal(t, 1, started.State.Moves)
	})

	t.Run("Last player out deletes the room", func(t *testing.T) {
		// Given: a game in progress
		manager, notifier := newTestManager(t)
		startGame(t, manager, notifier, "1234")
		require.NoError(t, manager.SubmitMove(ctx, "x", "1234", 4, 0, entity.MarkX))

		// When: both players leave
		manager.Leave(ctx, "x")
		manager.Leave(ctx, "o")

		// Then: the room is gone
		assert.Equal(t, Stats{}, manager.Stats())
		err := manager.SubmitMove(ctx, "o", "1234", 0, 4, entity.MarkO)
		require.ErrorIs(t, err, apperror.ErrRoomNotFound)

		// And: the same code starts a brand new game
		notifier.take("x")
		notifier.take("o")
		startGameEvents(t, manager, notifier, "1234")
	})

	t.Run("Leaving without a room is a no-op", func(t *testing.T) {
		manager, notifier := newTestManager(t)

		manager.Leave(ctx, "ghost")
		manager.Leave(ctx, "ghost")

		assert.Equal(t, Stats{}, manager.Stats())
		assert.Empty(t, notifier.take("ghost"))
	})
}

// startGameEvents - seats two fresh connections and checks the game they receive is new.
func startGameEvents(t *testing.T, manager *RoomManager, notifier *recordingNotifier, code string) {
	t.Helper()

	ctx := context.Background()
	_, err := manager.JoinRoom(ctx, code, "new-x")
	require.NoError(t, err)
	_, err = manager.JoinRoom(ctx, code, "new-o")
	require.NoError(t, err)

	events := notifier.take("new-x")
	require.Len(t, events, 2)
	assert.Equal(t, entity.GameStarted{State: entity.NewMetaGame().Snapshot()}, events[1])
}

func TestRoomManager_Concurrency(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager(t)

	const rooms = 32

	var wg sync.WaitGroup
	for i := 0; i < rooms; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			code := fmt.Sprintf("room-%d", i)
			x, o := code+"-x", code+"-o"

			_, err := manager.JoinRoom(ctx, code, x)
			assert.NoError(t, err)
			_, err = manager.JoinRoom(ctx, code, o)
			assert.NoError(t, err)

			// both players hammer the same cell; exactly one submission can win it
			var accepted sync.WaitGroup
			results := make([]error, 2)
			for j, conn := range []string{x, o} {
				accepted.Add(1)
				go func(j int, conn string, mark entity.Mark) {
					defer accepted.Done()
					results[j] = manager.SubmitMove(ctx, conn, code, 4, 4, mark)
				}(j, conn, []entity.Mark{entity.MarkX, entity.MarkO}[j])
			}
			accepted.Wait()

			assert.NoError(t, results[0])
			assert.Error(t, results[1])

			manager.Leave(ctx, x)
			manager.Leave(ctx, o)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, Stats{}, manager.Stats())
}

func TestSafeMakeTurn(t *testing.T) {
	// When: the engine faults on a nil game
	_, err := safeMakeTurn(nil, entity.MarkX, 0, 0)

	// Then: the panic becomes ErrInternal
	require.ErrorIs(t, err, apperror.ErrInternal)
	assert.Equal(t, "internal", apperror.Reason(err))
}
