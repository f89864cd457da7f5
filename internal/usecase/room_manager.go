package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/entity"
)

const defaultMaxCodeLength = 64

// notifier delivers events to a connection. Send must not block.
type notifier interface {
	Send(connID string, event entity.Event)
}

type resultRecorder interface {
	Record(ctx context.Context, result entity.GameResult) error
}

// Stats is a point-in-time view of the room table.
type Stats struct {
	Rooms   int `json:"rooms"`
	Players int `json:"players"`
}

// RoomManager owns the table of live rooms. The table lock only guards insertion, removal and lookup;
// gameplay is serialized per room.
type RoomManager struct {
	logger        *slog.Logger
	notifier      notifier
	results       resultRecorder
	maxCodeLength int
	now           func() time.Time

	mu      sync.RWMutex
	rooms   map[string]*room
	members map[string]*room
}

type Option func(*RoomManager)

// WithResultRecorder - finished games are handed to recorder after the room lock is released.
func WithResultRecorder(recorder resultRecorder) Option {
	return func(that *RoomManager) {
		that.results = recorder
	}
}

func WithMaxCodeLength(n int) Option {
	return func(that *RoomManager) {
		if n > 0 {
			that.maxCodeLength = n
		}
	}
}

func NewRoomManager(logger *slog.Logger, notifier notifier, opts ...Option) *RoomManager {
	manager := &RoomManager{
		logger:        logger.With("component", "room_manager"),
		notifier:      notifier,
		maxCodeLength: defaultMaxCodeLength,
		now:           time.Now,

		rooms:   make(map[string]*room),
		members: make(map[string]*room),
	}

	for _, opt := range opts {
		opt(manager)
	}

	return manager
}

// JoinRoom - seats connID in the room with the given code, creating the room on first reference.
func (that *RoomManager) JoinRoom(_ context.Context, code, connID string) (entity.Mark, error) {
	log := that.logger.With("method", "JoinRoom", "room", code, "conn", connID)

	if err := that.validateCode(code); err != nil {
		log.Debug("join rejected", "error", err)
		return entity.MarkNone, err
	}

	for {
		r, err := that.reserve(code, connID)
		if err != nil {
			log.Debug("join rejected", "error", err)
			return entity.MarkNone, err
		}

		role, err := r.join(connID, that.notifier)
		if errors.Is(err, errRoomClosed) {
			that.release(connID, r)
			continue
		}

		if err != nil {
			that.release(connID, r)
			log.Debug("join rejected", "error", err)
			return entity.MarkNone, err
		}

		log.Info("player joined", "role", role)

		return role, nil
	}
}

// SubmitMove - applies a move on behalf of connID against the room's authoritative game.
func (that *RoomManager) SubmitMove(ctx context.Context, connID, code string, board, cell int, claimed entity.Mark) error {
	log := that.logger.With("method", "SubmitMove", "room", code, "conn", connID)

	r := that.lookup(code)
	if r == nil {
		log.Debug("move rejected", "error", apperror.ErrRoomNotFound)
		return fmt.Errorf("%w: %s", apperror.ErrRoomNotFound, code)
	}

	result, err := r.move(connID, claimed, board, cell, that.notifier)
	if err != nil {
		if errors.Is(err, apperror.ErrInternal) {
			log.Error("move failed", "error", err)
		} else {
			log.Debug("move rejected", "error", err)
		}

		return err
	}

	log.Info("move accepted", "player", claimed, "board", board, "cell", cell)

	if result.outcome.Finished {
		log.Info("game over", "winner", result.outcome.Winner, "moves", result.snapshot.Moves)
		that.recordResult(ctx, entity.GameResult{
			Room:       code,
			Winner:     result.outcome.Winner,
			Moves:      result.snapshot.Moves,
			FinishedAt: that.now(),
		})
	}

	return nil
}

// Leave - frees whatever seat connID holds. Safe for connections that are in no room.
func (that *RoomManager) Leave(_ context.Context, connID string) {
	log := that.logger.With("method", "Leave", "conn", connID)

	that.mu.Lock()
	r, ok := that.members[connID]
	if ok {
		delete(that.members, connID)
	}
	that.mu.Unlock()

	if !ok {
		return
	}

	log = log.With("room", r.code)

	if !r.leave(connID, that.notifier) {
		log.Info("player left")
		return
	}

	that.mu.Lock()
	if that.rooms[r.code] == r {
		delete(that.rooms, r.code)
	}
	that.mu.Unlock()

	log.Info("room deleted")
}

func (that *RoomManager) Stats() Stats {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return Stats{
		Rooms:   len(that.rooms),
		Players: len(that.members),
	}
}

func (that *RoomManager) validateCode(code string) error {
	if code == "" {
		return fmt.Errorf("%w: empty code", apperror.ErrInvalidRoom)
	}

	if len(code) > that.maxCodeLength {
		return fmt.Errorf("%w: code longer than %d bytes", apperror.ErrInvalidRoom, that.maxCodeLength)
	}

	return nil
}

// reserve - records connID against the room for code, replacing a room that is already closed.
func (that *RoomManager) reserve(code, connID string) (*room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if current, ok := that.members[connID]; ok {
		return nil, fmt.Errorf("%w: %s", apperror.ErrAlreadyJoined, current.code)
	}

	r, ok := that.rooms[code]
	if !ok || r.closed.Load() {
		r = newRoom(code)
		that.rooms[code] = r
	}
	that.members[connID] = r

	return r, nil
}

func (that *RoomManager) release(connID string, r *room) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.members[connID] == r {
		delete(that.members, connID)
	}
}

func (that *RoomManager) lookup(code string) *room {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return that.rooms[code]
}

func (that *RoomManager) recordResult(ctx context.Context, result entity.GameResult) {
	if that.results == nil {
		return
	}

	if err := that.results.Record(ctx, result); err != nil {
		that.logger.Error("failed to record game result", "room", result.Room, "error", err)
	}
}
