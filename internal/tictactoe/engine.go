package tictactoe

import (
	"fmt"

	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/entity"
)

// Outcome describes what an accepted move did to the game.
type Outcome struct {
	BoardWon bool
	Finished bool
	// Winner is MarkNone when Finished is a draw.
	Winner entity.Mark
}

// MakeTurn - validates and applies a move. A rejected move leaves the game untouched.
func MakeTurn(game *entity.MetaGame, player entity.Mark, board, cell int) (Outcome, error) {
	if err := validateMove(game, player, board, cell); err != nil {
		return Outcome{}, err
	}

	target := &game.Boards[board]
	target.Cells[cell] = player
	game.Moves++

	var outcome Outcome
	if entity.LineWinner(target.Cells) == player {
		target.Won = true
		target.Winner = player
		outcome.BoardWon = true
	}

	game.Forced = nextForcedBoard(game, cell)

	if game.MetaWinner() == player {
		game.Over = true
		game.Winner = player
		outcome.Finished = true
		outcome.Winner = player
		return outcome, nil
	}

	game.Turn = player.Opponent()

	if len(game.PlayableBoards()) == 0 {
		game.Over = true
		outcome.Finished = true
	}

	return outcome, nil
}

// validateMove - checks the preconditions in order; the first failure wins.
func validateMove(game *entity.MetaGame, player entity.Mark, board, cell int) error {
	if game.Over {
		return apperror.ErrGameOver
	}

	if !inRange(board) || !inRange(cell) {
		return fmt.Errorf("%w: board %d cell %d", apperror.ErrInvalidMove, board, cell)
	}

	if game.Turn != player {
		return apperror.ErrNotYourTurn
	}

	target := &game.Boards[board]
	if target.Won {
		return apperror.ErrBoardUnavailable
	}

	if target.Cells[cell] != entity.MarkNone {
		return apperror.ErrCellOccupied
	}

	if game.Forced != entity.NoForcedBoard && game.Forced != board {
		return fmt.Errorf("%w: must play board %d", apperror.ErrBoardNotAllowed, game.Forced)
	}

	return nil
}

// nextForcedBoard - the cell just played selects the opponent's board, unless that board is closed.
func nextForcedBoard(game *entity.MetaGame, cell int) int {
	if game.Boards[cell].IsPlayable() {
		return cell
	}

	return entity.NoForcedBoard
}

func inRange(i int) bool {
	return i >= 0 && i < entity.BoardSize
}
