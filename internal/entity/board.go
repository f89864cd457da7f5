package entity

// BoardSize is the number of cells in a sub-board and the number of sub-boards in a game.
const BoardSize = 9

var WinCombos = [][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// SubBoard is one 3x3 board of the meta-board. Cells are frozen once Won is set.
type SubBoard struct {
	Cells  [BoardSize]Mark
	Won    bool
	Winner Mark
}

// LineWinner - returns the mark holding any of the eight lines, or MarkNone.
func LineWinner(cells [BoardSize]Mark) Mark {
	for _, combo := range WinCombos {
		a, b, c := cells[combo[0]], cells[combo[1]], cells[combo[2]]
		if a != MarkNone && a == b && b == c {
			return a
		}
	}

	return MarkNone
}

func (that *SubBoard) IsFull() bool {
	for _, cell := range that.Cells {
		if cell == MarkNone {
			return false
		}
	}

	return true
}

// IsPlayable - a board accepts moves while it is not won and has an empty cell.
func (that *SubBoard) IsPlayable() bool {
	return !that.Won && !that.IsFull()
}

func (that *SubBoard) Filled() int {
	n := 0
	for _, cell := range that.Cells {
		if cell != MarkNone {
			n++
		}
	}

	return n
}
