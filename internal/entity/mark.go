package entity

// Mark is the symbol a player places on the board. The zero value is an empty cell.
type Mark string

const (
	MarkNone Mark = ""
	MarkX    Mark = "X"
	MarkO    Mark = "O"
)

// ParseMark - accepts only X or O.
func ParseMark(s string) (Mark, bool) {
	switch Mark(s) {
	case MarkX:
		return MarkX, true
	case MarkO:
		return MarkO, true
	default:
		return MarkNone, false
	}
}

// Opponent - returns the other player's mark. MarkNone has no opponent.
func (that Mark) Opponent() Mark {
	switch that {
	case MarkX:
		return MarkO
	case MarkO:
		return MarkX
	default:
		return MarkNone
	}
}

// Index - X sits at 0, O at 1. Used for seat arrays.
func (that Mark) Index() int {
	if that == MarkO {
		return 1
	}
	return 0
}

func (that Mark) ptr() *Mark {
	if that == MarkNone {
		return nil
	}

	m := that
	return &m
}
