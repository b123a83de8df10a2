package domain

import "strconv"

// Cell represents a board cell state.
type Cell uint8

const (
	Empty Cell = iota
	X
	O
)

func (c Cell) String() string {
	switch c {
	case X:
		return "X"
	case O:
		return "O"
	default:
		return ""
	}
}

// Board is a fixed 3x3 board stored row-major.
type Board [9]Cell

var lines = [8][3]int{
	// rows
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	// cols
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	// diags
	{0, 4, 8}, {2, 4, 6},
}

// Winner returns the mark of the first completed line, in row, column,
// diagonal order.
func Winner(b Board) (Cell, bool) {
	for _, ln := range lines {
		a := b[ln[0]]
		if a != Empty && a == b[ln[1]] && a == b[ln[2]] {
			return a, true
		}
	}
	return Empty, false
}

func (b Board) Winner() (Cell, bool) { return Winner(b) }

// Game is an immutable match value: the full history of boards plus the step
// currently displayed. Play and JumpTo return new values and never touch the
// receiver's history.
type Game struct {
	history []Board
	step    int
}

// New returns a new game at the empty board with X to move.
func New() Game {
	return Game{history: []Board{{}}}
}

// Play marks cell for the side to move at the current step. Moves on a
// decided board, onto an occupied cell or outside 0..8 are ignored and the
// receiver is returned as is. Any history after the current step is dropped.
func (g Game) Play(cell int) Game {
	if cell < 0 || cell >= len(Board{}) {
		return g
	}
	if len(g.history) == 0 {
		g = New()
	}
	cur := g.Current()
	if _, won := Winner(cur); won || cur[cell] != Empty {
		return g
	}
	cur[cell] = g.Next()

	h := make([]Board, g.step+2)
	copy(h, g.history[:g.step+1])
	h[g.step+1] = cur
	return Game{history: h, step: g.step + 1}
}

// JumpTo moves the displayed step without changing the history. Steps outside
// the history are ignored.
func (g Game) JumpTo(step int) Game {
	if step < 0 || step >= g.Len() {
		return g
	}
	return Game{history: g.history, step: step}
}

// Current returns the board at the displayed step.
func (g Game) Current() Board {
	if len(g.history) == 0 {
		return Board{}
	}
	return g.history[g.step]
}

// Next is X on even steps and O on odd ones.
func (g Game) Next() Cell {
	if g.step%2 == 0 {
		return X
	}
	return O
}

func (g Game) Step() int { return g.step }

// Len is the number of history entries, at least 1 for a game from New.
func (g Game) Len() int { return len(g.history) }

// History returns a copy of all boards from game start to the latest move.
func (g Game) History() []Board {
	return append([]Board(nil), g.history...)
}

// Over reports whether the displayed board has a winner.
func (g Game) Over() bool {
	_, won := Winner(g.Current())
	return won
}

// Status is the line shown above the move list.
func (g Game) Status() string {
	if w, ok := Winner(g.Current()); ok {
		return "Winner: " + w.String()
	}
	return "Next player: " + g.Next().String()
}

// Move is one jump target in the move list.
type Move struct {
	Step    int
	Label   string
	Current bool
}

// MoveLabel names the jump target for step.
func MoveLabel(step int) string {
	if step == 0 {
		return "Go to game start"
	}
	return "Go to move #" + strconv.Itoa(step)
}

// Moves lists every step in the history as a jump target.
func (g Game) Moves() []Move {
	out := make([]Move, g.Len())
	for i := range out {
		out[i] = Move{Step: i, Label: MoveLabel(i), Current: i == g.step}
	}
	return out
}
