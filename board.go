package main

const (
	BoardRows     = 6
	BoardCols     = 7
	ConnectTarget = 4
)

// DiscColor identifies one of the two players on the board.
type DiscColor string

const (
	Red    DiscColor = "red"
	Yellow DiscColor = "yellow"
)

// Cell is either empty or holds a disc of one color.
type Cell string

const CellEmpty Cell = ""

// Board is a value type: copying it copies the whole grid, which is what
// ApplyMove relies on to keep the input board untouched.
type Board [BoardRows][BoardCols]Cell

// WinLine is the inclusive pair of outermost cells of a four-or-more run.
// Coordinates are [row, col].
type WinLine struct {
	From [2]int `json:"from"`
	To   [2]int `json:"to"`
}

func OppositeColor(color DiscColor) DiscColor {
	if color == Red {
		return Yellow
	}
	return Red
}

// ValidColumns returns the columns whose top cell is still empty, in order.
// An empty result means the board is full.
func (b Board) ValidColumns() []int {
	valid := make([]int, 0, BoardCols)
	for col := 0; col < BoardCols; col++ {
		if b[0][col] == CellEmpty {
			valid = append(valid, col)
		}
	}
	return valid
}

// AvailableRow finds the lowest empty row in the column, or -1 if the column
// is out of range or full.
func (b Board) AvailableRow(col int) int {
	if col < 0 || col >= BoardCols {
		return -1
	}
	for row := BoardRows - 1; row >= 0; row-- {
		if b[row][col] == CellEmpty {
			return row
		}
	}
	return -1
}

// ApplyMove drops a disc into the column. It returns the resulting board and
// the landing row, or ok=false when the column is out of range or full. The
// receiver is never mutated.
func (b Board) ApplyMove(col int, color DiscColor) (next Board, row int, ok bool) {
	row = b.AvailableRow(col)
	if row == -1 {
		return b, -1, false
	}
	next = b
	next[row][col] = Cell(color)
	return next, row, true
}

// scanDirection walks from (row, col) along (dr, dc) while cells match color
// and returns how many matched, plus the last matching coordinate.
func (b Board) scanDirection(row, col int, color DiscColor, dr, dc int) (count, endRow, endCol int) {
	r, c := row, col
	endRow, endCol = row, col
	for r >= 0 && r < BoardRows && c >= 0 && c < BoardCols && b[r][c] == Cell(color) {
		count++
		endRow, endCol = r, c
		r += dr
		c += dc
	}
	return count, endRow, endCol
}

// FindWinLine checks whether the disc just played at (row, col) completed a
// run of four or more. It only inspects the four axes through that cell, so
// it must be called right after a move.
func (b Board) FindWinLine(row, col int, color DiscColor) *WinLine {
	directions := [4][2]int{
		{0, 1},  // horizontal
		{1, 0},  // vertical
		{1, 1},  // diagonal down-right
		{1, -1}, // diagonal down-left
	}

	for _, d := range directions {
		dr, dc := d[0], d[1]
		forward, fr, fc := b.scanDirection(row, col, color, dr, dc)
		backward, br, bc := b.scanDirection(row-dr, col-dc, color, -dr, -dc)
		if backward == 0 {
			br, bc = row, col
		}
		if forward+backward >= ConnectTarget {
			return &WinLine{From: [2]int{br, bc}, To: [2]int{fr, fc}}
		}
	}
	return nil
}

// IsDraw reports a full board. Callers check for a win on the final move
// before asking.
func (b Board) IsDraw() bool {
	return len(b.ValidColumns()) == 0
}
