package main

import "testing"

// boardFromRows builds a board from 6 strings of 7 runes, top row first.
// 'r' and 'y' are discs, '.' is empty.
func boardFromRows(t *testing.T, rows [BoardRows]string) Board {
	t.Helper()
	var b Board
	for r, line := range rows {
		if len(line) != BoardCols {
			t.Fatalf("row %d has %d cells, want %d", r, len(line), BoardCols)
		}
		for c, ch := range line {
			switch ch {
			case 'r':
				b[r][c] = Cell(Red)
			case 'y':
				b[r][c] = Cell(Yellow)
			case '.':
			default:
				t.Fatalf("unknown cell %q", ch)
			}
		}
	}
	return b
}

func TestApplyMoveGravity(t *testing.T) {
	var b Board
	for i := 0; i < BoardRows; i++ {
		next, row, ok := b.ApplyMove(3, Red)
		if !ok {
			t.Fatalf("move %d in column 3 rejected", i)
		}
		wantRow := BoardRows - 1 - i
		if row != wantRow {
			t.Fatalf("disc %d landed on row %d, want %d", i, row, wantRow)
		}
		if b[wantRow][3] != CellEmpty {
			t.Fatalf("ApplyMove mutated its input board")
		}
		b = next
	}

	if _, _, ok := b.ApplyMove(3, Yellow); ok {
		t.Fatalf("move into full column accepted")
	}
	if _, _, ok := b.ApplyMove(-1, Yellow); ok {
		t.Fatalf("move into column -1 accepted")
	}
	if _, _, ok := b.ApplyMove(BoardCols, Yellow); ok {
		t.Fatalf("move into column %d accepted", BoardCols)
	}
}

func TestValidColumnsShrink(t *testing.T) {
	var b Board
	if got := len(b.ValidColumns()); got != BoardCols {
		t.Fatalf("empty board has %d valid columns, want %d", got, BoardCols)
	}

	for i := 0; i < BoardRows; i++ {
		b, _, _ = b.ApplyMove(0, Red)
	}
	valid := b.ValidColumns()
	if len(valid) != BoardCols-1 {
		t.Fatalf("got %d valid columns after filling column 0, want %d", len(valid), BoardCols-1)
	}
	for _, col := range valid {
		if col == 0 {
			t.Fatalf("full column 0 still reported valid")
		}
	}
}

func TestFindWinLineHorizontalExtremal(t *testing.T) {
	b := boardFromRows(t, [BoardRows]string{
		".......",
		".......",
		".......",
		".......",
		".......",
		".rrr...",
	})
	next, row, ok := b.ApplyMove(4, Red)
	if !ok || row != 5 {
		t.Fatalf("drop into column 4 failed (row=%d ok=%v)", row, ok)
	}
	line := next.FindWinLine(5, 4, Red)
	if line == nil {
		t.Fatalf("four in a row not detected")
	}
	if line.From != [2]int{5, 1} || line.To != [2]int{5, 4} {
		t.Fatalf("win line %v-%v, want [5 1]-[5 4]", line.From, line.To)
	}
}

func TestFindWinLineFiveInRow(t *testing.T) {
	b := boardFromRows(t, [BoardRows]string{
		".......",
		".......",
		".......",
		".......",
		".......",
		"yy.yy..",
	})
	next, row, ok := b.ApplyMove(2, Yellow)
	if !ok || row != 5 {
		t.Fatalf("drop into column 2 failed")
	}
	line := next.FindWinLine(5, 2, Yellow)
	if line == nil {
		t.Fatalf("five in a row not detected")
	}
	if line.From != [2]int{5, 0} || line.To != [2]int{5, 4} {
		t.Fatalf("win line %v-%v, want [5 0]-[5 4]", line.From, line.To)
	}
}

func TestFindWinLineGapIsNoWin(t *testing.T) {
	b := boardFromRows(t, [BoardRows]string{
		".......",
		".......",
		".......",
		".......",
		".......",
		"rr.rr..",
	})
	if line := b.FindWinLine(5, 4, Red); line != nil {
		t.Fatalf("separated runs reported as win: %v-%v", line.From, line.To)
	}
}

func TestFindWinLineDiagonal(t *testing.T) {
	b := boardFromRows(t, [BoardRows]string{
		".......",
		".......",
		"...y...",
		"..yr...",
		".yrr...",
		"yrry...",
	})
	line := b.FindWinLine(2, 3, Yellow)
	if line == nil {
		t.Fatalf("diagonal four not detected")
	}
	if line.From != [2]int{2, 3} || line.To != [2]int{5, 0} {
		t.Fatalf("win line %v-%v, want [2 3]-[5 0]", line.From, line.To)
	}
}

func TestDrawBoard(t *testing.T) {
	b := boardFromRows(t, [BoardRows]string{
		"ryryryr",
		"ryryryr",
		"yryryry",
		"yryryry",
		"ryryryr",
		"ryryryr",
	})
	if !b.IsDraw() {
		t.Fatalf("full board not reported as draw")
	}
	if got := len(b.ValidColumns()); got != 0 {
		t.Fatalf("full board reports %d valid columns", got)
	}
	for _, color := range []DiscColor{Red, Yellow} {
		if hasAnyWin(b, color) {
			t.Fatalf("draw board has a win for %s", color)
		}
	}
}
