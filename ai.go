package main

import "math/rand"

// Difficulty tunes search depth and the chance of a deliberately sloppy move.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) depth() int {
	switch d {
	case DifficultyEasy:
		return 2
	case DifficultyHard:
		return 6
	default:
		return 4
	}
}

func (d Difficulty) randomness() float64 {
	switch d {
	case DifficultyEasy:
		return 0.4
	case DifficultyMedium:
		return 0.15
	default:
		return 0
	}
}

func ValidDifficulty(d Difficulty) bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

const (
	winScore       = 1_000_000
	windowFour     = 10_000
	centerColBonus = 6
)

// scoreWindow rates one 4-cell window from aiColor's point of view.
func scoreWindow(window [ConnectTarget]Cell, aiColor DiscColor) int {
	opponent := OppositeColor(aiColor)
	aiCount, oppCount, emptyCount := 0, 0, 0
	for _, cell := range window {
		switch cell {
		case Cell(aiColor):
			aiCount++
		case Cell(opponent):
			oppCount++
		default:
			emptyCount++
		}
	}

	switch {
	case aiCount == 4:
		return windowFour
	case aiCount == 3 && emptyCount == 1:
		return 80
	case aiCount == 2 && emptyCount == 2:
		return 20
	case oppCount == 3 && emptyCount == 1:
		return -100
	case oppCount == 4:
		return -windowFour
	}
	return 0
}

// evaluateBoard sums the scores of every horizontal, vertical and diagonal
// 4-cell window, plus a small bonus per own disc in the center column.
func evaluateBoard(b Board, aiColor DiscColor) int {
	score := 0

	center := BoardCols / 2
	for row := 0; row < BoardRows; row++ {
		if b[row][center] == Cell(aiColor) {
			score += centerColBonus
		}
	}

	for row := 0; row < BoardRows; row++ {
		for col := 0; col+3 < BoardCols; col++ {
			score += scoreWindow([ConnectTarget]Cell{b[row][col], b[row][col+1], b[row][col+2], b[row][col+3]}, aiColor)
		}
	}
	for row := 0; row+3 < BoardRows; row++ {
		for col := 0; col < BoardCols; col++ {
			score += scoreWindow([ConnectTarget]Cell{b[row][col], b[row+1][col], b[row+2][col], b[row+3][col]}, aiColor)
		}
	}
	for row := 0; row+3 < BoardRows; row++ {
		for col := 0; col+3 < BoardCols; col++ {
			score += scoreWindow([ConnectTarget]Cell{b[row][col], b[row+1][col+1], b[row+2][col+2], b[row+3][col+3]}, aiColor)
		}
	}
	for row := 0; row+3 < BoardRows; row++ {
		for col := 3; col < BoardCols; col++ {
			score += scoreWindow([ConnectTarget]Cell{b[row][col], b[row+1][col-1], b[row+2][col-2], b[row+3][col-3]}, aiColor)
		}
	}

	return score
}

func hasAnyWin(b Board, color DiscColor) bool {
	for row := 0; row < BoardRows; row++ {
		for col := 0; col < BoardCols; col++ {
			if b[row][col] != Cell(color) {
				continue
			}
			if b.FindWinLine(row, col, color) != nil {
				return true
			}
		}
	}
	return false
}

// orderByCenter sorts columns by distance to the center column, closest
// first, which tightens alpha-beta pruning. Insertion sort keeps equal
// distances in their original order so ties stay deterministic.
func orderByCenter(cols []int) []int {
	center := BoardCols / 2
	dist := func(c int) int {
		if c < center {
			return center - c
		}
		return c - center
	}
	ordered := append([]int(nil), cols...)
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && dist(ordered[j]) < dist(ordered[j-1]); j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}
	return ordered
}

func minimax(b Board, depth, alpha, beta int, maximizing bool, aiColor DiscColor) (score int, column int) {
	opponent := OppositeColor(aiColor)

	aiWin := hasAnyWin(b, aiColor)
	oppWin := hasAnyWin(b, opponent)
	valid := b.ValidColumns()

	if depth == 0 || aiWin || oppWin || len(valid) == 0 {
		switch {
		case aiWin:
			return winScore + depth, -1
		case oppWin:
			return -winScore - depth, -1
		}
		return evaluateBoard(b, aiColor), -1
	}

	ordered := orderByCenter(valid)
	bestColumn := ordered[0]

	if maximizing {
		value := -winScore * 10
		for _, col := range ordered {
			next, _, ok := b.ApplyMove(col, aiColor)
			if !ok {
				continue
			}
			result, _ := minimax(next, depth-1, alpha, beta, false, aiColor)
			if result > value {
				value = result
				bestColumn = col
			}
			if value > alpha {
				alpha = value
			}
			if alpha >= beta {
				break
			}
		}
		return value, bestColumn
	}

	value := winScore * 10
	for _, col := range ordered {
		next, _, ok := b.ApplyMove(col, opponent)
		if !ok {
			continue
		}
		result, _ := minimax(next, depth-1, alpha, beta, true, aiColor)
		if result < value {
			value = result
			bestColumn = col
		}
		if value < beta {
			beta = value
		}
		if alpha >= beta {
			break
		}
	}
	return value, bestColumn
}

// PickMove chooses a column for aiColor, or -1 when the board is full.
// Priority: immediate own win, then blocking an immediate opponent win, then
// a difficulty-scaled random move, then alpha-beta minimax. The random source
// is injected so tests can pin down exact choices.
func PickMove(b Board, aiColor DiscColor, difficulty Difficulty, rng *rand.Rand) int {
	valid := b.ValidColumns()
	if len(valid) == 0 {
		return -1
	}

	for _, col := range valid {
		next, row, ok := b.ApplyMove(col, aiColor)
		if ok && next.FindWinLine(row, col, aiColor) != nil {
			return col
		}
	}

	opponent := OppositeColor(aiColor)
	for _, col := range valid {
		next, row, ok := b.ApplyMove(col, opponent)
		if ok && next.FindWinLine(row, col, opponent) != nil {
			return col
		}
	}

	if fuzz := difficulty.randomness(); fuzz > 0 && rng.Float64() < fuzz {
		return valid[rng.Intn(len(valid))]
	}

	_, column := minimax(b, difficulty.depth(), -winScore*10, winScore*10, true, aiColor)
	if column == -1 {
		return valid[0]
	}
	return column
}
