package tictactoe

import "github.com/rocketscienceinc/kinarow/internal/entity"

type direction struct {
	dr, dc int
}

// Directions is scanned in order and a later entry wins a tie between runs of
// equal length. (0, +1) appears twice; the repeat only shifts tie-breaks.
var Directions = [8]direction{
	{-1, -1},
	{-1, 0},
	{0, +1},
	{0, -1},
	{0, +1},
	{+1, -1},
	{+1, 0},
	{+1, +1},
}

// DetermineResult checks the board for a completed run. Players are examined
// in the given order, start cells in row-major order, and the first run of
// exactly RunLength cells is reported. Without a win a full board is a draw.
func DetermineResult(board *entity.Board, order [2]entity.Symbol) entity.RoundResult {
	size := board.Size()
	runLength := board.RunLength()

	for _, symbol := range order {
		for row := 0; row < size; row++ {
			for col := 0; col < size; col++ {
				best := bestRun(board, symbol, entity.Coord{Row: row, Col: col})
				if len(best) == runLength {
					return entity.Win(symbol, best)
				}
			}
		}
	}

	if board.IsFull() {
		return entity.Draw()
	}

	return entity.InProgress()
}

// bestRun returns the longest run of symbol starting at start over all
// directions, or nil when start does not hold symbol.
func bestRun(board *entity.Board, symbol entity.Symbol, start entity.Coord) []entity.Coord {
	if board.Symbol(start) != symbol {
		return nil
	}

	var best []entity.Coord
	for _, dir := range Directions {
		run := runFrom(board, symbol, start, dir)
		if len(run) >= len(best) {
			best = run
		}
	}

	return best
}

// runFrom walks from start for at most RunLength-1 steps and stops at the
// first cell that is off the board or not held by symbol.
func runFrom(board *entity.Board, symbol entity.Symbol, start entity.Coord, dir direction) []entity.Coord {
	runLength := board.RunLength()

	run := make([]entity.Coord, 1, runLength)
	run[0] = start

	current := start
	for step := 1; step < runLength; step++ {
		current = entity.Coord{Row: current.Row + dir.dr, Col: current.Col + dir.dc}
		if !board.InBounds(current) || board.Symbol(current) != symbol {
			break
		}
		run = append(run, current)
	}

	return run
}
