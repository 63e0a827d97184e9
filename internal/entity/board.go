package entity

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rocketscienceinc/kinarow/internal/apperror"
)

const DefaultRunLength = 5

// Coord addresses a single board cell.
type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// String returns the tile name agents use on the wire, e.g. "3.14".
func (that Coord) String() string {
	return strconv.Itoa(that.Row) + "." + strconv.Itoa(that.Col)
}

// ParseCoord parses a canonical "row.col" tile name. Padded or signed numbers
// are not canonical and are rejected.
func ParseCoord(name string) (Coord, bool) {
	rowText, colText, ok := strings.Cut(name, ".")
	if !ok {
		return Coord{}, false
	}

	row, err := strconv.Atoi(rowText)
	if err != nil {
		return Coord{}, false
	}

	col, err := strconv.Atoi(colText)
	if err != nil {
		return Coord{}, false
	}

	coord := Coord{Row: row, Col: col}
	if coord.String() != name {
		return Coord{}, false
	}

	return coord, true
}

// Move is a single placement made by a player.
type Move struct {
	Coord  Coord  `json:"coord"`
	Symbol Symbol `json:"symbol"`
}

// Board is the N×N grid of a round together with its move history.
type Board struct {
	size      int
	runLength int
	cells     map[Coord]Symbol
	moves     []Move
}

func NewBoard(size, runLength int) (*Board, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: size %d", apperror.ErrInvalidBoard, size)
	}

	if runLength < 1 || runLength > size {
		return nil, fmt.Errorf("%w: run length %d on a %dx%d board", apperror.ErrInvalidBoard, runLength, size, size)
	}

	return &Board{
		size:      size,
		runLength: runLength,
		cells:     make(map[Coord]Symbol, size*size),
	}, nil
}

func (that *Board) Size() int {
	return that.size
}

// RunLength is the number of consecutive symbols needed to win.
func (that *Board) RunLength() int {
	return that.runLength
}

func (that *Board) MoveCount() int {
	return len(that.cells)
}

func (that *Board) InBounds(coord Coord) bool {
	return coord.Row >= 0 && coord.Row < that.size && coord.Col >= 0 && coord.Col < that.size
}

// Symbol returns the symbol at coord, or EmptyCell.
func (that *Board) Symbol(coord Coord) Symbol {
	return that.cells[coord]
}

// Lookup resolves a tile name to a cell of this board.
func (that *Board) Lookup(name string) (Coord, bool) {
	coord, ok := ParseCoord(name)
	if !ok || !that.InBounds(coord) {
		return Coord{}, false
	}

	return coord, true
}

// PlaceMove records symbol at (row, col). A rejected move leaves the board untouched.
func (that *Board) PlaceMove(row, col int, symbol Symbol) error {
	coord := Coord{Row: row, Col: col}

	if !that.InBounds(coord) {
		return fmt.Errorf("%w: %s", apperror.ErrOutOfBounds, coord)
	}

	if _, ok := that.cells[coord]; ok {
		return fmt.Errorf("%w: %s", apperror.ErrCellOccupied, coord)
	}

	that.cells[coord] = symbol
	that.moves = append(that.moves, Move{Coord: coord, Symbol: symbol})

	return nil
}

func (that *Board) IsFull() bool {
	return len(that.cells) == that.size*that.size
}

// Reset clears every cell and the history.
func (that *Board) Reset() {
	clear(that.cells)
	that.moves = nil
}

// Moves returns a copy of the move history in play order.
func (that *Board) Moves() []Move {
	moves := make([]Move, len(that.moves))
	copy(moves, that.moves)

	return moves
}

// Cells returns the occupied cells keyed by tile name.
func (that *Board) Cells() map[string]Symbol {
	cells := make(map[string]Symbol, len(that.cells))
	for coord, symbol := range that.cells {
		cells[coord.String()] = symbol
	}

	return cells
}
