package entity

import (
	"time"

	"github.com/samber/lo"
)

type ResultStatus string

const (
	StatusInProgress ResultStatus = "in_progress"
	StatusWin        ResultStatus = "win"
	StatusDraw       ResultStatus = "draw"
)

// RoundResult is the outcome of a win/draw check.
type RoundResult struct {
	Status      ResultStatus `json:"status"`
	Winner      Symbol       `json:"winner,omitempty"`
	WinningLine []Coord      `json:"winning_line,omitempty"`
}

func InProgress() RoundResult {
	return RoundResult{Status: StatusInProgress}
}

func Win(winner Symbol, line []Coord) RoundResult {
	return RoundResult{Status: StatusWin, Winner: winner, WinningLine: line}
}

func Draw() RoundResult {
	return RoundResult{Status: StatusDraw}
}

func (that RoundResult) IsOver() bool {
	return that.Status != StatusInProgress
}

// LineNames returns the winning line as tile names.
func (that RoundResult) LineNames() []string {
	return lo.Map(that.WinningLine, func(coord Coord, _ int) string {
		return coord.String()
	})
}

// RoundSnapshot is a read-only copy of the controller state for adapters.
type RoundSnapshot struct {
	ID        string            `json:"id"`
	State     string            `json:"state"`
	Size      int               `json:"size"`
	RunLength int               `json:"run_length"`
	Cells     map[string]Symbol `json:"cells"`
	MoveCount int               `json:"move_count"`
	Players   []Player          `json:"players"`
	Result    RoundResult       `json:"result"`
	TakenAt   time.Time         `json:"taken_at"`
}
