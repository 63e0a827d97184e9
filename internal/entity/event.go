package entity

import (
	"time"

	"github.com/rocketscienceinc/kinarow/internal/apperror"
)

type EventType string

const (
	EventRoundStarted        EventType = "round_started"
	EventActivePlayerChanged EventType = "active_player_changed"
	EventMoveApplied         EventType = "move_applied"
	EventRoundWon            EventType = "round_won"
	EventRoundDraw           EventType = "round_draw"
	EventAgentFailure        EventType = "agent_failure"
	EventRoundLeft           EventType = "round_left"
)

// Event is a notification for the presentation layer. Only the fields
// relevant to Type are set.
type Event struct {
	Type        EventType `json:"type"`
	RoundID     string    `json:"round_id"`
	Player      *Player   `json:"player,omitempty"`
	Move        *Move     `json:"move,omitempty"`
	WinningLine []string  `json:"winning_line,omitempty"`
	Agent       Symbol    `json:"agent,omitempty"`
	Cause       string    `json:"cause,omitempty"`
	At          time.Time `json:"at"`

	// Err carries the typed cause of an agent failure for in-process sinks.
	Err error `json:"-"`
}

// IsRoundOver reports whether the event closes a round.
func (that *Event) IsRoundOver() bool {
	switch that.Type {
	case EventRoundWon, EventRoundDraw:
		return true
	case EventAgentFailure:
		return apperror.IsAgentFatal(that.Err)
	default:
		return false
	}
}
