package entity

import (
	"errors"
	"fmt"
	"testing"

	"github.com/rocketscienceinc/kinarow/internal/apperror"
	"github.com/stretchr/testify/assert"
)

func TestPlayer_MarkWinner(t *testing.T) {
	// Given: a player with a score from an earlier round
	player := NewPlayer(PlayerX, "Player 1")
	player.Score = 2

	// When: the player is marked as winner twice in the same round
	first := player.MarkWinner()
	second := player.MarkWinner()

	// Then: the score is credited exactly once
	assert.True(t, first)
	assert.False(t, second)
	assert.Equal(t, 3, player.Score)
	assert.True(t, player.IsWinner)

	// When: the round is reset
	player.ResetRound()

	// Then: the flag clears and the score survives
	assert.False(t, player.IsWinner)
	assert.Equal(t, 3, player.Score)
}

func TestEvent_IsRoundOver(t *testing.T) {
	cases := []struct {
		name  string
		event Event
		over  bool
	}{
		{name: "win", event: Event{Type: EventRoundWon}, over: true},
		{name: "draw", event: Event{Type: EventRoundDraw}, over: true},
		{name: "move", event: Event{Type: EventMoveApplied}},
		{
			name:  "disconnect",
			event: Event{Type: EventAgentFailure, Err: fmt.Errorf("read: %w", apperror.ErrAgentDisconnected)},
			over:  true,
		},
		{name: "malformed move", event: Event{Type: EventAgentFailure, Err: apperror.ErrMalformedMove}},
		{name: "unknown failure", event: Event{Type: EventAgentFailure, Err: errors.New("boom")}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.over, tc.event.IsRoundOver())
		})
	}
}
