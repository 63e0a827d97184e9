package websocket

import (
	"context"
	"fmt"
)

// handleEnter starts a round; progress arrives as broadcast events.
func (that *Server) handleEnter(ctx context.Context, c *client, message *Message) error {
	if err := that.uGame.EnterGame(ctx); err != nil {
		return fmt.Errorf("failed to enter game: %w", err)
	}

	return that.handleRoundState(ctx, c, message)
}

func (that *Server) handleLeave(ctx context.Context, c *client, message *Message) error {
	that.uGame.LeaveGame(ctx)

	return that.handleRoundState(ctx, c, message)
}

// handleResetScores zeroes both scores; the round itself is left alone.
func (that *Server) handleResetScores(ctx context.Context, c *client, message *Message) error {
	that.uGame.ResetScores()

	return that.handleRoundState(ctx, c, message)
}

func (that *Server) handleRoundState(_ context.Context, c *client, message *Message) error {
	round := that.uGame.Snapshot()

	that.sendMessage(c, message.Action, ResponsePayload{Round: &round})

	return nil
}
