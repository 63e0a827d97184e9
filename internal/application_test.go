package application

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/rocketscienceinc/kinarow/internal/config"
	"github.com/rocketscienceinc/kinarow/internal/entity"
	"github.com/rocketscienceinc/kinarow/internal/usecase"
	"github.com/rocketscienceinc/kinarow/testing/agentstub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	agentstub.RunIfStub()
	os.Exit(m.Run())
}

func TestPlayRound(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("Scenario B ends with a win for player 1", func(t *testing.T) {
		// Given: a 2x2 board with K=2 and two scripted agents
		x := agentstub.New(t, agentstub.Options{Moves: []string{"0.0", "1.0"}})
		o := agentstub.New(t, agentstub.Options{Moves: []string{"0.1", "1.1"}})

		conf := &config.Config{
			Board: config.Board{Dimensions: 2, RunLength: 2},
			Executables: config.Executables{
				Player1: shellquote.Join(x.Command...),
				Player2: shellquote.Join(o.Command...),
			},
			Game: config.Game{TickInterval: 10 * time.Millisecond, MoveTimeout: 10 * time.Second},
		}
		require.NoError(t, conf.Validate())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// When: a headless round is played
		event, err := PlayRound(ctx, logger, conf, usecase.ProcessAgents(logger))

		// Then: X wins with the first column
		require.NoError(t, err)
		require.Equal(t, entity.EventRoundWon, event.Type)
		assert.Equal(t, entity.PlayerX, event.Player.Symbol)
		assert.Equal(t, []string{"0.0", "1.0"}, event.WinningLine)
	})

	t.Run("Agent that exits ends the round with a failure", func(t *testing.T) {
		x := agentstub.New(t, agentstub.Options{Mode: agentstub.ModeExit})
		o := agentstub.New(t, agentstub.Options{Mode: agentstub.ModeSilent})

		conf := &config.Config{
			Board: config.Board{Dimensions: 3, RunLength: 3},
			Executables: config.Executables{
				Player1: shellquote.Join(x.Command...),
				Player2: shellquote.Join(o.Command...),
			},
			Game: config.Game{TickInterval: 10 * time.Millisecond},
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		event, err := PlayRound(ctx, logger, conf, usecase.ProcessAgents(logger))

		require.NoError(t, err)
		require.Equal(t, entity.EventAgentFailure, event.Type)
		assert.Equal(t, entity.PlayerX, event.Agent)
	})

	t.Run("Missing executable fails to enter", func(t *testing.T) {
		conf := &config.Config{
			Board: config.Board{Dimensions: 3, RunLength: 3},
			Executables: config.Executables{
				Player1: "/nonexistent/kinarow-agent",
				Player2: "/nonexistent/kinarow-agent",
			},
			Game: config.Game{TickInterval: 10 * time.Millisecond},
		}

		_, err := PlayRound(context.Background(), logger, conf, usecase.ProcessAgents(logger))

		require.Error(t, err)
	})
}
