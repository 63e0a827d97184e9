package usecase

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rocketscienceinc/kinarow/internal/entity"
	"github.com/rocketscienceinc/kinarow/testing/agentstub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	agentstub.RunIfStub()
	os.Exit(m.Run())
}

func TestGameController_ProcessAgents(t *testing.T) {
	// Given: two real agent processes scripted for scenario A
	x := agentstub.New(t, agentstub.Options{Moves: []string{"0.0", "0.1", "0.2"}})
	o := agentstub.New(t, agentstub.Options{Moves: []string{"1.0", "1.1"}})

	events := &eventLog{}
	controller := NewGameController(testLogger(), GameSettings{
		Size:         5,
		RunLength:    3,
		Commands:     [2][]string{x.Command, o.Command},
		TickInterval: 10 * time.Millisecond,
		MoveTimeout:  10 * time.Second,
	}, ProcessAgents(testLogger()), events, &fakeRecorder{})
	t.Cleanup(func() {
		controller.LeaveGame(context.Background())
	})

	// When: the game is entered and the ticker runs
	require.NoError(t, controller.EnterGame(context.Background()))

	// Then: X wins with the top row
	require.Eventually(t, func() bool {
		return controller.State() == StateRoundOver
	}, 10*time.Second, 10*time.Millisecond)

	won := events.Last()
	require.Equal(t, entity.EventRoundWon, won.Type)
	assert.Equal(t, []string{"0.0", "0.1", "0.2"}, won.WinningLine)

	// Then: each agent saw the handshake followed by its opponent's moves
	require.Eventually(t, func() bool {
		return len(o.Received(t)) == 6
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"5", "X", "True", "1.0", "1.1"}, x.Received(t))
	assert.Equal(t, []string{"5", "O", "False", "0.0", "0.1", "0.2"}, o.Received(t))
}
