package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rocketscienceinc/kinarow/internal/apperror"
	"github.com/rocketscienceinc/kinarow/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGame struct {
	mu       sync.Mutex
	enterErr error
	entered  int
	left     int
	resets   int
	state    string
	scores   [2]int
}

func (that *fakeGame) EnterGame(_ context.Context) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.enterErr != nil {
		return that.enterErr
	}

	that.entered++
	that.state = "awaiting_move"

	return nil
}

func (that *fakeGame) LeaveGame(_ context.Context) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.left++
	that.state = "idle"
}

func (that *fakeGame) ResetScores() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.resets++
	that.scores = [2]int{}
}

func (that *fakeGame) counts() (int, int) {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.entered, that.left
}

func (that *fakeGame) Snapshot() entity.RoundSnapshot {
	that.mu.Lock()
	defer that.mu.Unlock()

	return entity.RoundSnapshot{
		ID:        "round-1",
		State:     that.state,
		Size:      5,
		RunLength: 3,
		Players: []entity.Player{
			{Symbol: entity.PlayerX, Score: that.scores[0]},
			{Symbol: entity.PlayerO, Score: that.scores[1]},
		},
	}
}

type response struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

func startServer(t *testing.T, game *fakeGame) (*Hub, *websocket.Conn) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(logger)
	server := httptest.NewServer(New(logger, game, hub).Handler())
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
	})

	require.Eventually(t, func() bool {
		return hub.Len() == 1
	}, 5*time.Second, 5*time.Millisecond)

	return hub, conn
}

func request(t *testing.T, conn *websocket.Conn, action string) response {
	t.Helper()

	require.NoError(t, conn.WriteJSON(Message{Action: action}))

	return receive(t, conn)
}

func receive(t *testing.T, conn *websocket.Conn) response {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var resp response
	require.NoError(t, conn.ReadJSON(&resp))

	return resp
}

func TestServer_Actions(t *testing.T) {
	t.Run("Enter and leave forward to the game", func(t *testing.T) {
		// Given: a connected presentation client
		game := &fakeGame{state: "idle"}
		_, conn := startServer(t, game)

		// When: the client enters the game
		resp := request(t, conn, actionGameEnter)

		// Then: the game is entered and the round state comes back
		require.Equal(t, actionGameEnter, resp.Action)

		var payload ResponsePayload
		require.NoError(t, json.Unmarshal(resp.Payload, &payload))
		require.NotNil(t, payload.Round)
		assert.Equal(t, "awaiting_move", payload.Round.State)

		// When: the client leaves
		resp = request(t, conn, actionGameLeave)

		// Then: the game is left
		require.NoError(t, json.Unmarshal(resp.Payload, &payload))
		assert.Equal(t, "idle", payload.Round.State)
		entered, left := game.counts()
		assert.Equal(t, 1, entered)
		assert.Equal(t, 1, left)
	})

	t.Run("Reset scores forwards to the game", func(t *testing.T) {
		// Given: a game where X has won twice and O once
		game := &fakeGame{state: "round_over", scores: [2]int{2, 1}}
		_, conn := startServer(t, game)

		// When: the client resets the scores
		resp := request(t, conn, actionScoresReset)

		// Then: both scores are zero and the round is untouched
		require.Equal(t, actionScoresReset, resp.Action)

		var payload ResponsePayload
		require.NoError(t, json.Unmarshal(resp.Payload, &payload))
		require.NotNil(t, payload.Round)
		require.Len(t, payload.Round.Players, 2)
		assert.Zero(t, payload.Round.Players[0].Score)
		assert.Zero(t, payload.Round.Players[1].Score)
		assert.Equal(t, "round_over", payload.Round.State)

		game.mu.Lock()
		defer game.mu.Unlock()
		assert.Equal(t, 1, game.resets)
		entered, left := game.entered, game.left
		assert.Zero(t, entered)
		assert.Zero(t, left)
	})

	t.Run("Enter failure is reported", func(t *testing.T) {
		_, conn := startServer(t, &fakeGame{enterErr: apperror.ErrGameAlreadyRunning})

		resp := request(t, conn, actionGameEnter)

		require.Equal(t, actionError, resp.Action)
		assert.Contains(t, string(resp.Payload), apperror.ErrGameAlreadyRunning.Error())
	})

	t.Run("Unknown action", func(t *testing.T) {
		_, conn := startServer(t, &fakeGame{})

		resp := request(t, conn, "game:turn")

		require.Equal(t, actionError, resp.Action)
		assert.Contains(t, string(resp.Payload), "unknown action")
	})
}

func TestHub_Notify(t *testing.T) {
	// Given: a connected client
	hub, conn := startServer(t, &fakeGame{})

	event := entity.Event{
		Type:        entity.EventRoundWon,
		RoundID:     "round-1",
		Player:      entity.NewPlayer(entity.PlayerX, "Player 1"),
		WinningLine: []string{"0.0", "0.1", "0.2"},
	}

	// When: the hub broadcasts an event
	require.NoError(t, hub.Notify(context.Background(), event))

	// Then: the client receives it as an event message
	resp := receive(t, conn)
	require.Equal(t, actionEvent, resp.Action)

	var received entity.Event
	require.NoError(t, json.Unmarshal(resp.Payload, &received))
	assert.Equal(t, entity.EventRoundWon, received.Type)
	assert.Equal(t, []string{"0.0", "0.1", "0.2"}, received.WinningLine)
	assert.Equal(t, entity.PlayerX, received.Player.Symbol)

	// When: the hub closes
	hub.Close()

	// Then: the client is disconnected
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}
