package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/rocketscienceinc/kinarow/internal/apperror"
	"github.com/rocketscienceinc/kinarow/internal/entity"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type handshake struct {
	size   int
	active bool
}

// fakeAgent plays a scripted list of moves and records everything it is sent.
type fakeAgent struct {
	symbol entity.Symbol

	startErr     error
	handshakeErr error
	sendErr      error

	moves   chan string
	reading chan struct{}
	closed  chan struct{}

	mu        sync.Mutex
	sent      []string
	handshake *handshake
	stopCalls int
}

func newFakeAgent(symbol entity.Symbol, moves ...string) *fakeAgent {
	agent := &fakeAgent{
		symbol:  symbol,
		moves:   make(chan string, len(moves)+16),
		reading: make(chan struct{}, 16),
		closed:  make(chan struct{}),
	}

	for _, move := range moves {
		agent.moves <- move
	}

	return agent
}

func (that *fakeAgent) Symbol() entity.Symbol {
	return that.symbol
}

func (that *fakeAgent) Start(_ context.Context) error {
	return that.startErr
}

func (that *fakeAgent) Handshake(_ context.Context, size int, active bool) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.handshake = &handshake{size: size, active: active}

	return that.handshakeErr
}

func (that *fakeAgent) SendLine(text string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.sendErr != nil {
		return that.sendErr
	}

	that.sent = append(that.sent, text)

	return nil
}

func (that *fakeAgent) ReadLine(ctx context.Context) (string, error) {
	select {
	case that.reading <- struct{}{}:
	default:
	}

	select {
	case move, ok := <-that.moves:
		if !ok {
			return "", fmt.Errorf("%w: eof", apperror.ErrAgentDisconnected)
		}
		return move, nil
	case <-that.closed:
		return "", fmt.Errorf("%w: stopped", apperror.ErrAgentDisconnected)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", apperror.ErrAgentTimeout
		}
		return "", ctx.Err()
	}
}

func (that *fakeAgent) Stop() {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.stopCalls == 0 {
		close(that.closed)
	}
	that.stopCalls++
}

func (that *fakeAgent) Sent() []string {
	that.mu.Lock()
	defer that.mu.Unlock()

	return append([]string(nil), that.sent...)
}

func (that *fakeAgent) Handshook() *handshake {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.handshake
}

func (that *fakeAgent) Stopped() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.stopCalls > 0
}

type eventLog struct {
	mu     sync.Mutex
	events []entity.Event
}

func (that *eventLog) Notify(_ context.Context, event entity.Event) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.events = append(that.events, event)
}

func (that *eventLog) All() []entity.Event {
	that.mu.Lock()
	defer that.mu.Unlock()

	return append([]entity.Event(nil), that.events...)
}

func (that *eventLog) Types() []entity.EventType {
	events := that.All()

	types := make([]entity.EventType, 0, len(events))
	for _, event := range events {
		types = append(types, event.Type)
	}

	return types
}

func (that *eventLog) Last() entity.Event {
	events := that.All()
	if len(events) == 0 {
		return entity.Event{}
	}

	return events[len(events)-1]
}

type rejection struct {
	symbol entity.Symbol
	reason string
}

type fakeRecorder struct {
	mu       sync.Mutex
	waits    int
	rejected []rejection
}

func (that *fakeRecorder) ObserveMoveWait(_ entity.Symbol, _ time.Duration) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.waits++
}

func (that *fakeRecorder) IncRejected(symbol entity.Symbol, reason string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.rejected = append(that.rejected, rejection{symbol: symbol, reason: reason})
}

func (that *fakeRecorder) Rejected() []rejection {
	that.mu.Lock()
	defer that.mu.Unlock()

	return append([]rejection(nil), that.rejected...)
}

type fixture struct {
	controller *GameController
	x, o       *fakeAgent
	events     *eventLog
	recorder   *fakeRecorder
}

// newFixture wires a controller to two fake agents. The ticker interval is
// long enough that tests drive every tick by hand.
func newFixture(t *testing.T, settings GameSettings, x, o *fakeAgent) *fixture {
	t.Helper()

	if settings.TickInterval == 0 {
		settings.TickInterval = time.Hour
	}

	f := &fixture{
		x:        x,
		o:        o,
		events:   &eventLog{},
		recorder: &fakeRecorder{},
	}

	factory := func(symbol entity.Symbol, _ []string) PlayerAgent {
		if symbol == entity.PlayerX {
			return f.x
		}
		return f.o
	}

	f.controller = NewGameController(testLogger(), settings, factory, f.events, f.recorder)
	t.Cleanup(func() {
		f.controller.LeaveGame(context.Background())
	})

	return f
}

func (that *fixture) enter(t *testing.T) {
	t.Helper()

	require.NoError(t, that.controller.EnterGame(context.Background()))
	require.Equal(t, StateAwaitingMove, that.controller.State())
}

func (that *fixture) tick(t *testing.T, times int) {
	t.Helper()

	for i := 0; i < times; i++ {
		require.True(t, that.controller.Tick(context.Background()))
	}
}
