package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rocketscienceinc/kinarow/internal/agent"
	"github.com/rocketscienceinc/kinarow/internal/apperror"
	"github.com/rocketscienceinc/kinarow/internal/entity"
	"github.com/rocketscienceinc/kinarow/internal/tictactoe"
)

const DefaultTickInterval = 500 * time.Millisecond

type State int

const (
	StateIdle State = iota
	StateHandshaking
	StateAwaitingMove
	StateApplying
	StateRoundOver
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHandshaking:
		return "handshaking"
	case StateAwaitingMove:
		return "awaiting_move"
	case StateApplying:
		return "applying"
	case StateRoundOver:
		return "round_over"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// PlayerAgent is the controller's view of one external decision process.
type PlayerAgent interface {
	Symbol() entity.Symbol
	Start(ctx context.Context) error
	Handshake(ctx context.Context, size int, active bool) error
	SendLine(text string) error
	ReadLine(ctx context.Context) (string, error)
	Stop()
}

type AgentFactory func(symbol entity.Symbol, command []string) PlayerAgent

// ProcessAgents returns a factory that launches real child processes.
func ProcessAgents(logger *slog.Logger) AgentFactory {
	return func(symbol entity.Symbol, command []string) PlayerAgent {
		return agent.New(logger, symbol, command)
	}
}

type eventNotifier interface {
	Notify(ctx context.Context, event entity.Event)
}

type moveRecorder interface {
	ObserveMoveWait(symbol entity.Symbol, wait time.Duration)
	IncRejected(symbol entity.Symbol, reason string)
}

type GameSettings struct {
	Size      int
	RunLength int
	// Commands holds the argv of player 1 (X) and player 2 (O).
	Commands     [2][]string
	TickInterval time.Duration
	// MoveTimeout bounds each handshake ack and move read; zero waits forever.
	MoveTimeout time.Duration
}

var order = [2]entity.Symbol{entity.PlayerX, entity.PlayerO}

// GameController runs rounds between two agents. A single ticker goroutine
// drives the round; Tick never overlaps itself, and the state mutex is not
// held while talking to an agent.
type GameController struct {
	logger   *slog.Logger
	settings GameSettings
	newAgent AgentFactory
	notifier eventNotifier
	recorder moveRecorder

	tickMu sync.Mutex

	mu         sync.Mutex
	state      State
	generation uint64
	roundID    string
	board      *entity.Board
	players    [2]*entity.Player
	agents     [2]PlayerAgent
	active     int
	result     entity.RoundResult
	stopLoop   context.CancelFunc
}

func NewGameController(
	logger *slog.Logger,
	settings GameSettings,
	newAgent AgentFactory,
	notifier eventNotifier,
	recorder moveRecorder,
) *GameController {
	if settings.TickInterval <= 0 {
		settings.TickInterval = DefaultTickInterval
	}

	if settings.RunLength == 0 {
		settings.RunLength = entity.DefaultRunLength
	}

	players := [2]*entity.Player{
		entity.NewPlayer(entity.PlayerX, "Player 1"),
		entity.NewPlayer(entity.PlayerO, "Player 2"),
	}
	players[0].Active = true

	return &GameController{
		logger:   logger.With("component", "game_controller"),
		settings: settings,
		newAgent: newAgent,
		notifier: notifier,
		recorder: recorder,
		players:  players,
		result:   entity.InProgress(),
	}
}

func (that *GameController) State() State {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.state
}

// EnterGame starts both agents, runs their handshakes and arms the ticker.
// Player 1 (X) moves first. On failure every started agent is stopped and
// the controller is back in Idle.
func (that *GameController) EnterGame(ctx context.Context) error {
	log := that.logger.With("method", "EnterGame")

	that.mu.Lock()
	if that.state != StateIdle {
		state := that.state
		that.mu.Unlock()
		return fmt.Errorf("%w: state %s", apperror.ErrGameAlreadyRunning, state)
	}

	board, err := entity.NewBoard(that.settings.Size, that.settings.RunLength)
	if err != nil {
		that.mu.Unlock()
		return fmt.Errorf("failed to create board: %w", err)
	}

	that.generation++
	generation := that.generation
	that.state = StateHandshaking
	that.roundID = uuid.NewString()
	that.board = board
	that.result = entity.InProgress()
	that.active = 0
	for i, player := range that.players {
		player.ResetRound()
		player.Active = i == 0
	}
	for i, symbol := range order {
		that.agents[i] = that.newAgent(symbol, that.settings.Commands[i])
	}
	agents := that.agents
	roundID := that.roundID
	that.mu.Unlock()

	log.Info("entering game", "round_id", roundID, "size", board.Size(), "run_length", board.RunLength())

	group, groupCtx := errgroup.WithContext(ctx)
	for i, playerAgent := range agents {
		i, playerAgent := i, playerAgent
		group.Go(func() error {
			return that.prepareAgent(groupCtx, playerAgent, i == 0)
		})
	}

	err = group.Wait()

	that.mu.Lock()
	if generation != that.generation {
		that.mu.Unlock()
		stopAll(agents)

		if err == nil {
			err = apperror.ErrRoundLeft
		}

		return fmt.Errorf("failed to enter game: %w", err)
	}

	if err != nil {
		that.state = StateIdle
		that.agents = [2]PlayerAgent{}
		that.mu.Unlock()

		stopAll(agents)
		log.Error("failed to enter game", "round_id", roundID, "error", err)

		return fmt.Errorf("failed to enter game: %w", err)
	}

	loopCtx, stopLoop := context.WithCancel(context.WithoutCancel(ctx))
	that.stopLoop = stopLoop
	that.state = StateAwaitingMove

	events := []entity.Event{
		that.newEvent(entity.EventRoundStarted),
		that.playerEvent(entity.EventActivePlayerChanged, that.active),
	}
	that.mu.Unlock()

	go that.loop(loopCtx)

	that.dispatch(ctx, events)

	return nil
}

func (that *GameController) prepareAgent(ctx context.Context, playerAgent PlayerAgent, active bool) error {
	if err := playerAgent.Start(ctx); err != nil {
		return fmt.Errorf("agent %s: %w", playerAgent.Symbol(), err)
	}

	if that.settings.MoveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, that.settings.MoveTimeout)
		defer cancel()
	}

	if err := playerAgent.Handshake(ctx, that.settings.Size, active); err != nil {
		return fmt.Errorf("agent %s: %w", playerAgent.Symbol(), err)
	}

	return nil
}

func (that *GameController) loop(ctx context.Context) {
	ticker := time.NewTicker(that.settings.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			that.Tick(ctx)
		}
	}
}

// Tick reads one move from the active agent, relays it verbatim to the
// other agent and applies it. It reports false when skipped because another
// tick was still running.
func (that *GameController) Tick(ctx context.Context) bool {
	log := that.logger.With("method", "Tick")

	if !that.tickMu.TryLock() {
		log.Debug("previous tick still running")
		return false
	}
	defer that.tickMu.Unlock()

	that.mu.Lock()
	if that.state != StateAwaitingMove {
		that.mu.Unlock()
		return true
	}
	generation := that.generation
	mover := that.active
	reader, relay := that.agents[mover], that.agents[1-mover]
	that.mu.Unlock()

	raw, failed, err := that.exchange(ctx, reader, relay)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return true
		}

		that.failRound(ctx, generation, failed, err)
		return true
	}

	that.apply(ctx, generation, mover, raw)

	return true
}

// exchange reads the next move and relays it. On failure it also returns the
// agent whose stream broke.
func (that *GameController) exchange(ctx context.Context, reader, relay PlayerAgent) (string, PlayerAgent, error) {
	readCtx := ctx
	if that.settings.MoveTimeout > 0 {
		var cancel context.CancelFunc
		readCtx, cancel = context.WithTimeout(ctx, that.settings.MoveTimeout)
		defer cancel()
	}

	started := time.Now()
	raw, err := reader.ReadLine(readCtx)
	that.recorder.ObserveMoveWait(reader.Symbol(), time.Since(started))

	if err != nil {
		return "", reader, fmt.Errorf("read move: %w", err)
	}

	if err = relay.SendLine(raw); err != nil {
		return "", relay, fmt.Errorf("relay move: %w", err)
	}

	return raw, nil, nil
}

// NormalizeMove trims surrounding whitespace, drops inner spaces and accepts
// a comma as the separator.
func NormalizeMove(raw string) string {
	return strings.ReplaceAll(strings.ReplaceAll(strings.TrimSpace(raw), " ", ""), ",", ".")
}

func (that *GameController) apply(ctx context.Context, generation uint64, mover int, raw string) {
	log := that.logger.With("method", "apply")

	that.mu.Lock()
	if generation != that.generation || that.state != StateAwaitingMove {
		that.mu.Unlock()
		return
	}
	that.state = StateApplying

	player := that.players[mover]
	name := NormalizeMove(raw)

	coord, ok := that.board.Lookup(name)
	if !ok {
		that.state = StateAwaitingMove
		cause := fmt.Errorf("%w: %q", apperror.ErrMalformedMove, raw)
		event := that.newEvent(entity.EventAgentFailure)
		event.Agent = player.Symbol
		event.Cause = cause.Error()
		event.Err = cause
		that.mu.Unlock()

		log.Warn("malformed move", "round_id", event.RoundID, "symbol", player.Symbol, "move", raw)
		that.dispatch(ctx, []entity.Event{event})

		return
	}

	if err := that.board.PlaceMove(coord.Row, coord.Col, player.Symbol); err != nil {
		that.state = StateAwaitingMove
		that.mu.Unlock()

		log.Warn("move rejected", "symbol", player.Symbol, "move", name, "error", err)
		that.recorder.IncRejected(player.Symbol, "occupied")

		return
	}

	move := entity.Move{Coord: coord, Symbol: player.Symbol}
	applied := that.playerEvent(entity.EventMoveApplied, mover)
	applied.Move = &move
	that.players[mover].Active = false
	that.players[1-mover].Active = true
	that.active = 1 - mover
	events := []entity.Event{applied, that.playerEvent(entity.EventActivePlayerChanged, that.active)}

	result := tictactoe.DetermineResult(that.board, order)
	that.result = result

	switch result.Status {
	case entity.StatusWin:
		winner := indexOf(result.Winner)
		that.players[winner].MarkWinner()
		that.endRound()

		won := that.playerEvent(entity.EventRoundWon, winner)
		won.WinningLine = result.LineNames()
		events = append(events, won)

		log.Info("round won", "round_id", that.roundID, "winner", result.Winner, "line", won.WinningLine)
	case entity.StatusDraw:
		that.endRound()
		events = append(events, that.newEvent(entity.EventRoundDraw))

		log.Info("round drawn", "round_id", that.roundID)
	default:
		that.state = StateAwaitingMove
	}
	that.mu.Unlock()

	that.dispatch(ctx, events)
}

func (that *GameController) failRound(ctx context.Context, generation uint64, failed PlayerAgent, err error) {
	log := that.logger.With("method", "failRound")

	that.mu.Lock()
	if generation != that.generation || that.state != StateAwaitingMove {
		that.mu.Unlock()
		return
	}

	that.endRound()
	agents := that.agents

	event := that.newEvent(entity.EventAgentFailure)
	event.Agent = failed.Symbol()
	event.Cause = err.Error()
	event.Err = err
	that.mu.Unlock()

	log.Error("agent failed, ending round", "round_id", event.RoundID, "symbol", event.Agent, "error", err)

	stopAll(agents)
	that.dispatch(ctx, []entity.Event{event})
}

// endRound must be called with mu held.
func (that *GameController) endRound() {
	that.state = StateRoundOver

	if that.stopLoop != nil {
		that.stopLoop()
	}
}

// LeaveGame tears the round down from any state. Scores survive; a tick in
// flight notices the change and does nothing.
func (that *GameController) LeaveGame(ctx context.Context) {
	log := that.logger.With("method", "LeaveGame")

	that.mu.Lock()
	if that.state == StateIdle {
		that.mu.Unlock()
		return
	}

	that.generation++
	if that.stopLoop != nil {
		that.stopLoop()
		that.stopLoop = nil
	}

	if that.board != nil {
		that.board.Reset()
	}

	for _, player := range that.players {
		player.ResetRound()
	}

	agents := that.agents
	that.agents = [2]PlayerAgent{}
	that.state = StateIdle
	that.result = entity.InProgress()
	event := that.newEvent(entity.EventRoundLeft)
	that.mu.Unlock()

	stopAll(agents)
	log.Info("left game", "round_id", event.RoundID)

	that.dispatch(ctx, []entity.Event{event})
}

// ResetScores zeroes both scores.
func (that *GameController) ResetScores() {
	that.mu.Lock()
	defer that.mu.Unlock()

	for _, player := range that.players {
		player.Score = 0
	}
}

// Snapshot returns a copy of the round for adapters.
func (that *GameController) Snapshot() entity.RoundSnapshot {
	that.mu.Lock()
	defer that.mu.Unlock()

	snapshot := entity.RoundSnapshot{
		ID:        that.roundID,
		State:     that.state.String(),
		Size:      that.settings.Size,
		RunLength: that.settings.RunLength,
		Cells:     map[string]entity.Symbol{},
		Players:   make([]entity.Player, 0, len(that.players)),
		Result:    that.result,
		TakenAt:   time.Now().UTC(),
	}

	if that.board != nil {
		snapshot.Cells = that.board.Cells()
		snapshot.MoveCount = that.board.MoveCount()
	}

	for _, player := range that.players {
		snapshot.Players = append(snapshot.Players, *player)
	}

	return snapshot
}

// newEvent must be called with mu held.
func (that *GameController) newEvent(eventType entity.EventType) entity.Event {
	return entity.Event{
		Type:    eventType,
		RoundID: that.roundID,
		At:      time.Now().UTC(),
	}
}

// playerEvent must be called with mu held.
func (that *GameController) playerEvent(eventType entity.EventType, index int) entity.Event {
	player := *that.players[index]

	event := that.newEvent(eventType)
	event.Player = &player

	return event
}

func (that *GameController) dispatch(ctx context.Context, events []entity.Event) {
	for _, event := range events {
		that.notifier.Notify(ctx, event)
	}
}

func indexOf(symbol entity.Symbol) int {
	if symbol == entity.PlayerO {
		return 1
	}

	return 0
}

func stopAll(agents [2]PlayerAgent) {
	for _, playerAgent := range agents {
		if playerAgent != nil {
			playerAgent.Stop()
		}
	}
}
