// Package metrics exposes Prometheus instruments for rounds, moves and agent
// failures.
package metrics

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rocketscienceinc/kinarow/internal/entity"
)

const namespace = "kinarow"

// Recorder counts game events and times agent moves. It satisfies both the
// controller's move recorder and the notifier's sink contract.
type Recorder struct {
	// EventsTotal counts emitted events. Labels: type
	EventsTotal *prometheus.CounterVec

	// RoundsTotal counts finished rounds. Labels: outcome (win_x, win_o, draw, failure)
	RoundsTotal *prometheus.CounterVec

	// RejectedMovesTotal counts moves skipped by the arbiter. Labels: symbol, reason
	RejectedMovesTotal *prometheus.CounterVec

	// MoveWaitSeconds measures how long the arbiter waited for a move. Labels: symbol
	MoveWaitSeconds *prometheus.HistogramVec
}

// New registers the instruments with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Game events emitted to the presentation layer.",
		}, []string{"type"}),
		RoundsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Rounds that reached an end state.",
		}, []string{"outcome"}),
		RejectedMovesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_moves_total",
			Help:      "Moves skipped because the cell was already taken.",
		}, []string{"symbol", "reason"}),
		MoveWaitSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "move_wait_seconds",
			Help:      "Time spent waiting for an agent to answer.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"symbol"}),
	}
}

func (that *Recorder) ObserveMoveWait(symbol entity.Symbol, wait time.Duration) {
	that.MoveWaitSeconds.WithLabelValues(string(symbol)).Observe(wait.Seconds())
}

func (that *Recorder) IncRejected(symbol entity.Symbol, reason string) {
	that.RejectedMovesTotal.WithLabelValues(string(symbol), reason).Inc()
}

// Notify counts the event and, for round-ending events, the outcome.
func (that *Recorder) Notify(_ context.Context, event entity.Event) error {
	that.EventsTotal.WithLabelValues(string(event.Type)).Inc()

	switch {
	case event.Type == entity.EventRoundWon && event.Player != nil:
		that.RoundsTotal.WithLabelValues("win_" + strings.ToLower(string(event.Player.Symbol))).Inc()
	case event.Type == entity.EventRoundDraw:
		that.RoundsTotal.WithLabelValues("draw").Inc()
	case event.Type == entity.EventAgentFailure && event.IsRoundOver():
		that.RoundsTotal.WithLabelValues("failure").Inc()
	}

	return nil
}
