package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/rocketscienceinc/kinarow/internal/entity"
	"github.com/samber/lo"
)

// EventSink receives every game event. Sinks run on the goroutine that
// drives the round and should return quickly.
type EventSink interface {
	Notify(ctx context.Context, event entity.Event) error
}

// SinkFunc adapts a plain function to EventSink.
type SinkFunc func(ctx context.Context, event entity.Event) error

func (f SinkFunc) Notify(ctx context.Context, event entity.Event) error {
	return f(ctx, event)
}

// Notifier fans events out to named sinks in name order. A failing sink is
// logged and never stops delivery to the others.
type Notifier struct {
	logger *slog.Logger

	mu    sync.RWMutex
	sinks map[string]EventSink
}

func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{
		logger: logger.With("component", "notifier"),
		sinks:  make(map[string]EventSink),
	}
}

// Register adds sink under name, replacing any sink already registered there.
func (that *Notifier) Register(name string, sink EventSink) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.sinks[name] = sink
}

func (that *Notifier) Unregister(name string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.sinks, name)
}

func (that *Notifier) Notify(ctx context.Context, event entity.Event) {
	log := that.logger.With("method", "Notify")

	that.mu.RLock()
	names := lo.Keys(that.sinks)
	sort.Strings(names)
	sinks := lo.Map(names, func(name string, _ int) EventSink {
		return that.sinks[name]
	})
	that.mu.RUnlock()

	for i, sink := range sinks {
		if err := sink.Notify(ctx, event); err != nil {
			log.Error("sink failed", "sink", names[i], "event", event.Type, "round_id", event.RoundID, "error", err)
		}
	}
}
