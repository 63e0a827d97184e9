package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rocketscienceinc/kinarow/internal/entity"
)

type roundSource interface {
	Snapshot() entity.RoundSnapshot
}

type Handlers interface {
	PingHandler(w http.ResponseWriter, _ *http.Request)
	RoundHandler(w http.ResponseWriter, _ *http.Request)
}

type handlers struct {
	logger *slog.Logger
	source roundSource
}

func NewHandlers(logger *slog.Logger, source roundSource) Handlers {
	return &handlers{
		logger: logger,
		source: source,
	}
}

func (that *handlers) PingHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		that.logger.Error("failed to write pong", "error", err)
	}
}

// RoundHandler writes the current round as JSON.
func (that *handlers) RoundHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(that.source.Snapshot()); err != nil {
		that.logger.Error("failed to encode round", "error", err)
	}
}
