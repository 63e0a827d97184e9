package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rocketscienceinc/kinarow/internal/entity"
)

const (
	readLimit       = 64 * 1024
	shutdownTimeout = 5 * time.Second
)

type uGame interface {
	EnterGame(ctx context.Context) error
	LeaveGame(ctx context.Context)
	ResetScores()
	Snapshot() entity.RoundSnapshot
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

type Server struct {
	logger *slog.Logger
	uGame  uGame
	hub    *Hub

	handlers map[string]func(ctx context.Context, c *client, message *Message) error
}

func New(logger *slog.Logger, uGame uGame, hub *Hub) *Server {
	server := &Server{
		logger: logger.With("component", "websocket_server"),
		uGame:  uGame,
		hub:    hub,

		handlers: make(map[string]func(context.Context, *client, *Message) error),
	}

	server.handlers[actionGameEnter] = server.handleEnter
	server.handlers[actionGameLeave] = server.handleLeave
	server.handlers[actionScoresReset] = server.handleResetScores
	server.handlers[actionRoundState] = server.handleRoundState

	return server
}

func (that *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", that.upgradeToWebSocket)

	return mux
}

// Start - starts WebSocket server and shuts it down when ctx is done.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           that.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		that.hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shut down websocket server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// upgradeToWebSocket - upgrades the connection and serves it until it closes.
func (that *Server) upgradeToWebSocket(writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "upgradeToWebSocket")

	conn, err := upgrader.Upgrade(writer, req, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	conn.SetReadLimit(readLimit)

	c := newClient(conn)
	that.hub.add(c)
	go c.writePump(log)

	log.Info("WebSocket connection established", "remote", req.RemoteAddr)

	that.handleMessages(req.Context(), c)

	that.hub.remove(c)

	log.Info("WebSocket connection closed", "remote", req.RemoteAddr)
}

// handleMessages - processes messages from the client.
func (that *Server) handleMessages(ctx context.Context, c *client) {
	log := that.logger.With("method", "handleMessages")

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Error("error reading message", "error", err)
			}
			return
		}

		var message Message
		if err = json.Unmarshal(data, &message); err != nil {
			log.Error("failed to unmarshal message", "error", err)
			that.sendErrorResponse(c, "malformed message")
			continue
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			log.Warn("unknown action", "action", message.Action)
			that.sendErrorResponse(c, "unknown action "+message.Action)
			continue
		}

		if err = handler(ctx, c, &message); err != nil {
			log.Error("error processing message", "action", message.Action, "error", err)
			that.sendErrorResponse(c, err.Error())
		}
	}
}

func (that *Server) sendMessage(c *client, action string, payload ResponsePayload) {
	data, err := newMessage(action, payload)
	if err != nil {
		that.logger.Error("failed to marshal response", "action", action, "error", err)
		return
	}

	if !c.enqueue(data) {
		that.hub.remove(c)
	}
}

func (that *Server) sendErrorResponse(c *client, errorMessage string) {
	that.sendMessage(c, actionError, ResponsePayload{Error: errorMessage})
}
