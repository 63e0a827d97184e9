package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rocketscienceinc/kinarow/internal/entity"
	"github.com/samber/lo"
)

var ErrSlowClient = errors.New("websocket client is too slow")

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
)

type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// enqueue reports false when the client's buffer is full.
func (that *client) enqueue(data []byte) bool {
	select {
	case <-that.done:
		return true
	default:
	}

	select {
	case that.send <- data:
		return true
	default:
		return false
	}
}

func (that *client) close() {
	that.once.Do(func() {
		close(that.done)
	})
}

// writePump is the only writer of conn.
func (that *client) writePump(logger *slog.Logger) {
	defer that.conn.Close()

	for {
		select {
		case data := <-that.send:
			_ = that.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := that.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Debug("failed to write message", "error", err)
				that.close()
				return
			}
		case <-that.done:
			_ = that.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			_ = that.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Hub broadcasts game events to every connected presentation client.
type Hub struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger.With("component", "websocket_hub"),
		clients: make(map[*client]struct{}),
	}
}

func (that *Hub) add(c *client) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.clients[c] = struct{}{}
}

func (that *Hub) remove(c *client) {
	that.mu.Lock()
	delete(that.clients, c)
	that.mu.Unlock()

	c.close()
}

// Len returns the number of connected clients.
func (that *Hub) Len() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.clients)
}

// Notify sends the event to every client. Clients whose buffer is full are
// disconnected rather than allowed to stall the round.
func (that *Hub) Notify(_ context.Context, event entity.Event) error {
	data, err := newMessage(actionEvent, event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	that.mu.Lock()
	clients := lo.Keys(that.clients)
	that.mu.Unlock()

	slow := lo.Filter(clients, func(c *client, _ int) bool {
		return !c.enqueue(data)
	})

	for _, c := range slow {
		that.remove(c)
	}

	if len(slow) > 0 {
		return fmt.Errorf("%w: dropped %d", ErrSlowClient, len(slow))
	}

	return nil
}

// Close disconnects every client.
func (that *Hub) Close() {
	that.mu.Lock()
	clients := lo.Keys(that.clients)
	clear(that.clients)
	that.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}
