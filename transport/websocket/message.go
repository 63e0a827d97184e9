package websocket

import (
	"encoding/json"

	"github.com/rocketscienceinc/kinarow/internal/entity"
)

const (
	actionGameEnter   = "game:enter"
	actionGameLeave   = "game:leave"
	actionScoresReset = "scores:reset"
	actionRoundState  = "round:state"
	actionEvent       = "event"
	actionError       = "error"
)

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ResponsePayload struct {
	Round *entity.RoundSnapshot `json:"round,omitempty"`
	Error string                `json:"error,omitempty"`
}

func newMessage(action string, payload any) ([]byte, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return json.Marshal(Message{
		Action:  action,
		Payload: payloadJSON,
	})
}
