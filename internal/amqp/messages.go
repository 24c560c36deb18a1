package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"saldo/internal/core"
)

// AlertMessage is the event published for every newly generated alert.
type AlertMessage struct {
	ID        string         `json:"id"`
	Kind      core.AlertKind `json:"kind"`
	Message   string         `json:"message"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewAlertMessage builds the event for a.
func NewAlertMessage(a core.Alert) *AlertMessage {
	return &AlertMessage{
		ID:        a.ID,
		Kind:      a.Kind,
		Message:   a.Message,
		CreatedAt: a.CreatedAt,
	}
}

// ToJSON converts the message to JSON bytes
func (m *AlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Alert converts the event back into an unread alert.
func (m *AlertMessage) Alert() core.Alert {
	return core.Alert{ID: m.ID, Kind: m.Kind, Message: m.Message, CreatedAt: m.CreatedAt}
}

// AlertMessageFromJSON parses and validates an event body.
func AlertMessageFromJSON(data []byte) (*AlertMessage, error) {
	var msg AlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("alert message without id")
	}
	if !msg.Kind.IsValid() {
		return nil, fmt.Errorf("alert message %s: unknown kind %q", msg.ID, msg.Kind)
	}
	return &msg, nil
}
