package domain

import (
	"encoding/json"
	"fmt"
)

// RootSagaDescription marks snapshots of effects that have no parent.
const RootSagaDescription = "(root)"

// FlatEffect is one node of a serialized effect tree.
// Nullable fields are pointers so that they encode as JSON null.
type FlatEffect struct {
	Depth          int       `json:"depth"`
	EffectID       EffectID  `json:"effectId"`
	ParentEffectID *EffectID `json:"parentEffectId"`
	Name           *string   `json:"name"`
	Description    *string   `json:"description"`
	Duration       int64     `json:"duration"`
	Status         *string   `json:"status"`
	Winner         *bool     `json:"winner"`
	Result         any       `json:"result"`
	Extra          any       `json:"extra"`
}

// Snapshot is the shippable representation of a completed task and its tree.
type Snapshot struct {
	TriggerType string       `json:"triggerType"`
	Description *string      `json:"description"`
	Duration    int64        `json:"duration"`
	Children    []FlatEffect `json:"children"`
}

// MessageType names an outbound telemetry message.
type MessageType string

const (
	// MessageTaskList carries the buffered history ([]Snapshot), sent once on first connection.
	MessageTaskList MessageType = "saga.task.list"
	// MessageTaskComplete carries a single Snapshot, sent per completed task while streaming.
	MessageTaskComplete MessageType = "saga.task.complete"
)

// Message is one outbound telemetry message.
type Message struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload"`
}

// Snapshots returns the snapshots carried by the message, whatever its type.
func (m Message) Snapshots() []Snapshot {
	switch p := m.Payload.(type) {
	case Snapshot:
		return []Snapshot{p}
	case *Snapshot:
		if p == nil {
			return nil
		}
		return []Snapshot{*p}
	case []Snapshot:
		return p
	}
	return nil
}

// UnmarshalJSON decodes the payload into the type its message type carries:
// []Snapshot for a list, Snapshot for a completion.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type    MessageType     `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.Type = raw.Type
	switch raw.Type {
	case MessageTaskList:
		snaps := []Snapshot{}
		if err := json.Unmarshal(raw.Payload, &snaps); err != nil {
			return fmt.Errorf("decode %s payload: %w", raw.Type, err)
		}
		m.Payload = snaps
	case MessageTaskComplete:
		var snap Snapshot
		if err := json.Unmarshal(raw.Payload, &snap); err != nil {
			return fmt.Errorf("decode %s payload: %w", raw.Type, err)
		}
		m.Payload = snap
	default:
		var payload any
		if len(raw.Payload) > 0 {
			if err := json.Unmarshal(raw.Payload, &payload); err != nil {
				return err
			}
		}
		m.Payload = payload
	}
	return nil
}
