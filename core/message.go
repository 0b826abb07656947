package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType discriminates the payload carried by a Message. The set is
// closed; every type maps to exactly one Payload variant.
type MessageType string

const (
	// MessageCommand instructs an agent to begin work on a task node.
	MessageCommand MessageType = "command"
	// MessageResponse reports the outcome of processing a command.
	MessageResponse MessageType = "response"
	// MessageNotification shares information between agents without
	// requiring a reply.
	MessageNotification MessageType = "notification"
	// MessageError reports a processing failure for a previously routed
	// message.
	MessageError MessageType = "error"
	// MessageSystem carries scheduler-internal control signals.
	MessageSystem MessageType = "system"
)

// ServerRecipient is the sentinel recipient address that routes a message
// to the scheduler's graph bookkeeping instead of an agent inbox.
const ServerRecipient = "server"

// Priority bounds and the default assigned by the bus when a caller does
// not specify one. Higher values are dequeued first.
const (
	MinPriority     = 0
	MaxPriority     = 10
	DefaultPriority = 5
)

// ClampPriority forces p into the valid [MinPriority, MaxPriority] range.
// Negative values are treated as "unspecified" and become DefaultPriority.
func ClampPriority(p int) int {
	if p < MinPriority {
		return DefaultPriority
	}
	if p > MaxPriority {
		return MaxPriority
	}
	return p
}

// Payload is the closed union of message contents. Concrete variants
// implement the unexported marker, keyed one-to-one to MessageType.
type Payload interface{ isPayload() }

// CommandPayload assigns a task node to its owning agent.
type CommandPayload struct {
	Task   string `json:"task"`
	NodeID string `json:"nodeId"`
}

func (CommandPayload) isPayload() {}

// Completion status values carried by ResponsePayload.Status.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ResponsePayload reports the outcome of one command. A Status of
// StatusCompleted addressed to the server marks the node done.
type ResponsePayload struct {
	NodeID   string          `json:"nodeId"`
	Status   string          `json:"status"`
	Result   string          `json:"result,omitempty"`
	ToolCall *ToolCallRecord `json:"toolCall,omitempty"`
}

func (ResponsePayload) isPayload() {}

// NotificationPayload shares a finding with another agent.
type NotificationPayload struct {
	Information string `json:"information"`
}

func (NotificationPayload) isPayload() {}

// ErrorPayload reports that processing a message failed. Unrecoverable
// marks the sending agent as permanently failed.
type ErrorPayload struct {
	Message           string `json:"message"`
	OriginalMessageID int64  `json:"originalMessageId,omitempty"`
	Unrecoverable     bool   `json:"unrecoverable,omitempty"`
}

func (ErrorPayload) isPayload() {}

// SystemPayload carries scheduler control actions (cancellation notices,
// run markers). Data is free-form.
type SystemPayload struct {
	Action string         `json:"action"`
	Data   map[string]any `json:"data,omitempty"`
}

func (SystemPayload) isPayload() {}

// Message is the immutable, addressed, prioritized unit of communication
// between agents and the scheduler. IDs are assigned monotonically by the
// bus so arrival order is reconstructible from the ID alone. Treat every
// Message as read-only once constructed.
type Message struct {
	ID         int64       `json:"id"`
	Type       MessageType `json:"type"`
	Sender     string      `json:"sender"`
	Recipients []string    `json:"recipients"`
	Payload    Payload     `json:"content"`
	Timestamp  time.Time   `json:"timestamp"`
	Priority   int         `json:"priority"`
}

// messageWire is the JSON envelope shape shared by Marshal/Unmarshal.
type messageWire struct {
	ID         int64           `json:"id"`
	Type       MessageType     `json:"type"`
	Sender     string          `json:"sender"`
	Recipients []string        `json:"recipients"`
	Content    json.RawMessage `json:"content"`
	Timestamp  time.Time       `json:"timestamp"`
	Priority   int             `json:"priority"`
}

// MarshalJSON renders the wire shape used by the execution log and any
// external rendering layer: the payload is embedded under "content" with
// a shape keyed by Type.
func (m Message) MarshalJSON() ([]byte, error) {
	content, err := json.Marshal(m.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal message %d content: %w", m.ID, err)
	}

	return json.Marshal(messageWire{
		ID:         m.ID,
		Type:       m.Type,
		Sender:     m.Sender,
		Recipients: m.Recipients,
		Content:    content,
		Timestamp:  m.Timestamp,
		Priority:   m.Priority,
	})
}

// UnmarshalJSON decodes the wire envelope and selects the payload variant
// from the type tag.
func (m *Message) UnmarshalJSON(data []byte) error {
	var wire messageWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	payload, err := unmarshalPayload(wire.Type, wire.Content)
	if err != nil {
		return err
	}

	*m = Message{
		ID:         wire.ID,
		Type:       wire.Type,
		Sender:     wire.Sender,
		Recipients: wire.Recipients,
		Payload:    payload,
		Timestamp:  wire.Timestamp,
		Priority:   wire.Priority,
	}

	return nil
}

func unmarshalPayload(t MessageType, raw json.RawMessage) (Payload, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var (
		payload Payload
		err     error
	)

	switch t {
	case MessageCommand:
		var p CommandPayload
		err = json.Unmarshal(raw, &p)
		payload = p
	case MessageResponse:
		var p ResponsePayload
		err = json.Unmarshal(raw, &p)
		payload = p
	case MessageNotification:
		var p NotificationPayload
		err = json.Unmarshal(raw, &p)
		payload = p
	case MessageError:
		var p ErrorPayload
		err = json.Unmarshal(raw, &p)
		payload = p
	case MessageSystem:
		var p SystemPayload
		err = json.Unmarshal(raw, &p)
		payload = p
	default:
		return nil, fmt.Errorf("unknown message type %q", t)
	}

	if err != nil {
		return nil, fmt.Errorf("unmarshal %s content: %w", t, err)
	}

	return payload, nil
}

// AddressedTo reports whether the message names id among its recipients.
func (m Message) AddressedTo(id string) bool {
	for _, r := range m.Recipients {
		if r == id {
			return true
		}
	}
	return false
}
