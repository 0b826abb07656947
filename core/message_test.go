package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestClampPriority(t *testing.T) {
	cases := []struct{ in, want int }{
		{-1, DefaultPriority},
		{0, 0},
		{5, 5},
		{10, 10},
		{99, MaxPriority},
	}
	for _, c := range cases {
		if got := ClampPriority(c.in); got != c.want {
			t.Errorf("ClampPriority(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestMessage_JSONRoundTrip(t *testing.T) {
	msg := Message{
		ID:         7,
		Type:       MessageResponse,
		Sender:     "researcher",
		Recipients: []string{ServerRecipient},
		Payload: ResponsePayload{
			NodeID: "research",
			Status: StatusCompleted,
			Result: "findings",
			ToolCall: &ToolCallRecord{
				Tool:  "web_search",
				Input: map[string]any{"query": "golang"},
				Error: "rate limited",
			},
		},
		Timestamp: time.Now().UTC().Truncate(time.Second),
		Priority:  8,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Message
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded.ID != 7 || decoded.Type != MessageResponse || decoded.Priority != 8 {
		t.Fatalf("envelope fields lost: %+v", decoded)
	}
	resp, ok := decoded.Payload.(ResponsePayload)
	if !ok {
		t.Fatalf("payload type lost: %T", decoded.Payload)
	}
	if resp.NodeID != "research" || resp.Status != StatusCompleted || resp.Result != "findings" {
		t.Fatalf("response payload malformed: %+v", resp)
	}
	if resp.ToolCall == nil || resp.ToolCall.Tool != "web_search" || resp.ToolCall.Error != "rate limited" {
		t.Fatalf("tool call record lost: %+v", resp.ToolCall)
	}
}

func TestMessage_UnmarshalSelectsVariant(t *testing.T) {
	cases := []struct {
		raw  string
		want any
	}{
		{`{"id":1,"type":"command","content":{"task":"t","nodeId":"n"}}`, CommandPayload{}},
		{`{"id":2,"type":"notification","content":{"information":"x"}}`, NotificationPayload{}},
		{`{"id":3,"type":"error","content":{"message":"boom","originalMessageId":1}}`, ErrorPayload{}},
		{`{"id":4,"type":"system","content":{"action":"cancel"}}`, SystemPayload{}},
	}
	for _, c := range cases {
		var m Message
		if err := json.Unmarshal([]byte(c.raw), &m); err != nil {
			t.Fatalf("unmarshal %s: %v", c.raw, err)
		}
		if got, want := typeName(m.Payload), typeName(c.want); got != want {
			t.Errorf("payload variant = %s, want %s", got, want)
		}
	}

	var m Message
	if err := json.Unmarshal([]byte(`{"id":5,"type":"bogus","content":{}}`), &m); err == nil {
		t.Error("expected error for unknown message type")
	}
}

func typeName(v any) string {
	if v == nil {
		return "<nil>"
	}
	switch v.(type) {
	case CommandPayload:
		return "command"
	case ResponsePayload:
		return "response"
	case NotificationPayload:
		return "notification"
	case ErrorPayload:
		return "error"
	case SystemPayload:
		return "system"
	default:
		return "unknown"
	}
}

func TestMessage_AddressedTo(t *testing.T) {
	m := Message{Recipients: []string{"a", ServerRecipient}}
	if !m.AddressedTo("a") || !m.AddressedTo(ServerRecipient) {
		t.Error("expected recipients to match")
	}
	if m.AddressedTo("b") {
		t.Error("unexpected recipient match")
	}
}
