// Package bus implements message construction and routing between agents
// and the scheduler: monotonic id assignment, priority defaulting, inbox
// delivery, and the per-round outbox flush. The special "server" recipient
// is handed to a Sink owned by the scheduler instead of an agent inbox, so
// graph bookkeeping stays out of this package.
package bus

import (
	"sync/atomic"
	"time"

	"github.com/hupe1980/agentgrid/core"
	"github.com/hupe1980/agentgrid/logging"
)

// Sink receives messages addressed to the server sentinel. The scheduler
// implements it to perform graph bookkeeping (node completion, owner
// re-checks) when completion responses are routed.
type Sink interface {
	HandleServerMessage(ec *core.ExecutionContext, msg core.Message)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ec *core.ExecutionContext, msg core.Message)

// HandleServerMessage implements Sink.
func (f SinkFunc) HandleServerMessage(ec *core.ExecutionContext, msg core.Message) {
	f(ec, msg)
}

// Options configures a MessageBus.
type Options struct {
	Logger logging.Logger
}

// MessageBus constructs and routes messages. IDs are assigned from one
// atomic counter so the global arrival order is total even when messages
// are created concurrently within a round.
type MessageBus struct {
	nextID atomic.Int64
	sink   Sink
	logger logging.Logger
}

// New creates a bus delivering server-addressed messages to sink. A nil
// sink drops them.
func New(sink Sink, optFns ...func(o *Options)) *MessageBus {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &MessageBus{sink: sink, logger: opts.Logger}
}

// NewMessage constructs an immutable message with the next monotonic id, a
// UTC timestamp and a clamped priority. Pass a negative priority to accept
// the default.
func (b *MessageBus) NewMessage(
	t core.MessageType,
	sender string,
	recipients []string,
	payload core.Payload,
	priority int,
) core.Message {
	return core.Message{
		ID:         b.nextID.Add(1),
		Type:       t,
		Sender:     sender,
		Recipients: recipients,
		Payload:    payload,
		Timestamp:  time.Now().UTC(),
		Priority:   core.ClampPriority(priority),
	}
}

// Deliver appends the message to the global log and routes it to every
// recipient: agent ids get an inbox append, the server sentinel goes to
// the sink. Unknown recipients are logged and skipped.
func (b *MessageBus) Deliver(ec *core.ExecutionContext, msg core.Message) {
	ec.AppendLog(msg)

	for _, recipient := range msg.Recipients {
		if recipient == core.ServerRecipient {
			if b.sink != nil {
				b.sink.HandleServerMessage(ec, msg)
			}
			continue
		}

		agent, ok := ec.Agent(recipient)
		if !ok {
			b.logger.Warn("bus.deliver.unknown_recipient",
				"recipient", recipient, "message_id", msg.ID, "type", string(msg.Type))
			continue
		}
		agent.Enqueue(msg)
		b.logger.Debug("bus.deliver",
			"recipient", recipient, "message_id", msg.ID, "type", string(msg.Type), "priority", msg.Priority)
	}
}

// Flush drains every agent's outbox in the context's fixed agent order and
// delivers each staged message. Producing order within one agent is
// preserved; combined with the fixed agent order this keeps rounds
// deterministic.
func (b *MessageBus) Flush(ec *core.ExecutionContext) {
	for _, agent := range ec.Agents() {
		for _, msg := range agent.DrainOutbox() {
			b.Deliver(ec, msg)
		}
	}
}
