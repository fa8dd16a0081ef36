package sim

import "github.com/lensor/marketsim/protocol"

// Aliases into the shared vocabulary so callers of the kernel don't need a
// second import for the primitive types.
type (
	Time    = protocol.Time
	AgentID = protocol.AgentID
	Topic   = protocol.Topic
	Message = protocol.Message
)

// NoLimit makes Run drain the queue instead of stopping at a deadline.
const NoLimit Time = 1<<63 - 1

type eventKind uint8

const (
	eventWakeup eventKind = iota + 1
	eventDeliver
	eventPublish
)

func (k eventKind) String() string {
	switch k {
	case eventWakeup:
		return "wakeup"
	case eventDeliver:
		return "deliver"
	case eventPublish:
		return "publish"
	}
	return "unknown"
}

// event is a scheduled unit of work. Which kind-specific fields are
// meaningful depends on the kind: agent for wakeups, topic+msg for publishes,
// agent+msg for deliveries.
type event struct {
	time  Time
	seq   uint64
	kind  eventKind
	agent AgentID
	topic Topic
	msg   *Message
}

// EventInfo describes a dispatched event; surfaced in RunSummary when an
// agent callback fails.
type EventInfo struct {
	Time  Time
	Seq   uint64
	Kind  string
	Agent AgentID
	Topic Topic
}

// RunSummary reports what a Run call did. Err is non-nil when an agent
// callback failed and the run halted; FailedEvent then names the offending
// event.
type RunSummary struct {
	EventsProcessed   uint64
	MessagesDelivered uint64
	FinalTime         Time
	Err               error
	FailedEvent       *EventInfo
}
