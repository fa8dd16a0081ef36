package sim

import "github.com/lensor/marketsim/protocol"

// Agent is the contract external collaborators implement. Callbacks run to
// completion before the next event is dispatched; agents must not block,
// spawn goroutines, or observe the wall clock. A returned error halts the
// run (AgentFailure).
type Agent interface {
	// OnRegister hands the agent its scheduling capability. Called once,
	// during registration, before the kernel runs. The agent may already
	// subscribe to topics and schedule events here.
	OnRegister(h *AgentHandle)

	// OnWakeup is invoked for each scheduled wakeup.
	OnWakeup(now Time) error

	// OnMessage is invoked for each delivered message.
	OnMessage(msg *Message, now Time) error
}

// AgentHandle is the narrow scheduling capability an agent receives at
// registration. It is the only path from agents back into the kernel; agents
// never hold the kernel itself.
type AgentHandle struct {
	id     AgentID
	name   string
	kernel *Kernel
}

// ID returns the agent's identity for this run.
func (h *AgentHandle) ID() AgentID {
	return h.id
}

// Name returns the registration name, for logging.
func (h *AgentHandle) Name() string {
	return h.name
}

// Now returns the current virtual time.
func (h *AgentHandle) Now() Time {
	return h.kernel.Now()
}

// Inbox returns the agent's private reply topic.
func (h *AgentHandle) Inbox() Topic {
	return protocol.InboxTopic(h.id)
}

// ScheduleWakeup asks the kernel to call OnWakeup at the given virtual time.
func (h *AgentHandle) ScheduleWakeup(at Time) error {
	return h.kernel.ScheduleWakeup(h.id, at)
}

// Publish schedules a message on a topic at the given virtual time.
// Publishing at the current time from within a callback delivers to
// subscribers in the same virtual instant, strictly after the callback
// returns.
func (h *AgentHandle) Publish(topic Topic, payload protocol.Payload, at Time) error {
	return h.kernel.SchedulePublish(h.id, topic, payload, at)
}

// PublishNow publishes at the current virtual time.
func (h *AgentHandle) PublishNow(topic Topic, payload protocol.Payload) error {
	return h.kernel.SchedulePublish(h.id, topic, payload, h.kernel.Now())
}

// Subscribe registers interest in a topic or wildcard pattern.
func (h *AgentHandle) Subscribe(topic Topic) {
	h.kernel.broker.Subscribe(h.id, topic)
}

// Unsubscribe removes interest in a topic or wildcard pattern.
func (h *AgentHandle) Unsubscribe(topic Topic) {
	h.kernel.broker.Unsubscribe(h.id, topic)
}
