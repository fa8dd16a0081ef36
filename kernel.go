package sim

import (
	"fmt"
	"log/slog"

	"github.com/rs/xid"

	"github.com/lensor/marketsim/protocol"
	"github.com/lensor/marketsim/structure"
)

const defaultQueueCapacity = 1024

// The arena seed only shapes skiplist levels; dispatch order is fixed by
// (time, seq) regardless.
const queueSeed = 1

// Kernel owns virtual time and the priority queue of scheduled events, and
// dispatches wakeups and message deliveries to agents in a globally
// deterministic order: events are dequeued by the lexicographic key
// (time, seq), ties on time broken by insertion seq. That key is the sole
// source of determinism; no other ordering heuristic exists.
type Kernel struct {
	runID       string
	now         Time
	seq         uint64
	queue       *structure.EventQueue
	broker      *Broker
	agents      map[AgentID]*registration
	nextAgentID AgentID
	started     bool
}

type registration struct {
	id     AgentID
	name   string
	agent  Agent
	handle *AgentHandle
}

// NewKernel creates a kernel with an empty event queue and routing table.
func NewKernel() *Kernel {
	return &Kernel{
		runID:  xid.New().String(),
		queue:  structure.NewEventQueue(defaultQueueCapacity, queueSeed),
		broker: NewBroker(),
		agents: make(map[AgentID]*registration),
	}
}

// Now returns the current virtual time in milliseconds.
func (k *Kernel) Now() Time {
	return k.now
}

// Broker exposes the routing table, mainly so drivers can inspect
// subscriptions. Agents subscribe through their handle.
func (k *Kernel) Broker() *Broker {
	return k.broker
}

// RegisterAgent attaches an agent and returns its identity for the run.
// Registration is only allowed before the first Run call. The agent is
// subscribed to its private inbox topic and receives its scheduling handle
// via OnRegister.
func (k *Kernel) RegisterAgent(name string, agent Agent) (AgentID, error) {
	if k.started {
		return 0, ErrRunStarted
	}

	k.nextAgentID++
	id := k.nextAgentID

	reg := &registration{
		id:    id,
		name:  name,
		agent: agent,
		handle: &AgentHandle{
			id:     id,
			name:   name,
			kernel: k,
		},
	}
	k.agents[id] = reg
	k.broker.Subscribe(id, protocol.InboxTopic(id))

	agent.OnRegister(reg.handle)
	return id, nil
}

// ScheduleWakeup adds a Wakeup event for the agent. Scheduling into the past
// is a programmer error (ErrInvalidTime).
func (k *Kernel) ScheduleWakeup(id AgentID, at Time) error {
	if _, ok := k.agents[id]; !ok {
		return fmt.Errorf("%w: agent %d", ErrUnknownAgent, id)
	}
	if at < k.now {
		return fmt.Errorf("%w: at=%d now=%d", ErrInvalidTime, at, k.now)
	}
	k.push(&event{time: at, kind: eventWakeup, agent: id})
	return nil
}

// SchedulePublish adds a Publish event. When it is dispatched the kernel
// fans the message out to the topic's subscribers as Deliver events at the
// same timestamp, with fresh seqs in subscription-registration order.
func (k *Kernel) SchedulePublish(sender AgentID, topic Topic, payload protocol.Payload, at Time) error {
	if _, ok := k.agents[sender]; !ok {
		return fmt.Errorf("%w: agent %d", ErrUnknownAgent, sender)
	}
	if at < k.now {
		return fmt.Errorf("%w: at=%d now=%d", ErrInvalidTime, at, k.now)
	}
	msg := &Message{
		Sender:   sender,
		SendTime: at,
		Payload:  payload,
	}
	k.push(&event{time: at, kind: eventPublish, topic: topic, msg: msg})
	return nil
}

// push assigns a fresh seq, strictly greater than any used so far, and
// enqueues the event. Seq uniqueness makes the queue key total.
func (k *Kernel) push(ev *event) {
	k.seq++
	ev.seq = k.seq
	// The key is unique by construction, so Push cannot fail short of
	// arena exhaustion, which the default queue never hits (it grows).
	if err := k.queue.Push(structure.EventKey{Time: int64(ev.time), Seq: ev.seq}, ev); err != nil {
		panic(fmt.Sprintf("kernel: event queue push failed: %v", err))
	}
}

// Run advances virtual time until the queue drains or the head event's time
// exceeds until (pass NoLimit to drain). In the deadline case the head event
// stays queued and a later Run resumes from it. An agent callback error
// halts the run; the summary surfaces the error and the offending event.
func (k *Kernel) Run(until Time) (*RunSummary, error) {
	k.started = true
	summary := &RunSummary{FinalTime: k.now}

	logger.Debug("kernel: run starting",
		slog.String("run_id", k.runID),
		slog.Int64("from", int64(k.now)),
		slog.Int("pending", int(k.queue.Len())))

	for {
		key, value, ok := k.queue.PeekMin()
		if !ok || key.Time > int64(until) {
			break
		}
		k.queue.PopMin()

		ev := value.(*event)
		k.now = ev.time
		summary.EventsProcessed++

		var err error
		switch ev.kind {
		case eventWakeup:
			if reg, found := k.agents[ev.agent]; found {
				err = reg.agent.OnWakeup(k.now)
			} else {
				err = fmt.Errorf("%w: agent %d", ErrUnknownAgent, ev.agent)
			}
		case eventDeliver:
			if reg, found := k.agents[ev.agent]; found {
				summary.MessagesDelivered++
				err = reg.agent.OnMessage(ev.msg, k.now)
			} else {
				err = fmt.Errorf("%w: agent %d", ErrUnknownAgent, ev.agent)
			}
		case eventPublish:
			// Same time, fresh seq: every subscriber sees the message at
			// the publish timestamp, after all strictly-earlier events, in
			// subscription-registration order.
			for _, sub := range k.broker.Subscribers(ev.topic) {
				k.push(&event{time: ev.time, kind: eventDeliver, agent: sub, msg: ev.msg})
			}
		}

		if err != nil {
			summary.FinalTime = k.now
			summary.Err = fmt.Errorf("%w: %v", ErrAgentFailure, err)
			summary.FailedEvent = &EventInfo{
				Time:  ev.time,
				Seq:   ev.seq,
				Kind:  ev.kind.String(),
				Agent: ev.agent,
				Topic: ev.topic,
			}
			logger.Error("kernel: run halted",
				slog.String("run_id", k.runID),
				slog.Int64("time", int64(k.now)),
				slog.String("error", err.Error()))
			return summary, summary.Err
		}
	}

	summary.FinalTime = k.now
	logger.Debug("kernel: run completed",
		slog.String("run_id", k.runID),
		slog.Int64("final_time", int64(k.now)),
		slog.Uint64("events", summary.EventsProcessed))
	return summary, nil
}

// Pending returns the number of scheduled events still in the queue.
func (k *Kernel) Pending() int {
	return int(k.queue.Len())
}
