package sim

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lensor/marketsim/protocol"
)

type notePayload struct {
	note string
}

func (*notePayload) Kind() protocol.PayloadKind { return "note" }

// scriptAgent records everything it observes into a shared trace and runs
// optional callbacks, so tests can script reentrant scheduling.
type scriptAgent struct {
	handle     *AgentHandle
	name       string
	trace      *[]string
	onRegister func(a *scriptAgent)
	onWakeup   func(a *scriptAgent, now Time) error
	onMessage  func(a *scriptAgent, msg *Message, now Time) error
}

func (a *scriptAgent) OnRegister(h *AgentHandle) {
	a.handle = h
	if a.onRegister != nil {
		a.onRegister(a)
	}
}

func (a *scriptAgent) OnWakeup(now Time) error {
	*a.trace = append(*a.trace, fmt.Sprintf("t=%d wakeup %s", now, a.name))
	if a.onWakeup != nil {
		return a.onWakeup(a, now)
	}
	return nil
}

func (a *scriptAgent) OnMessage(msg *Message, now Time) error {
	note := ""
	if p, ok := msg.Payload.(*notePayload); ok {
		note = p.note
	}
	*a.trace = append(*a.trace, fmt.Sprintf("t=%d deliver %s %s", now, a.name, note))
	if a.onMessage != nil {
		return a.onMessage(a, msg, now)
	}
	return nil
}

func newScriptAgent(name string, trace *[]string) *scriptAgent {
	return &scriptAgent{name: name, trace: trace}
}

func TestKernelWakeupOrdering(t *testing.T) {
	kernel := NewKernel()
	trace := []string{}

	a := newScriptAgent("a", &trace)
	idA, err := kernel.RegisterAgent("a", a)
	require.NoError(t, err)

	// Scheduled out of order; dispatched by time, ties by insertion seq.
	require.NoError(t, kernel.ScheduleWakeup(idA, 30))
	require.NoError(t, kernel.ScheduleWakeup(idA, 10))
	require.NoError(t, kernel.ScheduleWakeup(idA, 20))
	require.NoError(t, kernel.ScheduleWakeup(idA, 10))

	summary, err := kernel.Run(NoLimit)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"t=10 wakeup a",
		"t=10 wakeup a",
		"t=20 wakeup a",
		"t=30 wakeup a",
	}, trace)
	assert.Equal(t, uint64(4), summary.EventsProcessed)
	assert.Equal(t, Time(30), summary.FinalTime)
}

func TestKernelPublishFanOut(t *testing.T) {
	// Scenario: A, B, C subscribe to topic X in that order; D publishes at
	// t=10. Deliveries go to A, B, C in that order, all at t=10.
	kernel := NewKernel()
	trace := []string{}

	subscribe := func(a *scriptAgent) { a.handle.Subscribe("X") }

	a := newScriptAgent("a", &trace)
	a.onRegister = subscribe
	b := newScriptAgent("b", &trace)
	b.onRegister = subscribe
	c := newScriptAgent("c", &trace)
	c.onRegister = subscribe
	d := newScriptAgent("d", &trace)

	_, err := kernel.RegisterAgent("a", a)
	require.NoError(t, err)
	_, err = kernel.RegisterAgent("b", b)
	require.NoError(t, err)
	_, err = kernel.RegisterAgent("c", c)
	require.NoError(t, err)
	idD, err := kernel.RegisterAgent("d", d)
	require.NoError(t, err)

	require.NoError(t, kernel.SchedulePublish(idD, "X", &notePayload{note: "m"}, 10))

	summary, err := kernel.Run(NoLimit)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"t=10 deliver a m",
		"t=10 deliver b m",
		"t=10 deliver c m",
	}, trace)
	assert.Equal(t, uint64(3), summary.MessagesDelivered)
	// Publish + three synthesized deliveries
	assert.Equal(t, uint64(4), summary.EventsProcessed)
}

func TestKernelSelfWakeupChain(t *testing.T) {
	// Scheduling a wakeup at the current time from within a wakeup
	// re-enters at the same virtual instant, strictly after the current
	// callback completes.
	kernel := NewKernel()
	trace := []string{}

	count := 0
	a := newScriptAgent("a", &trace)
	a.onWakeup = func(a *scriptAgent, now Time) error {
		count++
		if count == 1 {
			*a.trace = append(*a.trace, "t=5 rescheduling")
			return a.handle.ScheduleWakeup(now)
		}
		return nil
	}

	id, err := kernel.RegisterAgent("a", a)
	require.NoError(t, err)
	require.NoError(t, kernel.ScheduleWakeup(id, 5))

	summary, err := kernel.Run(NoLimit)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"t=5 wakeup a",
		"t=5 rescheduling",
		"t=5 wakeup a",
	}, trace)
	assert.Equal(t, Time(5), summary.FinalTime)
}

func TestKernelPublishFromCallbackSameInstant(t *testing.T) {
	// A message published at time t from a callback running at t is seen by
	// subscribers at t, after the callback returns — and after events that
	// were already queued for t.
	kernel := NewKernel()
	trace := []string{}

	listener := newScriptAgent("listener", &trace)
	listener.onRegister = func(a *scriptAgent) { a.handle.Subscribe("X") }

	talker := newScriptAgent("talker", &trace)
	talker.onWakeup = func(a *scriptAgent, now Time) error {
		return a.handle.Publish("X", &notePayload{note: "hello"}, now)
	}

	_, err := kernel.RegisterAgent("listener", listener)
	require.NoError(t, err)
	idTalker, err := kernel.RegisterAgent("talker", talker)
	require.NoError(t, err)
	idListener := listener.handle.ID()

	require.NoError(t, kernel.ScheduleWakeup(idTalker, 7))
	// Already queued for t=7: dispatched before the publish fan-out.
	require.NoError(t, kernel.ScheduleWakeup(idListener, 7))

	_, err = kernel.Run(NoLimit)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"t=7 wakeup talker",
		"t=7 wakeup listener",
		"t=7 deliver listener hello",
	}, trace)
}

func TestKernelRunUntil(t *testing.T) {
	kernel := NewKernel()
	trace := []string{}

	a := newScriptAgent("a", &trace)
	id, err := kernel.RegisterAgent("a", a)
	require.NoError(t, err)

	require.NoError(t, kernel.ScheduleWakeup(id, 10))
	require.NoError(t, kernel.ScheduleWakeup(id, 20))
	require.NoError(t, kernel.ScheduleWakeup(id, 30))

	summary, err := kernel.Run(20)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), summary.EventsProcessed)
	assert.Equal(t, Time(20), summary.FinalTime)
	assert.Equal(t, 1, kernel.Pending())

	// The event beyond the deadline stayed queued; a later run resumes.
	summary, err = kernel.Run(NoLimit)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), summary.EventsProcessed)
	assert.Equal(t, Time(30), summary.FinalTime)
	assert.Equal(t, 0, kernel.Pending())
}

func TestKernelScheduleIntoPast(t *testing.T) {
	kernel := NewKernel()
	trace := []string{}

	a := newScriptAgent("a", &trace)
	a.onWakeup = func(a *scriptAgent, now Time) error {
		err := a.handle.ScheduleWakeup(now - 1)
		assert.ErrorIs(t, err, ErrInvalidTime)
		return nil
	}

	id, err := kernel.RegisterAgent("a", a)
	require.NoError(t, err)
	require.NoError(t, kernel.ScheduleWakeup(id, 10))

	_, err = kernel.Run(NoLimit)
	require.NoError(t, err)
}

func TestKernelUnknownAgent(t *testing.T) {
	kernel := NewKernel()

	err := kernel.ScheduleWakeup(42, 10)
	assert.ErrorIs(t, err, ErrUnknownAgent)

	err = kernel.SchedulePublish(42, "X", &notePayload{}, 10)
	assert.ErrorIs(t, err, ErrUnknownAgent)
}

func TestKernelRegistrationFreeze(t *testing.T) {
	kernel := NewKernel()
	trace := []string{}

	_, err := kernel.RegisterAgent("a", newScriptAgent("a", &trace))
	require.NoError(t, err)

	_, err = kernel.Run(NoLimit)
	require.NoError(t, err)

	_, err = kernel.RegisterAgent("b", newScriptAgent("b", &trace))
	assert.ErrorIs(t, err, ErrRunStarted)
}

func TestKernelAgentFailureHaltsRun(t *testing.T) {
	kernel := NewKernel()
	trace := []string{}

	boom := errors.New("boom")
	a := newScriptAgent("a", &trace)
	a.onWakeup = func(a *scriptAgent, now Time) error {
		if now == 20 {
			return boom
		}
		return nil
	}

	id, err := kernel.RegisterAgent("a", a)
	require.NoError(t, err)
	require.NoError(t, kernel.ScheduleWakeup(id, 10))
	require.NoError(t, kernel.ScheduleWakeup(id, 20))
	require.NoError(t, kernel.ScheduleWakeup(id, 30))

	summary, err := kernel.Run(NoLimit)
	assert.ErrorIs(t, err, ErrAgentFailure)
	require.NotNil(t, summary.FailedEvent)
	assert.Equal(t, Time(20), summary.FailedEvent.Time)
	assert.Equal(t, "wakeup", summary.FailedEvent.Kind)
	assert.Equal(t, id, summary.FailedEvent.Agent)
	// The event after the failure was not dispatched.
	assert.Equal(t, 1, kernel.Pending())
}

// buildPingPong wires two agents that bounce messages for a while, plus a
// periodic self-waker, and returns the recorded trace after a full run.
func buildPingPong(t *testing.T) []string {
	t.Helper()

	kernel := NewKernel()
	trace := []string{}

	ping := newScriptAgent("ping", &trace)
	ping.onRegister = func(a *scriptAgent) { a.handle.Subscribe("pong") }
	ping.onMessage = func(a *scriptAgent, msg *Message, now Time) error {
		if now < 50 {
			return a.handle.Publish("ping", &notePayload{note: "from-ping"}, now+5)
		}
		return nil
	}

	pong := newScriptAgent("pong", &trace)
	pong.onRegister = func(a *scriptAgent) { a.handle.Subscribe("ping") }
	pong.onMessage = func(a *scriptAgent, msg *Message, now Time) error {
		if now < 50 {
			return a.handle.Publish("pong", &notePayload{note: "from-pong"}, now+3)
		}
		return nil
	}

	waker := newScriptAgent("waker", &trace)
	waker.onWakeup = func(a *scriptAgent, now Time) error {
		if now < 40 {
			return a.handle.ScheduleWakeup(now + 10)
		}
		return nil
	}

	_, err := kernel.RegisterAgent("ping", ping)
	require.NoError(t, err)
	idPong, err := kernel.RegisterAgent("pong", pong)
	require.NoError(t, err)
	idWaker, err := kernel.RegisterAgent("waker", waker)
	require.NoError(t, err)

	require.NoError(t, kernel.SchedulePublish(idPong, "pong", &notePayload{note: "kick"}, 0))
	require.NoError(t, kernel.ScheduleWakeup(idWaker, 0))

	_, err = kernel.Run(NoLimit)
	require.NoError(t, err)
	return trace
}

func TestKernelDeterministicReplay(t *testing.T) {
	// Identical inputs must produce identical event traces.
	first := buildPingPong(t)
	second := buildPingPong(t)

	require.NotEmpty(t, first)
	assert.Equal(t, first, second)
}
