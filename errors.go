package sim

import "errors"

var (
	ErrInvalidTime  = errors.New("cannot schedule an event before the current virtual time")
	ErrUnknownAgent = errors.New("agent is not registered with the kernel")
	ErrRunStarted   = errors.New("agents can only be registered before the first run")
	ErrAgentFailure = errors.New("agent callback failed")
)
