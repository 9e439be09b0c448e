package supervisor

import "errors"

// ErrInvalidEdgeTransition is the sentinel for an EdgeState transition
// that skips or reorders a step in spec §4.8's state machine.
var ErrInvalidEdgeTransition = errors.New("invalid edge state transition")

// ErrAborted is returned when Run stops because its context was
// cancelled mid-iteration (spec §5's external cancel signal).
var ErrAborted = errors.New("iteration aborted")

// ErrDeadlock is returned when the Scheduler reports StatusDeadlock:
// no fireable edge remains but the iteration is not complete.
var ErrDeadlock = errors.New("iteration deadlocked")

// ExitCode mirrors spec §6's `run` exit code table.
type ExitCode int

const (
	ExitSuccess         ExitCode = 0
	ExitGenericError    ExitCode = 1
	ExitDeadlock        ExitCode = 2
	ExitQualityFailed   ExitCode = 3
	ExitOntologyInvalid ExitCode = 4
	ExitAborted         ExitCode = 5
)
