package journal

import "encoding/json"

// Kind identifies the shape of an event's payload. Mirrors the fixed,
// closed event-type constant style of tarsy's pkg/events/types.go, but
// scoped to the iteration lifecycle rather than timeline/session/chat
// delivery.
type Kind string

const (
	// KindEdgeStart records that the Supervisor selected an edge to fire.
	KindEdgeStart Kind = "edge.start"

	// KindArtifactPersisted records a Creation/Refinement edge's output
	// passing schema validation and being written to the Store.
	KindArtifactPersisted Kind = "artifact.persisted"

	// KindVerificationResult records a Verification edge's reported score.
	KindVerificationResult Kind = "verification.result"

	// KindEdgeFailed records a failed edge attempt (SchemaViolation,
	// quality below threshold, exhausted invocation retries, etc). The
	// payload's ErrorKind says which; only some kinds mark the target as
	// terminally failed on Replay.
	KindEdgeFailed Kind = "edge.failed"

	// KindAgentOutput records one agent subprocess invocation's captured
	// stdout/stderr (spec §4.4: "streamed to the journal as AgentOutput
	// events, and retained").
	KindAgentOutput Kind = "agent.output"

	// KindIterationComplete records the Scheduler returning Done.
	KindIterationComplete Kind = "iteration.complete"

	// KindDeadlock records the Scheduler returning Deadlock.
	KindDeadlock Kind = "iteration.deadlock"
)

// Event is one append-only journal record. Payload carries the
// kind-specific fields as raw JSON so Replay can fold over a
// heterogeneous log without a type switch on persistence concerns.
type Event struct {
	IterationID string          `db:"iteration_id" json:"iteration_id"`
	Seq         int64           `db:"seq" json:"seq"`
	Kind        Kind            `db:"kind" json:"kind"`
	Payload     json.RawMessage `db:"payload" json:"payload"`
	CreatedAt   string          `db:"created_at" json:"created_at"`
}

// EdgeStartPayload is the payload for KindEdgeStart. Attempt numbers
// successive selections of the same (sourceKind, verbId, targetKind)
// edge within one iteration, starting at 1 — resuming after an
// interruption re-selects the same edge and records a second EdgeStart
// with Attempt incremented (spec §8 S6).
type EdgeStartPayload struct {
	SourceKind string `json:"source_kind"`
	VerbID     string `json:"verb_id"`
	TargetKind string `json:"target_kind"`
	Attempt    int    `json:"attempt"`
}

// ArtifactPersistedPayload is the payload for KindArtifactPersisted.
type ArtifactPersistedPayload struct {
	Kind          string `json:"kind"`
	InstanceID    string `json:"instance_id"`
	ViaRefinement bool   `json:"via_refinement"`
}

// VerificationResultPayload is the payload for KindVerificationResult.
type VerificationResultPayload struct {
	TargetKind string  `json:"target_kind"`
	Score      float64 `json:"score"`
	Threshold  float64 `json:"threshold"`
	Feedback   string  `json:"feedback"`
	Passed     bool    `json:"passed"`
}

// EdgeFailedPayload is the payload for KindEdgeFailed.
type EdgeFailedPayload struct {
	SourceKind string `json:"source_kind"`
	VerbID     string `json:"verb_id"`
	TargetKind string `json:"target_kind"`
	ErrorKind  string `json:"error_kind"` // e.g. "schema_violation", "malformed_response", "quality_below_threshold"
	Message    string `json:"message"`
	Attempt    int    `json:"attempt"`
}

// AgentOutputPayload is the payload for KindAgentOutput: one subprocess
// invocation's captured stdout/stderr, attributed back to the edge and
// correlation id that triggered it.
type AgentOutputPayload struct {
	SourceKind    string `json:"source_kind"`
	VerbID        string `json:"verb_id"`
	TargetKind    string `json:"target_kind"`
	CorrelationID string `json:"correlation_id"`
	Stdout        string `json:"stdout"`
	Stderr        string `json:"stderr"`
}

// DeadlockPayload is the payload for KindDeadlock.
type DeadlockPayload struct {
	Unreachable []string `json:"unreachable"`
}
