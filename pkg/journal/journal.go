package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ArtifactState is the per-kind slice of world-state tracked across the
// journal: whether a current instance exists, whether it has passed
// verification, its latest reported quality score, and how many
// Refinement attempts have been spent on it.
type ArtifactState struct {
	Produced       bool
	Verified       bool
	Checked        bool
	QualityScore   float64
	RetryCount     int
	TerminalFailed bool
}

// WorldState is the projection over the journal described in spec §3:
// per-kind produced/verified flags, seeded with {SoftwareApplication} ∈
// produced. It is pure data — computed only by Replay, never mutated in
// place by anything outside this package.
type WorldState struct {
	Artifacts map[string]*ArtifactState
}

// NewWorldState returns a WorldState seeded with rootKind in produced, as
// required by spec §3's World-state definition.
func NewWorldState(rootKind string) WorldState {
	ws := WorldState{Artifacts: map[string]*ArtifactState{}}
	ws.artifact(rootKind).Produced = true
	return ws
}

func (w WorldState) artifact(kind string) *ArtifactState {
	a, ok := w.Artifacts[kind]
	if !ok {
		a = &ArtifactState{}
		w.Artifacts[kind] = a
	}
	return a
}

// Produced reports whether kind has a current instance.
func (w WorldState) Produced(kind string) bool {
	a, ok := w.Artifacts[kind]
	return ok && a.Produced
}

// Verified reports whether kind's current instance has passed verification.
func (w WorldState) Verified(kind string) bool {
	a, ok := w.Artifacts[kind]
	return ok && a.Verified
}

// Checked reports whether kind's current instance has already gone through
// a Verification edge, pass or fail. A Refinement edge must not fire until
// a Verification has recorded a score for the instance it would refine;
// producing a new instance (Creation or Refinement) clears Checked until
// the next Verification (spec §4.2 step 2's firing predicates).
func (w WorldState) Checked(kind string) bool {
	a, ok := w.Artifacts[kind]
	return ok && a.Checked
}

// TerminalFailed reports whether kind failed verification, or repeatedly
// failed schema validation, with no remaining Refinement budget (spec
// §4.6's "mark T verified=false, terminal-failed"; §7's SchemaViolation
// "otherwise terminal for that artifact") — the Scheduler must not
// re-select a Creation or Verification edge for such a kind (spec §4.2
// step 4's Deadlock becomes permanent for it).
func (w WorldState) TerminalFailed(kind string) bool {
	a, ok := w.Artifacts[kind]
	return ok && a.TerminalFailed
}

// Replay is the pure fold over an ordered event slice (seq ascending)
// producing the WorldState those events imply. Used both by live
// projection updates and by resume — replaying from empty must yield the
// same produced/verified sets as the live state (testable property #3).
func Replay(rootKind string, events []Event) (WorldState, error) {
	ws := NewWorldState(rootKind)

	for _, ev := range events {
		switch ev.Kind {
		case KindArtifactPersisted:
			var p ArtifactPersistedPayload
			if err := json.Unmarshal(ev.Payload, &p); err != nil {
				return WorldState{}, fmt.Errorf("replay: decode %s: %w", ev.Kind, err)
			}
			a := ws.artifact(p.Kind)
			a.Produced = true
			a.Checked = false
			if p.ViaRefinement {
				a.RetryCount++
			}

		case KindVerificationResult:
			var p VerificationResultPayload
			if err := json.Unmarshal(ev.Payload, &p); err != nil {
				return WorldState{}, fmt.Errorf("replay: decode %s: %w", ev.Kind, err)
			}
			a := ws.artifact(p.TargetKind)
			a.QualityScore = p.Score
			a.Checked = true
			if p.Passed {
				a.Verified = true
			}

		case KindEdgeFailed:
			var p EdgeFailedPayload
			if err := json.Unmarshal(ev.Payload, &p); err != nil {
				return WorldState{}, fmt.Errorf("replay: decode %s: %w", ev.Kind, err)
			}
			if p.ErrorKind == "quality_below_threshold" || p.ErrorKind == "schema_violation" {
				ws.artifact(p.TargetKind).TerminalFailed = true
			}

		case KindEdgeStart, KindIterationComplete, KindDeadlock, KindAgentOutput:
			// Contribute nothing to world-state; recorded for audit/resume
			// attempt-numbering (spec §8 S6) or raw stdout/stderr retention
			// (spec §4.4) only.
		}
	}

	return ws, nil
}

// Append writes ev with the next monotonic seq for ev.IterationID inside a
// single transaction: SELECT MAX(seq)+1 then INSERT, guarded by the unique
// (iteration_id, seq) index so a racing writer would fail rather than
// silently duplicate a sequence number. The per-iteration journal is
// single-writer (spec §5), so this function is not designed for concurrent
// callers on the same iteration.
func (c *Client) Append(ctx context.Context, iterationID string, kind Kind, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal payload: %w", err)
	}

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return Event{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var nextSeq int64
	row := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM events WHERE iteration_id = ?`, iterationID)
	if err := row.Scan(&nextSeq); err != nil {
		return Event{}, fmt.Errorf("resolve next seq: %w", err)
	}

	ev := Event{
		IterationID: iterationID,
		Seq:         nextSeq,
		Kind:        kind,
		Payload:     data,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339Nano),
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (iteration_id, seq, kind, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
		ev.IterationID, ev.Seq, ev.Kind, string(ev.Payload), ev.CreatedAt)
	if err != nil {
		return Event{}, fmt.Errorf("insert event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Event{}, fmt.Errorf("commit: %w", err)
	}

	return ev, nil
}

// Events returns every event recorded for iterationID in seq order.
func (c *Client) Events(ctx context.Context, iterationID string) ([]Event, error) {
	var events []Event
	err := c.db.SelectContext(ctx, &events,
		`SELECT iteration_id, seq, kind, payload, created_at FROM events
		 WHERE iteration_id = ? ORDER BY seq ASC`, iterationID)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	return events, nil
}

// Iterations returns the distinct iteration ids recorded in the journal,
// in first-seen order — the source list for `icl list`.
func (c *Client) Iterations(ctx context.Context) ([]string, error) {
	var ids []string
	err := c.db.SelectContext(ctx, &ids,
		`SELECT iteration_id FROM events GROUP BY iteration_id ORDER BY MIN(seq), MIN(id)`)
	if err != nil {
		return nil, fmt.Errorf("select iterations: %w", err)
	}
	return ids, nil
}
