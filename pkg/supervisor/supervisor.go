// Package supervisor implements the Iteration Supervisor (C8): the entry
// point loop that asks the Scheduler for the next edge, dispatches it to
// the Agent Runtime, validates and persists its result, records every step
// in the journal, and reports completion/deadlock/quality-failure via exit
// code (spec §4.8).
package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/icl/pkg/agentruntime"
	"github.com/codeready-toolchain/icl/pkg/config"
	"github.com/codeready-toolchain/icl/pkg/journal"
	"github.com/codeready-toolchain/icl/pkg/ontology"
	"github.com/codeready-toolchain/icl/pkg/prompt"
	"github.com/codeready-toolchain/icl/pkg/quality"
	"github.com/codeready-toolchain/icl/pkg/scheduler"
	"github.com/codeready-toolchain/icl/pkg/store"
	"github.com/google/uuid"
)

// DefaultEdgeTimeout is the per-edge subprocess deadline when no per-verb
// override applies (spec §5: "per-edge (default 5 min, configurable per
// verb)").
const DefaultEdgeTimeout = 5 * time.Minute

// maxMalformedRepairs is spec §7's "retried up to 2 times with a 'repair'
// prompt amendment" for MalformedResponse before it is treated as a
// SchemaViolation.
const maxMalformedRepairs = 2

const repairAmendment = "\n\nYour previous response did not contain exactly one fenced ```json code block. Reply again with exactly one fenced ```json code block containing the required object, and nothing else.\n"

// Supervisor owns one iteration's execution loop (spec §4.8, §9 "the only
// process-wide state is the journal handle and the config snapshot").
type Supervisor struct {
	Graph        *ontology.Graph
	Config       *config.Config
	Journal      *journal.Client
	Store        *store.Client
	Validator    *store.SchemaValidator
	PromptLoader *prompt.Loader
	Runtime      agentruntime.Invoker
	IterationID  string
	Workdir      string
	EdgeTimeout  time.Duration

	approver *gatedApprover
}

// New wires a Supervisor from its collaborators. approver gates the first
// execution of each distinct verb unless the caller passes AutoApprover{}
// (--yolo).
func New(graph *ontology.Graph, cfg *config.Config, journalClient *journal.Client, storeClient *store.Client,
	promptLoader *prompt.Loader, runtime agentruntime.Invoker, iterationID, workdir string, approver Approver) *Supervisor {

	edgeTimeout := DefaultEdgeTimeout

	return &Supervisor{
		Graph:        graph,
		Config:       cfg,
		Journal:      journalClient,
		Store:        storeClient,
		Validator:    store.NewSchemaValidator(),
		PromptLoader: promptLoader,
		Runtime:      runtime,
		IterationID:  iterationID,
		Workdir:      workdir,
		EdgeTimeout:  edgeTimeout,
		approver:     newGatedApprover(approver),
	}
}

// Run executes the plan/dispatch/record loop until the Scheduler reports
// Done or Deadlock, the context is cancelled, or an edge fails terminally
// (spec §4.8).
func (s *Supervisor) Run(ctx context.Context) (ExitCode, error) {
	log := slog.With("iteration_id", s.IterationID)

	for {
		select {
		case <-ctx.Done():
			log.Info("iteration aborted")
			return ExitAborted, fmt.Errorf("%w: %v", ErrAborted, ctx.Err())
		default:
		}

		state, err := s.worldState(ctx)
		if err != nil {
			return ExitGenericError, fmt.Errorf("replay world-state: %w", err)
		}

		decision := scheduler.Plan(s.Graph, state)

		switch decision.Status {
		case scheduler.StatusDone:
			if _, err := s.Journal.Append(ctx, s.IterationID, journal.KindIterationComplete, struct{}{}); err != nil {
				return ExitGenericError, fmt.Errorf("append iteration complete: %w", err)
			}
			log.Info("iteration complete")
			return ExitSuccess, nil

		case scheduler.StatusDeadlock:
			if _, err := s.Journal.Append(ctx, s.IterationID, journal.KindDeadlock,
				journal.DeadlockPayload{Unreachable: decision.Unreachable}); err != nil {
				return ExitGenericError, fmt.Errorf("append deadlock: %w", err)
			}
			log.Warn("iteration deadlocked", "unreachable", decision.Unreachable)
			return ExitDeadlock, fmt.Errorf("%w: unreachable kinds %v", ErrDeadlock, decision.Unreachable)
		}

		code, err := s.executeEdge(ctx, decision.Edge, state)
		if err != nil {
			return code, err
		}
	}
}

// worldState replays the iteration's journal into the current world-state
// (spec §8 invariant 3: replay-from-empty matches the live projection).
func (s *Supervisor) worldState(ctx context.Context) (journal.WorldState, error) {
	events, err := s.Journal.Events(ctx, s.IterationID)
	if err != nil {
		return journal.WorldState{}, err
	}
	return journal.Replay(ontology.RootKind, events)
}

// executeEdge carries one edge through spec §4.8's state machine:
// Selected -> PromptReady -> Dispatched -> Responded -> Validated ->
// Persisted -> Verified?, journaling progress and outcome at each
// consequential step.
func (s *Supervisor) executeEdge(ctx context.Context, rel *ontology.Relationship, state journal.WorldState) (ExitCode, error) {
	log := slog.With("iteration_id", s.IterationID, "source", rel.Source.Name, "verb", rel.Verb.Name, "target", rel.Target.Name)
	tracker := newEdgeTracker()

	approved, err := s.approver.approve(rel.Verb.Name)
	if err != nil {
		return ExitGenericError, fmt.Errorf("approval gate for verb %q: %w", rel.Verb.Name, err)
	}
	if !approved {
		return ExitAborted, fmt.Errorf("%w: verb %q not approved", ErrAborted, rel.Verb.Name)
	}

	attempt, err := s.nextAttempt(ctx, rel)
	if err != nil {
		return ExitGenericError, fmt.Errorf("resolve attempt number: %w", err)
	}

	if _, err := s.Journal.Append(ctx, s.IterationID, journal.KindEdgeStart, journal.EdgeStartPayload{
		SourceKind: rel.Source.Name, VerbID: rel.Verb.Name, TargetKind: rel.Target.Name, Attempt: attempt,
	}); err != nil {
		return ExitGenericError, fmt.Errorf("append edge start: %w", err)
	}
	if err := tracker.advance(StatePromptReady); err != nil {
		return ExitGenericError, err
	}

	p, err := prompt.Assemble(ctx, s.Graph, s.PromptLoader, s.Store, s.IterationID, rel, s.Workdir)
	if err != nil {
		return ExitGenericError, fmt.Errorf("assemble prompt: %w", err)
	}

	correlationID := uuid.NewString()
	log = log.With("correlation_id", correlationID)

	req := agentruntime.Request{
		Tool:    agentruntime.Tool(s.resolveAgentTool(rel.Verb.Name)),
		Model:   s.resolveModel(rel.Verb.Name),
		Prompt:  p.Text,
		Workdir: p.Workdir,
		Timeout: s.resolveTimeout(rel.Verb.Name),
		Env:     map[string]string{"ICL_CORRELATION_ID": correlationID},
	}

	if err := tracker.advance(StateDispatched); err != nil {
		return ExitGenericError, err
	}

	resp, err := s.invokeWithRepair(ctx, req)
	if err != nil {
		var malformed *agentruntime.MalformedResponseError
		if errors.As(err, &malformed) {
			return s.failSchemaViolation(ctx, log, tracker, rel, err)
		}
		return s.failEdge(ctx, log, tracker, rel, attempt, err)
	}
	if err := tracker.advance(StateResponded); err != nil {
		return ExitGenericError, err
	}

	if _, err := s.Journal.Append(ctx, s.IterationID, journal.KindAgentOutput, journal.AgentOutputPayload{
		SourceKind: rel.Source.Name, VerbID: rel.Verb.Name, TargetKind: rel.Target.Name,
		CorrelationID: correlationID, Stdout: resp.Stdout, Stderr: resp.Stderr,
	}); err != nil {
		return ExitGenericError, fmt.Errorf("append agent output: %w", err)
	}

	if rel.Verb.VerbType == ontology.VerbTypeVerification {
		return s.recordVerification(ctx, log, tracker, rel, state, resp.Payload)
	}
	return s.recordArtifact(ctx, log, tracker, rel, resp.Payload)
}

// invokeWithRepair invokes req, and on MalformedResponse amends the
// prompt with a repair instruction and retries up to maxMalformedRepairs
// additional times (spec §7).
func (s *Supervisor) invokeWithRepair(ctx context.Context, req agentruntime.Request) (*agentruntime.Response, error) {
	resp, err := agentruntime.InvokeWithRetry(ctx, s.Runtime, req)

	var malformed *agentruntime.MalformedResponseError
	for attempt := 0; errors.As(err, &malformed) && attempt < maxMalformedRepairs; attempt++ {
		req.Prompt += repairAmendment
		resp, err = agentruntime.InvokeWithRetry(ctx, s.Runtime, req)
	}

	return resp, err
}

// recordArtifact validates and persists a Creation/Refinement edge's
// output (spec §4.5 steps 1-2).
func (s *Supervisor) recordArtifact(ctx context.Context, log *slog.Logger, tracker *edgeTracker, rel *ontology.Relationship, payload []byte) (ExitCode, error) {
	if err := tracker.advance(StateValidated); err != nil {
		return ExitGenericError, err
	}

	target, err := s.Graph.Artifacts.Get(rel.Target.Name)
	if err != nil {
		return ExitGenericError, fmt.Errorf("resolve target kind %q: %w", rel.Target.Name, err)
	}

	viaRefinement := rel.Verb.VerbType == ontology.VerbTypeRefinement
	artifact, err := s.Store.Persist(ctx, s.Validator, target.Schema, s.IterationID, rel.Target.Name, payload,
		edgeID(rel), viaRefinement)
	if err != nil {
		return s.failSchemaViolation(ctx, log, tracker, rel, err)
	}

	if err := tracker.advance(StatePersisted); err != nil {
		return ExitGenericError, err
	}

	if _, err := s.Journal.Append(ctx, s.IterationID, journal.KindArtifactPersisted, journal.ArtifactPersistedPayload{
		Kind: rel.Target.Name, InstanceID: fmt.Sprintf("%d", artifact.ID), ViaRefinement: viaRefinement,
	}); err != nil {
		return ExitGenericError, fmt.Errorf("append artifact persisted: %w", err)
	}

	log.Info("artifact persisted", "instance_id", artifact.ID)
	return ExitSuccess, nil
}

// recordVerification runs a Verification edge's reported score through
// the Quality Controller and journals the outcome (spec §4.6).
func (s *Supervisor) recordVerification(ctx context.Context, log *slog.Logger, tracker *edgeTracker,
	rel *ontology.Relationship, state journal.WorldState, payload []byte) (ExitCode, error) {

	if err := tracker.advance(StateValidated); err != nil {
		return ExitGenericError, err
	}

	var result quality.VerificationResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return s.failEdge(ctx, log, tracker, rel, 1, fmt.Errorf("decode verification result: %w", err))
	}

	target, err := s.Graph.Artifacts.Get(rel.Target.Name)
	if err != nil {
		return ExitGenericError, fmt.Errorf("resolve target kind %q: %w", rel.Target.Name, err)
	}

	threshold := quality.ResolveThreshold(rel.Verb.Loop, target)
	retryCount := 0
	if a, ok := state.Artifacts[rel.Target.Name]; ok {
		retryCount = a.RetryCount
	}

	decision := quality.Decide(s.Graph, rel.Target.Name, result, threshold, retryCount)

	if _, err := s.Journal.Append(ctx, s.IterationID, journal.KindVerificationResult, journal.VerificationResultPayload{
		TargetKind: rel.Target.Name, Score: result.Score, Threshold: threshold, Feedback: result.Feedback, Passed: decision.Passed,
	}); err != nil {
		return ExitGenericError, fmt.Errorf("append verification result: %w", err)
	}

	if err := s.Store.RecordVerification(ctx, s.IterationID, rel.Target.Name, result.Score, decision.Passed); err != nil {
		return ExitGenericError, fmt.Errorf("record verification in store: %w", err)
	}

	if decision.Passed {
		if err := tracker.advance(StatePersisted); err != nil {
			return ExitGenericError, err
		}
		if err := tracker.advance(StateVerified); err != nil {
			return ExitGenericError, err
		}
		log.Info("verification passed", "score", result.Score, "threshold", threshold)
		return ExitSuccess, nil
	}

	if decision.TerminalFailed {
		if _, err := s.Journal.Append(ctx, s.IterationID, journal.KindEdgeFailed, journal.EdgeFailedPayload{
			SourceKind: rel.Source.Name, VerbID: rel.Verb.Name, TargetKind: rel.Target.Name,
			ErrorKind: "quality_below_threshold", Message: result.Feedback, Attempt: retryCount + 1,
		}); err != nil {
			return ExitGenericError, fmt.Errorf("append quality failure: %w", err)
		}
		if err := tracker.advance(StateFailed); err != nil {
			return ExitGenericError, err
		}
		log.Warn("quality below threshold, no refinement budget remains", "score", result.Score, "threshold", threshold)
		return ExitQualityFailed, quality.NewQualityBelowThresholdError(rel.Target.Name, result.Score, threshold)
	}

	// A Refinement edge remains with budget; the instance is now checked
	// and below threshold, so the next Plan() call finds that edge
	// eligible on its own, nothing further to record.
	log.Info("verification below threshold, refinement available", "score", result.Score, "threshold", threshold)
	return ExitSuccess, nil
}

// failSchemaViolation handles a SchemaViolation from Store.Persist, or a
// MalformedResponse left after the repair re-prompts: if a Refinement
// edge targeting the same kind still has budget, the failure is journaled
// as retryable and the next Plan() call picks the next edge; otherwise
// it is terminal for the kind (spec §7).
func (s *Supervisor) failSchemaViolation(ctx context.Context, log *slog.Logger, tracker *edgeTracker,
	rel *ontology.Relationship, violation error) (ExitCode, error) {

	retryCount := 0
	if a, err := s.Store.GetCurrent(ctx, s.IterationID, rel.Target.Name); err == nil {
		retryCount = a.RetryCount
	}

	_, budgetRemains := quality.RefinementBudgetRemaining(s.Graph, rel.Target.Name, retryCount)

	errorKind := "schema_violation"
	if budgetRemains {
		errorKind = "schema_violation_retrying"
	}

	if _, err := s.Journal.Append(ctx, s.IterationID, journal.KindEdgeFailed, journal.EdgeFailedPayload{
		SourceKind: rel.Source.Name, VerbID: rel.Verb.Name, TargetKind: rel.Target.Name,
		ErrorKind: errorKind, Message: violation.Error(), Attempt: retryCount + 1,
	}); err != nil {
		return ExitGenericError, fmt.Errorf("append schema violation: %w", err)
	}

	if err := tracker.advance(StateFailed); err != nil {
		return ExitGenericError, err
	}

	if !budgetRemains {
		log.Warn("schema violation, no refinement budget remains", "error", violation)
		return ExitQualityFailed, fmt.Errorf("schema violation for %q, no refinement remains: %w", rel.Target.Name, violation)
	}

	log.Warn("schema violation, refinement available", "error", violation)
	return ExitSuccess, nil
}

// failEdge journals a Transient/RateLimited/Timeout exhaustion (or any
// other non-malformed invocation error) as edge.failed and returns the generic-error exit code
// (spec §7: these are fatal after local retry budgets are exhausted).
func (s *Supervisor) failEdge(ctx context.Context, log *slog.Logger, tracker *edgeTracker,
	rel *ontology.Relationship, attempt int, invokeErr error) (ExitCode, error) {

	if _, err := s.Journal.Append(ctx, s.IterationID, journal.KindEdgeFailed, journal.EdgeFailedPayload{
		SourceKind: rel.Source.Name, VerbID: rel.Verb.Name, TargetKind: rel.Target.Name,
		ErrorKind: errorKindFor(invokeErr), Message: invokeErr.Error(), Attempt: attempt,
	}); err != nil {
		return ExitGenericError, fmt.Errorf("append edge failure: %w", err)
	}
	if err := tracker.advance(StateFailed); err != nil {
		return ExitGenericError, err
	}
	if err := tracker.advance(StateAborted); err != nil {
		return ExitGenericError, err
	}

	log.Error("edge invocation failed", "error", invokeErr)
	return ExitGenericError, fmt.Errorf("invoke edge %s: %w", edgeID(rel), invokeErr)
}

// errorKindFor classifies invokeErr for journaling (spec §7's error kind
// table).
func errorKindFor(err error) string {
	switch {
	case errors.Is(err, agentruntime.ErrTimeout):
		return "timeout"
	case errors.Is(err, agentruntime.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, agentruntime.ErrMalformedResponse):
		return "malformed_response"
	default:
		return "transient"
	}
}

// nextAttempt counts prior EdgeStart events for rel's (sourceKind,
// verbId, targetKind) triple and returns the next attempt number,
// starting at 1 (spec §8 S6's resume scenario).
func (s *Supervisor) nextAttempt(ctx context.Context, rel *ontology.Relationship) (int, error) {
	events, err := s.Journal.Events(ctx, s.IterationID)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, ev := range events {
		if ev.Kind != journal.KindEdgeStart {
			continue
		}
		var p journal.EdgeStartPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			continue
		}
		if p.SourceKind == rel.Source.Name && p.VerbID == rel.Verb.Name && p.TargetKind == rel.Target.Name {
			count++
		}
	}

	return count + 1, nil
}

// resolveModel picks the model for verbName: the ontology verb's own
// inline Model override (spec §3's "optional model override" carried on
// the Verb itself) takes precedence, since it is the domain author's
// declaration closest to the edge; falling back to the project config's
// per_verb_model/default_model layers (spec §6) when the ontology leaves
// it unset.
func (s *Supervisor) resolveModel(verbName string) string {
	if v, err := s.Graph.Verbs.Get(verbName); err == nil && v.Model != nil && v.Model.Model != "" {
		return v.Model.Model
	}
	return s.Config.ResolveModel(verbName)
}

// resolveAgentTool mirrors resolveModel for the agent CLI tool selection.
func (s *Supervisor) resolveAgentTool(verbName string) config.AgentTool {
	if v, err := s.Graph.Verbs.Get(verbName); err == nil && v.Model != nil && v.Model.AgentTool != "" {
		return config.AgentTool(v.Model.AgentTool)
	}
	return s.Config.ResolveAgentTool(verbName)
}

// resolveTimeout picks the per-edge subprocess deadline: the ontology
// verb's own TimeoutSeconds (spec §5: "per-edge ... configurable per
// verb") when set, else the Supervisor's EdgeTimeout default.
func (s *Supervisor) resolveTimeout(verbName string) time.Duration {
	if v, err := s.Graph.Verbs.Get(verbName); err == nil && v.TimeoutSeconds > 0 {
		return time.Duration(v.TimeoutSeconds) * time.Second
	}
	return s.EdgeTimeout
}

// edgeID renders rel as a stable identifier for logs and store attribution.
func edgeID(rel *ontology.Relationship) string {
	return fmt.Sprintf("%s.%s.%s", rel.Source.Name, rel.Verb.Name, rel.Target.Name)
}
