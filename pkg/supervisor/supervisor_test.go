package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/codeready-toolchain/icl/pkg/agentruntime"
	"github.com/codeready-toolchain/icl/pkg/config"
	"github.com/codeready-toolchain/icl/pkg/journal"
	"github.com/codeready-toolchain/icl/pkg/ontology"
	"github.com/codeready-toolchain/icl/pkg/prompt"
	"github.com/codeready-toolchain/icl/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedInvoker returns one pre-recorded response or error per call, in
// order, standing in for agentruntime.Runner the same way tarsy's
// pkg/queue/executor_stub.go fakes a real SessionExecutor.
type scriptedInvoker struct {
	mu    sync.Mutex
	steps []scriptedStep
	idx   int
}

type scriptedStep struct {
	payload string
	err     error
}

func (s *scriptedInvoker) Invoke(_ context.Context, _ agentruntime.Request) (*agentruntime.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.idx >= len(s.steps) {
		return nil, errors.New("scriptedInvoker: no more scripted steps")
	}
	step := s.steps[s.idx]
	s.idx++

	if step.err != nil {
		return nil, step.err
	}
	return &agentruntime.Response{Payload: []byte(step.payload)}, nil
}

// testHarness wires a Supervisor over a temporary journal/store file and a
// scripted invoker, for one iteration.
type testHarness struct {
	t           *testing.T
	supervisor  *Supervisor
	journal     *journal.Client
	store       *store.Client
	invoker     *scriptedInvoker
	iterationID string
}

func newTestHarness(t *testing.T, graph *ontology.Graph, steps []scriptedStep) *testHarness {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	j, err := journal.Open(ctx, filepath.Join(dir, JournalFile))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	s, err := store.Open(ctx, filepath.Join(dir, JournalFile))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	loader := prompt.NewLoader(dir)
	invoker := &scriptedInvoker{steps: steps}

	cfg := &config.Config{
		DefaultModel:     "gpt-5",
		DefaultAgentTool: config.AgentToolClaude,
		PerVerbModel:     map[string]config.ModelOverride{},
	}

	sup := New(graph, cfg, j, s, loader, invoker, "test-iter", dir, AutoApprover{})

	return &testHarness{t: t, supervisor: sup, journal: j, store: s, invoker: invoker, iterationID: "test-iter"}
}

func TestRun_S1_CompletesBothCreations(t *testing.T) {
	graph, err := ontology.Load("../scheduler/testdata/s1_minimal.json")
	require.NoError(t, err)

	h := newTestHarness(t, graph, []scriptedStep{
		{payload: `{"name": "spec"}`}, // Architect creates DesignSpec
		{payload: `{"name": "code"}`}, // Engineer creates Code
	})

	code, err := h.supervisor.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, ExitSuccess, code)

	events, err := h.journal.Events(context.Background(), h.iterationID)
	require.NoError(t, err)
	assert.Equal(t, journal.KindIterationComplete, events[len(events)-1].Kind)

	ds, err := h.store.GetCurrent(context.Background(), h.iterationID, "DesignSpec")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name": "spec"}`, string(ds.Payload))
}

func TestRun_VerifyFailThenRefineThenPass(t *testing.T) {
	graph, err := ontology.Load("../quality/testdata/refinement.json")
	require.NoError(t, err)

	h := newTestHarness(t, graph, []scriptedStep{
		{payload: `{"code": "v1"}`},                          // Engineer creates Code
		{payload: `{"score": 0.5, "feedback": "needs work"}`}, // QA verifies, fails
		{payload: `{"code": "v2"}`},                          // Engineer refines
		{payload: `{"score": 0.95, "feedback": "good"}`},      // QA verifies, passes
	})

	code, err := h.supervisor.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, ExitSuccess, code)

	current, err := h.store.GetCurrent(context.Background(), h.iterationID, "Code")
	require.NoError(t, err)
	assert.True(t, current.Verified)
	assert.Equal(t, 1, current.RetryCount)
	assert.JSONEq(t, `{"code": "v2"}`, string(current.Payload))
}

func TestRun_QualityFailsTerminallyWhenRefinementBudgetExhausted(t *testing.T) {
	graph, err := ontology.Load("../quality/testdata/refinement.json")
	require.NoError(t, err)

	h := newTestHarness(t, graph, []scriptedStep{
		{payload: `{"code": "v1"}`},
		{payload: `{"score": 0.1, "feedback": "bad"}`},
		{payload: `{"code": "v2"}`},
		{payload: `{"score": 0.2, "feedback": "still bad"}`},
		{payload: `{"code": "v3"}`},
		{payload: `{"score": 0.3, "feedback": "still bad"}`},
	})

	code, err := h.supervisor.Run(context.Background())

	require.Error(t, err)
	assert.Equal(t, ExitQualityFailed, code)
}

func TestRun_InvocationFailureIsGenericError(t *testing.T) {
	graph, err := ontology.Load("../scheduler/testdata/s1_minimal.json")
	require.NoError(t, err)

	h := newTestHarness(t, graph, []scriptedStep{
		{err: errors.New("boom")}, // Architect's Creation of DesignSpec fails irrecoverably
	})

	code, err := h.supervisor.Run(context.Background())

	require.Error(t, err)
	assert.Equal(t, ExitGenericError, code)

	events, err := h.journal.Events(context.Background(), h.iterationID)
	require.NoError(t, err)
	assert.Equal(t, journal.KindEdgeFailed, events[len(events)-1].Kind)
}

func TestRun_AbortsOnCancelledContext(t *testing.T) {
	graph, err := ontology.Load("../scheduler/testdata/s1_minimal.json")
	require.NoError(t, err)

	h := newTestHarness(t, graph, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	code, err := h.supervisor.Run(ctx)

	require.Error(t, err)
	assert.Equal(t, ExitAborted, code)
	assert.ErrorIs(t, err, ErrAborted)
}

func TestRun_DeniedApprovalAbortsIteration(t *testing.T) {
	graph, err := ontology.Load("../scheduler/testdata/s1_minimal.json")
	require.NoError(t, err)

	h := newTestHarness(t, graph, nil)
	h.supervisor.approver = newGatedApprover(denyingApprover{})

	code, err := h.supervisor.Run(context.Background())

	require.Error(t, err)
	assert.Equal(t, ExitAborted, code)
}

type denyingApprover struct{}

func (denyingApprover) Approve(string) (bool, error) { return false, nil }

func TestResolve_OntologyVerbOverrideWinsOverConfig(t *testing.T) {
	graph, err := ontology.Load("testdata/verb_override.json")
	require.NoError(t, err)

	h := newTestHarness(t, graph, nil)

	assert.Equal(t, "gemini-2.5-pro", h.supervisor.resolveModel("creates"))
	assert.Equal(t, config.AgentToolGemini, h.supervisor.resolveAgentTool("creates"))
	assert.Equal(t, 42*time.Second, h.supervisor.resolveTimeout("creates"))
}

func TestResolve_FallsBackToConfigWhenOntologyVerbHasNoOverride(t *testing.T) {
	graph, err := ontology.Load("testdata/verb_override.json")
	require.NoError(t, err)

	h := newTestHarness(t, graph, nil)

	assert.Equal(t, "gpt-5", h.supervisor.resolveModel("unoverridden"))
	assert.Equal(t, config.AgentToolClaude, h.supervisor.resolveAgentTool("unoverridden"))
	assert.Equal(t, DefaultEdgeTimeout, h.supervisor.resolveTimeout("unoverridden"))
}

// TestRun_S5_DeadlocksOnGenuinelyUnreachableKind covers spec §8 S5 with a
// kind that can never fire — not the TerminalFailed path already covered
// in pkg/scheduler's own tests — because its only Dependency prerequisite
// has no Creation edge producing it anywhere in the graph.
func TestRun_S5_DeadlocksOnGenuinelyUnreachableKind(t *testing.T) {
	graph, err := ontology.Load("testdata/s5_deadlock.json")
	require.NoError(t, err)

	h := newTestHarness(t, graph, nil)

	code, err := h.supervisor.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeadlock)
	assert.Equal(t, ExitDeadlock, code)

	events, err := h.journal.Events(context.Background(), h.iterationID)
	require.NoError(t, err)
	last := events[len(events)-1]
	require.Equal(t, journal.KindDeadlock, last.Kind)

	var payload journal.DeadlockPayload
	require.NoError(t, json.Unmarshal(last.Payload, &payload))
	assert.Contains(t, payload.Unreachable, "Code")
}

// TestRun_S6_ResumeRecordsDistinctAttemptNumbers covers spec §8 S6: a
// first run fails on a transient invocation error (not a terminal one),
// leaving its EdgeStart recorded at Attempt 1; a second Supervisor built
// over the *same* journal/store — standing in for the CLI resuming an
// interrupted iteration — re-selects the same edge and records a second
// EdgeStart with Attempt 2, then completes the iteration.
func TestRun_S6_ResumeRecordsDistinctAttemptNumbers(t *testing.T) {
	graph, err := ontology.Load("../scheduler/testdata/s1_minimal.json")
	require.NoError(t, err)

	h := newTestHarness(t, graph, []scriptedStep{
		{err: agentruntime.NewTransientError(errors.New("subprocess exited 1"))},
	})

	code, err := h.supervisor.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, ExitGenericError, code)

	resumed := New(graph, h.supervisor.Config, h.journal, h.store, h.supervisor.PromptLoader,
		&scriptedInvoker{steps: []scriptedStep{
			{payload: `{"name": "spec"}`}, // Architect creates DesignSpec, attempt 2
			{payload: `{"name": "code"}`}, // Engineer creates Code
		}}, h.iterationID, h.supervisor.Workdir, AutoApprover{})

	code, err = resumed.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ExitSuccess, code)

	events, err := h.journal.Events(context.Background(), h.iterationID)
	require.NoError(t, err)

	var attempts []int
	for _, ev := range events {
		if ev.Kind != journal.KindEdgeStart {
			continue
		}
		var p journal.EdgeStartPayload
		require.NoError(t, json.Unmarshal(ev.Payload, &p))
		if p.SourceKind == "Architect" && p.VerbID == "creates" && p.TargetKind == "DesignSpec" {
			attempts = append(attempts, p.Attempt)
		}
	}
	assert.Equal(t, []int{1, 2}, attempts)
}

// TestRun_S7_MalformedResponseRepairsThenSucceeds covers spec §8 S7 at
// the supervisor level: the first invocation returns a MalformedResponse,
// invokeWithRepair amends the prompt and retries, and the second
// invocation succeeds — exercised through the full Run loop rather than
// unit-testing invokeWithRepair in isolation.
func TestRun_S7_MalformedResponseRepairsThenSucceeds(t *testing.T) {
	graph, err := ontology.Load("../scheduler/testdata/s1_minimal.json")
	require.NoError(t, err)

	h := newTestHarness(t, graph, []scriptedStep{
		{err: agentruntime.NewMalformedResponseError(2)}, // Architect's first reply has 2 fenced blocks
		{payload: `{"name": "spec"}`},                     // repaired retry succeeds
		{payload: `{"name": "code"}`},                     // Engineer creates Code
	})

	code, err := h.supervisor.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, ExitSuccess, code)

	ds, err := h.store.GetCurrent(context.Background(), h.iterationID, "DesignSpec")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name": "spec"}`, string(ds.Payload))

	events, err := h.journal.Events(context.Background(), h.iterationID)
	require.NoError(t, err)
	assert.Equal(t, journal.KindIterationComplete, events[len(events)-1].Kind)
}
