// Package scheduler implements the Execution Planner (C2): a pure
// function over an ontology graph and the current world-state that picks
// the next edge to fire, or reports completion/deadlock (spec §4.2).
package scheduler

import (
	"sort"

	"github.com/codeready-toolchain/icl/pkg/journal"
	"github.com/codeready-toolchain/icl/pkg/ontology"
)

// Status is the outcome of a Plan call.
type Status int

const (
	// StatusFire means Edge names the next relationship to execute.
	StatusFire Status = iota
	// StatusDone means every reachable non-Agent kind has reached its
	// terminal state (verified, or produced if unverifiable).
	StatusDone
	// StatusDeadlock means no candidate edge fires but completion is not
	// reached; Unreachable names the stuck kinds.
	StatusDeadlock
)

// Decision is Plan's pure-function result (spec §4.2, §9(b)).
type Decision struct {
	Status      Status
	Edge        *ontology.Relationship
	Unreachable []string
}

// Plan implements spec §4.2's policy: candidate set, firing predicate by
// verbType, tie-breaking, and completion/deadlock detection. It has no
// mutable receiver and performs no I/O, mirroring spec §9(b)'s "pure
// function" design note and — in shape, not in domain — tarsy's stateless
// resolution helpers in pkg/agent/config_resolver.go, which fold a fixed
// set of inputs into one deterministic output with no side effects.
func Plan(graph *ontology.Graph, state journal.WorldState) Decision {
	candidates := candidateEdges(graph, state)
	if len(candidates) > 0 {
		sortCandidates(graph, candidates)
		return Decision{Status: StatusFire, Edge: candidates[0]}
	}

	if isComplete(graph, state) {
		return Decision{Status: StatusDone}
	}

	return Decision{Status: StatusDeadlock, Unreachable: unreachableKinds(graph, state)}
}

// candidateEdges returns every firing edge whose source is an Agent kind
// and whose target is currently eligible by verbType (spec §4.2 steps
// 1-2). Dependency prerequisites gate eligibility via
// dependenciesSatisfied, not via a separate filter pass, since a kind
// with unmet Dependency prerequisites simply never satisfies any
// firing predicate below (Creation's "not yet produced" is true, but its
// prerequisites aren't, so it must not fire).
func candidateEdges(graph *ontology.Graph, state journal.WorldState) []*ontology.Relationship {
	var out []*ontology.Relationship

	for i := range graph.Relationships {
		rel := &graph.Relationships[i]
		if !rel.Verb.VerbType.Fires() {
			continue
		}
		if !dependenciesSatisfied(graph, state, rel.Target.Name) {
			continue
		}
		if fires(state, rel) {
			out = append(out, rel)
		}
	}

	return out
}

// dependenciesSatisfied reports whether every kind K with a Dependency
// edge K->target is in state.Produced (spec §4.2 step 1).
func dependenciesSatisfied(graph *ontology.Graph, state journal.WorldState, target string) bool {
	for _, rel := range graph.ReverseByTarget(target) {
		if rel.Verb.VerbType != ontology.VerbTypeDependency {
			continue
		}
		if !state.Produced(rel.Source.Name) {
			return false
		}
	}
	return true
}

// fires implements the firing predicate for a single edge (spec §4.2
// step 2).
func fires(state journal.WorldState, rel *ontology.Relationship) bool {
	target := rel.Target.Name

	switch rel.Verb.VerbType {
	case ontology.VerbTypeCreation:
		return !state.Produced(target) && !state.TerminalFailed(target)
	case ontology.VerbTypeVerification:
		// Checked gates re-firing: once a Verification has recorded a score
		// for the current instance, the same edge must not re-fire until a
		// Refinement produces a new instance to check (spec §4.2 step 2).
		return state.Produced(target) && !state.Checked(target) && !state.Verified(target) && !state.TerminalFailed(target)
	case ontology.VerbTypeRefinement:
		if !state.Produced(target) || !state.Checked(target) {
			return false
		}
		artifact := state.Artifacts[target]
		if artifact == nil || artifact.Verified {
			return false
		}
		threshold := 1.0
		maxRetries := 0
		if rel.Verb.Loop != nil {
			if rel.Verb.Loop.PassThreshold > 0 {
				threshold = rel.Verb.Loop.PassThreshold
			}
			maxRetries = rel.Verb.Loop.MaxRetries
		}
		return artifact.QualityScore < threshold && artifact.RetryCount < maxRetries
	default:
		return false
	}
}

// sortCandidates applies spec §4.2 step 3's tie-break rule in place:
// (i) lower BFS distance from root, then rule (iii)'s Creation <
// Verification < Refinement rank when candidates share a target, then
// rule (ii)'s lexical (sourceKind, verbId, targetKind) order otherwise.
func sortCandidates(graph *ontology.Graph, candidates []*ontology.Relationship) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]

		da, db := graph.BFSDistance(a.Target.Name), graph.BFSDistance(b.Target.Name)
		da, db = normalizeDistance(da), normalizeDistance(db)
		if da != db {
			return da < db
		}

		// Rule (iii) ("Creation before Verification before Refinement when
		// the same target is eligible") only ever has an effect between
		// candidates sharing a target: full lexical (sourceKind, verbId,
		// targetKind) order always already separates same-target
		// candidates on sourceKind (two edges can't share source, verb,
		// and target), so applying the lexical tuple first would make
		// rule (iii) unreachable. Apply it as its own branch instead.
		if a.Target.Name == b.Target.Name {
			if ra, rb := a.Verb.VerbType.Rank(), b.Verb.VerbType.Rank(); ra != rb {
				return ra < rb
			}
			if a.Source.Name != b.Source.Name {
				return a.Source.Name < b.Source.Name
			}
			return a.Verb.Name < b.Verb.Name
		}

		if a.Source.Name != b.Source.Name {
			return a.Source.Name < b.Source.Name
		}
		if a.Verb.Name != b.Verb.Name {
			return a.Verb.Name < b.Verb.Name
		}
		return a.Target.Name < b.Target.Name
	})
}

// normalizeDistance maps an unreachable kind's -1 BFS distance to the
// largest possible ordering key so unreachable candidates never win a
// tie-break over reachable ones (an edge can still fire for an
// unreachable target — BFS distance governs ordering only, not
// eligibility).
func normalizeDistance(d int) int {
	if d < 0 {
		return int(^uint(0) >> 1)
	}
	return d
}

// isComplete reports spec §4.2 step 4's completion predicate: every
// reachable non-Agent kind is verified, or produced if no Verification
// edge targets it. "Reachable" means produced by the workflow at all:
// the root, or a kind targeted by at least one Creation edge (a kind
// that appears only as a Dependency/Context source or target, with no
// Creation edge ever producing it, is not part of the engine's firing
// graph and is excluded — BFS distance is a tie-break concern (step 3),
// not a reachability concern here).
func isComplete(graph *ontology.Graph, state journal.WorldState) bool {
	for kind := range reachableKinds(graph) {
		if !kindSatisfied(graph, state, kind) {
			return false
		}
	}
	return true
}

// reachableKinds returns the set of non-Agent kinds the completion and
// deadlock checks consider: the root, plus every kind targeted by at
// least one Creation edge.
func reachableKinds(graph *ontology.Graph) map[string]struct{} {
	out := map[string]struct{}{ontology.RootKind: {}}
	for _, rel := range graph.Relationships {
		if rel.Verb.VerbType == ontology.VerbTypeCreation {
			out[rel.Target.Name] = struct{}{}
		}
	}
	return out
}

// kindSatisfied reports whether kind has reached its terminal state.
func kindSatisfied(graph *ontology.Graph, state journal.WorldState, kind string) bool {
	if hasVerificationEdge(graph, kind) {
		return state.Verified(kind)
	}
	return state.Produced(kind)
}

func hasVerificationEdge(graph *ontology.Graph, kind string) bool {
	for _, rel := range graph.ReverseByTarget(kind) {
		if rel.Verb.VerbType == ontology.VerbTypeVerification {
			return true
		}
	}
	return false
}

// unreachableKinds lists every reachable kind not yet satisfied, for
// Deadlock reporting (spec §4.2 step 4).
func unreachableKinds(graph *ontology.Graph, state journal.WorldState) []string {
	var out []string
	for kind := range reachableKinds(graph) {
		if !kindSatisfied(graph, state, kind) {
			out = append(out, kind)
		}
	}
	sort.Strings(out)
	return out
}
