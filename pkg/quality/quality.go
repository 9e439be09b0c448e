// Package quality implements the Quality/Retry Controller (C6): threshold
// resolution and the verify/refine decision after a Verification edge
// fires (spec §4.6).
package quality

import (
	"fmt"

	"github.com/codeready-toolchain/icl/pkg/ontology"
)

// DefaultPassThreshold is the fallback pass threshold when neither the
// Verification edge nor the target kind's quality metrics specify one
// (spec §4.6: "(c) 1.0").
const DefaultPassThreshold = 1.0

// QualityMetricThreshold extracts a pass threshold from a quality metric
// target score (0-100 scale) normalized to the 0-1 scale Verification
// scores use.
func QualityMetricThreshold(metric ontology.QualityMetric) float64 {
	return metric.TargetScore / 100.0
}

// ResolveThreshold picks the pass threshold for target kind T: (a) the
// firing Verification edge's loop.passThreshold, else (b) the first
// quality metric on T's ArtifactType, else (c) DefaultPassThreshold
// (spec §4.6), following the "last non-zero override wins" folding
// pattern tarsy's config_resolver.go uses for its own override chains,
// narrowed here to a two-level chain evaluated in spec-mandated order
// rather than folded left-to-right (the precedence order itself is fixed
// by spec §4.6, not caller-supplied).
func ResolveThreshold(edgeLoop *ontology.LoopPolicy, target *ontology.ArtifactType) float64 {
	if edgeLoop != nil && edgeLoop.PassThreshold > 0 {
		return edgeLoop.PassThreshold
	}
	if target != nil && len(target.QualityMetrics) > 0 {
		return QualityMetricThreshold(target.QualityMetrics[0])
	}
	return DefaultPassThreshold
}

// VerificationResult is the payload a Verification edge must return
// (spec §4.6: "the payload must contain {score: 0..1, feedback}").
type VerificationResult struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// Decision is the controller's verdict after a Verification edge fires.
type Decision struct {
	Passed         bool
	Threshold      float64
	RefinementEdge *ontology.Relationship
	TerminalFailed bool
}

// Decide implements spec §4.6's post-verification logic: if result.Score
// meets threshold, the kind passes. Otherwise, if a Refinement edge
// targeting T exists and retryCount has not exhausted its maxRetries
// budget, that edge is returned for the Scheduler to select next;
// otherwise T is marked verified=false, terminal-failed.
func Decide(graph *ontology.Graph, target string, result VerificationResult, threshold float64, retryCount int) Decision {
	if result.Score >= threshold {
		return Decision{Passed: true, Threshold: threshold}
	}

	if rel, ok := RefinementBudgetRemaining(graph, target, retryCount); ok {
		return Decision{Passed: false, Threshold: threshold, RefinementEdge: rel}
	}

	return Decision{Passed: false, Threshold: threshold, TerminalFailed: true}
}

// RefinementBudgetRemaining reports whether a Refinement edge targeting
// target still has retries left at retryCount, returning that edge. Used
// both by Decide (a failed Verification score) and by callers handling a
// SchemaViolation (spec §7: "otherwise terminal for that artifact" applies
// the same budget rule as a failed Verification, without a score to
// compare).
func RefinementBudgetRemaining(graph *ontology.Graph, target string, retryCount int) (*ontology.Relationship, bool) {
	for _, rel := range graph.ReverseByTarget(target) {
		if rel.Verb.VerbType != ontology.VerbTypeRefinement {
			continue
		}
		maxRetries := 0
		if rel.Verb.Loop != nil {
			maxRetries = rel.Verb.Loop.MaxRetries
		}
		if retryCount < maxRetries {
			return rel, true
		}
	}
	return nil, false
}

// ErrQualityBelowThreshold reports, per spec §4.6, that a kind failed
// verification with no remaining refinement budget.
type ErrQualityBelowThreshold struct {
	Kind      string
	Score     float64
	Threshold float64
}

func (e *ErrQualityBelowThreshold) Error() string {
	return fmt.Sprintf("quality below threshold for %q: score %.3f < threshold %.3f", e.Kind, e.Score, e.Threshold)
}

// NewQualityBelowThresholdError constructs an ErrQualityBelowThreshold.
func NewQualityBelowThresholdError(kind string, score, threshold float64) *ErrQualityBelowThreshold {
	return &ErrQualityBelowThreshold{Kind: kind, Score: score, Threshold: threshold}
}
