// Package ontology implements the Ontology Loader & Validator (C1): it
// parses a JSON ontology instance and the fixed verb taxonomy, validates
// both against their meta-schemas and a set of semantic invariants, and
// produces a typed in-memory graph with the adjacency indices the
// Scheduler (C2) needs.
package ontology

import "encoding/json"

// Category classifies an ArtifactType. Agent kinds are actors, not
// artifacts, and carry no persisted instances.
type Category string

const (
	CategoryAgent    Category = "Agent"
	CategoryDocument Category = "Document"
	CategoryCode     Category = "Code"
	CategoryOther    Category = "Other"
)

// IsValid reports whether c is one of the fixed artifact categories.
func (c Category) IsValid() bool {
	switch c {
	case CategoryAgent, CategoryDocument, CategoryCode, CategoryOther:
		return true
	default:
		return false
	}
}

// QualityMetric is a single named check with a target score, as referenced
// by an ArtifactType's optional quality-metric list.
type QualityMetric struct {
	Name        string  `json:"name" validate:"required"`
	TargetScore float64 `json:"target_score" validate:"min=0,max=100"`
}

// ArtifactType is a node kind in the ontology graph.
type ArtifactType struct {
	ID             string          `json:"id" validate:"required"`
	Category       Category        `json:"category" validate:"required"`
	Schema         json.RawMessage `json:"schema,omitempty"`
	QualityMetrics []QualityMetric `json:"quality_metrics,omitempty" validate:"dive"`
}

// VerbType is the fixed, closed edge-label taxonomy spec.md §1/§3 mandates.
// The engine is agnostic to verb semantics beyond this tag: domain meaning
// lives in the ontology instance and prompt templates, never in the engine.
type VerbType string

const (
	VerbTypeCreation     VerbType = "Creation"
	VerbTypeVerification VerbType = "Verification"
	VerbTypeRefinement   VerbType = "Refinement"
	VerbTypeContext      VerbType = "Context"
	VerbTypeDependency   VerbType = "Dependency"
)

// IsValid reports whether t is one of the fixed verb types.
func (t VerbType) IsValid() bool {
	switch t {
	case VerbTypeCreation, VerbTypeVerification, VerbTypeRefinement, VerbTypeContext, VerbTypeDependency:
		return true
	default:
		return false
	}
}

// Fires reports whether edges of this verbType are directly selectable by
// the Scheduler. Context and Dependency edges never fire directly; they
// contribute only to context assembly and scheduling gates (spec §4.2).
func (t VerbType) Fires() bool {
	switch t {
	case VerbTypeCreation, VerbTypeVerification, VerbTypeRefinement:
		return true
	default:
		return false
	}
}

// rank orders verbTypes for the Scheduler's tie-break rule (iii): Creation
// before Verification before Refinement when the same target is eligible.
func (t VerbType) rank() int {
	switch t {
	case VerbTypeCreation:
		return 0
	case VerbTypeVerification:
		return 1
	case VerbTypeRefinement:
		return 2
	default:
		return 99
	}
}

// Rank exposes rank() for packages outside ontology (the Scheduler).
func (t VerbType) Rank() int { return t.rank() }

// LoopPolicy bounds a Refinement/Verification edge's retry behavior.
type LoopPolicy struct {
	MaxRetries    int     `json:"max_retries,omitempty"`
	PassThreshold float64 `json:"pass_threshold,omitempty" validate:"omitempty,min=0,max=1"`
}

// ModelOverride selects which external AI CLI tool and model an edge's
// executions should use, overriding the project-level default.
type ModelOverride struct {
	AgentTool string `json:"agent_tool,omitempty"`
	Model     string `json:"model,omitempty"`
}

// Verb is an edge label: an identifier plus the fixed verbType and optional
// loop policy / model override.
type Verb struct {
	ID             string         `json:"id" validate:"required"`
	VerbType       VerbType       `json:"verb_type" validate:"required"`
	Loop           *LoopPolicy    `json:"loop,omitempty"`
	Model          *ModelOverride `json:"model,omitempty"`
	TimeoutSeconds int            `json:"timeout_seconds,omitempty" validate:"omitempty,min=1"`
}

// EndpointRef names an artifact kind by id within a Relationship.
type EndpointRef struct {
	Name string `json:"name" validate:"required"`
	Type string `json:"type,omitempty"`
}

// VerbRef names a verb by id within a Relationship, carrying its verbType
// and optional loop policy inline per the wire format in spec §6
// (`{ source, target, type:{name,verbType,loop?} }`).
type VerbRef struct {
	Name     string      `json:"name" validate:"required"`
	VerbType VerbType    `json:"verbType" validate:"required"`
	Loop     *LoopPolicy `json:"loop,omitempty"`
}

// Relationship is a (sourceKind, verbId, targetKind) triple plus an
// optional natural-language prompt template.
type Relationship struct {
	Source EndpointRef `json:"source" validate:"required"`
	Target EndpointRef `json:"target" validate:"required"`
	Verb   VerbRef     `json:"type" validate:"required"`
	Prompt string      `json:"prompt,omitempty"`
}

// Document is the top-level JSON shape of an ontology instance file.
type Document struct {
	ArtifactTypes []ArtifactType `json:"artifact_types" validate:"required,dive"`
	Verbs         []Verb         `json:"verbs" validate:"required,dive"`
	Relationships []Relationship `json:"relationships" validate:"required,dive"`
}

// RootKind is the one artifact kind spec.md §3 requires every ontology to
// have: no incoming Dependency edges, seeded into World-state.produced.
const RootKind = "SoftwareApplication"
