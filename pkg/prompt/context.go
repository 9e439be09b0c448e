package prompt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/codeready-toolchain/icl/pkg/ontology"
	"github.com/codeready-toolchain/icl/pkg/store"
)

// ArtifactReader is the read-only subset of store.Client the context
// assembler needs, kept as an interface so tests can fake it without a
// real SQLite file.
type ArtifactReader interface {
	GetCurrent(ctx context.Context, iterationID, kind string) (*store.Artifact, error)
}

// BuildContext assembles the context bag for a firing edge targeting
// target: the kinds reachable from target via incoming Context-verbType
// edges, the target kind itself (for Verification/Refinement, where the
// agent needs to see what it is checking or improving), and the root
// kind, always (spec §4.3, grounded on tarsy's stage-context assembly).
// Kinds with no persisted current instance yet are silently omitted.
func BuildContext(ctx context.Context, graph *ontology.Graph, reader ArtifactReader, iterationID, target string, includeTarget bool) (map[string]json.RawMessage, error) {
	kinds := map[string]struct{}{ontology.RootKind: {}}
	if includeTarget {
		kinds[target] = struct{}{}
	}

	for _, rel := range graph.ReverseByTarget(target) {
		if rel.Verb.VerbType == ontology.VerbTypeContext {
			kinds[rel.Source.Name] = struct{}{}
		}
	}

	out := map[string]json.RawMessage{}
	for kind := range kinds {
		artifact, err := reader.GetCurrent(ctx, iterationID, kind)
		if err != nil {
			if errors.Is(err, store.ErrArtifactNotFound) {
				continue
			}
			return nil, fmt.Errorf("load context instance %q: %w", kind, err)
		}
		out[kind] = artifact.Payload
	}

	return out, nil
}
