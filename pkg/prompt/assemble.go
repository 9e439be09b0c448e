package prompt

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/icl/pkg/ontology"
)

// Assemble builds the full prompt for a firing edge, tying together
// persona/template resolution (Loader), context-bag assembly
// (BuildContext), and output-schema instructions (the target kind's
// schema, when set) into one Builder.Build() call (spec §4.3).
func Assemble(ctx context.Context, graph *ontology.Graph, loader *Loader, reader ArtifactReader, iterationID string, rel *ontology.Relationship, workdir string) (Prompt, error) {
	persona, err := loader.Persona(rel.Source.Name)
	if err != nil {
		return Prompt{}, fmt.Errorf("resolve persona for %q: %w", rel.Source.Name, err)
	}

	template, err := loader.Template(rel.Source.Name, rel.Verb.Name, rel.Target.Name, rel.Prompt)
	if err != nil {
		return Prompt{}, fmt.Errorf("resolve template for %s.%s.%s: %w", rel.Source.Name, rel.Verb.Name, rel.Target.Name, err)
	}

	includeTarget := rel.Verb.VerbType == ontology.VerbTypeVerification || rel.Verb.VerbType == ontology.VerbTypeRefinement
	contextBag, err := BuildContext(ctx, graph, reader, iterationID, rel.Target.Name, includeTarget)
	if err != nil {
		return Prompt{}, fmt.Errorf("assemble context for %q: %w", rel.Target.Name, err)
	}

	builder := NewBuilder().
		WithPersona(persona).
		WithTemplate(template).
		WithContext(contextBag).
		WithWorkdir(workdir)

	if target, err := graph.Artifacts.Get(rel.Target.Name); err == nil && len(target.Schema) > 0 {
		builder = builder.WithSchema(target.Schema)
	}

	return builder.Build(), nil
}
