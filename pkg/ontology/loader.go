package ontology

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed metaschema
var metaschemaFS embed.FS

// Load reads the ontology instance at path, validates it against the
// meta-schemas and the semantic invariants in spec §4.1, and returns a
// typed Graph. Validation order: (a) JSON syntactic parse; (b) structural
// schema validation of the meta-schemas themselves; (c) taxonomy instance
// against the meta taxonomy; (d) ontology instance against the ontology
// meta-schema; (e) semantic checks (reference existence, verbType
// constraints, Dependency acyclicity, single root).
func Load(path string) (*Graph, error) {
	log := slog.With("ontology_path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewIOError(path, err)
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, NewInvalidError(fmt.Sprintf("JSON syntax error: %v", err), path)
	}

	compiler, err := newMetaCompiler()
	if err != nil {
		return nil, err
	}

	taxonomySchema, err := compiler.Compile("taxonomy.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile taxonomy meta-schema: %w", err)
	}
	ontologySchema, err := compiler.Compile("ontology.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile ontology meta-schema: %w", err)
	}

	if err := validateBuiltinTaxonomy(taxonomySchema); err != nil {
		return nil, err
	}

	if err := ontologySchema.Validate(raw); err != nil {
		return nil, NewInvalidError(fmt.Sprintf("schema validation: %v", err), path)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, NewInvalidError(fmt.Sprintf("decode ontology: %v", err), path)
	}

	graph, err := build(doc)
	if err != nil {
		return nil, err
	}

	log.Info("ontology loaded",
		"artifact_types", graph.Artifacts.Len(),
		"verbs", graph.Verbs.Len(),
		"relationships", len(graph.Relationships))

	return graph, nil
}

// newMetaCompiler registers the embedded taxonomy and ontology
// meta-schemas with a fresh jsonschema compiler.
func newMetaCompiler() (*jsonschema.Compiler, error) {
	compiler := jsonschema.NewCompiler()

	for _, name := range []string{"taxonomy.schema.json", "ontology.schema.json"} {
		data, err := metaschemaFS.ReadFile("metaschema/" + name)
		if err != nil {
			return nil, fmt.Errorf("read embedded %s: %w", name, err)
		}
		decoded, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("unmarshal embedded %s: %w", name, err)
		}
		if err := compiler.AddResource(name, decoded); err != nil {
			return nil, fmt.Errorf("add resource %s: %w", name, err)
		}
	}

	return compiler, nil
}

// validateBuiltinTaxonomy validates the fixed, embedded taxonomy instance
// against the compiled taxonomy meta-schema (step (c)). The taxonomy is
// not user-supplied — it is the fixed verb taxonomy from spec §1/§3 — so
// this check guards against the taxonomy document itself drifting out of
// sync with its own meta-schema, not against user error.
func validateBuiltinTaxonomy(taxonomySchema *jsonschema.Schema) error {
	data, err := metaschemaFS.ReadFile("metaschema/taxonomy.json")
	if err != nil {
		return fmt.Errorf("read embedded taxonomy instance: %w", err)
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("unmarshal embedded taxonomy instance: %w", err)
	}
	if err := taxonomySchema.Validate(instance); err != nil {
		return NewInvalidError(fmt.Sprintf("built-in taxonomy failed its own meta-schema: %v", err), "")
	}
	return nil
}

// build runs semantic validation (step (e)) and assembles the typed Graph.
func build(doc Document) (*Graph, error) {
	artifacts := NewArtifactRegistry(doc.ArtifactTypes)
	verbs := NewVerbRegistry(doc.Verbs)

	roots := 0
	for _, at := range doc.ArtifactTypes {
		if at.ID == RootKind {
			roots++
		}
	}
	if roots != 1 {
		return nil, NewInvalidError(
			fmt.Sprintf("exactly one %s root kind is required, found %d", RootKind, roots), "")
	}

	for _, rel := range doc.Relationships {
		if !artifacts.Has(rel.Source.Name) {
			return nil, NewInvalidError(fmt.Sprintf("relationship references undefined source kind %q", rel.Source.Name), "")
		}
		if !artifacts.Has(rel.Target.Name) {
			return nil, NewInvalidError(fmt.Sprintf("relationship references undefined target kind %q", rel.Target.Name), "")
		}
		if !verbs.Has(rel.Verb.Name) {
			return nil, NewInvalidError(fmt.Sprintf("relationship references undefined verb %q", rel.Verb.Name), "")
		}
		if !rel.Verb.VerbType.IsValid() {
			return nil, NewInvalidError(fmt.Sprintf("relationship verb %q has invalid verbType %q", rel.Verb.Name, rel.Verb.VerbType), "")
		}

		srcKind, _ := artifacts.Get(rel.Source.Name)
		tgtKind, _ := artifacts.Get(rel.Target.Name)

		switch rel.Verb.VerbType {
		case VerbTypeCreation, VerbTypeVerification, VerbTypeRefinement:
			if srcKind.Category != CategoryAgent {
				return nil, NewInvalidError(fmt.Sprintf(
					"%s edge %q source %q must be an Agent kind", rel.Verb.VerbType, rel.Verb.Name, rel.Source.Name), "")
			}
			if tgtKind.Category == CategoryAgent {
				return nil, NewInvalidError(fmt.Sprintf(
					"%s edge %q target %q must not be an Agent kind", rel.Verb.VerbType, rel.Verb.Name, rel.Target.Name), "")
			}
		case VerbTypeDependency:
			if srcKind.Category == CategoryAgent || tgtKind.Category == CategoryAgent {
				return nil, NewInvalidError(fmt.Sprintf(
					"Dependency edge %q must connect two non-Agent kinds", rel.Verb.Name), "")
			}
		}
	}

	for _, rel := range doc.Relationships {
		if rel.Verb.VerbType == VerbTypeDependency && rel.Target.Name == RootKind {
			return nil, NewInvalidError(fmt.Sprintf("%s root kind must have no incoming Dependency edges", RootKind), "")
		}
	}

	// A relationship without an inline loop policy takes its verb's.
	for i := range doc.Relationships {
		rel := &doc.Relationships[i]
		if rel.Verb.Loop != nil {
			continue
		}
		if v, err := verbs.Get(rel.Verb.Name); err == nil {
			rel.Verb.Loop = v.Loop
		}
	}

	graph := &Graph{
		Artifacts:     artifacts,
		Verbs:         verbs,
		Relationships: doc.Relationships,
	}
	graph.buildIndices()
	graph.computeBFSDistance(RootKind)

	for _, scc := range graph.dependencySCCs() {
		if len(scc) > 1 {
			return nil, NewCyclicError(scc)
		}
	}

	return graph, nil
}
