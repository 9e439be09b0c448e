package ontology

import "embed"

//go:embed builtin/reference.json
var builtinFS embed.FS

// BuiltinOntologyJSON returns a minimal reference ontology (Architect
// creates a DesignSpec, Engineer creates Code depending on it, QA verifies
// Code, Engineer refines Code on failure) that `icl init` writes into a new
// project's spec folder as a starting point — analogous to tarsy's
// pkg/config/builtin.go shipping a built-in default configuration rather
// than requiring every new deployment to author one from scratch.
func BuiltinOntologyJSON() ([]byte, error) {
	return builtinFS.ReadFile("builtin/reference.json")
}
