package prompt

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// personaFile is the on-disk shape of team_members/<agent>.json.
type personaFile struct {
	Persona string `json:"persona"`
}

// defaultPersona is used when an agent has no team_members/<agent>.json.
const defaultPersona = "You are a careful, focused software engineering agent. Follow the instructions exactly and produce only what is asked for."

// Loader resolves persona and template files relative to an ontology's
// directory (spec §4.3: "loaded from team_members/<agent>.json ... from
// relationship/prompt/<agent>_<verb>_<target>.md, both relative to the
// ontology's directory").
type Loader struct {
	ontologyDir string
}

// NewLoader returns a Loader rooted at ontologyDir, the directory
// containing the loaded ontology's JSON file.
func NewLoader(ontologyDir string) *Loader {
	return &Loader{ontologyDir: ontologyDir}
}

// Persona returns agent's system persona text, falling back to
// defaultPersona when team_members/<agent>.json does not exist.
func (l *Loader) Persona(agent string) (string, error) {
	path := filepath.Join(l.ontologyDir, "team_members", agent+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultPersona, nil
		}
		return "", fmt.Errorf("read persona %s: %w", path, err)
	}

	var pf personaFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return "", fmt.Errorf("parse persona %s: %w", path, err)
	}
	if pf.Persona == "" {
		return defaultPersona, nil
	}
	return pf.Persona, nil
}

// Template returns the edge's prompt template text. A file at
// relationship/prompt/<agent>_<verb>_<target>.md takes precedence over
// fallback, the inline prompt text carried by the ontology's relationship
// entry (spec.md §6's relationship.prompt field), when present.
func (l *Loader) Template(agent, verb, target, fallback string) (string, error) {
	name := fmt.Sprintf("%s_%s_%s.md", agent, verb, target)
	path := filepath.Join(l.ontologyDir, "relationship", "prompt", name)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fallback, nil
		}
		return "", fmt.Errorf("read template %s: %w", path, err)
	}
	return string(data), nil
}
