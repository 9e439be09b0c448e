// Package prompt implements the Prompt Assembler (C3): composing an
// agent's persona, an edge's prompt template, a serialized context block,
// and (when the target kind has a schema) output-format instructions into
// the plain-text prompt handed to the Agent Runtime.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Builder composes prompt text, mirroring the persona+instructions+
// user-message composition style of tarsy's pkg/agent/prompt.PromptBuilder,
// collapsed to this engine's single plain-text-prompt contract (spec §4.3):
// the assembler does not know about the agent, it only emits text + workdir.
type Builder struct {
	persona     string
	template    string
	contextJSON []byte
	schema      json.RawMessage
	workdir     string
}

// NewBuilder starts a new, empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithPersona sets the agent's system persona text, loaded by convention
// from team_members/<agent>.json, or a default when absent.
func (b *Builder) WithPersona(persona string) *Builder {
	b.persona = persona
	return b
}

// WithTemplate sets the edge's natural-language prompt template, loaded
// from relationship/prompt/<agent>_<verb>_<target>.md.
func (b *Builder) WithTemplate(template string) *Builder {
	b.template = template
	return b
}

// WithContext sets the context block: a bag of kind-id -> current-instance
// JSON, serialized as a single JSON object (spec §4.3's "context block").
func (b *Builder) WithContext(context map[string]json.RawMessage) *Builder {
	if len(context) == 0 {
		b.contextJSON = nil
		return b
	}
	data, err := json.MarshalIndent(context, "", "  ")
	if err != nil {
		// context entries are always valid json.RawMessage produced by this
		// module's own callers; a marshal failure here means a caller
		// passed malformed bytes, which is a programmer error.
		panic(fmt.Sprintf("prompt: context block does not marshal: %v", err))
	}
	b.contextJSON = data
	return b
}

// WithSchema attaches the target kind's output JSON schema, when present,
// so Build appends "produce exactly one fenced JSON code block matching
// the following schema" instructions (spec §4.3).
func (b *Builder) WithSchema(schema json.RawMessage) *Builder {
	b.schema = schema
	return b
}

// WithWorkdir sets the absolute working directory path included for the
// Agent Runtime's benefit (the Assembler itself does no filesystem I/O).
func (b *Builder) WithWorkdir(workdir string) *Builder {
	b.workdir = workdir
	return b
}

// Prompt is the assembled result: the plain-text prompt plus the workdir
// the Agent Runtime should launch the subprocess in.
type Prompt struct {
	Text    string
	Workdir string
}

// Build composes all set fields into a final Prompt.
func (b *Builder) Build() Prompt {
	var sb strings.Builder

	if b.persona != "" {
		sb.WriteString(b.persona)
		sb.WriteString("\n\n")
	}

	if b.template != "" {
		sb.WriteString(b.template)
		sb.WriteString("\n\n")
	}

	if len(b.contextJSON) > 0 {
		sb.WriteString("Context:\n```json\n")
		sb.Write(b.contextJSON)
		sb.WriteString("\n```\n\n")
	}

	if len(b.schema) > 0 {
		sb.WriteString("Produce exactly one fenced JSON code block matching the following schema:\n```json\n")
		sb.Write(b.schema)
		sb.WriteString("\n```\n")
	}

	return Prompt{Text: sb.String(), Workdir: b.workdir}
}
