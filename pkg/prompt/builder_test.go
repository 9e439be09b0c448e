package prompt

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuilder_ComposesAllSections(t *testing.T) {
	p := NewBuilder().
		WithPersona("You are Architect.").
		WithTemplate("Write a design spec.").
		WithContext(map[string]json.RawMessage{"SoftwareApplication": json.RawMessage(`{"goal":"a todo app"}`)}).
		WithSchema(json.RawMessage(`{"type":"object"}`)).
		WithWorkdir("/work/iter-1").
		Build()

	assert.Contains(t, p.Text, "You are Architect.")
	assert.Contains(t, p.Text, "Write a design spec.")
	assert.Contains(t, p.Text, `"goal": "a todo app"`)
	assert.Contains(t, p.Text, "fenced JSON code block")
	assert.Equal(t, "/work/iter-1", p.Workdir)
}

func TestBuilder_OmitsUnsetSections(t *testing.T) {
	p := NewBuilder().WithTemplate("Implement the code.").Build()

	assert.Equal(t, "Implement the code.\n\n", p.Text)
}

func TestBuilder_EmptyContextOmitsBlock(t *testing.T) {
	p := NewBuilder().WithTemplate("x").WithContext(map[string]json.RawMessage{}).Build()

	assert.NotContains(t, p.Text, "Context:")
}
