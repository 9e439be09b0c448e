package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Persona_FallsBackToDefault(t *testing.T) {
	l := NewLoader(t.TempDir())

	persona, err := l.Persona("Architect")
	require.NoError(t, err)
	assert.Equal(t, defaultPersona, persona)
}

func TestLoader_Persona_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "team_members"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "team_members", "Architect.json"),
		[]byte(`{"persona":"You are a meticulous systems architect."}`), 0o644))

	l := NewLoader(dir)
	persona, err := l.Persona("Architect")
	require.NoError(t, err)
	assert.Equal(t, "You are a meticulous systems architect.", persona)
}

func TestLoader_Template_FallsBackToInlinePrompt(t *testing.T) {
	l := NewLoader(t.TempDir())

	template, err := l.Template("Architect", "creates", "DesignSpec", "Write a short design spec.")
	require.NoError(t, err)
	assert.Equal(t, "Write a short design spec.", template)
}

func TestLoader_Template_FileOverridesFallback(t *testing.T) {
	dir := t.TempDir()
	promptDir := filepath.Join(dir, "relationship", "prompt")
	require.NoError(t, os.MkdirAll(promptDir, 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(promptDir, "Architect_creates_DesignSpec.md"),
		[]byte("Custom instructions from disk."), 0o644))

	l := NewLoader(dir)
	template, err := l.Template("Architect", "creates", "DesignSpec", "fallback text")
	require.NoError(t, err)
	assert.Equal(t, "Custom instructions from disk.", template)
}
