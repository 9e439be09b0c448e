package agentruntime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTool_IsValid(t *testing.T) {
	assert.True(t, ToolClaude.IsValid())
	assert.True(t, ToolCursor.IsValid())
	assert.True(t, ToolGemini.IsValid())
	assert.True(t, ToolCopilot.IsValid())
	assert.True(t, ToolOpencode.IsValid())
	assert.False(t, Tool("made-up").IsValid())
}

func TestTool_Command_IncludesModelWhenSet(t *testing.T) {
	bin, args, err := ToolClaude.command("opus")
	require.NoError(t, err)
	assert.Equal(t, "claude", bin)
	assert.Contains(t, args, "--model")
	assert.Contains(t, args, "opus")
}

func TestTool_Command_OmitsModelWhenEmpty(t *testing.T) {
	bin, args, err := ToolGemini.command("")
	require.NoError(t, err)
	assert.Equal(t, "gemini", bin)
	assert.NotContains(t, args, "--model")
}

func TestTool_Command_UnknownToolErrors(t *testing.T) {
	_, _, err := Tool("made-up").command("")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrUnknownTool)
}
