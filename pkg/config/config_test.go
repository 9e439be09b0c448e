package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_ResolveModel(t *testing.T) {
	cfg := &Config{
		DefaultModel:     "claude-default",
		DefaultAgentTool: AgentToolClaude,
		PerVerbModel: map[string]ModelOverride{
			"verifies": {Model: "claude-opus"},
		},
	}

	assert.Equal(t, "claude-opus", cfg.ResolveModel("verifies"))
	assert.Equal(t, "claude-default", cfg.ResolveModel("creates"))
}

func TestConfig_ResolveAgentTool(t *testing.T) {
	cfg := &Config{
		DefaultAgentTool: AgentToolClaude,
		PerVerbModel: map[string]ModelOverride{
			"refines": {AgentTool: AgentToolGemini},
		},
	}

	assert.Equal(t, AgentToolGemini, cfg.ResolveAgentTool("refines"))
	assert.Equal(t, AgentToolClaude, cfg.ResolveAgentTool("creates"))
}

func TestDefaults(t *testing.T) {
	d := Defaults()

	assert.Equal(t, AgentToolClaude, d.DefaultAgentTool)
	assert.Equal(t, "spec", d.SpecFolder)
	assert.False(t, d.Yolo)
	assert.NotNil(t, d.PerVerbModel)
}
