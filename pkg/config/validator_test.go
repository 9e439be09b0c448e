package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Defaults()
	cfg.DefaultModel = "claude-3-5-sonnet"
	return cfg
}

func TestValidator_ValidateAll_Valid(t *testing.T) {
	err := NewValidator(validConfig()).ValidateAll()
	require.NoError(t, err)
}

func TestValidator_InvalidAgentTool(t *testing.T) {
	cfg := validConfig()
	cfg.DefaultAgentTool = "chatgpt"

	err := NewValidator(cfg).ValidateAll()
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "default_agent_tool", ve.Field)
}

func TestValidator_EmptySpecFolder(t *testing.T) {
	cfg := validConfig()
	cfg.SpecFolder = ""

	err := NewValidator(cfg).ValidateAll()
	require.Error(t, err)
	require.ErrorIs(t, err, ErrMissingRequiredField)
}

func TestValidator_PerVerbModel(t *testing.T) {
	t.Run("rejects empty override", func(t *testing.T) {
		cfg := validConfig()
		cfg.PerVerbModel["verifies"] = ModelOverride{}

		err := NewValidator(cfg).ValidateAll()
		require.ErrorIs(t, err, ErrMissingRequiredField)
	})

	t.Run("rejects invalid agent tool override", func(t *testing.T) {
		cfg := validConfig()
		cfg.PerVerbModel["refines"] = ModelOverride{AgentTool: "bogus"}

		err := NewValidator(cfg).ValidateAll()
		require.ErrorIs(t, err, ErrInvalidValue)
	})

	t.Run("accepts model-only override", func(t *testing.T) {
		cfg := validConfig()
		cfg.PerVerbModel["creates"] = ModelOverride{Model: "gemini-pro"}

		require.NoError(t, NewValidator(cfg).ValidateAll())
	})
}

func TestValidator_IterationTimeout(t *testing.T) {
	t.Run("rejects negative timeout", func(t *testing.T) {
		cfg := validConfig()
		cfg.IterationTimeoutSeconds = -1

		err := NewValidator(cfg).ValidateAll()
		require.ErrorIs(t, err, ErrInvalidValue)
	})

	t.Run("accepts zero (unbounded)", func(t *testing.T) {
		cfg := validConfig()
		cfg.IterationTimeoutSeconds = 0

		require.NoError(t, NewValidator(cfg).ValidateAll())
	})

	t.Run("accepts positive budget", func(t *testing.T) {
		cfg := validConfig()
		cfg.IterationTimeoutSeconds = 3600

		require.NoError(t, NewValidator(cfg).ValidateAll())
	})
}
