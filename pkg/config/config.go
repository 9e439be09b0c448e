package config

// ModelOverride pins a specific model (and optionally agent tool) for one
// verb, keyed by verb name in PerVerbModel, overriding
// DefaultModel/DefaultAgentTool for edges whose verb matches.
type ModelOverride struct {
	Model     string    `json:"model,omitempty"`
	AgentTool AgentTool `json:"agent_tool,omitempty"`
}

// Config is the umbrella project configuration loaded from
// <project>/.infinitecodingloop/config.json, merged over built-in defaults.
// It is the primary object returned by Initialize() and threaded through
// cmd/icl and the Supervisor, which resolve per-edge model and tool from it.
type Config struct {
	configDir string // Directory holding config.json (for reference)

	// DefaultModel is the model identifier passed to the agent tool when
	// no per-verb override applies.
	DefaultModel string `json:"default_model"`

	// DefaultAgentTool selects which CLI tool dispatches edges with no
	// per-verb override.
	DefaultAgentTool AgentTool `json:"default_agent_tool"`

	// SpecFolder is the project-relative path containing the ontology and
	// taxonomy JSON files consumed by the scheduler.
	SpecFolder string `json:"spec_folder"`

	// Yolo disables the human approval gate on first execution of each verb.
	Yolo bool `json:"yolo"`

	// PerVerbModel maps a verb name (e.g. "verifies", "refines") to a model
	// and/or agent tool override applied to edges whose target verb matches.
	PerVerbModel map[string]ModelOverride `json:"per_verb_model"`

	// IterationTimeoutSeconds bounds one iteration's total wall-clock
	// budget (spec §5: "iteration-wide wall-clock budget (configurable)").
	// Zero means unbounded.
	IterationTimeoutSeconds int `json:"iteration_timeout_seconds,omitempty"`
}

// ConfigDir returns the directory holding config.json.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// ResolveModel returns the model to use for an edge targeting verbName,
// applying PerVerbModel precedence over DefaultModel. Mirrors the
// "last non-empty wins" resolution used elsewhere for config overrides.
func (c *Config) ResolveModel(verbName string) string {
	if override, ok := c.PerVerbModel[verbName]; ok && override.Model != "" {
		return override.Model
	}
	return c.DefaultModel
}

// ResolveAgentTool returns the agent tool to use for an edge targeting
// verbName, applying PerVerbModel precedence over DefaultAgentTool.
func (c *Config) ResolveAgentTool(verbName string) AgentTool {
	if override, ok := c.PerVerbModel[verbName]; ok && override.AgentTool != "" {
		return override.AgentTool
	}
	return c.DefaultAgentTool
}
