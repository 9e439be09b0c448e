package config

// Defaults returns the built-in project configuration used when
// config.json omits a field, and as the seed written by `icl init`.
func Defaults() *Config {
	return &Config{
		DefaultModel:     "",
		DefaultAgentTool: AgentToolClaude,
		SpecFolder:       "spec",
		Yolo:             false,
		PerVerbModel:     map[string]ModelOverride{},
	}
}
