package config

import "fmt"

// Validator validates project configuration comprehensively with clear
// error messages, mirroring the teacher's fail-fast ValidateAll pattern.
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast - stops at first error).
func (v *Validator) ValidateAll() error {
	if err := v.validateAgentTool(); err != nil {
		return err
	}
	if err := v.validateSpecFolder(); err != nil {
		return err
	}
	if err := v.validatePerVerbModel(); err != nil {
		return err
	}
	if err := v.validateIterationTimeout(); err != nil {
		return err
	}
	return nil
}

func (v *Validator) validateAgentTool() error {
	if !v.cfg.DefaultAgentTool.IsValid() {
		return NewValidationError("default_agent_tool",
			fmt.Errorf("%w: %q", ErrInvalidValue, v.cfg.DefaultAgentTool))
	}
	return nil
}

func (v *Validator) validateSpecFolder() error {
	if v.cfg.SpecFolder == "" {
		return NewValidationError("spec_folder",
			fmt.Errorf("%w: must not be empty", ErrMissingRequiredField))
	}
	return nil
}

// validatePerVerbModel checks that every override names a valid agent tool
// (when set) or a non-empty model. Verb identifiers themselves are defined
// by the ontology, loaded separately (C1), so their existence is checked at
// ontology-load time rather than here.
func (v *Validator) validatePerVerbModel() error {
	for verb, override := range v.cfg.PerVerbModel {
		if override.Model == "" && override.AgentTool == "" {
			return NewValidationError(fmt.Sprintf("per_verb_model[%s]", verb),
				fmt.Errorf("%w: must set model and/or agent_tool", ErrMissingRequiredField))
		}
		if override.AgentTool != "" && !override.AgentTool.IsValid() {
			return NewValidationError(fmt.Sprintf("per_verb_model[%s].agent_tool", verb),
				fmt.Errorf("%w: %q", ErrInvalidValue, override.AgentTool))
		}
	}
	return nil
}

// validateIterationTimeout rejects a negative wall-clock budget; zero
// (unbounded) and any positive value are both valid.
func (v *Validator) validateIterationTimeout() error {
	if v.cfg.IterationTimeoutSeconds < 0 {
		return NewValidationError("iteration_timeout_seconds",
			fmt.Errorf("%w: must not be negative", ErrInvalidValue))
	}
	return nil
}
