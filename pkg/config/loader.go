package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
)

// ProjectDir is the name of the per-project state directory holding
// config.json, the event journal database, and per-iteration snapshots.
const ProjectDir = ".infinitecodingloop"

// ConfigFile is the name of the project configuration file within ProjectDir.
const ConfigFile = "config.json"

// Home returns the ICL home directory: $ICL_HOME if set, else
// ~/.infinitecodingloop (spec §6). A config.json found here is merged in
// as a user-wide base layer beneath any project-local config.json, so a
// single `default_agent_tool`/`default_model` preference can apply across
// every project on a machine without repeating it in each one.
func Home() string {
	if home := os.Getenv("ICL_HOME"); home != "" {
		return home
	}
	if userHome, err := os.UserHomeDir(); err == nil {
		return filepath.Join(userHome, ProjectDir)
	}
	return ProjectDir
}

// Initialize loads, validates, and returns ready-to-use project configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Read config.json from $ICL_HOME, if present, as a base layer
//  2. Read config.json from <projectRoot>/.infinitecodingloop/
//  3. Expand environment variable references
//  4. Parse JSON into Config
//  5. Merge project over home over built-in defaults (more specific wins)
//  6. Validate
func Initialize(_ context.Context, projectRoot string) (*Config, error) {
	configDir := filepath.Join(projectRoot, ProjectDir)
	log := slog.With("config_dir", configDir)
	log.Info("initializing project configuration")

	base := Defaults()
	if homeDir := Home(); homeDir != configDir {
		if homeCfg, err := load(homeDir); err == nil {
			base = homeCfg
		} else if !errors.Is(err, ErrConfigNotFound) {
			return nil, fmt.Errorf("failed to load home configuration: %w", err)
		}
	}

	cfg, err := loadOver(configDir, base)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("configuration initialized successfully",
		"default_agent_tool", cfg.DefaultAgentTool,
		"spec_folder", cfg.SpecFolder,
		"yolo", cfg.Yolo)

	return cfg, nil
}

// load reads configDir/config.json and merges it over built-in defaults.
func load(configDir string) (*Config, error) {
	return loadOver(configDir, Defaults())
}

// loadOver reads configDir/config.json and merges it over base. When no
// config.json exists there it returns base unmodified (but with configDir
// recorded) together with an error wrapping ErrConfigNotFound.
func loadOver(configDir string, base *Config) (*Config, error) {
	path := filepath.Join(configDir, ConfigFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			base.configDir = configDir
			return base, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, NewLoadError(path, err)
	}

	data = ExpandEnv(data)

	var userCfg Config
	userCfg.PerVerbModel = map[string]ModelOverride{}
	if err := json.Unmarshal(data, &userCfg); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidJSON, err))
	}

	cfg := base
	if err := mergo.Merge(cfg, &userCfg, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge user configuration: %w", err)
	}
	cfg.configDir = configDir

	return cfg, nil
}

// validate performs comprehensive validation on loaded configuration.
func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

// Write serializes cfg to <configDir>/config.json, creating configDir if
// necessary. Used by `icl init` to scaffold a new project.
func Write(configDir string, cfg *Config) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	path := filepath.Join(configDir, ConfigFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}
