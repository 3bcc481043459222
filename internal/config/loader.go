package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"jira_code_agent/internal/core"
	"jira_code_agent/pkg"
)

// YAMLConfig represents the structure of config.yaml
type YAMLConfig struct {
	Generation pkg.GenerationOptions `yaml:"generation"`

	Prompts struct {
		AnalysisSystem      string `yaml:"analysis_system"`
		GenerationSystem    string `yaml:"generation_system"`
		TestSystem          string `yaml:"test_system"`
		DocumentationSystem string `yaml:"documentation_system"`
		ImprovementSystem   string `yaml:"improvement_system"`
	} `yaml:"prompts"`

	Tokens struct {
		Analysis      int `yaml:"analysis"`
		Generation    int `yaml:"generation"`
		Tests         int `yaml:"tests"`
		Documentation int `yaml:"documentation"`
		Improvement   int `yaml:"improvement"`
	} `yaml:"tokens"`

	Feedback struct {
		HistoryTurns int `yaml:"history_turns"`
	} `yaml:"feedback"`

	TestCommands map[string][]string `yaml:"test_commands"`
}

// DefaultYAMLConfig returns the values used when config.yaml is absent
func DefaultYAMLConfig() *YAMLConfig {
	d := core.DefaultConfig()

	var c YAMLConfig
	c.Generation = pkg.DefaultGenerationOptions()
	c.Prompts.GenerationSystem = d.Prompts.GenerationSystem
	c.Prompts.TestSystem = d.Prompts.TestSystem
	c.Prompts.DocumentationSystem = d.Prompts.DocumentationSystem
	c.Prompts.ImprovementSystem = d.Prompts.ImprovementSystem
	c.Tokens.Analysis = 1500
	c.Tokens.Generation = d.Tokens.Generation
	c.Tokens.Tests = d.Tokens.Test
	c.Tokens.Documentation = d.Tokens.Documentation
	c.Tokens.Improvement = d.Tokens.Improvement
	c.Feedback.HistoryTurns = d.Workflow.HistoryTurns
	return &c
}

// LoadConfig loads configuration from config.yaml. A missing file yields the
// defaults; keys present in the file override them.
func LoadConfig(filepath string) (*YAMLConfig, error) {
	config := DefaultYAMLConfig()

	data, err := os.ReadFile(filepath)
	if errors.Is(err, fs.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, fmt.Errorf("error parsing YAML: %v", err)
	}

	if config.Feedback.HistoryTurns < 0 {
		return nil, fmt.Errorf("feedback.history_turns must not be negative, got %d", config.Feedback.HistoryTurns)
	}

	return config, nil
}

// BuildCoreConfig creates core.Config from YAML config and the workflow environment settings
func BuildCoreConfig(yamlConfig *YAMLConfig, maxIterations int, stepTimeout time.Duration) core.Config {
	cfg := core.DefaultConfig()

	if maxIterations > 0 {
		cfg.Workflow.DefaultMaxIterations = maxIterations
	}
	if stepTimeout > 0 {
		cfg.Workflow.StepTimeout = stepTimeout
	}
	cfg.Workflow.HistoryTurns = yamlConfig.Feedback.HistoryTurns

	setIfNotEmpty(&cfg.Prompts.GenerationSystem, yamlConfig.Prompts.GenerationSystem)
	setIfNotEmpty(&cfg.Prompts.TestSystem, yamlConfig.Prompts.TestSystem)
	setIfNotEmpty(&cfg.Prompts.DocumentationSystem, yamlConfig.Prompts.DocumentationSystem)
	setIfNotEmpty(&cfg.Prompts.ImprovementSystem, yamlConfig.Prompts.ImprovementSystem)

	setIfPositive(&cfg.Tokens.Generation, yamlConfig.Tokens.Generation)
	setIfPositive(&cfg.Tokens.Test, yamlConfig.Tokens.Tests)
	setIfPositive(&cfg.Tokens.Documentation, yamlConfig.Tokens.Documentation)
	setIfPositive(&cfg.Tokens.Improvement, yamlConfig.Tokens.Improvement)

	return cfg
}

func setIfNotEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setIfPositive(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}
