package src

import (
	"fmt"

	"jira_code_agent/src/model"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ConfigFile     string               `envconfig:"CONFIG_FILE" default:"config.yaml"`
	LogConfig      model.LogConfig      `envconfig:"LOG"`
	LLMConfig      model.LLMConfig      `envconfig:"LLM"`
	JiraConfig     model.JiraConfig     `envconfig:"JIRA"`
	ItemsConfig    model.ItemsConfig    `envconfig:"ITEMS"`
	CacheConfig    model.CacheConfig    `envconfig:"CACHE"`
	ServerConfig   model.ServerConfig   `envconfig:"SERVER"`
	WorkflowConfig model.WorkflowConfig `envconfig:"WORKFLOW"`
	TestsConfig    model.TestsConfig    `envconfig:"TESTS"`
	ExportConfig   model.ExportConfig   `envconfig:"EXPORT"`
}

// LoadConfig reads .env files when present, then the process environment
func LoadConfig(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// a missing .env is fine; real environment variables still apply
		_ = godotenv.Load(f)
	}

	var config Config
	err := envconfig.Process("", &config)
	if err != nil {
		return nil, fmt.Errorf("error processing environment configuration: %v", err)
	}

	if config.WorkflowConfig.MaxIterations < 1 {
		return nil, fmt.Errorf("WORKFLOW_MAX_ITERATIONS must be at least 1, got %d", config.WorkflowConfig.MaxIterations)
	}

	return &config, nil
}
