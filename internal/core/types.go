package core

import (
	"context"
	"time"

	"jira_code_agent/pkg"
)

// ItemProvider fetches and analyzes external work items
type ItemProvider interface {
	Fetch(ctx context.Context, key string) (*pkg.ItemData, error)
	Analyze(ctx context.Context, item *pkg.ItemData) (*pkg.Analysis, error)
}

// TextGenerator produces text from a prompt
type TextGenerator interface {
	Generate(ctx context.Context, req pkg.TextRequest) (*pkg.TextResult, error)
}

// TestRunner executes generated test artifacts
type TestRunner interface {
	Run(ctx context.Context, artifacts []pkg.Artifact, opts pkg.GenerationOptions) ([]pkg.TestResult, error)
}

// SessionStore owns session records. Get and List return snapshots; callers
// write back through Update while holding the session lock.
type SessionStore interface {
	Create(ctx context.Context, itemKey string, maxIterations int) (*pkg.Session, error)
	Get(ctx context.Context, id string) (*pkg.Session, error)
	Update(ctx context.Context, session *pkg.Session) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*pkg.Session, error)
	Sweep(ctx context.Context, maxAge time.Duration) (int, error)
	Lock(ctx context.Context, id string) (func(), error)
}

// StartRequest is the input to Engine.Start
type StartRequest struct {
	ItemKey       string                `json:"ticket_key"`
	Options       pkg.GenerationOptions `json:"generation_options"`
	MaxIterations int                   `json:"max_iterations"`
}

// Config holds all configuration for the workflow engine
type Config struct {
	Workflow WorkflowConfig `json:"workflow"`
	Prompts  PromptConfig   `json:"prompts"`
	Tokens   TokenConfig    `json:"tokens"`
}

// WorkflowConfig bounds the state machine
type WorkflowConfig struct {
	DefaultMaxIterations int           `json:"default_max_iterations"`
	StepTimeout          time.Duration `json:"step_timeout"`
	HistoryTurns         int           `json:"history_turns"` // prior feedback rounds echoed into revision prompts
}

// PromptConfig holds the system messages sent with each call
type PromptConfig struct {
	GenerationSystem    string `json:"generation_system"`
	TestSystem          string `json:"test_system"`
	DocumentationSystem string `json:"documentation_system"`
	ImprovementSystem   string `json:"improvement_system"`
}

// TokenConfig caps the completion size per call
type TokenConfig struct {
	Generation    int `json:"generation"`
	Test          int `json:"test"`
	Documentation int `json:"documentation"`
	Improvement   int `json:"improvement"`
}

// DefaultConfig returns the engine defaults
func DefaultConfig() Config {
	return Config{
		Workflow: WorkflowConfig{
			DefaultMaxIterations: 5,
			StepTimeout:          2 * time.Minute,
			HistoryTurns:         3,
		},
		Prompts: PromptConfig{
			GenerationSystem:    "You are an expert software developer. Generate complete, production-ready code based on requirements.",
			TestSystem:          "You are an expert in writing comprehensive unit tests. Generate thorough tests with good coverage.",
			DocumentationSystem: "You are an expert technical writer. Document code clearly: purpose, functions, parameters, return values and usage examples.",
			ImprovementSystem:   "You are an expert code improver. Modify code based on user feedback while maintaining functionality and quality.",
		},
		Tokens: TokenConfig{
			Generation:    2500,
			Test:          1000,
			Documentation: 1500,
			Improvement:   3000,
		},
	}
}
