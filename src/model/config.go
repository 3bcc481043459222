package model

import "time"

// ----------------------------------------------------
// ================ Logging ================
// LogConfig controls the global zerolog logger.
// Format is json or console; Output is stdout, stderr or file.
type LogConfig struct {
	Level      string `envconfig:"LEVEL" default:"info"`
	Format     string `envconfig:"FORMAT" default:"json"`
	Output     string `envconfig:"OUTPUT" default:"stdout"`
	FilePath   string `envconfig:"FILE_PATH" default:"logs/jira_code_agent.log"`
	TimeFormat string `envconfig:"TIME_FORMAT" default:"rfc3339"`
}

// ----------------------------------------------------
// ================ Collaborators ================
// LLMConfig selects and configures the chat model provider
type LLMConfig struct {
	Provider    string        `envconfig:"PROVIDER" default:"openai"` // openai | ollama | ark | deepseek
	Model       string        `envconfig:"MODEL" default:"openai/gpt-4o-mini"`
	APIKey      string        `envconfig:"API_KEY"`
	BaseURL     string        `envconfig:"BASE_URL" default:"https://openrouter.ai/api/v1"`
	Temperature float32       `envconfig:"TEMPERATURE" default:"0.2"`
	Timeout     time.Duration `envconfig:"TIMEOUT" default:"120s"`
}

// JiraConfig holds Jira Cloud credentials
type JiraConfig struct {
	Server   string `envconfig:"SERVER"`
	Email    string `envconfig:"EMAIL"`
	APIToken string `envconfig:"API_TOKEN"`
}

// ItemsConfig picks where tickets come from
type ItemsConfig struct {
	Source     string `envconfig:"SOURCE" default:"jira"` // jira | catalog
	CatalogDir string `envconfig:"CATALOG_DIR" default:"tickets"`
}

// CacheConfig enables the redis ticket cache when RedisURL is set
type CacheConfig struct {
	RedisURL string        `envconfig:"REDIS_URL"`
	TTL      time.Duration `envconfig:"TTL" default:"1h"`
}

// TestsConfig bounds generated test execution
type TestsConfig struct {
	Timeout time.Duration `envconfig:"TIMEOUT" default:"2m"`
}

// ExportConfig sets where approved artifacts are written
type ExportConfig struct {
	Dir string `envconfig:"DIR" default:"generated"`
}

// ----------------------------------------------------
// ================ Service ================
// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr         string        `envconfig:"ADDR" default:":8080"`
	APIToken     string        `envconfig:"API_TOKEN"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"10m"`
}

// WorkflowConfig bounds sessions and their cleanup
type WorkflowConfig struct {
	MaxIterations int           `envconfig:"MAX_ITERATIONS" default:"5"`
	StepTimeout   time.Duration `envconfig:"STEP_TIMEOUT" default:"2m"`
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"1h"`
	SweepMaxAge   time.Duration `envconfig:"SWEEP_MAX_AGE" default:"24h"`
}
