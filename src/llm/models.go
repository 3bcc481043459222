package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/ollama/ollama/api"

	appmodel "jira_code_agent/src/model"
)

const (
	ProviderOpenAI   = "openai"
	ProviderOllama   = "ollama"
	ProviderArk      = "ark"
	ProviderDeepSeek = "deepseek"
)

// NewChatModel builds the chat model for the configured provider.
// The openai provider also serves OpenRouter and other OpenAI-compatible endpoints.
func NewChatModel(ctx context.Context, cfg appmodel.LLMConfig) (model.BaseChatModel, error) {
	temperature := cfg.Temperature

	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI, "":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("LLM_API_KEY is required for provider %s", ProviderOpenAI)
		}
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: &temperature,
			Timeout:     cfg.Timeout,
		})
	case ProviderOllama:
		baseURL := cfg.BaseURL
		if baseURL == "" || strings.Contains(baseURL, "openrouter.ai") {
			baseURL = "http://localhost:11434"
		}
		return ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
			BaseURL: baseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
			Options: ollamaOptions(cfg),
		})
	case ProviderArk:
		return ark.NewChatModel(ctx, &ark.ChatModelConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: &temperature,
		})
	case ProviderDeepSeek:
		baseURL := cfg.BaseURL
		if baseURL == "" || strings.Contains(baseURL, "openrouter.ai") {
			baseURL = "https://api.deepseek.com"
		}
		return deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:  cfg.APIKey,
			BaseURL: baseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Provider)
	}
}

// ollamaOptions starts from the server defaults and applies the configured temperature
func ollamaOptions(cfg appmodel.LLMConfig) *api.Options {
	opts := api.DefaultOptions()
	opts.Temperature = cfg.Temperature
	return &opts
}
