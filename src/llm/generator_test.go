package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jira_code_agent/pkg"
	appmodel "jira_code_agent/src/model"
)

type stubChatModel struct {
	messages []*schema.Message
	options  *model.Options
	reply    *schema.Message
	err      error
}

func (s *stubChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	s.messages = input
	s.options = model.GetCommonOptions(nil, opts...)
	return s.reply, s.err
}

func (s *stubChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func TestChatGenerator_Generate(t *testing.T) {
	stub := &stubChatModel{reply: &schema.Message{
		Role:    schema.Assistant,
		Content: "```filename: a.ts\nx\n```",
		ResponseMeta: &schema.ResponseMeta{
			FinishReason: "stop",
			Usage:        &schema.TokenUsage{PromptTokens: 40, CompletionTokens: 2, TotalTokens: 42},
		},
	}}
	gen := NewChatGenerator(stub, "test-model")

	result, err := gen.Generate(context.Background(), pkg.TextRequest{
		Prompt:        "write code",
		SystemMessage: "you are a developer",
		MaxTokens:     256,
	})
	require.NoError(t, err)

	assert.Equal(t, "```filename: a.ts\nx\n```", result.Content)
	assert.Equal(t, 42, result.TokensUsed)
	assert.Equal(t, "stop", result.FinishReason)
	assert.Equal(t, "test-model", result.Model)

	require.Len(t, stub.messages, 2)
	assert.Equal(t, schema.System, stub.messages[0].Role)
	assert.Equal(t, schema.User, stub.messages[1].Role)
	assert.Equal(t, "write code", stub.messages[1].Content)
	require.NotNil(t, stub.options.MaxTokens)
	assert.Equal(t, 256, *stub.options.MaxTokens)
}

func TestChatGenerator_NoSystemMessageOrUsage(t *testing.T) {
	stub := &stubChatModel{reply: schema.AssistantMessage("hello", nil)}
	gen := NewChatGenerator(stub, "m")

	result, err := gen.Generate(context.Background(), pkg.TextRequest{Prompt: "hi"})
	require.NoError(t, err)

	assert.Equal(t, 0, result.TokensUsed)
	require.Len(t, stub.messages, 1)
	assert.Nil(t, stub.options.MaxTokens)
}

func TestChatGenerator_Error(t *testing.T) {
	stub := &stubChatModel{err: errors.New("429 too many requests")}

	_, err := NewChatGenerator(stub, "m").Generate(context.Background(), pkg.TextRequest{Prompt: "hi"})
	assert.ErrorContains(t, err, "429")
}

func TestNewChatModel_Providers(t *testing.T) {
	ctx := context.Background()

	_, err := NewChatModel(ctx, appmodel.LLMConfig{Provider: "openai"})
	assert.ErrorContains(t, err, "LLM_API_KEY")

	_, err = NewChatModel(ctx, appmodel.LLMConfig{Provider: "mystery"})
	assert.ErrorContains(t, err, "unsupported")

	m, err := NewChatModel(ctx, appmodel.LLMConfig{Provider: "openai", APIKey: "k", Model: "gpt-4o-mini", BaseURL: "https://openrouter.ai/api/v1"})
	require.NoError(t, err)
	assert.NotNil(t, m)

	m, err = NewChatModel(ctx, appmodel.LLMConfig{Provider: "ollama", Model: "llama3"})
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestOllamaOptions(t *testing.T) {
	opts := ollamaOptions(appmodel.LLMConfig{Temperature: 0.2})
	assert.Equal(t, float32(0.2), opts.Temperature)
	assert.Equal(t, 40, opts.TopK, "server defaults are kept")
}
