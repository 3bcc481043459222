package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"jira_code_agent/pkg"
	"jira_code_agent/src/logger"
)

// ChatGenerator adapts an eino chat model to single-turn text generation
type ChatGenerator struct {
	model     model.BaseChatModel
	modelName string
}

// NewChatGenerator wraps m; modelName is reported back in results
func NewChatGenerator(m model.BaseChatModel, modelName string) *ChatGenerator {
	return &ChatGenerator{model: m, modelName: modelName}
}

// Generate sends the system and user messages and returns the reply with its token usage
func (g *ChatGenerator) Generate(ctx context.Context, req pkg.TextRequest) (*pkg.TextResult, error) {
	messages := make([]*schema.Message, 0, 2)
	if req.SystemMessage != "" {
		messages = append(messages, schema.SystemMessage(req.SystemMessage))
	}
	messages = append(messages, schema.UserMessage(req.Prompt))

	var opts []model.Option
	if req.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(req.MaxTokens))
	}

	response, err := g.model.Generate(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("chat model generate failed: %w", err)
	}
	if response == nil {
		return nil, fmt.Errorf("chat model returned no message")
	}

	result := &pkg.TextResult{
		Content: response.Content,
		Model:   g.modelName,
	}
	if meta := response.ResponseMeta; meta != nil {
		result.FinishReason = meta.FinishReason
		if meta.Usage != nil {
			result.TokensUsed = meta.Usage.TotalTokens
		}
	}

	logger.Debug().
		Str("model", g.modelName).
		Int("tokens", result.TokensUsed).
		Str("finish_reason", result.FinishReason).
		Msg("LLM response received")

	return result, nil
}
