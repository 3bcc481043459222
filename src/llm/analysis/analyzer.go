package analysis

import (
	"context"
	"fmt"

	"jira_code_agent/pkg"
	"jira_code_agent/src/logger"
)

// Generator is the text generation dependency of the analyzer
type Generator interface {
	Generate(ctx context.Context, req pkg.TextRequest) (*pkg.TextResult, error)
}

// Analyzer extracts structured requirements from a ticket with one LLM call
type Analyzer struct {
	gen       Generator
	system    string
	maxTokens int
}

// NewAnalyzer creates an analyzer; an empty system message uses SystemMessage
func NewAnalyzer(gen Generator, system string, maxTokens int) *Analyzer {
	if system == "" {
		system = SystemMessage
	}
	return &Analyzer{gen: gen, system: system, maxTokens: maxTokens}
}

// Analyze asks the model for an analysis. Only a failed call is an error;
// a reply that cannot be parsed degrades to Fallback.
func (a *Analyzer) Analyze(ctx context.Context, item *pkg.ItemData) (*pkg.Analysis, error) {
	if item == nil {
		return nil, fmt.Errorf("no ticket to analyze")
	}

	result, err := a.gen.Generate(ctx, pkg.TextRequest{
		Prompt:        BuildPrompt(item),
		SystemMessage: a.system,
		MaxTokens:     a.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("analyze ticket %s: %w", item.Key, err)
	}

	analysis := Parse(result.Content, item.Key)
	analysis.TokensUsed = result.TokensUsed

	logger.Info().
		Str("ticket_key", item.Key).
		Int("requirements", len(analysis.Requirements)).
		Int("complexity", analysis.ComplexityScore).
		Msg("Ticket analysis completed")

	return analysis, nil
}
