package core

import (
	"context"
	"strings"

	"jira_code_agent/internal/extractor"
	"jira_code_agent/pkg"
	"jira_code_agent/src/conversation"
	"jira_code_agent/src/logger"
)

// FeedbackIncorporator turns reviewer feedback into a revised artifact set.
// It does not enforce the iteration ceiling; the engine does.
type FeedbackIncorporator struct {
	gen       TextGenerator
	extractor *extractor.Extractor
	strategy  conversation.ContextStrategy
	system    string
	maxTokens int
}

// NewFeedbackIncorporator creates an incorporator using the prompt and token settings in cfg
func NewFeedbackIncorporator(gen TextGenerator, cfg Config) *FeedbackIncorporator {
	return &FeedbackIncorporator{
		gen:       gen,
		extractor: extractor.New(),
		strategy:  conversation.NewReviewContextStrategy(cfg.Workflow.HistoryTurns),
		system:    cfg.Prompts.ImprovementSystem,
		maxTokens: cfg.Tokens.Improvement,
	}
}

// Incorporate regenerates the session's artifacts from fb and adds the tokens spent to
// session.TokensUsed. The session's feedback history, minus fb itself, provides earlier rounds.
func (f *FeedbackIncorporator) Incorporate(ctx context.Context, session *pkg.Session, fb pkg.Feedback) ([]pkg.Artifact, error) {
	history := conversation.FeedbackMessages(priorRounds(session.FeedbackHistory, fb))
	prompt := buildImprovementPrompt(session.Artifacts, fb, f.strategy.BuildContext(history))

	result, err := f.gen.Generate(ctx, pkg.TextRequest{
		Prompt:        prompt,
		SystemMessage: f.system,
		MaxTokens:     f.maxTokens,
	})
	if err != nil {
		return nil, pkg.WrapError(pkg.KindCollaborator, err, "improvement generation failed")
	}
	session.TokensUsed += result.TokensUsed

	if strings.TrimSpace(result.Content) == "" {
		return nil, pkg.NewError(pkg.KindCollaborator, "improvement generation returned no content")
	}

	artifacts := f.extractor.Extract(result.Content, extractor.Options{DefaultStyle: session.Options.CodeStyle})

	logger.Debug().
		Str("session_id", session.ID).
		Int("artifacts", len(artifacts)).
		Int("tokens", result.TokensUsed).
		Msg("Feedback incorporated")

	return artifacts, nil
}

func priorRounds(history []pkg.Feedback, fb pkg.Feedback) []pkg.Feedback {
	n := len(history)
	if n > 0 && history[n-1].SubmittedAt.Equal(fb.SubmittedAt) && history[n-1].Text == fb.Text {
		return history[:n-1]
	}
	return history
}
