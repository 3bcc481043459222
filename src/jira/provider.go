package jira

import (
	"context"

	"jira_code_agent/pkg"
	"jira_code_agent/src/logger"
)

// Analyzer turns a fetched ticket into structured requirements
type Analyzer interface {
	Analyze(ctx context.Context, item *pkg.ItemData) (*pkg.Analysis, error)
}

// Provider serves tickets from Jira and analyzes them with an LLM
type Provider struct {
	client   *Client
	analyzer Analyzer
}

// NewProvider combines a Jira client with an analyzer
func NewProvider(client *Client, analyzer Analyzer) *Provider {
	return &Provider{client: client, analyzer: analyzer}
}

// Fetch retrieves a ticket snapshot
func (p *Provider) Fetch(ctx context.Context, key string) (*pkg.ItemData, error) {
	logger.Info().Str("ticket_key", key).Msg("Fetching JIRA ticket")

	item, err := p.client.GetIssue(ctx, key)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("ticket_key", key).
		Str("issue_type", item.IssueType).
		Strs("custom_fields", CustomFieldNames(item)).
		Msg("Fetched JIRA ticket")
	return item, nil
}

// Analyze delegates to the analyzer
func (p *Provider) Analyze(ctx context.Context, item *pkg.ItemData) (*pkg.Analysis, error) {
	return p.analyzer.Analyze(ctx, item)
}
