package jira

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"jira_code_agent/pkg"
	"jira_code_agent/src/model"
)

// issueFields is the field set requested for a ticket
const issueFields = "*navigable"

// Client provides HTTP access to the Jira Cloud REST API v3
type Client struct {
	URL        string
	Email      string
	APIToken   string
	HTTPClient *http.Client
}

// NewClient creates a Jira client from config
func NewClient(cfg model.JiraConfig) *Client {
	return &Client{
		URL:      strings.TrimSuffix(cfg.Server, "/"),
		Email:    cfg.Email,
		APIToken: cfg.APIToken,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type issueResponse struct {
	Key    string         `json:"key"`
	Fields map[string]any `json:"fields"`
}

// GetIssue fetches a ticket by key. Unknown keys wrap pkg.ErrItemNotFound.
func (c *Client) GetIssue(ctx context.Context, key string) (*pkg.ItemData, error) {
	apiURL := fmt.Sprintf("%s/rest/api/3/issue/%s?fields=%s", c.URL, url.PathEscape(key), issueFields)

	body, err := c.doRequest(ctx, http.MethodGet, apiURL)
	if err != nil {
		return nil, fmt.Errorf("get issue %s: %w", key, err)
	}

	var issue issueResponse
	if err := sonic.Unmarshal(body, &issue); err != nil {
		return nil, fmt.Errorf("parse issue response: %w", err)
	}

	return toItemData(issue), nil
}

func toItemData(issue issueResponse) *pkg.ItemData {
	f := issue.Fields
	item := &pkg.ItemData{
		Key:         issue.Key,
		Summary:     stringField(f["summary"]),
		Description: DescriptionToPlainText(f["description"]),
		IssueType:   nameField(f["issuetype"], "name"),
		Priority:    nameField(f["priority"], "name"),
		Status:      nameField(f["status"], "name"),
		Assignee:    nameField(f["assignee"], "displayName"),
		Reporter:    nameField(f["reporter"], "displayName"),
		Labels:      stringList(f["labels"]),
	}
	if item.Priority == "" {
		item.Priority = "Medium"
	}

	if comps, ok := f["components"].([]any); ok {
		for _, c := range comps {
			if name := nameField(c, "name"); name != "" {
				item.Components = append(item.Components, name)
			}
		}
	}

	custom := map[string]any{}
	for k, v := range f {
		if strings.HasPrefix(k, "customfield_") && v != nil {
			custom[k] = v
		}
	}
	if len(custom) > 0 {
		item.CustomFields = custom
	}
	return item
}

// CustomFieldNames lists the populated custom field ids, sorted
func CustomFieldNames(item *pkg.ItemData) []string {
	names := make([]string, 0, len(item.CustomFields))
	for k := range item.CustomFields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// doRequest executes an authenticated HTTP request and returns the response body
func (c *Client) doRequest(ctx context.Context, method, apiURL string) ([]byte, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("jira URL not configured")
	}
	if c.APIToken == "" {
		return nil, fmt.Errorf("jira API token not configured")
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.setAuth(req)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "jira-code-agent/1.0")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, pkg.ErrItemNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("jira API returned %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// setAuth uses Basic auth when an account email is configured, a bearer token otherwise
func (c *Client) setAuth(req *http.Request) {
	if c.Email != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(c.Email + ":" + c.APIToken))
		req.Header.Set("Authorization", "Basic "+auth)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.APIToken)
	}
}

func stringField(v any) string {
	s, _ := v.(string)
	return s
}

func nameField(v any, key string) string {
	m, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	return stringField(m[key])
}

func stringList(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
