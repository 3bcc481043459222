package pkg

import (
	"strings"
	"time"
)

// Workflow core types for ticket-driven code generation

// WorkflowState is a session's position in the fetch -> analyze -> generate -> review lifecycle
type WorkflowState string

const (
	StateFetchingItem          WorkflowState = "fetching_item"
	StateAnalyzingRequirements WorkflowState = "analyzing_requirements"
	StateGeneratingArtifacts   WorkflowState = "generating_artifacts"
	StateAwaitingApproval      WorkflowState = "awaiting_approval"
	StateIncorporatingFeedback WorkflowState = "incorporating_feedback"
	StateCompleted             WorkflowState = "completed"
	StateFailed                WorkflowState = "failed"
)

var transitions = map[WorkflowState][]WorkflowState{
	StateFetchingItem:          {StateAnalyzingRequirements, StateFailed},
	StateAnalyzingRequirements: {StateGeneratingArtifacts, StateFailed},
	StateGeneratingArtifacts:   {StateAwaitingApproval, StateFailed},
	StateAwaitingApproval:      {StateCompleted, StateIncorporatingFeedback, StateFailed},
	StateIncorporatingFeedback: {StateAwaitingApproval, StateFailed},
}

// IsTerminal reports whether no further transitions are allowed
func (s WorkflowState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// CanTransitionTo reports whether next is a legal edge from s
func (s WorkflowState) CanTransitionTo(next WorkflowState) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ArtifactKind classifies a generated file
type ArtifactKind string

const (
	KindSource        ArtifactKind = "source"
	KindTest          ArtifactKind = "test"
	KindDocumentation ArtifactKind = "documentation"
	KindConfig        ArtifactKind = "config"
	KindDependency    ArtifactKind = "dependency"
)

// Artifact is a single named, typed piece of generated content
type Artifact struct {
	Path        string       `json:"path"`
	Content     string       `json:"content"`
	Kind        ArtifactKind `json:"kind"`
	Language    string       `json:"language"`
	LineCount   int          `json:"line_count"`
	Description string       `json:"description,omitempty"`
}

// NewArtifact builds an artifact and fixes its line count from content
func NewArtifact(path, content string, kind ArtifactKind, language string) Artifact {
	return Artifact{
		Path:        path,
		Content:     content,
		Kind:        kind,
		Language:    language,
		LineCount:   CountLines(content),
		Description: describe(kind, path),
	}
}

// CountLines counts newline-delimited lines; a trailing newline does not open a new line
func CountLines(content string) int {
	if content == "" {
		return 0
	}
	n := strings.Count(content, "\n") + 1
	if strings.HasSuffix(content, "\n") {
		n--
	}
	return n
}

func describe(kind ArtifactKind, path string) string {
	switch kind {
	case KindTest:
		return "Test file " + path
	case KindDocumentation:
		return "Documentation " + path
	case KindConfig:
		return "Configuration " + path
	case KindDependency:
		return "Dependency manifest " + path
	default:
		return "Source file " + path
	}
}

// ApprovalDecision is the reviewer's verdict on an iteration
type ApprovalDecision string

const (
	DecisionApproved ApprovalDecision = "approved"
	DecisionRejected ApprovalDecision = "rejected"
)

// Valid reports whether d is one of the known decisions
func (d ApprovalDecision) Valid() bool {
	return d == DecisionApproved || d == DecisionRejected
}

// Feedback is structured reviewer input for one iteration
type Feedback struct {
	Text                string           `json:"feedback_text"`
	SpecificIssues      []string         `json:"specific_issues,omitempty"`
	ImprovementRequests []string         `json:"improvement_requests,omitempty"`
	PriorityChanges     []string         `json:"priority_changes,omitempty"`
	Decision            ApprovalDecision `json:"approval_status"`
	SubmittedAt         time.Time        `json:"submitted_at"`
}

// ItemData is a snapshot of the external work item
type ItemData struct {
	Key          string         `json:"key" yaml:"key"`
	Summary      string         `json:"summary" yaml:"summary"`
	Description  string         `json:"description" yaml:"description"`
	IssueType    string         `json:"issue_type" yaml:"issue_type"`
	Priority     string         `json:"priority" yaml:"priority"`
	Status       string         `json:"status" yaml:"status"`
	Assignee     string         `json:"assignee,omitempty" yaml:"assignee"`
	Reporter     string         `json:"reporter,omitempty" yaml:"reporter"`
	Labels       []string       `json:"labels,omitempty" yaml:"labels"`
	Components   []string       `json:"components,omitempty" yaml:"components"`
	CustomFields map[string]any `json:"custom_fields,omitempty" yaml:"custom_fields"`
}

// Analysis holds the structured requirements extracted from an item
type Analysis struct {
	ItemKey               string   `json:"ticket_key"`
	Requirements          []string `json:"requirements"`
	TechnicalSpecs        []string `json:"technical_specs"`
	AcceptanceCriteria    []string `json:"acceptance_criteria"`
	ComplexityScore       int      `json:"complexity_score"`
	EstimatedFiles        int      `json:"estimated_files"`
	SuggestedTechnologies []string `json:"suggested_technologies"`
	Dependencies          []string `json:"dependencies"`
	TokensUsed            int      `json:"tokens_used"`
}

// GenerationOptions steer what the generator is asked to produce
type GenerationOptions struct {
	GenerateTests        bool   `json:"generate_tests" yaml:"generate_tests"`
	CodeStyle            string `json:"code_style" yaml:"code_style"`
	Framework            string `json:"framework,omitempty" yaml:"framework"`
	TestFramework        string `json:"test_framework,omitempty" yaml:"test_framework"`
	IncludeDocumentation bool   `json:"include_documentation" yaml:"include_documentation"`
	MaxFileSize          int    `json:"max_file_size" yaml:"max_file_size"`
	ArchitecturePattern  string `json:"architecture_pattern,omitempty" yaml:"architecture_pattern"`
	DatabaseType         string `json:"database_type,omitempty" yaml:"database_type"`
	APIStyle             string `json:"api_style,omitempty" yaml:"api_style"`
}

// DefaultGenerationOptions mirrors the out-of-the-box generation profile
func DefaultGenerationOptions() GenerationOptions {
	return GenerationOptions{
		GenerateTests:        true,
		CodeStyle:            "typescript",
		Framework:            "react",
		TestFramework:        "jest",
		IncludeDocumentation: true,
		MaxFileSize:          1000,
	}
}

// WithDefaults fills blank fields that have no sensible zero value
func (o GenerationOptions) WithDefaults() GenerationOptions {
	d := DefaultGenerationOptions()
	if strings.TrimSpace(o.CodeStyle) == "" {
		o.CodeStyle = d.CodeStyle
	}
	o.CodeStyle = strings.ToLower(strings.TrimSpace(o.CodeStyle))
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = d.MaxFileSize
	}
	return o
}

// Session is one end-to-end generation cycle for a single item key
type Session struct {
	ID              string            `json:"session_id"`
	ItemKey         string            `json:"ticket_key"`
	State           WorkflowState     `json:"current_state"`
	IterationCount  int               `json:"iteration_count"`
	MaxIterations   int               `json:"max_iterations"`
	Options         GenerationOptions `json:"generation_options"`
	Item            *ItemData         `json:"ticket_data,omitempty"`
	Analysis        *Analysis         `json:"ticket_analysis,omitempty"`
	Artifacts       []Artifact        `json:"generated_code"`
	FeedbackHistory []Feedback        `json:"feedback_history"`
	TokensUsed      int               `json:"tokens_used"`
	Errors          []string          `json:"error_messages"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Transition moves the session along a legal edge
func (s *Session) Transition(next WorkflowState) error {
	if !s.State.CanTransitionTo(next) {
		return NewError(KindInvalidState, "cannot transition session %s from %s to %s", s.ID, s.State, next)
	}
	s.State = next
	return nil
}

// Clone returns a deep copy so callers never share mutable state with the store
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.Item != nil {
		item := *s.Item
		item.Labels = cloneStrings(s.Item.Labels)
		item.Components = cloneStrings(s.Item.Components)
		if s.Item.CustomFields != nil {
			item.CustomFields = make(map[string]any, len(s.Item.CustomFields))
			for k, v := range s.Item.CustomFields {
				item.CustomFields[k] = v
			}
		}
		c.Item = &item
	}
	if s.Analysis != nil {
		a := *s.Analysis
		a.Requirements = cloneStrings(s.Analysis.Requirements)
		a.TechnicalSpecs = cloneStrings(s.Analysis.TechnicalSpecs)
		a.AcceptanceCriteria = cloneStrings(s.Analysis.AcceptanceCriteria)
		a.SuggestedTechnologies = cloneStrings(s.Analysis.SuggestedTechnologies)
		a.Dependencies = cloneStrings(s.Analysis.Dependencies)
		c.Analysis = &a
	}
	if s.Artifacts != nil {
		c.Artifacts = append([]Artifact(nil), s.Artifacts...)
	}
	if s.FeedbackHistory != nil {
		c.FeedbackHistory = make([]Feedback, len(s.FeedbackHistory))
		for i, fb := range s.FeedbackHistory {
			fb.SpecificIssues = cloneStrings(fb.SpecificIssues)
			fb.ImprovementRequests = cloneStrings(fb.ImprovementRequests)
			fb.PriorityChanges = cloneStrings(fb.PriorityChanges)
			c.FeedbackHistory[i] = fb
		}
	}
	c.Errors = cloneStrings(s.Errors)
	return &c
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

// TextRequest is a single call to the text generator
type TextRequest struct {
	Prompt        string `json:"prompt"`
	SystemMessage string `json:"system_message"`
	MaxTokens     int    `json:"max_tokens"`
}

// TextResult is the generator's reply
type TextResult struct {
	Content      string `json:"content"`
	TokensUsed   int    `json:"tokens_used"`
	Model        string `json:"model,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// TestResult reports one executed test file
type TestResult struct {
	TestFile    string   `json:"test_file"`
	Passed      bool     `json:"passed"`
	TotalTests  int      `json:"total_tests"`
	PassedTests int      `json:"passed_tests"`
	FailedTests int      `json:"failed_tests"`
	DurationMs  int64    `json:"execution_time_ms"`
	Output      string   `json:"output"`
	Errors      []string `json:"errors,omitempty"`
}

// WorkflowResponse is the structured result of every engine step
type WorkflowResponse struct {
	SessionID        string        `json:"session_id"`
	State            WorkflowState `json:"current_state"`
	Success          bool          `json:"success"`
	Message          string        `json:"message"`
	ErrorKind        ErrorKind     `json:"error_kind,omitempty"`
	Analysis         *Analysis     `json:"ticket_analysis,omitempty"`
	Artifacts        []Artifact    `json:"generated_code"`
	ApprovalRequired bool          `json:"approval_required"`
	IterationCount   int           `json:"iteration_count"`
	MaxIterations    int           `json:"max_iterations"`
	TokensUsed       int           `json:"tokens_used"`
	ProcessingTimeMs int64         `json:"processing_time_ms"`
	Errors           []string      `json:"error_messages,omitempty"`
	Warnings         []string      `json:"warnings,omitempty"`
}

// SessionSummary is the list view of a session
type SessionSummary struct {
	SessionID      string        `json:"session_id"`
	ItemKey        string        `json:"ticket_key"`
	State          WorkflowState `json:"current_state"`
	IterationCount int           `json:"iteration_count"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}
