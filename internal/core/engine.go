package core

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"jira_code_agent/internal/extractor"
	"jira_code_agent/pkg"
	"jira_code_agent/src/logger"
)

// maxSweepHours is the largest age that still fits in a time.Duration
const maxSweepHours = math.MaxInt64 / int64(time.Hour)

// Engine drives sessions through the generate, review and revise state machine.
// Operations on one session are serialized through the store's session lock;
// different sessions proceed independently.
type Engine struct {
	store        SessionStore
	items        ItemProvider
	gen          TextGenerator
	runner       TestRunner
	extractor    *extractor.Extractor
	incorporator *FeedbackIncorporator
	config       Config
	now          func() time.Time
}

// Option customizes an Engine
type Option func(*Engine)

// WithConfig replaces the default engine configuration
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.config = cfg }
}

// WithTestRunner enables RunTests
func WithTestRunner(runner TestRunner) Option {
	return func(e *Engine) { e.runner = runner }
}

// WithClock overrides the time source used for processing times and feedback stamps
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine wires the engine to its store and collaborators
func NewEngine(store SessionStore, items ItemProvider, gen TextGenerator, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		items:     items,
		gen:       gen,
		extractor: extractor.New(),
		config:    DefaultConfig(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.incorporator = NewFeedbackIncorporator(gen, e.config)
	return e
}

// Config returns the active engine configuration
func (e *Engine) Config() Config {
	return e.config
}

// Start creates a session and runs it up to the first review
func (e *Engine) Start(ctx context.Context, req StartRequest) (*pkg.WorkflowResponse, error) {
	started := e.now()

	key := strings.TrimSpace(req.ItemKey)
	if key == "" {
		return nil, pkg.NewError(pkg.KindValidation, "ticket key cannot be empty")
	}
	if req.MaxIterations < 1 {
		return nil, pkg.NewError(pkg.KindValidation, "max iterations must be at least 1, got %d", req.MaxIterations)
	}

	session, err := e.store.Create(ctx, key, req.MaxIterations)
	if err != nil {
		return nil, err
	}
	unlock, err := e.store.Lock(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("lock session %s: %w", session.ID, err)
	}
	defer unlock()

	session.Options = req.Options.WithDefaults()
	if err := e.store.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("persist session %s: %w", session.ID, err)
	}

	log := logger.WithSession(session.ID, key)
	log.Info().Int("max_iterations", session.MaxIterations).Msg("Starting code generation session")

	timeout := e.config.Workflow.StepTimeout

	item, err := withStepTimeout(ctx, timeout, func(ctx context.Context) (*pkg.ItemData, error) {
		return e.items.Fetch(ctx, key)
	})
	if err != nil {
		return e.fail(ctx, session, started, pkg.KindCollaborator, fmt.Sprintf("Failed to fetch ticket %s: %v", key, err))
	}
	session.Item = item
	if err := e.advance(ctx, session, pkg.StateAnalyzingRequirements); err != nil {
		return nil, err
	}

	analysis, err := withStepTimeout(ctx, timeout, func(ctx context.Context) (*pkg.Analysis, error) {
		return e.items.Analyze(ctx, item)
	})
	if err != nil {
		return e.fail(ctx, session, started, pkg.KindCollaborator, fmt.Sprintf("Failed to analyze ticket %s: %v", key, err))
	}
	session.Analysis = analysis
	session.TokensUsed += analysis.TokensUsed
	if err := e.advance(ctx, session, pkg.StateGeneratingArtifacts); err != nil {
		return nil, err
	}

	genReq := pkg.TextRequest{
		Prompt:        buildGenerationPrompt(item, analysis, session.Options),
		SystemMessage: e.config.Prompts.GenerationSystem,
		MaxTokens:     e.config.Tokens.Generation,
	}
	result, err := withStepTimeout(ctx, timeout, func(ctx context.Context) (*pkg.TextResult, error) {
		return e.gen.Generate(ctx, genReq)
	})
	if err != nil {
		return e.fail(ctx, session, started, pkg.KindCollaborator, fmt.Sprintf("Failed to generate code: %v", err))
	}
	session.TokensUsed += result.TokensUsed
	if strings.TrimSpace(result.Content) == "" {
		return e.fail(ctx, session, started, pkg.KindCollaborator, "Failed to generate code: empty response")
	}
	session.Artifacts = e.extractor.Extract(result.Content, extractor.Options{DefaultStyle: session.Options.CodeStyle})

	if session.Options.GenerateTests && !hasKind(session.Artifacts, pkg.KindTest) {
		tests, tokens, err := e.generateTests(ctx, session.Artifacts, session.Options)
		session.TokensUsed += tokens
		if err != nil {
			return e.fail(ctx, session, started, pkg.KindCollaborator, fmt.Sprintf("Failed to generate tests: %v", err))
		}
		session.Artifacts = append(session.Artifacts, tests...)
	}

	if session.Options.IncludeDocumentation {
		docs, tokens, err := e.generateDocs(ctx, session.Artifacts)
		session.TokensUsed += tokens
		if err != nil {
			return e.fail(ctx, session, started, pkg.KindCollaborator, fmt.Sprintf("Failed to generate documentation: %v", err))
		}
		session.Artifacts = append(session.Artifacts, docs...)
	}

	if err := e.advance(ctx, session, pkg.StateAwaitingApproval); err != nil {
		return nil, err
	}

	log.Info().
		Int("artifacts", len(session.Artifacts)).
		Int("tokens", session.TokensUsed).
		Msg("Code generated, awaiting approval")

	msg := fmt.Sprintf("Generated %d files for %s. Please review and approve or provide feedback.", len(session.Artifacts), key)
	resp := e.respond(session, started, true, msg)
	logWarnings(session, resp.Warnings)
	return resp, nil
}

// SubmitApproval records a review decision and either completes the session or revises it
func (e *Engine) SubmitApproval(ctx context.Context, sessionID string, fb pkg.Feedback) (*pkg.WorkflowResponse, error) {
	started := e.now()

	if strings.TrimSpace(sessionID) == "" {
		return nil, pkg.NewError(pkg.KindValidation, "session id cannot be empty")
	}
	if !fb.Decision.Valid() {
		return nil, pkg.NewError(pkg.KindValidation, "unknown approval decision %q", fb.Decision)
	}

	unlock, err := e.store.Lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	session, err := e.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.State != pkg.StateAwaitingApproval {
		return nil, pkg.NewError(pkg.KindInvalidState, "session %s is %s, not awaiting approval", sessionID, session.State)
	}

	log := logger.WithSession(session.ID, session.ItemKey)

	if fb.SubmittedAt.IsZero() {
		fb.SubmittedAt = e.now()
	}
	session.FeedbackHistory = append(session.FeedbackHistory, fb)

	if fb.Decision == pkg.DecisionApproved {
		if err := e.advance(ctx, session, pkg.StateCompleted); err != nil {
			return nil, err
		}
		log.Info().Int("iteration", session.IterationCount).Msg("Code approved")
		return e.respond(session, started, true, "Code approved! Generation completed successfully."), nil
	}

	if session.IterationCount >= session.MaxIterations {
		msg := fmt.Sprintf("Maximum iterations (%d) reached without approval", session.MaxIterations)
		return e.fail(ctx, session, started, pkg.KindIterationLimit, msg)
	}

	session.IterationCount++
	if err := e.advance(ctx, session, pkg.StateIncorporatingFeedback); err != nil {
		return nil, err
	}
	log.Info().Int("iteration", session.IterationCount).Msg("Incorporating feedback")

	work := session.Clone()
	artifacts, err := withStepTimeout(ctx, e.config.Workflow.StepTimeout, func(ctx context.Context) ([]pkg.Artifact, error) {
		return e.incorporator.Incorporate(ctx, work, fb)
	})
	if err != nil {
		return e.fail(ctx, session, started, pkg.KindCollaborator, fmt.Sprintf("Failed to incorporate feedback: %v", err))
	}
	session.TokensUsed = work.TokensUsed
	session.Artifacts = artifacts

	if err := e.advance(ctx, session, pkg.StateAwaitingApproval); err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("Code regenerated based on feedback (iteration %d/%d). Please review.", session.IterationCount, session.MaxIterations)
	resp := e.respond(session, started, true, msg)
	logWarnings(session, resp.Warnings)
	return resp, nil
}

// Status returns a snapshot of the session without taking its lock
func (e *Engine) Status(ctx context.Context, sessionID string) (*pkg.WorkflowResponse, error) {
	session, err := e.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	resp := e.respond(session, e.now(), session.State != pkg.StateFailed, statusMessage(session))
	resp.ProcessingTimeMs = 0
	return resp, nil
}

// Session returns a full copy of the session record
func (e *Engine) Session(ctx context.Context, sessionID string) (*pkg.Session, error) {
	return e.store.Get(ctx, sessionID)
}

// ListSessions summarizes every tracked session
func (e *Engine) ListSessions(ctx context.Context) ([]pkg.SessionSummary, error) {
	sessions, err := e.store.List(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]pkg.SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, pkg.SessionSummary{
			SessionID:      s.ID,
			ItemKey:        s.ItemKey,
			State:          s.State,
			IterationCount: s.IterationCount,
			CreatedAt:      s.CreatedAt,
			UpdatedAt:      s.UpdatedAt,
		})
	}
	return summaries, nil
}

// DeleteSession removes a session, waiting for any in-flight operation on it
func (e *Engine) DeleteSession(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return pkg.NewError(pkg.KindValidation, "session id cannot be empty")
	}
	if err := e.store.Delete(ctx, sessionID); err != nil {
		return err
	}
	logger.Info().Str("session_id", sessionID).Msg("Session deleted")
	return nil
}

// Sweep removes completed and failed sessions at least maxAgeHours old
func (e *Engine) Sweep(ctx context.Context, maxAgeHours int) (int, error) {
	if maxAgeHours < 0 {
		return 0, pkg.NewError(pkg.KindValidation, "max age hours cannot be negative, got %d", maxAgeHours)
	}
	hours := int64(maxAgeHours)
	if hours > maxSweepHours {
		hours = maxSweepHours
	}

	removed, err := e.store.Sweep(ctx, time.Duration(hours)*time.Hour)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		logger.Info().Int("removed", removed).Int("max_age_hours", maxAgeHours).Msg("Swept old sessions")
	}
	return removed, nil
}

// RunTests executes the session's test artifacts. The session itself is not modified.
func (e *Engine) RunTests(ctx context.Context, sessionID string) ([]pkg.TestResult, error) {
	if e.runner == nil {
		return nil, pkg.NewError(pkg.KindValidation, "test execution is not configured")
	}
	session, err := e.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !hasKind(session.Artifacts, pkg.KindTest) {
		return nil, pkg.NewError(pkg.KindValidation, "session %s has no test artifacts", sessionID)
	}

	results, err := e.runner.Run(ctx, session.Artifacts, session.Options)
	if err != nil {
		return nil, pkg.WrapError(pkg.KindCollaborator, err, "test execution failed")
	}
	return results, nil
}

// advance transitions the working copy and persists it
func (e *Engine) advance(ctx context.Context, session *pkg.Session, next pkg.WorkflowState) error {
	if err := session.Transition(next); err != nil {
		return err
	}
	if err := e.store.Update(ctx, session); err != nil {
		return fmt.Errorf("persist session %s: %w", session.ID, err)
	}
	return nil
}

// fail records msg, moves the session to FAILED and reports the failure as a response
func (e *Engine) fail(ctx context.Context, session *pkg.Session, started time.Time, kind pkg.ErrorKind, msg string) (*pkg.WorkflowResponse, error) {
	session.Errors = append(session.Errors, msg)
	if err := e.advance(ctx, session, pkg.StateFailed); err != nil {
		return nil, err
	}

	log := logger.WithSession(session.ID, session.ItemKey)
	log.Error().Str("error_kind", string(kind)).Msg(msg)

	resp := e.respond(session, started, false, msg)
	resp.ErrorKind = kind
	resp.Warnings = append(resp.Warnings, msg)
	return resp, nil
}

func (e *Engine) respond(session *pkg.Session, started time.Time, success bool, msg string) *pkg.WorkflowResponse {
	artifacts := session.Artifacts
	if artifacts == nil {
		artifacts = []pkg.Artifact{}
	}
	return &pkg.WorkflowResponse{
		SessionID:        session.ID,
		State:            session.State,
		Success:          success,
		Message:          msg,
		Analysis:         session.Analysis,
		Artifacts:        artifacts,
		ApprovalRequired: session.State == pkg.StateAwaitingApproval,
		IterationCount:   session.IterationCount,
		MaxIterations:    session.MaxIterations,
		TokensUsed:       session.TokensUsed,
		ProcessingTimeMs: e.now().Sub(started).Milliseconds(),
		Errors:           session.Errors,
		Warnings:         SyntaxWarnings(artifacts),
	}
}

func logWarnings(session *pkg.Session, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	log := logger.WithSession(session.ID, session.ItemKey)
	log.Warn().Strs("warnings", warnings).Msg("Generated code has syntax warnings")
}

func statusMessage(session *pkg.Session) string {
	switch session.State {
	case pkg.StateAwaitingApproval:
		return fmt.Sprintf("Awaiting approval for iteration %d/%d", session.IterationCount, session.MaxIterations)
	case pkg.StateCompleted:
		return "Code generation completed"
	case pkg.StateFailed:
		if n := len(session.Errors); n > 0 {
			return session.Errors[n-1]
		}
		return "Code generation failed"
	default:
		return fmt.Sprintf("Session is %s", session.State)
	}
}

func hasKind(artifacts []pkg.Artifact, kind pkg.ArtifactKind) bool {
	for _, a := range artifacts {
		if a.Kind == kind {
			return true
		}
	}
	return false
}

// withStepTimeout bounds fn by timeout and ctx even when fn ignores cancellation
func withStepTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(ctx)
		done <- outcome{v, err}
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
