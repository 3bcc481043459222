package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"

	"jira_code_agent/internal/core"
	"jira_code_agent/pkg"
	"jira_code_agent/src/logger"
)

const (
	maxBodyBytes       = 1 << 20
	defaultSweepMaxAge = 24
)

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error     string        `json:"error"`
	ErrorKind pkg.ErrorKind `json:"error_kind,omitempty"`
}

// SessionHandler handles session-related HTTP requests.
type SessionHandler struct {
	engine   *core.Engine
	defaults pkg.GenerationOptions
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(engine *core.Engine, defaults pkg.GenerationOptions) *SessionHandler {
	return &SessionHandler{engine: engine, defaults: defaults}
}

// Health handles GET /health
func (h *SessionHandler) Health(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.engine.ListSessions(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"active_sessions": len(sessions),
	})
}

// Start handles POST /api/v1/sessions
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	req := core.StartRequest{
		Options:       h.defaults,
		MaxIterations: h.engine.Config().Workflow.DefaultMaxIterations,
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, pkg.KindValidation, "invalid request body: "+err.Error())
		return
	}

	resp, err := h.engine.Start(r.Context(), req)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// List handles GET /api/v1/sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.engine.ListSessions(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// Get handles GET /api/v1/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	resp, err := h.engine.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Delete handles DELETE /api/v1/sessions/{id}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.engine.DeleteSession(r.Context(), id); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": id,
		"message":    "Session deleted",
	})
}

// Approval handles POST /api/v1/sessions/{id}/approval
func (h *SessionHandler) Approval(w http.ResponseWriter, r *http.Request) {
	var fb pkg.Feedback
	if err := decodeJSON(r, &fb); err != nil {
		writeError(w, http.StatusBadRequest, pkg.KindValidation, "invalid request body: "+err.Error())
		return
	}

	resp, err := h.engine.SubmitApproval(r.Context(), chi.URLParam(r, "id"), fb)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// RunTests handles POST /api/v1/sessions/{id}/tests
func (h *SessionHandler) RunTests(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	results, err := h.engine.RunTests(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	passed := true
	for _, res := range results {
		passed = passed && res.Passed
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"passed":     passed,
		"results":    results,
	})
}

// Cleanup handles POST /api/v1/sessions/cleanup?max_age_hours=N
func (h *SessionHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	hours := defaultSweepMaxAge
	if v := r.URL.Query().Get("max_age_hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, pkg.KindValidation, fmt.Sprintf("invalid max_age_hours %q", v))
			return
		}
		hours = n
	}

	removed, err := h.engine.Sweep(r.Context(), hours)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"removed":       removed,
		"max_age_hours": hours,
	})
}

func decodeJSON(r *http.Request, dest any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return fmt.Errorf("empty body")
	}
	return sonic.Unmarshal(body, dest)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to encode response")
		status = http.StatusInternalServerError
		data = []byte(`{"error":"failed to encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, kind pkg.ErrorKind, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, ErrorKind: kind})
}

func writeEngineError(w http.ResponseWriter, err error) {
	kind := pkg.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		logger.Error().Err(err).Msg("Request failed")
	}
	writeError(w, status, kind, err.Error())
}

func statusFor(kind pkg.ErrorKind) int {
	switch kind {
	case pkg.KindValidation:
		return http.StatusBadRequest
	case pkg.KindNotFound:
		return http.StatusNotFound
	case pkg.KindInvalidState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
