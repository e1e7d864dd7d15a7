package app

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"frameline/api/internal/versionstack"
	"frameline/api/internal/workspace"
)

// workspaceRoutes is mounted once per project and once for the standalone
// workspace, which has no projectID URL parameter.
func (s *HTTPServer) workspaceRoutes(r chi.Router) {
	r.Get("/", s.handleGetWorkspace)
	r.Post("/phase", s.handleSetPhase)
	r.Post("/tool", s.handleSetTool)
	r.Post("/lock", s.handleLockPhase)
	r.Post("/unlock", s.handleUnlockPhase)
	r.Post("/draft", s.handleSaveDraft)
	r.Post("/versions", s.handleVersionAction)
	r.Post("/reset", s.handleResetWorkspace)
	r.Patch("/identity", s.handleSetIdentity)
	r.Post("/budget-actual/seed", s.handleSeedBudgetActuals)
	r.Post("/chat", s.handleChat)
}

func (s *HTTPServer) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.GetWorkspace(r.Context(), sessionFrom(r), chi.URLParam(r, "projectID"))
	s.respond(w, view, err)
}

func (s *HTTPServer) handleSetPhase(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Phase workspace.Phase `json:"phase"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	view, err := s.service.SetPhase(r.Context(), sessionFrom(r), chi.URLParam(r, "projectID"), body.Phase)
	s.respond(w, view, err)
}

func (s *HTTPServer) handleSetTool(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Tool string `json:"tool"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	view, err := s.service.SetTool(r.Context(), sessionFrom(r), chi.URLParam(r, "projectID"), body.Tool)
	s.respond(w, view, err)
}

func (s *HTTPServer) handleLockPhase(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.LockPhase(r.Context(), sessionFrom(r), chi.URLParam(r, "projectID"))
	s.respond(w, view, err)
}

func (s *HTTPServer) handleUnlockPhase(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.UnlockPhase(r.Context(), sessionFrom(r), chi.URLParam(r, "projectID"))
	s.respond(w, view, err)
}

// handleSaveDraft accepts content either as a JSON string or as any other
// JSON value, which is saved as its raw text.
func (s *HTTPServer) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Phase   workspace.Phase `json:"phase"`
		Tool    string          `json:"tool"`
		Content json.RawMessage `json:"content"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	result, err := s.service.SaveDraft(r.Context(), sessionFrom(r), chi.URLParam(r, "projectID"), body.Phase, body.Tool, draftContent(body.Content))
	s.respond(w, result, err)
}

func draftContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	return string(raw)
}

func (s *HTTPServer) handleVersionAction(w http.ResponseWriter, r *http.Request) {
	var body versionstack.Action
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	result, err := s.service.ApplyVersionAction(r.Context(), sessionFrom(r), chi.URLParam(r, "projectID"), body)
	s.respond(w, result, err)
}

func (s *HTTPServer) handleResetWorkspace(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.ResetWorkspace(r.Context(), sessionFrom(r), chi.URLParam(r, "projectID"))
	s.respond(w, view, err)
}

func (s *HTTPServer) handleSetIdentity(w http.ResponseWriter, r *http.Request) {
	var body workspace.Identity
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	view, err := s.service.SetIdentity(r.Context(), sessionFrom(r), chi.URLParam(r, "projectID"), body)
	s.respond(w, view, err)
}

func (s *HTTPServer) handleSeedBudgetActuals(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.SeedBudgetActuals(r.Context(), sessionFrom(r), chi.URLParam(r, "projectID"))
	s.respond(w, result, err)
}

func (s *HTTPServer) handleChat(w http.ResponseWriter, r *http.Request) {
	var body ChatInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	result, err := s.service.Chat(r.Context(), sessionFrom(r), chi.URLParam(r, "projectID"), body)
	s.respond(w, result, err)
}

func (s *HTTPServer) respond(w http.ResponseWriter, payload any, err error) {
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}
