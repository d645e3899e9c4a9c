package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/opencode-ai/agentcore/pkg/types"
)

// CreateSessionRequest is the body of POST /session.
type CreateSessionRequest struct {
	types.CreateSessionInput
	WindowID string `json:"windowId,omitempty"`
}

// UpdateSessionRequest is the body of PATCH /session/{id}. Absent fields are unchanged.
type UpdateSessionRequest struct {
	Title    *string `json:"title,omitempty"`
	IsPinned *bool   `json:"isPinned,omitempty"`
}

// SendMessageRequest is the body of POST /session/{id}/message.
type SendMessageRequest struct {
	Text string `json:"text"`
}

// ActivateRequest is the body of PUT /window/{windowID}/session.
type ActivateRequest struct {
	SessionID string `json:"sessionId"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "listeners": s.hub.count()})
}

func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.GetAgents())
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sessions, err := s.orch.GetSessionList(r.Context(), types.SessionFilter{
		AgentID:    q.Get("agentId"),
		ProjectDir: q.Get("projectDir"),
	})
	if err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}
	view, err := s.orch.CreateSession(r.Context(), req.CreateSessionInput, req.WindowID)
	if err != nil && view == nil {
		s.writeCoreError(w, r, err)
		return
	}
	if err != nil {
		// the session exists; only the initial message was refused
		s.log.Warn().Err(err).Str("sessionID", view.ID).Msg("initial message not sent")
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	view, err := s.orch.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) updateSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	var req UpdateSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Title != nil {
		if _, err := s.orch.RenameSession(r.Context(), id, *req.Title); err != nil {
			s.writeCoreError(w, r, err)
			return
		}
	}
	if req.IsPinned != nil {
		if _, err := s.orch.SetPinned(r.Context(), id, *req.IsPinned); err != nil {
			s.writeCoreError(w, r, err)
			return
		}
	}
	s.getSession(w, r)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	writeSuccess(w)
}

func (s *Server) abortSession(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.CancelGeneration(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	writeSuccess(w)
}

// sendMessage starts a generation and answers 202; the reply arrives on the event relay.
func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	var req SendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.orch.SendMessage(r.Context(), id, req.Text); err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"sessionId": id})
}

func (s *Server) getMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.orch.GetMessages(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []*types.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) getMessageIDs(w http.ResponseWriter, r *http.Request) {
	ids, err := s.orch.GetMessageIDs(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

func (s *Server) getMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "messageID")
	msg, err := s.orch.GetMessage(r.Context(), id)
	if err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	if msg == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "message not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (s *Server) getActiveSession(w http.ResponseWriter, r *http.Request) {
	view, err := s.orch.GetActiveSession(r.Context(), chi.URLParam(r, "windowID"))
	if err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	if view == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) activateSession(w http.ResponseWriter, r *http.Request) {
	var req ActivateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "sessionId required")
		return
	}
	if err := s.orch.ActivateSession(r.Context(), chi.URLParam(r, "windowID"), req.SessionID); err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	writeSuccess(w)
}

func (s *Server) deactivateSession(w http.ResponseWriter, r *http.Request) {
	s.orch.DeactivateSession(chi.URLParam(r, "windowID"))
	writeSuccess(w)
}
