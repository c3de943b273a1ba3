package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/rowanjacobson/rag-chatbot-enhanced/internal/chat"
	"github.com/rowanjacobson/rag-chatbot-enhanced/internal/session"
	"github.com/rowanjacobson/rag-chatbot-enhanced/internal/tools"
)

// maxQueryBytes bounds request bodies so oversized payloads cannot exhaust
// memory or embedding quota.
const maxQueryBytes = 64 * 1024

// Agent is the chat capability the query handler depends on.
type Agent interface {
	Answer(ctx context.Context, sessionID uuid.UUID, query string) (*chat.Response, error)
}

type queryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

type queryResponse struct {
	Answer    string         `json:"answer"`
	Sources   []tools.Source `json:"sources"`
	SessionID string         `json:"session_id"`
}

type queryHandler struct {
	agent    Agent
	sessions *session.Store
	logger   *slog.Logger
}

// query answers one question. A request without a session_id (or with an
// unparseable one) gets a fresh session whose ID is returned for follow-ups.
func (h *queryHandler) query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	body := http.MaxBytesReader(w, r.Body, maxQueryBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body", h.logger)
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query is required", h.logger)
		return
	}

	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		sessionID = h.sessions.Create()
	}

	resp, err := h.agent.Answer(r.Context(), sessionID, req.Query)
	if err != nil {
		if errors.Is(err, chat.ErrInvalidQuery) {
			writeError(w, http.StatusBadRequest, "invalid_request", "query is required", h.logger)
			return
		}
		h.logger.Error("answering query", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "query_failed", "failed to process query", h.logger)
		return
	}

	sources := resp.Sources
	if sources == nil {
		sources = []tools.Source{}
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Answer:    resp.Answer,
		Sources:   sources,
		SessionID: sessionID.String(),
	}, h.logger)
}
