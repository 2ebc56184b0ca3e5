package assistant

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"policy_compass/pkg/core/chat"
	"policy_compass/pkg/core/logger"
	"policy_compass/pkg/core/store"
	"policy_compass/pkg/core/utils"
)

// Handler provides HTTP handlers for the policy chat assistant
type Handler struct {
	chats  *chat.Manager
	repo   store.Repository
	origin string
	log    *logrus.Entry
}

// NewHandler creates a new assistant handler
func NewHandler(chats *chat.Manager, repo store.Repository, origin string) *Handler {
	if origin == "" {
		origin = "*"
	}
	return &Handler{chats: chats, repo: repo, origin: origin, log: logger.Component("api.assistant")}
}

type StartRequest struct {
	AnalysisID string `json:"analysis_id"`
}

type StartResponse struct {
	SessionID string `json:"session_id"`
	Greeting  string `json:"greeting"`
}

type MessageRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type MessageResponse struct {
	Reply string `json:"reply"`
	HTML  string `json:"html,omitempty"` // reply rendered from Markdown
}

type TranscriptResponse struct {
	SessionID  string         `json:"session_id"`
	AnalysisID string         `json:"analysis_id"`
	Messages   []chat.Message `json:"messages"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) headers(w http.ResponseWriter, methods string) {
	w.Header().Set("Access-Control-Allow-Origin", h.origin)
	w.Header().Set("Access-Control-Allow-Methods", methods)
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// HandleStartSession opens a chat session seeded with a stored analysis.
func (h *Handler) HandleStartSession(w http.ResponseWriter, r *http.Request) {
	h.headers(w, "POST, OPTIONS")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	rec, err := h.repo.Load(r.Context(), req.AnalysisID)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Analysis not found"})
		return
	}
	if err != nil {
		h.log.WithError(err).WithField("analysis_id", req.AnalysisID).Error("failed to load analysis")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Failed to load analysis"})
		return
	}

	s, err := h.chats.Start(r.Context(), rec.ID, rec.Analysis)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: chat.FailureMessage})
		return
	}

	writeJSON(w, http.StatusOK, StartResponse{SessionID: s.ID, Greeting: chat.Greeting})
}

// HandleMessage sends one user turn to an existing session.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	h.headers(w, "POST, OPTIONS")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	reply, err := h.chats.Send(r.Context(), req.SessionID, req.Message)
	switch {
	case err == nil:
		html, err := utils.MarkdownToHTML(reply)
		if err != nil {
			h.log.WithError(err).Warn("failed to render reply")
		}
		writeJSON(w, http.StatusOK, MessageResponse{Reply: reply, HTML: html})
	case errors.Is(err, chat.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Chat session not found"})
	case errors.Is(err, chat.ErrEmptyMessage):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Message is empty"})
	default:
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: chat.FailureMessage})
	}
}

// HandleTranscript serves /api/assistant/sessions/{id}: GET returns the
// recorded turns, DELETE closes the session.
func (h *Handler) HandleTranscript(w http.ResponseWriter, r *http.Request) {
	h.headers(w, "GET, DELETE, OPTIONS")

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodGet:
	case http.MethodDelete:
		if !h.chats.Remove(r.PathValue("id")) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Chat session not found"})
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s, ok := h.chats.Get(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Chat session not found"})
		return
	}
	writeJSON(w, http.StatusOK, TranscriptResponse{
		SessionID:  s.ID,
		AnalysisID: s.AnalysisID,
		Messages:   s.Messages(),
		UpdatedAt:  s.UpdatedAt(),
	})
}

// Register mounts the assistant routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/assistant/sessions", h.HandleStartSession)
	mux.HandleFunc("/api/assistant/sessions/{id}", h.HandleTranscript)
	mux.HandleFunc("/api/assistant/message", h.HandleMessage)
}
