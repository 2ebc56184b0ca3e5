package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"policy_compass/pkg/core/agent"
	"policy_compass/pkg/core/chat"
	"policy_compass/pkg/core/llm"
	"policy_compass/pkg/core/logger"
	"policy_compass/pkg/core/store"
	"policy_compass/pkg/models"
)

func init() {
	logger.Silence()
}

func setup(t *testing.T, mock *llm.MockProvider) *http.ServeMux {
	t.Helper()
	mgr := agent.NewManager(agent.DefaultConfig(), map[string]llm.Provider{"gemini": mock})
	chats := chat.NewManager(mgr, 0)
	t.Cleanup(chats.Close)

	repo := store.NewMemoryRepo(0, 0)
	repo.Save(context.Background(), &models.AnalysisRecord{
		ID:        "a1",
		Topic:     "AI",
		Countries: []string{"Canada"},
		CreatedAt: time.Now(),
		Analysis: &models.FullAnalysis{
			Contracts: []models.Contract{{ID: 0, Country: "Canada", PolicyTitle: "AIDA", Summary: "Baseline."}},
		},
	})

	mux := http.NewServeMux()
	NewHandler(chats, repo, "").Register(mux)
	return mux
}

func do(mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func startSession(t *testing.T, mux http.Handler) string {
	t.Helper()
	rec := do(mux, http.MethodPost, "/api/assistant/sessions", `{"analysis_id":"a1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp StartResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Greeting != chat.Greeting {
		t.Errorf("Expected greeting, got %q", resp.Greeting)
	}
	return resp.SessionID
}

func TestSessionAndMessage(t *testing.T) {
	mock := &llm.MockProvider{
		ReplyFunc: func(ctx context.Context, system, message string) (string, error) {
			if !strings.Contains(system, "**Policy: AIDA (Canada)**") {
				return "", errors.New("missing context")
			}
			return "Canada is the baseline.", nil
		},
	}
	mux := setup(t, mock)
	id := startSession(t, mux)

	rec := do(mux, http.MethodPost, "/api/assistant/message", `{"session_id":"`+id+`","message":"What is the baseline?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp MessageResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Reply != "Canada is the baseline." {
		t.Errorf("Unexpected reply %q", resp.Reply)
	}
	if !strings.Contains(resp.HTML, "<p>Canada is the baseline.</p>") {
		t.Errorf("Expected rendered reply, got %q", resp.HTML)
	}

	rec = do(mux, http.MethodGet, "/api/assistant/sessions/"+id, "")
	var transcript TranscriptResponse
	json.NewDecoder(rec.Body).Decode(&transcript)
	if len(transcript.Messages) != 3 {
		t.Errorf("Expected greeting plus two turns, got %d", len(transcript.Messages))
	}

	if rec := do(mux, http.MethodDelete, "/api/assistant/sessions/"+id, ""); rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204 on delete, got %d", rec.Code)
	}
	if rec := do(mux, http.MethodGet, "/api/assistant/sessions/"+id, ""); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", rec.Code)
	}
	if rec := do(mux, http.MethodDelete, "/api/assistant/sessions/"+id, ""); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 deleting twice, got %d", rec.Code)
	}
}

func TestMessageErrors(t *testing.T) {
	mock := &llm.MockProvider{
		ReplyFunc: func(ctx context.Context, system, message string) (string, error) {
			return "", errors.New("deadline exceeded")
		},
	}
	mux := setup(t, mock)
	id := startSession(t, mux)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"unknown session", `{"session_id":"nope","message":"hi"}`, http.StatusNotFound},
		{"empty message", `{"session_id":"` + id + `","message":"  "}`, http.StatusBadRequest},
		{"provider failure", `{"session_id":"` + id + `","message":"hi"}`, http.StatusBadGateway},
		{"malformed body", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(mux, http.MethodPost, "/api/assistant/message", tt.body)
			if rec.Code != tt.code {
				t.Errorf("Expected %d, got %d: %s", tt.code, rec.Code, rec.Body.String())
			}
		})
	}

	rec := do(mux, http.MethodPost, "/api/assistant/message", `{"session_id":"`+id+`","message":"hi"}`)
	if !strings.Contains(rec.Body.String(), chat.FailureMessage) {
		t.Errorf("Expected generic chat failure, got %s", rec.Body.String())
	}
}

func TestStartSession_UnknownAnalysis(t *testing.T) {
	mux := setup(t, &llm.MockProvider{})
	rec := do(mux, http.MethodPost, "/api/assistant/sessions", `{"analysis_id":"missing"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
	if rec := do(mux, http.MethodGet, "/api/assistant/sessions/missing", ""); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown transcript, got %d", rec.Code)
	}
}
