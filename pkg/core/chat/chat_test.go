package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"policy_compass/pkg/core/agent"
	"policy_compass/pkg/core/llm"
	"policy_compass/pkg/core/logger"
	"policy_compass/pkg/core/prompt"
	"policy_compass/pkg/models"
)

func init() {
	logger.Silence()
}

func sampleAnalysis() *models.FullAnalysis {
	return &models.FullAnalysis{
		DashboardSummary: models.DashboardAnalysis{
			KeyThemes: []string{"Ethics", "Investment"},
			CommonClauses: []models.CommonClause{
				{Clause: "Oversight", Frequency: 80},
				{Clause: "Funding", Frequency: 40},
			},
			DivergentApproaches: []models.DivergentApproach{
				{Approach: "Soft law"},
			},
		},
		Contracts: []models.Contract{
			{ID: 0, Country: "Germany", PolicyTitle: "KI-Strategie", Summary: "Stronger funding than Canada.", Suggestions: "Expand sandboxes."},
			{ID: 1, Country: "Japan", PolicyTitle: "AI Guidelines", Summary: "Softer rules than Canada."},
		},
	}
}

type failingOpener struct{ err error }

func (f failingOpener) StartChat(ctx context.Context, role string, req llm.ChatRequest) (llm.Chat, error) {
	return nil, f.err
}

func newTestManager(mock *llm.MockProvider, ttl time.Duration) *Manager {
	mgr := agent.NewManager(agent.DefaultConfig(), map[string]llm.Provider{"gemini": mock})
	return NewManager(mgr, ttl)
}

func TestBuildSystemInstruction(t *testing.T) {
	text, err := BuildSystemInstruction(prompt.NewRegistry(), sampleAnalysis())
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"expert policy analysis assistant",
		"Key Themes: Ethics, Investment",
		"Common Clauses: Oversight, Funding",
		"Divergent Approaches: Soft law",
		"**Policy: KI-Strategie (Germany)**",
		"Summary (vs. Canada): Stronger funding than Canada.",
		"Suggestions: Expand sandboxes.",
		"**Policy: AI Guidelines (Japan)**",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("system instruction missing %q", want)
		}
	}
}

func TestContractContext_BlankLineBetweenBlocks(t *testing.T) {
	ctx := ContractContext(sampleAnalysis())
	if strings.Count(ctx, "**Policy:") != 2 {
		t.Fatalf("Expected 2 policy blocks, got:\n%s", ctx)
	}
	if !strings.Contains(ctx, "Suggestions: Expand sandboxes.\n\n\n**Policy: AI Guidelines") {
		t.Errorf("Blocks not separated by a blank line:\n%q", ctx)
	}
}

func TestBuildSystemInstruction_NilAnalysis(t *testing.T) {
	if _, err := BuildSystemInstruction(prompt.NewRegistry(), nil); err == nil {
		t.Error("Expected error for nil analysis")
	}
}

func TestManager_StartAndSend(t *testing.T) {
	mock := &llm.MockProvider{
		ReplyFunc: func(ctx context.Context, system string, message string) (string, error) {
			return "Germany funds more.", nil
		},
	}
	m := newTestManager(mock, 0)
	defer m.Close()

	s, err := m.Start(context.Background(), "analysis-1", sampleAnalysis())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if m.Latest() != s {
		t.Error("Expected started session to be latest")
	}

	reqs := mock.ChatRequests()
	if len(reqs) != 1 || reqs[0].Model != "gemini-2.5-flash" {
		t.Fatalf("Unexpected chat requests %+v", reqs)
	}
	if !strings.Contains(reqs[0].SystemInstruction, "KI-Strategie") {
		t.Error("System instruction was not seeded with the analysis")
	}

	reply, err := m.Send(context.Background(), s.ID, "Who funds more?")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if reply != "Germany funds more." {
		t.Errorf("Unexpected reply %q", reply)
	}

	msgs := s.Messages()
	if len(msgs) != 3 {
		t.Fatalf("Expected greeting + 2 turns, got %d", len(msgs))
	}
	if msgs[0].Text != Greeting || msgs[1].Sender != SenderUser || msgs[2].Sender != SenderAgent {
		t.Errorf("Unexpected transcript %+v", msgs)
	}
}

func TestSession_StripsFencedReply(t *testing.T) {
	mock := &llm.MockProvider{
		ReplyFunc: func(ctx context.Context, system string, message string) (string, error) {
			return "```markdown\n**Germany** funds more.\n```", nil
		},
	}
	m := newTestManager(mock, 0)
	defer m.Close()

	s, err := m.Start(context.Background(), "analysis-1", sampleAnalysis())
	if err != nil {
		t.Fatal(err)
	}
	reply, err := s.Send(context.Background(), "Who funds more?")
	if err != nil {
		t.Fatal(err)
	}
	if reply != "**Germany** funds more." {
		t.Errorf("Expected fence to be stripped, got %q", reply)
	}
	if msgs := s.Messages(); msgs[len(msgs)-1].Text != reply {
		t.Errorf("Expected transcript to hold the cleaned reply, got %q", msgs[len(msgs)-1].Text)
	}
}

func TestManager_Remove(t *testing.T) {
	m := newTestManager(&llm.MockProvider{}, 0)
	defer m.Close()

	s, err := m.Start(context.Background(), "analysis-1", sampleAnalysis())
	if err != nil {
		t.Fatal(err)
	}
	if !m.Remove(s.ID) {
		t.Error("Expected Remove to report the session")
	}
	if _, ok := m.Get(s.ID); ok {
		t.Error("Expected session to be gone")
	}
	if m.Remove(s.ID) {
		t.Error("Expected second Remove to report nothing")
	}
}

func TestManager_LastOneWins(t *testing.T) {
	m := newTestManager(&llm.MockProvider{}, 0)
	defer m.Close()

	first, _ := m.Start(context.Background(), "a", sampleAnalysis())
	second, _ := m.Start(context.Background(), "b", sampleAnalysis())
	if m.Latest() != second {
		t.Error("Expected newest session to replace latest")
	}
	if _, ok := m.Get(first.ID); !ok {
		t.Error("Earlier session should still be addressable by id")
	}
}

func TestSession_SendFailure(t *testing.T) {
	cause := errors.New("deadline exceeded")
	mock := &llm.MockProvider{
		ReplyFunc: func(ctx context.Context, system string, message string) (string, error) {
			return "", cause
		},
	}
	m := newTestManager(mock, 0)
	defer m.Close()

	s, _ := m.Start(context.Background(), "a", sampleAnalysis())
	_, err := s.Send(context.Background(), "hello")
	if !errors.Is(err, ErrResponseFailed) || !errors.Is(err, cause) {
		t.Fatalf("Expected ErrResponseFailed wrapping cause, got %v", err)
	}
	if err.Error() != FailureMessage {
		t.Errorf("Expected generic message, got %q", err.Error())
	}

	msgs := s.Messages()
	last := msgs[len(msgs)-1]
	if !last.Error || last.Text != ApologyMessage {
		t.Errorf("Expected apology turn, got %+v", last)
	}
}

func TestSession_EmptyMessageSkipsProvider(t *testing.T) {
	mock := &llm.MockProvider{}
	m := newTestManager(mock, 0)
	defer m.Close()

	s, _ := m.Start(context.Background(), "a", sampleAnalysis())
	if _, err := s.Send(context.Background(), "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("Expected ErrEmptyMessage, got %v", err)
	}
	if len(mock.Messages()) != 0 {
		t.Error("Provider should not receive empty messages")
	}
}

func TestSession_NilIsNotInitialized(t *testing.T) {
	var s *Session
	if _, err := s.Send(context.Background(), "hi"); !errors.Is(err, ErrChatNotInitialized) {
		t.Errorf("Expected ErrChatNotInitialized, got %v", err)
	}
}

func TestManager_UnknownSession(t *testing.T) {
	m := newTestManager(&llm.MockProvider{}, 0)
	defer m.Close()
	if _, err := m.Send(context.Background(), "missing", "hi"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestManager_StartFailure(t *testing.T) {
	m := NewManager(failingOpener{err: llm.ErrMissingAPIKey}, 0)
	defer m.Close()

	_, err := m.Start(context.Background(), "a", sampleAnalysis())
	if !errors.Is(err, ErrResponseFailed) || !errors.Is(err, llm.ErrMissingAPIKey) {
		t.Errorf("Expected wrapped failure, got %v", err)
	}
	if m.Len() != 0 || m.Latest() != nil {
		t.Error("Failed start must not register a session")
	}
}

func TestManager_Expire(t *testing.T) {
	m := newTestManager(&llm.MockProvider{}, time.Hour)
	defer m.Close()

	now := time.Now()
	m.now = func() time.Time { return now }

	old, _ := m.Start(context.Background(), "old", sampleAnalysis())
	now = now.Add(90 * time.Minute)
	fresh, _ := m.Start(context.Background(), "fresh", sampleAnalysis())

	if n := m.Expire(); n != 1 {
		t.Fatalf("Expected 1 expired session, got %d", n)
	}
	if _, ok := m.Get(old.ID); ok {
		t.Error("Old session should be gone")
	}
	if m.Latest() != fresh {
		t.Error("Fresh session should remain latest")
	}
}
