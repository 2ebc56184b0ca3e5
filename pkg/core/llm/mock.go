package llm

import (
	"context"
	"sync"
)

// MockProvider returns scripted responses. It backs tests and simulation runs
// where no API key is available.
type MockProvider struct {
	GenerateFunc func(ctx context.Context, req GenerateRequest) (string, error)
	ReplyFunc    func(ctx context.Context, system string, message string) (string, error)

	mu        sync.Mutex
	generated []GenerateRequest
	chats     []ChatRequest
	messages  []string
}

var _ Provider = (*MockProvider)(nil)

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	m.mu.Lock()
	m.generated = append(m.generated, req)
	m.mu.Unlock()

	if m.GenerateFunc == nil {
		return "{}", nil
	}
	return m.GenerateFunc(ctx, req)
}

func (m *MockProvider) StartChat(ctx context.Context, req ChatRequest) (Chat, error) {
	m.mu.Lock()
	m.chats = append(m.chats, req)
	m.mu.Unlock()
	return &mockChat{parent: m, system: req.SystemInstruction}, nil
}

// GenerateRequests returns a copy of every Generate call seen so far.
func (m *MockProvider) GenerateRequests() []GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]GenerateRequest(nil), m.generated...)
}

func (m *MockProvider) ChatRequests() []ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ChatRequest(nil), m.chats...)
}

func (m *MockProvider) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.messages...)
}

type mockChat struct {
	parent *MockProvider
	system string
}

func (c *mockChat) Send(ctx context.Context, message string) (string, error) {
	c.parent.mu.Lock()
	c.parent.messages = append(c.parent.messages, message)
	c.parent.mu.Unlock()

	if c.parent.ReplyFunc == nil {
		return "ok", nil
	}
	return c.parent.ReplyFunc(ctx, c.system, message)
}
