package chat

import (
	"context"
	"sync"
	"time"

	"policy_compass/pkg/core/agent"
	"policy_compass/pkg/core/llm"
	"policy_compass/pkg/core/logger"
	"policy_compass/pkg/core/prompt"
	"policy_compass/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Opener is the part of agent.Manager used to open provider chats.
type Opener interface {
	StartChat(ctx context.Context, role string, req llm.ChatRequest) (llm.Chat, error)
}

var _ Opener = (*agent.Manager)(nil)

// Manager owns all live chat sessions and expires idle ones.
type Manager struct {
	opener  Opener
	prompts *prompt.Registry
	ttl     time.Duration
	now     func() time.Time
	log     *logrus.Entry

	mu       sync.RWMutex
	sessions map[string]*Session
	latest   *Session

	stop     chan struct{}
	stopOnce sync.Once
}

// NewManager creates a manager. A positive ttl starts a background loop that
// removes sessions idle for longer than ttl; call Close to stop it.
func NewManager(opener Opener, ttl time.Duration) *Manager {
	m := &Manager{
		opener:   opener,
		prompts:  prompt.Get(),
		ttl:      ttl,
		now:      time.Now,
		log:      logger.Component("chat"),
		sessions: make(map[string]*Session),
		stop:     make(chan struct{}),
	}
	if ttl > 0 {
		go m.cleanup()
	}
	return m
}

// Start seeds a new session with the full analysis and makes it the latest one.
func (m *Manager) Start(ctx context.Context, analysisID string, a *models.FullAnalysis) (*Session, error) {
	system, err := BuildSystemInstruction(m.prompts, a)
	if err != nil {
		return nil, err
	}

	c, err := m.opener.StartChat(ctx, agent.RoleChat, llm.ChatRequest{SystemInstruction: system})
	if err != nil {
		m.log.WithError(err).Error("error starting chat session")
		return nil, &Error{Cause: err}
	}

	s := newSession(uuid.New().String(), analysisID, c, m.now, m.log)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.latest = s
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{
		"session_id":  s.ID,
		"analysis_id": analysisID,
		"contracts":   len(a.Contracts),
	}).Info("chat session started")
	return s, nil
}

// Get retrieves a session by id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Latest returns the most recently started session, or nil.
func (m *Manager) Latest() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

// Send delivers a message to the session with the given id.
func (m *Manager) Send(ctx context.Context, id, message string) (string, error) {
	s, ok := m.Get(id)
	if !ok {
		return "", ErrSessionNotFound
	}
	return s.Send(ctx, message)
}

// Remove drops a session. It reports whether the session existed.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return false
	}
	delete(m.sessions, id)
	if m.latest == s {
		m.latest = nil
	}
	return true
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Expire removes sessions idle for longer than the ttl and returns how many.
func (m *Manager) Expire() int {
	if m.ttl <= 0 {
		return 0
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if now.Sub(s.UpdatedAt()) > m.ttl {
			delete(m.sessions, id)
			if m.latest == s {
				m.latest = nil
			}
			removed++
		}
	}
	return removed
}

// Close stops the cleanup loop.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Manager) cleanup() {
	interval := time.Hour
	if m.ttl < 2*time.Hour {
		interval = m.ttl / 2
	}
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := m.Expire(); n > 0 {
				m.log.Infof("expired %d idle chat sessions", n)
			}
		case <-m.stop:
			return
		}
	}
}
