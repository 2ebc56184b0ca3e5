package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"policy_compass/pkg/core/llm"
	"policy_compass/pkg/core/utils"

	"github.com/sirupsen/logrus"
)

const (
	Greeting       = "Hello! I have full context on the generated analysis. How can I help you explore the data?"
	FailureMessage = "Failed to get a response from the chat agent."
	ApologyMessage = "Sorry, I encountered an error. Please try again."
	SenderUser     = "user"
	SenderAgent    = "agent"
)

var (
	ErrResponseFailed     = errors.New(FailureMessage)
	ErrChatNotInitialized = errors.New("chat not initialized: start a session first")
	ErrEmptyMessage       = errors.New("message is empty")
	ErrSessionNotFound    = errors.New("chat session not found")
)

// Error carries the cause of a failed chat turn behind the generic message.
type Error struct {
	Cause error
}

func (e *Error) Error() string { return FailureMessage }

func (e *Error) Unwrap() []error { return []error{ErrResponseFailed, e.Cause} }

type Message struct {
	Sender string    `json:"sender"`
	Text   string    `json:"text"`
	Error  bool      `json:"error,omitempty"`
	At     time.Time `json:"at"`
}

// Session is a caller-owned handle on one provider-side conversation.
// Turns are serialized; the provider chat keeps the model-side history.
type Session struct {
	ID         string
	AnalysisID string
	CreatedAt  time.Time

	turn      sync.Mutex // held for the whole provider round trip
	mu        sync.Mutex // guards messages and updatedAt
	chat      llm.Chat
	messages  []Message
	updatedAt time.Time
	now       func() time.Time
	log       *logrus.Entry
}

func newSession(id, analysisID string, c llm.Chat, now func() time.Time, log *logrus.Entry) *Session {
	t := now()
	return &Session{
		ID:         id,
		AnalysisID: analysisID,
		CreatedAt:  t,
		chat:       c,
		messages:   []Message{{Sender: SenderAgent, Text: Greeting, At: t}},
		updatedAt:  t,
		now:        now,
		log:        log.WithField("session_id", id),
	}
}

// Send forwards one user message and returns the model's reply. The user
// turn is always recorded; a failed turn records the apology text and
// returns *Error.
func (s *Session) Send(ctx context.Context, message string) (string, error) {
	if s == nil || s.chat == nil {
		return "", ErrChatNotInitialized
	}
	if strings.TrimSpace(message) == "" {
		return "", ErrEmptyMessage
	}

	s.turn.Lock()
	defer s.turn.Unlock()

	s.append(Message{Sender: SenderUser, Text: message})

	reply, err := s.chat.Send(ctx, message)
	if err != nil {
		s.log.WithError(err).Error("error sending chat message")
		s.append(Message{Sender: SenderAgent, Text: ApologyMessage, Error: true})
		return "", &Error{Cause: err}
	}

	reply = utils.CleanMarkdown(reply)
	s.append(Message{Sender: SenderAgent, Text: reply})
	return reply, nil
}

func (s *Session) append(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.At = s.now()
	s.messages = append(s.messages, m)
	s.updatedAt = m.At
}

// Messages returns a copy of the transcript, greeting first.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}
