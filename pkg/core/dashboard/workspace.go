package dashboard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"policy_compass/pkg/core/analysis"
	"policy_compass/pkg/core/chat"
	"policy_compass/pkg/models"
)

// ErrNoAnalysis is returned by Ask before any analysis has been generated.
var ErrNoAnalysis = errors.New("generate an analysis before asking questions")

// Analyzer produces a comparison for a topic and set of countries.
type Analyzer interface {
	Analyze(ctx context.Context, topic string, countries []string) (*models.FullAnalysis, error)
}

// SessionStarter opens chat sessions seeded with an analysis.
type SessionStarter interface {
	Start(ctx context.Context, analysisID string, a *models.FullAnalysis) (*chat.Session, error)
}

var (
	_ Analyzer       = (*analysis.Analyzer)(nil)
	_ SessionStarter = (*chat.Manager)(nil)
)

// Validate checks that a topic and at least one country were supplied.
func Validate(topic string, countries []string) error {
	return analysis.Validate(topic, countries)
}

// Workspace is the state behind one dashboard: the inputs, the current
// result and the chat session attached to that result.
type Workspace struct {
	Countries *CountryList

	analyzer Analyzer
	sessions SessionStarter

	mu      sync.Mutex
	topic   string
	record  *models.AnalysisRecord
	session *chat.Session
}

func NewWorkspace(analyzer Analyzer, sessions SessionStarter) *Workspace {
	return &Workspace{
		Countries: DefaultCountryList(),
		analyzer:  analyzer,
		sessions:  sessions,
	}
}

func (w *Workspace) SetTopic(topic string) {
	w.mu.Lock()
	w.topic = topic
	w.mu.Unlock()
}

func (w *Workspace) Topic() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.topic
}

// Generate runs an analysis for the current inputs. On failure the previous
// result and session are kept; on success both are replaced and the next
// Ask opens a fresh session.
func (w *Workspace) Generate(ctx context.Context) (*models.AnalysisRecord, error) {
	topic := w.Topic()
	countries := w.Countries.Names()
	if err := Validate(topic, countries); err != nil {
		return nil, err
	}

	result, err := w.analyzer.Analyze(ctx, topic, countries)
	if err != nil {
		return nil, err
	}

	topic, countries = analysis.Normalize(topic, countries)
	rec := NewRecord(topic, countries, result)

	w.mu.Lock()
	w.record = rec
	w.session = nil
	w.mu.Unlock()
	return rec, nil
}

// Ask sends a follow-up question about the current analysis. Blank messages
// are rejected before any session is opened.
func (w *Workspace) Ask(ctx context.Context, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", chat.ErrEmptyMessage
	}
	s, err := w.chatSession(ctx)
	if err != nil {
		return "", err
	}
	return s.Send(ctx, message)
}

// chatSession returns the session for the current record, opening one
// without holding w.mu. A session opened for a record that was replaced in
// the meantime is used for this call only.
func (w *Workspace) chatSession(ctx context.Context) (*chat.Session, error) {
	w.mu.Lock()
	rec, s := w.record, w.session
	w.mu.Unlock()
	if rec == nil {
		return nil, ErrNoAnalysis
	}
	if s != nil {
		return s, nil
	}

	s, err := w.sessions.Start(ctx, rec.ID, rec.Analysis)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.record != rec {
		return s, nil
	}
	if w.session != nil {
		return w.session, nil
	}
	w.session = s
	return s, nil
}

// Record returns the current result, or nil before the first success.
func (w *Workspace) Record() *models.AnalysisRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.record
}

// Session returns the chat session for the current result, if one was opened.
func (w *Workspace) Session() *chat.Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.session
}

// NewRecord wraps an analysis result with a fresh id.
func NewRecord(topic string, countries []string, a *models.FullAnalysis) *models.AnalysisRecord {
	return &models.AnalysisRecord{
		ID:        uuid.New().String(),
		Topic:     topic,
		Countries: append([]string(nil), countries...),
		Analysis:  a,
		CreatedAt: time.Now(),
	}
}
