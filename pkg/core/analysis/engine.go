package analysis

import (
	"context"
	"errors"
	"strings"
	"time"

	"policy_compass/pkg/core/agent"
	"policy_compass/pkg/core/llm"
	"policy_compass/pkg/core/logger"
	"policy_compass/pkg/core/prompt"
	"policy_compass/pkg/models"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const FailureMessage = "Failed to analyze policies. The model may have had trouble finding data or structuring the response."

// ErrAnalysisFailed is the single user-facing failure for the analysis call.
var ErrAnalysisFailed = errors.New(FailureMessage)

// Error carries the cause of a failed analysis. Its message is always the
// generic FailureMessage; the cause is reachable through errors.Is/As.
type Error struct {
	Cause error
}

func (e *Error) Error() string { return FailureMessage }

func (e *Error) Unwrap() []error { return []error{ErrAnalysisFailed, e.Cause} }

// Generator is the part of agent.Manager the analyzer depends on.
type Generator interface {
	Generate(ctx context.Context, role string, req llm.GenerateRequest) (string, error)
	ModelFor(role string) string
	GetActiveProvider() string
}

var _ Generator = (*agent.Manager)(nil)

// Analyzer runs the schema-constrained comparison call.
type Analyzer struct {
	agents  Generator
	prompts *prompt.Registry
	cache   *Cache
	group   singleflight.Group
	timeout time.Duration
	log     *logrus.Entry
}

// DefaultCallTimeout bounds a shared provider call once it no longer follows
// any single caller's context.
const DefaultCallTimeout = 5 * time.Minute

type Option func(*Analyzer)

// WithCache enables result caching.
func WithCache(c *Cache) Option {
	return func(a *Analyzer) { a.cache = c }
}

// WithCallTimeout bounds the shared provider call. Zero disables the bound.
func WithCallTimeout(d time.Duration) Option {
	return func(a *Analyzer) { a.timeout = d }
}

// WithPrompts overrides the prompt registry (defaults to prompt.Get()).
func WithPrompts(r *prompt.Registry) Option {
	return func(a *Analyzer) { a.prompts = r }
}

func NewAnalyzer(agents Generator, opts ...Option) *Analyzer {
	a := &Analyzer{
		agents:  agents,
		timeout: DefaultCallTimeout,
		log:     logger.Component("analysis"),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.prompts == nil {
		a.prompts = prompt.Get()
	}
	return a
}

// Analyze validates the input, asks the model for a comparison of the given
// countries and returns the parsed result with contracts ordered by id.
// Validation failures return ErrValidation without contacting the provider;
// every other failure is logged here and returned as *Error.
func (a *Analyzer) Analyze(ctx context.Context, topic string, countries []string) (*models.FullAnalysis, error) {
	if err := Validate(topic, countries); err != nil {
		return nil, err
	}
	topic, countries = Normalize(topic, countries)

	text, err := BuildPromptFrom(a.prompts, topic, countries)
	if err != nil {
		return nil, a.fail(err, topic, countries)
	}

	model := a.agents.ModelFor(agent.RoleAnalysis)
	key := CacheKey(a.agents.GetActiveProvider(), model, text)
	if cached, ok := a.cache.Get(key); ok {
		a.log.WithField("countries", len(countries)).Debug("analysis cache hit")
		return cached, nil
	}

	// The shared call outlives any single caller; each caller stops waiting
	// when its own ctx is done.
	ch := a.group.DoChan(key, func() (interface{}, error) {
		callCtx := context.WithoutCancel(ctx)
		if a.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(callCtx, a.timeout)
			defer cancel()
		}
		raw, err := a.agents.Generate(callCtx, agent.RoleAnalysis, llm.GenerateRequest{
			Prompt: text,
			JSON:   true,
			Schema: ResponseSchema(),
		})
		if err != nil {
			return nil, err
		}
		result, err := Parse(raw)
		if err != nil {
			return nil, err
		}
		a.cache.Put(key, result)
		return result, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, a.fail(ctx.Err(), topic, countries)
	}
	if res.Err != nil {
		return nil, a.fail(res.Err, topic, countries)
	}
	if res.Shared {
		a.log.Debug("analysis shared with concurrent identical request")
	}
	return Clone(res.Val.(*models.FullAnalysis)), nil
}

func (a *Analyzer) fail(cause error, topic string, countries []string) error {
	a.log.WithFields(logrus.Fields{
		"topic":     truncate(topic, 80),
		"countries": strings.Join(countries, ", "),
	}).WithError(cause).Error("error analyzing policies")
	return &Error{Cause: cause}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
