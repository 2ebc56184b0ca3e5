package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"policy_compass/pkg/core/logger"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ErrCircuitOpen is returned without contacting the provider while the breaker is open.
var ErrCircuitOpen = errors.New("provider temporarily unavailable: circuit open")

// GuardConfig controls request pacing and failure isolation for a provider.
type GuardConfig struct {
	RequestsPerMinute int           `yaml:"requests_per_minute"` // 0 disables the limiter
	Burst             int           `yaml:"burst"`
	MaxFailures       uint32        `yaml:"max_failures"` // consecutive failures before opening
	OpenTimeout       time.Duration `yaml:"open_timeout"`
}

// Guarded wraps a provider with a rate limiter and a circuit breaker.
// Chats started through it are guarded the same way.
type Guarded struct {
	inner   Provider
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

var _ Provider = (*Guarded)(nil)

func NewGuarded(inner Provider, cfg GuardConfig) *Guarded {
	g := &Guarded{inner: inner}

	if cfg.RequestsPerMinute > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), burst)
	}

	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	timeout := cfg.OpenTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        inner.Name(),
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			// caller cancellations say nothing about provider health
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Component("llm").WithField("provider", name).
				Warnf("circuit breaker %s -> %s", from, to)
		},
	})
	return g
}

func (g *Guarded) Name() string { return g.inner.Name() }

// State reports the breaker state ("closed", "open", "half-open").
func (g *Guarded) State() string { return g.breaker.State().String() }

func (g *Guarded) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	return g.call(ctx, func() (string, error) {
		return g.inner.Generate(ctx, req)
	})
}

func (g *Guarded) StartChat(ctx context.Context, req ChatRequest) (Chat, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	v, err := g.breaker.Execute(func() (interface{}, error) {
		return g.inner.StartChat(ctx, req)
	})
	if err != nil {
		return nil, translateBreakerErr(err)
	}
	return &guardedChat{guard: g, inner: v.(Chat)}, nil
}

func (g *Guarded) wait(ctx context.Context) error {
	if g.limiter == nil {
		return nil
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

func (g *Guarded) call(ctx context.Context, fn func() (string, error)) (string, error) {
	if err := g.wait(ctx); err != nil {
		return "", err
	}
	v, err := g.breaker.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return "", translateBreakerErr(err)
	}
	text, _ := v.(string)
	return text, nil
}

func translateBreakerErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	return err
}

type guardedChat struct {
	guard *Guarded
	inner Chat
}

func (c *guardedChat) Send(ctx context.Context, message string) (string, error) {
	return c.guard.call(ctx, func() (string, error) {
		return c.inner.Send(ctx, message)
	})
}
