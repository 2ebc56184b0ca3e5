package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"policy_compass/pkg/core/llm"
	"policy_compass/pkg/core/logger"

	"github.com/sirupsen/logrus"
)

// Roles used by the application.
const (
	RoleAnalysis = "analysis"
	RoleChat     = "chat"
)

type Config struct {
	ActiveProvider string                 `yaml:"active_provider"`
	Agents         map[string]AgentConfig `yaml:"agents"`
}

type AgentConfig struct {
	Provider    string  `yaml:"provider" json:"provider,omitempty"` // Optional override
	Model       string  `yaml:"model" json:"model"`
	Temperature float32 `yaml:"temperature" json:"temperature"`
	Description string  `yaml:"description" json:"description,omitempty"`
}

// DefaultConfig mirrors the models the dashboard was built around.
func DefaultConfig() Config {
	return Config{
		ActiveProvider: "gemini",
		Agents: map[string]AgentConfig{
			RoleAnalysis: {
				Model:       "gemini-2.5-pro",
				Temperature: 0.1,
				Description: "Schema-constrained comparative policy analysis",
			},
			RoleChat: {
				Model:       "gemini-2.5-flash",
				Description: "Follow-up assistant grounded in a generated analysis",
			},
		},
	}
}

// Manager routes each role to a provider and model.
type Manager struct {
	mu        sync.RWMutex
	config    Config
	providers map[string]llm.Provider
}

func NewManager(config Config, providers map[string]llm.Provider) *Manager {
	if config.Agents == nil {
		config.Agents = map[string]AgentConfig{}
	}
	p := make(map[string]llm.Provider, len(providers))
	for name, provider := range providers {
		p[name] = provider
	}
	return &Manager{config: config, providers: p}
}

// GetProvider resolves the provider for a role: role override first, then the
// global active provider.
func (m *Manager) GetProvider(role string) (llm.Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if agentConfig, ok := m.config.Agents[role]; ok && agentConfig.Provider != "" {
		if p, ok := m.providers[agentConfig.Provider]; ok {
			return p, nil
		}
		return nil, fmt.Errorf("provider %s for role %s not registered", agentConfig.Provider, role)
	}

	if p, ok := m.providers[m.config.ActiveProvider]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("active provider %s not registered", m.config.ActiveProvider)
}

// AgentConfig returns the settings for a role (zero value when unconfigured).
func (m *Manager) AgentConfig(role string) AgentConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Agents[role]
}

func (m *Manager) fill(role string, model string, temperature *float32) (string, *float32) {
	cfg := m.AgentConfig(role)
	if model == "" {
		model = cfg.Model
	}
	if temperature == nil && cfg.Temperature > 0 {
		temperature = llm.Float32(cfg.Temperature)
	}
	return model, temperature
}

// Generate executes a single generation call for a role, filling in the
// configured model and temperature when the request leaves them empty.
func (m *Manager) Generate(ctx context.Context, role string, req llm.GenerateRequest) (string, error) {
	provider, err := m.GetProvider(role)
	if err != nil {
		return "", err
	}
	req.Model, req.Temperature = m.fill(role, req.Model, req.Temperature)

	logger.Component("agent").WithFields(logrus.Fields{
		"role":     role,
		"provider": provider.Name(),
		"model":    req.Model,
	}).Debug("generate")

	return provider.Generate(ctx, req)
}

// StartChat opens a chat session for a role.
func (m *Manager) StartChat(ctx context.Context, role string, req llm.ChatRequest) (llm.Chat, error) {
	provider, err := m.GetProvider(role)
	if err != nil {
		return nil, err
	}
	req.Model, req.Temperature = m.fill(role, req.Model, req.Temperature)

	logger.Component("agent").WithFields(logrus.Fields{
		"role":     role,
		"provider": provider.Name(),
		"model":    req.Model,
	}).Debug("start chat")

	return provider.StartChat(ctx, req)
}

// ModelFor returns the model name a role will use.
func (m *Manager) ModelFor(role string) string {
	return m.AgentConfig(role).Model
}

func (m *Manager) SetGlobalProvider(newProvider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.providers[newProvider]; !ok {
		return fmt.Errorf("provider %s not found", newProvider)
	}
	m.config.ActiveProvider = newProvider
	logger.Component("agent").Infof("global provider set to: %s", newProvider)
	return nil
}

func (m *Manager) GetActiveProvider() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.ActiveProvider
}

// Available lists registered provider names in sorted order.
func (m *Manager) Available() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
