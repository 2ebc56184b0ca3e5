// Package app assembles the providers, agents and services shared by the
// HTTP server and the CLI from a loaded configuration.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"policy_compass/pkg/core/agent"
	"policy_compass/pkg/core/analysis"
	"policy_compass/pkg/core/chat"
	"policy_compass/pkg/core/config"
	"policy_compass/pkg/core/dashboard"
	"policy_compass/pkg/core/llm"
	"policy_compass/pkg/core/logger"
	"policy_compass/pkg/core/prompt"
	"policy_compass/pkg/core/store"
)

// App holds the wired services.
type App struct {
	Config   *config.Config
	Agents   *agent.Manager
	Analyzer *analysis.Analyzer
	Chats    *chat.Manager
	Repo     store.Repository

	closers []func() error
}

// Providers builds the named providers for cfg along with the functions that
// release them. In simulation mode every name resolves to the offline
// simulation provider.
func Providers(cfg *config.Config) (map[string]llm.Provider, []func() error) {
	if cfg.Gemini.Simulate {
		sim := analysis.SimulationProvider()
		return map[string]llm.Provider{"gemini": sim, "gemini-legacy": sim, "mock": sim}, nil
	}

	gemini := llm.NewGeminiProvider(cfg.Gemini.APIKey, "")
	legacyGemini := llm.NewLegacyGeminiProvider(cfg.Gemini.APIKey, "")
	providers := map[string]llm.Provider{
		"gemini":        llm.NewGuarded(gemini, cfg.Guard),
		"gemini-legacy": llm.NewGuarded(legacyGemini, cfg.Guard),
		"mock":          analysis.SimulationProvider(),
	}
	return providers, []func() error{legacyGemini.Close}
}

// New wires the application. Prompt overrides are loaded from
// cfg.ResourcesDir when it exists.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.Component("app")

	if cfg.Gemini.APIKey == "" && !cfg.Gemini.Simulate {
		log.Warn("GEMINI_API_KEY is not set; analysis requests will fail until it is configured")
	}

	loadPrompts(cfg.ResourcesDir, log)

	providers, closers := Providers(cfg)
	a := &App{Config: cfg, closers: closers}

	a.Agents = agent.NewManager(cfg.Models, providers)
	a.Analyzer = analysis.NewAnalyzer(a.Agents,
		analysis.WithCache(analysis.NewCache(cfg.Cache.Capacity, cfg.Cache.TTL)))
	a.Chats = chat.NewManager(a.Agents, cfg.Chat.SessionTTL)

	repo, err := store.Open(ctx, cfg.Database.StoreOptions())
	if err != nil {
		a.Chats.Close()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	a.Repo = repo
	if cfg.Database.URL != "" {
		a.closers = append(a.closers, func() error { store.Close(); return nil })
	}

	log.WithFields(logrus.Fields{
		"active_provider": a.Agents.GetActiveProvider(),
		"analysis_model":  a.Agents.ModelFor(agent.RoleAnalysis),
		"chat_model":      a.Agents.ModelFor(agent.RoleChat),
		"store":           fmt.Sprintf("%T", repo),
		"simulate":        cfg.Gemini.Simulate,
	}).Info("application wired")
	return a, nil
}

// Workspace returns a fresh interactive workspace over the app's services.
func (a *App) Workspace() *dashboard.Workspace {
	return dashboard.NewWorkspace(a.Analyzer, a.Chats)
}

// Close stops background loops and releases clients.
func (a *App) Close() {
	a.Chats.Close()
	for _, c := range a.closers {
		if err := c(); err != nil {
			logger.Component("app").WithError(err).Warn("error during shutdown")
		}
	}
}

func loadPrompts(dir string, log *logrus.Entry) {
	if dir == "" {
		return
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		exePath, _ := os.Executable()
		dir = filepath.Join(filepath.Dir(exePath), dir)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return
		}
	}
	n, err := prompt.Get().LoadFromDirectory(dir)
	if err != nil {
		log.WithError(err).Warn("failed to load prompt library, using built-in prompts")
		return
	}
	log.WithField("prompts", prompt.Get().ListPrompts()).Infof("loaded %d prompt overrides from %s", n, dir)
}
