package prompt

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds all loaded prompts
type Registry struct {
	prompts map[string]*PromptTemplate
	mu      sync.RWMutex
}

var globalRegistry *Registry
var once sync.Once

// Get returns the global registry singleton, seeded with the built-in templates.
func Get() *Registry {
	once.Do(func() {
		globalRegistry = NewRegistry()
	})
	return globalRegistry
}

// NewRegistry returns a registry holding only the built-in templates.
func NewRegistry() *Registry {
	r := &Registry{prompts: make(map[string]*PromptTemplate)}
	for _, pt := range builtins() {
		r.prompts[pt.ID] = pt
	}
	return r
}

// Register adds or replaces a prompt template
func (r *Registry) Register(pt *PromptTemplate) error {
	if pt.ID == "" {
		return fmt.Errorf("prompt ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.prompts[pt.ID] = pt
	return nil
}

// GetPrompt retrieves a prompt by ID
func (r *Registry) GetPrompt(id string) (*PromptTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.prompts[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("prompt not found: %s", id)
}

// ListPrompts returns all registered prompt IDs, sorted
func (r *Registry) ListPrompts() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.prompts))
	for id := range r.prompts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ListByCategory returns all prompts in a specific category
func (r *Registry) ListByCategory(category string) []*PromptTemplate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*PromptTemplate
	for _, pt := range r.prompts {
		if pt.Category == category {
			result = append(result, pt)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Count returns the number of registered prompts
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.prompts)
}

// Reset drops overrides and restores the built-in templates (useful for testing)
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts = make(map[string]*PromptTemplate)
	for _, pt := range builtins() {
		r.prompts[pt.ID] = pt
	}
}
