package config

import (
	"encoding/json"
	"net/http"

	"policy_compass/pkg/core/agent"
	"policy_compass/pkg/core/prompt"
)

type Response struct {
	ActiveProvider string                       `json:"active_provider"`
	Available      []string                     `json:"available"`
	Agents         map[string]agent.AgentConfig `json:"agents"`
	Prompts        map[string][]PromptInfo      `json:"prompts"` // keyed by role
}

// PromptInfo describes a loaded prompt template without its body.
type PromptInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version,omitempty"`
}

type SwitchRequest struct {
	Provider string `json:"provider"`
}

type SwitchResponse struct {
	ActiveProvider string `json:"active_provider"`
}

// Handler holds dependencies for config endpoints
type Handler struct {
	AgentMgr *agent.Manager
	Prompts  *prompt.Registry
	Origin   string
}

// NewHandler creates a new config handler
func NewHandler(agentMgr *agent.Manager, origin string) *Handler {
	if origin == "" {
		origin = "*"
	}
	return &Handler{
		AgentMgr: agentMgr,
		Prompts:  prompt.Get(),
		Origin:   origin,
	}
}

func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", h.Origin)
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Content-Type", "application/json")

	resp := Response{
		ActiveProvider: h.AgentMgr.GetActiveProvider(),
		Available:      h.AgentMgr.Available(),
		Agents: map[string]agent.AgentConfig{
			agent.RoleAnalysis: h.AgentMgr.AgentConfig(agent.RoleAnalysis),
			agent.RoleChat:     h.AgentMgr.AgentConfig(agent.RoleChat),
		},
		Prompts: make(map[string][]PromptInfo),
	}
	for _, role := range []string{agent.RoleAnalysis, agent.RoleChat} {
		for _, pt := range h.Prompts.ListByCategory(role) {
			resp.Prompts[role] = append(resp.Prompts[role], PromptInfo{
				ID:          pt.ID,
				Name:        pt.Name,
				Description: pt.Description,
				Version:     pt.Version,
			})
		}
	}
	json.NewEncoder(w).Encode(resp)
}

func (h *Handler) HandleSwitch(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", h.Origin)
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SwitchRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err = h.AgentMgr.SetGlobalProvider(req.Provider)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SwitchResponse{ActiveProvider: h.AgentMgr.GetActiveProvider()})
}

// Register mounts the config routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/config", h.HandleConfig)
	mux.HandleFunc("/api/config/switch", h.HandleSwitch)
}
