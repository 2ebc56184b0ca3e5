package dashboard

import (
	"encoding/json"
	"net/http"

	"policy_compass/pkg/core/dashboard"
)

type DefaultsResponse struct {
	Countries      []string `json:"countries"`
	ExamplePrompts []string `json:"example_prompts"`
}

// Handler serves the dashboard's static defaults and the liveness check.
type Handler struct {
	Origin string
}

func NewHandler(origin string) *Handler {
	if origin == "" {
		origin = "*"
	}
	return &Handler{Origin: origin}
}

// HandleDefaults returns the initial country selection and example topics.
func (h *Handler) HandleDefaults(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", h.Origin)
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(DefaultsResponse{
		Countries:      dashboard.DefaultCountryList().Names(),
		ExamplePrompts: append([]string(nil), dashboard.ExamplePrompts...),
	})
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Register mounts the dashboard routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/dashboard/defaults", h.HandleDefaults)
	mux.HandleFunc("/healthz", h.HandleHealth)
}
