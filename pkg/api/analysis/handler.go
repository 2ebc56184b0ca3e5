package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"policy_compass/pkg/core/agent"
	coreAnalysis "policy_compass/pkg/core/analysis"
	"policy_compass/pkg/core/dashboard"
	"policy_compass/pkg/core/logger"
	"policy_compass/pkg/core/report"
	"policy_compass/pkg/core/store"
	"policy_compass/pkg/models"
)

// ModelNamer reports the model used for a role.
type ModelNamer interface {
	ModelFor(role string) string
}

// Handler serves analysis generation, lookup and report export.
type Handler struct {
	analyzer dashboard.Analyzer
	repo     store.Repository
	namer    ModelNamer
	origin   string
	log      *logrus.Entry
}

func NewHandler(analyzer dashboard.Analyzer, repo store.Repository, namer ModelNamer, origin string) *Handler {
	if origin == "" {
		origin = "*"
	}
	return &Handler{
		analyzer: analyzer,
		repo:     repo,
		namer:    namer,
		origin:   origin,
		log:      logger.Component("api.analysis"),
	}
}

type Request struct {
	Topic     string   `json:"topic"`
	Countries []string `json:"countries"`
}

type Response struct {
	ID        string               `json:"id"`
	Topic     string               `json:"topic"`
	Countries []string             `json:"countries"`
	Model     string               `json:"model,omitempty"`
	Analysis  *models.FullAnalysis `json:"analysis"`
	Chart     []dashboard.ChartBar `json:"chart"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func newResponse(rec *models.AnalysisRecord) Response {
	return Response{
		ID:        rec.ID,
		Topic:     rec.Topic,
		Countries: rec.Countries,
		Model:     rec.Model,
		Analysis:  rec.Analysis,
		Chart:     dashboard.ChartBars(rec.Analysis),
	}
}

func (h *Handler) headers(w http.ResponseWriter, methods string) {
	w.Header().Set("Access-Control-Allow-Origin", h.origin)
	w.Header().Set("Access-Control-Allow-Methods", methods)
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// HandleCollection serves POST (generate) and GET (recent list) on /api/analysis.
func (h *Handler) HandleCollection(w http.ResponseWriter, r *http.Request) {
	h.headers(w, "GET, POST, OPTIONS")

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	case http.MethodPost:
		h.generate(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	result, err := h.analyzer.Analyze(r.Context(), req.Topic, req.Countries)
	switch {
	case errors.Is(err, coreAnalysis.ErrValidation):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: coreAnalysis.ValidationMessage})
		return
	case err != nil:
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: coreAnalysis.FailureMessage})
		return
	}

	topic, countries := coreAnalysis.Normalize(req.Topic, req.Countries)
	rec := dashboard.NewRecord(topic, countries, result)
	if h.namer != nil {
		rec.Model = h.namer.ModelFor(agent.RoleAnalysis)
	}
	if err := h.repo.Save(context.WithoutCancel(r.Context()), rec); err != nil {
		h.log.WithError(err).WithField("analysis_id", rec.ID).Warn("failed to store analysis")
	}

	writeJSON(w, http.StatusOK, newResponse(rec))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid limit"})
			return
		}
		limit = n
	}

	recs, err := h.repo.List(r.Context(), limit)
	if err != nil {
		h.log.WithError(err).Error("failed to list analyses")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Failed to list analyses"})
		return
	}

	type summary struct {
		ID        string   `json:"id"`
		Topic     string   `json:"topic"`
		Countries []string `json:"countries"`
		CreatedAt string   `json:"created_at"`
	}
	out := make([]summary, 0, len(recs))
	for _, rec := range recs {
		out = append(out, summary{
			ID:        rec.ID,
			Topic:     rec.Topic,
			Countries: rec.Countries,
			CreatedAt: rec.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGet serves GET /api/analysis/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	h.headers(w, "GET, OPTIONS")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rec, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newResponse(rec))
}

// HandleContract serves GET /api/analysis/{id}/contracts/{cid}, one country's
// policy record with its suggestions.
func (h *Handler) HandleContract(w http.ResponseWriter, r *http.Request) {
	h.headers(w, "GET, OPTIONS")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cid, err := strconv.Atoi(r.PathValue("cid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid contract id"})
		return
	}
	rec, ok := h.load(w, r)
	if !ok {
		return
	}
	c, ok := dashboard.FindContract(rec.Analysis, cid)
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Contract not found"})
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleReport serves GET /api/analysis/{id}/report?format=md|html.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	h.headers(w, "GET, OPTIONS")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "md"
	}
	if format != "md" && format != "html" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "format must be md or html"})
		return
	}

	rec, ok := h.load(w, r)
	if !ok {
		return
	}

	var (
		body        string
		err         error
		contentType string
	)
	if format == "html" {
		body, err = report.HTML(rec)
		contentType = "text/html; charset=utf-8"
	} else {
		body, err = report.Markdown(rec)
		contentType = "text/markdown; charset=utf-8"
	}
	if err != nil {
		h.log.WithError(err).WithField("analysis_id", rec.ID).Error("failed to render report")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Failed to render report"})
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*models.AnalysisRecord, bool) {
	id := r.PathValue("id")
	rec, err := h.repo.Load(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Analysis not found"})
		return nil, false
	}
	if err != nil {
		h.log.WithError(err).WithField("analysis_id", id).Error("failed to load analysis")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Failed to load analysis"})
		return nil, false
	}
	return rec, true
}

// Register mounts the analysis routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/analysis", h.HandleCollection)
	mux.HandleFunc("/api/analysis/{id}", h.HandleGet)
	mux.HandleFunc("/api/analysis/{id}/report", h.HandleReport)
	mux.HandleFunc("/api/analysis/{id}/contracts/{cid}", h.HandleContract)
}
