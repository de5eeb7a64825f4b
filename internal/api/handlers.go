package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/maltedev/olx-scraper/internal/errors"
	"github.com/maltedev/olx-scraper/internal/jobs"
	"github.com/maltedev/olx-scraper/internal/scraper"
)

type JobRunner interface {
	Run(ctx context.Context, q scraper.Query) (*jobs.Job, error)
	GetJob(id string) (*jobs.Job, bool)
	ListJobs() []*jobs.Job
}

type Handlers struct {
	jobs         JobRunner
	defaultPages int
	maxPages     int
	logger       *slog.Logger
	started      time.Time
}

// NewHandlers serves searches through runner. Requests without a page count
// use defaultPages; requests above maxPages are rejected since runs hold the
// runner exclusively.
func NewHandlers(runner JobRunner, defaultPages, maxPages int, logger *slog.Logger) *Handlers {
	if defaultPages > maxPages {
		defaultPages = maxPages
	}
	return &Handlers{
		jobs:         runner,
		defaultPages: defaultPages,
		maxPages:     maxPages,
		logger:       logger.With("component", "api"),
		started:      time.Now(),
	}
}

type SearchRequest struct {
	Query           string `json:"query"`
	Pages           int    `json:"pages"`
	BrowserFallback bool   `json:"browser_fallback"`
}

// CreateSearch runs a search synchronously and returns the finished job.
func (h *Handlers) CreateSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Pages == 0 {
		req.Pages = h.defaultPages
	}
	if req.Pages > h.maxPages {
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("pages must not exceed %d", h.maxPages))
		return
	}

	q := scraper.Query{
		Term:            req.Query,
		MaxPages:        req.Pages,
		BrowserFallback: req.BrowserFallback,
	}
	if err := q.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.jobs.Run(r.Context(), q)
	if err != nil {
		switch {
		case apperrors.IsType(err, apperrors.ErrTypeInvalidInput):
			h.respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			h.respondError(w, http.StatusServiceUnavailable, "search was cancelled")
		default:
			h.logger.Error("search failed", "query", req.Query, "error", err)
			h.respondError(w, http.StatusInternalServerError, "search failed")
		}
		return
	}

	h.respondJSON(w, http.StatusCreated, job)
}

func (h *Handlers) GetSearch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "searchID")
	if id == "" {
		h.respondError(w, http.StatusBadRequest, "search ID is required")
		return
	}

	job, ok := h.jobs.GetJob(id)
	if !ok {
		h.respondError(w, http.StatusNotFound, "search not found")
		return
	}

	h.respondJSON(w, http.StatusOK, job)
}

func (h *Handlers) ListSearches(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.jobs.ListJobs())
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
