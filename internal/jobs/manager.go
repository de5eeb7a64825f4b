package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maltedev/olx-scraper/internal/events"
	"github.com/maltedev/olx-scraper/internal/models"
	"github.com/maltedev/olx-scraper/internal/scraper"
	"github.com/maltedev/olx-scraper/internal/storage"
)

const (
	StatusCompleted = "completed"
	StatusEmpty     = "empty"
)

// maxRecentJobs bounds how many finished jobs are kept for lookup.
const maxRecentJobs = 50

type Searcher interface {
	Run(ctx context.Context, q scraper.Query) (*scraper.Result, error)
}

type Exporter interface {
	Export(query string, listings []models.Listing) (*storage.ExportPaths, error)
}

type RunStore interface {
	SaveRun(ctx context.Context, runID uuid.UUID, query, strategy string, listings []models.Listing) error
}

type EventPublisher interface {
	PublishRunCompleted(ctx context.Context, payload *events.RunCompletedPayload) (string, error)
}

// Job is the outcome of one search together with where its listings went.
type Job struct {
	ID              string               `json:"id"`
	Query           string               `json:"query"`
	MaxPages        int                  `json:"max_pages"`
	BrowserFallback bool                 `json:"browser_fallback"`
	Status          string               `json:"status"`
	Strategy        string               `json:"strategy,omitempty"`
	Attempted       []string             `json:"attempted"`
	ListingsFound   int                  `json:"listings_found"`
	Listings        []models.Listing     `json:"listings"`
	Files           *storage.ExportPaths `json:"files,omitempty"`
	Stored          bool                 `json:"stored"`
	EventID         string               `json:"event_id,omitempty"`
	StartedAt       time.Time            `json:"started_at"`
	CompletedAt     time.Time            `json:"completed_at"`
	Warnings        []string             `json:"warnings,omitempty"`
}

type Manager struct {
	searcher  Searcher
	exporter  Exporter
	store     RunStore
	publisher EventPublisher
	logger    *slog.Logger

	// runMu serializes runs so pages are never fetched concurrently.
	runMu sync.Mutex

	mu     sync.RWMutex
	recent map[string]*Job
	order  []string
}

type Option func(*Manager)

func WithStore(store RunStore) Option {
	return func(m *Manager) { m.store = store }
}

func WithPublisher(p EventPublisher) Option {
	return func(m *Manager) { m.publisher = p }
}

func NewManager(searcher Searcher, exporter Exporter, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		searcher: searcher,
		exporter: exporter,
		logger:   logger.With("component", "job_manager"),
		recent:   make(map[string]*Job),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run searches, then exports, stores and announces the listings. Files are
// only written when the search found something. Failures of the optional
// store and publisher are recorded as warnings on the job.
func (m *Manager) Run(ctx context.Context, q scraper.Query) (*Job, error) {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	result, err := m.searcher.Run(ctx, q)
	if err != nil {
		return nil, err
	}

	job := &Job{
		ID:              result.RunID.String(),
		Query:           q.Term,
		MaxPages:        q.MaxPages,
		BrowserFallback: q.BrowserFallback,
		Status:          StatusEmpty,
		Strategy:        result.Strategy,
		Attempted:       result.Attempted,
		ListingsFound:   len(result.Listings),
		Listings:        result.Listings,
		StartedAt:       result.StartedAt,
	}

	if len(result.Listings) > 0 {
		job.Status = StatusCompleted

		files, err := m.exporter.Export(q.Term, result.Listings)
		if err != nil {
			return nil, fmt.Errorf("failed to export results: %w", err)
		}
		job.Files = files
		m.logger.Info("results exported", "job_id", job.ID, "files", files.All())

		m.persist(ctx, job, result)
	}

	m.announce(ctx, job)

	job.CompletedAt = time.Now()
	m.remember(job)

	return job, nil
}

func (m *Manager) persist(ctx context.Context, job *Job, result *scraper.Result) {
	if m.store == nil {
		return
	}

	if err := m.store.SaveRun(ctx, result.RunID, job.Query, result.Strategy, result.Listings); err != nil {
		m.logger.Error("failed to store listings", "job_id", job.ID, "error", err)
		job.Warnings = append(job.Warnings, "store: "+err.Error())
		return
	}
	job.Stored = true
}

func (m *Manager) announce(ctx context.Context, job *Job) {
	if m.publisher == nil {
		return
	}

	payload := &events.RunCompletedPayload{
		RunID:     job.ID,
		Query:     job.Query,
		Strategy:  job.Strategy,
		Attempted: job.Attempted,
		Listings:  job.Listings,
	}
	if job.Files != nil {
		payload.Files = job.Files.All()
	}

	id, err := m.publisher.PublishRunCompleted(ctx, payload)
	if err != nil {
		m.logger.Error("failed to publish run event", "job_id", job.ID, "error", err)
		job.Warnings = append(job.Warnings, "publish: "+err.Error())
		return
	}
	job.EventID = id
}

func (m *Manager) remember(job *Job) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.recent[job.ID] = job
	m.order = append(m.order, job.ID)
	if len(m.order) > maxRecentJobs {
		delete(m.recent, m.order[0])
		m.order = m.order[1:]
	}
}

// GetJob returns a recently finished job.
func (m *Manager) GetJob(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.recent[id]
	return job, ok
}

// ListJobs returns recent jobs, newest first.
func (m *Manager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*Job, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		jobs = append(jobs, m.recent[m.order[i]])
	}
	return jobs
}
