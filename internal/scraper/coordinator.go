package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/maltedev/olx-scraper/internal/errors"
	"github.com/maltedev/olx-scraper/internal/models"
	"github.com/maltedev/olx-scraper/internal/parser"
)

// Result is everything one run produced. Strategy names the source whose
// listings were kept and is empty when every source came back empty.
type Result struct {
	RunID     uuid.UUID        `json:"run_id"`
	Query     Query            `json:"-"`
	Strategy  string           `json:"strategy"`
	Attempted []string         `json:"attempted"`
	Listings  []models.Listing `json:"listings"`
	StartedAt time.Time        `json:"started_at"`
	Duration  time.Duration    `json:"duration"`
}

// Coordinator runs sources in priority order and stops at the first one that
// yields listings. The fallback source is only consulted when the query asks
// for it.
type Coordinator struct {
	sources  []Source
	fallback Source
	parser   parser.Parser
	logger   *slog.Logger
}

func NewCoordinator(p parser.Parser, sources []Source, fallback Source, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		sources:  sources,
		fallback: fallback,
		parser:   p,
		logger:   logger,
	}
}

func (c *Coordinator) Run(ctx context.Context, q Query) (*Result, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	result := &Result{
		RunID:     uuid.New(),
		Query:     q,
		Attempted: []string{},
		Listings:  []models.Listing{},
		StartedAt: time.Now(),
	}
	logger := c.logger.With("run_id", result.RunID.String(), "query", q.Term)
	defer func() { result.Duration = time.Since(result.StartedAt) }()

	chain := append([]Source(nil), c.sources...)
	if q.BrowserFallback {
		if c.fallback != nil {
			chain = append(chain, c.fallback)
		} else {
			logger.Warn("browser fallback requested but no browser source is configured")
		}
	}

	logger.Info("starting run", "max_pages", q.MaxPages, "browser_fallback", q.BrowserFallback)

	for _, src := range chain {
		result.Attempted = append(result.Attempted, src.Name())

		listings, err := c.collect(ctx, src, q, logger)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			logger.Warn("source failed", "source", src.Name(), "error_type", apperrors.TypeOf(err), "error", err)
			logStack(ctx, logger, err, "source", src.Name())
		}

		if len(listings) > 0 {
			result.Strategy = src.Name()
			result.Listings = listings
			logger.Info("run finished", "source", src.Name(), "listings", len(listings))
			return result, nil
		}

		logger.Info("source yielded no listings", "source", src.Name())
	}

	logger.Warn("no listings found by any source", "attempted", result.Attempted)
	return result, nil
}

// collect fetches every page of src and extracts its listings. Pages that
// yield nothing are logged and skipped.
func (c *Coordinator) collect(ctx context.Context, src Source, q Query, logger *slog.Logger) ([]models.Listing, error) {
	pages, err := src.Fetch(ctx, q)

	var listings []models.Listing
	for _, page := range pages {
		found, perr := c.parser.Extract(page.Content, page.Format)
		if perr != nil {
			level := slog.LevelInfo
			if apperrors.IsType(perr, apperrors.ErrTypeBlocked) {
				level = slog.LevelWarn
			}
			logger.Log(ctx, level, "no listings extracted from page",
				"source", src.Name(),
				"page", page.Number,
				"url", page.URL,
				"error", perr)
			logStack(ctx, logger, perr, "source", src.Name(), "page", page.Number)
			continue
		}

		logger.Info("extracted listings", "source", src.Name(), "page", page.Number, "count", len(found))
		listings = append(listings, found...)
	}

	return listings, err
}
