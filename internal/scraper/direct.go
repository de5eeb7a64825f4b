package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/maltedev/olx-scraper/internal/errors"
	"github.com/maltedev/olx-scraper/internal/parser"
	"github.com/maltedev/olx-scraper/internal/ratelimit"
)

type DirectOptions struct {
	Timeout time.Duration
	Proxy   string
	Limiter ratelimit.RateLimiter
	Agents  *UserAgentPool
	Capture Capturer
}

// DirectSource requests the server-rendered search pages over plain HTTP.
type DirectSource struct {
	site    Site
	client  *http.Client
	limiter ratelimit.RateLimiter
	agents  *UserAgentPool
	capture Capturer
	logger  *slog.Logger
}

func NewDirectSource(site Site, opts DirectOptions, logger *slog.Logger) (*DirectSource, error) {
	client, err := newHTTPClient(opts.Timeout, opts.Proxy)
	if err != nil {
		return nil, err
	}

	if opts.Limiter == nil {
		opts.Limiter = ratelimit.NoDelay()
	}
	if opts.Agents == nil {
		opts.Agents = NewUserAgentPool(nil)
	}
	if opts.Capture == nil {
		opts.Capture = NoCapture()
	}

	return &DirectSource{
		site:    site,
		client:  client,
		limiter: opts.Limiter,
		agents:  opts.Agents,
		capture: opts.Capture,
		logger:  logger.With("source", "direct"),
	}, nil
}

func (s *DirectSource) Name() string { return "direct" }

func (s *DirectSource) Fetch(ctx context.Context, q Query) ([]Page, error) {
	var pages []Page

	for n := 1; n <= q.MaxPages; n++ {
		page, err := s.fetchPage(ctx, q.Term, n)
		if err != nil {
			if ctx.Err() != nil {
				return pages, ctx.Err()
			}
			s.logger.Error("failed to fetch page",
				"page", n,
				"url", s.site.SearchURL(q.Term, n),
				"error", err)
			logStack(ctx, s.logger, err, "page", n)
			continue
		}
		pages = append(pages, *page)
	}

	return pages, nil
}

func (s *DirectSource) fetchPage(ctx context.Context, term string, n int) (*Page, error) {
	pageURL := s.site.SearchURL(term, n)

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, apperrors.Transport("failed to build request", err)
	}
	userAgent := s.agents.Random()
	setBrowserHeaders(req, userAgent)

	s.logger.Info("fetching page", "page", n, "url", pageURL)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperrors.Transport("request failed", err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, apperrors.Transport("failed to read response body", err)
	}

	// Challenge and error pages are captured too.
	name := fmt.Sprintf("olx_requests_page_%d.html", n)
	if err := s.capture.Capture(name, body); err != nil {
		s.logger.Warn("failed to save debug capture", "name", name, "error", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Transport(fmt.Sprintf("unexpected status code %d", resp.StatusCode), nil)
	}

	s.logger.Debug("page fetched", "page", n, "bytes", len(body), "user_agent", userAgent)

	return &Page{
		Number:  n,
		URL:     pageURL,
		Content: string(body),
		Format:  parser.FormatHTML,
	}, nil
}
