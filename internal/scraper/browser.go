package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/olx-scraper/internal/browser"
	apperrors "github.com/maltedev/olx-scraper/internal/errors"
	"github.com/maltedev/olx-scraper/internal/parser"
	"github.com/maltedev/olx-scraper/internal/ratelimit"
)

// SessionOpener starts a fresh browser session for one Fetch.
type SessionOpener func(ctx context.Context) (browser.Session, error)

type BrowserOptions struct {
	MaxAttempts int
	RetryDelay  time.Duration
	// PageDelay paces navigation between consecutive pages.
	PageDelay ratelimit.RateLimiter
	Capture   Capturer
}

// BrowserSource renders search pages in a real browser for sites that build
// their listings client-side.
type BrowserSource struct {
	site        Site
	open        SessionOpener
	maxAttempts int
	retryWait   ratelimit.RateLimiter
	pageDelay   ratelimit.RateLimiter
	capture     Capturer
	logger      *slog.Logger
}

func NewBrowserSource(site Site, open SessionOpener, opts BrowserOptions, logger *slog.Logger) *BrowserSource {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.PageDelay == nil {
		opts.PageDelay = ratelimit.NoDelay()
	}
	if opts.Capture == nil {
		opts.Capture = NoCapture()
	}

	return &BrowserSource{
		site:        site,
		open:        open,
		maxAttempts: opts.MaxAttempts,
		retryWait:   ratelimit.NewSimpleRateLimiter(opts.RetryDelay, opts.RetryDelay),
		pageDelay:   opts.PageDelay,
		capture:     opts.Capture,
		logger:      logger.With("source", "browser"),
	}
}

func (s *BrowserSource) Name() string { return "browser" }

func (s *BrowserSource) Fetch(ctx context.Context, q Query) ([]Page, error) {
	session, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := session.Close(); err != nil {
			s.logger.Warn("failed to close browser session", "error", err)
		}
	}()

	var pages []Page
	for n := 1; n <= q.MaxPages; n++ {
		if n > 1 {
			if err := s.pageDelay.Wait(ctx); err != nil {
				return pages, err
			}
		}

		page, err := s.fetchPage(ctx, session, s.site.SearchURL(q.Term, n), n)
		if err != nil {
			if ctx.Err() != nil {
				return pages, ctx.Err()
			}
			s.logger.Error("giving up on page", "page", n, "error", err)
			logStack(ctx, s.logger, err, "page", n)
			continue
		}
		pages = append(pages, *page)
	}

	return pages, nil
}

func (s *BrowserSource) fetchPage(ctx context.Context, session browser.Session, pageURL string, n int) (*Page, error) {
	var lastErr error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		s.logger.Info("rendering page", "page", n, "attempt", attempt, "url", pageURL)

		html, err := session.Render(ctx, pageURL)
		if err == nil {
			s.save(fmt.Sprintf("olx_browser_page_%d.html", n), html)
			return &Page{
				Number:  n,
				URL:     pageURL,
				Content: html,
				Format:  parser.FormatHTML,
			}, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		s.logger.Warn("render attempt failed",
			"page", n,
			"attempt", attempt,
			"max_attempts", s.maxAttempts,
			"error", err)

		if attempt < s.maxAttempts {
			if err := s.retryWait.Wait(ctx); err != nil {
				return nil, err
			}
		}
	}

	if html, err := session.Content(); err == nil {
		s.save(fmt.Sprintf("olx_browser_error_page_%d.html", n), html)
	} else {
		s.logger.Debug("no page content to capture", "page", n, "error", err)
	}

	return nil, apperrors.Automation(fmt.Sprintf("page %d failed after %d attempts", n, s.maxAttempts), lastErr)
}

func (s *BrowserSource) save(name, html string) {
	if err := s.capture.Capture(name, []byte(html)); err != nil {
		s.logger.Warn("failed to save debug capture", "name", name, "error", err)
	}
}
