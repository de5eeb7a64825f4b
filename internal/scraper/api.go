package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/maltedev/olx-scraper/internal/errors"
	"github.com/maltedev/olx-scraper/internal/parser"
)

type APIOptions struct {
	Timeout time.Duration
	Proxy   string
	Agents  *UserAgentPool
	Capture Capturer
}

// APISource issues a single request to the site's JSON search endpoint.
// The endpoint ignores paging, so MaxPages has no effect here.
type APISource struct {
	site    Site
	client  *http.Client
	agents  *UserAgentPool
	capture Capturer
	logger  *slog.Logger
}

func NewAPISource(site Site, opts APIOptions, logger *slog.Logger) (*APISource, error) {
	client, err := newHTTPClient(opts.Timeout, opts.Proxy)
	if err != nil {
		return nil, err
	}

	if opts.Agents == nil {
		opts.Agents = NewUserAgentPool(nil)
	}
	if opts.Capture == nil {
		opts.Capture = NoCapture()
	}

	return &APISource{
		site:    site,
		client:  client,
		agents:  opts.Agents,
		capture: opts.Capture,
		logger:  logger.With("source", "api"),
	}, nil
}

func (s *APISource) Name() string { return "api" }

func (s *APISource) Fetch(ctx context.Context, q Query) ([]Page, error) {
	apiURL := s.site.APIURL(q.Term)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, apperrors.Transport("failed to build request", err)
	}
	if ua := s.agents.Random(); ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	s.logger.Info("probing search API", "url", apiURL)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperrors.Transport("API request failed", err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, apperrors.Transport("failed to read API response", err)
	}

	if err := s.capture.Capture("olx_api_response.json", body); err != nil {
		s.logger.Warn("failed to save debug capture", "name", "olx_api_response.json", "error", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Transport(fmt.Sprintf("API returned status code %d", resp.StatusCode), nil)
	}

	return []Page{{
		Number:  1,
		URL:     apiURL,
		Content: string(body),
		Format:  parser.FormatJSON,
	}}, nil
}
