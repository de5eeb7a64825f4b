package scraper

import (
	"context"
	"log/slog"
	"strings"

	apperrors "github.com/maltedev/olx-scraper/internal/errors"
	"github.com/maltedev/olx-scraper/internal/parser"
)

// Source retrieves raw search result pages for a query. Implementations fetch
// pages strictly one after another and report per-page failures through their
// logger; the returned error is reserved for failures of the whole source.
type Source interface {
	Name() string
	Fetch(ctx context.Context, q Query) ([]Page, error)
}

type Query struct {
	Term            string
	MaxPages        int
	BrowserFallback bool
}

func (q Query) Validate() error {
	if strings.TrimSpace(q.Term) == "" {
		return apperrors.InvalidInput("search query must not be empty", nil)
	}
	if q.MaxPages < 1 {
		return apperrors.InvalidInput("at least one page must be requested", nil)
	}
	return nil
}

// Page is one retrieved document together with how it should be read.
type Page struct {
	Number  int
	URL     string
	Content string
	Format  parser.Format
}

// Capturer persists raw responses for later inspection.
type Capturer interface {
	Capture(name string, content []byte) error
}

type noopCapturer struct{}

func (noopCapturer) Capture(string, []byte) error { return nil }

// NoCapture discards every capture.
func NoCapture() Capturer {
	return noopCapturer{}
}

// logStack writes the stack recorded on err at debug level.
func logStack(ctx context.Context, logger *slog.Logger, err error, args ...any) {
	stack := apperrors.StackOf(err)
	if len(stack) == 0 || !logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	logger.Debug("failure stack", append(args, "stack", string(stack))...)
}
