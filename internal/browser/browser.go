package browser

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/maltedev/olx-scraper/internal/errors"
)

// Session is one live browser tab. Sessions are not safe for concurrent use;
// the owner must call Close on every exit path.
type Session interface {
	// Render navigates to url, waits for the page to become ready, lets
	// client-side rendering settle and returns the rendered HTML.
	Render(ctx context.Context, url string) (string, error)
	// Content returns the HTML currently loaded in the tab.
	Content() (string, error)
	Close() error
}

type Options struct {
	Headless              bool
	NavigationTimeout     time.Duration
	ReadyTimeout          time.Duration
	SettleDelay           time.Duration
	ReadySelector         string
	FallbackReadySelector string
	UserAgent             string
	ViewportWidth         int
	ViewportHeight        int
	Locale                string
	ProxyServer           string
	ExtraHeaders          map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:              true,
		NavigationTimeout:     30 * time.Second,
		ReadyTimeout:          15 * time.Second,
		SettleDelay:           3 * time.Second,
		ReadySelector:         "[data-aut-id='itemBox']",
		FallbackReadySelector: "body",
		UserAgent:             "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/136.0.0.0 Safari/537.36",
		ViewportWidth:         1920,
		ViewportHeight:        1080,
		Locale:                "en-US",
		ExtraHeaders: map[string]string{
			"Accept-Language": "en-US,en;q=0.5",
		},
	}
}

type Engine string

const (
	EnginePlaywright Engine = "playwright"
	EngineChromedp   Engine = "chromedp"
	EngineRod        Engine = "rod"
)

func ParseEngines(names []string) ([]Engine, error) {
	engines := make([]Engine, 0, len(names))
	for _, name := range names {
		switch e := Engine(strings.ToLower(strings.TrimSpace(name))); e {
		case EnginePlaywright, EngineChromedp, EngineRod:
			engines = append(engines, e)
		default:
			return nil, fmt.Errorf("unknown browser engine: %q", name)
		}
	}
	if len(engines) == 0 {
		return nil, fmt.Errorf("no browser engine configured")
	}
	return engines, nil
}

type launchFunc func(ctx context.Context, opts *Options, logger *slog.Logger) (Session, error)

var defaultLaunchers = map[Engine]launchFunc{
	EnginePlaywright: launchPlaywright,
	EngineChromedp:   launchChromedp,
	EngineRod:        launchRod,
}

// Open starts a session with the first engine in engines that launches
// successfully. When none does, the returned error is an Automation error
// carrying every launch failure.
func Open(ctx context.Context, engines []Engine, opts *Options, logger *slog.Logger) (Session, error) {
	return open(ctx, defaultLaunchers, engines, opts, logger)
}

func open(ctx context.Context, launchers map[Engine]launchFunc, engines []Engine, opts *Options, logger *slog.Logger) (Session, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	logger = logger.With("component", "browser")

	var errs []error
	for _, engine := range engines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		launch, ok := launchers[engine]
		if !ok {
			errs = append(errs, fmt.Errorf("%s: engine not supported", engine))
			continue
		}

		session, err := launch(ctx, opts, logger.With("engine", string(engine)))
		if err != nil {
			logger.Warn("browser engine failed to start", "engine", engine, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", engine, err))
			continue
		}

		logger.Info("browser session started", "engine", engine, "headless", opts.Headless)
		return session, nil
	}

	return nil, apperrors.Automation("failed to initialize any browser engine", stderrors.Join(errs...))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
