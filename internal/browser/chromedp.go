package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"
)

type chromedpSession struct {
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	opts        *Options
	logger      *slog.Logger
}

func launchChromedp(ctx context.Context, opts *Options, logger *slog.Logger) (Session, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.NoSandbox,
		chromedp.WindowSize(opts.ViewportWidth, opts.ViewportHeight),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ProxyServer != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.ProxyServer))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// An empty Run starts the browser, so a missing Chrome fails here.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	return &chromedpSession{
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		opts:        opts,
		logger:      logger,
	}, nil
}

func (s *chromedpSession) Render(ctx context.Context, url string) (string, error) {
	if err := s.run(ctx, s.opts.NavigationTimeout, chromedp.Navigate(url)); err != nil {
		return "", fmt.Errorf("failed to navigate: %w", err)
	}

	if err := s.run(ctx, s.opts.ReadyTimeout, chromedp.WaitReady(s.opts.ReadySelector, chromedp.ByQuery)); err != nil {
		s.logger.Debug("listing marker not found, waiting for page body",
			"selector", s.opts.ReadySelector, "error", err)
		if err := s.run(ctx, s.opts.ReadyTimeout, chromedp.WaitReady(s.opts.FallbackReadySelector, chromedp.ByQuery)); err != nil {
			return "", fmt.Errorf("page did not become ready: %w", err)
		}
	}

	if err := sleepContext(ctx, s.opts.SettleDelay); err != nil {
		return "", err
	}

	return s.Content()
}

// run executes actions on the tab bounded by timeout and by the caller's ctx.
// The derived context is a child of the tab, so expiring it does not close
// the tab.
func (s *chromedpSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.tabCtx, timeout)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (s *chromedpSession) Content() (string, error) {
	var html string
	if err := s.run(context.Background(), 10*time.Second, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to get page content: %w", err)
	}
	return html, nil
}

func (s *chromedpSession) Close() error {
	err := chromedp.Cancel(s.tabCtx)
	s.tabCancel()
	s.allocCancel()
	if err != nil {
		return fmt.Errorf("failed to close chrome: %w", err)
	}
	return nil
}
