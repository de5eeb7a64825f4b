package browser

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

type rodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	opts     *Options
	logger   *slog.Logger
}

func launchRod(ctx context.Context, opts *Options, logger *slog.Logger) (Session, error) {
	l := launcher.New().
		Headless(opts.Headless).
		Set("disable-blink-features", "AutomationControlled").
		Set("window-size", fmt.Sprintf("%d,%d", opts.ViewportWidth, opts.ViewportHeight))
	if opts.ProxyServer != "" {
		l = l.Proxy(opts.ProxyServer)
	}

	controlURL, err := l.Context(ctx).Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		browser.Close()
		l.Kill()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	if opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      opts.UserAgent,
			AcceptLanguage: opts.Locale,
		}); err != nil {
			logger.Warn("failed to set user agent", "error", err)
		}
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             opts.ViewportWidth,
		Height:            opts.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		logger.Warn("failed to set viewport", "error", err)
	}

	return &rodSession{
		launcher: l,
		browser:  browser,
		page:     page,
		opts:     opts,
		logger:   logger,
	}, nil
}

func (s *rodSession) Render(ctx context.Context, url string) (string, error) {
	page := s.page.Context(ctx)

	if err := page.Timeout(s.opts.NavigationTimeout).Navigate(url); err != nil {
		return "", fmt.Errorf("failed to navigate: %w", err)
	}

	if _, err := page.Timeout(s.opts.ReadyTimeout).Element(s.opts.ReadySelector); err != nil {
		s.logger.Debug("listing marker not found, waiting for page body",
			"selector", s.opts.ReadySelector, "error", err)
		if _, err := page.Timeout(s.opts.ReadyTimeout).Element(s.opts.FallbackReadySelector); err != nil {
			return "", fmt.Errorf("page did not become ready: %w", err)
		}
	}

	if err := sleepContext(ctx, s.opts.SettleDelay); err != nil {
		return "", err
	}

	return s.Content()
}

func (s *rodSession) Content() (string, error) {
	html, err := s.page.HTML()
	if err != nil {
		return "", fmt.Errorf("failed to get page content: %w", err)
	}
	return html, nil
}

func (s *rodSession) Close() error {
	var err error
	if s.browser != nil {
		err = s.browser.Close()
	}
	if s.launcher != nil {
		s.launcher.Kill()
	}
	if err != nil {
		return fmt.Errorf("failed to close browser: %w", err)
	}
	return nil
}
