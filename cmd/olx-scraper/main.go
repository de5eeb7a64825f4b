package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/maltedev/olx-scraper/internal/api"
	"github.com/maltedev/olx-scraper/internal/config"
	"github.com/maltedev/olx-scraper/internal/scraper"
	"github.com/maltedev/olx-scraper/pkg/logger"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := newRootCmd(cfg).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "olx-scraper",
		Short:   "Scrape classified-ad listings from OLX",
		Version: version,
		Long: `olx-scraper searches an OLX marketplace and saves the listings it finds
as a text report, a CSV table and a JSON file.

It first requests the search pages directly, then probes the site's JSON
search API, and finally (with --browser) renders the pages in a real browser.`,
		Example: `  olx-scraper --query "car cover" --pages 3
  olx-scraper --query "bike" --country pl --browser
  olx-scraper --query "car cover" --proxy http://127.0.0.1:8080 --store-db --publish
  olx-scraper serve`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cfg, cmd.OutOrStdout())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.Scraper.Country, "country", cfg.Scraper.Country, "Country code of the OLX domain (e.g. 'in' for olx.in)")
	flags.StringVar(&cfg.Scraper.Proxy, "proxy", cfg.Scraper.Proxy, "Proxy URL (e.g. http://host:port)")
	flags.StringVar(&cfg.Output.Dir, "output-dir", cfg.Output.Dir, "Directory for exported result files")
	flags.StringVar(&cfg.Output.DebugDir, "debug-dir", cfg.Output.DebugDir, "Directory for raw page captures")
	flags.StringVar(&cfg.Output.LogFile, "log-file", cfg.Output.LogFile, "Log file appended to in addition to stdout (empty to disable)")
	flags.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "Log level (debug, info, warn, error)")
	flags.StringVar(&cfg.Logging.Format, "log-format", cfg.Logging.Format, "Log format (text, json)")
	flags.BoolVar(&cfg.Browser.Headless, "headless", cfg.Browser.Headless, "Run the browser without a window")
	flags.BoolVar(&cfg.Database.Enabled, "store-db", cfg.Database.Enabled, "Store listings in PostgreSQL")
	flags.BoolVar(&cfg.Redis.Enabled, "publish", cfg.Redis.Enabled, "Publish a run event to the Redis stream")

	rootCmd.Flags().StringVar(&cfg.Scraper.Query, "query", cfg.Scraper.Query, "Search query")
	rootCmd.Flags().IntVar(&cfg.Scraper.MaxPages, "pages", cfg.Scraper.MaxPages, "Maximum number of pages to scrape")
	rootCmd.Flags().BoolVar(&cfg.Scraper.BrowserFallback, "browser", cfg.Scraper.BrowserFallback, "Use browser automation if the other methods fail")

	rootCmd.AddCommand(newServeCmd(cfg))
	return rootCmd
}

func newServeCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "serve",
		Short:        "Serve searches over HTTP",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cfg)
		},
	}
	cmd.Flags().IntVar(&cfg.Server.Port, "port", cfg.Server.Port, "HTTP port")
	return cmd
}

func setupLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	if cfg.Output.LogFile == "" {
		return logger.New(cfg.Logging.Level, cfg.Logging.Format), func() {}, nil
	}

	l, closer, err := logger.NewWithFile(cfg.Logging.Level, cfg.Logging.Format, cfg.Output.LogFile)
	if err != nil {
		return nil, nil, err
	}
	return l, func() { closer.Close() }, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(log *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			log.Info("shutdown signal received")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

// runSearch performs one search. Neither scraping outcomes nor invalid
// settings fail the command; only a log file that cannot be opened does.
func runSearch(cfg *config.Config, out io.Writer) error {
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(out, "Invalid configuration: %v\n", err)
		return nil
	}

	log, closeLog, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(log)

	ctx, cancel := signalContext(log)
	defer cancel()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	log.Info("starting OLX scraper",
		"query", cfg.Scraper.Query,
		"pages", cfg.Scraper.MaxPages,
		"browser", cfg.Scraper.BrowserFallback,
		"site", cfg.Scraper.SiteBaseURL())

	job, err := a.manager.Run(ctx, scraper.Query{
		Term:            cfg.Scraper.Query,
		MaxPages:        cfg.Scraper.MaxPages,
		BrowserFallback: cfg.Scraper.BrowserFallback,
	})
	if err != nil {
		log.Error("run did not complete", "error", err)
		fmt.Fprintln(out, "\nThe run did not complete. Check the log file for details.")
		return nil
	}

	if job.ListingsFound == 0 {
		log.Warn("no results found")
		fmt.Fprintln(out, "\nNo listings were found. Check the debug directory and log file for details.")
		if !cfg.Scraper.BrowserFallback {
			fmt.Fprintln(out, "\nTry running with --browser flag for browser automation approach")
		}
		return nil
	}

	log.Info("successfully scraped listings", "count", job.ListingsFound, "strategy", job.Strategy)
	fmt.Fprintf(out, "\nResults saved to:\n- %s\n- %s\n- %s\n", job.Files.Text, job.Files.CSV, job.Files.JSON)
	fmt.Fprintf(out, "\nTotal listings found: %d\n", job.ListingsFound)
	return nil
}

func runServer(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, closeLog, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(log)

	ctx, cancel := signalContext(log)
	defer cancel()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(api.NewHandlers(a.manager, cfg.Scraper.MaxPages, cfg.Server.MaxPages, log)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down server...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	}()

	log.Info("server starting", "port", cfg.Server.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}

	log.Info("server stopped")
	return nil
}
