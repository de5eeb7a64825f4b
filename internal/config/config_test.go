package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "car cover", cfg.Scraper.Query)
	assert.Equal(t, "in", cfg.Scraper.Country)
	assert.Equal(t, 3, cfg.Scraper.MaxPages)
	assert.False(t, cfg.Scraper.BrowserFallback)
	assert.Equal(t, 2*time.Second, cfg.Scraper.RequestDelayMin)
	assert.Equal(t, 5*time.Second, cfg.Scraper.RequestDelayMax)
	assert.Len(t, cfg.Scraper.UserAgents, 4)
	assert.Equal(t, 3, cfg.Browser.MaxAttempts)
	assert.Equal(t, 15*time.Second, cfg.Browser.ReadyTimeout)
	assert.Equal(t, 3*time.Second, cfg.Browser.SettleDelay)
	assert.Equal(t, 5*time.Second, cfg.Browser.RetryDelay)
	assert.Equal(t, []string{"playwright", "chromedp", "rod"}, cfg.Browser.Engines)
	assert.Equal(t, "https://www.olx.in", cfg.Scraper.SiteBaseURL())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SCRAPER_QUERY", "bike helmet")
	t.Setenv("SCRAPER_COUNTRY", "ae")
	t.Setenv("SCRAPER_MAX_PAGES", "5")
	t.Setenv("SCRAPER_BROWSER_FALLBACK", "true")
	t.Setenv("SCRAPER_REQUEST_DELAY_MIN", "100ms")
	t.Setenv("SCRAPER_USER_AGENTS", "ua-one, ua-two,")
	t.Setenv("BROWSER_ENGINES", "chromedp")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "bike helmet", cfg.Scraper.Query)
	assert.Equal(t, 5, cfg.Scraper.MaxPages)
	assert.True(t, cfg.Scraper.BrowserFallback)
	assert.Equal(t, 100*time.Millisecond, cfg.Scraper.RequestDelayMin)
	assert.Equal(t, []string{"ua-one", "ua-two"}, cfg.Scraper.UserAgents)
	assert.Equal(t, []string{"chromedp"}, cfg.Browser.Engines)
	assert.Equal(t, "https://www.olx.ae", cfg.Scraper.SiteBaseURL())
}

func TestInvalidEnvironmentValuesFallBack(t *testing.T) {
	t.Setenv("SCRAPER_MAX_PAGES", "many")
	t.Setenv("SCRAPER_REQUEST_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Scraper.MaxPages)
	assert.Equal(t, 20*time.Second, cfg.Scraper.RequestTimeout)
}

func TestSiteBaseURLOverride(t *testing.T) {
	c := ScraperConfig{Country: "in", BaseURL: "http://127.0.0.1:8080/"}
	assert.Equal(t, "http://127.0.0.1:8080", c.SiteBaseURL())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty query", func(c *Config) { c.Scraper.Query = "  " }},
		{"zero pages", func(c *Config) { c.Scraper.MaxPages = 0 }},
		{"inverted delays", func(c *Config) { c.Scraper.RequestDelayMin = 10 * time.Second }},
		{"no user agents", func(c *Config) { c.Scraper.UserAgents = nil }},
		{"no site", func(c *Config) { c.Scraper.Country = ""; c.Scraper.BaseURL = "" }},
		{"zero attempts", func(c *Config) { c.Browser.MaxAttempts = 0 }},
		{"no engines", func(c *Config) { c.Browser.Engines = nil }},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"zero server pages", func(c *Config) { c.Server.MaxPages = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	c := DatabaseConfig{User: "u", Password: "p", Host: "db", Port: 5433, Name: "olx", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5433/olx?sslmode=disable", c.DSN())
}
