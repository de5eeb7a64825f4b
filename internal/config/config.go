package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Scraper  ScraperConfig
	Browser  BrowserConfig
	Output   OutputConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Logging  LoggingConfig
}

type ScraperConfig struct {
	Query           string
	Country         string
	BaseURL         string
	MaxPages        int
	BrowserFallback bool
	Proxy           string
	RequestDelayMin time.Duration
	RequestDelayMax time.Duration
	RequestTimeout  time.Duration
	APITimeout      time.Duration
	UserAgents      []string
}

type BrowserConfig struct {
	Headless          bool
	Engines           []string
	NavigationTimeout time.Duration
	ReadyTimeout      time.Duration
	SettleDelay       time.Duration
	MaxAttempts       int
	RetryDelay        time.Duration
	PageDelayMin      time.Duration
	PageDelayMax      time.Duration
	ViewportWidth     int
	ViewportHeight    int
	Locale            string
}

type OutputConfig struct {
	Dir      string
	DebugDir string
	LogFile  string
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Stream   string
}

type ServerConfig struct {
	Port            int
	MaxPages        int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Scraper: ScraperConfig{
			Query:           getEnvOrDefault("SCRAPER_QUERY", "car cover"),
			Country:         getEnvOrDefault("SCRAPER_COUNTRY", "in"),
			BaseURL:         getEnvOrDefault("SCRAPER_BASE_URL", ""),
			MaxPages:        getIntOrDefault("SCRAPER_MAX_PAGES", 3),
			BrowserFallback: getBoolOrDefault("SCRAPER_BROWSER_FALLBACK", false),
			Proxy:           getEnvOrDefault("SCRAPER_PROXY", ""),
			RequestDelayMin: getDurationOrDefault("SCRAPER_REQUEST_DELAY_MIN", 2*time.Second),
			RequestDelayMax: getDurationOrDefault("SCRAPER_REQUEST_DELAY_MAX", 5*time.Second),
			RequestTimeout:  getDurationOrDefault("SCRAPER_REQUEST_TIMEOUT", 20*time.Second),
			APITimeout:      getDurationOrDefault("SCRAPER_API_TIMEOUT", 15*time.Second),
			UserAgents:      getStringSliceOrDefault("SCRAPER_USER_AGENTS", defaultUserAgents()),
		},
		Browser: BrowserConfig{
			Headless:          getBoolOrDefault("BROWSER_HEADLESS", true),
			Engines:           getStringSliceOrDefault("BROWSER_ENGINES", []string{"playwright", "chromedp", "rod"}),
			NavigationTimeout: getDurationOrDefault("BROWSER_NAVIGATION_TIMEOUT", 30*time.Second),
			ReadyTimeout:      getDurationOrDefault("BROWSER_READY_TIMEOUT", 15*time.Second),
			SettleDelay:       getDurationOrDefault("BROWSER_SETTLE_DELAY", 3*time.Second),
			MaxAttempts:       getIntOrDefault("BROWSER_MAX_ATTEMPTS", 3),
			RetryDelay:        getDurationOrDefault("BROWSER_RETRY_DELAY", 5*time.Second),
			PageDelayMin:      getDurationOrDefault("BROWSER_PAGE_DELAY_MIN", 3*time.Second),
			PageDelayMax:      getDurationOrDefault("BROWSER_PAGE_DELAY_MAX", 5*time.Second),
			ViewportWidth:     getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight:    getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			Locale:            getEnvOrDefault("BROWSER_LOCALE", "en-US"),
		},
		Output: OutputConfig{
			Dir:      getEnvOrDefault("OUTPUT_DIR", "."),
			DebugDir: getEnvOrDefault("OUTPUT_DEBUG_DIR", "debug"),
			LogFile:  getEnvOrDefault("OUTPUT_LOG_FILE", "olx_scraper.log"),
		},
		Database: DatabaseConfig{
			Enabled:  getBoolOrDefault("DB_ENABLED", false),
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			Name:     getEnvOrDefault("DB_NAME", "olx_scraper"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 4)),
		},
		Redis: RedisConfig{
			Enabled:  getBoolOrDefault("REDIS_ENABLED", false),
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:olx_listings"),
		},
		Server: ServerConfig{
			Port:            getIntOrDefault("SERVER_PORT", 8080),
			MaxPages:        getIntOrDefault("SERVER_MAX_PAGES", 20),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 10*time.Minute),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "text"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Scraper.Query) == "" {
		return fmt.Errorf("search query must not be empty")
	}

	if c.Scraper.Country == "" && c.Scraper.BaseURL == "" {
		return fmt.Errorf("SCRAPER_COUNTRY or SCRAPER_BASE_URL is required")
	}

	if c.Scraper.MaxPages < 1 {
		return fmt.Errorf("SCRAPER_MAX_PAGES must be at least 1")
	}

	if c.Scraper.RequestDelayMin > c.Scraper.RequestDelayMax {
		return fmt.Errorf("SCRAPER_REQUEST_DELAY_MIN cannot be greater than SCRAPER_REQUEST_DELAY_MAX")
	}

	if len(c.Scraper.UserAgents) == 0 {
		return fmt.Errorf("SCRAPER_USER_AGENTS must contain at least one user agent")
	}

	if c.Browser.MaxAttempts < 1 {
		return fmt.Errorf("BROWSER_MAX_ATTEMPTS must be at least 1")
	}

	if c.Browser.PageDelayMin > c.Browser.PageDelayMax {
		return fmt.Errorf("BROWSER_PAGE_DELAY_MIN cannot be greater than BROWSER_PAGE_DELAY_MAX")
	}

	if len(c.Browser.Engines) == 0 {
		return fmt.Errorf("BROWSER_ENGINES must name at least one engine")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.MaxPages < 1 {
		return fmt.Errorf("SERVER_MAX_PAGES must be at least 1")
	}

	return nil
}

// SiteBaseURL returns the marketplace origin, e.g. https://www.olx.in.
func (c ScraperConfig) SiteBaseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return "https://www.olx." + c.Country
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return defaultValue
}

func defaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/136.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.0 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/135.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:105.0) Gecko/20100101 Firefox/125.0",
	}
}
