package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultOpenMenuBaseURL   = "https://openmenu.com/api/v2"
	DefaultScraperUserAgent  = "CheapEatsDealScraper/1.0 (compatible; +https://github.com/pauljones0/live-deals)"
	defaultCacheTTL          = 15 * time.Minute
	defaultScraperInterval   = time.Hour
	defaultScraperTimeout    = 15 * time.Second
	defaultScraperMinDelay   = time.Second
	defaultOpenMenuCountry   = "US"
	defaultSelectorsFilePath = "config/selectors.json"
)

type Config struct {
	Port string

	DealsFeedURL string
	CacheTTL     time.Duration

	OpenMenuAPIKey     string
	OpenMenuBaseURL    string
	OpenMenuCity       string
	OpenMenuState      string
	OpenMenuCountry    string
	OpenMenuPostalCode string

	// ScraperURLs is nil when SCRAPER_URLS is unset, so callers can tell
	// "not configured" apart from an explicit list.
	ScraperURLs        []string
	ScraperTargetsFile string
	ScraperInterval    time.Duration
	ScraperTimeout     time.Duration
	ScraperMinDelay    time.Duration
	ScraperMaxRetries  int
	ScraperRenderer    string
	ScraperUserAgent   string
	SelectorsPath      string

	DiscordWebhookURL string
}

// HasLocation reports whether the marketplace should search by location.
func (c *Config) HasLocation() bool {
	return c.OpenMenuCity != "" && c.OpenMenuCountry != ""
}

func Load() (*Config, error) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
		slog.Info("Defaulting to port", "port", port)
	}

	feedURL := strings.TrimSpace(os.Getenv("DEALS_FEED_URL"))
	if feedURL == "" {
		slog.Info("DEALS_FEED_URL not set, feed source will be skipped")
	}

	cacheTTL, err := durationEnv("LIVE_DEALS_CACHE_TTL", defaultCacheTTL)
	if err != nil {
		return nil, err
	}

	openMenuKey := strings.TrimSpace(os.Getenv("OPENMENU_API_KEY"))
	if openMenuKey == "" {
		slog.Info("OPENMENU_API_KEY not set, marketplace source will be skipped")
	}

	openMenuBaseURL := strings.TrimRight(strings.TrimSpace(os.Getenv("OPENMENU_BASE_URL")), "/")
	if openMenuBaseURL == "" {
		openMenuBaseURL = defaultOpenMenuBaseURL
	}

	country := strings.ToUpper(strings.TrimSpace(os.Getenv("OPENMENU_COUNTRY")))
	if country == "" {
		country = defaultOpenMenuCountry
	}
	if len(country) > 2 {
		country = country[:2]
	}

	var scraperURLs []string
	if v := strings.TrimSpace(os.Getenv("SCRAPER_URLS")); v != "" {
		scraperURLs = splitList(v)
	}

	scraperInterval, err := durationEnv("SCRAPER_INTERVAL", defaultScraperInterval)
	if err != nil {
		return nil, err
	}
	if scraperInterval <= 0 {
		return nil, fmt.Errorf("SCRAPER_INTERVAL must be positive, got %s", scraperInterval)
	}

	scraperTimeout, err := durationEnv("SCRAPER_TIMEOUT", defaultScraperTimeout)
	if err != nil {
		return nil, err
	}

	scraperMinDelay, err := durationEnv("SCRAPER_MIN_DELAY", defaultScraperMinDelay)
	if err != nil {
		return nil, err
	}

	scraperMaxRetries := 0
	if v := os.Getenv("SCRAPER_MAX_RETRIES"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SCRAPER_MAX_RETRIES %q: %w", v, err)
		}
		scraperMaxRetries = parsed
	}

	renderer := strings.ToLower(strings.TrimSpace(os.Getenv("SCRAPER_RENDERER")))
	switch renderer {
	case "", "http":
		renderer = "http"
	case "chromedp", "playwright":
	default:
		return nil, fmt.Errorf("invalid SCRAPER_RENDERER %q: want http, chromedp or playwright", renderer)
	}

	userAgent := os.Getenv("SCRAPER_USER_AGENT")
	if userAgent == "" {
		userAgent = DefaultScraperUserAgent
	}

	selectorsPath := os.Getenv("SELECTORS_CONFIG_PATH")
	if selectorsPath == "" {
		selectorsPath = defaultSelectorsFilePath
	}

	return &Config{
		Port:               port,
		DealsFeedURL:       feedURL,
		CacheTTL:           cacheTTL,
		OpenMenuAPIKey:     openMenuKey,
		OpenMenuBaseURL:    openMenuBaseURL,
		OpenMenuCity:       strings.TrimSpace(os.Getenv("OPENMENU_CITY")),
		OpenMenuState:      strings.TrimSpace(os.Getenv("OPENMENU_STATE")),
		OpenMenuCountry:    country,
		OpenMenuPostalCode: strings.TrimSpace(os.Getenv("OPENMENU_POSTAL_CODE")),
		ScraperURLs:        scraperURLs,
		ScraperTargetsFile: strings.TrimSpace(os.Getenv("SCRAPER_TARGETS_FILE")),
		ScraperInterval:    scraperInterval,
		ScraperTimeout:     scraperTimeout,
		ScraperMinDelay:    scraperMinDelay,
		ScraperMaxRetries:  scraperMaxRetries,
		ScraperRenderer:    renderer,
		ScraperUserAgent:   userAgent,
		SelectorsPath:      selectorsPath,
		DiscordWebhookURL:  os.Getenv("DISCORD_WEBHOOK_URL"),
	}, nil
}

func durationEnv(name string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, v, err)
	}
	return d, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
