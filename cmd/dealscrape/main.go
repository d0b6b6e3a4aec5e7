// Command dealscrape runs one scraper cycle and prints the resulting batch
// as JSON. It is meant for checking how target pages extract.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/pauljones0/live-deals/internal/config"
	"github.com/pauljones0/live-deals/internal/scraper"
)

type options struct {
	URLs        []string      `short:"u" long:"url" description:"Page to scrape (repeatable)"`
	TargetsFile string        `short:"f" long:"targets-file" env:"SCRAPER_TARGETS_FILE" description:"YAML file with a urls list"`
	Defaults    bool          `long:"defaults" description:"Scrape the built-in restaurant list"`
	Timeout     time.Duration `long:"timeout" env:"SCRAPER_TIMEOUT" default:"15s" description:"Per-page timeout"`
	MinDelay    time.Duration `long:"min-delay" env:"SCRAPER_MIN_DELAY" default:"1s" description:"Minimum spacing between requests"`
	Retries     int           `long:"retries" env:"SCRAPER_MAX_RETRIES" default:"0" description:"Retries per page"`
	Renderer    string        `long:"renderer" env:"SCRAPER_RENDERER" default:"http" choice:"http" choice:"chromedp" choice:"playwright" description:"Page loader"`
	UserAgent   string        `long:"user-agent" env:"SCRAPER_USER_AGENT" description:"User-Agent header"`
	Selectors   string        `long:"selectors" env:"SELECTORS_CONFIG_PATH" description:"Selector config JSON file"`
	Pretty      bool          `long:"pretty" description:"Indent JSON output"`
	Debug       bool          `long:"debug" description:"Enable debug logging"`

	Args struct {
		URLs []string `positional-arg-name:"URL"`
	} `positional-args:"yes"`
}

var errHelp = errors.New("help requested")

func parseOptions(args []string) (*options, error) {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return nil, errHelp
		}
		return nil, fmt.Errorf("failed to parse options: %w", err)
	}
	return &opts, nil
}

// scraperConfig maps options onto the scraper's configuration. Without any
// URLs or targets file the built-in list is only used when asked for.
func (o *options) scraperConfig() (*config.Config, error) {
	cfg := &config.Config{
		ScraperTargetsFile: o.TargetsFile,
		ScraperInterval:    time.Hour,
		ScraperTimeout:     o.Timeout,
		ScraperMinDelay:    o.MinDelay,
		ScraperMaxRetries:  o.Retries,
		ScraperRenderer:    o.Renderer,
		ScraperUserAgent:   o.UserAgent,
	}
	if cfg.ScraperUserAgent == "" {
		cfg.ScraperUserAgent = config.DefaultScraperUserAgent
	}

	urls := append(append([]string{}, o.URLs...), o.Args.URLs...)
	switch {
	case len(urls) > 0:
		cfg.ScraperURLs = urls
	case o.TargetsFile != "" || o.Defaults:
	default:
		return nil, errors.New("no targets: pass URLs, --targets-file or --defaults")
	}
	return cfg, nil
}

func run(ctx context.Context, args []string, out io.Writer) error {
	opts, err := parseOptions(args)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := opts.scraperConfig()
	if err != nil {
		return err
	}

	s, err := scraper.New(cfg, scraper.LoadConfig(opts.Selectors))
	if err != nil {
		return err
	}

	result, err := s.RunOnce(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	if opts.Pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(result)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errHelp) {
			os.Exit(0)
		}
		slog.Error("Scrape failed", "error", err)
		os.Exit(1)
	}
}
