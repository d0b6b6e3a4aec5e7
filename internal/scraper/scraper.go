// Package scraper crawls restaurant pages on a timer, extracts promotional
// text heuristically and keeps the last result in its own cache.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/pauljones0/live-deals/internal/config"
	"github.com/pauljones0/live-deals/internal/metrics"
	"github.com/pauljones0/live-deals/internal/models"
	"github.com/pauljones0/live-deals/internal/normalizer"
	"github.com/pauljones0/live-deals/internal/util"
)

const (
	sourceLabel = "scraped"

	RendererHTTP       = "http"
	RendererChromedp   = "chromedp"
	RendererPlaywright = "playwright"
)

// CycleObserver is told about every completed cycle.
type CycleObserver interface {
	CycleCompleted(ctx context.Context, result models.ScrapeResult)
}

type Scraper struct {
	targets    []*url.URL
	fetcher    Fetcher
	extractor  *extractor
	limiter    *rate.Limiter
	interval   time.Duration
	maxRetries int
	retryDelay time.Duration
	observer   CycleObserver
	now        func() time.Time

	cache atomic.Pointer[models.ScrapeResult]
	runMu sync.Mutex

	schedMu sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New builds a scraper from configuration. An empty target list is valid and
// yields an inert scraper.
func New(cfg *config.Config, selectors SelectorConfig) (*Scraper, error) {
	targets, err := ResolveTargets(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve scraper targets: %w", err)
	}

	var fetcher Fetcher
	switch cfg.ScraperRenderer {
	case "", RendererHTTP:
		fetcher = NewHTTPFetcher(cfg.ScraperTimeout, cfg.ScraperUserAgent)
	case RendererChromedp:
		fetcher = NewBrowserFetcher(cfg.ScraperTimeout, cfg.ScraperUserAgent)
	case RendererPlaywright:
		fetcher = NewPlaywrightFetcher(cfg.ScraperTimeout, cfg.ScraperUserAgent)
	default:
		return nil, fmt.Errorf("unknown scraper renderer %q", cfg.ScraperRenderer)
	}

	limit := rate.Inf
	if cfg.ScraperMinDelay > 0 {
		limit = rate.Every(cfg.ScraperMinDelay)
	}

	return &Scraper{
		targets:    targets,
		fetcher:    fetcher,
		extractor:  newExtractor(selectors),
		limiter:    rate.NewLimiter(limit, 1),
		interval:   cfg.ScraperInterval,
		maxRetries: cfg.ScraperMaxRetries,
		retryDelay: time.Second,
		now:        time.Now,
	}, nil
}

// SetObserver registers the observer notified after each cycle. It must be
// called before Start.
func (s *Scraper) SetObserver(o CycleObserver) {
	s.observer = o
}

// Targets returns the resolved crawl list.
func (s *Scraper) Targets() []string {
	out := make([]string, len(s.targets))
	for i, u := range s.targets {
		out[i] = u.String()
	}
	return out
}

// RunCycle crawls every target in order and replaces the cache with the
// result. Cycles never overlap. A cycle interrupted by ctx leaves the previous
// cache in place.
func (s *Scraper) RunCycle(ctx context.Context) []models.Deal {
	if len(s.targets) == 0 {
		return []models.Deal{}
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	start := s.now()
	slog.Info("Starting scraper cycle", "targets", len(s.targets))

	var (
		all   []models.Deal
		pages int
	)
	for _, target := range s.targets {
		if err := s.limiter.Wait(ctx); err != nil {
			break
		}
		doc, err := s.fetchPage(ctx, target)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			metrics.ScraperPageFailures.Inc()
			slog.Warn("Scraper target failed", "url", target.String(), "error", err)
			continue
		}
		pages++
		found := s.extractor.extract(doc, target, s.now())
		slog.Debug("Scraped page", "url", target.String(), "deals", len(found))
		all = append(all, found...)
	}

	if ctx.Err() != nil {
		slog.Warn("Scraper cycle interrupted, keeping previous cache", "error", ctx.Err())
		return s.Cached()
	}

	now := s.now()
	deals := normalizer.Finalize(dedupeByRestaurantTitle(all), sourceLabel, now)
	result := models.ScrapeResult{Deals: deals, FetchedAt: now, Pages: pages}
	s.cache.Store(&result)

	metrics.ScraperCycles.Inc()
	metrics.ScraperCachedDeals.Set(float64(len(deals)))
	slog.Info("Scraper cycle complete", "pages", pages, "deals", len(deals), "duration", now.Sub(start))

	if s.observer != nil {
		s.observer.CycleCompleted(ctx, result)
	}
	return deals
}

func (s *Scraper) fetchPage(ctx context.Context, target *url.URL) (*goquery.Document, error) {
	var doc *goquery.Document
	err := util.RetryWithBackoff(ctx, s.maxRetries, s.retryDelay, func(attempt int) error {
		if attempt > 0 {
			slog.Info("Retrying scraper target", "url", target.String(), "attempt", attempt+1)
		}
		var err error
		doc, err = s.fetcher.Fetch(ctx, target.String())
		return err
	})
	return doc, err
}

// Cached returns the deals of the last completed cycle without blocking.
func (s *Scraper) Cached() []models.Deal {
	if r := s.cache.Load(); r != nil {
		return r.Deals
	}
	return []models.Deal{}
}

// Result returns the last completed cycle, if any.
func (s *Scraper) Result() (models.ScrapeResult, bool) {
	if r := s.cache.Load(); r != nil {
		return *r, true
	}
	return models.ScrapeResult{}, false
}

// Start runs a cycle immediately and then every interval until Stop is
// called or ctx ends. Only the first call has any effect; a scraper with no
// targets never starts.
func (s *Scraper) Start(ctx context.Context) {
	s.schedMu.Lock()
	defer s.schedMu.Unlock()

	if s.started {
		return
	}
	s.started = true

	if len(s.targets) == 0 {
		slog.Info("No scraper targets configured, scraper is inert")
		return
	}
	if s.interval <= 0 {
		slog.Error("Scraper interval must be positive, scraper not scheduled", "interval", s.interval)
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx)
	slog.Info("Scraper scheduled", "interval", s.interval, "targets", len(s.targets))
}

// Stop cancels the schedule and waits for a running cycle to return.
func (s *Scraper) Stop() {
	s.schedMu.Lock()
	cancel, done := s.cancel, s.done
	s.schedMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Scraper) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.safeCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.safeCycle(ctx)
		}
	}
}

func (s *Scraper) safeCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in scraper cycle", "panic", r)
		}
	}()
	s.RunCycle(ctx)
}

// ErrNoTargets is returned by RunOnce when the scraper has nothing to crawl.
var ErrNoTargets = errors.New("no scraper targets")

// RunOnce runs a single cycle and reports the resulting batch, for callers
// that want the scrape outside of the schedule.
func (s *Scraper) RunOnce(ctx context.Context) (models.ScrapeResult, error) {
	if len(s.targets) == 0 {
		return models.ScrapeResult{}, ErrNoTargets
	}
	s.RunCycle(ctx)
	if err := ctx.Err(); err != nil {
		return models.ScrapeResult{}, err
	}
	r, _ := s.Result()
	return r, nil
}
