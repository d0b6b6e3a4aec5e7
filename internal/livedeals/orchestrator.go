// Package livedeals serves the current batch of live deals from a TTL cache,
// refilling it from a fixed-priority chain of sources on a miss.
package livedeals

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pauljones0/live-deals/internal/metrics"
	"github.com/pauljones0/live-deals/internal/models"
	"github.com/pauljones0/live-deals/internal/normalizer"
)

// Result is the outcome of one lookup. A nil Deals slice means no source had
// live data; callers substitute their own fallback.
type Result struct {
	Deals     []models.Deal
	Source    string
	FetchedAt time.Time
}

// Available reports whether the result carries a batch.
func (r Result) Available() bool {
	return r.Deals != nil
}

func (r Result) MarshalJSON() ([]byte, error) {
	type wire struct {
		Deals     []models.Deal `json:"deals"`
		Source    *string       `json:"source"`
		FetchedAt *time.Time    `json:"fetchedAt"`
	}
	var w wire
	if r.Available() {
		w.Deals = r.Deals
		w.Source = &r.Source
		w.FetchedAt = &r.FetchedAt
	}
	return json.Marshal(w)
}

type Orchestrator struct {
	cache   *Cache
	sources []Source
	group   singleflight.Group
	now     func() time.Time
}

// New builds an orchestrator that consults sources in the given order.
func New(cache *Cache, sources ...Source) *Orchestrator {
	return &Orchestrator{
		cache:   cache,
		sources: sources,
		now:     cache.now,
	}
}

// Get serves the cached batch while fresh. Otherwise it walks the sources in
// order and commits the first non-empty batch. Concurrent misses share one
// walk.
func (o *Orchestrator) Get(ctx context.Context) Result {
	if r, ok := o.fromCache(); ok {
		metrics.Requests.WithLabelValues("cache").Inc()
		return r
	}

	// The walk is shared, so one caller going away must not cut it short.
	// Each source call is still bounded by its own timeout.
	walkCtx := context.WithoutCancel(ctx)
	v, _, _ := o.group.Do("refresh", func() (any, error) {
		if r, ok := o.fromCache(); ok {
			return r, nil
		}
		return o.refresh(walkCtx), nil
	})

	r := v.(Result)
	switch {
	case !r.Available():
		metrics.Requests.WithLabelValues("none").Inc()
	default:
		metrics.Requests.WithLabelValues(r.Source).Inc()
	}
	return r
}

// Invalidate empties the cache so the next Get walks the sources.
func (o *Orchestrator) Invalidate() {
	o.cache.Invalidate()
	slog.Info("Live deals cache invalidated")
}

// CacheState reports empty, fresh or stale.
func (o *Orchestrator) CacheState() string {
	return o.cache.State()
}

func (o *Orchestrator) fromCache() (Result, bool) {
	deals, fetchedAt, ok := o.cache.Get()
	if !ok {
		return Result{}, false
	}
	// A batch cached before midnight may hold deals that expired since.
	deals = normalizer.FilterUnexpired(deals, normalizer.Today(o.now()))
	return Result{Deals: deals, Source: models.SourceCache, FetchedAt: fetchedAt}, true
}

func (o *Orchestrator) refresh(ctx context.Context) Result {
	for _, src := range o.sources {
		deals, err := src.Fetch(ctx)
		if err == nil {
			deals = normalizer.FilterUnexpired(deals, normalizer.Today(o.now()))
		}

		outcome := "ok"
		switch {
		case errors.Is(err, models.ErrSourceNotConfigured):
			outcome = "not_configured"
		case err != nil:
			outcome = "unavailable"
		case len(deals) == 0:
			outcome = "empty"
		}
		metrics.SourceAttempts.WithLabelValues(src.Name(), outcome).Inc()

		if outcome != "ok" {
			slog.Debug("Source yielded no deals", "source", src.Name(), "outcome", outcome, "error", err)
			continue
		}

		now := o.now()
		o.cache.Put(deals, now)
		metrics.BatchSize.Set(float64(len(deals)))
		slog.Info("Committed live deals batch", "source", src.Name(), "count", len(deals))
		return Result{Deals: deals, Source: models.SourceLive, FetchedAt: now}
	}

	slog.Warn("No source produced live deals")
	return Result{}
}
