package livedeals

import (
	"context"

	"github.com/pauljones0/live-deals/internal/models"
)

// Source produces one batch of normalized, unexpired deals per call.
// Implementations return models.ErrSourceNotConfigured or
// models.ErrSourceUnavailable instead of data when they cannot serve.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]models.Deal, error)
}

// ScraperCache is the read side of the scraper's own cache.
type ScraperCache interface {
	Cached() []models.Deal
}

type scraperSource struct {
	cache ScraperCache
}

// NewScraperSource exposes the scraper's last batch as the final source in
// the chain. Reading it never triggers a scrape.
func NewScraperSource(c ScraperCache) Source {
	return scraperSource{cache: c}
}

func (s scraperSource) Name() string { return "scraper" }

func (s scraperSource) Fetch(_ context.Context) ([]models.Deal, error) {
	if s.cache == nil {
		return nil, models.ErrSourceNotConfigured
	}
	return s.cache.Cached(), nil
}
