// Package feed reads deals from a configured JSON (or RSS/Atom) endpoint.
package feed

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/pauljones0/live-deals/internal/models"
	"github.com/pauljones0/live-deals/internal/normalizer"
)

const (
	sourceLabel    = "feed"
	requestTimeout = 15 * time.Second
	maxBodyBytes   = 10 << 20
)

type Client struct {
	url        string
	httpClient *http.Client
	now        func() time.Time
}

// New returns a feed client. An empty url yields a client that always
// reports models.ErrSourceNotConfigured.
func New(url string) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: requestTimeout},
		now:        time.Now,
	}
}

func (c *Client) Name() string { return sourceLabel }

// Fetch issues a single request to the feed and returns its normalized,
// unexpired deals.
func (c *Client) Fetch(ctx context.Context) ([]models.Deal, error) {
	if c.url == "" {
		return nil, models.ErrSourceNotConfigured
	}

	raws, err := c.fetchRaw(ctx)
	if err != nil {
		slog.Warn("Feed fetch failed", "url", c.url, "error", err)
		return nil, fmt.Errorf("%w: %v", models.ErrSourceUnavailable, err)
	}

	deals := normalizer.Batch(raws, sourceLabel, c.now())
	slog.Info("Fetched deals from feed", "raw", len(raws), "unexpired", len(deals))
	return deals, nil
}

func (c *Client) fetchRaw(ctx context.Context) ([]models.RawDeal, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json, application/rss+xml, application/atom+xml;q=0.9")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status code %d", res.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
		return ParseJSON(trimmed)
	}
	return parseSyndication(trimmed)
}

// ParseJSON accepts a bare array of records or an object carrying the list
// under "deals" or "results".
func ParseJSON(data []byte) ([]models.RawDeal, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("malformed JSON payload: %w", err)
	}

	var list any
	switch v := payload.(type) {
	case []any:
		list = v
	case map[string]any:
		list = v["deals"]
		if list == nil {
			list = v["results"]
		}
		if list == nil {
			return []models.RawDeal{}, nil
		}
	default:
		return nil, fmt.Errorf("unexpected payload type %T", payload)
	}

	items, ok := list.([]any)
	if !ok {
		return nil, fmt.Errorf("deal list has unexpected type %T", list)
	}

	raws := make([]models.RawDeal, 0, len(items))
	for _, item := range items {
		// Non-object entries normalize to an all-default record.
		obj, _ := item.(map[string]any)
		raws = append(raws, models.RawDeal(obj))
	}
	return raws, nil
}

// parseSyndication maps RSS/Atom items onto raw records; the feed title
// stands in for the restaurant.
func parseSyndication(data []byte) ([]models.RawDeal, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("payload is neither JSON nor a feed: %w", err)
	}

	raws := make([]models.RawDeal, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		raw := models.RawDeal{
			"title":       item.Title,
			"description": cmp.Or(item.Description, item.Content),
		}
		if id := cmp.Or(item.GUID, item.Link); id != "" {
			raw["id"] = id
		}
		if parsed.Title != "" {
			raw["restaurant"] = parsed.Title
		}
		if item.Image != nil && item.Image.URL != "" {
			raw["image"] = item.Image.URL
		}
		raws = append(raws, raw)
	}
	return raws, nil
}
