// Package marketplace reads restaurant promotions from the OpenMenu API.
package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pauljones0/live-deals/internal/config"
	"github.com/pauljones0/live-deals/internal/metrics"
	"github.com/pauljones0/live-deals/internal/models"
	"github.com/pauljones0/live-deals/internal/normalizer"
)

const (
	sourceLabel   = "openmenu"
	searchTimeout = 12 * time.Second
	detailTimeout = 10 * time.Second
	// maxBusinesses bounds the detail fan-out per search.
	maxBusinesses = 10
)

// Location narrows the search to nearby restaurants.
type Location struct {
	City       string
	State      string
	Country    string
	PostalCode string
}

type Client struct {
	apiKey     string
	baseURL    string
	location   *Location
	httpClient *http.Client
	now        func() time.Time
}

// New builds a client from configuration. Without an API key the client
// reports models.ErrSourceNotConfigured.
func New(cfg *config.Config) *Client {
	c := &Client{
		apiKey:     cfg.OpenMenuAPIKey,
		baseURL:    cfg.OpenMenuBaseURL,
		httpClient: &http.Client{},
		now:        time.Now,
	}
	if cfg.HasLocation() {
		c.location = &Location{
			City:       cfg.OpenMenuCity,
			State:      cfg.OpenMenuState,
			Country:    cfg.OpenMenuCountry,
			PostalCode: cfg.OpenMenuPostalCode,
		}
	}
	return c
}

func (c *Client) Name() string { return sourceLabel }

// restaurantID accepts ids encoded either as JSON strings or numbers.
type restaurantID string

func (r *restaurantID) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*r = restaurantID(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// null or anything else counts as a missing id
		*r = ""
		return nil
	}
	*r = restaurantID(s)
	return nil
}

type searchResponse struct {
	Response struct {
		Result struct {
			Restaurants []struct {
				ID restaurantID `json:"id"`
			} `json:"restaurants"`
		} `json:"result"`
	} `json:"response"`
}

type dealsResponse struct {
	Response struct {
		Result struct {
			Deals []models.RawDeal `json:"deals"`
		} `json:"result"`
	} `json:"response"`
}

// Fetch returns normalized, unexpired deals. In location mode it searches
// for nearby restaurants and fetches each one's deals concurrently;
// otherwise it queries the sample endpoint.
func (c *Client) Fetch(ctx context.Context) ([]models.Deal, error) {
	if c.apiKey == "" {
		return nil, models.ErrSourceNotConfigured
	}

	var (
		raws []models.RawDeal
		err  error
	)
	if c.location != nil {
		raws, err = c.fetchByLocation(ctx)
	} else {
		raws, err = c.fetchSample(ctx)
	}
	if err != nil {
		slog.Warn("OpenMenu fetch failed", "error", err)
		return nil, fmt.Errorf("%w: %v", models.ErrSourceUnavailable, err)
	}

	deals := normalizer.Batch(raws, sourceLabel, c.now())
	slog.Info("Fetched deals from OpenMenu", "raw", len(raws), "unexpired", len(deals))
	return deals, nil
}

func (c *Client) fetchSample(ctx context.Context) ([]models.RawDeal, error) {
	var resp dealsResponse
	if err := c.getJSON(ctx, c.dealsURL("sample"), detailTimeout, &resp); err != nil {
		return nil, fmt.Errorf("sample deals: %w", err)
	}
	return resp.Response.Result.Deals, nil
}

func (c *Client) fetchByLocation(ctx context.Context) ([]models.RawDeal, error) {
	ids, err := c.searchRestaurants(ctx)
	if err != nil {
		return nil, fmt.Errorf("restaurant search: %w", err)
	}

	// Each slot belongs to one restaurant so results keep search order.
	results := make([][]models.RawDeal, len(ids))

	// Plain Group rather than WithContext: one failed detail fetch must not
	// cancel its siblings.
	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			var resp dealsResponse
			if err := c.getJSON(ctx, c.dealsURL(id), detailTimeout, &resp); err != nil {
				metrics.MarketplaceDetailFailures.Inc()
				slog.Warn("OpenMenu detail fetch failed", "restaurant_id", id, "error", err)
				return nil
			}
			results[i] = resp.Response.Result.Deals
			return nil
		})
	}
	_ = g.Wait()

	var all []models.RawDeal
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

func (c *Client) searchRestaurants(ctx context.Context) ([]string, error) {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("s", "restaurant")
	params.Set("city", c.location.City)
	params.Set("country", c.location.Country)
	if c.location.State != "" {
		state := c.location.State
		if len(state) > 2 {
			state = state[:2]
		}
		params.Set("state", state)
	}
	if c.location.PostalCode != "" {
		params.Set("postal_code", c.location.PostalCode)
	}

	var resp searchResponse
	if err := c.getJSON(ctx, c.baseURL+"/search.php?"+params.Encode(), searchTimeout, &resp); err != nil {
		return nil, err
	}

	restaurants := resp.Response.Result.Restaurants
	if len(restaurants) > maxBusinesses {
		restaurants = restaurants[:maxBusinesses]
	}
	ids := make([]string, 0, len(restaurants))
	for _, r := range restaurants {
		if id := string(r.ID); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (c *Client) dealsURL(id string) string {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("id", id)
	return c.baseURL + "/deals.php?" + params.Encode()
}

// getJSON performs one GET bounded by its own timeout and decodes the body.
func (c *Client) getJSON(ctx context.Context, rawURL string, timeout time.Duration, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("unexpected status code %d", res.StatusCode)
	}

	dec := json.NewDecoder(res.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
