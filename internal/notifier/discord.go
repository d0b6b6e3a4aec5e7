// Package notifier posts scraper cycle summaries to a Discord webhook.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/pauljones0/live-deals/internal/models"
	"github.com/pauljones0/live-deals/internal/util"
)

const (
	colorNoDeals   = 3092790  // #2F3136
	colorFewDeals  = 16753920 // #FFA500
	colorManyDeals = 5763719  // #57F287

	manyDealsThreshold = 10
	maxEmbedFields     = 10
	maxAttempts        = 3
	maxFieldValueLen   = 1024
)

type Client struct {
	webhookURL  string
	client      *http.Client
	rateLimiter *rate.Limiter
}

func New(webhookURL string) *Client {
	return &Client{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		// Discord allows roughly 30 webhook posts a minute.
		rateLimiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
}

// CycleCompleted posts a summary of a finished scraper cycle. Failures are
// logged, never returned, so a webhook outage cannot disturb the scraper.
func (c *Client) CycleCompleted(ctx context.Context, result models.ScrapeResult) {
	if c.webhookURL == "" {
		return
	}
	if len(result.Deals) == 0 {
		slog.Debug("Skipping Discord summary for empty scraper cycle", "pages", result.Pages)
		return
	}
	id, err := c.Send(ctx, result)
	if err != nil {
		slog.Warn("Failed to send scraper summary to Discord", "error", err)
		return
	}
	slog.Info("Sent scraper summary to Discord", "message_id", id, "deals", len(result.Deals))
}

// Send posts the summary embed and returns the created message ID.
func (c *Client) Send(ctx context.Context, result models.ScrapeResult) (string, error) {
	if c.webhookURL == "" {
		return "", nil
	}

	payload := discordWebhookPayload{Embeds: []discordEmbed{formatSummaryEmbed(result)}}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	parsedURL, err := url.Parse(c.webhookURL)
	if err != nil {
		return "", err
	}
	q := parsedURL.Query()
	q.Set("wait", "true")
	parsedURL.RawQuery = q.Encode()

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return "", err
		}

		id, backoff, err := c.post(ctx, parsedURL.String(), payloadBytes, attempt)
		if err == nil {
			return id, nil
		}
		lastErr = err
		if backoff == 0 || attempt == maxAttempts-1 {
			break
		}

		slog.Warn("Discord webhook failed, retrying", "attempt", attempt+1, "backoff", backoff, "error", err)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
	}
	return "", lastErr
}

// post performs one request. A non-zero backoff means the failure is worth retrying.
func (c *Client) post(ctx context.Context, target string, body []byte, attempt int) (string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", time.Second << attempt, err
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var msgResponse discordMessageResponse
		if err := json.Unmarshal(bodyBytes, &msgResponse); err != nil {
			return "", 0, err
		}
		return msgResponse.ID, 0, nil
	}
	return "", retryBackoff(resp, attempt), fmt.Errorf("discord status: %s, body: %s", resp.Status, string(bodyBytes))
}

// retryBackoff returns how long to wait before retrying resp, or zero when
// the status is not retryable.
func retryBackoff(resp *http.Response, attempt int) time.Duration {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if secs, err := strconv.ParseFloat(resp.Header.Get("Retry-After"), 64); err == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second))
		}
		return time.Second << attempt
	case resp.StatusCode >= 500:
		return 500 * time.Millisecond << attempt
	default:
		return 0
	}
}

// Internal structures
type discordWebhookPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordEmbedFooter struct {
	Text string `json:"text,omitempty"`
}

type discordEmbed struct {
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
	Color       int                 `json:"color,omitempty"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
	Footer      discordEmbedFooter  `json:"footer,omitempty"`
}

type discordMessageResponse struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
}

func formatSummaryEmbed(result models.ScrapeResult) discordEmbed {
	embed := discordEmbed{
		Title:       "Scraped deals updated",
		Description: fmt.Sprintf("%d deals from %d pages", len(result.Deals), result.Pages),
		Color:       summaryColor(len(result.Deals)),
	}
	if !result.FetchedAt.IsZero() {
		embed.Timestamp = result.FetchedAt.UTC().Format(time.RFC3339)
	}

	for i, d := range result.Deals {
		if i == maxEmbedFields {
			embed.Footer.Text = fmt.Sprintf("+%d more", len(result.Deals)-maxEmbedFields)
			break
		}
		value := d.Title
		if d.ValidUntil != nil {
			value += " (until " + *d.ValidUntil + ")"
		}
		embed.Fields = append(embed.Fields, discordEmbedField{
			Name:  d.Restaurant,
			Value: util.Truncate(value, maxFieldValueLen),
		})
	}
	return embed
}

func summaryColor(n int) int {
	switch {
	case n >= manyDealsThreshold:
		return colorManyDeals
	case n > 0:
		return colorFewDeals
	default:
		return colorNoDeals
	}
}
