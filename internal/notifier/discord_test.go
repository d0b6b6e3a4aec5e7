package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/pauljones0/live-deals/internal/models"
)

func strPtr(s string) *string { return &s }

func sampleResult(n int) models.ScrapeResult {
	deals := make([]models.Deal, n)
	for i := range deals {
		deals[i] = models.Deal{ID: fmt.Sprintf("d%d", i), Restaurant: "Tacobell", Title: fmt.Sprintf("Deal %d", i)}
	}
	return models.ScrapeResult{
		Deals:     deals,
		FetchedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
		Pages:     3,
	}
}

func TestFormatSummaryEmbed(t *testing.T) {
	result := sampleResult(2)
	result.Deals[1].ValidUntil = strPtr("2025-06-30")

	embed := formatSummaryEmbed(result)

	if embed.Description != "2 deals from 3 pages" {
		t.Errorf("Description incorrect. Got: %s", embed.Description)
	}
	if embed.Timestamp != "2025-06-01T09:00:00Z" {
		t.Errorf("Timestamp incorrect. Got: %s", embed.Timestamp)
	}
	if embed.Color != colorFewDeals {
		t.Errorf("Expected few-deals color, got %d", embed.Color)
	}
	if len(embed.Fields) != 2 {
		t.Fatalf("Expected 2 fields, got %d", len(embed.Fields))
	}
	if embed.Fields[0].Name != "Tacobell" || embed.Fields[1].Value != "Deal 1 (until 2025-06-30)" {
		t.Errorf("Unexpected fields: %+v", embed.Fields)
	}
}

func TestFormatSummaryEmbed_CapsFields(t *testing.T) {
	embed := formatSummaryEmbed(sampleResult(14))

	if len(embed.Fields) != maxEmbedFields {
		t.Errorf("Expected %d fields, got %d", maxEmbedFields, len(embed.Fields))
	}
	if embed.Footer.Text != "+4 more" {
		t.Errorf("Footer incorrect. Got: %q", embed.Footer.Text)
	}
	if embed.Color != colorManyDeals {
		t.Errorf("Expected many-deals color, got %d", embed.Color)
	}
}

func TestClient_Send(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.URL.Query().Get("wait") != "true" {
			t.Error("Expected wait=true")
		}
		var payload discordWebhookPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("Failed to decode payload: %v", err)
		}
		if len(payload.Embeds) != 1 {
			t.Errorf("Expected 1 embed, got %d", len(payload.Embeds))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "12345", "channel_id": "67890"}`))
	}))
	defer server.Close()

	client := New(server.URL)
	// Override rate limiter for tests to run fast
	client.rateLimiter = rate.NewLimiter(rate.Inf, 1)

	id, err := client.Send(context.Background(), sampleResult(1))
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if id != "12345" {
		t.Errorf("Expected ID 12345, got %s", id)
	}
}

func TestClient_Send_RetriesOn5xx(t *testing.T) {
	var attempts int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt := atomic.AddInt32(&attempts, 1)
		if attempt <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"message": "server error"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "retry-success", "channel_id": "67890"}`))
	}))
	defer server.Close()

	client := New(server.URL)
	client.rateLimiter = rate.NewLimiter(rate.Inf, 1)

	id, err := client.Send(context.Background(), sampleResult(1))
	if err != nil {
		t.Fatalf("Send() should have succeeded after retries, got error: %v", err)
	}
	if id != "retry-success" {
		t.Errorf("Expected ID 'retry-success', got %s", id)
	}
	if atomic.LoadInt32(&attempts) != 3 {
		t.Errorf("Expected 3 attempts (2 failures + 1 success), got %d", atomic.LoadInt32(&attempts))
	}
}

func TestClient_Send_NoRetryOn4xx(t *testing.T) {
	var attempts int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message": "bad request"}`))
	}))
	defer server.Close()

	client := New(server.URL)
	client.rateLimiter = rate.NewLimiter(rate.Inf, 1)

	if _, err := client.Send(context.Background(), sampleResult(1)); err == nil {
		t.Fatal("Send() should have returned error for 400 response")
	}
	if atomic.LoadInt32(&attempts) != 1 {
		t.Errorf("Expected 1 attempt (no retry for 400), got %d", atomic.LoadInt32(&attempts))
	}
}

func TestRetryBackoff(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		retryAfter string
		attempt    int
		want       time.Duration
	}{
		{"429 with Retry-After", 429, "2", 0, 2 * time.Second},
		{"429 with fractional Retry-After", 429, "0.5", 0, 500 * time.Millisecond},
		{"429 without Retry-After", 429, "", 1, 2 * time.Second},
		{"500 error", 500, "", 0, 500 * time.Millisecond},
		{"503 error", 503, "", 1, time.Second},
		{"400 error", 400, "", 0, 0},
		{"404 error", 404, "", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{StatusCode: tt.statusCode, Header: http.Header{}}
			if tt.retryAfter != "" {
				resp.Header.Set("Retry-After", tt.retryAfter)
			}
			if got := retryBackoff(resp, tt.attempt); got != tt.want {
				t.Errorf("retryBackoff() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCycleCompleted(t *testing.T) {
	var posts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&posts, 1)
		w.Write([]byte(`{"id": "1"}`))
	}))
	defer server.Close()

	client := New(server.URL)
	client.rateLimiter = rate.NewLimiter(rate.Inf, 1)

	client.CycleCompleted(context.Background(), sampleResult(0))
	if atomic.LoadInt32(&posts) != 0 {
		t.Error("Expected empty cycles to be skipped")
	}

	client.CycleCompleted(context.Background(), sampleResult(2))
	if atomic.LoadInt32(&posts) != 1 {
		t.Errorf("Expected one post, got %d", atomic.LoadInt32(&posts))
	}
}

func TestClient_Send_EmptyWebhookURL(t *testing.T) {
	c := New("")
	id, err := c.Send(context.Background(), sampleResult(1))
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if id != "" {
		t.Errorf("Send() with empty webhook should return empty ID, got %q", id)
	}
	// Must not panic or block.
	c.CycleCompleted(context.Background(), sampleResult(1))
}
