package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pauljones0/live-deals/internal/livedeals"
	"github.com/pauljones0/live-deals/internal/models"
)

type mockLive struct {
	result      livedeals.Result
	invalidated atomic.Int32
}

func (m *mockLive) Get(_ context.Context) livedeals.Result { return m.result }
func (m *mockLive) Invalidate()                            { m.invalidated.Add(1) }
func (m *mockLive) CacheState() string                     { return livedeals.StateFresh }

type mockScraper struct {
	result *models.ScrapeResult
	runs   chan struct{}
	// release, when set, holds RunCycle until closed.
	release chan struct{}
}

func (m *mockScraper) RunCycle(_ context.Context) []models.Deal {
	m.runs <- struct{}{}
	if m.release != nil {
		<-m.release
	}
	return nil
}

func (m *mockScraper) Result() (models.ScrapeResult, bool) {
	if m.result == nil {
		return models.ScrapeResult{}, false
	}
	return *m.result, true
}

func newTestServer(live *mockLive, sc *mockScraper) http.Handler {
	s := &Server{live: live, scraper: sc, baseCtx: context.Background()}
	return s.Routes()
}

func TestHealth(t *testing.T) {
	h := newTestServer(&mockLive{}, &mockScraper{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"status":"ok"}` {
		t.Errorf("Unexpected health response: %d %s", rec.Code, rec.Body.String())
	}
}

func TestLiveDeals(t *testing.T) {
	at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		result livedeals.Result
		want   string
	}{
		{
			name:   "sentinel",
			result: livedeals.Result{},
			want:   `{"deals":null,"source":null,"fetchedAt":null}`,
		},
		{
			name: "live batch",
			result: livedeals.Result{
				Deals:     []models.Deal{{ID: "a", Location: "Online"}},
				Source:    models.SourceLive,
				FetchedAt: at,
			},
			want: `"source":"live","fetchedAt":"2025-06-01T09:00:00Z"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(&mockLive{result: tt.result}, &mockScraper{})
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live-deals", nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Unexpected Content-Type %q", ct)
			}
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("Body %s does not contain %s", rec.Body.String(), tt.want)
			}
		})
	}
}

func TestInvalidate(t *testing.T) {
	live := &mockLive{}
	h := newTestServer(live, &mockScraper{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/live-deals/invalidate", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}
	if live.invalidated.Load() != 1 {
		t.Errorf("Expected one invalidation, got %d", live.invalidated.Load())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live-deals/invalidate", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for GET, got %d", rec.Code)
	}
}

func TestScraperDeals(t *testing.T) {
	t.Run("no cycle yet", func(t *testing.T) {
		h := newTestServer(&mockLive{}, &mockScraper{})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scraper/deals", nil))

		if got := strings.TrimSpace(rec.Body.String()); got != `{"deals":[],"fetchedAt":null,"pages":0}` {
			t.Errorf("Unexpected body %s", got)
		}
	})

	t.Run("cached cycle", func(t *testing.T) {
		sc := &mockScraper{result: &models.ScrapeResult{
			Deals:     []models.Deal{{ID: "s1", Location: "Online"}},
			FetchedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
			Pages:     4,
		}}
		h := newTestServer(&mockLive{}, sc)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scraper/deals", nil))

		var resp scraperDealsResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Unmarshal error = %v", err)
		}
		if len(resp.Deals) != 1 || resp.Pages != 4 || resp.FetchedAt == nil {
			t.Errorf("Unexpected response %+v", resp)
		}
	})
}

func TestRunScraper(t *testing.T) {
	sc := &mockScraper{runs: make(chan struct{}, 1)}
	h := newTestServer(&mockLive{}, sc)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/scraper/run", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", rec.Code)
	}

	select {
	case <-sc.runs:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected a background scraper run")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(&mockLive{}, &mockScraper{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 from /metrics, got %d", rec.Code)
	}
}

func TestRunScraper_RejectsOverlappingRuns(t *testing.T) {
	sc := &mockScraper{runs: make(chan struct{}, 2), release: make(chan struct{})}
	h := newTestServer(&mockLive{}, sc)

	post := func() int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/scraper/run", nil))
		return rec.Code
	}

	if code := post(); code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", code)
	}
	select {
	case <-sc.runs:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected first run to start")
	}

	for range 3 {
		if code := post(); code != http.StatusConflict {
			t.Errorf("Expected 409 while a run is in progress, got %d", code)
		}
	}
	close(sc.release)

	deadline := time.Now().Add(2 * time.Second)
	for post() != http.StatusAccepted {
		if time.Now().After(deadline) {
			t.Fatal("Expected a new run to be accepted after the first finished")
		}
		time.Sleep(10 * time.Millisecond)
	}
	select {
	case <-sc.runs:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected second run to start")
	}
	if n := len(sc.runs); n != 0 {
		t.Errorf("Expected no queued runs, got %d", n)
	}
}
