package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pauljones0/live-deals/internal/livedeals"
	"github.com/pauljones0/live-deals/internal/models"
)

const scrapeRunTimeout = 10 * time.Minute

type liveDeals interface {
	Get(ctx context.Context) livedeals.Result
	Invalidate()
	CacheState() string
}

type scrapeRunner interface {
	RunCycle(ctx context.Context) []models.Deal
	Result() (models.ScrapeResult, bool)
}

type Server struct {
	live    liveDeals
	scraper scrapeRunner
	// baseCtx ends on shutdown and bounds background scrapes.
	baseCtx context.Context
	// scraping is set while an on-demand run is in progress.
	scraping atomic.Bool
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, `{"status":"ok"}`)
	})
	mux.HandleFunc("GET /live-deals", s.LiveDealsHandler)
	mux.HandleFunc("POST /live-deals/invalidate", s.InvalidateHandler)
	mux.HandleFunc("GET /scraper/deals", s.ScraperDealsHandler)
	mux.HandleFunc("POST /scraper/run", s.RunScraperHandler)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func (s *Server) LiveDealsHandler(w http.ResponseWriter, r *http.Request) {
	result := s.live.Get(r.Context())
	w.Header().Set("X-Cache-State", s.live.CacheState())
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) InvalidateHandler(w http.ResponseWriter, r *http.Request) {
	s.live.Invalidate()
	w.WriteHeader(http.StatusNoContent)
}

type scraperDealsResponse struct {
	Deals     []models.Deal `json:"deals"`
	FetchedAt *time.Time    `json:"fetchedAt"`
	Pages     int           `json:"pages"`
}

func (s *Server) ScraperDealsHandler(w http.ResponseWriter, r *http.Request) {
	resp := scraperDealsResponse{Deals: []models.Deal{}}
	if result, ok := s.scraper.Result(); ok {
		resp.Deals = result.Deals
		resp.FetchedAt = &result.FetchedAt
		resp.Pages = result.Pages
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) RunScraperHandler(w http.ResponseWriter, r *http.Request) {
	if !s.scraping.CompareAndSwap(false, true) {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintln(w, "Scraper run already in progress.")
		return
	}

	// Run the cycle asynchronously so the HTTP response isn't blocked by
	// sequential page fetches.
	go func() {
		defer s.scraping.Store(false)
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Panic in scraper run", "panic", r)
			}
		}()
		ctx, cancel := context.WithTimeout(s.baseCtx, scrapeRunTimeout)
		defer cancel()
		deals := s.scraper.RunCycle(ctx)
		slog.Info("On-demand scraper run finished", "deals", len(deals))
	}()

	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintln(w, "Scraper run started.")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}
