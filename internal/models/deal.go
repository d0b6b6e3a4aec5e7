package models

import (
	"errors"
	"time"
)

var (
	// ErrSourceNotConfigured is returned by a source whose configuration is absent.
	ErrSourceNotConfigured = errors.New("source not configured")
	// ErrSourceUnavailable is returned by a source that failed to produce a batch.
	ErrSourceUnavailable = errors.New("source unavailable")
)

// Defaults applied by the normalizer when a source omits a field.
const (
	DefaultRestaurant = "Restaurant"
	DefaultCuisine    = "American"
	DefaultSavings    = "0%"
	DefaultLocation   = "Nationwide"
	OnlineLocation    = "Online"
)

// Length caps for canonical string fields.
const (
	MaxTitleLen       = 120
	MaxDescriptionLen = 255
	MaxLocationLen    = 80
	DateLen           = 10
)

// RawDeal is an upstream record before normalization. Sources disagree on
// field names, so it is only ever read through the normalizer's synonym table.
type RawDeal map[string]any

// Deal is the canonical promotional record.
type Deal struct {
	ID            string  `json:"id" validate:"required"`
	Restaurant    string  `json:"restaurant"`
	Cuisine       string  `json:"cuisine"`
	Title         string  `json:"title" validate:"max=120"`
	Description   string  `json:"description" validate:"max=255"`
	Savings       string  `json:"savings"`
	SavingsAmount string  `json:"savingsAmount"`
	ValidUntil    *string `json:"validUntil" validate:"omitempty,max=10"`
	Location      string  `json:"location" validate:"required,max=80"`
	Image         *string `json:"image"`
	ImageFallback *string `json:"imageFallback"`
}

// Source tags reported alongside a batch.
const (
	SourceCache = "cache"
	SourceLive  = "live"
)

// ScrapeResult is the scraper's cached batch.
type ScrapeResult struct {
	Deals     []Deal    `json:"deals"`
	FetchedAt time.Time `json:"fetchedAt"`
	Pages     int       `json:"pages"`
}
