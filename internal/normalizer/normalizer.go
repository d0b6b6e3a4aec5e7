// Package normalizer maps heterogeneous upstream records onto models.Deal and
// enforces the batch invariants every source must satisfy before caching.
package normalizer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/pauljones0/live-deals/internal/models"
	"github.com/pauljones0/live-deals/internal/util"
	"github.com/pauljones0/live-deals/internal/validator"
)

// Synonym keys per canonical field, in priority order.
var (
	titleKeys         = []string{"title", "headline", "name"}
	descriptionKeys   = []string{"description"}
	restaurantKeys    = []string{"restaurant", "restaurant_name"}
	validUntilKeys    = []string{"validUntil", "date_end", "expires"}
	cuisineKeys       = []string{"cuisine", "cuisine_type_primary"}
	idKeys            = []string{"id"}
	locationKeys      = []string{"location"}
	savingsKeys       = []string{"savings"}
	savingsAmountKeys = []string{"savingsAmount", "savings_amount"}
	imageKeys         = []string{"image"}
	imageFallbackKeys = []string{"imageFallback", "image_fallback"}
)

// Normalize maps one raw record to a canonical Deal. label names the source
// and is used to synthesize an id when the record carries none.
func Normalize(raw models.RawDeal, index int, label string) models.Deal {
	restaurant := lookupOr(raw, restaurantKeys, models.DefaultRestaurant)

	id, ok := lookup(raw, idKeys)
	if !ok || id == "" {
		id = fmt.Sprintf("%s-%d-%s", label, index, util.SanitizeIdentifier(restaurant))
	}

	var validUntil *string
	if v, ok := lookup(raw, validUntilKeys); ok && v != "" {
		v = util.Truncate(v, models.DateLen)
		validUntil = &v
	}

	location, ok := lookup(raw, locationKeys)
	if !ok {
		location = models.DefaultLocation
		if city, ok := lookup(raw, []string{"city_town"}); ok && city != "" {
			address, _ := lookup(raw, []string{"address_1"})
			location = strings.TrimSpace(city + ", " + address)
		}
	}
	location = util.Truncate(location, models.MaxLocationLen)
	if location == "" {
		location = models.DefaultLocation
	}

	return models.Deal{
		ID:            id,
		Restaurant:    restaurant,
		Cuisine:       lookupOr(raw, cuisineKeys, models.DefaultCuisine),
		Title:         util.Truncate(lookupOr(raw, titleKeys, ""), models.MaxTitleLen),
		Description:   util.Truncate(lookupOr(raw, descriptionKeys, ""), models.MaxDescriptionLen),
		Savings:       lookupOr(raw, savingsKeys, models.DefaultSavings),
		SavingsAmount: lookupOr(raw, savingsAmountKeys, ""),
		ValidUntil:    validUntil,
		Location:      location,
		Image:         lookupPtr(raw, imageKeys),
		ImageFallback: lookupPtr(raw, imageFallbackKeys),
	}
}

// Today formats the reference date used by the expiry filter.
func Today(now time.Time) string {
	return now.UTC().Format(time.DateOnly)
}

// FilterUnexpired keeps deals with no expiry or an expiry on or after today.
func FilterUnexpired(deals []models.Deal, today string) []models.Deal {
	out := make([]models.Deal, 0, len(deals))
	for _, d := range deals {
		if d.ValidUntil == nil || *d.ValidUntil >= today {
			out = append(out, d)
		}
	}
	return out
}

var dealValidator = validator.New()

// Batch normalizes raws, drops records that fail validation, filters expired
// deals and makes ids unique. It is the single path a source batch takes
// before it may be cached.
func Batch(raws []models.RawDeal, label string, now time.Time) []models.Deal {
	deals := make([]models.Deal, 0, len(raws))
	for i, raw := range raws {
		deals = append(deals, Normalize(raw, i, label))
	}
	return Finalize(deals, label, now)
}

// Finalize applies validation, the expiry filter and id de-duplication to
// already-normalized deals.
func Finalize(deals []models.Deal, label string, now time.Time) []models.Deal {
	valid := make([]models.Deal, 0, len(deals))
	for _, d := range deals {
		if err := dealValidator.ValidateDeal(d); err != nil {
			slog.Warn("Dropping invalid deal", "source", label, "id", d.ID, "error", err)
			continue
		}
		valid = append(valid, d)
	}
	return UniqueIDs(FilterUnexpired(valid, Today(now)))
}

// UniqueIDs suffixes repeated ids with "-2", "-3", ... so ids are unique
// within the batch. The first occurrence keeps its id.
func UniqueIDs(deals []models.Deal) []models.Deal {
	seen := make(map[string]bool, len(deals))
	for i := range deals {
		id := deals[i].ID
		if !seen[id] {
			seen[id] = true
			continue
		}
		for n := 2; ; n++ {
			candidate := id + "-" + strconv.Itoa(n)
			if !seen[candidate] {
				deals[i].ID = candidate
				seen[candidate] = true
				break
			}
		}
	}
	return deals
}

func lookupOr(raw models.RawDeal, keys []string, def string) string {
	if v, ok := lookup(raw, keys); ok {
		return v
	}
	return def
}

func lookupPtr(raw models.RawDeal, keys []string) *string {
	if v, ok := lookup(raw, keys); ok {
		return &v
	}
	return nil
}

// lookup returns the first key holding a scalar value.
func lookup(raw models.RawDeal, keys []string) (string, bool) {
	for _, k := range keys {
		v, present := raw[k]
		if !present {
			continue
		}
		if s, ok := scalarString(v); ok {
			return s, true
		}
	}
	return "", false
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}
