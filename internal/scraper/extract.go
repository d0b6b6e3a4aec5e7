package scraper

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pauljones0/live-deals/internal/models"
	"github.com/pauljones0/live-deals/internal/normalizer"
	"github.com/pauljones0/live-deals/internal/util"
)

// dedupPrefixLen is how much of a candidate's text decides whether two
// candidates are the same.
const dedupPrefixLen = 80

var dealPatterns = []*regexp.Regexp{
	// discount and BOGO phrasing
	regexp.MustCompile(`(?i)(?:\b(?:free|bogo|buy one get one|half ?off|\d+\s*%\s*off|save\s+\$)|\$\d+(?:\.\d{1,2})?\s*off)`),
	// promotional keywords
	regexp.MustCompile(`(?i)\b(?:coupon|deal|discount|promo|special offer|limited time)`),
	// validity phrasing followed by something date-like
	regexp.MustCompile(`(?i)\b(?:valid|expires?|through|until)(?:\s+(?:on|through|thru|until))?\s+(?:20\d{2}-\d{2}-\d{2}|(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2}\b|\d{1,2}/\d{1,2}(?:/\d{2,4})?\b)`),
}

var (
	isoDatePattern  = regexp.MustCompile(`\b(20\d{2})-(\d{2})-(\d{2})\b`)
	monthDayPattern = regexp.MustCompile(`(?i)\b(?:through|until|expires?|valid)\s+([a-z]+)\.?\s+(\d{1,2})\b`)
)

var monthNumbers = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// IsDealLike reports whether text matches any promotional pattern.
func IsDealLike(text string) bool {
	for _, p := range dealPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// ExtractDate finds an expiry date in text. An ISO literal wins over a
// "through <Month> <Day>" phrase, which is resolved against now's year.
// Matches that do not form a real calendar date are ignored; nil means no
// expiry was found.
func ExtractDate(text string, now time.Time) *string {
	for _, m := range isoDatePattern.FindAllString(text, -1) {
		if _, err := time.Parse(time.DateOnly, m); err == nil {
			return &m
		}
	}

	for _, m := range monthDayPattern.FindAllStringSubmatch(text, -1) {
		word := strings.ToLower(m[1])
		if len(word) < 3 {
			continue
		}
		month, ok := monthNumbers[word[:3]]
		if !ok {
			continue
		}
		day, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		date := fmt.Sprintf("%04d-%02d-%02d", now.UTC().Year(), month, day)
		if _, err := time.Parse(time.DateOnly, date); err == nil {
			return &date
		}
	}
	return nil
}

type extractor struct {
	sel         SelectorConfig
	excludeHref *regexp.Regexp
}

func newExtractor(sel SelectorConfig) *extractor {
	pattern, err := regexp.Compile(sel.Links.ExcludeHrefPattern)
	if err != nil || sel.Links.ExcludeHrefPattern == "" {
		if err != nil {
			slog.Warn("Invalid exclude_href_pattern, using default", "pattern", sel.Links.ExcludeHrefPattern, "error", err)
		}
		pattern = regexp.MustCompile(DefaultSelectors().Links.ExcludeHrefPattern)
	}
	return &extractor{sel: sel, excludeHref: pattern}
}

// candidates gathers link, heading and keyword-block texts in that order.
// Only length bounds apply here; prefix dedup happens after classification.
func (e *extractor) candidates(doc *goquery.Document) []string {
	var out []string
	add := func(text string, minLen, maxLen, truncateTo int) {
		n := util.RuneLen(text)
		if n < minLen || n > maxLen {
			return
		}
		if truncateTo > 0 {
			text = util.Truncate(text, truncateTo)
		}
		out = append(out, text)
	}

	links := e.sel.Links
	doc.Find(links.Item).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if e.excludeHref.MatchString(strings.TrimSpace(href)) {
			return
		}
		add(util.CollapseWhitespace(s.Text()), links.MinLen, links.MaxLen, 0)
	})

	headings := e.sel.Headings
	doc.Find(headings.Item).Each(func(_ int, s *goquery.Selection) {
		add(util.CollapseWhitespace(s.Text()), headings.MinLen, headings.MaxLen, 0)
	})

	blocks := e.sel.Blocks
	doc.Find(blocks.Item).Each(func(_ int, s *goquery.Selection) {
		if !e.hasKeyword(s) {
			return
		}
		add(util.CollapseWhitespace(s.Text()), blocks.MinLen, blocks.MaxLen, blocks.TruncateTo)
	})

	return out
}

func (e *extractor) hasKeyword(s *goquery.Selection) bool {
	for _, attr := range e.sel.Blocks.Attributes {
		v, ok := s.Attr(attr)
		if !ok {
			continue
		}
		v = strings.ToLower(v)
		for _, kw := range e.sel.Blocks.Keywords {
			if strings.Contains(v, strings.ToLower(kw)) {
				return true
			}
		}
	}
	return false
}

// extract turns the deal-like candidates of one page into normalized deals
// attributed to the page's host.
func (e *extractor) extract(doc *goquery.Document, page *url.URL, now time.Time) []models.Deal {
	restaurant := util.HostToName(page.Hostname())

	var deals []models.Deal
	seen := make(map[string]bool)
	for _, text := range e.candidates(doc) {
		if !IsDealLike(text) {
			continue
		}
		key := strings.ToLower(util.Truncate(text, dedupPrefixLen))
		if seen[key] {
			continue
		}
		seen[key] = true
		raw := models.RawDeal{
			"title":       util.Truncate(text, models.MaxTitleLen),
			"description": util.Truncate(text, models.MaxDescriptionLen),
			"restaurant":  restaurant,
			"location":    models.OnlineLocation,
		}
		if date := ExtractDate(text, now); date != nil {
			raw["validUntil"] = *date
		}
		deals = append(deals, normalizer.Normalize(raw, len(deals), sourceLabel))
	}
	return deals
}

// dedupeByRestaurantTitle keeps the first deal for each (restaurant, title).
func dedupeByRestaurantTitle(deals []models.Deal) []models.Deal {
	seen := make(map[string]bool, len(deals))
	out := make([]models.Deal, 0, len(deals))
	for _, d := range deals {
		key := d.Restaurant + "\x00" + d.Title
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d)
	}
	return out
}
