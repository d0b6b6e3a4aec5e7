package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/playwright-community/playwright-go"
	"golang.org/x/net/html/charset"
)

// Fetcher loads a page and returns its parsed document.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (*goquery.Document, error)
}

// HTTPFetcher issues plain GET requests and decodes the body to UTF-8.
type HTTPFetcher struct {
	httpClient *http.Client
	userAgent  string
}

func NewHTTPFetcher(timeout time.Duration, userAgent string) *HTTPFetcher {
	return &HTTPFetcher{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for URL %s: %w", pageURL, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	res, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL %s: %w", pageURL, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch URL %s: status code %d", pageURL, res.StatusCode)
	}

	body, err := charset.NewReader(res.Body, res.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("failed to decode body of %s: %w", pageURL, err)
	}
	return goquery.NewDocumentFromReader(body)
}

// BrowserFetcher renders the page in headless Chrome so script-built markup
// is visible to the extractor.
type BrowserFetcher struct {
	timeout   time.Duration
	userAgent string
}

func NewBrowserFetcher(timeout time.Duration, userAgent string) *BrowserFetcher {
	return &BrowserFetcher{timeout: timeout, userAgent: userAgent}
}

func (f *BrowserFetcher) Fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.UserAgent(f.userAgent))
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	browserCtx, cancel := context.WithTimeout(browserCtx, f.timeout)
	defer cancel()

	var html string
	if err := chromedp.Run(browserCtx,
		chromedp.Navigate(pageURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return nil, fmt.Errorf("failed to render URL %s: %w", pageURL, err)
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// PlaywrightFetcher renders pages with a Playwright-driven Chromium. The
// driver and browser must already be installed.
type PlaywrightFetcher struct {
	timeout   time.Duration
	userAgent string
}

func NewPlaywrightFetcher(timeout time.Duration, userAgent string) *PlaywrightFetcher {
	return &PlaywrightFetcher{timeout: timeout, userAgent: userAgent}
}

func (f *PlaywrightFetcher) Fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}
	defer pw.Stop()

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{Headless: playwright.Bool(true)})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.NewPage(playwright.BrowserNewPageOptions{UserAgent: playwright.String(f.userAgent)})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	timeoutMs := float64(f.timeout.Milliseconds())
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := float64(time.Until(deadline).Milliseconds()); remaining < timeoutMs {
			timeoutMs = remaining
		}
	}
	if _, err := page.Goto(pageURL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(timeoutMs),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return nil, fmt.Errorf("failed to render URL %s: %w", pageURL, err)
	}

	html, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to read content of %s: %w", pageURL, err)
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}
