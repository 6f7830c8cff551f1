package base

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Validator decides whether a fetched document carries the content an adapter needs
type Validator func(*goquery.Document) bool

// BaseScraper handles common fetching logic shared by all site adapters.
// Browser and Selenium are optional; nil disables that strategy.
type BaseScraper struct {
	Client   *http.Client
	Browser  *Browser
	Selenium *Selenium
}

// NewBaseScraper creates a BaseScraper with the shared HTTP client only
func NewBaseScraper() *BaseScraper {
	return &BaseScraper{
		Client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				ForceAttemptHTTP2:     false,
				TLSNextProto:          make(map[string]func(string, *tls.Conn) http.RoundTripper),
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
	}
}

// FetchDocument fetches the URL using multiple strategies with a custom validator
func (b *BaseScraper) FetchDocument(ctx context.Context, url string, validator Validator) (*goquery.Document, error) {
	if validator == nil {
		validator = isValidDocument
	}

	// Strategy 1: HTTP Client (Fastest)
	doc, err := b.FetchDocumentHTTP(ctx, url)
	if err == nil {
		if err = checkDocument(url, doc, validator); err == nil {
			log.Printf("[BaseScraper] HTTP Success: %s", url)
			return doc, nil
		}
		log.Printf("[BaseScraper] HTTP yielded invalid content (%v), trying fallbacks...", err)
	} else {
		log.Printf("[BaseScraper] HTTP Failed: %v", err)
	}
	failure := err

	// Strategy 2: ChromeDP (Headless)
	if b.Browser != nil && ctx.Err() == nil {
		log.Printf("[BaseScraper] Trying ChromeDP: %s", url)
		doc, err = b.documentFrom(ctx, url, validator, b.Browser.FetchHTML)
		if err == nil {
			log.Printf("[BaseScraper] ChromeDP Success")
			return doc, nil
		}
		log.Printf("[BaseScraper] ChromeDP Failed: %v", err)
		failure = worse(failure, err)
	}

	// Strategy 3: Selenium (Full Browser)
	if b.Selenium != nil && ctx.Err() == nil {
		log.Printf("[BaseScraper] Trying Selenium: %s", url)
		doc, err = b.documentFrom(ctx, url, validator, b.Selenium.FetchHTML)
		if err == nil {
			log.Printf("[BaseScraper] Selenium Success")
			return doc, nil
		}
		log.Printf("[BaseScraper] Selenium Failed: %v", err)
		failure = worse(failure, err)
	}

	if ctx.Err() != nil {
		return nil, Fail(url, ErrTimeout, ctx.Err())
	}
	return nil, Fail(url, KindOf(ctx, failure), fmt.Errorf("all strategies failed: %w", failure))
}

func (b *BaseScraper) documentFrom(ctx context.Context, url string, validator Validator, fetch func(context.Context, string) (string, error)) (*goquery.Document, error) {
	html, err := fetch(ctx, url)
	if err != nil {
		return nil, Fail(url, KindOf(ctx, err), err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, Fail(url, ErrParse, err)
	}
	if err := checkDocument(url, doc, validator); err != nil {
		return nil, err
	}
	return doc, nil
}

// worse keeps a blocked verdict over anything else so the caller sees the most telling reason
func worse(prev, next error) error {
	if prev != nil && KindOf(nil, prev) == ErrBlocked {
		return prev
	}
	return next
}

func checkDocument(url string, doc *goquery.Document, validator Validator) error {
	if isBlockedDocument(doc) {
		return Fail(url, ErrBlocked, fmt.Errorf("bot check page"))
	}
	if !validator(doc) {
		return Fail(url, ErrParse, fmt.Errorf("expected content missing"))
	}
	return nil
}

func isBlockedDocument(doc *goquery.Document) bool {
	// Check for common blocking titles/text
	lowerTitle := strings.ToLower(strings.TrimSpace(doc.Find("title").Text()))
	return strings.Contains(lowerTitle, "robot check") ||
		strings.Contains(lowerTitle, "captcha") ||
		strings.Contains(lowerTitle, "access denied") ||
		strings.Contains(lowerTitle, "are you a human")
}

func isValidDocument(doc *goquery.Document) bool {
	body := strings.TrimSpace(doc.Find("body").Text())
	return len(body) > 200 // Arbitrary small size check
}

// FetchDocumentHTTP fetches the URL and returns a GoQuery document via standard HTTP
func (b *BaseScraper) FetchDocumentHTTP(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, Fail(url, ErrParse, err)
	}

	// Common headers to mimic a real browser
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Ch-Ua", `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`)
	req.Header.Set("Sec-Ch-Ua-Mobile", "?0")
	req.Header.Set("Sec-Ch-Ua-Platform", `"macOS"`)
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	req.Header.Set("Sec-Fetch-User", "?1")

	res, err := b.Client.Do(req)
	if err != nil {
		return nil, Fail(url, KindOf(ctx, err), err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusForbidden || res.StatusCode == http.StatusTooManyRequests:
		return nil, Fail(url, ErrBlocked, fmt.Errorf("status code error: %d %s", res.StatusCode, res.Status))
	case res.StatusCode != http.StatusOK:
		return nil, Fail(url, ErrNetwork, fmt.Errorf("status code error: %d %s", res.StatusCode, res.Status))
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, Fail(url, KindOf(ctx, err), err)
	}

	return doc, nil
}

// Close releases the browser engines, if any were started
func (b *BaseScraper) Close() {
	if b.Browser != nil {
		b.Browser.Close()
	}
	if b.Selenium != nil {
		b.Selenium.Close()
	}
	b.Client.CloseIdleConnections()
}
