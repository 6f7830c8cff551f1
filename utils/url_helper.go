package utils

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var shortLinkHosts = []string{"amzn.in", "amzn.to", "amzn.eu", "a.co", "bit.ly", "dl.flipkart.com", "fkrt.it", "myntr.it", "tinyurl.com"}

var resolveClient = &http.Client{
	Timeout: 15 * time.Second,
}

// HostOf returns the lower-cased host of rawURL without a leading "www."
func HostOf(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("invalid url %q: missing host", rawURL)
	}
	return strings.TrimPrefix(host, "www."), nil
}

// IsShortLink reports whether the URL points at a known link shortener
func IsShortLink(rawURL string) bool {
	host, err := HostOf(rawURL)
	if err != nil {
		return false
	}
	for _, h := range shortLinkHosts {
		if host == h {
			return true
		}
	}
	return false
}

// ResolveShortenedURL follows redirects to find the final URL
func ResolveShortenedURL(ctx context.Context, rawURL string) (string, error) {
	resolved, err := followRedirects(ctx, http.MethodHead, rawURL)
	if err == nil {
		return resolved, nil
	}
	// Some shorteners refuse HEAD.
	return followRedirects(ctx, http.MethodGet, rawURL)
}

func followRedirects(ctx context.Context, method, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return rawURL, err
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := resolveClient.Do(req)
	if err != nil {
		return rawURL, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return rawURL, fmt.Errorf("resolve %s: status %d", rawURL, resp.StatusCode)
	}
	return resp.Request.URL.String(), nil
}
