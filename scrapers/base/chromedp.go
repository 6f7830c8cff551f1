package base

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var browserHeaders = map[string]interface{}{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.5",
	"Upgrade-Insecure-Requests": "1",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
	"Sec-Fetch-User":            "?1",
}

// Browser is one headless Chrome shared by all workers.
// It starts on the first fetch and every fetch opens its own tab.
type Browser struct {
	opts   []chromedp.ExecAllocatorOption
	settle time.Duration

	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewBrowser configures the shared browser. execPath may be empty to use the default lookup.
func NewBrowser(execPath string) *Browser {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"), // Use new headless mode
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(userAgent),
		chromedp.WindowSize(1920, 1080),
	)
	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}
	return &Browser{opts: opts, settle: 2 * time.Second}
}

func (b *Browser) acquire() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browserCtx != nil && b.browserCtx.Err() == nil {
		return b.browserCtx, nil
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), b.opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// An empty Run launches the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp launch error: %w", err)
	}

	log.Println("[Browser] headless chrome started")
	b.allocCancel = allocCancel
	b.browserCtx = browserCtx
	b.browserCancel = browserCancel
	return browserCtx, nil
}

// FetchHTML opens a tab, loads url and returns the rendered page
func (b *Browser) FetchHTML(ctx context.Context, url string) (string, error) {
	browserCtx, err := b.acquire()
	if err != nil {
		return "", err
	}

	tabCtx, cancel := chromedp.NewContext(browserCtx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		tabCtx, cancelDeadline = context.WithDeadline(tabCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var htmlContent string
	err = chromedp.Run(tabCtx,
		network.SetExtraHTTPHeaders(network.Headers(browserHeaders)),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(b.settle+time.Duration(rand.Int63n(int64(2*time.Second)))), // Random delay
		chromedp.OuterHTML("html", &htmlContent),
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("chromedp navigation error: %w", ctx.Err())
		}
		return "", fmt.Errorf("chromedp navigation error: %w", err)
	}
	return htmlContent, nil
}

// Close shuts the browser down. A later fetch starts a new one.
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browserCancel != nil {
		b.browserCancel()
		b.allocCancel()
		log.Println("[Browser] headless chrome stopped")
	}
	b.browserCtx = nil
	b.browserCancel = nil
	b.allocCancel = nil
}
