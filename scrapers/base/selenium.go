package base

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
)

// Anti-bot scripts
const maskScript = `
        Object.defineProperty(navigator, 'webdriver', {get: () => undefined});
        window.chrome = {runtime: {}};
    `

// Selenium drives a full browser through WebDriver, either a remote hub or a
// local chromedriver service started once on first use.
type Selenium struct {
	remoteURL  string
	driverPath string
	port       int

	mu      sync.Mutex
	service *selenium.Service
}

// NewSelenium configures the WebDriver strategy. remoteURL wins over driverPath.
func NewSelenium(remoteURL, driverPath string, port int) *Selenium {
	return &Selenium{remoteURL: remoteURL, driverPath: driverPath, port: port}
}

func (s *Selenium) endpoint() (string, error) {
	if s.remoteURL != "" {
		return s.remoteURL, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.service == nil {
		service, err := selenium.NewChromeDriverService(s.driverPath, s.port)
		if err != nil {
			return "", fmt.Errorf("error starting Chrome driver service: %w", err)
		}
		log.Printf("[Selenium] chromedriver started on port %d", s.port)
		s.service = service
	}
	return fmt.Sprintf("http://localhost:%d/wd/hub", s.port), nil
}

// FetchHTML opens a WebDriver session, loads url and returns the page source.
// WebDriver calls are not context aware, so the session runs in its own goroutine.
func (s *Selenium) FetchHTML(ctx context.Context, url string) (string, error) {
	endpoint, err := s.endpoint()
	if err != nil {
		return "", err
	}

	type result struct {
		html string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		html, err := s.session(ctx, endpoint, url)
		done <- result{html, err}
	}()

	select {
	case r := <-done:
		return r.html, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("selenium: %w", ctx.Err())
	}
}

func (s *Selenium) session(ctx context.Context, endpoint, url string) (string, error) {
	caps := selenium.Capabilities{"browserName": "chrome"}
	caps.AddChrome(chrome.Capabilities{
		Args: []string{
			"--headless=new", // Use new headless
			"--no-sandbox",
			"--disable-dev-shm-usage",
			"--disable-blink-features=AutomationControlled",
			"--disable-extensions",
			"--disable-gpu",
			"--window-size=1920,1080",
			fmt.Sprintf("--user-agent=%s", userAgent),
		},
		ExcludeSwitches: []string{"enable-automation"},
	})

	driver, err := selenium.NewRemote(caps, endpoint)
	if err != nil {
		return "", fmt.Errorf("error creating WebDriver: %w", err)
	}
	defer driver.Quit()

	pageLoad := 60 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		pageLoad = time.Until(deadline)
	}
	if err := driver.SetPageLoadTimeout(pageLoad); err != nil {
		return "", fmt.Errorf("page load timeout: %w", err)
	}

	if err := driver.Get(url); err != nil {
		return "", fmt.Errorf("navigation error: %w", err)
	}
	if _, err := driver.ExecuteScript(maskScript, nil); err != nil {
		log.Printf("[Selenium] mask script failed: %v", err)
	}

	html, err := driver.PageSource()
	if err != nil {
		return "", fmt.Errorf("page source error: %w", err)
	}
	return html, nil
}

// Close stops the local chromedriver service if it was started
func (s *Selenium) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.service != nil {
		if err := s.service.Stop(); err != nil {
			log.Printf("[Selenium] stop chromedriver: %v", err)
		}
		s.service = nil
	}
}
