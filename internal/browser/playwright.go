package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/playwright-community/playwright-go"
)

type PlaywrightLauncher struct {
	mu sync.Mutex
	pw *playwright.Playwright
}

func NewPlaywrightLauncher() *PlaywrightLauncher {
	return &PlaywrightLauncher{}
}

// Install downloads the playwright driver and the given browsers.
func Install(browsers ...string) error {
	if len(browsers) == 0 {
		browsers = []string{"chromium"}
	}
	if err := playwright.Install(&playwright.RunOptions{
		Browsers: browsers,
	}); err != nil {
		return fmt.Errorf("failed to install playwright browsers: %w", err)
	}
	return nil
}

func (l *PlaywrightLauncher) driver() (*playwright.Playwright, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pw != nil {
		return l.pw, nil
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}
	l.pw = pw
	return pw, nil
}

// Stop shuts down the playwright driver shared by every session of this launcher.
func (l *PlaywrightLauncher) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pw == nil {
		return nil
	}
	err := l.pw.Stop()
	l.pw = nil
	if err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}

func (l *PlaywrightLauncher) Launch(ctx context.Context, options LaunchOptions) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := l.driver()
	if err != nil {
		return nil, err
	}

	var browserType playwright.BrowserType
	switch options.Browser {
	case "", "chromium":
		browserType = pw.Chromium
	case "firefox":
		browserType = pw.Firefox
	case "webkit":
		browserType = pw.WebKit
	default:
		return nil, fmt.Errorf("unknown browser: %s", options.Browser)
	}

	var b playwright.Browser
	if options.CDPURL == "" {
		launchOptions := playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(options.Headless),
			Args:     options.Args,
		}
		if options.ExecutablePath != "" {
			launchOptions.ExecutablePath = playwright.String(options.ExecutablePath)
		}
		if options.Timeout > 0 {
			launchOptions.Timeout = playwright.Float(float64(options.Timeout.Milliseconds()))
		}
		b, err = browserType.Launch(launchOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
	} else {
		b, err = browserType.ConnectOverCDP(options.CDPURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to browser via CDP at %s: %w", options.CDPURL, err)
		}
	}

	return &playwrightSession{
		browser: b,
		timeout: float64(options.Timeout.Milliseconds()),
		done:    make(chan struct{}),
	}, nil
}

type playwrightSession struct {
	browser   playwright.Browser
	timeout   float64
	done      chan struct{}
	closeOnce sync.Once
}

func newContextOptions(options PageOptions) playwright.BrowserNewContextOptions {
	var o playwright.BrowserNewContextOptions
	if options.UserAgent != "" {
		o.UserAgent = playwright.String(options.UserAgent)
	}
	return o
}

// NewPage opens the page in a browser context of its own so the user agent
// applies to scripts as well as requests.
func (s *playwrightSession) NewPage(ctx context.Context, options PageOptions) (Page, error) {
	bc, err := s.browser.NewContext(newContextOptions(options))
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	page, err := bc.NewPage()
	if err != nil {
		bc.Close()
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}
	if s.timeout > 0 {
		page.SetDefaultTimeout(s.timeout)
		page.SetDefaultNavigationTimeout(s.timeout)
	}

	go func() {
		select {
		case <-ctx.Done():
			bc.Close()
		case <-s.done:
		}
	}()

	return &playwrightPage{page: page, userAgent: options.UserAgent}, nil
}

func (s *playwrightSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		if cerr := s.browser.Close(); cerr != nil {
			err = fmt.Errorf("failed to close browser: %w", cerr)
		}
	})
	return err
}

type playwrightPage struct {
	page playwright.Page
	// userAgent is the one the page was created with.
	userAgent string
}

func waitUntilState(w WaitUntil) *playwright.WaitUntilState {
	switch w {
	case WaitUntilDOMContentLoaded:
		return playwright.WaitUntilStateDomcontentloaded
	case WaitUntilNetworkIdle:
		return playwright.WaitUntilStateNetworkidle
	case WaitUntilCommit:
		return playwright.WaitUntilStateCommit
	default:
		return playwright.WaitUntilStateLoad
	}
}

func (p *playwrightPage) Goto(ctx context.Context, url string, waitUntil WaitUntil) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: waitUntilState(waitUntil),
	}); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (p *playwrightPage) SetViewport(ctx context.Context, viewport Viewport) error {
	if err := p.page.SetViewportSize(viewport.Width, viewport.Height); err != nil {
		return fmt.Errorf("failed to set viewport size: %w", err)
	}
	return nil
}

// SetUserAgent overrides the User-Agent header of every request made by the
// page. navigator.userAgent only follows when the page was created with the
// same user agent in PageOptions.
func (p *playwrightPage) SetUserAgent(ctx context.Context, userAgent string) error {
	if userAgent == p.userAgent {
		return nil
	}
	if err := p.page.SetExtraHTTPHeaders(map[string]string{
		"User-Agent": userAgent,
	}); err != nil {
		return fmt.Errorf("failed to set user agent: %w", err)
	}
	return nil
}

func (p *playwrightPage) WaitForSelector(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.page.Locator(selector).First().WaitFor(); err != nil {
		return fmt.Errorf("failed to wait for %s: %w", selector, err)
	}
	return nil
}

func (p *playwrightPage) Evaluate(ctx context.Context, expression string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	result, err := p.page.Evaluate(expression)
	if err != nil {
		return fmt.Errorf("failed to evaluate script: %w", err)
	}
	if out == nil {
		return nil
	}

	// playwright hands back generic values; round-trip them into out.
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode evaluation result: %w", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("failed to decode evaluation result: %w", err)
	}
	return nil
}

func (p *playwrightPage) Query(ctx context.Context, selector string) (Element, error) {
	locator := p.page.Locator(selector).First()
	count, err := locator.Count()
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", selector, err)
	}
	if count == 0 {
		return nil, fmt.Errorf("no element matches %s", selector)
	}
	return &playwrightElement{locator: locator}, nil
}

func (p *playwrightPage) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(fullPage),
		Type:     playwright.ScreenshotTypePng,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to take screenshot: %w", err)
	}
	return b, nil
}

type playwrightElement struct {
	locator playwright.Locator
}

func (e *playwrightElement) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := e.locator.Screenshot(playwright.LocatorScreenshotOptions{
		Type: playwright.ScreenshotTypePng,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to take element screenshot: %w", err)
	}
	return b, nil
}
