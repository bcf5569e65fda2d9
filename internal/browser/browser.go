package browser

import (
	"context"
	"time"
)

type WaitUntil string

const (
	WaitUntilLoad             WaitUntil = "load"
	WaitUntilDOMContentLoaded WaitUntil = "domcontentloaded"
	WaitUntilNetworkIdle      WaitUntil = "networkidle"
	WaitUntilCommit           WaitUntil = "commit"
)

type Viewport struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

type LaunchOptions struct {
	// Engine is "playwright" or "chromedp".
	Engine string `json:"engine,omitempty" yaml:"engine,omitempty"`
	// Browser is the playwright browser type: chromium, firefox or webkit.
	Browser        string        `json:"browser,omitempty" yaml:"browser,omitempty"`
	Headless       bool          `json:"headless" yaml:"headless"`
	Args           []string      `json:"args,omitempty" yaml:"args,omitempty"`
	ExecutablePath string        `json:"executablePath,omitempty" yaml:"executablePath,omitempty"`
	Timeout        time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// CDPURL connects to a running browser instead of launching one.
	CDPURL string `json:"cdpURL,omitempty" yaml:"cdpURL,omitempty"`
}

func DefaultLaunchOptions() LaunchOptions {
	return LaunchOptions{
		Engine:   "playwright",
		Browser:  "chromium",
		Headless: true,
		Timeout:  30 * time.Second,
	}
}

type Launcher interface {
	// Launch starts a browser session. The caller owns the session and must Close it.
	Launch(ctx context.Context, options LaunchOptions) (Session, error)
}

// PageOptions are fixed when a page is created.
type PageOptions struct {
	// UserAgent, when set, is reported by every request and by navigator.userAgent.
	UserAgent string
}

type Session interface {
	NewPage(ctx context.Context, options PageOptions) (Page, error)
	Close() error
}

type Page interface {
	Goto(ctx context.Context, url string, waitUntil WaitUntil) error
	SetViewport(ctx context.Context, viewport Viewport) error
	SetUserAgent(ctx context.Context, userAgent string) error
	WaitForSelector(ctx context.Context, selector string) error
	// Evaluate runs expression in the page and decodes its result into out.
	// out may be nil when the result is not needed.
	Evaluate(ctx context.Context, expression string, out any) error
	Query(ctx context.Context, selector string) (Element, error)
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
}

// Element is a part of the page that can be captured on its own.
type Element interface {
	Screenshot(ctx context.Context) ([]byte, error)
}
