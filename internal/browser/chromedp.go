package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
)

// ChromedpLauncher drives Chrome over the DevTools protocol without the
// playwright driver. Navigation always waits for the load event.
type ChromedpLauncher struct{}

func NewChromedpLauncher() *ChromedpLauncher {
	return &ChromedpLauncher{}
}

// allocatorFlags turns "--name" and "--name=value" arguments into chromedp flags.
func allocatorFlags(args []string) []chromedp.ExecAllocatorOption {
	flags := make([]chromedp.ExecAllocatorOption, 0, len(args))
	for _, arg := range args {
		arg = strings.TrimLeft(arg, "-")
		if arg == "" {
			continue
		}
		name, value, ok := strings.Cut(arg, "=")
		if !ok {
			flags = append(flags, chromedp.Flag(name, true))
			continue
		}
		flags = append(flags, chromedp.Flag(name, value))
	}
	return flags
}

func (l *ChromedpLauncher) Launch(ctx context.Context, options LaunchOptions) (Session, error) {
	var allocCtx context.Context
	var cancelAlloc context.CancelFunc

	if options.CDPURL == "" {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", options.Headless),
		)
		if options.ExecutablePath != "" {
			opts = append(opts, chromedp.ExecPath(options.ExecutablePath))
		}
		opts = append(opts, allocatorFlags(options.Args)...)
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(ctx, opts...)
	} else {
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(ctx, options.CDPURL)
	}

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	startCtx := browserCtx
	if options.Timeout > 0 {
		var cancel context.CancelFunc
		startCtx, cancel = context.WithTimeout(browserCtx, options.Timeout)
		defer cancel()
	}
	// The first Run on a fresh context starts (or attaches to) the browser.
	if err := chromedp.Run(startCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return &chromedpSession{
		remote:        options.CDPURL != "",
		ctx:           browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
		timeout:       options.Timeout,
	}, nil
}

type chromedpSession struct {
	// remote sessions are attached to a browser they did not start.
	remote        bool
	ctx           context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	timeout       time.Duration

	mu      sync.Mutex
	cancels []context.CancelFunc
}

func (s *chromedpSession) NewPage(ctx context.Context, options PageOptions) (Page, error) {
	tabCtx, cancel := chromedp.NewContext(s.ctx)
	var actions []chromedp.Action
	if options.UserAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(options.UserAgent))
	}
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	s.mu.Lock()
	s.cancels = append(s.cancels, cancel)
	s.mu.Unlock()

	return &chromedpPage{ctx: tabCtx, timeout: s.timeout}, nil
}

// Close closes the pages of the session. A launched browser is shut down;
// a remote one is only disconnected from and keeps running.
func (s *chromedpSession) Close() error {
	s.mu.Lock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.cancels = nil
	s.mu.Unlock()

	defer s.cancelAlloc()
	defer s.cancelBrowser()

	if s.remote {
		return nil
	}
	if err := chromedp.Cancel(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to close browser: %w", err)
	}
	return nil
}

type chromedpPage struct {
	ctx     context.Context
	timeout time.Duration
}

// run executes actions on the tab, bounded by the caller's context and the page timeout.
func (p *chromedpPage) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if p.timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, p.timeout)
		defer cancel()
	}

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (p *chromedpPage) Goto(ctx context.Context, url string, waitUntil WaitUntil) error {
	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (p *chromedpPage) SetViewport(ctx context.Context, viewport Viewport) error {
	if err := p.run(ctx, chromedp.EmulateViewport(int64(viewport.Width), int64(viewport.Height))); err != nil {
		return fmt.Errorf("failed to set viewport size: %w", err)
	}
	return nil
}

func (p *chromedpPage) SetUserAgent(ctx context.Context, userAgent string) error {
	if err := p.run(ctx, emulation.SetUserAgentOverride(userAgent)); err != nil {
		return fmt.Errorf("failed to set user agent: %w", err)
	}
	return nil
}

func (p *chromedpPage) WaitForSelector(ctx context.Context, selector string) error {
	if err := p.run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("failed to wait for %s: %w", selector, err)
	}
	return nil
}

func (p *chromedpPage) Evaluate(ctx context.Context, expression string, out any) error {
	if out == nil {
		var discard any
		out = &discard
	}
	if err := p.run(ctx, chromedp.Evaluate(expression, out)); err != nil {
		return fmt.Errorf("failed to evaluate script: %w", err)
	}
	return nil
}

func (p *chromedpPage) Query(ctx context.Context, selector string) (Element, error) {
	var nodes []*cdp.Node
	if err := p.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQuery, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", selector, err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("no element matches %s", selector)
	}
	return &chromedpElement{page: p, nodeID: nodes[0].NodeID}, nil
}

func (p *chromedpPage) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	var buf []byte
	var action chromedp.Action = chromedp.CaptureScreenshot(&buf)
	if fullPage {
		// quality 100 keeps the PNG encoding
		action = chromedp.FullScreenshot(&buf, 100)
	}
	if err := p.run(ctx, action); err != nil {
		return nil, fmt.Errorf("failed to take screenshot: %w", err)
	}
	return buf, nil
}

type chromedpElement struct {
	page   *chromedpPage
	nodeID cdp.NodeID
}

func (e *chromedpElement) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := e.page.run(ctx, chromedp.Screenshot([]cdp.NodeID{e.nodeID}, &buf, chromedp.ByNodeID)); err != nil {
		return nil, fmt.Errorf("failed to take element screenshot: %w", err)
	}
	return buf, nil
}
