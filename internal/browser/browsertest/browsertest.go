// Package browsertest provides an in-memory browser engine for tests.
package browsertest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"screenshot-batch/internal/browser"
)

var ErrLaunch = errors.New("fake launch failure")

type Launcher struct {
	// LaunchErr, when set, fails every Launch.
	LaunchErr error
	// NewPageErr, when set, fails every NewPage.
	NewPageErr error
	// CloseErr, when set, is returned by every Session.Close.
	CloseErr error
	// Configure is called with every page before it is handed out.
	Configure func(*Page)

	mu       sync.Mutex
	sessions []*Session
}

func (l *Launcher) Launch(ctx context.Context, options browser.LaunchOptions) (browser.Session, error) {
	if l.LaunchErr != nil {
		return nil, l.LaunchErr
	}
	s := &Session{launcher: l, Options: options}

	l.mu.Lock()
	l.sessions = append(l.sessions, s)
	l.mu.Unlock()
	return s, nil
}

func (l *Launcher) Sessions() []*Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Session(nil), l.sessions...)
}

type Session struct {
	Options browser.LaunchOptions

	launcher *Launcher
	mu       sync.Mutex
	pages    []*Page
	closed   int
}

func (s *Session) NewPage(ctx context.Context, options browser.PageOptions) (browser.Page, error) {
	if s.launcher.NewPageErr != nil {
		return nil, s.launcher.NewPageErr
	}
	p := &Page{InnerHeight: 100, Options: options}
	if s.launcher.Configure != nil {
		s.launcher.Configure(p)
	}

	s.mu.Lock()
	s.pages = append(s.pages, p)
	s.mu.Unlock()
	return p, nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return s.launcher.CloseErr
}

func (s *Session) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) Pages() []*Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Page(nil), s.pages...)
}

// Page records every call as a short string, e.g. "goto https://x load".
type Page struct {
	// Options are the options the page was created with.
	Options browser.PageOptions
	// Heights are returned by successive measuring evaluations; the last one repeats.
	Heights     []float64
	InnerHeight float64
	// Errs maps a call prefix such as "goto https://x" or "screenshot" to the error it returns.
	Errs map[string]error

	mu       sync.Mutex
	calls    []string
	measured int
}

func (p *Page) record(call string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
	for prefix, err := range p.Errs {
		if strings.HasPrefix(call, prefix) {
			return err
		}
	}
	return nil
}

func (p *Page) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *Page) Goto(ctx context.Context, url string, waitUntil browser.WaitUntil) error {
	return p.record(fmt.Sprintf("goto %s %s", url, waitUntil))
}

func (p *Page) SetViewport(ctx context.Context, viewport browser.Viewport) error {
	return p.record(fmt.Sprintf("viewport %dx%d", viewport.Width, viewport.Height))
}

func (p *Page) SetUserAgent(ctx context.Context, userAgent string) error {
	return p.record("useragent " + userAgent)
}

func (p *Page) WaitForSelector(ctx context.Context, selector string) error {
	return p.record("wait " + selector)
}

// Evaluate answers any evaluation with a result target as a page measurement.
func (p *Page) Evaluate(ctx context.Context, expression string, out any) error {
	if out == nil {
		return p.record("eval " + expression)
	}
	if err := p.record("measure"); err != nil {
		return err
	}

	p.mu.Lock()
	height := 0.0
	if len(p.Heights) > 0 {
		i := p.measured
		if i >= len(p.Heights) {
			i = len(p.Heights) - 1
		}
		height = p.Heights[i]
	}
	p.measured++
	inner := p.InnerHeight
	p.mu.Unlock()

	b, err := json.Marshal(map[string]float64{
		"scrollHeight": height,
		"innerHeight":  inner,
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func (p *Page) Query(ctx context.Context, selector string) (browser.Element, error) {
	if err := p.record("query " + selector); err != nil {
		return nil, err
	}
	return &Element{page: p, Selector: selector}, nil
}

func (p *Page) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	if err := p.record(fmt.Sprintf("screenshot fullPage=%t", fullPage)); err != nil {
		return nil, err
	}
	return []byte("page"), nil
}

type Element struct {
	Selector string
	page     *Page
}

func (e *Element) Screenshot(ctx context.Context) ([]byte, error) {
	if err := e.page.record("element screenshot " + e.Selector); err != nil {
		return nil, err
	}
	return []byte("element " + e.Selector), nil
}
