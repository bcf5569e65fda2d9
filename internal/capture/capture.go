package capture

import (
	"context"
	"time"

	"screenshot-batch/internal/browser"
)

// Task is the configuration of one screenshot.
type Task struct {
	// Name identifies the task in logs and names its output file.
	Name string
	// URL is optional. Without it the current page state is captured.
	URL       string
	WaitUntil browser.WaitUntil
	WaitFor   WaitCondition
	Before    BeforeFunc
	// PageScroll enables the lazy-load scroll pass after navigation. nil means enabled.
	PageScroll         *bool
	PageScrollInterval time.Duration
}

func (t Task) scrollEnabled() bool {
	return t.PageScroll == nil || *t.PageScroll
}

// WaitCondition blocks a capture until Selector appears, or for Delay. The
// selector wins when both are set.
type WaitCondition struct {
	Selector string
	Delay    time.Duration
}

func (w WaitCondition) IsZero() bool {
	return w.Selector == "" && w.Delay <= 0
}

// BeforeFunc runs right before the capture. A non-nil element becomes the
// capture target instead of the full page.
type BeforeFunc func(ctx context.Context, page browser.Page) (browser.Element, error)

// PageSetup is applied once to every fresh page. Zero fields are left alone.
type PageSetup struct {
	Viewport  *browser.Viewport `json:"viewport,omitempty" yaml:"viewport,omitempty"`
	UserAgent string            `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`
}

type PageSetupFunc func(ctx context.Context, page browser.Page) error

type Options struct {
	Dir                  string
	FilePrefix           string
	FileSuffix           string
	BrowserLaunchOptions browser.LaunchOptions
	PageSetup            PageSetup
	// PageSetupFunc replaces PageSetup when set.
	PageSetupFunc PageSetupFunc
	// MaxScrollPasses bounds the scroll protocol on pages that keep growing.
	MaxScrollPasses int
}

// PageOptions are the options every fresh page is created with.
func (o Options) PageOptions() browser.PageOptions {
	if o.PageSetupFunc != nil {
		return browser.PageOptions{}
	}
	return browser.PageOptions{UserAgent: o.PageSetup.UserAgent}
}

const (
	DefaultScrollInterval  = 500 * time.Millisecond
	DefaultMaxScrollPasses = 10
)

func DefaultOptions() Options {
	return Options{
		Dir:                  "screenshots",
		BrowserLaunchOptions: browser.DefaultLaunchOptions(),
		MaxScrollPasses:      DefaultMaxScrollPasses,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
