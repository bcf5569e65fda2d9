package capture

import (
	"context"
	"fmt"

	"screenshot-batch/internal/browser"
)

// SelectElement makes the first element matching selector the capture target.
func SelectElement(selector string) BeforeFunc {
	return func(ctx context.Context, page browser.Page) (browser.Element, error) {
		return page.Query(ctx, selector)
	}
}

// EvaluateScript runs script in the page and keeps the full-page target.
func EvaluateScript(script string) BeforeFunc {
	return func(ctx context.Context, page browser.Page) (browser.Element, error) {
		if err := page.Evaluate(ctx, script, nil); err != nil {
			return nil, err
		}
		return nil, nil
	}
}

// Chain runs hooks in order. The last non-nil element wins.
func Chain(hooks ...BeforeFunc) BeforeFunc {
	return func(ctx context.Context, page browser.Page) (browser.Element, error) {
		var target browser.Element
		for i, hook := range hooks {
			if hook == nil {
				continue
			}
			element, err := hook(ctx, page)
			if err != nil {
				return nil, fmt.Errorf("hook %d: %w", i, err)
			}
			if element != nil {
				target = element
			}
		}
		return target, nil
	}
}
