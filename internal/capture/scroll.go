package capture

import (
	"context"
	"fmt"
	"math"
	"time"

	"screenshot-batch/internal/browser"
)

const (
	measureScript = `({
	scrollHeight: Math.max(document.body ? document.body.scrollHeight : 0, document.documentElement.scrollHeight),
	innerHeight: window.innerHeight
})`
	scrollStepScript = `window.scrollBy(0, window.innerHeight)`
	scrollTopScript  = `window.scrollTo(0, 0)`
)

type pageMetrics struct {
	ScrollHeight float64 `json:"scrollHeight"`
	InnerHeight  float64 `json:"innerHeight"`
}

func measure(ctx context.Context, page browser.Page) (pageMetrics, error) {
	var m pageMetrics
	if err := page.Evaluate(ctx, measureScript, &m); err != nil {
		return pageMetrics{}, fmt.Errorf("failed to measure page: %w", err)
	}
	return m, nil
}

// scrollSteps is the number of viewport-high scrolls needed to reach the
// bottom. A page without a viewport height needs none.
func scrollSteps(m pageMetrics) int {
	if m.InnerHeight <= 0 || m.ScrollHeight <= 0 {
		return 0
	}
	return int(math.Ceil(m.ScrollHeight / m.InnerHeight))
}

// ScrollPage walks the page one viewport at a time so lazily loaded content
// renders, repeating while the page keeps growing, at most maxPasses times.
// The page is always scrolled back to the top, including after an error.
func ScrollPage(ctx context.Context, page browser.Page, interval time.Duration, maxPasses int) (err error) {
	if interval <= 0 {
		interval = DefaultScrollInterval
	}
	if maxPasses <= 0 {
		maxPasses = DefaultMaxScrollPasses
	}

	defer func() {
		if topErr := page.Evaluate(ctx, scrollTopScript, nil); topErr != nil && err == nil {
			err = fmt.Errorf("failed to scroll to top: %w", topErr)
		}
	}()

	for pass := 0; pass < maxPasses; pass++ {
		if err := sleep(ctx, interval); err != nil {
			return err
		}

		before, err := measure(ctx, page)
		if err != nil {
			return err
		}

		steps := scrollSteps(before)
		if steps == 0 {
			return nil
		}
		for i := 0; i < steps; i++ {
			if err := page.Evaluate(ctx, scrollStepScript, nil); err != nil {
				return fmt.Errorf("failed to scroll page: %w", err)
			}
			if err := sleep(ctx, interval); err != nil {
				return err
			}
		}

		after, err := measure(ctx, page)
		if err != nil {
			return err
		}
		if after.ScrollHeight <= before.ScrollHeight {
			return nil
		}
	}
	return nil
}
