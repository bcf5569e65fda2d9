package capture

import (
	"context"
	"fmt"

	"screenshot-batch/internal/browser"
)

// PreparePage applies the page setup of options to a fresh page.
func PreparePage(ctx context.Context, page browser.Page, options Options) error {
	if options.PageSetupFunc != nil {
		if err := options.PageSetupFunc(ctx, page); err != nil {
			return fmt.Errorf("failed to run page setup: %w", err)
		}
		return nil
	}

	if v := options.PageSetup.Viewport; v != nil {
		if err := page.SetViewport(ctx, *v); err != nil {
			return err
		}
	}
	if ua := options.PageSetup.UserAgent; ua != "" {
		if err := page.SetUserAgent(ctx, ua); err != nil {
			return err
		}
	}
	return nil
}
