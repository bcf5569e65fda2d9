package capture_test

import (
	"context"
	"errors"
	"screenshot-batch/internal/browser"
	"screenshot-batch/internal/browser/browsertest"
	"screenshot-batch/internal/capture"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPreparePage(t *testing.T) {
	ctx := context.Background()

	t.Run("Declarative", func(t *testing.T) {
		page := &browsertest.Page{}
		err := capture.PreparePage(ctx, page, capture.Options{
			PageSetup: capture.PageSetup{
				Viewport:  &browser.Viewport{Width: 1280, Height: 720},
				UserAgent: "bot/1.0",
			},
		})
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"viewport 1280x720", "useragent bot/1.0"}, page.Calls()); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("OnlyUserAgent", func(t *testing.T) {
		page := &browsertest.Page{}
		if err := capture.PreparePage(ctx, page, capture.Options{
			PageSetup: capture.PageSetup{UserAgent: "bot/1.0"},
		}); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"useragent bot/1.0"}, page.Calls()); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		page := &browsertest.Page{}
		if err := capture.PreparePage(ctx, page, capture.Options{}); err != nil {
			t.Fatal(err)
		}
		if got := page.Calls(); len(got) != 0 {
			t.Errorf("expected no calls, got %v", got)
		}
	})

	t.Run("FuncWinsOverDeclarative", func(t *testing.T) {
		page := &browsertest.Page{}
		called := false
		err := capture.PreparePage(ctx, page, capture.Options{
			PageSetup: capture.PageSetup{UserAgent: "ignored"},
			PageSetupFunc: func(ctx context.Context, p browser.Page) error {
				called = true
				return p.SetViewport(ctx, browser.Viewport{Width: 10, Height: 20})
			},
		})
		if err != nil {
			t.Fatal(err)
		}
		if !called {
			t.Error("expected page setup func to be called")
		}
		if diff := cmp.Diff([]string{"viewport 10x20"}, page.Calls()); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("FuncError", func(t *testing.T) {
		fake := errors.New("fake")
		err := capture.PreparePage(ctx, &browsertest.Page{}, capture.Options{
			PageSetupFunc: func(ctx context.Context, p browser.Page) error {
				return fake
			},
		})
		if !errors.Is(err, fake) {
			t.Errorf("expected %v, got %v", fake, err)
		}
	})
}
