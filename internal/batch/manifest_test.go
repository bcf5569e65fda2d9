package batch_test

import (
	"context"
	"screenshot-batch/internal/batch"
	"screenshot-batch/internal/browser"
	"screenshot-batch/internal/browser/browsertest"
	"screenshot-batch/internal/capture"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const manifest = `
dir: out
filePrefix: home-
browserLaunchOptions:
  engine: chromedp
  args: ["--no-sandbox"]
pageSetup:
  viewport:
    width: 1280
    height: 720
  userAgent: bot
tasks:
  - name: a
    url: https://x
    waitUntil: networkidle
    waitForDelay: 250ms
  - - name: b
      url: https://y
      pageScroll: false
      pageScrollInterval: 1s
    - name: c
      waitForSelector: "#main"
      script: window.hideBanners()
      element: "#main"
`

func TestDecodeManifest(t *testing.T) {
	m, err := batch.DecodeManifest(strings.NewReader(manifest))
	if err != nil {
		t.Fatal(err)
	}

	options := m.Options()
	wantLaunch := browser.DefaultLaunchOptions()
	wantLaunch.Engine = "chromedp"
	wantLaunch.Args = []string{"--no-sandbox"}
	if diff := cmp.Diff(wantLaunch, options.BrowserLaunchOptions); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(capture.PageSetup{Viewport: &browser.Viewport{Width: 1280, Height: 720}, UserAgent: "bot"}, options.PageSetup); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"out", "home-", ""}, []string{options.Dir, options.FilePrefix, options.FileSuffix}); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(capture.DefaultMaxScrollPasses, options.MaxScrollPasses); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	groups := batch.Partition(m.Entries())
	if diff := cmp.Diff(2, len(groups)); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}

	explicit := groups[0]
	if diff := cmp.Diff([]string{"b", "c"}, []string{explicit[0].Name, explicit[1].Name}); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if explicit[0].PageScroll == nil || *explicit[0].PageScroll {
		t.Errorf("expected pageScroll false, got %v", explicit[0].PageScroll)
	}
	if diff := cmp.Diff(time.Second, explicit[0].PageScrollInterval); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	implicit := groups[1]
	if diff := cmp.Diff(browser.WaitUntilNetworkIdle, implicit[0].WaitUntil); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(capture.WaitCondition{Delay: 250 * time.Millisecond}, implicit[0].WaitFor); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if implicit[0].Before != nil {
		t.Error("expected no before hook")
	}

	page := &browsertest.Page{}
	element, err := explicit[1].Before(context.Background(), page)
	if err != nil {
		t.Fatal(err)
	}
	if element == nil {
		t.Fatal("expected an element")
	}
	if diff := cmp.Diff([]string{"eval window.hideBanners()", "query #main"}, page.Calls()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestDecodeManifestDefaults(t *testing.T) {
	m, err := batch.DecodeManifest(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(capture.DefaultOptions(), m.Options()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if len(m.Entries()) != 0 {
		t.Errorf("expected no entries, got %d", len(m.Entries()))
	}
}

func TestDecodeManifestInvalid(t *testing.T) {
	for _, in := range []string{
		"tasks:\n  - url: https://x\n",
		"tasks:\n  - name: a\n    waitUntil: idle\n",
		"tasks:\n  - just-a-string\n",
		"unknown: true\n",
	} {
		if _, err := batch.DecodeManifest(strings.NewReader(in)); err == nil {
			t.Errorf("expected error for %q", in)
		}
	}
}
