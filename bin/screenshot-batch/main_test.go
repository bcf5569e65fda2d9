package main

import (
	"flag"
	"io"
	"strings"
	"testing"
	"time"

	"screenshot-batch/internal/batch"
	"screenshot-batch/internal/browser"

	"github.com/google/go-cmp/cmp"
)

func parse(t *testing.T, args ...string) (*config, map[string]bool) {
	t.Helper()

	flags := flag.NewFlagSet("test", flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	c, set, err := parseFlags(flags, args)
	if err != nil {
		t.Fatal(err)
	}
	return c, set
}

func TestOptionsKeepManifestWithoutFlags(t *testing.T) {
	m, err := batch.DecodeManifest(strings.NewReader("dir: shots\nfilePrefix: p-\nbrowserLaunchOptions:\n  engine: chromedp\n"))
	if err != nil {
		t.Fatal(err)
	}
	c, set := parse(t)

	o := c.options(m, set)
	if diff := cmp.Diff([]string{"shots", "p-", "chromedp"}, []string{o.Dir, o.FilePrefix, o.BrowserLaunchOptions.Engine}); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestOptionsFlagsOverrideManifest(t *testing.T) {
	m, err := batch.DecodeManifest(strings.NewReader("dir: shots\nbrowserLaunchOptions:\n  args: [\"--a\"]\n"))
	if err != nil {
		t.Fatal(err)
	}
	c, set := parse(t,
		"--dir", "out",
		"--file-suffix", "-mobile",
		"--headless=false",
		"--browser-arg", "--b",
		"--timeout", "5s",
		"--viewport-width", "390",
		"--viewport-height", "844",
		"--user-agent", "bot",
	)

	o := c.options(m, set)
	if diff := cmp.Diff([]string{"out", "", "-mobile"}, []string{o.Dir, o.FilePrefix, o.FileSuffix}); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	want := browser.DefaultLaunchOptions()
	want.Headless = false
	want.Args = []string{"--a", "--b"}
	want.Timeout = 5 * time.Second
	if diff := cmp.Diff(want, o.BrowserLaunchOptions); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(&browser.Viewport{Width: 390, Height: 844}, o.PageSetup.Viewport); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("bot", o.PageSetup.UserAgent); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestOptionsEnvironmentOverridesManifest(t *testing.T) {
	t.Setenv("ENGINE", "chromedp")
	m, err := batch.DecodeManifest(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	c, set := parse(t)

	if diff := cmp.Diff("chromedp", c.options(m, set).BrowserLaunchOptions.Engine); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestNewLauncher(t *testing.T) {
	for _, engine := range []string{"", "playwright", "chromedp"} {
		if _, stop, err := newLauncher(engine); err != nil {
			t.Errorf("%q: %v", engine, err)
		} else if err := stop(); err != nil {
			t.Errorf("%q: %v", engine, err)
		}
	}
	if _, _, err := newLauncher("selenium"); err == nil {
		t.Error("expected error for unknown engine")
	}
}
