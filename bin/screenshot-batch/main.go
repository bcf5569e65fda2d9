package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"screenshot-batch/internal/batch"
	"screenshot-batch/internal/browser"
	"screenshot-batch/internal/capture"
	"screenshot-batch/internal/env"
	"screenshot-batch/internal/logging"
	"screenshot-batch/internal/report"
	"screenshot-batch/internal/runnable"
	"screenshot-batch/internal/storage"
	"screenshot-batch/internal/telemetry"

	"github.com/go-logr/logr"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

type config struct {
	logFormat string

	dir        string
	filePrefix string
	fileSuffix string

	engine         string
	browserName    string
	headless       bool
	executablePath string
	cdpURL         string
	browserArgs    []string
	timeout        time.Duration

	viewportWidth   int
	viewportHeight  int
	userAgent       string
	maxScrollPasses int

	storageBackend string
	s3Bucket       string
	s3Endpoint     string
	s3Region       string

	reportPath     string
	callbackURL    string
	schedule       string
	install        bool
	metricsAddress string
}

type stringSlice []string

func (s *stringSlice) String() string {
	return fmt.Sprint([]string(*s))
}

func (s *stringSlice) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func parseFlags(flags *flag.FlagSet, args []string) (*config, map[string]bool, error) {
	c := &config{}
	defaults := capture.DefaultOptions()
	launch := defaults.BrowserLaunchOptions

	flags.StringVar(&c.logFormat, "log-format", env.OrDefault("LOG_FORMAT", "json"), "Log format (json or console)")

	flags.StringVar(&c.dir, "dir", env.OrDefault("DIR", defaults.Dir), "Output directory, or key prefix for the s3 backend")
	flags.StringVar(&c.filePrefix, "file-prefix", env.OrDefault("FILE_PREFIX", ""), "Prefix of every output file name")
	flags.StringVar(&c.fileSuffix, "file-suffix", env.OrDefault("FILE_SUFFIX", ""), "Suffix of every output file name, before .png")

	flags.StringVar(&c.engine, "engine", env.OrDefault("ENGINE", launch.Engine), "Browser engine (playwright or chromedp)")
	flags.StringVar(&c.browserName, "browser", env.OrDefault("BROWSER", launch.Browser), "Playwright browser (chromium, firefox or webkit)")
	flags.BoolVar(&c.headless, "headless", env.OrDefault("HEADLESS", launch.Headless), "Run the browser headless")
	flags.StringVar(&c.executablePath, "executable-path", env.OrDefault("EXECUTABLE_PATH", ""), "Browser executable to launch")
	flags.StringVar(&c.cdpURL, "chrome-devtools-protocol-url", env.OrDefault("CHROME_DEVTOOLS_PROTOCOL_URL", ""), "Connect to existing browser via Chrome DevTools Protocol URL (e.g., http://localhost:9222)")
	browserArgs := stringSlice(env.OrDefault("BROWSER_ARGS", []string{}))
	flags.Var(&browserArgs, "browser-arg", "Extra browser command line argument, repeatable")
	flags.DurationVar(&c.timeout, "timeout", env.OrDefault("TIMEOUT", launch.Timeout), "Launch, navigation and wait timeout")

	flags.IntVar(&c.viewportWidth, "viewport-width", env.OrDefault("VIEWPORT_WIDTH", 0), "Page viewport width")
	flags.IntVar(&c.viewportHeight, "viewport-height", env.OrDefault("VIEWPORT_HEIGHT", 0), "Page viewport height")
	flags.StringVar(&c.userAgent, "user-agent", env.OrDefault("USER_AGENT", ""), "User agent of every page")
	flags.IntVar(&c.maxScrollPasses, "max-scroll-passes", env.OrDefault("MAX_SCROLL_PASSES", defaults.MaxScrollPasses), "Upper bound of scroll passes on pages that keep growing")

	flags.StringVar(&c.storageBackend, "storage-backend", env.OrDefault("STORAGE_BACKEND", "file"), "Storage backend (file or s3)")
	flags.StringVar(&c.s3Bucket, "s3-bucket", env.OrDefault("S3_BUCKET", ""), "S3 bucket")
	flags.StringVar(&c.s3Endpoint, "s3-endpoint", env.OrDefault("S3_ENDPOINT", ""), "S3 endpoint override")
	flags.StringVar(&c.s3Region, "s3-region", env.OrDefault("S3_REGION", ""), "S3 region")

	flags.StringVar(&c.reportPath, "report", env.OrDefault("REPORT", ""), "Write a JSON report of every run to this file")
	flags.StringVar(&c.callbackURL, "callback-url", env.OrDefault("CALLBACK_URL", ""), "Callback URL to send reports to")
	flags.StringVar(&c.schedule, "schedule", env.OrDefault("SCHEDULE", ""), "Cron schedule; run the batch repeatedly until interrupted")
	flags.BoolVar(&c.install, "install", env.OrDefault("INSTALL", false), "Install the playwright driver and browsers before running")
	flags.StringVar(&c.metricsAddress, "metrics-bind-address", env.OrDefault("METRICS_BIND_ADDRESS", ""), "The address the metric endpoint binds to. Empty disables it.")

	if err := flags.Parse(args); err != nil {
		return nil, nil, err
	}
	c.browserArgs = browserArgs

	set := map[string]bool{}
	flags.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	for name, key := range map[string]string{
		"dir": "DIR", "file-prefix": "FILE_PREFIX", "file-suffix": "FILE_SUFFIX",
		"engine": "ENGINE", "browser": "BROWSER", "headless": "HEADLESS",
		"executable-path": "EXECUTABLE_PATH", "chrome-devtools-protocol-url": "CHROME_DEVTOOLS_PROTOCOL_URL",
		"browser-arg": "BROWSER_ARGS", "timeout": "TIMEOUT", "max-scroll-passes": "MAX_SCROLL_PASSES",
	} {
		if _, ok := os.LookupEnv(key); ok {
			set[name] = true
		}
	}
	return c, set, nil
}

// options merges the manifest with the flags that were given explicitly.
func (c *config) options(m *batch.Manifest, set map[string]bool) capture.Options {
	o := m.Options()
	if set["dir"] {
		o.Dir = c.dir
	}
	if set["file-prefix"] {
		o.FilePrefix = c.filePrefix
	}
	if set["file-suffix"] {
		o.FileSuffix = c.fileSuffix
	}
	if set["engine"] {
		o.BrowserLaunchOptions.Engine = c.engine
	}
	if set["browser"] {
		o.BrowserLaunchOptions.Browser = c.browserName
	}
	if set["headless"] {
		o.BrowserLaunchOptions.Headless = c.headless
	}
	if set["executable-path"] {
		o.BrowserLaunchOptions.ExecutablePath = c.executablePath
	}
	if set["chrome-devtools-protocol-url"] {
		o.BrowserLaunchOptions.CDPURL = c.cdpURL
	}
	if set["browser-arg"] {
		o.BrowserLaunchOptions.Args = append(o.BrowserLaunchOptions.Args, c.browserArgs...)
	}
	if set["timeout"] {
		o.BrowserLaunchOptions.Timeout = c.timeout
	}
	if set["max-scroll-passes"] {
		o.MaxScrollPasses = c.maxScrollPasses
	}
	if c.viewportWidth > 0 && c.viewportHeight > 0 {
		o.PageSetup.Viewport = &browser.Viewport{Width: c.viewportWidth, Height: c.viewportHeight}
	}
	if c.userAgent != "" {
		o.PageSetup.UserAgent = c.userAgent
	}
	return o
}

func newLauncher(engine string) (browser.Launcher, func() error, error) {
	switch engine {
	case "", "playwright":
		l := browser.NewPlaywrightLauncher()
		return l, l.Stop, nil
	case "chromedp":
		return browser.NewChromedpLauncher(), func() error { return nil }, nil
	default:
		return nil, nil, xerrors.Errorf("unknown engine: %s", engine)
	}
}

func newStorage(ctx context.Context, c *config) (storage.Storage, error) {
	switch c.storageBackend {
	case "file":
		s, err := storage.NewFileStorage(ctx, storage.FileConfig{})
		if err != nil {
			return nil, xerrors.Errorf("failed to create file storage backend: %w", err)
		}
		return s, nil
	case "s3":
		s, err := storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:   c.s3Bucket,
			Endpoint: c.s3Endpoint,
			Region:   c.s3Region,
		})
		if err != nil {
			return nil, xerrors.Errorf("failed to create S3 storage backend: %w", err)
		}
		return s, nil
	default:
		return nil, xerrors.Errorf("unknown storage backend: %s", c.storageBackend)
	}
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	flags := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "Usage: %s [flags] manifest.yaml\n", os.Args[0])
		flags.PrintDefaults()
	}
	c, set, err := parseFlags(flags, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	log, sync, err := logging.New(logging.ConfigFromEnv(logging.Format(c.logFormat)))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = sync() }()

	if flags.NArg() != 1 {
		flags.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, log, c, set, flags.Arg(0))
	stop()
	if err != nil {
		log.Error(err, "screenshot batch failed")
		_ = sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, log logr.Logger, c *config, set map[string]bool, manifestPath string) error {
	m, err := batch.ReadManifest(manifestPath)
	if err != nil {
		return err
	}
	options := c.options(m, set)

	if c.install {
		if err := browser.Install(options.BrowserLaunchOptions.Browser); err != nil {
			return xerrors.Errorf("failed to install browsers: %w", err)
		}
	}

	shutdown, err := telemetry.SetupTracing(ctx)
	if err != nil {
		return xerrors.Errorf("failed to setup tracing: %w", err)
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			log.Error(err, "failed to shutdown telemetry")
		}
	}()

	meter, err := telemetry.NewPrometheusMeter()
	if err != nil {
		return xerrors.Errorf("failed to create meter: %w", err)
	}
	instruments, err := telemetry.NewInstruments(meter)
	if err != nil {
		return xerrors.Errorf("failed to create instruments: %w", err)
	}

	launcher, stopLauncher, err := newLauncher(options.BrowserLaunchOptions.Engine)
	if err != nil {
		return err
	}
	defer func() {
		if err := stopLauncher(); err != nil {
			log.Error(err, "failed to stop browser engine")
		}
	}()

	s, err := newStorage(ctx, c)
	if err != nil {
		return err
	}

	b := &batch.Batch{
		Launcher:    launcher,
		Storage:     s,
		Options:     options,
		Log:         log.WithName("batch"),
		Instruments: instruments,
		Out:         os.Stdout,
	}
	entries := m.Entries()

	var callback *report.Callback
	if c.callbackURL != "" {
		callback = report.NewCallback(c.callbackURL, log.WithName("callback"))
	}
	latest := &report.Latest{}
	var healthy atomic.Bool
	healthy.Store(true)

	runOnce := func(ctx context.Context) error {
		startedAt := time.Now()
		results, runErr := b.Run(ctx, entries)
		r := report.New(startedAt, time.Now(), results, runErr)
		latest.Set(r)
		healthy.Store(runErr == nil)
		log.Info("batch run finished", "succeeded", r.Succeeded, "failed", r.Failed, "took", time.Since(startedAt).String())

		if c.reportPath != "" {
			if err := report.WriteFile(c.reportPath, r); err != nil {
				return err
			}
		}
		if callback != nil {
			if err := callback.Send(ctx, r); err != nil {
				return err
			}
		}
		return runErr
	}

	serverCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()
	var eg errgroup.Group
	if c.metricsAddress != "" {
		server := runnable.NewServer(c.metricsAddress, log.WithName("server"), meter, latest, healthy.Load)
		eg.Go(func() error {
			return server.Start(serverCtx)
		})
	}

	if c.schedule == "" {
		err = runOnce(ctx)
	} else {
		err = runScheduled(ctx, log.WithName("cron"), c.schedule, runOnce)
	}

	stopServer()
	if serr := eg.Wait(); serr != nil && err == nil {
		err = serr
	}
	return err
}

// runScheduled runs fn on schedule until ctx is done. A failed run is logged and
// the schedule goes on; overlapping runs are skipped.
func runScheduled(ctx context.Context, log logr.Logger, schedule string, fn func(context.Context) error) error {
	c := cron.New(
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)
	if _, err := c.AddFunc(schedule, func() {
		if err := fn(ctx); err != nil {
			log.Error(err, "scheduled batch run failed")
		}
	}); err != nil {
		return xerrors.Errorf("failed to parse schedule %q: %w", schedule, err)
	}

	log.Info("waiting for schedule", "schedule", schedule)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
