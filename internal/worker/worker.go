package worker

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"screenshot-batch/internal/browser"
	"screenshot-batch/internal/capture"
	"screenshot-batch/internal/storage"
	"screenshot-batch/internal/telemetry"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Worker runs one group of tasks on a browser session it owns exclusively.
// A Worker is single use.
type Worker struct {
	Group       int
	Launcher    browser.Launcher
	Storage     storage.Storage
	Options     capture.Options
	Log         logr.Logger
	Instruments *telemetry.Instruments
	// Out receives the rendered entries once the group is finished. Defaults to os.Stdout.
	Out io.Writer

	mu      sync.Mutex
	state   State
	session *session
}

// session is set when the worker becomes Ready and cleared when it is Done.
type session struct {
	browser browser.Session
	page    browser.Page
}

func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Worker) transition(to State) {
	w.mu.Lock()
	from := w.state
	w.state = to
	w.mu.Unlock()
	w.Log.V(1).Info("worker state changed", "from", from, "to", to)
}

// Run executes tasks in order. Task failures end up in the returned entries;
// only session failures are returned, as *FatalError. The browser is closed
// whenever it was launched.
func (w *Worker) Run(ctx context.Context, tasks []capture.Task) (entries []capture.Entry, err error) {
	if w.State() != Idle {
		return nil, fmt.Errorf("worker for group %d already ran", w.Group)
	}
	w.Log = w.Log.WithValues("group", w.Group)

	ctx, span := telemetry.Tracer().Start(ctx, "worker", trace.WithAttributes(
		attribute.Int("group.index", w.Group),
		attribute.Int("group.tasks", len(tasks)),
	))
	defer span.End()

	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "group aborted")
		}
		w.Instruments.RecordSession(ctx, err == nil)
		w.print(entries)
	}()

	w.transition(Launching)
	s, err := w.open(ctx)
	if err != nil {
		w.Log.Error(err, "failed to open browser session")
		w.transition(Closing)
		w.transition(Done)
		return nil, err
	}

	w.mu.Lock()
	w.session = s
	w.mu.Unlock()
	w.transition(Ready)

	step := &capture.Step{
		Storage:     w.Storage,
		Options:     w.Options,
		Log:         w.Log,
		Instruments: w.Instruments,
	}
	entries = make([]capture.Entry, 0, len(tasks))
	for i, task := range tasks {
		w.transition(Running)
		w.Log.V(1).Info("running task", "index", i, "name", task.Name)
		entries = append(entries, step.Run(ctx, s.page, task))
	}

	w.transition(Closing)
	if cerr := s.browser.Close(); cerr != nil {
		err = &FatalError{Group: w.Group, Phase: PhaseClose, Err: cerr}
		w.Log.Error(cerr, "failed to close browser session")
	}

	w.mu.Lock()
	w.session = nil
	w.mu.Unlock()
	w.transition(Done)
	return entries, err
}

// open launches the browser and prepares its page. When a later step fails
// the launched browser is closed before returning.
func (w *Worker) open(ctx context.Context) (*session, error) {
	b, err := w.Launcher.Launch(ctx, w.Options.BrowserLaunchOptions)
	if err != nil {
		return nil, &FatalError{Group: w.Group, Phase: PhaseLaunch, Err: err}
	}

	abort := func(phase Phase, err error) (*session, error) {
		if cerr := b.Close(); cerr != nil {
			w.Log.Error(cerr, "failed to close browser session")
		}
		return nil, &FatalError{Group: w.Group, Phase: phase, Err: err}
	}

	page, err := b.NewPage(ctx, w.Options.PageOptions())
	if err != nil {
		return abort(PhaseNewPage, err)
	}
	if err := capture.PreparePage(ctx, page, w.Options); err != nil {
		return abort(PhasePageSetup, err)
	}
	return &session{browser: b, page: page}, nil
}

func (w *Worker) print(entries []capture.Entry) {
	if len(entries) == 0 {
		return
	}
	var b strings.Builder
	for _, entry := range entries {
		b.WriteString(entry.String())
	}

	out := w.Out
	if out == nil {
		out = os.Stdout
	}
	// the whole group is written at once
	if _, err := io.WriteString(out, b.String()); err != nil {
		w.Log.Error(err, "failed to print entries")
	}
}
