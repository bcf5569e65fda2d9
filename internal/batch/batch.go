package batch

import (
	"context"
	"io"
	"os"
	"strconv"
	"sync"

	"screenshot-batch/internal/browser"
	"screenshot-batch/internal/capture"
	"screenshot-batch/internal/storage"
	"screenshot-batch/internal/telemetry"
	"screenshot-batch/internal/worker"

	"github.com/go-logr/logr"
	"github.com/grafana/pyroscope-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

// Batch runs every group of its input on its own worker, all at once.
type Batch struct {
	Launcher    browser.Launcher
	Storage     storage.Storage
	Options     capture.Options
	Log         logr.Logger
	Instruments *telemetry.Instruments
	// Out receives the entries of each finished group. Defaults to os.Stdout.
	Out io.Writer
}

// Run partitions entries, runs one worker per group concurrently and waits
// for all of them. The result holds the entries of each group in partition
// order. A fatal error in one group never stops the others; the first one is
// returned once every group is finished. Run does not return at the moment
// the first group fails: the remaining workers are still driving their
// browsers, and returning early would leave them running with nobody
// waiting on them.
func (b *Batch) Run(ctx context.Context, entries []Entry) ([][]capture.Entry, error) {
	groups := Partition(entries)

	ctx, span := telemetry.Tracer().Start(ctx, "batch", trace.WithAttributes(
		attribute.Int("batch.groups", len(groups)),
	))
	defer span.End()

	dir, err := b.Storage.Prepare(ctx, b.Options.Dir)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "prepare failed")
		return nil, xerrors.Errorf("failed to prepare output directory %s: %w", b.Options.Dir, err)
	}
	options := b.Options
	options.Dir = dir

	b.warnCollisions(options, groups)

	out := b.Out
	if out == nil {
		out = os.Stdout
	}
	out = &lockedWriter{w: out}

	results := make([][]capture.Entry, len(groups))

	// no derived context: a failing group must not cancel the others
	var eg errgroup.Group
	for i, tasks := range groups {
		eg.Go(func() error {
			var err error
			pyroscope.TagWrapper(ctx, pyroscope.Labels("group", strconv.Itoa(i)), func(ctx context.Context) {
				w := &worker.Worker{
					Group:       i,
					Launcher:    b.Launcher,
					Storage:     b.Storage,
					Options:     options,
					Log:         b.Log,
					Instruments: b.Instruments,
					Out:         out,
				}
				results[i], err = w.Run(ctx, tasks)
			})
			return err
		})
	}

	if err := eg.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch rejected")
		return results, xerrors.Errorf("failed to run batch: %w", err)
	}
	b.Log.Info("batch finished", "groups", len(groups), "dir", dir)
	return results, nil
}

// warnCollisions logs tasks that write the same output path. The later write wins.
func (b *Batch) warnCollisions(options capture.Options, groups [][]capture.Task) {
	seen := map[string]int{}
	for i, tasks := range groups {
		for _, task := range tasks {
			path := capture.BuildPath(options.Dir, options.FilePrefix, task.Name, options.FileSuffix)
			if first, ok := seen[path]; ok {
				b.Log.Info("output path is shared by several tasks and will be overwritten", "path", path, "groups", []int{first, i})
				continue
			}
			seen[path] = i
		}
	}
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
