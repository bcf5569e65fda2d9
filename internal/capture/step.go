package capture

import (
	"context"
	"fmt"
	"time"

	"screenshot-batch/internal/browser"
	"screenshot-batch/internal/storage"
	"screenshot-batch/internal/telemetry"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Step captures tasks on a prepared page. Options.Dir must already be
// prepared by Storage.
type Step struct {
	Storage     storage.Storage
	Options     Options
	Log         logr.Logger
	Instruments *telemetry.Instruments
}

// Run performs task and reports the outcome. Failures, panics included, end
// up in the returned entry and never escape.
func (s *Step) Run(ctx context.Context, page browser.Page, task Task) (entry Entry) {
	entry = Entry{
		Name: task.Name,
		URL:  task.URL,
		Path: BuildPath(s.Options.Dir, s.Options.FilePrefix, task.Name, s.Options.FileSuffix),
	}

	ctx, span := telemetry.Tracer().Start(ctx, "capture", trace.WithAttributes(
		attribute.String("task.name", task.Name),
		attribute.String("task.url", task.URL),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			entry.Err = fmt.Errorf("panic: %v", r)
		}

		if entry.Err != nil {
			span.RecordError(entry.Err)
			span.SetStatus(codes.Error, "capture failed")
			s.Log.Error(entry.Err, "screenshot could not be saved", "name", entry.Name, "url", entry.URL, "path", entry.Path)
		} else {
			s.Log.Info(fmt.Sprintf("[%s] took %.3fs", entry.Name, entry.Elapsed.Seconds()), "path", entry.Location)
		}
		s.Instruments.RecordCapture(ctx, entry.Err == nil, entry.Elapsed)
	}()

	location, err := s.capture(ctx, page, task, entry.Path)
	if err != nil {
		entry.Err = err
		return entry
	}
	entry.Location = location
	entry.Elapsed = time.Since(start)
	return entry
}

func (s *Step) capture(ctx context.Context, page browser.Page, task Task, path string) (string, error) {
	if task.URL != "" {
		waitUntil := task.WaitUntil
		if waitUntil == "" {
			waitUntil = browser.WaitUntilLoad
		}
		if err := page.Goto(ctx, task.URL, waitUntil); err != nil {
			return "", err
		}

		if task.scrollEnabled() {
			if err := ScrollPage(ctx, page, task.PageScrollInterval, s.Options.MaxScrollPasses); err != nil {
				return "", err
			}
		}
	}

	switch {
	case task.WaitFor.Selector != "":
		if err := page.WaitForSelector(ctx, task.WaitFor.Selector); err != nil {
			return "", err
		}
	case task.WaitFor.Delay > 0:
		if err := sleep(ctx, task.WaitFor.Delay); err != nil {
			return "", err
		}
	}

	var target browser.Element
	if task.Before != nil {
		element, err := task.Before(ctx, page)
		if err != nil {
			return "", fmt.Errorf("failed to run before hook: %w", err)
		}
		target = element
	}

	var data []byte
	var err error
	if target != nil {
		data, err = target.Screenshot(ctx)
	} else {
		data, err = page.Screenshot(ctx, true)
	}
	if err != nil {
		return "", err
	}

	location, err := s.Storage.Put(ctx, path, data)
	if err != nil {
		return "", err
	}
	return location, nil
}
