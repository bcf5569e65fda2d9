package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"screenshot-batch/internal/retry"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/xerrors"
)

// Callback PATCHes every report to URL.
type Callback struct {
	URL    string
	Client *http.Client
}

func NewCallback(url string, log logr.Logger) *Callback {
	return &Callback{
		URL: url,
		Client: &http.Client{
			Transport: &retry.Transport{
				Base: otelhttp.NewTransport(http.DefaultTransport),
				Backoff: &retry.Exponential{
					Base:       100 * time.Millisecond,
					Max:        5 * time.Second,
					MaxRetries: 5,
				},
				Policy: retry.DefaultPolicy(),
				Log:    log,
			},
		},
	}
}

func (c *Callback) Send(ctx context.Context, r *Report) error {
	j, err := r.JSON()
	if err != nil {
		return err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.URL, bytes.NewReader(j))
	if err != nil {
		return xerrors.Errorf("failed to create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	response, err := client.Do(request)
	if err != nil {
		return xerrors.Errorf("failed to send request: %w", err)
	}
	defer response.Body.Close()
	_, _ = io.Copy(io.Discard, response.Body)

	if response.StatusCode >= 300 {
		return xerrors.Errorf("failed to send report: %w", fmt.Errorf("unexpected status %s", response.Status))
	}
	return nil
}
