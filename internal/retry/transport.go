package retry

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-logr/logr"
)

// Transport replays a request while Policy asks for it and Backoff allows it.
// Requests with a body must be replayable through GetBody.
type Transport struct {
	Base    http.RoundTripper
	Backoff Backoff
	Policy  *Policy
	Log     logr.Logger
}

func (t *Transport) RoundTrip(request *http.Request) (*http.Response, error) {
	ctx := request.Context()
	for attempt := uint(0); ; attempt++ {
		if attempt > 0 {
			rewound, err := rewind(request)
			if err != nil {
				return nil, err
			}
			request = rewound
		}

		response, err := t.base().RoundTrip(request)
		retry := false
		if err != nil {
			retry = t.Policy != nil && t.Policy.RetryError(err)
		} else {
			retry = t.Policy != nil && t.Policy.RetryResponse(response)
		}

		delay, exhausted := t.backoff().Delay(attempt)
		if !retry || exhausted {
			return response, err
		}
		if response != nil {
			_, _ = io.Copy(io.Discard, response.Body)
			response.Body.Close()
		}
		t.Log.V(1).Info("retrying request", "url", request.URL.String(), "attempt", attempt+1, "delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func rewind(request *http.Request) (*http.Request, error) {
	if request.Body == nil || request.Body == http.NoBody {
		return request, nil
	}
	if request.GetBody == nil {
		return nil, fmt.Errorf("request body of %s cannot be replayed", request.URL)
	}
	body, err := request.GetBody()
	if err != nil {
		return nil, fmt.Errorf("failed to rewind request body: %w", err)
	}
	clone := request.Clone(request.Context())
	clone.Body = body
	return clone, nil
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) backoff() Backoff {
	if t.Backoff != nil {
		return t.Backoff
	}
	return NoRetry()
}
