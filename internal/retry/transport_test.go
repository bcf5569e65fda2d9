package retry_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"screenshot-batch/internal/retry"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(request *http.Request) (*http.Response, error) {
	return f(request)
}

type temporaryError struct{}

func (temporaryError) Error() string   { return "temporary" }
func (temporaryError) Temporary() bool { return true }

func fastBackoff() retry.Backoff {
	return &retry.Exponential{Base: time.Millisecond, Max: 10 * time.Millisecond, MaxRetries: 3}
}

func TestTransportReplaysBody(t *testing.T) {
	var mu sync.Mutex
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(b))
		n := len(bodies)
		mu.Unlock()
		if n < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := &http.Client{Transport: &retry.Transport{
		Backoff: fastBackoff(),
		Policy:  retry.DefaultPolicy(),
	}}
	request, err := http.NewRequest(http.MethodPatch, server.URL, strings.NewReader(`{"a":1}`))
	if err != nil {
		t.Fatal(err)
	}
	response, err := client.Do(request)
	if err != nil {
		t.Fatal(err)
	}
	defer response.Body.Close()

	if diff := cmp.Diff(http.StatusNoContent, response.StatusCode); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{`{"a":1}`, `{"a":1}`, `{"a":1}`}, bodies); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestTransportGivesUp(t *testing.T) {
	calls := 0
	transport := &retry.Transport{
		Base: roundTripFunc(func(request *http.Request) (*http.Response, error) {
			calls++
			return &http.Response{StatusCode: http.StatusServiceUnavailable, Body: http.NoBody}, nil
		}),
		Backoff: fastBackoff(),
		Policy:  retry.DefaultPolicy(),
	}
	request, _ := http.NewRequest(http.MethodGet, "http://example.invalid/", nil)

	response, err := transport.RoundTrip(request)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(http.StatusServiceUnavailable, response.StatusCode); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(4, calls); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestTransportRetriesTemporaryError(t *testing.T) {
	calls := 0
	transport := &retry.Transport{
		Base: roundTripFunc(func(request *http.Request) (*http.Response, error) {
			calls++
			if calls == 1 {
				return nil, temporaryError{}
			}
			return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
		}),
		Backoff: fastBackoff(),
		Policy:  retry.DefaultPolicy(),
	}
	request, _ := http.NewRequest(http.MethodGet, "http://example.invalid/", nil)

	response, err := transport.RoundTrip(request)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(http.StatusOK, response.StatusCode); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(2, calls); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestTransportDoesNotRetryPermanentError(t *testing.T) {
	fake := errors.New("fake")
	calls := 0
	transport := &retry.Transport{
		Base: roundTripFunc(func(request *http.Request) (*http.Response, error) {
			calls++
			return nil, fake
		}),
		Backoff: fastBackoff(),
		Policy:  retry.DefaultPolicy(),
	}
	request, _ := http.NewRequest(http.MethodGet, "http://example.invalid/", nil)

	if _, err := transport.RoundTrip(request); !errors.Is(err, fake) {
		t.Fatalf("expected %v, got %v", fake, err)
	}
	if diff := cmp.Diff(1, calls); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestTransportStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	transport := &retry.Transport{
		Base: roundTripFunc(func(request *http.Request) (*http.Response, error) {
			cancel()
			return &http.Response{StatusCode: http.StatusBadGateway, Body: http.NoBody}, nil
		}),
		Backoff: &retry.Exponential{Base: time.Hour, Max: time.Hour, MaxRetries: 3},
		Policy:  retry.DefaultPolicy(),
	}
	request, _ := http.NewRequestWithContext(ctx, http.MethodGet, "http://example.invalid/", nil)

	if _, err := transport.RoundTrip(request); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
