package capture

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"screenshot-batch/internal/browser/browsertest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func calls(parts ...any) []string {
	var out []string
	for _, p := range parts {
		switch v := p.(type) {
		case string:
			out = append(out, v)
		case []string:
			out = append(out, v...)
		}
	}
	return out
}

func steps(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "eval " + scrollStepScript
	}
	return out
}

func TestScrollPage(t *testing.T) {
	fake := errors.New("fake")
	top := "eval " + scrollTopScript

	tests := []struct {
		name      string
		page      *browsertest.Page
		maxPasses int
		want      []string
		wantErr   error
	}{
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			&browsertest.Page{Heights: []float64{250}, InnerHeight: 100},
			0,
			calls("measure", steps(3), "measure", top),
			nil,
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			&browsertest.Page{Heights: []float64{200, 400, 400, 400}, InnerHeight: 100},
			0,
			calls("measure", steps(2), "measure", "measure", steps(4), "measure", top),
			nil,
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			&browsertest.Page{Heights: []float64{100, 200, 300, 400, 500, 600}, InnerHeight: 100},
			2,
			calls("measure", steps(1), "measure", "measure", steps(3), "measure", top),
			nil,
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			&browsertest.Page{Heights: []float64{500}, InnerHeight: 0},
			0,
			calls("measure", top),
			nil,
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			&browsertest.Page{Heights: []float64{500}, InnerHeight: 100, Errs: map[string]error{"measure": fake}},
			0,
			calls("measure", top),
			fake,
		},
	}
	for _, tt := range tests {
		name := tt.name
		page := tt.page
		maxPasses := tt.maxPasses
		want := tt.want
		wantErr := tt.wantErr
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			err := ScrollPage(context.Background(), page, time.Millisecond, maxPasses)
			if !errors.Is(err, wantErr) {
				t.Errorf("expected error %v, got %v", wantErr, err)
			}
			if diff := cmp.Diff(want, page.Calls()); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestScrollSteps(t *testing.T) {
	tests := []struct {
		in   pageMetrics
		want int
	}{
		{pageMetrics{ScrollHeight: 1000, InnerHeight: 1000}, 1},
		{pageMetrics{ScrollHeight: 1001, InnerHeight: 1000}, 2},
		{pageMetrics{ScrollHeight: 0, InnerHeight: 1000}, 0},
		{pageMetrics{ScrollHeight: 1000, InnerHeight: 0}, 0},
		{pageMetrics{ScrollHeight: 1000, InnerHeight: -1}, 0},
	}
	for _, tt := range tests {
		if got := scrollSteps(tt.in); got != tt.want {
			t.Errorf("scrollSteps(%+v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestScrollPageCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	page := &browsertest.Page{Heights: []float64{1000}, InnerHeight: 100}
	if err := ScrollPage(ctx, page, time.Hour, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
