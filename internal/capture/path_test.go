package capture_test

import (
	"fmt"
	"runtime"
	"screenshot-batch/internal/capture"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuildPath(t *testing.T) {
	type in struct {
		dir    string
		prefix string
		name   string
		suffix string
	}

	tests := []struct {
		name string
		in   in
		want string
	}{
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{"out", "", "a", ""},
			"out/a.png",
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{"out", "pre-", "a", ""},
			"out/pre-a.png",
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{"out", "", "a", "-suf"},
			"out/a-suf.png",
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{"/abs/dir", "p_", "home page", "_s"},
			"/abs/dir/p_home page_s.png",
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{"out", "", "nested/name", ""},
			"out/nested/name.png",
		},
	}
	for _, tt := range tests {
		name := tt.name
		in := tt.in
		want := tt.want
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := capture.BuildPath(in.dir, in.prefix, in.name, in.suffix)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}
