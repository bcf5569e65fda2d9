package report

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"screenshot-batch/internal/capture"

	"golang.org/x/xerrors"
)

// Report summarises one batch run.
type Report struct {
	StartedAt  time.Time         `json:"startedAt"`
	FinishedAt time.Time         `json:"finishedAt"`
	Groups     [][]capture.Entry `json:"groups"`
	Succeeded  int               `json:"succeeded"`
	Failed     int               `json:"failed"`
	// Error is the reason the batch was rejected, if it was.
	Error string `json:"error,omitempty"`
}

func New(startedAt time.Time, finishedAt time.Time, groups [][]capture.Entry, err error) *Report {
	r := &Report{
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Groups:     make([][]capture.Entry, len(groups)),
	}
	copy(r.Groups, groups)
	for i, group := range r.Groups {
		if group == nil {
			r.Groups[i] = []capture.Entry{}
		}
		for _, e := range group {
			if e.OK() {
				r.Succeeded++
			} else {
				r.Failed++
			}
		}
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

func (r *Report) JSON() ([]byte, error) {
	j, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal report: %w", err)
	}
	return j, nil
}

func WriteFile(path string, r *Report) error {
	j, err := r.JSON()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return xerrors.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(path, append(j, '\n'), 0o644); err != nil {
		return xerrors.Errorf("failed to write report: %w", err)
	}
	return nil
}

// Latest keeps the most recent report and serves it as JSON.
type Latest struct {
	mu     sync.RWMutex
	report *Report
}

func (l *Latest) Set(r *Report) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.report = r
}

func (l *Latest) Get() *Report {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.report
}

func (l *Latest) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report := l.Get()
	if report == nil {
		http.Error(w, "no batch has finished yet", http.StatusNotFound)
		return
	}
	j, err := report.JSON()
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(j)
}
