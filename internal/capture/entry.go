package capture

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Entry is the outcome of one capture step.
type Entry struct {
	Name string
	URL  string
	Path string
	// Location is where the storage backend put the image.
	Location string
	Elapsed  time.Duration
	Err      error
}

func (e Entry) OK() bool {
	return e.Err == nil
}

func (e Entry) String() string {
	var b strings.Builder
	if e.OK() {
		b.WriteString("SUCCESS\tScreenshot created\n")
	} else {
		b.WriteString("ERROR\tScreenshot could not be saved\n")
	}
	fmt.Fprintf(&b, "\t\tname:\t%s\n", e.Name)
	fmt.Fprintf(&b, "\t\turl:\t%s\n", e.URL)
	fmt.Fprintf(&b, "\t\tpath:\t%s\n", e.Path)
	if e.OK() {
		if e.Location != "" && e.Location != e.Path {
			fmt.Fprintf(&b, "\t\tlocation:\t%s\n", e.Location)
		}
		fmt.Fprintf(&b, "\t\ttook:\t%.3fs\n", e.Elapsed.Seconds())
	} else {
		fmt.Fprintf(&b, "\t\treason:\t%v\n", e.Err)
	}
	return b.String()
}

type entryJSON struct {
	Name      string  `json:"name"`
	URL       string  `json:"url,omitempty"`
	Path      string  `json:"path"`
	Location  string  `json:"location,omitempty"`
	ElapsedMS float64 `json:"elapsedMs,omitempty"`
	Success   bool    `json:"success"`
	Error     string  `json:"error,omitempty"`
}

func (e Entry) MarshalJSON() ([]byte, error) {
	j := entryJSON{
		Name:     e.Name,
		URL:      e.URL,
		Path:     e.Path,
		Location: e.Location,
		Success:  e.OK(),
	}
	if e.OK() {
		j.ElapsedMS = float64(e.Elapsed.Microseconds()) / 1000
	} else {
		j.Error = e.Err.Error()
	}
	return json.Marshal(j)
}
