package batch

import (
	"fmt"
	"io"
	"os"
	"time"

	"screenshot-batch/internal/browser"
	"screenshot-batch/internal/capture"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

// Manifest is the YAML form of a batch.
//
//	dir: out
//	browserLaunchOptions:
//	  engine: chromedp
//	tasks:
//	  - name: a
//	    url: https://example.com
//	  - - name: b
//	      url: https://example.org
//	    - name: c
//
// A task listed directly under tasks joins the implicit group; a nested list
// is an explicit group.
type Manifest struct {
	Dir                  string                `yaml:"dir"`
	FilePrefix           string                `yaml:"filePrefix"`
	FileSuffix           string                `yaml:"fileSuffix"`
	BrowserLaunchOptions browser.LaunchOptions `yaml:"browserLaunchOptions"`
	PageSetup            capture.PageSetup     `yaml:"pageSetup"`
	MaxScrollPasses      int                   `yaml:"maxScrollPasses"`
	Tasks                []ManifestEntry       `yaml:"tasks"`
}

type ManifestTask struct {
	Name               string            `yaml:"name"`
	URL                string            `yaml:"url"`
	WaitUntil          browser.WaitUntil `yaml:"waitUntil"`
	WaitForSelector    string            `yaml:"waitForSelector"`
	WaitForDelay       time.Duration     `yaml:"waitForDelay"`
	PageScroll         *bool             `yaml:"pageScroll"`
	PageScrollInterval time.Duration     `yaml:"pageScrollInterval"`
	// Element makes the first matching element the capture target.
	Element string `yaml:"element"`
	// Script is evaluated in the page right before the capture.
	Script string `yaml:"script"`
}

// ManifestEntry is either a task or a group of tasks.
type ManifestEntry struct {
	Task  *ManifestTask
	Group []ManifestTask
}

func (e *ManifestEntry) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		e.Task = &ManifestTask{}
		return node.Decode(e.Task)
	case yaml.SequenceNode:
		e.Group = []ManifestTask{}
		return node.Decode(&e.Group)
	default:
		return fmt.Errorf("line %d: a task must be a mapping or a list of mappings", node.Line)
	}
}

func ReadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()
	return DecodeManifest(f)
}

// DecodeManifest reads a manifest. Missing settings keep the defaults of
// capture.DefaultOptions.
func DecodeManifest(r io.Reader) (*Manifest, error) {
	defaults := capture.DefaultOptions()
	m := &Manifest{
		Dir:                  defaults.Dir,
		BrowserLaunchOptions: defaults.BrowserLaunchOptions,
		MaxScrollPasses:      defaults.MaxScrollPasses,
	}

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(m); err != nil && err != io.EOF {
		return nil, xerrors.Errorf("failed to decode manifest: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manifest) validate() error {
	check := func(t ManifestTask) error {
		if t.Name == "" {
			return xerrors.New("task without name")
		}
		switch t.WaitUntil {
		case "", browser.WaitUntilLoad, browser.WaitUntilDOMContentLoaded, browser.WaitUntilNetworkIdle, browser.WaitUntilCommit:
		default:
			return xerrors.Errorf("task %s: unknown waitUntil %q", t.Name, t.WaitUntil)
		}
		return nil
	}

	for _, e := range m.Tasks {
		if e.Task != nil {
			if err := check(*e.Task); err != nil {
				return err
			}
			continue
		}
		for _, t := range e.Group {
			if err := check(t); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Manifest) Options() capture.Options {
	return capture.Options{
		Dir:                  m.Dir,
		FilePrefix:           m.FilePrefix,
		FileSuffix:           m.FileSuffix,
		BrowserLaunchOptions: m.BrowserLaunchOptions,
		PageSetup:            m.PageSetup,
		MaxScrollPasses:      m.MaxScrollPasses,
	}
}

func (m *Manifest) Entries() []Entry {
	entries := make([]Entry, 0, len(m.Tasks))
	for _, e := range m.Tasks {
		if e.Task != nil {
			entries = append(entries, TaskEntry(e.Task.task()))
			continue
		}
		tasks := make([]capture.Task, 0, len(e.Group))
		for _, t := range e.Group {
			tasks = append(tasks, t.task())
		}
		entries = append(entries, GroupEntry(tasks...))
	}
	return entries
}

func (t ManifestTask) task() capture.Task {
	task := capture.Task{
		Name:      t.Name,
		URL:       t.URL,
		WaitUntil: t.WaitUntil,
		WaitFor: capture.WaitCondition{
			Selector: t.WaitForSelector,
			Delay:    t.WaitForDelay,
		},
		PageScroll:         t.PageScroll,
		PageScrollInterval: t.PageScrollInterval,
	}

	var hooks []capture.BeforeFunc
	if t.Script != "" {
		hooks = append(hooks, capture.EvaluateScript(t.Script))
	}
	if t.Element != "" {
		hooks = append(hooks, capture.SelectElement(t.Element))
	}
	switch len(hooks) {
	case 0:
	case 1:
		task.Before = hooks[0]
	default:
		task.Before = capture.Chain(hooks...)
	}
	return task
}
