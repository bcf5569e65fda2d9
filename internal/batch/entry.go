package batch

import "screenshot-batch/internal/capture"

// Entry is one element of the batch input: a single task, or an explicit
// group of tasks that run on their own worker.
type Entry struct {
	task    *capture.Task
	group   []capture.Task
	isGroup bool
}

func TaskEntry(task capture.Task) Entry {
	return Entry{task: &task}
}

func GroupEntry(tasks ...capture.Task) Entry {
	return Entry{group: tasks, isGroup: true}
}

func (e Entry) IsGroup() bool {
	return e.isGroup
}

// Tasks flattens entries without grouping, in input order.
func Tasks(tasks ...capture.Task) []Entry {
	entries := make([]Entry, 0, len(tasks))
	for _, task := range tasks {
		entries = append(entries, TaskEntry(task))
	}
	return entries
}

// Partition assigns entries to workers. Every explicit group keeps its own
// worker, in input order; all single tasks are collected into one more group
// appended after them.
func Partition(entries []Entry) [][]capture.Task {
	var groups [][]capture.Task
	var implicit []capture.Task
	for _, e := range entries {
		if e.isGroup {
			groups = append(groups, e.group)
			continue
		}
		if e.task != nil {
			implicit = append(implicit, *e.task)
		}
	}
	if len(implicit) > 0 {
		groups = append(groups, implicit)
	}
	return groups
}
