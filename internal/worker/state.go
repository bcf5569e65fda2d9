package worker

import "fmt"

// State is a phase of the worker lifecycle:
// Idle -> Launching -> Ready -> Running -> Closing -> Done.
type State int

const (
	Idle State = iota
	Launching
	Ready
	Running
	Closing
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Launching:
		return "Launching"
	case Ready:
		return "Ready"
	case Running:
		return "Running"
	case Closing:
		return "Closing"
	case Done:
		return "Done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Phase names the session step a fatal error came from.
type Phase string

const (
	PhaseLaunch    Phase = "launch"
	PhaseNewPage   Phase = "new page"
	PhasePageSetup Phase = "page setup"
	PhaseClose     Phase = "close"
)

// FatalError aborts a whole group.
type FatalError struct {
	Group int
	Phase Phase
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("group %d: %s failed: %v", e.Group, e.Phase, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}
