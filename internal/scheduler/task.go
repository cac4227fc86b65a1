package scheduler

import "time"

// Handler is a unit of scheduled work. Errors are logged by the scheduler
// and never stop the tick loop.
type Handler func() error

// Task is one scheduled entry in the registry. A non-recurring task disables
// itself after its first run but is only removed by an explicit cancel.
type Task struct {
	ID        string
	Interval  time.Duration
	LastRun   time.Time
	NextRun   time.Time
	Tags      []string
	Enabled   bool
	Recurring bool

	handler Handler
}

func (t *Task) hasTag(tag string) bool {
	for _, candidate := range t.Tags {
		if candidate == tag {
			return true
		}
	}
	return false
}

func (t *Task) snapshot() Task {
	cp := *t
	cp.handler = nil
	cp.Tags = append([]string(nil), t.Tags...)
	return cp
}
