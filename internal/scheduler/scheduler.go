package scheduler

import (
	"sync"
	"time"

	"github.com/rextempo/liqpro/internal/logger"
)

const defaultTick = time.Second

// Scheduler owns a registry of one-shot and recurring tasks and fires due
// ones on a fixed tick. It has no knowledge of agents or domain logic.
//
// Handlers run on their own goroutines so a slow handler cannot starve the
// tick scan; task state (LastRun/NextRun/Enabled) is advanced under lock
// before dispatch, so a persistently failing task does not spin hot.
type Scheduler struct {
	mu      sync.Mutex
	tasks   map[string]*Task
	tick    time.Duration
	running bool
	stopCh  chan struct{}

	nowFn func() time.Time
}

func New() *Scheduler {
	return &Scheduler{
		tasks: make(map[string]*Task),
		tick:  defaultTick,
		nowFn: time.Now,
	}
}

// Start begins the tick loop. Calling it while running is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	go s.loop(s.stopCh)
	logger.Infof("Scheduler: started tick=%s tasks=%d", s.tick, len(s.tasks))
}

// Stop halts the tick loop. Idempotent. In-flight handlers are not
// interrupted; they finish on their own goroutines.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
	s.stopCh = nil
	logger.Infof("Scheduler: stopped")
}

// Running reports whether the tick loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(stopCh chan struct{}) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.runDue()
		}
	}
}

// ScheduleTask registers a one-shot task due at now+delay (delay may be 0).
// Re-registering an existing id replaces it; last write wins.
func (s *Scheduler) ScheduleTask(id string, handler Handler, delay time.Duration, tags ...string) string {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[id]; exists {
		logger.Debugf("Scheduler: replacing task id=%s", id)
	}
	s.tasks[id] = &Task{
		ID:      id,
		handler: handler,
		NextRun: now.Add(delay),
		Tags:    append([]string(nil), tags...),
		Enabled: true,
	}
	return id
}

// ScheduleRecurringTask registers a repeating task. The first firing is at
// now+startDelay, or now+interval when startDelay is 0. Re-registering an
// existing id replaces it; last write wins.
func (s *Scheduler) ScheduleRecurringTask(id string, handler Handler, interval, startDelay time.Duration, tags ...string) string {
	now := s.now()
	first := startDelay
	if first <= 0 {
		first = interval
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[id]; exists {
		logger.Debugf("Scheduler: replacing task id=%s", id)
	}
	s.tasks[id] = &Task{
		ID:        id,
		handler:   handler,
		Interval:  interval,
		NextRun:   now.Add(first),
		Tags:      append([]string(nil), tags...),
		Enabled:   true,
		Recurring: true,
	}
	return id
}

// CancelTask removes a task, reporting whether it existed.
func (s *Scheduler) CancelTask(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return false
	}
	delete(s.tasks, id)
	return true
}

// EnableTask re-enables a task, reporting whether it existed.
func (s *Scheduler) EnableTask(id string) bool {
	return s.setEnabled(id, true)
}

// DisableTask disables a task without removing it.
func (s *Scheduler) DisableTask(id string) bool {
	return s.setEnabled(id, false)
}

func (s *Scheduler) setEnabled(id string, enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return false
	}
	task.Enabled = enabled
	return true
}

// EnableTasksByTag enables every task carrying tag, returning the count.
func (s *Scheduler) EnableTasksByTag(tag string) int {
	return s.setEnabledByTag(tag, true)
}

// DisableTasksByTag disables every task carrying tag, returning the count.
func (s *Scheduler) DisableTasksByTag(tag string) int {
	return s.setEnabledByTag(tag, false)
}

func (s *Scheduler) setEnabledByTag(tag string, enabled bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, task := range s.tasks {
		if task.hasTag(tag) {
			task.Enabled = enabled
			count++
		}
	}
	return count
}

// CancelTasksByTag removes every task carrying tag, returning the count.
func (s *Scheduler) CancelTasksByTag(tag string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for id, task := range s.tasks {
		if task.hasTag(tag) {
			delete(s.tasks, id)
			count++
		}
	}
	return count
}

func (s *Scheduler) GetTaskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *Scheduler) GetEnabledTaskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, task := range s.tasks {
		if task.Enabled {
			count++
		}
	}
	return count
}

func (s *Scheduler) GetTaskCountByTag(tag string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, task := range s.tasks {
		if task.hasTag(tag) {
			count++
		}
	}
	return count
}

func (s *Scheduler) GetEnabledTaskCountByTag(tag string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, task := range s.tasks {
		if task.Enabled && task.hasTag(tag) {
			count++
		}
	}
	return count
}

// GetTask returns a copy of the task's current state.
func (s *Scheduler) GetTask(id string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return Task{}, false
	}
	return task.snapshot(), true
}

// runDue advances and dispatches every enabled task whose NextRun has
// arrived. State is mutated under lock; handlers are dispatched after the
// lock is released so the scan never blocks on handler completion.
func (s *Scheduler) runDue() {
	now := s.now()

	type dispatch struct {
		id      string
		handler Handler
	}
	var due []dispatch

	s.mu.Lock()
	for _, task := range s.tasks {
		if !task.Enabled || task.NextRun.After(now) {
			continue
		}
		task.LastRun = now
		if task.Recurring {
			task.NextRun = now.Add(task.Interval)
		} else {
			task.Enabled = false
		}
		due = append(due, dispatch{id: task.ID, handler: task.handler})
	}
	s.mu.Unlock()

	for _, d := range due {
		go s.invoke(d.id, d.handler)
	}
}

func (s *Scheduler) invoke(id string, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Scheduler: task %s panic: %v", id, r)
		}
	}()
	if handler == nil {
		return
	}
	if err := handler(); err != nil {
		logger.Warnf("Scheduler: task %s failed: %v", id, err)
	}
}

func (s *Scheduler) now() time.Time {
	if s.nowFn != nil {
		return s.nowFn()
	}
	return time.Now()
}
