// Package flow provides the timer implementation for scheduled actions.
package flow

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// timerEntry tracks one scheduled timer.
type timerEntry struct {
	timer     *time.Timer
	expiresAt time.Time
}

// SimpleTimer implements the Timer interface using Go's standard time package.
type SimpleTimer struct {
	timers map[string]*timerEntry
	mu     sync.Mutex
	nextID int64
}

// NewSimpleTimer creates a new SimpleTimer.
func NewSimpleTimer() *SimpleTimer {
	slog.Debug("Creating SimpleTimer")
	return &SimpleTimer{timers: make(map[string]*timerEntry)}
}

// ScheduleAfter schedules a function to run after a delay.
func (t *SimpleTimer) ScheduleAfter(delay time.Duration, fn func()) (string, error) {
	t.mu.Lock()
	t.nextID++
	id := fmt.Sprintf("timer_%d", t.nextID)
	t.mu.Unlock()

	timer := time.AfterFunc(delay, func() {
		slog.Debug("SimpleTimer executing scheduled function", "id", id)
		fn()
		t.mu.Lock()
		delete(t.timers, id)
		t.mu.Unlock()
	})

	t.mu.Lock()
	t.timers[id] = &timerEntry{timer: timer, expiresAt: time.Now().Add(delay)}
	t.mu.Unlock()

	slog.Debug("SimpleTimer ScheduleAfter succeeded", "id", id, "delay", delay)
	return id, nil
}

// ScheduleAt schedules a function to run at a specific time.
func (t *SimpleTimer) ScheduleAt(when time.Time, fn func()) (string, error) {
	delay := time.Until(when)
	if delay < 0 {
		slog.Warn("SimpleTimer ScheduleAt: time is in the past, executing immediately", "when", when)
		go fn()
		return "", nil
	}
	return t.ScheduleAfter(delay, fn)
}

// Cancel cancels a scheduled function by id. Cancelling an unknown or
// already-fired timer is not an error.
func (t *SimpleTimer) Cancel(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, exists := t.timers[id]; exists {
		entry.timer.Stop()
		delete(t.timers, id)
		slog.Debug("SimpleTimer Cancel succeeded", "id", id)
		return nil
	}
	slog.Debug("SimpleTimer Cancel: timer not found", "id", id)
	return nil
}

// Stop cancels all scheduled timers.
func (t *SimpleTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, entry := range t.timers {
		entry.timer.Stop()
		slog.Debug("SimpleTimer stopped timer", "id", id)
	}
	t.timers = make(map[string]*timerEntry)
}
