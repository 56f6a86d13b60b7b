package scheduler

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/vantage/internal/globaltime"
)

// Holder describes who owns the task lock and for how long.
type Holder struct {
	Task string
	Age  time.Duration
}

// LockManager is the process-wide single-flight gate for analysis cycles. At
// most one task holds the lock at any instant; a holder older than maxAge is
// no longer trusted and gets force-released on the next acquisition attempt.
type LockManager struct {
	maxAge time.Duration
	logger zerolog.Logger

	mu         sync.Mutex
	busy       bool
	task       string
	acquiredAt time.Time
}

func NewLockManager(maxAge time.Duration, logger zerolog.Logger) *LockManager {
	return &LockManager{maxAge: maxAge, logger: logger}
}

// SetMaxAge applies a reloaded stale-holder age. The scheduler calls this on
// every tick so the knob follows config reloads.
func (m *LockManager) SetMaxAge(maxAge time.Duration) {
	if maxAge <= 0 {
		return
	}
	m.mu.Lock()
	m.maxAge = maxAge
	m.mu.Unlock()
}

// TryAcquire attempts to take the lock for task. On failure it returns the
// current holder so the caller can log who is blocking it. A stale holder is
// force-released and the new acquisition proceeds.
func (m *LockManager) TryAcquire(task string) (bool, Holder) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.busy {
		age := globaltime.Since(m.acquiredAt)
		if age <= m.maxAge {
			return false, Holder{Task: m.task, Age: age}
		}
		m.logger.Warn().
			Str("task", m.task).
			Dur("age", age).
			Dur("max_age", m.maxAge).
			Msg("force-releasing stale task lock")
	}

	m.busy = true
	m.task = task
	m.acquiredAt = globaltime.UTC()
	return true, Holder{Task: task}
}

// Release clears the lock unconditionally. Safe to call from a deferred block
// regardless of how the task ended.
func (m *LockManager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.busy = false
	m.task = ""
	m.acquiredAt = time.Time{}
}

// Current reports the active holder, if any.
func (m *LockManager) Current() (Holder, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.busy {
		return Holder{}, false
	}
	return Holder{Task: m.task, Age: globaltime.Since(m.acquiredAt)}, true
}
