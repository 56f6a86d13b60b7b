package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/vantage/internal/config"
	"horse.fit/vantage/internal/db"
	"horse.fit/vantage/internal/globaltime"
)

// Runner executes one full analysis cycle for a user.
type Runner interface {
	RunCycle(ctx context.Context, userID string) error
}

// ProfileSource enumerates users eligible for scheduling.
type ProfileSource interface {
	ListEnabledProfiles(ctx context.Context) ([]db.ProfileRow, error)
}

// cyclePolicy is the dispatch-relevant slice of configuration, re-read from
// the config manager on every tick so knob changes apply without restart.
type cyclePolicy struct {
	continuous     bool
	interval       time.Duration
	maxConsecutive int
	resetInterval  time.Duration
}

type userState struct {
	running     bool
	lastRun     time.Time
	lastErr     string
	consecutive int
}

// UserStatus is the externally visible snapshot of one user's cycle state.
type UserStatus struct {
	UserID      string    `json:"user_id"`
	Running     bool      `json:"running"`
	LastRun     time.Time `json:"last_run,omitzero"`
	LastError   string    `json:"last_error,omitempty"`
	Consecutive int       `json:"consecutive_cycles"`
}

// Status is the scheduler-wide snapshot served over the HTTP API.
type Status struct {
	Started       bool         `json:"started"`
	ActiveWorkers int          `json:"active_workers"`
	LockHolder    string       `json:"lock_holder,omitempty"`
	LockAge       string       `json:"lock_age,omitempty"`
	Users         []UserStatus `json:"users"`
}

// Scheduler drives repeated per-user analysis cycles. One poll loop decides
// who is due; each dispatched cycle runs on its own goroutine behind the
// single-flight task lock.
type Scheduler struct {
	cfg      *config.Manager
	profiles ProfileSource
	runner   Runner
	lock     *LockManager
	logger   zerolog.Logger

	mu      sync.Mutex
	states  map[string]*userState
	order   []string
	active  int
	started bool
	cancel  context.CancelFunc

	wg sync.WaitGroup
}

func New(cfg *config.Manager, profiles ProfileSource, runner Runner, lock *LockManager, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		profiles: profiles,
		runner:   runner,
		lock:     lock,
		logger:   logger.With().Str("component", "scheduler").Logger(),
		states:   make(map[string]*userState),
	}
}

// Start launches the poll loop. Calling Start on a started scheduler is a
// no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.started = true
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(loopCtx)
	s.logger.Info().Msg("scheduler started")
}

// Stop signals the poll loop to cease dispatching and waits for it to exit.
// In-flight cycles run to natural completion.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info().Msg("scheduler stopped")
}

// Started reports whether the poll loop is active.
func (s *Scheduler) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	for {
		poll := s.cfg.Current().SchedulerPollInterval
		if err := s.tick(ctx); err != nil {
			s.logger.Error().Err(err).Msg("scheduler tick failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(poll):
		}
	}
}

// tick runs one scheduling pass. Panics are converted to errors so a bad pass
// never kills the loop.
func (s *Scheduler) tick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduler tick panic: %v", r)
		}
	}()

	profiles, err := s.profiles.ListEnabledProfiles(ctx)
	if err != nil {
		return fmt.Errorf("enumerate profiles: %w", err)
	}

	cfg := s.cfg.Current()
	s.lock.SetMaxAge(cfg.LockMaxAge)
	allowed := allowlistSet(cfg.UserAllowlistIDs())
	policy := cyclePolicy{
		continuous:     cfg.ContinuousMode,
		interval:       cfg.CycleInterval,
		maxConsecutive: cfg.MaxConsecutiveCycles,
		resetInterval:  cfg.CycleResetInterval,
	}

	now := globaltime.UTC()
	for _, profile := range profiles {
		if allowed != nil {
			if _, ok := allowed[profile.UserID]; !ok {
				continue
			}
		}
		s.maybeDispatch(ctx, profile.UserID, policy, now)
	}
	return nil
}

// maybeDispatch applies the dispatch policy and, if the user is due, marks it
// running before the goroutine starts so the next tick cannot double-dispatch.
func (s *Scheduler) maybeDispatch(ctx context.Context, userID string, policy cyclePolicy, now time.Time) {
	s.mu.Lock()
	state := s.stateLocked(userID)

	dispatch, reset := decideDispatch(*state, policy, now)
	if reset {
		state.consecutive = 0
	}
	if !dispatch {
		s.mu.Unlock()
		return
	}
	state.running = true
	s.active++
	s.mu.Unlock()

	s.wg.Add(1)
	// Stop cancels the loop context to cease dispatching, but an in-flight
	// cycle runs to natural completion; Stop waits for it instead.
	go s.runUser(context.WithoutCancel(ctx), userID)
}

// decideDispatch is the pure dispatch policy for one user. It returns whether
// to dispatch now and whether the consecutive-cycle counter should reset
// first.
func decideDispatch(state userState, policy cyclePolicy, now time.Time) (dispatch, reset bool) {
	if state.running {
		return false, false
	}

	if policy.maxConsecutive > 0 && state.consecutive >= policy.maxConsecutive {
		if state.lastRun.IsZero() || now.Sub(state.lastRun) < policy.resetInterval {
			return false, false
		}
		// Enough wall-clock time has passed; the cap no longer applies.
		reset = true
	}

	if policy.continuous {
		return true, reset
	}
	if state.lastRun.IsZero() || now.Sub(state.lastRun) >= policy.interval {
		return true, reset
	}
	return false, reset
}

func (s *Scheduler) runUser(ctx context.Context, userID string) {
	defer s.wg.Done()

	task := "cycle:" + userID
	ok, holder := s.lock.TryAcquire(task)
	if !ok {
		s.logger.Info().
			Str("user_id", userID).
			Str("held_by", holder.Task).
			Dur("held_for", holder.Age).
			Msg("cycle skipped, task lock busy")
		s.finishUser(userID, false, "", false)
		return
	}
	defer s.lock.Release()

	started := globaltime.UTC()
	err := s.runCycleSafe(ctx, userID)
	duration := globaltime.Since(started)

	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Dur("duration", duration).Msg("cycle failed")
		s.finishUser(userID, true, err.Error(), false)
		return
	}
	s.logger.Info().Str("user_id", userID).Dur("duration", duration).Msg("cycle completed")
	s.finishUser(userID, true, "", true)
}

// runCycleSafe shields the scheduler from a panicking cycle.
func (s *Scheduler) runCycleSafe(ctx context.Context, userID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}
	}()
	return s.runner.RunCycle(ctx, userID)
}

// finishUser clears the running marker and updates counters. ran=false means
// the dispatch never got the lock, which leaves lastRun untouched so the user
// stays due on the next tick.
func (s *Scheduler) finishUser(userID string, ran bool, lastErr string, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.stateLocked(userID)
	state.running = false
	s.active--
	if !ran {
		return
	}

	state.lastRun = globaltime.UTC()
	state.lastErr = lastErr
	if success {
		state.consecutive++
	} else {
		state.consecutive = 0
	}
}

// TriggerUser dispatches a cycle for one user immediately, bypassing the
// interval policy but not the running marker or the task lock.
func (s *Scheduler) TriggerUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	state := s.stateLocked(userID)
	if state.running {
		s.mu.Unlock()
		return fmt.Errorf("cycle already running for user %s", userID)
	}
	state.running = true
	s.active++
	s.mu.Unlock()

	s.wg.Add(1)
	go s.runUser(ctx, userID)
	return nil
}

// Status snapshots scheduler state for the HTTP API.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		Started:       s.started,
		ActiveWorkers: s.active,
		Users:         make([]UserStatus, 0, len(s.order)),
	}
	if holder, held := s.lock.Current(); held {
		status.LockHolder = holder.Task
		status.LockAge = holder.Age.String()
	}
	for _, userID := range s.order {
		state := s.states[userID]
		status.Users = append(status.Users, UserStatus{
			UserID:      userID,
			Running:     state.running,
			LastRun:     state.lastRun,
			LastError:   state.lastErr,
			Consecutive: state.consecutive,
		})
	}
	return status
}

func (s *Scheduler) stateLocked(userID string) *userState {
	state, ok := s.states[userID]
	if !ok {
		state = &userState{}
		s.states[userID] = state
		s.order = append(s.order, userID)
	}
	return state
}

func allowlistSet(ids []string) map[string]struct{} {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
