// Package sched triggers one fetch-and-match run per day at a fixed local
// time. A small state machine guarantees at most one concurrent run between
// the daily timer and manual triggers, and a run-level failure never stops
// the next day's trigger from firing.
package sched

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/legallex/djenwatch/internal/config"
	"github.com/legallex/djenwatch/internal/model"
)

// ErrRunInProgress signals a rejected trigger while a run is active. Triggers
// are rejected, never queued.
var ErrRunInProgress = errors.New("run already in progress")

// State is the scheduler's lifecycle state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateCooldown State = "cooldown"
)

// Clock abstracts time so trigger logic is testable without waiting for real
// time to pass.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Executor runs one cycle for a date range. Satisfied by *run.Runner.
type Executor interface {
	Execute(ctx context.Context, from, to model.Date) (*model.ExecutionRecord, error)
}

// Scheduler owns the daily trigger loop.
type Scheduler struct {
	executor Executor
	trigger  config.TriggerTime
	loc      *time.Location
	clock    Clock
	logger   *log.Logger

	mu      sync.Mutex
	state   State
	lastRun model.Date // most recent run date recorded, guards double triggers
}

// New creates a scheduler firing at the given wall-clock time in loc.
func New(executor Executor, trigger config.TriggerTime, loc *time.Location, logger *log.Logger) *Scheduler {
	return &Scheduler{
		executor: executor,
		trigger:  trigger,
		loc:      loc,
		clock:    realClock{},
		logger:   logger,
		state:    StateIdle,
	}
}

// WithClock substitutes the clock, for tests.
func (s *Scheduler) WithClock(c Clock) *Scheduler {
	s.clock = c
	return s
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// NextTrigger computes the first trigger instant after now in the scheduler's
// time zone.
func (s *Scheduler) NextTrigger(now time.Time) time.Time {
	local := now.In(s.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.trigger.Hour, s.trigger.Minute, 0, 0, s.loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Run blocks until ctx is cancelled, sleeping until each trigger instant and
// executing one run to completion before recomputing the next instant. Run
// errors are recorded by the executor and logged; the loop always survives
// them.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started",
		"at", s.NextTrigger(s.clock.Now()),
		"timezone", s.loc.String(),
	)
	for {
		next := s.NextTrigger(s.clock.Now())
		wait := next.Sub(s.clock.Now())

		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-s.clock.After(wait):
		}

		// Scheduled runs cover the full previous calendar day, whose
		// publications are complete by the trigger time.
		target := model.DateOf(next.AddDate(0, 0, -1))
		if s.alreadyRan(target) {
			s.logger.Debug("run for date already recorded, skipping", "date", target)
			continue
		}
		if _, err := s.runOnce(ctx, target, target); err != nil {
			if errors.Is(err, ErrRunInProgress) {
				continue
			}
			s.logger.Error("scheduled run failed", "date", target, "err", err)
		}
	}
}

// TriggerNow executes a manual run for the date range synchronously. It is
// rejected with ErrRunInProgress while another run is active.
func (s *Scheduler) TriggerNow(ctx context.Context, from, to model.Date) (*model.ExecutionRecord, error) {
	return s.runOnce(ctx, from, to)
}

func (s *Scheduler) runOnce(ctx context.Context, from, to model.Date) (*model.ExecutionRecord, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}

	record, err := s.executor.Execute(ctx, from, to)

	// Running -> Cooldown on completion. The recorded run date guards the
	// same calendar date from auto-triggering twice; Cooldown holds until
	// that record is next consulted.
	s.mu.Lock()
	s.state = StateCooldown
	if record != nil {
		s.lastRun = record.Date
	}
	s.mu.Unlock()

	return record, err
}

func (s *Scheduler) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning {
		return ErrRunInProgress
	}
	s.state = StateRunning
	return nil
}

// alreadyRan reports whether a run for date is already recorded. Consulting
// the record completes a pending Cooldown -> Idle transition.
func (s *Scheduler) alreadyRan(date model.Date) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateCooldown {
		s.state = StateIdle
	}
	return !s.lastRun.IsZero() && s.lastRun.Equal(date.Time)
}
