// Package scheduler turns configured cron schedules into tick triggers: each
// firing starts one workflow run per subscribed actor.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/duskpoint/reverie/internal/workflow"
)

// Runner starts one workflow run. *workflow.Engine satisfies it.
type Runner interface {
	Run(ctx context.Context, scope workflow.Scope) (*workflow.State, error)
}

// TickSchedule binds a cron expression to a set of actors.
type TickSchedule struct {
	// Name labels the schedule in logs.
	Name string `yaml:"name"`

	// Cron is a standard five-field cron expression.
	Cron string `yaml:"cron"`

	// ActorIDs are the actors ticked on each firing.
	ActorIDs []string `yaml:"actor_ids"`
}

// Scheduler drives scheduled tick triggers through a Runner.
type Scheduler struct {
	runner Runner
	log    *slog.Logger
	cron   *cron.Cron

	// RunTimeout bounds one actor's tick run.
	runTimeout time.Duration

	mu      sync.Mutex
	started bool
}

// Option configures the scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

// WithRunTimeout bounds each actor's tick run.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.runTimeout = d
		}
	}
}

// New creates a scheduler over the given runner.
func New(runner Runner, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner:     runner,
		log:        slog.Default(),
		cron:       cron.New(),
		runTimeout: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers a tick schedule. Must be called before Start.
func (s *Scheduler) Add(ts TickSchedule) error {
	if ts.Cron == "" {
		return fmt.Errorf("schedule %q has no cron expression", ts.Name)
	}
	if len(ts.ActorIDs) == 0 {
		return fmt.Errorf("schedule %q has no actors", ts.Name)
	}
	schedule := ts
	_, err := s.cron.AddFunc(schedule.Cron, func() { s.fire(schedule) })
	if err != nil {
		return fmt.Errorf("schedule %q: %w", ts.Name, err)
	}
	return nil
}

// Start begins firing schedules. Idempotent.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.cron.Start()
	s.log.Info("scheduler started")
}

// Stop stops firing and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.started = false
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// fire runs one tick for every actor on the schedule. Actors are ticked
// sequentially so a misbehaving schedule cannot fan out unbounded runs.
func (s *Scheduler) fire(ts TickSchedule) {
	for _, actorID := range ts.ActorIDs {
		scope := workflow.Scope{
			ActorID: actorID,
			Trigger: workflow.Trigger{
				Type:      workflow.TriggerTick,
				Schedule:  ts.Cron,
				Timestamp: time.Now(),
			},
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
		state, err := s.runner.Run(ctx, scope)
		cancel()

		if err != nil {
			s.log.Error("tick run failed",
				"schedule", ts.Name, "actor_id", actorID, "error", err)
			continue
		}
		s.log.Info("tick run complete",
			"schedule", ts.Name,
			"actor_id", actorID,
			"iterations", state.Loop.Iteration,
			"reason", state.Loop.ContinueReason)
	}
}
