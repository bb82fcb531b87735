package workflow

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/duskpoint/reverie/internal/actors"
	"github.com/duskpoint/reverie/internal/llm"
	"github.com/duskpoint/reverie/internal/observability"
	"github.com/duskpoint/reverie/internal/tools"
)

// Engine owns one workflow graph: the four nodes plus dispatch. A single run
// is strictly sequential; concurrency exists only inside the reasoning step's
// gathering phase. Runs for distinct actors may proceed in parallel unless
// actor serialization is enabled.
type Engine struct {
	observer   *Observer
	reasoner   *Reasoner
	actuator   *Actuator
	controller *Controller

	log        *slog.Logger
	metrics    *observability.Metrics
	tracer     *observability.Tracer
	clientName string

	maxIterations int

	serializeActors bool
	locks           sync.Map // actor id → *sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithMetrics attaches prometheus instrumentation.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTracer attaches per-node tracing.
func WithTracer(t *observability.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithMaxIterations sets the default iteration cap for runs.
func WithMaxIterations(n int) Option {
	return func(e *Engine) { e.maxIterations = n }
}

// WithActorSerialization makes concurrent runs for the same actor queue
// behind each other instead of racing on heat updates.
func WithActorSerialization() Option {
	return func(e *Engine) { e.serializeActors = true }
}

// NewEngine wires the workflow nodes over the given dependencies.
func NewEngine(store actors.Store, client llm.CompletionClient, executor *tools.Executor, opts ...Option) *Engine {
	e := &Engine{
		log:           slog.Default(),
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(e)
	}
	if client != nil {
		e.clientName = client.Name()
	}
	e.observer = NewObserver(store, e.log)
	e.reasoner = NewReasoner(client, executor, store, e.log)
	e.actuator = NewActuator(executor.Registry(), store, e.log)
	e.controller = NewController(executor.Registry(), e.log)
	return e
}

// Run drives one triggered cycle to completion. The returned state is always
// usable, even on error: fatal node failures are appended to state.Errors and
// the state is forced to the terminal step before returning.
func (e *Engine) Run(ctx context.Context, scope Scope) (*State, error) {
	if e.serializeActors {
		mu := e.actorLock(scope.ActorID)
		mu.Lock()
		defer mu.Unlock()
	}

	state := NewState(scope, e.maxIterations)

	ctx, span := e.span(ctx, "workflow.run",
		attribute.String("actor_id", scope.ActorID),
		attribute.String("trigger_type", string(scope.Trigger.Type)))
	defer span.End()

	var runErr error
	for state.Step != StepComplete {
		delta, err := e.dispatch(ctx, state)
		if err != nil {
			runErr = &NodeError{Node: state.Step, Iteration: state.Loop.Iteration, Cause: err}
			e.log.Error("workflow node failed",
				"actor_id", scope.ActorID,
				"node", state.Step,
				"iteration", state.Loop.Iteration,
				"error", err)
			if e.metrics != nil {
				e.metrics.NodeErrors.WithLabelValues(string(state.Step)).Inc()
			}
			state.Apply(&Delta{Step: StepComplete, Errors: []string{runErr.Error()}})
			break
		}
		state.Apply(delta)
	}

	e.finish(state)
	return state, runErr
}

func (e *Engine) dispatch(ctx context.Context, state *State) (*Delta, error) {
	ctx, span := e.span(ctx, "workflow."+string(state.Step),
		attribute.Int("iteration", state.Loop.Iteration))
	defer span.End()

	switch state.Step {
	case StepObserve:
		return e.observer.Observe(ctx, state)
	case StepReason:
		return e.reasoner.Reason(ctx, state)
	case StepAct:
		return e.actuator.Act(ctx, state)
	case StepLoopCheck:
		return e.controller.Check(ctx, state)
	default:
		// Unknown step: terminate rather than spin.
		return &Delta{Step: StepComplete}, nil
	}
}

func (e *Engine) finish(state *State) {
	e.log.Info("workflow complete",
		"actor_id", state.Scope.ActorID,
		"trigger_type", state.Scope.Trigger.Type,
		"iterations", state.Loop.Iteration,
		"continue_reason", state.Loop.ContinueReason,
		"errors", len(state.Errors))

	if e.metrics == nil {
		return
	}
	e.metrics.RunsCompleted.WithLabelValues(
		string(state.Scope.Trigger.Type),
		string(state.Loop.ContinueReason),
	).Inc()
	e.metrics.LoopIterations.Observe(float64(state.Loop.Iteration))
	if state.Observation != nil && state.Observation.Actor != nil {
		e.metrics.ActorHeat.WithLabelValues(state.Observation.Actor.ID).
			Set(state.Observation.Actor.Heat)
	}
	if state.Reasoning != nil && state.Reasoning.TokensUsed > 0 {
		e.metrics.CompletionTokens.WithLabelValues(e.clientName).
			Add(float64(state.Reasoning.TokensUsed))
	}
}

func (e *Engine) actorLock(actorID string) *sync.Mutex {
	v, _ := e.locks.LoadOrStore(actorID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (e *Engine) span(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if e.tracer == nil {
		return ctx, noop.Span{}
	}
	return e.tracer.Start(ctx, name, attrs...)
}
