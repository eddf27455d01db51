package orchestrator

import (
	"context"
	"time"

	"agentcore/internal/agenterrors"
	"agentcore/internal/checkpoint"
	"agentcore/internal/core"
	"agentcore/internal/observability"
)

// metricsRecorder is the subset of *observability.Metrics the loop
// consumes, narrowed so the loop can run metrics-less (each method below
// is a no-op when m is nil) without every call site guarding on a nil
// pointer.
type metricsRecorder struct {
	m *observability.Metrics
}

func (r metricsRecorder) iteration(step string) {
	if r.m != nil {
		r.m.Iterations.WithLabelValues(step).Inc()
	}
}

func (r metricsRecorder) checkpointLatency(backend string, seconds float64) {
	if r.m != nil {
		r.m.CheckpointLatency.WithLabelValues(backend).Observe(seconds)
	}
}

func (r metricsRecorder) toolError(tool, source string) {
	if r.m != nil {
		r.m.ToolErrors.WithLabelValues(tool, source).Inc()
	}
}

// Provider is the subset of provider.Facade the loop depends on, narrowed
// to an interface so tests can substitute a fake generator.
type Provider interface {
	Generate(ctx context.Context, messages []core.Message, cfg core.GenerateConfig) (core.GenerateResult, error)
	GenerateStream(ctx context.Context, messages []core.Message, cfg core.GenerateConfig) (<-chan core.StreamChunk, error)
}

// Dispatcher is the subset of registry.Dispatcher the loop depends on.
type Dispatcher interface {
	Dispatch(call core.ToolCall) (string, error)
}

// ToolSource supplies the tool definitions attached to every generate call,
// and looks up a single definition by name (used to label the tool-error
// metric by source), satisfied by *registry.Registry.
type ToolSource interface {
	List() []core.InvokerDefinition
	Find(name string) (core.InvokerDefinition, bool)
}

// Config is the subset of the session facade's full configuration surface
// (SPEC_FULL §6) the loop itself consumes.
type Config struct {
	MaxIterations int
	MaxRetries    int
	RetryBackoff  time.Duration

	MaxTokens  int // token budget before history is trimmed; 0 disables the check
	MaxHistory int // messages kept after the system prompt when trimming

	CheckpointInterval int // checkpoint every N iterations, always on terminal exit

	// EnableSyntheticNudge governs whether a plain-content, no-tool-call,
	// non-terminal response gets a synthetic user nudge injected (spec.md
	// §4.7 step 6's "emit a synthetic user nudge only if configured").
	EnableSyntheticNudge bool

	Model       string
	Temperature float64

	// Backend labels the CheckpointLatency metric (e.g. "file"); purely
	// observational, defaults to the empty label when unset.
	Backend string
}

// DefaultConfig returns the loop's documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxIterations:        50,
		MaxRetries:           3,
		RetryBackoff:         2 * time.Second,
		MaxTokens:            100_000,
		MaxHistory:           40,
		CheckpointInterval:   1,
		EnableSyntheticNudge: true,
		Temperature:          0.7,
		Backend:              "file",
	}
}

// ErrMaxIterationsExceeded is returned (wrapped as a Budget-kind error)
// when a session exhausts its iteration budget without reaching a
// terminal step, per spec.md §4.7 step 1.
var ErrMaxIterationsExceeded = agenterrors.New(agenterrors.KindBudget, "max iterations exceeded", nil)

// Loop drives one session's iteration state machine. It is not safe for
// concurrent use on the same State: spec.md §5 requires the orchestration
// loop itself be single-threaded and sequential.
type Loop struct {
	cfg        Config
	provider   Provider
	dispatcher Dispatcher
	tools      ToolSource
	store      checkpoint.Store
	logger     observability.Logger
	format     *formatter
	metrics    metricsRecorder
}

// SetMetrics wires m into the loop's checkpoint-latency, iteration-count,
// and tool-error instruments. A nil m (the default) leaves every recorder
// call a no-op.
func (l *Loop) SetMetrics(m *observability.Metrics) {
	l.metrics = metricsRecorder{m: m}
}

// New builds a Loop. logger may be nil.
func New(cfg Config, provider Provider, dispatcher Dispatcher, tools ToolSource, store checkpoint.Store, logger observability.Logger) *Loop {
	return &Loop{
		cfg:        cfg,
		provider:   provider,
		dispatcher: dispatcher,
		tools:      tools,
		store:      store,
		logger:     observability.OrNop(logger),
		format:     newFormatter(),
	}
}

// Run drives state through iterations until it reaches a terminal step
// (complete, error, or paused), per spec.md §4.8's run() operation.
func (l *Loop) Run(ctx context.Context, state *State) (*Result, error) {
	start := time.Now()
	for {
		result, done, err := l.Step(ctx, state)
		if done || err != nil {
			if result != nil {
				result.Duration = time.Since(start)
			}
			return result, err
		}
	}
}
