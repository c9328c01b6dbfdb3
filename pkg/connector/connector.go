package connector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/config"
	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/policy/store"
	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/policy/watcher"
	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/sandbox"
	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/telemetry/metrics"
)

// Reload triggers.
const (
	TriggerManual = "manual"
	TriggerWatch  = "watch"
	TriggerPoll   = "poll"
)

// TracerFunc returns a tracer for one component. It matches
// (*tracing.Tracer).Tracer.
type TracerFunc func(component string) trace.Tracer

// Option configures a Connector.
type Option func(*Connector)

// WithMetrics records evaluations and reloads on m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Connector) {
		c.metrics = m
	}
}

// WithTracers sets the tracers handed to the sandbox and the store.
func WithTracers(f TracerFunc) Option {
	return func(c *Connector) {
		c.tracers = f
	}
}

// Connector evaluates requests against the active policy module and keeps
// that module current.
type Connector struct {
	config  *config.Config
	logger  *slog.Logger
	metrics *metrics.Collector
	tracers TracerFunc

	engine *sandbox.Engine
	store  *store.Store

	// Watch management
	watchMu sync.Mutex
	watcher *watcher.FileWatcher
	poller  *watcher.Poller
	watchWg sync.WaitGroup
	started bool
	closed  bool
}

// New creates the sandbox engine and loads the initial artifact from
// cfg.Policy.Path. A missing or invalid artifact is a *store.StartupError.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Connector, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Connector{
		config: cfg,
		logger: logger.With("component", "connector"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = metrics.NewCollector(&config.MetricsConfig{}, nil)
	}

	var engineOpts []sandbox.Option
	storeOpts := []store.Option{store.WithMaxArtifactBytes(cfg.Policy.MaxArtifactBytes)}
	if c.tracers != nil {
		engineOpts = append(engineOpts, sandbox.WithTracer(c.tracers("sandbox")))
		storeOpts = append(storeOpts, store.WithTracer(c.tracers("store")))
	}

	engine, err := sandbox.NewEngine(ctx, cfg.SandboxLimits(), logger, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox engine: %w", err)
	}
	c.engine = engine
	c.store = store.New(engine, logger, storeOpts...)

	m, err := c.store.LoadFile(ctx, cfg.Policy.Path)
	if err != nil {
		_ = engine.Close(ctx)
		return nil, err
	}
	c.metrics.RecordReload(string(store.StatusLoaded), "startup")
	c.metrics.SetActiveModule(m.Version, m.Digest)

	return c, nil
}

// Evaluate runs one evaluation against the active module. It never returns
// an allow for an evaluation that did not complete.
func (c *Connector) Evaluate(ctx context.Context, input []byte) sandbox.Outcome {
	c.metrics.EvaluationStarted()
	defer c.metrics.EvaluationDone()

	lease, err := c.store.Acquire()
	if err != nil {
		out := sandbox.Faulted(&sandbox.Fault{Kind: sandbox.FaultInstantiate, Detail: err.Error()}, "")
		c.record(ctx, out)
		return out
	}
	defer lease.Release()

	out := c.engine.Evaluate(ctx, lease.Module(), input)
	c.record(ctx, out)
	return out
}

// EvaluateRequest refuses bodies that are not a JSON document before they
// reach the sandbox, then calls Evaluate.
func (c *Connector) EvaluateRequest(ctx context.Context, body []byte) sandbox.Outcome {
	if err := ValidateInput(body); err != nil {
		var mie *MalformedInputError
		errors.As(err, &mie)
		c.logger.DebugContext(ctx, "Rejected malformed request", "reason", mie.Reason, "size_bytes", len(body))
		return sandbox.Rejected(mie.Kind(), err.Error())
	}
	return c.Evaluate(ctx, body)
}

func (c *Connector) record(ctx context.Context, out sandbox.Outcome) {
	decision := out.Decision()
	c.metrics.RecordEvaluation(decision, out.Duration, out.FuelConsumed)
	if out.Fault != nil {
		c.metrics.RecordFault(string(out.Fault.Kind))
	}
	c.logger.DebugContext(ctx, "Evaluation finished",
		"decision", decision,
		"reason", out.Reason,
		"version", out.PolicyVersion,
		"fuel_consumed", out.FuelConsumed,
		"duration_us", out.Duration.Microseconds(),
	)
}

// Reload re-reads the artifact file. It has the same semantics as an
// automatic reload.
func (c *Connector) Reload(ctx context.Context) store.ReloadResult {
	return c.ReloadWithTrigger(ctx, TriggerManual)
}

// ReloadWithTrigger re-reads the artifact file and records the attempt
// under trigger.
func (c *Connector) ReloadWithTrigger(ctx context.Context, trigger string) store.ReloadResult {
	res := c.store.ReloadFile(ctx, c.config.Policy.Path)
	c.metrics.RecordReload(string(res.Status), trigger)
	if res.Status == store.StatusLoaded {
		if info, ok := c.store.Current(); ok {
			c.metrics.SetActiveModule(info.Version, info.Digest)
		}
	}
	return res
}

// CurrentMemoryEstimate returns the sandbox memory of running instances and
// live modules plus the Go heap in use.
func (c *Connector) CurrentMemoryEstimate() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	n := c.engine.MemoryEstimate() + ms.HeapInuse
	c.metrics.SetMemoryEstimate(n)
	return n
}

// ActiveVersion returns the version of the active module.
func (c *Connector) ActiveVersion() (string, bool) {
	info, ok := c.store.Current()
	return info.Version, ok
}

// Info describes the active module and the reload history.
func (c *Connector) Info() (store.Info, bool) {
	return c.store.Current()
}

// InFlight returns the number of evaluations currently running.
func (c *Connector) InFlight() int64 {
	return c.engine.InFlight()
}

// Start begins watching the artifact file and polling it when configured.
// Both sources stop when ctx is cancelled or Close is called.
func (c *Connector) Start(ctx context.Context) error {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()

	if c.closed {
		return errors.New("connector is closed")
	}
	if c.started {
		return errors.New("connector already started")
	}

	policy := c.config.Policy
	if policy.Watch {
		fw, err := watcher.NewFileWatcher(watcher.Config{
			Path:     policy.Path,
			Debounce: policy.Debounce,
		}, c.logger)
		if err != nil {
			return fmt.Errorf("failed to create policy watcher: %w", err)
		}
		c.watcher = fw

		c.watchWg.Add(1)
		go func() {
			defer c.watchWg.Done()
			if err := fw.Watch(ctx, c.reloadFunc); err != nil {
				c.logger.Error("Policy watcher stopped", "error", err)
			}
		}()
	}

	if policy.PollSchedule != "" {
		p, err := watcher.NewPoller(policy.PollSchedule, c.logger)
		if err != nil {
			c.stopWatching()
			return err
		}
		if err := p.Start(ctx, c.reloadFunc); err != nil {
			c.stopWatching()
			return err
		}
		c.poller = p
	}

	c.started = true
	return nil
}

func (c *Connector) reloadFunc(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	c.ReloadWithTrigger(ctx, trigger)
}

// stopWatching must be called with watchMu held.
func (c *Connector) stopWatching() {
	if c.poller != nil {
		c.poller.Stop()
		c.poller = nil
	}
	if c.watcher != nil {
		if err := c.watcher.Stop(); err != nil {
			c.logger.Warn("Failed to stop policy watcher", "error", err)
		}
		c.watcher = nil
	}
	c.watchWg.Wait()
}

// Close stops reload sources, retires the active module and closes the
// engine. Evaluations after Close fail closed.
func (c *Connector) Close(ctx context.Context) error {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.stopWatching()

	c.store.Close()
	if err := c.engine.Close(ctx); err != nil {
		return fmt.Errorf("failed to close sandbox engine: %w", err)
	}
	return nil
}
